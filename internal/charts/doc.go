// Package charts fetches chart pages and extracts ordered chart entries from them.
//
// Each [Source] is a fixed, tagged description of one chart (URL, selectors, optional sample list).
// Extraction runs an ordered list of [Strategy] values and keeps the result of the first one that
// yields at least one entry:
//
//  1. structured: JSON-LD MusicPlaylist data embedded in the page
//  2. markup: per-source CSS selectors over the rendered rows
//  3. meta: music:song meta tags
//  4. sample: the source's built-in sample list, only when explicitly enabled
//
// Entries are never merged across strategies. When every strategy comes back empty, [Extractor.Extract]
// returns a [shared.ExtractionError].
package charts
