// Package tasks turns a chart snapshot into a Spotify playlist with real-time progress reporting.
//
// # Core Operations
//
// The [ChartEngine] interface defines two operations:
//
//  1. [ChartEngine.Extract] : Fetch and parse a chart
//     - Downloads the chart page for a source and parameter
//     - Runs the extraction fallback chain (structured data, markup, meta tags)
//     - Applies the configured track limit
//
//  2. [ChartEngine.Build] : Full chart → playlist run
//     - Normalizes titles and artists
//     - Resolves each entry against the catalog with a [Resolver]
//     - Creates the playlist and appends tracks in chart order with an [Assembler]
//     - Records the run through a [Recorder]
//
// # Resolution
//
// [Resolver.Resolve] tries a title and artist query, then title alone. An exact title match with a
// compatible artist is EXACT, otherwise the most popular candidate is FUZZY. Transient search failures are
// retried with backoff; when retries run out the entry is unresolved and the run continues. Only
// authentication failures and the run timeout abort.
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data.
// Updates use select with default to prevent blocking.
//
// # Concurrency
//
// Resolution runs on a bounded worker pool (one worker by default) sharing a rate limiter. Results are
// re-sorted by chart position before assembly, and batches are always appended in order.
package tasks
