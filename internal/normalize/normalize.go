// Package normalize cleans raw chart titles and artists into search-friendly strings.
package normalize

import (
	"regexp"
	"strings"

	"github.com/desertthunder/chartx/internal/models"
)

var (
	featuringParen = regexp.MustCompile(`(?i)\s*\(\s*(?:feat|ft|featuring)\b\.?[^)]*\)`)
	versionParen   = regexp.MustCompile(`(?i)\s*\([^)]*(?:remix|edit|version)[^)]*\)`)
	bracketed      = regexp.MustCompile(`\s*\[[^\]]*\]`)
	whitespace     = regexp.MustCompile(`\s+`)
)

// titleRules are applied in order, repeatedly, until the title stops changing.
var titleRules = []*regexp.Regexp{featuringParen, versionParen, bracketed}

// Title strips featuring credits, remix/edit/version markers and bracketed notes from a raw title.
//
// Title is idempotent: Title(Title(s)) == Title(s).
func Title(raw string) string {
	s := raw
	for {
		prev := s
		for _, re := range titleRules {
			s = re.ReplaceAllString(s, "")
		}
		s = collapse(s)
		if s == prev {
			return s
		}
	}
}

// Artist trims and collapses whitespace.
func Artist(raw string) string {
	return collapse(raw)
}

// JoinArtists joins artist names with ", " in the given order, dropping blanks.
func JoinArtists(names []string) string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n = collapse(n); n != "" {
			out = append(out, n)
		}
	}
	return strings.Join(out, ", ")
}

// Entry normalizes a chart entry.
func Entry(e models.ChartEntry) models.NormalizedEntry {
	return models.NormalizedEntry{
		Entry:       e,
		CleanTitle:  Title(e.RawTitle),
		CleanArtist: Artist(e.RawArtist),
	}
}

// Entries normalizes entries in order.
func Entries(entries []models.ChartEntry) []models.NormalizedEntry {
	out := make([]models.NormalizedEntry, len(entries))
	for i, e := range entries {
		out[i] = Entry(e)
	}
	return out
}

// Key builds a case-insensitive lookup key from a title and artist.
func Key(title, artist string) string {
	return strings.ToLower(collapse(title)) + "|" + strings.ToLower(collapse(artist))
}

// Fold lowercases and collapses whitespace for comparisons.
func Fold(s string) string {
	return strings.ToLower(collapse(s))
}

func collapse(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}
