// package formatter renders chart entries and run history as plain text, JSON, CSV or Markdown
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/chartx/internal/models"
	"github.com/desertthunder/chartx/internal/shared"
)

// Format names an output format.
type Format string

const (
	Text     Format = "text"
	JSON     Format = "json"
	CSV      Format = "csv"
	Markdown Format = "markdown"
)

// Formats lists the accepted format names.
var Formats = []Format{Text, JSON, CSV, Markdown}

// ParseFormat resolves a user supplied format name. "txt" and "md" are accepted as aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return Text, nil
	case "json":
		return JSON, nil
	case "csv":
		return CSV, nil
	case "markdown", "md":
		return Markdown, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, s)
	}
}

// Ext returns the file extension for f, without the dot.
func (f Format) Ext() string {
	switch f {
	case JSON:
		return "json"
	case CSV:
		return "csv"
	case Markdown:
		return "md"
	default:
		return "txt"
	}
}

// entryRecord is the JSON shape of a chart entry.
type entryRecord struct {
	Position   int    `json:"position"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Source     string `json:"source"`
	DurationMs int    `json:"duration_ms,omitempty"`
}

// Entries renders entries in format f under title.
func Entries(f Format, title string, entries []models.ChartEntry) ([]byte, error) {
	switch f {
	case JSON:
		return EntriesToJSON(entries)
	case CSV:
		return EntriesToCSV(entries)
	case Markdown:
		return EntriesToMarkdown(title, entries)
	default:
		return EntriesToText(title, entries)
	}
}

// EntriesToText writes a title line followed by one "n. #position: title - artist" line per entry.
func EntriesToText(title string, entries []models.ChartEntry) ([]byte, error) {
	var buf bytes.Buffer

	if title != "" {
		buf.WriteString(title + "\n\n")
	}
	for i, e := range entries {
		fmt.Fprintf(&buf, "%d. #%d: %s - %s\n", i+1, e.Position, e.RawTitle, e.RawArtist)
	}

	return buf.Bytes(), nil
}

// EntriesToJSON converts entries to an indented JSON array.
func EntriesToJSON(entries []models.ChartEntry) ([]byte, error) {
	records := make([]entryRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, entryRecord{
			Position:   e.Position,
			Title:      e.RawTitle,
			Artist:     e.RawArtist,
			Source:     string(e.SourceTag),
			DurationMs: e.DurationMs,
		})
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entries: %w", err)
	}
	return append(data, '\n'), nil
}

// EntriesToCSV converts entries to CSV with columns: Position, Title, Artist, Source, Duration
func EntriesToCSV(entries []models.ChartEntry) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "Title", "Artist", "Source", "Duration"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, e := range entries {
		record := []string{
			strconv.Itoa(e.Position),
			e.RawTitle,
			e.RawArtist,
			string(e.SourceTag),
			formatDuration(e.DurationMs),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// EntriesToMarkdown converts entries to a Markdown document with a numbered list.
func EntriesToMarkdown(title string, entries []models.ChartEntry) ([]byte, error) {
	var buf bytes.Buffer

	if title != "" {
		fmt.Fprintf(&buf, "# %s\n\n", title)
	}
	fmt.Fprintf(&buf, "**Tracks**: %d\n\n", len(entries))

	for _, e := range entries {
		durationPart := ""
		if e.DurationMs > 0 {
			durationPart = fmt.Sprintf(" [%s]", formatDuration(e.DurationMs))
		}
		fmt.Fprintf(&buf, "%d. %s - %s%s\n", e.Position, e.RawArtist, e.RawTitle, durationPart)
	}

	return buf.Bytes(), nil
}

// WriteEntries renders entries and writes them to path, creating parent directories.
//
// An empty path defaults to <source>_<param>.<ext> in the working directory.
func WriteEntries(path string, f Format, title string, entries []models.ChartEntry) (string, error) {
	if len(entries) == 0 {
		return "", fmt.Errorf("%w: no entries to save", shared.ErrInvalidInput)
	}
	if path == "" {
		path = DefaultEntriesPath(entries[0].SourceTag, time.Now(), f)
	}

	data, err := Entries(f, title, entries)
	if err != nil {
		return "", err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write entries file: %w", err)
	}

	return path, nil
}

// DefaultEntriesPath returns <source>_<date>.<ext>.
func DefaultEntriesPath(source models.SourceTag, at time.Time, f Format) string {
	return fmt.Sprintf("%s_%s.%s", source, at.Format("2006-01-02"), f.Ext())
}

// runRecord is the JSON shape of a stored run.
type runRecord struct {
	ID           string    `json:"id"`
	Sequence     int       `json:"sequence"`
	Source       string    `json:"source"`
	Param        string    `json:"param,omitempty"`
	PlaylistName string    `json:"playlist_name"`
	PlaylistURL  string    `json:"playlist_url,omitempty"`
	Status       string    `json:"status"`
	Total        int       `json:"total"`
	Added        int       `json:"added"`
	Skipped      int       `json:"skipped"`
	Error        string    `json:"error,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// Runs renders run history in format f.
func Runs(f Format, runs []*models.Run) ([]byte, error) {
	switch f {
	case JSON:
		return RunsToJSON(runs)
	case CSV:
		return RunsToCSV(runs)
	case Markdown:
		return RunsToMarkdown(runs)
	default:
		return RunsToText(runs)
	}
}

// RunsToText writes one line per run, newest first as given.
func RunsToText(runs []*models.Run) ([]byte, error) {
	var buf bytes.Buffer

	for _, r := range runs {
		fmt.Fprintf(&buf, "#%d %s  %-10s %-10s added %d/%d  %s\n",
			r.Sequence(), r.StartedAt.Format(time.DateTime), r.Source, r.Status, r.Added, r.Total, r.PlaylistName)
		if r.PlaylistURL != "" {
			fmt.Fprintf(&buf, "    %s\n", r.PlaylistURL)
		}
		if r.Error != "" {
			fmt.Fprintf(&buf, "    error: %s\n", r.Error)
		}
	}

	return buf.Bytes(), nil
}

// RunsToJSON converts runs to an indented JSON array.
func RunsToJSON(runs []*models.Run) ([]byte, error) {
	records := make([]runRecord, 0, len(runs))
	for _, r := range runs {
		records = append(records, runRecord{
			ID:           r.ID(),
			Sequence:     r.Sequence(),
			Source:       string(r.Source),
			Param:        r.Param,
			PlaylistName: r.PlaylistName,
			PlaylistURL:  r.PlaylistURL,
			Status:       string(r.Status),
			Total:        r.Total,
			Added:        r.Added,
			Skipped:      r.Skipped,
			Error:        r.Error,
			StartedAt:    r.StartedAt,
			FinishedAt:   r.FinishedAt,
		})
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal runs: %w", err)
	}
	return append(data, '\n'), nil
}

// RunsToCSV converts runs to CSV with columns: ID, Sequence, Source, Param, Playlist, URL, Status, Total, Added, Skipped, Started, Finished
func RunsToCSV(runs []*models.Run) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Sequence", "Source", "Param", "Playlist", "URL", "Status", "Total", "Added", "Skipped", "Started", "Finished"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, r := range runs {
		record := []string{
			r.ID(),
			strconv.Itoa(r.Sequence()),
			string(r.Source),
			r.Param,
			r.PlaylistName,
			r.PlaylistURL,
			string(r.Status),
			strconv.Itoa(r.Total),
			strconv.Itoa(r.Added),
			strconv.Itoa(r.Skipped),
			r.StartedAt.Format(time.RFC3339),
			r.FinishedAt.Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// RunsToMarkdown converts runs to a Markdown table.
func RunsToMarkdown(runs []*models.Run) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("| # | Started | Source | Playlist | Status | Added | Skipped |\n")
	buf.WriteString("|---|---|---|---|---|---|---|\n")
	for _, r := range runs {
		name := r.PlaylistName
		if r.PlaylistURL != "" {
			name = fmt.Sprintf("[%s](%s)", r.PlaylistName, r.PlaylistURL)
		}
		fmt.Fprintf(&buf, "| %d | %s | %s | %s | %s | %d | %d |\n",
			r.Sequence(), r.StartedAt.Format(time.DateTime), r.Source, name, r.Status, r.Added, r.Skipped)
	}

	return buf.Bytes(), nil
}

// formatDuration formats milliseconds as m:ss, or "" when unknown.
func formatDuration(ms int) string {
	if ms <= 0 {
		return ""
	}
	secs := ms / 1000
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
