package tasks

import (
	"fmt"

	"github.com/desertthunder/chartx/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	FetchChart Phase = iota
	ExtractEntries
	ResolveTracks
	CreatePlaylist
	AddTracks
	RecordAudit
)

func (p Phase) String() string {
	switch p {
	case FetchChart:
		return "fetch_chart"
	case ExtractEntries:
		return "extract_entries"
	case ResolveTracks:
		return "resolve_tracks"
	case CreatePlaylist:
		return "create_playlist"
	case AddTracks:
		return "add_tracks"
	case RecordAudit:
		return "record_audit"
	default:
		return ""
	}
}

func fetchChartUpdate(name, url string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchChart,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetching %s (%s)...", name, url),
	}
}

func extractedUpdate(n int, strategy string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExtractEntries,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Extracted %d entries (%s)", n, strategy),
		Data:    strategy,
	}
}

func resolveStartUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveTracks,
		Step:    0,
		Total:   total,
		Message: "Searching for tracks on Spotify...",
	}
}

func resolveUpdate(step, total int, t models.ResolvedTrack) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s - %s: %s", step, total, t.Entry.RawArtist, t.Entry.RawTitle, t.Confidence),
		Data:    t,
	}
}

func createStartUpdate(name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    0,
		Total:   1,
		Message: fmt.Sprintf("Creating playlist %q...", name),
	}
}

func createdUpdate(pl *models.RemotePlaylist) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Playlist created: %s (ID: %s)", pl.Name, pl.ID),
		Data:    pl,
	}
}

func batchUpdate(step, total, added int, err error) ProgressUpdate {
	if err != nil {
		return ProgressUpdate{
			Phase:   AddTracks,
			Step:    step,
			Total:   total,
			Message: fmt.Sprintf("[%d/%d] ✗ batch skipped: %v", step, total, err),
		}
	}
	return ProgressUpdate{
		Phase:   AddTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ added %d tracks", step, total, added),
	}
}

func auditUpdate(err error) ProgressUpdate {
	msg := "Audit recorded"
	if err != nil {
		msg = fmt.Sprintf("Audit failed: %v", err)
	}
	return ProgressUpdate{Phase: RecordAudit, Step: 1, Total: 1, Message: msg}
}
