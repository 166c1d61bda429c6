package ui

import (
	"errors"
	"strings"
	"testing"

	"github.com/desertthunder/chartx/internal/models"
	"github.com/desertthunder/chartx/internal/shared"
	"github.com/desertthunder/chartx/internal/tasks"
)

func track(position int, title, artist, id string, c models.Confidence, err error) models.ResolvedTrack {
	return models.ResolvedTrack{
		Entry:      models.ChartEntry{Position: position, RawTitle: title, RawArtist: artist, SourceTag: models.SourceTraxsource},
		ExternalID: id,
		Confidence: c,
		Err:        err,
	}
}

func TestSummary(t *testing.T) {
	tests := []struct {
		name    string
		res     *tasks.BuildResult
		err     error
		want    []string
		notWant []string
	}{
		{
			name: "completed with missing entries",
			res: &tasks.BuildResult{
				Source:       models.SourceTraxsource,
				PlaylistName: "Traxsource Top Deep House",
				Strategy:     "structured",
				Status:       models.RunCompleted,
				Tracks: []models.ResolvedTrack{
					track(1, "Sweet Sensation", "Jimpster", "sp1", models.MatchExact, nil),
					track(2, "Ghost Track", "Nobody", "", models.MatchNone, nil),
					track(3, "Flaky", "Someone", "", models.MatchNone, errors.New("retries exhausted")),
				},
				Playlist: &models.PlaylistResult{
					PlaylistID:   "pl1",
					PlaylistURL:  "https://open.spotify.com/playlist/pl1",
					AddedCount:   1,
					SkippedCount: 2,
				},
			},
			want: []string{
				"✓ Playlist created: Traxsource Top Deep House",
				"Source:  traxsource (structured)",
				"URL:     https://open.spotify.com/playlist/pl1",
				"Added:   1/3 (skipped 2)",
				"Matches: exact 1, fuzzy 0, none 2",
				"2 entries not added:",
				"#2 Nobody - Ghost Track (UNRESOLVED)",
				"#3 Someone - Flaky (ERROR: retries exhausted)",
			},
			notWant: []string{"Sweet Sensation"},
		},
		{
			name: "failed batch",
			res: &tasks.BuildResult{
				Source:       models.SourceBillboard,
				PlaylistName: "Hot 100",
				Status:       models.RunCompleted,
				Tracks: []models.ResolvedTrack{
					track(1, "A", "X", "sp1", models.MatchFuzzy, nil),
					track(2, "B", "Y", "sp2", models.MatchExact, nil),
				},
				Playlist: &models.PlaylistResult{
					PlaylistID:    "pl1",
					AddedCount:    1,
					SkippedCount:  1,
					FailedBatches: []models.BatchFailure{{Positions: []int{2}, ExternalIDs: []string{"sp2"}}},
				},
			},
			want: []string{"Added:   1/2 (skipped 1)", "#2 Y - B (SKIPPED)"},
		},
		{
			name: "no matches",
			res: &tasks.BuildResult{
				Source:       models.SourceSoundCloud,
				PlaylistName: "SoundCloud danceedm",
				Status:       models.RunNoMatches,
				Tracks:       []models.ResolvedTrack{track(1, "A", "X", "", models.MatchNone, nil)},
			},
			err:     shared.ErrNoMatches,
			want:    []string{"No tracks matched", "Added:   0/1 (skipped 1)", "#1 X - A (UNRESOLVED)"},
			notWant: []string{"URL:"},
		},
		{
			name: "auth abort",
			res: &tasks.BuildResult{
				Source:       models.SourceBillboard,
				PlaylistName: "Hot 100",
				Status:       models.RunFailed,
			},
			err:  &shared.AuthError{StatusCode: 401},
			want: []string{"✗ Build failed", "Added:   0/0 (skipped 0)"},
		},
		{
			name: "no result",
			err:  shared.ErrExtraction,
			want: []string{"✗ Build failed: chart extraction failed"},
		},
		{
			name: "audit failure",
			res: &tasks.BuildResult{
				Source:       models.SourceBillboard,
				PlaylistName: "Hot 100",
				Status:       models.RunCompleted,
				Tracks:       []models.ResolvedTrack{track(1, "A", "X", "sp1", models.MatchExact, nil)},
				Playlist:     &models.PlaylistResult{PlaylistID: "pl1", AddedCount: 1},
				AuditErr:     errors.New("disk full"),
			},
			want:    []string{"Audit not recorded: disk full"},
			notWant: []string{"entries not added"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Summary(tt.res, tt.err)
			for _, want := range tt.want {
				if !strings.Contains(got, want) {
					t.Errorf("expected summary to contain %q, got:\n%s", want, got)
				}
			}
			for _, notWant := range tt.notWant {
				if strings.Contains(got, notWant) {
					t.Errorf("expected summary not to contain %q, got:\n%s", notWant, got)
				}
			}
		})
	}
}

func TestProgress(t *testing.T) {
	tests := []struct {
		name   string
		update tasks.ProgressUpdate
		want   string
	}{
		{
			name:   "plain",
			update: tasks.ProgressUpdate{Phase: tasks.FetchChart, Message: "Fetching billboard..."},
			want:   "→ Fetching billboard...",
		},
		{
			name: "unresolved track",
			update: tasks.ProgressUpdate{
				Phase:   tasks.ResolveTracks,
				Message: "[1/2] X - A: NONE",
				Data:    track(1, "A", "X", "", models.MatchNone, nil),
			},
			want: "[1/2] X - A: NONE",
		},
		{
			name:   "skipped batch",
			update: tasks.ProgressUpdate{Phase: tasks.AddTracks, Message: "[1/1] ✗ batch skipped: boom"},
			want:   "batch skipped: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Progress(tt.update); !strings.Contains(got, tt.want) {
				t.Errorf("expected %q in %q", tt.want, got)
			}
		})
	}
}

func TestPalette(t *testing.T) {
	p := Styles()
	for _, s := range []string{p.Title("t"), p.OK("ok"), p.Err("err"), p.Warn("warn"), p.Help("help")} {
		if s == "" {
			t.Error("expected rendered text")
		}
	}
	if got := p.As("x", "#FFFFFF"); !strings.Contains(got, "x") {
		t.Errorf("expected text preserved, got %q", got)
	}
	if got := p.On("y", "#000000"); !strings.Contains(got, "y") {
		t.Errorf("expected text preserved, got %q", got)
	}
}
