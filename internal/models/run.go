package models

import (
	"errors"
	"time"
)

// RunStatus is the terminal state of a pipeline run.
type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunNoMatches RunStatus = "no_matches"
	RunFailed    RunStatus = "failed"
)

// Run is a persisted pipeline run.
type Run struct {
	id           string
	sequence     int
	Source       SourceTag
	Param        string
	PlaylistName string
	PlaylistID   string
	PlaylistURL  string
	Status       RunStatus
	Total        int
	Added        int
	Skipped      int
	Error        string
	StartedAt    time.Time
	FinishedAt   time.Time
	createdAt    time.Time
	updatedAt    time.Time
	deletedAt    *time.Time
}

// NewRun creates a run that started at startedAt.
func NewRun(source SourceTag, param, playlistName string, startedAt time.Time) *Run {
	now := time.Now()
	return &Run{
		Source:       source,
		Param:        param,
		PlaylistName: playlistName,
		StartedAt:    startedAt,
		createdAt:    now,
		updatedAt:    now,
	}
}

// RestoreRun rebuilds a run loaded from storage.
func RestoreRun(id string, sequence int, createdAt, updatedAt time.Time, deletedAt *time.Time, r Run) *Run {
	r.id = id
	r.sequence = sequence
	r.createdAt = createdAt
	r.updatedAt = updatedAt
	r.deletedAt = deletedAt
	return &r
}

func (r *Run) ID() string { return r.id }
func (r *Run) SetID(id string) { r.id = id }
func (r *Run) Sequence() int { return r.sequence }
func (r *Run) SetSequence(s int) { r.sequence = s }
func (r *Run) CreatedAt() time.Time { return r.createdAt }
func (r *Run) UpdatedAt() time.Time { return r.updatedAt }
func (r *Run) SetUpdatedAt(t time.Time) { r.updatedAt = t }
func (r *Run) DeletedAt() *time.Time { return r.deletedAt }
func (r *Run) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }
func (r *Run) IsDeleted() bool { return r.deletedAt != nil }

// Validate checks required fields.
func (r *Run) Validate() error {
	if r.Source == "" {
		return errors.New("run source is required")
	}
	if r.PlaylistName == "" {
		return errors.New("run playlist name is required")
	}
	if r.Status == "" {
		return errors.New("run status is required")
	}
	if r.Added < 0 || r.Skipped < 0 {
		return errors.New("run counts must not be negative")
	}
	return nil
}

// Finish records the playlist outcome on the run.
func (r *Run) Finish(status RunStatus, total int, result *PlaylistResult, err error, at time.Time) {
	r.Status = status
	r.Total = total
	r.FinishedAt = at
	if result != nil {
		r.PlaylistID = result.PlaylistID
		r.PlaylistURL = result.PlaylistURL
		r.Added = result.AddedCount
		r.Skipped = result.SkippedCount
	} else {
		r.Skipped = total
	}
	if err != nil {
		r.Error = err.Error()
	}
}

// Resolution is a persisted per-entry outcome belonging to a run.
type Resolution struct {
	RunID       string
	Position    int
	RawTitle    string
	RawArtist   string
	CleanTitle  string
	CleanArtist string
	ExternalID  string
	Confidence  Confidence
	Outcome     Outcome
	Error       string
}

// NewResolution converts a resolved track into its stored form.
func NewResolution(runID string, t ResolvedTrack, outcome Outcome) Resolution {
	r := Resolution{
		RunID:       runID,
		Position:    t.Entry.Position,
		RawTitle:    t.Entry.RawTitle,
		RawArtist:   t.Entry.RawArtist,
		CleanTitle:  t.CleanTitle,
		CleanArtist: t.CleanArtist,
		ExternalID:  t.ExternalID,
		Confidence:  t.Confidence,
		Outcome:     outcome,
	}
	if t.Err != nil {
		r.Error = t.Err.Error()
	}
	return r
}
