// package models defines the data model for the chart to playlist pipeline
package models

import (
	"fmt"
	"time"
)

// Model defines the base interface for all persistent models.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
// Implementations handle database interactions for specific model types.
type Repository[T Model] interface {
	Create(model T) error                      // Create inserts a new model into the database
	Get(id string) (T, error)                  // Get retrieves a model by its ID
	Update(model T) error                      // Update modifies an existing model in the database
	Delete(id string) error                    // Delete removes a model from the database by its ID
	List(criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}

// SourceTag identifies the chart an entry was scraped from.
type SourceTag string

const (
	SourceBillboard  SourceTag = "billboard"
	SourceSoundCloud SourceTag = "soundcloud"
	SourceTraxsource SourceTag = "traxsource"
	SourceAppleMusic SourceTag = "applemusic"
)

// ChartEntry is one row of a chart snapshot. Position is unique within a snapshot and defines its order.
type ChartEntry struct {
	Position   int
	RawTitle   string
	RawArtist  string
	SourceTag  SourceTag
	DurationMs int // 0 when the source does not declare one
}

// NormalizedEntry pairs an entry with its cleaned title and artist.
type NormalizedEntry struct {
	Entry       ChartEntry
	CleanTitle  string
	CleanArtist string
}

// MatchCandidate is a single catalog search result.
type MatchCandidate struct {
	ExternalID string
	Title      string
	Artist     string
	Popularity int
	DurationMs int
}

// Confidence grades how a chart entry was matched to a catalog track.
type Confidence int

const (
	MatchNone Confidence = iota
	MatchFuzzy
	MatchExact
)

func (c Confidence) String() string {
	switch c {
	case MatchExact:
		return "EXACT"
	case MatchFuzzy:
		return "FUZZY"
	default:
		return "NONE"
	}
}

// ParseConfidence is the inverse of [Confidence.String].
func ParseConfidence(s string) (Confidence, error) {
	switch s {
	case "EXACT":
		return MatchExact, nil
	case "FUZZY":
		return MatchFuzzy, nil
	case "NONE", "":
		return MatchNone, nil
	default:
		return MatchNone, fmt.Errorf("unknown confidence %q", s)
	}
}

// ResolvedTrack is the outcome of resolving one entry.
//
// ExternalID is empty exactly when Confidence is [MatchNone]. Err holds a failure that was absorbed
// during resolution (retries exhausted, rejected request) so it can be reported.
type ResolvedTrack struct {
	Entry       ChartEntry
	CleanTitle  string
	CleanArtist string
	ExternalID  string
	Confidence  Confidence
	Err         error
}

// Unresolved builds a [MatchNone] result for n.
func Unresolved(n NormalizedEntry, err error) ResolvedTrack {
	return ResolvedTrack{Entry: n.Entry, CleanTitle: n.CleanTitle, CleanArtist: n.CleanArtist, Confidence: MatchNone, Err: err}
}

// Resolved builds a matched result for n.
func Resolved(n NormalizedEntry, externalID string, c Confidence) ResolvedTrack {
	return ResolvedTrack{Entry: n.Entry, CleanTitle: n.CleanTitle, CleanArtist: n.CleanArtist, ExternalID: externalID, Confidence: c}
}

// RemotePlaylist is a playlist created on the target service.
type RemotePlaylist struct {
	ID   string
	Name string
	URL  string
}

// BatchFailure records a batch of tracks that could not be added after retries.
type BatchFailure struct {
	Positions   []int
	ExternalIDs []string
	Err         error
}

// PlaylistResult summarizes playlist assembly. AddedCount + SkippedCount equals the number of resolved tracks given.
type PlaylistResult struct {
	PlaylistID    string
	PlaylistURL   string
	AddedCount    int
	SkippedCount  int
	FailedBatches []BatchFailure
}

// Outcome is the per-entry verdict recorded by the audit.
type Outcome string

const (
	OutcomeExact      Outcome = "EXACT"
	OutcomeFuzzy      Outcome = "FUZZY"
	OutcomeUnresolved Outcome = "UNRESOLVED"
	OutcomeError      Outcome = "ERROR"
	OutcomeSkipped    Outcome = "SKIPPED"
)

// OutcomeOf reports the audit outcome for t. failed holds positions whose batch was skipped.
func OutcomeOf(t ResolvedTrack, failed map[int]bool) Outcome {
	switch {
	case t.Confidence == MatchNone && t.Err != nil:
		return OutcomeError
	case t.Confidence == MatchNone:
		return OutcomeUnresolved
	case failed[t.Entry.Position]:
		return OutcomeSkipped
	case t.Confidence == MatchExact:
		return OutcomeExact
	default:
		return OutcomeFuzzy
	}
}

// FailedPositions flattens the positions of every failed batch.
func (r *PlaylistResult) FailedPositions() map[int]bool {
	m := make(map[int]bool)
	if r == nil {
		return m
	}
	for _, b := range r.FailedBatches {
		for _, p := range b.Positions {
			m[p] = true
		}
	}
	return m
}
