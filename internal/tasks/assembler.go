package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/chartx/internal/models"
	"github.com/desertthunder/chartx/internal/services"
	"github.com/desertthunder/chartx/internal/shared"
)

// AssemblerOpts configures an [Assembler].
type AssemblerOpts struct {
	Writer    services.PlaylistWriter
	BatchSize int // clamped to [1, services.MaxTracksPerRequest]
	Retry     shared.RetryPolicy
	Logger    *log.Logger
	Observer  Observer
}

// Assembler creates a playlist and fills it with resolved tracks in chart order.
type Assembler struct {
	writer    services.PlaylistWriter
	batchSize int
	retry     shared.RetryPolicy
	logger    *log.Logger
	observer  Observer
}

// NewAssembler creates an [Assembler].
func NewAssembler(opts AssemblerOpts) *Assembler {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	size := opts.BatchSize
	if size <= 0 || size > services.MaxTracksPerRequest {
		size = services.MaxTracksPerRequest
	}

	observer := observerOrNop(opts.Observer)
	retry := opts.Retry
	next := retry.OnRetry
	retry.OnRetry = func(attempt int, err error, wait time.Duration) {
		logger.Warn("playlist request failed, retrying", "attempt", attempt, "wait", wait, "error", err)
		observer.Retried("playlist")
		if next != nil {
			next(attempt, err, wait)
		}
	}

	return &Assembler{writer: opts.Writer, batchSize: size, retry: retry, logger: logger, observer: observer}
}

// Assemble creates the playlist and appends every track that has an external ID.
//
// Only a failure to create the playlist is returned, as a [shared.PlaylistCreationError]. Batches that still
// fail after retries are recorded in the result's FailedBatches and their tracks counted as skipped.
func (a *Assembler) Assemble(ctx context.Context, name, description string, tracks []models.ResolvedTrack) (*models.PlaylistResult, error) {
	return a.assemble(ctx, name, description, tracks, nil)
}

func (a *Assembler) assemble(
	ctx context.Context,
	name, description string,
	tracks []models.ResolvedTrack,
	report func(ProgressUpdate),
) (*models.PlaylistResult, error) {
	if report == nil {
		report = func(ProgressUpdate) {}
	}

	report(createStartUpdate(name))

	var playlist *models.RemotePlaylist
	err := a.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		playlist, err = a.writer.CreatePlaylist(ctx, name, description)
		return err
	})
	if err == nil && (playlist == nil || playlist.ID == "") {
		err = fmt.Errorf("%w: service returned no playlist id", shared.ErrAPIRequest)
	}
	if err != nil {
		return nil, &shared.PlaylistCreationError{Name: name, Err: err}
	}

	report(createdUpdate(playlist))
	a.logger.Info("playlist created", "id", playlist.ID, "url", playlist.URL)

	result := &models.PlaylistResult{PlaylistID: playlist.ID, PlaylistURL: playlist.URL}

	matched := make([]models.ResolvedTrack, 0, len(tracks))
	for _, t := range tracks {
		if t.ExternalID != "" {
			matched = append(matched, t)
		}
	}

	batches := Batches(matched, a.batchSize)
	source := sourceOf(tracks)

	var fatal error
	for i, batch := range batches {
		ids := make([]string, len(batch))
		for j, t := range batch {
			ids[j] = t.ExternalID
		}

		err := fatal
		if err == nil {
			err = a.retry.Do(ctx, func(ctx context.Context) error {
				return a.writer.AddTracks(ctx, playlist.ID, ids)
			})
		}

		if err != nil {
			if shared.IsAuth(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				fatal = err
			}
			positions := make([]int, len(batch))
			for j, t := range batch {
				positions[j] = t.Entry.Position
			}
			result.FailedBatches = append(result.FailedBatches, models.BatchFailure{Positions: positions, ExternalIDs: ids, Err: err})
			a.observer.BatchFailed(source)
			a.logger.Error("batch skipped", "batch", i+1, "tracks", len(batch), "error", err)
			report(batchUpdate(i+1, len(batches), 0, err))
			continue
		}

		result.AddedCount += len(batch)
		a.observer.Added(source, len(batch))
		report(batchUpdate(i+1, len(batches), len(batch), nil))
	}

	result.SkippedCount = len(tracks) - result.AddedCount
	return result, nil
}

// Batches splits tracks into consecutive chunks of at most size, preserving order.
func Batches(tracks []models.ResolvedTrack, size int) [][]models.ResolvedTrack {
	if size <= 0 {
		size = services.MaxTracksPerRequest
	}
	var out [][]models.ResolvedTrack
	for start := 0; start < len(tracks); start += size {
		end := min(start+size, len(tracks))
		out = append(out, tracks[start:end])
	}
	return out
}

func sourceOf(tracks []models.ResolvedTrack) models.SourceTag {
	if len(tracks) == 0 {
		return ""
	}
	return tracks[0].Entry.SourceTag
}
