package tasks

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/chartx/internal/audit"
	"github.com/desertthunder/chartx/internal/charts"
	"github.com/desertthunder/chartx/internal/models"
	"github.com/desertthunder/chartx/internal/normalize"
	"github.com/desertthunder/chartx/internal/shared"
	"golang.org/x/time/rate"
)

// MaxWorkers bounds the resolver worker pool.
const MaxWorkers = 8

// DocumentFetcher downloads a chart page. Implemented by [charts.Fetcher].
type DocumentFetcher interface {
	Fetch(ctx context.Context, src charts.Source, param string) (charts.Document, error)
}

// Recorder persists the outcome of a run. Implemented by [audit.Recorder].
type Recorder interface {
	Record(ctx context.Context, run audit.Run) error
}

// ChartEngine defines the chart to playlist operations.
type ChartEngine interface {
	// Extract fetches a chart and returns its entries, limited to the configured track count.
	Extract(ctx context.Context, progress chan<- ProgressUpdate, src charts.Source, param string) (*charts.Extraction, error)

	// Build runs the whole pipeline: extract, normalize, resolve, assemble and audit.
	Build(ctx context.Context, progress chan<- ProgressUpdate, req BuildRequest) (*BuildResult, error)
}

// BuildRequest names the chart snapshot and the playlist to create from it.
type BuildRequest struct {
	Source       charts.Source
	Param        string
	PlaylistName string // defaults to the source's playlist name
	Description  string // defaults to the source's description
}

// BuildResult contains all data from a pipeline run. Playlist is nil when no playlist was created.
type BuildResult struct {
	Source       models.SourceTag
	Param        string
	PlaylistName string
	Strategy     string
	Tracks       []models.ResolvedTrack
	Playlist     *models.PlaylistResult
	Status       models.RunStatus
	StartedAt    time.Time
	FinishedAt   time.Time
	AuditErr     error
}

// Counts tallies resolved tracks by confidence.
func (r *BuildResult) Counts() (exact, fuzzy, none int) {
	for _, t := range r.Tracks {
		switch t.Confidence {
		case models.MatchExact:
			exact++
		case models.MatchFuzzy:
			fuzzy++
		default:
			none++
		}
	}
	return exact, fuzzy, none
}

// Missing returns the tracks that did not make it onto the playlist, in position order.
func (r *BuildResult) Missing() []models.ResolvedTrack {
	failed := r.Playlist.FailedPositions()
	var out []models.ResolvedTrack
	for _, t := range r.Tracks {
		if t.ExternalID == "" || failed[t.Entry.Position] || r.Playlist == nil {
			out = append(out, t)
		}
	}
	return out
}

// PipelineOpts configures a [PlaylistEngine].
type PipelineOpts struct {
	Fetcher   DocumentFetcher
	Extractor *charts.Extractor
	Resolver  *Resolver
	Assembler *Assembler
	Recorder  Recorder // optional
	Workers   int      // resolver workers, 1 resolves sequentially
	RateLimit float64  // catalog searches per second across workers, 0 disables limiting
	Limit     int      // entries kept after extraction, 0 keeps all
	Timeout   time.Duration
	Logger    *log.Logger
	Observer  Observer
	Now       func() time.Time
}

// PlaylistEngine implements [ChartEngine].
type PlaylistEngine struct {
	fetcher   DocumentFetcher
	extractor *charts.Extractor
	resolver  *Resolver
	assembler *Assembler
	recorder  Recorder
	workers   int
	limiter   *rate.Limiter
	limit     int
	timeout   time.Duration
	logger    *log.Logger
	observer  Observer
	now       func() time.Time
}

// NewPlaylistEngine creates a new PlaylistEngine.
func NewPlaylistEngine(opts PipelineOpts) *PlaylistEngine {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	workers := min(max(opts.Workers, 1), MaxWorkers)

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), workers)
	}

	extractor := opts.Extractor
	if extractor == nil {
		extractor = charts.NewExtractor(charts.ExtractorOpts{Logger: logger})
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &PlaylistEngine{
		fetcher:   opts.Fetcher,
		extractor: extractor,
		resolver:  opts.Resolver,
		assembler: opts.Assembler,
		recorder:  opts.Recorder,
		workers:   workers,
		limiter:   limiter,
		limit:     opts.Limit,
		timeout:   opts.Timeout,
		logger:    logger,
		observer:  observerOrNop(opts.Observer),
		now:       now,
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *PlaylistEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Extract fetches and parses the chart for src and param.
func (e *PlaylistEngine) Extract(ctx context.Context, progress chan<- ProgressUpdate, src charts.Source, param string) (*charts.Extraction, error) {
	if e.fetcher == nil {
		return nil, fmt.Errorf("%w: chart fetcher not initialized", shared.ErrServiceUnavailable)
	}

	e.sendProgress(progress, fetchChartUpdate(src.Name, src.URL(param)))
	doc, err := e.fetcher.Fetch(ctx, src, param)
	if err != nil {
		return nil, err
	}

	extraction, err := e.extractor.Extract(doc, src)
	if err != nil {
		return nil, err
	}

	extraction.Entries = charts.Limit(extraction.Entries, e.limit)
	e.observer.Extracted(src.Tag, extraction.Strategy, len(extraction.Entries))
	e.sendProgress(progress, extractedUpdate(len(extraction.Entries), extraction.Strategy))
	return extraction, nil
}

// Build runs the full pipeline for req.
//
// The run aborts without creating a playlist when extraction fails, when the catalog rejects the credentials,
// or when the run timeout expires during resolution. When nothing resolves no playlist is created and
// [shared.ErrNoMatches] is returned. Every run that reaches resolution is recorded, even when it fails.
func (e *PlaylistEngine) Build(ctx context.Context, progress chan<- ProgressUpdate, req BuildRequest) (*BuildResult, error) {
	if e.resolver == nil || e.assembler == nil {
		return nil, fmt.Errorf("%w: resolver or assembler not initialized", shared.ErrServiceUnavailable)
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	src := req.Source
	result := &BuildResult{
		Source:       src.Tag,
		Param:        req.Param,
		PlaylistName: req.PlaylistName,
		StartedAt:    e.now(),
	}
	if result.PlaylistName == "" {
		result.PlaylistName = src.PlaylistName(req.Param)
	}
	description := req.Description
	if description == "" {
		description = src.Description(req.Param)
	}

	logger := shared.WithLogger(e.logger, "source", src.Tag)

	extraction, err := e.Extract(ctx, progress, src, req.Param)
	if err != nil {
		result.Status = models.RunFailed
		result.FinishedAt = e.now()
		e.observer.Finished(src.Tag, result.Status, result.FinishedAt.Sub(result.StartedAt))
		return result, err
	}
	result.Strategy = extraction.Strategy

	entries := normalize.Entries(extraction.Entries)
	logger.Info("resolving entries", "entries", len(entries), "strategy", extraction.Strategy, "workers", e.workers)

	tracks, err := e.resolveAll(ctx, progress, entries)
	result.Tracks = tracks
	if err != nil {
		logger.Error("resolution aborted", "error", err)
		return e.finish(ctx, progress, result, models.RunFailed, err)
	}

	exact, fuzzy, none := result.Counts()
	logger.Info("resolution finished", "exact", exact, "fuzzy", fuzzy, "none", none)

	if exact+fuzzy == 0 {
		return e.finish(ctx, progress, result, models.RunNoMatches, shared.ErrNoMatches)
	}

	playlist, err := e.assembler.assemble(ctx, result.PlaylistName, description, tracks, func(u ProgressUpdate) {
		e.sendProgress(progress, u)
	})
	if err != nil {
		return e.finish(ctx, progress, result, models.RunFailed, err)
	}
	result.Playlist = playlist

	logger.Info("playlist assembled", "url", playlist.PlaylistURL, "added", playlist.AddedCount, "skipped", playlist.SkippedCount)
	return e.finish(ctx, progress, result, models.RunCompleted, nil)
}

// finish records the run and returns runErr unchanged. Audit failures land in result.AuditErr.
func (e *PlaylistEngine) finish(ctx context.Context, progress chan<- ProgressUpdate, result *BuildResult, status models.RunStatus, runErr error) (*BuildResult, error) {
	result.Status = status
	result.FinishedAt = e.now()
	e.observer.Finished(result.Source, status, result.FinishedAt.Sub(result.StartedAt))

	if e.recorder == nil {
		return result, runErr
	}

	// The run context may already be done; the audit still has to be written.
	recordCtx := context.WithoutCancel(ctx)
	err := e.recorder.Record(recordCtx, audit.Run{
		Source:       result.Source,
		Param:        result.Param,
		PlaylistName: result.PlaylistName,
		Strategy:     result.Strategy,
		Status:       status,
		StartedAt:    result.StartedAt,
		FinishedAt:   result.FinishedAt,
		Tracks:       result.Tracks,
		Result:       result.Playlist,
		Err:          runErr,
	})
	if err != nil {
		e.logger.Warn("audit failed", "error", err)
		result.AuditErr = err
	}
	e.sendProgress(progress, auditUpdate(err))
	return result, runErr
}

// resolveAll resolves entries with a bounded worker pool sharing one rate limiter.
//
// Results are index-addressed and returned sorted by position. The first error returned by the resolver
// cancels the remaining work; entries that were never resolved are reported as unresolved with that error.
func (e *PlaylistEngine) resolveAll(ctx context.Context, progress chan<- ProgressUpdate, entries []models.NormalizedEntry) ([]models.ResolvedTrack, error) {
	total := len(entries)
	results := make([]models.ResolvedTrack, total)
	done := make([]bool, total)

	e.sendProgress(progress, resolveStartUpdate(total))

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	jobs := make(chan int)
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		completed int
	)

	for range min(e.workers, max(total, 1)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if err := e.limiter.Wait(ctx); err != nil {
					cancel(err)
					return
				}

				track, err := e.resolver.Resolve(ctx, entries[i])
				if err != nil {
					cancel(err)
					return
				}
				results[i] = track
				done[i] = true

				mu.Lock()
				completed++
				step := completed
				mu.Unlock()
				e.sendProgress(progress, resolveUpdate(step, total, track))
			}
		}()
	}

feed:
	for i := range entries {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	err := context.Cause(ctx)
	if err != nil {
		for i := range results {
			if !done[i] {
				results[i] = models.Unresolved(entries[i], err)
			}
		}
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: run timed out during resolution: %w", shared.ErrTimeout, err)
		}
	}

	slices.SortStableFunc(results, func(a, b models.ResolvedTrack) int {
		return cmp.Compare(a.Entry.Position, b.Entry.Position)
	})
	return results, err
}
