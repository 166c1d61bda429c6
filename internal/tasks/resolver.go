package tasks

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/chartx/internal/models"
	"github.com/desertthunder/chartx/internal/normalize"
	"github.com/desertthunder/chartx/internal/services"
	"github.com/desertthunder/chartx/internal/shared"
)

// DefaultSearchLimit is the candidate count requested per query when none is configured.
const DefaultSearchLimit = 10

// unknownArtist is what extraction strategies emit when a page carries no artist.
const unknownArtist = "unknown"

// ResolutionCache remembers confirmed matches keyed by [normalize.Key].
type ResolutionCache interface {
	Lookup(key string) (externalID string, ok bool, err error)
	Store(key string, match models.MatchCandidate) error
}

// ResolverOpts configures a [Resolver].
type ResolverOpts struct {
	Catalog     services.Catalog
	SearchLimit int
	Retry       shared.RetryPolicy
	Cache       ResolutionCache // optional
	Logger      *log.Logger
	Observer    Observer
}

// Resolver maps normalized chart entries to catalog tracks.
type Resolver struct {
	catalog  services.Catalog
	limit    int
	retry    shared.RetryPolicy
	cache    ResolutionCache
	logger   *log.Logger
	observer Observer
}

// NewResolver creates a [Resolver].
func NewResolver(opts ResolverOpts) *Resolver {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	limit := opts.SearchLimit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	observer := observerOrNop(opts.Observer)
	retry := opts.Retry
	next := retry.OnRetry
	retry.OnRetry = func(attempt int, err error, wait time.Duration) {
		logger.Warn("search failed, retrying", "attempt", attempt, "wait", wait, "error", err)
		observer.Retried("search")
		if next != nil {
			next(attempt, err, wait)
		}
	}

	return &Resolver{
		catalog:  opts.Catalog,
		limit:    limit,
		retry:    retry,
		cache:    opts.Cache,
		logger:   logger,
		observer: observer,
	}
}

// Resolve finds the best catalog match for n.
//
// Not finding a match is a [models.MatchNone] result with a nil error. Search failures that survive the
// retry policy are absorbed into the result's Err. A non-nil error is returned only for authentication
// failures and a done context, both of which abort the run.
func (r *Resolver) Resolve(ctx context.Context, n models.NormalizedEntry) (models.ResolvedTrack, error) {
	track, err := r.resolve(ctx, n)
	if err == nil {
		r.observer.Resolved(n.Entry.SourceTag, track.Confidence)
	}
	return track, err
}

func (r *Resolver) resolve(ctx context.Context, n models.NormalizedEntry) (models.ResolvedTrack, error) {
	if n.CleanTitle == "" {
		return models.Unresolved(n, nil), nil
	}

	key := normalize.Key(n.CleanTitle, n.CleanArtist)
	if r.cache != nil {
		id, ok, err := r.cache.Lookup(key)
		if err != nil {
			r.logger.Warn("resolution cache lookup failed", "key", key, "error", err)
		} else if ok {
			r.logger.Debug("resolution cache hit", "position", n.Entry.Position, "id", id)
			return models.Resolved(n, id, models.MatchExact), nil
		}
	}

	var candidates []models.MatchCandidate
	for _, q := range SearchQueries(n) {
		found, err := r.search(ctx, q)
		if err != nil {
			if shared.IsAuth(err) || ctx.Err() != nil {
				return models.Unresolved(n, err), err
			}
			r.logger.Warn("search failed", "position", n.Entry.Position, "query", q, "error", err)
			return models.Unresolved(n, err), nil
		}
		if len(found) > 0 {
			candidates = found
			break
		}
	}

	if len(candidates) == 0 {
		r.logger.Debug("no candidates", "position", n.Entry.Position, "title", n.CleanTitle, "artist", n.CleanArtist)
		return models.Unresolved(n, nil), nil
	}

	best, confidence := Pick(n, candidates)
	if confidence == models.MatchExact && r.cache != nil {
		if err := r.cache.Store(key, best); err != nil {
			r.logger.Warn("resolution cache store failed", "key", key, "error", err)
		}
	}

	r.logger.Debug("resolved", "position", n.Entry.Position, "id", best.ExternalID, "confidence", confidence)
	return models.Resolved(n, best.ExternalID, confidence), nil
}

func (r *Resolver) search(ctx context.Context, query string) ([]models.MatchCandidate, error) {
	var found []models.MatchCandidate
	err := r.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		found, err = r.catalog.SearchTracks(ctx, query, r.limit)
		return err
	})
	if err != nil {
		return nil, err
	}

	out := found[:0:0]
	for _, c := range found {
		if c.ExternalID != "" {
			out = append(out, c)
		}
	}
	return out, nil
}

// SearchQueries returns the queries tried for n in order: title and artist, then title alone.
// Entries without a usable artist only get the title query.
func SearchQueries(n models.NormalizedEntry) []string {
	titleOnly := "track:" + n.CleanTitle
	if !knownArtist(n.CleanArtist) {
		return []string{titleOnly}
	}
	return []string{fmt.Sprintf("track:%s artist:%s", n.CleanTitle, n.CleanArtist), titleOnly}
}

// Pick chooses among non-empty candidates.
//
// A candidate whose normalized title equals the entry's and whose artist contains the entry's artist
// (or is contained by it) is [models.MatchExact]. Otherwise the most popular candidate is [models.MatchFuzzy].
// Ties go to the duration closest to the entry's, then to service order.
func Pick(n models.NormalizedEntry, candidates []models.MatchCandidate) (models.MatchCandidate, models.Confidence) {
	var exact []models.MatchCandidate
	for _, c := range candidates {
		if IsExact(n, c) {
			exact = append(exact, c)
		}
	}
	if len(exact) > 0 {
		return closest(exact, n.Entry.DurationMs), models.MatchExact
	}

	top := candidates[0].Popularity
	for _, c := range candidates[1:] {
		top = max(top, c.Popularity)
	}

	var popular []models.MatchCandidate
	for _, c := range candidates {
		if c.Popularity == top {
			popular = append(popular, c)
		}
	}
	return closest(popular, n.Entry.DurationMs), models.MatchFuzzy
}

// IsExact reports whether c is an exact match for n.
func IsExact(n models.NormalizedEntry, c models.MatchCandidate) bool {
	if normalize.Fold(normalize.Title(c.Title)) != normalize.Fold(n.CleanTitle) {
		return false
	}
	if !knownArtist(n.CleanArtist) {
		return false
	}

	want := normalize.Fold(n.CleanArtist)
	got := normalize.Fold(c.Artist)
	if got == "" {
		return false
	}
	return strings.Contains(got, want) || strings.Contains(want, got)
}

// closest returns the candidate with the duration nearest to durationMs, keeping service order on ties.
// Candidates without a duration never win over one that has it.
func closest(candidates []models.MatchCandidate, durationMs int) models.MatchCandidate {
	best := candidates[0]
	if durationMs <= 0 {
		return best
	}

	bestDiff := durationDiff(best.DurationMs, durationMs)
	for _, c := range candidates[1:] {
		if d := durationDiff(c.DurationMs, durationMs); d < bestDiff {
			best, bestDiff = c, d
		}
	}
	return best
}

func durationDiff(got, want int) int {
	if got <= 0 {
		return math.MaxInt
	}
	if got > want {
		return got - want
	}
	return want - got
}

func knownArtist(artist string) bool {
	a := normalize.Fold(artist)
	return a != "" && a != unknownArtist
}
