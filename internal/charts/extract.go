package charts

import (
	"bytes"
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/chartx/internal/models"
	"github.com/desertthunder/chartx/internal/shared"
	"golang.org/x/net/html"
)

// Document is a fetched chart page. Only the body and source tag are used for extraction.
type Document struct {
	Source    models.SourceTag
	URL       string
	Body      []byte
	FetchedAt time.Time
}

// Parsed is what a strategy produced. Position is 0 on entries whose source declared none.
type Parsed struct {
	Entries []models.ChartEntry
	Dropped int
}

// Strategy is a named, pure extraction step.
type Strategy struct {
	Name string
	Run  func(root *html.Node, src Source) Parsed
}

// Strategy names, in fallback order.
const (
	StrategyStructured = "structured"
	StrategyMarkup     = "markup"
	StrategyMeta       = "meta"
	StrategySample     = "sample"
)

// DefaultStrategies returns the fallback chain. The sample strategy is appended only when withSample is set.
func DefaultStrategies(withSample bool) []Strategy {
	s := []Strategy{
		{Name: StrategyStructured, Run: structured},
		{Name: StrategyMarkup, Run: markup},
		{Name: StrategyMeta, Run: meta},
	}
	if withSample {
		s = append(s, Strategy{Name: StrategySample, Run: sample})
	}
	return s
}

// FirstNonEmpty runs strategies in order and stops at the first one producing an entry.
// It reports the winning strategy name, or "" when none produced anything.
func FirstNonEmpty(root *html.Node, src Source, strategies ...Strategy) (Parsed, string) {
	var dropped int
	for _, s := range strategies {
		p := s.Run(root, src)
		dropped += p.Dropped
		if len(p.Entries) > 0 {
			p.Dropped = dropped
			return p, s.Name
		}
	}
	return Parsed{Dropped: dropped}, ""
}

// Extraction is the result of [Extractor.Extract].
type Extraction struct {
	Entries  []models.ChartEntry
	Strategy string
	Dropped  int
}

// ExtractorOpts configures an [Extractor].
type ExtractorOpts struct {
	SampleFallback bool
	Snapshots      *Snapshotter
	Logger         *log.Logger
	Strategies     []Strategy // overrides the default chain when set
}

// Extractor turns chart documents into ordered entries.
type Extractor struct {
	strategies []Strategy
	snapshots  *Snapshotter
	logger     *log.Logger
}

// NewExtractor creates an [Extractor].
func NewExtractor(opts ExtractorOpts) *Extractor {
	strategies := opts.Strategies
	if len(strategies) == 0 {
		strategies = DefaultStrategies(opts.SampleFallback)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Extractor{strategies: strategies, snapshots: opts.Snapshots, logger: logger}
}

// Extract parses doc with the fallback chain. Entries are returned sorted by position with unique positions.
func (e *Extractor) Extract(doc Document, src Source) (*Extraction, error) {
	if e.snapshots != nil {
		e.snapshots.Save(doc)
	}

	root, err := html.Parse(bytes.NewReader(doc.Body))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse %s document: %v", shared.ErrExtraction, src.Tag, err)
	}

	parsed, name := FirstNonEmpty(root, src, e.strategies...)
	if parsed.Dropped > 0 {
		e.logger.Warn("dropped rows missing title or artist", "source", src.Tag, "count", parsed.Dropped)
	}

	if name == "" {
		names := make([]string, len(e.strategies))
		for i, s := range e.strategies {
			names[i] = s.Name
		}
		return nil, &shared.ExtractionError{Source: string(src.Tag), Strategies: names}
	}

	if name == StrategySample {
		e.logger.Warn("using built-in sample tracks", "source", src.Tag)
	}

	entries, renumbered := assignPositions(parsed.Entries, src.Tag)
	if renumbered {
		e.logger.Warn("source positions were not unique, renumbered in document order", "source", src.Tag)
	}

	e.logger.Debug("extracted chart", "source", src.Tag, "strategy", name, "entries", len(entries))
	return &Extraction{Entries: entries, Strategy: name, Dropped: parsed.Dropped}, nil
}

// assignPositions keeps declared positions, falls back to the 1-based row index, and renumbers the
// whole batch in document order when the result is not unique.
func assignPositions(in []models.ChartEntry, tag models.SourceTag) ([]models.ChartEntry, bool) {
	out := make([]models.ChartEntry, len(in))
	seen := make(map[int]bool, len(in))
	unique := true

	for i, e := range in {
		if e.Position < 1 {
			e.Position = i + 1
		}
		e.SourceTag = tag
		if seen[e.Position] {
			unique = false
		}
		seen[e.Position] = true
		out[i] = e
	}

	if !unique {
		for i := range out {
			out[i].Position = i + 1
		}
	}

	slices.SortStableFunc(out, func(a, b models.ChartEntry) int { return cmp.Compare(a.Position, b.Position) })
	return out, !unique
}

// Limit keeps at most n entries in order. n <= 0 keeps everything.
func Limit(entries []models.ChartEntry, n int) []models.ChartEntry {
	if n <= 0 || n >= len(entries) {
		return entries
	}
	return entries[:n]
}
