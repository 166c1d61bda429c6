// Package audit records what happened to every chart entry of a run.
//
// The primary record is a human-readable text file named <source>_<date>.txt. When a [RunStore] is
// configured the run and its per-entry resolutions are also kept in sqlite for the history command.
package audit

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/chartx/internal/models"
)

// DateLayout is the date format used in audit file names.
const DateLayout = "2006-01-02"

// Run is everything known about a finished pipeline run.
type Run struct {
	Source       models.SourceTag
	Param        string
	PlaylistName string
	Strategy     string
	Status       models.RunStatus
	StartedAt    time.Time
	FinishedAt   time.Time
	Tracks       []models.ResolvedTrack
	Result       *models.PlaylistResult // nil when no playlist was created
	Err          error
}

// RunStore persists runs. Implemented by repositories.RunRepository.
type RunStore interface {
	Create(run *models.Run) error
	SaveResolutions(runID string, resolutions []models.Resolution) error
}

// Recorder writes audit files and, optionally, run history.
type Recorder struct {
	dir    string
	store  RunStore
	logger *log.Logger
}

// NewRecorder creates a [Recorder] writing into dir (the working directory when empty).
// store may be nil.
func NewRecorder(dir string, store RunStore, logger *log.Logger) *Recorder {
	if dir == "" {
		dir = "."
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Recorder{dir: dir, store: store, logger: logger}
}

// Path returns the audit file path for run. A date param, such as a Billboard
// chart week, names the file; otherwise the start date does.
func (r *Recorder) Path(run Run) string {
	date := run.StartedAt.Format(DateLayout)
	if d, err := time.Parse(DateLayout, run.Param); err == nil {
		date = d.Format(DateLayout)
	}
	return filepath.Join(r.dir, fmt.Sprintf("%s_%s.txt", run.Source, date))
}

// Record writes the audit file and stores the run. Both are attempted; failures are joined.
// The remote playlist is never touched.
func (r *Recorder) Record(ctx context.Context, run Run) error {
	var errs []error

	path := r.Path(run)
	if err := r.writeFile(path, run); err != nil {
		errs = append(errs, fmt.Errorf("failed to write audit file %s: %w", path, err))
	} else {
		r.logger.Info("audit written", "path", path)
	}

	if r.store != nil {
		if err := ctx.Err(); err != nil {
			errs = append(errs, fmt.Errorf("run not stored: %w", err))
		} else if err := r.storeRun(run); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (r *Recorder) writeFile(path string, run Run) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := Write(f, run); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (r *Recorder) storeRun(run Run) error {
	m := models.NewRun(run.Source, run.Param, run.PlaylistName, run.StartedAt)
	m.Finish(run.Status, len(run.Tracks), run.Result, run.Err, run.FinishedAt)

	if err := r.store.Create(m); err != nil {
		return fmt.Errorf("failed to store run: %w", err)
	}

	failed := run.Result.FailedPositions()
	resolutions := make([]models.Resolution, len(run.Tracks))
	for i, t := range run.Tracks {
		resolutions[i] = models.NewResolution(m.ID(), t, models.OutcomeOf(t, failed))
	}

	if err := r.store.SaveResolutions(m.ID(), resolutions); err != nil {
		return fmt.Errorf("failed to store resolutions for run %s: %w", m.ID(), err)
	}
	return nil
}

// Write renders the audit text for run: a header followed by one line per entry in position order.
func Write(w io.Writer, run Run) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "# chartx resolution audit\n")
	fmt.Fprintf(bw, "source:   %s\n", strings.TrimSpace(string(run.Source)+" "+run.Param))
	fmt.Fprintf(bw, "playlist: %s\n", run.PlaylistName)
	if run.Result != nil && run.Result.PlaylistURL != "" {
		fmt.Fprintf(bw, "url:      %s\n", run.Result.PlaylistURL)
	}
	if run.Strategy != "" {
		fmt.Fprintf(bw, "strategy: %s\n", run.Strategy)
	}
	fmt.Fprintf(bw, "started:  %s\n", run.StartedAt.Format(time.RFC3339))
	if !run.FinishedAt.IsZero() {
		fmt.Fprintf(bw, "finished: %s\n", run.FinishedAt.Format(time.RFC3339))
	}

	added, skipped := 0, len(run.Tracks)
	if run.Result != nil {
		added, skipped = run.Result.AddedCount, run.Result.SkippedCount
	}
	fmt.Fprintf(bw, "status:   %s (entries %d, added %d, skipped %d)\n", run.Status, len(run.Tracks), added, skipped)
	if run.Err != nil {
		fmt.Fprintf(bw, "error:    %v\n", run.Err)
	}
	fmt.Fprintln(bw)

	tw := tabwriter.NewWriter(bw, 0, 4, 2, ' ', 0)
	failed := run.Result.FailedPositions()
	for _, t := range run.Tracks {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s", t.Entry.Position, t.Entry.RawTitle, t.Entry.RawArtist, models.OutcomeOf(t, failed), t.ExternalID)
		if t.Err != nil {
			fmt.Fprintf(tw, "\t%v", t.Err)
		}
		fmt.Fprintln(tw)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	return bw.Flush()
}
