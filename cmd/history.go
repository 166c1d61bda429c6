package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/desertthunder/chartx/internal/formatter"
	"github.com/desertthunder/chartx/internal/repositories"
	"github.com/desertthunder/chartx/internal/shared"
	"github.com/urfave/cli/v3"
)

// History lists stored runs, newest first, or the resolutions of a single run with --run.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	db, err := r.openDatabase()
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if db == nil {
		return fmt.Errorf("%w: database.path is empty", shared.ErrInvalidConfig)
	}
	defer db.Close()

	repo := repositories.NewRunRepository(db)

	if id := cmd.String("run"); id != "" {
		return r.showRun(repo, id)
	}

	runs, err := repo.List(map[string]any{
		"source": cmd.String("source"),
		"status": cmd.String("status"),
		"limit":  cmd.Int("limit"),
	})
	if err != nil {
		return err
	}

	if len(runs) == 0 && format == formatter.Text {
		return r.writePlain("No runs recorded yet\n")
	}

	data, err := formatter.Runs(format, runs)
	if err != nil {
		return err
	}
	return r.writeBytes(data)
}

func (r *Runner) showRun(repo *repositories.RunRepository, id string) error {
	run, err := repo.Get(id)
	if err != nil {
		return err
	}
	resolutions, err := repo.ListResolutions(id)
	if err != nil {
		return err
	}

	r.writePlain("Run #%d %s (%s)\n", run.Sequence(), run.PlaylistName, run.Status)
	if run.PlaylistURL != "" {
		r.writePlain("%s\n", run.PlaylistURL)
	}
	r.writePlain("\n")

	w := tabwriter.NewWriter(r.output, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tARTIST\tTITLE\tOUTCOME\tID")
	for _, res := range resolutions {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", res.Position, res.RawArtist, res.RawTitle, res.Outcome, res.ExternalID)
	}
	return w.Flush()
}
