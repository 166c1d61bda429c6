package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/chartx/internal/charts"
	"github.com/desertthunder/chartx/internal/metrics"
	"github.com/desertthunder/chartx/internal/shared"
	"github.com/desertthunder/chartx/internal/tasks"
	"github.com/desertthunder/chartx/internal/ui"
	"github.com/urfave/cli/v3"
)

// Build creates a playlist from a chart.
//
// The summary is printed for every run that got past setup. A run where nothing matched exits cleanly;
// extraction, authentication and playlist creation failures are returned.
func (r *Runner) Build(ctx context.Context, cmd *cli.Command) error {
	src, param, err := r.chartArgs(cmd)
	if err != nil {
		return err
	}

	name := cmd.String("name")
	if name == "" {
		name = src.PlaylistName(param)
		if r.interactive {
			if err := r.prompter.Input("Playlist name", &name); err != nil {
				return err
			}
		}
	}

	limit, err := r.limit(cmd)
	if err != nil {
		return err
	}

	// 0 in the config file means the default; the flag must be explicit.
	workers, minWorkers := r.config.Resolver.Workers, 0
	if cmd.IsSet("workers") {
		workers, minWorkers = cmd.Int("workers"), 1
	}
	if workers < minWorkers || workers > tasks.MaxWorkers {
		return fmt.Errorf("%w: --workers must be between 1 and %d", shared.ErrInvalidFlag, tasks.MaxWorkers)
	}

	if r.interactive && !cmd.Bool("yes") {
		ok, err := r.prompter.Confirm(fmt.Sprintf("Create playlist %q from %s?", name, src.URL(param)))
		if err != nil {
			return err
		}
		if !ok {
			return r.writePlain("Cancelled\n")
		}
	}

	deps, err := r.newEngine(engineOpts{
		workers:        workers,
		limit:          limit,
		sampleFallback: cmd.Bool("sample-fallback") || r.config.Extract.SampleFallback,
	})
	if err != nil {
		return err
	}
	defer deps.Close()

	r.logger.Info("building playlist", "source", src.Tag, "param", param, "name", name, "limit", limit)

	progress, stop := r.streamProgress(ui.Progress)
	res, buildErr := deps.engine.Build(ctx, progress, tasks.BuildRequest{
		Source:       src,
		Param:        param,
		PlaylistName: name,
		Description:  cmd.String("description"),
	})
	stop()

	r.writePlain("\n%s", ui.Summary(res, buildErr))
	r.writeMetrics(deps.metrics)

	if buildErr != nil && !errors.Is(buildErr, shared.ErrNoMatches) {
		return buildErr
	}
	return nil
}

// chartArgs resolves the source argument and --param, prompting for whichever is missing on a terminal.
func (r *Runner) chartArgs(cmd *cli.Command) (charts.Source, string, error) {
	tag := cmd.StringArg("source")
	if tag == "" {
		if !r.interactive {
			return charts.Source{}, "", fmt.Errorf("%w: source (one of %v)", shared.ErrMissingArgument, charts.Tags())
		}
		if err := r.prompter.Select("Choose a chart", charts.Tags(), &tag); err != nil {
			return charts.Source{}, "", err
		}
	}

	src, err := charts.Lookup(tag)
	if err != nil {
		return charts.Source{}, "", err
	}

	param := cmd.String("param")
	if param == "" {
		param = charts.DefaultParam(src, r.now())
		if r.interactive && !cmd.IsSet("param") {
			if err := r.prompter.Input(fmt.Sprintf("%s parameter", src.Name), &param); err != nil {
				return charts.Source{}, "", err
			}
		}
	}

	return src, param, nil
}

// limit returns --limit when set, else pipeline.limit.
func (r *Runner) limit(cmd *cli.Command) (int, error) {
	limit := r.config.Pipeline.Limit
	if cmd.IsSet("limit") {
		limit = cmd.Int("limit")
	}
	if limit < 0 {
		return 0, fmt.Errorf("%w: --limit must not be negative", shared.ErrInvalidFlag)
	}
	return limit, nil
}

// writeMetrics writes the run's metrics to the configured textfile. Failures are logged.
func (r *Runner) writeMetrics(reg *metrics.Registry) {
	path := r.config.Metrics.Textfile
	if path == "" || reg == nil {
		return
	}
	if err := reg.WriteTextfile(path); err != nil {
		r.logger.Warn("failed to write metrics textfile", "path", path, "error", err)
		return
	}
	r.logger.Debug("metrics written", "path", path)
}
