package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/desertthunder/chartx/internal/charts"
	"github.com/desertthunder/chartx/internal/formatter"
	"github.com/desertthunder/chartx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Extract fetches a chart and prints its entries without searching Spotify.
func (r *Runner) Extract(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	src, param, err := r.chartArgs(cmd)
	if err != nil {
		return err
	}

	limit, err := r.limit(cmd)
	if err != nil {
		return err
	}

	fetcher, err := r.chartFetcher()
	if err != nil {
		return err
	}

	engine := tasks.NewPlaylistEngine(tasks.PipelineOpts{
		Fetcher:   fetcher,
		Extractor: r.extractor(cmd.Bool("sample-fallback") || r.config.Extract.SampleFallback),
		Limit:     limit,
		Logger:    r.logger,
	})

	extraction, err := engine.Extract(ctx, nil, src, param)
	if err != nil {
		return err
	}

	title := fmt.Sprintf("%s - %s", src.PlaylistName(param), r.now().Format("2006-01-02"))
	data, err := formatter.Entries(format, title, extraction.Entries)
	if err != nil {
		return err
	}
	if err := r.writeBytes(data); err != nil {
		return err
	}

	r.logger.Info("chart extracted", "source", src.Tag, "strategy", extraction.Strategy, "entries", len(extraction.Entries), "dropped", extraction.Dropped)

	out := cmd.String("output")
	if out == "" && !cmd.Bool("save") {
		return nil
	}

	path, err := formatter.WriteEntries(out, format, title, extraction.Entries)
	if err != nil {
		return err
	}
	r.logger.Info("track list saved", "path", path)
	return nil
}

// Sources lists the supported charts with their default parameter and URL.
func (r *Runner) Sources(ctx context.Context, cmd *cli.Command) error {
	w := tabwriter.NewWriter(r.output, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SOURCE\tNAME\tDEFAULT\tURL")
	for _, src := range charts.Sources() {
		param := charts.DefaultParam(src, r.now())
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", src.Tag, src.Name, param, src.URL(param))
	}
	return w.Flush()
}
