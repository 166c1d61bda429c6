// submodule cmd contains command definitions
package main

import (
	"strings"

	"github.com/desertthunder/chartx/internal/charts"
	"github.com/desertthunder/chartx/internal/formatter"
	"github.com/urfave/cli/v3"
)

func formatUsage() string {
	names := make([]string, len(formatter.Formats))
	for i, f := range formatter.Formats {
		names[i] = string(f)
	}
	return "Output format: " + strings.Join(names, ", ")
}

// buildCommand runs the full chart to playlist pipeline.
func buildCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "build",
		Aliases:   []string{"run"},
		Usage:     "Create a Spotify playlist from a chart",
		ArgsUsage: "<source>",
		Description: "Fetches the chart page for <source> (" + strings.Join(charts.Tags(), ", ") + "), " +
			"resolves every entry against the Spotify catalog and creates a playlist in chart order.",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "source"},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "param",
				Aliases: []string{"p"},
				Usage:   "Chart parameter: date for billboard (YYYY-MM-DD), genre for soundcloud, sub-path for traxsource and applemusic",
			},
			&cli.StringFlag{
				Name:    "name",
				Aliases: []string{"n"},
				Usage:   "Playlist name (defaults to the chart name)",
			},
			&cli.StringFlag{
				Name:  "description",
				Usage: "Playlist description (defaults to the chart description)",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Usage:   "Maximum number of chart entries to resolve, 0 for all (defaults to pipeline.limit)",
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   "Concurrent catalog searches, 1 to 8 (defaults to resolver.workers)",
			},
			&cli.BoolFlag{
				Name:  "sample-fallback",
				Usage: "Use the built-in sample track list when the chart page yields nothing",
			},
			&cli.BoolFlag{
				Name:    "yes",
				Aliases: []string{"y"},
				Usage:   "Skip the confirmation prompt",
			},
		},
		Action: r.Build,
	}
}

// extractCommand prints a chart without touching Spotify.
func extractCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "extract",
		Usage:     "Fetch a chart and print its entries (dry run)",
		ArgsUsage: "<source>",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "source"},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "param",
				Aliases: []string{"p"},
				Usage:   "Chart parameter (see build)",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Usage:   "Maximum number of entries, 0 for all (defaults to pipeline.limit)",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   formatUsage(),
				Value:   "text",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Also save the entries to this file",
			},
			&cli.BoolFlag{
				Name:  "save",
				Usage: "Save the entries to <source>_<date>.<ext>",
			},
			&cli.BoolFlag{
				Name:  "sample-fallback",
				Usage: "Use the built-in sample track list when the chart page yields nothing",
			},
		},
		Action: r.Extract,
	}
}

// sourcesCommand lists the registered charts.
func sourcesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "sources",
		Usage:  "List supported chart sources",
		Action: r.Sources,
	}
}

// authCommand runs the Spotify OAuth flow.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authenticate with Spotify using OAuth2",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "How long to wait for the browser redirect (default 2m)",
			},
			&cli.BoolFlag{
				Name:  "no-browser",
				Usage: "Print the authorization URL instead of opening a browser",
			},
		},
		Action: r.Auth,
	}
}

// setupCommand creates the config file and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create config.toml if missing, initialize the database and run migrations",
		Action: r.Setup,
	}
}

// historyCommand lists stored runs.
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List previous runs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "source",
				Usage: "Only show runs for this source",
			},
			&cli.StringFlag{
				Name:  "status",
				Usage: "Only show runs with this status (completed, no_matches, failed)",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Usage:   "Maximum number of runs",
				Value:   20,
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   formatUsage(),
				Value:   "text",
			},
			&cli.StringFlag{
				Name:  "run",
				Usage: "Show the per-entry resolutions of one run ID",
			},
		},
		Action: r.History,
	}
}
