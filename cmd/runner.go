package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/chartx/internal/audit"
	"github.com/desertthunder/chartx/internal/charts"
	"github.com/desertthunder/chartx/internal/metrics"
	"github.com/desertthunder/chartx/internal/repositories"
	"github.com/desertthunder/chartx/internal/services"
	"github.com/desertthunder/chartx/internal/shared"
	"github.com/desertthunder/chartx/internal/tasks"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	configPath  string
	config      *shared.Config
	catalog     services.Catalog
	writer      services.PlaylistWriter
	fetcher     tasks.DocumentFetcher
	httpClient  *http.Client
	logger      *log.Logger
	output      io.Writer
	prompter    Prompter
	interactive bool
	now         func() time.Time

	mu sync.Mutex
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Catalog, Writer and Fetcher replace the Spotify service and chart fetcher built from config.
type RunnerOpts struct {
	Config      *shared.Config
	ConfigPath  string
	Catalog     services.Catalog
	Writer      services.PlaylistWriter
	Fetcher     tasks.DocumentFetcher
	HTTPClient  *http.Client
	Logger      *log.Logger
	Output      io.Writer
	Prompter    Prompter
	Interactive bool
	Now         func() time.Time
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Prompter == nil {
		opts.Prompter = huhPrompter{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Runner{
		configPath:  opts.ConfigPath,
		config:      opts.Config,
		catalog:     opts.Catalog,
		writer:      opts.Writer,
		fetcher:     opts.Fetcher,
		httpClient:  opts.HTTPClient,
		logger:      opts.Logger,
		output:      opts.Output,
		prompter:    opts.Prompter,
		interactive: opts.Interactive,
		now:         opts.Now,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		buildCommand, extractCommand, sourcesCommand, authCommand, setupCommand, historyCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// before loads the configuration named by --config and applies the global flags.
//
// A missing config file is not an error: defaults plus environment variables are used.
func (r *Runner) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if err := shared.LoadEnv(".env"); err != nil {
		r.logger.Warn("failed to load .env", "error", err)
	}

	if err := shared.LogLevelFromEnv(r.logger); err != nil {
		return ctx, err
	}
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	if path := cmd.String("config"); path != "" {
		r.configPath = path
	}

	config, err := shared.LoadConfig(r.configPath)
	switch {
	case err == nil:
		r.config = config
	case errors.Is(err, shared.ErrMissingConfig):
		r.logger.Debug("config file not found, using defaults", "path", r.configPath)
	default:
		return ctx, err
	}

	r.config.ApplyEnv()
	if err := r.config.Validate(); err != nil {
		return ctx, err
	}

	return ctx, nil
}

// saveTokens stores token in the config and writes it to the config file when one is set.
func (r *Runner) saveTokens(token *oauth2.Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.config == nil {
		return fmt.Errorf("config is nil")
	}
	if token == nil {
		return fmt.Errorf("failed to update spotify configuration: token cannot be nil")
	}

	r.config.Credentials.Spotify.SetToken(token)

	if r.configPath == "" {
		return nil
	}
	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// spotify creates a Spotify service from the configured credentials. Refreshed tokens are saved back to the config file.
func (r *Runner) spotify() (*services.SpotifyService, error) {
	return services.NewSpotifyService(services.SpotifyOpts{
		Credentials: r.config.Credentials.Spotify,
		Public:      r.config.Assembler.Public,
		HTTPClient:  r.httpClient,
		Logger:      shared.WithLogger(r.logger, "service", "spotify"),
		OnToken: func(t *oauth2.Token) {
			if err := r.saveTokens(t); err != nil {
				r.logger.Warn("failed to persist spotify token", "error", err)
			}
		},
	})
}

// clients returns the catalog and playlist writer, building an authenticated Spotify service when none were injected.
func (r *Runner) clients() (services.Catalog, services.PlaylistWriter, error) {
	if r.catalog != nil && r.writer != nil {
		return r.catalog, r.writer, nil
	}

	svc, err := r.spotify()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create Spotify service: %w", err)
	}
	if !svc.Authenticated() {
		return nil, nil, fmt.Errorf("%w: run 'chartx auth' first", shared.ErrNotAuthenticated)
	}
	return svc, svc, nil
}

// chartFetcher returns the injected fetcher or one built from the [extract] config.
func (r *Runner) chartFetcher() (tasks.DocumentFetcher, error) {
	if r.fetcher != nil {
		return r.fetcher, nil
	}

	timeout, err := r.config.FetchTimeout()
	if err != nil {
		return nil, err
	}
	return charts.NewFetcher(charts.FetcherOpts{
		UserAgent: r.config.Extract.UserAgent,
		RateLimit: r.config.Extract.RateLimit,
		Timeout:   timeout,
		Logger:    shared.WithLogger(r.logger, "component", "fetcher"),
	}), nil
}

func (r *Runner) extractor(sampleFallback bool) *charts.Extractor {
	logger := shared.WithLogger(r.logger, "component", "extractor")
	return charts.NewExtractor(charts.ExtractorOpts{
		SampleFallback: sampleFallback,
		Snapshots:      charts.NewSnapshotter(r.config.Extract.DebugDir, logger),
		Logger:         logger,
	})
}

// openDatabase opens and migrates the configured database. Returns nil without error when no path is configured.
func (r *Runner) openDatabase() (*sql.DB, error) {
	if r.config.Database.Path == "" {
		return nil, nil
	}
	return shared.OpenDatabase(r.config.Database)
}

// engineDeps are the pieces of a [tasks.PlaylistEngine] that need cleanup or inspection after a run.
type engineDeps struct {
	engine  *tasks.PlaylistEngine
	metrics *metrics.Registry
	db      *sql.DB
}

func (d *engineDeps) Close() {
	if d.db != nil {
		d.db.Close()
	}
}

type engineOpts struct {
	workers        int
	limit          int
	sampleFallback bool
}

// newEngine wires the pipeline from config. History and the resolution cache are skipped with a warning when the
// database cannot be opened.
func (r *Runner) newEngine(opts engineOpts) (*engineDeps, error) {
	catalog, writer, err := r.clients()
	if err != nil {
		return nil, err
	}

	fetcher, err := r.chartFetcher()
	if err != nil {
		return nil, err
	}

	searchRetry, err := r.config.Resolver.Retry.Policy()
	if err != nil {
		return nil, err
	}
	playlistRetry, err := r.config.Assembler.Retry.Policy()
	if err != nil {
		return nil, err
	}
	timeout, err := r.config.RunTimeout()
	if err != nil {
		return nil, err
	}

	deps := &engineDeps{metrics: metrics.NewRegistry()}

	var store audit.RunStore
	var cache tasks.ResolutionCache
	db, err := r.openDatabase()
	if err != nil {
		r.logger.Warn("run history disabled, database unavailable", "error", err)
	} else if db != nil {
		deps.db = db
		store = repositories.NewRunRepository(db)
		if r.config.Resolver.UseCache {
			cache = repositories.NewResolutionCache(db)
		}
	}

	resolver := tasks.NewResolver(tasks.ResolverOpts{
		Catalog:     catalog,
		SearchLimit: r.config.Resolver.SearchLimit,
		Retry:       searchRetry,
		Cache:       cache,
		Logger:      shared.WithLogger(r.logger, "component", "resolver"),
		Observer:    deps.metrics,
	})

	assembler := tasks.NewAssembler(tasks.AssemblerOpts{
		Writer:    writer,
		BatchSize: r.config.Assembler.BatchSize,
		Retry:     playlistRetry,
		Logger:    shared.WithLogger(r.logger, "component", "assembler"),
		Observer:  deps.metrics,
	})

	deps.engine = tasks.NewPlaylistEngine(tasks.PipelineOpts{
		Fetcher:   fetcher,
		Extractor: r.extractor(opts.sampleFallback),
		Resolver:  resolver,
		Assembler: assembler,
		Recorder:  audit.NewRecorder(r.config.Audit.Dir, store, shared.WithLogger(r.logger, "component", "audit")),
		Workers:   opts.workers,
		RateLimit: r.config.Resolver.RateLimit,
		Limit:     opts.limit,
		Timeout:   timeout,
		Logger:    r.logger,
		Observer:  deps.metrics,
		Now:       r.now,
	})

	return deps, nil
}

// streamProgress prints progress updates until the returned function is called.
func (r *Runner) streamProgress(render func(tasks.ProgressUpdate) string) (chan<- tasks.ProgressUpdate, func()) {
	progress := make(chan tasks.ProgressUpdate, 32)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for update := range progress {
			r.writePlain("%s\n", render(update))
		}
	}()

	return progress, func() {
		close(progress)
		<-done
	}
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writeBytes(data []byte) error {
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
