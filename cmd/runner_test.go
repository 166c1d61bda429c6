package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/chartx/internal/charts"
	"github.com/desertthunder/chartx/internal/models"
	"github.com/desertthunder/chartx/internal/normalize"
	"github.com/desertthunder/chartx/internal/shared"
	"github.com/desertthunder/chartx/internal/tasks"
	tu "github.com/desertthunder/chartx/internal/testing"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const traxsourcePage = `<html><body>
<div class="trk-row"><div class="title"><a href="/t/1">Beat Of An Era</a></div><div class="artists"><a class="com-artists">Jimpster</a></div></div>
<div class="trk-row"><div class="title"><a href="/t/2">Ghost Track</a></div><div class="artists"><a class="com-artists">Nobody</a></div></div>
</body></html>`

type stubFetcher struct {
	body  string
	err   error
	calls int
}

func (s *stubFetcher) Fetch(ctx context.Context, src charts.Source, param string) (charts.Document, error) {
	s.calls++
	if s.err != nil {
		return charts.Document{}, s.err
	}
	return charts.Document{Source: src.Tag, URL: src.URL(param), Body: []byte(s.body)}, nil
}

type fakePrompter struct {
	selected  string
	input     string
	confirm   bool
	selects   int
	inputs    int
	confirms  int
	promptErr error
}

func (f *fakePrompter) Select(title string, options []string, value *string) error {
	f.selects++
	*value = f.selected
	return f.promptErr
}

func (f *fakePrompter) Input(title string, value *string) error {
	f.inputs++
	if f.input != "" {
		*value = f.input
	}
	return f.promptErr
}

func (f *fakePrompter) Confirm(title string) (bool, error) {
	f.confirms++
	return f.confirm, f.promptErr
}

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

// testConfig returns a config with audit, database and retries pointed at a temp dir.
func testConfig(t *testing.T) *shared.Config {
	t.Helper()
	dir := t.TempDir()

	config := shared.DefaultConfig()
	config.Audit.Dir = dir
	config.Database.Path = filepath.Join(dir, "chartx.db")
	config.Extract.DebugDir = ""
	config.Resolver.Retry = shared.RetryConfig{MaxAttempts: 1, BaseDelay: "1ms", MaxDelay: "1ms"}
	config.Assembler.Retry = shared.RetryConfig{MaxAttempts: 1, BaseDelay: "1ms", MaxDelay: "1ms"}
	config.Resolver.RateLimit = 0
	return config
}

// answerFirstQuery registers an exact candidate for the first search query of title and artist.
func answerFirstQuery(catalog *tu.FakeCatalog, id, title, artist string) {
	n := normalize.Entry(models.ChartEntry{RawTitle: title, RawArtist: artist})
	catalog.Answer(tasks.SearchQueries(n)[0], models.MatchCandidate{ExternalID: id, Title: title, Artist: artist, Popularity: 50})
}

func runApp(r *Runner, args ...string) error {
	app := &cli.Command{Name: "chartx", Commands: r.register()}
	return app.Run(context.Background(), append([]string{"chartx"}, args...))
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}
			catalog := tu.NewFakeCatalog()
			writer := tu.NewFakePlaylistWriter()

			runner := NewRunner(RunnerOpts{
				Config:     config,
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
				Catalog:    catalog,
				Writer:     writer,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.catalog != catalog {
				t.Error("expected catalog to be set")
			}
			if runner.writer != writer {
				t.Error("expected writer to be set")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Config: nil})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Logger: nil})

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: nil})

			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("with nil httpClient uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{HTTPClient: nil})

			if runner.httpClient != http.DefaultClient {
				t.Error("expected httpClient to default to http.DefaultClient")
			}
		})

		t.Run("with configPath sets field", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{ConfigPath: "/test/path/config.toml"})

			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			data := map[string]string{"key": "value"}
			if err := runner.writeJSON(data, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "hello world" {
				t.Errorf("expected 'hello world', got %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		want := []string{"build", "extract", "sources", "auth", "setup", "history"}
		if len(commands) != len(want) {
			t.Fatalf("expected %d commands, got %d", len(want), len(commands))
		}
		for i, cmd := range commands {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			if cmd.Name != want[i] {
				t.Errorf("expected command %s at index %d, got %s", want[i], i, cmd.Name)
			}
		}
	})

	t.Run("saveTokens", func(t *testing.T) {
		t.Run("saves tokens successfully", func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "config.toml")

			config := shared.DefaultConfig()
			config.Credentials.Spotify.ClientID = "test_id"
			config.Credentials.Spotify.ClientSecret = "test_secret"
			if err := shared.SaveConfig(configPath, config); err != nil {
				t.Fatalf("failed to create test config: %v", err)
			}

			runner := NewRunner(RunnerOpts{Config: config, ConfigPath: configPath})

			token := &oauth2.Token{AccessToken: "new_access_token", RefreshToken: "new_refresh_token"}
			if err := runner.saveTokens(token); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			loadedConfig, err := shared.LoadConfig(configPath)
			if err != nil {
				t.Fatalf("failed to reload config: %v", err)
			}
			if loadedConfig.Credentials.Spotify.AccessToken != "new_access_token" {
				t.Errorf("expected access token to be updated, got %s", loadedConfig.Credentials.Spotify.AccessToken)
			}
			if loadedConfig.Credentials.Spotify.RefreshToken != "new_refresh_token" {
				t.Errorf("expected refresh token to be updated, got %s", loadedConfig.Credentials.Spotify.RefreshToken)
			}
			if loadedConfig.Credentials.Spotify.ClientID != "test_id" {
				t.Errorf("expected client id to survive, got %s", loadedConfig.Credentials.Spotify.ClientID)
			}
		})

		t.Run("keeps refresh token when refresh omits it", func(t *testing.T) {
			config := shared.DefaultConfig()
			config.Credentials.Spotify.RefreshToken = "original_refresh"
			runner := NewRunner(RunnerOpts{Config: config})

			if err := runner.saveTokens(&oauth2.Token{AccessToken: "rotated"}); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if config.Credentials.Spotify.RefreshToken != "original_refresh" {
				t.Errorf("expected refresh token to be kept, got %s", config.Credentials.Spotify.RefreshToken)
			}
		})

		t.Run("handles nil config error", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{ConfigPath: "/tmp/test.toml"})
			runner.config = nil

			err := runner.saveTokens(&oauth2.Token{AccessToken: "test"})
			if err == nil || !strings.Contains(err.Error(), "config is nil") {
				t.Errorf("expected nil config error, got %v", err)
			}
		})

		t.Run("handles empty configPath", func(t *testing.T) {
			config := shared.DefaultConfig()
			runner := NewRunner(RunnerOpts{Config: config})

			if err := runner.saveTokens(&oauth2.Token{AccessToken: "new_token", RefreshToken: "new_refresh"}); err != nil {
				t.Fatalf("expected no error with empty path, got %v", err)
			}
			if config.Credentials.Spotify.AccessToken != "new_token" {
				t.Error("expected config to be updated in memory")
			}
		})

		t.Run("handles SaveConfig failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				Config:     shared.DefaultConfig(),
				ConfigPath: filepath.Join(t.TempDir(), "missing", "dir", "config.toml"),
			})

			err := runner.saveTokens(&oauth2.Token{AccessToken: "test"})
			if err == nil || !strings.Contains(err.Error(), "failed to save config") {
				t.Errorf("expected save config error, got %v", err)
			}
		})

		t.Run("handles nil token", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Config: shared.DefaultConfig()})

			err := runner.saveTokens(nil)
			if err == nil || !strings.Contains(err.Error(), "token cannot be nil") {
				t.Errorf("expected nil token error, got %v", err)
			}
		})
	})

	t.Run("before", func(t *testing.T) {
		t.Run("loads config file", func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "config.toml")
			config := shared.DefaultConfig()
			config.Pipeline.Limit = 7
			if err := shared.SaveConfig(configPath, config); err != nil {
				t.Fatalf("failed to write config: %v", err)
			}

			runner := NewRunner(RunnerOpts{ConfigPath: configPath, Logger: quietLogger()})
			if _, err := runner.before(context.Background(), &cli.Command{}); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if runner.config.Pipeline.Limit != 7 {
				t.Errorf("expected limit 7, got %d", runner.config.Pipeline.Limit)
			}
		})

		t.Run("missing file uses defaults and environment", func(t *testing.T) {
			t.Setenv(shared.EnvClientID, "env_client")

			runner := NewRunner(RunnerOpts{ConfigPath: filepath.Join(t.TempDir(), "nope.toml"), Logger: quietLogger()})
			if _, err := runner.before(context.Background(), &cli.Command{}); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if runner.config.Credentials.Spotify.ClientID != "env_client" {
				t.Errorf("expected env client id, got %s", runner.config.Credentials.Spotify.ClientID)
			}
		})

		t.Run("invalid config fails", func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "config.toml")
			config := shared.DefaultConfig()
			config.Resolver.Workers = 99
			if err := shared.SaveConfig(configPath, config); err != nil {
				t.Fatalf("failed to write config: %v", err)
			}

			runner := NewRunner(RunnerOpts{ConfigPath: configPath, Logger: quietLogger()})
			if _, err := runner.before(context.Background(), &cli.Command{}); !errors.Is(err, shared.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	})

	t.Run("clients", func(t *testing.T) {
		t.Run("requires authorization", func(t *testing.T) {
			config := shared.DefaultConfig()
			config.Credentials.Spotify.ClientID = "id"
			config.Credentials.Spotify.ClientSecret = "secret"
			config.Credentials.Spotify.RefreshToken = ""

			runner := NewRunner(RunnerOpts{Config: config, Logger: quietLogger()})
			if _, _, err := runner.clients(); !errors.Is(err, shared.ErrNotAuthenticated) {
				t.Errorf("expected ErrNotAuthenticated, got %v", err)
			}
		})

		t.Run("missing credentials", func(t *testing.T) {
			config := shared.DefaultConfig()
			config.Credentials.Spotify.ClientID = ""

			runner := NewRunner(RunnerOpts{Config: config, Logger: quietLogger()})
			if _, _, err := runner.clients(); !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("stored refresh token", func(t *testing.T) {
			config := shared.DefaultConfig()
			config.Credentials.Spotify.ClientID = "id"
			config.Credentials.Spotify.ClientSecret = "secret"
			config.Credentials.Spotify.RefreshToken = "refresh"

			runner := NewRunner(RunnerOpts{Config: config, Logger: quietLogger()})
			catalog, writer, err := runner.clients()
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if catalog == nil || writer == nil {
				t.Error("expected catalog and writer")
			}
		})
	})
}

func TestBuild(t *testing.T) {
	newBuildRunner := func(t *testing.T, fetcher *stubFetcher, catalog *tu.FakeCatalog, writer *tu.FakePlaylistWriter) (*Runner, *bytes.Buffer) {
		t.Helper()
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{
			Config:  testConfig(t),
			Catalog: catalog,
			Writer:  writer,
			Fetcher: fetcher,
			Logger:  quietLogger(),
			Output:  output,
		})
		return runner, output
	}

	t.Run("creates playlist and records run", func(t *testing.T) {
		catalog := tu.NewFakeCatalog()
		answerFirstQuery(catalog, "sp1", "Beat Of An Era", "Jimpster")
		writer := tu.NewFakePlaylistWriter()
		runner, output := newBuildRunner(t, &stubFetcher{body: traxsourcePage}, catalog, writer)
		runner.config.Metrics.Textfile = filepath.Join(runner.config.Audit.Dir, "chartx.prom")

		if err := runApp(runner, "build", "traxsource", "--name", "Deep House Test"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if writer.Creates != 1 {
			t.Errorf("expected 1 playlist created, got %d", writer.Creates)
		}
		if ids := writer.AddedIDs(); len(ids) != 1 || ids[0] != "sp1" {
			t.Errorf("expected [sp1] added, got %v", ids)
		}

		out := output.String()
		for _, want := range []string{"Playlist created: Deep House Test", "Added:   1/2 (skipped 1)", "#2 Nobody - Ghost Track (UNRESOLVED)"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected output to contain %q, got:\n%s", want, out)
			}
		}

		matches, _ := filepath.Glob(filepath.Join(runner.config.Audit.Dir, "traxsource_*.txt"))
		if len(matches) != 1 {
			t.Errorf("expected one audit file, got %v", matches)
		}
		tu.AssertFileExists(t, runner.config.Metrics.Textfile)

		output.Reset()
		if err := runApp(runner, "history"); err != nil {
			t.Fatalf("history failed: %v", err)
		}
		if !strings.Contains(output.String(), "Deep House Test") || !strings.Contains(output.String(), "completed") {
			t.Errorf("expected run in history, got:\n%s", output.String())
		}
	})

	t.Run("no matches exits cleanly", func(t *testing.T) {
		writer := tu.NewFakePlaylistWriter()
		runner, output := newBuildRunner(t, &stubFetcher{body: traxsourcePage}, tu.NewFakeCatalog(), writer)

		if err := runApp(runner, "build", "traxsource"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if writer.Creates != 0 {
			t.Errorf("expected no playlist, got %d creates", writer.Creates)
		}
		if !strings.Contains(output.String(), "No tracks matched") {
			t.Errorf("expected no match summary, got:\n%s", output.String())
		}
	})

	t.Run("auth failure aborts", func(t *testing.T) {
		catalog := tu.NewFakeCatalog().FailAll(&shared.AuthError{StatusCode: 401})
		writer := tu.NewFakePlaylistWriter()
		runner, output := newBuildRunner(t, &stubFetcher{body: traxsourcePage}, catalog, writer)

		err := runApp(runner, "build", "traxsource")
		if !shared.IsAuth(err) {
			t.Fatalf("expected auth error, got %v", err)
		}
		if writer.Creates != 0 {
			t.Errorf("expected no CreatePlaylist call, got %d", writer.Creates)
		}
		if !strings.Contains(output.String(), "Build failed") {
			t.Errorf("expected failure summary, got:\n%s", output.String())
		}
	})

	t.Run("extraction failure", func(t *testing.T) {
		runner, _ := newBuildRunner(t, &stubFetcher{body: "<html></html>"}, tu.NewFakeCatalog(), tu.NewFakePlaylistWriter())

		if err := runApp(runner, "build", "billboard", "--param", "2025-03-08"); !errors.Is(err, shared.ErrExtraction) {
			t.Errorf("expected ErrExtraction, got %v", err)
		}
	})

	t.Run("sample fallback", func(t *testing.T) {
		writer := tu.NewFakePlaylistWriter()
		catalog := tu.NewFakeCatalog()
		answerFirstQuery(catalog, "sp1", "Beat Of An Era", "Jimpster")
		runner, _ := newBuildRunner(t, &stubFetcher{body: "<html></html>"}, catalog, writer)

		if err := runApp(runner, "build", "traxsource", "--sample-fallback", "--limit", "3"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(catalog.Queries()) == 0 {
			t.Error("expected sample entries to be searched")
		}
	})

	t.Run("missing source", func(t *testing.T) {
		runner, _ := newBuildRunner(t, &stubFetcher{}, tu.NewFakeCatalog(), tu.NewFakePlaylistWriter())

		if err := runApp(runner, "build"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("unknown source", func(t *testing.T) {
		runner, _ := newBuildRunner(t, &stubFetcher{}, tu.NewFakeCatalog(), tu.NewFakePlaylistWriter())

		if err := runApp(runner, "build", "napster"); !errors.Is(err, shared.ErrUnknownSource) {
			t.Errorf("expected ErrUnknownSource, got %v", err)
		}
	})

	t.Run("invalid workers", func(t *testing.T) {
		for _, workers := range []string{"0", "9", "20"} {
			t.Run(workers, func(t *testing.T) {
				fetcher := &stubFetcher{body: traxsourcePage}
				runner, _ := newBuildRunner(t, fetcher, tu.NewFakeCatalog(), tu.NewFakePlaylistWriter())

				if err := runApp(runner, "build", "traxsource", "--workers", workers); !errors.Is(err, shared.ErrInvalidFlag) {
					t.Errorf("expected ErrInvalidFlag, got %v", err)
				}
				if fetcher.calls != 0 {
					t.Errorf("expected no fetch, got %d", fetcher.calls)
				}
			})
		}
	})

	t.Run("interactive prompts and cancel", func(t *testing.T) {
		fetcher := &stubFetcher{body: traxsourcePage}
		writer := tu.NewFakePlaylistWriter()
		runner, output := newBuildRunner(t, fetcher, tu.NewFakeCatalog(), writer)
		prompter := &fakePrompter{selected: "traxsource", confirm: false}
		runner.interactive = true
		runner.prompter = prompter

		if err := runApp(runner, "build"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if prompter.selects != 1 || prompter.confirms != 1 {
			t.Errorf("expected source and confirmation prompts, got %d selects, %d confirms", prompter.selects, prompter.confirms)
		}
		if prompter.inputs != 2 {
			t.Errorf("expected param and name prompts, got %d", prompter.inputs)
		}
		if fetcher.calls != 0 || writer.Creates != 0 {
			t.Error("expected nothing to run after cancelling")
		}
		if !strings.Contains(output.String(), "Cancelled") {
			t.Errorf("expected cancellation message, got %q", output.String())
		}
	})

	t.Run("interactive with yes skips confirmation", func(t *testing.T) {
		catalog := tu.NewFakeCatalog()
		answerFirstQuery(catalog, "sp1", "Beat Of An Era", "Jimpster")
		writer := tu.NewFakePlaylistWriter()
		runner, _ := newBuildRunner(t, &stubFetcher{body: traxsourcePage}, catalog, writer)
		prompter := &fakePrompter{}
		runner.interactive = true
		runner.prompter = prompter

		if err := runApp(runner, "build", "traxsource", "--param", "", "--name", "N", "--yes"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if prompter.confirms != 0 {
			t.Errorf("expected no confirmation prompt, got %d", prompter.confirms)
		}
		if writer.Creates != 1 {
			t.Errorf("expected playlist to be created, got %d", writer.Creates)
		}
	})
}

func TestExtract(t *testing.T) {
	t.Run("prints entries", func(t *testing.T) {
		output := &bytes.Buffer{}
		fetcher := &stubFetcher{body: traxsourcePage}
		runner := NewRunner(RunnerOpts{Config: testConfig(t), Fetcher: fetcher, Logger: quietLogger(), Output: output})

		if err := runApp(runner, "extract", "traxsource"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		out := output.String()
		if !strings.Contains(out, "1. #1: Beat Of An Era - Jimpster") || !strings.Contains(out, "2. #2: Ghost Track - Nobody") {
			t.Errorf("unexpected output:\n%s", out)
		}
		if fetcher.calls != 1 {
			t.Errorf("expected 1 fetch, got %d", fetcher.calls)
		}
	})

	t.Run("json with limit and output file", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Config: testConfig(t), Fetcher: &stubFetcher{body: traxsourcePage}, Logger: quietLogger(), Output: output})
		path := filepath.Join(t.TempDir(), "chart.json")

		if err := runApp(runner, "extract", "traxsource", "--format", "json", "--limit", "1", "--output", path); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if strings.Contains(output.String(), "Ghost Track") {
			t.Errorf("expected limit to drop the second entry, got:\n%s", output.String())
		}
		tu.AssertFileExists(t, path)
		if content := tu.MustReadFile(t, path); !strings.Contains(content, `"artist": "Jimpster"`) {
			t.Errorf("expected saved JSON, got:\n%s", content)
		}
	})

	t.Run("bad format", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{Config: testConfig(t), Fetcher: &stubFetcher{}, Logger: quietLogger(), Output: &bytes.Buffer{}})

		if err := runApp(runner, "extract", "traxsource", "--format", "xml"); !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
	})

	t.Run("fetch failure", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{Config: testConfig(t), Fetcher: &stubFetcher{err: shared.ErrFetch}, Logger: quietLogger(), Output: &bytes.Buffer{}})

		if err := runApp(runner, "extract", "soundcloud"); !errors.Is(err, shared.ErrFetch) {
			t.Errorf("expected ErrFetch, got %v", err)
		}
	})
}

func TestSources(t *testing.T) {
	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{Output: output, Logger: quietLogger()})

	if err := runApp(runner, "sources"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	for _, tag := range charts.Tags() {
		if !strings.Contains(output.String(), tag) {
			t.Errorf("expected %s in output, got:\n%s", tag, output.String())
		}
	}
	if !strings.Contains(output.String(), "danceedm") {
		t.Errorf("expected default soundcloud genre, got:\n%s", output.String())
	}
}

func TestSetup(t *testing.T) {
	dir := t.TempDir()
	originalDir := tu.MustGetwd(t)
	tu.MustChdir(t, dir)
	defer tu.MustChdir(t, originalDir)

	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{ConfigPath: "config.toml", Logger: quietLogger(), Output: output})

	if err := runApp(runner, "setup"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	tu.AssertFileExists(t, filepath.Join(dir, "config.toml"))
	tu.AssertFileExists(t, filepath.Join(dir, "chartx.db"))
	if !strings.Contains(output.String(), "Config file created") {
		t.Errorf("expected config creation message, got:\n%s", output.String())
	}

	output.Reset()
	if err := runApp(runner, "setup"); err != nil {
		t.Fatalf("expected second setup to succeed, got %v", err)
	}
	if strings.Contains(output.String(), "Config file created") {
		t.Error("expected existing config to be reused")
	}
}

func TestHistory(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Config: testConfig(t), Logger: quietLogger(), Output: output})

		if err := runApp(runner, "history"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "No runs recorded yet") {
			t.Errorf("unexpected output: %q", output.String())
		}
	})

	t.Run("no database configured", func(t *testing.T) {
		config := testConfig(t)
		config.Database.Path = ""
		runner := NewRunner(RunnerOpts{Config: config, Logger: quietLogger(), Output: &bytes.Buffer{}})

		if err := runApp(runner, "history"); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}
