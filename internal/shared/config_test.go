package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./chartx.db" {
			t.Errorf("expected database path ./chartx.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}

		if config.Pipeline.Limit != 30 {
			t.Errorf("expected pipeline limit 30, got %d", config.Pipeline.Limit)
		}

		if config.Assembler.BatchSize != 100 {
			t.Errorf("expected batch size 100, got %d", config.Assembler.BatchSize)
		}

		if config.Extract.SampleFallback {
			t.Error("expected sample fallback to be disabled by default")
		}

		if config.Credentials.Spotify.ClientID != "your_spotify_client_id" {
			t.Errorf("expected spotify client_id your_spotify_client_id, got %s", config.Credentials.Spotify.ClientID)
		}

		if err := config.Validate(); err != nil {
			t.Errorf("default config should validate: %v", err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "nested", "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Database.Path != defaultConfig.Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[database]
path = "/custom/path.db"

[server]
host = "0.0.0.0"
port = 8080

[credentials.spotify]
client_id = "test_client_id"
client_secret = "test_secret"
redirect_uri = "http://localhost:3000/callback"

[resolver]
workers = 4

[pipeline]
timeout = "2m"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Path != "/custom/path.db" {
			t.Errorf("expected database path /custom/path.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 8080 {
			t.Errorf("expected server port 8080, got %d", config.Server.Port)
		}

		if config.Resolver.Workers != 4 {
			t.Errorf("expected 4 workers, got %d", config.Resolver.Workers)
		}

		if config.Resolver.SearchLimit != 10 {
			t.Errorf("expected unset search limit to keep default 10, got %d", config.Resolver.SearchLimit)
		}

		timeout, err := config.RunTimeout()
		if err != nil {
			t.Fatalf("unexpected timeout error: %v", err)
		}
		if timeout != 2*time.Minute {
			t.Errorf("expected 2m timeout, got %v", timeout)
		}
	})

	t.Run("LoadConfig missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
		if !errors.Is(err, ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})

	t.Run("Validate", func(t *testing.T) {
		tc := []struct {
			name   string
			mutate func(c *Config)
		}{
			{"batch size too large", func(c *Config) { c.Assembler.BatchSize = 101 }},
			{"too many workers", func(c *Config) { c.Resolver.Workers = 9 }},
			{"negative limit", func(c *Config) { c.Pipeline.Limit = -1 }},
			{"bad timeout", func(c *Config) { c.Pipeline.Timeout = "soon" }},
			{"bad retry delay", func(c *Config) { c.Resolver.Retry.BaseDelay = "fast" }},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				c := DefaultConfig()
				tt.mutate(c)
				if err := c.Validate(); !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("expected ErrInvalidConfig, got %v", err)
				}
			})
		}
	})

	t.Run("SaveConfig round trips token", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		config := DefaultConfig()
		expiry := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		config.Credentials.Spotify.SetToken(&oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: expiry})

		if err := SaveConfig(path, config); err != nil {
			t.Fatalf("failed to save config: %v", err)
		}

		loaded, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("failed to load saved config: %v", err)
		}

		tok := loaded.Credentials.Spotify.Token()
		if tok == nil {
			t.Fatal("expected token to be restored")
		}
		if tok.RefreshToken != "r" || tok.AccessToken != "a" || !tok.Expiry.Equal(expiry) {
			t.Errorf("unexpected token after round trip: %+v", tok)
		}
	})

	t.Run("SetToken keeps refresh token", func(t *testing.T) {
		s := SpotifyConfig{RefreshToken: "keep"}
		s.SetToken(&oauth2.Token{AccessToken: "new"})
		if s.RefreshToken != "keep" {
			t.Errorf("expected refresh token to be kept, got %q", s.RefreshToken)
		}
	})
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvClientID, "env-id")
	t.Setenv(EnvClientSecret, "")

	config := DefaultConfig()
	config.ApplyEnv()

	if config.Credentials.Spotify.ClientID != "env-id" {
		t.Errorf("expected env client id, got %s", config.Credentials.Spotify.ClientID)
	}
	if config.Credentials.Spotify.ClientSecret != "your_spotify_client_secret" {
		t.Errorf("empty env var should not override, got %s", config.Credentials.Spotify.ClientSecret)
	}
}

func TestLoadEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("SPOTIFY_REDIRECT_URI=http://127.0.0.1:9999/callback\n"), 0644); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}
	t.Setenv(EnvRedirectURI, "")
	os.Unsetenv(EnvRedirectURI)

	if err := LoadEnv(path, filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := os.Getenv(EnvRedirectURI); got != "http://127.0.0.1:9999/callback" {
		t.Errorf("expected redirect from .env, got %q", got)
	}
}
