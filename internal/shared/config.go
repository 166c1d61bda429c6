package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"golang.org/x/oauth2"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Extract     ExtractConfig     `toml:"extract"`
	Resolver    ResolverConfig    `toml:"resolver"`
	Assembler   AssemblerConfig   `toml:"assembler"`
	Pipeline    PipelineConfig    `toml:"pipeline"`
	Audit       AuditConfig       `toml:"audit"`
	Metrics     MetricsConfig     `toml:"metrics"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials and the persisted OAuth token.
type SpotifyConfig struct {
	ClientID     string    `toml:"client_id"`
	ClientSecret string    `toml:"client_secret"`
	RedirectURI  string    `toml:"redirect_uri"`
	AccessToken  string    `toml:"access_token"`
	RefreshToken string    `toml:"refresh_token"`
	TokenExpiry  time.Time `toml:"token_expiry"`
}

// Token returns the stored token, or nil when no refresh token has been saved.
func (s SpotifyConfig) Token() *oauth2.Token {
	if s.RefreshToken == "" {
		return nil
	}
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       s.TokenExpiry,
	}
}

// SetToken stores t, keeping the existing refresh token when t does not carry one.
func (s *SpotifyConfig) SetToken(t *oauth2.Token) {
	if t == nil {
		return
	}
	s.AccessToken = t.AccessToken
	if t.RefreshToken != "" {
		s.RefreshToken = t.RefreshToken
	}
	s.TokenExpiry = t.Expiry
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains settings for the local OAuth callback server.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// ExtractConfig controls chart fetching and extraction.
type ExtractConfig struct {
	DebugDir       string  `toml:"debug_dir"`
	SampleFallback bool    `toml:"sample_fallback"`
	RateLimit      float64 `toml:"rate_limit"`
	UserAgent      string  `toml:"user_agent"`
	Timeout        string  `toml:"timeout"`
}

// ResolverConfig controls catalog search.
type ResolverConfig struct {
	SearchLimit int         `toml:"search_limit"`
	Workers     int         `toml:"workers"`
	RateLimit   float64     `toml:"rate_limit"`
	UseCache    bool        `toml:"use_cache"`
	Retry       RetryConfig `toml:"retry"`
}

// AssemblerConfig controls playlist creation and track insertion.
type AssemblerConfig struct {
	BatchSize int         `toml:"batch_size"`
	Public    bool        `toml:"public"`
	Retry     RetryConfig `toml:"retry"`
}

// RetryConfig is the TOML form of a [RetryPolicy].
type RetryConfig struct {
	MaxAttempts int    `toml:"max_attempts"`
	BaseDelay   string `toml:"base_delay"`
	MaxDelay    string `toml:"max_delay"`
	Jitter      bool   `toml:"jitter"`
}

// Policy converts the config into a [RetryPolicy], falling back to [DefaultRetryPolicy] for unset fields.
func (r RetryConfig) Policy() (RetryPolicy, error) {
	p := DefaultRetryPolicy()
	if r.MaxAttempts > 0 {
		p.MaxAttempts = r.MaxAttempts
	}
	p.Jitter = r.Jitter

	var err error
	if p.BaseDelay, err = parseDuration(r.BaseDelay, p.BaseDelay); err != nil {
		return p, err
	}
	if p.MaxDelay, err = parseDuration(r.MaxDelay, p.MaxDelay); err != nil {
		return p, err
	}
	return p, nil
}

// PipelineConfig controls a whole run.
type PipelineConfig struct {
	Limit   int    `toml:"limit"`
	Timeout string `toml:"timeout"`
}

// AuditConfig controls where resolution audits are written.
type AuditConfig struct {
	Dir string `toml:"dir"`
}

// MetricsConfig controls the Prometheus textfile written after each run.
type MetricsConfig struct {
	Textfile string `toml:"textfile"`
}

// RunTimeout parses the pipeline timeout. Zero means no timeout.
func (c *Config) RunTimeout() (time.Duration, error) {
	return parseDuration(c.Pipeline.Timeout, 0)
}

// FetchTimeout parses the chart fetch timeout.
func (c *Config) FetchTimeout() (time.Duration, error) {
	return parseDuration(c.Extract.Timeout, 30*time.Second)
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	if c.Assembler.BatchSize < 0 || c.Assembler.BatchSize > 100 {
		return fmt.Errorf("%w: assembler.batch_size must be between 1 and 100, got %d", ErrInvalidConfig, c.Assembler.BatchSize)
	}
	if c.Resolver.Workers < 0 || c.Resolver.Workers > 8 {
		return fmt.Errorf("%w: resolver.workers must be between 1 and 8, got %d", ErrInvalidConfig, c.Resolver.Workers)
	}
	if c.Pipeline.Limit < 0 {
		return fmt.Errorf("%w: pipeline.limit must not be negative", ErrInvalidConfig)
	}
	if _, err := c.RunTimeout(); err != nil {
		return err
	}
	if _, err := c.FetchTimeout(); err != nil {
		return err
	}
	if _, err := c.Resolver.Retry.Policy(); err != nil {
		return err
	}
	if _, err := c.Assembler.Retry.Policy(); err != nil {
		return err
	}
	return nil
}

func parseDuration(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: bad duration %q: %v", ErrInvalidConfig, s, err)
	}
	return d, nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values absent from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig writes config back to path. Used to persist OAuth tokens.
func SaveConfig(path string, config *Config) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// Environment variables that override credentials from the config file.
const (
	EnvClientID     = "SPOTIFY_CLIENT_ID"
	EnvClientSecret = "SPOTIFY_CLIENT_SECRET"
	EnvRedirectURI  = "SPOTIFY_REDIRECT_URI"
	EnvRefreshToken = "SPOTIFY_REFRESH_TOKEN"
)

// LoadEnv loads the given .env files into the process environment without overriding variables already set.
// Missing files are ignored.
func LoadEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overlays SPOTIFY_* environment variables onto the config credentials.
func (c *Config) ApplyEnv() {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.Credentials.Spotify.ClientID, EnvClientID)
	set(&c.Credentials.Spotify.ClientSecret, EnvClientSecret)
	set(&c.Credentials.Spotify.RedirectURI, EnvRedirectURI)
	set(&c.Credentials.Spotify.RefreshToken, EnvRefreshToken)
}
