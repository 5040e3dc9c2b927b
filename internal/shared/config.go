package shared

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Fixture     FixtureConfig     `toml:"fixture"`
	Storage     StorageConfig     `toml:"storage"`
	Database    DatabaseConfig    `toml:"database"`
	Redis       RedisConfig       `toml:"redis"`
	Server      ServerConfig      `toml:"server"`
	Sync        SyncConfig        `toml:"sync"`
	Matching    MatchingConfig    `toml:"matching"`
	Log         LogConfig         `toml:"log"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
	Deezer  DeezerConfig  `toml:"deezer"`
}

// SpotifyConfig contains Spotify API credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri" validate:"omitempty,url"`
}

// DeezerConfig contains Deezer application credentials.
type DeezerConfig struct {
	AppID       string `toml:"app_id"`
	Secret      string `toml:"secret"`
	RedirectURI string `toml:"redirect_uri" validate:"omitempty,url"`
	Perms       string `toml:"perms"`
}

// FixtureConfig points the offline fixture provider at a JSON catalog.
type FixtureConfig struct {
	Path string `toml:"path"`
}

// StorageConfig selects the key/value backend for persisted tokens.
type StorageConfig struct {
	Driver string `toml:"driver" validate:"oneof=sqlite redis"`
	Key    string `toml:"key" validate:"required"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path" validate:"required"`
	MaxOpenConns int    `toml:"max_open_conns" validate:"gte=0"`
	MaxIdleConns int    `toml:"max_idle_conns" validate:"gte=0"`
}

// RedisConfig contains Redis connection settings.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db" validate:"gte=0"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host         string   `toml:"host" validate:"required"`
	Port         int      `toml:"port" validate:"gte=0,lte=65535"`
	LoginTimeout Duration `toml:"login_timeout"`
}

// SyncConfig tunes the sync engine.
type SyncConfig struct {
	CallTimeout     Duration `toml:"call_timeout"`
	MaxAttempts     int      `toml:"max_attempts" validate:"gte=1"`
	Backoff         Duration `toml:"backoff"`
	MaxBackoff      Duration `toml:"max_backoff"`
	CreatePlaylists bool     `toml:"create_playlists"`
	CreateTracks    bool     `toml:"create_tracks"`
}

// MatchingConfig tunes song matching.
type MatchingConfig struct {
	Fuzzy         bool    `toml:"fuzzy"`
	MinSimilarity float64 `toml:"min_similarity" validate:"gte=0,lte=1"`
	StripEditions bool    `toml:"strip_editions"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level" validate:"omitempty,oneof=debug info warn error fatal"`
}

// Duration is a [time.Duration] written as a string ("15s") in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration %q: %w", ErrInvalidConfig, text, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Addr returns the host:port the local server listens on.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults. Secrets may be supplied
// through TUNEBRIDGE_SPOTIFY_CLIENT_SECRET and TUNEBRIDGE_DEEZER_SECRET.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read config file: %w", ErrMissingConfig, err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %w", ErrInvalidConfig, err)
	}

	applyEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks field constraints declared in struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// SaveConfig writes the configuration to path as TOML.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
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

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func applyEnv(c *Config) {
	if v := os.Getenv("TUNEBRIDGE_SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Credentials.Spotify.ClientSecret = v
	}
	if v := os.Getenv("TUNEBRIDGE_DEEZER_SECRET"); v != "" {
		c.Credentials.Deezer.Secret = v
	}
	if v := os.Getenv("TUNEBRIDGE_REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
}
