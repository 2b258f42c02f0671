package shared

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// DefaultPlaylistName is used when neither the flag nor the config names the playlist.
const DefaultPlaylistName = "followed artists: all tracks"

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Build       BuildConfig       `toml:"build"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig holds the public PKCE client settings and the last issued credential.
//
// ExpiresAt is in epoch seconds.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	RedirectURI  string `toml:"redirect_uri"`
	AccessToken  string `toml:"access_token"`
	RefreshToken string `toml:"refresh_token"`
	ExpiresAt    int64  `toml:"expires_at"`
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

// BuildConfig holds defaults for playlist builds. Command flags override them.
type BuildConfig struct {
	PlaylistName      string  `toml:"playlist_name"`
	Public            bool    `toml:"public"`
	Chronological     bool    `toml:"chronological"`
	SinglesOnly       bool    `toml:"singles_only"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	MaxAttempts       int     `toml:"max_attempts"`
	CoverPath         string  `toml:"cover_path"`
}

// HasCredential reports whether a refreshable or unexpired credential is stored.
func (s SpotifyConfig) HasCredential() bool {
	return s.AccessToken != "" || s.RefreshToken != ""
}

// SetCredential replaces the stored credential. Empty values clear it.
func (s *SpotifyConfig) SetCredential(access, refresh string, expiresAt int64) {
	s.AccessToken = access
	s.RefreshToken = refresh
	s.ExpiresAt = expiresAt
}

// ClearCredential removes the stored credential.
func (s *SpotifyConfig) ClearCredential() {
	s.SetCredential("", "", 0)
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	return config, nil
}

// LoadConfigOrDefault loads path when it exists and falls back to [DefaultConfig] otherwise.
func LoadConfigOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return DefaultConfig(), nil
	}
	return LoadConfig(path)
}

// SaveConfig writes config to path as TOML, replacing any existing file.
//
// The file holds a credential so it is written with owner-only permissions.
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

// ApplyEnv loads variables from the given dotenv files (missing files are ignored)
// and lets them override config values.
//
// Recognized variables: SPOTIFY_CLIENT_ID, SPOTIFY_REDIRECT_URI, FANLIST_DATABASE_PATH,
// FANLIST_REQUESTS_PER_SECOND.
func ApplyEnv(config *Config, files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("%w: failed to load %s: %v", ErrInvalidConfig, f, err)
		}
	}

	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		config.Credentials.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_REDIRECT_URI"); v != "" {
		config.Credentials.Spotify.RedirectURI = v
	}
	if v := os.Getenv("FANLIST_DATABASE_PATH"); v != "" {
		config.Database.Path = v
	}
	if v := os.Getenv("FANLIST_REQUESTS_PER_SECOND"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil || rps < 0 {
			return fmt.Errorf("%w: FANLIST_REQUESTS_PER_SECOND=%q", ErrInvalidConfig, v)
		}
		config.Build.RequestsPerSecond = rps
	}
	return nil
}

// Validate checks the settings every Spotify call depends on.
func (c *Config) Validate() error {
	if c.Credentials.Spotify.ClientID == "" || c.Credentials.Spotify.ClientID == "your_spotify_client_id" {
		return fmt.Errorf("%w: credentials.spotify.client_id must be set", ErrMissingCredentials)
	}
	if c.Credentials.Spotify.RedirectURI == "" {
		return fmt.Errorf("%w: credentials.spotify.redirect_uri must be set", ErrInvalidConfig)
	}
	if c.Build.MaxAttempts < 0 {
		return fmt.Errorf("%w: build.max_attempts cannot be negative", ErrInvalidConfig)
	}
	if c.Build.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: build.requests_per_second cannot be negative", ErrInvalidConfig)
	}
	return nil
}
