package shared

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Environment variables that override the config file.
const (
	EnvPlaylistDir = "PLSD_PLAYLIST_DIR"
	EnvLogLevel    = "PLSD_LOG_LEVEL"
)

// Bus kinds accepted by [BusConfig].
const (
	BusSession = "session"
	BusSystem  = "system"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Daemon DaemonConfig `toml:"daemon"`
	Bus    BusConfig    `toml:"bus"`
	Client ClientConfig `toml:"client"`
}

// DaemonConfig contains the playlist daemon settings.
type DaemonConfig struct {
	PlaylistDir string   `toml:"playlist_dir"`
	SaveDelay   Duration `toml:"save_delay"`
	LogLevel    string   `toml:"log_level"`
	MetricsAddr string   `toml:"metrics_addr"`
}

// BusConfig selects the message bus shared by the daemon and its clients.
type BusConfig struct {
	Kind string `toml:"kind"`
}

// ClientConfig contains settings for client commands.
type ClientConfig struct {
	CallTimeout Duration `toml:"call_timeout"`
}

// Duration is a [time.Duration] written as a string ("1s", "250ms") in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
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

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadEnvFile loads KEY=value pairs from path into the process environment without overriding set variables.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrEnvFile, path, err)
	}
	return nil
}

// ApplyEnv overrides config values with the PLSD_* environment variables that are set.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvPlaylistDir); v != "" {
		c.Daemon.PlaylistDir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Daemon.LogLevel = v
	}
}

// Validate checks values the TOML decoder cannot.
func (c *Config) Validate() error {
	if c.Daemon.SaveDelay.Duration <= 0 {
		return fmt.Errorf("%w: save_delay must be positive", ErrInvalidConfig)
	}
	if c.Client.CallTimeout.Duration <= 0 {
		return fmt.Errorf("%w: call_timeout must be positive", ErrInvalidConfig)
	}
	switch c.Bus.Kind {
	case BusSession, BusSystem:
	default:
		return fmt.Errorf("%w: unknown bus kind %q", ErrInvalidConfig, c.Bus.Kind)
	}
	return nil
}

// PlaylistDir returns the configured playlist directory, falling back to the XDG data directory.
func (c *Config) PlaylistDir() (string, error) {
	if c.Daemon.PlaylistDir != "" {
		return c.Daemon.PlaylistDir, nil
	}

	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("%w: no playlist_dir and no home directory: %v", ErrMissingConfig, err)
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "plsd", "playlists"), nil
}

// DefaultConfigPath returns the user's config.toml location.
func DefaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(dir, "plsd", "config.toml")
}
