package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Daemon.SaveDelay.Duration != time.Second {
			t.Errorf("expected save delay 1s, got %s", config.Daemon.SaveDelay)
		}

		if config.Daemon.LogLevel != "info" {
			t.Errorf("expected log level info, got %s", config.Daemon.LogLevel)
		}

		if config.Bus.Kind != BusSession {
			t.Errorf("expected session bus, got %s", config.Bus.Kind)
		}

		if config.Client.CallTimeout.Duration != 25*time.Second {
			t.Errorf("expected call timeout 25s, got %s", config.Client.CallTimeout)
		}

		if err := config.Validate(); err != nil {
			t.Errorf("default config should be valid: %v", err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "plsd", "config.toml")

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
		if config.Daemon.SaveDelay != defaultConfig.Daemon.SaveDelay {
			t.Errorf("created config save delay doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[daemon]
playlist_dir = "/srv/playlists"
save_delay = "250ms"
metrics_addr = "127.0.0.1:9464"

[bus]
kind = "system"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Daemon.PlaylistDir != "/srv/playlists" {
			t.Errorf("expected playlist dir /srv/playlists, got %s", config.Daemon.PlaylistDir)
		}

		if config.Daemon.SaveDelay.Duration != 250*time.Millisecond {
			t.Errorf("expected save delay 250ms, got %s", config.Daemon.SaveDelay)
		}

		if config.Bus.Kind != BusSystem {
			t.Errorf("expected system bus, got %s", config.Bus.Kind)
		}

		if config.Daemon.LogLevel != "info" {
			t.Errorf("missing keys should keep defaults, got log level %q", config.Daemon.LogLevel)
		}
	})

	t.Run("LoadConfig bad duration", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[daemon]\nsave_delay = \"soon\"\n"), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if _, err := LoadConfig(configPath); err == nil {
			t.Error("expected parse error for invalid duration")
		}
	})
}

func TestValidate(t *testing.T) {
	tc := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "zero save delay", mutate: func(c *Config) { c.Daemon.SaveDelay.Duration = 0 }},
		{name: "negative call timeout", mutate: func(c *Config) { c.Client.CallTimeout.Duration = -time.Second }},
		{name: "unknown bus", mutate: func(c *Config) { c.Bus.Kind = "carrier-pigeon" }},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)

			if err := config.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Run("env overrides file values", func(t *testing.T) {
		t.Setenv(EnvPlaylistDir, "/tmp/from-env")
		t.Setenv(EnvLogLevel, "debug")

		config := DefaultConfig()
		config.Daemon.PlaylistDir = "/from/file"
		config.ApplyEnv()

		if config.Daemon.PlaylistDir != "/tmp/from-env" {
			t.Errorf("expected env playlist dir, got %s", config.Daemon.PlaylistDir)
		}
		if config.Daemon.LogLevel != "debug" {
			t.Errorf("expected env log level, got %s", config.Daemon.LogLevel)
		}
	})

	t.Run("env file", func(t *testing.T) {
		t.Setenv(EnvPlaylistDir, "")
		os.Unsetenv(EnvPlaylistDir)

		envPath := filepath.Join(t.TempDir(), ".env")
		if err := os.WriteFile(envPath, []byte(EnvPlaylistDir+"=/tmp/dotenv\n"), 0644); err != nil {
			t.Fatalf("failed to write env file: %v", err)
		}

		if err := LoadEnvFile(envPath); err != nil {
			t.Fatalf("failed to load env file: %v", err)
		}

		config := DefaultConfig()
		config.ApplyEnv()
		if config.Daemon.PlaylistDir != "/tmp/dotenv" {
			t.Errorf("expected playlist dir from env file, got %s", config.Daemon.PlaylistDir)
		}
	})

	t.Run("missing env file", func(t *testing.T) {
		err := LoadEnvFile(filepath.Join(t.TempDir(), "nope.env"))
		if !errors.Is(err, ErrEnvFile) {
			t.Errorf("expected ErrEnvFile, got %v", err)
		}
	})
}

func TestPlaylistDir(t *testing.T) {
	t.Run("configured", func(t *testing.T) {
		config := DefaultConfig()
		config.Daemon.PlaylistDir = "/srv/pl"
		if dir, err := config.PlaylistDir(); err != nil || dir != "/srv/pl" {
			t.Errorf("PlaylistDir() = %q, %v", dir, err)
		}
	})

	t.Run("xdg fallback", func(t *testing.T) {
		t.Setenv("XDG_DATA_HOME", "/xdg/data")
		config := DefaultConfig()
		dir, err := config.PlaylistDir()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if want := filepath.Join("/xdg/data", "plsd", "playlists"); dir != want {
			t.Errorf("PlaylistDir() = %q, want %q", dir, want)
		}
	})
}
