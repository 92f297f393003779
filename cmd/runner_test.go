package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/plsd/internal/formatter"
	"github.com/desertthunder/plsd/internal/protocol"
	"github.com/desertthunder/plsd/internal/shared"
	tu "github.com/desertthunder/plsd/internal/testing"
)

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			transport := newLocalTransport()

			runner := NewRunner(RunnerOpts{
				Config:    config,
				Logger:    logger,
				Output:    output,
				Painter:   formatter.Plain{},
				Transport: transport,
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
			if runner.transportFor() != transport {
				t.Error("expected transport to be set")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				Config: nil,
			})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				Logger: nil,
			})

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				Output: nil,
			})

			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
			if runner.painter != formatter.DefaultPalette {
				t.Error("expected the colored palette on stdout")
			}
		})

		t.Run("with a buffer output paints plain text", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			if _, ok := runner.painter.(formatter.Plain); !ok {
				t.Errorf("expected plain painter, got %T", runner.painter)
			}
		})

		t.Run("with nil transport uses D-Bus", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			tr, ok := runner.transportFor().(*dbusTransport)
			if !ok {
				t.Fatalf("expected D-Bus transport, got %T", runner.transportFor())
			}
			if tr.kind != shared.BusSession {
				t.Errorf("expected session bus, got %q", tr.kind)
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, true)

			if err != nil {
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

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if result := output.String(); result != expected {
				t.Errorf("expected %q, got %q", expected, result)
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)

			if err == nil {
				t.Fatal("expected error for non-serializable data")
			}
			if !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)

			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)

			if err == nil {
				t.Fatal("expected error writing newline")
			}
			if !strings.Contains(err.Error(), "failed to write newline") {
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
			if result := output.String(); result != "hello world" {
				t.Errorf("expected 'hello world', got %q", result)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")

			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		if len(commands) == 0 {
			t.Error("expected at least one command to be registered")
		}

		seen := make(map[string]bool)
		for i, cmd := range commands {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			if seen[cmd.Name] {
				t.Errorf("command %q registered twice", cmd.Name)
			}
			seen[cmd.Name] = true
		}
	})
}

// configure runs the root flags in args against a no-op command with an empty config home.
func configure(t *testing.T, args ...string) (*Runner, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	runner := NewRunner(RunnerOpts{Logger: tu.QuietLogger(), Output: &bytes.Buffer{}})
	app := newApp(runner)
	app.Commands = []*cli.Command{{Name: "noop", Action: func(context.Context, *cli.Command) error { return nil }}}
	err := app.Run(context.Background(), append(append([]string{"plsd"}, args...), "noop"))
	return runner, err
}

func TestConfigure(t *testing.T) {

	t.Run("loads the config file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		content := "[daemon]\nplaylist_dir = '/srv/playlists'\nsave_delay = \"250ms\"\n"
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}

		runner, err := configure(t, "--config", path)
		if err != nil {
			t.Fatalf("configure failed: %v", err)
		}
		if runner.config.Daemon.PlaylistDir != "/srv/playlists" {
			t.Errorf("playlist_dir = %q", runner.config.Daemon.PlaylistDir)
		}
		if runner.config.Daemon.SaveDelay.Milliseconds() != 250 {
			t.Errorf("save_delay = %s", runner.config.Daemon.SaveDelay)
		}
		if runner.config.Client.CallTimeout.Duration == 0 {
			t.Error("expected default call_timeout to survive")
		}
		if runner.configPath != path {
			t.Errorf("configPath = %q", runner.configPath)
		}
	})

	t.Run("missing explicit config", func(t *testing.T) {
		_, err := configure(t, "--config", filepath.Join(t.TempDir(), "absent.toml"))
		if !errors.Is(err, shared.ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})

	t.Run("invalid config", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(path, []byte("[bus]\nkind = \"carrier-pigeon\"\n"), 0644); err != nil {
			t.Fatal(err)
		}

		_, err := configure(t, "--config", path)
		if !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("env file overrides the playlist dir", func(t *testing.T) {
		t.Setenv(shared.EnvPlaylistDir, "")
		os.Unsetenv(shared.EnvPlaylistDir)

		envFile := filepath.Join(t.TempDir(), ".env")
		if err := os.WriteFile(envFile, []byte(shared.EnvPlaylistDir+"=/from/env\n"), 0644); err != nil {
			t.Fatal(err)
		}

		runner, err := configure(t, "--env-file", envFile)
		if err != nil {
			t.Fatalf("configure failed: %v", err)
		}
		if runner.config.Daemon.PlaylistDir != "/from/env" {
			t.Errorf("playlist_dir = %q", runner.config.Daemon.PlaylistDir)
		}
	})

	t.Run("bad log level", func(t *testing.T) {
		_, err := configure(t, "--log-level", "chatty")
		if !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}

func TestChildFlags(t *testing.T) {
	t.Run("without a config file", func(t *testing.T) {
		parent, err := configure(t, "--log-level", "debug")
		if err != nil {
			t.Fatalf("configure failed: %v", err)
		}

		flags := parent.childFlags()
		if slices.Contains(flags, "--config") {
			t.Errorf("flags = %v, a missing default config must not be passed", flags)
		}
		if !slices.Equal(flags, []string{"--log-level", "debug"}) {
			t.Errorf("flags = %v", flags)
		}

		if _, err := configure(t, flags...); err != nil {
			t.Errorf("child configuration failed: %v", err)
		}
	})

	t.Run("with a config file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(path, []byte("[daemon]\nplaylist_dir = '/srv/playlists'\n"), 0644); err != nil {
			t.Fatal(err)
		}
		parent, err := configure(t, "--config", path)
		if err != nil {
			t.Fatalf("configure failed: %v", err)
		}

		flags := parent.childFlags()
		if !slices.Equal(flags[:2], []string{"--config", path}) {
			t.Errorf("flags = %v", flags)
		}

		child, err := configure(t, flags...)
		if err != nil {
			t.Fatalf("child configuration failed: %v", err)
		}
		if child.config.Daemon.PlaylistDir != "/srv/playlists" {
			t.Errorf("child playlist_dir = %q", child.config.Daemon.PlaylistDir)
		}
	})
}

func TestDaemonError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"transport", protocol.ErrTransportUnavailable, shared.ErrNotRunning},
		{"deadline", context.DeadlineExceeded, shared.ErrTimeout},
		{"daemon error", protocol.ErrNotFound, protocol.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := daemonError(tt.err)
			if tt.want == nil {
				if got != nil {
					t.Errorf("expected nil, got %v", got)
				}
				return
			}
			if !errors.Is(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
