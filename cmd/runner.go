package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/plsd/internal/client"
	"github.com/desertthunder/plsd/internal/formatter"
	"github.com/desertthunder/plsd/internal/protocol"
	"github.com/desertthunder/plsd/internal/shared"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer
	painter    formatter.Painter
	transport  Transport
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config  *shared.Config
	Logger  *log.Logger
	Output  io.Writer
	Painter formatter.Painter
	// Transport defaults to D-Bus of the configured kind.
	Transport Transport
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
	if opts.Painter == nil {
		if opts.Output == os.Stdout {
			opts.Painter = formatter.DefaultPalette
		} else {
			opts.Painter = formatter.Plain{}
		}
	}

	return &Runner{
		config:     opts.Config,
		configPath: shared.DefaultConfigPath(),
		logger:     opts.Logger,
		output:     opts.Output,
		painter:    opts.Painter,
		transport:  opts.Transport,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		daemonCommand, createCommand, duplicateCommand, destroyCommand, listCommand, showCommand,
		renameCommand, appendCommand, insertCommand, removeCommand, moveCommand, clearCommand,
		shuffleCommand, unshuffleCommand, repeatCommand, nextCommand, prevCommand, importCommand,
		watchCommand, configCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Configure loads the configuration named by the root flags. It runs before every command.
func (r *Runner) Configure(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if path := cmd.String("env-file"); path != "" {
		if err := shared.LoadEnvFile(path); err != nil {
			return ctx, err
		}
	}

	path := cmd.String("config")
	config := shared.DefaultConfig()
	if _, err := os.Stat(path); err == nil {
		loaded, err := shared.LoadConfig(path)
		if err != nil {
			return ctx, fmt.Errorf("%w: %w", shared.ErrInvalidConfig, err)
		}
		config = loaded
	} else if cmd.IsSet("config") {
		return ctx, fmt.Errorf("%w: %s", shared.ErrMissingConfig, path)
	}

	config.ApplyEnv()
	if level := cmd.String("log-level"); level != "" {
		config.Daemon.LogLevel = level
	}
	if err := config.Validate(); err != nil {
		return ctx, err
	}
	if err := shared.ParseLogLevel(r.logger, config.Daemon.LogLevel); err != nil {
		return ctx, err
	}

	r.config = config
	r.configPath = path
	return ctx, nil
}

func (r *Runner) transportFor() Transport {
	if r.transport != nil {
		return r.transport
	}
	return newDBusTransport(r.config.Bus.Kind, r.logger)
}

func (r *Runner) callTimeout() time.Duration {
	return r.config.Client.CallTimeout.Duration
}

// session is a manager over a fresh connection, closed when the command ends.
type session struct {
	conn Conn
	m    *client.Manager
}

// withSession dials the daemon and runs fn with a context bounded by the call timeout.
func (r *Runner) withSession(ctx context.Context, fn func(ctx context.Context, s *session) error) error {
	conn, err := r.transportFor().Dial(ctx)
	if err != nil {
		return daemonError(err)
	}
	m := client.NewManager(conn, client.WithLogger(r.logger), client.WithCallTimeout(r.callTimeout()))
	defer func() {
		m.Close()
		if err := conn.Close(); err != nil {
			r.logger.Debug("failed to close connection", "error", err)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, r.callTimeout())
	defer cancel()

	return daemonError(fn(ctx, &session{conn: conn, m: m}))
}

// withPlaylist resolves the playlist named by the first argument.
func (r *Runner) withPlaylist(ctx context.Context, cmd *cli.Command, fn func(ctx context.Context, s *session, p *client.Playlist) error) error {
	id, err := argUint(cmd, 0, "playlist id")
	if err != nil {
		return err
	}

	return r.withSession(ctx, func(ctx context.Context, s *session) error {
		p, err := s.m.Playlist(ctx, id)
		if err != nil {
			return err
		}
		defer p.Release()
		return fn(ctx, s, p)
	})
}

// daemonError marks transport failures as a missing daemon.
func daemonError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, protocol.ErrTransportUnavailable):
		return fmt.Errorf("%w: %w", shared.ErrNotRunning, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", shared.ErrTimeout, err)
	default:
		return err
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

func (r *Runner) write(data []byte) error {
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	return r.write([]byte(fmt.Sprintf(format, args...)))
}
