package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/plsd/internal/daemon"
	"github.com/desertthunder/plsd/internal/metrics"
	"github.com/desertthunder/plsd/internal/server"
	"github.com/desertthunder/plsd/internal/shared"
	"github.com/desertthunder/plsd/internal/storage"
)

const pollInterval = 100 * time.Millisecond

// DaemonRun loads the playlists, registers the service and serves it until SIGINT or SIGTERM.
func (r *Runner) DaemonRun(ctx context.Context, cmd *cli.Command) error {
	transport := r.transportFor()
	if pid, err := transport.OwnerPID(ctx); err == nil {
		return fmt.Errorf("%w: pid %d", shared.ErrAlreadyRunning, pid)
	}

	dir, err := r.config.PlaylistDir()
	if err != nil {
		return err
	}

	store := storage.NewStore(dir, r.logger)
	d := daemon.New(store, r.logger, daemon.WithSaveDelay(r.config.Daemon.SaveDelay.Duration))
	if err := d.Open(); err != nil {
		return err
	}

	pub, err := transport.Publish(d)
	if err != nil {
		return errors.Join(err, d.Stop())
	}
	d.Start(pub)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if addr := r.config.Daemon.MetricsAddr; addr != "" {
		router := server.NewBasicRouter()
		router.Use(server.Logging(r.logger))
		router.Handle("/metrics", metrics.Handler(), http.MethodGet)
		router.Handler(server.NewHealth(d))
		go func() {
			if err := server.Serve(ctx, addr, router, r.logger); err != nil {
				r.logger.Error("http server failed", "addr", addr, "error", err)
			}
		}()
	}

	r.logger.Info("daemon running", "dir", dir, "pid", os.Getpid())
	select {
	case <-ctx.Done():
	case <-d.Done():
	}
	r.logger.Info("shutting down")

	stopErr := d.Stop()
	return errors.Join(stopErr, pub.Close())
}

// DaemonStart runs "daemon run" in a detached child and waits until it owns the service.
func (r *Runner) DaemonStart(ctx context.Context, cmd *cli.Command) error {
	transport := r.transportFor()
	if pid, err := transport.OwnerPID(ctx); err == nil {
		return fmt.Errorf("%w: pid %d", shared.ErrAlreadyRunning, pid)
	}

	dir, err := r.config.PlaylistDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create playlist directory: %w", err)
	}
	logPath := filepath.Join(filepath.Dir(dir), "plsd.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open daemon log: %w", err)
	}
	defer logFile.Close()

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate executable: %w", err)
	}
	child := exec.Command(exe, append(r.childFlags(), "daemon", "run")...)
	child.Stdout = logFile
	child.Stderr = logFile
	if err := detach(child); err != nil {
		return err
	}
	if err := child.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	exited := make(chan error, 1)
	go func() { exited <- child.Wait() }()

	deadline := time.NewTimer(r.callTimeout())
	defer deadline.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case err := <-exited:
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) && exitErr.ExitCode() == exitAlreadyRunning {
				return shared.ErrAlreadyRunning
			}
			return fmt.Errorf("daemon exited during startup (see %s): %v", logPath, err)
		case <-ticker.C:
			pid, err := transport.OwnerPID(ctx)
			if err != nil {
				continue
			}
			return r.writePlain("%s (pid %d, log %s)\n", r.painter.OK("daemon started"), pid, logPath)
		case <-deadline.C:
			return fmt.Errorf("%w: daemon did not register within %s", shared.ErrTimeout, r.callTimeout())
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// childFlags are the root flags handing this process's configuration to a re-executed daemon. The
// config path is only passed when the file exists, since an explicit path must exist.
func (r *Runner) childFlags() []string {
	var flags []string
	if _, err := os.Stat(r.configPath); err == nil {
		flags = append(flags, "--config", r.configPath)
	}
	return append(flags, "--log-level", r.config.Daemon.LogLevel)
}

// DaemonStop sends SIGTERM to the service owner and waits for the name to be released.
func (r *Runner) DaemonStop(ctx context.Context, cmd *cli.Command) error {
	transport := r.transportFor()
	pid, err := transport.OwnerPID(ctx)
	if err != nil {
		return err
	}

	proc, err := os.FindProcess(int(pid))
	if err != nil {
		return fmt.Errorf("failed to find daemon process %d: %w", pid, err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to signal daemon process %d: %w", pid, err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.callTimeout())
	defer cancel()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := transport.OwnerPID(ctx); errors.Is(err, shared.ErrNotRunning) {
				return r.writePlain("%s (pid %d)\n", r.painter.OK("daemon stopped"), pid)
			}
		case <-ctx.Done():
			return fmt.Errorf("%w: daemon %d still owns the service", shared.ErrTimeout, pid)
		}
	}
}

// daemonStatus is the --json form of DaemonStatus.
type daemonStatus struct {
	Running   bool   `json:"running"`
	PID       uint32 `json:"pid,omitempty"`
	Owner     string `json:"owner,omitempty"`
	Playlists int    `json:"playlists"`
}

// DaemonStatus reports the service owner and how many playlists it holds.
func (r *Runner) DaemonStatus(ctx context.Context, cmd *cli.Command) error {
	var status daemonStatus

	pid, err := r.transportFor().OwnerPID(ctx)
	switch {
	case errors.Is(err, shared.ErrNotRunning):
	case err != nil:
		return err
	default:
		status.PID = pid
		err := r.withSession(ctx, func(ctx context.Context, s *session) error {
			owner, err := s.conn.ServiceOwner(ctx)
			if err != nil {
				return err
			}
			infos, err := s.conn.ListPlaylists(ctx, nil)
			if err != nil {
				return err
			}
			status.Running, status.Owner, status.Playlists = owner != "", owner, len(infos)
			return nil
		})
		if err != nil && !errors.Is(err, shared.ErrNotRunning) {
			return err
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(status, true)
	}
	if !status.Running {
		return r.writePlain("%s\n", r.painter.Warn("not running"))
	}
	return r.writePlain("%s pid %d, owner %s, %d playlists\n", r.painter.OK("running"), status.PID, status.Owner, status.Playlists)
}

// ConfigInit writes the default configuration file.
func (r *Runner) ConfigInit(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("path")
	if path == "" {
		path = r.configPath
	}
	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}
	return r.writePlain("%s %s\n", r.painter.OK("wrote"), path)
}
