package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/plsd/internal/client"
	"github.com/desertthunder/plsd/internal/formatter"
	"github.com/desertthunder/plsd/internal/protocol"
	"github.com/desertthunder/plsd/internal/shared"
)

// Create prints the id of the playlist called NAME, creating it if needed.
func (r *Runner) Create(ctx context.Context, cmd *cli.Command) error {
	name, err := argString(cmd, 0, "name")
	if err != nil {
		return err
	}

	return r.withSession(ctx, func(ctx context.Context, s *session) error {
		p, err := s.m.CreatePlaylist(ctx, name)
		if err != nil {
			return err
		}
		defer p.Release()
		return r.writePlain("%d\n", p.ID())
	})
}

func (r *Runner) Duplicate(ctx context.Context, cmd *cli.Command) error {
	name, err := argString(cmd, 1, "name")
	if err != nil {
		return err
	}

	return r.withPlaylist(ctx, cmd, func(ctx context.Context, s *session, p *client.Playlist) error {
		dup, err := s.m.DuplicatePlaylist(ctx, p, name)
		if err != nil {
			return err
		}
		defer dup.Release()
		return r.writePlain("%d\n", dup.ID())
	})
}

// Destroy asks the daemon to destroy a playlist and waits for the outcome signal.
func (r *Runner) Destroy(ctx context.Context, cmd *cli.Command) error {
	id, err := argUint(cmd, 0, "playlist id")
	if err != nil {
		return err
	}

	return r.withSession(ctx, func(ctx context.Context, s *session) error {
		outcome := make(chan client.EventKind, 1)
		s.m.Subscribe(func(ev client.Event) {
			if ev.ID != id || ev.Kind == client.EventCreated {
				return
			}
			select {
			case outcome <- ev.Kind:
			default:
			}
		})

		// The held handle keeps the destroyed event visible.
		p, err := s.m.Playlist(ctx, id)
		if err != nil {
			return err
		}
		defer p.Release()

		if err := s.conn.DestroyPlaylist(ctx, id); err != nil {
			return err
		}

		select {
		case kind := <-outcome:
			if kind == client.EventDestructionFailed {
				return protocol.Errorf(protocol.CodeInUse, "playlist %d is in use", id)
			}
			return r.writePlain("destroyed %s\n", r.painter.Title(p.CachedName()))
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

func (r *Runner) List(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	return r.withSession(ctx, func(ctx context.Context, s *session) error {
		handles, err := s.m.Playlists(ctx)
		if err != nil {
			return err
		}

		list := make([]formatter.Summary, 0, len(handles))
		for _, p := range handles {
			summary, err := summarize(ctx, p)
			p.Release()
			if errors.Is(err, protocol.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			list = append(list, summary)
		}

		data, err := formatter.RenderList(list, format, r.painter)
		if err != nil {
			return err
		}
		return r.write(data)
	})
}

// Show prints a playlist in play order, or exports it with --export.
func (r *Runner) Show(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	return r.withPlaylist(ctx, cmd, func(ctx context.Context, s *session, p *client.Playlist) error {
		summary, err := summarize(ctx, p)
		if err != nil {
			return err
		}
		items, err := p.Items(ctx, 0, lastIndex)
		if err != nil {
			return err
		}
		detail := formatter.Detail{Summary: summary, Items: items}

		if cmd.Bool("export") || cmd.IsSet("output") {
			path, err := formatter.WriteExport(detail, format, cmd.String("output"))
			if err != nil {
				return err
			}
			return r.writePlain("%s %s\n", r.painter.OK("exported"), path)
		}

		data, err := formatter.Render(detail, format, r.painter)
		if err != nil {
			return err
		}
		return r.write(data)
	})
}

func summarize(ctx context.Context, p *client.Playlist) (formatter.Summary, error) {
	s := formatter.Summary{ID: p.ID()}
	var err error

	if s.Name, err = p.Name(ctx); err != nil {
		return s, err
	}
	if s.Size, err = p.Size(ctx); err != nil {
		return s, err
	}
	if s.Repeat, err = p.Repeat(ctx); err != nil {
		return s, err
	}
	if s.Shuffled, err = p.IsShuffled(ctx); err != nil {
		return s, err
	}
	return s, nil
}

func (r *Runner) Rename(ctx context.Context, cmd *cli.Command) error {
	name, err := argString(cmd, 1, "name")
	if err != nil {
		return err
	}

	return r.withPlaylist(ctx, cmd, func(ctx context.Context, s *session, p *client.Playlist) error {
		return p.SetName(ctx, name)
	})
}

// Import runs a daemon import and prints the id of the resulting playlist.
func (r *Runner) Import(ctx context.Context, cmd *cli.Command) error {
	arg, err := argString(cmd, 0, "uri")
	if err != nil {
		return err
	}
	uri, err := importURI(arg)
	if err != nil {
		return err
	}
	base, err := importURI(cmd.String("base"))
	if err != nil {
		return err
	}

	return r.withSession(ctx, func(ctx context.Context, s *session) error {
		results := make(chan client.ImportResult, 1)
		imp, err := s.m.Import(ctx, uri, base, func(res client.ImportResult) { results <- res })
		if err != nil {
			return err
		}
		r.logger.Debug("import started", "import", imp.ID(), "uri", uri)

		select {
		case res := <-results:
			if res.Err != nil {
				return res.Err
			}
			defer res.Playlist.Release()
			name, err := res.Playlist.Name(ctx)
			if err != nil {
				return err
			}
			return r.writePlain("%d\t%s\n", res.Playlist.ID(), r.painter.Title(name))
		case <-ctx.Done():
			cancelCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.callTimeout())
			defer cancel()
			if err := imp.Cancel(cancelCtx); err != nil {
				r.logger.Warn("failed to cancel import", "import", imp.ID(), "error", err)
			}
			return ctx.Err()
		}
	})
}

// Watch prints daemon signals until interrupted.
func (r *Runner) Watch(ctx context.Context, cmd *cli.Command) error {
	filter, filtered := uint32(cmd.Uint("id")), cmd.IsSet("id")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := r.transportFor().Dial(ctx)
	if err != nil {
		return daemonError(err)
	}
	defer conn.Close()

	owner, err := conn.ServiceOwner(ctx)
	if err != nil {
		return daemonError(err)
	}
	if owner == "" {
		r.logger.Warn("no daemon is running; waiting for one to start")
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig, ok := <-conn.Signals():
			if !ok {
				return fmt.Errorf("%w: connection closed", shared.ErrNotRunning)
			}
			if id, ok := protocol.PlaylistID(sig); filtered && (!ok || id != filter) {
				continue
			}
			if err := r.writePlain("%s\n", protocol.Describe(sig)); err != nil {
				return err
			}
		}
	}
}
