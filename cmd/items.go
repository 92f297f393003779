package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/plsd/internal/client"
	"github.com/desertthunder/plsd/internal/protocol"
	"github.com/desertthunder/plsd/internal/shared"
)

func (r *Runner) Append(ctx context.Context, cmd *cli.Command) error {
	ids, err := objectIDs(cmd.Args().Tail())
	if err != nil {
		return err
	}

	return r.withPlaylist(ctx, cmd, func(ctx context.Context, s *session, p *client.Playlist) error {
		return p.Append(ctx, ids...)
	})
}

func (r *Runner) Insert(ctx context.Context, cmd *cli.Command) error {
	index, err := argUint(cmd, 1, "index")
	if err != nil {
		return err
	}
	ids, err := objectIDs(cmd.Args().Slice()[2:])
	if err != nil {
		return err
	}

	return r.withPlaylist(ctx, cmd, func(ctx context.Context, s *session, p *client.Playlist) error {
		return p.Insert(ctx, index, ids...)
	})
}

func (r *Runner) Remove(ctx context.Context, cmd *cli.Command) error {
	index, err := argUint(cmd, 1, "index")
	if err != nil {
		return err
	}

	return r.withPlaylist(ctx, cmd, func(ctx context.Context, s *session, p *client.Playlist) error {
		ok, err := p.Remove(ctx, index)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: no item at index %d", shared.ErrInvalidArgument, index)
		}
		return nil
	})
}

func (r *Runner) Move(ctx context.Context, cmd *cli.Command) error {
	from, err := argUint(cmd, 1, "from")
	if err != nil {
		return err
	}
	to, err := argUint(cmd, 2, "to")
	if err != nil {
		return err
	}

	return r.withPlaylist(ctx, cmd, func(ctx context.Context, s *session, p *client.Playlist) error {
		ok, err := p.Move(ctx, from, to)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: cannot move %d to %d", shared.ErrInvalidArgument, from, to)
		}
		return nil
	})
}

func (r *Runner) Clear(ctx context.Context, cmd *cli.Command) error {
	return r.withPlaylist(ctx, cmd, func(ctx context.Context, s *session, p *client.Playlist) error {
		return p.Clear(ctx)
	})
}

func (r *Runner) Shuffle(ctx context.Context, cmd *cli.Command) error {
	return r.withPlaylist(ctx, cmd, func(ctx context.Context, s *session, p *client.Playlist) error {
		return p.Shuffle(ctx)
	})
}

func (r *Runner) Unshuffle(ctx context.Context, cmd *cli.Command) error {
	return r.withPlaylist(ctx, cmd, func(ctx context.Context, s *session, p *client.Playlist) error {
		return p.Unshuffle(ctx)
	})
}

// Repeat prints the repeat flag, or sets it when a value is given.
func (r *Runner) Repeat(ctx context.Context, cmd *cli.Command) error {
	var value *bool
	if arg := cmd.Args().Get(1); arg != "" {
		v, err := parseSwitch(arg)
		if err != nil {
			return err
		}
		value = &v
	}

	return r.withPlaylist(ctx, cmd, func(ctx context.Context, s *session, p *client.Playlist) error {
		if value != nil {
			return p.SetRepeat(ctx, *value)
		}
		repeat, err := p.Repeat(ctx)
		if err != nil {
			return err
		}
		if repeat {
			return r.writePlain("%s\n", r.painter.OK("on"))
		}
		return r.writePlain("%s\n", r.painter.Help("off"))
	})
}

// Next prints the item played after INDEX, or the starting item without one.
func (r *Runner) Next(ctx context.Context, cmd *cli.Command) error {
	return r.step(ctx, cmd, (*client.Playlist).Starting, (*client.Playlist).Next)
}

// Prev prints the item played before INDEX, or the last item without one.
func (r *Runner) Prev(ctx context.Context, cmd *cli.Command) error {
	return r.step(ctx, cmd, (*client.Playlist).Last, (*client.Playlist).Prev)
}

type endpointFunc func(*client.Playlist, context.Context) (protocol.Position, bool, error)

type stepFunc func(*client.Playlist, context.Context, uint32) (protocol.Position, bool, error)

func (r *Runner) step(ctx context.Context, cmd *cli.Command, endpoint endpointFunc, step stepFunc) error {
	index, hasIndex, err := optionalUint(cmd, 1, "index")
	if err != nil {
		return err
	}

	return r.withPlaylist(ctx, cmd, func(ctx context.Context, s *session, p *client.Playlist) error {
		var pos protocol.Position
		var ok bool
		if hasIndex {
			pos, ok, err = step(p, ctx, index)
		} else {
			pos, ok, err = endpoint(p, ctx)
		}
		if err != nil {
			return err
		}
		if !ok {
			return r.writePlain("%s\n", r.painter.Help("end of playlist"))
		}
		return r.writePlain("%d\t%s\n", pos.Index, pos.ObjectID)
	})
}
