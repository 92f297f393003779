package bus

import (
	"context"
	"sync/atomic"

	"github.com/desertthunder/plsd/internal/protocol"
)

// Conn is a client connection. It implements [protocol.Service] by forwarding every call to the current owner
// with the connection's unique name as sender.
type Conn struct {
	bus    *Bus
	name   string
	mbox   *mailbox
	closed atomic.Bool
}

var _ protocol.Service = (*Conn)(nil)

// Name returns the unique bus name of the connection.
func (c *Conn) Name() string { return c.name }

// Signals delivers broadcast signals in emission order. The channel is closed by [Conn.Close].
func (c *Conn) Signals() <-chan protocol.Signal { return c.mbox.out }

// ServiceOwner returns the unique name of the current service owner, or "".
func (c *Conn) ServiceOwner(context.Context) (string, error) {
	return c.bus.OwnerName(), nil
}

// Close detaches the connection. The owner, if any, is told the peer is gone.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	svc := c.bus.disconnect(c)
	c.mbox.close()
	if w, ok := svc.(protocol.PeerWatcher); ok {
		w.PeerGone(c.name)
	}
	return nil
}

func (c *Conn) target(ctx context.Context) (protocol.Service, context.Context, error) {
	if c.closed.Load() {
		return nil, ctx, ErrClosed
	}
	svc := c.bus.service()
	if svc == nil {
		return nil, ctx, ErrServiceUnknown
	}
	return svc, protocol.WithSender(ctx, c.name), nil
}

func (c *Conn) CreatePlaylist(ctx context.Context, name string) (uint32, error) {
	svc, ctx, err := c.target(ctx)
	if err != nil {
		return 0, err
	}
	return svc.CreatePlaylist(ctx, name)
}

func (c *Conn) DuplicatePlaylist(ctx context.Context, id uint32, name string) (uint32, error) {
	svc, ctx, err := c.target(ctx)
	if err != nil {
		return 0, err
	}
	return svc.DuplicatePlaylist(ctx, id, name)
}

func (c *Conn) DestroyPlaylist(ctx context.Context, id uint32) error {
	svc, ctx, err := c.target(ctx)
	if err != nil {
		return err
	}
	return svc.DestroyPlaylist(ctx, id)
}

func (c *Conn) ListPlaylists(ctx context.Context, ids []uint32) ([]protocol.PlaylistInfo, error) {
	svc, ctx, err := c.target(ctx)
	if err != nil {
		return nil, err
	}
	return svc.ListPlaylists(ctx, ids)
}

func (c *Conn) ImportPlaylist(ctx context.Context, uri, baseURI string) (uint32, error) {
	svc, ctx, err := c.target(ctx)
	if err != nil {
		return 0, err
	}
	return svc.ImportPlaylist(ctx, uri, baseURI)
}

func (c *Conn) CancelImport(ctx context.Context, importID uint32) error {
	svc, ctx, err := c.target(ctx)
	if err != nil {
		return err
	}
	return svc.CancelImport(ctx, importID)
}

func (c *Conn) SetName(ctx context.Context, id uint32, name string) error {
	svc, ctx, err := c.target(ctx)
	if err != nil {
		return err
	}
	return svc.SetName(ctx, id, name)
}

func (c *Conn) GetName(ctx context.Context, id uint32) (string, error) {
	svc, ctx, err := c.target(ctx)
	if err != nil {
		return "", err
	}
	return svc.GetName(ctx, id)
}

func (c *Conn) SetRepeat(ctx context.Context, id uint32, repeat bool) error {
	svc, ctx, err := c.target(ctx)
	if err != nil {
		return err
	}
	return svc.SetRepeat(ctx, id, repeat)
}

func (c *Conn) GetRepeat(ctx context.Context, id uint32) (bool, error) {
	svc, ctx, err := c.target(ctx)
	if err != nil {
		return false, err
	}
	return svc.GetRepeat(ctx, id)
}

func (c *Conn) Shuffle(ctx context.Context, id uint32) error {
	svc, ctx, err := c.target(ctx)
	if err != nil {
		return err
	}
	return svc.Shuffle(ctx, id)
}

func (c *Conn) Unshuffle(ctx context.Context, id uint32) error {
	svc, ctx, err := c.target(ctx)
	if err != nil {
		return err
	}
	return svc.Unshuffle(ctx, id)
}

func (c *Conn) IsShuffled(ctx context.Context, id uint32) (bool, error) {
	svc, ctx, err := c.target(ctx)
	if err != nil {
		return false, err
	}
	return svc.IsShuffled(ctx, id)
}

func (c *Conn) IncrementUseCount(ctx context.Context, id uint32) error {
	svc, ctx, err := c.target(ctx)
	if err != nil {
		return err
	}
	return svc.IncrementUseCount(ctx, id)
}

func (c *Conn) DecrementUseCount(ctx context.Context, id uint32) error {
	svc, ctx, err := c.target(ctx)
	if err != nil {
		return err
	}
	return svc.DecrementUseCount(ctx, id)
}

func (c *Conn) InsertItems(ctx context.Context, id, index uint32, objectIDs []string) error {
	svc, ctx, err := c.target(ctx)
	if err != nil {
		return err
	}
	return svc.InsertItems(ctx, id, index, objectIDs)
}

func (c *Conn) AppendItems(ctx context.Context, id uint32, objectIDs []string) error {
	svc, ctx, err := c.target(ctx)
	if err != nil {
		return err
	}
	return svc.AppendItems(ctx, id, objectIDs)
}

func (c *Conn) RemoveItem(ctx context.Context, id, index uint32) (bool, error) {
	svc, ctx, err := c.target(ctx)
	if err != nil {
		return false, err
	}
	return svc.RemoveItem(ctx, id, index)
}

func (c *Conn) GetItem(ctx context.Context, id, index uint32) (string, error) {
	svc, ctx, err := c.target(ctx)
	if err != nil {
		return "", err
	}
	return svc.GetItem(ctx, id, index)
}

func (c *Conn) GetItems(ctx context.Context, id, first uint32, last int32) ([]string, error) {
	svc, ctx, err := c.target(ctx)
	if err != nil {
		return nil, err
	}
	return svc.GetItems(ctx, id, first, last)
}

func (c *Conn) GetStarting(ctx context.Context, id uint32) (protocol.Position, bool, error) {
	svc, ctx, err := c.target(ctx)
	if err != nil {
		return protocol.Position{}, false, err
	}
	return svc.GetStarting(ctx, id)
}

func (c *Conn) GetLast(ctx context.Context, id uint32) (protocol.Position, bool, error) {
	svc, ctx, err := c.target(ctx)
	if err != nil {
		return protocol.Position{}, false, err
	}
	return svc.GetLast(ctx, id)
}

func (c *Conn) GetNext(ctx context.Context, id, index uint32) (protocol.Position, bool, error) {
	svc, ctx, err := c.target(ctx)
	if err != nil {
		return protocol.Position{}, false, err
	}
	return svc.GetNext(ctx, id, index)
}

func (c *Conn) GetPrev(ctx context.Context, id, index uint32) (protocol.Position, bool, error) {
	svc, ctx, err := c.target(ctx)
	if err != nil {
		return protocol.Position{}, false, err
	}
	return svc.GetPrev(ctx, id, index)
}

func (c *Conn) MoveItem(ctx context.Context, id, from, to uint32) (bool, error) {
	svc, ctx, err := c.target(ctx)
	if err != nil {
		return false, err
	}
	return svc.MoveItem(ctx, id, from, to)
}

func (c *Conn) GetSize(ctx context.Context, id uint32) (uint32, error) {
	svc, ctx, err := c.target(ctx)
	if err != nil {
		return 0, err
	}
	return svc.GetSize(ctx, id)
}

func (c *Conn) Clear(ctx context.Context, id uint32) error {
	svc, ctx, err := c.target(ctx)
	if err != nil {
		return err
	}
	return svc.Clear(ctx, id)
}
