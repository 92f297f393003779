package dbusbus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/desertthunder/plsd/internal/protocol"
	"github.com/desertthunder/plsd/internal/shared"
)

// Client is a [protocol.Service] reached over D-Bus.
type Client struct {
	conn *dbus.Conn
	obj  dbus.BusObject

	raw       chan *dbus.Signal
	out       chan protocol.Signal
	done      chan struct{}
	closeOnce sync.Once
}

var _ protocol.Service = (*Client)(nil)

// Dial subscribes to the daemon's signals and to ownership changes of the service name.
func Dial(conn *dbus.Conn) (*Client, error) {
	c := &Client{
		conn: conn,
		obj:  conn.Object(protocol.ServiceName, protocol.ObjectPath),
		raw:  make(chan *dbus.Signal, 64),
		out:  make(chan protocol.Signal, 64),
		done: make(chan struct{}),
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface(protocol.Interface),
		dbus.WithMatchObjectPath(protocol.ObjectPath),
	); err != nil {
		return nil, fmt.Errorf("failed to subscribe to signals: %w", err)
	}
	if err := conn.AddMatchSignal(
		dbus.WithMatchSender(busName),
		dbus.WithMatchInterface(busInterface),
		dbus.WithMatchMember("NameOwnerChanged"),
		dbus.WithMatchArg(0, protocol.ServiceName),
	); err != nil {
		return nil, fmt.Errorf("failed to watch %s: %w", protocol.ServiceName, err)
	}

	conn.Signal(c.raw)
	go c.translate()
	return c, nil
}

// Name returns the unique bus name of the connection.
func (c *Client) Name() string {
	return c.conn.Names()[0]
}

// Signals delivers daemon signals and [protocol.ServiceOwnerChanged] in arrival order.
func (c *Client) Signals() <-chan protocol.Signal { return c.out }

// ServiceOwner returns the unique name of the daemon, or "" when none is running.
func (c *Client) ServiceOwner(ctx context.Context) (string, error) {
	var owner string
	err := c.conn.BusObject().CallWithContext(ctx, busInterface+".GetNameOwner", 0, protocol.ServiceName).Store(&owner)
	if err == nil {
		return owner, nil
	}
	if errors.Is(fromDBusError(err), protocol.ErrTransportUnavailable) {
		return "", nil
	}
	return "", fromDBusError(err)
}

// Close stops signal delivery. The bus connection stays open.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.RemoveSignal(c.raw)
	})
	return nil
}

func (c *Client) translate() {
	defer close(c.out)

	for {
		select {
		case <-c.done:
			return
		case s, ok := <-c.raw:
			if !ok {
				return
			}
			sig, ok := decodeSignal(s)
			if !ok {
				continue
			}
			select {
			case c.out <- sig:
			case <-c.done:
				return
			}
		}
	}
}

// OwnerPID returns the process id of the daemon owning the service name.
func OwnerPID(ctx context.Context, conn *dbus.Conn) (uint32, error) {
	var pid uint32
	err := conn.BusObject().CallWithContext(ctx, busInterface+".GetConnectionUnixProcessID", 0, protocol.ServiceName).Store(&pid)
	if err != nil {
		if errors.Is(fromDBusError(err), protocol.ErrTransportUnavailable) {
			return 0, shared.ErrNotRunning
		}
		return 0, fmt.Errorf("failed to query daemon pid: %w", err)
	}
	return pid, nil
}

func (c *Client) call(ctx context.Context, method string, args ...any) *dbus.Call {
	return c.obj.CallWithContext(ctx, protocol.Interface+"."+method, 0, args...)
}

// reply stores the results of call. A reply body that does not match the method panics, like a
// malformed signal.
func reply(call *dbus.Call, ret ...any) error {
	if call.Err != nil {
		return fromDBusError(call.Err)
	}
	if len(ret) == 0 {
		return nil
	}
	if err := dbus.Store(call.Body, ret...); err != nil {
		panic(fmt.Sprintf("malformed %s reply %v: %v", call.Method, call.Body, err))
	}
	return nil
}

func (c *Client) CreatePlaylist(ctx context.Context, name string) (uint32, error) {
	var id uint32
	err := reply(c.call(ctx, "create_playlist", name), &id)
	return id, err
}

func (c *Client) DuplicatePlaylist(ctx context.Context, id uint32, name string) (uint32, error) {
	var newID uint32
	err := reply(c.call(ctx, "duplicate_playlist", id, name), &newID)
	return newID, err
}

// DestroyPlaylist does not wait for a reply; the outcome is signalled.
func (c *Client) DestroyPlaylist(ctx context.Context, id uint32) error {
	call := c.obj.CallWithContext(ctx, protocol.Interface+".destroy_playlist", dbus.FlagNoReplyExpected, id)
	return reply(call)
}

func (c *Client) ListPlaylists(ctx context.Context, ids []uint32) ([]protocol.PlaylistInfo, error) {
	if ids == nil {
		ids = []uint32{}
	}
	var infos []protocol.PlaylistInfo
	err := reply(c.call(ctx, "list_playlists", ids), &infos)
	return infos, err
}

func (c *Client) ImportPlaylist(ctx context.Context, uri, baseURI string) (uint32, error) {
	var id uint32
	err := reply(c.call(ctx, "import_playlist", uri, baseURI), &id)
	return id, err
}

func (c *Client) CancelImport(ctx context.Context, importID uint32) error {
	return reply(c.call(ctx, "cancel_import", importID))
}

func (c *Client) SetName(ctx context.Context, id uint32, name string) error {
	return reply(c.call(ctx, "set_name", id, name))
}

func (c *Client) GetName(ctx context.Context, id uint32) (string, error) {
	var name string
	err := reply(c.call(ctx, "get_name", id), &name)
	return name, err
}

func (c *Client) SetRepeat(ctx context.Context, id uint32, repeat bool) error {
	return reply(c.call(ctx, "set_repeat", id, repeat))
}

func (c *Client) GetRepeat(ctx context.Context, id uint32) (bool, error) {
	var repeat bool
	err := reply(c.call(ctx, "get_repeat", id), &repeat)
	return repeat, err
}

func (c *Client) Shuffle(ctx context.Context, id uint32) error {
	return reply(c.call(ctx, "shuffle", id))
}

func (c *Client) Unshuffle(ctx context.Context, id uint32) error {
	return reply(c.call(ctx, "unshuffle", id))
}

func (c *Client) IsShuffled(ctx context.Context, id uint32) (bool, error) {
	var shuffled bool
	err := reply(c.call(ctx, "is_shuffled", id), &shuffled)
	return shuffled, err
}

func (c *Client) IncrementUseCount(ctx context.Context, id uint32) error {
	return reply(c.call(ctx, "increment_use_count", id))
}

func (c *Client) DecrementUseCount(ctx context.Context, id uint32) error {
	return reply(c.call(ctx, "decrement_use_count", id))
}

func (c *Client) InsertItems(ctx context.Context, id, index uint32, objectIDs []string) error {
	return reply(c.call(ctx, "insert_item", id, index, objectIDs))
}

func (c *Client) AppendItems(ctx context.Context, id uint32, objectIDs []string) error {
	return reply(c.call(ctx, "append_item", id, objectIDs))
}

func (c *Client) RemoveItem(ctx context.Context, id, index uint32) (bool, error) {
	var removed bool
	err := reply(c.call(ctx, "remove_item", id, index), &removed)
	return removed, err
}

func (c *Client) GetItem(ctx context.Context, id, index uint32) (string, error) {
	var oid string
	err := reply(c.call(ctx, "get_item", id, index), &oid)
	return oid, err
}

func (c *Client) GetItems(ctx context.Context, id, first uint32, last int32) ([]string, error) {
	var ids []string
	err := reply(c.call(ctx, "get_items", id, first, last), &ids)
	return ids, err
}

func (c *Client) GetStarting(ctx context.Context, id uint32) (protocol.Position, bool, error) {
	return c.position(c.call(ctx, "get_starting", id))
}

func (c *Client) GetLast(ctx context.Context, id uint32) (protocol.Position, bool, error) {
	return c.position(c.call(ctx, "get_last", id))
}

func (c *Client) GetNext(ctx context.Context, id, index uint32) (protocol.Position, bool, error) {
	return c.position(c.call(ctx, "get_next", id, index))
}

func (c *Client) GetPrev(ctx context.Context, id, index uint32) (protocol.Position, bool, error) {
	return c.position(c.call(ctx, "get_prev", id, index))
}

func (c *Client) position(call *dbus.Call) (protocol.Position, bool, error) {
	var pos protocol.Position
	var ok bool
	err := reply(call, &pos.Index, &pos.ObjectID, &ok)
	return pos, ok, err
}

func (c *Client) MoveItem(ctx context.Context, id, from, to uint32) (bool, error) {
	var moved bool
	err := reply(c.call(ctx, "move", id, from, to), &moved)
	return moved, err
}

func (c *Client) GetSize(ctx context.Context, id uint32) (uint32, error) {
	var n uint32
	err := reply(c.call(ctx, "get_size", id), &n)
	return n, err
}

func (c *Client) Clear(ctx context.Context, id uint32) error {
	return reply(c.call(ctx, "clear", id))
}
