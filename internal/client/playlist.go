package client

import (
	"context"
	"sync/atomic"

	"github.com/desertthunder/plsd/internal/protocol"
)

// Playlist is a handle to one daemon playlist. Every method except CachedName is a round trip.
type Playlist struct {
	m         *Manager
	id        uint32
	name      atomic.Pointer[string]
	destroyed atomic.Bool

	// Owned by the manager loop.
	refs      int
	gen       uint64
	nameSeq   uint64
	listeners []func(protocol.Signal)
}

func (p *Playlist) ID() uint32 { return p.id }

// CachedName returns the last name seen for the playlist without asking the daemon.
func (p *Playlist) CachedName() string {
	if s := p.name.Load(); s != nil {
		return *s
	}
	return ""
}

func (p *Playlist) setName(name string) { p.name.Store(&name) }

// Destroyed reports whether the manager has seen the playlist go away.
func (p *Playlist) Destroyed() bool { return p.destroyed.Load() }

// OnChange registers fn for contents, move and property notifications of this playlist.
func (p *Playlist) OnChange(fn func(protocol.Signal)) {
	p.m.do(func() { p.listeners = append(p.listeners, fn) })
}

// Release drops one caller reference.
func (p *Playlist) Release() {
	p.m.do(func() {
		if p.refs > 1 {
			p.refs--
		}
	})
}

func (p *Playlist) Name(ctx context.Context) (string, error) {
	return p.m.conn.GetName(ctx, p.id)
}

func (p *Playlist) SetName(ctx context.Context, name string) error {
	return p.m.conn.SetName(ctx, p.id, name)
}

func (p *Playlist) Repeat(ctx context.Context) (bool, error) {
	return p.m.conn.GetRepeat(ctx, p.id)
}

func (p *Playlist) SetRepeat(ctx context.Context, repeat bool) error {
	return p.m.conn.SetRepeat(ctx, p.id, repeat)
}

func (p *Playlist) Shuffle(ctx context.Context) error {
	return p.m.conn.Shuffle(ctx, p.id)
}

func (p *Playlist) Unshuffle(ctx context.Context) error {
	return p.m.conn.Unshuffle(ctx, p.id)
}

func (p *Playlist) IsShuffled(ctx context.Context) (bool, error) {
	return p.m.conn.IsShuffled(ctx, p.id)
}

// IncrementUseCount blocks destruction until the matching decrement or until this connection goes away.
func (p *Playlist) IncrementUseCount(ctx context.Context) error {
	return p.m.conn.IncrementUseCount(ctx, p.id)
}

func (p *Playlist) DecrementUseCount(ctx context.Context) error {
	return p.m.conn.DecrementUseCount(ctx, p.id)
}

func (p *Playlist) Insert(ctx context.Context, index uint32, objectIDs ...string) error {
	return p.m.conn.InsertItems(ctx, p.id, index, objectIDs)
}

func (p *Playlist) Append(ctx context.Context, objectIDs ...string) error {
	return p.m.conn.AppendItems(ctx, p.id, objectIDs)
}

func (p *Playlist) Remove(ctx context.Context, index uint32) (bool, error) {
	return p.m.conn.RemoveItem(ctx, p.id, index)
}

func (p *Playlist) Item(ctx context.Context, index uint32) (string, error) {
	return p.m.conn.GetItem(ctx, p.id, index)
}

// Items returns the inclusive range [first, last]; a negative last means the end of the playlist.
func (p *Playlist) Items(ctx context.Context, first uint32, last int32) ([]string, error) {
	return p.m.conn.GetItems(ctx, p.id, first, last)
}

func (p *Playlist) Starting(ctx context.Context) (protocol.Position, bool, error) {
	return p.m.conn.GetStarting(ctx, p.id)
}

func (p *Playlist) Last(ctx context.Context) (protocol.Position, bool, error) {
	return p.m.conn.GetLast(ctx, p.id)
}

func (p *Playlist) Next(ctx context.Context, index uint32) (protocol.Position, bool, error) {
	return p.m.conn.GetNext(ctx, p.id, index)
}

func (p *Playlist) Prev(ctx context.Context, index uint32) (protocol.Position, bool, error) {
	return p.m.conn.GetPrev(ctx, p.id, index)
}

func (p *Playlist) Move(ctx context.Context, from, to uint32) (bool, error) {
	return p.m.conn.MoveItem(ctx, p.id, from, to)
}

func (p *Playlist) Size(ctx context.Context) (uint32, error) {
	return p.m.conn.GetSize(ctx, p.id)
}

func (p *Playlist) Clear(ctx context.Context) error {
	return p.m.conn.Clear(ctx, p.id)
}
