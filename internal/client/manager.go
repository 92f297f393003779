// package client keeps a local view of the playlist daemon.
//
// A [Manager] caches one [Playlist] handle per playlist id and turns daemon signals into local events. All
// callbacks run on the manager's loop goroutine, in signal order. Callbacks may call daemon methods through
// handles but must not wait on the manager itself (Playlist, Playlists, CreatePlaylist, Import, OnChange,
// Subscribe, Release).
package client

import (
	"context"
	"errors"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jonboulle/clockwork"

	"github.com/desertthunder/plsd/internal/protocol"
	"github.com/desertthunder/plsd/internal/shared"
)

// Conn is a connection to the daemon: the service methods plus its signal stream.
type Conn interface {
	protocol.Service
	// Signals delivers daemon signals and owner changes in order.
	Signals() <-chan protocol.Signal
	// ServiceOwner returns the unique name of the current daemon, or "".
	ServiceOwner(ctx context.Context) (string, error)
}

// ErrClosed is returned by manager operations after [Manager.Close].
var ErrClosed = errors.New("playlist manager closed")

const (
	DefaultStashTTL    = 30 * time.Second
	DefaultCallTimeout = 25 * time.Second
)

// EventKind classifies [Event].
type EventKind int

const (
	EventCreated EventKind = iota
	EventDestroyed
	EventDestructionFailed
)

func (k EventKind) String() string {
	switch k {
	case EventCreated:
		return "created"
	case EventDestroyed:
		return "destroyed"
	case EventDestructionFailed:
		return "destruction-failed"
	default:
		return "unknown"
	}
}

// Event is a manager level notification. Playlist is nil for a failed destruction of an uncached id.
type Event struct {
	Kind     EventKind
	ID       uint32
	Playlist *Playlist
}

// Option configures a [Manager].
type Option func(*Manager)

func WithLogger(l *log.Logger) Option {
	return func(m *Manager) { m.logger = shared.WithLogger(l, "component", "client") }
}

// WithClock sets the clock expiring stashed import results.
func WithClock(c clockwork.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithStashTTL bounds how long an import result waits for its import to be registered.
func WithStashTTL(d time.Duration) Option {
	return func(m *Manager) { m.stashTTL = d }
}

// WithCallTimeout bounds the calls the manager makes on its own behalf.
func WithCallTimeout(d time.Duration) Option {
	return func(m *Manager) { m.callTimeout = d }
}

type command interface{ isCommand() }

type baseCommand struct{}

func (baseCommand) isCommand() {}

type callCmd struct {
	baseCommand
	fn func()
}

type resyncCmd struct {
	baseCommand
	owner string
	gen   uint64
	ids   []uint32
}

type nameCmd struct {
	baseCommand
	id   uint32
	seq  uint64
	name string
}

type expireCmd struct {
	baseCommand
	importID uint32
}

// Manager is the client side cache of playlist handles.
type Manager struct {
	conn        Conn
	logger      *log.Logger
	clock       clockwork.Clock
	stashTTL    time.Duration
	callTimeout time.Duration

	cmdCh     chan command
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	// Owned by the loop goroutine.
	playlists   map[uint32]*Playlist
	subscribers []func(Event)
	imports     map[uint32]*Import
	stash       map[uint32]stashed
	lastOwner   string
	// resyncGen counts owner changes. Handles confirmed at a generation are kept by its resync.
	resyncGen uint64
}

// NewManager starts a manager reading signals from conn. The connection stays owned by the caller.
func NewManager(conn Conn, opts ...Option) *Manager {
	m := &Manager{
		conn:        conn,
		logger:      log.New(io.Discard),
		clock:       clockwork.NewRealClock(),
		stashTTL:    DefaultStashTTL,
		callTimeout: DefaultCallTimeout,
		cmdCh:       make(chan command, 64),
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
		playlists:   make(map[uint32]*Playlist),
		imports:     make(map[uint32]*Import),
		stash:       make(map[uint32]stashed),
	}
	for _, opt := range opts {
		opt(m)
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.callTimeout)
	defer cancel()
	owner, err := conn.ServiceOwner(ctx)
	if err != nil {
		m.logger.Warn("failed to query daemon owner", "error", err)
	}
	m.lastOwner = owner

	go m.run()
	return m
}

// Close stops the loop. Handles stay usable for daemon calls but receive no more notifications.
func (m *Manager) Close() {
	m.closeOnce.Do(func() { close(m.quit) })
	<-m.done
}

// Subscribe registers fn for manager events.
func (m *Manager) Subscribe(fn func(Event)) {
	m.do(func() { m.subscribers = append(m.subscribers, fn) })
}

// CreatePlaylist returns a handle to the playlist called name, which the daemon creates if needed.
// The handle holds one reference for the caller.
func (m *Manager) CreatePlaylist(ctx context.Context, name string) (*Playlist, error) {
	id, err := m.conn.CreatePlaylist(ctx, name)
	if err != nil {
		return nil, err
	}
	return m.register(id, name)
}

// DuplicatePlaylist copies p into a new playlist called name.
func (m *Manager) DuplicatePlaylist(ctx context.Context, p *Playlist, name string) (*Playlist, error) {
	id, err := m.conn.DuplicatePlaylist(ctx, p.id, name)
	if err != nil {
		return nil, err
	}
	return m.register(id, name)
}

// Playlist returns a handle for id, checking with the daemon when it is not cached.
func (m *Manager) Playlist(ctx context.Context, id uint32) (*Playlist, error) {
	var h *Playlist
	if err := m.do(func() {
		if h = m.playlists[id]; h != nil {
			h.refs++
		}
	}); err != nil {
		return nil, err
	}
	if h != nil {
		return h, nil
	}

	infos, err := m.conn.ListPlaylists(ctx, []uint32{id})
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, protocol.Errorf(protocol.CodeNotFound, "playlist %d not found", id)
	}
	return m.register(id, infos[0].Name)
}

// Playlists returns a handle for every playlist, ordered by id.
func (m *Manager) Playlists(ctx context.Context) ([]*Playlist, error) {
	infos, err := m.conn.ListPlaylists(ctx, nil)
	if err != nil {
		return nil, err
	}

	handles := make([]*Playlist, 0, len(infos))
	for _, info := range infos {
		h, err := m.register(info.ID, info.Name)
		if err != nil {
			return nil, err
		}
		handles = append(handles, h)
	}
	return handles, nil
}

// DestroyPlaylist drops the caller's reference to p and asks the daemon to destroy it. The handle stays
// cached until the daemon reports the outcome. The reference is gone even when the call fails.
func (m *Manager) DestroyPlaylist(ctx context.Context, p *Playlist) error {
	// The destroyed signal can arrive before the reply.
	p.Release()
	return m.conn.DestroyPlaylist(ctx, p.id)
}

// register caches id with a caller reference.
func (m *Manager) register(id uint32, name string) (*Playlist, error) {
	var h *Playlist
	err := m.do(func() {
		h = m.lookupOrCreate(id, name)
		h.gen = m.resyncGen
		h.refs++
	})
	return h, err
}

// lookupOrCreate must run on the loop. A new handle carries only the manager's reference.
func (m *Manager) lookupOrCreate(id uint32, name string) *Playlist {
	if h, ok := m.playlists[id]; ok {
		if name != "" {
			h.setName(name)
		}
		return h
	}

	h := &Playlist{m: m, id: id, refs: 1}
	m.playlists[id] = h
	if name != "" {
		h.setName(name)
	} else {
		m.refreshName(h)
	}
	return h
}

func (m *Manager) notify(ev Event) {
	for _, fn := range m.subscribers {
		fn(ev)
	}
}

func (m *Manager) run() {
	defer close(m.done)

	signals := m.conn.Signals()
	for {
		select {
		case <-m.quit:
			return
		case sig, ok := <-signals:
			if !ok {
				signals = nil
				continue
			}
			m.handleSignal(sig)
		case cmd := <-m.cmdCh:
			switch c := cmd.(type) {
			case callCmd:
				c.fn()
			case resyncCmd:
				m.handleResync(c)
			case nameCmd:
				if h, ok := m.playlists[c.id]; ok && h.nameSeq == c.seq {
					h.setName(c.name)
				}
			case expireCmd:
				if e, ok := m.stash[c.importID]; ok && m.clock.Since(e.at) >= m.stashTTL {
					delete(m.stash, c.importID)
				}
			}
		}
	}
}

// do runs fn on the loop and waits for it.
func (m *Manager) do(fn func()) error {
	finished := make(chan struct{})
	select {
	case m.cmdCh <- callCmd{fn: func() { fn(); close(finished) }}:
	case <-m.done:
		return ErrClosed
	}

	select {
	case <-finished:
		return nil
	case <-m.done:
		return ErrClosed
	}
}

// post enqueues cmd from outside the loop.
func (m *Manager) post(cmd command) {
	select {
	case m.cmdCh <- cmd:
	case <-m.done:
	}
}

func (m *Manager) handleSignal(sig protocol.Signal) {
	switch s := sig.(type) {
	case protocol.PlaylistCreated:
		h := m.lookupOrCreate(s.ID, "")
		h.gen = m.resyncGen
		m.notify(Event{Kind: EventCreated, ID: s.ID, Playlist: h})
	case protocol.PlaylistDestroyed:
		m.drop(s.ID)
	case protocol.DestructionFailed:
		m.notify(Event{Kind: EventDestructionFailed, ID: s.ID, Playlist: m.playlists[s.ID]})
	case protocol.PlaylistImported:
		m.handleImported(s)
	case protocol.ServiceOwnerChanged:
		m.handleOwnerChanged(s.Owner)
	default:
		id, ok := protocol.PlaylistID(sig)
		if !ok {
			return
		}
		h, ok := m.playlists[id]
		if !ok {
			return
		}
		if pc, ok := sig.(protocol.PropertyChanged); ok && pc.Property == protocol.PropName {
			m.refreshName(h)
		}
		for _, fn := range h.listeners {
			fn(sig)
		}
	}
}

// drop forgets id. Destroyed is reported only when someone besides the manager holds the handle.
func (m *Manager) drop(id uint32) {
	h, ok := m.playlists[id]
	if !ok {
		return
	}
	delete(m.playlists, id)
	h.destroyed.Store(true)
	if h.refs > 1 {
		m.notify(Event{Kind: EventDestroyed, ID: id, Playlist: h})
	}
}

func (m *Manager) handleOwnerChanged(owner string) {
	if owner == "" || owner == m.lastOwner {
		return
	}
	m.logger.Info("daemon owner changed", "from", m.lastOwner, "to", owner)
	m.lastOwner = owner
	m.resyncGen++
	gen := m.resyncGen
	m.failImports(protocol.ErrDaemonRestarted)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), m.callTimeout)
		defer cancel()

		infos, err := m.conn.ListPlaylists(ctx, nil)
		if err != nil {
			m.logger.Warn("failed to resync playlists", "owner", owner, "error", err)
			return
		}
		ids := make([]uint32, len(infos))
		for i, info := range infos {
			ids[i] = info.ID
		}
		m.post(resyncCmd{owner: owner, gen: gen, ids: ids})
	}()
}

func (m *Manager) handleResync(c resyncCmd) {
	if c.owner != m.lastOwner || c.gen != m.resyncGen {
		return
	}

	// Handles confirmed after the listing was requested are newer than it.
	var gone []uint32
	for id, h := range m.playlists {
		if h.gen < c.gen && !slices.Contains(c.ids, id) {
			gone = append(gone, id)
		}
	}
	slices.Sort(gone)
	for _, id := range gone {
		m.drop(id)
	}
	if len(gone) > 0 {
		m.logger.Info("dropped playlists lost in daemon restart", "count", len(gone))
	}
}

// refreshName fetches the name of h off the loop. Only the latest refresh is applied.
func (m *Manager) refreshName(h *Playlist) {
	h.nameSeq++
	seq := h.nameSeq
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), m.callTimeout)
		defer cancel()

		name, err := m.conn.GetName(ctx, h.id)
		if err != nil {
			m.logger.Debug("failed to refresh playlist name", "id", h.id, "error", err)
			return
		}
		m.post(nameCmd{id: h.id, seq: seq, name: name})
	}()
}
