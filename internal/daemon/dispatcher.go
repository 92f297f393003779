package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"github.com/desertthunder/plsd/internal/metrics"
	"github.com/desertthunder/plsd/internal/playlist"
	"github.com/desertthunder/plsd/internal/protocol"
	"github.com/desertthunder/plsd/internal/shared"
	"github.com/desertthunder/plsd/internal/source"
	"github.com/desertthunder/plsd/internal/storage"
)

// Persister stores playlist records. [storage.Store] is the production implementation.
type Persister interface {
	Save(p *playlist.Playlist) error
	Remove(id uint32) error
	LoadAll() ([]*playlist.Playlist, uint32, error)
}

// Emitter broadcasts signals to every client. Emit is called from the dispatcher goroutine and must not block
// on clients.
type Emitter interface {
	Emit(sig protocol.Signal)
}

// EmitterFunc adapts a function to [Emitter].
type EmitterFunc func(sig protocol.Signal)

func (f EmitterFunc) Emit(sig protocol.Signal) { f(sig) }

// ErrStopped is returned by calls made after [Dispatcher.Stop].
var ErrStopped = protocol.Errorf(protocol.CodeTransportUnavailable, "playlist daemon is shutting down")

// Option configures a [Dispatcher].
type Option func(*Dispatcher)

// WithClock sets the clock driving the save timers.
func WithClock(c clockwork.Clock) Option {
	return func(d *Dispatcher) { d.clock = c }
}

// WithSaveDelay sets the debounce period of saves.
func WithSaveDelay(delay time.Duration) Option {
	return func(d *Dispatcher) { d.saveDelay = delay }
}

// WithResolver sets the import source resolver.
func WithResolver(r source.Resolver) Option {
	return func(d *Dispatcher) { d.resolver = r }
}

type command interface{ isCommand() }

type baseCommand struct{}

func (baseCommand) isCommand() {}

type callCmd struct {
	baseCommand
	fn func()
}

type saveCmd struct {
	baseCommand
	id uint32
}

type importDoneCmd struct {
	baseCommand
	importID uint32
	result   *source.Result
	err      error
}

type peerGoneCmd struct {
	baseCommand
	sender string
}

type stopCmd struct {
	baseCommand
	errCh chan error
}

// Dispatcher owns every playlist and implements [protocol.Service].
type Dispatcher struct {
	store     Persister
	logger    *log.Logger
	clock     clockwork.Clock
	saveDelay time.Duration
	resolver  source.Resolver
	emitter   Emitter

	cmdCh   chan command
	started chan struct{}
	done    chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc

	// Owned by the loop goroutine.
	playlists    map[uint32]*playlist.Playlist
	byName       map[string]uint32
	lastID       uint32
	imports      map[uint32]*importSession
	lastImportID uint32
	holders      *holders
	saver        *storage.Saver
	saveFailures rate.Sometimes
}

var _ protocol.Service = (*Dispatcher)(nil)
var _ protocol.PeerWatcher = (*Dispatcher)(nil)

// New creates a Dispatcher. Call [Dispatcher.Open] to load persisted playlists and [Dispatcher.Start] to serve.
func New(store Persister, logger *log.Logger, opts ...Option) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		store:        store,
		logger:       shared.WithLogger(logger, "component", "daemon"),
		clock:        clockwork.NewRealClock(),
		saveDelay:    storage.DefaultSaveDelay,
		resolver:     source.NewFileResolver(),
		emitter:      EmitterFunc(func(protocol.Signal) {}),
		cmdCh:        make(chan command, 256),
		started:      make(chan struct{}),
		done:         make(chan struct{}),
		ctx:          ctx,
		cancel:       cancel,
		playlists:    make(map[uint32]*playlist.Playlist),
		byName:       make(map[string]uint32),
		imports:      make(map[uint32]*importSession),
		holders:      newHolders(),
		saveFailures: rate.Sometimes{First: 1, Interval: time.Minute},
	}
	for _, opt := range opts {
		opt(d)
	}
	d.saver = storage.NewSaver(d.clock, d.saveDelay, func(id uint32) { d.post(saveCmd{id: id}) })
	return d
}

// Open loads every persisted playlist. It must be called before [Dispatcher.Start].
func (d *Dispatcher) Open() error {
	loaded, maxID, err := d.store.LoadAll()
	if err != nil {
		return fmt.Errorf("failed to load playlists: %w", err)
	}

	for _, p := range loaded {
		if other, taken := d.byName[p.Name]; taken {
			d.logger.Warn("skipping playlist with duplicate name", "id", p.ID, "name", p.Name, "kept", other)
			continue
		}
		d.playlists[p.ID] = p
		d.byName[p.Name] = p.ID
	}
	d.lastID = maxID
	metrics.PlaylistsLoaded.Set(float64(len(d.playlists)))

	d.logger.Info("loaded playlists", "count", len(d.playlists), "last_id", d.lastID)
	return nil
}

// Start runs the dispatcher loop, broadcasting signals through e.
func (d *Dispatcher) Start(e Emitter) {
	if e != nil {
		d.emitter = e
	}
	go d.run()
	close(d.started)
}

// Stop ends the loop, cancels running imports and saves every dirty playlist.
func (d *Dispatcher) Stop() error {
	select {
	case <-d.started:
	default:
		return nil
	}

	errCh := make(chan error, 1)
	select {
	case d.cmdCh <- stopCmd{errCh: errCh}:
	case <-d.done:
		return nil
	}

	select {
	case err := <-errCh:
		<-d.done
		return err
	case <-d.done:
		return nil
	}
}

// Done is closed once the loop has exited.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

// PeerGone releases the use counts raised by sender.
func (d *Dispatcher) PeerGone(sender string) {
	d.post(peerGoneCmd{sender: sender})
}

func (d *Dispatcher) run() {
	defer close(d.done)

	for cmd := range d.cmdCh {
		switch c := cmd.(type) {
		case callCmd:
			c.fn()
		case saveCmd:
			d.handleSave(c.id)
		case importDoneCmd:
			d.handleImportDone(c)
		case peerGoneCmd:
			d.handlePeerGone(c.sender)
		case stopCmd:
			c.errCh <- d.handleStop()
			return
		default:
			d.logger.Error("unknown command", "type", fmt.Sprintf("%T", cmd))
		}
	}
}

// post enqueues cmd unless the loop has exited.
func (d *Dispatcher) post(cmd command) {
	select {
	case d.cmdCh <- cmd:
	case <-d.done:
	}
}

// do runs fn on the loop and waits for its result.
func (d *Dispatcher) do(ctx context.Context, method string, fn func() error) error {
	errCh := make(chan error, 1)
	call := callCmd{fn: func() { errCh <- fn() }}

	select {
	case d.cmdCh <- call:
	case <-ctx.Done():
		return ctx.Err()
	case <-d.done:
		return ErrStopped
	}

	var err error
	select {
	case err = <-errCh:
	case <-d.done:
		select {
		case err = <-errCh:
		default:
			err = ErrStopped
		}
	}

	metrics.CallsTotal.WithLabelValues(method, metrics.Status(err)).Inc()
	return err
}

func (d *Dispatcher) emit(sig protocol.Signal) {
	metrics.SignalsTotal.WithLabelValues(sig.Name()).Inc()
	d.logger.Debug("emit", "signal", protocol.Describe(sig))
	d.emitter.Emit(sig)
}

// touched schedules a save if p changed.
func (d *Dispatcher) touched(p *playlist.Playlist) {
	if p.Dirty() {
		d.saver.Schedule(p.ID)
	}
}

func (d *Dispatcher) handleSave(id uint32) {
	p, ok := d.playlists[id]
	if !ok || !p.Dirty() {
		return
	}

	if err := d.store.Save(p); err != nil {
		metrics.SavesTotal.WithLabelValues(metrics.StatusError).Inc()
		d.saveFailures.Do(func() {
			d.logger.Error("failed to save playlist, will retry", "id", id, "error", err)
		})
		d.saver.Schedule(id)
		return
	}

	metrics.SavesTotal.WithLabelValues(metrics.StatusOK).Inc()
	p.MarkClean()
}

func (d *Dispatcher) handlePeerGone(sender string) {
	counts := d.holders.release(sender)
	defer metrics.PeersTracked.Set(float64(d.holders.len()))

	for id, n := range counts {
		p, ok := d.playlists[id]
		if !ok {
			continue
		}
		released := min(n, p.UseCount)
		p.UseCount -= released
		d.logger.Info("released use count of vanished peer", "peer", sender, "id", id, "count", released)
	}
}

func (d *Dispatcher) handleStop() error {
	d.cancel()
	for id := range d.imports {
		d.imports[id].cancel()
		delete(d.imports, id)
	}
	d.saver.Stop()

	var errs []error
	for id, p := range d.playlists {
		if !p.Dirty() {
			continue
		}
		if err := d.store.Save(p); err != nil {
			errs = append(errs, fmt.Errorf("playlist %d: %w", id, err))
			continue
		}
		p.MarkClean()
	}

	if err := errors.Join(errs...); err != nil {
		d.logger.Error("failed to save playlists on shutdown", "error", err)
		return err
	}
	d.logger.Info("dispatcher stopped", "playlists", len(d.playlists))
	return nil
}
