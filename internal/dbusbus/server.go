// package dbusbus carries the playlist service over D-Bus.
//
// The daemon side ([Serve]) exports a [protocol.Service] under [protocol.ServiceName] with snake_case member
// names and broadcasts signals. The client side ([Dial]) implements [protocol.Service] through method calls.
// Daemon errors travel as [ErrorName] errors whose body is (domain, code, message).
package dbusbus

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/godbus/dbus/v5"

	"github.com/desertthunder/plsd/internal/protocol"
	"github.com/desertthunder/plsd/internal/shared"
)

// Connect opens a connection to the session or system bus with in-order signal delivery.
func Connect(kind string) (*dbus.Conn, error) {
	opt := dbus.WithSignalHandler(dbus.NewSequentialSignalHandler())

	var conn *dbus.Conn
	var err error
	switch kind {
	case shared.BusSystem:
		conn, err = dbus.ConnectSystemBus(opt)
	default:
		conn, err = dbus.ConnectSessionBus(opt)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to the %s bus: %w", kind, err)
	}
	return conn, nil
}

// Server exports a service on a bus connection.
type Server struct {
	conn   *dbus.Conn
	svc    protocol.Service
	logger *log.Logger

	sigCh     chan *dbus.Signal
	done      chan struct{}
	closeOnce sync.Once
}

// Serve exports svc and claims the service name. It fails with [shared.ErrAlreadyRunning] when another
// connection owns the name. When svc implements [protocol.PeerWatcher] it is told about vanished peers.
func Serve(conn *dbus.Conn, svc protocol.Service, logger *log.Logger) (*Server, error) {
	s := &Server{
		conn:   conn,
		svc:    svc,
		logger: shared.WithLogger(logger, "component", "dbus"),
		sigCh:  make(chan *dbus.Signal, 64),
		done:   make(chan struct{}),
	}

	if err := conn.ExportWithMap(&object{svc: svc}, methodNames, protocol.ObjectPath, protocol.Interface); err != nil {
		return nil, fmt.Errorf("failed to export service: %w", err)
	}

	reply, err := conn.RequestName(protocol.ServiceName, dbus.NameFlagDoNotQueue)
	if err != nil {
		s.unexport()
		return nil, fmt.Errorf("failed to request %s: %w", protocol.ServiceName, err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		s.unexport()
		return nil, fmt.Errorf("%w: %s is owned by another process", shared.ErrAlreadyRunning, protocol.ServiceName)
	}

	if w, ok := svc.(protocol.PeerWatcher); ok {
		if err := conn.AddMatchSignal(
			dbus.WithMatchSender(busName),
			dbus.WithMatchInterface(busInterface),
			dbus.WithMatchMember("NameOwnerChanged"),
		); err != nil {
			s.logger.Warn("cannot watch peers, use counts of vanished clients stay held", "error", err)
		} else {
			conn.Signal(s.sigCh)
			go s.watchPeers(w)
		}
	}

	s.logger.Info("serving", "name", protocol.ServiceName, "path", protocol.ObjectPath)
	return s, nil
}

// Emit broadcasts sig. Failures are logged.
func (s *Server) Emit(sig protocol.Signal) {
	member, body, ok := encodeSignal(sig)
	if !ok {
		return
	}
	if err := s.conn.Emit(protocol.ObjectPath, protocol.Interface+"."+member, body...); err != nil {
		s.logger.Error("failed to emit signal", "signal", member, "error", err)
	}
}

// Close releases the service name and stops watching peers.
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.RemoveSignal(s.sigCh)
		s.unexport()
		_, err = s.conn.ReleaseName(protocol.ServiceName)
	})
	return err
}

func (s *Server) unexport() {
	if err := s.conn.Export(nil, protocol.ObjectPath, protocol.Interface); err != nil {
		s.logger.Debug("failed to unexport", "error", err)
	}
}

func (s *Server) watchPeers(w protocol.PeerWatcher) {
	for {
		select {
		case <-s.done:
			return
		case sig, ok := <-s.sigCh:
			if !ok {
				return
			}
			if peer, gone := vanishedPeer(sig); gone {
				s.logger.Debug("peer vanished", "peer", peer)
				w.PeerGone(peer)
			}
		}
	}
}

// vanishedPeer reports the unique name of a disconnected connection.
func vanishedPeer(sig *dbus.Signal) (string, bool) {
	if sig.Name != ownerChanged || len(sig.Body) != 3 {
		return "", false
	}
	name, _ := sig.Body[0].(string)
	newOwner, _ := sig.Body[2].(string)
	return name, strings.HasPrefix(name, ":") && newOwner == ""
}

var methodNames = map[string]string{
	"CreatePlaylist":    "create_playlist",
	"DuplicatePlaylist": "duplicate_playlist",
	"DestroyPlaylist":   "destroy_playlist",
	"ListPlaylists":     "list_playlists",
	"ImportPlaylist":    "import_playlist",
	"CancelImport":      "cancel_import",
	"SetName":           "set_name",
	"GetName":           "get_name",
	"SetRepeat":         "set_repeat",
	"GetRepeat":         "get_repeat",
	"Shuffle":           "shuffle",
	"Unshuffle":         "unshuffle",
	"IsShuffled":        "is_shuffled",
	"IncrementUseCount": "increment_use_count",
	"DecrementUseCount": "decrement_use_count",
	"InsertItem":        "insert_item",
	"AppendItem":        "append_item",
	"RemoveItem":        "remove_item",
	"GetItem":           "get_item",
	"GetItems":          "get_items",
	"GetStarting":       "get_starting",
	"GetLast":           "get_last",
	"GetNext":           "get_next",
	"GetPrev":           "get_prev",
	"Move":              "move",
	"GetSize":           "get_size",
	"Clear":             "clear",
}

// object adapts a [protocol.Service] to the method shapes godbus exports.
type object struct {
	svc protocol.Service
}

func callContext(sender dbus.Sender) context.Context {
	return protocol.WithSender(context.Background(), string(sender))
}

func (o *object) CreatePlaylist(sender dbus.Sender, name string) (uint32, *dbus.Error) {
	id, err := o.svc.CreatePlaylist(callContext(sender), name)
	return id, toDBusError(err)
}

func (o *object) DuplicatePlaylist(sender dbus.Sender, id uint32, name string) (uint32, *dbus.Error) {
	newID, err := o.svc.DuplicatePlaylist(callContext(sender), id, name)
	return newID, toDBusError(err)
}

// DestroyPlaylist is called with FlagNoReplyExpected, so godbus sends no reply.
func (o *object) DestroyPlaylist(sender dbus.Sender, id uint32) *dbus.Error {
	return toDBusError(o.svc.DestroyPlaylist(callContext(sender), id))
}

func (o *object) ListPlaylists(sender dbus.Sender, ids []uint32) ([]protocol.PlaylistInfo, *dbus.Error) {
	infos, err := o.svc.ListPlaylists(callContext(sender), ids)
	if infos == nil {
		infos = []protocol.PlaylistInfo{}
	}
	return infos, toDBusError(err)
}

func (o *object) ImportPlaylist(sender dbus.Sender, uri, baseURI string) (uint32, *dbus.Error) {
	id, err := o.svc.ImportPlaylist(callContext(sender), uri, baseURI)
	return id, toDBusError(err)
}

func (o *object) CancelImport(sender dbus.Sender, importID uint32) *dbus.Error {
	return toDBusError(o.svc.CancelImport(callContext(sender), importID))
}

func (o *object) SetName(sender dbus.Sender, id uint32, name string) *dbus.Error {
	return toDBusError(o.svc.SetName(callContext(sender), id, name))
}

func (o *object) GetName(sender dbus.Sender, id uint32) (string, *dbus.Error) {
	name, err := o.svc.GetName(callContext(sender), id)
	return name, toDBusError(err)
}

func (o *object) SetRepeat(sender dbus.Sender, id uint32, repeat bool) *dbus.Error {
	return toDBusError(o.svc.SetRepeat(callContext(sender), id, repeat))
}

func (o *object) GetRepeat(sender dbus.Sender, id uint32) (bool, *dbus.Error) {
	repeat, err := o.svc.GetRepeat(callContext(sender), id)
	return repeat, toDBusError(err)
}

func (o *object) Shuffle(sender dbus.Sender, id uint32) *dbus.Error {
	return toDBusError(o.svc.Shuffle(callContext(sender), id))
}

func (o *object) Unshuffle(sender dbus.Sender, id uint32) *dbus.Error {
	return toDBusError(o.svc.Unshuffle(callContext(sender), id))
}

func (o *object) IsShuffled(sender dbus.Sender, id uint32) (bool, *dbus.Error) {
	shuffled, err := o.svc.IsShuffled(callContext(sender), id)
	return shuffled, toDBusError(err)
}

func (o *object) IncrementUseCount(sender dbus.Sender, id uint32) *dbus.Error {
	return toDBusError(o.svc.IncrementUseCount(callContext(sender), id))
}

func (o *object) DecrementUseCount(sender dbus.Sender, id uint32) *dbus.Error {
	return toDBusError(o.svc.DecrementUseCount(callContext(sender), id))
}

func (o *object) InsertItem(sender dbus.Sender, id, index uint32, objectIDs []string) *dbus.Error {
	return toDBusError(o.svc.InsertItems(callContext(sender), id, index, objectIDs))
}

func (o *object) AppendItem(sender dbus.Sender, id uint32, objectIDs []string) *dbus.Error {
	return toDBusError(o.svc.AppendItems(callContext(sender), id, objectIDs))
}

func (o *object) RemoveItem(sender dbus.Sender, id, index uint32) (bool, *dbus.Error) {
	removed, err := o.svc.RemoveItem(callContext(sender), id, index)
	return removed, toDBusError(err)
}

func (o *object) GetItem(sender dbus.Sender, id, index uint32) (string, *dbus.Error) {
	oid, err := o.svc.GetItem(callContext(sender), id, index)
	return oid, toDBusError(err)
}

func (o *object) GetItems(sender dbus.Sender, id, first uint32, last int32) ([]string, *dbus.Error) {
	ids, err := o.svc.GetItems(callContext(sender), id, first, last)
	if ids == nil {
		ids = []string{}
	}
	return ids, toDBusError(err)
}

func (o *object) GetStarting(sender dbus.Sender, id uint32) (uint32, string, bool, *dbus.Error) {
	return position(o.svc.GetStarting(callContext(sender), id))
}

func (o *object) GetLast(sender dbus.Sender, id uint32) (uint32, string, bool, *dbus.Error) {
	return position(o.svc.GetLast(callContext(sender), id))
}

func (o *object) GetNext(sender dbus.Sender, id, index uint32) (uint32, string, bool, *dbus.Error) {
	return position(o.svc.GetNext(callContext(sender), id, index))
}

func (o *object) GetPrev(sender dbus.Sender, id, index uint32) (uint32, string, bool, *dbus.Error) {
	return position(o.svc.GetPrev(callContext(sender), id, index))
}

func (o *object) Move(sender dbus.Sender, id, from, to uint32) (bool, *dbus.Error) {
	moved, err := o.svc.MoveItem(callContext(sender), id, from, to)
	return moved, toDBusError(err)
}

func (o *object) GetSize(sender dbus.Sender, id uint32) (uint32, *dbus.Error) {
	n, err := o.svc.GetSize(callContext(sender), id)
	return n, toDBusError(err)
}

func (o *object) Clear(sender dbus.Sender, id uint32) *dbus.Error {
	return toDBusError(o.svc.Clear(callContext(sender), id))
}

func position(pos protocol.Position, ok bool, err error) (uint32, string, bool, *dbus.Error) {
	return pos.Index, pos.ObjectID, ok, toDBusError(err)
}
