package dbusbus

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"

	"github.com/desertthunder/plsd/internal/protocol"
)

// ErrorName is the D-Bus error name of every daemon error. The body carries (domain, code, message).
const ErrorName = protocol.Interface + ".Error"

const (
	busName      = "org.freedesktop.DBus"
	busInterface = "org.freedesktop.DBus"
	ownerChanged = busInterface + ".NameOwnerChanged"
)

// Bus errors meaning the daemon cannot be reached.
var unavailable = map[string]bool{
	"org.freedesktop.DBus.Error.ServiceUnknown": true,
	"org.freedesktop.DBus.Error.NameHasNoOwner": true,
	"org.freedesktop.DBus.Error.NoReply":        true,
	"org.freedesktop.DBus.Error.Disconnected":   true,
	"org.freedesktop.DBus.Error.Timeout":        true,
	"org.freedesktop.DBus.Error.UnknownObject":  true,
}

func toDBusError(err error) *dbus.Error {
	if err == nil {
		return nil
	}
	e := protocol.AsError(err)
	return &dbus.Error{Name: ErrorName, Body: []any{e.Domain, int32(e.Code), e.Message}}
}

func fromDBusError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var derr dbus.Error
	var pderr *dbus.Error
	switch {
	case errors.As(err, &pderr):
		derr = *pderr
	case errors.As(err, &derr):
	default:
		return protocol.Errorf(protocol.CodeTransportUnavailable, "%v", err)
	}

	if derr.Name == ErrorName && len(derr.Body) == 3 {
		domain, ok1 := derr.Body[0].(string)
		code, ok2 := derr.Body[1].(int32)
		msg, ok3 := derr.Body[2].(string)
		if ok1 && ok2 && ok3 {
			return &protocol.Error{Domain: domain, Code: protocol.Code(code), Message: msg}
		}
	}
	if unavailable[derr.Name] {
		return protocol.Errorf(protocol.CodeTransportUnavailable, "%s: %s", derr.Name, derr.Error())
	}
	return protocol.Errorf(protocol.CodeUnknown, "%s: %s", derr.Name, derr.Error())
}

// encodeSignal returns the member name and body of sig. Signals synthesized by clients are not sent.
func encodeSignal(sig protocol.Signal) (string, []any, bool) {
	switch s := sig.(type) {
	case protocol.PlaylistCreated:
		return s.Name(), []any{s.ID}, true
	case protocol.PlaylistDestroyed:
		return s.Name(), []any{s.ID}, true
	case protocol.DestructionFailed:
		return s.Name(), []any{s.ID}, true
	case protocol.ContentsChanged:
		return s.Name(), []any{s.ID, s.From, s.Removed, s.Inserted}, true
	case protocol.ItemMoved:
		return s.Name(), []any{s.ID, s.From, s.To}, true
	case protocol.PropertyChanged:
		return s.Name(), []any{s.ID, s.Property}, true
	case protocol.PlaylistImported:
		var domain, msg string
		var code int32
		if s.Err != nil {
			domain, code, msg = s.Err.Domain, int32(s.Err.Code), s.Err.Message
		}
		return s.Name(), []any{s.ImportID, s.PlaylistID, domain, code, msg}, true
	default:
		return "", nil, false
	}
}

// decodeSignal translates a bus signal. Signals of other senders are ignored; a malformed body panics.
func decodeSignal(s *dbus.Signal) (protocol.Signal, bool) {
	if s.Name == ownerChanged {
		var name, newOwner string
		mustScan(s, &name, new(string), &newOwner)
		if name != protocol.ServiceName {
			return nil, false
		}
		return protocol.ServiceOwnerChanged{Owner: newOwner}, true
	}

	member, ok := strings.CutPrefix(s.Name, protocol.Interface+".")
	if !ok || s.Path != protocol.ObjectPath {
		return nil, false
	}

	switch member {
	case protocol.SigPlaylistCreated:
		var sig protocol.PlaylistCreated
		mustScan(s, &sig.ID)
		return sig, true
	case protocol.SigPlaylistDestroyed:
		var sig protocol.PlaylistDestroyed
		mustScan(s, &sig.ID)
		return sig, true
	case protocol.SigDestructionFailed:
		var sig protocol.DestructionFailed
		mustScan(s, &sig.ID)
		return sig, true
	case protocol.SigContentsChanged:
		var sig protocol.ContentsChanged
		mustScan(s, &sig.ID, &sig.From, &sig.Removed, &sig.Inserted)
		return sig, true
	case protocol.SigItemMoved:
		var sig protocol.ItemMoved
		mustScan(s, &sig.ID, &sig.From, &sig.To)
		return sig, true
	case protocol.SigPropertyChanged:
		var sig protocol.PropertyChanged
		mustScan(s, &sig.ID, &sig.Property)
		return sig, true
	case protocol.SigPlaylistImported:
		var sig protocol.PlaylistImported
		var domain, msg string
		var code int32
		mustScan(s, &sig.ImportID, &sig.PlaylistID, &domain, &code, &msg)
		if domain != "" {
			sig.Err = &protocol.Error{Domain: domain, Code: protocol.Code(code), Message: msg}
		}
		return sig, true
	default:
		return nil, false
	}
}

func mustScan(s *dbus.Signal, dest ...any) {
	if err := dbus.Store(s.Body, dest...); err != nil {
		panic(fmt.Sprintf("malformed %s signal body %v: %v", s.Name, s.Body, err))
	}
}
