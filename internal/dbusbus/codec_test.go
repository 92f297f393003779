package dbusbus

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/godbus/dbus/v5"

	"github.com/desertthunder/plsd/internal/protocol"
)

func TestErrors(t *testing.T) {
	t.Run("daemon errors keep domain and code", func(t *testing.T) {
		derr := toDBusError(protocol.Errorf(protocol.CodeInUse, "playlist 4 is in use"))
		if derr.Name != ErrorName {
			t.Fatalf("name = %q", derr.Name)
		}

		err := fromDBusError(*derr)
		if !errors.Is(err, protocol.ErrInUse) {
			t.Fatalf("expected ErrInUse, got %v", err)
		}
		if got := protocol.AsError(err).Message; got != "playlist 4 is in use" {
			t.Errorf("message = %q", got)
		}
		if !errors.Is(fromDBusError(derr), protocol.ErrInUse) {
			t.Error("pointer form should decode the same way")
		}
	})

	t.Run("foreign errors become unknown", func(t *testing.T) {
		derr := toDBusError(fmt.Errorf("disk on fire"))
		if !errors.Is(fromDBusError(*derr), protocol.Errorf(protocol.CodeUnknown, "")) {
			t.Errorf("expected an unknown error, got %v", fromDBusError(*derr))
		}
	})

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"service unknown", dbus.Error{Name: "org.freedesktop.DBus.Error.ServiceUnknown", Body: []any{"no"}}, protocol.ErrTransportUnavailable},
		{"no reply", &dbus.Error{Name: "org.freedesktop.DBus.Error.NoReply"}, protocol.ErrTransportUnavailable},
		{"other bus error", dbus.Error{Name: "org.freedesktop.DBus.Error.AccessDenied"}, protocol.Errorf(protocol.CodeUnknown, "")},
		{"bad body", dbus.Error{Name: ErrorName, Body: []any{"plsd", "4", "x"}}, protocol.Errorf(protocol.CodeUnknown, "")},
		{"connection closed", errors.New("dbus: connection closed by user"), protocol.ErrTransportUnavailable},
		{"deadline", context.DeadlineExceeded, context.DeadlineExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fromDBusError(tt.err)
			if tt.want == nil {
				if got != nil {
					t.Errorf("expected nil, got %v", got)
				}
				return
			}
			if !errors.Is(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func signalOf(member string, body ...any) *dbus.Signal {
	return &dbus.Signal{
		Sender: ":1.5",
		Path:   protocol.ObjectPath,
		Name:   protocol.Interface + "." + member,
		Body:   body,
	}
}

func TestSignalCodec(t *testing.T) {
	signals := []protocol.Signal{
		protocol.PlaylistCreated{ID: 1},
		protocol.PlaylistDestroyed{ID: 2},
		protocol.DestructionFailed{ID: 3},
		protocol.ContentsChanged{ID: 4, From: 2, Removed: 1, Inserted: 3},
		protocol.ItemMoved{ID: 5, From: 0, To: 7},
		protocol.PropertyChanged{ID: 6, Property: protocol.PropRepeat},
		protocol.PlaylistImported{ImportID: 7, PlaylistID: 8},
	}
	for _, sig := range signals {
		t.Run(sig.Name(), func(t *testing.T) {
			member, body, ok := encodeSignal(sig)
			if !ok || member != sig.Name() {
				t.Fatalf("encode = %q, %v", member, ok)
			}
			got, ok := decodeSignal(signalOf(member, body...))
			if !ok || got != sig {
				t.Errorf("decoded %v, want %v", got, sig)
			}
		})
	}

	t.Run("failed import", func(t *testing.T) {
		sig := protocol.PlaylistImported{ImportID: 9, Err: protocol.Errorf(protocol.CodeParseFailed, "bad file")}
		member, body, _ := encodeSignal(sig)
		got, ok := decodeSignal(signalOf(member, body...))
		imported, isImported := got.(protocol.PlaylistImported)
		if !ok || !isImported || imported.Err == nil {
			t.Fatalf("decoded %v", got)
		}
		if !errors.Is(imported.Err, protocol.ErrParseFailed) || imported.Err.Message != "bad file" {
			t.Errorf("error = %v", imported.Err)
		}
	})

	t.Run("owner changes are not sent", func(t *testing.T) {
		if _, _, ok := encodeSignal(protocol.ServiceOwnerChanged{Owner: ":1.2"}); ok {
			t.Error("owner change should not be encoded")
		}
	})
}

func TestDecodeOwnerChanged(t *testing.T) {
	tests := []struct {
		name string
		body []any
		want protocol.Signal
		ok   bool
	}{
		{"new owner", []any{protocol.ServiceName, "", ":1.9"}, protocol.ServiceOwnerChanged{Owner: ":1.9"}, true},
		{"owner gone", []any{protocol.ServiceName, ":1.9", ""}, protocol.ServiceOwnerChanged{}, true},
		{"other name", []any{"org.example.Other", "", ":1.3"}, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := &dbus.Signal{Sender: busName, Path: "/org/freedesktop/DBus", Name: ownerChanged, Body: tt.body}
			got, ok := decodeSignal(sig)
			if ok != tt.ok || got != tt.want {
				t.Errorf("decode = %v, %v; want %v, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestDecodeIgnoresForeignSignals(t *testing.T) {
	sig := &dbus.Signal{Path: "/org/example", Name: "org.example.Iface.changed", Body: []any{uint32(1)}}
	if _, ok := decodeSignal(sig); ok {
		t.Error("foreign signal should be ignored")
	}

	unknown := signalOf("future_signal", uint32(1))
	if _, ok := decodeSignal(unknown); ok {
		t.Error("unknown member should be ignored")
	}
}

func TestDecodeMalformedPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected a panic on a malformed body")
		}
	}()
	decodeSignal(signalOf(protocol.SigContentsChanged, uint32(1), "two"))
}

func TestReply(t *testing.T) {
	t.Run("stores the body", func(t *testing.T) {
		var id uint32
		if err := reply(&dbus.Call{Method: "create_playlist", Body: []any{uint32(7)}}, &id); err != nil {
			t.Fatalf("reply failed: %v", err)
		}
		if id != 7 {
			t.Errorf("id = %d", id)
		}
	})

	t.Run("daemon errors are translated", func(t *testing.T) {
		call := &dbus.Call{Method: "get_name", Err: toDBusError(protocol.ErrNotFound)}
		var name string
		if err := reply(call, &name); !errors.Is(err, protocol.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("malformed body panics", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("expected a panic on a malformed reply")
			}
		}()
		var id uint32
		reply(&dbus.Call{Method: "create_playlist", Body: []any{"seven"}}, &id)
	})
}

func TestVanishedPeer(t *testing.T) {
	tests := []struct {
		name string
		body []any
		peer string
		gone bool
	}{
		{"unique name lost", []any{":1.42", ":1.42", ""}, ":1.42", true},
		{"unique name acquired", []any{":1.43", "", ":1.43"}, ":1.43", false},
		{"well-known name lost", []any{"org.example.App", ":1.42", ""}, "org.example.App", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			peer, gone := vanishedPeer(&dbus.Signal{Name: ownerChanged, Body: tt.body})
			if peer != tt.peer || gone != tt.gone {
				t.Errorf("vanishedPeer = %q, %v; want %q, %v", peer, gone, tt.peer, tt.gone)
			}
		})
	}
}
