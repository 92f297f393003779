package protocol

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorIs(t *testing.T) {
	tc := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{name: "same sentinel", err: ErrNotFound, target: ErrNotFound, want: true},
		{name: "custom message same code", err: Errorf(CodeNotFound, "playlist %d not found", 4), target: ErrNotFound, want: true},
		{name: "wrapped", err: fmt.Errorf("listing: %w", ErrInvalidIndex), target: ErrInvalidIndex, want: true},
		{name: "different code", err: ErrInvalidName, target: ErrDuplicateName, want: false},
		{name: "different domain", err: &Error{Domain: "other", Code: CodeNotFound}, target: ErrNotFound, want: false},
		{name: "plain error", err: errors.New("boom"), target: ErrNotFound, want: false},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.want {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.want)
			}
		})
	}
}

func TestAsError(t *testing.T) {
	if AsError(nil) != nil {
		t.Error("AsError(nil) should be nil")
	}

	e := AsError(fmt.Errorf("ctx: %w", ErrInUse))
	if e.Code != CodeInUse {
		t.Errorf("expected in_use code, got %s", e.Code)
	}

	foreign := AsError(errors.New("disk on fire"))
	if foreign.Code != CodeUnknown || foreign.Domain != Domain || foreign.Message != "disk on fire" {
		t.Errorf("unexpected conversion of foreign error: %+v", foreign)
	}

	if msg := ErrNotFound.Error(); !strings.Contains(msg, "not_found") {
		t.Errorf("error text should name the code, got %q", msg)
	}
}

func TestSignals(t *testing.T) {
	tc := []struct {
		sig    Signal
		name   string
		id     uint32
		hasID  bool
		detail string
	}{
		{sig: PlaylistCreated{ID: 3}, name: SigPlaylistCreated, id: 3, hasID: true, detail: "id=3"},
		{sig: PlaylistDestroyed{ID: 4}, name: SigPlaylistDestroyed, id: 4, hasID: true, detail: "id=4"},
		{sig: DestructionFailed{ID: 5}, name: SigDestructionFailed, id: 5, hasID: true, detail: "id=5"},
		{sig: ContentsChanged{ID: 1, From: 2, Removed: 0, Inserted: 3}, name: SigContentsChanged, id: 1, hasID: true, detail: "inserted=3"},
		{sig: ItemMoved{ID: 1, From: 0, To: 1}, name: SigItemMoved, id: 1, hasID: true, detail: "to=1"},
		{sig: PropertyChanged{ID: 9, Property: PropName}, name: SigPropertyChanged, id: 9, hasID: true, detail: "property=name"},
		{sig: PlaylistImported{ImportID: 2, PlaylistID: 8}, name: SigPlaylistImported, detail: "id=8"},
		{sig: PlaylistImported{ImportID: 2, Err: Errorf(CodeImportFailed, "nope")}, name: SigPlaylistImported, detail: `error="nope"`},
		{sig: ServiceOwnerChanged{Owner: ":1.42"}, name: SigServiceOwnerChanged, detail: `owner=":1.42"`},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if tt.sig.Name() != tt.name {
				t.Errorf("Name() = %s, want %s", tt.sig.Name(), tt.name)
			}

			id, ok := PlaylistID(tt.sig)
			if ok != tt.hasID || id != tt.id {
				t.Errorf("PlaylistID() = %d,%v, want %d,%v", id, ok, tt.id, tt.hasID)
			}

			if d := Describe(tt.sig); !strings.HasPrefix(d, tt.name) || !strings.Contains(d, tt.detail) {
				t.Errorf("Describe() = %q, want prefix %q containing %q", d, tt.name, tt.detail)
			}
		})
	}
}

func TestSender(t *testing.T) {
	ctx := context.Background()
	if SenderFrom(ctx) != "" {
		t.Error("expected empty sender")
	}

	ctx = WithSender(ctx, ":1.7")
	if got := SenderFrom(ctx); got != ":1.7" {
		t.Errorf("SenderFrom() = %q, want :1.7", got)
	}
}
