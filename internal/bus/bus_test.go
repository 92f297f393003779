package bus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/plsd/internal/daemon"
	"github.com/desertthunder/plsd/internal/protocol"
	"github.com/desertthunder/plsd/internal/storage"
	th "github.com/desertthunder/plsd/internal/testing"
)

func startDaemon(t *testing.T, b *Bus) (*daemon.Dispatcher, *Owner) {
	t.Helper()

	logger := th.QuietLogger()
	d := daemon.New(storage.NewStore(t.TempDir(), logger), logger)
	if err := d.Open(); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	owner, err := b.Own(d)
	if err != nil {
		t.Fatalf("own failed: %v", err)
	}
	d.Start(owner)
	t.Cleanup(func() {
		owner.Release()
		d.Stop()
	})
	return d, owner
}

func nextSignal(t *testing.T, c *Conn) protocol.Signal {
	t.Helper()
	select {
	case sig, ok := <-c.Signals():
		if !ok {
			t.Fatal("signal channel closed")
		}
		return sig
	case <-time.After(th.WaitTimeout):
		t.Fatal("timed out waiting for a signal")
		return nil
	}
}

func TestOwn(t *testing.T) {
	b := New()
	_, owner := startDaemon(t, b)

	if _, err := b.Own(nil); !errors.Is(err, ErrNameTaken) {
		t.Errorf("expected ErrNameTaken, got %v", err)
	}
	if got := b.OwnerName(); got != owner.Name() {
		t.Errorf("owner name = %q, want %q", got, owner.Name())
	}

	owner.Release()
	if got := b.OwnerName(); got != "" {
		t.Errorf("owner after release = %q", got)
	}
	if _, err := b.Own(nil); err != nil {
		t.Errorf("own after release failed: %v", err)
	}
}

func TestCallWithoutOwner(t *testing.T) {
	c := New().Connect()
	defer c.Close()

	_, err := c.CreatePlaylist(context.Background(), "a")
	if !errors.Is(err, ErrServiceUnknown) {
		t.Errorf("expected ErrServiceUnknown, got %v", err)
	}
	if !errors.Is(err, protocol.ErrTransportUnavailable) {
		t.Errorf("expected a transport unavailable error, got %v", err)
	}
}

func TestSignalsInOrder(t *testing.T) {
	b := New()
	c := b.Connect()
	defer c.Close()

	_, owner := startDaemon(t, b)
	ctx := context.Background()

	id, err := c.CreatePlaylist(ctx, "a")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	for i := range 20 {
		if err := c.AppendItems(ctx, id, []string{"x"}); err != nil {
			t.Fatalf("append %d failed: %v", i, err)
		}
	}

	if sig := nextSignal(t, c); sig != (protocol.ServiceOwnerChanged{Owner: owner.Name()}) {
		t.Fatalf("expected owner change, got %s", protocol.Describe(sig))
	}
	if sig := nextSignal(t, c); sig != (protocol.PlaylistCreated{ID: id}) {
		t.Fatalf("expected created, got %s", protocol.Describe(sig))
	}
	for i := range 20 {
		want := protocol.ContentsChanged{ID: id, From: uint32(i), Inserted: 1}
		if sig := nextSignal(t, c); sig != want {
			t.Fatalf("signal %d = %s, want %s", i, protocol.Describe(sig), protocol.Describe(want))
		}
	}

	owner.Release()
	if sig := nextSignal(t, c); sig != (protocol.ServiceOwnerChanged{}) {
		t.Fatalf("expected empty owner change, got %s", protocol.Describe(sig))
	}
	if _, err := c.GetSize(ctx, id); !errors.Is(err, ErrServiceUnknown) {
		t.Errorf("expected ErrServiceUnknown after release, got %v", err)
	}
}

func TestCloseReleasesUseCounts(t *testing.T) {
	b := New()
	startDaemon(t, b)
	ctx := context.Background()

	holder := b.Connect()
	other := b.Connect()
	defer other.Close()

	id, err := holder.CreatePlaylist(ctx, "held")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := holder.IncrementUseCount(ctx, id); err != nil {
		t.Fatalf("increment failed: %v", err)
	}

	if err := other.DestroyPlaylist(ctx, id); err != nil {
		t.Fatalf("destroy failed: %v", err)
	}
	if infos, _ := other.ListPlaylists(ctx, []uint32{id}); len(infos) != 1 {
		t.Fatal("playlist in use should survive destroy")
	}

	if err := holder.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if _, err := holder.GetSize(ctx, id); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if _, ok := <-holder.Signals(); ok {
		t.Error("signals of a closed connection should be closed")
	}

	if err := other.DestroyPlaylist(ctx, id); err != nil {
		t.Fatalf("destroy failed: %v", err)
	}
	if infos, _ := other.ListPlaylists(ctx, []uint32{id}); len(infos) != 0 {
		t.Errorf("playlist should be gone once its holder disconnected, got %v", infos)
	}
}

func TestSenderIsConnectionName(t *testing.T) {
	b := New()
	svc := &senderService{}
	owner, err := b.Own(svc)
	if err != nil {
		t.Fatalf("own failed: %v", err)
	}
	defer owner.Release()

	c := b.Connect()
	defer c.Close()

	if _, err := c.CreatePlaylist(context.Background(), "a"); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if svc.sender != c.Name() {
		t.Errorf("sender = %q, want %q", svc.sender, c.Name())
	}
}

type senderService struct {
	protocol.Service
	sender string
}

func (s *senderService) CreatePlaylist(ctx context.Context, name string) (uint32, error) {
	s.sender = protocol.SenderFrom(ctx)
	return 1, nil
}
