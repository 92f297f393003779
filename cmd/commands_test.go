package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/plsd/internal/bus"
	"github.com/desertthunder/plsd/internal/protocol"
	"github.com/desertthunder/plsd/internal/shared"
	"github.com/desertthunder/plsd/internal/source"
	"github.com/desertthunder/plsd/internal/storage"
	tu "github.com/desertthunder/plsd/internal/testing"
)

// localTransport carries commands over an in-process bus.
type localTransport struct {
	bus *bus.Bus
}

func newLocalTransport() *localTransport {
	return &localTransport{bus: bus.New()}
}

type localPublication struct {
	*bus.Owner
}

func (p localPublication) Close() error {
	p.Release()
	return nil
}

func (t *localTransport) Dial(context.Context) (Conn, error) {
	return t.bus.Connect(), nil
}

func (t *localTransport) Publish(svc protocol.Service) (Publication, error) {
	owner, err := t.bus.Own(svc)
	if errors.Is(err, bus.ErrNameTaken) {
		return nil, fmt.Errorf("%w: %w", shared.ErrAlreadyRunning, err)
	}
	if err != nil {
		return nil, err
	}
	return localPublication{owner}, nil
}

func (t *localTransport) OwnerPID(context.Context) (uint32, error) {
	if t.bus.OwnerName() == "" {
		return 0, shared.ErrNotRunning
	}
	return uint32(os.Getpid()), nil
}

// env is a daemon served over a local transport plus a config file pointing at its directory.
type env struct {
	transport *localTransport
	config    string
	dir       string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	t.Setenv(shared.EnvPlaylistDir, "")
	t.Setenv(shared.EnvLogLevel, "")

	root := t.TempDir()
	e := &env{
		transport: newLocalTransport(),
		config:    filepath.Join(root, "config.toml"),
		dir:       filepath.Join(root, "playlists"),
	}
	content := fmt.Sprintf("[daemon]\nplaylist_dir = '%s'\nsave_delay = \"10ms\"\n\n[client]\ncall_timeout = \"5s\"\n", e.dir)
	if err := os.WriteFile(e.config, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return e
}

// start runs "daemon run" until the test ends.
func (e *env) start(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := e.exec(ctx, "daemon", "run")
		done <- err
	}()
	tu.Eventually(t, "daemon owns the service", func() bool { return e.transport.bus.OwnerName() != "" })

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("daemon run returned %v", err)
			}
		case <-time.After(tu.WaitTimeout):
			t.Error("daemon did not stop")
		}
	})
}

func (e *env) exec(ctx context.Context, args ...string) (string, error) {
	var out bytes.Buffer
	runner := NewRunner(RunnerOpts{Logger: tu.QuietLogger(), Output: &out, Transport: e.transport})
	err := newApp(runner).Run(ctx, append([]string{"plsd", "--config", e.config}, args...))
	return out.String(), err
}

// run executes a command that must succeed.
func (e *env) run(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.exec(context.Background(), args...)
	if err != nil {
		t.Fatalf("plsd %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func (e *env) items(t *testing.T, id string) []string {
	t.Helper()
	var detail struct {
		Items []string `json:"items"`
	}
	if err := json.Unmarshal([]byte(e.run(t, "show", id, "--format", "json")), &detail); err != nil {
		t.Fatalf("show output is not JSON: %v", err)
	}
	return detail.Items
}

func TestPlaylistCommands(t *testing.T) {
	e := newEnv(t)
	e.start(t)

	id := strings.TrimSpace(e.run(t, "create", "mix"))
	if id != "1" {
		t.Fatalf("create printed %q", id)
	}
	if again := strings.TrimSpace(e.run(t, "create", "mix")); again != id {
		t.Errorf("second create printed %q, want %q", again, id)
	}

	e.run(t, "append", id, "a", "b", "c")
	e.run(t, "insert", id, "0", "z")
	e.run(t, "move", id, "0", "2")
	e.run(t, "remove", id, "0")

	want := []string{"b", "z", "c"}
	if got := e.items(t, id); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("items = %v, want %v", got, want)
	}

	t.Run("out of range index", func(t *testing.T) {
		if _, err := e.exec(context.Background(), "remove", id, "9"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("unknown playlist", func(t *testing.T) {
		if _, err := e.exec(context.Background(), "clear", "42"); !errors.Is(err, protocol.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("bad argument", func(t *testing.T) {
		if _, err := e.exec(context.Background(), "clear", "first"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
		if _, err := e.exec(context.Background(), "create"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("navigation", func(t *testing.T) {
		if got := e.run(t, "next", id); got != "0\tb\n" {
			t.Errorf("next without index = %q", got)
		}
		if got := e.run(t, "next", id, "2"); got != "end of playlist\n" {
			t.Errorf("next at end = %q", got)
		}
		if got := e.run(t, "repeat", id); got != "off\n" {
			t.Errorf("repeat = %q", got)
		}

		e.run(t, "repeat", id, "on")
		if got := e.run(t, "repeat", id); got != "on\n" {
			t.Errorf("repeat after set = %q", got)
		}
		if got := e.run(t, "prev", id, "0"); got != "2\tc\n" {
			t.Errorf("prev with repeat = %q", got)
		}
	})

	t.Run("shuffle and unshuffle", func(t *testing.T) {
		e.run(t, "shuffle", id)
		if got := e.run(t, "list"); !strings.Contains(got, "[shuffled]") {
			t.Errorf("list does not show the shuffle: %q", got)
		}
		e.run(t, "unshuffle", id)
		if got := e.items(t, id); strings.Join(got, ",") != "b,z,c" {
			t.Errorf("unshuffle changed the visual order: %v", got)
		}
	})

	t.Run("rename and duplicate", func(t *testing.T) {
		e.run(t, "rename", id, "road trip")
		dup := strings.TrimSpace(e.run(t, "duplicate", id, "copy"))
		if dup == id {
			t.Fatalf("duplicate reused id %s", id)
		}

		var list []struct {
			ID   uint32 `json:"id"`
			Name string `json:"name"`
			Size uint32 `json:"size"`
		}
		if err := json.Unmarshal([]byte(e.run(t, "list", "--format", "json")), &list); err != nil {
			t.Fatalf("list output is not JSON: %v", err)
		}
		if len(list) != 2 || list[0].Name != "road trip" || list[1].Name != "copy" || list[1].Size != 3 {
			t.Errorf("unexpected listing: %+v", list)
		}
	})

	t.Run("clear", func(t *testing.T) {
		e.run(t, "clear", id)
		if got := e.items(t, id); len(got) != 0 {
			t.Errorf("items after clear = %v", got)
		}
	})
}

func TestAppendLocalFiles(t *testing.T) {
	e := newEnv(t)
	e.start(t)

	media := filepath.Join(t.TempDir(), "song.mp3")
	if err := os.WriteFile(media, []byte("ID3"), 0644); err != nil {
		t.Fatal(err)
	}

	id := strings.TrimSpace(e.run(t, "create", "files"))
	e.run(t, "append", id, media, "urisource::https://example.com/live")

	got := e.items(t, id)
	want := []string{source.FileObjectID(media), "urisource::https://example.com/live"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("items = %v, want %v", got, want)
	}

	m3u := e.run(t, "show", id, "--format", "m3u")
	if !strings.Contains(m3u, media+"\n") {
		t.Errorf("m3u output lacks the local path: %q", m3u)
	}
}

func TestDestroyCommand(t *testing.T) {
	e := newEnv(t)
	e.start(t)

	id := strings.TrimSpace(e.run(t, "create", "doomed"))

	conn := e.transport.bus.Connect()
	defer conn.Close()
	var pid uint32
	fmt.Sscan(id, &pid)
	if err := conn.IncrementUseCount(context.Background(), pid); err != nil {
		t.Fatalf("IncrementUseCount failed: %v", err)
	}

	if _, err := e.exec(context.Background(), "destroy", id); !errors.Is(err, protocol.ErrInUse) {
		t.Fatalf("expected ErrInUse, got %v", err)
	}

	if err := conn.DecrementUseCount(context.Background(), pid); err != nil {
		t.Fatalf("DecrementUseCount failed: %v", err)
	}
	if got := e.run(t, "destroy", id); got != "destroyed doomed\n" {
		t.Errorf("destroy printed %q", got)
	}
	if got := e.run(t, "list"); got != "no playlists\n" {
		t.Errorf("list after destroy = %q", got)
	}
}

func TestImportCommand(t *testing.T) {
	e := newEnv(t)
	e.start(t)

	dir := t.TempDir()
	playlistFile := filepath.Join(dir, "party.m3u")
	if err := os.WriteFile(playlistFile, []byte("#EXTM3U\none.mp3\ntwo.ogg\n"), 0644); err != nil {
		t.Fatal(err)
	}

	out := e.run(t, "import", playlistFile)
	id, name, ok := strings.Cut(strings.TrimSpace(out), "\t")
	if !ok || name != "party" {
		t.Fatalf("import printed %q", out)
	}

	got := e.items(t, id)
	want := []string{source.FileObjectID(filepath.Join(dir, "one.mp3")), source.FileObjectID(filepath.Join(dir, "two.ogg"))}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("items = %v, want %v", got, want)
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := e.exec(context.Background(), "import", filepath.Join(dir, "absent.m3u"))
		if !errors.Is(err, protocol.ErrImportFailed) {
			t.Errorf("expected ErrImportFailed, got %v", err)
		}
	})
}

func TestShowExport(t *testing.T) {
	e := newEnv(t)
	e.start(t)

	id := strings.TrimSpace(e.run(t, "create", "export me"))
	e.run(t, "append", id, "x", "y")

	path := filepath.Join(t.TempDir(), "out.csv")
	out := e.run(t, "show", id, "--format", "csv", "--output", path)
	if !strings.Contains(out, path) {
		t.Errorf("show did not report the export path: %q", out)
	}
	if content := tu.MustReadFile(t, path); !strings.Contains(content, "1,y") {
		t.Errorf("unexpected export %q", content)
	}
}

func TestWatchCommand(t *testing.T) {
	e := newEnv(t)
	e.start(t)

	var mu sync.Mutex
	var out bytes.Buffer
	runner := NewRunner(RunnerOpts{Logger: tu.QuietLogger(), Output: writerFunc(func(p []byte) (int, error) {
		mu.Lock()
		defer mu.Unlock()
		return out.Write(p)
	}), Transport: e.transport})

	e.run(t, "create", "watched")
	e.run(t, "create", "ignored")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- newApp(runner).Run(ctx, []string{"plsd", "--config", e.config, "watch", "--id", "1"})
	}()

	// Keep changing both playlists until the watcher has connected and reported one change.
	tu.Eventually(t, "watch prints an append", func() bool {
		e.run(t, "append", "1", "a")
		e.run(t, "append", "2", "b")
		mu.Lock()
		defer mu.Unlock()
		return strings.Contains(out.String(), protocol.SigContentsChanged)
	})
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("watch returned %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	for _, line := range lines {
		if !strings.Contains(line, "id=1") {
			t.Errorf("unfiltered line %q", line)
		}
	}
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

func TestDaemonLifecycle(t *testing.T) {
	e := newEnv(t)

	if _, err := e.exec(context.Background(), "create", "x"); !errors.Is(err, shared.ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning without a daemon, got %v", err)
	}
	if got := e.run(t, "daemon", "status"); got != "not running\n" {
		t.Errorf("status = %q", got)
	}

	e.start(t)
	id := strings.TrimSpace(e.run(t, "create", "lofasz"))

	t.Run("second instance", func(t *testing.T) {
		if _, err := e.exec(context.Background(), "daemon", "run"); !errors.Is(err, shared.ErrAlreadyRunning) {
			t.Errorf("expected ErrAlreadyRunning, got %v", err)
		}
	})

	t.Run("status", func(t *testing.T) {
		var status daemonStatus
		if err := json.Unmarshal([]byte(e.run(t, "daemon", "status", "--json")), &status); err != nil {
			t.Fatalf("status output is not JSON: %v", err)
		}
		if !status.Running || status.Playlists != 1 || status.PID != uint32(os.Getpid()) {
			t.Errorf("unexpected status %+v", status)
		}
	})

	t.Run("persisted", func(t *testing.T) {
		var pid uint32
		fmt.Sscan(id, &pid)
		path := storage.NewStore(e.dir, tu.QuietLogger()).Path(pid)
		tu.Eventually(t, "playlist record saved", func() bool {
			_, err := os.Stat(path)
			return err == nil
		})
	})
}

func TestConfigInit(t *testing.T) {
	e := newEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	if got := e.run(t, "config", "init", "--path", path); !strings.Contains(got, path) {
		t.Errorf("config init printed %q", got)
	}
	loaded, err := shared.LoadConfig(path)
	if err != nil {
		t.Fatalf("written config does not load: %v", err)
	}
	if err := loaded.Validate(); err != nil {
		t.Errorf("written config is invalid: %v", err)
	}

	if _, err := e.exec(context.Background(), "config", "init", "--path", path); err == nil {
		t.Error("expected an error when the file exists")
	}
}
