// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/plsd/internal/protocol"
	"github.com/desertthunder/plsd/internal/source"
)

// WaitTimeout bounds every helper that waits for asynchronous work.
const WaitTimeout = 2 * time.Second

// QuietLogger returns a [log.Logger] that discards everything.
func QuietLogger() *log.Logger {
	return log.New(io.Discard)
}

// Eventually fails the test if cond does not hold within [WaitTimeout].
func Eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(WaitTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// SignalRecorder collects emitted signals. It implements the daemon's emitter interface.
type SignalRecorder struct {
	mu      sync.Mutex
	signals []protocol.Signal
}

func (r *SignalRecorder) Emit(sig protocol.Signal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals = append(r.signals, sig)
}

// Signals returns a copy of everything recorded so far.
func (r *SignalRecorder) Signals() []protocol.Signal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]protocol.Signal(nil), r.signals...)
}

// Count returns how many recorded signals satisfy match.
func (r *SignalRecorder) Count(match func(protocol.Signal) bool) int {
	n := 0
	for _, sig := range r.Signals() {
		if match(sig) {
			n++
		}
	}
	return n
}

// Reset forgets every recorded signal.
func (r *SignalRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals = nil
}

// Last returns the most recent signal, or nil.
func (r *SignalRecorder) Last() protocol.Signal {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.signals) == 0 {
		return nil
	}
	return r.signals[len(r.signals)-1]
}

// StubResolver is a [source.Resolver] returning canned results. When Gate is set, Resolve waits for it to be
// closed or for the context to end.
type StubResolver struct {
	Result *source.Result
	Err    error
	Gate   chan struct{}
}

func (s *StubResolver) Resolve(ctx context.Context, uri, baseURI string) (*source.Result, error) {
	if s.Gate != nil {
		select {
		case <-s.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.Err != nil {
		return nil, s.Err
	}
	res := *s.Result
	return &res, nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertFileMissing(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("File should not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
