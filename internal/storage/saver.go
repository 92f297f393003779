package storage

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultSaveDelay is the quiet period after which a changed playlist is saved.
const DefaultSaveDelay = time.Second

// Saver keeps one debounce timer per playlist.
//
// The fire callback runs on the timer goroutine; owners are expected to hand it over to whatever goroutine owns
// the playlist. A callback may still run for a timer that was cancelled concurrently.
type Saver struct {
	clock clockwork.Clock
	delay time.Duration
	fire  func(id uint32)

	mu      sync.Mutex
	pending map[uint32]*saveTimer
}

type saveTimer struct {
	timer clockwork.Timer
}

// NewSaver returns a Saver calling fire once a scheduled playlist has been quiet for delay.
func NewSaver(clock clockwork.Clock, delay time.Duration, fire func(id uint32)) *Saver {
	if delay <= 0 {
		delay = DefaultSaveDelay
	}
	return &Saver{
		clock:   clock,
		delay:   delay,
		fire:    fire,
		pending: make(map[uint32]*saveTimer),
	}
}

// Delay returns the debounce period.
func (s *Saver) Delay() time.Duration {
	return s.delay
}

// Schedule starts or restarts the timer of playlist id.
func (s *Saver) Schedule(id uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.pending[id]; ok {
		old.timer.Stop()
	}

	st := &saveTimer{}
	st.timer = s.clock.AfterFunc(s.delay, func() { s.expire(id, st) })
	s.pending[id] = st
}

// Cancel stops the timer of playlist id, if any.
func (s *Saver) Cancel(id uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.pending[id]; ok {
		st.timer.Stop()
		delete(s.pending, id)
	}
}

// Pending reports whether a save of playlist id is scheduled.
func (s *Saver) Pending(id uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[id]
	return ok
}

// Stop cancels every timer.
func (s *Saver) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, st := range s.pending {
		st.timer.Stop()
		delete(s.pending, id)
	}
}

func (s *Saver) expire(id uint32, st *saveTimer) {
	s.mu.Lock()
	current := s.pending[id] == st
	if current {
		delete(s.pending, id)
	}
	s.mu.Unlock()

	if current {
		s.fire(id)
	}
}
