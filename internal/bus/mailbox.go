package bus

import (
	"sync"

	"github.com/desertthunder/plsd/internal/protocol"
)

// mailbox is an unbounded FIFO of signals drained into out by its own goroutine.
type mailbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []protocol.Signal
	closed bool

	out  chan protocol.Signal
	quit chan struct{}
}

func newMailbox() *mailbox {
	m := &mailbox{
		out:  make(chan protocol.Signal),
		quit: make(chan struct{}),
	}
	m.cond = sync.NewCond(&m.mu)
	go m.pump()
	return m
}

func (m *mailbox) push(sig protocol.Signal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.queue = append(m.queue, sig)
	m.cond.Signal()
}

// close drops undelivered signals and closes out.
func (m *mailbox) close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	close(m.quit)
	m.cond.Broadcast()
}

func (m *mailbox) pump() {
	defer close(m.out)

	for {
		m.mu.Lock()
		for len(m.queue) == 0 && !m.closed {
			m.cond.Wait()
		}
		if m.closed {
			m.mu.Unlock()
			return
		}
		sig := m.queue[0]
		m.queue[0] = nil
		m.queue = m.queue[1:]
		m.mu.Unlock()

		select {
		case m.out <- sig:
		case <-m.quit:
			return
		}
	}
}
