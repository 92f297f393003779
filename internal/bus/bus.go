// package bus is an in-process message bus carrying the playlist service between goroutines of one process.
//
// It mirrors the D-Bus session semantics the daemon and clients rely on: one owner of the service name, unique
// connection names used as call senders, ordered signal delivery and owner change notifications.
package bus

import (
	"errors"
	"sync"

	"github.com/desertthunder/plsd/internal/protocol"
	"github.com/desertthunder/plsd/internal/shared"
)

var (
	// ErrNameTaken is returned by [Bus.Own] while another owner holds the service name.
	ErrNameTaken = errors.New("service name already owned")
	// ErrServiceUnknown is returned by calls made while nobody owns the service name.
	ErrServiceUnknown = protocol.Errorf(protocol.CodeTransportUnavailable, "service %s has no owner", protocol.ServiceName)
	// ErrClosed is returned by calls on a closed [Conn].
	ErrClosed = protocol.Errorf(protocol.CodeTransportUnavailable, "connection closed")
)

// Bus routes calls from connections to the current owner of the service name.
type Bus struct {
	mu    sync.Mutex
	owner *Owner
	conns map[string]*Conn
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{conns: make(map[string]*Conn)}
}

func uniqueName() string {
	return "local:" + shared.GenerateID()
}

// Own makes svc the owner of the service name and announces it to every connection.
func (b *Bus) Own(svc protocol.Service) (*Owner, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.owner != nil {
		return nil, ErrNameTaken
	}
	o := &Owner{bus: b, svc: svc, name: uniqueName()}
	b.owner = o
	b.broadcast(protocol.ServiceOwnerChanged{Owner: o.name})
	return o, nil
}

// Connect opens a client connection.
func (b *Bus) Connect() *Conn {
	c := &Conn{bus: b, name: uniqueName(), mbox: newMailbox()}

	b.mu.Lock()
	b.conns[c.name] = c
	b.mu.Unlock()
	return c
}

// OwnerName returns the unique name of the current owner, or "".
func (b *Bus) OwnerName() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.owner == nil {
		return ""
	}
	return b.owner.name
}

func (b *Bus) service() protocol.Service {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.owner == nil {
		return nil
	}
	return b.owner.svc
}

// broadcast must be called with b.mu held.
func (b *Bus) broadcast(sig protocol.Signal) {
	for _, c := range b.conns {
		c.mbox.push(sig)
	}
}

func (b *Bus) disconnect(c *Conn) protocol.Service {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.conns[c.name]; !ok {
		return nil
	}
	delete(b.conns, c.name)
	if b.owner == nil {
		return nil
	}
	return b.owner.svc
}

// Owner is the handle of the service name owner.
type Owner struct {
	bus  *Bus
	svc  protocol.Service
	name string
}

// Name returns the unique bus name of the owner.
func (o *Owner) Name() string { return o.name }

// Emit delivers sig to every connection. It never blocks on receivers.
func (o *Owner) Emit(sig protocol.Signal) {
	o.bus.mu.Lock()
	defer o.bus.mu.Unlock()
	if o.bus.owner != o {
		return
	}
	o.bus.broadcast(sig)
}

// Release gives up the service name. Connections see an empty [protocol.ServiceOwnerChanged].
func (o *Owner) Release() {
	o.bus.mu.Lock()
	defer o.bus.mu.Unlock()
	if o.bus.owner != o {
		return
	}
	o.bus.owner = nil
	o.bus.broadcast(protocol.ServiceOwnerChanged{})
}
