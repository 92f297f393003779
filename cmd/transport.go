package main

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"
	"github.com/godbus/dbus/v5"

	"github.com/desertthunder/plsd/internal/client"
	"github.com/desertthunder/plsd/internal/daemon"
	"github.com/desertthunder/plsd/internal/dbusbus"
	"github.com/desertthunder/plsd/internal/protocol"
)

// Conn is a client connection owned by the command that dialed it.
type Conn interface {
	client.Conn
	Close() error
}

// Publication is a service registered under the well-known name.
type Publication interface {
	daemon.Emitter
	Close() error
}

// Transport connects commands to the daemon, or the daemon to its clients.
type Transport interface {
	Dial(ctx context.Context) (Conn, error)
	Publish(svc protocol.Service) (Publication, error)
	// OwnerPID returns the pid of the process owning the service, or [shared.ErrNotRunning].
	OwnerPID(ctx context.Context) (uint32, error)
}

type dbusTransport struct {
	kind   string
	logger *log.Logger
}

func newDBusTransport(kind string, logger *log.Logger) *dbusTransport {
	return &dbusTransport{kind: kind, logger: logger}
}

type dbusConn struct {
	*dbusbus.Client
	conn *dbus.Conn
}

func (c *dbusConn) Close() error {
	return errors.Join(c.Client.Close(), c.conn.Close())
}

type dbusPublication struct {
	*dbusbus.Server
	conn *dbus.Conn
}

func (p *dbusPublication) Close() error {
	return errors.Join(p.Server.Close(), p.conn.Close())
}

func (t *dbusTransport) Dial(ctx context.Context) (Conn, error) {
	conn, err := dbusbus.Connect(t.kind)
	if err != nil {
		return nil, err
	}

	c, err := dbusbus.Dial(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &dbusConn{Client: c, conn: conn}, nil
}

func (t *dbusTransport) Publish(svc protocol.Service) (Publication, error) {
	conn, err := dbusbus.Connect(t.kind)
	if err != nil {
		return nil, err
	}

	srv, err := dbusbus.Serve(conn, svc, t.logger)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &dbusPublication{Server: srv, conn: conn}, nil
}

func (t *dbusTransport) OwnerPID(ctx context.Context) (uint32, error) {
	conn, err := dbusbus.Connect(t.kind)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	return dbusbus.OwnerPID(ctx, conn)
}
