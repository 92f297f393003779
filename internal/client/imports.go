package client

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/desertthunder/plsd/internal/protocol"
)

// ImportResult completes an [Import]. Playlist holds one caller reference when Err is nil.
type ImportResult struct {
	Playlist *Playlist
	Err      error
}

// stashed is an import result that arrived before its import was registered.
type stashed struct {
	sig protocol.PlaylistImported
	at  time.Time
}

// Import is a running daemon import.
type Import struct {
	m         *Manager
	id        uint32
	done      func(ImportResult)
	cancelled atomic.Bool
}

func (i *Import) ID() uint32 { return i.id }

// Cancel abandons the import. The completion callback will not run afterwards.
func (i *Import) Cancel(ctx context.Context) error {
	i.cancelled.Store(true)
	i.m.do(func() { delete(i.m.imports, i.id) })
	return i.m.conn.CancelImport(ctx, i.id)
}

// Import asks the daemon to import uri, resolving relative references against baseURI. done runs on the
// manager loop once the import finishes or fails.
func (m *Manager) Import(ctx context.Context, uri, baseURI string, done func(ImportResult)) (*Import, error) {
	id, err := m.conn.ImportPlaylist(ctx, uri, baseURI)
	if err != nil {
		return nil, err
	}

	imp := &Import{m: m, id: id, done: done}
	err = m.do(func() {
		if e, ok := m.stash[id]; ok {
			delete(m.stash, id)
			m.complete(imp, e.sig)
			return
		}
		m.imports[id] = imp
	})
	if err != nil {
		return nil, err
	}
	return imp, nil
}

func (m *Manager) handleImported(sig protocol.PlaylistImported) {
	imp, ok := m.imports[sig.ImportID]
	if !ok {
		m.stash[sig.ImportID] = stashed{sig: sig, at: m.clock.Now()}
		m.clock.AfterFunc(m.stashTTL, func() { m.post(expireCmd{importID: sig.ImportID}) })
		return
	}
	delete(m.imports, sig.ImportID)
	m.complete(imp, sig)
}

func (m *Manager) complete(imp *Import, sig protocol.PlaylistImported) {
	if imp.cancelled.Load() || imp.done == nil {
		return
	}
	if sig.Err != nil {
		imp.done(ImportResult{Err: sig.Err})
		return
	}

	h := m.lookupOrCreate(sig.PlaylistID, "")
	h.gen = m.resyncGen
	h.refs++
	imp.done(ImportResult{Playlist: h})
}

// failImports ends every pending import with err and forgets stashed results.
func (m *Manager) failImports(err error) {
	for id, imp := range m.imports {
		delete(m.imports, id)
		if !imp.cancelled.Load() && imp.done != nil {
			imp.done(ImportResult{Err: err})
		}
	}
	clear(m.stash)
}
