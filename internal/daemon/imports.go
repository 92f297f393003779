package daemon

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/plsd/internal/metrics"
	"github.com/desertthunder/plsd/internal/playlist"
	"github.com/desertthunder/plsd/internal/protocol"
)

const defaultImportName = "Imported playlist"

type importSession struct {
	uri     string
	baseURI string
	cancel  context.CancelFunc
}

// ImportPlaylist starts resolving uri in the background and returns the import id. The outcome arrives as a
// [protocol.PlaylistImported] signal carrying that id.
func (d *Dispatcher) ImportPlaylist(ctx context.Context, uri, baseURI string) (uint32, error) {
	var importID uint32
	err := d.do(ctx, "import_playlist", func() error {
		d.lastImportID++
		importID = d.lastImportID

		ictx, cancel := context.WithCancel(d.ctx)
		d.imports[importID] = &importSession{uri: uri, baseURI: baseURI, cancel: cancel}
		d.logger.Info("import started", "import", importID, "uri", uri)

		go func(id uint32) {
			res, err := d.resolver.Resolve(ictx, uri, baseURI)
			d.post(importDoneCmd{importID: id, result: res, err: err})
		}(importID)
		return nil
	})
	return importID, err
}

// CancelImport abandons a running import. No signal is emitted for it afterwards.
func (d *Dispatcher) CancelImport(ctx context.Context, importID uint32) error {
	return d.do(ctx, "cancel_import", func() error {
		s, ok := d.imports[importID]
		if !ok {
			return protocol.Errorf(protocol.CodeInvalidImport, "no running import %d", importID)
		}
		s.cancel()
		delete(d.imports, importID)
		metrics.ImportsTotal.WithLabelValues(metrics.StatusCancelled).Inc()
		d.logger.Info("import cancelled", "import", importID)
		return nil
	})
}

func (d *Dispatcher) handleImportDone(c importDoneCmd) {
	s, ok := d.imports[c.importID]
	if !ok {
		return
	}
	delete(d.imports, c.importID)
	s.cancel()

	id, err := d.finishImport(c)
	metrics.ImportsTotal.WithLabelValues(metrics.Status(err)).Inc()
	if err != nil {
		d.logger.Warn("import failed", "import", c.importID, "uri", s.uri, "error", err)
		d.emit(protocol.PlaylistImported{ImportID: c.importID, Err: importError(err)})
		return
	}

	d.logger.Info("import finished", "import", c.importID, "id", id)
	d.emit(protocol.PlaylistImported{ImportID: c.importID, PlaylistID: id})
}

func (d *Dispatcher) finishImport(c importDoneCmd) (uint32, error) {
	if c.err != nil {
		return 0, c.err
	}

	var ids []string
	for _, oid := range c.result.ObjectIDs {
		if playlist.ValidateObjectIDs([]string{oid}) == nil {
			ids = append(ids, oid)
		}
	}

	name := c.result.Name
	if name == "" {
		name = defaultImportName
	}

	p, err := playlist.New(d.nextID(), d.uniqueName(name))
	if err != nil {
		return 0, err
	}
	if _, err := p.Append(ids); err != nil {
		return 0, err
	}
	d.add(p)
	return p.ID, nil
}

// uniqueName returns name, or the first free "name (n)" with n >= 2.
func (d *Dispatcher) uniqueName(name string) string {
	if _, taken := d.byName[name]; !taken {
		return name
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s (%d)", name, n)
		if _, taken := d.byName[candidate]; !taken {
			return candidate
		}
	}
}

func importError(err error) *protocol.Error {
	var perr *protocol.Error
	if errors.As(err, &perr) {
		return perr
	}
	return protocol.Errorf(protocol.CodeImportFailed, "%v", err)
}
