package daemon

import (
	"cmp"
	"context"
	"slices"

	"github.com/desertthunder/plsd/internal/metrics"
	"github.com/desertthunder/plsd/internal/playlist"
	"github.com/desertthunder/plsd/internal/protocol"
)

func (d *Dispatcher) lookup(id uint32) (*playlist.Playlist, error) {
	p, ok := d.playlists[id]
	if !ok {
		return nil, protocol.Errorf(protocol.CodeNotFound, "playlist %d not found", id)
	}
	return p, nil
}

// with runs fn on the loop against playlist id and schedules a save if fn changed it.
func (d *Dispatcher) with(ctx context.Context, method string, id uint32, fn func(p *playlist.Playlist) error) error {
	return d.do(ctx, method, func() error {
		p, err := d.lookup(id)
		if err != nil {
			return err
		}
		err = fn(p)
		d.touched(p)
		return err
	})
}

func (d *Dispatcher) add(p *playlist.Playlist) {
	d.playlists[p.ID] = p
	d.byName[p.Name] = p.ID
	metrics.PlaylistsLoaded.Set(float64(len(d.playlists)))
	d.saver.Schedule(p.ID)
	d.emit(protocol.PlaylistCreated{ID: p.ID})
}

func (d *Dispatcher) nextID() uint32 {
	d.lastID++
	for d.lastID == 0 || d.playlists[d.lastID] != nil {
		d.lastID++
	}
	return d.lastID
}

func (d *Dispatcher) create(name string) (uint32, error) {
	if name == "" {
		return 0, protocol.ErrInvalidName
	}
	if id, ok := d.byName[name]; ok {
		return id, nil
	}

	p, err := playlist.New(d.nextID(), name)
	if err != nil {
		return 0, err
	}
	d.add(p)
	d.logger.Info("created playlist", "id", p.ID, "name", name)
	return p.ID, nil
}

// CreatePlaylist returns the id of the playlist called name, creating it if needed.
func (d *Dispatcher) CreatePlaylist(ctx context.Context, name string) (uint32, error) {
	var id uint32
	err := d.do(ctx, "create_playlist", func() (err error) {
		id, err = d.create(name)
		return err
	})
	return id, err
}

// DuplicatePlaylist copies the items and repeat flag of playlist id into a new playlist called name.
func (d *Dispatcher) DuplicatePlaylist(ctx context.Context, id uint32, name string) (uint32, error) {
	var newID uint32
	err := d.do(ctx, "duplicate_playlist", func() error {
		src, err := d.lookup(id)
		if err != nil {
			return err
		}
		if name == "" {
			return protocol.ErrInvalidName
		}
		if _, taken := d.byName[name]; taken {
			return protocol.Errorf(protocol.CodeDuplicateName, "playlist %q already exists", name)
		}

		p, err := playlist.New(d.nextID(), name)
		if err != nil {
			return err
		}
		p.Repeat = src.Repeat
		if _, err := p.Append(src.All()); err != nil {
			return err
		}
		d.add(p)
		newID = p.ID
		return nil
	})
	return newID, err
}

// DestroyPlaylist removes playlist id unless it is in use. Unknown ids are ignored; the outcome is signalled.
func (d *Dispatcher) DestroyPlaylist(ctx context.Context, id uint32) error {
	return d.do(ctx, "destroy_playlist", func() error {
		p, ok := d.playlists[id]
		if !ok {
			return nil
		}
		if p.UseCount > 0 {
			d.logger.Info("refusing to destroy playlist in use", "id", id, "use_count", p.UseCount)
			d.emit(protocol.DestructionFailed{ID: id})
			return nil
		}

		delete(d.playlists, id)
		delete(d.byName, p.Name)
		d.holders.forget(id)
		d.saver.Cancel(id)
		metrics.PlaylistsLoaded.Set(float64(len(d.playlists)))
		if err := d.store.Remove(id); err != nil {
			d.logger.Error("failed to remove playlist record", "id", id, "error", err)
		}

		d.logger.Info("destroyed playlist", "id", id, "name", p.Name)
		d.emit(protocol.PlaylistDestroyed{ID: id})
		return nil
	})
}

// ListPlaylists returns every playlist ordered by id, or only the known ones among ids.
func (d *Dispatcher) ListPlaylists(ctx context.Context, ids []uint32) ([]protocol.PlaylistInfo, error) {
	var infos []protocol.PlaylistInfo
	err := d.do(ctx, "list_playlists", func() error {
		if len(ids) == 0 {
			for id, p := range d.playlists {
				infos = append(infos, protocol.PlaylistInfo{ID: id, Name: p.Name})
			}
			slices.SortFunc(infos, func(a, b protocol.PlaylistInfo) int { return cmp.Compare(a.ID, b.ID) })
			return nil
		}

		for _, id := range ids {
			if p, ok := d.playlists[id]; ok {
				infos = append(infos, protocol.PlaylistInfo{ID: id, Name: p.Name})
			}
		}
		return nil
	})
	return infos, err
}

func (d *Dispatcher) SetName(ctx context.Context, id uint32, name string) error {
	return d.with(ctx, "set_name", id, func(p *playlist.Playlist) error {
		if name == "" {
			return protocol.ErrInvalidName
		}
		if name == p.Name {
			return nil
		}
		if _, taken := d.byName[name]; taken {
			return protocol.Errorf(protocol.CodeDuplicateName, "playlist %q already exists", name)
		}

		delete(d.byName, p.Name)
		p.Name = name
		d.byName[name] = id
		p.MarkDirty()
		d.emit(protocol.PropertyChanged{ID: id, Property: protocol.PropName})
		return nil
	})
}

func (d *Dispatcher) GetName(ctx context.Context, id uint32) (string, error) {
	var name string
	err := d.with(ctx, "get_name", id, func(p *playlist.Playlist) error {
		name = p.Name
		return nil
	})
	return name, err
}

func (d *Dispatcher) SetRepeat(ctx context.Context, id uint32, repeat bool) error {
	return d.with(ctx, "set_repeat", id, func(p *playlist.Playlist) error {
		if p.Repeat == repeat {
			return nil
		}
		p.Repeat = repeat
		p.MarkDirty()
		d.emit(protocol.PropertyChanged{ID: id, Property: protocol.PropRepeat})
		return nil
	})
}

func (d *Dispatcher) GetRepeat(ctx context.Context, id uint32) (bool, error) {
	var repeat bool
	err := d.with(ctx, "get_repeat", id, func(p *playlist.Playlist) error {
		repeat = p.Repeat
		return nil
	})
	return repeat, err
}

// Shuffle starts a new shuffle round. It is signalled even when the playlist was already shuffled.
func (d *Dispatcher) Shuffle(ctx context.Context, id uint32) error {
	return d.with(ctx, "shuffle", id, func(p *playlist.Playlist) error {
		p.Shuffle()
		d.emit(protocol.PropertyChanged{ID: id, Property: protocol.PropShuffled})
		return nil
	})
}

func (d *Dispatcher) Unshuffle(ctx context.Context, id uint32) error {
	return d.with(ctx, "unshuffle", id, func(p *playlist.Playlist) error {
		if p.Unshuffle() {
			d.emit(protocol.PropertyChanged{ID: id, Property: protocol.PropShuffled})
		}
		return nil
	})
}

func (d *Dispatcher) IsShuffled(ctx context.Context, id uint32) (bool, error) {
	var shuffled bool
	err := d.with(ctx, "is_shuffled", id, func(p *playlist.Playlist) error {
		shuffled = p.Shuffled()
		return nil
	})
	return shuffled, err
}

// IncrementUseCount blocks destruction of playlist id until the caller decrements it or disconnects.
func (d *Dispatcher) IncrementUseCount(ctx context.Context, id uint32) error {
	sender := protocol.SenderFrom(ctx)
	return d.with(ctx, "increment_use_count", id, func(p *playlist.Playlist) error {
		p.UseCount++
		d.holders.add(sender, id)
		metrics.PeersTracked.Set(float64(d.holders.len()))
		return nil
	})
}

func (d *Dispatcher) DecrementUseCount(ctx context.Context, id uint32) error {
	sender := protocol.SenderFrom(ctx)
	return d.with(ctx, "decrement_use_count", id, func(p *playlist.Playlist) error {
		if p.UseCount == 0 {
			return protocol.Errorf(protocol.CodeInvalidUseCount, "use count of playlist %d is already zero", id)
		}
		p.UseCount--
		d.holders.remove(sender, id)
		metrics.PeersTracked.Set(float64(d.holders.len()))
		return nil
	})
}

func (d *Dispatcher) InsertItems(ctx context.Context, id, index uint32, objectIDs []string) error {
	return d.with(ctx, "insert_item", id, func(p *playlist.Playlist) error {
		if int(index) > p.Len() {
			return protocol.Errorf(protocol.CodeInvalidIndex, "index %d beyond %d items", index, p.Len())
		}
		n, err := p.Insert(int(index), objectIDs)
		if err != nil {
			return err
		}
		if n > 0 {
			d.emit(protocol.ContentsChanged{ID: id, From: index, Inserted: uint32(n)})
		}
		return nil
	})
}

func (d *Dispatcher) AppendItems(ctx context.Context, id uint32, objectIDs []string) error {
	return d.with(ctx, "append_item", id, func(p *playlist.Playlist) error {
		from := p.Len()
		n, err := p.Append(objectIDs)
		if err != nil {
			return err
		}
		if n > 0 {
			d.emit(protocol.ContentsChanged{ID: id, From: uint32(from), Inserted: uint32(n)})
		}
		return nil
	})
}

// RemoveItem reports false for an index out of range.
func (d *Dispatcher) RemoveItem(ctx context.Context, id, index uint32) (bool, error) {
	var removed bool
	err := d.with(ctx, "remove_item", id, func(p *playlist.Playlist) error {
		if removed = p.Remove(int(index)); removed {
			d.emit(protocol.ContentsChanged{ID: id, From: index, Removed: 1})
		}
		return nil
	})
	return removed, err
}

func (d *Dispatcher) GetItem(ctx context.Context, id, index uint32) (string, error) {
	var oid string
	err := d.with(ctx, "get_item", id, func(p *playlist.Playlist) error {
		var ok bool
		if oid, ok = p.Item(int(index)); !ok {
			return protocol.Errorf(protocol.CodeInvalidIndex, "index %d beyond %d items", index, p.Len())
		}
		return nil
	})
	return oid, err
}

func (d *Dispatcher) GetItems(ctx context.Context, id, first uint32, last int32) ([]string, error) {
	var items []string
	err := d.with(ctx, "get_items", id, func(p *playlist.Playlist) error {
		if p.Len() == 0 && first == 0 {
			items = []string{}
			return nil
		}
		var ok bool
		if items, ok = p.Items(int(first), int(last)); !ok {
			return protocol.Errorf(protocol.CodeInvalidIndex, "range [%d,%d] invalid for %d items", first, last, p.Len())
		}
		return nil
	})
	return items, err
}

func (d *Dispatcher) position(ctx context.Context, method string, id uint32, fn func(p *playlist.Playlist) (int, string, bool, error)) (protocol.Position, bool, error) {
	var (
		pos protocol.Position
		ok  bool
	)
	err := d.with(ctx, method, id, func(p *playlist.Playlist) error {
		index, oid, found, err := fn(p)
		if err != nil || !found {
			return err
		}
		pos, ok = protocol.Position{Index: uint32(index), ObjectID: oid}, true
		return nil
	})
	return pos, ok, err
}

func (d *Dispatcher) GetStarting(ctx context.Context, id uint32) (protocol.Position, bool, error) {
	return d.position(ctx, "get_starting", id, func(p *playlist.Playlist) (int, string, bool, error) {
		index, oid, ok := p.Starting()
		return index, oid, ok, nil
	})
}

func (d *Dispatcher) GetLast(ctx context.Context, id uint32) (protocol.Position, bool, error) {
	return d.position(ctx, "get_last", id, func(p *playlist.Playlist) (int, string, bool, error) {
		index, oid, ok := p.Last()
		return index, oid, ok, nil
	})
}

// GetNext fails with [protocol.ErrInvalidIndex] for an index out of range and reports false past the end.
func (d *Dispatcher) GetNext(ctx context.Context, id, index uint32) (protocol.Position, bool, error) {
	return d.position(ctx, "get_next", id, func(p *playlist.Playlist) (int, string, bool, error) {
		if int(index) >= p.Len() {
			return 0, "", false, protocol.Errorf(protocol.CodeInvalidIndex, "index %d beyond %d items", index, p.Len())
		}
		next, oid, ok := p.Next(int(index))
		return next, oid, ok, nil
	})
}

func (d *Dispatcher) GetPrev(ctx context.Context, id, index uint32) (protocol.Position, bool, error) {
	return d.position(ctx, "get_prev", id, func(p *playlist.Playlist) (int, string, bool, error) {
		if int(index) >= p.Len() {
			return 0, "", false, protocol.Errorf(protocol.CodeInvalidIndex, "index %d beyond %d items", index, p.Len())
		}
		prev, oid, ok := p.Prev(int(index))
		return prev, oid, ok, nil
	})
}

// MoveItem reports false when either index is out of range or both are equal.
func (d *Dispatcher) MoveItem(ctx context.Context, id, from, to uint32) (bool, error) {
	var moved bool
	err := d.with(ctx, "move", id, func(p *playlist.Playlist) error {
		if moved = p.Move(int(from), int(to)); moved {
			d.emit(protocol.ItemMoved{ID: id, From: from, To: to})
		}
		return nil
	})
	return moved, err
}

func (d *Dispatcher) GetSize(ctx context.Context, id uint32) (uint32, error) {
	var size uint32
	err := d.with(ctx, "get_size", id, func(p *playlist.Playlist) error {
		size = uint32(p.Len())
		return nil
	})
	return size, err
}

func (d *Dispatcher) Clear(ctx context.Context, id uint32) error {
	return d.with(ctx, "clear", id, func(p *playlist.Playlist) error {
		if n := p.Clear(); n > 0 {
			d.emit(protocol.ContentsChanged{ID: id, From: 0, Removed: uint32(n)})
		}
		return nil
	})
}
