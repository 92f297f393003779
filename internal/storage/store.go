package storage

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/plsd/internal/playlist"
)

const (
	ext    = ".pls"
	tmpExt = ".pls.tmp"
)

// Store reads and writes playlist records in one directory.
type Store struct {
	dir    string
	logger *log.Logger
}

// NewStore returns a Store rooted at dir. The directory is created by [Store.LoadAll].
func NewStore(dir string, logger *log.Logger) *Store {
	return &Store{dir: dir, logger: logger}
}

// Dir returns the playlist directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the record path of playlist id.
func (s *Store) Path(id uint32) string {
	return filepath.Join(s.dir, strconv.FormatUint(uint64(id), 10)+ext)
}

// Save atomically replaces the record of p.
func (s *Store) Save(p *playlist.Playlist) error {
	final := s.Path(p.ID)
	tmp := final + ".tmp"

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}

	if err := Encode(f, p); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("failed to replace %s: %w", final, err)
	}
	return nil
}

// Remove deletes the record of playlist id. A missing record is not an error.
func (s *Store) Remove(id uint32) error {
	if err := os.Remove(s.Path(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove playlist %d: %w", id, err)
	}
	return nil
}

// LoadAll recovers interrupted saves and reads every record, ordered by id.
// Malformed records are skipped with a warning. It returns the highest id seen, including skipped records.
func (s *Store) LoadAll() ([]*playlist.Playlist, uint32, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, 0, fmt.Errorf("failed to create playlist directory: %w", err)
	}

	if err := s.recover(); err != nil {
		return nil, 0, err
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read playlist directory: %w", err)
	}

	var (
		loaded []*playlist.Playlist
		maxID  uint32
	)
	for _, e := range entries {
		id, ok := recordID(e.Name(), ext)
		if !ok || !e.Type().IsRegular() {
			continue
		}
		maxID = max(maxID, id)

		p, err := s.load(filepath.Join(s.dir, e.Name()))
		if err != nil {
			s.logger.Warn("skipping playlist record", "file", e.Name(), "error", err)
			continue
		}
		if p.ID != id {
			s.logger.Warn("skipping playlist record", "file", e.Name(), "error", fmt.Sprintf("record id %d", p.ID))
			continue
		}
		loaded = append(loaded, p)
	}

	slices.SortFunc(loaded, func(a, b *playlist.Playlist) int { return cmp.Compare(a.ID, b.ID) })
	return loaded, maxID, nil
}

// recover finishes saves interrupted after the temporary file was complete and discards the rest.
func (s *Store) recover() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("failed to read playlist directory: %w", err)
	}

	for _, e := range entries {
		id, ok := recordID(e.Name(), tmpExt)
		if !ok {
			continue
		}
		tmp := filepath.Join(s.dir, e.Name())

		if e.Type().IsRegular() && s.validTmp(tmp) {
			if err := os.Rename(tmp, s.Path(id)); err != nil {
				return fmt.Errorf("failed to recover %s: %w", e.Name(), err)
			}
			s.logger.Info("recovered interrupted save", "id", id)
			continue
		}

		if err := os.RemoveAll(tmp); err != nil {
			return fmt.Errorf("failed to discard %s: %w", e.Name(), err)
		}
		s.logger.Warn("discarded incomplete save", "file", e.Name())
	}
	return nil
}

func (s *Store) validTmp(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		return false
	}
	_, err = s.load(path)
	return err == nil
}

func (s *Store) load(path string) (*playlist.Playlist, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

func recordID(name, suffix string) (uint32, bool) {
	base, ok := strings.CutSuffix(name, suffix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(base, 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint32(id), true
}
