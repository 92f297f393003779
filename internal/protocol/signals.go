package protocol

import "fmt"

// Signal is a broadcast notification. The set of implementations is closed.
type Signal interface {
	// Name returns the bus member name of the signal.
	Name() string
	isSignal()
}

// Signal member names.
const (
	SigPlaylistCreated     = "playlist_created"
	SigPlaylistDestroyed   = "playlist_destroyed"
	SigDestructionFailed   = "playlist_destruction_failed"
	SigContentsChanged     = "contents_changed"
	SigItemMoved           = "item_moved"
	SigPropertyChanged     = "property_changed"
	SigPlaylistImported    = "playlist_imported"
	SigServiceOwnerChanged = "service_owner_changed"
)

type baseSignal struct{}

func (baseSignal) isSignal() {}

// PlaylistCreated is emitted once per underlying creation.
type PlaylistCreated struct {
	baseSignal
	ID uint32
}

// PlaylistDestroyed is emitted once a playlist has been removed.
type PlaylistDestroyed struct {
	baseSignal
	ID uint32
}

// DestructionFailed is emitted when a destroy request was refused because the playlist is in use.
type DestructionFailed struct {
	baseSignal
	ID uint32
}

// ContentsChanged describes a structural change starting at visual index From.
type ContentsChanged struct {
	baseSignal
	ID       uint32
	From     uint32
	Removed  uint32
	Inserted uint32
}

// ItemMoved reports a visual relocation of one item.
type ItemMoved struct {
	baseSignal
	ID   uint32
	From uint32
	To   uint32
}

// PropertyChanged reports a changed playlist property (see the Prop* constants).
type PropertyChanged struct {
	baseSignal
	ID       uint32
	Property string
}

// PlaylistImported completes an import session; exactly one of PlaylistID and Err is set.
type PlaylistImported struct {
	baseSignal
	ImportID   uint32
	PlaylistID uint32
	Err        *Error
}

// ServiceOwnerChanged is synthesized by transports when the service name gets a new owner.
// Owner is empty while nobody owns the name.
type ServiceOwnerChanged struct {
	baseSignal
	Owner string
}

func (PlaylistCreated) Name() string     { return SigPlaylistCreated }
func (PlaylistDestroyed) Name() string   { return SigPlaylistDestroyed }
func (DestructionFailed) Name() string   { return SigDestructionFailed }
func (ContentsChanged) Name() string     { return SigContentsChanged }
func (ItemMoved) Name() string           { return SigItemMoved }
func (PropertyChanged) Name() string     { return SigPropertyChanged }
func (PlaylistImported) Name() string    { return SigPlaylistImported }
func (ServiceOwnerChanged) Name() string { return SigServiceOwnerChanged }

// PlaylistID returns the playlist a signal refers to, or false for signals not bound to one playlist.
func PlaylistID(sig Signal) (uint32, bool) {
	switch s := sig.(type) {
	case PlaylistCreated:
		return s.ID, true
	case PlaylistDestroyed:
		return s.ID, true
	case DestructionFailed:
		return s.ID, true
	case ContentsChanged:
		return s.ID, true
	case ItemMoved:
		return s.ID, true
	case PropertyChanged:
		return s.ID, true
	default:
		return 0, false
	}
}

// Describe renders a signal for logs and the watch command.
func Describe(sig Signal) string {
	switch s := sig.(type) {
	case PlaylistCreated:
		return fmt.Sprintf("%s id=%d", s.Name(), s.ID)
	case PlaylistDestroyed:
		return fmt.Sprintf("%s id=%d", s.Name(), s.ID)
	case DestructionFailed:
		return fmt.Sprintf("%s id=%d", s.Name(), s.ID)
	case ContentsChanged:
		return fmt.Sprintf("%s id=%d from=%d removed=%d inserted=%d", s.Name(), s.ID, s.From, s.Removed, s.Inserted)
	case ItemMoved:
		return fmt.Sprintf("%s id=%d from=%d to=%d", s.Name(), s.ID, s.From, s.To)
	case PropertyChanged:
		return fmt.Sprintf("%s id=%d property=%s", s.Name(), s.ID, s.Property)
	case PlaylistImported:
		if s.Err != nil {
			return fmt.Sprintf("%s import=%d error=%q", s.Name(), s.ImportID, s.Err.Message)
		}
		return fmt.Sprintf("%s import=%d id=%d", s.Name(), s.ImportID, s.PlaylistID)
	case ServiceOwnerChanged:
		return fmt.Sprintf("%s owner=%q", s.Name(), s.Owner)
	default:
		return fmt.Sprintf("%T", sig)
	}
}
