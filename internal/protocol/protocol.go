package protocol

import "context"

// Bus names under which the daemon is reachable.
const (
	ServiceName = "io.github.desertthunder.Plsd"
	ObjectPath  = "/io/github/desertthunder/Plsd"
	Interface   = "io.github.desertthunder.Plsd"
)

// Property names carried by [PropertyChanged].
const (
	PropName     = "name"
	PropRepeat   = "repeat"
	PropShuffled = "is-shuffled"
)

// PlaylistInfo is one entry of [Service.ListPlaylists].
type PlaylistInfo struct {
	ID   uint32
	Name string
}

// Position is a visual index together with the object id found there.
type Position struct {
	Index    uint32
	ObjectID string
}

// Service is the set of operations the playlist daemon exposes.
//
// Index arguments are visual indices. Operations on an unknown playlist fail with [ErrNotFound].
type Service interface {
	CreatePlaylist(ctx context.Context, name string) (uint32, error)
	DuplicatePlaylist(ctx context.Context, id uint32, name string) (uint32, error)
	DestroyPlaylist(ctx context.Context, id uint32) error
	ListPlaylists(ctx context.Context, ids []uint32) ([]PlaylistInfo, error)
	ImportPlaylist(ctx context.Context, uri, baseURI string) (uint32, error)
	CancelImport(ctx context.Context, importID uint32) error

	SetName(ctx context.Context, id uint32, name string) error
	GetName(ctx context.Context, id uint32) (string, error)
	SetRepeat(ctx context.Context, id uint32, repeat bool) error
	GetRepeat(ctx context.Context, id uint32) (bool, error)
	Shuffle(ctx context.Context, id uint32) error
	Unshuffle(ctx context.Context, id uint32) error
	IsShuffled(ctx context.Context, id uint32) (bool, error)
	IncrementUseCount(ctx context.Context, id uint32) error
	DecrementUseCount(ctx context.Context, id uint32) error

	InsertItems(ctx context.Context, id, index uint32, objectIDs []string) error
	AppendItems(ctx context.Context, id uint32, objectIDs []string) error
	RemoveItem(ctx context.Context, id, index uint32) (bool, error)
	GetItem(ctx context.Context, id, index uint32) (string, error)
	// GetItems returns the inclusive range [first, last]; a negative last means the end of the playlist.
	GetItems(ctx context.Context, id, first uint32, last int32) ([]string, error)
	GetStarting(ctx context.Context, id uint32) (Position, bool, error)
	GetLast(ctx context.Context, id uint32) (Position, bool, error)
	GetNext(ctx context.Context, id, index uint32) (Position, bool, error)
	GetPrev(ctx context.Context, id, index uint32) (Position, bool, error)
	MoveItem(ctx context.Context, id, from, to uint32) (bool, error)
	GetSize(ctx context.Context, id uint32) (uint32, error)
	Clear(ctx context.Context, id uint32) error
}

// PeerWatcher is implemented by services that release per-session state when a bus peer disconnects.
type PeerWatcher interface {
	PeerGone(sender string)
}

type senderKey struct{}

// WithSender attaches the bus name of the calling session to ctx.
func WithSender(ctx context.Context, sender string) context.Context {
	return context.WithValue(ctx, senderKey{}, sender)
}

// SenderFrom returns the bus name attached by [WithSender], or "" if none.
func SenderFrom(ctx context.Context) string {
	s, _ := ctx.Value(senderKey{}).(string)
	return s
}
