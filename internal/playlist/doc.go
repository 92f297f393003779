// Package playlist implements the daemon's canonical playlist: an ordered list of object ids with an optional,
// lazily resolved shuffle permutation.
//
// # Visual order and playing order
//
// Items are stored in visual order. When a playlist is shuffled it also keeps two parallel arrays:
// order maps a visual index to its playing slot and inverse maps a playing slot back to a visual index.
// Slots [0, poolStart) are fixed; slots [poolStart, len) form the pool whose assignment is still undecided.
//
// # Lazy permutation
//
// [Playlist.Shuffle] does not permute anything. A slot is fixed only when playback reaches it: each fix picks a
// uniformly random pool slot and swaps it to poolStart. [Playlist.Item] and the navigation methods force-fix the
// visual index they are asked about; [Playlist.Last] and a backward wrap resolve the whole pool.
//
// A Playlist is not safe for concurrent use. The daemon dispatcher owns every instance from a single goroutine.
package playlist
