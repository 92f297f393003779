// Package storage persists playlists as one text file per playlist.
//
// # Format
//
// A record named <id>.pls looks like:
//
//	plsd-playlist 1
//	id 7
//	name "Road trip"
//	repeat 0
//	shuffled 1
//	size 3
//	pool-start 1
//	2,urisource::file:///music/a.flac
//	0,urisource::file:///music/b.flac
//	1,urisource::file:///music/c.flac
//
// Each item line holds the playing slot of the item followed by its object id. Unshuffled playlists store the
// visual position as the slot.
//
// # Crash safety
//
// [Store.Save] writes <id>.pls.tmp, syncs it and renames it over the record. [Store.LoadAll] finishes or discards
// temporary files left behind by an interrupted save before reading the records.
//
// [Saver] debounces saves: every change restarts a per-playlist timer and the owner is called back once the
// playlist has been quiet for the configured delay.
package storage
