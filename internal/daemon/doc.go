// Package daemon implements the playlist service owned by the `plsd daemon` process.
//
// [Dispatcher] is an actor: a single goroutine owns every playlist and processes commands from one channel.
// Service calls, debounced save timers, finished imports and peer disconnects are all posted to that channel,
// so no playlist is ever touched concurrently and signals leave the daemon in the order the mutations happened.
//
// # Persistence
//
// Every mutation marks the playlist dirty and (re)starts its save timer. A failed save is retried after another
// delay until it succeeds; the failure is logged at most once a minute. [Dispatcher.Stop] saves whatever is still
// dirty.
//
// # Use counts
//
// A positive use count blocks destruction. Increments are attributed to the caller's bus name, and when a bus
// peer disappears without decrementing, the counts it raised are released.
package daemon
