// Package protocol defines the wire contract between the playlist daemon and its clients.
//
// # Methods
//
// The [Service] interface lists every call a client can make. The daemon's dispatcher implements it directly;
// bus connections (in-process or D-Bus) implement it on the client side by forwarding calls to whichever
// process currently owns the service name.
//
// The caller's session name travels in the context ([WithSender], [SenderFrom]) so the daemon can attribute
// use-count increments to a connection and release them when that connection goes away.
//
// # Signals
//
// [Signal] is a closed set of broadcast notifications. Every mutation of a playlist produces exactly one signal,
// and creation/destruction produce exactly one signal per underlying event. [ServiceOwnerChanged] is never
// emitted by the daemon: transports synthesize it when the bus reports a new owner for the service name.
//
// # Errors
//
// Daemon failures are returned as [*Error] values carrying a domain, a machine-checkable [Code] and a
// human-readable message. Sentinel errors such as [ErrNotFound] match any [*Error] with the same code through
// [errors.Is].
package protocol
