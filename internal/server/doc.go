// Package server provides the daemon's small HTTP surface: a method-aware router with middleware, request
// logging, a health endpoint and a graceful [Serve] loop.
//
// # Router
//
// [BasicRouter] implements [Router] on top of [http.ServeMux]. Middleware registered with [BasicRouter.Use]
// wraps every handler registered afterwards; the first middleware added is the outermost.
//
// # Handlers
//
// A [Handler] carries its own routes, so it can be mounted with a single [Router.Handler] call. [Health] is
// one: it reports whether the playlist service answers calls.
//
// # Current Usage
//
// "plsd daemon run" mounts /metrics and /healthz when metrics_addr is configured.
package server
