// Package server exposes the state of a download run over HTTP.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
// [Middleware] wraps handlers in reverse order (last added executes first),
// following the standard Go pattern, and [BasicRouter] implements the
// interface over [http.ServeMux] with method filtering.
//
// # Status Endpoints
//
// [StatusHandler] serves the persisted plan snapshot: /health for liveness,
// /api/plan for the full item graph and /api/plan/stats for the track tally.
// The handler reloads the snapshot from disk per request, so a server watching
// an in-progress run always reports the executor's latest flush.
package server

import "net/http"

// Middleware wraps an http.Handler and returns a new http.Handler with
// additional behavior such as request logging.
type Middleware func(http.Handler) http.Handler

// Handler is an http.Handler that knows its own route patterns, so route
// definitions live next to the code that serves them.
type Handler interface {
	http.Handler
	Routes() []string // path patterns this handler serves
}

// Router defines HTTP routing and middleware management.
type Router interface {
	Use(middleware ...Middleware)
	Handle(method, path string, handler http.Handler)
	Handler(handler Handler)
	ServeHTTP(w http.ResponseWriter, r *http.Request)
}
