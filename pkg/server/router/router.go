// Package router is the routing surface resource handlers are written
// against. The gin and gorilla subpackages adapt it to a concrete router.
package router

import "net/http"

type Router interface {
	// GET registers a read handler. Path parameters use the :name form.
	GET(path string, handler HandlerFunc, middleware ...MiddlewareFunc)

	// Handle mounts h as is, outside every middleware.
	Handle(method, path string, handler http.Handler)

	// Group shares prefix and middleware among the routes registered on it.
	Group(prefix string, middleware ...MiddlewareFunc) Router

	// Use only affects routes registered after the call.
	Use(middleware ...MiddlewareFunc)

	ServeHTTP(w http.ResponseWriter, r *http.Request)
}

// HandlerFunc handles one request. An error returned before anything was
// written is answered with a 500 by the adapter.
type HandlerFunc func(Context) error

type MiddlewareFunc func(HandlerFunc) HandlerFunc

// Context is one request in flight.
type Context interface {
	Request() *http.Request
	// SetRequest replaces the request, to carry a derived context.
	SetRequest(r *http.Request)

	Response() ResponseWriter
	// SetResponse swaps the writer later handlers write to.
	SetResponse(w ResponseWriter)

	// Param is the value of a :name path segment.
	Param(name string) string

	// Query is the first value of a query parameter.
	Query(name string) string

	JSON(code int, v any) error
	String(code int, s string) error

	// Get and Set hold values for the lifetime of the request.
	Get(key string) any
	Set(key string, value any)
}

// ResponseWriter remembers the status sent.
type ResponseWriter interface {
	http.ResponseWriter

	// Status is 200 until a header is written.
	Status() int
	Written() bool
}

// Chain applies global then route middleware around h, outermost first.
func Chain(h HandlerFunc, global, route []MiddlewareFunc) HandlerFunc {
	for i := len(route) - 1; i >= 0; i-- {
		h = route[i](h)
	}
	for i := len(global) - 1; i >= 0; i-- {
		h = global[i](h)
	}
	return h
}
