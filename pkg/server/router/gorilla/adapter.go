// Package gorilla serves router.Router routes with gorilla/mux.
package gorilla

import (
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/mux"
	"github.com/nimburion/apimate/pkg/server/router"
)

// GorillaRouter implements router.Router on a mux.Router or subrouter.
type GorillaRouter struct {
	mux   *mux.Router
	stack *router.Stack
}

func NewRouter() *GorillaRouter {
	return &GorillaRouter{mux: mux.NewRouter(), stack: router.NewStack()}
}

func (r *GorillaRouter) GET(path string, handler router.HandlerFunc, middleware ...router.MiddlewareFunc) {
	h := router.Chain(handler, r.stack.Snapshot(), middleware)
	r.mux.HandleFunc(toMuxPath(path), func(w http.ResponseWriter, req *http.Request) {
		c := &gorillaContext{request: req, response: router.NewResponseWriter(w)}
		err := h(c)
		router.Finish(c.response, err)
	}).Methods(http.MethodGet)
}

func (r *GorillaRouter) Handle(method, path string, handler http.Handler) {
	r.mux.Handle(toMuxPath(path), handler).Methods(method)
}

// Group returns a subrouter under prefix that starts with the current
// middleware plus the given ones.
func (r *GorillaRouter) Group(prefix string, middleware ...router.MiddlewareFunc) router.Router {
	return &GorillaRouter{
		mux:   r.mux.PathPrefix(prefix).Subrouter(),
		stack: router.NewStack(r.stack.Snapshot(middleware...)...),
	}
}

func (r *GorillaRouter) Use(middleware ...router.MiddlewareFunc) { r.stack.Use(middleware...) }

func (r *GorillaRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) { r.mux.ServeHTTP(w, req) }

// toMuxPath rewrites :name segments to {name}.
func toMuxPath(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if name, ok := strings.CutPrefix(p, ":"); ok {
			parts[i] = "{" + name + "}"
		}
	}
	return strings.Join(parts, "/")
}

type gorillaContext struct {
	request  *http.Request
	response router.ResponseWriter

	mu     sync.RWMutex
	values map[string]any
}

func (c *gorillaContext) Request() *http.Request              { return c.request }
func (c *gorillaContext) SetRequest(r *http.Request)          { c.request = r }
func (c *gorillaContext) Response() router.ResponseWriter     { return c.response }
func (c *gorillaContext) SetResponse(w router.ResponseWriter) { c.response = w }
func (c *gorillaContext) Param(name string) string            { return mux.Vars(c.request)[name] }
func (c *gorillaContext) Query(name string) string            { return c.request.URL.Query().Get(name) }
func (c *gorillaContext) JSON(code int, v any) error          { return router.WriteJSON(c.response, code, v) }
func (c *gorillaContext) String(code int, s string) error     { return router.WriteString(c.response, code, s) }

func (c *gorillaContext) Get(key string) any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.values[key]
}

func (c *gorillaContext) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.values == nil {
		c.values = make(map[string]any)
	}
	c.values[key] = value
}
