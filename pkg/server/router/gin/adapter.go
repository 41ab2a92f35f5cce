// Package gin serves router.Router routes with gin-gonic.
package gin

import (
	"net/http"

	ginpkg "github.com/gin-gonic/gin"
	"github.com/nimburion/apimate/pkg/server/router"
)

// GinRouter implements router.Router on a gin engine or one of its groups.
type GinRouter struct {
	engine *ginpkg.Engine
	routes ginpkg.IRoutes
	group  *ginpkg.RouterGroup
	stack  *router.Stack
}

// NewRouter creates a router on a bare engine in release mode, without gin's
// logger and recovery.
func NewRouter() *GinRouter {
	ginpkg.SetMode(ginpkg.ReleaseMode)
	engine := ginpkg.New()
	return &GinRouter{
		engine: engine,
		routes: engine,
		group:  &engine.RouterGroup,
		stack:  router.NewStack(),
	}
}

func (r *GinRouter) GET(path string, handler router.HandlerFunc, middleware ...router.MiddlewareFunc) {
	h := router.Chain(handler, r.stack.Snapshot(), middleware)
	r.routes.GET(path, func(gc *ginpkg.Context) {
		c := &ginContext{gc: gc, response: router.NewResponseWriter(gc.Writer)}
		err := h(c)
		router.Finish(c.response, err)
	})
}

func (r *GinRouter) Handle(method, path string, handler http.Handler) {
	r.routes.Handle(method, path, ginpkg.WrapH(handler))
}

// Group returns a gin group under prefix that starts with the current
// middleware plus the given ones.
func (r *GinRouter) Group(prefix string, middleware ...router.MiddlewareFunc) router.Router {
	group := r.group.Group(prefix)
	return &GinRouter{
		engine: r.engine,
		routes: group,
		group:  group,
		stack:  router.NewStack(r.stack.Snapshot(middleware...)...),
	}
}

func (r *GinRouter) Use(middleware ...router.MiddlewareFunc) { r.stack.Use(middleware...) }

func (r *GinRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) { r.engine.ServeHTTP(w, req) }

type ginContext struct {
	gc       *ginpkg.Context
	response router.ResponseWriter
}

func (c *ginContext) Request() *http.Request              { return c.gc.Request }
func (c *ginContext) SetRequest(r *http.Request)          { c.gc.Request = r }
func (c *ginContext) Response() router.ResponseWriter     { return c.response }
func (c *ginContext) SetResponse(w router.ResponseWriter) { c.response = w }
func (c *ginContext) Param(name string) string            { return c.gc.Param(name) }
func (c *ginContext) Query(name string) string            { return c.gc.Query(name) }
func (c *ginContext) JSON(code int, v any) error          { return router.WriteJSON(c.response, code, v) }
func (c *ginContext) String(code int, s string) error     { return router.WriteString(c.response, code, s) }
func (c *ginContext) Set(key string, value any)           { c.gc.Set(key, value) }

// Get returns nil for unknown keys.
func (c *ginContext) Get(key string) any {
	v, _ := c.gc.Get(key)
	return v
}
