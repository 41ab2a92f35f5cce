// Package recovery turns handler panics into 500 responses.
package recovery

import (
	"net/http"
	"runtime/debug"

	"github.com/nimburion/apimate/pkg/observability/logger"
	"github.com/nimburion/apimate/pkg/server/router"
)

// Recovery logs a panic with its stack and answers 500 with the standard
// error body, unless the handler had already started the response.
func Recovery(log logger.Logger) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) (err error) {
			defer func() {
				p := recover()
				if p == nil {
					return
				}
				id := logger.RequestIDFromContext(c.Request().Context())
				log.Error("panic recovered", "request_id", id, "panic", p, "stack", string(debug.Stack()))
				if !c.Response().Written() {
					err = c.JSON(http.StatusInternalServerError, map[string]string{
						"error":      "internal_server_error",
						"message":    "an unexpected error occurred",
						"request_id": id,
					})
				}
			}()
			return next(c)
		}
	}
}
