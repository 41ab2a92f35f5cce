// Package timeout bounds the time a request may spend in its handler.
package timeout

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/nimburion/apimate/pkg/observability/logger"
	"github.com/nimburion/apimate/pkg/server/router"
)

// Config configures request timeout middleware behavior.
type Config struct {
	// Timeout is the request deadline; zero or less disables the middleware.
	Timeout              time.Duration
	ExcludedPathPrefixes []string
}

// Middleware sets a deadline on the request context. Store operations run
// under that context, so a slow count or find is abandoned when it passes.
// A handler failing on the deadline without writing a response gets a 504.
func Middleware(cfg Config) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		if cfg.Timeout <= 0 {
			return next
		}
		return func(c router.Context) error {
			for _, prefix := range cfg.ExcludedPathPrefixes {
				if strings.HasPrefix(c.Request().URL.Path, prefix) {
					return next(c)
				}
			}

			reqCtx, cancel := context.WithTimeout(c.Request().Context(), cfg.Timeout)
			defer cancel()

			c.SetRequest(c.Request().WithContext(reqCtx))
			err := next(c)
			if !errors.Is(err, context.DeadlineExceeded) && !errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
				return err
			}
			if c.Response().Written() {
				return nil
			}
			return c.JSON(http.StatusGatewayTimeout, map[string]any{
				"error":      "timeout",
				"message":    "request timed out",
				"request_id": logger.RequestIDFromContext(reqCtx),
			})
		}
	}
}
