// Package requestid tags every request with a correlation ID.
package requestid

import (
	"github.com/google/uuid"
	"github.com/nimburion/apimate/pkg/observability/logger"
	"github.com/nimburion/apimate/pkg/server/router"
)

const (
	RequestIDHeader = "X-Request-ID"
	// ContextKey holds the ID among the router.Context values.
	ContextKey = "request_id"

	maxLength = 128
)

// RequestID reuses a well-formed incoming X-Request-ID or generates a UUID.
// The ID is echoed in the response and stored in the request context, where
// logger.WithContext and error bodies pick it up.
func RequestID() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			id := c.Request().Header.Get(RequestIDHeader)
			if !valid(id) {
				id = uuid.NewString()
			}
			c.Set(ContextKey, id)
			c.Response().Header().Set(RequestIDHeader, id)
			c.SetRequest(c.Request().WithContext(logger.ContextWithRequestID(c.Request().Context(), id)))
			return next(c)
		}
	}
}

// valid accepts up to 128 printable ASCII characters without spaces, so
// client supplied IDs cannot forge log fields.
func valid(id string) bool {
	if id == "" || len(id) > maxLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] <= ' ' || id[i] > '~' {
			return false
		}
	}
	return true
}
