// Package logging writes one structured access log entry per request.
package logging

import (
	"strings"
	"time"

	"github.com/nimburion/apimate/pkg/middleware/metrics"
	"github.com/nimburion/apimate/pkg/observability/logger"
	"github.com/nimburion/apimate/pkg/server/router"
)

// Log field name constants
const (
	FieldRequestID  = "request_id"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatus     = "status"
	FieldDurationMS = "duration_ms"
	FieldRemoteAddr = "remote_addr"
	FieldError      = "error"
)

// Config configures request logging middleware behavior.
type Config struct {
	Enabled bool
	// ExcludedPathPrefixes are not logged, e.g. "/healthz" and "/metrics".
	ExcludedPathPrefixes []string
}

// DefaultConfig logs every request.
func DefaultConfig() Config {
	return Config{Enabled: true}
}

// Logging creates request logging middleware with the default config.
func Logging(log logger.Logger) router.MiddlewareFunc {
	return WithConfig(log, DefaultConfig())
}

// WithConfig creates request logging middleware. Handler errors and 5xx
// responses are logged at error level, 4xx at warn and the rest at info.
func WithConfig(log logger.Logger, cfg Config) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			req := c.Request()
			if cfg.excluded(req.URL.Path) {
				return next(c)
			}

			start := time.Now()
			err := next(c)

			status := metrics.Status(c, err)
			args := []any{
				FieldRequestID, logger.RequestIDFromContext(c.Request().Context()),
				FieldMethod, req.Method,
				FieldPath, req.URL.Path,
				FieldStatus, status,
				FieldDurationMS, time.Since(start).Milliseconds(),
				FieldRemoteAddr, req.RemoteAddr,
			}
			if req.URL.RawQuery != "" {
				args = append(args, FieldQuery, req.URL.RawQuery)
			}
			if err != nil {
				log.Error("request failed", append(args, FieldError, err)...)
				return err
			}
			switch {
			case status >= 500:
				log.Error("request completed", args...)
			case status >= 400:
				log.Warn("request completed", args...)
			default:
				log.Info("request completed", args...)
			}
			return nil
		}
	}
}

func (c Config) excluded(path string) bool {
	if !c.Enabled {
		return true
	}
	for _, prefix := range c.ExcludedPathPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
