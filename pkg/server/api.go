package server

import (
	"net/http"

	"github.com/nimburion/apimate/pkg/config"
	"github.com/nimburion/apimate/pkg/health"
	"github.com/nimburion/apimate/pkg/middleware/compression"
	"github.com/nimburion/apimate/pkg/middleware/logging"
	"github.com/nimburion/apimate/pkg/middleware/recovery"
	"github.com/nimburion/apimate/pkg/middleware/requestid"
	"github.com/nimburion/apimate/pkg/middleware/timeout"
	"github.com/nimburion/apimate/pkg/middleware/tracing"
	"github.com/nimburion/apimate/pkg/observability/logger"
	"github.com/nimburion/apimate/pkg/observability/metrics"
	"github.com/nimburion/apimate/pkg/server/router"
)

// Operational endpoints mounted next to the resources.
const (
	LivenessPath  = "/healthz"
	ReadinessPath = "/readyz"
	MetricsPath   = "/metrics"
)

// APIServer serves the resource endpoints plus liveness, readiness and
// Prometheus metrics on one port.
type APIServer struct {
	*Server
	resources router.Router
	health    *health.Registry
}

// NewAPIServer applies the middleware stack to r, in order request ID,
// response compression, tracing, access logging, panic recovery and the
// request timeout, and mounts the operational endpoints.
// A nil metrics registry leaves /metrics unmounted.
func NewAPIServer(cfg config.HTTPConfig, r router.Router, log logger.Logger, checks *health.Registry, reg *metrics.Registry) *APIServer {
	if checks == nil {
		checks = health.NewRegistry()
	}

	ops := []string{LivenessPath, ReadinessPath, MetricsPath}
	compress := compression.DefaultConfig()
	compress.Enabled = cfg.Compression
	compress.ExcludedPathPrefixes = ops
	r.Use(
		requestid.RequestID(),
		compression.Middleware(compress),
		tracing.Tracing(tracing.Config{ExcludedPathPrefixes: ops}),
		logging.WithConfig(log, logging.Config{
			Enabled:              true,
			ExcludedPathPrefixes: ops,
		}),
		recovery.Recovery(log),
		timeout.Middleware(timeout.Config{
			Timeout:              cfg.RequestTimeout,
			ExcludedPathPrefixes: ops,
		}),
	)

	s := &APIServer{
		Server: NewServer(Config{
			Port:            cfg.Port,
			ReadTimeout:     cfg.ReadTimeout,
			WriteTimeout:    cfg.WriteTimeout,
			IdleTimeout:     cfg.IdleTimeout,
			ShutdownTimeout: cfg.ShutdownTimeout,
		}, r, log),
		health: checks,
	}

	r.GET(LivenessPath, s.handleHealth)
	r.GET(ReadinessPath, s.handleReady)
	if reg != nil {
		r.Handle(http.MethodGet, MetricsPath, reg.Handler())
	}

	s.resources = r
	if cfg.BasePath != "" {
		s.resources = r.Group(cfg.BasePath)
	}
	return s
}

// Resources returns the router resource endpoints are registered on, scoped
// to the configured base path.
func (s *APIServer) Resources() router.Router {
	return s.resources
}

// handleHealth always answers 200 while the process serves requests.
func (s *APIServer) handleHealth(c router.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"status": health.StatusHealthy})
}

// handleReady answers 503 when a required dependency check fails.
func (s *APIServer) handleReady(c router.Context) error {
	result := s.health.Check(c.Request().Context())
	if !result.Ready() {
		return c.JSON(http.StatusServiceUnavailable, result)
	}
	return c.JSON(http.StatusOK, result)
}
