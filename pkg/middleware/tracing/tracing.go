// Package tracing starts an OpenTelemetry server span for every request.
package tracing

import (
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"

	httpmetrics "github.com/nimburion/apimate/pkg/middleware/metrics"
	"github.com/nimburion/apimate/pkg/observability/logger"
	"github.com/nimburion/apimate/pkg/server/router"
)

const defaultTracerName = "apimate/http"

type Config struct {
	// TracerName defaults to "apimate/http".
	TracerName string
	// SpanNameFormatter defaults to "HTTP <method> <path>".
	SpanNameFormatter    func(router.Context) string
	ExcludedPathPrefixes []string
}

// Tracing continues the trace of an incoming traceparent header, or starts
// one, and puts the server span in the request context so store spans
// become its children.
func Tracing(cfg Config) router.MiddlewareFunc {
	if cfg.TracerName == "" {
		cfg.TracerName = defaultTracerName
	}
	if cfg.SpanNameFormatter == nil {
		cfg.SpanNameFormatter = func(c router.Context) string {
			return "HTTP " + c.Request().Method + " " + c.Request().URL.Path
		}
	}

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			req := c.Request()
			for _, prefix := range cfg.ExcludedPathPrefixes {
				if strings.HasPrefix(req.URL.Path, prefix) {
					return next(c)
				}
			}

			attrs := []attribute.KeyValue{
				semconv.HTTPMethodKey.String(req.Method),
				semconv.HTTPTargetKey.String(req.URL.Path),
				semconv.HTTPUserAgentKey.String(req.UserAgent()),
			}
			if id := logger.RequestIDFromContext(req.Context()); id != "" {
				attrs = append(attrs, attribute.String("request.id", id))
			}

			// The global provider is looked up per request: tracing may be
			// configured after routes are built.
			parent := otel.GetTextMapPropagator().Extract(req.Context(), propagation.HeaderCarrier(req.Header))
			ctx, span := otel.Tracer(cfg.TracerName).Start(parent, cfg.SpanNameFormatter(c),
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(attrs...),
			)
			defer span.End()

			c.SetRequest(req.WithContext(ctx))
			err := next(c)

			status := httpmetrics.Status(c, err)
			span.SetAttributes(semconv.HTTPStatusCodeKey.Int(status))
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			} else if status >= 500 {
				span.SetStatus(codes.Error, "HTTP "+strconv.Itoa(status))
			} else {
				span.SetStatus(codes.Ok, "")
			}
			return err
		}
	}
}
