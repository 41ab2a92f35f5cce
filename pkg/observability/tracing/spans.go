// Package tracing sets up OpenTelemetry export and traces store operations.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName names the tracer of store spans.
const InstrumentationName = "github.com/nimburion/apimate/store"

// Operation is the db.operation of a store span.
type Operation string

const (
	OpCount  Operation = "count"
	OpFind   Operation = "find"
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
	// OpLookup is the batched read resolving one relation.
	OpLookup Operation = "lookup"
)

// SpanOption adds detail to a store span.
type SpanOption func(*spanConfig)

type spanConfig struct {
	collection string
	attrs      []attribute.KeyValue
}

func Collection(name string) SpanOption {
	return func(c *spanConfig) {
		c.collection = name
		c.attrs = append(c.attrs, semconv.DBMongoDBCollectionKey.String(name))
	}
}

// Schema is the catalog resource the operation serves.
func Schema(name string) SpanOption {
	return func(c *spanConfig) { c.attrs = append(c.attrs, attribute.String("apimate.schema", name)) }
}

// Statement is the filter, as extended JSON.
func Statement(s string) SpanOption {
	return func(c *spanConfig) { c.attrs = append(c.attrs, semconv.DBStatementKey.String(s)) }
}

func Limit(n int) SpanOption {
	return func(c *spanConfig) { c.attrs = append(c.attrs, attribute.Int("db.limit", n)) }
}

// StartDatabaseSpan starts a client span named "<operation> <collection>",
// or just the operation when no collection is given.
func StartDatabaseSpan(ctx context.Context, op Operation, opts ...SpanOption) (context.Context, trace.Span) {
	cfg := spanConfig{attrs: []attribute.KeyValue{semconv.DBSystemMongoDB, semconv.DBOperationKey.String(string(op))}}
	for _, opt := range opts {
		opt(&cfg)
	}
	name := string(op)
	if cfg.collection != "" {
		name += " " + cfg.collection
	}
	return otel.Tracer(InstrumentationName).Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(cfg.attrs...),
	)
}

// End sets the span status from err and ends it.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
