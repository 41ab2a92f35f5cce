package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// queryDuration tracks store operations run for list requests.
	// Labels: schema, operation (count, find, lookup)
	queryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "apimate_query_duration_seconds",
			Help:    "Duration of store operations serving queries, in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"schema", "operation"},
	)

	queryItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apimate_query_items_total",
			Help: "Total number of records returned by list queries",
		},
		[]string{"schema"},
	)

	queryErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apimate_query_errors_total",
			Help: "Total number of failed store operations serving queries",
		},
		[]string{"schema", "operation"},
	)
)

// RecordQuery records one store operation. A non-nil err also counts as a failure.
func RecordQuery(schema, operation string, duration time.Duration, err error) {
	queryDuration.WithLabelValues(schema, operation).Observe(duration.Seconds())
	if err != nil {
		queryErrorsTotal.WithLabelValues(schema, operation).Inc()
	}
}

// AddItems counts the records returned for schema.
func AddItems(schema string, n int) {
	if n > 0 {
		queryItemsTotal.WithLabelValues(schema).Add(float64(n))
	}
}
