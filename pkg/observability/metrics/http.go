package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// route is the registered pattern, never the raw path, so cardinality stays
// bounded by the routes the service declares.
var httpLabels = []string{"method", "route", "status"}

var (
	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "apimate",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Time spent serving a request, in seconds.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, httpLabels)

	httpServed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "apimate",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Requests served, by route and status.",
	}, httpLabels)

	httpInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "apimate",
		Subsystem: "http",
		Name:      "requests_in_flight",
		Help:      "Requests currently being served.",
	})
)

// RecordHTTP records one served request.
func RecordHTTP(method, route string, status int, elapsed time.Duration) {
	labels := prometheus.Labels{"method": method, "route": route, "status": strconv.Itoa(status)}
	httpDuration.With(labels).Observe(elapsed.Seconds())
	httpServed.With(labels).Inc()
}

// TrackInFlight counts a request as in flight until the returned func runs.
func TrackInFlight() func() {
	httpInFlight.Inc()
	return httpInFlight.Dec
}
