// Package metrics exposes apimate's Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is what /metrics serves: the query and HTTP metrics of this
// package, Go runtime and process metrics, and whatever the application adds.
type Registry struct {
	reg *prometheus.Registry
}

func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		queryDuration, queryItemsTotal, queryErrorsTotal,
		httpDuration, httpServed, httpInFlight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Registry{reg: reg}
}

func (r *Registry) Register(c prometheus.Collector) error { return r.reg.Register(c) }
func (r *Registry) Gatherer() prometheus.Gatherer         { return r.reg }

// Handler negotiates the Prometheus text or OpenMetrics format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
