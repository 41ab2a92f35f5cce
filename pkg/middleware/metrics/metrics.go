// Package metrics records Prometheus metrics for HTTP requests.
package metrics

import (
	"net/http"
	"time"

	"github.com/nimburion/apimate/pkg/observability/metrics"
	"github.com/nimburion/apimate/pkg/server/router"
)

// Metrics creates route middleware that tracks in-flight requests and
// records duration and count labelled with the registered route pattern.
// Using the pattern instead of the raw path keeps ids out of label values.
func Metrics(route string) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			done := metrics.TrackInFlight()
			defer done()

			start := time.Now()
			err := next(c)

			metrics.RecordHTTP(c.Request().Method, route, Status(c, err), time.Since(start))
			return err
		}
	}
}

// Status is the status the client receives: adapters answer 500 for an
// error returned before anything was written.
func Status(c router.Context, err error) int {
	if err != nil && !c.Response().Written() {
		return http.StatusInternalServerError
	}
	return c.Response().Status()
}
