package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nimburion/apimate/pkg/observability/metrics"
	"github.com/nimburion/apimate/pkg/server/router"
	"github.com/nimburion/apimate/pkg/server/router/gin"
)

func TestMetrics_RecordsByRoute(t *testing.T) {
	reg := metrics.NewRegistry()
	r := gin.NewRouter()
	r.GET("/articles/:id", func(c router.Context) error {
		return c.String(http.StatusOK, c.Param("id"))
	}, Metrics("/articles/:id"))
	r.GET("/broken", func(router.Context) error {
		return errors.New("boom")
	}, Metrics("/broken"))

	for _, path := range []string{"/articles/1", "/articles/2", "/broken"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	families, err := reg.Gatherer().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	counts := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "apimate_http_requests_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			counts[labels["route"]+" "+labels["status"]] += m.GetCounter().GetValue()
		}
	}

	if counts["/articles/:id 200"] != 2 {
		t.Errorf("article route count = %v, want 2 (got %v)", counts["/articles/:id 200"], counts)
	}
	if counts["/broken 500"] != 1 {
		t.Errorf("broken route count = %v, want 1 (got %v)", counts["/broken 500"], counts)
	}
	for key := range counts {
		if key == "/articles/1 200" || key == "/articles/2 200" {
			t.Errorf("raw path leaked into labels: %s", key)
		}
	}
}
