package recovery

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nimburion/apimate/pkg/middleware/requestid"
	"github.com/nimburion/apimate/pkg/middleware/testutil"
	"github.com/nimburion/apimate/pkg/server/router"
	"github.com/nimburion/apimate/pkg/server/router/gin"
)

func TestRecovery_PanicBecomes500(t *testing.T) {
	log := &testutil.MockLogger{}
	r := gin.NewRouter()
	r.Use(requestid.RequestID(), Recovery(log))
	r.GET("/panic", func(router.Context) error {
		panic("boom")
	})

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	req.Header.Set(requestid.RequestIDHeader, "req-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["request_id"] != "req-1" || body["error"] != "internal_server_error" {
		t.Fatalf("unexpected body: %v", body)
	}

	if len(log.Logs) != 1 || log.Logs[0].Level != "error" {
		t.Fatalf("expected one error entry, got %+v", log.Logs)
	}
	if log.Logs[0].Fields["panic"] != "boom" || log.Logs[0].Fields["stack"] == "" {
		t.Fatalf("panic entry missing fields: %+v", log.Logs[0].Fields)
	}
}

func TestRecovery_KeepsWrittenResponse(t *testing.T) {
	r := gin.NewRouter()
	r.Use(Recovery(&testutil.MockLogger{}))
	r.GET("/late", func(c router.Context) error {
		_ = c.String(http.StatusAccepted, "partial")
		panic("after write")
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/late", nil))

	if rec.Code != http.StatusAccepted || rec.Body.String() != "partial" {
		t.Fatalf("got %d %q, want the already written response", rec.Code, rec.Body.String())
	}
}

func TestRecovery_PassesThrough(t *testing.T) {
	log := &testutil.MockLogger{}
	r := gin.NewRouter()
	r.Use(Recovery(log))
	r.GET("/ok", func(c router.Context) error { return c.String(http.StatusOK, "ok") })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))

	if rec.Code != http.StatusOK || len(log.Logs) != 0 {
		t.Fatalf("got %d with %d log entries", rec.Code, len(log.Logs))
	}
}
