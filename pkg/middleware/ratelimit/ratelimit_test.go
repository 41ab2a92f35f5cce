package ratelimit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nimburion/apimate/pkg/config"
	"github.com/nimburion/apimate/pkg/middleware/requestid"
	"github.com/nimburion/apimate/pkg/middleware/testutil"
	"github.com/nimburion/apimate/pkg/server/router"
	"github.com/nimburion/apimate/pkg/server/router/factory"
)

func newRouter(t *testing.T, limiter Limiter, cfg Config) router.Router {
	t.Helper()
	r, err := factory.NewRouter("gorilla")
	if err != nil {
		t.Fatalf("router: %v", err)
	}
	r.Use(requestid.RequestID(), RateLimit(limiter, cfg))
	r.GET("/articles", func(c router.Context) error { return c.String(http.StatusOK, "ok") })
	return r
}

func request(r router.Router, remoteAddr string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/articles", nil)
	req.RemoteAddr = remoteAddr
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRateLimit_RejectsOverBurst(t *testing.T) {
	r := newRouter(t, NewTokenBucketLimiter(1, 2), Config{})

	for i := 0; i < 2; i++ {
		if rec := request(r, "10.0.0.1:5000", nil); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, rec.Code)
		}
	}

	rec := request(r, "10.0.0.1:5001", map[string]string{requestid.RequestIDHeader: "req-429"})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Fatalf("Retry-After = %q", rec.Header().Get("Retry-After"))
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != "rate_limited" || body["request_id"] != "req-429" {
		t.Fatalf("body = %v", body)
	}

	if rec := request(r, "10.0.0.2:5000", nil); rec.Code != http.StatusOK {
		t.Fatalf("other client: status = %d, want 200", rec.Code)
	}
}

func TestRateLimit_CustomKey(t *testing.T) {
	r := newRouter(t, NewTokenBucketLimiter(1, 1), Config{
		KeyFunc: func(c router.Context) string { return c.Request().Header.Get("X-Tenant") },
	})

	if rec := request(r, "10.0.0.1:1", map[string]string{"X-Tenant": "a"}); rec.Code != http.StatusOK {
		t.Fatalf("tenant a: status = %d", rec.Code)
	}
	if rec := request(r, "10.0.0.2:1", map[string]string{"X-Tenant": "a"}); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("tenant a again: status = %d, want 429", rec.Code)
	}
	if rec := request(r, "10.0.0.1:1", map[string]string{"X-Tenant": "b"}); rec.Code != http.StatusOK {
		t.Fatalf("tenant b: status = %d", rec.Code)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{name: "remote addr", remoteAddr: "192.0.2.1:1234", want: "192.0.2.1"},
		{name: "remote addr without port", remoteAddr: "192.0.2.1", want: "192.0.2.1"},
		{name: "forwarded for", remoteAddr: "10.0.0.1:1", headers: map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, want: "203.0.113.7"},
		{name: "real ip", remoteAddr: "10.0.0.1:1", headers: map[string]string{"X-Real-IP": " 203.0.113.9 "}, want: "203.0.113.9"},
		{
			name:       "forwarded for wins",
			remoteAddr: "10.0.0.1:1",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.7", "X-Real-IP": "203.0.113.9"},
			want:       "203.0.113.7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := ClientIP(req); got != tt.want {
				t.Fatalf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNew_InMemory(t *testing.T) {
	limiter, err := New(config.RateLimitConfig{Enabled: true, RequestsPerSecond: 5, Burst: 5}, &testutil.MockLogger{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, ok := limiter.(*TokenBucketLimiter); !ok {
		t.Fatalf("New() = %T, want *TokenBucketLimiter", limiter)
	}
	if err := limiter.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestNew_InvalidRedisURL(t *testing.T) {
	_, err := New(config.RateLimitConfig{Enabled: true, RequestsPerSecond: 5, RedisURL: "memcached://cache:11211"}, &testutil.MockLogger{})
	if err == nil {
		t.Fatal("expected error for a non redis URL")
	}
}
