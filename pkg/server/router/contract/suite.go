// Package contract checks that router adapters behave the same way for the
// routes the resource controllers and middleware depend on.
package contract

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/nimburion/apimate/pkg/server/router"
)

type ctxKey struct{}

type routerCase struct {
	name       string
	setup      func(t *testing.T, r router.Router)
	target     string
	wantStatus int
	wantBody   string
	check      func(t *testing.T, rec *httptest.ResponseRecorder)
}

// Run registers each case on a fresh router from newRouter and checks the
// response.
func Run(t *testing.T, newRouter func() router.Router) {
	t.Helper()
	for _, tc := range cases() {
		t.Run(tc.name, func(t *testing.T) {
			r := newRouter()
			tc.setup(t, r)

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.target, nil))

			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d (body %q)", rec.Code, tc.wantStatus, rec.Body.String())
			}
			if tc.wantBody != "" && strings.TrimSpace(rec.Body.String()) != tc.wantBody {
				t.Fatalf("body = %q, want %q", rec.Body.String(), tc.wantBody)
			}
			if tc.check != nil {
				tc.check(t, rec)
			}
		})
	}
}

func text(body string) router.HandlerFunc {
	return func(c router.Context) error { return c.String(http.StatusOK, body) }
}

func record(trail *[]string, name string) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			*trail = append(*trail, name)
			return next(c)
		}
	}
}

func cases() []routerCase {
	filter := url.QueryEscape(`{"title":["%","go"],"stock":{">=":10}}`)

	return []routerCase{
		{
			name: "list and item routes",
			setup: func(t *testing.T, r router.Router) {
				r.GET("/articles", text("list"))
				r.GET("/articles/:id", func(c router.Context) error {
					return c.String(http.StatusOK, "item "+c.Param("id"))
				})
			},
			target:     "/articles/65f1c2a9e4b0a1b2c3d4e5f6",
			wantStatus: http.StatusOK,
			wantBody:   "item 65f1c2a9e4b0a1b2c3d4e5f6",
		},
		{
			name:       "unknown route",
			setup:      func(t *testing.T, r router.Router) { r.GET("/articles", text("list")) },
			target:     "/users",
			wantStatus: http.StatusNotFound,
		},
		{
			name: "encoded filter query",
			setup: func(t *testing.T, r router.Router) {
				r.GET("/articles", func(c router.Context) error {
					return c.String(http.StatusOK, c.Query("filter")+"|"+c.Query("limit")+"|"+c.Query("missing"))
				})
			},
			target:     "/articles?filter=" + filter + "&limit=5&limit=9",
			wantStatus: http.StatusOK,
			wantBody:   `{"title":["%","go"],"stock":{">=":10}}|5|`,
		},
		{
			name: "base path group",
			setup: func(t *testing.T, r router.Router) {
				api := r.Group("/api")
				api.Group("/v1").GET("/articles", text("nested"))
			},
			target:     "/api/v1/articles",
			wantStatus: http.StatusOK,
			wantBody:   "nested",
		},
		{
			name: "middleware order",
			setup: func(t *testing.T, r router.Router) {
				var trail []string
				r.Use(record(&trail, "global"))
				group := r.Group("/api", record(&trail, "group"))
				group.GET("/articles", func(c router.Context) error {
					trail = append(trail, "handler")
					return c.String(http.StatusOK, strings.Join(trail, ","))
				}, record(&trail, "route"))
			},
			target:     "/api/articles",
			wantStatus: http.StatusOK,
			wantBody:   "global,group,route,handler",
		},
		{
			name: "use applies to later routes",
			setup: func(t *testing.T, r router.Router) {
				r.GET("/healthz", text("ok"))
				r.Use(func(router.HandlerFunc) router.HandlerFunc {
					return func(c router.Context) error { return c.String(http.StatusTooManyRequests, "limited") }
				})
				r.GET("/articles", text("list"))
			},
			target:     "/healthz",
			wantStatus: http.StatusOK,
			wantBody:   "ok",
		},
		{
			name: "mounted handler bypasses middleware",
			setup: func(t *testing.T, r router.Router) {
				r.Use(func(router.HandlerFunc) router.HandlerFunc {
					return func(router.Context) error { return errors.New("middleware ran") }
				})
				r.Handle(http.MethodGet, "/metrics", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
					_, _ = io.WriteString(w, "raw")
				}))
			},
			target:     "/metrics",
			wantStatus: http.StatusOK,
			wantBody:   "raw",
		},
		{
			name: "unwritten error answers 500",
			setup: func(t *testing.T, r router.Router) {
				r.GET("/articles", func(router.Context) error { return errors.New("store down") })
			},
			target:     "/articles",
			wantStatus: http.StatusInternalServerError,
		},
		{
			name: "written error keeps response",
			setup: func(t *testing.T, r router.Router) {
				r.GET("/articles", func(c router.Context) error {
					_ = c.JSON(http.StatusBadRequest, map[string]string{"error": "bad_request"})
					return errors.New("already answered")
				})
			},
			target:     "/articles",
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"bad_request"}`,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
					t.Fatalf("Content-Type = %q", ct)
				}
			},
		},
		{
			name: "request replaced by middleware",
			setup: func(t *testing.T, r router.Router) {
				r.Use(func(next router.HandlerFunc) router.HandlerFunc {
					return func(c router.Context) error {
						c.SetRequest(c.Request().WithContext(context.WithValue(c.Request().Context(), ctxKey{}, "req-1")))
						return next(c)
					}
				})
				r.GET("/articles", func(c router.Context) error {
					v, _ := c.Request().Context().Value(ctxKey{}).(string)
					return c.String(http.StatusOK, v)
				})
			},
			target:     "/articles",
			wantStatus: http.StatusOK,
			wantBody:   "req-1",
		},
		{
			name: "response replaced by middleware",
			setup: func(t *testing.T, r router.Router) {
				r.Use(func(next router.HandlerFunc) router.HandlerFunc {
					return func(c router.Context) error {
						base := c.Response()
						c.SetResponse(&upperWriter{ResponseWriter: base})
						defer c.SetResponse(base)
						return next(c)
					}
				})
				r.GET("/articles", text("list"))
			},
			target:     "/articles",
			wantStatus: http.StatusOK,
			wantBody:   "LIST",
		},
		{
			name: "response writer state",
			setup: func(t *testing.T, r router.Router) {
				r.GET("/articles", func(c router.Context) error {
					rw := c.Response()
					if rw.Written() {
						t.Error("Written() before any write")
					}
					rw.WriteHeader(http.StatusCreated)
					if !rw.Written() || rw.Status() != http.StatusCreated {
						t.Errorf("after WriteHeader: written=%v status=%d", rw.Written(), rw.Status())
					}
					_, err := rw.Write([]byte("created"))
					return err
				})
			},
			target:     "/articles",
			wantStatus: http.StatusCreated,
			wantBody:   "created",
		},
		{
			name: "context values",
			setup: func(t *testing.T, r router.Router) {
				r.Use(func(next router.HandlerFunc) router.HandlerFunc {
					return func(c router.Context) error {
						c.Set("resource", "articles")
						return next(c)
					}
				})
				r.GET("/articles", func(c router.Context) error {
					if c.Get("missing") != nil {
						t.Error("Get() of a missing key is not nil")
					}
					return c.String(http.StatusOK, c.Get("resource").(string))
				})
			},
			target:     "/articles",
			wantStatus: http.StatusOK,
			wantBody:   "articles",
		},
	}
}

type upperWriter struct {
	router.ResponseWriter
}

func (w *upperWriter) Write(p []byte) (int, error) {
	return w.ResponseWriter.Write([]byte(strings.ToUpper(string(p))))
}
