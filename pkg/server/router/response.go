package router

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"
)

// NewResponseWriter wraps w to record the status code sent.
func NewResponseWriter(w http.ResponseWriter) ResponseWriter {
	return &statusWriter{ResponseWriter: w}
}

type statusWriter struct {
	http.ResponseWriter
	mu     sync.RWMutex
	status int
}

// WriteHeader sends code once; later calls are ignored.
func (w *statusWriter) WriteHeader(code int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.status != 0 {
		return
	}
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.Written() {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// Status is 200 until a status is sent.
func (w *statusWriter) Status() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func (w *statusWriter) Written() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.status != 0
}

// Unwrap lets http.ResponseController reach the connection.
func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// WriteJSON encodes v as the response body.
func WriteJSON(w ResponseWriter, code int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(v)
}

// WriteString sends s as a plain text body.
func WriteString(w ResponseWriter, code int, s string) error {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	_, err := io.WriteString(w, s)
	return err
}

// Finish answers 500 when a handler failed before writing a response.
// Handlers that map their own errors have written by then.
func Finish(w ResponseWriter, err error) {
	if err == nil || w.Written() {
		return
	}
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

// Stack holds the middleware a router applies to the routes registered
// after each Use call.
type Stack struct {
	mu          sync.RWMutex
	middlewares []MiddlewareFunc
}

// NewStack starts a stack with a copy of middlewares.
func NewStack(middlewares ...MiddlewareFunc) *Stack {
	return &Stack{middlewares: append([]MiddlewareFunc(nil), middlewares...)}
}

func (s *Stack) Use(middlewares ...MiddlewareFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.middlewares = append(s.middlewares, middlewares...)
}

// Snapshot returns the current middleware followed by extra.
func (s *Stack) Snapshot(extra ...MiddlewareFunc) []MiddlewareFunc {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]MiddlewareFunc, 0, len(s.middlewares)+len(extra))
	out = append(out, s.middlewares...)
	return append(out, extra...)
}
