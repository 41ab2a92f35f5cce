// Package testutil provides a recording logger for middleware tests.
package testutil

import (
	"context"
	"sync"

	"github.com/nimburion/apimate/pkg/observability/logger"
)

// MockLogger records entries in Logs. Loggers derived with With or
// WithContext record into the same Logs, carrying their fields.
type MockLogger struct {
	Logs []LogEntry

	mu     sync.Mutex
	root   *MockLogger
	fields []any
}

// LogEntry is one recorded call.
type LogEntry struct {
	Level  string
	Msg    string
	Fields map[string]any
}

func (m *MockLogger) Debug(msg string, args ...any) { m.record("debug", msg, args) }
func (m *MockLogger) Info(msg string, args ...any)  { m.record("info", msg, args) }
func (m *MockLogger) Warn(msg string, args ...any)  { m.record("warn", msg, args) }
func (m *MockLogger) Error(msg string, args ...any) { m.record("error", msg, args) }

func (m *MockLogger) With(args ...any) logger.Logger {
	fields := append(append([]any{}, m.fields...), args...)
	return &MockLogger{root: m.sink(), fields: fields}
}

func (m *MockLogger) WithContext(ctx context.Context) logger.Logger {
	if requestID := logger.RequestIDFromContext(ctx); requestID != "" {
		return m.With("request_id", requestID)
	}
	return m
}

// Messages returns the recorded messages in order.
func (m *MockLogger) Messages() []string {
	root := m.sink()
	root.mu.Lock()
	defer root.mu.Unlock()
	msgs := make([]string, len(root.Logs))
	for i, entry := range root.Logs {
		msgs[i] = entry.Msg
	}
	return msgs
}

func (m *MockLogger) sink() *MockLogger {
	if m.root != nil {
		return m.root
	}
	return m
}

func (m *MockLogger) record(level, msg string, args []any) {
	fields := make(map[string]any, (len(m.fields)+len(args))/2)
	for _, kv := range [][]any{m.fields, args} {
		for i := 0; i+1 < len(kv); i += 2 {
			if key, ok := kv[i].(string); ok {
				fields[key] = kv[i+1]
			}
		}
	}

	root := m.sink()
	root.mu.Lock()
	defer root.mu.Unlock()
	root.Logs = append(root.Logs, LogEntry{Level: level, Msg: msg, Fields: fields})
}
