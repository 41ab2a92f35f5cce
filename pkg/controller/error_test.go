package controller

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/nimburion/apimate/pkg/observability/logger"
	"github.com/nimburion/apimate/pkg/query"
	"github.com/nimburion/apimate/pkg/repository/document"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appError *AppError
		want     string
	}{
		{name: "message", appError: NewValidationError("validation failed", nil), want: "validation failed"},
		{name: "with cause", appError: NewInternalError("database error", errors.New("connection timeout")), want: "database error: connection timeout"},
		{name: "code only", appError: &AppError{Code: "resource.not_found"}, want: "resource.not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.appError.Error(); got != tt.want {
				t.Errorf("AppError.Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	if got := NewInternalError("boom", cause).Unwrap(); got != cause {
		t.Errorf("AppError.Unwrap() = %v, want %v", got, cause)
	}
}

func TestMapError(t *testing.T) {
	ctx := logger.ContextWithRequestID(context.Background(), "req-123")
	_, parseErr := query.Parse(query.MustSchema("items", nil, []query.FieldDef{
		query.F("n", query.Int()),
	}), query.Params{Filter: map[string]any{"missing": 1}})

	tests := []struct {
		name          string
		err           error
		ctx           context.Context
		wantStatus    int
		wantCategory  string
		wantMessage   string
		wantRequestID string
		wantIssues    bool
	}{
		{
			name:          "query validation",
			err:           parseErr,
			ctx:           ctx,
			wantStatus:    http.StatusBadRequest,
			wantCategory:  "validation_error",
			wantMessage:   "invalid query",
			wantRequestID: "req-123",
			wantIssues:    true,
		},
		{
			name:          "bare bad request",
			err:           fmt.Errorf("decode: %w", query.ErrBadRequest),
			ctx:           ctx,
			wantStatus:    http.StatusBadRequest,
			wantCategory:  "validation_error",
			wantMessage:   "decode: bad request",
			wantRequestID: "req-123",
		},
		{
			name:          "not found",
			err:           fmt.Errorf("%w: bad id", document.ErrNotFound),
			ctx:           ctx,
			wantStatus:    http.StatusNotFound,
			wantCategory:  "not_found",
			wantMessage:   "resource not found",
			wantRequestID: "req-123",
		},
		{
			name:          "deadline exceeded",
			err:           fmt.Errorf("find articles: %w", context.DeadlineExceeded),
			ctx:           ctx,
			wantStatus:    http.StatusGatewayTimeout,
			wantCategory:  "timeout",
			wantMessage:   "request timed out",
			wantRequestID: "req-123",
		},
		{
			name:          "app error",
			err:           fmt.Errorf("wrapped: %w", NewInternalError("database connection failed", nil)),
			ctx:           ctx,
			wantStatus:    http.StatusInternalServerError,
			wantCategory:  "internal_server_error",
			wantMessage:   "database connection failed",
			wantRequestID: "req-123",
		},
		{
			name:         "status inferred from code",
			err:          &AppError{Code: "validation.limit", Message: "too many"},
			ctx:          context.Background(),
			wantStatus:   http.StatusBadRequest,
			wantCategory: "validation_error",
			wantMessage:  "too many",
		},
		{
			name:          "store error stays opaque",
			err:           errors.New("connection refused 10.0.0.7:27017"),
			ctx:           ctx,
			wantStatus:    http.StatusInternalServerError,
			wantCategory:  "internal_server_error",
			wantMessage:   "an unexpected error occurred",
			wantRequestID: "req-123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := MapError(tt.ctx, tt.err)

			if status != tt.wantStatus {
				t.Errorf("status = %v, want %v", status, tt.wantStatus)
			}
			if resp.Error != tt.wantCategory {
				t.Errorf("category = %v, want %v", resp.Error, tt.wantCategory)
			}
			if resp.Message != tt.wantMessage {
				t.Errorf("message = %v, want %v", resp.Message, tt.wantMessage)
			}
			if resp.RequestID != tt.wantRequestID {
				t.Errorf("request id = %v, want %v", resp.RequestID, tt.wantRequestID)
			}
			if tt.wantIssues {
				issues, ok := resp.Details["issues"].([]query.Issue)
				if !ok || len(issues) != 1 || issues[0].Field != "missing" {
					t.Errorf("issues = %#v", resp.Details["issues"])
				}
			}
		})
	}
}

func TestAppError_StatusFromCode(t *testing.T) {
	tests := map[string]int{
		"validation.limit":  http.StatusBadRequest,
		CodeNotFound:        http.StatusNotFound,
		"upstream.timeout":  http.StatusGatewayTimeout,
		"internal.database": http.StatusInternalServerError,
		"conflict":          http.StatusBadRequest,
	}
	for code, want := range tests {
		if got := (&AppError{Code: code}).status(); got != want {
			t.Errorf("status(%q) = %d, want %d", code, got, want)
		}
	}
	if got := (&AppError{Code: CodeNotFound, HTTPStatus: http.StatusGone}).status(); got != http.StatusGone {
		t.Errorf("explicit status ignored: %d", got)
	}
}
