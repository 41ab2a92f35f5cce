// Package controller maps list and lookup requests onto HTTP responses.
package controller

import (
	"cmp"
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/nimburion/apimate/pkg/observability/logger"
	"github.com/nimburion/apimate/pkg/query"
	"github.com/nimburion/apimate/pkg/repository/document"
)

// Error codes of the errors this package creates.
const (
	CodeValidation = "validation.failed"
	CodeNotFound   = "resource.not_found"
	CodeTimeout    = "request.timeout"
	CodeInternal   = "internal.error"
)

const internalMessage = "an unexpected error occurred"

// AppError is an error carrying the HTTP answer it maps to. A zero
// HTTPStatus is derived from the code's prefix.
type AppError struct {
	Code       string
	Message    string
	Details    map[string]any
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	msg := cmp.Or(e.Message, e.Code)
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *AppError) Unwrap() error { return e.Cause }

func (e *AppError) status() int {
	if e.HTTPStatus != 0 {
		return e.HTTPStatus
	}
	code := strings.ToLower(e.Code)
	switch {
	case strings.HasPrefix(code, "validation."):
		return http.StatusBadRequest
	case strings.Contains(code, "not_found"):
		return http.StatusNotFound
	case strings.Contains(code, "timeout"):
		return http.StatusGatewayTimeout
	case strings.HasPrefix(code, "internal."):
		return http.StatusInternalServerError
	}
	return http.StatusBadRequest
}

func NewValidationError(message string, details map[string]any) *AppError {
	return &AppError{Code: CodeValidation, Message: message, Details: details, HTTPStatus: http.StatusBadRequest}
}

func NewNotFoundError(message string) *AppError {
	return &AppError{Code: CodeNotFound, Message: message, HTTPStatus: http.StatusNotFound}
}

func NewTimeoutError(message string) *AppError {
	return &AppError{Code: CodeTimeout, Message: message, HTTPStatus: http.StatusGatewayTimeout}
}

// NewInternalError keeps cause for logs; clients only see message.
func NewInternalError(message string, cause error) *AppError {
	return &AppError{Code: CodeInternal, Message: message, HTTPStatus: http.StatusInternalServerError, Cause: cause}
}

// ErrorResponse is the body of every error answer.
type ErrorResponse struct {
	Error     string         `json:"error"`
	Code      string         `json:"code,omitempty"`
	Message   string         `json:"message,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// MapError turns err into a status and body. Query validation errors answer
// 400 with their issues under details.issues, missing documents 404, expired
// deadlines 504, and anything unrecognized an opaque 500.
func MapError(ctx context.Context, err error) (int, ErrorResponse) {
	resp := ErrorResponse{RequestID: logger.RequestIDFromContext(ctx)}

	appErr := asAppError(err)
	if appErr == nil {
		resp.Error, resp.Message = category(http.StatusInternalServerError), internalMessage
		return http.StatusInternalServerError, resp
	}
	status := appErr.status()
	resp.Error = category(status)
	if strings.HasPrefix(appErr.Code, "validation.") {
		resp.Error = category(http.StatusBadRequest)
	}
	resp.Code = appErr.Code
	resp.Message = cmp.Or(appErr.Message, internalMessage)
	resp.Details = appErr.Details
	return status, resp
}

func asAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	var ve *query.ValidationError
	switch {
	case errors.As(err, &ve):
		return NewValidationError("invalid query", map[string]any{"issues": ve.Issues})
	case errors.Is(err, query.ErrBadRequest):
		return NewValidationError(err.Error(), nil)
	case errors.Is(err, document.ErrNotFound):
		return NewNotFoundError("resource not found")
	case errors.Is(err, context.DeadlineExceeded):
		return NewTimeoutError("request timed out")
	}
	return nil
}

func category(status int) string {
	switch {
	case status == http.StatusBadRequest:
		return "validation_error"
	case status == http.StatusNotFound:
		return "not_found"
	case status == http.StatusGatewayTimeout:
		return "timeout"
	case status >= 500:
		return "internal_server_error"
	}
	return "application_error"
}
