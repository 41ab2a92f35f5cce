package query

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrBadRequest matches every request validation failure.
	ErrBadRequest = errors.New("bad request")
	// ErrInvalidDefaultSort is reported when a schema declares a default sort
	// that its fields cannot serve.
	ErrInvalidDefaultSort = errors.New("invalid default sort")
	// ErrInvalidSchema matches every schema definition failure.
	ErrInvalidSchema = errors.New("invalid schema")
)

// Issue codes carried by ValidationError.
const (
	CodeUnknownField      = "unknown_field"
	CodeInvalidOperator   = "invalid_operator"
	CodeInvalidValue      = "invalid_value"
	CodeMalformedFilter   = "malformed_filter"
	CodeUnsupportedSort   = "unsupported_sort"
	CodeInvalidSort       = "invalid_sort"
	CodeInvalidLimit      = "invalid_limit"
	CodeInvalidPage       = "invalid_page"
	CodeInvalidCursor     = "invalid_cursor"
	CodeInvalidPagination = "invalid_pagination"
	CodeInvalidParameter  = "invalid_parameter"
)

// Issue describes one problem found in a request.
type Issue struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	if i.Field == "" {
		return i.Message
	}
	return i.Field + ": " + i.Message
}

// ValidationError aggregates every issue found while parsing one request.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Issues) == 0 {
		return ErrBadRequest.Error()
	}
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		parts = append(parts, issue.String())
	}
	return ErrBadRequest.Error() + ": " + strings.Join(parts, "; ")
}

// Is makes errors.Is(err, ErrBadRequest) hold for validation errors.
func (e *ValidationError) Is(target error) bool {
	return target == ErrBadRequest
}

// Fields returns the distinct fields named by the issues.
func (e *ValidationError) Fields() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, issue := range e.Issues {
		if _, ok := seen[issue.Field]; ok {
			continue
		}
		seen[issue.Field] = struct{}{}
		out = append(out, issue.Field)
	}
	return out
}

// issues collects problems while a request is parsed.
type issues []Issue

func (is *issues) add(field, code, format string, args ...any) {
	*is = append(*is, Issue{Field: field, Code: code, Message: fmt.Sprintf(format, args...)})
}

func (is *issues) addErr(err error) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		*is = append(*is, ve.Issues...)
		return
	}
	*is = append(*is, Issue{Code: CodeInvalidParameter, Message: err.Error()})
}

func (is issues) has(field string) bool {
	for _, i := range is {
		if i.Field == field {
			return true
		}
	}
	return false
}

func (is issues) err() error {
	if len(is) == 0 {
		return nil
	}
	return &ValidationError{Issues: append([]Issue(nil), is...)}
}

func newIssue(field, code, format string, args ...any) *ValidationError {
	return &ValidationError{Issues: []Issue{{Field: field, Code: code, Message: fmt.Sprintf(format, args...)}}}
}

// SchemaError is raised while a schema is being defined.
type SchemaError struct {
	Schema string
	Field  string
	Reason string
	Err    error
}

func (e *SchemaError) Error() string {
	msg := "schema " + e.Schema
	if e.Field != "" {
		msg += ": field " + e.Field
	}
	msg += ": " + e.Reason
	return msg
}

func (e *SchemaError) Unwrap() error {
	if e.Err == nil {
		return ErrInvalidSchema
	}
	return e.Err
}

// Is makes every SchemaError match ErrInvalidSchema.
func (e *SchemaError) Is(target error) bool {
	return target == ErrInvalidSchema
}
