// Package apperr defines the error kinds surfaced to users of the sheet service.
package apperr

import (
	"errors"
	"net/http"
)

// Code is a machine-readable error kind.
type Code string

const (
	// CodeUnknown is reported for errors that carry no kind.
	CodeUnknown Code = "UNKNOWN"
	// CodeParseFailure marks a malformed or truncated save payload.
	CodeParseFailure Code = "PARSE_FAILURE"
	// CodeFetchFailure marks an unreachable network or remote service.
	CodeFetchFailure Code = "FETCH_FAILURE"
	// CodeAuthFailure marks a missing, expired, or denied credential.
	CodeAuthFailure Code = "AUTH_FAILURE"
	// CodeConfigMissing marks required external configuration that is absent.
	CodeConfigMissing Code = "CONFIG_MISSING"
	// CodeValidationFailure marks input that parsed but breaks a rule.
	CodeValidationFailure Code = "VALIDATION_FAILURE"
	// CodeNotFound marks a lookup that yielded nothing.
	CodeNotFound Code = "NOT_FOUND"
	// CodeConflict marks an operation overlapping another on the same record.
	CodeConflict Code = "CONFLICT"
	// CodeReadOnly marks a mutation attempted on a shared record.
	CodeReadOnly Code = "READ_ONLY"
)

// Error is the application error type with structured metadata.
type Error struct {
	Code     Code              // machine-readable kind
	Message  string            // internal message for logs
	Metadata map[string]string // extra context for message templating
	Cause    error             // wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates an error of the given kind.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates an error of the given kind wrapping cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// WithMetadata creates an error carrying metadata for message templating.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata}
}

// Sentinels for use with errors.Is.
var (
	ErrParseFailure      = New(CodeParseFailure, "parse failure")
	ErrFetchFailure      = New(CodeFetchFailure, "fetch failure")
	ErrAuthFailure       = New(CodeAuthFailure, "auth failure")
	ErrConfigMissing     = New(CodeConfigMissing, "config missing")
	ErrValidationFailure = New(CodeValidationFailure, "validation failure")
	ErrNotFound          = New(CodeNotFound, "not found")
	ErrConflict          = New(CodeConflict, "conflict")
	ErrReadOnly          = New(CodeReadOnly, "read only")
)

// CodeOf returns the kind of the first *Error in err's chain.
//
// Postcondition: Returns CodeUnknown when err is nil-free of *Error values.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// MetadataOf returns the metadata of the first *Error in err's chain.
func MetadataOf(err error) map[string]string {
	var e *Error
	if errors.As(err, &e) {
		return e.Metadata
	}
	return nil
}

// HTTPStatus maps an error kind to an HTTP status code.
func HTTPStatus(code Code) int {
	switch code {
	case CodeParseFailure, CodeValidationFailure:
		return http.StatusBadRequest
	case CodeAuthFailure:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeReadOnly:
		return http.StatusForbidden
	case CodeFetchFailure:
		return http.StatusBadGateway
	case CodeConfigMissing:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
