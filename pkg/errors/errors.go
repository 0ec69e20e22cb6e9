package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error represents a marketplace request error with type information
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	if e.Code == 0 {
		return fmt.Sprintf("%s error: %s", e.Type, e.Message)
	}
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same Type, so callers can compare
// against a bare &Error{Type: ...}.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Type == e.Type && (t.Code == 0 || t.Code == e.Code)
}

// New builds an Error of the given type
func New(typ ErrorType, code int, format string, args ...interface{}) *Error {
	return &Error{Type: typ, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given type around an underlying cause
func Wrap(typ ErrorType, err error, message string) *Error {
	return &Error{Type: typ, Message: fmt.Sprintf("%s: %v", message, err), Err: err}
}

// FromStatus classifies a non-success HTTP status
func FromStatus(statusCode int) *Error {
	typ := TypeForStatus(statusCode)
	return &Error{
		Type:    typ,
		Message: fmt.Sprintf("unexpected status %d %s", statusCode, http.StatusText(statusCode)),
		Code:    statusCode,
	}
}

// TypeForStatus maps an HTTP status code to an ErrorType
func TypeForStatus(statusCode int) ErrorType {
	switch {
	case statusCode == 0:
		return ErrorTypeNetwork
	case statusCode == http.StatusUnauthorized, statusCode == http.StatusForbidden:
		return ErrorTypeAuth
	case statusCode == http.StatusNotFound, statusCode == http.StatusGone:
		return ErrorTypeNotFound
	case statusCode >= 500:
		return ErrorTypeServerError
	default:
		return ErrorTypeUnknown
	}
}

// TypeOf returns the ErrorType carried by err, or ErrorTypeUnknown
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}
