// Package apperr defines the error taxonomy shared by the booking core and
// the HTTP layer.  Every error that leaves the core is an *Error carrying a
// Kind; handlers map the kind to a stable HTTP status and never inspect
// messages.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the request boundary.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindExternal
	KindNotFound
	KindSecurity
	KindConfiguration
)

var kindNames = map[Kind]string{
	KindInternal:      "internal_error",
	KindValidation:    "validation_error",
	KindConflict:      "conflict",
	KindExternal:      "external_service_error",
	KindNotFound:      "not_found",
	KindSecurity:      "security_error",
	KindConfiguration: "configuration_error",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Error is the concrete error type.  Fields holds per-field validation
// messages and is only populated for KindValidation.
type Error struct {
	Kind      Kind
	Message   string
	Fields    map[string][]string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// AddField records a validation message for field.
func (e *Error) AddField(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

// Validation reports malformed or out-of-range input.
func Validation(msg string) *Error { return &Error{Kind: KindValidation, Message: msg} }

// Validationf is Validation with formatting.
func Validationf(format string, args ...any) *Error {
	return Validation(fmt.Sprintf(format, args...))
}

// Conflict reports that the requested room or window is taken, or that a
// lock could not be obtained.  Callers may retry with another room or time.
func Conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg, Retryable: true}
}

// External wraps a failure of a third-party service such as the payment
// gateway.
func External(msg string, err error) *Error {
	return &Error{Kind: KindExternal, Message: msg, Retryable: true, Err: err}
}

// NotFound reports an unknown reference code, room or reservation.
func NotFound(msg string) *Error { return &Error{Kind: KindNotFound, Message: msg} }

// Security reports a rejected signature or identity mismatch.
func Security(msg string) *Error { return &Error{Kind: KindSecurity, Message: msg} }

// Configuration reports missing or inconsistent server-side configuration.
func Configuration(msg string) *Error { return &Error{Kind: KindConfiguration, Message: msg} }

// Internal wraps an unexpected failure.
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// As returns the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	if ae, ok := As(err); ok {
		return ae.Kind
	}
	return KindInternal
}

// Is reports whether err is an *Error of kind k.
func Is(err error, k Kind) bool {
	ae, ok := As(err)
	return ok && ae.Kind == k
}

// HTTPStatus maps a kind to the status code returned at the request boundary.
func HTTPStatus(k Kind) int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindExternal:
		return http.StatusBadGateway
	case KindNotFound:
		return http.StatusNotFound
	case KindSecurity:
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}
