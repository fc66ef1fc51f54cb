// Package apierr implements the uniform error taxonomy of spec.md §7: every
// handler failure carries an HTTP status and a Kind, and is rendered as
// {error, detail, request_id} on the wire.
package apierr

import (
	"errors"
	"net/http"
)

type Kind string

const (
	KindValidation          Kind = "validation"
	KindUnauthenticated     Kind = "unauthenticated"
	KindUnavailable         Kind = "unavailable"
	KindForbidden           Kind = "forbidden"
	KindNotFound            Kind = "not_found"
	KindConflict            Kind = "conflict"
	KindUpstreamTimeout     Kind = "upstream_timeout"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindInternal            Kind = "internal"
)

var statusByKind = map[Kind]int{
	KindValidation:          http.StatusBadRequest,
	KindUnauthenticated:     http.StatusUnauthorized,
	KindUnavailable:         http.StatusServiceUnavailable,
	KindForbidden:           http.StatusForbidden,
	KindNotFound:            http.StatusNotFound,
	KindConflict:            http.StatusConflict,
	KindUpstreamTimeout:     http.StatusGatewayTimeout,
	KindUpstreamUnavailable: http.StatusBadGateway,
	KindInternal:            http.StatusInternalServerError,
}

// Error is a typed, wire-mappable application error.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Status returns the HTTP status code for e's Kind.
func (e *Error) Status() int {
	if status, ok := statusByKind[e.Kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func Validation(message string) *Error          { return New(KindValidation, message) }
func Unauthenticated(message string) *Error     { return New(KindUnauthenticated, message) }
func Unavailable(message string) *Error         { return New(KindUnavailable, message) }
func Forbidden(message string) *Error           { return New(KindForbidden, message) }
func NotFound(message string) *Error            { return New(KindNotFound, message) }
func Conflict(message string) *Error            { return New(KindConflict, message) }
func UpstreamTimeout(message string) *Error     { return New(KindUpstreamTimeout, message) }
func UpstreamUnavailable(message string) *Error { return New(KindUpstreamUnavailable, message) }
func Internal(message string) *Error            { return New(KindInternal, message) }

// As extracts an *Error from err, falling back to an Internal wrapper for
// anything the service layer didn't classify.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return &Error{Kind: KindInternal, Message: err.Error()}
}
