// Package apperr defines the application error taxonomy. Every failure that
// crosses the HTTP boundary is an *Error with a kind that fixes its status
// code and a payload shaped as {"content": {"message": ..., "code"?, ...}}.
// Stack traces and causes stay in logs, never in responses.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error and fixes its HTTP status code.
type Kind int

const (
	KindInternal Kind = iota
	KindBadRequest
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindRequestTimeout
	KindUnprocessable
	KindTooManyRequests
	KindNotImplemented
	KindUnavailable
)

// Error is the single error type exposed to transport layers.
type Error struct {
	Kind    Kind
	Message string
	Code    string
	Context map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap exposes the cause for errors.Is / errors.As chains.
func (e *Error) Unwrap() error { return e.cause }

// WithCode attaches a machine-readable code to the payload.
func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

// WithCause records the underlying error for logs. It never reaches clients.
func (e *Error) WithCause(err error) *Error {
	e.cause = err
	return e
}

// WithContext merges an extra key into the payload content.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any, 4)
	}
	e.Context[key] = value
	return e
}

// HTTPStatus maps the kind to its status code.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindRequestTimeout:
		return http.StatusRequestTimeout
	case KindUnprocessable:
		return http.StatusUnprocessableEntity
	case KindTooManyRequests:
		return http.StatusTooManyRequests
	case KindNotImplemented:
		return http.StatusNotImplemented
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Payload renders the wire envelope.
func (e *Error) Payload() map[string]any {
	content := make(map[string]any, 2+len(e.Context))
	content["message"] = e.Message
	if e.Code != "" {
		content["code"] = e.Code
	}
	for k, v := range e.Context {
		content[k] = v
	}
	return map[string]any{"content": content}
}

// New builds an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func BadRequest(message string) *Error      { return New(KindBadRequest, message) }
func Unauthorized(message string) *Error    { return New(KindUnauthorized, message) }
func Forbidden(message string) *Error       { return New(KindForbidden, message) }
func NotFound(message string) *Error        { return New(KindNotFound, message) }
func Conflict(message string) *Error        { return New(KindConflict, message) }
func RequestTimeout(message string) *Error  { return New(KindRequestTimeout, message) }
func Unprocessable(message string) *Error   { return New(KindUnprocessable, message) }
func TooManyRequests(message string) *Error { return New(KindTooManyRequests, message) }
func NotImplemented(message string) *Error  { return New(KindNotImplemented, message) }
func Unavailable(message string) *Error     { return New(KindUnavailable, message) }
func Internal(message string) *Error        { return New(KindInternal, message) }

// From normalizes any error into an *Error. Known application errors pass
// through untouched; everything else becomes an opaque internal error so
// driver details never leak to clients.
func From(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	if pe := fromPG(err); pe != nil {
		return pe
	}
	return Internal("Internal server error").WithCause(err)
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == kind
}
