// Package errors provides structured errors with HTTP status mapping for the HTTP surface.
package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/pscheid92/pixelboard/internal/domain"
)

// ErrorType is the category of an error, used for metrics labels and responses.
type ErrorType string

const (
	TypeValidation   ErrorType = "validation"
	TypeUnauthorized ErrorType = "unauthorized"
	TypeForbidden    ErrorType = "forbidden"
	TypeNotFound     ErrorType = "not_found"
	TypeRateLimited  ErrorType = "rate_limited"
	TypeInternal     ErrorType = "internal"
	TypeExternal     ErrorType = "external"
	TypeUnavailable  ErrorType = "unavailable"
)

// Error represents a structured error with type, message, and context.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the status code for this error type.
func (e *Error) HTTPStatus() int {
	switch e.Type {
	case TypeValidation:
		return http.StatusBadRequest
	case TypeUnauthorized:
		return http.StatusUnauthorized
	case TypeForbidden:
		return http.StatusForbidden
	case TypeNotFound:
		return http.StatusNotFound
	case TypeRateLimited:
		return http.StatusTooManyRequests
	case TypeExternal:
		return http.StatusBadGateway
	case TypeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func newError(t ErrorType, message string, cause error) *Error {
	return &Error{Type: t, Message: message, Cause: cause, Context: make(map[string]any)}
}

func ValidationError(message string) *Error { return newError(TypeValidation, message, nil) }

func UnauthorizedError(message string) *Error { return newError(TypeUnauthorized, message, nil) }

func ForbiddenError(message string) *Error { return newError(TypeForbidden, message, nil) }

func NotFoundError(message string) *Error { return newError(TypeNotFound, message, nil) }

func RateLimitedError(message string) *Error { return newError(TypeRateLimited, message, nil) }

func InternalError(message string, cause error) *Error {
	return newError(TypeInternal, message, cause)
}

func ExternalError(message string, cause error) *Error {
	return newError(TypeExternal, message, cause)
}

func UnavailableError(message string, cause error) *Error {
	return newError(TypeUnavailable, message, cause)
}

// WithField adds a context field (chainable).
func (e *Error) WithField(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// ErrorResponse is the JSON body sent to clients.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Type    ErrorType      `json:"type"`
	Context map[string]any `json:"context,omitempty"`
}

func (e *Error) ToResponse() ErrorResponse {
	return ErrorResponse{Error: e.Message, Type: e.Type, Context: e.Context}
}

// AsStructuredError converts any error into a structured Error. Domain sentinels map to their
// matching type; everything else becomes an internal error.
func AsStructuredError(err error) *Error {
	if err == nil {
		return nil
	}

	var structuredErr *Error
	if errors.As(err, &structuredErr) {
		return structuredErr
	}

	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		return newError(TypeUnauthorized, "invalid credentials", err)
	case errors.Is(err, domain.ErrBanned), errors.Is(err, domain.ErrForbidden):
		return newError(TypeForbidden, "forbidden", err)
	case errors.Is(err, domain.ErrUserNotFound):
		return newError(TypeNotFound, "user not found", err)
	case errors.Is(err, domain.ErrInvalidPlacement), errors.Is(err, domain.ErrInvalidMessage):
		return newError(TypeValidation, err.Error(), err)
	case errors.Is(err, domain.ErrCooldownActive), errors.Is(err, domain.ErrTooManyConnections):
		return newError(TypeRateLimited, err.Error(), err)
	}

	return InternalError("internal server error", err)
}
