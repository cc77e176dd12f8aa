package httpserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/pixelboard/internal/adapter/metrics"
	"github.com/pscheid92/pixelboard/internal/platform/correlation"
	apperrors "github.com/pscheid92/pixelboard/internal/platform/errors"
)

// correlationMiddleware adopts a sane inbound X-Correlation-ID or mints one, and echoes it back.
func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := correlation.Sanitize(c.Request().Header.Get(correlation.Header))
		if !ok {
			id = correlation.NewID()
		}
		ctx := correlation.WithID(c.Request().Context(), id)
		c.SetRequest(c.Request().WithContext(ctx))
		c.Response().Header().Set(correlation.Header, id)
		return next(c)
	}
}

// ErrorHandlingMiddleware renders handler errors as structured JSON. echo's own HTTP errors are
// passed through to echo's error handler. m may be nil.
func ErrorHandlingMiddleware(m *metrics.HTTPMetrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				return err
			}

			structuredErr := apperrors.AsStructuredError(err)
			if m != nil {
				m.Errors.WithLabelValues(string(structuredErr.Type)).Inc()
			}
			return writeError(c, structuredErr)
		}
	}
}

func writeError(c echo.Context, err *apperrors.Error) error {
	logError(c, err)
	if err := c.JSON(err.HTTPStatus(), err.ToResponse()); err != nil {
		return fmt.Errorf("failed to write error response: %w", err)
	}
	return nil
}

func logError(c echo.Context, err *apperrors.Error) {
	ctx := c.Request().Context()
	attrs := []any{
		"error_type", err.Type,
		"message", err.Message,
		"path", c.Request().URL.Path,
		"method", c.Request().Method,
		"status", err.HTTPStatus(),
	}
	for k, v := range err.Context {
		attrs = append(attrs, k, v)
	}

	switch err.Type {
	case apperrors.TypeValidation, apperrors.TypeNotFound:
		slog.InfoContext(ctx, "Client error", attrs...)
	case apperrors.TypeUnauthorized, apperrors.TypeForbidden, apperrors.TypeRateLimited:
		slog.WarnContext(ctx, "Request denied", attrs...)
	default:
		if err.Cause != nil {
			attrs = append(attrs, "cause", err.Cause)
		}
		slog.ErrorContext(ctx, "Server error", attrs...)
	}
}

// WrapHTTPError maps an echo HTTP error onto the structured error taxonomy.
func WrapHTTPError(httpErr *echo.HTTPError) *apperrors.Error {
	message := http.StatusText(httpErr.Code)
	if msg, ok := httpErr.Message.(string); ok {
		message = msg
	}

	var errType apperrors.ErrorType
	switch httpErr.Code {
	case http.StatusBadRequest:
		errType = apperrors.TypeValidation
	case http.StatusUnauthorized:
		errType = apperrors.TypeUnauthorized
	case http.StatusForbidden:
		errType = apperrors.TypeForbidden
	case http.StatusNotFound:
		errType = apperrors.TypeNotFound
	case http.StatusTooManyRequests:
		errType = apperrors.TypeRateLimited
	case http.StatusBadGateway:
		errType = apperrors.TypeExternal
	case http.StatusServiceUnavailable:
		errType = apperrors.TypeUnavailable
	default:
		errType = apperrors.TypeInternal
	}

	return &apperrors.Error{
		Type:    errType,
		Message: message,
		Cause:   httpErr.Internal,
		Context: make(map[string]any),
	}
}
