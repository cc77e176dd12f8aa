package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/pscheid92/pixelboard/internal/adapter/metrics"
	"github.com/pscheid92/pixelboard/internal/domain"
	apperrors "github.com/pscheid92/pixelboard/internal/platform/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runMiddleware(t *testing.T, m *metrics.HTTPMetrics, handlerErr error) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/test", nil), rec)

	err := ErrorHandlingMiddleware(m)(func(echo.Context) error { return handlerErr })(c)
	require.NoError(t, err)
	return rec
}

func TestMiddlewareWithStructuredError(t *testing.T) {
	rec := runMiddleware(t, nil, apperrors.ValidationError("invalid input"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp apperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "invalid input", resp.Error)
	assert.Equal(t, apperrors.TypeValidation, resp.Type)
}

func TestMiddlewareWithStandardError(t *testing.T) {
	rec := runMiddleware(t, nil, errors.New("standard error"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var resp apperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "internal server error", resp.Error)
}

func TestMiddlewareWithDomainError(t *testing.T) {
	rec := runMiddleware(t, nil, fmt.Errorf("resolve: %w", domain.ErrBanned))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMiddlewareCountsErrors(t *testing.T) {
	m := metrics.NewHTTPMetrics(prometheus.NewRegistry())

	runMiddleware(t, m, apperrors.NotFoundError("nope"))
	runMiddleware(t, m, errors.New("boom"))
	runMiddleware(t, m, errors.New("boom again"))

	assert.InDelta(t, 1, testutil.ToFloat64(m.Errors.WithLabelValues("not_found")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.Errors.WithLabelValues("internal")), 0)
}

func TestMiddlewarePassesHTTPErrorThrough(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/test", nil), httptest.NewRecorder())

	err := ErrorHandlingMiddleware(nil)(func(echo.Context) error {
		return echo.NewHTTPError(http.StatusMethodNotAllowed)
	})(c)

	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusMethodNotAllowed, httpErr.Code)
}

func TestMiddlewareWithNoError(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/test", nil), rec)

	err := ErrorHandlingMiddleware(nil)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})(c)

	require.NoError(t, err)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestWrapHTTPError(t *testing.T) {
	tests := []struct {
		code int
		want apperrors.ErrorType
	}{
		{http.StatusBadRequest, apperrors.TypeValidation},
		{http.StatusUnauthorized, apperrors.TypeUnauthorized},
		{http.StatusForbidden, apperrors.TypeForbidden},
		{http.StatusNotFound, apperrors.TypeNotFound},
		{http.StatusTooManyRequests, apperrors.TypeRateLimited},
		{http.StatusServiceUnavailable, apperrors.TypeUnavailable},
		{http.StatusTeapot, apperrors.TypeInternal},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			err := WrapHTTPError(echo.NewHTTPError(tt.code))
			assert.Equal(t, tt.want, err.Type)
			if tt.code != http.StatusTeapot {
				assert.Equal(t, tt.code, err.HTTPStatus())
			}
		})
	}

	custom := WrapHTTPError(echo.NewHTTPError(http.StatusBadRequest, "bad x"))
	assert.Equal(t, "bad x", custom.Message)
}

func TestRateLimiter_DeniesOverBurst(t *testing.T) {
	e := echo.New()
	e.GET("/limited", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, newRateLimiter(0.001, 2))

	codes := make([]int, 0, 3)
	for range 3 {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/limited", nil))
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
