package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func healthOK(_ context.Context) error { return nil }

func healthErr(msg string) func(context.Context) error {
	return func(_ context.Context) error { return errors.New(msg) }
}

func TestHandleReadiness_AllHealthy(t *testing.T) {
	srv := newTestServer(t, withHealthChecks(
		HealthCheck{Name: "postgres", Check: healthOK},
		HealthCheck{Name: "redis", Check: healthOK},
	))

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready"}`, rec.Body.String())
}

func TestHandleReadiness_FirstFailureReported(t *testing.T) {
	srv := newTestServer(t, withHealthChecks(
		HealthCheck{Name: "postgres", Check: healthErr("connection refused")},
		HealthCheck{Name: "redis", Check: healthErr("timeout")},
	))

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"unhealthy","failed_check":"postgres","error":"connection refused"}`, rec.Body.String())
}

func TestHandleStartup_NoChecks(t *testing.T) {
	srv := newTestServer(t)

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/health/startup", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleLiveness_Uptime(t *testing.T) {
	srv := newTestServer(t)
	srv.clock.Advance(90 * time.Second)

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.InDelta(t, 90.0, body["uptime"], 0.001)
}

func TestHandleVersion(t *testing.T) {
	srv := newTestServer(t)

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/version", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "dev", body["version"])
	assert.NotEmpty(t, body["go_version"])
}
