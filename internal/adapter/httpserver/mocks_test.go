package httpserver

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/pixelboard/internal/adapter/metrics"
	"github.com/pscheid92/pixelboard/internal/adapter/websocket"
	"github.com/pscheid92/pixelboard/internal/broadcast"
	"github.com/pscheid92/pixelboard/internal/domain"
	"github.com/pscheid92/pixelboard/internal/platform/config"
	"github.com/pscheid92/pixelboard/internal/session"
)

type mockBoardService struct {
	readBoardFn func(ctx context.Context) (domain.Board, error)
}

func (m *mockBoardService) ReadBoard(ctx context.Context) (domain.Board, error) {
	if m.readBoardFn != nil {
		return m.readBoardFn(ctx)
	}
	return domain.Board{Width: 200, Height: 200}, nil
}

type mockSessionServer struct {
	serveFn func(ctx context.Context, conn session.Conn, creds domain.Credentials)
}

func (m *mockSessionServer) Serve(ctx context.Context, conn session.Conn, creds domain.Credentials) {
	if m.serveFn != nil {
		m.serveFn(ctx, conn, creds)
		return
	}
	_ = conn.Close()
}

type mockConnectionStats struct {
	counts map[domain.ActorID]int
}

func (m *mockConnectionStats) ConnectionCount(actor domain.ActorID) int {
	return m.counts[actor]
}

func (m *mockConnectionStats) Stats() broadcast.Stats {
	s := broadcast.Stats{Actors: len(m.counts)}
	for _, n := range m.counts {
		s.Connections += n
	}
	return s
}

const (
	adminToken = "admin-token"
	userToken  = "user-token"
)

type mockResolver struct {
	resolveFn func(ctx context.Context, creds domain.Credentials) (domain.ResolvedIdentity, error)
}

func (m *mockResolver) Resolve(ctx context.Context, creds domain.Credentials) (domain.ResolvedIdentity, error) {
	if m.resolveFn != nil {
		return m.resolveFn(ctx, creds)
	}
	switch creds.Token {
	case adminToken:
		return domain.ResolvedIdentity{Actor: domain.NewAuthenticatedActor("admin"), Role: domain.RoleAdmin}, nil
	case userToken:
		return domain.ResolvedIdentity{Actor: domain.NewAuthenticatedActor("user"), Role: domain.RoleUser}, nil
	default:
		return domain.ResolvedIdentity{}, domain.ErrInvalidCredentials
	}
}

type testServer struct {
	*Server
	registry *prometheus.Registry
	clock    *clockwork.FakeClock
}

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:        "test",
		Port:          "0",
		SessionSecret: "test-secret-key-32-bytes-long!!!",
		SessionMaxAge: time.Hour,
	}
}

func newTestServer(t *testing.T, opts ...func(*Dependencies)) *testServer {
	t.Helper()

	reg := prometheus.NewRegistry()
	clock := clockwork.NewFakeClock()
	deps := Dependencies{
		Board:       &mockBoardService{},
		Sessions:    &mockSessionServer{},
		Connections: &mockConnectionStats{},
		Identity:    &mockResolver{},
		Limits:      websocket.NewLimits(100, 10, 100, 100, clock),
		Registry:    reg,
		HTTPMetrics: metrics.NewHTTPMetrics(reg),
		WSMetrics:   metrics.NewWebSocketMetrics(reg),
		Clock:       clock,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	return &testServer{Server: NewServer(testConfig(), deps), registry: reg, clock: clock}
}

func withBoard(b boardService) func(*Dependencies) {
	return func(d *Dependencies) { d.Board = b }
}

func withSessions(s sessionServer) func(*Dependencies) {
	return func(d *Dependencies) { d.Sessions = s }
}

func withConnections(c connectionStats) func(*Dependencies) {
	return func(d *Dependencies) { d.Connections = c }
}

func withIdentity(r domain.IdentityResolver) func(*Dependencies) {
	return func(d *Dependencies) { d.Identity = r }
}

func withLimits(l *websocket.Limits) func(*Dependencies) {
	return func(d *Dependencies) { d.Limits = l }
}

func withHealthChecks(checks ...HealthCheck) func(*Dependencies) {
	return func(d *Dependencies) { d.HealthChecks = checks }
}
