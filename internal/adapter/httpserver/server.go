// Package httpserver exposes the websocket endpoint, board snapshot, anonymous sessions,
// diagnostics, health probes and metrics over echo.
package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/gorilla/sessions"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/pixelboard/internal/adapter/metrics"
	"github.com/pscheid92/pixelboard/internal/adapter/websocket"
	"github.com/pscheid92/pixelboard/internal/broadcast"
	"github.com/pscheid92/pixelboard/internal/domain"
	"github.com/pscheid92/pixelboard/internal/platform/config"
	"github.com/pscheid92/pixelboard/internal/session"
)

type boardService interface {
	ReadBoard(ctx context.Context) (domain.Board, error)
}

type sessionServer interface {
	Serve(ctx context.Context, conn session.Conn, creds domain.Credentials)
}

type connectionStats interface {
	ConnectionCount(actor domain.ActorID) int
	Stats() broadcast.Stats
}

// Dependencies are the collaborators the HTTP surface delegates to.
type Dependencies struct {
	Board        boardService
	Sessions     sessionServer
	Connections  connectionStats
	Identity     domain.IdentityResolver
	Limits       *websocket.Limits
	Registry     *prometheus.Registry
	HTTPMetrics  *metrics.HTTPMetrics
	WSMetrics    *metrics.WebSocketMetrics
	HealthChecks []HealthCheck
	Clock        clockwork.Clock
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	board       boardService
	sessions    sessionServer
	connections connectionStats
	identity    domain.IdentityResolver
	limits      *websocket.Limits
	upgrader    gorillaws.Upgrader

	registry    *prometheus.Registry
	httpMetrics *metrics.HTTPMetrics
	wsMetrics   *metrics.WebSocketMetrics

	sessionStore *sessions.CookieStore
	protocol     protocolSchema
	healthChecks []HealthCheck
	clock        clockwork.Clock
	startTime    time.Time
}

func NewServer(cfg *config.Config, deps Dependencies) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	srv := &Server{
		echo:         e,
		config:       cfg,
		board:        deps.Board,
		sessions:     deps.Sessions,
		connections:  deps.Connections,
		identity:     deps.Identity,
		limits:       deps.Limits,
		upgrader:     newUpgrader(cfg),
		registry:     deps.Registry,
		httpMetrics:  deps.HTTPMetrics,
		wsMetrics:    deps.WSMetrics,
		sessionStore: setupSessionStore(cfg),
		protocol:     buildProtocolSchema(),
		healthChecks: deps.HealthChecks,
		clock:        clock,
		startTime:    clock.Now(),
	}

	srv.registerRoutes()
	return srv
}

func (s *Server) Start() error {
	slog.Info("starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

func setupSessionStore(cfg *config.Config) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.SessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

func newUpgrader(cfg *config.Config) gorillaws.Upgrader {
	return gorillaws.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     websocket.NewCheckOrigin(cfg.Origins(), !cfg.IsProduction()),
	}
}
