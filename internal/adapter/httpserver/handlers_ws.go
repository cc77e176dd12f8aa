package httpserver

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/pixelboard/internal/domain"
	apperrors "github.com/pscheid92/pixelboard/internal/platform/errors"
)

const accessTokenCookie = "access_token"

// handleWebSocket admits the upgrade and hands the connection to the session controller for
// its whole lifetime.
func (s *Server) handleWebSocket(c echo.Context) error {
	ip := c.RealIP()
	if s.limits != nil {
		ok, reason := s.limits.Acquire(ip)
		if !ok {
			s.wsMetrics.Rejections.WithLabelValues(string(reason)).Inc()
			return writeError(c, apperrors.RateLimitedError("too many connections").WithField("reason", string(reason)))
		}
		defer s.limits.Release(ip)
	}

	creds := s.credentials(c)

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already written the HTTP error response.
		s.wsMetrics.Rejections.WithLabelValues("upgrade_failed").Inc()
		slog.DebugContext(c.Request().Context(), "websocket upgrade failed", "remote_addr", ip, "error", err)
		return nil
	}

	s.sessions.Serve(c.Request().Context(), conn, creds)
	return nil
}

// credentials reads the bearer token from the query or the access_token cookie, and the
// anonymous id from the query or the signed anonymous session.
func (s *Server) credentials(c echo.Context) domain.Credentials {
	creds := domain.Credentials{
		Token:  c.QueryParam("token"),
		AnonID: c.QueryParam("anon_id"),
	}
	if creds.Token == "" {
		if cookie, err := c.Cookie(accessTokenCookie); err == nil {
			creds.Token = cookie.Value
		}
	}
	if creds.AnonID == "" {
		creds.AnonID = s.sessionAnonID(c)
	}
	return creds
}
