package httpserver

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	apperrors "github.com/pscheid92/pixelboard/internal/platform/errors"
)

const (
	sessionName      = "pixelboard-session"
	sessionKeyAnonID = "anon_id"
)

type anonSessionResponse struct {
	AnonID string `json:"anon_id"`
}

func (s *Server) registerSessionRoutes(rateLimiter echo.MiddlewareFunc) {
	g := s.echo.Group("/auth", rateLimiter)
	g.GET("/session", s.handleGetSession)
	g.POST("/session", s.handleCreateSession)
}

// sessionAnonID returns the anonymous id stored in the signed session cookie, or "".
func (s *Server) sessionAnonID(c echo.Context) string {
	sess, err := s.sessionStore.Get(c.Request(), sessionName)
	if err != nil {
		return ""
	}
	id, _ := sess.Values[sessionKeyAnonID].(string)
	return id
}

func (s *Server) handleGetSession(c echo.Context) error {
	id := s.sessionAnonID(c)
	if id == "" {
		return apperrors.NotFoundError("no anonymous session")
	}
	if err := c.JSON(http.StatusOK, anonSessionResponse{AnonID: id}); err != nil {
		return fmt.Errorf("failed to write session response: %w", err)
	}
	return nil
}

// handleCreateSession issues an anonymous id, or returns the existing one so repeated calls
// are idempotent.
func (s *Server) handleCreateSession(c echo.Context) error {
	// A cookie signed with an old secret fails to decode; a fresh session replaces it.
	sess, _ := s.sessionStore.Get(c.Request(), sessionName)

	id, _ := sess.Values[sessionKeyAnonID].(string)
	status := http.StatusOK
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
		sess.Values[sessionKeyAnonID] = id
		status = http.StatusCreated
	}

	if err := sess.Save(c.Request(), c.Response()); err != nil {
		return apperrors.InternalError("failed to save session", err)
	}
	if err := c.JSON(status, anonSessionResponse{AnonID: id}); err != nil {
		return fmt.Errorf("failed to write session response: %w", err)
	}
	return nil
}
