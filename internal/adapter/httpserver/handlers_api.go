package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/labstack/echo/v4"
	"github.com/pscheid92/pixelboard/internal/domain"
	apperrors "github.com/pscheid92/pixelboard/internal/platform/errors"
)

func (s *Server) registerAPIRoutes(rateLimiter echo.MiddlewareFunc) {
	g := s.echo.Group("/api", rateLimiter)
	g.GET("/connections", s.handleConnections, s.requireAdmin)
	g.GET("/protocol", s.handleProtocol)
}

// requireAdmin admits requests whose bearer token (Authorization header or access_token cookie)
// resolves to a non-banned admin.
func (s *Server) requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := bearerToken(c)
		if token == "" || s.identity == nil {
			return apperrors.UnauthorizedError("admin token required")
		}

		id, err := s.identity.Resolve(c.Request().Context(), domain.Credentials{Token: token})
		if errors.Is(err, domain.ErrInvalidCredentials) {
			return apperrors.UnauthorizedError("invalid token")
		}
		if err != nil {
			return apperrors.UnavailableError("failed to verify token", err)
		}
		if id.Banned || id.Role != domain.RoleAdmin {
			return apperrors.ForbiddenError("admin role required")
		}
		return next(c)
	}
}

func bearerToken(c echo.Context) string {
	if h := c.Request().Header.Get(echo.HeaderAuthorization); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if cookie, err := c.Cookie(accessTokenCookie); err == nil {
		return cookie.Value
	}
	return ""
}

type connectionsResponse struct {
	Actor            string `json:"actor,omitempty"`
	Connections      *int   `json:"connections,omitempty"`
	TotalActors      int    `json:"total_actors"`
	TotalConnections int    `json:"total_connections"`
}

func (s *Server) handleConnections(c echo.Context) error {
	stats := s.connections.Stats()
	resp := connectionsResponse{
		TotalActors:      stats.Actors,
		TotalConnections: stats.Connections,
	}

	if key := c.QueryParam("actor"); key != "" {
		actor, err := domain.ParseActorKey(key)
		if err != nil {
			return apperrors.ValidationError("actor must be user:<id> or anon:<id>").WithField("actor", key)
		}
		n := s.connections.ConnectionCount(actor)
		resp.Actor = actor.Key()
		resp.Connections = &n
	}

	if err := c.JSON(http.StatusOK, resp); err != nil {
		return fmt.Errorf("failed to write connections response: %w", err)
	}
	return nil
}

// protocolSchema documents the websocket frames in both directions.
type protocolSchema struct {
	Inbound  *jsonschema.Schema            `json:"inbound"`
	Outbound map[string]*jsonschema.Schema `json:"outbound"`
}

func buildProtocolSchema() protocolSchema {
	r := &jsonschema.Reflector{DoNotReference: true}
	return protocolSchema{
		Inbound: r.Reflect(&domain.InboundMessage{}),
		Outbound: map[string]*jsonschema.Schema{
			domain.MessageTypeInit:       r.Reflect(&domain.InitMessage{}),
			domain.MessageTypePixel:      r.Reflect(&domain.PixelMessage{}),
			domain.MessageTypeClear:      r.Reflect(&domain.ClearMessage{}),
			domain.MessageTypeError:      r.Reflect(&domain.ErrorMessage{}),
			domain.MessageTypeAssignAnon: r.Reflect(&domain.AssignAnonMessage{}),
		},
	}
}

func (s *Server) handleProtocol(c echo.Context) error {
	if err := c.JSON(http.StatusOK, s.protocol); err != nil {
		return fmt.Errorf("failed to write protocol response: %w", err)
	}
	return nil
}
