// Package session drives the lifecycle of a single client connection.
package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"github.com/pscheid92/pixelboard/internal/adapter/metrics"
	"github.com/pscheid92/pixelboard/internal/broadcast"
	"github.com/pscheid92/pixelboard/internal/domain"
	"github.com/pscheid92/pixelboard/internal/placement"
	"github.com/pscheid92/pixelboard/internal/platform/correlation"
)

const (
	maxMessageSize  = 4096
	identifyTimeout = 5 * time.Second
	closeDeadline   = time.Second
)

type State int

const (
	StateConnecting State = iota
	StateIdentifying
	StateRegistered
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateIdentifying:
		return "identifying"
	case StateRegistered:
		return "registered"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Conn is the transport a session runs on.
type Conn interface {
	broadcast.Conn
	ReadMessage() (messageType int, p []byte, err error)
	SetReadLimit(limit int64)
	WriteControl(messageType int, data []byte, deadline time.Time) error
}

var _ Conn = (*websocket.Conn)(nil)

// Registrar is the connection registry and delivery path.
type Registrar interface {
	Register(actor domain.ActorID, conn broadcast.Conn) (ulid.ULID, error)
	Unregister(actor domain.ActorID, conn broadcast.Conn)
	Send(actor domain.ActorID, conn broadcast.Conn, msg any) error
}

// MessageHandler processes inbound frames of an active session.
type MessageHandler interface {
	Handle(ctx context.Context, origin placement.Origin, raw []byte) error
}

// CooldownReporter reports the initial wait of a newly connected actor.
type CooldownReporter interface {
	Now() time.Time
	RemainingSeconds(ctx context.Context, actor domain.ActorID, now time.Time) (int, error)
	Cooldown() time.Duration
}

type Option func(*Controller)

// WithTransitionHook observes every state change.
func WithTransitionHook(fn func(State)) Option {
	return func(c *Controller) { c.onTransition = fn }
}

type Controller struct {
	resolver     domain.IdentityResolver
	registrar    Registrar
	handler      MessageHandler
	cooldown     CooldownReporter
	metrics      *metrics.WebSocketMetrics
	onTransition func(State)
}

func NewController(resolver domain.IdentityResolver, registrar Registrar, handler MessageHandler, cooldown CooldownReporter, m *metrics.WebSocketMetrics, opts ...Option) *Controller {
	c := &Controller{
		resolver:  resolver,
		registrar: registrar,
		handler:   handler,
		cooldown:  cooldown,
		metrics:   m,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Serve runs one connection from handshake to close. It blocks until the transport fails or
// the peer disconnects, and always leaves the registry without an entry for conn.
func (c *Controller) Serve(ctx context.Context, conn Conn, creds domain.Credentials) {
	ctx, _ = correlation.Ensure(ctx)
	c.transition(StateConnecting)

	c.transition(StateIdentifying)
	id, err := c.identify(ctx, creds)
	if err != nil {
		result := "refused"
		if errors.Is(err, domain.ErrBanned) {
			result = "banned"
		}
		c.metrics.Sessions.WithLabelValues(result).Inc()
		slog.InfoContext(ctx, "Connection refused", "reason", err)
		c.closeWith(conn, websocket.ClosePolicyViolation, "")
		c.transition(StateClosed)
		return
	}
	actor := id.Actor

	connID, err := c.registrar.Register(actor, conn)
	if err != nil {
		c.metrics.Sessions.WithLabelValues("rejected").Inc()
		slog.WarnContext(ctx, "Connection rejected by registry", "actor", actor.Key(), "error", err)
		c.closeWith(conn, websocket.CloseTryAgainLater, "too many connections")
		c.transition(StateClosed)
		return
	}
	c.transition(StateRegistered)
	c.metrics.Sessions.WithLabelValues("accepted").Inc()
	logger := slog.With("actor", actor.Key(), "conn_id", connID.String())
	logger.DebugContext(ctx, "Session registered")

	defer func() {
		c.registrar.Unregister(actor, conn)
		c.transition(StateClosed)
		logger.DebugContext(ctx, "Session closed")
	}()

	if id.AnonIssued {
		_ = c.registrar.Send(actor, conn, domain.NewAssignAnonMessage(actor.ID()))
	}
	secs, err := c.cooldown.RemainingSeconds(ctx, actor, c.cooldown.Now())
	if err != nil {
		// Never advertise 0 here: the pipeline refuses placements on this error.
		secs = domain.CeilSeconds(c.cooldown.Cooldown())
		logger.WarnContext(ctx, "Failed to read initial cooldown", "error", err)
	}
	_ = c.registrar.Send(actor, conn, domain.NewInitMessage(secs))

	c.transition(StateActive)
	c.receive(ctx, logger, conn, placement.Origin{Actor: actor, Role: id.Role, Conn: conn})
}

func (c *Controller) identify(ctx context.Context, creds domain.Credentials) (domain.ResolvedIdentity, error) {
	ctx, cancel := context.WithTimeout(ctx, identifyTimeout)
	defer cancel()

	id, err := c.resolver.Resolve(ctx, creds)
	if err != nil {
		return domain.ResolvedIdentity{}, err
	}
	if id.Banned {
		return domain.ResolvedIdentity{}, domain.ErrBanned
	}
	return id, nil
}

func (c *Controller) receive(ctx context.Context, logger *slog.Logger, conn Conn, origin placement.Origin) {
	conn.SetReadLimit(maxMessageSize)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				logger.DebugContext(ctx, "Connection closed unexpectedly", "error", err)
			}
			return
		}

		if err := c.handler.Handle(ctx, origin, data); err != nil {
			if placement.IsRejection(err) {
				logger.DebugContext(ctx, "Message rejected", "reason", err)
			} else {
				logger.WarnContext(ctx, "Message failed", "error", err)
			}
		}
	}
}

// closeWith ends an unregistered connection. Nothing else writes to conn at this point.
func (c *Controller) closeWith(conn Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeDeadline))
	_ = conn.Close()
}

func (c *Controller) transition(s State) {
	if c.onTransition != nil {
		c.onTransition(s)
	}
}
