package placement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pscheid92/pixelboard/internal/adapter/metrics"
	"github.com/pscheid92/pixelboard/internal/broadcast"
	"github.com/pscheid92/pixelboard/internal/domain"
)

const (
	DefaultBoardWidth  = 200
	DefaultBoardHeight = 200

	msgInvalid   = "invalid message"
	msgForbidden = "clear requires admin role"
	msgFailed    = "failed to place pixel, try again"
)

// Gate is the cooldown contract the pipeline relies on.
type Gate interface {
	Now() time.Time
	Lock(actor domain.ActorID) (unlock func())
	CanPlace(ctx context.Context, actor domain.ActorID, now time.Time) (bool, error)
	RemainingSeconds(ctx context.Context, actor domain.ActorID, now time.Time) (int, error)
	Record(ctx context.Context, actor domain.ActorID, now time.Time) error
	Cooldown() time.Duration
}

// Messenger delivers outbound frames.
type Messenger interface {
	Send(actor domain.ActorID, conn broadcast.Conn, msg any) error
	Unicast(actor domain.ActorID, msg any) error
	BroadcastAll(ctx context.Context, msg any) error
}

// Origin is the connection a frame arrived on.
type Origin struct {
	Actor domain.ActorID
	Role  domain.Role
	Conn  broadcast.Conn
}

// Hook observes accepted placements, e.g. for audit logging.
type Hook func(ctx context.Context, ev domain.PlacementEvent)

type Option func(*Pipeline)

func WithBoardSize(width, height int) Option {
	return func(p *Pipeline) {
		p.width = width
		p.height = height
	}
}

func WithHooks(hooks ...Hook) Option {
	return func(p *Pipeline) { p.hooks = append(p.hooks, hooks...) }
}

type Pipeline struct {
	gate      Gate
	store     domain.PixelStore
	messenger Messenger
	metrics   *metrics.PlacementMetrics
	hooks     []Hook
	width     int
	height    int
}

func NewPipeline(gate Gate, store domain.PixelStore, messenger Messenger, m *metrics.PlacementMetrics, opts ...Option) *Pipeline {
	p := &Pipeline{
		gate:      gate,
		store:     store,
		messenger: messenger,
		metrics:   m,
		width:     DefaultBoardWidth,
		height:    DefaultBoardHeight,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pipeline) BoardSize() (width, height int) { return p.width, p.height }

// Handle processes one inbound frame. The returned error classifies a rejection for logging;
// the sender has already been notified and no rejection is fatal to the connection.
func (p *Pipeline) Handle(ctx context.Context, origin Origin, raw []byte) error {
	var msg domain.InboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		p.metrics.Placements.WithLabelValues("invalid").Inc()
		p.reply(origin, msgInvalid)
		return fmt.Errorf("%w: %v", domain.ErrInvalidMessage, err)
	}

	switch msg.Type {
	case domain.MessageTypeClear:
		return p.handleClear(ctx, origin, msg.List)
	case "", domain.MessageTypePixel:
		return p.handlePixel(ctx, origin, msg)
	default:
		p.metrics.Placements.WithLabelValues("invalid").Inc()
		p.reply(origin, msgInvalid)
		return fmt.Errorf("%w: unknown type %q", domain.ErrInvalidMessage, msg.Type)
	}
}

func (p *Pipeline) handleClear(ctx context.Context, origin Origin, list json.RawMessage) error {
	if origin.Role != domain.RoleAdmin {
		p.metrics.Clears.WithLabelValues("forbidden").Inc()
		p.reply(origin, msgForbidden)
		return fmt.Errorf("%w: clear by %s", domain.ErrForbidden, origin.Actor.Key())
	}

	if err := p.messenger.BroadcastAll(ctx, domain.NewClearMessage(list)); err != nil {
		return fmt.Errorf("broadcast clear: %w", err)
	}
	p.metrics.Clears.WithLabelValues("accepted").Inc()
	slog.InfoContext(ctx, "Board clear broadcast", "actor", origin.Actor.Key())
	return nil
}

func (p *Pipeline) handlePixel(ctx context.Context, origin Origin, msg domain.InboundMessage) error {
	req, err := validatePixel(msg, p.width, p.height)
	if err != nil {
		p.metrics.Placements.WithLabelValues("invalid").Inc()
		p.reply(origin, err.Error())
		return err
	}

	actor := origin.Actor
	unlock := p.gate.Lock(actor)
	defer unlock()

	now := p.gate.Now()
	ok, err := p.gate.CanPlace(ctx, actor, now)
	if err != nil {
		p.metrics.Placements.WithLabelValues("cooldown_error").Inc()
		p.reply(origin, msgFailed)
		return fmt.Errorf("check cooldown: %w", err)
	}
	if !ok {
		return p.rejectThrottled(ctx, origin, now)
	}

	start := time.Now()
	pixel := domain.NewPixel(req.x, req.y, req.color, actor, now)
	err = p.store.InsertPixel(ctx, pixel)
	p.metrics.PersistDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		p.metrics.Placements.WithLabelValues("persist_failed").Inc()
		p.reply(origin, msgFailed)
		return fmt.Errorf("persist pixel: %w", err)
	}

	// The pixel is durable at this point, so a failed record still broadcasts.
	if err := p.gate.Record(ctx, actor, now); err != nil {
		slog.ErrorContext(ctx, "Failed to record cooldown", "actor", actor.Key(), "error", err)
	}

	ev := domain.PlacementEvent{X: req.x, Y: req.y, Color: req.color, Actor: actor}
	if err := p.messenger.BroadcastAll(ctx, domain.NewPixelMessage(ev)); err != nil {
		slog.ErrorContext(ctx, "Failed to broadcast pixel", "error", err)
	}
	_ = p.messenger.Unicast(actor, domain.NewInitMessage(domain.CeilSeconds(p.gate.Cooldown())))

	p.metrics.Placements.WithLabelValues("accepted").Inc()
	for _, hook := range p.hooks {
		hook(ctx, ev)
	}
	return nil
}

func (p *Pipeline) rejectThrottled(ctx context.Context, origin Origin, now time.Time) error {
	p.metrics.Placements.WithLabelValues("throttled").Inc()

	secs, err := p.gate.RemainingSeconds(ctx, origin.Actor, now)
	if err != nil {
		secs = domain.CeilSeconds(p.gate.Cooldown())
	}
	cooldownErr := &domain.CooldownError{Remaining: time.Duration(secs) * time.Second}

	p.reply(origin, cooldownErr.Error())
	_ = p.messenger.Send(origin.Actor, origin.Conn, domain.NewInitMessage(secs))
	return cooldownErr
}

func (p *Pipeline) reply(origin Origin, text string) {
	if err := p.messenger.Send(origin.Actor, origin.Conn, domain.NewErrorMessage(text)); err != nil {
		slog.Warn("Failed to send error to client", "actor", origin.Actor.Key(), "error", err)
	}
}

// AuditLog is a Hook that writes accepted placements to the structured log.
func AuditLog(ctx context.Context, ev domain.PlacementEvent) {
	slog.InfoContext(ctx, "Pixel placed", "actor", ev.Actor.Key(), "x", ev.X, "y", ev.Y, "color", ev.Color)
}

// IsRejection reports whether err is an expected per-message rejection rather than a failure.
func IsRejection(err error) bool {
	return errors.Is(err, domain.ErrInvalidMessage) ||
		errors.Is(err, domain.ErrInvalidPlacement) ||
		errors.Is(err, domain.ErrCooldownActive) ||
		errors.Is(err, domain.ErrForbidden)
}
