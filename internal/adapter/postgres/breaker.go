package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/pscheid92/pixelboard/internal/adapter/metrics"
	"github.com/pscheid92/pixelboard/internal/domain"
	"github.com/sony/gobreaker"
)

const pixelBreakerComponent = "pixel_store"

// ErrStoreUnavailable is returned while the pixel store breaker is open.
var ErrStoreUnavailable = errors.New("pixel store unavailable")

// BreakingPixelStore stops hammering an unhealthy database: after five consecutive insert
// failures placements are refused for 15s before a single probe is let through.
type BreakingPixelStore struct {
	next domain.PixelStore
	cb   *gobreaker.CircuitBreaker
}

var _ domain.PixelStore = (*BreakingPixelStore)(nil)

func NewBreakingPixelStore(next domain.PixelStore, m *metrics.CircuitMetrics) *BreakingPixelStore {
	m.State.WithLabelValues(pixelBreakerComponent).Set(0)
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        pixelBreakerComponent,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state changed", "component", name, "from", from.String(), "to", to.String())
			m.StateChanges.WithLabelValues(name, to.String()).Inc()
			m.State.WithLabelValues(name).Set(gobreakerStateToFloat(to))
		},
	})
	return &BreakingPixelStore{next: next, cb: cb}
}

func gobreakerStateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func (s *BreakingPixelStore) InsertPixel(ctx context.Context, p domain.Pixel) error {
	_, err := s.cb.Execute(func() (any, error) {
		return nil, s.next.InsertPixel(ctx, p)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return err
}

func (s *BreakingPixelStore) State() gobreaker.State {
	return s.cb.State()
}
