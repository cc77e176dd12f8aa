package cooldown

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/pixelboard/internal/domain"
)

type Gate struct {
	store    domain.CooldownStore
	clock    clockwork.Clock
	cooldown time.Duration

	mu    sync.Mutex
	locks map[domain.ActorID]*actorLock
}

type actorLock struct {
	mu   sync.Mutex
	refs int
}

func NewGate(store domain.CooldownStore, cooldown time.Duration, clock clockwork.Clock) *Gate {
	return &Gate{
		store:    store,
		clock:    clock,
		cooldown: cooldown,
		locks:    make(map[domain.ActorID]*actorLock),
	}
}

func (g *Gate) Cooldown() time.Duration { return g.cooldown }

func (g *Gate) Now() time.Time { return g.clock.Now() }

// CanPlace reports whether actor has no record or its cooldown has fully elapsed at now.
func (g *Gate) CanPlace(ctx context.Context, actor domain.ActorID, now time.Time) (bool, error) {
	remaining, err := g.Remaining(ctx, actor, now)
	if err != nil {
		return false, err
	}
	return remaining == 0, nil
}

// Remaining returns max(0, cooldown - (now - last)).
func (g *Gate) Remaining(ctx context.Context, actor domain.ActorID, now time.Time) (time.Duration, error) {
	last, ok, err := g.store.Last(ctx, actor.Key())
	if err != nil {
		return 0, fmt.Errorf("read cooldown for %s: %w", actor.Key(), err)
	}
	if !ok {
		return 0, nil
	}
	return max(0, g.cooldown-now.Sub(last)), nil
}

// RemainingSeconds is Remaining rounded up to whole seconds, as reported to clients.
func (g *Gate) RemainingSeconds(ctx context.Context, actor domain.ActorID, now time.Time) (int, error) {
	remaining, err := g.Remaining(ctx, actor, now)
	if err != nil {
		return 0, err
	}
	return domain.CeilSeconds(remaining), nil
}

// Record overwrites the last accepted placement time of actor.
func (g *Gate) Record(ctx context.Context, actor domain.ActorID, now time.Time) error {
	if err := g.store.Set(ctx, actor.Key(), now, g.cooldown); err != nil {
		return fmt.Errorf("record cooldown for %s: %w", actor.Key(), err)
	}
	return nil
}

// Lock blocks until the caller holds the per-actor lock and returns its release function.
// Different actors never contend.
func (g *Gate) Lock(actor domain.ActorID) (unlock func()) {
	g.mu.Lock()
	l, ok := g.locks[actor]
	if !ok {
		l = &actorLock{}
		g.locks[actor] = l
	}
	l.refs++
	g.mu.Unlock()

	l.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Unlock()

			g.mu.Lock()
			l.refs--
			if l.refs == 0 {
				delete(g.locks, actor)
			}
			g.mu.Unlock()
		})
	}
}

func (g *Gate) lockCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.locks)
}
