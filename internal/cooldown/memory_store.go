package cooldown

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/pixelboard/internal/domain"
)

const defaultPruneInterval = time.Minute

type memoryEntry struct {
	at      time.Time
	expires time.Time
}

// MemoryStore keeps cooldown records in process memory for single-instance mode.
type MemoryStore struct {
	clock clockwork.Clock

	mu      sync.RWMutex
	entries map[string]memoryEntry
}

var _ domain.CooldownStore = (*MemoryStore)(nil)

func NewMemoryStore(clock clockwork.Clock) *MemoryStore {
	return &MemoryStore{
		clock:   clock,
		entries: make(map[string]memoryEntry),
	}
}

func (s *MemoryStore) Last(_ context.Context, key string) (time.Time, bool, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok || !s.clock.Now().Before(e.expires) {
		return time.Time{}, false, nil
	}
	return e.at, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, at time.Time, ttl time.Duration) error {
	s.mu.Lock()
	s.entries[key] = memoryEntry{at: at, expires: at.Add(ttl)}
	s.mu.Unlock()
	return nil
}

// Prune drops expired entries and returns how many were removed.
func (s *MemoryStore) Prune() int {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, e := range s.entries {
		if !now.Before(e.expires) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Run prunes periodically until ctx is cancelled.
func (s *MemoryStore) Run(ctx context.Context) {
	ticker := s.clock.NewTicker(defaultPruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if n := s.Prune(); n > 0 {
				slog.Debug("Pruned cooldown entries", "removed", n)
			}
		}
	}
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
