package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/pixelboard/internal/adapter/metrics"
	"github.com/pscheid92/pixelboard/internal/domain"
	"golang.org/x/sync/singleflight"
)

const boardFlightKey = "board"

// BoardService serves board snapshots for page loads. Concurrent misses share one store query
// and the result is reused for ttl or until an accepted placement invalidates it.
type BoardService struct {
	reader domain.BoardReader
	width  int
	height int
	ttl    time.Duration
	clock  clockwork.Clock
	m      *metrics.BoardCacheMetrics

	group singleflight.Group

	mu         sync.RWMutex
	snapshot   *domain.Board
	fetchedAt  time.Time
	generation uint64
}

func NewBoardService(reader domain.BoardReader, width, height int, ttl time.Duration, clock clockwork.Clock, m *metrics.BoardCacheMetrics) *BoardService {
	return &BoardService{
		reader: reader,
		width:  width,
		height: height,
		ttl:    ttl,
		clock:  clock,
		m:      m,
	}
}

func (s *BoardService) ReadBoard(ctx context.Context) (domain.Board, error) {
	if board, ok := s.cached(); ok {
		s.m.Hits.Inc()
		return board, nil
	}

	v, err, shared := s.group.Do(boardFlightKey, func() (any, error) {
		s.mu.RLock()
		gen := s.generation
		s.mu.RUnlock()

		pixels, err := s.reader.Board(ctx, s.width, s.height)
		if err != nil {
			return nil, fmt.Errorf("read board: %w", err)
		}
		board := domain.Board{Width: s.width, Height: s.height, Pixels: pixels}
		s.store(board, gen)
		return board, nil
	})
	if shared {
		s.m.SharedHit.Inc()
	} else {
		s.m.Misses.Inc()
	}
	if err != nil {
		return domain.Board{}, err
	}
	return v.(domain.Board), nil
}

// Invalidate drops the cached snapshot. Its signature matches placement.Hook.
func (s *BoardService) Invalidate(context.Context, domain.PlacementEvent) {
	s.mu.Lock()
	s.snapshot = nil
	s.generation++
	s.mu.Unlock()
}

func (s *BoardService) cached() (domain.Board, bool) {
	if s.ttl <= 0 {
		return domain.Board{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil || s.clock.Since(s.fetchedAt) >= s.ttl {
		return domain.Board{}, false
	}
	return *s.snapshot, true
}

// store keeps board only if no placement landed while it was being read.
func (s *BoardService) store(board domain.Board, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return
	}
	s.snapshot = &board
	s.fetchedAt = s.clock.Now()
}
