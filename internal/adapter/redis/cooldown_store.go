package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/pscheid92/pixelboard/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

const cooldownKeyPrefix = "cooldown:"

// CooldownStore shares last-placement times between instances. Values are unix milliseconds;
// keys expire with the cooldown window so absent keys mean eligible.
type CooldownStore struct {
	rdb *goredis.Client
}

var _ domain.CooldownStore = (*CooldownStore)(nil)

func NewCooldownStore(rdb *goredis.Client) *CooldownStore {
	return &CooldownStore{rdb: rdb}
}

func (s *CooldownStore) Last(ctx context.Context, key string) (time.Time, bool, error) {
	raw, err := s.rdb.Get(ctx, cooldownKeyPrefix+key).Result()
	if errors.Is(err, goredis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read cooldown: %w", err)
	}

	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("corrupt cooldown value %q: %w", raw, err)
	}
	return time.UnixMilli(ms), true, nil
}

func (s *CooldownStore) Set(ctx context.Context, key string, at time.Time, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Millisecond
	}
	if err := s.rdb.Set(ctx, cooldownKeyPrefix+key, at.UnixMilli(), ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cooldown: %w", err)
	}
	return nil
}
