package domain

import (
	"context"
	"time"
)

// CooldownStore persists the last accepted placement time per actor key. Entries may expire
// once ttl has passed; a missing entry means the actor is eligible.
type CooldownStore interface {
	Last(ctx context.Context, key string) (time.Time, bool, error)
	Set(ctx context.Context, key string, at time.Time, ttl time.Duration) error
}

// CeilSeconds rounds d up to whole seconds, never below zero.
func CeilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
