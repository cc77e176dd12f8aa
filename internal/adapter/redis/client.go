package redis

import (
	"context"
	"fmt"

	"github.com/pscheid92/pixelboard/internal/adapter/metrics"
	goredis "github.com/redis/go-redis/v9"
)

// NewClient parses redisURL, installs the metrics and circuit breaker hooks and pings the server.
func NewClient(ctx context.Context, redisURL string, rm *metrics.RedisMetrics, cm *metrics.CircuitMetrics) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	rdb := goredis.NewClient(opts)
	rdb.AddHook(NewMetricsHook(rm))
	rdb.AddHook(NewCircuitBreakerHook(cm))

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return rdb, nil
}
