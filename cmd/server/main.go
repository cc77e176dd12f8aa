package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/oklog/ulid/v2"
	"github.com/pscheid92/pixelboard/internal/adapter/httpserver"
	"github.com/pscheid92/pixelboard/internal/adapter/metrics"
	"github.com/pscheid92/pixelboard/internal/adapter/postgres"
	"github.com/pscheid92/pixelboard/internal/adapter/redis"
	"github.com/pscheid92/pixelboard/internal/adapter/websocket"
	"github.com/pscheid92/pixelboard/internal/app"
	"github.com/pscheid92/pixelboard/internal/broadcast"
	"github.com/pscheid92/pixelboard/internal/cooldown"
	"github.com/pscheid92/pixelboard/internal/domain"
	"github.com/pscheid92/pixelboard/internal/identity"
	"github.com/pscheid92/pixelboard/internal/placement"
	"github.com/pscheid92/pixelboard/internal/platform/config"
	"github.com/pscheid92/pixelboard/internal/platform/logging"
	"github.com/pscheid92/pixelboard/internal/platform/retry"
	"github.com/pscheid92/pixelboard/internal/platform/version"
	"github.com/pscheid92/pixelboard/internal/session"
	goredis "github.com/redis/go-redis/v9"
)

const (
	upgradesPerSecond = 5
	upgradeBurst      = 10
	shutdownTimeout   = 10 * time.Second
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// slog is not configured yet
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func logRetry(dependency string) func(int, error, time.Duration) {
	return func(attempt int, err error, backoff time.Duration) {
		slog.Warn("Dependency not ready, retrying", "dependency", dependency, "attempt", attempt, "backoff", backoff, "error", err)
	}
}

func setupDB(ctx context.Context, cfg *config.Config, dbm *metrics.DBMetrics) *pgxpool.Pool {
	pool, err := retry.Do(ctx, retry.StartupPolicy(logRetry("postgres")), retry.RetryUnlessCanceled,
		func(ctx context.Context) (*pgxpool.Pool, error) {
			connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return postgres.Connect(connectCtx, cfg.DatabaseURL, dbm)
		})
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	return pool
}

func setupRedis(ctx context.Context, cfg *config.Config, rm *metrics.RedisMetrics, cm *metrics.CircuitMetrics) *goredis.Client {
	client, err := retry.Do(ctx, retry.StartupPolicy(logRetry("redis")), retry.RetryUnlessCanceled,
		func(ctx context.Context) (*goredis.Client, error) {
			return redis.NewClient(ctx, cfg.RedisURL, rm, cm)
		})
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func runGracefulShutdown(srv *httpserver.Server, broadcaster *broadcast.Broadcaster, cancelBackground context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up")

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		// Closing every connection ends the session goroutines that hijacked them.
		broadcaster.Stop()
		cancelBackground()
		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()
	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", append([]any{"env", cfg.AppEnv, "port", cfg.Port}, version.Get().LogAttrs()...)...)

	ctx, cancelBackground := context.WithCancel(context.Background())
	defer cancelBackground()

	reg := metrics.NewRegistry()
	wsMetrics := metrics.NewWebSocketMetrics(reg)
	circuits := metrics.NewCircuitMetrics(reg)

	pool := setupDB(ctx, cfg, metrics.NewDBMetrics(reg))
	defer pool.Close()

	healthChecks := []httpserver.HealthCheck{{Name: "postgres", Check: pool.Ping}}

	var cooldownStore domain.CooldownStore
	var relayOpts []broadcast.Option
	var redisClient *goredis.Client
	instance := ulid.Make().String()

	if cfg.RedisURL != "" {
		redisClient = setupRedis(ctx, cfg, metrics.NewRedisMetrics(reg), circuits)
		defer func() { _ = redisClient.Close() }()

		cooldownStore = redis.NewCooldownStore(redisClient)
		relayOpts = append(relayOpts, broadcast.WithRelay(redis.NewRelay(redisClient, instance)))
		healthChecks = append(healthChecks, httpserver.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	} else {
		memStore := cooldown.NewMemoryStore(clock)
		go memStore.Run(ctx)
		cooldownStore = memStore
		slog.Info("REDIS_URL not set, running single-instance with in-memory cooldowns")
	}

	broadcaster := broadcast.NewBroadcaster(clock, wsMetrics, append(relayOpts,
		broadcast.WithMaxConnsPerActor(cfg.MaxConnectionsPerActor),
		broadcast.WithLifecycleHooks(
			func(a domain.ActorID) { slog.Debug("Actor connected", "actor", a.Key()) },
			func(a domain.ActorID) { slog.Debug("Actor disconnected", "actor", a.Key()) },
		),
	)...)

	if redisClient != nil {
		sub := redis.NewSubscriber(redisClient, instance, broadcaster.DeliverLocal)
		go func() {
			if err := sub.Run(ctx, nil); err != nil {
				slog.Error("Broadcast relay subscriber stopped", "error", err)
			}
		}()
	}

	pixelRepo := postgres.NewPixelRepo(pool)
	userRepo := postgres.NewUserRepo(pool)
	pixelStore := postgres.NewBreakingPixelStore(pixelRepo, circuits)

	boardSvc := app.NewBoardService(pixelRepo, cfg.BoardWidth, cfg.BoardHeight, cfg.BoardCacheTTL, clock, metrics.NewBoardCacheMetrics(reg))
	gate := cooldown.NewGate(cooldownStore, cfg.Cooldown, clock)
	pipeline := placement.NewPipeline(gate, pixelStore, broadcaster, metrics.NewPlacementMetrics(reg),
		placement.WithBoardSize(cfg.BoardWidth, cfg.BoardHeight),
		placement.WithHooks(placement.AuditLog, boardSvc.Invalidate),
	)
	resolver := identity.NewResolver([]byte(cfg.JWTSecret), clock, identity.WithUserReader(userRepo))
	controller := session.NewController(resolver, broadcaster, pipeline, gate, wsMetrics)

	srv := httpserver.NewServer(cfg, httpserver.Dependencies{
		Board:        boardSvc,
		Sessions:     controller,
		Connections:  broadcaster,
		Identity:     resolver,
		Limits:       websocket.NewLimits(int64(cfg.MaxWebSocketConnections), cfg.MaxConnectionsPerIP, upgradesPerSecond, upgradeBurst, clock),
		Registry:     reg,
		HTTPMetrics:  metrics.NewHTTPMetrics(reg),
		WSMetrics:    wsMetrics,
		HealthChecks: healthChecks,
		Clock:        clock,
	})

	done := runGracefulShutdown(srv, broadcaster, cancelBackground)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
