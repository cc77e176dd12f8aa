package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

const minSecretLength = 32

type Config struct {
	AppEnv        string `env:"APP_ENV" default:"development"`
	Port          string `env:"PORT" default:"8080"`
	DatabaseURL   string `env:"DATABASE_URL"`
	RedisURL      string `env:"REDIS_URL"`
	JWTSecret     string `env:"JWT_SECRET"`
	SessionSecret string `env:"SESSION_SECRET"`
	LogLevel      string `env:"LOG_LEVEL" default:"info"`
	LogFormat     string `env:"LOG_FORMAT" default:"text"`

	Cooldown    time.Duration `env:"COOLDOWN" default:"30s"`
	BoardWidth  int           `env:"BOARD_WIDTH" default:"200"`
	BoardHeight int           `env:"BOARD_HEIGHT" default:"200"`

	MaxWebSocketConnections int    `env:"MAX_WEBSOCKET_CONNECTIONS" default:"10000"`
	MaxConnectionsPerIP     int    `env:"MAX_CONNECTIONS_PER_IP" default:"20"`
	MaxConnectionsPerActor  int    `env:"MAX_CONNECTIONS_PER_ACTOR" default:"16"`
	AllowedOrigins          string `env:"ALLOWED_ORIGINS"`

	SessionMaxAge time.Duration `env:"SESSION_MAX_AGE" default:"720h"` // 30 days
	BoardCacheTTL time.Duration `env:"BOARD_CACHE_TTL" default:"1s"`
}

// Origins splits ALLOWED_ORIGINS on commas. Empty means same-origin only.
func (c *Config) Origins() []string {
	var origins []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	required := []struct{ name, value string }{
		{"DATABASE_URL", cfg.DatabaseURL},
		{"JWT_SECRET", cfg.JWTSecret},
		{"SESSION_SECRET", cfg.SessionSecret},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%s is required", r.name)
		}
	}

	if len(cfg.JWTSecret) < minSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", minSecretLength)
	}
	if cfg.Cooldown <= 0 {
		return errors.New("COOLDOWN must be positive")
	}
	if cfg.BoardWidth <= 0 || cfg.BoardHeight <= 0 {
		return errors.New("BOARD_WIDTH and BOARD_HEIGHT must be positive")
	}
	if cfg.MaxWebSocketConnections <= 0 || cfg.MaxConnectionsPerIP <= 0 || cfg.MaxConnectionsPerActor <= 0 {
		return errors.New("connection limits must be positive")
	}

	return nil
}
