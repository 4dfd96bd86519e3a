package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment    string        `envconfig:"ENVIRONMENT" default:"development"`
	LogLevelName   string        `envconfig:"LOG_LEVEL" default:"info"`
	RedisURL       string        `envconfig:"REDIS_URL" default:"redis://localhost:6379"`
	DataDir        string        `envconfig:"DATA_DIR" default:"./data"`
	WorkerID       string        `envconfig:"WORKER_ID"`
	LockTTL        time.Duration `envconfig:"LOCK_TTL" default:"30s"`
	DequeueTimeout time.Duration `envconfig:"DEQUEUE_TIMEOUT" default:"5s"`
	MetricsAddr    string        `envconfig:"METRICS_ADDR" default:":9090"`
	MaxLevelUps    int           `envconfig:"MAX_LEVEL_UPS" default:"1000"`

	LogLevel slog.Level `ignored:"true"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}
	cfg.LogLevel = parseLogLevel(cfg.LogLevelName)

	if cfg.LockTTL <= 0 {
		return nil, fmt.Errorf("LOCK_TTL must be positive, got %s", cfg.LockTTL)
	}
	if cfg.MaxLevelUps < 1 {
		return nil, fmt.Errorf("MAX_LEVEL_UPS must be at least 1, got %d", cfg.MaxLevelUps)
	}
	return &cfg, nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
