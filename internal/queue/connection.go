package queue

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joshu-sajeev/jobtracker/internal/queue/backoff"
	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Addr         string        `env:"REDIS_ADDR,default=redis:6379"`
	Password     string        `env:"REDIS_PASSWORD"`
	DB           int           `env:"REDIS_DB,default=0"`
	MaxRetries   int           `env:"REDIS_MAX_RETRIES,default=10"`
	RetryDelay   time.Duration `env:"REDIS_RETRY_DELAY,default=2s"`
	Name         string        `env:"QUEUE_NAME,default=jobQueue"`
	LeaseTimeout time.Duration `env:"QUEUE_LEASE_TIMEOUT,default=1m"`
	MaxAttempts  int           `env:"QUEUE_MAX_ATTEMPTS,default=3"`
	BackoffBase  time.Duration `env:"QUEUE_BACKOFF_BASE,default=5s"`
	BackoffMax   time.Duration `env:"QUEUE_BACKOFF_MAX,default=1h"`
}

// to help with testing
var envProcess = func(ctx context.Context, v any) error {
	return envconfig.Process(ctx, v)
}

func LoadConfigFromEnv(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envProcess(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func validateConfig(cfg *Config) error {
	var errors []string

	if strings.TrimSpace(cfg.Addr) == "" {
		errors = append(errors, "REDIS_ADDR is required")
	}

	if strings.TrimSpace(cfg.Name) == "" {
		errors = append(errors, "QUEUE_NAME is required")
	}

	if cfg.MaxRetries < 1 {
		errors = append(errors, "REDIS_MAX_RETRIES must be at least 1")
	}

	if cfg.RetryDelay <= 0 {
		errors = append(errors, "REDIS_RETRY_DELAY must be positive")
	}

	if cfg.LeaseTimeout <= 0 {
		errors = append(errors, "QUEUE_LEASE_TIMEOUT must be positive")
	}

	if cfg.MaxAttempts < 1 {
		errors = append(errors, "QUEUE_MAX_ATTEMPTS must be at least 1")
	}

	if cfg.BackoffBase <= 0 {
		errors = append(errors, "QUEUE_BACKOFF_BASE must be positive")
	}

	if cfg.BackoffMax < cfg.BackoffBase {
		errors = append(errors, "QUEUE_BACKOFF_MAX must not be below QUEUE_BACKOFF_BASE")
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, "; "))
	}

	return nil
}

// Options converts the queue settings of cfg into Queue options.
func (cfg *Config) Options() []Option {
	return []Option{
		WithLeaseTimeout(cfg.LeaseTimeout),
		WithMaxAttempts(cfg.MaxAttempts),
		WithBackoff(&backoff.Exponential{Base: cfg.BackoffBase, Max: cfg.BackoffMax}),
	}
}

// Connect opens a Redis client and waits until it answers PING, retrying
// up to cfg.MaxRetries times.
func Connect(ctx context.Context, cfg *Config) (*redis.Client, error) {
	if cfg == nil {
		loadedCfg, err := LoadConfigFromEnv(ctx)
		if err != nil {
			return nil, err
		}
		cfg = loadedCfg
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	slog.Info("connecting to redis", slog.String("addr", cfg.Addr), slog.Int("db", cfg.DB))

	var lastErr error
	for i := 0; i < cfg.MaxRetries; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			slog.Info("redis connected")
			return client, nil
		}
		lastErr = err

		slog.Warn("redis not ready",
			slog.String("error", err.Error()),
			slog.Duration("retry_in", cfg.RetryDelay),
		)

		select {
		case <-time.After(cfg.RetryDelay):
		case <-ctx.Done():
			_ = client.Close()
			return nil, fmt.Errorf("redis connection canceled: %w", ctx.Err())
		}
	}

	_ = client.Close()
	return nil, fmt.Errorf("redis connection failed after %d attempts: %w", cfg.MaxRetries, lastErr)
}
