package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// App holds process-level settings shared by the api and worker binaries.
type App struct {
	HTTPAddr          string        `env:"HTTP_ADDR,default=:4315"`
	RequestTimeout    time.Duration `env:"HTTP_REQUEST_TIMEOUT,default=10s"`
	CORSOrigins       []string      `env:"CORS_ALLOWED_ORIGINS,default=*"`
	WorkerConcurrency int           `env:"WORKER_CONCURRENCY,default=10"`
	PollInterval      time.Duration `env:"WORKER_POLL_INTERVAL,default=1s"`
	JanitorInterval   time.Duration `env:"WORKER_JANITOR_INTERVAL,default=30s"`
	ExecLatency       time.Duration `env:"EXEC_SIMULATED_LATENCY,default=3s"`
	ExecFailureRate   float64       `env:"EXEC_FAILURE_RATE,default=0.5"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT,default=30s"`
	LogLevel          string        `env:"LOG_LEVEL,default=info"`
	LogFormat         string        `env:"LOG_FORMAT,default=text"`
}

// to help with testing
var envProcess = func(ctx context.Context, v any) error {
	return envconfig.Process(ctx, v)
}

func LoadAppFromEnv(ctx context.Context) (*App, error) {
	var cfg App
	if err := envProcess(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}

	if err := validateApp(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func validateApp(cfg *App) error {
	var errors []string

	if strings.TrimSpace(cfg.HTTPAddr) == "" {
		errors = append(errors, "HTTP_ADDR is required")
	}

	if cfg.WorkerConcurrency < 1 {
		errors = append(errors, "WORKER_CONCURRENCY must be at least 1")
	}

	if cfg.PollInterval <= 0 {
		errors = append(errors, "WORKER_POLL_INTERVAL must be positive")
	}

	if cfg.JanitorInterval <= 0 {
		errors = append(errors, "WORKER_JANITOR_INTERVAL must be positive")
	}

	if cfg.ExecLatency < 0 {
		errors = append(errors, "EXEC_SIMULATED_LATENCY must be non-negative")
	}

	if cfg.ExecFailureRate < 0 || cfg.ExecFailureRate > 1 {
		errors = append(errors, "EXEC_FAILURE_RATE must be between 0 and 1")
	}

	switch strings.ToLower(cfg.LogFormat) {
	case "text", "json":
	default:
		errors = append(errors, "LOG_FORMAT must be text or json")
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, "; "))
	}

	return nil
}

// ParseLogLevel converts a level name to slog.Level, defaulting to info.
func ParseLogLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the process logger writing to stderr.
func NewLogger(cfg *App) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLogLevel(cfg.LogLevel)}

	var handler slog.Handler
	if strings.ToLower(cfg.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
