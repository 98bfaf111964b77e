package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	User           string        `env:"POSTGRES_USER,default=postgres"`
	Password       string        `env:"POSTGRES_PASSWORD,default=postgres"`
	Host           string        `env:"POSTGRES_HOST,default=postgres"`
	Port           string        `env:"POSTGRES_PORT,default=5432"`
	Database       string        `env:"POSTGRES_DB,default=jobtracker"`
	SSLMode        string        `env:"POSTGRES_SSLMODE,default=disable"`
	MaxRetries     int           `env:"DB_MAX_RETRIES,default=10"`
	RetryDelay     time.Duration `env:"DB_RETRY_DELAY,default=2s"`
	LogLevelString string        `env:"DB_LOG_LEVEL,default=warn"`
	LogLevel       logger.LogLevel
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

	cfg.LogLevel = ParseLogLevel(cfg.LogLevelString)
	return &cfg, nil
}

func validateConfig(cfg *Config) error {
	var errors []string

	if strings.TrimSpace(cfg.User) == "" {
		errors = append(errors, "POSTGRES_USER is required")
	}

	if strings.TrimSpace(cfg.Database) == "" {
		errors = append(errors, "POSTGRES_DB is required")
	}

	if strings.TrimSpace(cfg.Host) == "" {
		errors = append(errors, "POSTGRES_HOST is required")
	}

	if strings.TrimSpace(cfg.Port) == "" {
		errors = append(errors, "POSTGRES_PORT is required")
	}
	if cfg.Port != "" {
		port, err := strconv.Atoi(cfg.Port)
		if err != nil {
			errors = append(errors, "POSTGRES_PORT must be a valid number")
		} else if port < 1 || port > 65535 {
			errors = append(errors, "POSTGRES_PORT must be between 1 and 65535")
		}
	}

	if cfg.MaxRetries < 1 {
		errors = append(errors, "DB_MAX_RETRIES must be at least 1")
	}

	if cfg.RetryDelay <= 0 {
		errors = append(errors, "DB_RETRY_DELAY must be positive")
	}

	if cfg.RetryDelay > 10*time.Minute {
		errors = append(errors, "DB_RETRY_DELAY must not exceed 10 minutes")
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, "; "))
	}

	return nil
}

// DSN renders the libpq connection string for cfg.
func (cfg *Config) DSN() string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		cfg.Host, cfg.User, cfg.Password, cfg.Database, cfg.Port, sslMode,
	)
}

// GormConfig is shared by the postgres connection and the sqlite test
// database so both translate unique violations to gorm.ErrDuplicatedKey.
func GormConfig(level logger.LogLevel) *gorm.Config {
	return &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
	}
}

// ConnectDB establishes connection to PostgreSQL, retrying until the
// server answers a ping or cfg.MaxRetries attempts are used up.
func ConnectDB(ctx context.Context, cfg *Config) (*gorm.DB, error) {
	if cfg == nil {
		loadedCfg, err := LoadConfigFromEnv(ctx)
		if err != nil {
			return nil, err
		}
		cfg = loadedCfg
	}

	slog.Info("connecting to database",
		slog.String("user", cfg.User),
		slog.String("host", cfg.Host),
		slog.String("port", cfg.Port),
		slog.String("database", cfg.Database),
	)

	var lastErr error
	for i := 0; i < cfg.MaxRetries; i++ {
		slog.Debug("database connection attempt", slog.Int("attempt", i+1), slog.Int("max", cfg.MaxRetries))

		gdb, err := gorm.Open(postgres.Open(cfg.DSN()), GormConfig(cfg.LogLevel))
		if err == nil {
			sqlDB, dbErr := gdb.DB()
			if dbErr == nil {
				pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
				pingErr := sqlDB.PingContext(pingCtx)
				cancel()

				if pingErr == nil {
					slog.Info("database connected")

					sqlDB.SetMaxIdleConns(10)
					sqlDB.SetMaxOpenConns(50)
					sqlDB.SetConnMaxLifetime(time.Hour)

					return gdb, nil
				}
				err = pingErr
			} else {
				err = dbErr
			}
		}
		lastErr = err

		slog.Warn("database not ready",
			slog.String("reason", simplifyDBError(err)),
			slog.Duration("retry_in", cfg.RetryDelay),
		)

		select {
		case <-time.After(cfg.RetryDelay):
		case <-ctx.Done():
			return nil, fmt.Errorf("database connection canceled: %w", ctx.Err())
		}
	}

	return nil, fmt.Errorf("database connection failed after %d attempts: %w", cfg.MaxRetries, lastErr)
}

// simplifyDBError returns a user-friendly error message
func simplifyDBError(err error) string {
	msg := err.Error()

	switch {
	case strings.Contains(msg, "password authentication failed"):
		return "invalid database credentials"
	case strings.Contains(msg, "connect"):
		return "cannot reach database server"
	case strings.Contains(msg, "timeout"):
		return "database connection timed out"
	case strings.Contains(msg, "SASL"):
		return "authentication error"
	}

	return "database error"
}

// Convert string to logger.LogLevel
func ParseLogLevel(levelStr string) logger.LogLevel {
	switch strings.ToLower(levelStr) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "warn":
		return logger.Warn
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}
