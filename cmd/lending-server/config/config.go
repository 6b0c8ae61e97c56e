// Package config loads and validates the lending server configuration from
// environment variables.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Version is the application version, set at build time via -ldflags.
var Version = "dev"

// Config holds all lending server settings.
type Config struct {
	// HTTP server
	Port      int
	LogLevel  slog.Level
	LogFormat string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	ShutdownTimeout  time.Duration

	// Database
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	// Lending policy
	LoanPeriodDays int
	// SanctionSweepInterval is how often expired sanctions are deactivated
	// in the background; zero disables the sweep.
	SanctionSweepInterval time.Duration

	// Retry behavior on transient storage conflicts
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
}

// Load reads the configuration from environment variables. It returns an
// error when a value cannot be parsed or is out of range.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	cfg.Port, err = getEnvInt("LC_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("LC_PORT: %w", err)
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("LC_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("LC_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("LC_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("LC_LOG_FORMAT: unsupported format %q, valid: json, text", cfg.LogFormat)
	}

	cfg.HTTPReadTimeout, err = getEnvDuration("LC_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("LC_HTTP_READ_TIMEOUT: %w", err)
	}

	cfg.HTTPWriteTimeout, err = getEnvDuration("LC_HTTP_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("LC_HTTP_WRITE_TIMEOUT: %w", err)
	}

	cfg.HTTPIdleTimeout, err = getEnvDuration("LC_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("LC_HTTP_IDLE_TIMEOUT: %w", err)
	}

	cfg.ShutdownTimeout, err = getEnvDuration("LC_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("LC_SHUTDOWN_TIMEOUT: %w", err)
	}

	cfg.DBHost = getEnvDefault("LC_DB_HOST", "localhost")

	cfg.DBPort, err = getEnvInt("LC_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("LC_DB_PORT: %w", err)
	}

	cfg.DBName = getEnvDefault("LC_DB_NAME", "lending")
	cfg.DBUser = getEnvDefault("LC_DB_USER", "lending")
	cfg.DBPassword = os.Getenv("LC_DB_PASSWORD")
	cfg.DBSSLMode = getEnvDefault("LC_DB_SSLMODE", "disable")

	cfg.LoanPeriodDays, err = getEnvInt("LC_LOAN_PERIOD_DAYS", 30)
	if err != nil {
		return nil, fmt.Errorf("LC_LOAN_PERIOD_DAYS: %w", err)
	}

	if cfg.LoanPeriodDays <= 0 {
		return nil, fmt.Errorf("LC_LOAN_PERIOD_DAYS: must be positive, got %d", cfg.LoanPeriodDays)
	}

	cfg.SanctionSweepInterval, err = getEnvDuration("LC_SANCTION_SWEEP_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("LC_SANCTION_SWEEP_INTERVAL: %w", err)
	}

	cfg.RetryMaxAttempts, err = getEnvInt("LC_RETRY_MAX_ATTEMPTS", 4)
	if err != nil {
		return nil, fmt.Errorf("LC_RETRY_MAX_ATTEMPTS: %w", err)
	}

	cfg.RetryBaseDelay, err = getEnvDuration("LC_RETRY_BASE_DELAY", 10*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("LC_RETRY_BASE_DELAY: %w", err)
	}

	return cfg, nil
}

// PostgresDSN assembles the connection string from the LC_DB_* parts.
func (cfg *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(cfg.DBUser),
		url.QueryEscape(cfg.DBPassword),
		cfg.DBHost,
		cfg.DBPort,
		cfg.DBName,
		cfg.DBSSLMode,
	)
}

// SetupLogger builds the slog logger from the configuration and installs it
// as the default.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}

func parseLogLevel(level string) (slog.Level, error) {
	switch level {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unsupported log level %q, valid: debug, info, warn, error", level)
	}
}

func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}

	return val
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}

	parsed, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", val)
	}

	return parsed, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}

	parsed, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", val)
	}

	if parsed < 0 {
		return 0, fmt.Errorf("duration must not be negative, got %q", val)
	}

	return parsed, nil
}
