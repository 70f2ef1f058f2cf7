package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/vladimiradmaev/pill-reminder/internal/logger"
)

type Config struct {
	TelegramToken string
	DB            DBConfig
	Scheduler     SchedulerConfig
	Sender        SenderConfig
	Redis         RedisConfig
	Metrics       MetricsConfig
	Logger        LoggerConfig
	// Debug wipes persisted state on shutdown. Development only.
	Debug bool
}

type DBConfig struct {
	Driver       string // "postgres" or "sqlite"
	URL          string // full connection string; overrides the fields below
	Host         string
	Port         string
	User         string
	Password     string
	DBName       string
	MaxOpenConns int
	Timeout      time.Duration
}

type SchedulerConfig struct {
	Timezone           string
	Workers            int
	EscalationInterval time.Duration
}

type SenderConfig struct {
	Timeout    time.Duration
	RatePerSec int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type MetricsConfig struct {
	Addr string
}

type LoggerConfig struct {
	Level      logger.LogLevel
	OutputPath string
	Format     string
}

// DSN returns the driver-specific connection string.
func (c DBConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	if c.Driver == "sqlite" {
		return c.DBName
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.DBName)
}

// Location returns the scheduler location, UTC when unset.
func (c SchedulerConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return logger.LevelDebug
	case "info":
		return logger.LevelInfo
	case "warn", "warning":
		return logger.LevelWarn
	case "error":
		return logger.LevelError
	default:
		return logger.LevelInfo
	}
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	var errs []error

	intEnv := func(key string, def int) int {
		raw := os.Getenv(key)
		if raw == "" {
			return def
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %q is not an integer", key, raw))
			return def
		}
		return v
	}
	durationEnv := func(key string, def time.Duration) time.Duration {
		raw := os.Getenv(key)
		if raw == "" {
			return def
		}
		v, err := time.ParseDuration(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %q is not a duration", key, raw))
			return def
		}
		return v
	}
	boolEnv := func(key string) bool {
		raw := os.Getenv(key)
		if raw == "" {
			return false
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %q is not a boolean", key, raw))
			return false
		}
		return v
	}

	cfg := &Config{
		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		DB: DBConfig{
			Driver:       strings.ToLower(getEnvOrDefault("DB_DRIVER", "postgres")),
			URL:          os.Getenv("DATABASE_URL"),
			Host:         getEnvOrDefault("DB_HOST", "localhost"),
			Port:         getEnvOrDefault("DB_PORT", "5432"),
			User:         getEnvOrDefault("DB_USER", "postgres"),
			Password:     getEnvOrDefault("DB_PASSWORD", "postgres"),
			DBName:       getEnvOrDefault("DB_NAME", "pill_reminder"),
			MaxOpenConns: intEnv("DB_MAX_OPEN_CONNS", 10),
			Timeout:      durationEnv("DB_TIMEOUT", 5*time.Second),
		},
		Scheduler: SchedulerConfig{
			Timezone:           getEnvOrDefault("SCHEDULER_TIMEZONE", "UTC"),
			Workers:            intEnv("SCHEDULER_WORKERS", 8),
			EscalationInterval: durationEnv("ESCALATION_INTERVAL", 15*time.Minute),
		},
		Sender: SenderConfig{
			Timeout:    durationEnv("SEND_TIMEOUT", 10*time.Second),
			RatePerSec: intEnv("SEND_RATE_PER_SEC", 25),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       intEnv("REDIS_DB", 0),
		},
		Metrics: MetricsConfig{
			Addr: os.Getenv("METRICS_ADDR"),
		},
		Logger: LoggerConfig{
			Level:      parseLogLevel(getEnvOrDefault("LOG_LEVEL", "info")),
			OutputPath: getEnvOrDefault("LOG_OUTPUT", "stdout"),
			Format:     getEnvOrDefault("LOG_FORMAT", "json"),
		},
		Debug: boolEnv("DEBUG"),
	}

	if err := errors.Join(append(errs, cfg.Validate())...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every problem at once so an operator can fix them in one go.
func (c *Config) Validate() error {
	var errs []error

	if c.TelegramToken == "" {
		errs = append(errs, errors.New("TELEGRAM_BOT_TOKEN is required"))
	}
	switch c.DB.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER: unsupported driver %q", c.DB.Driver))
	}
	if c.DB.MaxOpenConns < 1 {
		errs = append(errs, errors.New("DB_MAX_OPEN_CONNS must be positive"))
	}
	if c.DB.Timeout <= 0 {
		errs = append(errs, errors.New("DB_TIMEOUT must be positive"))
	}
	if _, err := c.Scheduler.Location(); err != nil {
		errs = append(errs, fmt.Errorf("SCHEDULER_TIMEZONE: %w", err))
	}
	if c.Scheduler.Workers < 1 {
		errs = append(errs, errors.New("SCHEDULER_WORKERS must be positive"))
	}
	if c.Scheduler.EscalationInterval < time.Minute {
		errs = append(errs, errors.New("ESCALATION_INTERVAL must be at least 1m"))
	}
	if c.Sender.Timeout <= 0 {
		errs = append(errs, errors.New("SEND_TIMEOUT must be positive"))
	}
	if c.Sender.RatePerSec < 1 {
		errs = append(errs, errors.New("SEND_RATE_PER_SEC must be positive"))
	}
	if c.Logger.Format != "json" && c.Logger.Format != "text" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT: expected json or text, got %q", c.Logger.Format))
	}

	return errors.Join(errs...)
}
