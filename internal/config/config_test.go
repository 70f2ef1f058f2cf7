package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladimiradmaev/pill-reminder/internal/logger"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Equal(t, 10, cfg.DB.MaxOpenConns)
	assert.Equal(t, 5*time.Second, cfg.DB.Timeout)
	assert.Equal(t, "UTC", cfg.Scheduler.Timezone)
	assert.Equal(t, 8, cfg.Scheduler.Workers)
	assert.Equal(t, 15*time.Minute, cfg.Scheduler.EscalationInterval)
	assert.Equal(t, 10*time.Second, cfg.Sender.Timeout)
	assert.Equal(t, logger.LevelInfo, cfg.Logger.Level)
	assert.False(t, cfg.Debug)
	assert.Equal(t,
		"host=localhost port=5432 user=postgres password=postgres dbname=pill_reminder sslmode=disable",
		cfg.DB.DSN())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/pills")
	t.Setenv("SCHEDULER_TIMEZONE", "Europe/Moscow")
	t.Setenv("SCHEDULER_WORKERS", "2")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DEBUG", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://u:p@db:5432/pills", cfg.DB.DSN())
	assert.Equal(t, 2, cfg.Scheduler.Workers)
	assert.Equal(t, logger.LevelDebug, cfg.Logger.Level)
	assert.True(t, cfg.Debug)

	loc, err := cfg.Scheduler.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Moscow", loc.String())
}

func TestLoad_ReportsEveryProblem(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("SCHEDULER_WORKERS", "many")
	t.Setenv("SCHEDULER_TIMEZONE", "Mars/Olympus")

	_, err := Load()
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "TELEGRAM_BOT_TOKEN is required")
	assert.Contains(t, msg, `unsupported driver "mysql"`)
	assert.Contains(t, msg, "SCHEDULER_WORKERS")
	assert.Contains(t, msg, "SCHEDULER_TIMEZONE")
}

func TestDBConfig_SQLiteDSN(t *testing.T) {
	cfg := DBConfig{Driver: "sqlite", DBName: "file:pills.db"}
	assert.Equal(t, "file:pills.db", cfg.DSN())
}
