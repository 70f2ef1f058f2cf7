package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/vladimiradmaev/pill-reminder/internal/config"
	"github.com/vladimiradmaev/pill-reminder/internal/database/migrations"
)

// Open connects to the configured database, sizes the pool and runs pending migrations.
func Open(ctx context.Context, cfg config.DBConfig, logger *slog.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN())
	case "postgres", "":
		dialector = postgres.Open(cfg.DSN())
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	maxConns := cfg.MaxOpenConns
	if cfg.Driver == "sqlite" {
		// one writer; also keeps ":memory:" databases on a single connection
		maxConns = 1
	}
	sqlDB.SetMaxOpenConns(maxConns)
	sqlDB.SetMaxIdleConns(maxConns)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := NewMigrator(db, logger).Run(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("Database connection established and migrations completed",
		"driver", cfg.Driver,
		"max_open_conns", maxConns)
	return db, nil
}

// NewMigrator returns a migrator loaded with the ledger schema history.
func NewMigrator(db *gorm.DB, logger *slog.Logger) *migrations.Migrator {
	m := migrations.New(db, logger)
	m.Register("0001_create_ledger", func(tx *gorm.DB) error {
		return tx.AutoMigrate(All()...)
	})
	m.Register("0002_intake_log_owner_time_index", func(tx *gorm.DB) error {
		if tx.Migrator().HasIndex(&IntakeLog{}, "idx_intake_owner_time") {
			return nil
		}
		return tx.Migrator().CreateIndex(&IntakeLog{}, "idx_intake_owner_time")
	})
	return m
}

// Close releases the connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
