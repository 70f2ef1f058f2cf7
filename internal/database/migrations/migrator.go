package migrations

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"gorm.io/gorm"
)

// Migration represents a database migration
type Migration struct {
	ID string
	Up func(*gorm.DB) error
}

// MigrationRecord represents a record of executed migrations
type MigrationRecord struct {
	ID        string `gorm:"primaryKey"`
	CreatedAt int64  `gorm:"autoCreateTime"`
}

func (MigrationRecord) TableName() string {
	return "schema_migrations"
}

// Migrator applies registered migrations once each, in ID order.
type Migrator struct {
	db         *gorm.DB
	logger     *slog.Logger
	migrations map[string]Migration
}

func New(db *gorm.DB, logger *slog.Logger) *Migrator {
	return &Migrator{
		db:         db,
		logger:     logger,
		migrations: make(map[string]Migration),
	}
}

// Register adds a new migration to the registry
func (m *Migrator) Register(id string, up func(*gorm.DB) error) {
	m.migrations[id] = Migration{ID: id, Up: up}
}

// Run executes all pending migrations, each inside its own transaction.
func (m *Migrator) Run(ctx context.Context) error {
	db := m.db.WithContext(ctx)

	if err := db.AutoMigrate(&MigrationRecord{}); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	executed, err := m.Applied(ctx)
	if err != nil {
		return err
	}
	executedMap := make(map[string]bool, len(executed))
	for _, id := range executed {
		executedMap[id] = true
	}

	ids := make([]string, 0, len(m.migrations))
	for id := range m.migrations {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if executedMap[id] {
			continue
		}
		migration := m.migrations[id]
		m.logger.Info("Running migration", "id", id)

		err := db.Transaction(func(tx *gorm.DB) error {
			if err := migration.Up(tx); err != nil {
				return fmt.Errorf("failed to run migration %s: %w", id, err)
			}
			if err := tx.Create(&MigrationRecord{ID: id}).Error; err != nil {
				return fmt.Errorf("failed to record migration %s: %w", id, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		m.logger.Info("Completed migration", "id", id)
	}

	return nil
}

// Applied returns the IDs of migrations already recorded, sorted.
func (m *Migrator) Applied(ctx context.Context) ([]string, error) {
	var executed []MigrationRecord
	if err := m.db.WithContext(ctx).Order("id").Find(&executed).Error; err != nil {
		return nil, fmt.Errorf("failed to get executed migrations: %w", err)
	}
	ids := make([]string, len(executed))
	for i, r := range executed {
		ids[i] = r.ID
	}
	return ids, nil
}
