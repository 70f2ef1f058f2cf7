package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/vladimiradmaev/pill-reminder/internal/database"
	apperrors "github.com/vladimiradmaev/pill-reminder/internal/errors"
)

// Ledger is the durable record of schedules, trigger ids and intakes.
// Every call is bounded by the configured timeout.
type Ledger struct {
	db      *gorm.DB
	timeout time.Duration
}

// NewLedger wraps an opened database. A non-positive timeout disables the bound.
func NewLedger(db *gorm.DB, timeout time.Duration) *Ledger {
	return &Ledger{db: db, timeout: timeout}
}

func (l *Ledger) conn(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	if l.timeout <= 0 {
		return l.db.WithContext(ctx), func() {}
	}
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	return l.db.WithContext(ctx), cancel
}

// WipeAll deletes every row of every ledger table.
func (l *Ledger) WipeAll(ctx context.Context) error {
	db, cancel := l.conn(ctx)
	defer cancel()

	err := db.Transaction(func(tx *gorm.DB) error {
		models := database.All()
		for i := len(models) - 1; i >= 0; i-- {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(models[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return apperrors.NewDatabaseError(err)
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
