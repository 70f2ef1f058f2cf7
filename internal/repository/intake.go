package repository

import (
	"context"

	"github.com/vladimiradmaev/pill-reminder/internal/database"
	"github.com/vladimiradmaev/pill-reminder/internal/domain"
	apperrors "github.com/vladimiradmaev/pill-reminder/internal/errors"
)

// AppendIntake adds one entry to the intake log.
func (l *Ledger) AppendIntake(ctx context.Context, record domain.IntakeRecord) error {
	db, cancel := l.conn(ctx)
	defer cancel()

	row := database.IntakeLog{
		OwnerID:      record.OwnerID,
		MedicineName: record.MedicineName,
		TakenAt:      record.Timestamp.UTC(),
		Status:       string(record.Status),
	}
	if err := db.Create(&row).Error; err != nil {
		return apperrors.NewDatabaseError(err).
			WithContext("owner_id", record.OwnerID).
			WithContext("medicine", record.MedicineName)
	}
	return nil
}

// ListIntakes returns the owner's most recent intakes, newest first.
func (l *Ledger) ListIntakes(ctx context.Context, ownerID int64, limit int) ([]domain.IntakeRecord, error) {
	db, cancel := l.conn(ctx)
	defer cancel()

	var rows []database.IntakeLog
	q := db.Where("owner_id = ?", ownerID).Order("taken_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}

	records := make([]domain.IntakeRecord, len(rows))
	for i, r := range rows {
		records[i] = domain.IntakeRecord{
			OwnerID:      r.OwnerID,
			MedicineName: r.MedicineName,
			Timestamp:    r.TakenAt.UTC(),
			Status:       domain.IntakeStatus(r.Status),
		}
	}
	return records, nil
}
