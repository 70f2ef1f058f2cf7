package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vladimiradmaev/pill-reminder/internal/database"
	"github.com/vladimiradmaev/pill-reminder/internal/domain"
	apperrors "github.com/vladimiradmaev/pill-reminder/internal/errors"
)

// AddDailyTrigger records a registered daily trigger.
func (l *Ledger) AddDailyTrigger(ctx context.Context, trigger domain.DailyTrigger) error {
	db, cancel := l.conn(ctx)
	defer cancel()

	row := database.DailyTrigger{
		TriggerID:    trigger.ID,
		MedicineName: trigger.MedicineName,
		OwnerID:      trigger.OwnerID,
		Hour:         trigger.Hour,
		Minute:       trigger.Minute,
	}
	if err := db.Create(&row).Error; err != nil {
		return apperrors.NewDatabaseError(err).
			WithContext("trigger_id", trigger.ID).
			WithContext("medicine", trigger.MedicineName)
	}
	return nil
}

// DailyTriggerIDs returns the recorded daily trigger ids of one schedule.
func (l *Ledger) DailyTriggerIDs(ctx context.Context, medicineName string, ownerID int64) ([]string, error) {
	db, cancel := l.conn(ctx)
	defer cancel()

	var ids []string
	err := db.Model(&database.DailyTrigger{}).
		Where("medicine_name = ? AND owner_id = ?", medicineName, ownerID).
		Order("trigger_id").
		Pluck("trigger_id", &ids).Error
	if err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}
	return ids, nil
}

// CountDailyTriggers returns how many daily trigger rows are recorded.
func (l *Ledger) CountDailyTriggers(ctx context.Context) (int64, error) {
	return l.count(ctx, &database.DailyTrigger{})
}

// ClearDailyTriggers drops every daily trigger row and returns how many there were.
func (l *Ledger) ClearDailyTriggers(ctx context.Context) (int64, error) {
	return l.clear(ctx, &database.DailyTrigger{})
}

// SetEscalationTrigger records the nag trigger of a medicine, replacing a previous one.
func (l *Ledger) SetEscalationTrigger(ctx context.Context, triggerID, medicineName string, ownerID int64) error {
	db, cancel := l.conn(ctx)
	defer cancel()

	row := database.EscalationTrigger{
		TriggerID:    triggerID,
		MedicineName: medicineName,
		OwnerID:      ownerID,
	}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "medicine_name"}, {Name: "owner_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"trigger_id", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return apperrors.NewDatabaseError(err).
			WithContext("trigger_id", triggerID).
			WithContext("medicine", medicineName)
	}
	return nil
}

// EscalationTriggerID returns the recorded nag trigger id, or "" when there is none.
func (l *Ledger) EscalationTriggerID(ctx context.Context, medicineName string, ownerID int64) (string, error) {
	db, cancel := l.conn(ctx)
	defer cancel()

	var row database.EscalationTrigger
	err := db.Where("medicine_name = ? AND owner_id = ?", medicineName, ownerID).First(&row).Error
	if err != nil {
		if isNotFound(err) {
			return "", nil
		}
		return "", apperrors.NewDatabaseError(err)
	}
	return row.TriggerID, nil
}

// DeleteEscalationTrigger forgets the nag trigger of a medicine. Missing rows are fine.
func (l *Ledger) DeleteEscalationTrigger(ctx context.Context, medicineName string, ownerID int64) error {
	db, cancel := l.conn(ctx)
	defer cancel()

	err := db.Where("medicine_name = ? AND owner_id = ?", medicineName, ownerID).
		Delete(&database.EscalationTrigger{}).Error
	if err != nil {
		return apperrors.NewDatabaseError(err).WithContext("medicine", medicineName)
	}
	return nil
}

// CountEscalationTriggers returns how many nag rows are recorded.
func (l *Ledger) CountEscalationTriggers(ctx context.Context) (int64, error) {
	return l.count(ctx, &database.EscalationTrigger{})
}

func (l *Ledger) count(ctx context.Context, model interface{}) (int64, error) {
	db, cancel := l.conn(ctx)
	defer cancel()

	var n int64
	if err := db.Model(model).Count(&n).Error; err != nil {
		return 0, apperrors.NewDatabaseError(err)
	}
	return n, nil
}

// ClearEscalationTriggers drops every nag row and returns how many there were.
func (l *Ledger) ClearEscalationTriggers(ctx context.Context) (int64, error) {
	return l.clear(ctx, &database.EscalationTrigger{})
}

func (l *Ledger) clear(ctx context.Context, model interface{}) (int64, error) {
	db, cancel := l.conn(ctx)
	defer cancel()

	result := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model)
	if result.Error != nil {
		return 0, apperrors.NewDatabaseError(result.Error)
	}
	return result.RowsAffected, nil
}
