package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vladimiradmaev/pill-reminder/internal/database"
	"github.com/vladimiradmaev/pill-reminder/internal/domain"
	apperrors "github.com/vladimiradmaev/pill-reminder/internal/errors"
)

type scheduleRow struct {
	database.Schedule
	Timezone string
}

func (r scheduleRow) toDomain() domain.ScheduleEntry {
	var times []string
	if r.LocalTimes != "" {
		times = strings.Split(r.LocalTimes, ",")
	}
	return domain.ScheduleEntry{
		MedicineName: r.MedicineName,
		OwnerID:      r.OwnerID,
		ChatID:       r.ChatID,
		LocalTimes:   times,
		Timezone:     r.Timezone,
	}
}

func (l *Ledger) scheduleQuery(db *gorm.DB) *gorm.DB {
	return db.Table("schedules").
		Select("schedules.*, COALESCE(users.timezone, '') AS timezone").
		Joins("LEFT JOIN users ON users.owner_id = schedules.owner_id")
}

// CreateSchedule inserts a schedule. A second schedule for the same medicine and
// owner is rejected with a DuplicateSchedule error.
func (l *Ledger) CreateSchedule(ctx context.Context, entry domain.ScheduleEntry) error {
	db, cancel := l.conn(ctx)
	defer cancel()

	row := database.Schedule{
		MedicineName: entry.MedicineName,
		OwnerID:      entry.OwnerID,
		ChatID:       entry.ChatID,
		LocalTimes:   strings.Join(entry.LocalTimes, ","),
	}
	result := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if result.Error != nil {
		return apperrors.NewDatabaseError(result.Error).WithContext("medicine", entry.MedicineName)
	}
	if result.RowsAffected == 0 {
		return apperrors.NewDuplicateScheduleError(entry.MedicineName)
	}
	return nil
}

// GetSchedule returns one schedule with its owner's timezone.
func (l *Ledger) GetSchedule(ctx context.Context, medicineName string, ownerID int64) (*domain.ScheduleEntry, error) {
	db, cancel := l.conn(ctx)
	defer cancel()

	var rows []scheduleRow
	err := l.scheduleQuery(db).
		Where("schedules.medicine_name = ? AND schedules.owner_id = ?", medicineName, ownerID).
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}
	if len(rows) == 0 {
		return nil, apperrors.NewScheduleNotFoundError(medicineName)
	}
	entry := rows[0].toDomain()
	return &entry, nil
}

// ListSchedules returns the owner's schedules ordered by medicine name.
func (l *Ledger) ListSchedules(ctx context.Context, ownerID int64) ([]domain.ScheduleEntry, error) {
	db, cancel := l.conn(ctx)
	defer cancel()

	var rows []scheduleRow
	err := l.scheduleQuery(db).
		Where("schedules.owner_id = ?", ownerID).
		Order("schedules.medicine_name").
		Scan(&rows).Error
	if err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}
	return toEntries(rows), nil
}

// ListAllSchedules returns every schedule of every owner.
func (l *Ledger) ListAllSchedules(ctx context.Context) ([]domain.ScheduleEntry, error) {
	db, cancel := l.conn(ctx)
	defer cancel()

	var rows []scheduleRow
	err := l.scheduleQuery(db).
		Order("schedules.owner_id, schedules.medicine_name").
		Scan(&rows).Error
	if err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}
	return toEntries(rows), nil
}

// DeleteSchedule removes the schedule and its trigger rows. The intake log is kept.
func (l *Ledger) DeleteSchedule(ctx context.Context, medicineName string, ownerID int64) error {
	db, cancel := l.conn(ctx)
	defer cancel()

	var deleted int64
	err := db.Transaction(func(tx *gorm.DB) error {
		where := "medicine_name = ? AND owner_id = ?"
		if err := tx.Where(where, medicineName, ownerID).Delete(&database.DailyTrigger{}).Error; err != nil {
			return err
		}
		if err := tx.Where(where, medicineName, ownerID).Delete(&database.EscalationTrigger{}).Error; err != nil {
			return err
		}
		result := tx.Where(where, medicineName, ownerID).Delete(&database.Schedule{})
		deleted = result.RowsAffected
		return result.Error
	})
	if err != nil {
		return apperrors.NewDatabaseError(err).WithContext("medicine", medicineName)
	}
	if deleted == 0 {
		return apperrors.NewScheduleNotFoundError(medicineName)
	}
	return nil
}

func toEntries(rows []scheduleRow) []domain.ScheduleEntry {
	entries := make([]domain.ScheduleEntry, len(rows))
	for i, r := range rows {
		entries[i] = r.toDomain()
	}
	return entries
}
