package repository

import (
	"context"

	"gorm.io/gorm/clause"

	"github.com/vladimiradmaev/pill-reminder/internal/database"
	apperrors "github.com/vladimiradmaev/pill-reminder/internal/errors"
)

// UpsertUser stores the owner's timezone, replacing any previous one.
func (l *Ledger) UpsertUser(ctx context.Context, ownerID int64, timezone string) error {
	db, cancel := l.conn(ctx)
	defer cancel()

	user := database.User{OwnerID: ownerID, Timezone: timezone}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"timezone", "updated_at"}),
	}).Create(&user).Error
	if err != nil {
		return apperrors.NewDatabaseError(err).WithContext("owner_id", ownerID)
	}
	return nil
}

// UserTimezone returns the owner's IANA timezone.
func (l *Ledger) UserTimezone(ctx context.Context, ownerID int64) (string, error) {
	db, cancel := l.conn(ctx)
	defer cancel()

	var user database.User
	if err := db.Where("owner_id = ?", ownerID).First(&user).Error; err != nil {
		if isNotFound(err) {
			return "", apperrors.NewUserNotFoundError(ownerID)
		}
		return "", apperrors.NewDatabaseError(err).WithContext("owner_id", ownerID)
	}
	return user.Timezone, nil
}
