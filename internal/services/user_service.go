package services

import (
	"context"
	"strings"

	"github.com/vladimiradmaev/pill-reminder/internal/timezone"
)

// SetTimezone stores the IANA timezone reminders of ownerID are computed in.
// Existing schedules keep their triggers until they are re-created or the
// process restarts.
func (s *ReminderService) SetTimezone(ctx context.Context, ownerID int64, tz string) error {
	tz = strings.TrimSpace(tz)
	if _, err := timezone.LoadLocation(tz); err != nil {
		return err
	}
	if err := s.ledger.UpsertUser(ctx, ownerID, tz); err != nil {
		return err
	}
	s.logger.Info("Timezone set", "owner_id", ownerID, "timezone", tz)
	return nil
}

// Timezone returns the owner's timezone.
func (s *ReminderService) Timezone(ctx context.Context, ownerID int64) (string, error) {
	return s.ledger.UserTimezone(ctx, ownerID)
}
