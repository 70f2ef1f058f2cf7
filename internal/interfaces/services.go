package interfaces

import (
	"context"

	"github.com/vladimiradmaev/pill-reminder/internal/domain"
)

// ReminderServiceInterface defines the contract the chat front-end talks to
type ReminderServiceInterface interface {
	SetTimezone(ctx context.Context, ownerID int64, timezone string) error
	Timezone(ctx context.Context, ownerID int64) (string, error)
	CreateSchedule(ctx context.Context, ownerID, chatID int64, medicineName string, localTimes []string) (*domain.ScheduleEntry, error)
	DeleteSchedule(ctx context.Context, medicineName string, ownerID int64) error
	Acknowledge(ctx context.Context, ownerID int64, medicineName string, status domain.IntakeStatus) error
	ListSchedules(ctx context.Context, ownerID int64) ([]domain.ScheduleEntry, error)
	IntakeHistory(ctx context.Context, ownerID int64, limit int) ([]domain.IntakeRecord, error)
}
