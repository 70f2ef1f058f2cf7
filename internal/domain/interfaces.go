package domain

import (
	"context"
)

// Notifier delivers reminders and takes the Done/Skip buttons away once answered.
type Notifier interface {
	SendReminder(ctx context.Context, chatID int64, medicineName string) (DeliveryHandle, error)
	ClearReminder(ctx context.Context, handle DeliveryHandle, medicineName string, status IntakeStatus) error
}

// BotService handles telegram bot operations
type BotService interface {
	Start(ctx context.Context) error
}
