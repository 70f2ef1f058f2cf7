package database

import (
	"time"
)

// Rows are hard-deleted; soft deletes would collide with the unique indexes below.

type User struct {
	ID        uint   `gorm:"primaryKey"`
	OwnerID   int64  `gorm:"uniqueIndex;not null"`
	Timezone  string `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Schedule struct {
	ID           uint   `gorm:"primaryKey"`
	MedicineName string `gorm:"size:64;not null;uniqueIndex:idx_schedule_medicine_owner"`
	OwnerID      int64  `gorm:"not null;uniqueIndex:idx_schedule_medicine_owner"`
	ChatID       int64  `gorm:"not null"`
	LocalTimes   string `gorm:"not null"` // comma-joined "HH:MM" values
	CreatedAt    time.Time
}

type DailyTrigger struct {
	ID           uint   `gorm:"primaryKey"`
	TriggerID    string `gorm:"size:36;not null;uniqueIndex"`
	MedicineName string `gorm:"size:64;not null;index:idx_daily_medicine_owner"`
	OwnerID      int64  `gorm:"not null;index:idx_daily_medicine_owner"`
	Hour         int    `gorm:"not null"`
	Minute       int    `gorm:"not null"`
	CreatedAt    time.Time
}

// EscalationTrigger tracks the nag of an unanswered reminder. At most one per medicine and owner.
type EscalationTrigger struct {
	ID           uint   `gorm:"primaryKey"`
	TriggerID    string `gorm:"size:36;not null"`
	MedicineName string `gorm:"size:64;not null;uniqueIndex:idx_escalation_medicine_owner"`
	OwnerID      int64  `gorm:"not null;uniqueIndex:idx_escalation_medicine_owner"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type IntakeLog struct {
	ID           uint      `gorm:"primaryKey"`
	OwnerID      int64     `gorm:"not null;index:idx_intake_owner_time,priority:1"`
	MedicineName string    `gorm:"size:64;not null"`
	TakenAt      time.Time `gorm:"not null;index:idx_intake_owner_time,priority:2"`
	Status       string    `gorm:"size:16;not null"`
}

func (IntakeLog) TableName() string {
	return "intake_log"
}

// All lists every ledger model, parents first.
func All() []interface{} {
	return []interface{}{&User{}, &Schedule{}, &DailyTrigger{}, &EscalationTrigger{}, &IntakeLog{}}
}
