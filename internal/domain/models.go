package domain

import (
	"time"
)

// DefaultEscalationInterval is the nag cadence for unacknowledged reminders.
const DefaultEscalationInterval = 900 * time.Second

// MaxDailyIntakes bounds how many times a day one medicine can be scheduled.
const MaxDailyIntakes = 10

// ScheduleEntry is a medicine a user takes at fixed local times every day.
type ScheduleEntry struct {
	MedicineName string
	OwnerID      int64
	ChatID       int64
	LocalTimes   []string // "HH:MM", in the order the user entered them
	Timezone     string   // IANA identifier of the owner
}

// DailyTrigger fires once a day at a UTC hour/minute.
type DailyTrigger struct {
	ID           string
	MedicineName string
	OwnerID      int64
	Hour         int
	Minute       int
	Timezone     string
	FirstFireUTC time.Time
}

// EscalationState is the lifecycle of one reminder cycle.
type EscalationState string

const (
	StateScheduled  EscalationState = "scheduled"
	StateDue        EscalationState = "due"
	StateEscalating EscalationState = "escalating"
	StateResolved   EscalationState = "resolved"
)

// EscalationJob is the nag trigger of an unacknowledged cycle.
type EscalationJob struct {
	ID           string
	MedicineName string
	OwnerID      int64
	ChatID       int64
	Interval     time.Duration
	State        EscalationState
}

// IntakeStatus is what the user answered to a reminder.
type IntakeStatus string

const (
	IntakeDone    IntakeStatus = "done"
	IntakeSkipped IntakeStatus = "skipped"
)

// Valid reports whether s is a known status.
func (s IntakeStatus) Valid() bool {
	return s == IntakeDone || s == IntakeSkipped
}

// IntakeRecord is an append-only audit entry.
type IntakeRecord struct {
	OwnerID      int64
	MedicineName string
	Timestamp    time.Time
	Status       IntakeStatus
}

// DeliveryHandle identifies a delivered reminder message.
type DeliveryHandle struct {
	ChatID    int64
	MessageID int
}
