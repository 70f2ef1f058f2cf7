package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/vladimiradmaev/pill-reminder/internal/domain"
	apperrors "github.com/vladimiradmaev/pill-reminder/internal/errors"
	"github.com/vladimiradmaev/pill-reminder/internal/interfaces"
	"github.com/vladimiradmaev/pill-reminder/internal/scheduler"
	"github.com/vladimiradmaev/pill-reminder/internal/timezone"
)

const (
	// MaxMedicineNameLen keeps "ack:done:<name>" inside Telegram's 64 byte callback data.
	MaxMedicineNameLen = 48

	defaultHistoryLimit = 10
	maxHistoryLimit     = 50
)

type Ledger interface {
	UpsertUser(ctx context.Context, ownerID int64, timezone string) error
	UserTimezone(ctx context.Context, ownerID int64) (string, error)
	CreateSchedule(ctx context.Context, entry domain.ScheduleEntry) error
	ListSchedules(ctx context.Context, ownerID int64) ([]domain.ScheduleEntry, error)
	DeleteSchedule(ctx context.Context, medicineName string, ownerID int64) error
	ListIntakes(ctx context.Context, ownerID int64, limit int) ([]domain.IntakeRecord, error)
}

type Scheduler interface {
	RegisterDaily(ctx context.Context, ownerID int64, medicineName string, chatID int64, hourUTC, minuteUTC int, from time.Time, cb scheduler.Callback) (string, error)
	Cancel(ctx context.Context, id string)
	ListActiveTriggerIDs(medicineName string, ownerID int64) []string
}

type Escalation interface {
	OnDailyFire(ctx context.Context, ownerID, chatID int64, medicineName string)
	Acknowledge(ctx context.Context, ownerID int64, medicineName string, status domain.IntakeStatus) error
	Discard(ctx context.Context, medicineName string, ownerID int64)
}

// ReminderService is what the chat front-end talks to: it validates schedules,
// persists them and keeps the triggers in line with the ledger.
type ReminderService struct {
	ledger     Ledger
	scheduler  Scheduler
	escalation Escalation
	logger     *slog.Logger
	clock      clockwork.Clock
}

var _ interfaces.ReminderServiceInterface = (*ReminderService)(nil)

func NewReminderService(ledger Ledger, s Scheduler, e Escalation, logger *slog.Logger, clock clockwork.Clock) *ReminderService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ReminderService{
		ledger:     ledger,
		scheduler:  s,
		escalation: e,
		logger:     logger,
		clock:      clock,
	}
}

// ValidateMedicineName checks a name can be stored and carried in callback data.
func ValidateMedicineName(name string) error {
	switch {
	case name == "":
		return apperrors.NewValidationError("medicine name must not be empty")
	case len(name) > MaxMedicineNameLen:
		return apperrors.NewValidationError(fmt.Sprintf("medicine name must be at most %d bytes", MaxMedicineNameLen))
	case !utf8.ValidString(name):
		return apperrors.NewValidationError("medicine name must be valid UTF-8")
	case strings.ContainsAny(name, ":\r\n"):
		return apperrors.NewValidationError("medicine name must not contain ':' or line breaks")
	}
	return nil
}

// ValidateLocalTimes checks the dose count and every "HH:MM" value, rejecting repeats.
func ValidateLocalTimes(localTimes []string) error {
	if len(localTimes) == 0 || len(localTimes) > domain.MaxDailyIntakes {
		return apperrors.NewValidationError(fmt.Sprintf("between 1 and %d times a day are supported", domain.MaxDailyIntakes))
	}
	seen := make(map[string]bool, len(localTimes))
	for _, lt := range localTimes {
		if _, _, err := timezone.ParseLocalTime(lt); err != nil {
			return err
		}
		if seen[lt] {
			return apperrors.NewValidationError(fmt.Sprintf("time %s is listed twice", lt)).WithContext("value", lt)
		}
		seen[lt] = true
	}
	return nil
}

// CreateSchedule stores a new schedule and registers one daily trigger per time.
// If any trigger cannot be registered nothing is kept.
func (s *ReminderService) CreateSchedule(ctx context.Context, ownerID, chatID int64, medicineName string, localTimes []string) (*domain.ScheduleEntry, error) {
	medicineName = strings.TrimSpace(medicineName)
	if err := ValidateMedicineName(medicineName); err != nil {
		return nil, err
	}
	if err := ValidateLocalTimes(localTimes); err != nil {
		return nil, err
	}

	tz, err := s.ledger.UserTimezone(ctx, ownerID)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return nil, apperrors.NewValidationError("set your timezone first with /timezone").
				WithContext("owner_id", ownerID)
		}
		return nil, err
	}

	entry := domain.ScheduleEntry{
		MedicineName: medicineName,
		OwnerID:      ownerID,
		ChatID:       chatID,
		LocalTimes:   append([]string(nil), localTimes...),
		Timezone:     tz,
	}
	if err := s.ledger.CreateSchedule(ctx, entry); err != nil {
		return nil, err
	}

	if _, err := s.ScheduleEntry(ctx, entry); err != nil {
		if delErr := s.ledger.DeleteSchedule(ctx, medicineName, ownerID); delErr != nil {
			s.logger.Error("Failed to roll back schedule",
				"medicine", medicineName,
				"owner_id", ownerID,
				"error", delErr)
		}
		return nil, err
	}

	s.logger.Info("Schedule created",
		"medicine", medicineName,
		"owner_id", ownerID,
		"times", localTimes,
		"timezone", tz)
	return &entry, nil
}

// ScheduleEntry registers the daily triggers of an already stored schedule and
// returns how many were registered. On failure the triggers registered by this
// call are cancelled again.
func (s *ReminderService) ScheduleEntry(ctx context.Context, entry domain.ScheduleEntry) (int, error) {
	now := s.clock.Now()
	ids := make([]string, 0, len(entry.LocalTimes))

	rollback := func() {
		for _, id := range ids {
			s.scheduler.Cancel(ctx, id)
		}
	}

	for _, lt := range entry.LocalTimes {
		fire, err := timezone.ResolveNextLocalFire(lt, entry.Timezone, now)
		if err != nil {
			rollback()
			return 0, err
		}

		id, err := s.scheduler.RegisterDaily(ctx, entry.OwnerID, entry.MedicineName, entry.ChatID,
			fire.HourUTC, fire.MinuteUTC, now, s.dailyCallback(entry))
		if err != nil {
			rollback()
			return 0, err
		}
		ids = append(ids, id)

		s.logger.Info("Daily reminder scheduled",
			"trigger_id", id,
			"medicine", entry.MedicineName,
			"owner_id", entry.OwnerID,
			"local_time", lt,
			"timezone", entry.Timezone,
			"hour_utc", fire.HourUTC,
			"minute_utc", fire.MinuteUTC,
			"first_fire", fire.Reference)
	}
	return len(ids), nil
}

func (s *ReminderService) dailyCallback(entry domain.ScheduleEntry) scheduler.Callback {
	return func(ctx context.Context, _ string) {
		s.escalation.OnDailyFire(ctx, entry.OwnerID, entry.ChatID, entry.MedicineName)
	}
}

// DeleteSchedule removes a schedule, every trigger it owns and its running cycle.
func (s *ReminderService) DeleteSchedule(ctx context.Context, medicineName string, ownerID int64) error {
	medicineName = strings.TrimSpace(medicineName)
	if medicineName == "" {
		return apperrors.NewValidationError("medicine name must not be empty")
	}

	if err := s.ledger.DeleteSchedule(ctx, medicineName, ownerID); err != nil {
		return err
	}

	ids := s.scheduler.ListActiveTriggerIDs(medicineName, ownerID)
	for _, id := range ids {
		s.scheduler.Cancel(ctx, id)
	}
	s.escalation.Discard(ctx, medicineName, ownerID)

	s.logger.Info("Schedule deleted",
		"medicine", medicineName,
		"owner_id", ownerID,
		"cancelled_triggers", len(ids))
	return nil
}

// Acknowledge records a Done or Skip answer for the current reminder.
func (s *ReminderService) Acknowledge(ctx context.Context, ownerID int64, medicineName string, status domain.IntakeStatus) error {
	return s.escalation.Acknowledge(ctx, ownerID, medicineName, status)
}

// ListSchedules returns the owner's schedules.
func (s *ReminderService) ListSchedules(ctx context.Context, ownerID int64) ([]domain.ScheduleEntry, error) {
	return s.ledger.ListSchedules(ctx, ownerID)
}

// IntakeHistory returns the owner's latest intakes, newest first.
func (s *ReminderService) IntakeHistory(ctx context.Context, ownerID int64, limit int) ([]domain.IntakeRecord, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return s.ledger.ListIntakes(ctx, ownerID, limit)
}
