// Package scheduler keeps the in-memory registry of reminder triggers and runs
// them on gocron's bounded worker pool.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"

	"github.com/vladimiradmaev/pill-reminder/internal/domain"
	apperrors "github.com/vladimiradmaev/pill-reminder/internal/errors"
	"github.com/vladimiradmaev/pill-reminder/internal/metrics"
)

// Kind tells daily triggers from interval (nag) triggers.
type Kind string

const (
	KindDaily    Kind = "daily"
	KindInterval Kind = "interval"
)

// Key identifies the schedule a trigger belongs to.
type Key struct {
	MedicineName string
	OwnerID      int64
}

// Trigger is a read-only view of a registered trigger.
type Trigger struct {
	ID        string
	Kind      Kind
	Key       Key
	ChatID    int64
	Hour      int
	Minute    int
	Period    time.Duration
	FirstFire time.Time
}

// Callback runs on every fire with the manager's run context and the id of the
// trigger that fired.
type Callback func(ctx context.Context, triggerID string)

// Ledger records daily triggers so they can be cleaned up after a restart.
type Ledger interface {
	AddDailyTrigger(ctx context.Context, trigger domain.DailyTrigger) error
}

type Config struct {
	Location *time.Location
	Workers  int
	// Clock drives gocron; a fake clock makes tests deterministic.
	Clock clockwork.Clock
}

type entry struct {
	Trigger
	cb    Callback
	jobID uuid.UUID
}

// Manager is safe for concurrent use.
type Manager struct {
	scheduler gocron.Scheduler
	ledger    Ledger
	logger    *slog.Logger
	metrics   *metrics.Metrics
	clock     clockwork.Clock

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	triggers map[string]*entry
	byKey    map[Key]map[string]struct{}

	// afterNewJob runs between job creation and publication; tests only.
	afterNewJob func(id string)
}

var errCancelledDuringRegistration = errors.New("trigger cancelled during registration")

func NewManager(ledger Ledger, logger *slog.Logger, m *metrics.Metrics, cfg Config) (*Manager, error) {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	s, err := gocron.NewScheduler(
		gocron.WithLocation(cfg.Location),
		gocron.WithLogger(logger.With("component", "gocron")),
		gocron.WithLimitConcurrentJobs(uint(cfg.Workers), gocron.LimitModeWait),
		gocron.WithClock(cfg.Clock),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		scheduler: s,
		ledger:    ledger,
		logger:    logger,
		metrics:   m,
		clock:     cfg.Clock,
		ctx:       ctx,
		cancel:    cancel,
		triggers:  make(map[string]*entry),
		byKey:     make(map[Key]map[string]struct{}),
	}, nil
}

// Start begins firing registered triggers.
func (m *Manager) Start() {
	m.scheduler.Start()
	m.logger.Info("Scheduler started")
}

// Shutdown stops the scheduler and waits for running callbacks to return.
func (m *Manager) Shutdown() error {
	m.cancel()
	if err := m.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to shut down scheduler: %w", err)
	}
	m.logger.Info("Scheduler stopped")
	return nil
}

// DailySpec returns the cron expression firing every day at hour:minute UTC.
func DailySpec(hourUTC, minuteUTC int) string {
	return fmt.Sprintf("CRON_TZ=UTC %d %d * * *", minuteUTC, hourUTC)
}

// RegisterDaily adds a trigger firing every day at hourUTC:minuteUTC and records it
// in the ledger. FirstFire is the first occurrence after from.
func (m *Manager) RegisterDaily(ctx context.Context, ownerID int64, medicineName string, chatID int64, hourUTC, minuteUTC int, from time.Time, cb Callback) (string, error) {
	if hourUTC < 0 || hourUTC > 23 || minuteUTC < 0 || minuteUTC > 59 {
		return "", apperrors.NewValidationError(fmt.Sprintf("invalid UTC time %d:%d", hourUTC, minuteUTC))
	}

	spec := DailySpec(hourUTC, minuteUTC)
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return "", apperrors.NewTriggerRegistrationError(err).WithContext("spec", spec)
	}

	e := &entry{
		Trigger: Trigger{
			ID:        uuid.NewString(),
			Kind:      KindDaily,
			Key:       Key{MedicineName: medicineName, OwnerID: ownerID},
			ChatID:    chatID,
			Hour:      hourUTC,
			Minute:    minuteUTC,
			FirstFire: schedule.Next(from.UTC()),
		},
		cb: cb,
	}
	if err := m.register(e, gocron.CronJob(spec, false)); err != nil {
		return "", err
	}

	err = m.ledger.AddDailyTrigger(ctx, domain.DailyTrigger{
		ID:           e.ID,
		MedicineName: medicineName,
		OwnerID:      ownerID,
		Hour:         hourUTC,
		Minute:       minuteUTC,
		FirstFireUTC: e.FirstFire,
	})
	if err != nil {
		m.Cancel(ctx, e.ID)
		return "", err
	}

	m.logger.Debug("Registered daily trigger",
		"trigger_id", e.ID,
		"medicine", medicineName,
		"owner_id", ownerID,
		"hour_utc", hourUTC,
		"minute_utc", minuteUTC,
		"first_fire", e.FirstFire)
	return e.ID, nil
}

// RegisterInterval adds a trigger firing right away and then every period.
// A slow callback never overlaps with its own next run.
func (m *Manager) RegisterInterval(ctx context.Context, ownerID int64, medicineName string, chatID int64, period time.Duration, cb Callback) (string, error) {
	if period <= 0 {
		return "", apperrors.NewValidationError("interval must be positive")
	}

	e := &entry{
		Trigger: Trigger{
			ID:        uuid.NewString(),
			Kind:      KindInterval,
			Key:       Key{MedicineName: medicineName, OwnerID: ownerID},
			ChatID:    chatID,
			Period:    period,
			FirstFire: m.clock.Now().UTC(),
		},
		cb: cb,
	}
	err := m.register(e, gocron.DurationJob(period),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return "", err
	}

	m.logger.Debug("Registered interval trigger",
		"trigger_id", e.ID,
		"medicine", medicineName,
		"owner_id", ownerID,
		"period", period)
	return e.ID, nil
}

// register publishes e before the job exists so an immediate first run finds it.
func (m *Manager) register(e *entry, def gocron.JobDefinition, opts ...gocron.JobOption) error {
	m.mu.Lock()
	m.triggers[e.ID] = e
	ids, ok := m.byKey[e.Key]
	if !ok {
		ids = make(map[string]struct{})
		m.byKey[e.Key] = ids
	}
	ids[e.ID] = struct{}{}
	m.mu.Unlock()

	opts = append(opts,
		gocron.WithName(e.ID),
		gocron.WithTags(string(e.Kind), e.Key.MedicineName),
	)
	job, err := m.scheduler.NewJob(def, gocron.NewTask(m.dispatch, e.ID), opts...)
	if err == nil && m.afterNewJob != nil {
		m.afterNewJob(e.ID)
	}
	if err != nil {
		m.mu.Lock()
		m.forget(e)
		m.mu.Unlock()
		return apperrors.NewTriggerRegistrationError(err).
			WithContext("medicine", e.Key.MedicineName).
			WithContext("kind", string(e.Kind))
	}

	m.mu.Lock()
	_, live := m.triggers[e.ID]
	if live {
		e.jobID = job.ID()
	}
	m.mu.Unlock()

	if !live {
		_ = m.scheduler.RemoveJob(job.ID())
		return apperrors.NewTriggerRegistrationError(errCancelledDuringRegistration).
			WithContext("medicine", e.Key.MedicineName).
			WithContext("kind", string(e.Kind))
	}
	m.metrics.AddActiveTriggers(string(e.Kind), 1)
	return nil
}

// Cancel stops a trigger. Unknown or already cancelled ids are ignored.
// A callback already running is allowed to finish.
func (m *Manager) Cancel(ctx context.Context, id string) {
	m.mu.Lock()
	e, ok := m.triggers[id]
	var jobID uuid.UUID
	if ok {
		jobID = e.jobID
		m.forget(e)
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	if jobID != uuid.Nil {
		if err := m.scheduler.RemoveJob(jobID); err != nil {
			m.logger.DebugContext(ctx, "Job already gone", "trigger_id", id, "error", err)
		}
		m.metrics.AddActiveTriggers(string(e.Kind), -1)
	}
	m.logger.DebugContext(ctx, "Cancelled trigger",
		"trigger_id", id,
		"kind", e.Kind,
		"medicine", e.Key.MedicineName,
		"owner_id", e.Key.OwnerID)
}

// forget drops e from the registry. Callers hold m.mu.
func (m *Manager) forget(e *entry) {
	delete(m.triggers, e.ID)
	if ids, ok := m.byKey[e.Key]; ok {
		delete(ids, e.ID)
		if len(ids) == 0 {
			delete(m.byKey, e.Key)
		}
	}
}

// ListActiveTriggerIDs returns the sorted ids of every live trigger of a schedule.
func (m *Manager) ListActiveTriggerIDs(medicineName string, ownerID int64) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	live := m.byKey[Key{MedicineName: medicineName, OwnerID: ownerID}]
	ids := make([]string, 0, len(live))
	for id := range live {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Trigger looks up a live trigger.
func (m *Manager) Trigger(id string) (Trigger, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.triggers[id]
	if !ok {
		return Trigger{}, false
	}
	return e.Trigger, true
}

// Count returns the number of live triggers.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.triggers)
}

func (m *Manager) dispatch(id string) {
	m.mu.RLock()
	e, ok := m.triggers[id]
	m.mu.RUnlock()
	if !ok || m.ctx.Err() != nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Trigger callback panicked",
				"trigger_id", id,
				"medicine", e.Key.MedicineName,
				"owner_id", e.Key.OwnerID,
				"panic", r)
		}
	}()
	e.cb(m.ctx, id)
}
