// Package escalation drives one reminder cycle per medicine and owner:
// Scheduled, Due when the daily trigger fires, Escalating while the user is
// nagged, Resolved once the intake is recorded.
//
// Every transition of a key runs under that key's lock, so an acknowledgement
// and a nag for the same medicine never interleave. Different medicines never
// wait on each other.
package escalation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/vladimiradmaev/pill-reminder/internal/domain"
	apperrors "github.com/vladimiradmaev/pill-reminder/internal/errors"
	"github.com/vladimiradmaev/pill-reminder/internal/metrics"
	"github.com/vladimiradmaev/pill-reminder/internal/scheduler"
)

type Scheduler interface {
	RegisterInterval(ctx context.Context, ownerID int64, medicineName string, chatID int64, period time.Duration, cb scheduler.Callback) (string, error)
	Cancel(ctx context.Context, id string)
	ListActiveTriggerIDs(medicineName string, ownerID int64) []string
}

type Ledger interface {
	SetEscalationTrigger(ctx context.Context, triggerID, medicineName string, ownerID int64) error
	DeleteEscalationTrigger(ctx context.Context, medicineName string, ownerID int64) error
	AppendIntake(ctx context.Context, record domain.IntakeRecord) error
}

type Config struct {
	Interval    time.Duration
	SendTimeout time.Duration
	Retry       RetryConfig
	Clock       clockwork.Clock
}

type cycle struct {
	ownerID  int64
	chatID   int64
	medicine string

	// guarded by Machine.mu so readers outside the key lock see them
	state domain.EscalationState
	nagID string

	// guarded by the key lock
	skipNextTick bool
	handles      []domain.DeliveryHandle
}

type Machine struct {
	scheduler Scheduler
	ledger    Ledger
	notifier  domain.Notifier
	logger    *slog.Logger
	metrics   *metrics.Metrics
	cfg       Config

	locks *keyedMutex

	mu     sync.RWMutex
	cycles map[scheduler.Key]*cycle
}

func NewMachine(s Scheduler, ledger Ledger, notifier domain.Notifier, logger *slog.Logger, m *metrics.Metrics, cfg Config) *Machine {
	if cfg.Interval <= 0 {
		cfg.Interval = domain.DefaultEscalationInterval
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &Machine{
		scheduler: s,
		ledger:    ledger,
		notifier:  notifier,
		logger:    logger,
		metrics:   m,
		cfg:       cfg,
		locks:     newKeyedMutex(),
		cycles:    make(map[scheduler.Key]*cycle),
	}
}

func keyOf(medicineName string, ownerID int64) scheduler.Key {
	return scheduler.Key{MedicineName: medicineName, OwnerID: ownerID}
}

// OnDailyFire starts a new cycle: it registers the nag, records it and sends the
// first reminder. A cycle still escalating from an earlier fire is superseded.
func (m *Machine) OnDailyFire(ctx context.Context, ownerID, chatID int64, medicineName string) {
	key := keyOf(medicineName, ownerID)
	unlock := m.locks.Lock(key)
	defer unlock()

	log := m.logger.With("medicine", medicineName, "owner_id", ownerID)

	// the schedule was deleted while this fire was on its way
	if len(m.scheduler.ListActiveTriggerIDs(medicineName, ownerID)) == 0 {
		log.Debug("Ignoring fire of a deleted schedule")
		return
	}

	c := &cycle{
		ownerID:  ownerID,
		chatID:   chatID,
		medicine: medicineName,
		state:    domain.StateDue,
	}
	if prev := m.lookup(key); prev != nil && prev.state == domain.StateEscalating {
		log.Info("Superseding unanswered reminder", "trigger_id", prev.nagID)
		m.scheduler.Cancel(ctx, prev.nagID)
		// one answer clears the buttons of every unanswered message
		c.handles = prev.handles
	}
	m.mu.Lock()
	m.cycles[key] = c
	m.mu.Unlock()

	nagID, err := m.scheduler.RegisterInterval(ctx, ownerID, medicineName, chatID, m.cfg.Interval,
		func(ctx context.Context, triggerID string) {
			m.OnNag(ctx, key, triggerID)
		})
	if err != nil {
		m.transition(c, domain.StateScheduled, "")
		log.Error("Failed to register escalation trigger", "error", err)
		return
	}
	// the interval fires immediately; that tick is this reminder
	c.skipNextTick = true

	err = doWithRetry(ctx, m.cfg.Retry, func(ctx context.Context) error {
		return m.ledger.SetEscalationTrigger(ctx, nagID, medicineName, ownerID)
	}, m.onRetry(log, "set escalation trigger"))
	if err != nil {
		log.Error("Failed to record escalation trigger", "trigger_id", nagID, "error", err)
	}

	m.remind(ctx, c)
	m.transition(c, domain.StateEscalating, nagID)
	log.Info("Reminder cycle escalating", "trigger_id", nagID, "interval", m.cfg.Interval)
}

// OnNag re-sends the reminder while the cycle whose nag is triggerID is escalating.
func (m *Machine) OnNag(ctx context.Context, key scheduler.Key, triggerID string) {
	unlock := m.locks.Lock(key)
	defer unlock()

	c := m.lookup(key)
	if c == nil || c.state != domain.StateEscalating || c.nagID != triggerID {
		m.logger.Debug("Ignoring stale nag",
			"medicine", key.MedicineName,
			"owner_id", key.OwnerID,
			"trigger_id", triggerID)
		return
	}
	if c.skipNextTick {
		c.skipNextTick = false
		return
	}
	m.remind(ctx, c)
}

// Acknowledge records the user's answer and resolves the cycle. The intake is
// written first: if that fails nothing else changes and the user may retry.
func (m *Machine) Acknowledge(ctx context.Context, ownerID int64, medicineName string, status domain.IntakeStatus) error {
	if !status.Valid() {
		return apperrors.NewValidationError("unknown intake status").WithContext("status", string(status))
	}

	key := keyOf(medicineName, ownerID)
	unlock := m.locks.Lock(key)
	defer unlock()

	c := m.lookup(key)
	if c == nil || c.state != domain.StateEscalating {
		return apperrors.NewAlreadyResolvedError(medicineName)
	}

	record := domain.IntakeRecord{
		OwnerID:      ownerID,
		MedicineName: medicineName,
		Timestamp:    m.cfg.Clock.Now().UTC(),
		Status:       status,
	}
	if err := m.ledger.AppendIntake(ctx, record); err != nil {
		if apperrors.HasCode(err, apperrors.CodePersistenceUnavailable) {
			return err
		}
		return apperrors.NewDatabaseError(err)
	}

	log := m.logger.With("medicine", medicineName, "owner_id", ownerID)

	m.scheduler.Cancel(ctx, c.nagID)
	err := doWithRetry(ctx, m.cfg.Retry, func(ctx context.Context) error {
		return m.ledger.DeleteEscalationTrigger(ctx, medicineName, ownerID)
	}, m.onRetry(log, "delete escalation trigger"))
	if err != nil {
		log.Error("Failed to drop escalation trigger", "error", err)
	}

	m.transition(c, domain.StateResolved, "")
	handles := c.handles
	c.handles = nil
	m.metrics.RecordAcknowledgement(string(status))

	for _, h := range handles {
		sendCtx, cancel := context.WithTimeout(ctx, m.cfg.SendTimeout)
		if err := m.notifier.ClearReminder(sendCtx, h, medicineName, status); err != nil {
			log.Warn("Failed to clear reminder buttons", "message_id", h.MessageID, "error", err)
		}
		cancel()
	}

	log.Info("Intake recorded", "status", status, "reminders", len(handles))
	return nil
}

// Discard cancels the nag of a schedule being deleted and forgets its cycle.
// The escalation row is dropped as well: a fire that was already past its
// liveness check may have written it after the schedule rows were deleted.
func (m *Machine) Discard(ctx context.Context, medicineName string, ownerID int64) {
	key := keyOf(medicineName, ownerID)
	unlock := m.locks.Lock(key)
	defer unlock()

	c := m.lookup(key)
	if c == nil {
		return
	}
	if c.nagID != "" {
		m.scheduler.Cancel(ctx, c.nagID)
	}

	log := m.logger.With("medicine", medicineName, "owner_id", ownerID)
	err := doWithRetry(ctx, m.cfg.Retry, func(ctx context.Context) error {
		return m.ledger.DeleteEscalationTrigger(ctx, medicineName, ownerID)
	}, m.onRetry(log, "delete escalation trigger"))
	if err != nil {
		log.Error("Failed to drop escalation trigger", "error", err)
	}

	m.mu.Lock()
	delete(m.cycles, key)
	m.mu.Unlock()
	m.metrics.SetActiveEscalations(m.ActiveEscalations())
}

// State reports where the cycle of a medicine is. Unknown keys are Scheduled.
func (m *Machine) State(medicineName string, ownerID int64) domain.EscalationState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.cycles[keyOf(medicineName, ownerID)]; ok {
		return c.state
	}
	return domain.StateScheduled
}

// NagTriggerID returns the id of the running nag, or "".
func (m *Machine) NagTriggerID(medicineName string, ownerID int64) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.cycles[keyOf(medicineName, ownerID)]; ok {
		return c.nagID
	}
	return ""
}

// ActiveEscalations counts cycles waiting for an answer.
func (m *Machine) ActiveEscalations() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, c := range m.cycles {
		if c.state == domain.StateEscalating {
			n++
		}
	}
	return n
}

func (m *Machine) lookup(key scheduler.Key) *cycle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cycles[key]
}

func (m *Machine) transition(c *cycle, state domain.EscalationState, nagID string) {
	m.mu.Lock()
	c.state = state
	c.nagID = nagID
	m.mu.Unlock()
	m.metrics.SetActiveEscalations(m.ActiveEscalations())
}

func (m *Machine) remind(ctx context.Context, c *cycle) {
	sendCtx, cancel := context.WithTimeout(ctx, m.cfg.SendTimeout)
	defer cancel()

	handle, err := m.notifier.SendReminder(sendCtx, c.chatID, c.medicine)
	m.metrics.RecordReminder(err)
	if err != nil {
		m.logger.Error("Failed to send reminder",
			"medicine", c.medicine,
			"owner_id", c.ownerID,
			"chat_id", c.chatID,
			"error", err)
		return
	}
	c.handles = append(c.handles, handle)
}

func (m *Machine) onRetry(log *slog.Logger, op string) func(int, error) {
	return func(attempt int, err error) {
		m.metrics.RecordLedgerRetry()
		log.Warn("Retrying ledger write", "operation", op, "attempt", attempt, "error", err)
	}
}
