// Package recovery rebuilds the in-memory triggers from the ledger at startup.
//
// Trigger ids do not survive a restart, so every recorded daily trigger is
// dropped and registered anew from the stored schedules. Escalation rows left by
// the previous process are stale: their cycles start over at the next daily fire.
package recovery

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vladimiradmaev/pill-reminder/internal/domain"
	"github.com/vladimiradmaev/pill-reminder/internal/metrics"
)

type Ledger interface {
	CountEscalationTriggers(ctx context.Context) (int64, error)
	ClearEscalationTriggers(ctx context.Context) (int64, error)
	ClearDailyTriggers(ctx context.Context) (int64, error)
	ListAllSchedules(ctx context.Context) ([]domain.ScheduleEntry, error)
}

// Scheduler registers the daily triggers of one stored schedule.
type Scheduler interface {
	ScheduleEntry(ctx context.Context, entry domain.ScheduleEntry) (int, error)
}

type Report struct {
	Schedules        int
	Rescheduled      int
	Failed           int
	StaleEscalations int64
}

type Orchestrator struct {
	ledger    Ledger
	scheduler Scheduler
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

func NewOrchestrator(ledger Ledger, s Scheduler, logger *slog.Logger, m *metrics.Metrics) *Orchestrator {
	return &Orchestrator{
		ledger:    ledger,
		scheduler: s,
		logger:    logger,
		metrics:   m,
	}
}

// Run re-registers every stored schedule. Only failures to read or clean the
// ledger are returned; a schedule that cannot be registered is logged and skipped.
func (o *Orchestrator) Run(ctx context.Context) (Report, error) {
	var report Report

	stale, err := o.ledger.CountEscalationTriggers(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to count escalation triggers: %w", err)
	}
	if stale > 0 {
		if _, err := o.ledger.ClearEscalationTriggers(ctx); err != nil {
			return report, fmt.Errorf("failed to clear escalation triggers: %w", err)
		}
		o.logger.Warn("Dropped stale escalation triggers", "count", stale)
	}
	report.StaleEscalations = stale

	dropped, err := o.ledger.ClearDailyTriggers(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to clear daily triggers: %w", err)
	}

	schedules, err := o.ledger.ListAllSchedules(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to load schedules: %w", err)
	}
	report.Schedules = len(schedules)

	for _, entry := range schedules {
		if entry.Timezone == "" {
			report.Failed++
			o.logger.Error("Schedule owner has no timezone",
				"medicine", entry.MedicineName,
				"owner_id", entry.OwnerID)
			continue
		}

		n, err := o.scheduler.ScheduleEntry(ctx, entry)
		if err != nil {
			report.Failed++
			o.logger.Error("Failed to restore schedule",
				"medicine", entry.MedicineName,
				"owner_id", entry.OwnerID,
				"error", err)
			continue
		}
		report.Rescheduled += n
	}

	o.metrics.RecordRecovered(report.Rescheduled)
	o.logger.Info("Recovery completed",
		"schedules", report.Schedules,
		"triggers", report.Rescheduled,
		"failed", report.Failed,
		"dropped_daily_rows", dropped,
		"stale_escalations", report.StaleEscalations)
	return report, nil
}
