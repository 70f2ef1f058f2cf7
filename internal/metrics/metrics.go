// Package metrics exposes reminder engine counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const Namespace = "pill_reminder"

// Metrics is safe to use through a nil pointer; every method is then a no-op.
type Metrics struct {
	registry          *prometheus.Registry
	remindersSent     *prometheus.CounterVec
	acknowledgements  *prometheus.CounterVec
	activeEscalations prometheus.Gauge
	activeTriggers    *prometheus.GaugeVec
	recoveredTriggers prometheus.Counter
	ledgerRetries     prometheus.Counter
}

func InitPrometheusMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		remindersSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reminders_sent_total",
				Help:      "Reminder deliveries by result",
			},
			[]string{"result"},
		),
		acknowledgements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "acknowledgements_total",
				Help:      "Recorded intakes by status",
			},
			[]string{"status"},
		),
		activeEscalations: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_escalations",
				Help:      "Reminder cycles waiting for an answer",
			},
		),
		activeTriggers: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_triggers",
				Help:      "Registered triggers by kind",
			},
			[]string{"kind"},
		),
		recoveredTriggers: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "recovered_triggers_total",
				Help:      "Daily triggers re-registered at startup",
			},
		),
		ledgerRetries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ledger_retries_total",
				Help:      "Retried ledger writes on the fire path",
			},
		),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.remindersSent,
		m.acknowledgements,
		m.activeEscalations,
		m.activeTriggers,
		m.recoveredTriggers,
		m.ledgerRetries,
	)

	return m
}

func (m *Metrics) RecordReminder(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.remindersSent.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordAcknowledgement(status string) {
	if m == nil {
		return
	}
	m.acknowledgements.WithLabelValues(status).Inc()
}

func (m *Metrics) SetActiveEscalations(n int) {
	if m == nil {
		return
	}
	m.activeEscalations.Set(float64(n))
}

func (m *Metrics) AddActiveTriggers(kind string, delta int) {
	if m == nil {
		return
	}
	m.activeTriggers.WithLabelValues(kind).Add(float64(delta))
}

func (m *Metrics) RecordRecovered(n int) {
	if m == nil {
		return
	}
	m.recoveredTriggers.Add(float64(n))
}

func (m *Metrics) RecordLedgerRetry() {
	if m == nil {
		return
	}
	m.ledgerRetries.Inc()
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
