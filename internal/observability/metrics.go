// Package observability provides Prometheus metrics for monitoring runs.
package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/uomi-testnet/uomi-bot/internal/core/domain"
)

// Metrics holds all Prometheus metrics for the bot. It implements domain.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	// Action metrics
	ActionsTotal    *prometheus.CounterVec
	SkippedReasons  *prometheus.CounterVec
	FailedReasons   *prometheus.CounterVec
	ConfirmDuration *prometheus.HistogramVec

	// Run metrics
	RunsTotal    *prometheus.CounterVec
	LastRunStart prometheus.Gauge
}

// NewMetrics creates a Metrics instance registered on its own registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "uomi_bot"
	}

	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		ActionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "actions",
			Name:      "total",
			Help:      "Total number of actions by kind and outcome",
		}, []string{"kind", "outcome"}),
		SkippedReasons: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "actions",
			Name:      "skipped_total",
			Help:      "Total number of skipped actions by reason",
		}, []string{"kind", "reason"}),
		FailedReasons: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "actions",
			Name:      "failed_total",
			Help:      "Total number of failed actions by reason",
		}, []string{"kind", "reason"}),
		ConfirmDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "confirmation_seconds",
			Help:      "Time from submission to receipt in seconds",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
		}, []string{"kind"}),

		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runs",
			Name:      "total",
			Help:      "Total number of runs by mode",
		}, []string{"mode"}),
		LastRunStart: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "runs",
			Name:      "last_start_timestamp",
			Help:      "Unix timestamp of the last run start",
		}),
	}
}

// ObserveAction implements domain.Recorder.
func (m *Metrics) ObserveAction(kind domain.OperationKind, outcome domain.Outcome, reason string) {
	m.ActionsTotal.WithLabelValues(kind.String(), outcome.String()).Inc()
	switch outcome {
	case domain.OutcomeSkipped:
		m.SkippedReasons.WithLabelValues(kind.String(), reason).Inc()
	case domain.OutcomeFailed:
		m.FailedReasons.WithLabelValues(kind.String(), reason).Inc()
	}
}

// ObserveConfirmation implements domain.Recorder.
func (m *Metrics) ObserveConfirmation(kind domain.OperationKind, d time.Duration) {
	m.ConfirmDuration.WithLabelValues(kind.String()).Observe(d.Seconds())
}

// ObserveRun implements domain.Recorder.
func (m *Metrics) ObserveRun(mode domain.RunMode) {
	m.RunsTotal.WithLabelValues(mode.String()).Inc()
	m.LastRunStart.SetToCurrentTime()
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
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

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
