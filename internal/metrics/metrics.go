package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Reconciliation
	ReconcileRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledgerd",
		Subsystem: "reconcile",
		Name:      "runs_total",
		Help:      "Total reconciliation runs by result",
	}, []string{"result"})

	PagesFetched = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ledgerd",
		Subsystem: "reconcile",
		Name:      "pages_fetched_total",
		Help:      "Total event pages fetched from the feed",
	})

	EventsUpserted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledgerd",
		Subsystem: "reconcile",
		Name:      "events_upserted_total",
		Help:      "Total events written to the ledger by category",
	}, []string{"category"})

	DecodeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ledgerd",
		Subsystem: "reconcile",
		Name:      "decode_failures_total",
		Help:      "Total events skipped because they could not be decoded",
	})

	LedgerSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ledgerd",
		Subsystem: "reconcile",
		Name:      "ledger_size",
		Help:      "Ledger entry count after the last run",
	})

	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ledgerd",
		Subsystem: "reconcile",
		Name:      "run_duration_seconds",
		Help:      "Reconciliation run duration",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	})

	// Notifications
	NotificationsSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ledgerd",
		Subsystem: "notify",
		Name:      "sent_total",
		Help:      "Total operator notifications sent",
	})

	NotificationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ledgerd",
		Subsystem: "notify",
		Name:      "failures_total",
		Help:      "Total operator notifications that failed to send",
	})

	// Scheduler
	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledgerd",
		Subsystem: "scheduler",
		Name:      "job_runs_total",
		Help:      "Total job fires by job id and outcome",
	}, []string{"job", "outcome"})
)
