package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ─── Queue ───────────────────────────────────────────────────────────────────

	TasksSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shellqueue",
		Subsystem: "queue",
		Name:      "tasks_submitted_total",
		Help:      "Total tasks submitted, labelled by priority class.",
	}, []string{"priority"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "shellqueue",
		Subsystem: "queue",
		Name:      "depth",
		Help:      "Tasks currently waiting in the pending queue.",
	})

	TasksAborted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shellqueue",
		Subsystem: "queue",
		Name:      "tasks_aborted_total",
		Help:      "Total aborted tasks, labelled by stage (pending or running).",
	}, []string{"stage"})

	// ─── Worker ──────────────────────────────────────────────────────────────────

	WorkerTasksProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shellqueue",
		Subsystem: "worker",
		Name:      "tasks_processed_total",
		Help:      "Total tasks processed, labelled by terminal status.",
	}, []string{"status"})

	WorkerTaskDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "shellqueue",
		Subsystem: "worker",
		Name:      "task_duration_seconds",
		Help:      "Script execution time in seconds.",
		Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 1800, 3600},
	})

	// ─── Notifications ───────────────────────────────────────────────────────────

	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shellqueue",
		Subsystem: "notify",
		Name:      "emails_total",
		Help:      "Total notification emails attempted, labelled by kind and outcome.",
	}, []string{"kind", "outcome"})
)
