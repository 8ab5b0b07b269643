// Package metrics declares the Prometheus collectors for the conversation
// engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "recall_agent"

var (
	// Timeline ingestion outcomes: inserted, appended, replaced,
	// result_resolved, result_dropped, memory_dedup.
	TimelineEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "timeline",
			Name:      "events_total",
			Help:      "Messages ingested into a timeline, by outcome",
		},
		[]string{"outcome"},
	)

	// Save queue writes by status (ok, error, empty).
	QueueWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "save_queue",
			Name:      "writes_total",
			Help:      "Persist jobs executed by the save queue",
		},
		[]string{"status"},
	)

	QueueMessagesPersisted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "save_queue",
			Name:      "messages_persisted_total",
			Help:      "Messages handed to the durable store",
		},
	)

	// Schedule decisions (debounced, stale).
	QueueSchedules = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "save_queue",
			Name:      "schedules_total",
			Help:      "Schedule calls by decision",
		},
		[]string{"decision"},
	)

	QueueWriteDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "save_queue",
			Name:      "write_duration_seconds",
			Help:      "Durable write duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	ActiveChains = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "save_queue",
			Name:      "active_chains",
			Help:      "Conversations with a write chain in flight",
		},
	)

	// Agent requests by mode (generate, stream) and status.
	AgentRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "requests_total",
			Help:      "Agent requests by mode and status",
		},
		[]string{"mode", "status"},
	)

	AgentRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "request_duration_seconds",
			Help:      "Agent request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"mode"},
	)

	ModelStepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runner",
			Name:      "model_steps_total",
			Help:      "Model steps by finish reason",
		},
		[]string{"finish_reason"},
	)

	ToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runner",
			Name:      "tool_calls_total",
			Help:      "Tool invocations by tool and status",
		},
		[]string{"tool_name", "status"},
	)

	TokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runner",
			Name:      "tokens_total",
			Help:      "Model tokens by direction (input, output)",
		},
		[]string{"direction"},
	)
)
