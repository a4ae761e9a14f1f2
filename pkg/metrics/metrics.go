// Package metrics provides Prometheus metrics for agent dispatch and tools.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

var (
	DispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autoshop_router_dispatch_total",
			Help: "Total number of router dispatches",
		},
		[]string{"capability", "rule", "outcome"},
	)

	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "autoshop_router_dispatch_duration_seconds",
			Help:    "Time spent in the dispatched capability",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"capability"},
	)

	ToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autoshop_tool_calls_total",
			Help: "Total number of tool executions",
		},
		[]string{"capability", "tool", "outcome"},
	)

	ApprovalCommitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autoshop_approval_commits_total",
			Help: "Job card approval decisions committed from customer messages",
		},
		[]string{"decision"},
	)
)

func RecordDispatch(capability, rule string, err error, duration time.Duration) {
	DispatchTotal.WithLabelValues(capability, rule, outcome(err)).Inc()
	DispatchDuration.WithLabelValues(capability).Observe(duration.Seconds())
}

func RecordToolCall(capability, tool string, err error) {
	ToolCallsTotal.WithLabelValues(capability, tool, outcome(err)).Inc()
}

func RecordApproval(decision string) {
	ApprovalCommitsTotal.WithLabelValues(decision).Inc()
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeOK
}
