// Package metrics exposes the pipeline's prometheus instrumentation,
// collected at the resource surface (C12) under resource://metrics/pipeline:
// per-stage timing, gate verdict outcomes by enforcement outcome, and session
// state transitions.
//
// Grounded on jordigilh-kubernaut's pkg/infrastructure/metrics naming
// convention (package-level Xxx{Total,Duration} collectors plus RecordXxx
// helper functions that own all label-value construction, so callers never
// touch a prometheus type directly), adapted from alert/action counters to
// pipeline stage/gate/session counters.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StageDuration records how long each pipeline stage took to run.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gert_prompt",
		Subsystem: "pipeline",
		Name:      "stage_duration_seconds",
		Help:      "Duration of a single pipeline stage.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"stage"})

	// RequestsTotal counts completed Handle calls by outcome.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gert_prompt",
		Subsystem: "pipeline",
		Name:      "requests_total",
		Help:      "Total Execute requests handled, by outcome.",
	}, []string{"outcome"})

	// GateVerdictsTotal counts applied gate verdicts by enforcement outcome.
	GateVerdictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gert_prompt",
		Subsystem: "gate",
		Name:      "verdicts_total",
		Help:      "Gate verdicts applied, by outcome (advance, retry, exhausted).",
	}, []string{"outcome"})

	// SessionTransitionsTotal counts chain session state transitions.
	SessionTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gert_prompt",
		Subsystem: "session",
		Name:      "transitions_total",
		Help:      "Chain session state transitions, by resulting state.",
	}, []string{"state"})
)

// RecordStage observes one pipeline stage's elapsed time.
func RecordStage(stage string, elapsed time.Duration) {
	StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// RecordRequest counts one completed Handle call. outcome is typically
// "ok", "error", or "cancelled".
func RecordRequest(outcome string) {
	RequestsTotal.WithLabelValues(outcome).Inc()
}

// RecordGateVerdict counts one applied gate outcome ("advance", "retry",
// or "exhausted").
func RecordGateVerdict(outcome string) {
	GateVerdictsTotal.WithLabelValues(outcome).Inc()
}

// RecordSessionTransition counts a session moving into the given state.
func RecordSessionTransition(state string) {
	SessionTransitionsTotal.WithLabelValues(state).Inc()
}
