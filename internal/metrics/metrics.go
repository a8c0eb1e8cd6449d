// Package metrics holds the Prometheus collectors for drafting, escrow,
// offers, reviews and tasks.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Draft outcomes.
const (
	OutcomeOK            = "ok"
	OutcomeEmptyInput    = "empty_input"
	OutcomeConfiguration = "configuration_error"
	OutcomeUpstream      = "upstream_error"
	OutcomeSchema        = "schema_error"
	OutcomeCanceled      = "canceled"
)

// DraftsTotal counts drafting calls by outcome.
var DraftsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "marketplace",
	Name:      "drafts_total",
	Help:      "Task drafting calls by outcome.",
}, []string{"outcome"})

// DraftLatency is the backend round trip of a drafting call.
var DraftLatency = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "marketplace",
	Name:      "draft_latency_seconds",
	Help:      "Task drafting latency in seconds.",
	Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
})

var EscrowTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "marketplace",
	Name:      "escrow_transitions_total",
	Help:      "Escrow session transitions by target state.",
}, []string{"to"})

var ReviewsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "marketplace",
	Name:      "reviews_submitted_total",
	Help:      "Reviews accepted.",
})

// Offers counts offer submissions and decisions.
var Offers = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "marketplace",
	Name:      "offers_total",
	Help:      "Offers by event: submitted, accepted, rejected.",
}, []string{"event"})

var TasksCreated = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "marketplace",
	Name:      "tasks_created_total",
	Help:      "Tasks published.",
})
