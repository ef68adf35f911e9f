// Package metrics provides Prometheus metrics for the governance engine:
// counters and gauges for proposals, votes, finalization, execution and health.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Proposals ──────────────────────────────────────────────────────────────

// ProposalsCreated tracks submitted proposals by type.
var ProposalsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "heritage",
	Name:      "proposals_created_total",
	Help:      "Total proposals created.",
}, []string{"type"})

// ProposalsFinalized tracks voting outcomes by resulting status.
var ProposalsFinalized = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "heritage",
	Name:      "proposals_finalized_total",
	Help:      "Total proposals leaving Active, by outcome.",
}, []string{"status"})

// ProposalsExecuted tracks execution attempts by type and result.
var ProposalsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "heritage",
	Name:      "proposals_executed_total",
	Help:      "Total execution attempts by proposal type and result.",
}, []string{"type", "result"})

// ProposalsActive tracks proposals currently open for voting.
var ProposalsActive = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "heritage",
	Name:      "proposals_active",
	Help:      "Number of proposals currently open for voting.",
})

// DeadlineExtensions tracks evidence-driven voting extensions.
var DeadlineExtensions = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "heritage",
	Name:      "deadline_extensions_total",
	Help:      "Total voting deadline extensions triggered by evidence requests.",
})

// ─── Votes ──────────────────────────────────────────────────────────────────

// VotesCast tracks ballots by vote type.
var VotesCast = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "heritage",
	Name:      "votes_cast_total",
	Help:      "Total votes cast by vote type.",
}, []string{"vote_type"})

// VotesChanged tracks vote changes.
var VotesChanged = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "heritage",
	Name:      "votes_changed_total",
	Help:      "Total votes changed after casting.",
})

// VoteWeight tracks the distribution of snapshot weights.
var VoteWeight = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "heritage",
	Name:      "vote_weight",
	Help:      "Voting weight captured at cast time.",
	Buckets:   []float64{1, 2, 3, 5, 10, 20, 50},
})

// RejectedOperations tracks governance calls refused by error class.
var RejectedOperations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "heritage",
	Name:      "rejected_operations_total",
	Help:      "Governance operations rejected, by operation and reason.",
}, []string{"operation", "reason"})

// ─── Sweeper ────────────────────────────────────────────────────────────────

// SweepRuns tracks expiry sweeps and how many proposals they changed.
var SweepRuns = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "heritage",
	Name:      "sweep_runs_total",
	Help:      "Total expiry sweeps run.",
})

// SweepTransitions tracks proposals changed by the sweeper.
var SweepTransitions = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "heritage",
	Name:      "sweep_transitions_total",
	Help:      "Total proposals whose status changed during a sweep.",
})

// ─── Health ─────────────────────────────────────────────────────────────────

// HealthCheckStatus tracks health check results (1=healthy, 0=unhealthy).
var HealthCheckStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "heritage",
	Name:      "health_check_status",
	Help:      "Health check result per component (1=healthy, 0=unhealthy).",
}, []string{"check"})

// HealthRecoveries tracks auto-recovery attempts.
var HealthRecoveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "heritage",
	Name:      "health_recoveries_total",
	Help:      "Total auto-recovery attempts per check.",
}, []string{"check"})
