package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func gatheredNames(t *testing.T) map[string]bool {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	return names
}

func TestProposalMetrics(t *testing.T) {
	ProposalsCreated.WithLabelValues("VerifyArtifact").Inc()
	ProposalsFinalized.WithLabelValues("Passed").Inc()
	ProposalsExecuted.WithLabelValues("VerifyArtifact", "success").Inc()
	ProposalsActive.Set(3)
	DeadlineExtensions.Inc()

	names := gatheredNames(t)
	expected := []string{
		"heritage_proposals_created_total",
		"heritage_proposals_finalized_total",
		"heritage_proposals_executed_total",
		"heritage_proposals_active",
		"heritage_deadline_extensions_total",
	}
	for _, name := range expected {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}

func TestVoteMetrics(t *testing.T) {
	VotesCast.WithLabelValues("For").Inc()
	VotesChanged.Inc()
	VoteWeight.Observe(3)
	RejectedOperations.WithLabelValues("vote", "already_voted").Inc()

	names := gatheredNames(t)
	for _, name := range []string{
		"heritage_votes_cast_total",
		"heritage_votes_changed_total",
		"heritage_vote_weight",
		"heritage_rejected_operations_total",
	} {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}

func TestSweepAndHealthMetrics(t *testing.T) {
	SweepRuns.Inc()
	SweepTransitions.Add(2)
	HealthCheckStatus.WithLabelValues("store").Set(1)
	HealthRecoveries.WithLabelValues("store").Inc()

	names := gatheredNames(t)
	for _, name := range []string{
		"heritage_sweep_runs_total",
		"heritage_sweep_transitions_total",
		"heritage_health_check_status",
		"heritage_health_recoveries_total",
	} {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}

func TestAllMetricsGatherable(t *testing.T) {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}

	count := 0
	for _, f := range families {
		if strings.HasPrefix(f.GetName(), "heritage_") {
			count++
		}
	}
	// Vec metrics only appear once a label set is used; the tests above touch all of them.
	if count < 8 {
		t.Errorf("expected at least 8 heritage_ metrics, got %d", count)
	}
}
