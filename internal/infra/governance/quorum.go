package governance

import (
	"time"

	"github.com/heritage-dao/heritage/internal/domain"
)

// ─── Quorum ─────────────────────────────────────────────────────────────────

// QuorumPercentage is the share of eligible voters a proposal type needs.
func QuorumPercentage(t domain.ProposalType) uint32 {
	switch t {
	case domain.EmergencyIntervention:
		return 75
	case domain.VerifyArtifact, domain.DisputeArtifact:
		return 60
	case domain.GrantUserRole, domain.RevokeUserRole:
		return 70
	case domain.UpdateArtifactStatus,
		domain.UpdateArtifactMetadata,
		domain.RequestAdditionalEvidence,
		domain.ProposeConservationAction,
		domain.RequestExpertReview,
		domain.UpdateVerificationCriteria:
		return 50
	default:
		return 50
	}
}

// QuorumFor computes the required vote count, truncating toward zero.
func QuorumFor(eligible uint32, t domain.ProposalType) uint32 {
	return uint32(uint64(eligible) * uint64(QuorumPercentage(t)) / 100)
}

// ─── Consensus & Finalization ───────────────────────────────────────────────

// updateExpertConsensus folds an expert or institution vote into the
// proposal's consensus record. Abstentions do not count toward confidence.
func updateExpertConsensus(p *domain.Proposal, vt domain.VoteType, weight, relevance uint32) {
	r := &p.Results
	if r.ExpertConsensus == nil {
		r.ExpertConsensus = &domain.ExpertConsensus{}
	}
	ec := r.ExpertConsensus
	switch vt {
	case domain.VoteFor:
		ec.ExpertVotesFor += uint64(weight)
	case domain.VoteAgainst:
		ec.ExpertVotesAgainst += uint64(weight)
	}
	if total := ec.ExpertVotesFor + ec.ExpertVotesAgainst; total > 0 {
		ec.ExpertConfidence = float64(ec.ExpertVotesFor) / float64(total)
	}
	ec.PeerReviewScore = (ec.PeerReviewScore + float64(relevance)) / 2
}

// applyEmergencyShortCircuit decides an emergency proposal once three
// votes are in and one side has no weight at all.
func applyEmergencyShortCircuit(p *domain.Proposal) bool {
	r := p.Results
	if !p.IsEmergency() || r.TotalVotes < 3 {
		return false
	}
	if r.VotesFor != 0 && r.VotesAgainst != 0 {
		return false
	}
	if r.VotesFor > 0 {
		p.Status = domain.StatusPassed
	} else {
		p.Status = domain.StatusRejected
	}
	return true
}

// checkAndFinalize closes an active proposal whose deadline has passed, or
// one that met quorum with strong expert consensus.
func checkAndFinalize(p *domain.Proposal, now time.Time) bool {
	if p.Status != domain.StatusActive {
		return false
	}
	if now.After(p.VotingDeadline) {
		finalizeVoting(p)
		return true
	}
	ec := p.Results.ExpertConsensus
	if p.Results.TotalVotes >= p.QuorumRequired && ec != nil &&
		ec.ExpertConfidence > 0.8 && ec.PeerReviewScore > 80 {
		finalizeVoting(p)
		return true
	}
	return false
}

// finalizeVoting sets the outcome from the for/against weights.
func finalizeVoting(p *domain.Proposal) {
	r := p.Results
	switch {
	case r.VotesFor+r.VotesAgainst == 0:
		p.Status = domain.StatusExpired
	case r.VotesFor > r.VotesAgainst:
		p.Status = domain.StatusPassed
	default:
		p.Status = domain.StatusRejected
	}
}
