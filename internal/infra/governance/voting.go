package governance

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/heritage-dao/heritage/internal/domain"
	"github.com/heritage-dao/heritage/internal/infra/metrics"
)

// VoteRequest is a ballot submitted by a caller.
type VoteRequest struct {
	ProposalID         uint64          `json:"proposal_id"`
	Type               domain.VoteType `json:"vote_type"`
	Rationale          string          `json:"rationale,omitempty"`
	ExpertiseRelevance *uint32         `json:"expertise_relevance,omitempty"` // nil means 50
}

func validateRationale(rationale string) error {
	if rationale == "" {
		return nil
	}
	n := utf8.RuneCountInString(rationale)
	if n < MinRationaleLength {
		return fmt.Errorf("%w: rationale too short (minimum %d characters)", domain.ErrValidation, MinRationaleLength)
	}
	if n > MaxRationaleLength {
		return fmt.Errorf("%w: rationale too long (maximum %d characters)", domain.ErrValidation, MaxRationaleLength)
	}
	return nil
}

func validVoteType(vt domain.VoteType) bool {
	return vt >= domain.VoteFor && vt <= domain.VoteRequiresMoreEvidence
}

// ─── Casting ────────────────────────────────────────────────────────────────

// VoteOnProposal records the caller's ballot, updates the tally and runs the
// finalization rules. It returns a human-readable tally summary.
func (e *Engine) VoteOnProposal(ctx context.Context, caller domain.Principal, req VoteRequest) (string, error) {
	const op = "vote"

	caps := e.perms.Resolve(ctx, caller)
	if e.cfg.RequireVoterCapability && !caps.CanVote {
		return "", e.reject(op, fmt.Errorf("%w: %s may not vote", domain.ErrPermissionDenied, caller))
	}
	if !validVoteType(req.Type) {
		return "", e.reject(op, fmt.Errorf("%w: unknown vote type %d", domain.ErrValidation, int(req.Type)))
	}
	if err := validateRationale(req.Rationale); err != nil {
		return "", e.reject(op, err)
	}

	unlock := e.locks.lock(req.ProposalID)
	defer unlock()

	p, err := e.store.GetProposal(ctx, req.ProposalID)
	if err != nil {
		return "", e.reject(op, err)
	}

	now := e.now()
	deadline := e.ballotDeadline(p)
	if now.After(deadline) {
		return "", e.reject(op, fmt.Errorf("%w: proposal %d closed at %s", domain.ErrDeadlinePassed, p.ID, deadline))
	}
	if p.Status != domain.StatusActive {
		return "", e.reject(op, fmt.Errorf("%w: proposal %d is %s", domain.ErrProposalClosed, p.ID, p.Status))
	}
	if p.HasVoted(caller) {
		return "", e.reject(op, fmt.Errorf("%w: %s on proposal %d", domain.ErrAlreadyVoted, caller, p.ID))
	}
	if !caps.HasRequiredExpertise(p.RequiredExpertise) {
		return "", e.reject(op, fmt.Errorf("%w: proposal %d requires %v", domain.ErrInsufficientExpertise, p.ID, p.RequiredExpertise))
	}

	relevance := uint32(DefaultExpertiseRelevance)
	if req.ExpertiseRelevance != nil {
		relevance = *req.ExpertiseRelevance
	}
	if relevance > 100 {
		return "", e.reject(op, fmt.Errorf("%w: expertise relevance must be 0-100", domain.ErrValidation))
	}

	weight := caps.VotingWeight

	extended := e.tally(p, caller, req.Type, weight)
	if caps.ExpertOrInstitution {
		updateExpertConsensus(p, req.Type, weight, relevance)
	}
	decided := applyEmergencyShortCircuit(p)
	if !decided {
		decided = checkAndFinalize(p, now)
	}

	voteID, err := e.store.NextID(ctx, domain.CounterVote)
	if err != nil {
		return "", fmt.Errorf("allocate vote id: %w", err)
	}
	v := &domain.Vote{
		ID:                 voteID,
		ProposalID:         p.ID,
		Voter:              caller,
		Type:               req.Type,
		Weight:             weight,
		Timestamp:          now,
		Rationale:          req.Rationale,
		ExpertiseRelevance: relevance,
	}
	if err := e.store.CommitVote(ctx, p, v); err != nil {
		return "", e.reject(op, fmt.Errorf("commit vote on proposal %d: %w", p.ID, err))
	}

	var delta uint32
	switch {
	case relevance >= 80:
		delta = 2
	case relevance >= 50:
		delta = 1
	}
	e.users.RecordVoteActivity(ctx, caller, delta, now)

	metrics.VotesCast.WithLabelValues(req.Type.String()).Inc()
	metrics.VoteWeight.Observe(float64(weight))
	if extended {
		metrics.DeadlineExtensions.Inc()
		e.logger.Info("voting deadline extended",
			"proposal_id", p.ID,
			"voting_deadline", p.VotingDeadline,
			"extensions", p.DeadlineExtensions,
		)
	}
	e.emit(ctx, domain.AuditVoteCast, caller, p.ID,
		fmt.Sprintf("Voted %s on proposal %d with weight %d", req.Type, p.ID, weight), domain.SeverityInfo)
	if decided {
		e.recordFinalized(ctx, caller, p)
	}

	r := p.Results
	return fmt.Sprintf("Vote recorded: %d votes total (%d for, %d against)",
		r.TotalVotes, r.VotesFor, r.VotesAgainst), nil
}

// ballotDeadline is the last instant a new ballot is accepted. Emergency
// proposals get the configured grace period past their voting deadline.
func (e *Engine) ballotDeadline(p *domain.Proposal) time.Time {
	if p.IsEmergency() {
		return p.VotingDeadline.Add(e.cfg.EmergencyGrace)
	}
	return p.VotingDeadline
}

// tally adds one ballot to p's results and reports whether the voting
// deadline was extended for additional evidence.
func (e *Engine) tally(p *domain.Proposal, voter domain.Principal, vt domain.VoteType, weight uint32) bool {
	r := &p.Results
	r.AddVoter(voter)
	r.TotalVotes++

	evidenceBefore := r.Abstentions > r.VotesFor+r.VotesAgainst
	*bucket(r, vt) += uint64(weight)
	evidenceAfter := r.Abstentions > r.VotesFor+r.VotesAgainst
	r.WeightedScore = weightedScore(r)

	if vt != domain.VoteRequiresMoreEvidence || evidenceBefore || !evidenceAfter {
		return false
	}
	if p.DeadlineExtensions >= e.cfg.MaxDeadlineExtensions {
		return false
	}
	p.VotingDeadline = p.VotingDeadline.Add(e.cfg.EvidenceExtension)
	if !p.ExecutionDeadline.IsZero() {
		p.ExecutionDeadline = p.ExecutionDeadline.Add(e.cfg.EvidenceExtension)
	}
	p.DeadlineExtensions++
	return true
}

// bucket returns the tally field a vote type contributes to.
func bucket(r *domain.VotingResults, vt domain.VoteType) *uint64 {
	switch vt {
	case domain.VoteFor:
		return &r.VotesFor
	case domain.VoteAgainst:
		return &r.VotesAgainst
	default:
		return &r.Abstentions
	}
}

// weightedScore is the share of weight voting For, in [0, 1].
func weightedScore(r *domain.VotingResults) float64 {
	total := r.VotesFor + r.VotesAgainst + r.Abstentions
	if total == 0 {
		return 0
	}
	return float64(r.VotesFor) / float64(total)
}

// ─── Changing ───────────────────────────────────────────────────────────────

// ChangeVote replaces the type and rationale of the caller's existing ballot.
// The snapshot weight moves between buckets; finalization is not re-evaluated.
func (e *Engine) ChangeVote(ctx context.Context, caller domain.Principal, proposalID uint64, newType domain.VoteType, rationale string) (string, error) {
	const op = "change_vote"

	if !validVoteType(newType) {
		return "", e.reject(op, fmt.Errorf("%w: unknown vote type %d", domain.ErrValidation, int(newType)))
	}

	unlock := e.locks.lock(proposalID)
	defer unlock()

	p, err := e.store.GetProposal(ctx, proposalID)
	if err != nil {
		return "", e.reject(op, err)
	}
	now := e.now()
	if now.After(p.VotingDeadline) {
		return "", e.reject(op, fmt.Errorf("%w: proposal %d closed at %s", domain.ErrDeadlinePassed, p.ID, p.VotingDeadline))
	}
	if p.Status != domain.StatusActive {
		return "", e.reject(op, fmt.Errorf("%w: proposal %d is %s", domain.ErrProposalClosed, p.ID, p.Status))
	}
	if !p.HasVoted(caller) {
		return "", e.reject(op, fmt.Errorf("%w: %s on proposal %d", domain.ErrNotYetVoted, caller, p.ID))
	}
	if err := validateRationale(rationale); err != nil {
		return "", e.reject(op, err)
	}

	v, err := e.store.GetVoteByVoter(ctx, p.ID, caller)
	if err != nil {
		return "", e.reject(op, err)
	}
	oldType := v.Type

	r := &p.Results
	old := bucket(r, oldType)
	w := uint64(v.Weight)
	if *old >= w {
		*old -= w
	} else {
		*old = 0
	}
	*bucket(r, newType) += w
	r.WeightedScore = weightedScore(r)

	v.Type = newType
	v.Rationale = rationale
	v.Timestamp = now
	if err := e.store.CommitVoteChange(ctx, p, v); err != nil {
		return "", fmt.Errorf("commit vote change on proposal %d: %w", p.ID, err)
	}

	metrics.VotesChanged.Inc()
	e.emit(ctx, domain.AuditVoteChanged, caller, p.ID,
		fmt.Sprintf("Vote changed from %s to %s on proposal %d", oldType, newType, p.ID), domain.SeverityInfo)

	return fmt.Sprintf("Vote changed from %s to %s", oldType, newType), nil
}

// ─── Inspection ─────────────────────────────────────────────────────────────

// VoteDetails lists the ballots on a proposal. Only voters and moderators may
// inspect individual votes.
func (e *Engine) VoteDetails(ctx context.Context, caller domain.Principal, proposalID uint64) ([]*domain.Vote, error) {
	const op = "vote_details"

	caps := e.perms.Resolve(ctx, caller)
	if !caps.CanVote && !caps.CanModerate {
		return nil, e.reject(op, fmt.Errorf("%w: %s may not view vote details", domain.ErrPermissionDenied, caller))
	}
	votes, err := e.store.ListVotes(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if len(votes) == 0 {
		return nil, e.reject(op, fmt.Errorf("%w: proposal %d", domain.ErrNoVotes, proposalID))
	}
	return votes, nil
}
