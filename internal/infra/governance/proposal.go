package governance

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/heritage-dao/heritage/internal/domain"
	"github.com/heritage-dao/heritage/internal/infra/audit"
	"github.com/heritage-dao/heritage/internal/infra/metrics"
)

// ─── Requests ───────────────────────────────────────────────────────────────

// CreateProposalRequest carries the caller-supplied fields of a new proposal.
type CreateProposalRequest struct {
	Type                domain.ProposalType  `json:"proposal_type"`
	ArtifactID          *uint64              `json:"artifact_id,omitempty"`
	Title               string               `json:"title"`
	Description         string               `json:"description"`
	Evidence            []string             `json:"evidence"`
	VotingDurationHours uint32               `json:"voting_duration_hours"`
	RequiredExpertise   []string             `json:"required_expertise"`
	Urgency             *domain.UrgencyLevel `json:"urgency_level,omitempty"` // nil means Normal
	QuorumRequired      *uint32              `json:"quorum_required,omitempty"`
	ExecutionPayload    string               `json:"execution_payload,omitempty"`
}

// GovernanceStats provides an overview of governance activity.
type GovernanceStats struct {
	TotalProposals    int `json:"total_proposals"`
	ActiveProposals   int `json:"active_proposals"`
	PassedProposals   int `json:"passed_proposals"`
	RejectedProposals int `json:"rejected_proposals"`
	ExpiredProposals  int `json:"expired_proposals"`
	ExecutedProposals int `json:"executed_proposals"`
	FailedExecutions  int `json:"failed_executions"`
	TotalVotesCast    int `json:"total_votes_cast"`
}

// ─── Validation ─────────────────────────────────────────────────────────────

func validateProposal(req CreateProposalRequest) error {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return fmt.Errorf("%w: title cannot be empty", domain.ErrValidation)
	}
	if n := utf8.RuneCountInString(title); n > MaxTitleLength {
		return fmt.Errorf("%w: title too long (%d > %d characters)", domain.ErrValidation, n, MaxTitleLength)
	}

	desc := strings.TrimSpace(req.Description)
	if desc == "" {
		return fmt.Errorf("%w: description cannot be empty", domain.ErrValidation)
	}
	n := utf8.RuneCountInString(desc)
	if n < MinDescriptionLength {
		return fmt.Errorf("%w: description too short (minimum %d characters)", domain.ErrValidation, MinDescriptionLength)
	}
	if n > MaxDescriptionLength {
		return fmt.Errorf("%w: description too long (maximum %d characters)", domain.ErrValidation, MaxDescriptionLength)
	}

	if req.VotingDurationHours < MinVotingHours || req.VotingDurationHours > MaxVotingHours {
		return fmt.Errorf("%w: voting duration must be between %d and %d hours",
			domain.ErrValidation, MinVotingHours, MaxVotingHours)
	}
	if !slices.Contains(domain.AllProposalTypes(), req.Type) {
		return fmt.Errorf("%w: unknown proposal type %d", domain.ErrValidation, int(req.Type))
	}
	if req.Urgency != nil && (*req.Urgency < domain.UrgencyLow || *req.Urgency > domain.UrgencyEmergency) {
		return fmt.Errorf("%w: unknown urgency level", domain.ErrValidation)
	}
	return nil
}

// ─── Proposal Lifecycle ─────────────────────────────────────────────────────

// CreateProposal validates and stores a new Active proposal, returning its id.
func (e *Engine) CreateProposal(ctx context.Context, caller domain.Principal, req CreateProposalRequest) (uint64, error) {
	const op = "create_proposal"

	if e.cfg.RequireProposerCapability && !e.perms.CanCreateProposals(ctx, caller) {
		return 0, e.reject(op, fmt.Errorf("%w: %s may not create proposals", domain.ErrPermissionDenied, caller))
	}
	if err := validateProposal(req); err != nil {
		return 0, e.reject(op, err)
	}
	if req.ArtifactID != nil && !e.artifacts.Exists(ctx, *req.ArtifactID) {
		return 0, e.reject(op, fmt.Errorf("%w: id %d", domain.ErrArtifactNotFound, *req.ArtifactID))
	}

	id, err := e.store.NextID(ctx, domain.CounterProposal)
	if err != nil {
		return 0, fmt.Errorf("allocate proposal id: %w", err)
	}

	now := e.now()
	votingDeadline := now.Add(time.Duration(req.VotingDurationHours) * time.Hour)

	quorum := QuorumFor(e.users.CountEligibleVoters(ctx), req.Type)
	if req.QuorumRequired != nil {
		quorum = *req.QuorumRequired
	}
	urgency := domain.UrgencyNormal
	if req.Urgency != nil {
		urgency = *req.Urgency
	}

	p := &domain.Proposal{
		ID:                id,
		Type:              req.Type,
		ArtifactID:        req.ArtifactID,
		Proposer:          caller,
		Title:             strings.TrimSpace(req.Title),
		Description:       strings.TrimSpace(req.Description),
		Evidence:          slices.Clone(req.Evidence),
		CreatedAt:         now,
		VotingDeadline:    votingDeadline,
		ExecutionDeadline: votingDeadline.Add(e.cfg.ExecutionWindow),
		QuorumRequired:    quorum,
		Status:            domain.StatusActive,
		ExecutionPayload:  req.ExecutionPayload,
		Discussion:        []domain.Comment{},
		RequiredExpertise: slices.Clone(req.RequiredExpertise),
		Urgency:           urgency,
	}
	if p.Evidence == nil {
		p.Evidence = []string{}
	}
	if p.RequiredExpertise == nil {
		p.RequiredExpertise = []string{}
	}

	if err := e.store.CreateProposal(ctx, p); err != nil {
		return 0, fmt.Errorf("store proposal %d: %w", id, err)
	}

	e.users.RecordProposalCreated(ctx, caller, now)
	metrics.ProposalsCreated.WithLabelValues(p.Type.String()).Inc()
	e.emit(ctx, domain.AuditProposalCreation, caller, id,
		fmt.Sprintf("Created proposal: %s (Type: %s)", p.Title, p.Type), domain.SeverityInfo)

	e.logger.Info("proposal created",
		"proposal_id", id,
		"type", p.Type,
		"proposer", caller,
		"quorum", quorum,
		"voting_deadline", votingDeadline,
	)
	return id, nil
}

// AddComment appends a comment to a proposal's discussion thread. Comments
// are accepted in any status.
func (e *Engine) AddComment(ctx context.Context, caller domain.Principal, proposalID uint64, content string, replyTo *uint64) (uint64, error) {
	const op = "add_comment"

	content = strings.TrimSpace(content)
	if content == "" {
		return 0, e.reject(op, fmt.Errorf("%w: comment cannot be empty", domain.ErrValidation))
	}
	if utf8.RuneCountInString(content) > MaxCommentLength {
		return 0, e.reject(op, fmt.Errorf("%w: comment too long (maximum %d characters)", domain.ErrValidation, MaxCommentLength))
	}

	unlock := e.locks.lock(proposalID)
	defer unlock()

	p, err := e.store.GetProposal(ctx, proposalID)
	if err != nil {
		return 0, e.reject(op, err)
	}

	id, err := e.store.NextID(ctx, domain.CounterComment)
	if err != nil {
		return 0, fmt.Errorf("allocate comment id: %w", err)
	}
	if replyTo != nil {
		r := *replyTo
		replyTo = &r
	}
	p.Discussion = append(p.Discussion, domain.Comment{
		ID:        id,
		Author:    caller,
		Content:   content,
		Timestamp: e.now(),
		ReplyTo:   replyTo,
	})
	if err := e.store.UpdateProposal(ctx, p); err != nil {
		return 0, fmt.Errorf("store comment on proposal %d: %w", proposalID, err)
	}

	e.emit(ctx, domain.AuditCommentAdded, caller, proposalID,
		fmt.Sprintf("Comment %d added to proposal %d", id, proposalID), domain.SeverityInfo)
	return id, nil
}

// ─── Queries ────────────────────────────────────────────────────────────────

// GetProposal returns a proposal by id.
func (e *Engine) GetProposal(ctx context.Context, id uint64) (*domain.Proposal, error) {
	return e.store.GetProposal(ctx, id)
}

// ListProposals returns all proposals, newest first. Ties on creation time
// are broken by descending id.
func (e *Engine) ListProposals(ctx context.Context) ([]*domain.Proposal, error) {
	all, err := e.store.ListProposals(ctx)
	if err != nil {
		return nil, err
	}
	sortNewestFirst(all)
	return all, nil
}

// ActiveProposals returns proposals still open for voting, newest first.
func (e *Engine) ActiveProposals(ctx context.Context) ([]*domain.Proposal, error) {
	return e.ProposalsByStatus(ctx, domain.StatusActive)
}

// ProposalsByStatus returns proposals in the given status, newest first.
func (e *Engine) ProposalsByStatus(ctx context.Context, status domain.ProposalStatus) ([]*domain.Proposal, error) {
	all, err := e.ListProposals(ctx)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(all, func(p *domain.Proposal) bool {
		return p.Status != status
	}), nil
}

// Stats returns an overview of governance activity.
func (e *Engine) Stats(ctx context.Context) (GovernanceStats, error) {
	all, err := e.store.ListProposals(ctx)
	if err != nil {
		return GovernanceStats{}, err
	}
	votes, err := e.store.CountVotes(ctx)
	if err != nil {
		return GovernanceStats{}, err
	}

	stats := GovernanceStats{TotalProposals: len(all), TotalVotesCast: votes}
	for _, p := range all {
		switch p.Status {
		case domain.StatusActive, domain.StatusDraft, domain.StatusUnderReview:
			stats.ActiveProposals++
		case domain.StatusPassed:
			stats.PassedProposals++
		case domain.StatusRejected:
			stats.RejectedProposals++
		case domain.StatusExpired:
			stats.ExpiredProposals++
		case domain.StatusExecuted:
			stats.ExecutedProposals++
		case domain.StatusFailedExecution:
			stats.FailedExecutions++
		}
	}
	metrics.ProposalsActive.Set(float64(stats.ActiveProposals))
	return stats, nil
}

func sortNewestFirst(ps []*domain.Proposal) {
	slices.SortStableFunc(ps, func(a, b *domain.Proposal) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
}

// ─── Audit ──────────────────────────────────────────────────────────────────

func (e *Engine) emit(ctx context.Context, typ domain.AuditEventType, actor domain.Principal, target uint64, details string, sev domain.AuditSeverity) {
	e.audit.Record(ctx, audit.NewEvent(typ, actor, target, details, sev, e.now()))
}
