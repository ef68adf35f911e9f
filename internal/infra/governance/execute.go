package governance

import (
	"context"
	"errors"
	"fmt"

	"github.com/heritage-dao/heritage/internal/domain"
	"github.com/heritage-dao/heritage/internal/infra/metrics"
)

// ExecutionResult describes a successful execution.
type ExecutionResult struct {
	ProposalID uint64                `json:"proposal_id"`
	Status     domain.ProposalStatus `json:"status"`
	Message    string                `json:"message"`
}

// ExecuteProposal applies a passed proposal. Only the proposer or a moderator
// may execute, and only before the execution deadline.
func (e *Engine) ExecuteProposal(ctx context.Context, caller domain.Principal, id uint64) (ExecutionResult, error) {
	const op = "execute"

	unlock := e.locks.lock(id)
	defer unlock()

	p, err := e.store.GetProposal(ctx, id)
	if err != nil {
		return ExecutionResult{}, e.reject(op, err)
	}
	if p.Status != domain.StatusPassed {
		return ExecutionResult{}, e.reject(op, fmt.Errorf("%w: proposal %d is %s", domain.ErrNotPassed, id, p.Status))
	}

	now := e.now()
	if !p.ExecutionDeadline.IsZero() && now.After(p.ExecutionDeadline) {
		if err := e.expireUnexecuted(ctx, caller, p); err != nil {
			return ExecutionResult{}, err
		}
		return ExecutionResult{}, e.reject(op, fmt.Errorf("%w: proposal %d deadline was %s",
			domain.ErrDeadlineExceeded, id, p.ExecutionDeadline))
	}

	if caller != p.Proposer && !e.perms.CanModerate(ctx, caller) {
		return ExecutionResult{}, e.reject(op, fmt.Errorf("%w: only the proposer or a moderator can execute proposal %d",
			domain.ErrPermissionDenied, id))
	}

	msg, dispatchErr := e.dispatch(ctx, p)
	if dispatchErr != nil {
		p.Status = domain.StatusFailedExecution
		if err := e.store.UpdateProposal(ctx, p); err != nil {
			return ExecutionResult{}, fmt.Errorf("store failed execution of proposal %d: %w", id, err)
		}
		metrics.ProposalsExecuted.WithLabelValues(p.Type.String(), "failure").Inc()
		e.emit(ctx, domain.AuditProposalExecution, caller, id,
			fmt.Sprintf("Proposal %d execution failed: %v", id, dispatchErr), domain.SeverityWarning)
		e.logger.Warn("proposal execution failed", "proposal_id", id, "type", p.Type, "err", dispatchErr)
		return ExecutionResult{}, e.reject(op, fmt.Errorf("%w: %w", domain.ErrExecutionFailed, dispatchErr))
	}

	p.Status = domain.StatusExecuted
	if err := e.store.UpdateProposal(ctx, p); err != nil {
		return ExecutionResult{}, fmt.Errorf("store execution of proposal %d: %w", id, err)
	}
	metrics.ProposalsExecuted.WithLabelValues(p.Type.String(), "success").Inc()
	e.emit(ctx, domain.AuditProposalExecution, caller, id,
		fmt.Sprintf("Proposal %d executed: %s", id, msg), domain.SeverityInfo)
	e.logger.Info("proposal executed", "proposal_id", id, "type", p.Type, "executor", caller)

	return ExecutionResult{
		ProposalID: id,
		Status:     p.Status,
		Message:    "Proposal executed successfully: " + msg,
	}, nil
}

// expireUnexecuted moves a passed proposal whose execution window closed to
// Expired and persists the transition.
func (e *Engine) expireUnexecuted(ctx context.Context, actor domain.Principal, p *domain.Proposal) error {
	p.Status = domain.StatusExpired
	if err := e.store.UpdateProposal(ctx, p); err != nil {
		return fmt.Errorf("expire proposal %d: %w", p.ID, err)
	}
	metrics.ProposalsFinalized.WithLabelValues(p.Status.String()).Inc()
	e.emit(ctx, domain.AuditProposalExpired, actor, p.ID,
		fmt.Sprintf("Proposal %d expired without execution", p.ID), domain.SeverityWarning)
	e.logger.Info("proposal expired", "proposal_id", p.ID, "execution_deadline", p.ExecutionDeadline)
	return nil
}

// recordFinalized reports a proposal that just left Active.
func (e *Engine) recordFinalized(ctx context.Context, actor domain.Principal, p *domain.Proposal) {
	metrics.ProposalsFinalized.WithLabelValues(p.Status.String()).Inc()
	r := p.Results
	e.emit(ctx, domain.AuditProposalFinalized, actor, p.ID,
		fmt.Sprintf("Proposal %d finalized as %s (%d for, %d against)", p.ID, p.Status, r.VotesFor, r.VotesAgainst),
		domain.SeverityInfo)
	e.logger.Info("proposal finalized",
		"proposal_id", p.ID,
		"status", p.Status,
		"votes_for", r.VotesFor,
		"votes_against", r.VotesAgainst,
	)
}

// ─── Dispatch ───────────────────────────────────────────────────────────────

var errNoArtifact = errors.New("proposal has no artifact reference")

// dispatch performs the side effects of an approved proposal.
func (e *Engine) dispatch(ctx context.Context, p *domain.Proposal) (string, error) {
	switch p.Type {
	case domain.VerifyArtifact:
		id, err := e.targetArtifact(ctx, p)
		if err != nil {
			return "", err
		}
		if err := e.artifacts.SetStatus(ctx, id, domain.ArtifactVerified); err != nil {
			return "", err
		}
		if err := e.artifacts.SetVerificationLevel(ctx, id, domain.VerificationDaoVerified); err != nil {
			return "", err
		}
		return fmt.Sprintf("Artifact %d verified", id), nil

	case domain.DisputeArtifact:
		id, err := e.targetArtifact(ctx, p)
		if err != nil {
			return "", err
		}
		if err := e.artifacts.SetStatus(ctx, id, domain.ArtifactDisputed); err != nil {
			return "", err
		}
		return fmt.Sprintf("Artifact %d marked as disputed", id), nil

	// No effect is applied for these yet; the proposal is still marked Executed.
	case domain.UpdateArtifactStatus,
		domain.GrantUserRole,
		domain.RevokeUserRole,
		domain.UpdateArtifactMetadata:
		return notImplemented(p.Type), nil

	case domain.RequestAdditionalEvidence,
		domain.ProposeConservationAction,
		domain.RequestExpertReview,
		domain.UpdateVerificationCriteria,
		domain.EmergencyIntervention:
		return "Proposal type requires manual execution", nil

	default:
		return "", fmt.Errorf("unknown proposal type %d", int(p.Type))
	}
}

func notImplemented(t domain.ProposalType) string {
	return fmt.Sprintf("%s execution not implemented; recorded as executed", t)
}

func (e *Engine) targetArtifact(ctx context.Context, p *domain.Proposal) (uint64, error) {
	if p.ArtifactID == nil {
		return 0, errNoArtifact
	}
	id := *p.ArtifactID
	if !e.artifacts.Exists(ctx, id) {
		return 0, fmt.Errorf("%w: id %d", domain.ErrArtifactNotFound, id)
	}
	return id, nil
}
