package domain

import (
	"context"
	"time"
)

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; the governance engine depends on them.

// Counter kinds for IDAllocator. Each kind has its own monotonic sequence.
const (
	CounterProposal = "proposal"
	CounterVote     = "vote"
	CounterComment  = "comment"
)

// IDAllocator hands out monotonically increasing ids per kind, starting at 1.
type IDAllocator interface {
	NextID(ctx context.Context, kind string) (uint64, error)
}

// ProposalStore owns proposal records, including their results.
type ProposalStore interface {
	CreateProposal(ctx context.Context, p *Proposal) error
	GetProposal(ctx context.Context, id uint64) (*Proposal, error)
	UpdateProposal(ctx context.Context, p *Proposal) error
	ListProposals(ctx context.Context) ([]*Proposal, error)
}

// VoteLedger owns vote records. At most one vote exists per
// (proposal, voter) pair.
type VoteLedger interface {
	GetVoteByVoter(ctx context.Context, proposalID uint64, voter Principal) (*Vote, error)
	ListVotes(ctx context.Context, proposalID uint64) ([]*Vote, error)
	CountVotes(ctx context.Context) (int, error)
}

// Store is the persistence boundary used by the engine. CommitVote and
// CommitVoteChange write the vote and the updated proposal as one unit.
type Store interface {
	IDAllocator
	ProposalStore
	VoteLedger

	// CommitVote inserts v and replaces p. It fails with ErrAlreadyVoted if
	// the voter already has a vote on the proposal.
	CommitVote(ctx context.Context, p *Proposal, v *Vote) error

	// CommitVoteChange replaces the existing vote for (v.ProposalID, v.Voter)
	// and p.
	CommitVoteChange(ctx context.Context, p *Proposal, v *Vote) error

	Ping(ctx context.Context) error
	Close() error
}

// UserDirectory is the user module as seen by governance.
type UserDirectory interface {
	// Lookup returns the user or false when the principal is unregistered.
	Lookup(ctx context.Context, p Principal) (User, bool)
	// CountEligibleVoters counts users whose permissions allow voting.
	CountEligibleVoters(ctx context.Context) uint32
	RecordProposalCreated(ctx context.Context, p Principal, at time.Time)
	RecordVoteActivity(ctx context.Context, p Principal, reputationDelta uint32, at time.Time)
}

// ArtifactRegistry is the artifact module as seen by governance.
type ArtifactRegistry interface {
	Exists(ctx context.Context, id uint64) bool
	SetStatus(ctx context.Context, id uint64, status ArtifactStatus) error
	SetVerificationLevel(ctx context.Context, id uint64, level VerificationLevel) error
}

// AuditSink receives audit events. Record must not fail the caller.
type AuditSink interface {
	Record(ctx context.Context, ev AuditEvent)
}
