// Package domain holds the heritage governance data model, sentinel errors
// and the ports implemented by infrastructure.
//
// All types are pure: zero infrastructure imports.
package domain

import (
	"slices"
	"time"
)

// Principal is an opaque caller identity. It is compared, stored and logged,
// never treated as a capability by itself.
type Principal string

func (p Principal) String() string { return string(p) }

// ═══════════════════════════════════════════════════════════════════════════
// Proposals
// ═══════════════════════════════════════════════════════════════════════════

// Proposal is a governance proposal about an artifact or the community.
type Proposal struct {
	ID                 uint64         `json:"id" cbor:"1,keyasint"`
	Type               ProposalType   `json:"proposal_type" cbor:"2,keyasint"`
	ArtifactID         *uint64        `json:"artifact_id,omitempty" cbor:"3,keyasint,omitempty"`
	Proposer           Principal      `json:"proposer" cbor:"4,keyasint"`
	Title              string         `json:"title" cbor:"5,keyasint"`
	Description        string         `json:"description" cbor:"6,keyasint"`
	Evidence           []string       `json:"evidence" cbor:"7,keyasint"`
	CreatedAt          time.Time      `json:"created_at" cbor:"8,keyasint"`
	VotingDeadline     time.Time      `json:"voting_deadline" cbor:"9,keyasint"`
	ExecutionDeadline  time.Time      `json:"execution_deadline,omitzero" cbor:"10,keyasint,omitempty"`
	QuorumRequired     uint32         `json:"quorum_required" cbor:"11,keyasint"`
	Status             ProposalStatus `json:"status" cbor:"12,keyasint"`
	Results            VotingResults  `json:"voting_results" cbor:"13,keyasint"`
	ExecutionPayload   string         `json:"execution_payload,omitempty" cbor:"14,keyasint,omitempty"`
	Discussion         []Comment      `json:"discussion_thread" cbor:"15,keyasint"`
	RequiredExpertise  []string       `json:"required_expertise" cbor:"16,keyasint"`
	Urgency            UrgencyLevel   `json:"urgency_level" cbor:"17,keyasint"`
	DeadlineExtensions uint32         `json:"deadline_extensions" cbor:"18,keyasint"`
}

// HasVoted reports whether p is in the proposal's voter set.
func (p *Proposal) HasVoted(who Principal) bool {
	_, found := slices.BinarySearch(p.Results.Voters, who)
	return found
}

// IsEmergency reports whether the proposal gets emergency handling.
func (p *Proposal) IsEmergency() bool {
	return p.Urgency == UrgencyEmergency
}

// Clone returns a deep copy so that stores never share mutable state with
// their callers.
func (p *Proposal) Clone() *Proposal {
	if p == nil {
		return nil
	}
	c := *p
	if p.ArtifactID != nil {
		id := *p.ArtifactID
		c.ArtifactID = &id
	}
	c.Evidence = slices.Clone(p.Evidence)
	c.RequiredExpertise = slices.Clone(p.RequiredExpertise)
	c.Discussion = make([]Comment, len(p.Discussion))
	for i, cm := range p.Discussion {
		c.Discussion[i] = cm.clone()
	}
	c.Results = p.Results.clone()
	return &c
}

// VotingResults is the running tally of a proposal.
type VotingResults struct {
	TotalVotes      uint32           `json:"total_votes" cbor:"1,keyasint"`
	VotesFor        uint64           `json:"votes_for" cbor:"2,keyasint"`
	VotesAgainst    uint64           `json:"votes_against" cbor:"3,keyasint"`
	Abstentions     uint64           `json:"abstentions" cbor:"4,keyasint"`
	WeightedScore   float64          `json:"weighted_score" cbor:"5,keyasint"`
	Voters          []Principal      `json:"voters" cbor:"6,keyasint"`
	ExpertConsensus *ExpertConsensus `json:"expert_consensus,omitempty" cbor:"7,keyasint,omitempty"`
}

// AddVoter inserts who into the sorted voter set. It reports false if the
// principal was already present.
func (r *VotingResults) AddVoter(who Principal) bool {
	i, found := slices.BinarySearch(r.Voters, who)
	if found {
		return false
	}
	r.Voters = slices.Insert(r.Voters, i, who)
	return true
}

func (r VotingResults) clone() VotingResults {
	c := r
	c.Voters = slices.Clone(r.Voters)
	if r.ExpertConsensus != nil {
		ec := *r.ExpertConsensus
		c.ExpertConsensus = &ec
	}
	return c
}

// ExpertConsensus aggregates votes cast by experts and institutions.
type ExpertConsensus struct {
	ExpertVotesFor     uint64  `json:"expert_votes_for" cbor:"1,keyasint"`
	ExpertVotesAgainst uint64  `json:"expert_votes_against" cbor:"2,keyasint"`
	ExpertConfidence   float64 `json:"expert_confidence" cbor:"3,keyasint"`
	PeerReviewScore    float64 `json:"peer_review_score" cbor:"4,keyasint"`
}

// Vote is one principal's ballot on one proposal. Weight is captured when
// the vote is cast and never recomputed.
type Vote struct {
	ID                 uint64    `json:"id" cbor:"1,keyasint"`
	ProposalID         uint64    `json:"proposal_id" cbor:"2,keyasint"`
	Voter              Principal `json:"voter" cbor:"3,keyasint"`
	Type               VoteType  `json:"vote_type" cbor:"4,keyasint"`
	Weight             uint32    `json:"weight" cbor:"5,keyasint"`
	Timestamp          time.Time `json:"timestamp" cbor:"6,keyasint"`
	Rationale          string    `json:"rationale,omitempty" cbor:"7,keyasint,omitempty"`
	ExpertiseRelevance uint32    `json:"expertise_relevance" cbor:"8,keyasint"`
}

// Comment is an immutable entry in a proposal's discussion thread.
type Comment struct {
	ID           uint64    `json:"id" cbor:"1,keyasint"`
	Author       Principal `json:"author" cbor:"2,keyasint"`
	Content      string    `json:"content" cbor:"3,keyasint"`
	Timestamp    time.Time `json:"timestamp" cbor:"4,keyasint"`
	ReplyTo      *uint64   `json:"reply_to,omitempty" cbor:"5,keyasint,omitempty"`
	Endorsements uint32    `json:"endorsements" cbor:"6,keyasint"`
}

func (c Comment) clone() Comment {
	if c.ReplyTo != nil {
		id := *c.ReplyTo
		c.ReplyTo = &id
	}
	return c
}

// ═══════════════════════════════════════════════════════════════════════════
// External Collaborators
// ═══════════════════════════════════════════════════════════════════════════

// User is the directory's view of a participant.
type User struct {
	Principal         Principal             `json:"principal" yaml:"principal"`
	Role              UserRole              `json:"role" yaml:"role"`
	Reputation        uint32                `json:"reputation" yaml:"reputation"`
	Specializations   []string              `json:"specializations" yaml:"specializations"`
	VerificationLevel UserVerificationLevel `json:"verification_level" yaml:"verification_level"`
	Permissions       UserPermissions       `json:"permissions" yaml:"permissions"`
	Stats             UserStats             `json:"stats" yaml:"-"`
}

// UserPermissions are the raw flags assigned by the user module.
type UserPermissions struct {
	CanSubmitArtifacts bool   `json:"can_submit_artifacts" yaml:"can_submit_artifacts"`
	CanCreateProposals bool   `json:"can_create_proposals" yaml:"can_create_proposals"`
	CanVote            bool   `json:"can_vote" yaml:"can_vote"`
	CanModerate        bool   `json:"can_moderate" yaml:"can_moderate"`
	VotingWeight       uint32 `json:"voting_weight" yaml:"voting_weight"`
}

// UserStats tracks governance activity per participant.
type UserStats struct {
	ProposalsCreated uint32    `json:"proposals_created"`
	VotesCast        uint32    `json:"votes_cast"`
	LastActivity     time.Time `json:"last_activity"`
}

// Artifact is the registry's view of a heritage artifact.
type Artifact struct {
	ID                uint64            `json:"id" yaml:"id"`
	Title             string            `json:"title" yaml:"title"`
	Status            ArtifactStatus    `json:"status" yaml:"status"`
	VerificationLevel VerificationLevel `json:"verification_level" yaml:"verification_level"`
	UpdatedAt         time.Time         `json:"updated_at" yaml:"-"`
}

// AuditEvent is a fire-and-forget record of a governance action.
type AuditEvent struct {
	ID        string         `json:"id"`
	Type      AuditEventType `json:"event_type"`
	Actor     Principal      `json:"actor"`
	TargetID  uint64         `json:"target_id"`
	Details   string         `json:"details"`
	Severity  AuditSeverity  `json:"severity"`
	Timestamp time.Time      `json:"timestamp"`
	DataHash  string         `json:"data_hash"`
}
