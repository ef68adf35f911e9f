// Package storetest is a conformance suite every domain.Store backend runs
// from its own tests.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heritage-dao/heritage/internal/domain"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) domain.Store

func baseTime() time.Time {
	return time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
}

// NewProposal builds a minimal active proposal for store tests.
func NewProposal(id uint64) *domain.Proposal {
	art := uint64(42)
	created := baseTime().Add(time.Duration(id) * time.Minute)
	return &domain.Proposal{
		ID:                id,
		Type:              domain.VerifyArtifact,
		ArtifactID:        &art,
		Proposer:          "alice",
		Title:             "Verify amphora",
		Description:       "The amphora's provenance chain is complete and documented by two museums.",
		Evidence:          []string{"ipfs://evidence"},
		CreatedAt:         created,
		VotingDeadline:    created.Add(72 * time.Hour),
		ExecutionDeadline: created.Add(96 * time.Hour),
		QuorumRequired:    3,
		Status:            domain.StatusActive,
		Discussion:        []domain.Comment{},
		RequiredExpertise: []string{"ceramics"},
		Urgency:           domain.UrgencyNormal,
	}
}

// Run executes the full suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s domain.Store)
	}{
		{"NextIDPerKind", testNextIDPerKind},
		{"ProposalRoundTrip", testProposalRoundTrip},
		{"ProposalNotFound", testProposalNotFound},
		{"DuplicateProposal", testDuplicateProposal},
		{"UpdateProposal", testUpdateProposal},
		{"ListProposals", testListProposals},
		{"CommitVote", testCommitVote},
		{"OneVotePerVoter", testOneVotePerVoter},
		{"CommitVoteChange", testCommitVoteChange},
		{"ChangeWithoutVote", testChangeWithoutVote},
		{"ReturnedRecordsAreCopies", testReturnedRecordsAreCopies},
		{"ConcurrentNextID", testConcurrentNextID},
		{"Ping", testPing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

func testNextIDPerKind(t *testing.T, s domain.Store) {
	ctx := context.Background()
	for want := uint64(1); want <= 3; want++ {
		got, err := s.NextID(ctx, domain.CounterProposal)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	got, err := s.NextID(ctx, domain.CounterComment)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got, "counters must not be shared between kinds")
}

func testProposalRoundTrip(t *testing.T, s domain.Store) {
	ctx := context.Background()
	reply := uint64(1)
	p := NewProposal(1)
	p.Discussion = []domain.Comment{
		{ID: 1, Author: "bob", Content: "looks right", Timestamp: baseTime()},
		{ID: 2, Author: "carol", Content: "agreed", Timestamp: baseTime(), ReplyTo: &reply},
	}
	p.Results.AddVoter("bob")
	p.Results.ExpertConsensus = &domain.ExpertConsensus{ExpertVotesFor: 3, ExpertConfidence: 1, PeerReviewScore: 65}
	require.NoError(t, s.CreateProposal(ctx, p))

	got, err := s.GetProposal(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, p.Title, got.Title)
	assert.Equal(t, p.Type, got.Type)
	assert.Equal(t, p.Status, got.Status)
	assert.Equal(t, *p.ArtifactID, *got.ArtifactID)
	assert.True(t, p.VotingDeadline.Equal(got.VotingDeadline))
	assert.True(t, p.ExecutionDeadline.Equal(got.ExecutionDeadline))
	assert.True(t, p.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, p.RequiredExpertise, got.RequiredExpertise)
	assert.Equal(t, p.Results.Voters, got.Results.Voters)
	require.NotNil(t, got.Results.ExpertConsensus)
	assert.Equal(t, 65.0, got.Results.ExpertConsensus.PeerReviewScore)
	require.Len(t, got.Discussion, 2)
	require.NotNil(t, got.Discussion[1].ReplyTo)
	assert.Equal(t, uint64(1), *got.Discussion[1].ReplyTo)
	assert.Nil(t, got.Discussion[0].ReplyTo)
}

func testProposalNotFound(t *testing.T, s domain.Store) {
	_, err := s.GetProposal(context.Background(), 999)
	require.ErrorIs(t, err, domain.ErrProposalNotFound)
	require.ErrorIs(t, s.UpdateProposal(context.Background(), NewProposal(999)), domain.ErrNotFound)
}

func testDuplicateProposal(t *testing.T, s domain.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateProposal(ctx, NewProposal(1)))
	require.Error(t, s.CreateProposal(ctx, NewProposal(1)))
}

func testUpdateProposal(t *testing.T, s domain.Store) {
	ctx := context.Background()
	p := NewProposal(1)
	require.NoError(t, s.CreateProposal(ctx, p))

	p.Status = domain.StatusPassed
	p.Results.VotesFor = 7
	require.NoError(t, s.UpdateProposal(ctx, p))

	got, err := s.GetProposal(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPassed, got.Status)
	assert.Equal(t, uint64(7), got.Results.VotesFor)
}

func testListProposals(t *testing.T, s domain.Store) {
	ctx := context.Background()
	for id := uint64(1); id <= 3; id++ {
		require.NoError(t, s.CreateProposal(ctx, NewProposal(id)))
	}
	all, err := s.ListProposals(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	seen := map[uint64]bool{}
	for _, p := range all {
		seen[p.ID] = true
	}
	assert.Len(t, seen, 3)
}

func newVote(id, proposalID uint64, voter domain.Principal, vt domain.VoteType) *domain.Vote {
	return &domain.Vote{
		ID:                 id,
		ProposalID:         proposalID,
		Voter:              voter,
		Type:               vt,
		Weight:             2,
		Timestamp:          baseTime(),
		ExpertiseRelevance: 50,
	}
}

func testCommitVote(t *testing.T, s domain.Store) {
	ctx := context.Background()
	p := NewProposal(1)
	require.NoError(t, s.CreateProposal(ctx, p))

	p.Results.AddVoter("bob")
	p.Results.TotalVotes = 1
	p.Results.VotesFor = 2
	require.NoError(t, s.CommitVote(ctx, p, newVote(1, 1, "bob", domain.VoteFor)))

	got, err := s.GetProposal(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), got.Results.TotalVotes)
	assert.True(t, got.HasVoted("bob"))

	v, err := s.GetVoteByVoter(ctx, 1, "bob")
	require.NoError(t, err)
	assert.Equal(t, domain.VoteFor, v.Type)
	assert.Equal(t, uint32(2), v.Weight)

	_, err = s.GetVoteByVoter(ctx, 1, "carol")
	require.ErrorIs(t, err, domain.ErrVoteNotFound)

	votes, err := s.ListVotes(ctx, 1)
	require.NoError(t, err)
	require.Len(t, votes, 1)

	n, err := s.CountVotes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func testOneVotePerVoter(t *testing.T, s domain.Store) {
	ctx := context.Background()
	p := NewProposal(1)
	require.NoError(t, s.CreateProposal(ctx, p))
	require.NoError(t, s.CommitVote(ctx, p, newVote(1, 1, "bob", domain.VoteFor)))

	p.Results.VotesAgainst = 99
	err := s.CommitVote(ctx, p, newVote(2, 1, "bob", domain.VoteAgainst))
	require.ErrorIs(t, err, domain.ErrAlreadyVoted)

	got, err := s.GetProposal(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, got.Results.VotesAgainst, "rejected commit must not touch the proposal")

	votes, err := s.ListVotes(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, votes, 1)
}

func testCommitVoteChange(t *testing.T, s domain.Store) {
	ctx := context.Background()
	p := NewProposal(1)
	require.NoError(t, s.CreateProposal(ctx, p))
	require.NoError(t, s.CommitVote(ctx, p, newVote(1, 1, "bob", domain.VoteFor)))

	changed := newVote(1, 1, "bob", domain.VoteAgainst)
	changed.Rationale = "new evidence of restoration"
	p.Results.VotesAgainst = 2
	require.NoError(t, s.CommitVoteChange(ctx, p, changed))

	v, err := s.GetVoteByVoter(ctx, 1, "bob")
	require.NoError(t, err)
	assert.Equal(t, domain.VoteAgainst, v.Type)
	assert.Equal(t, "new evidence of restoration", v.Rationale)
	assert.Equal(t, uint64(1), v.ID)

	n, err := s.CountVotes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.GetProposal(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.Results.VotesAgainst)
}

func testChangeWithoutVote(t *testing.T, s domain.Store) {
	ctx := context.Background()
	p := NewProposal(1)
	require.NoError(t, s.CreateProposal(ctx, p))
	err := s.CommitVoteChange(ctx, p, newVote(1, 1, "bob", domain.VoteAgainst))
	require.ErrorIs(t, err, domain.ErrVoteNotFound)
}

func testReturnedRecordsAreCopies(t *testing.T, s domain.Store) {
	ctx := context.Background()
	p := NewProposal(1)
	require.NoError(t, s.CreateProposal(ctx, p))
	p.Title = "mutated after create"

	got, err := s.GetProposal(ctx, 1)
	require.NoError(t, err)
	got.Results.AddVoter("mallory")

	again, err := s.GetProposal(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Verify amphora", again.Title)
	assert.False(t, again.HasVoted("mallory"))
}

func testConcurrentNextID(t *testing.T, s domain.Store) {
	ctx := context.Background()
	const workers, each = 8, 25

	var mu sync.Mutex
	seen := make(map[uint64]bool)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range each {
				id, err := s.NextID(ctx, domain.CounterVote)
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, workers*each, "ids must be unique under concurrency")
}

func testPing(t *testing.T, s domain.Store) {
	require.NoError(t, s.Ping(context.Background()))
}
