// Package memstore is the in-memory governance store.
//
// Records are cloned on the way in and on the way out; callers never hold a
// pointer into the store.
package memstore

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/heritage-dao/heritage/internal/domain"
)

var errClosed = errors.New("memstore: closed")

type voterKey struct {
	proposalID uint64
	voter      domain.Principal
}

// Store implements domain.Store over maps.
// Thread-safe via RWMutex.
type Store struct {
	mu         sync.RWMutex
	counters   map[string]uint64
	proposals  map[uint64]*domain.Proposal
	votes      map[uint64]*domain.Vote // voteID → Vote
	byVoter    map[voterKey]uint64     // (proposal, voter) → voteID
	byProposal map[uint64][]uint64     // proposalID → voteIDs in cast order
	closed     bool
}

// New creates an empty store.
func New() *Store {
	return &Store{
		counters:   make(map[string]uint64),
		proposals:  make(map[uint64]*domain.Proposal),
		votes:      make(map[uint64]*domain.Vote),
		byVoter:    make(map[voterKey]uint64),
		byProposal: make(map[uint64][]uint64),
	}
}

// NextID returns the next id for kind, starting at 1.
func (s *Store) NextID(_ context.Context, kind string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[kind]++
	return s.counters[kind], nil
}

// ─── Proposals ──────────────────────────────────────────────────────────────

// CreateProposal inserts a new proposal.
func (s *Store) CreateProposal(_ context.Context, p *domain.Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.proposals[p.ID]; ok {
		return fmt.Errorf("%w: proposal %d already exists", domain.ErrValidation, p.ID)
	}
	s.proposals[p.ID] = p.Clone()
	return nil
}

// GetProposal returns a copy of the proposal.
func (s *Store) GetProposal(_ context.Context, id uint64) (*domain.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.proposals[id]
	if !ok {
		return nil, domain.ErrProposalNotFound
	}
	return p.Clone(), nil
}

// UpdateProposal replaces an existing proposal.
func (s *Store) UpdateProposal(_ context.Context, p *domain.Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.proposals[p.ID]; !ok {
		return domain.ErrProposalNotFound
	}
	s.proposals[p.ID] = p.Clone()
	return nil
}

// ListProposals returns copies of all proposals ordered by id.
func (s *Store) ListProposals(context.Context) ([]*domain.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Proposal, 0, len(s.proposals))
	for _, p := range s.proposals {
		out = append(out, p.Clone())
	}
	slices.SortFunc(out, func(a, b *domain.Proposal) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

// ─── Votes ──────────────────────────────────────────────────────────────────

// GetVoteByVoter looks a vote up through the (proposal, voter) index.
func (s *Store) GetVoteByVoter(_ context.Context, proposalID uint64, voter domain.Principal) (*domain.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byVoter[voterKey{proposalID, voter}]
	if !ok {
		return nil, domain.ErrVoteNotFound
	}
	v := *s.votes[id]
	return &v, nil
}

// ListVotes returns the votes on a proposal in cast order.
func (s *Store) ListVotes(_ context.Context, proposalID uint64) ([]*domain.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byProposal[proposalID]
	out := make([]*domain.Vote, 0, len(ids))
	for _, id := range ids {
		v := *s.votes[id]
		out = append(out, &v)
	}
	return out, nil
}

// CountVotes returns the number of votes across all proposals.
func (s *Store) CountVotes(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.votes), nil
}

// CommitVote inserts v and replaces p in one step.
func (s *Store) CommitVote(_ context.Context, p *domain.Proposal, v *domain.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.proposals[p.ID]; !ok {
		return domain.ErrProposalNotFound
	}
	key := voterKey{v.ProposalID, v.Voter}
	if _, ok := s.byVoter[key]; ok {
		return domain.ErrAlreadyVoted
	}
	if _, ok := s.votes[v.ID]; ok {
		return fmt.Errorf("%w: vote %d already exists", domain.ErrValidation, v.ID)
	}
	cp := *v
	s.votes[v.ID] = &cp
	s.byVoter[key] = v.ID
	s.byProposal[v.ProposalID] = append(s.byProposal[v.ProposalID], v.ID)
	s.proposals[p.ID] = p.Clone()
	return nil
}

// CommitVoteChange replaces the caller's existing vote and p in one step.
func (s *Store) CommitVoteChange(_ context.Context, p *domain.Proposal, v *domain.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.proposals[p.ID]; !ok {
		return domain.ErrProposalNotFound
	}
	id, ok := s.byVoter[voterKey{v.ProposalID, v.Voter}]
	if !ok {
		return domain.ErrVoteNotFound
	}
	cp := *v
	cp.ID = id
	s.votes[id] = &cp
	s.proposals[p.ID] = p.Clone()
	return nil
}

// Ping always succeeds until the store is closed.
func (s *Store) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errClosed
	}
	return nil
}

// Close marks the store closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
