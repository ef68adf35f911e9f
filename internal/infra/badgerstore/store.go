// Package badgerstore is a BadgerDB-backed governance store.
//
// Key layout:
//
//	c/<kind>                  → uint64 big-endian counter
//	p/<proposalID>            → CBOR Proposal
//	v/<proposalID>/<voteID>   → CBOR Vote
//	vi/<proposalID>/<voter>   → voteID (the one-vote-per-principal index)
//
// All ids are encoded big-endian so prefix iteration yields id order.
package badgerstore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/heritage-dao/heritage/internal/domain"
)

const maxTxnRetries = 16

var (
	prefixCounter    = []byte("c/")
	prefixProposal   = []byte("p/")
	prefixVote       = []byte("v/")
	prefixVoterIndex = []byte("vi/")
)

// Store implements domain.Store on top of badger.
type Store struct {
	db      *badger.DB
	logger  *slog.Logger
	dataDir string
}

// OptionFunc configures a Store.
type OptionFunc func(*Store)

// WithDataDir persists data under dir. Without it the store is in-memory.
func WithDataDir(dir string) OptionFunc {
	return func(s *Store) { s.dataDir = dir }
}

// WithLogger sets the logger used by the store and by badger itself.
func WithLogger(logger *slog.Logger) OptionFunc {
	return func(s *Store) { s.logger = logger }
}

// Open creates a store.
func Open(opts ...OptionFunc) (*Store, error) {
	s := &Store{}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	var badgerOpts badger.Options
	if s.dataDir == "" {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if _, err := os.Stat(s.dataDir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read data dir: %w", err)
			}
			if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
		badgerOpts = badger.DefaultOptions(s.dataDir)
	}
	badgerOpts = badgerOpts.
		WithLogger(newBadgerLogger(s.logger)).
		// The default INFO logging is a bit verbose
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	s.db = db
	return s, nil
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is still open.
func (s *Store) Ping(context.Context) error {
	if s.db.IsClosed() {
		return errors.New("badger: database closed")
	}
	return nil
}

// update runs fn in a read-write transaction, retrying on conflict.
func (s *Store) update(fn func(txn *badger.Txn) error) error {
	var err error
	for range maxTxnRetries {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("badger: giving up after %d conflicts: %w", maxTxnRetries, err)
}

// ─── Keys ───────────────────────────────────────────────────────────────────

func u64(id uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, id)
}

func counterKey(kind string) []byte {
	return append(append([]byte{}, prefixCounter...), kind...)
}

func proposalKey(id uint64) []byte {
	return append(append([]byte{}, prefixProposal...), u64(id)...)
}

func votePrefix(proposalID uint64) []byte {
	return append(append(append([]byte{}, prefixVote...), u64(proposalID)...), '/')
}

func voteKey(proposalID, voteID uint64) []byte {
	return append(votePrefix(proposalID), u64(voteID)...)
}

func voterIndexKey(proposalID uint64, voter domain.Principal) []byte {
	k := append(append([]byte{}, prefixVoterIndex...), u64(proposalID)...)
	return append(append(k, '/'), voter...)
}

// ─── ID Allocation ──────────────────────────────────────────────────────────

// NextID bumps the counter for kind.
func (s *Store) NextID(_ context.Context, kind string) (uint64, error) {
	var next uint64
	err := s.update(func(txn *badger.Txn) error {
		key := counterKey(kind)
		cur := uint64(0)
		item, err := txn.Get(key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return err
		default:
			if err := item.Value(func(val []byte) error {
				cur = binary.BigEndian.Uint64(val)
				return nil
			}); err != nil {
				return err
			}
		}
		next = cur + 1
		return txn.Set(key, u64(next))
	})
	if err != nil {
		return 0, fmt.Errorf("next %s id: %w", kind, err)
	}
	return next, nil
}

// ─── Proposals ──────────────────────────────────────────────────────────────

// CreateProposal inserts a new proposal.
func (s *Store) CreateProposal(_ context.Context, p *domain.Proposal) error {
	return s.update(func(txn *badger.Txn) error {
		key := proposalKey(p.ID)
		if _, err := txn.Get(key); err == nil {
			return fmt.Errorf("%w: proposal %d already exists", domain.ErrValidation, p.ID)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return putProposal(txn, p)
	})
}

// GetProposal loads a proposal.
func (s *Store) GetProposal(_ context.Context, id uint64) (*domain.Proposal, error) {
	var p *domain.Proposal
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		p, err = getProposal(txn, id)
		return err
	})
	return p, err
}

// UpdateProposal replaces an existing proposal.
func (s *Store) UpdateProposal(_ context.Context, p *domain.Proposal) error {
	return s.update(func(txn *badger.Txn) error {
		if _, err := txn.Get(proposalKey(p.ID)); errors.Is(err, badger.ErrKeyNotFound) {
			return domain.ErrProposalNotFound
		} else if err != nil {
			return err
		}
		return putProposal(txn, p)
	})
}

// ListProposals returns all proposals in id order.
func (s *Store) ListProposals(context.Context) ([]*domain.Proposal, error) {
	var out []*domain.Proposal
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefixProposal); it.ValidForPrefix(prefixProposal); it.Next() {
			var p domain.Proposal
			if err := it.Item().Value(func(val []byte) error {
				return unmarshal(val, &p)
			}); err != nil {
				return fmt.Errorf("decode proposal: %w", err)
			}
			out = append(out, &p)
		}
		return nil
	})
	return out, err
}

func putProposal(txn *badger.Txn, p *domain.Proposal) error {
	val, err := marshal(p)
	if err != nil {
		return fmt.Errorf("encode proposal %d: %w", p.ID, err)
	}
	return txn.Set(proposalKey(p.ID), val)
}

func getProposal(txn *badger.Txn, id uint64) (*domain.Proposal, error) {
	item, err := txn.Get(proposalKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, domain.ErrProposalNotFound
	}
	if err != nil {
		return nil, err
	}
	var p domain.Proposal
	if err := item.Value(func(val []byte) error {
		return unmarshal(val, &p)
	}); err != nil {
		return nil, fmt.Errorf("decode proposal %d: %w", id, err)
	}
	return &p, nil
}

// ─── Votes ──────────────────────────────────────────────────────────────────

// GetVoteByVoter resolves the voter index, then loads the vote.
func (s *Store) GetVoteByVoter(_ context.Context, proposalID uint64, voter domain.Principal) (*domain.Vote, error) {
	var v *domain.Vote
	err := s.db.View(func(txn *badger.Txn) error {
		voteID, err := lookupVoter(txn, proposalID, voter)
		if err != nil {
			return err
		}
		item, err := txn.Get(voteKey(proposalID, voteID))
		if err != nil {
			return err
		}
		v = &domain.Vote{}
		return item.Value(func(val []byte) error { return unmarshal(val, v) })
	})
	return v, err
}

// ListVotes returns the votes on a proposal in id order.
func (s *Store) ListVotes(_ context.Context, proposalID uint64) ([]*domain.Vote, error) {
	var out []*domain.Vote
	prefix := votePrefix(proposalID)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var v domain.Vote
			if err := it.Item().Value(func(val []byte) error {
				return unmarshal(val, &v)
			}); err != nil {
				return fmt.Errorf("decode vote: %w", err)
			}
			out = append(out, &v)
		}
		return nil
	})
	return out, err
}

// CountVotes counts vote records across all proposals.
func (s *Store) CountVotes(context.Context) (int, error) {
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefixVote); it.ValidForPrefix(prefixVote); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// CommitVote writes v, its index entry and p in one transaction.
func (s *Store) CommitVote(_ context.Context, p *domain.Proposal, v *domain.Vote) error {
	return s.update(func(txn *badger.Txn) error {
		if _, err := getProposal(txn, p.ID); err != nil {
			return err
		}
		if _, err := lookupVoter(txn, v.ProposalID, v.Voter); err == nil {
			return domain.ErrAlreadyVoted
		} else if !errors.Is(err, domain.ErrVoteNotFound) {
			return err
		}
		val, err := marshal(v)
		if err != nil {
			return fmt.Errorf("encode vote: %w", err)
		}
		if err := txn.Set(voteKey(v.ProposalID, v.ID), val); err != nil {
			return err
		}
		if err := txn.Set(voterIndexKey(v.ProposalID, v.Voter), u64(v.ID)); err != nil {
			return err
		}
		return putProposal(txn, p)
	})
}

// CommitVoteChange replaces the voter's existing vote and p in one
// transaction. The vote keeps its id.
func (s *Store) CommitVoteChange(_ context.Context, p *domain.Proposal, v *domain.Vote) error {
	return s.update(func(txn *badger.Txn) error {
		if _, err := getProposal(txn, p.ID); err != nil {
			return err
		}
		voteID, err := lookupVoter(txn, v.ProposalID, v.Voter)
		if err != nil {
			return err
		}
		cp := *v
		cp.ID = voteID
		val, err := marshal(&cp)
		if err != nil {
			return fmt.Errorf("encode vote: %w", err)
		}
		if err := txn.Set(voteKey(v.ProposalID, voteID), val); err != nil {
			return err
		}
		return putProposal(txn, p)
	})
}

func lookupVoter(txn *badger.Txn, proposalID uint64, voter domain.Principal) (uint64, error) {
	item, err := txn.Get(voterIndexKey(proposalID, voter))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, domain.ErrVoteNotFound
	}
	if err != nil {
		return 0, err
	}
	var id uint64
	err = item.Value(func(val []byte) error {
		id = binary.BigEndian.Uint64(val)
		return nil
	})
	return id, err
}
