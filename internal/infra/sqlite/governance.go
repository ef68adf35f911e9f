package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/heritage-dao/heritage/internal/domain"
)

// ─── ID Allocation ──────────────────────────────────────────────────────────

// NextID atomically bumps the counter for kind and returns the new value.
func (d *DB) NextID(ctx context.Context, kind string) (uint64, error) {
	var id uint64
	err := d.db.QueryRowContext(ctx,
		`INSERT INTO id_counters (kind, value) VALUES (?, 1)
		 ON CONFLICT(kind) DO UPDATE SET value = value + 1
		 RETURNING value`,
		kind,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("next %s id: %w", kind, err)
	}
	return id, nil
}

// ─── Proposal Repository ────────────────────────────────────────────────────

// CreateProposal inserts a new proposal.
func (d *DB) CreateProposal(ctx context.Context, p *domain.Proposal) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode proposal %d: %w", p.ID, err)
	}
	_, err = d.db.ExecContext(ctx,
		`INSERT INTO proposals (id, proposal_type, proposer, status, created_at, body)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Type.String(), string(p.Proposer), p.Status.String(), p.CreatedAt.UnixNano(), string(body),
	)
	if err != nil {
		return fmt.Errorf("insert proposal %d: %w", p.ID, err)
	}
	return nil
}

// GetProposal loads a proposal by id.
func (d *DB) GetProposal(ctx context.Context, id uint64) (*domain.Proposal, error) {
	var body string
	err := d.db.QueryRowContext(ctx, `SELECT body FROM proposals WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProposalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get proposal %d: %w", id, err)
	}
	return decodeProposal(body)
}

// UpdateProposal replaces an existing proposal.
func (d *DB) UpdateProposal(ctx context.Context, p *domain.Proposal) error {
	return updateProposal(ctx, d.db, p)
}

// ListProposals returns every proposal ordered by id.
func (d *DB) ListProposals(ctx context.Context) ([]*domain.Proposal, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT body FROM proposals ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}
	defer rows.Close()

	var out []*domain.Proposal
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		p, err := decodeProposal(body)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func updateProposal(ctx context.Context, ex execer, p *domain.Proposal) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode proposal %d: %w", p.ID, err)
	}
	res, err := ex.ExecContext(ctx,
		`UPDATE proposals SET status = ?, body = ? WHERE id = ?`,
		p.Status.String(), string(body), p.ID,
	)
	if err != nil {
		return fmt.Errorf("update proposal %d: %w", p.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrProposalNotFound
	}
	return nil
}

func decodeProposal(body string) (*domain.Proposal, error) {
	var p domain.Proposal
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return nil, fmt.Errorf("decode proposal: %w", err)
	}
	return &p, nil
}

// ─── Vote Ledger ────────────────────────────────────────────────────────────

const voteColumns = `id, proposal_id, voter, vote_type, weight, cast_at, rationale, relevance`

// GetVoteByVoter looks a vote up through the (proposal_id, voter) index.
func (d *DB) GetVoteByVoter(ctx context.Context, proposalID uint64, voter domain.Principal) (*domain.Vote, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT `+voteColumns+` FROM votes WHERE proposal_id = ? AND voter = ?`,
		proposalID, string(voter),
	)
	v, err := scanVote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrVoteNotFound
	}
	return v, err
}

// ListVotes returns the votes on a proposal in cast order.
func (d *DB) ListVotes(ctx context.Context, proposalID uint64) ([]*domain.Vote, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT `+voteColumns+` FROM votes WHERE proposal_id = ? ORDER BY id`,
		proposalID,
	)
	if err != nil {
		return nil, fmt.Errorf("list votes: %w", err)
	}
	defer rows.Close()

	var out []*domain.Vote
	for rows.Next() {
		v, err := scanVote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// CountVotes returns the number of votes across all proposals.
func (d *DB) CountVotes(ctx context.Context) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM votes`).Scan(&n)
	return n, err
}

// CommitVote writes v and p in one transaction.
func (d *DB) CommitVote(ctx context.Context, p *domain.Proposal, v *domain.Vote) error {
	return d.inTx(ctx, func(tx *sql.Tx) error {
		if err := updateProposal(ctx, tx, p); err != nil {
			return err
		}
		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM votes WHERE proposal_id = ? AND voter = ?`,
			v.ProposalID, string(v.Voter),
		).Scan(&exists)
		if err != nil {
			return err
		}
		if exists > 0 {
			return domain.ErrAlreadyVoted
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO votes (`+voteColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			v.ID, v.ProposalID, string(v.Voter), v.Type.String(), v.Weight,
			v.Timestamp.UnixNano(), v.Rationale, v.ExpertiseRelevance,
		)
		if err != nil {
			return fmt.Errorf("insert vote: %w", err)
		}
		return nil
	})
}

// CommitVoteChange replaces the existing vote for (v.ProposalID, v.Voter)
// and p in one transaction. The vote keeps its id.
func (d *DB) CommitVoteChange(ctx context.Context, p *domain.Proposal, v *domain.Vote) error {
	return d.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE votes SET vote_type = ?, weight = ?, cast_at = ?, rationale = ?, relevance = ?
			 WHERE proposal_id = ? AND voter = ?`,
			v.Type.String(), v.Weight, v.Timestamp.UnixNano(), v.Rationale, v.ExpertiseRelevance,
			v.ProposalID, string(v.Voter),
		)
		if err != nil {
			return fmt.Errorf("update vote: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return domain.ErrVoteNotFound
		}
		return updateProposal(ctx, tx, p)
	})
}

func (d *DB) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVote(r rowScanner) (*domain.Vote, error) {
	var (
		v        domain.Vote
		voter    string
		voteType string
		castAt   int64
	)
	if err := r.Scan(&v.ID, &v.ProposalID, &voter, &voteType, &v.Weight, &castAt, &v.Rationale, &v.ExpertiseRelevance); err != nil {
		return nil, err
	}
	vt, err := domain.ParseVoteType(voteType)
	if err != nil {
		return nil, err
	}
	v.Voter = domain.Principal(voter)
	v.Type = vt
	v.Timestamp = time.Unix(0, castAt).UTC()
	return &v, nil
}
