// Package directory is an in-process user directory and artifact registry.
//
// The user and artifact modules are separate systems; governance only needs a
// narrow view of them. Directory implements both domain ports over maps and
// can be seeded from a YAML roster.
package directory

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/heritage-dao/heritage/internal/domain"
)

// Directory implements domain.UserDirectory and domain.ArtifactRegistry.
// Thread-safe via RWMutex.
type Directory struct {
	mu        sync.RWMutex
	users     map[domain.Principal]*domain.User
	artifacts map[uint64]*domain.Artifact
	logger    *slog.Logger

	// now is injectable for testing.
	now func() time.Time
}

// New creates an empty directory. A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{
		users:     make(map[domain.Principal]*domain.User),
		artifacts: make(map[uint64]*domain.Artifact),
		logger:    logger,
		now:       time.Now,
	}
}

// ─── Users ──────────────────────────────────────────────────────────────────

// PutUser registers or replaces a user.
func (d *Directory) PutUser(u domain.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u.Specializations = slices.Clone(u.Specializations)
	d.users[u.Principal] = &u
}

// Lookup returns a copy of the user registered under p.
func (d *Directory) Lookup(_ context.Context, p domain.Principal) (domain.User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[p]
	if !ok {
		return domain.User{}, false
	}
	out := *u
	out.Specializations = slices.Clone(u.Specializations)
	return out, true
}

// Users returns all users ordered by principal.
func (d *Directory) Users() []domain.User {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]domain.User, 0, len(d.users))
	for _, u := range d.users {
		out = append(out, *u)
	}
	slices.SortFunc(out, func(a, b domain.User) int {
		switch {
		case a.Principal < b.Principal:
			return -1
		case a.Principal > b.Principal:
			return 1
		}
		return 0
	})
	return out
}

// CountEligibleVoters counts users whose permission flags allow voting.
func (d *Directory) CountEligibleVoters(context.Context) uint32 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var n uint32
	for _, u := range d.users {
		if u.Permissions.CanVote {
			n++
		}
	}
	return n
}

// RecordProposalCreated bumps the proposer's activity stats. Unknown
// principals are ignored.
func (d *Directory) RecordProposalCreated(_ context.Context, p domain.Principal, at time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if u, ok := d.users[p]; ok {
		u.Stats.ProposalsCreated++
		u.Stats.LastActivity = at
	}
}

// RecordVoteActivity bumps the voter's stats and reputation. Unknown
// principals are ignored.
func (d *Directory) RecordVoteActivity(_ context.Context, p domain.Principal, reputationDelta uint32, at time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if u, ok := d.users[p]; ok {
		u.Stats.VotesCast++
		u.Stats.LastActivity = at
		u.Reputation += reputationDelta
	}
}

// ─── Artifacts ──────────────────────────────────────────────────────────────

// PutArtifact registers or replaces an artifact.
func (d *Directory) PutArtifact(a domain.Artifact) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.artifacts[a.ID] = &a
}

// Artifact returns a copy of the artifact with the given id.
func (d *Directory) Artifact(id uint64) (domain.Artifact, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.artifacts[id]
	if !ok {
		return domain.Artifact{}, false
	}
	return *a, true
}

// Exists reports whether an artifact is registered.
func (d *Directory) Exists(_ context.Context, id uint64) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.artifacts[id]
	return ok
}

// SetStatus changes an artifact's status.
func (d *Directory) SetStatus(_ context.Context, id uint64, status domain.ArtifactStatus) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.artifacts[id]
	if !ok {
		return domain.ErrArtifactNotFound
	}
	a.Status = status
	a.UpdatedAt = d.now()
	d.logger.Info("artifact status changed", "artifact_id", id, "status", status)
	return nil
}

// SetVerificationLevel changes an artifact's verification level.
func (d *Directory) SetVerificationLevel(_ context.Context, id uint64, level domain.VerificationLevel) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.artifacts[id]
	if !ok {
		return domain.ErrArtifactNotFound
	}
	a.VerificationLevel = level
	a.UpdatedAt = d.now()
	d.logger.Info("artifact verification level changed", "artifact_id", id, "level", level)
	return nil
}
