// Package governance implements the heritage DAO proposal lifecycle and
// weighted-voting engine.
//
// Registered participants submit proposals about artifacts or community
// roles. Others vote, weighted by their role-derived voting weight captured
// at cast time. The engine tallies, evaluates quorum and expert consensus,
// finalizes, and dispatches approved proposals to the artifact registry.
package governance

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/heritage-dao/heritage/internal/domain"
	"github.com/heritage-dao/heritage/internal/infra/metrics"
	"github.com/heritage-dao/heritage/internal/infra/permissions"
)

// ─── Constants ──────────────────────────────────────────────────────────────

const (
	// MaxTitleLength bounds proposal titles, in characters.
	MaxTitleLength = 200

	// MinDescriptionLength and MaxDescriptionLength bound descriptions.
	MinDescriptionLength = 50
	MaxDescriptionLength = 10_000

	// MinVotingHours and MaxVotingHours bound the voting period.
	MinVotingHours = 1
	MaxVotingHours = 168

	// MinRationaleLength and MaxRationaleLength bound an optional vote rationale.
	MinRationaleLength = 10
	MaxRationaleLength = 1000

	// MaxCommentLength bounds discussion comments.
	MaxCommentLength = 2000

	// DefaultExpertiseRelevance is used when a voter does not state one.
	DefaultExpertiseRelevance = 50
)

// ─── Configuration ──────────────────────────────────────────────────────────

// Config configures the governance engine.
type Config struct {
	EmergencyGrace        time.Duration // Extra voting time for emergency proposals
	ExecutionWindow       time.Duration // Time after the voting deadline to execute
	EvidenceExtension     time.Duration // Extension when evidence requests dominate
	MaxDeadlineExtensions uint32        // Cap on evidence extensions per proposal

	// Capability gates. Off by default: the reference deployment lets any
	// principal vote and propose, relying on weight and expertise checks.
	RequireVoterCapability    bool
	RequireProposerCapability bool
}

// DefaultConfig returns the standard governance parameters.
func DefaultConfig() Config {
	return Config{
		EmergencyGrace:        2 * time.Hour,
		ExecutionWindow:       24 * time.Hour,
		EvidenceExtension:     24 * time.Hour,
		MaxDeadlineExtensions: 3,
	}
}

// Deps are the engine's collaborators.
type Deps struct {
	Store     domain.Store
	Users     domain.UserDirectory
	Artifacts domain.ArtifactRegistry
	Audit     domain.AuditSink // optional
	Logger    *slog.Logger     // optional, defaults to slog.Default()
}

// ─── Engine ─────────────────────────────────────────────────────────────────

// Engine implements the governance system.
// Every mutating operation runs inside a per-proposal critical section.
type Engine struct {
	cfg       Config
	store     domain.Store
	users     domain.UserDirectory
	artifacts domain.ArtifactRegistry
	audit     domain.AuditSink
	perms     *permissions.Resolver
	logger    *slog.Logger
	locks     keyedMutex

	// now returns the current time; injectable for testing.
	now func() time.Time
}

// NewEngine creates a governance engine.
func NewEngine(cfg Config, deps Deps) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sink := deps.Audit
	if sink == nil {
		sink = nopSink{}
	}
	return &Engine{
		cfg:       cfg,
		store:     deps.Store,
		users:     deps.Users,
		artifacts: deps.Artifacts,
		audit:     sink,
		perms:     permissions.NewResolver(deps.Users),
		logger:    logger.With("component", "governance"),
		now:       time.Now,
	}
}

// SetClock replaces the engine's time source.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

type nopSink struct{}

func (nopSink) Record(context.Context, domain.AuditEvent) {}

// ─── Locking ────────────────────────────────────────────────────────────────

// keyedMutex hands out one mutex per proposal id.
type keyedMutex struct {
	m sync.Map // uint64 → *sync.Mutex
}

func (k *keyedMutex) lock(id uint64) func() {
	v, _ := k.m.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// ─── Rejections ─────────────────────────────────────────────────────────────

// reject counts a refused operation and passes the error through.
func (e *Engine) reject(op string, err error) error {
	metrics.RejectedOperations.WithLabelValues(op, reason(err)).Inc()
	e.logger.Debug("operation rejected", "op", op, "err", err)
	return err
}

func reason(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, domain.ErrInsufficientExpertise):
		return "insufficient_expertise"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrProposalClosed):
		return "proposal_closed"
	case errors.Is(err, domain.ErrDeadlinePassed):
		return "deadline_passed"
	case errors.Is(err, domain.ErrDeadlineExceeded):
		return "deadline_exceeded"
	case errors.Is(err, domain.ErrAlreadyVoted):
		return "already_voted"
	case errors.Is(err, domain.ErrNotYetVoted):
		return "not_yet_voted"
	case errors.Is(err, domain.ErrNotPassed):
		return "not_passed"
	case errors.Is(err, domain.ErrExecutionFailed):
		return "execution_failed"
	default:
		return "internal"
	}
}
