package domain

import (
	"errors"
	"fmt"
)

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure: no infrastructure dependency. Callers classify
// with errors.Is; details are attached by wrapping.

var (
	// Input errors
	ErrValidation = errors.New("validation failed")

	// Authorization errors
	ErrPermissionDenied      = errors.New("permission denied")
	ErrInsufficientExpertise = errors.New("insufficient expertise for this proposal")

	// Lookup errors
	ErrNotFound         = errors.New("not found")
	ErrProposalNotFound = fmt.Errorf("proposal %w", ErrNotFound)
	ErrArtifactNotFound = fmt.Errorf("artifact %w", ErrNotFound)
	ErrVoteNotFound     = fmt.Errorf("vote %w", ErrNotFound)
	ErrNoVotes          = fmt.Errorf("votes for proposal %w", ErrNotFound)

	// Lifecycle errors
	ErrDeadlinePassed   = errors.New("voting deadline has passed")
	ErrProposalClosed   = fmt.Errorf("proposal is no longer active: %w", ErrDeadlinePassed)
	ErrDeadlineExceeded = errors.New("execution deadline exceeded")
	ErrNotPassed        = errors.New("proposal must be passed to execute")
	ErrExecutionFailed  = errors.New("proposal execution failed")

	// Ballot errors
	ErrAlreadyVoted = errors.New("already voted on this proposal")
	ErrNotYetVoted  = errors.New("has not voted on this proposal")
)
