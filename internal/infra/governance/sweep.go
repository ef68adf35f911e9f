package governance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/heritage-dao/heritage/internal/domain"
	"github.com/heritage-dao/heritage/internal/infra/metrics"
)

// sweepActor is recorded as the actor of transitions made by the sweeper.
const sweepActor domain.Principal = "system:sweeper"

// ResolveExpired finalizes Active proposals that no longer accept ballots and
// expires Passed proposals past their execution deadline. It returns the
// proposals whose status changed.
func (e *Engine) ResolveExpired(ctx context.Context) ([]*domain.Proposal, error) {
	all, err := e.store.ListProposals(ctx)
	if err != nil {
		return nil, err
	}

	var changed []*domain.Proposal
	for _, snapshot := range all {
		switch snapshot.Status {
		case domain.StatusActive, domain.StatusPassed:
		default:
			continue
		}
		p, err := e.resolveOne(ctx, snapshot.ID)
		if err != nil {
			return changed, err
		}
		if p != nil {
			changed = append(changed, p)
		}
	}

	metrics.SweepRuns.Inc()
	metrics.SweepTransitions.Add(float64(len(changed)))
	return changed, nil
}

// resolveOne re-reads the proposal under its lock so a concurrent vote or
// execution is never overwritten.
func (e *Engine) resolveOne(ctx context.Context, id uint64) (*domain.Proposal, error) {
	unlock := e.locks.lock(id)
	defer unlock()

	p, err := e.store.GetProposal(ctx, id)
	if err != nil {
		return nil, err
	}
	now := e.now()

	switch {
	case p.Status == domain.StatusActive && now.After(e.ballotDeadline(p)):
		finalizeVoting(p)
		if err := e.store.UpdateProposal(ctx, p); err != nil {
			return nil, fmt.Errorf("finalize proposal %d: %w", id, err)
		}
		e.recordFinalized(ctx, sweepActor, p)
		return p, nil

	case p.Status == domain.StatusPassed && !p.ExecutionDeadline.IsZero() && now.After(p.ExecutionDeadline):
		if err := e.expireUnexecuted(ctx, sweepActor, p); err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, nil
}

// ─── Sweeper ────────────────────────────────────────────────────────────────

// Sweeper runs ResolveExpired on a fixed interval.
type Sweeper struct {
	engine   *Engine
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper creates a sweeper. A non-positive interval defaults to one minute.
func NewSweeper(engine *Engine, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		engine:   engine,
		interval: interval,
		logger:   logger.With("component", "sweeper"),
	}
}

// Run sweeps immediately and then on every tick until ctx is cancelled.
// Call in a goroutine.
func (s *Sweeper) Run(ctx context.Context) {
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	changed, err := s.engine.ResolveExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("sweep failed", "err", err)
		}
		return
	}
	if len(changed) > 0 {
		s.logger.Info("sweep resolved proposals", "count", len(changed))
	}
}
