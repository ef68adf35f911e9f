package governance

import (
	"context"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/heritage-dao/heritage/internal/domain"
)

func TestSweeper_RunsImmediately(t *testing.T) {
	env := newTestEngine(t)
	p := mustCreate(t, env, validRequest())
	env.at(p.VotingDeadline.Add(time.Nanosecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	NewSweeper(env.e, time.Hour, nil).Run(ctx)

	if got := reload(t, env, p.ID).Status; got != domain.StatusExpired {
		t.Errorf("status = %s, want Expired", got)
	}
}

func TestSweeper_StopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	env := newTestEngine(t)
	mustCreate(t, env, validRequest())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		NewSweeper(env.e, 5*time.Millisecond, nil).Run(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}

func TestNewSweeper_DefaultInterval(t *testing.T) {
	env := newTestEngine(t)
	s := NewSweeper(env.e, 0, nil)
	if s.interval != time.Minute {
		t.Errorf("interval = %v, want 1m", s.interval)
	}
}
