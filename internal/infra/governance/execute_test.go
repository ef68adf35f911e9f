package governance

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/heritage-dao/heritage/internal/domain"
)

func TestExecuteProposal_VerifyArtifact(t *testing.T) {
	env := newTestEngine(t)
	p := passedProposal(t, env, validRequest())

	res, err := env.e.ExecuteProposal(context.Background(), "alice", p.ID)
	if err != nil {
		t.Fatalf("ExecuteProposal() error: %v", err)
	}
	if !strings.HasPrefix(res.Message, "Proposal executed successfully: ") {
		t.Errorf("Message = %q", res.Message)
	}
	if res.Status != domain.StatusExecuted || reload(t, env, p.ID).Status != domain.StatusExecuted {
		t.Errorf("status not Executed")
	}

	a, ok := env.dir.Artifact(1)
	if !ok {
		t.Fatal("artifact 1 missing")
	}
	if a.Status != domain.ArtifactVerified || a.VerificationLevel != domain.VerificationDaoVerified {
		t.Errorf("artifact = %+v, want Verified/DaoVerified", a)
	}
}

func TestExecuteProposal_DisputeArtifact(t *testing.T) {
	env := newTestEngine(t)
	req := validRequest()
	req.Type = domain.DisputeArtifact
	p := passedProposal(t, env, req)

	if _, err := env.e.ExecuteProposal(context.Background(), "alice", p.ID); err != nil {
		t.Fatalf("ExecuteProposal() error: %v", err)
	}
	a, _ := env.dir.Artifact(1)
	if a.Status != domain.ArtifactDisputed {
		t.Errorf("artifact status = %s, want Disputed", a.Status)
	}
}

func TestExecuteProposal_NotPassed(t *testing.T) {
	env := newTestEngine(t)
	p := mustCreate(t, env, validRequest())

	_, err := env.e.ExecuteProposal(context.Background(), "alice", p.ID)
	if !errors.Is(err, domain.ErrNotPassed) {
		t.Fatalf("err = %v, want ErrNotPassed", err)
	}
	if got := reload(t, env, p.ID).Status; got != domain.StatusActive {
		t.Errorf("status = %s, want unchanged Active", got)
	}

	if _, err := env.e.ExecuteProposal(context.Background(), "alice", 99); !errors.Is(err, domain.ErrProposalNotFound) {
		t.Errorf("missing proposal err = %v", err)
	}
}

func TestExecuteProposal_LazyExpiry(t *testing.T) {
	env := newTestEngine(t)
	p := passedProposal(t, env, validRequest())

	env.at(p.ExecutionDeadline.Add(time.Nanosecond))
	_, err := env.e.ExecuteProposal(context.Background(), "alice", p.ID)
	if !errors.Is(err, domain.ErrDeadlineExceeded) {
		t.Fatalf("err = %v, want ErrDeadlineExceeded", err)
	}

	// The transition is persisted even though the call failed.
	if got := reload(t, env, p.ID).Status; got != domain.StatusExpired {
		t.Errorf("status = %s, want Expired", got)
	}
	var expired bool
	for _, ev := range env.sink.Events() {
		if ev.Type == domain.AuditProposalExpired && ev.TargetID == p.ID {
			expired = true
		}
	}
	if !expired {
		t.Error("no ProposalExpired audit event")
	}

	// A second attempt sees Expired, not Passed.
	if _, err := env.e.ExecuteProposal(context.Background(), "alice", p.ID); !errors.Is(err, domain.ErrNotPassed) {
		t.Errorf("second attempt err = %v, want ErrNotPassed", err)
	}
}

func TestExecuteProposal_AtDeadlineSucceeds(t *testing.T) {
	env := newTestEngine(t)
	p := passedProposal(t, env, validRequest())
	env.at(p.ExecutionDeadline)
	if _, err := env.e.ExecuteProposal(context.Background(), "alice", p.ID); err != nil {
		t.Fatalf("execution at the deadline failed: %v", err)
	}
}

func TestExecuteProposal_Authorization(t *testing.T) {
	env := newTestEngine(t)
	addUser(env.dir, "mod", domain.RoleModerator, 1)
	addUser(env.dir, "bob", domain.RoleExpert, 1)
	p := passedProposal(t, env, validRequest())

	_, err := env.e.ExecuteProposal(context.Background(), "bob", p.ID)
	if !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}
	if got := reload(t, env, p.ID).Status; got != domain.StatusPassed {
		t.Errorf("status = %s after denied execution, want Passed", got)
	}
	if _, err := env.e.ExecuteProposal(context.Background(), "mod", p.ID); err != nil {
		t.Fatalf("moderator execution error: %v", err)
	}
}

func TestExecuteProposal_MissingArtifactFails(t *testing.T) {
	env := newTestEngine(t)
	req := validRequest()
	req.Type = domain.DisputeArtifact
	req.ArtifactID = nil
	p := passedProposal(t, env, req)

	_, err := env.e.ExecuteProposal(context.Background(), "alice", p.ID)
	if !errors.Is(err, domain.ErrExecutionFailed) {
		t.Fatalf("err = %v, want ErrExecutionFailed", err)
	}
	if got := reload(t, env, p.ID).Status; got != domain.StatusFailedExecution {
		t.Errorf("status = %s, want FailedExecution", got)
	}

	events := env.sink.Events()
	last := events[len(events)-1]
	if last.Type != domain.AuditProposalExecution || last.Severity != domain.SeverityWarning {
		t.Errorf("last event = %+v, want Warning execution event", last)
	}
}

func TestDispatch_CoversAllTypes(t *testing.T) {
	env := newTestEngine(t)
	for _, pt := range domain.AllProposalTypes() {
		p := &domain.Proposal{ID: 1, Type: pt, ArtifactID: u64(1)}
		msg, err := env.e.dispatch(context.Background(), p)
		if err != nil {
			t.Errorf("dispatch(%s) error: %v", pt, err)
		}
		if msg == "" {
			t.Errorf("dispatch(%s) returned empty message", pt)
		}
		if q := QuorumPercentage(pt); q < 50 || q > 75 {
			t.Errorf("QuorumPercentage(%s) = %d", pt, q)
		}
	}
	if _, err := env.e.dispatch(context.Background(), &domain.Proposal{Type: domain.ProposalType(99)}); err == nil {
		t.Error("dispatch of unknown type should fail")
	}
}

func TestDispatch_ManualTypes(t *testing.T) {
	env := newTestEngine(t)
	for _, pt := range []domain.ProposalType{
		domain.RequestAdditionalEvidence,
		domain.ProposeConservationAction,
		domain.RequestExpertReview,
		domain.UpdateVerificationCriteria,
		domain.EmergencyIntervention,
	} {
		msg, err := env.e.dispatch(context.Background(), &domain.Proposal{Type: pt})
		if err != nil || msg != "Proposal type requires manual execution" {
			t.Errorf("dispatch(%s) = %q, %v", pt, msg, err)
		}
	}
}

func TestDispatch_NotImplementedTypes(t *testing.T) {
	env := newTestEngine(t)
	addUser(env.dir, "grantee", domain.RoleCommunity, 1)
	for _, pt := range []domain.ProposalType{
		domain.UpdateArtifactStatus,
		domain.GrantUserRole,
		domain.RevokeUserRole,
		domain.UpdateArtifactMetadata,
	} {
		msg, err := env.e.dispatch(context.Background(), &domain.Proposal{Type: pt, ArtifactID: u64(1)})
		want := pt.String() + " execution not implemented; recorded as executed"
		if err != nil || msg != want {
			t.Errorf("dispatch(%s) = %q, %v; want %q", pt, msg, err, want)
		}
	}

	// Nothing is applied to the directory or registry.
	if u, _ := env.dir.Lookup(context.Background(), "grantee"); u.Role != domain.RoleCommunity {
		t.Errorf("grantee role = %s, want unchanged", u.Role)
	}
	if a, _ := env.dir.Artifact(1); a.Status != domain.ArtifactPendingVerification {
		t.Errorf("artifact status = %s, want unchanged", a.Status)
	}
}

func TestExecuteProposal_GrantUserRoleReportsStub(t *testing.T) {
	env := newTestEngine(t)
	req := validRequest()
	req.Type = domain.GrantUserRole
	req.ArtifactID = nil
	p := passedProposal(t, env, req)

	res, err := env.e.ExecuteProposal(context.Background(), "alice", p.ID)
	if err != nil {
		t.Fatalf("ExecuteProposal() error: %v", err)
	}
	if res.Status != domain.StatusExecuted {
		t.Errorf("Status = %s, want Executed", res.Status)
	}
	if want := "Proposal executed successfully: GrantUserRole execution not implemented; recorded as executed"; res.Message != want {
		t.Errorf("Message = %q, want %q", res.Message, want)
	}
}
