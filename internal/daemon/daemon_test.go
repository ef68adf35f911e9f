package daemon

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/heritage-dao/heritage/internal/domain"
	"github.com/heritage-dao/heritage/internal/infra/governance"
)

const testRoster = `
users:
  - principal: alice
    role: Curator
    verification_level: FullyVerified
    permissions:
      can_vote: true
      can_create_proposals: true
      voting_weight: 2
artifacts:
  - id: 1
    title: Bronze mirror
    status: PendingVerification
    verification_level: Unverified
`

func testConfig(t *testing.T, backend string) Config {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Storage.Backend = backend
	cfg.Storage.Dir = filepath.Join(dir, "data")
	cfg.Roster.File = filepath.Join(dir, "roster.yaml")
	if err := os.WriteFile(cfg.Roster.File, []byte(testRoster), 0o600); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewWithLogger_Backends(t *testing.T) {
	for _, backend := range []string{BackendMemory, BackendSQLite, BackendBadger} {
		t.Run(backend, func(t *testing.T) {
			d, err := NewWithLogger(testConfig(t, backend), quietLogger())
			if err != nil {
				t.Fatalf("NewWithLogger() error: %v", err)
			}
			defer d.Close()

			if (d.DB != nil) != (backend == BackendSQLite) {
				t.Errorf("DB set = %v for backend %s", d.DB != nil, backend)
			}
			if err := d.Store.Ping(context.Background()); err != nil {
				t.Errorf("Ping() error: %v", err)
			}
			if !d.Directory.Exists(context.Background(), 1) {
				t.Error("roster artifact not seeded")
			}

			id, err := d.Engine.CreateProposal(context.Background(), "alice", governance.CreateProposalRequest{
				Type:                domain.VerifyArtifact,
				ArtifactID:          func() *uint64 { v := uint64(1); return &v }(),
				Title:               "Verify the bronze mirror",
				Description:         "Metallurgical analysis and excavation records support the attribution.",
				VotingDurationHours: 24,
			})
			if err != nil {
				t.Fatalf("CreateProposal() error: %v", err)
			}
			p, err := d.Engine.GetProposal(context.Background(), id)
			if err != nil {
				t.Fatalf("GetProposal() error: %v", err)
			}
			// One eligible voter, 60% quorum, truncated.
			if p.QuorumRequired != 0 {
				t.Errorf("QuorumRequired = %d, want 0", p.QuorumRequired)
			}

			statuses := d.Health.RunOnce(context.Background())
			for _, s := range statuses {
				if !s.Healthy {
					t.Errorf("check %s unhealthy: %s", s.Name, s.Error)
				}
			}
		})
	}
}

func TestNewWithLogger_SQLiteAuditLog(t *testing.T) {
	d, err := NewWithLogger(testConfig(t, BackendSQLite), quietLogger())
	if err != nil {
		t.Fatalf("NewWithLogger() error: %v", err)
	}
	defer d.Close()

	id, err := d.Engine.AddComment(context.Background(), "alice", 1, "hello", nil)
	if err == nil {
		t.Fatalf("AddComment on missing proposal returned id %d", id)
	}

	req := governance.CreateProposalRequest{
		Type:                domain.RequestExpertReview,
		Title:               "Request a second opinion",
		Description:         "The glaze composition is unusual for the period and needs expert review.",
		VotingDurationHours: 12,
	}
	pid, err := d.Engine.CreateProposal(context.Background(), "alice", req)
	if err != nil {
		t.Fatalf("CreateProposal() error: %v", err)
	}
	events, err := d.DB.RecentAudit(context.Background(), pid, 10)
	if err != nil {
		t.Fatalf("RecentAudit() error: %v", err)
	}
	if len(events) != 1 || events[0].Type != domain.AuditProposalCreation {
		t.Errorf("audit log = %+v", events)
	}
}

func TestNewWithLogger_MissingRosterIsEmpty(t *testing.T) {
	cfg := testConfig(t, BackendMemory)
	cfg.Roster.File = filepath.Join(t.TempDir(), "absent.yaml")
	d, err := NewWithLogger(cfg, quietLogger())
	if err != nil {
		t.Fatalf("NewWithLogger() error: %v", err)
	}
	defer d.Close()
	if len(d.Directory.Users()) != 0 {
		t.Error("directory should be empty without a roster")
	}
}

func TestNewWithLogger_BadRoster(t *testing.T) {
	cfg := testConfig(t, BackendMemory)
	if err := os.WriteFile(cfg.Roster.File, []byte("users:\n  - role: Expert\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewWithLogger(cfg, quietLogger()); err == nil {
		t.Error("roster without principal should fail")
	}
}

func TestNewWithLogger_UnknownBackend(t *testing.T) {
	cfg := testConfig(t, "postgres")
	if _, err := NewWithLogger(cfg, quietLogger()); err == nil {
		t.Error("unknown backend should fail")
	}
}

func TestClose_Idempotent(t *testing.T) {
	d, err := NewWithLogger(testConfig(t, BackendMemory), quietLogger())
	if err != nil {
		t.Fatalf("NewWithLogger() error: %v", err)
	}
	d.Close()
	d.Close()
}

func TestServe_ClosesStoreAfterShutdown(t *testing.T) {
	cfg := testConfig(t, BackendSQLite)
	cfg.API.Port = 0
	d, err := NewWithLogger(cfg, quietLogger())
	if err != nil {
		t.Fatalf("NewWithLogger() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := d.Serve(ctx); err != nil {
		t.Fatalf("Serve() error: %v", err)
	}
	if d.Store != nil {
		t.Error("store should be closed once Serve returns")
	}
}
