package audit

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/heritage-dao/heritage/internal/domain"
)

func fixedTime() time.Time {
	return time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
}

func TestNewEvent_HashAndID(t *testing.T) {
	ev := NewEvent(domain.AuditVoteCast, "alice", 3, "vote cast", domain.SeverityInfo, fixedTime())
	if ev.ID == "" {
		t.Fatal("event id should be set")
	}
	if len(ev.DataHash) != 64 {
		t.Errorf("DataHash length = %d, want 64 hex chars", len(ev.DataHash))
	}
	if !Verify(ev) {
		t.Error("Verify() should accept an untouched event")
	}

	ev.Details = "tampered"
	if Verify(ev) {
		t.Error("Verify() should reject a modified event")
	}
}

func TestNewEvent_DistinctIDsSameHash(t *testing.T) {
	a := NewEvent(domain.AuditVoteCast, "alice", 3, "x", domain.SeverityInfo, fixedTime())
	b := NewEvent(domain.AuditVoteCast, "alice", 3, "x", domain.SeverityInfo, fixedTime())
	if a.ID == b.ID {
		t.Error("event ids should be unique")
	}
	if a.DataHash != b.DataHash {
		t.Error("identical content should hash identically")
	}
}

func TestCheck(t *testing.T) {
	good := NewEvent(domain.AuditProposalCreation, "alice", 1, "created", domain.SeverityInfo, fixedTime())
	bad := NewEvent(domain.AuditVoteCast, "bob", 1, "voted", domain.SeverityInfo, fixedTime())
	bad.Actor = "mallory"

	got := Check([]domain.AuditEvent{good, bad})
	if len(got) != 2 {
		t.Fatalf("Check() returned %d rows, want 2", len(got))
	}
	if !got[0].Verified || got[1].Verified {
		t.Errorf("verified = %v, %v; want true, false", got[0].Verified, got[1].Verified)
	}
	if got[1].ID != bad.ID {
		t.Error("Check() should keep the event fields")
	}
}

func TestLogSink_LevelBySeverity(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	sink := NewLogSink(logger)

	sink.Record(context.Background(), NewEvent(domain.AuditProposalExecution, "bob", 1, "execution failed", domain.SeverityWarning, fixedTime()))

	out := buf.String()
	if !strings.Contains(out, "level=WARN") {
		t.Errorf("expected WARN level, got %q", out)
	}
	if !strings.Contains(out, "event_type=ProposalExecution") {
		t.Errorf("expected event_type attr, got %q", out)
	}
}

func TestFanout_DeliversToAll(t *testing.T) {
	a, b := &MemorySink{}, &MemorySink{}
	f := NewFanout(a, nil, b)

	f.Record(context.Background(), NewEvent(domain.AuditCommentAdded, "c", 1, "comment", domain.SeverityInfo, fixedTime()))

	if len(a.Events()) != 1 || len(b.Events()) != 1 {
		t.Errorf("a=%d b=%d, want 1 each", len(a.Events()), len(b.Events()))
	}
}
