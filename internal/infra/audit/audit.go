// Package audit builds and dispatches governance audit events.
//
// Sinks are fire-and-forget: a failing sink logs and moves on, it never fails
// the governance operation that produced the event.
package audit

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/heritage-dao/heritage/internal/domain"
)

// NewEvent stamps an event with a fresh id and its content hash.
func NewEvent(typ domain.AuditEventType, actor domain.Principal, targetID uint64, details string, sev domain.AuditSeverity, at time.Time) domain.AuditEvent {
	ev := domain.AuditEvent{
		ID:        uuid.NewString(),
		Type:      typ,
		Actor:     actor,
		TargetID:  targetID,
		Details:   details,
		Severity:  sev,
		Timestamp: at,
	}
	ev.DataHash = Hash(ev)
	return ev
}

// Hash is the BLAKE3 digest of the event's type, actor, timestamp and
// details, hex-encoded.
func Hash(ev domain.AuditEvent) string {
	sum := blake3.Sum256(fmt.Appendf(nil, "%s:%s:%d:%s", ev.Type, ev.Actor, ev.Timestamp.UnixNano(), ev.Details))
	return hex.EncodeToString(sum[:])
}

// Verify reports whether ev.DataHash matches its content.
func Verify(ev domain.AuditEvent) bool {
	return ev.DataHash == Hash(ev)
}

// Checked is a stored event together with the result of re-hashing it.
type Checked struct {
	domain.AuditEvent
	Verified bool `json:"verified"`
}

// Check verifies each event's data hash.
func Check(events []domain.AuditEvent) []Checked {
	out := make([]Checked, len(events))
	for i, ev := range events {
		out[i] = Checked{AuditEvent: ev, Verified: Verify(ev)}
	}
	return out
}

// ─── Log Sink ───────────────────────────────────────────────────────────────

// LogSink writes audit events to a structured logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink over logger, or slog.Default() when nil.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger.With("component", "audit")}
}

// Record logs ev at a level derived from its severity.
func (s *LogSink) Record(ctx context.Context, ev domain.AuditEvent) {
	level := slog.LevelInfo
	switch ev.Severity {
	case domain.SeverityWarning:
		level = slog.LevelWarn
	case domain.SeverityCritical, domain.SeveritySecurityAlert:
		level = slog.LevelError
	}
	s.logger.Log(ctx, level, ev.Details,
		"event_id", ev.ID,
		"event_type", ev.Type,
		"actor", ev.Actor,
		"target_id", ev.TargetID,
		"severity", ev.Severity,
		"data_hash", ev.DataHash,
	)
}

// ─── Fanout ─────────────────────────────────────────────────────────────────

// Fanout delivers each event to every attached sink, in order.
type Fanout struct {
	mu    sync.RWMutex
	sinks []domain.AuditSink
}

// NewFanout creates a fanout over the given sinks. Nil sinks are skipped.
func NewFanout(sinks ...domain.AuditSink) *Fanout {
	f := &Fanout{}
	for _, s := range sinks {
		f.Add(s)
	}
	return f
}

// Add attaches another sink.
func (f *Fanout) Add(s domain.AuditSink) {
	if s == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sinks = append(f.sinks, s)
}

// Record forwards ev to all sinks.
func (f *Fanout) Record(ctx context.Context, ev domain.AuditEvent) {
	f.mu.RLock()
	sinks := f.sinks
	f.mu.RUnlock()
	for _, s := range sinks {
		s.Record(ctx, ev)
	}
}

// ─── Memory Sink ────────────────────────────────────────────────────────────

// MemorySink keeps events in memory for inspection in tests.
type MemorySink struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

// Record appends ev.
func (m *MemorySink) Record(_ context.Context, ev domain.AuditEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
}

// Events returns a copy of everything recorded so far.
func (m *MemorySink) Events() []domain.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.AuditEvent, len(m.events))
	copy(out, m.events)
	return out
}
