package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/heritage-dao/heritage/internal/domain"
)

// ─── Audit Log ──────────────────────────────────────────────────────────────

// Record persists an audit event. Failures are logged, never returned.
func (d *DB) Record(ctx context.Context, ev domain.AuditEvent) {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO audit_log (id, event_type, actor, target_id, details, severity, ts, data_hash)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.Type.String(), string(ev.Actor), ev.TargetID, ev.Details,
		ev.Severity.String(), ev.Timestamp.UnixNano(), ev.DataHash,
	)
	if err != nil {
		d.logger.Warn("audit write failed", "event_id", ev.ID, "err", err)
	}
}

// RecentAudit returns up to limit events, newest first. A non-zero target
// restricts the result to events about that id.
func (d *DB) RecentAudit(ctx context.Context, target uint64, limit int) ([]domain.AuditEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, event_type, actor, target_id, details, severity, ts, data_hash FROM audit_log`
	args := []any{}
	if target != 0 {
		query += ` WHERE target_id = ?`
		args = append(args, target)
	}
	query += ` ORDER BY ts DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	var out []domain.AuditEvent
	for rows.Next() {
		var (
			ev                 domain.AuditEvent
			evType, actor, sev string
			ts                 int64
		)
		if err := rows.Scan(&ev.ID, &evType, &actor, &ev.TargetID, &ev.Details, &sev, &ts, &ev.DataHash); err != nil {
			return nil, err
		}
		if err := ev.Type.UnmarshalText([]byte(evType)); err != nil {
			return nil, err
		}
		if err := ev.Severity.UnmarshalText([]byte(sev)); err != nil {
			return nil, err
		}
		ev.Actor = domain.Principal(actor)
		ev.Timestamp = time.Unix(0, ts).UTC()
		out = append(out, ev)
	}
	return out, rows.Err()
}
