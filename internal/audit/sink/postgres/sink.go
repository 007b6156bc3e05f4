// Package postgres persists audit events to the audit_logs table.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"bastion/internal/audit"
)

const insertQuery = `
	INSERT INTO audit_logs (
		id, timestamp, tenant_id, user_id, user_name,
		action, module, target_type, target_id,
		old_value, new_value, status, error_message, duration_ms,
		client_ip, user_agent, request_id
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	ON CONFLICT (id) DO NOTHING
`

// Sink writes audit events through database/sql (lib/pq driver).
// ON CONFLICT DO NOTHING keeps replays of a requeued batch idempotent across
// process generations.
type Sink struct {
	db *sql.DB
}

func New(db *sql.DB) *Sink {
	return &Sink{db: db}
}

func (s *Sink) InsertOne(ctx context.Context, event audit.Event) error {
	if _, err := s.db.ExecContext(ctx, insertQuery, args(event)...); err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// InsertBatch writes the batch in a single transaction; either every event
// is persisted or none is, so the writer can requeue the whole batch on
// failure.
func (s *Sink) InsertBatch(ctx context.Context, events []audit.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin audit batch: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, insertQuery)
	if err != nil {
		return fmt.Errorf("prepare audit insert: %w", err)
	}
	defer stmt.Close()

	for _, event := range events {
		if _, err := stmt.ExecContext(ctx, args(event)...); err != nil {
			return fmt.Errorf("insert audit event %s: %w", event.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit audit batch: %w", err)
	}
	return nil
}

func args(event audit.Event) []any {
	return []any{
		event.ID,
		event.Timestamp,
		event.TenantID,
		nullable(event.UserID),
		nullable(event.UserName),
		event.Action,
		event.Module,
		nullable(event.TargetType),
		nullable(event.TargetID),
		nullable(event.OldValue),
		nullable(event.NewValue),
		string(event.Status),
		nullable(event.ErrorMessage),
		event.DurationMs,
		event.ClientIP,
		nullable(event.UserAgent),
		nullable(event.RequestID),
	}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
