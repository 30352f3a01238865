package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "market/pkg/domain"
	audit "market/pkg/platform/audit"
	txcontext "market/pkg/platform/tx"
)

// Store implements audit.Store on the audit_events table.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Append inserts the event. Re-delivered events with a known id are ignored.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID, err := uuid.Parse(event.ID)
	if err != nil {
		eventID = uuid.New()
	}
	// Category is always derived from the action.
	category := event.Action.Category()

	var userID *uuid.UUID
	if !event.UserID.IsNil() {
		uid := uuid.UUID(event.UserID)
		userID = &uid
	}

	_, err = s.execer(ctx).ExecContext(ctx, `
		INSERT INTO audit_events (id, category, action, timestamp, user_id, subject, reason, request_id, reference)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`,
		eventID,
		string(category),
		string(event.Action),
		event.Timestamp,
		userID,
		event.Subject,
		event.Reason,
		event.RequestID,
		event.Reference,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListByUser returns events for a specific user, newest first.
func (s *Store) ListByUser(ctx context.Context, userID id.UserID) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, category, action, timestamp, user_id, subject, reason, request_id, reference
		FROM audit_events
		WHERE user_id = $1
		ORDER BY timestamp DESC
	`, uuid.UUID(userID))
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			e        audit.Event
			eventID  uuid.UUID
			category string
			action   string
			uid      uuid.NullUUID
		)
		if err := rows.Scan(&eventID, &category, &action, &e.Timestamp, &uid, &e.Subject, &e.Reason, &e.RequestID, &e.Reference); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.ID = eventID.String()
		e.Category = audit.EventCategory(category)
		e.Action = audit.AuditEvent(action)
		if uid.Valid {
			e.UserID = id.UserID(uid.UUID)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
