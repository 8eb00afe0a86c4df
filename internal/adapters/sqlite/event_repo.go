package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/example/apm/internal/ports/secondary"
)

// EventRepository implements secondary.EventRepository with SQLite.
type EventRepository struct {
	db *sql.DB
}

// NewEventRepository creates a new SQLite event repository.
func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

// AppendEvent persists a single event, assigning an ID and time when unset.
func (r *EventRepository) AppendEvent(ctx context.Context, e *secondary.EventRecord) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = timeNow().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO workflow_events (id, type, entity_kind, entity_id, from_status, to_status, phase, actor, detail, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Type, e.EntityKind, e.EntityID,
		nullString(e.FromStatus), nullString(e.ToStatus), nullString(e.Phase),
		nullString(e.Actor), nullString(e.Detail), formatTime(e.OccurredAt),
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// ListEvents returns events matching the filters, newest first.
func (r *EventRepository) ListEvents(ctx context.Context, filters secondary.EventFilters) ([]*secondary.EventRecord, error) {
	query := `SELECT id, type, entity_kind, entity_id, from_status, to_status, phase, actor, detail, occurred_at
		FROM workflow_events WHERE 1=1`
	args := []any{}

	if filters.EntityKind != "" {
		query += " AND entity_kind = ?"
		args = append(args, filters.EntityKind)
	}
	if filters.EntityID != "" {
		query += " AND entity_id = ?"
		args = append(args, filters.EntityID)
	}
	query += " ORDER BY occurred_at DESC, rowid DESC"
	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	events := []*secondary.EventRecord{}
	for rows.Next() {
		var (
			from, to, phase, actor, detail sql.NullString
			occurredAt                     string
		)
		e := &secondary.EventRecord{}
		if err := rows.Scan(&e.ID, &e.Type, &e.EntityKind, &e.EntityID, &from, &to, &phase, &actor, &detail, &occurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.FromStatus = from.String
		e.ToStatus = to.String
		e.Phase = phase.String
		e.Actor = actor.String
		e.Detail = detail.String
		if e.OccurredAt, err = parseTime(occurredAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
