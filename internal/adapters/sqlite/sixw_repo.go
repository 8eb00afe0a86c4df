package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/example/apm/internal/ports/secondary"
)

// SixWRepository implements secondary.SixWRepository with SQLite.
type SixWRepository struct {
	db *sql.DB
}

// NewSixWRepository creates a new SQLite 6W repository.
func NewSixWRepository(db *sql.DB) *SixWRepository {
	return &SixWRepository{db: db}
}

// GetSixW returns the stored context for an entity, or nil if none was set.
func (r *SixWRepository) GetSixW(ctx context.Context, kind, id string) (*secondary.SixWRecord, error) {
	var payload, updatedAt string
	err := r.db.QueryRowContext(ctx,
		"SELECT context, updated_at FROM six_w_contexts WHERE entity_kind = ? AND entity_id = ?",
		kind, id,
	).Scan(&payload, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get 6W context: %w", err)
	}

	record := &secondary.SixWRecord{EntityKind: kind, EntityID: id}
	if err := json.Unmarshal([]byte(payload), &record.Context); err != nil {
		return nil, fmt.Errorf("6W context for %s %s is malformed: %w", kind, id, err)
	}
	record.Context.Normalize()
	if record.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return record, nil
}

// PutSixW replaces the stored context for an entity.
func (r *SixWRepository) PutSixW(ctx context.Context, record *secondary.SixWRecord) error {
	payload, err := json.Marshal(record.Context)
	if err != nil {
		return fmt.Errorf("failed to encode 6W context: %w", err)
	}
	updatedAt := record.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = timeNow()
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO six_w_contexts (entity_kind, entity_id, context, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(entity_kind, entity_id) DO UPDATE SET context = excluded.context, updated_at = excluded.updated_at`,
		record.EntityKind, record.EntityID, string(payload), formatTime(updatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to store 6W context: %w", err)
	}
	return nil
}
