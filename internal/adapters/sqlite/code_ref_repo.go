package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/apm/internal/ports/secondary"
)

// CodeRefRepository implements secondary.CodeRefRepository with SQLite.
type CodeRefRepository struct {
	db *sql.DB
}

// NewCodeRefRepository creates a new SQLite code reference repository.
func NewCodeRefRepository(db *sql.DB) *CodeRefRepository {
	return &CodeRefRepository{db: db}
}

// AddCodeRef associates a path with an entity. Adding the same path twice is a no-op.
func (r *CodeRefRepository) AddCodeRef(ctx context.Context, ref *secondary.CodeRefRecord) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO code_refs (entity_kind, entity_id, path, note, created_at) VALUES (?, ?, ?, ?, ?)",
		ref.EntityKind, ref.EntityID, ref.Path, nullString(ref.Note), formatTime(timeNow()),
	)
	if err != nil {
		return fmt.Errorf("failed to add code ref: %w", err)
	}
	return nil
}

// ListCodeRefs returns the references attached to an entity in insertion order.
func (r *CodeRefRepository) ListCodeRefs(ctx context.Context, kind, id string) ([]*secondary.CodeRefRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT entity_kind, entity_id, path, note, created_at FROM code_refs WHERE entity_kind = ? AND entity_id = ? ORDER BY id ASC",
		kind, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list code refs: %w", err)
	}
	defer rows.Close()

	refs := []*secondary.CodeRefRecord{}
	for rows.Next() {
		var (
			note      sql.NullString
			createdAt string
		)
		ref := &secondary.CodeRefRecord{}
		if err := rows.Scan(&ref.EntityKind, &ref.EntityID, &ref.Path, &note, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan code ref: %w", err)
		}
		ref.Note = note.String
		ref.CreatedAt = displayTime(createdAt)
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}
