package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/apm/internal/errs"
	"github.com/example/apm/internal/ports/secondary"
)

// EntityRepository implements secondary.EntityRepository by combining the
// three entity repositories with the transactional status write.
type EntityRepository struct {
	*ProjectRepository
	*WorkItemRepository
	*TaskRepository
	db *sql.DB
}

var _ secondary.EntityRepository = (*EntityRepository)(nil)

// NewEntityRepository creates a new SQLite entity repository.
func NewEntityRepository(db *sql.DB) *EntityRepository {
	return &EntityRepository{
		ProjectRepository:  NewProjectRepository(db),
		WorkItemRepository: NewWorkItemRepository(db),
		TaskRepository:     NewTaskRepository(db),
		db:                 db,
	}
}

// TransitionStatus sets status (and phase, for work items) only if the stored
// status still equals from. The read and the write share one BEGIN IMMEDIATE
// transaction.
func (r *EntityRepository) TransitionStatus(ctx context.Context, kind, id, from, to, phase string) error {
	var table string
	switch kind {
	case "work_item":
		table = "work_items"
	case "task":
		table = "tasks"
	default:
		return errs.Invalid("kind", "%s has no status", kind)
	}

	return runInTransaction(ctx, r.db, func(conn *sql.Conn) error {
		var current string
		err := conn.QueryRowContext(ctx, "SELECT status FROM "+table+" WHERE id = ?", id).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%s %s %w", kind, id, errs.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to read %s status: %w", kind, err)
		}
		if current != from {
			return fmt.Errorf("%s %s is %s, expected %s: %w", kind, id, current, from, errs.ErrStatusConflict)
		}

		now := formatTime(timeNow())
		if table == "work_items" && phase != "" {
			_, err = conn.ExecContext(ctx,
				"UPDATE work_items SET status = ?, phase = ?, updated_at = ? WHERE id = ?",
				to, phase, now, id)
		} else {
			_, err = conn.ExecContext(ctx,
				"UPDATE "+table+" SET status = ?, updated_at = ? WHERE id = ?",
				to, now, id)
		}
		if err != nil {
			return fmt.Errorf("failed to update %s status: %w", kind, err)
		}
		return nil
	})
}
