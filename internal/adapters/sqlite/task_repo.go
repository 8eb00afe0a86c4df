package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/apm/internal/errs"
	"github.com/example/apm/internal/ports/secondary"
)

// TaskRepository implements secondary.TaskRepository with SQLite.
type TaskRepository struct {
	db *sql.DB
}

// NewTaskRepository creates a new SQLite task repository.
func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// scanTask scans a task row into a TaskRecord.
func scanTask(s scanner) (*secondary.TaskRecord, error) {
	var createdAt, updatedAt string

	record := &secondary.TaskRecord{}
	err := s.Scan(
		&record.ID, &record.WorkItemID, &record.Title, &record.Type, &record.Status,
		&record.EffortHours, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.CreatedAt = displayTime(createdAt)
	record.UpdatedAt = displayTime(updatedAt)
	return record, nil
}

const taskSelectCols = "id, work_item_id, title, type, status, effort_hours, created_at, updated_at"

// CreateTask persists a new task.
func (r *TaskRepository) CreateTask(ctx context.Context, task *secondary.TaskRecord) error {
	status := task.Status
	if status == "" {
		status = "draft"
	}
	now := formatTime(timeNow())
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO tasks (id, work_item_id, title, type, status, effort_hours, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		task.ID, task.WorkItemID, task.Title, task.Type, status, task.EffortHours, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// GetTask retrieves a task by its ID.
func (r *TaskRepository) GetTask(ctx context.Context, id string) (*secondary.TaskRecord, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+taskSelectCols+" FROM tasks WHERE id = ?", id)

	record, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return record, nil
}

// ListTasks retrieves tasks matching the given filters.
func (r *TaskRepository) ListTasks(ctx context.Context, filters secondary.TaskFilters) ([]*secondary.TaskRecord, error) {
	query := "SELECT " + taskSelectCols + " FROM tasks WHERE 1=1"
	args := []any{}

	if filters.WorkItemID != "" {
		query += " AND work_item_id = ?"
		args = append(args, filters.WorkItemID)
	}
	if filters.Status != "" {
		query += " AND status = ?"
		args = append(args, filters.Status)
	}
	query += " ORDER BY id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*secondary.TaskRecord
	for rows.Next() {
		record, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, record)
	}
	return tasks, rows.Err()
}

// UpdateTask updates the title, type and effort of a task. Status is left alone.
func (r *TaskRepository) UpdateTask(ctx context.Context, task *secondary.TaskRecord) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE tasks SET title = ?, type = ?, effort_hours = ?, updated_at = ? WHERE id = ?",
		task.Title, task.Type, task.EffortHours, formatTime(timeNow()), task.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("task %s %w", task.ID, errs.ErrNotFound)
	}
	return nil
}

// GetNextTaskID returns the next available task ID.
func (r *TaskRepository) GetNextTaskID(ctx context.Context) (string, error) {
	return nextID(ctx, r.db, "tasks", "TASK")
}
