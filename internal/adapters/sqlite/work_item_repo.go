package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/example/apm/internal/errs"
	"github.com/example/apm/internal/ports/secondary"
)

// WorkItemRepository implements secondary.WorkItemRepository with SQLite.
type WorkItemRepository struct {
	db *sql.DB
}

// NewWorkItemRepository creates a new SQLite work item repository.
func NewWorkItemRepository(db *sql.DB) *WorkItemRepository {
	return &WorkItemRepository{db: db}
}

const workItemSelectCols = "id, project_id, title, type, status, phase, business_context, acceptance_criteria, risks, tests_passing, retrospective, created_at, updated_at"

func scanWorkItem(s scanner) (*secondary.WorkItemRecord, error) {
	var (
		criteria      string
		risks         string
		retrospective sql.NullString
		createdAt     string
		updatedAt     string
	)
	record := &secondary.WorkItemRecord{}
	err := s.Scan(
		&record.ID, &record.ProjectID, &record.Title, &record.Type, &record.Status, &record.Phase,
		&record.BusinessContext, &criteria, &risks, &record.TestsPassing, &retrospective,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.AcceptanceCriteria = []secondary.CriterionRecord{}
	if err := json.Unmarshal([]byte(criteria), &record.AcceptanceCriteria); err != nil {
		return nil, fmt.Errorf("work item %s has malformed acceptance criteria: %w", record.ID, err)
	}
	record.Risks = []string{}
	if err := json.Unmarshal([]byte(risks), &record.Risks); err != nil {
		return nil, fmt.Errorf("work item %s has malformed risks: %w", record.ID, err)
	}
	record.Retrospective = retrospective.String
	record.CreatedAt = displayTime(createdAt)
	record.UpdatedAt = displayTime(updatedAt)
	return record, nil
}

func encodeGateFields(wi *secondary.WorkItemRecord) (criteria, risks string, err error) {
	c := wi.AcceptanceCriteria
	if c == nil {
		c = []secondary.CriterionRecord{}
	}
	rs := wi.Risks
	if rs == nil {
		rs = []string{}
	}
	cb, err := json.Marshal(c)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode acceptance criteria: %w", err)
	}
	rb, err := json.Marshal(rs)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode risks: %w", err)
	}
	return string(cb), string(rb), nil
}

// CreateWorkItem persists a new work item.
func (r *WorkItemRepository) CreateWorkItem(ctx context.Context, wi *secondary.WorkItemRecord) error {
	criteria, risks, err := encodeGateFields(wi)
	if err != nil {
		return err
	}
	status, phase := wi.Status, wi.Phase
	if status == "" {
		status = "draft"
	}
	if phase == "" {
		phase = "D1"
	}

	now := formatTime(timeNow())
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO work_items (id, project_id, title, type, status, phase, business_context, acceptance_criteria, risks, tests_passing, retrospective, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		wi.ID, wi.ProjectID, wi.Title, wi.Type, status, phase, wi.BusinessContext,
		criteria, risks, wi.TestsPassing, nullString(wi.Retrospective), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create work item: %w", err)
	}
	return nil
}

// GetWorkItem retrieves a work item by ID.
func (r *WorkItemRepository) GetWorkItem(ctx context.Context, id string) (*secondary.WorkItemRecord, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+workItemSelectCols+" FROM work_items WHERE id = ?", id)
	record, err := scanWorkItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("work item %s %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get work item: %w", err)
	}
	return record, nil
}

// ListWorkItems retrieves work items matching the given filters.
func (r *WorkItemRepository) ListWorkItems(ctx context.Context, filters secondary.WorkItemFilters) ([]*secondary.WorkItemRecord, error) {
	query := "SELECT " + workItemSelectCols + " FROM work_items WHERE 1=1"
	args := []any{}

	if filters.ProjectID != "" {
		query += " AND project_id = ?"
		args = append(args, filters.ProjectID)
	}
	if filters.Status != "" {
		query += " AND status = ?"
		args = append(args, filters.Status)
	}
	query += " ORDER BY id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list work items: %w", err)
	}
	defer rows.Close()

	var items []*secondary.WorkItemRecord
	for rows.Next() {
		record, err := scanWorkItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan work item: %w", err)
		}
		items = append(items, record)
	}
	return items, rows.Err()
}

// UpdateWorkItem replaces the descriptive and gate fields. Status and phase
// are left alone.
func (r *WorkItemRepository) UpdateWorkItem(ctx context.Context, wi *secondary.WorkItemRecord) error {
	criteria, risks, err := encodeGateFields(wi)
	if err != nil {
		return err
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE work_items SET title = ?, business_context = ?, acceptance_criteria = ?, risks = ?,
		 tests_passing = ?, retrospective = ?, updated_at = ? WHERE id = ?`,
		wi.Title, wi.BusinessContext, criteria, risks, wi.TestsPassing,
		nullString(wi.Retrospective), formatTime(timeNow()), wi.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update work item: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("work item %s %w", wi.ID, errs.ErrNotFound)
	}
	return nil
}

// GetNextWorkItemID returns the next available work item ID.
func (r *WorkItemRepository) GetNextWorkItemID(ctx context.Context) (string, error) {
	return nextID(ctx, r.db, "work_items", "WI")
}
