package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SeedFixtures populates the database with a small demo hierarchy: one
// project, one feature work item in draft and its planned tasks.
func SeedFixtures(ctx context.Context, database *sql.DB) error {
	now := time.Now().UTC().Format("2006-01-02T15:04:05.000000000Z")

	if _, err := database.ExecContext(ctx,
		"INSERT INTO projects (id, name, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		"PROJ-001", "Payments", "Checkout and refunds", now, now,
	); err != nil {
		return fmt.Errorf("seed projects: %w", err)
	}

	if _, err := database.ExecContext(ctx,
		`INSERT INTO work_items (id, project_id, title, type, status, phase, business_context, acceptance_criteria, risks, created_at, updated_at)
		 VALUES (?, ?, ?, 'feature', 'draft', 'D1', ?, ?, ?, ?, ?)`,
		"WI-001", "PROJ-001", "Self-service refunds",
		"Merchants open a support ticket for every refund; self-service refunds cut that queue in half.",
		`[{"text":"refund endpoint exists","met":false},{"text":"refunds are audited","met":false},{"text":"partial refunds work","met":false}]`,
		`["double refunds under retry"]`,
		now, now,
	); err != nil {
		return fmt.Errorf("seed work items: %w", err)
	}

	tasks := []struct {
		id, title, taskType string
		effort              float64
	}{
		{"TASK-001", "Design refund flow", "design", 3},
		{"TASK-002", "Implement refund endpoint", "implementation", 4},
		{"TASK-003", "Refund integration tests", "testing", 4},
		{"TASK-004", "Document refund API", "documentation", 2},
	}
	for _, t := range tasks {
		if _, err := database.ExecContext(ctx,
			"INSERT INTO tasks (id, work_item_id, title, type, status, effort_hours, created_at, updated_at) VALUES (?, 'WI-001', ?, ?, 'draft', ?, ?, ?)",
			t.id, t.title, t.taskType, t.effort, now, now,
		); err != nil {
			return fmt.Errorf("seed tasks: %w", err)
		}
	}

	return nil
}
