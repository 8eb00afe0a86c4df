package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/apm/internal/ports/secondary"
)

// SessionRepository implements secondary.SessionRepository with SQLite.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new SQLite session repository.
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// AddSession records a finished agent session.
func (r *SessionRepository) AddSession(ctx context.Context, s *secondary.SessionRecord) error {
	endedAt := s.EndedAt
	if endedAt.IsZero() {
		endedAt = timeNow()
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO agent_sessions (id, work_item_id, task_id, role, summary, ended_at) VALUES (?, ?, ?, ?, ?, ?)",
		s.ID, s.WorkItemID, nullString(s.TaskID), nullString(s.Role), s.Summary, formatTime(endedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to add session: %w", err)
	}
	return nil
}

// RecentSessions returns up to limit sessions for a work item, newest first.
func (r *SessionRepository) RecentSessions(ctx context.Context, workItemID string, limit int) ([]*secondary.SessionRecord, error) {
	if limit <= 0 {
		return []*secondary.SessionRecord{}, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, work_item_id, task_id, role, summary, ended_at FROM agent_sessions
		 WHERE work_item_id = ? ORDER BY ended_at DESC, rowid DESC LIMIT ?`,
		workItemID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []*secondary.SessionRecord{}
	for rows.Next() {
		var (
			taskID  sql.NullString
			role    sql.NullString
			endedAt string
		)
		s := &secondary.SessionRecord{}
		if err := rows.Scan(&s.ID, &s.WorkItemID, &taskID, &role, &s.Summary, &endedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		s.TaskID = taskID.String
		s.Role = role.String
		if s.EndedAt, err = parseTime(endedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
