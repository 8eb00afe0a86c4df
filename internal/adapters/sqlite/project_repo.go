package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/apm/internal/errs"
	"github.com/example/apm/internal/ports/secondary"
)

// ProjectRepository implements secondary.ProjectRepository with SQLite.
type ProjectRepository struct {
	db *sql.DB
}

// NewProjectRepository creates a new SQLite project repository.
func NewProjectRepository(db *sql.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

const projectSelectCols = "id, name, description, root_path, created_at, updated_at"

func scanProject(s scanner) (*secondary.ProjectRecord, error) {
	var (
		desc      sql.NullString
		rootPath  sql.NullString
		createdAt string
		updatedAt string
	)
	record := &secondary.ProjectRecord{}
	if err := s.Scan(&record.ID, &record.Name, &desc, &rootPath, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	record.Description = desc.String
	record.RootPath = rootPath.String
	record.CreatedAt = displayTime(createdAt)
	record.UpdatedAt = displayTime(updatedAt)
	return record, nil
}

// CreateProject persists a new project.
func (r *ProjectRepository) CreateProject(ctx context.Context, p *secondary.ProjectRecord) error {
	now := formatTime(timeNow())
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO projects (id, name, description, root_path, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
		p.ID, p.Name, nullString(p.Description), nullString(p.RootPath), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

// GetProject retrieves a project by ID.
func (r *ProjectRepository) GetProject(ctx context.Context, id string) (*secondary.ProjectRecord, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+projectSelectCols+" FROM projects WHERE id = ?", id)
	record, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %s %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return record, nil
}

// ListProjects retrieves all projects ordered by ID.
func (r *ProjectRepository) ListProjects(ctx context.Context) ([]*secondary.ProjectRecord, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+projectSelectCols+" FROM projects ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*secondary.ProjectRecord
	for rows.Next() {
		record, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, record)
	}
	return projects, rows.Err()
}

// GetNextProjectID returns the next available project ID.
func (r *ProjectRepository) GetNextProjectID(ctx context.Context) (string, error) {
	return nextID(ctx, r.db, "projects", "PROJ")
}
