// Package sqlite_test contains integration tests for SQLite repositories.
//
// # Schema Protection
//
// This file is the single point where the database schema is loaded for tests.
// All setup functions use db.GetSchemaSQL() so tests run against the
// authoritative schema. Do not hardcode CREATE TABLE statements in test files;
// use setupTestDB() and the seed* helpers instead.
package sqlite_test

import (
	"database/sql"
	"testing"

	"github.com/example/apm/internal/db"
)

// setupTestDB creates an in-memory database with the authoritative schema.
// A single connection keeps every query on the same in-memory database.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	return setupTestDBWithDriver(t, db.DriverCGO)
}

func setupTestDBWithDriver(t *testing.T, driver string) *sql.DB {
	t.Helper()

	dsn, err := db.DSN(driver, db.MemoryPath)
	if err != nil {
		t.Fatalf("failed to build dsn: %v", err)
	}
	testDB, err := sql.Open(driver, dsn)
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	testDB.SetMaxOpenConns(1)

	if _, err := testDB.Exec(db.GetSchemaSQL()); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() {
		testDB.Close()
	})

	return testDB
}

const seedTime = "2026-01-01T00:00:00.000000000Z"

// seedProject inserts a test project and returns its ID.
func seedProject(t *testing.T, db *sql.DB, id, name string) string {
	t.Helper()
	if id == "" {
		id = "PROJ-001"
	}
	if name == "" {
		name = "Test Project"
	}
	_, err := db.Exec("INSERT INTO projects (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)", id, name, seedTime, seedTime)
	if err != nil {
		t.Fatalf("failed to seed project: %v", err)
	}
	return id
}

// seedWorkItem inserts a draft feature work item and returns its ID.
func seedWorkItem(t *testing.T, db *sql.DB, id, projectID, title string) string {
	t.Helper()
	if id == "" {
		id = "WI-001"
	}
	if projectID == "" {
		projectID = "PROJ-001"
	}
	if title == "" {
		title = "Test Work Item"
	}
	_, err := db.Exec(
		"INSERT INTO work_items (id, project_id, title, type, created_at, updated_at) VALUES (?, ?, ?, 'feature', ?, ?)",
		id, projectID, title, seedTime, seedTime,
	)
	if err != nil {
		t.Fatalf("failed to seed work item: %v", err)
	}
	return id
}

// seedTask inserts a draft task and returns its ID.
func seedTask(t *testing.T, db *sql.DB, id, workItemID, taskType string) string {
	t.Helper()
	if id == "" {
		id = "TASK-001"
	}
	if workItemID == "" {
		workItemID = "WI-001"
	}
	if taskType == "" {
		taskType = "implementation"
	}
	_, err := db.Exec(
		"INSERT INTO tasks (id, work_item_id, title, type, effort_hours, created_at, updated_at) VALUES (?, ?, 'Test Task', ?, 2, ?, ?)",
		id, workItemID, taskType, seedTime, seedTime,
	)
	if err != nil {
		t.Fatalf("failed to seed task: %v", err)
	}
	return id
}

// seedHierarchy inserts PROJ-001 > WI-001 > TASK-001.
func seedHierarchy(t *testing.T, db *sql.DB) {
	t.Helper()
	seedProject(t, db, "", "")
	seedWorkItem(t, db, "", "", "")
	seedTask(t, db, "", "", "")
}
