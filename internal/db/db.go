// Package db opens the SQLite store and owns its schema.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Supported database/sql driver names.
const (
	DriverCGO  = "sqlite3" // github.com/mattn/go-sqlite3
	DriverPure = "sqlite"  // modernc.org/sqlite
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

const busyTimeoutMillis = 5000

// DSN builds the connection string for a driver. Foreign keys are enforced
// and writers wait on a busy database instead of failing immediately.
func DSN(driver, path string) (string, error) {
	name := "file:" + path
	if path == MemoryPath {
		name = "file::memory:"
	}
	switch driver {
	case DriverCGO:
		return fmt.Sprintf("%s?_foreign_keys=on&_busy_timeout=%d", name, busyTimeoutMillis), nil
	case DriverPure:
		return fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(%d)", name, busyTimeoutMillis), nil
	}
	return "", fmt.Errorf("unsupported database driver %q", driver)
}

// Open opens the database at path, creating its directory if needed, and
// brings the schema up to date.
func Open(ctx context.Context, driver, path string, logger *zap.Logger) (*sql.DB, error) {
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn, err := DSN(driver, path)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == MemoryPath {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	if err := InitSchema(ctx, db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return db, nil
}

// InitSchema creates the schema on a fresh database or migrates an existing one.
func InitSchema(ctx context.Context, db *sql.DB, logger *zap.Logger) error {
	var tableCount int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='projects'",
	).Scan(&tableCount)
	if err != nil {
		return err
	}

	if tableCount == 0 {
		// Fresh install: create the modern schema directly and mark every
		// migration as applied.
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, SchemaSQL); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		if err := ensureVersionTable(ctx, db); err != nil {
			return err
		}
		for _, m := range migrations {
			if _, err := db.ExecContext(ctx, "INSERT OR IGNORE INTO schema_version (version) VALUES (?)", m.Version); err != nil {
				return err
			}
		}
		return nil
	}

	_, err = RunMigrations(ctx, db, logger)
	return err
}

// IsBusy reports whether err is SQLite's "database is locked" condition,
// as surfaced by either driver.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}
