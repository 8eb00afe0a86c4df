// Package sqlite contains SQLite implementations of repository interfaces.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/apm/internal/db"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// timeNow is the clock used for created_at/updated_at. Tests may replace it.
var timeNow = time.Now

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		// Rows written by hand or by older tools.
		t, err = time.Parse(time.RFC3339Nano, s)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// displayTime renders a stored timestamp as RFC3339 for records that carry strings.
func displayTime(s string) string {
	t, err := parseTime(s)
	if err != nil {
		return s
	}
	return t.Format(time.RFC3339)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// execer is satisfied by *sql.DB, *sql.Tx and *sql.Conn.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const (
	beginRetries = 5
	beginBackoff = 10 * time.Millisecond
)

// runInTransaction runs fn on a dedicated connection inside BEGIN IMMEDIATE,
// so the write lock is taken before any read. The transaction commits when
// fn returns nil and rolls back otherwise, including on panic.
func runInTransaction(ctx context.Context, database *sql.DB, fn func(conn *sql.Conn) error) error {
	conn, err := database.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection for transaction: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if err := beginImmediate(ctx, conn); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	if err := fn(conn); err != nil {
		return err
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true
	return nil
}

func beginImmediate(ctx context.Context, conn *sql.Conn) error {
	backoff := beginBackoff
	var err error
	for attempt := 0; attempt < beginRetries; attempt++ {
		if _, err = conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err == nil {
			return nil
		}
		if !db.IsBusy(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return err
}

// nextID returns PREFIX-NNN one past the highest numeric suffix in table.
func nextID(ctx context.Context, q execer, table, prefix string) (string, error) {
	var maxID int
	query := fmt.Sprintf(
		"SELECT COALESCE(MAX(CAST(SUBSTR(id, %d) AS INTEGER)), 0) FROM %s",
		len(prefix)+2, table,
	)
	if err := q.QueryRowContext(ctx, query).Scan(&maxID); err != nil {
		return "", fmt.Errorf("failed to get next %s ID: %w", strings.ToLower(prefix), err)
	}
	return fmt.Sprintf("%s-%03d", prefix, maxID+1), nil
}
