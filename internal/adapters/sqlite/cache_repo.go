package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/apm/internal/ports/secondary"
)

// CacheRepository implements secondary.CacheStore with SQLite. It is the
// durable tier behind the in-process context cache.
type CacheRepository struct {
	db *sql.DB
}

var _ secondary.CacheStore = (*CacheRepository)(nil)

// NewCacheRepository creates a new SQLite cache repository.
func NewCacheRepository(db *sql.DB) *CacheRepository {
	return &CacheRepository{db: db}
}

// GetCacheEntry returns the entry for key, or nil if absent.
func (r *CacheRepository) GetCacheEntry(ctx context.Context, key string) (*secondary.CacheEntry, error) {
	var createdAt, expiresAt string
	entry := &secondary.CacheEntry{Key: key}
	err := r.db.QueryRowContext(ctx,
		"SELECT payload, created_at, expires_at FROM context_cache WHERE key = ?", key,
	).Scan(&entry.Payload, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}
	if entry.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if entry.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, err
	}
	return entry, nil
}

// PutCacheEntry inserts or replaces the entry for its key.
func (r *CacheRepository) PutCacheEntry(ctx context.Context, entry *secondary.CacheEntry) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO context_cache (key, payload, created_at, expires_at) VALUES (?, ?, ?, ?)",
		entry.Key, entry.Payload, formatTime(entry.CreatedAt), formatTime(entry.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("failed to put cache entry: %w", err)
	}
	return nil
}

// DeleteCacheEntries removes every entry whose key starts with prefix.
// The comparison is on a substring, so keys containing LIKE wildcards match literally.
func (r *CacheRepository) DeleteCacheEntries(ctx context.Context, prefix string) (int, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM context_cache WHERE substr(key, 1, ?) = ?",
		len(prefix), prefix,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete cache entries: %w", err)
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}

// PurgeExpired removes entries that expired at or before now.
func (r *CacheRepository) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM context_cache WHERE expires_at <= ?", formatTime(now),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to purge cache: %w", err)
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}
