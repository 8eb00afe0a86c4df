package cache

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/example/apm/internal/ports/secondary"
)

// Key builds the cache key for an entity and role.
func Key(kind, id, role string) string {
	return fmt.Sprintf("ctx:%s:%s:%s", kind, id, role)
}

// EntityPrefix matches every role's entry for one entity.
func EntityPrefix(kind, id string) string {
	return fmt.Sprintf("ctx:%s:%s:", kind, id)
}

// Tiered fronts a durable CacheStore with the in-process tier. Durable tier
// failures are logged and treated as misses; the cache never fails a caller.
type Tiered struct {
	mem    *Memory
	store  secondary.CacheStore
	logger *zap.Logger
	now    func() time.Time
}

var _ secondary.ContextCache = (*Tiered)(nil)
var _ secondary.ContextCache = (*Memory)(nil)

// NewTiered creates a two-tier cache. A nil store yields a memory-only cache.
func NewTiered(store secondary.CacheStore, logger *zap.Logger, opts ...Option) *Tiered {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := buildOptions(opts)
	return &Tiered{
		mem:    NewMemory(opts...),
		store:  store,
		logger: logger,
		now:    o.now,
	}
}

// Get checks memory, then the durable tier, promoting durable hits.
func (t *Tiered) Get(ctx context.Context, key string) ([]byte, bool) {
	if v, ok := t.mem.Get(ctx, key); ok {
		return v, true
	}
	if t.store == nil {
		return nil, false
	}

	entry, err := t.store.GetCacheEntry(ctx, key)
	if err != nil {
		t.logger.Warn("durable cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if entry == nil || !t.now().Before(entry.ExpiresAt) {
		return nil, false
	}

	t.mem.putUntil(key, entry.Payload, entry.ExpiresAt)
	return clone(entry.Payload), true
}

// Put writes both tiers.
func (t *Tiered) Put(ctx context.Context, key string, value []byte, ttl time.Duration) {
	now := t.now()
	t.mem.putUntil(key, value, now.Add(ttl))
	if t.store == nil {
		return
	}

	err := t.store.PutCacheEntry(ctx, &secondary.CacheEntry{
		Key:       key,
		Payload:   value,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	})
	if err != nil {
		t.logger.Warn("durable cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// InvalidatePrefix removes matching entries from both tiers.
func (t *Tiered) InvalidatePrefix(ctx context.Context, prefix string) {
	n := t.mem.invalidate(prefix)
	if t.store == nil {
		return
	}
	removed, err := t.store.DeleteCacheEntries(ctx, prefix)
	if err != nil {
		t.logger.Warn("durable cache invalidation failed", zap.String("prefix", prefix), zap.Error(err))
		return
	}
	t.logger.Debug("context cache invalidated",
		zap.String("prefix", prefix),
		zap.Int("memory", n),
		zap.Int("durable", removed))
}

// PurgeExpired drops expired rows from the durable tier.
func (t *Tiered) PurgeExpired(ctx context.Context) (int, error) {
	if t.store == nil {
		return 0, nil
	}
	n, err := t.store.PurgeExpired(ctx, t.now())
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired cache entries: %w", err)
	}
	return n, nil
}

// MemoryLen reports the in-process entry count.
func (t *Tiered) MemoryLen() int {
	return t.mem.Len()
}
