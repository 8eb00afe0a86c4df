// Package cache implements the two-tier context cache: a bounded in-process
// LRU in front of a durable store. Values are serialized payloads; entries are
// only ever replaced wholesale.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
)

// DefaultMaxEntries bounds the in-process tier.
const DefaultMaxEntries = 1024

// Option configures a cache during construction.
type Option func(*options)

type options struct {
	now        func() time.Time
	maxEntries int
}

// WithClock overrides the timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.now = clock
		}
	}
}

// WithMaxEntries overrides the in-process capacity.
func WithMaxEntries(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxEntries = n
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now, maxEntries: DefaultMaxEntries}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type memEntry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is the in-process tier. Safe for concurrent use.
type Memory struct {
	mu   sync.Mutex
	lru  *lru.Cache
	keys map[string]struct{}
	now  func() time.Time
}

// NewMemory creates an empty in-process cache.
func NewMemory(opts ...Option) *Memory {
	o := buildOptions(opts)
	m := &Memory{
		lru:  lru.New(o.maxEntries),
		keys: make(map[string]struct{}),
		now:  o.now,
	}
	m.lru.OnEvicted = func(key lru.Key, _ interface{}) {
		delete(m.keys, key.(string))
	}
	return m
}

// Get returns a copy of the value for key if present and unexpired.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.lru.Get(key)
	if !ok {
		return nil, false
	}
	e := v.(memEntry)
	if !m.now().Before(e.expiresAt) {
		m.lru.Remove(key)
		return nil, false
	}
	return clone(e.value), true
}

// Put stores a copy of value for ttl.
func (m *Memory) Put(_ context.Context, key string, value []byte, ttl time.Duration) {
	m.putUntil(key, value, m.now().Add(ttl))
}

func (m *Memory) putUntil(key string, value []byte, expiresAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lru.Add(key, memEntry{value: clone(value), expiresAt: expiresAt})
	m.keys[key] = struct{}{}
}

// InvalidatePrefix removes every entry whose key starts with prefix.
func (m *Memory) InvalidatePrefix(_ context.Context, prefix string) {
	m.invalidate(prefix)
}

func (m *Memory) invalidate(prefix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	var doomed []string
	for k := range m.keys {
		if strings.HasPrefix(k, prefix) {
			doomed = append(doomed, k)
		}
	}
	for _, k := range doomed {
		m.lru.Remove(k)
	}
	return len(doomed)
}

// Len returns the number of entries, expired or not.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lru.Len()
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
