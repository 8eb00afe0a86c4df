package secondary

import (
	"context"
	"time"

	"github.com/example/apm/internal/core/confidence"
)

// PluginFactsProvider is the detection collaborator. Facts are opaque; only
// their count and confidences feed scoring.
type PluginFactsProvider interface {
	GetPluginFacts(ctx context.Context, projectID string) (map[string]confidence.TechnologyFact, error)
}

// RuleRef is an opaque rule reference passed through to the caller.
type RuleRef struct {
	ID       string `json:"id" yaml:"id"`
	Title    string `json:"title" yaml:"title"`
	Severity string `json:"severity,omitempty" yaml:"severity"`
	Body     string `json:"body,omitempty" yaml:"body"`
}

// RulesProvider is the rules collaborator.
type RulesProvider interface {
	// ApplicableRules returns the rules for a task type and phase. Either may be empty.
	ApplicableRules(ctx context.Context, taskType, phase string) ([]RuleRef, error)
}

// ProcedureProvider is the agent-definition collaborator.
type ProcedureProvider interface {
	// ProcedureText returns the standard operating procedure for a role.
	// The bool is false when the role has no procedure.
	ProcedureText(ctx context.Context, role string) (string, bool, error)
}

// ResolvedRef reports whether a referenced source artifact exists.
type ResolvedRef struct {
	Path     string
	Resolved bool
	Size     int64
}

// AmalgamationResolver resolves code references against the project sources.
type AmalgamationResolver interface {
	Resolve(ctx context.Context, root string, paths []string) ([]ResolvedRef, error)
}

// CacheEntry is a durable cache row.
type CacheEntry struct {
	Key       string
	Payload   []byte
	CreatedAt time.Time
	ExpiresAt time.Time
}

// CacheStore is the durable tier of the context cache.
type CacheStore interface {
	// GetCacheEntry returns the entry for key, or nil if absent.
	GetCacheEntry(ctx context.Context, key string) (*CacheEntry, error)

	// PutCacheEntry inserts or replaces the entry for its key.
	PutCacheEntry(ctx context.Context, entry *CacheEntry) error

	// DeleteCacheEntries removes every entry whose key starts with prefix.
	DeleteCacheEntries(ctx context.Context, prefix string) (int, error)

	// PurgeExpired removes entries that expired at or before now.
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

// ContextCache is the narrow cache interface the assembly service depends on.
// Values are serialized payloads and are always replaced wholesale.
type ContextCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration)
	InvalidatePrefix(ctx context.Context, prefix string)
}
