package primary

import (
	"context"
	"time"

	"github.com/example/apm/internal/core/confidence"
	"github.com/example/apm/internal/core/sixw"
	"github.com/example/apm/internal/ports/secondary"
)

// ContextService defines the primary port for context assembly.
type ContextService interface {
	// Assemble returns the assembled context for an entity, served from cache when fresh.
	Assemble(ctx context.Context, req AssembleRequest) (*ContextPayload, error)

	// Refresh discards any cached payload for the entity and role, then assembles anew.
	Refresh(ctx context.Context, req AssembleRequest) (*ContextPayload, error)

	// Invalidate drops cached payloads for the entity and all of its descendants.
	Invalidate(ctx context.Context, kind, id string) error

	// Confidence returns the role-less confidence of an entity's assembled context.
	Confidence(ctx context.Context, kind, id string) (*confidence.Payload, error)

	// GetSixW returns the context stored at exactly one level (empty if unset).
	GetSixW(ctx context.Context, kind, id string) (*sixw.Context, error)

	// SetSixW replaces the context stored at one level and invalidates affected payloads.
	SetSixW(ctx context.Context, req SetSixWRequest) error
}

// AssembleRequest identifies the payload to assemble.
type AssembleRequest struct {
	Kind string
	ID   string
	Role string // Optional
}

// SetSixWRequest replaces one level's 6W context.
type SetSixWRequest struct {
	Kind    string
	ID      string
	Context sixw.Context
}

// ContextPayload is the assembled, scored and role-filtered context handed to agents.
type ContextPayload struct {
	EntityID               string                               `json:"entity_id"`
	EntityKind             string                               `json:"entity_kind"`
	Role                   string                               `json:"role,omitempty"`
	MergedContext          sixw.Merged                          `json:"merged_context"`
	Confidence             confidence.Payload                   `json:"confidence"`
	Freshness              confidence.Freshness                 `json:"freshness"`
	PluginFacts            map[string]confidence.TechnologyFact `json:"plugin_facts"`
	AmalgamationRefs       []AmalgamationRef                    `json:"amalgamation_refs"`
	InjectedProcedureText  string                               `json:"injected_procedure_text,omitempty"`
	RecentSessionSummaries []SessionSummary                     `json:"recent_session_summaries"`
	ApplicableRules        []secondary.RuleRef                  `json:"applicable_rules"`
	FilteredFields         []sixw.Field                         `json:"filtered_fields"`
	Degraded               []string                             `json:"degraded"`
	AssembledAt            time.Time                            `json:"assembled_at"`
}

// AmalgamationRef is a code reference and whether it resolved.
type AmalgamationRef struct {
	Path     string `json:"path"`
	Level    string `json:"level"`
	Resolved bool   `json:"resolved"`
}

// SessionSummary is a prior agent session carried forward for continuity.
type SessionSummary struct {
	ID      string    `json:"id"`
	Role    string    `json:"role,omitempty"`
	Summary string    `json:"summary"`
	EndedAt time.Time `json:"ended_at"`
}
