package primary

import (
	"context"
	"time"

	"github.com/example/apm/internal/core/gate"
)

// WorkflowService defines the primary port for status transitions and gate checks.
type WorkflowService interface {
	// Transition moves an entity to the requested status if the state machine
	// and every correlated phase gate allow it. Illegal and gate-blocked
	// outcomes are results, not errors.
	Transition(ctx context.Context, req TransitionRequest) (*TransitionResult, error)

	// ValidatePhase runs a phase gate without mutating anything.
	ValidatePhase(ctx context.Context, kind, id, phase string) (*gate.Result, error)

	// ListEvents returns recorded workflow events, newest first.
	ListEvents(ctx context.Context, filters EventFilters) ([]*Event, error)
}

// TransitionRequest asks for a status change.
type TransitionRequest struct {
	Kind      string
	ID        string
	Requested string
}

// Transition outcome reasons.
const (
	ReasonIllegal     = "illegal"
	ReasonGateBlocked = "gate_blocked"
)

// TransitionResult is the structured outcome of a transition request.
type TransitionResult struct {
	OK        bool         `json:"ok"`
	Reason    string       `json:"reason,omitempty"`
	Detail    string       `json:"detail,omitempty"`
	Current   string       `json:"current"`
	Requested string       `json:"requested"`
	Missing   []string     `json:"missing,omitempty"`
	Warnings  []string     `json:"warnings,omitempty"`
	Gate      *gate.Result `json:"gate,omitempty"`
	Entity    *EntityState `json:"entity,omitempty"`
}

// EntityState is the persisted lifecycle state of a work item or task.
type EntityState struct {
	Kind   string `json:"kind"`
	ID     string `json:"id"`
	Title  string `json:"title"`
	Type   string `json:"type"`
	Status string `json:"status"`
	Phase  string `json:"phase,omitempty"`
}

// EventFilters contains filter options for listing events.
type EventFilters struct {
	Kind  string
	ID    string
	Limit int
}

// Event is a recorded workflow event.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	EntityKind string    `json:"entity_kind"`
	EntityID   string    `json:"entity_id"`
	FromStatus string    `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status,omitempty"`
	Phase      string    `json:"phase,omitempty"`
	Actor      string    `json:"actor,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
