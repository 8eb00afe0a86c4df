// Package secondary defines the secondary ports (driven adapters) for the application.
// These are the interfaces through which the application drives external systems.
package secondary

import (
	"context"
	"time"

	"github.com/example/apm/internal/core/sixw"
)

// ProjectRepository defines the secondary port for project persistence.
type ProjectRepository interface {
	// CreateProject persists a new project.
	CreateProject(ctx context.Context, project *ProjectRecord) error

	// GetProject retrieves a project by ID. Returns an error wrapping errs.ErrNotFound if missing.
	GetProject(ctx context.Context, id string) (*ProjectRecord, error)

	// ListProjects retrieves all projects.
	ListProjects(ctx context.Context) ([]*ProjectRecord, error)

	// GetNextProjectID returns the next available project ID.
	GetNextProjectID(ctx context.Context) (string, error)
}

// WorkItemRepository defines the secondary port for work item persistence.
type WorkItemRepository interface {
	// CreateWorkItem persists a new work item.
	CreateWorkItem(ctx context.Context, item *WorkItemRecord) error

	// GetWorkItem retrieves a work item by ID. Returns an error wrapping errs.ErrNotFound if missing.
	GetWorkItem(ctx context.Context, id string) (*WorkItemRecord, error)

	// ListWorkItems retrieves work items matching the given filters.
	ListWorkItems(ctx context.Context, filters WorkItemFilters) ([]*WorkItemRecord, error)

	// UpdateWorkItem updates the descriptive and gate fields of a work item.
	// Status and phase are only changed through TransitionStatus.
	UpdateWorkItem(ctx context.Context, item *WorkItemRecord) error

	// GetNextWorkItemID returns the next available work item ID.
	GetNextWorkItemID(ctx context.Context) (string, error)
}

// TaskRepository defines the secondary port for task persistence.
type TaskRepository interface {
	// CreateTask persists a new task.
	CreateTask(ctx context.Context, task *TaskRecord) error

	// GetTask retrieves a task by ID. Returns an error wrapping errs.ErrNotFound if missing.
	GetTask(ctx context.Context, id string) (*TaskRecord, error)

	// ListTasks retrieves tasks matching the given filters.
	ListTasks(ctx context.Context, filters TaskFilters) ([]*TaskRecord, error)

	// UpdateTask updates the descriptive fields and effort estimate of a task.
	UpdateTask(ctx context.Context, task *TaskRecord) error

	// GetNextTaskID returns the next available task ID.
	GetNextTaskID(ctx context.Context) (string, error)
}

// EntityRepository is the relational store collaborator: all three entity
// kinds plus the transactional status write.
type EntityRepository interface {
	ProjectRepository
	WorkItemRepository
	TaskRepository

	// TransitionStatus atomically sets status (and phase, for work items) if the
	// stored status still equals from. Returns errs.ErrStatusConflict when another
	// writer changed the status first. Empty phase leaves the phase untouched.
	TransitionStatus(ctx context.Context, kind, id, from, to, phase string) error
}

// ProjectRecord represents a project as stored in persistence.
type ProjectRecord struct {
	ID          string
	Name        string
	Description string
	RootPath    string // Empty string means null
	CreatedAt   string
	UpdatedAt   string
}

// CriterionRecord is an acceptance criterion stored on a work item.
type CriterionRecord struct {
	Text string `json:"text"`
	Met  bool   `json:"met"`
}

// WorkItemRecord represents a work item as stored in persistence.
type WorkItemRecord struct {
	ID                 string
	ProjectID          string
	Title              string
	Type               string
	Status             string
	Phase              string
	BusinessContext    string
	AcceptanceCriteria []CriterionRecord
	Risks              []string
	TestsPassing       bool
	Retrospective      string
	CreatedAt          string
	UpdatedAt          string
}

// WorkItemFilters contains filter options for querying work items.
type WorkItemFilters struct {
	ProjectID string
	Status    string
}

// TaskRecord represents a task as stored in persistence.
type TaskRecord struct {
	ID          string
	WorkItemID  string
	Title       string
	Type        string
	Status      string
	EffortHours float64
	CreatedAt   string
	UpdatedAt   string
}

// TaskFilters contains filter options for querying tasks.
type TaskFilters struct {
	WorkItemID string
	Status     string
}

// SixWRepository defines the secondary port for per-level 6W context.
type SixWRepository interface {
	// GetSixW returns the context stored for an entity, or nil if none was ever set.
	GetSixW(ctx context.Context, kind, id string) (*SixWRecord, error)

	// PutSixW replaces the context stored for an entity.
	PutSixW(ctx context.Context, record *SixWRecord) error
}

// SixWRecord is the 6W context of a single project, work item or task.
type SixWRecord struct {
	EntityKind string
	EntityID   string
	Context    sixw.Context
	UpdatedAt  time.Time
}

// SessionRepository defines the secondary port for prior agent session summaries.
type SessionRepository interface {
	// AddSession records a finished agent session.
	AddSession(ctx context.Context, session *SessionRecord) error

	// RecentSessions returns up to limit sessions for a work item, newest first.
	// Ties on EndedAt fall back to insertion order, newest first.
	RecentSessions(ctx context.Context, workItemID string, limit int) ([]*SessionRecord, error)
}

// SessionRecord is a summary of one agent session.
type SessionRecord struct {
	ID         string
	WorkItemID string
	TaskID     string // Empty string means null
	Role       string // Empty string means null
	Summary    string
	EndedAt    time.Time
}

// CodeRefRepository defines the secondary port for amalgamation references.
type CodeRefRepository interface {
	// AddCodeRef associates a source path with an entity.
	AddCodeRef(ctx context.Context, ref *CodeRefRecord) error

	// ListCodeRefs returns the references attached to an entity, in insertion order.
	ListCodeRefs(ctx context.Context, kind, id string) ([]*CodeRefRecord, error)
}

// CodeRefRecord points an entity at a source artifact.
type CodeRefRecord struct {
	EntityKind string
	EntityID   string
	Path       string
	Note       string // Empty string means null
	CreatedAt  string
}

// PluginFactsRepository stores detected-technology facts per project.
type PluginFactsRepository interface {
	PluginFactsProvider

	// SetPluginFact records or replaces one technology fact for a project.
	SetPluginFact(ctx context.Context, projectID, technology string, confidence float64, description string) error
}

// EventRepository persists workflow events recorded by the event sink.
type EventRepository interface {
	// AppendEvent persists a single event.
	AppendEvent(ctx context.Context, event *EventRecord) error

	// ListEvents returns events matching the filters, newest first.
	ListEvents(ctx context.Context, filters EventFilters) ([]*EventRecord, error)
}

// EventRecord is a transition or decision event.
type EventRecord struct {
	ID         string
	Type       string
	EntityKind string
	EntityID   string
	FromStatus string // Empty string means null
	ToStatus   string // Empty string means null
	Phase      string // Empty string means null
	Actor      string // Empty string means null
	Detail     string // Empty string means null
	OccurredAt time.Time
}

// EventFilters contains filter options for querying events.
type EventFilters struct {
	EntityKind string
	EntityID   string
	Limit      int
}

// EventEmitter is the fire-and-forget event sink. Emit never blocks; it
// returns false when the event was rejected or dropped.
type EventEmitter interface {
	Emit(event EventRecord) bool
}
