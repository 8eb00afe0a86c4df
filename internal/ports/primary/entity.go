package primary

import "context"

// EntityService defines the primary port for managing projects, work items and tasks.
// Every write invalidates cached context for the entity and its descendants.
type EntityService interface {
	// CreateProject creates a new project.
	CreateProject(ctx context.Context, req CreateProjectRequest) (*Project, error)

	// GetProject retrieves a project by ID.
	GetProject(ctx context.Context, id string) (*Project, error)

	// ListProjects lists all projects.
	ListProjects(ctx context.Context) ([]*Project, error)

	// CreateWorkItem creates a new work item in draft status and D1 phase.
	CreateWorkItem(ctx context.Context, req CreateWorkItemRequest) (*WorkItem, error)

	// GetWorkItem retrieves a work item by ID.
	GetWorkItem(ctx context.Context, id string) (*WorkItem, error)

	// ListWorkItems lists work items of a project (all projects if empty).
	ListWorkItems(ctx context.Context, projectID, status string) ([]*WorkItem, error)

	// UpdateWorkItem updates the gate-relevant fields of a work item.
	UpdateWorkItem(ctx context.Context, req UpdateWorkItemRequest) (*WorkItem, error)

	// CreateTask creates a new task in draft status.
	CreateTask(ctx context.Context, req CreateTaskRequest) (*Task, error)

	// GetTask retrieves a task by ID.
	GetTask(ctx context.Context, id string) (*Task, error)

	// ListTasks lists the tasks of a work item.
	ListTasks(ctx context.Context, workItemID, status string) ([]*Task, error)

	// SetTaskEffort sets a task's effort estimate in hours.
	SetTaskEffort(ctx context.Context, id string, hours float64) (*Task, error)

	// AddSession records an agent session summary against a work item.
	AddSession(ctx context.Context, req AddSessionRequest) (string, error)

	// AddCodeRef associates a source path with an entity.
	AddCodeRef(ctx context.Context, req AddCodeRefRequest) error

	// SetPluginFact records a detected-technology fact for a project.
	SetPluginFact(ctx context.Context, req SetPluginFactRequest) error
}

// CreateProjectRequest contains parameters for creating a project.
type CreateProjectRequest struct {
	Name        string
	Description string
	RootPath    string // Optional: source root used to resolve code references
}

// CreateWorkItemRequest contains parameters for creating a work item.
type CreateWorkItemRequest struct {
	ProjectID string
	Title     string
	Type      string
}

// UpdateWorkItemRequest updates gate fields. Nil pointers leave fields unchanged.
type UpdateWorkItemRequest struct {
	ID                 string
	Title              *string
	BusinessContext    *string
	AcceptanceCriteria *[]Criterion
	Risks              *[]string
	TestsPassing       *bool
	Retrospective      *string
}

// CreateTaskRequest contains parameters for creating a task.
type CreateTaskRequest struct {
	WorkItemID  string
	Title       string
	Type        string
	EffortHours float64
}

// AddSessionRequest records a session summary.
type AddSessionRequest struct {
	WorkItemID string
	TaskID     string // Optional
	Role       string // Optional
	Summary    string
}

// AddCodeRefRequest attaches a code reference to an entity.
type AddCodeRefRequest struct {
	Kind string
	ID   string
	Path string
	Note string // Optional
}

// SetPluginFactRequest records one technology fact.
type SetPluginFactRequest struct {
	ProjectID   string
	Technology  string
	Confidence  float64
	Description string
}

// Project is the primary port's view of a project.
type Project struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	RootPath    string `json:"root_path,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// Criterion is an acceptance criterion.
type Criterion struct {
	Text string `json:"text"`
	Met  bool   `json:"met"`
}

// WorkItem is the primary port's view of a work item.
type WorkItem struct {
	ID                 string      `json:"id"`
	ProjectID          string      `json:"project_id"`
	Title              string      `json:"title"`
	Type               string      `json:"type"`
	Status             string      `json:"status"`
	Phase              string      `json:"phase"`
	BusinessContext    string      `json:"business_context"`
	AcceptanceCriteria []Criterion `json:"acceptance_criteria"`
	Risks              []string    `json:"risks"`
	TestsPassing       bool        `json:"tests_passing"`
	Retrospective      string      `json:"retrospective,omitempty"`
	CreatedAt          string      `json:"created_at"`
	UpdatedAt          string      `json:"updated_at"`
}

// Task is the primary port's view of a task.
type Task struct {
	ID          string  `json:"id"`
	WorkItemID  string  `json:"work_item_id"`
	Title       string  `json:"title"`
	Type        string  `json:"type"`
	Status      string  `json:"status"`
	EffortHours float64 `json:"effort_hours"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}
