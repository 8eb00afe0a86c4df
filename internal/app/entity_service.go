package app

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/apm/internal/core/gate"
	"github.com/example/apm/internal/core/workflow"
	"github.com/example/apm/internal/errs"
	"github.com/example/apm/internal/ports/primary"
	"github.com/example/apm/internal/ports/secondary"
)

// EntityServiceImpl implements the EntityService interface.
type EntityServiceImpl struct {
	entities secondary.EntityRepository
	sessions secondary.SessionRepository
	codeRefs secondary.CodeRefRepository
	facts    secondary.PluginFactsRepository
	contexts primary.ContextService
	logger   *zap.Logger
	now      func() time.Time
}

var _ primary.EntityService = (*EntityServiceImpl)(nil)

// NewEntityService creates a new EntityService with injected dependencies.
func NewEntityService(
	entities secondary.EntityRepository,
	sessions secondary.SessionRepository,
	codeRefs secondary.CodeRefRepository,
	facts secondary.PluginFactsRepository,
	contexts primary.ContextService,
	logger *zap.Logger,
) *EntityServiceImpl {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EntityServiceImpl{
		entities: entities,
		sessions: sessions,
		codeRefs: codeRefs,
		facts:    facts,
		contexts: contexts,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateProject creates a new project.
func (s *EntityServiceImpl) CreateProject(ctx context.Context, req primary.CreateProjectRequest) (*primary.Project, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, errs.Invalid("name", "must not be empty")
	}

	nextID, err := s.entities.GetNextProjectID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to generate project ID: %w", err)
	}

	record := &secondary.ProjectRecord{
		ID:          nextID,
		Name:        req.Name,
		Description: req.Description,
		RootPath:    req.RootPath,
	}
	if err := s.entities.CreateProject(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	return s.GetProject(ctx, nextID)
}

// GetProject retrieves a project by ID.
func (s *EntityServiceImpl) GetProject(ctx context.Context, id string) (*primary.Project, error) {
	record, err := s.entities.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	return recordToProject(record), nil
}

// ListProjects lists all projects.
func (s *EntityServiceImpl) ListProjects(ctx context.Context) ([]*primary.Project, error) {
	records, err := s.entities.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	out := make([]*primary.Project, len(records))
	for i, r := range records {
		out[i] = recordToProject(r)
	}
	return out, nil
}

// CreateWorkItem creates a new work item in draft status and D1 phase.
func (s *EntityServiceImpl) CreateWorkItem(ctx context.Context, req primary.CreateWorkItemRequest) (*primary.WorkItem, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, errs.Invalid("title", "must not be empty")
	}
	itemType, err := gate.ParseWorkItemType(req.Type)
	if err != nil {
		return nil, errs.Invalid("type", "%v", err)
	}
	if _, err := s.entities.GetProject(ctx, req.ProjectID); err != nil {
		return nil, fmt.Errorf("project %s: %w", req.ProjectID, err)
	}

	nextID, err := s.entities.GetNextWorkItemID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to generate work item ID: %w", err)
	}

	record := &secondary.WorkItemRecord{
		ID:                 nextID,
		ProjectID:          req.ProjectID,
		Title:              req.Title,
		Type:               string(itemType),
		Status:             string(workflow.StatusDraft),
		Phase:              string(workflow.PhaseD1),
		AcceptanceCriteria: []secondary.CriterionRecord{},
		Risks:              []string{},
	}
	if err := s.entities.CreateWorkItem(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create work item: %w", err)
	}
	s.invalidate(ctx, workflow.KindProject, req.ProjectID)

	return s.GetWorkItem(ctx, nextID)
}

// GetWorkItem retrieves a work item by ID.
func (s *EntityServiceImpl) GetWorkItem(ctx context.Context, id string) (*primary.WorkItem, error) {
	record, err := s.entities.GetWorkItem(ctx, id)
	if err != nil {
		return nil, err
	}
	return recordToWorkItem(record), nil
}

// ListWorkItems lists work items with optional filters.
func (s *EntityServiceImpl) ListWorkItems(ctx context.Context, projectID, status string) ([]*primary.WorkItem, error) {
	if status != "" {
		if _, err := workflow.ParseStatus(status); err != nil {
			return nil, errs.Invalid("status", "%v", err)
		}
	}
	records, err := s.entities.ListWorkItems(ctx, secondary.WorkItemFilters{ProjectID: projectID, Status: status})
	if err != nil {
		return nil, fmt.Errorf("failed to list work items: %w", err)
	}
	out := make([]*primary.WorkItem, len(records))
	for i, r := range records {
		out[i] = recordToWorkItem(r)
	}
	return out, nil
}

// UpdateWorkItem updates the gate-relevant fields of a work item.
func (s *EntityServiceImpl) UpdateWorkItem(ctx context.Context, req primary.UpdateWorkItemRequest) (*primary.WorkItem, error) {
	record, err := s.entities.GetWorkItem(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		if strings.TrimSpace(*req.Title) == "" {
			return nil, errs.Invalid("title", "must not be empty")
		}
		record.Title = *req.Title
	}
	if req.BusinessContext != nil {
		record.BusinessContext = *req.BusinessContext
	}
	if req.AcceptanceCriteria != nil {
		record.AcceptanceCriteria = make([]secondary.CriterionRecord, 0, len(*req.AcceptanceCriteria))
		for _, c := range *req.AcceptanceCriteria {
			if strings.TrimSpace(c.Text) == "" {
				continue
			}
			record.AcceptanceCriteria = append(record.AcceptanceCriteria, secondary.CriterionRecord{Text: c.Text, Met: c.Met})
		}
	}
	if req.Risks != nil {
		record.Risks = make([]string, 0, len(*req.Risks))
		for _, r := range *req.Risks {
			if strings.TrimSpace(r) != "" {
				record.Risks = append(record.Risks, r)
			}
		}
	}
	if req.TestsPassing != nil {
		record.TestsPassing = *req.TestsPassing
	}
	if req.Retrospective != nil {
		record.Retrospective = *req.Retrospective
	}

	if err := s.entities.UpdateWorkItem(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to update work item: %w", err)
	}
	s.invalidate(ctx, workflow.KindWorkItem, req.ID)

	return s.GetWorkItem(ctx, req.ID)
}

// CreateTask creates a new task in draft status.
func (s *EntityServiceImpl) CreateTask(ctx context.Context, req primary.CreateTaskRequest) (*primary.Task, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, errs.Invalid("title", "must not be empty")
	}
	taskType, err := gate.ParseTaskType(req.Type)
	if err != nil {
		return nil, errs.Invalid("type", "%v", err)
	}
	if err := validateEffort(req.EffortHours); err != nil {
		return nil, err
	}
	if _, err := s.entities.GetWorkItem(ctx, req.WorkItemID); err != nil {
		return nil, fmt.Errorf("work item %s: %w", req.WorkItemID, err)
	}

	nextID, err := s.entities.GetNextTaskID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to generate task ID: %w", err)
	}

	record := &secondary.TaskRecord{
		ID:          nextID,
		WorkItemID:  req.WorkItemID,
		Title:       req.Title,
		Type:        string(taskType),
		Status:      string(workflow.StatusDraft),
		EffortHours: req.EffortHours,
	}
	if err := s.entities.CreateTask(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	s.invalidate(ctx, workflow.KindWorkItem, req.WorkItemID)

	return s.GetTask(ctx, nextID)
}

// GetTask retrieves a task by ID.
func (s *EntityServiceImpl) GetTask(ctx context.Context, id string) (*primary.Task, error) {
	record, err := s.entities.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	return recordToTask(record), nil
}

// ListTasks lists the tasks of a work item.
func (s *EntityServiceImpl) ListTasks(ctx context.Context, workItemID, status string) ([]*primary.Task, error) {
	if status != "" {
		if _, err := workflow.ParseStatus(status); err != nil {
			return nil, errs.Invalid("status", "%v", err)
		}
	}
	records, err := s.entities.ListTasks(ctx, secondary.TaskFilters{WorkItemID: workItemID, Status: status})
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	out := make([]*primary.Task, len(records))
	for i, r := range records {
		out[i] = recordToTask(r)
	}
	return out, nil
}

// SetTaskEffort sets a task's effort estimate in hours.
func (s *EntityServiceImpl) SetTaskEffort(ctx context.Context, id string, hours float64) (*primary.Task, error) {
	if err := validateEffort(hours); err != nil {
		return nil, err
	}
	record, err := s.entities.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	record.EffortHours = hours
	if err := s.entities.UpdateTask(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	s.invalidate(ctx, workflow.KindTask, id)

	return s.GetTask(ctx, id)
}

// AddSession records an agent session summary against a work item.
func (s *EntityServiceImpl) AddSession(ctx context.Context, req primary.AddSessionRequest) (string, error) {
	if strings.TrimSpace(req.Summary) == "" {
		return "", errs.Invalid("summary", "must not be empty")
	}
	if _, err := s.entities.GetWorkItem(ctx, req.WorkItemID); err != nil {
		return "", fmt.Errorf("work item %s: %w", req.WorkItemID, err)
	}
	if req.TaskID != "" {
		t, err := s.entities.GetTask(ctx, req.TaskID)
		if err != nil {
			return "", fmt.Errorf("task %s: %w", req.TaskID, err)
		}
		if t.WorkItemID != req.WorkItemID {
			return "", errs.Invalid("task_id", "task %s belongs to work item %s", t.ID, t.WorkItemID)
		}
	}

	id := uuid.NewString()
	if err := s.sessions.AddSession(ctx, &secondary.SessionRecord{
		ID:         id,
		WorkItemID: req.WorkItemID,
		TaskID:     req.TaskID,
		Role:       normalizeRole(req.Role),
		Summary:    req.Summary,
		EndedAt:    s.now().UTC(),
	}); err != nil {
		return "", fmt.Errorf("failed to record session: %w", err)
	}
	s.invalidate(ctx, workflow.KindWorkItem, req.WorkItemID)

	return id, nil
}

// AddCodeRef associates a source path with an entity.
func (s *EntityServiceImpl) AddCodeRef(ctx context.Context, req primary.AddCodeRefRequest) error {
	kind, err := workflow.ParseKind(req.Kind)
	if err != nil {
		return errs.Invalid("kind", "%v", err)
	}
	path := strings.TrimSpace(req.Path)
	if path == "" {
		return errs.Invalid("path", "must not be empty")
	}
	if err := s.exists(ctx, kind, req.ID); err != nil {
		return err
	}

	if err := s.codeRefs.AddCodeRef(ctx, &secondary.CodeRefRecord{
		EntityKind: string(kind),
		EntityID:   req.ID,
		Path:       path,
		Note:       req.Note,
	}); err != nil {
		return fmt.Errorf("failed to add code reference: %w", err)
	}
	s.invalidate(ctx, kind, req.ID)
	return nil
}

// SetPluginFact records a detected-technology fact for a project.
func (s *EntityServiceImpl) SetPluginFact(ctx context.Context, req primary.SetPluginFactRequest) error {
	tech := strings.TrimSpace(req.Technology)
	if tech == "" {
		return errs.Invalid("technology", "must not be empty")
	}
	if math.IsNaN(req.Confidence) || req.Confidence < 0 || req.Confidence > 1 {
		return errs.Invalid("confidence", "%v is outside [0,1]", req.Confidence)
	}
	if _, err := s.entities.GetProject(ctx, req.ProjectID); err != nil {
		return fmt.Errorf("project %s: %w", req.ProjectID, err)
	}

	if err := s.facts.SetPluginFact(ctx, req.ProjectID, tech, req.Confidence, req.Description); err != nil {
		return fmt.Errorf("failed to record plugin fact: %w", err)
	}
	s.invalidate(ctx, workflow.KindProject, req.ProjectID)
	return nil
}

// ============================================================================
// Helpers
// ============================================================================

func (s *EntityServiceImpl) exists(ctx context.Context, kind workflow.EntityKind, id string) error {
	var err error
	switch kind {
	case workflow.KindProject:
		_, err = s.entities.GetProject(ctx, id)
	case workflow.KindWorkItem:
		_, err = s.entities.GetWorkItem(ctx, id)
	case workflow.KindTask:
		_, err = s.entities.GetTask(ctx, id)
	}
	if err != nil {
		return fmt.Errorf("%s %s: %w", kind, id, err)
	}
	return nil
}

// invalidate drops cached context after a write. The write already
// succeeded, so a failure here is logged rather than returned.
func (s *EntityServiceImpl) invalidate(ctx context.Context, kind workflow.EntityKind, id string) {
	if s.contexts == nil {
		return
	}
	if err := s.contexts.Invalidate(ctx, string(kind), id); err != nil {
		s.logger.Warn("failed to invalidate context",
			zap.String("kind", string(kind)),
			zap.String("id", id),
			zap.Error(err))
	}
}

func validateEffort(hours float64) error {
	if math.IsNaN(hours) || math.IsInf(hours, 0) || hours < 0 {
		return errs.Invalid("effort_hours", "%v must be a non-negative number", hours)
	}
	return nil
}

func recordToProject(r *secondary.ProjectRecord) *primary.Project {
	return &primary.Project{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		RootPath:    r.RootPath,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func recordToWorkItem(r *secondary.WorkItemRecord) *primary.WorkItem {
	criteria := make([]primary.Criterion, len(r.AcceptanceCriteria))
	for i, c := range r.AcceptanceCriteria {
		criteria[i] = primary.Criterion{Text: c.Text, Met: c.Met}
	}
	risks := append([]string{}, r.Risks...)
	return &primary.WorkItem{
		ID:                 r.ID,
		ProjectID:          r.ProjectID,
		Title:              r.Title,
		Type:               r.Type,
		Status:             r.Status,
		Phase:              r.Phase,
		BusinessContext:    r.BusinessContext,
		AcceptanceCriteria: criteria,
		Risks:              risks,
		TestsPassing:       r.TestsPassing,
		Retrospective:      r.Retrospective,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

func recordToTask(r *secondary.TaskRecord) *primary.Task {
	return &primary.Task{
		ID:          r.ID,
		WorkItemID:  r.WorkItemID,
		Title:       r.Title,
		Type:        r.Type,
		Status:      r.Status,
		EffortHours: r.EffortHours,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}
