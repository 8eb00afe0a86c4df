package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/example/apm/internal/ports/primary"
)

// EntityAdapter translates CLI operations to EntityService calls.
type EntityAdapter struct {
	service primary.EntityService
	out     io.Writer
}

// NewEntityAdapter creates a new EntityAdapter with the given service.
func NewEntityAdapter(service primary.EntityService, out io.Writer) *EntityAdapter {
	return &EntityAdapter{service: service, out: out}
}

// CreateProject creates a new project.
func (a *EntityAdapter) CreateProject(ctx context.Context, req primary.CreateProjectRequest) error {
	p, err := a.service.CreateProject(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s Created project %s: %s\n", okMark, p.ID, p.Name)
	return nil
}

// ListProjects lists all projects.
func (a *EntityAdapter) ListProjects(ctx context.Context) error {
	projects, err := a.service.ListProjects(ctx)
	if err != nil {
		return fmt.Errorf("failed to list projects: %w", err)
	}
	if len(projects) == 0 {
		fmt.Fprintln(a.out, "No projects found")
		return nil
	}

	fmt.Fprintf(a.out, "\n%-12s %-24s %s\n", "ID", "NAME", "ROOT")
	fmt.Fprintln(a.out, rule)
	for _, p := range projects {
		fmt.Fprintf(a.out, "%-12s %-24s %s\n", p.ID, p.Name, orDash(p.RootPath))
	}
	fmt.Fprintln(a.out)
	return nil
}

// ShowProject displays a single project.
func (a *EntityAdapter) ShowProject(ctx context.Context, id string, asJSON bool) error {
	p, err := a.service.GetProject(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get project: %w", err)
	}
	if asJSON {
		return writeJSON(a.out, p)
	}

	fmt.Fprintf(a.out, "\nProject: %s\n", p.ID)
	fmt.Fprintf(a.out, "Name:    %s\n", p.Name)
	if p.Description != "" {
		fmt.Fprintf(a.out, "Description: %s\n", p.Description)
	}
	fmt.Fprintf(a.out, "Root:    %s\n", orDash(p.RootPath))
	fmt.Fprintf(a.out, "Created: %s\n\n", p.CreatedAt)
	return nil
}

// CreateWorkItem creates a new work item.
func (a *EntityAdapter) CreateWorkItem(ctx context.Context, req primary.CreateWorkItemRequest) error {
	wi, err := a.service.CreateWorkItem(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s Created work item %s: %s [%s, %s/%s]\n", okMark, wi.ID, wi.Title, wi.Type, wi.Status, wi.Phase)
	return nil
}

// ListWorkItems lists work items with optional project and status filters.
func (a *EntityAdapter) ListWorkItems(ctx context.Context, projectID, status string) error {
	items, err := a.service.ListWorkItems(ctx, projectID, status)
	if err != nil {
		return fmt.Errorf("failed to list work items: %w", err)
	}
	if len(items) == 0 {
		fmt.Fprintln(a.out, "No work items found")
		return nil
	}

	fmt.Fprintf(a.out, "\n%-10s %-10s %-10s %-6s %-15s %s\n", "ID", "PROJECT", "STATUS", "PHASE", "TYPE", "TITLE")
	fmt.Fprintln(a.out, rule)
	for _, wi := range items {
		fmt.Fprintf(a.out, "%-10s %-10s %-10s %-6s %-15s %s\n", wi.ID, wi.ProjectID, wi.Status, wi.Phase, wi.Type, wi.Title)
	}
	fmt.Fprintln(a.out)
	return nil
}

// ShowWorkItem displays a work item with its gate fields.
func (a *EntityAdapter) ShowWorkItem(ctx context.Context, id string, asJSON bool) error {
	wi, err := a.service.GetWorkItem(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get work item: %w", err)
	}
	if asJSON {
		return writeJSON(a.out, wi)
	}

	fmt.Fprintf(a.out, "\nWork item: %s\n", wi.ID)
	fmt.Fprintf(a.out, "Title:     %s\n", wi.Title)
	fmt.Fprintf(a.out, "Project:   %s\n", wi.ProjectID)
	fmt.Fprintf(a.out, "Type:      %s\n", wi.Type)
	fmt.Fprintf(a.out, "Status:    %s (phase %s)\n", wi.Status, wi.Phase)
	fmt.Fprintf(a.out, "Business context: %s\n", orDash(wi.BusinessContext))

	fmt.Fprintf(a.out, "Acceptance criteria (%d):\n", len(wi.AcceptanceCriteria))
	for _, c := range wi.AcceptanceCriteria {
		mark := "[ ]"
		if c.Met {
			mark = "[x]"
		}
		fmt.Fprintf(a.out, "  %s %s\n", mark, c.Text)
	}
	fmt.Fprintf(a.out, "Risks (%d):\n", len(wi.Risks))
	for _, r := range wi.Risks {
		fmt.Fprintf(a.out, "  - %s\n", r)
	}
	fmt.Fprintf(a.out, "Tests passing: %t\n", wi.TestsPassing)
	if wi.Retrospective != "" {
		fmt.Fprintf(a.out, "Retrospective: %s\n", wi.Retrospective)
	}
	fmt.Fprintln(a.out)
	return nil
}

// UpdateWorkItem applies a partial update to a work item.
func (a *EntityAdapter) UpdateWorkItem(ctx context.Context, req primary.UpdateWorkItemRequest) error {
	wi, err := a.service.UpdateWorkItem(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s Updated work item %s\n", okMark, wi.ID)
	return nil
}

// CreateTask creates a new task.
func (a *EntityAdapter) CreateTask(ctx context.Context, req primary.CreateTaskRequest) error {
	task, err := a.service.CreateTask(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s Created task %s: %s [%s, %gh]\n", okMark, task.ID, task.Title, task.Type, task.EffortHours)
	return nil
}

// ListTasks lists the tasks of a work item.
func (a *EntityAdapter) ListTasks(ctx context.Context, workItemID, status string) error {
	tasks, err := a.service.ListTasks(ctx, workItemID, status)
	if err != nil {
		return fmt.Errorf("failed to list tasks: %w", err)
	}
	if len(tasks) == 0 {
		fmt.Fprintln(a.out, "No tasks found")
		return nil
	}

	fmt.Fprintf(a.out, "\n%-10s %-10s %-10s %-15s %-7s %s\n", "ID", "WORK ITEM", "STATUS", "TYPE", "EFFORT", "TITLE")
	fmt.Fprintln(a.out, rule)
	for _, t := range tasks {
		fmt.Fprintf(a.out, "%-10s %-10s %-10s %-15s %-7s %s\n", t.ID, t.WorkItemID, t.Status, t.Type, fmt.Sprintf("%gh", t.EffortHours), t.Title)
	}
	fmt.Fprintln(a.out)
	return nil
}

// ShowTask displays a single task.
func (a *EntityAdapter) ShowTask(ctx context.Context, id string, asJSON bool) error {
	t, err := a.service.GetTask(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get task: %w", err)
	}
	if asJSON {
		return writeJSON(a.out, t)
	}

	fmt.Fprintf(a.out, "\nTask:      %s\n", t.ID)
	fmt.Fprintf(a.out, "Title:     %s\n", t.Title)
	fmt.Fprintf(a.out, "Work item: %s\n", t.WorkItemID)
	fmt.Fprintf(a.out, "Type:      %s\n", t.Type)
	fmt.Fprintf(a.out, "Status:    %s\n", t.Status)
	fmt.Fprintf(a.out, "Effort:    %gh\n\n", t.EffortHours)
	return nil
}

// SetTaskEffort updates a task's effort estimate.
func (a *EntityAdapter) SetTaskEffort(ctx context.Context, id string, hours float64) error {
	t, err := a.service.SetTaskEffort(ctx, id, hours)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s Task %s effort set to %gh\n", okMark, t.ID, t.EffortHours)
	return nil
}

// AddSession records an agent session summary.
func (a *EntityAdapter) AddSession(ctx context.Context, req primary.AddSessionRequest) error {
	id, err := a.service.AddSession(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s Recorded session %s on %s\n", okMark, id, req.WorkItemID)
	return nil
}

// AddCodeRef attaches a code reference to an entity.
func (a *EntityAdapter) AddCodeRef(ctx context.Context, req primary.AddCodeRefRequest) error {
	if err := a.service.AddCodeRef(ctx, req); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s Referenced %s from %s %s\n", okMark, req.Path, req.Kind, req.ID)
	return nil
}

// SetPluginFact records a technology fact for a project.
func (a *EntityAdapter) SetPluginFact(ctx context.Context, req primary.SetPluginFactRequest) error {
	if err := a.service.SetPluginFact(ctx, req); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s %s: %s detected with confidence %.2f\n", okMark, req.ProjectID, req.Technology, req.Confidence)
	return nil
}
