package app

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/apm/internal/errs"
	"github.com/example/apm/internal/ports/primary"
)

type entityHarness struct {
	entities *memEntities
	sessions *memSessions
	refs     *memCodeRefs
	facts    *memFacts
	contexts *stubContexts
	svc      *EntityServiceImpl
}

func newEntityHarness() *entityHarness {
	h := &entityHarness{
		entities: newMemEntities(),
		sessions: &memSessions{},
		refs:     &memCodeRefs{},
		facts:    newMemFacts(),
		contexts: newStubContexts(0.9),
	}
	h.svc = NewEntityService(h.entities, h.sessions, h.refs, h.facts, h.contexts, nil)
	h.svc.now = fixedNow
	return h
}

func TestEntityService_CreateHierarchy(t *testing.T) {
	h := newEntityHarness()
	ctx := context.Background()

	p, err := h.svc.CreateProject(ctx, primary.CreateProjectRequest{Name: "Payments", RootPath: "/src/payments"})
	require.NoError(t, err)
	assert.Equal(t, "PROJ-001", p.ID)

	wi, err := h.svc.CreateWorkItem(ctx, primary.CreateWorkItemRequest{ProjectID: p.ID, Title: "Refunds", Type: "Feature"})
	require.NoError(t, err)
	assert.Equal(t, "draft", wi.Status)
	assert.Equal(t, "D1", wi.Phase)
	assert.Equal(t, "feature", wi.Type)
	assert.NotNil(t, wi.AcceptanceCriteria)
	assert.NotNil(t, wi.Risks)

	task, err := h.svc.CreateTask(ctx, primary.CreateTaskRequest{WorkItemID: wi.ID, Title: "API", Type: "implementation", EffortHours: 3})
	require.NoError(t, err)
	assert.Equal(t, "draft", task.Status)
	assert.Equal(t, 3.0, task.EffortHours)

	assert.Equal(t, []string{"project:" + p.ID, "work_item:" + wi.ID}, h.contexts.invalidated)

	tasks, err := h.svc.ListTasks(ctx, wi.ID, "")
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}

func TestEntityService_CreateValidation(t *testing.T) {
	h := newEntityHarness()
	h.entities.seed("feature", "implementation")
	ctx := context.Background()

	tests := []struct {
		name string
		run  func() error
	}{
		{"empty project name", func() error {
			_, err := h.svc.CreateProject(ctx, primary.CreateProjectRequest{Name: "  "})
			return err
		}},
		{"unknown work item type", func() error {
			_, err := h.svc.CreateWorkItem(ctx, primary.CreateWorkItemRequest{ProjectID: "PROJ-001", Title: "x", Type: "epic"})
			return err
		}},
		{"unknown task type", func() error {
			_, err := h.svc.CreateTask(ctx, primary.CreateTaskRequest{WorkItemID: "WI-001", Title: "x", Type: "coding"})
			return err
		}},
		{"negative effort", func() error {
			_, err := h.svc.CreateTask(ctx, primary.CreateTaskRequest{WorkItemID: "WI-001", Title: "x", Type: "testing", EffortHours: -1})
			return err
		}},
		{"NaN effort", func() error {
			_, err := h.svc.SetTaskEffort(ctx, "TASK-001", math.NaN())
			return err
		}},
		{"fact confidence out of range", func() error {
			return h.svc.SetPluginFact(ctx, primary.SetPluginFactRequest{ProjectID: "PROJ-001", Technology: "go", Confidence: 1.2})
		}},
		{"bad list status", func() error {
			_, err := h.svc.ListWorkItems(ctx, "", "shipped")
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.run(), errs.ErrValidation)
		})
	}

	_, err := h.svc.CreateTask(ctx, primary.CreateTaskRequest{WorkItemID: "WI-404", Title: "x", Type: "testing"})
	assert.True(t, errs.IsNotFound(err))
}

func TestEntityService_UpdateWorkItem(t *testing.T) {
	h := newEntityHarness()
	h.entities.seed("bugfix", "analysis")
	ctx := context.Background()

	bc := "Duplicate charges hit 2% of checkouts and drive chargebacks every week."
	criteria := []primary.Criterion{{Text: "no duplicate charge"}, {Text: " "}, {Text: "alert fires", Met: true}}
	risks := []string{"", "card network latency"}
	passing := true

	wi, err := h.svc.UpdateWorkItem(ctx, primary.UpdateWorkItemRequest{
		ID:                 "WI-001",
		BusinessContext:    &bc,
		AcceptanceCriteria: &criteria,
		Risks:              &risks,
		TestsPassing:       &passing,
	})
	require.NoError(t, err)

	assert.Equal(t, bc, wi.BusinessContext)
	assert.Equal(t, []primary.Criterion{{Text: "no duplicate charge"}, {Text: "alert fires", Met: true}}, wi.AcceptanceCriteria)
	assert.Equal(t, []string{"card network latency"}, wi.Risks)
	assert.True(t, wi.TestsPassing)
	assert.Equal(t, "Refunds", wi.Title, "nil fields are left unchanged")
	assert.Equal(t, "draft", wi.Status)
	assert.Equal(t, []string{"work_item:WI-001"}, h.contexts.invalidated)
}

func TestEntityService_SetTaskEffort(t *testing.T) {
	h := newEntityHarness()
	h.entities.seed("feature", "implementation")

	task, err := h.svc.SetTaskEffort(context.Background(), "TASK-001", 3.5)
	require.NoError(t, err)

	assert.Equal(t, 3.5, task.EffortHours)
	assert.Equal(t, []string{"task:TASK-001"}, h.contexts.invalidated)
}

func TestEntityService_AddSession(t *testing.T) {
	h := newEntityHarness()
	h.entities.seed("feature", "implementation")
	ctx := context.Background()

	id, err := h.svc.AddSession(ctx, primary.AddSessionRequest{WorkItemID: "WI-001", TaskID: "TASK-001", Role: " Implementer ", Summary: "wired the refund API"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	got, err := h.sessions.RecentSessions(ctx, "WI-001", 3)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, id, got[0].ID)
	assert.Equal(t, "implementer", got[0].Role)
	assert.True(t, got[0].EndedAt.Equal(fixedNow()))

	other := *h.entities.tasks["TASK-001"]
	other.ID, other.WorkItemID = "TASK-002", "WI-999"
	h.entities.tasks["TASK-002"] = &other
	_, err = h.svc.AddSession(ctx, primary.AddSessionRequest{WorkItemID: "WI-001", TaskID: "TASK-002", Summary: "x"})
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = h.svc.AddSession(ctx, primary.AddSessionRequest{WorkItemID: "WI-001", Summary: ""})
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestEntityService_CodeRefsAndFacts(t *testing.T) {
	h := newEntityHarness()
	h.entities.seed("feature", "implementation")
	ctx := context.Background()

	require.NoError(t, h.svc.AddCodeRef(ctx, primary.AddCodeRefRequest{Kind: "work-item", ID: "WI-001", Path: " internal/refund.go "}))
	refs, err := h.refs.ListCodeRefs(ctx, "work_item", "WI-001")
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "internal/refund.go", refs[0].Path)

	err = h.svc.AddCodeRef(ctx, primary.AddCodeRefRequest{Kind: "task", ID: "TASK-404", Path: "x.go"})
	assert.True(t, errs.IsNotFound(err))

	require.NoError(t, h.svc.SetPluginFact(ctx, primary.SetPluginFactRequest{ProjectID: "PROJ-001", Technology: "go", Confidence: 0.9, Description: "go.mod"}))
	facts, err := h.facts.GetPluginFacts(ctx, "PROJ-001")
	require.NoError(t, err)
	assert.InDelta(t, 0.9, facts["go"].Confidence, 1e-9)

	assert.Equal(t, []string{"work_item:WI-001", "project:PROJ-001"}, h.contexts.invalidated)
}
