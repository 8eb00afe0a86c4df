package app

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/apm/internal/core/sixw"
	"github.com/example/apm/internal/core/workflow"
	"github.com/example/apm/internal/ctxutil"
	"github.com/example/apm/internal/errs"
	"github.com/example/apm/internal/events"
	"github.com/example/apm/internal/ports/primary"
	"github.com/example/apm/internal/ports/secondary"
)

type memEvents struct {
	mu     sync.Mutex
	events []*secondary.EventRecord
}

func (m *memEvents) AppendEvent(ctx context.Context, e *secondary.EventRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.events = append(m.events, &cp)
	return nil
}

func (m *memEvents) ListEvents(ctx context.Context, f secondary.EventFilters) ([]*secondary.EventRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*secondary.EventRecord
	for i := len(m.events) - 1; i >= 0; i-- {
		e := m.events[i]
		if f.EntityKind != "" && e.EntityKind != f.EntityKind {
			continue
		}
		if f.EntityID != "" && e.EntityID != f.EntityID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

type workflowHarness struct {
	entities *memEntities
	contexts *stubContexts
	emitter  *recordingEmitter
	svc      *WorkflowServiceImpl
}

func newWorkflowHarness(score float64) *workflowHarness {
	h := &workflowHarness{
		entities: newMemEntities(),
		contexts: newStubContexts(score),
		emitter:  &recordingEmitter{},
	}
	h.entities.seed("feature", "implementation")
	h.svc = NewWorkflowService(h.entities, h.contexts, h.emitter, &memEvents{}, nil)
	return h
}

func (h *workflowHarness) transition(t *testing.T, kind, id, to string) *primary.TransitionResult {
	t.Helper()
	res, err := h.svc.Transition(context.Background(), primary.TransitionRequest{Kind: kind, ID: id, Requested: to})
	require.NoError(t, err)
	return res
}

func (h *workflowHarness) addTask(id, taskType, status string, effort float64) {
	h.entities.mu.Lock()
	defer h.entities.mu.Unlock()
	h.entities.tasks[id] = &secondary.TaskRecord{
		ID: id, WorkItemID: "WI-001", Title: taskType, Type: taskType, Status: status, EffortHours: effort,
	}
}

func TestTransition_IllegalDoesNotMutate(t *testing.T) {
	h := newWorkflowHarness(0.9)

	res := h.transition(t, "work_item", "WI-001", "active")

	assert.False(t, res.OK)
	assert.Equal(t, primary.ReasonIllegal, res.Reason)
	assert.Equal(t, "cannot skip from draft directly to active: move to ready first", res.Detail)
	assert.Equal(t, "draft", res.Current)
	assert.Equal(t, "active", res.Requested)
	assert.Zero(t, h.entities.transitions)
	assert.Empty(t, h.contexts.invalidated)
	assert.Equal(t, []string{"transition.rejected"}, h.emitter.types())

	wi, err := h.entities.GetWorkItem(context.Background(), "WI-001")
	require.NoError(t, err)
	assert.Equal(t, "draft", wi.Status)
	assert.Equal(t, "D1", wi.Phase)
}

func TestTransition_UnknownOrSameStatusIsIllegal(t *testing.T) {
	h := newWorkflowHarness(0.9)

	res := h.transition(t, "task", "TASK-001", "shipped")
	assert.Equal(t, primary.ReasonIllegal, res.Reason)
	assert.Contains(t, res.Detail, `unknown status "shipped"`)

	res = h.transition(t, "task", "TASK-001", "draft")
	assert.Equal(t, primary.ReasonIllegal, res.Reason)
	assert.Equal(t, "task is already draft", res.Detail)
}

func TestTransition_DiscoveryGateBlocks(t *testing.T) {
	t.Run("short business context", func(t *testing.T) {
		h := newWorkflowHarness(0.9)
		readyWorkItem(h.entities)
		h.entities.workItems["WI-001"].BusinessContext = "too short!"

		res := h.transition(t, "work_item", "WI-001", "ready")

		assert.False(t, res.OK)
		assert.Equal(t, primary.ReasonGateBlocked, res.Reason)
		assert.Equal(t, []string{"business context is 10 characters, need at least 50"}, res.Missing)
		require.NotNil(t, res.Gate)
		assert.Equal(t, workflow.PhaseD1, res.Gate.Phase)
		assert.Zero(t, h.entities.transitions)
	})

	t.Run("low confidence", func(t *testing.T) {
		h := newWorkflowHarness(0.6)
		readyWorkItem(h.entities)

		res := h.transition(t, "work_item", "WI-001", "ready")

		assert.Equal(t, primary.ReasonGateBlocked, res.Reason)
		assert.Equal(t, []string{"context confidence 0.60 is below 0.70"}, res.Missing)
	})
}

func TestTransition_DraftToReadyAdvancesPhase(t *testing.T) {
	h := newWorkflowHarness(0.9)
	readyWorkItem(h.entities)
	ctx := ctxutil.WithActorID(context.Background(), "alice")

	res, err := h.svc.Transition(ctx, primary.TransitionRequest{Kind: "workitem", ID: "WI-001", Requested: "Ready"})
	require.NoError(t, err)

	require.True(t, res.OK)
	require.NotNil(t, res.Entity)
	assert.Equal(t, "ready", res.Entity.Status)
	assert.Equal(t, "P1", res.Entity.Phase)
	assert.Equal(t, []string{"work_item:WI-001"}, h.contexts.invalidated)

	require.Len(t, h.emitter.events, 1)
	e := h.emitter.events[0]
	assert.Equal(t, "transition.recorded", e.Type)
	assert.Equal(t, "alice", e.Actor)
	assert.Equal(t, "draft", e.FromStatus)
	assert.Equal(t, "ready", e.ToStatus)
	assert.Equal(t, "P1", e.Phase)
}

func TestTransition_ReadyToActiveRunsPlanningThenImplementation(t *testing.T) {
	h := newWorkflowHarness(0.9)
	h.entities.setStatus("work_item", "WI-001", "ready")

	res := h.transition(t, "work_item", "WI-001", "active")
	require.False(t, res.OK)
	assert.Equal(t, workflow.PhaseI1, res.Gate.Phase, "P1 passes, I1 fails")
	assert.Equal(t, []string{
		"feature work item requires at least one design task",
		"feature work item requires at least one testing task",
		"feature work item requires at least one documentation task",
	}, res.Missing)

	h.addTask("TASK-002", "design", "draft", 3)
	h.addTask("TASK-003", "testing", "draft", 8)
	h.addTask("TASK-004", "documentation", "draft", 1)

	res = h.transition(t, "work_item", "WI-001", "active")
	require.True(t, res.OK, res.Detail)
	assert.Equal(t, "I1", res.Entity.Phase)
	// Soft time-box overruns surface as warnings.
	require.Len(t, res.Warnings, 1)
	assert.True(t, strings.HasPrefix(res.Warnings[0], "testing task TASK-003 is 8h"))
}

func TestTransition_TaskTimeBox(t *testing.T) {
	tests := []struct {
		name   string
		effort float64
		wantOK bool
	}{
		{name: "over the implementation time-box", effort: 5, wantOK: false},
		{name: "at the time-box", effort: 4, wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newWorkflowHarness(0.9)
			h.addTask("TASK-001", "implementation", "ready", tt.effort)

			res := h.transition(t, "task", "TASK-001", "active")

			assert.Equal(t, tt.wantOK, res.OK)
			if !tt.wantOK {
				assert.Equal(t, primary.ReasonGateBlocked, res.Reason)
				assert.Equal(t, []string{
					"implementation task TASK-001 is 5h, exceeding its 4h time-box: split it into smaller tasks",
				}, res.Missing)
				return
			}
			assert.Equal(t, "active", res.Entity.Status)
			assert.Empty(t, res.Entity.Phase)
		})
	}
}

func TestTransition_TaskRedConfidenceBlocks(t *testing.T) {
	h := newWorkflowHarness(0.3)
	h.entities.setStatus("task", "TASK-001", "ready")

	res := h.transition(t, "task", "TASK-001", "active")

	assert.Equal(t, primary.ReasonGateBlocked, res.Reason)
	assert.Equal(t, []string{"context confidence 0.30 is red"}, res.Missing)
}

func TestTransition_ReworkSkipsGates(t *testing.T) {
	h := newWorkflowHarness(0.1)
	h.entities.setStatus("work_item", "WI-001", "review")
	h.entities.workItems["WI-001"].Phase = "R1"

	res := h.transition(t, "work_item", "WI-001", "active")

	require.True(t, res.OK)
	assert.Nil(t, res.Gate)
	assert.Equal(t, "I1", res.Entity.Phase)
}

func TestTransition_ConcurrentChangeIsRevalidated(t *testing.T) {
	t.Run("new status makes the request illegal", func(t *testing.T) {
		h := newWorkflowHarness(0.9)
		h.entities.setStatus("task", "TASK-001", "ready")
		h.entities.beforeCAS = func(m *memEntities, kind, id string) {
			m.setStatus(kind, id, "cancelled")
			m.beforeCAS = nil
		}

		res := h.transition(t, "task", "TASK-001", "active")

		assert.False(t, res.OK)
		assert.Equal(t, primary.ReasonIllegal, res.Reason)
		assert.Equal(t, "cancelled", res.Current)
		assert.Equal(t, 1, h.entities.transitions)
	})

	t.Run("new status still allows the request", func(t *testing.T) {
		h := newWorkflowHarness(0.9)
		h.entities.setStatus("task", "TASK-001", "ready")
		h.entities.beforeCAS = func(m *memEntities, kind, id string) {
			m.setStatus(kind, id, "draft")
			m.beforeCAS = nil
		}

		res := h.transition(t, "task", "TASK-001", "cancelled")

		require.True(t, res.OK)
		assert.Equal(t, "cancelled", res.Entity.Status)
		assert.Equal(t, "draft", res.Current)
		assert.Equal(t, 2, h.entities.transitions)
	})
}

func TestTransition_MissingEntityIsFatal(t *testing.T) {
	h := newWorkflowHarness(0.9)

	_, err := h.svc.Transition(context.Background(), primary.TransitionRequest{Kind: "task", ID: "TASK-404", Requested: "ready"})

	var fatal *errs.FatalLoadError
	require.ErrorAs(t, err, &fatal)
	assert.True(t, errs.IsNotFound(err))

	_, err = h.svc.Transition(context.Background(), primary.TransitionRequest{Kind: "project", ID: "PROJ-001", Requested: "ready"})
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestValidatePhase(t *testing.T) {
	ctx := context.Background()

	t.Run("work item gate", func(t *testing.T) {
		h := newWorkflowHarness(0.9)

		res, err := h.svc.ValidatePhase(ctx, "work_item", "WI-001", "d1")
		require.NoError(t, err)

		assert.False(t, res.Passed)
		assert.Len(t, res.Missing, 3)
		assert.Zero(t, h.entities.transitions)

		require.Len(t, h.emitter.events, 1)
		e := h.emitter.events[0]
		assert.Equal(t, events.TypeGateChecked, e.Type)
		assert.Equal(t, "work_item", e.EntityKind)
		assert.Equal(t, "WI-001", e.EntityID)
		assert.Equal(t, "D1", e.Phase)
		assert.Equal(t, "blocked: 3 missing (confidence 0.90)", e.Detail)
		assert.NoError(t, events.Validate(e))
	})

	t.Run("task I1 runs the task check", func(t *testing.T) {
		h := newWorkflowHarness(0.9)
		h.addTask("TASK-001", "implementation", "draft", 6)

		res, err := h.svc.ValidatePhase(ctx, "task", "TASK-001", "I1")
		require.NoError(t, err)

		assert.False(t, res.Passed)
		assert.Len(t, res.Missing, 1)
	})

	t.Run("task other phase runs the parent gate", func(t *testing.T) {
		h := newWorkflowHarness(0.9)

		res, err := h.svc.ValidatePhase(ctx, "task", "TASK-001", "P1")
		require.NoError(t, err)

		assert.True(t, res.Passed)
		assert.Equal(t, workflow.PhaseP1, res.Phase)
		assert.Equal(t, []string{events.TypeGateChecked}, h.emitter.types())
		assert.Equal(t, "TASK-001", h.emitter.events[0].EntityID)
		assert.Equal(t, "passed (confidence 0.90)", h.emitter.events[0].Detail)
	})

	t.Run("bad input", func(t *testing.T) {
		h := newWorkflowHarness(0.9)

		_, err := h.svc.ValidatePhase(ctx, "project", "PROJ-001", "D1")
		assert.ErrorIs(t, err, errs.ErrValidation)
		_, err = h.svc.ValidatePhase(ctx, "work_item", "WI-001", "Z9")
		assert.ErrorIs(t, err, errs.ErrValidation)
		assert.Empty(t, h.emitter.events)
	})
}

// The discovery gate is reachable through real assembly, including for
// work that has no code references yet.
func TestValidatePhase_DiscoveryReachableWithAssembledContext(t *testing.T) {
	ctx := context.Background()
	entities := newMemEntities()
	entities.seed("feature", "implementation")
	readyWorkItem(entities)
	facts := newMemFacts()
	refs := &memCodeRefs{}
	contexts := NewContextService(ContextDeps{
		Entities: entities,
		SixW:     newMemSixW(),
		Facts:    facts,
		CodeRefs: refs,
		Resolver: setResolver{existing: map[string]bool{"internal/refund.go": true}},
	}, ContextOptions{StepBudget: time.Second, Now: fixedNow})
	svc := NewWorkflowService(entities, contexts, &recordingEmitter{}, nil, nil)

	deadline := fixedNow().Add(30 * 24 * time.Hour)
	require.NoError(t, contexts.SetSixW(ctx, primary.SetSixWRequest{Kind: "work_item", ID: "WI-001", Context: sixw.Context{
		EndUsers:               []string{"merchants"},
		Implementers:           []string{"payments team"},
		Reviewers:              []string{"risk"},
		FunctionalRequirements: []string{"refund endpoint"},
		TechnicalConstraints:   []string{"idempotent"},
		AcceptanceCriteria:     []string{"refund is audited"},
		AffectedServices:       []string{"ledger"},
		Repositories:           []string{"payments"},
		DeploymentTargets:      []string{"eu-west"},
		Deadline:               &deadline,
		DependenciesTimeline:   []string{"ledger v2 in May"},
		BusinessValue:          "halve refund tickets",
		RiskIfDelayed:          "support backlog grows",
		SuggestedApproach:      "reuse the ledger client",
		ExistingPatterns:       []string{"outbox"},
	}}))
	for _, tech := range []string{"go", "sqlite", "grpc"} {
		require.NoError(t, facts.SetPluginFact(ctx, "PROJ-001", tech, 1.0, ""))
	}

	res, err := svc.ValidatePhase(ctx, "work_item", "WI-001", "D1")
	require.NoError(t, err)
	assert.True(t, res.Passed, "missing: %v", res.Missing)
	assert.InDelta(t, 0.75, res.Confidence, 1e-9)

	require.NoError(t, refs.AddCodeRef(ctx, &secondary.CodeRefRecord{EntityKind: "work_item", EntityID: "WI-001", Path: "internal/refund.go"}))
	require.NoError(t, contexts.Invalidate(ctx, "work_item", "WI-001"))

	res, err = svc.ValidatePhase(ctx, "work_item", "WI-001", "D1")
	require.NoError(t, err)
	assert.True(t, res.Passed)
	assert.InDelta(t, 1.0, res.Confidence, 1e-9)
}

func TestListEvents(t *testing.T) {
	repo := &memEvents{}
	ctx := context.Background()
	require.NoError(t, repo.AppendEvent(ctx, &secondary.EventRecord{ID: "e1", Type: "transition.recorded", EntityKind: "task", EntityID: "TASK-001"}))
	require.NoError(t, repo.AppendEvent(ctx, &secondary.EventRecord{ID: "e2", Type: "transition.rejected", EntityKind: "work_item", EntityID: "WI-001"}))
	svc := NewWorkflowService(newMemEntities(), newStubContexts(0.9), nil, repo, nil)

	all, err := svc.ListEvents(ctx, primary.EventFilters{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "e2", all[0].ID)

	tasks, err := svc.ListEvents(ctx, primary.EventFilters{Kind: "task"})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "TASK-001", tasks[0].EntityID)

	_, err = svc.ListEvents(ctx, primary.EventFilters{Kind: "ship"})
	assert.ErrorIs(t, err, errs.ErrValidation)
}
