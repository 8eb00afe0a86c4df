package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/apm/internal/core/confidence"
	"github.com/example/apm/internal/core/gate"
	"github.com/example/apm/internal/core/workflow"
	"github.com/example/apm/internal/ctxutil"
	"github.com/example/apm/internal/errs"
	"github.com/example/apm/internal/events"
	"github.com/example/apm/internal/ports/primary"
	"github.com/example/apm/internal/ports/secondary"
)

// maxTransitionAttempts bounds re-validation after concurrent status changes.
const maxTransitionAttempts = 3

// WorkflowServiceImpl implements the WorkflowService interface.
type WorkflowServiceImpl struct {
	entities secondary.EntityRepository
	contexts primary.ContextService
	emitter  secondary.EventEmitter
	events   secondary.EventRepository
	logger   *zap.Logger
}

var _ primary.WorkflowService = (*WorkflowServiceImpl)(nil)

// NewWorkflowService creates a new WorkflowService with injected dependencies.
// emitter and eventRepo may be nil.
func NewWorkflowService(
	entities secondary.EntityRepository,
	contexts primary.ContextService,
	emitter secondary.EventEmitter,
	eventRepo secondary.EventRepository,
	logger *zap.Logger,
) *WorkflowServiceImpl {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkflowServiceImpl{
		entities: entities,
		contexts: contexts,
		emitter:  emitter,
		events:   eventRepo,
		logger:   logger,
	}
}

// Transition validates and applies a status change.
func (s *WorkflowServiceImpl) Transition(ctx context.Context, req primary.TransitionRequest) (*primary.TransitionResult, error) {
	kind, err := workflow.ParseKind(req.Kind)
	if err != nil {
		return nil, errs.Invalid("kind", "%v", err)
	}

	for attempt := 1; attempt <= maxTransitionAttempts; attempt++ {
		state, err := s.loadState(ctx, kind, req.ID)
		if err != nil {
			return nil, err
		}
		result := &primary.TransitionResult{Current: state.Status, Requested: req.Requested}

		requested, err := workflow.ParseStatus(req.Requested)
		if err != nil {
			return s.reject(ctx, state, result, primary.ReasonIllegal, err.Error()), nil
		}
		from := workflow.Status(state.Status)

		check := workflow.ValidateTransition(kind, from, requested)
		if !check.Allowed {
			return s.reject(ctx, state, result, primary.ReasonIllegal, check.Reason), nil
		}

		var verdict *gate.Result
		if gates := workflow.GatesFor(kind, from, requested); len(gates) > 0 {
			verdict, err = s.runGates(ctx, kind, req.ID, gates)
			if err != nil {
				return nil, err
			}
			result.Gate = verdict
			result.Warnings = verdict.Warnings
			if !verdict.Passed {
				result.Missing = verdict.Missing
				return s.reject(ctx, state, result, primary.ReasonGateBlocked, verdict.Error().Error()), nil
			}
		}

		phase := workflow.PhaseAfter(kind, from, requested, workflow.Phase(state.Phase))
		err = s.entities.TransitionStatus(ctx, string(kind), req.ID, string(from), string(requested), string(phase))
		if errors.Is(err, errs.ErrStatusConflict) {
			s.logger.Info("status changed concurrently, re-validating",
				zap.String("kind", string(kind)),
				zap.String("id", req.ID),
				zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to persist transition: %w", err)
		}

		if err := s.contexts.Invalidate(ctx, string(kind), req.ID); err != nil {
			s.logger.Warn("failed to invalidate context after transition", zap.String("id", req.ID), zap.Error(err))
		}

		s.emit(ctx, secondary.EventRecord{
			Type:       events.TypeTransitionRecorded,
			EntityKind: string(kind),
			EntityID:   req.ID,
			FromStatus: string(from),
			ToStatus:   string(requested),
			Phase:      string(phase),
		})

		updated, err := s.loadState(ctx, kind, req.ID)
		if err != nil {
			return nil, err
		}
		result.OK = true
		result.Entity = updated
		return result, nil
	}

	return nil, fmt.Errorf("%s %s kept changing after %d attempts: %w", kind, req.ID, maxTransitionAttempts, errs.ErrStatusConflict)
}

// ValidatePhase runs a single gate without changing any entity; the verdict
// is recorded as a gate.checked event. For tasks, I1 runs the task-level
// check and other phases run against the parent work item.
func (s *WorkflowServiceImpl) ValidatePhase(ctx context.Context, kind, id, phase string) (*gate.Result, error) {
	k, err := workflow.ParseKind(kind)
	if err != nil {
		return nil, errs.Invalid("kind", "%v", err)
	}
	p, err := workflow.ParsePhase(phase)
	if err != nil {
		return nil, errs.Invalid("phase", "%v", err)
	}

	var verdict *gate.Result
	switch k {
	case workflow.KindWorkItem:
		verdict, err = s.runGates(ctx, k, id, []workflow.Phase{p})
	case workflow.KindTask:
		if p == workflow.PhaseI1 {
			verdict, err = s.runGates(ctx, k, id, []workflow.Phase{p})
			break
		}
		t, terr := s.entities.GetTask(ctx, id)
		if terr != nil {
			return nil, &errs.FatalLoadError{Kind: string(k), ID: id, Err: terr}
		}
		verdict, err = s.runGates(ctx, workflow.KindWorkItem, t.WorkItemID, []workflow.Phase{p})
	default:
		return nil, errs.Invalid("kind", "%s has no phase gates", k)
	}
	if err != nil {
		return nil, err
	}

	s.emit(ctx, secondary.EventRecord{
		Type:       events.TypeGateChecked,
		EntityKind: string(k),
		EntityID:   id,
		Phase:      string(p),
		Detail:     gateDetail(verdict),
	})
	return verdict, nil
}

// ListEvents returns recorded workflow events, newest first.
func (s *WorkflowServiceImpl) ListEvents(ctx context.Context, filters primary.EventFilters) ([]*primary.Event, error) {
	if s.events == nil {
		return []*primary.Event{}, nil
	}
	kind := filters.Kind
	if kind != "" {
		k, err := workflow.ParseKind(kind)
		if err != nil {
			return nil, errs.Invalid("kind", "%v", err)
		}
		kind = string(k)
	}
	records, err := s.events.ListEvents(ctx, secondary.EventFilters{
		EntityKind: kind,
		EntityID:   filters.ID,
		Limit:      filters.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	out := make([]*primary.Event, len(records))
	for i, r := range records {
		out[i] = &primary.Event{
			ID:         r.ID,
			Type:       r.Type,
			EntityKind: r.EntityKind,
			EntityID:   r.EntityID,
			FromStatus: r.FromStatus,
			ToStatus:   r.ToStatus,
			Phase:      r.Phase,
			Actor:      r.Actor,
			Detail:     r.Detail,
			OccurredAt: r.OccurredAt,
		}
	}
	return out, nil
}

// ============================================================================
// Helpers
// ============================================================================

func (s *WorkflowServiceImpl) loadState(ctx context.Context, kind workflow.EntityKind, id string) (*primary.EntityState, error) {
	switch kind {
	case workflow.KindWorkItem:
		wi, err := s.entities.GetWorkItem(ctx, id)
		if err != nil {
			return nil, &errs.FatalLoadError{Kind: string(kind), ID: id, Err: err}
		}
		return &primary.EntityState{Kind: string(kind), ID: wi.ID, Title: wi.Title, Type: wi.Type, Status: wi.Status, Phase: wi.Phase}, nil
	case workflow.KindTask:
		t, err := s.entities.GetTask(ctx, id)
		if err != nil {
			return nil, &errs.FatalLoadError{Kind: string(kind), ID: id, Err: err}
		}
		return &primary.EntityState{Kind: string(kind), ID: t.ID, Title: t.Title, Type: t.Type, Status: t.Status}, nil
	}
	return nil, errs.Invalid("kind", "%s has no status lifecycle", kind)
}

// runGates evaluates gates in order and combines their verdicts.
func (s *WorkflowServiceImpl) runGates(ctx context.Context, kind workflow.EntityKind, id string, phases []workflow.Phase) (*gate.Result, error) {
	conf, err := s.contexts.Confidence(ctx, string(kind), id)
	if err != nil {
		return nil, fmt.Errorf("failed to assess context confidence: %w", err)
	}

	if kind == workflow.KindTask {
		t, err := s.entities.GetTask(ctx, id)
		if err != nil {
			return nil, &errs.FatalLoadError{Kind: string(kind), ID: id, Err: err}
		}
		r := gate.ValidateTask(gate.TaskInput{
			TaskID:      t.ID,
			Type:        gate.TaskType(t.Type),
			EffortHours: t.EffortHours,
			Confidence:  conf.Score,
			Band:        conf.Band,
		})
		return &r, nil
	}

	in, err := s.gateInput(ctx, id, conf)
	if err != nil {
		return nil, err
	}
	results := make([]gate.Result, 0, len(phases))
	for _, p := range phases {
		results = append(results, gate.Validate(p, *in))
	}
	r := gate.Combine(results...)
	return &r, nil
}

func (s *WorkflowServiceImpl) gateInput(ctx context.Context, workItemID string, conf *confidence.Payload) (*gate.Input, error) {
	wi, err := s.entities.GetWorkItem(ctx, workItemID)
	if err != nil {
		return nil, &errs.FatalLoadError{Kind: string(workflow.KindWorkItem), ID: workItemID, Err: err}
	}
	tasks, err := s.entities.ListTasks(ctx, secondary.TaskFilters{WorkItemID: workItemID})
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	in := &gate.Input{
		WorkItemID:      wi.ID,
		WorkItemType:    gate.WorkItemType(wi.Type),
		BusinessContext: wi.BusinessContext,
		Risks:           wi.Risks,
		TestsPassing:    wi.TestsPassing,
		Retrospective:   wi.Retrospective,
		Confidence:      conf.Score,
		Band:            conf.Band,
	}
	for _, c := range wi.AcceptanceCriteria {
		in.AcceptanceCriteria = append(in.AcceptanceCriteria, gate.Criterion{Text: c.Text, Met: c.Met})
	}
	for _, t := range tasks {
		in.Tasks = append(in.Tasks, gate.TaskInfo{
			ID:          t.ID,
			Type:        gate.TaskType(t.Type),
			Status:      workflow.Status(t.Status),
			EffortHours: t.EffortHours,
		})
	}
	return in, nil
}

func (s *WorkflowServiceImpl) reject(ctx context.Context, state *primary.EntityState, result *primary.TransitionResult, reason, detail string) *primary.TransitionResult {
	result.OK = false
	result.Reason = reason
	result.Detail = detail
	if result.Missing == nil && reason == primary.ReasonGateBlocked {
		result.Missing = []string{}
	}
	s.emit(ctx, secondary.EventRecord{
		Type:       events.TypeTransitionRejected,
		EntityKind: state.Kind,
		EntityID:   state.ID,
		FromStatus: state.Status,
		ToStatus:   result.Requested,
		Phase:      state.Phase,
		Detail:     reason + ": " + detail,
	})
	return result
}

// gateDetail summarizes a verdict for the event log.
func gateDetail(r *gate.Result) string {
	if r.Passed {
		return fmt.Sprintf("passed (confidence %.2f)", r.Confidence)
	}
	return fmt.Sprintf("blocked: %d missing (confidence %.2f)", len(r.Missing), r.Confidence)
}

func (s *WorkflowServiceImpl) emit(ctx context.Context, e secondary.EventRecord) {
	if s.emitter == nil {
		return
	}
	e.Actor = ctxutil.ActorFromContext(ctx)
	if !s.emitter.Emit(e) {
		s.logger.Debug("workflow event not recorded", zap.String("type", e.Type), zap.String("id", e.EntityID))
	}
}
