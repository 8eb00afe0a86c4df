package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/example/apm/internal/core/confidence"
	"github.com/example/apm/internal/core/sixw"
	"github.com/example/apm/internal/errs"
	"github.com/example/apm/internal/ports/primary"
	"github.com/example/apm/internal/ports/secondary"
)

// ============================================================================
// Entity store
// ============================================================================

var _ secondary.EntityRepository = (*memEntities)(nil)

// memEntities is an in-memory EntityRepository.
type memEntities struct {
	mu        sync.Mutex
	projects  map[string]*secondary.ProjectRecord
	workItems map[string]*secondary.WorkItemRecord
	tasks     map[string]*secondary.TaskRecord
	seq       int

	getTaskErr  error
	transitions int
	// beforeCAS runs inside TransitionStatus before the compare; it may
	// mutate stored state to simulate a concurrent writer.
	beforeCAS func(m *memEntities, kind, id string)
}

func newMemEntities() *memEntities {
	return &memEntities{
		projects:  map[string]*secondary.ProjectRecord{},
		workItems: map[string]*secondary.WorkItemRecord{},
		tasks:     map[string]*secondary.TaskRecord{},
	}
}

func (m *memEntities) nextID(prefix string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	return fmt.Sprintf("%s-%03d", prefix, m.seq)
}

func (m *memEntities) CreateProject(ctx context.Context, p *secondary.ProjectRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.projects[p.ID] = &cp
	return nil
}

func (m *memEntities) GetProject(ctx context.Context, id string) (*secondary.ProjectRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, fmt.Errorf("project %s: %w", id, errs.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (m *memEntities) ListProjects(ctx context.Context) ([]*secondary.ProjectRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*secondary.ProjectRecord
	for _, p := range m.projects {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memEntities) GetNextProjectID(ctx context.Context) (string, error) {
	return m.nextID("PROJ"), nil
}

func (m *memEntities) CreateWorkItem(ctx context.Context, wi *secondary.WorkItemRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *wi
	m.workItems[wi.ID] = &cp
	return nil
}

func (m *memEntities) GetWorkItem(ctx context.Context, id string) (*secondary.WorkItemRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wi, ok := m.workItems[id]
	if !ok {
		return nil, fmt.Errorf("work item %s: %w", id, errs.ErrNotFound)
	}
	cp := *wi
	return &cp, nil
}

func (m *memEntities) ListWorkItems(ctx context.Context, f secondary.WorkItemFilters) ([]*secondary.WorkItemRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*secondary.WorkItemRecord
	for _, wi := range m.workItems {
		if f.ProjectID != "" && wi.ProjectID != f.ProjectID {
			continue
		}
		if f.Status != "" && wi.Status != f.Status {
			continue
		}
		cp := *wi
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memEntities) UpdateWorkItem(ctx context.Context, wi *secondary.WorkItemRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.workItems[wi.ID]
	if !ok {
		return errs.ErrNotFound
	}
	cp := *wi
	cp.Status, cp.Phase = cur.Status, cur.Phase
	m.workItems[wi.ID] = &cp
	return nil
}

func (m *memEntities) GetNextWorkItemID(ctx context.Context) (string, error) {
	return m.nextID("WI"), nil
}

func (m *memEntities) CreateTask(ctx context.Context, t *secondary.TaskRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.tasks[t.ID] = &cp
	return nil
}

func (m *memEntities) GetTask(ctx context.Context, id string) (*secondary.TaskRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getTaskErr != nil {
		return nil, m.getTaskErr
	}
	t, ok := m.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, errs.ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

func (m *memEntities) ListTasks(ctx context.Context, f secondary.TaskFilters) ([]*secondary.TaskRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*secondary.TaskRecord
	for _, t := range m.tasks {
		if f.WorkItemID != "" && t.WorkItemID != f.WorkItemID {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memEntities) UpdateTask(ctx context.Context, t *secondary.TaskRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.tasks[t.ID]
	if !ok {
		return errs.ErrNotFound
	}
	cp := *t
	cp.Status = cur.Status
	m.tasks[t.ID] = &cp
	return nil
}

func (m *memEntities) GetNextTaskID(ctx context.Context) (string, error) {
	return m.nextID("TASK"), nil
}

func (m *memEntities) TransitionStatus(ctx context.Context, kind, id, from, to, phase string) error {
	if m.beforeCAS != nil {
		m.beforeCAS(m, kind, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions++

	switch kind {
	case "work_item":
		wi, ok := m.workItems[id]
		if !ok {
			return errs.ErrNotFound
		}
		if wi.Status != from {
			return errs.ErrStatusConflict
		}
		wi.Status = to
		if phase != "" {
			wi.Phase = phase
		}
	case "task":
		t, ok := m.tasks[id]
		if !ok {
			return errs.ErrNotFound
		}
		if t.Status != from {
			return errs.ErrStatusConflict
		}
		t.Status = to
	default:
		return fmt.Errorf("kind %s has no status", kind)
	}
	return nil
}

func (m *memEntities) setStatus(kind, id, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if kind == "task" {
		m.tasks[id].Status = status
		return
	}
	m.workItems[id].Status = status
}

// seed creates PROJ-001 / WI-001 / TASK-001 with the given types.
func (m *memEntities) seed(itemType, taskType string) {
	m.projects["PROJ-001"] = &secondary.ProjectRecord{ID: "PROJ-001", Name: "Payments", RootPath: "/src"}
	m.workItems["WI-001"] = &secondary.WorkItemRecord{
		ID: "WI-001", ProjectID: "PROJ-001", Title: "Refunds", Type: itemType,
		Status: "draft", Phase: "D1",
		AcceptanceCriteria: []secondary.CriterionRecord{}, Risks: []string{},
	}
	m.tasks["TASK-001"] = &secondary.TaskRecord{
		ID: "TASK-001", WorkItemID: "WI-001", Title: "Build refund API", Type: taskType, Status: "draft", EffortHours: 2,
	}
	m.seq = 1
}

// ============================================================================
// 6W store
// ============================================================================

var _ secondary.SixWRepository = (*memSixW)(nil)

type memSixW struct {
	mu      sync.Mutex
	records map[string]*secondary.SixWRecord
	getErr  error
}

func newMemSixW() *memSixW {
	return &memSixW{records: map[string]*secondary.SixWRecord{}}
}

func (m *memSixW) GetSixW(ctx context.Context, kind, id string) (*secondary.SixWRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	r, ok := m.records[kind+":"+id]
	if !ok {
		return nil, nil
	}
	cp := *r
	cp.Context = r.Context.Clone()
	return &cp, nil
}

func (m *memSixW) PutSixW(ctx context.Context, r *secondary.SixWRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	cp.Context = r.Context.Clone()
	m.records[r.EntityKind+":"+r.EntityID] = &cp
	return nil
}

// ============================================================================
// Enrichment collaborators
// ============================================================================

var _ secondary.PluginFactsRepository = (*memFacts)(nil)

type memFacts struct {
	mu    sync.Mutex
	facts map[string]map[string]confidence.TechnologyFact
	err   error
	block bool
	calls atomic.Int32
	// onCall, when set, runs at the start of every lookup.
	onCall func()
}

func newMemFacts() *memFacts {
	return &memFacts{facts: map[string]map[string]confidence.TechnologyFact{}}
}

func (m *memFacts) GetPluginFacts(ctx context.Context, projectID string) (map[string]confidence.TechnologyFact, error) {
	m.calls.Add(1)
	if m.onCall != nil {
		m.onCall()
	}
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]confidence.TechnologyFact{}
	for k, v := range m.facts[projectID] {
		out[k] = v
	}
	return out, nil
}

func (m *memFacts) SetPluginFact(ctx context.Context, projectID, tech string, conf float64, desc string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.facts[projectID] == nil {
		m.facts[projectID] = map[string]confidence.TechnologyFact{}
	}
	m.facts[projectID][tech] = confidence.TechnologyFact{Confidence: conf, Description: desc}
	return nil
}

var _ secondary.CodeRefRepository = (*memCodeRefs)(nil)

type memCodeRefs struct {
	mu   sync.Mutex
	refs []*secondary.CodeRefRecord
}

func (m *memCodeRefs) AddCodeRef(ctx context.Context, r *secondary.CodeRefRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.refs = append(m.refs, &cp)
	return nil
}

func (m *memCodeRefs) ListCodeRefs(ctx context.Context, kind, id string) ([]*secondary.CodeRefRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*secondary.CodeRefRecord
	for _, r := range m.refs {
		if r.EntityKind == kind && r.EntityID == id {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

// setResolver reports every path in existing as resolved.
type setResolver struct {
	existing map[string]bool
}

func (r setResolver) Resolve(ctx context.Context, root string, paths []string) ([]secondary.ResolvedRef, error) {
	out := make([]secondary.ResolvedRef, len(paths))
	for i, p := range paths {
		out[i] = secondary.ResolvedRef{Path: p, Resolved: r.existing[p]}
	}
	return out, nil
}

type stubProcedures map[string]string

func (s stubProcedures) ProcedureText(ctx context.Context, role string) (string, bool, error) {
	t, ok := s[role]
	return t, ok, nil
}

type stubRules struct {
	rules []secondary.RuleRef
	err   error
}

func (s stubRules) ApplicableRules(ctx context.Context, taskType, phase string) ([]secondary.RuleRef, error) {
	return s.rules, s.err
}

var _ secondary.SessionRepository = (*memSessions)(nil)

type memSessions struct {
	mu       sync.Mutex
	sessions []*secondary.SessionRecord
}

func (m *memSessions) AddSession(ctx context.Context, s *secondary.SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions = append(m.sessions, &cp)
	return nil
}

func (m *memSessions) RecentSessions(ctx context.Context, workItemID string, limit int) ([]*secondary.SessionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*secondary.SessionRecord
	for i := len(m.sessions) - 1; i >= 0; i-- {
		if m.sessions[i].WorkItemID == workItemID {
			cp := *m.sessions[i]
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].EndedAt.After(out[j].EndedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ============================================================================
// Workflow collaborators
// ============================================================================

// stubContexts is a ContextService returning a fixed confidence.
type stubContexts struct {
	mu          sync.Mutex
	conf        confidence.Payload
	invalidated []string
}

func newStubContexts(score float64) *stubContexts {
	return &stubContexts{conf: confidence.Payload{Score: score, Band: confidence.BandFor(score)}}
}

func (s *stubContexts) Assemble(ctx context.Context, req primary.AssembleRequest) (*primary.ContextPayload, error) {
	return &primary.ContextPayload{EntityKind: req.Kind, EntityID: req.ID, Confidence: s.conf}, nil
}

func (s *stubContexts) Refresh(ctx context.Context, req primary.AssembleRequest) (*primary.ContextPayload, error) {
	return s.Assemble(ctx, req)
}

func (s *stubContexts) Invalidate(ctx context.Context, kind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidated = append(s.invalidated, kind+":"+id)
	return nil
}

func (s *stubContexts) Confidence(ctx context.Context, kind, id string) (*confidence.Payload, error) {
	c := s.conf
	return &c, nil
}

func (s *stubContexts) GetSixW(ctx context.Context, kind, id string) (*sixw.Context, error) {
	return nil, nil
}

func (s *stubContexts) SetSixW(ctx context.Context, req primary.SetSixWRequest) error {
	return nil
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []secondary.EventRecord
}

func (r *recordingEmitter) Emit(e secondary.EventRecord) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return true
}

func (r *recordingEmitter) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

// readyWorkItem fills WI-001 so every D1 and P1 rule passes.
func readyWorkItem(m *memEntities) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wi := m.workItems["WI-001"]
	wi.BusinessContext = "Customers need self-service refunds to cut support tickets by half this quarter."
	wi.AcceptanceCriteria = []secondary.CriterionRecord{
		{Text: "refund endpoint exists"}, {Text: "refund is audited"}, {Text: "partial refunds work"},
	}
	wi.Risks = []string{"double refunds"}
}

func fixedNow() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}
