package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/example/apm/internal/cache"
	"github.com/example/apm/internal/core/confidence"
	"github.com/example/apm/internal/core/role"
	"github.com/example/apm/internal/core/sixw"
	"github.com/example/apm/internal/core/workflow"
	"github.com/example/apm/internal/errs"
	"github.com/example/apm/internal/ports/primary"
	"github.com/example/apm/internal/ports/secondary"
)

// Defaults for context assembly.
const (
	DefaultContextTTL = 15 * time.Minute
	DefaultStepBudget = 50 * time.Millisecond
	maxSessions       = 3

	// degradedTTL caps how long a payload with failed enrichment steps is
	// served before assembly is retried.
	degradedTTL = 30 * time.Second
)

// Enrichment step names, reported in ContextPayload.Degraded.
const (
	stepPluginFacts  = "plugin_facts"
	stepAmalgamation = "amalgamation"
	stepProcedure    = "procedure"
	stepSessions     = "sessions"
	stepRules        = "rules"
	stepSixW         = "six_w"
)

// ContextDeps are the collaborators of the context service. Enrichment
// collaborators may be nil, in which case the step yields its empty value.
type ContextDeps struct {
	Entities   secondary.EntityRepository
	SixW       secondary.SixWRepository
	Facts      secondary.PluginFactsProvider
	CodeRefs   secondary.CodeRefRepository
	Resolver   secondary.AmalgamationResolver
	Procedures secondary.ProcedureProvider
	Sessions   secondary.SessionRepository
	Rules      secondary.RulesProvider
	Cache      secondary.ContextCache
	Logger     *zap.Logger
}

// ContextOptions tune the context service.
type ContextOptions struct {
	TTL        time.Duration
	StepBudget time.Duration
	Now        func() time.Time
}

// ContextServiceImpl implements the ContextService interface.
type ContextServiceImpl struct {
	deps       ContextDeps
	logger     *zap.Logger
	ttl        time.Duration
	stepBudget time.Duration
	now        func() time.Time
	flight     singleflight.Group

	// gens counts invalidations per entity prefix. An assembly only caches
	// its payload if its entity's generation is unchanged since it started.
	genMu sync.Mutex
	gens  map[string]uint64
}

var _ primary.ContextService = (*ContextServiceImpl)(nil)

// NewContextService creates a new ContextService with injected dependencies.
func NewContextService(deps ContextDeps, opts ContextOptions) *ContextServiceImpl {
	s := &ContextServiceImpl{
		deps:       deps,
		logger:     deps.Logger,
		ttl:        opts.TTL,
		stepBudget: opts.StepBudget,
		now:        opts.Now,
		gens:       map[string]uint64{},
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.ttl <= 0 {
		s.ttl = DefaultContextTTL
	}
	if s.stepBudget <= 0 {
		s.stepBudget = DefaultStepBudget
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.deps.Cache == nil {
		s.deps.Cache = cache.NewMemory(cache.WithClock(s.now))
	}
	return s
}

// Assemble returns the cached payload when fresh, otherwise assembles,
// caches and returns a new one. Concurrent misses for the same key share
// one assembly.
func (s *ContextServiceImpl) Assemble(ctx context.Context, req primary.AssembleRequest) (*primary.ContextPayload, error) {
	kind, err := workflow.ParseKind(req.Kind)
	if err != nil {
		return nil, errs.Invalid("kind", "%v", err)
	}
	roleName := normalizeRole(req.Role)
	key := cache.Key(string(kind), req.ID, roleName)
	entity := cache.EntityPrefix(string(kind), req.ID)

	if data, ok := s.deps.Cache.Get(ctx, key); ok {
		if payload, err := decodePayload(data); err == nil {
			return payload, nil
		}
		s.logger.Warn("discarding undecodable cached context", zap.String("key", key))
		s.deps.Cache.InvalidatePrefix(ctx, key)
	}

	// Callers arriving after an invalidation start a new flight rather than
	// joining one that may have read the old data.
	gen := s.generation(entity)
	v, err, _ := s.flight.Do(flightKey(key, gen), func() (interface{}, error) {
		payload, err := s.assemble(ctx, kind, req.ID, roleName)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode context payload: %w", err)
		}
		if !s.putIfCurrent(ctx, entity, gen, key, data, s.payloadTTL(payload)) {
			s.logger.Debug("context invalidated during assembly, not caching", zap.String("key", key))
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}

	// Decode what was cached so hits and misses are indistinguishable.
	return decodePayload(v.([]byte))
}

// Refresh discards the cached payload, then assembles anew.
func (s *ContextServiceImpl) Refresh(ctx context.Context, req primary.AssembleRequest) (*primary.ContextPayload, error) {
	kind, err := workflow.ParseKind(req.Kind)
	if err != nil {
		return nil, errs.Invalid("kind", "%v", err)
	}
	key := cache.Key(string(kind), req.ID, normalizeRole(req.Role))
	entity := cache.EntityPrefix(string(kind), req.ID)

	s.genMu.Lock()
	s.bump(entity)
	s.deps.Cache.InvalidatePrefix(ctx, key)
	s.genMu.Unlock()
	return s.Assemble(ctx, req)
}

// Invalidate drops cached payloads for the entity and every descendant.
func (s *ContextServiceImpl) Invalidate(ctx context.Context, kind, id string) error {
	k, err := workflow.ParseKind(kind)
	if err != nil {
		return errs.Invalid("kind", "%v", err)
	}

	targets := []levelRef{{kind: k, id: id}}

	switch k {
	case workflow.KindProject:
		items, err := s.deps.Entities.ListWorkItems(ctx, secondary.WorkItemFilters{ProjectID: id})
		if err != nil {
			return fmt.Errorf("failed to list work items for invalidation: %w", err)
		}
		for _, wi := range items {
			targets = append(targets, levelRef{kind: workflow.KindWorkItem, id: wi.ID})
			tasks, err := s.deps.Entities.ListTasks(ctx, secondary.TaskFilters{WorkItemID: wi.ID})
			if err != nil {
				return fmt.Errorf("failed to list tasks for invalidation: %w", err)
			}
			for _, t := range tasks {
				targets = append(targets, levelRef{kind: workflow.KindTask, id: t.ID})
			}
		}
	case workflow.KindWorkItem:
		tasks, err := s.deps.Entities.ListTasks(ctx, secondary.TaskFilters{WorkItemID: id})
		if err != nil {
			return fmt.Errorf("failed to list tasks for invalidation: %w", err)
		}
		for _, t := range tasks {
			targets = append(targets, levelRef{kind: workflow.KindTask, id: t.ID})
		}
	}

	s.genMu.Lock()
	for _, t := range targets {
		prefix := cache.EntityPrefix(string(t.kind), t.id)
		s.bump(prefix)
		s.deps.Cache.InvalidatePrefix(ctx, prefix)
	}
	s.genMu.Unlock()
	s.logger.Debug("context invalidated",
		zap.String("kind", string(k)),
		zap.String("id", id),
		zap.Int("entities", len(targets)))
	return nil
}

// generation returns the current invalidation count of an entity.
func (s *ContextServiceImpl) generation(entity string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.gens[entity]
}

// bump advances the entity's generation. Flights keyed on the old
// generation stop receiving new callers. Callers hold genMu.
func (s *ContextServiceImpl) bump(entity string) {
	s.gens[entity]++
}

// putIfCurrent caches data unless the entity was invalidated after gen was
// read. The check and the write happen under genMu, so an invalidation
// cannot slip between them.
func (s *ContextServiceImpl) putIfCurrent(ctx context.Context, entity string, gen uint64, key string, data []byte, ttl time.Duration) bool {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	if s.gens[entity] != gen {
		return false
	}
	s.deps.Cache.Put(ctx, key, data, ttl)
	return true
}

// payloadTTL shortens the lifetime of degraded payloads so a transient
// enrichment failure does not pin a low score.
func (s *ContextServiceImpl) payloadTTL(p *primary.ContextPayload) time.Duration {
	if len(p.Degraded) > 0 && degradedTTL < s.ttl {
		return degradedTTL
	}
	return s.ttl
}

func flightKey(key string, gen uint64) string {
	return fmt.Sprintf("%s#%d", key, gen)
}

// Confidence returns the role-less confidence of an entity's context.
func (s *ContextServiceImpl) Confidence(ctx context.Context, kind, id string) (*confidence.Payload, error) {
	payload, err := s.Assemble(ctx, primary.AssembleRequest{Kind: kind, ID: id})
	if err != nil {
		return nil, err
	}
	c := payload.Confidence
	return &c, nil
}

// GetSixW returns the context stored at exactly one level.
func (s *ContextServiceImpl) GetSixW(ctx context.Context, kind, id string) (*sixw.Context, error) {
	k, err := workflow.ParseKind(kind)
	if err != nil {
		return nil, errs.Invalid("kind", "%v", err)
	}
	if _, err := s.loadChain(ctx, k, id); err != nil {
		return nil, err
	}

	rec, err := s.deps.SixW.GetSixW(ctx, string(k), id)
	if err != nil {
		return nil, fmt.Errorf("failed to load 6W context: %w", err)
	}
	if rec == nil {
		c := sixw.Empty()
		return &c, nil
	}
	c := rec.Context.Clone()
	return &c, nil
}

// SetSixW replaces the context at one level and invalidates the entity and
// its descendants.
func (s *ContextServiceImpl) SetSixW(ctx context.Context, req primary.SetSixWRequest) error {
	k, err := workflow.ParseKind(req.Kind)
	if err != nil {
		return errs.Invalid("kind", "%v", err)
	}
	if _, err := s.loadChain(ctx, k, req.ID); err != nil {
		return err
	}

	c := req.Context.Clone()
	c.Normalize()
	if err := s.deps.SixW.PutSixW(ctx, &secondary.SixWRecord{
		EntityKind: string(k),
		EntityID:   req.ID,
		Context:    c,
		UpdatedAt:  s.now().UTC(),
	}); err != nil {
		return fmt.Errorf("failed to save 6W context: %w", err)
	}

	return s.Invalidate(ctx, string(k), req.ID)
}

// ============================================================================
// Assembly
// ============================================================================

// chain is an entity with its ancestors loaded.
type chain struct {
	kind     workflow.EntityKind
	id       string
	project  *secondary.ProjectRecord
	workItem *secondary.WorkItemRecord
	task     *secondary.TaskRecord
}

// levelRef names one stored 6W level of a chain.
type levelRef struct {
	level sixw.Level
	kind  workflow.EntityKind
	id    string
}

// levels returns the chain's levels from broadest to most specific.
func (c *chain) levels() []levelRef {
	var out []levelRef
	if c.project != nil {
		out = append(out, levelRef{sixw.LevelProject, workflow.KindProject, c.project.ID})
	}
	if c.workItem != nil {
		out = append(out, levelRef{sixw.LevelWorkItem, workflow.KindWorkItem, c.workItem.ID})
	}
	if c.task != nil {
		out = append(out, levelRef{sixw.LevelTask, workflow.KindTask, c.task.ID})
	}
	return out
}

// loadChain loads the entity and its ancestors. Any failure is fatal.
func (s *ContextServiceImpl) loadChain(ctx context.Context, kind workflow.EntityKind, id string) (*chain, error) {
	c := &chain{kind: kind, id: id}
	fatal := func(err error) error {
		return &errs.FatalLoadError{Kind: string(kind), ID: id, Err: err}
	}

	projectID := id
	switch kind {
	case workflow.KindTask:
		t, err := s.deps.Entities.GetTask(ctx, id)
		if err != nil {
			return nil, fatal(err)
		}
		c.task = t
		wi, err := s.deps.Entities.GetWorkItem(ctx, t.WorkItemID)
		if err != nil {
			return nil, fatal(fmt.Errorf("parent work item %s: %w", t.WorkItemID, err))
		}
		c.workItem = wi
		projectID = wi.ProjectID
	case workflow.KindWorkItem:
		wi, err := s.deps.Entities.GetWorkItem(ctx, id)
		if err != nil {
			return nil, fatal(err)
		}
		c.workItem = wi
		projectID = wi.ProjectID
	}

	p, err := s.deps.Entities.GetProject(ctx, projectID)
	if err != nil {
		if kind == workflow.KindProject {
			return nil, fatal(err)
		}
		return nil, fatal(fmt.Errorf("parent project %s: %w", projectID, err))
	}
	c.project = p
	return c, nil
}

// degradation collects enrichment failures from concurrent steps.
type degradation struct {
	mu    sync.Mutex
	steps []string
}

func (d *degradation) add(step string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range d.steps {
		if s == step {
			return
		}
	}
	d.steps = append(d.steps, step)
}

func (d *degradation) list() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := append([]string{}, d.steps...)
	sort.Strings(out)
	return out
}

func (s *ContextServiceImpl) degrade(d *degradation, c *chain, step string, err error) {
	d.add(step)
	s.logger.Warn("context enrichment degraded",
		zap.String("step", step),
		zap.String("kind", string(c.kind)),
		zap.String("id", c.id),
		zap.Error(err))
}

// runStep runs fn under its own budget. The step's goroutine is abandoned,
// not awaited, once the budget expires; its context is cancelled.
func runStep[T any](ctx context.Context, budget time.Duration, fn func(context.Context) (T, error)) (T, error) {
	stepCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn(stepCtx)
		ch <- result{v, err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-stepCtx.Done():
		var zero T
		return zero, fmt.Errorf("exceeded %s budget: %w", budget, stepCtx.Err())
	}
}

func (s *ContextServiceImpl) assemble(ctx context.Context, kind workflow.EntityKind, id, roleName string) (*primary.ContextPayload, error) {
	c, err := s.loadChain(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	deg := &degradation{}

	// 6W per level; a level that was never set is an empty context.
	contexts := map[sixw.Level]*sixw.Context{}
	var updated []*time.Time
	for _, l := range c.levels() {
		rec, err := s.deps.SixW.GetSixW(ctx, string(l.kind), l.id)
		if err != nil {
			s.degrade(deg, c, stepSixW, err)
			continue
		}
		if rec == nil {
			continue
		}
		cc := rec.Context
		contexts[l.level] = &cc
		ts := rec.UpdatedAt
		updated = append(updated, &ts)
	}
	merged := sixw.Merge(contexts[sixw.LevelProject], contexts[sixw.LevelWorkItem], contexts[sixw.LevelTask])

	var (
		facts     = map[string]confidence.TechnologyFact{}
		refs      = []primary.AmalgamationRef{}
		procedure string
		sessions  = []primary.SessionSummary{}
		rules     = []secondary.RuleRef{}
	)

	var g errgroup.Group

	g.Go(func() error {
		if s.deps.Facts == nil {
			return nil
		}
		f, err := runStep(ctx, s.stepBudget, func(ctx context.Context) (map[string]confidence.TechnologyFact, error) {
			return s.deps.Facts.GetPluginFacts(ctx, c.project.ID)
		})
		if err != nil {
			s.degrade(deg, c, stepPluginFacts, err)
			return nil
		}
		for k, v := range f {
			facts[k] = v
		}
		return nil
	})

	g.Go(func() error {
		if s.deps.CodeRefs == nil {
			return nil
		}
		r, err := runStep(ctx, s.stepBudget, func(ctx context.Context) ([]primary.AmalgamationRef, error) {
			return s.resolveRefs(ctx, c)
		})
		if err != nil {
			s.degrade(deg, c, stepAmalgamation, err)
			return nil
		}
		refs = append(refs, r...)
		return nil
	})

	if roleName != "" && s.deps.Procedures != nil {
		g.Go(func() error {
			text, err := runStep(ctx, s.stepBudget, func(ctx context.Context) (string, error) {
				t, _, err := s.deps.Procedures.ProcedureText(ctx, roleName)
				return t, err
			})
			if err != nil {
				s.degrade(deg, c, stepProcedure, err)
				return nil
			}
			procedure = text
			return nil
		})
	}

	if c.workItem != nil && s.deps.Sessions != nil {
		g.Go(func() error {
			recs, err := runStep(ctx, s.stepBudget, func(ctx context.Context) ([]*secondary.SessionRecord, error) {
				return s.deps.Sessions.RecentSessions(ctx, c.workItem.ID, maxSessions)
			})
			if err != nil {
				s.degrade(deg, c, stepSessions, err)
				return nil
			}
			for i, r := range recs {
				if i == maxSessions {
					break
				}
				sessions = append(sessions, primary.SessionSummary{
					ID:      r.ID,
					Role:    r.Role,
					Summary: r.Summary,
					EndedAt: r.EndedAt.UTC(),
				})
			}
			return nil
		})
	}

	if s.deps.Rules != nil {
		g.Go(func() error {
			taskType, phase := "", ""
			if c.task != nil {
				taskType = c.task.Type
			}
			if c.workItem != nil {
				phase = c.workItem.Phase
			}
			r, err := runStep(ctx, s.stepBudget, func(ctx context.Context) ([]secondary.RuleRef, error) {
				return s.deps.Rules.ApplicableRules(ctx, taskType, phase)
			})
			if err != nil {
				s.degrade(deg, c, stepRules, err)
				return nil
			}
			rules = append(rules, r...)
			return nil
		})
	}

	_ = g.Wait()

	resolved := 0
	for _, r := range refs {
		if r.Resolved {
			resolved++
		}
	}

	now := s.now().UTC()
	fresh := confidence.EvaluateFreshness(confidence.Latest(updated...), now)
	factors := confidence.Factors{
		SixWCompleteness:     merged.Completeness(),
		PluginFactsQuality:   confidence.PluginFactsQuality(facts),
		AmalgamationCoverage: confidence.Ratio(resolved, len(refs)),
		FreshnessFactor:      fresh.DecayFactor,
	}
	score, err := confidence.Score(factors)
	if err != nil {
		return nil, fmt.Errorf("failed to score context: %w", err)
	}

	filtered := role.Filter(merged, facts, roleName)

	return &primary.ContextPayload{
		EntityID:               id,
		EntityKind:             string(kind),
		Role:                   roleName,
		MergedContext:          filtered.Merged,
		Confidence:             score,
		Freshness:              fresh,
		PluginFacts:            filtered.Facts,
		AmalgamationRefs:       refs,
		InjectedProcedureText:  procedure,
		RecentSessionSummaries: sessions,
		ApplicableRules:        rules,
		FilteredFields:         filtered.DroppedFields,
		Degraded:               deg.list(),
		AssembledAt:            now,
	}, nil
}

// resolveRefs lists code references at every level and resolves them
// against the project root. Duplicate paths count once.
func (s *ContextServiceImpl) resolveRefs(ctx context.Context, c *chain) ([]primary.AmalgamationRef, error) {
	var (
		paths  []string
		levels = map[string]sixw.Level{}
	)
	for _, l := range c.levels() {
		recs, err := s.deps.CodeRefs.ListCodeRefs(ctx, string(l.kind), l.id)
		if err != nil {
			return nil, fmt.Errorf("failed to list code refs: %w", err)
		}
		for _, r := range recs {
			if _, seen := levels[r.Path]; seen {
				continue
			}
			levels[r.Path] = l.level
			paths = append(paths, r.Path)
		}
	}
	if len(paths) == 0 {
		return nil, nil
	}

	out := make([]primary.AmalgamationRef, len(paths))
	for i, p := range paths {
		out[i] = primary.AmalgamationRef{Path: p, Level: string(levels[p])}
	}
	if s.deps.Resolver == nil {
		return out, nil
	}

	resolved, err := s.deps.Resolver.Resolve(ctx, c.project.RootPath, paths)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve code refs: %w", err)
	}
	found := make(map[string]bool, len(resolved))
	for _, r := range resolved {
		found[r.Path] = r.Resolved
	}
	for i := range out {
		out[i].Resolved = found[out[i].Path]
	}
	return out, nil
}

func decodePayload(data []byte) (*primary.ContextPayload, error) {
	var p primary.ContextPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode context payload: %w", err)
	}
	return &p, nil
}

func normalizeRole(r string) string {
	return strings.ToLower(strings.TrimSpace(r))
}
