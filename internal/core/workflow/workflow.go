// Package workflow contains the pure status transition rules for work items
// and tasks and the correlation between transitions and phase gates.
// Guards are pure functions that evaluate preconditions without side effects.
package workflow

import (
	"fmt"
	"sort"
	"strings"
)

// EntityKind identifies what a transition applies to.
type EntityKind string

const (
	KindProject  EntityKind = "project"
	KindWorkItem EntityKind = "work_item"
	KindTask     EntityKind = "task"
)

// ParseKind accepts the canonical names plus the CLI spellings "workitem" and "work-item".
func ParseKind(s string) (EntityKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "project":
		return KindProject, nil
	case "work_item", "workitem", "work-item":
		return KindWorkItem, nil
	case "task":
		return KindTask, nil
	}
	return "", fmt.Errorf("unknown entity kind %q (expected project, work_item or task)", s)
}

// Status is the lifecycle status of a work item or task.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusReady     Status = "ready"
	StatusActive    Status = "active"
	StatusBlocked   Status = "blocked"
	StatusReview    Status = "review"
	StatusDone      Status = "done"
	StatusCancelled Status = "cancelled"
	StatusArchived  Status = "archived"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{
	StatusDraft, StatusReady, StatusActive, StatusBlocked,
	StatusReview, StatusDone, StatusCancelled, StatusArchived,
}

// ParseStatus validates a status name.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllStatuses {
		if st == known {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Phase is one of the six lifecycle phases of a work item.
type Phase string

const (
	PhaseD1 Phase = "D1" // Discovery
	PhaseP1 Phase = "P1" // Planning
	PhaseI1 Phase = "I1" // Implementation
	PhaseR1 Phase = "R1" // Review
	PhaseO1 Phase = "O1" // Operations
	PhaseE1 Phase = "E1" // Evolution
)

// AllPhases lists the phases in order.
var AllPhases = []Phase{PhaseD1, PhaseP1, PhaseI1, PhaseR1, PhaseO1, PhaseE1}

// ParsePhase validates a phase name, case-insensitively.
func ParsePhase(s string) (Phase, error) {
	p := Phase(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range AllPhases {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown phase %q (expected one of D1, P1, I1, R1, O1, E1)", s)
}

// Name returns the long phase name.
func (p Phase) Name() string {
	switch p {
	case PhaseD1:
		return "Discovery"
	case PhaseP1:
		return "Planning"
	case PhaseI1:
		return "Implementation"
	case PhaseR1:
		return "Review"
	case PhaseO1:
		return "Operations"
	case PhaseE1:
		return "Evolution"
	}
	return string(p)
}

type set map[Status]struct{}

func of(statuses ...Status) set {
	s := make(set, len(statuses))
	for _, st := range statuses {
		s[st] = struct{}{}
	}
	return s
}

var workItemTransitions = map[Status]set{
	StatusDraft:     of(StatusReady, StatusCancelled),
	StatusReady:     of(StatusActive, StatusDraft),
	StatusActive:    of(StatusReview, StatusBlocked),
	StatusBlocked:   of(StatusActive, StatusCancelled),
	StatusReview:    of(StatusActive, StatusDone),
	StatusDone:      of(StatusArchived),
	StatusCancelled: of(StatusArchived),
	StatusArchived:  of(),
}

// Tasks follow the work item table and may also be cancelled once ready.
var taskTransitions = map[Status]set{
	StatusDraft:     of(StatusReady, StatusCancelled),
	StatusReady:     of(StatusActive, StatusDraft, StatusCancelled),
	StatusActive:    of(StatusReview, StatusBlocked),
	StatusBlocked:   of(StatusActive, StatusCancelled),
	StatusReview:    of(StatusActive, StatusDone),
	StatusDone:      of(StatusArchived),
	StatusCancelled: of(StatusArchived),
	StatusArchived:  of(),
}

type pair struct{ from, to Status }

// forbidden pairs are rejected with a specific reason regardless of the tables.
var forbidden = map[pair]string{
	{StatusDraft, StatusActive}: "cannot skip from draft directly to active: move to ready first",
	{StatusDone, StatusActive}:  "cannot reopen done work directly to active",
	{StatusActive, StatusDone}:  "cannot skip review: move active work to review first",
}

func tableFor(kind EntityKind) (map[Status]set, bool) {
	switch kind {
	case KindWorkItem:
		return workItemTransitions, true
	case KindTask:
		return taskTransitions, true
	}
	return nil, false
}

// Result represents the outcome of a transition check.
type Result struct {
	Allowed bool
	Reason  string
}

// Error converts the result to an error if not allowed.
func (r Result) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%s", r.Reason)
}

// ValidateTransition checks whether kind may move from current to requested.
// Rules:
// - Kind must carry a status lifecycle (work items and tasks)
// - Requested must differ from current
// - Forbidden pairs are always rejected
// - Requested must be reachable in one step per the table
func ValidateTransition(kind EntityKind, current, requested Status) Result {
	table, ok := tableFor(kind)
	if !ok {
		return Result{Allowed: false, Reason: fmt.Sprintf("%s has no status lifecycle", kind)}
	}

	next, ok := table[current]
	if !ok {
		return Result{Allowed: false, Reason: fmt.Sprintf("unknown current status %q", current)}
	}

	if current == requested {
		return Result{Allowed: false, Reason: fmt.Sprintf("%s is already %s", kind, current)}
	}

	if reason, bad := forbidden[pair{current, requested}]; bad {
		return Result{Allowed: false, Reason: reason}
	}

	if _, ok := next[requested]; !ok {
		allowed := Next(kind, current)
		if len(allowed) == 0 {
			return Result{Allowed: false, Reason: fmt.Sprintf("%s is terminal; no transitions allowed", current)}
		}
		names := make([]string, len(allowed))
		for i, s := range allowed {
			names[i] = string(s)
		}
		return Result{
			Allowed: false,
			Reason:  fmt.Sprintf("cannot transition %s from %s to %s (allowed: %s)", kind, current, requested, strings.Join(names, ", ")),
		}
	}

	return Result{Allowed: true}
}

// Next returns the statuses reachable from current, in lifecycle order.
func Next(kind EntityKind, current Status) []Status {
	table, ok := tableFor(kind)
	if !ok {
		return nil
	}
	out := []Status{}
	for s := range table[current] {
		out = append(out, s)
	}
	order := make(map[Status]int, len(AllStatuses))
	for i, s := range AllStatuses {
		order[s] = i
	}
	sort.Slice(out, func(i, j int) bool { return order[out[i]] < order[out[j]] })
	return out
}

// IsRework reports whether the transition moves work backwards in the lifecycle.
func IsRework(from, to Status) bool {
	return (from == StatusReview && to == StatusActive) || (from == StatusReady && to == StatusDraft)
}
