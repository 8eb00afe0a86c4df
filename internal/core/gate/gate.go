// Package gate contains the pure phase gate validators (D1 through E1) and
// the task-type policy they enforce. Validators never mutate state; the
// caller supplies confidence already computed by context assembly.
package gate

import (
	"fmt"
	"strings"

	"github.com/example/apm/internal/core/confidence"
	"github.com/example/apm/internal/core/workflow"
)

// Thresholds enforced by the gates.
const (
	MinBusinessContextChars = 50
	MinAcceptanceCriteria   = 3
	MinRisks                = 1
	MinDiscoveryConfidence  = 0.70
	MinPlanningConfidence   = 0.50
)

// Criterion is an acceptance criterion and whether it has been met.
type Criterion struct {
	Text string `json:"text"`
	Met  bool   `json:"met"`
}

// TaskInfo is the slice of a task the gates need.
type TaskInfo struct {
	ID          string
	Type        TaskType
	Status      workflow.Status
	EffortHours float64
}

// Input is everything a work item gate looks at.
type Input struct {
	WorkItemID         string
	WorkItemType       WorkItemType
	BusinessContext    string
	AcceptanceCriteria []Criterion
	Risks              []string
	TestsPassing       bool
	Retrospective      string
	Tasks              []TaskInfo
	Confidence         float64
	Band               confidence.Band
}

// TaskInput is the task-level implementation check input.
type TaskInput struct {
	TaskID      string
	Type        TaskType
	EffortHours float64
	Confidence  float64
	Band        confidence.Band
}

// Result is a gate verdict. Missing holds blocking requirements; Warnings
// are advisory and never block.
type Result struct {
	Phase      workflow.Phase `json:"phase"`
	Passed     bool           `json:"passed"`
	Missing    []string       `json:"missing"`
	Warnings   []string       `json:"warnings"`
	Confidence float64        `json:"confidence"`
}

// Error converts the result to an error if the gate did not pass.
func (r Result) Error() error {
	if r.Passed {
		return nil
	}
	return fmt.Errorf("%s gate blocked: %s", r.Phase, strings.Join(r.Missing, "; "))
}

type verdict struct {
	Result
}

func newVerdict(p workflow.Phase, conf float64) *verdict {
	return &verdict{Result{Phase: p, Missing: []string{}, Warnings: []string{}, Confidence: conf}}
}

func (v *verdict) miss(format string, args ...any) {
	v.Missing = append(v.Missing, fmt.Sprintf(format, args...))
}

func (v *verdict) warn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}

func (v *verdict) done() Result {
	v.Passed = len(v.Missing) == 0
	return v.Result
}

// Validate runs the gate for phase against a work item.
func Validate(phase workflow.Phase, in Input) Result {
	switch phase {
	case workflow.PhaseD1:
		return Discovery(in)
	case workflow.PhaseP1:
		return Planning(in)
	case workflow.PhaseI1:
		return Implementation(in)
	case workflow.PhaseR1:
		return Review(in)
	case workflow.PhaseO1:
		return Operations(in)
	case workflow.PhaseE1:
		return Evolution(in)
	}
	v := newVerdict(phase, in.Confidence)
	v.miss("unknown phase %q", phase)
	return v.done()
}

// Discovery (D1) rules:
// - business context of at least 50 characters
// - at least 3 acceptance criteria
// - at least 1 identified risk
// - context confidence of at least 0.70
func Discovery(in Input) Result {
	v := newVerdict(workflow.PhaseD1, in.Confidence)

	if n := len([]rune(strings.TrimSpace(in.BusinessContext))); n < MinBusinessContextChars {
		v.miss("business context is %d characters, need at least %d", n, MinBusinessContextChars)
	}
	if n := countNonBlank(criteriaTexts(in.AcceptanceCriteria)); n < MinAcceptanceCriteria {
		v.miss("%d acceptance criteria defined, need at least %d", n, MinAcceptanceCriteria)
	}
	if n := countNonBlank(in.Risks); n < MinRisks {
		v.miss("no risks identified, need at least %d", MinRisks)
	}
	if in.Confidence < MinDiscoveryConfidence {
		v.miss("context confidence %.2f is below %.2f", in.Confidence, MinDiscoveryConfidence)
	}

	return v.done()
}

// Planning (P1) rules:
// - at least one task
// - every non-cancelled task has an effort estimate
// - context confidence of at least 0.50
func Planning(in Input) Result {
	v := newVerdict(workflow.PhaseP1, in.Confidence)

	if len(in.Tasks) == 0 {
		v.miss("work item %s has no tasks", in.WorkItemID)
	}
	for _, t := range in.Tasks {
		if t.Status == workflow.StatusCancelled {
			continue
		}
		if t.EffortHours <= 0 {
			v.miss("task %s has no effort estimate", t.ID)
		}
	}
	if in.Confidence < MinPlanningConfidence {
		v.miss("context confidence %.2f is below %.2f", in.Confidence, MinPlanningConfidence)
	}

	return v.done()
}

// Implementation (I1) rules:
// - every task type required by the work item type is present
// - no task exceeds its type's time-box (hard block for implementation tasks)
// - context confidence is not red
func Implementation(in Input) Result {
	v := newVerdict(workflow.PhaseI1, in.Confidence)

	present := make(map[TaskType]bool)
	for _, t := range in.Tasks {
		if t.Status == workflow.StatusCancelled {
			continue
		}
		present[t.Type] = true
	}

	if _, known := requiredTaskTypes[in.WorkItemType]; !known {
		v.warn("no task-type policy for work item type %q", in.WorkItemType)
	}
	for _, req := range requiredTaskTypes[in.WorkItemType] {
		if !present[req] {
			v.miss("%s work item requires at least one %s task", in.WorkItemType, req)
		}
	}

	for _, t := range in.Tasks {
		if t.Status == workflow.StatusCancelled {
			continue
		}
		msg := CheckTimeBox(t.ID, t.Type, t.EffortHours)
		if msg == "" {
			continue
		}
		if IsHardTimeBox(t.Type) {
			v.miss("%s", msg)
		} else {
			v.warn("%s", msg)
		}
	}

	if in.Band == confidence.BandRed {
		v.miss("context confidence %.2f is red", in.Confidence)
	}

	return v.done()
}

// Review (R1) rules:
// - every acceptance criterion is marked met
// - tests are passing
func Review(in Input) Result {
	v := newVerdict(workflow.PhaseR1, in.Confidence)

	if len(in.AcceptanceCriteria) == 0 {
		v.miss("no acceptance criteria to verify")
	}
	for i, c := range in.AcceptanceCriteria {
		if !c.Met {
			v.miss("acceptance criterion %d not met: %s", i+1, c.Text)
		}
	}
	if !in.TestsPassing {
		v.miss("tests are not passing")
	}

	return v.done()
}

// Operations (O1) rules:
// - every task is done or cancelled
func Operations(in Input) Result {
	v := newVerdict(workflow.PhaseO1, in.Confidence)

	for _, t := range in.Tasks {
		if t.Status != workflow.StatusDone && t.Status != workflow.StatusCancelled && t.Status != workflow.StatusArchived {
			v.miss("task %s is %s, must be done or cancelled", t.ID, t.Status)
		}
	}

	return v.done()
}

// Evolution (E1) rules:
// - a retrospective is recorded
func Evolution(in Input) Result {
	v := newVerdict(workflow.PhaseE1, in.Confidence)

	if strings.TrimSpace(in.Retrospective) == "" {
		v.miss("no retrospective recorded for work item %s", in.WorkItemID)
	}

	return v.done()
}

// ValidateTask runs the task-level implementation check applied when a task starts:
// - the task respects its type's time-box (hard block for implementation tasks)
// - context confidence is not red
func ValidateTask(in TaskInput) Result {
	v := newVerdict(workflow.PhaseI1, in.Confidence)

	if msg := CheckTimeBox(in.TaskID, in.Type, in.EffortHours); msg != "" {
		if IsHardTimeBox(in.Type) {
			v.miss("%s", msg)
		} else {
			v.warn("%s", msg)
		}
	}
	if in.Band == confidence.BandRed {
		v.miss("context confidence %.2f is red", in.Confidence)
	}

	return v.done()
}

// Combine folds several gate results into one, keeping the phase of the
// first failing gate (or the last gate when all pass).
func Combine(results ...Result) Result {
	out := Result{Missing: []string{}, Warnings: []string{}, Passed: true}
	for _, r := range results {
		if out.Passed {
			out.Phase = r.Phase
		}
		out.Passed = out.Passed && r.Passed
		out.Missing = append(out.Missing, r.Missing...)
		out.Warnings = append(out.Warnings, r.Warnings...)
		out.Confidence = r.Confidence
	}
	return out
}

func criteriaTexts(cs []Criterion) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Text
	}
	return out
}

func countNonBlank(ss []string) int {
	n := 0
	for _, s := range ss {
		if strings.TrimSpace(s) != "" {
			n++
		}
	}
	return n
}
