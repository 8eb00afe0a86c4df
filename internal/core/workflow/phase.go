package workflow

type gateRule struct {
	gates []Phase
	after Phase
}

// phaseRules correlates work item transitions with the gates that must pass
// and the phase recorded afterwards. Rework transitions run no gate.
var phaseRules = map[pair]gateRule{
	{StatusDraft, StatusReady}:   {gates: []Phase{PhaseD1}, after: PhaseP1},
	{StatusReady, StatusActive}:  {gates: []Phase{PhaseP1, PhaseI1}, after: PhaseI1},
	{StatusActive, StatusReview}: {gates: []Phase{PhaseR1}, after: PhaseR1},
	{StatusReview, StatusDone}:   {gates: []Phase{PhaseO1}, after: PhaseO1},
	{StatusDone, StatusArchived}: {gates: []Phase{PhaseE1}, after: PhaseE1},
	{StatusReview, StatusActive}: {after: PhaseI1},
	{StatusReady, StatusDraft}:   {after: PhaseD1},
}

// GatesFor returns the gates a transition must pass, in evaluation order.
// Tasks carry no phase; their ready->active transition runs the task-level
// implementation check, reported as I1.
func GatesFor(kind EntityKind, from, to Status) []Phase {
	if kind == KindTask {
		if from == StatusReady && to == StatusActive {
			return []Phase{PhaseI1}
		}
		return nil
	}
	rule, ok := phaseRules[pair{from, to}]
	if !ok || len(rule.gates) == 0 {
		return nil
	}
	out := make([]Phase, len(rule.gates))
	copy(out, rule.gates)
	return out
}

// PhaseAfter returns the phase a work item holds after the transition. The
// current phase is kept for transitions that do not touch a phase boundary.
// Tasks have no phase and always get "".
func PhaseAfter(kind EntityKind, from, to Status, current Phase) Phase {
	if kind != KindWorkItem {
		return ""
	}
	if rule, ok := phaseRules[pair{from, to}]; ok {
		return rule.after
	}
	return current
}
