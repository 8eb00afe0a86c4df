package gate

import (
	"strings"
	"testing"

	"github.com/example/apm/internal/core/confidence"
	"github.com/example/apm/internal/core/workflow"
)

func readyInput() Input {
	return Input{
		WorkItemID:      "WI-001",
		WorkItemType:    TypeFeature,
		BusinessContext: "Finance needs monthly CSV exports to close the books without manual copying.",
		AcceptanceCriteria: []Criterion{
			{Text: "export button on report page", Met: true},
			{Text: "csv opens in spreadsheet tools", Met: true},
			{Text: "export completes under 5s", Met: true},
		},
		Risks:        []string{"large reports may time out"},
		TestsPassing: true,
		Tasks: []TaskInfo{
			{ID: "TASK-001", Type: TaskDesign, Status: workflow.StatusDone, EffortHours: 2},
			{ID: "TASK-002", Type: TaskImplementation, Status: workflow.StatusDone, EffortHours: 4},
			{ID: "TASK-003", Type: TaskTesting, Status: workflow.StatusDone, EffortHours: 3},
			{ID: "TASK-004", Type: TaskDocumentation, Status: workflow.StatusCancelled, EffortHours: 0},
			{ID: "TASK-005", Type: TaskDocumentation, Status: workflow.StatusDone, EffortHours: 1},
		},
		Retrospective: "Streaming rows kept memory flat.",
		Confidence:    0.85,
		Band:          confidence.BandGreen,
	}
}

func containsMissing(r Result, substr string) bool {
	for _, m := range r.Missing {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

func TestAllGatesPassOnReadyInput(t *testing.T) {
	for _, p := range workflow.AllPhases {
		t.Run(string(p), func(t *testing.T) {
			r := Validate(p, readyInput())
			if !r.Passed {
				t.Errorf("gate %s blocked: %v", p, r.Missing)
			}
			if r.Phase != p {
				t.Errorf("Phase = %s, want %s", r.Phase, p)
			}
			if r.Error() != nil {
				t.Errorf("Error() = %v, want nil", r.Error())
			}
		})
	}
}

func TestDiscovery(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(in *Input)
		wantPassed  bool
		wantMissing string
	}{
		{name: "complete discovery passes", mutate: func(in *Input) {}, wantPassed: true},
		{
			name:        "10 character business context blocks",
			mutate:      func(in *Input) { in.BusinessContext = "Do exports" },
			wantMissing: "business context is 10 characters, need at least 50",
		},
		{
			name:        "two criteria blocks",
			mutate:      func(in *Input) { in.AcceptanceCriteria = in.AcceptanceCriteria[:2] },
			wantMissing: "2 acceptance criteria defined, need at least 3",
		},
		{
			name:        "blank risks do not count",
			mutate:      func(in *Input) { in.Risks = []string{" "} },
			wantMissing: "no risks identified",
		},
		{
			name:        "low confidence blocks",
			mutate:      func(in *Input) { in.Confidence = 0.69 },
			wantMissing: "context confidence 0.69 is below 0.70",
		},
		{
			name:       "confidence exactly at threshold passes",
			mutate:     func(in *Input) { in.Confidence = 0.70 },
			wantPassed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := readyInput()
			tt.mutate(&in)
			r := Discovery(in)
			if r.Passed != tt.wantPassed {
				t.Errorf("Passed = %v, want %v (missing %v)", r.Passed, tt.wantPassed, r.Missing)
			}
			if tt.wantMissing != "" && !containsMissing(r, tt.wantMissing) {
				t.Errorf("Missing = %v, want an entry containing %q", r.Missing, tt.wantMissing)
			}
		})
	}
}

func TestPlanning(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(in *Input)
		wantPassed  bool
		wantMissing string
	}{
		{name: "estimated tasks pass", mutate: func(in *Input) {}, wantPassed: true},
		{
			name:        "no tasks blocks",
			mutate:      func(in *Input) { in.Tasks = nil },
			wantMissing: "work item WI-001 has no tasks",
		},
		{
			name:        "unestimated task blocks",
			mutate:      func(in *Input) { in.Tasks[1].EffortHours = 0 },
			wantMissing: "task TASK-002 has no effort estimate",
		},
		{
			name:        "red confidence blocks",
			mutate:      func(in *Input) { in.Confidence = 0.3 },
			wantMissing: "context confidence 0.30 is below 0.50",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := readyInput()
			tt.mutate(&in)
			r := Planning(in)
			if r.Passed != tt.wantPassed {
				t.Errorf("Passed = %v, want %v (missing %v)", r.Passed, tt.wantPassed, r.Missing)
			}
			if tt.wantMissing != "" && !containsMissing(r, tt.wantMissing) {
				t.Errorf("Missing = %v, want an entry containing %q", r.Missing, tt.wantMissing)
			}
		})
	}
}

func TestImplementation(t *testing.T) {
	tests := []struct {
		name         string
		mutate       func(in *Input)
		wantPassed   bool
		wantMissing  string
		wantWarnings int
	}{
		{name: "implementation task at 4h passes", mutate: func(in *Input) {}, wantPassed: true},
		{
			name:        "implementation task at 5h is a hard block",
			mutate:      func(in *Input) { in.Tasks[1].EffortHours = 5 },
			wantMissing: "implementation task TASK-002 is 5h, exceeding its 4h time-box",
		},
		{
			name:         "testing task over its time-box only warns",
			mutate:       func(in *Input) { in.Tasks[2].EffortHours = 7 },
			wantPassed:   true,
			wantWarnings: 1,
		},
		{
			name:        "missing required task type blocks",
			mutate:      func(in *Input) { in.Tasks = in.Tasks[:3] },
			wantMissing: "feature work item requires at least one documentation task",
		},
		{
			name: "cancelled task does not satisfy coverage",
			mutate: func(in *Input) {
				in.Tasks[0].Status = workflow.StatusCancelled
			},
			wantMissing: "requires at least one design task",
		},
		{
			name:        "red band blocks",
			mutate:      func(in *Input) { in.Confidence, in.Band = 0.4, confidence.BandRed },
			wantMissing: "context confidence 0.40 is red",
		},
		{
			name:       "yellow band passes",
			mutate:     func(in *Input) { in.Confidence, in.Band = 0.6, confidence.BandYellow },
			wantPassed: true,
		},
		{
			name: "bugfix needs analysis",
			mutate: func(in *Input) {
				in.WorkItemType = TypeBugfix
				in.Tasks = []TaskInfo{
					{ID: "TASK-010", Type: TaskBugfix, Status: workflow.StatusReady, EffortHours: 2},
					{ID: "TASK-011", Type: TaskTesting, Status: workflow.StatusReady, EffortHours: 1},
				}
			},
			wantMissing: "bugfix work item requires at least one analysis task",
		},
		{
			name:         "unknown work item type warns",
			mutate:       func(in *Input) { in.WorkItemType = "spike" },
			wantPassed:   true,
			wantWarnings: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := readyInput()
			tt.mutate(&in)
			r := Implementation(in)
			if r.Passed != tt.wantPassed {
				t.Errorf("Passed = %v, want %v (missing %v)", r.Passed, tt.wantPassed, r.Missing)
			}
			if tt.wantMissing != "" && !containsMissing(r, tt.wantMissing) {
				t.Errorf("Missing = %v, want an entry containing %q", r.Missing, tt.wantMissing)
			}
			if len(r.Warnings) != tt.wantWarnings {
				t.Errorf("Warnings = %v, want %d", r.Warnings, tt.wantWarnings)
			}
		})
	}
}

func TestReview(t *testing.T) {
	in := readyInput()
	in.AcceptanceCriteria[1].Met = false
	in.TestsPassing = false

	r := Review(in)

	if r.Passed {
		t.Fatal("review should block")
	}
	if !containsMissing(r, "acceptance criterion 2 not met: csv opens in spreadsheet tools") {
		t.Errorf("Missing = %v", r.Missing)
	}
	if !containsMissing(r, "tests are not passing") {
		t.Errorf("Missing = %v", r.Missing)
	}
	if err := r.Error(); err == nil || !strings.HasPrefix(err.Error(), "R1 gate blocked") {
		t.Errorf("Error() = %v", err)
	}
}

func TestOperationsAndEvolution(t *testing.T) {
	in := readyInput()
	in.Tasks[2].Status = workflow.StatusReview
	in.Retrospective = "  "

	if r := Operations(in); r.Passed || !containsMissing(r, "task TASK-003 is review") {
		t.Errorf("Operations = %+v", r)
	}
	if r := Evolution(in); r.Passed || !containsMissing(r, "no retrospective recorded") {
		t.Errorf("Evolution = %+v", r)
	}
}

func TestValidateTask(t *testing.T) {
	tests := []struct {
		name       string
		in         TaskInput
		wantPassed bool
	}{
		{name: "implementation within time-box", in: TaskInput{TaskID: "TASK-001", Type: TaskImplementation, EffortHours: 4, Band: confidence.BandYellow}, wantPassed: true},
		{name: "implementation over time-box", in: TaskInput{TaskID: "TASK-001", Type: TaskImplementation, EffortHours: 5, Band: confidence.BandGreen}},
		{name: "design over time-box warns", in: TaskInput{TaskID: "TASK-002", Type: TaskDesign, EffortHours: 9, Band: confidence.BandGreen}, wantPassed: true},
		{name: "research is unbounded", in: TaskInput{TaskID: "TASK-003", Type: TaskResearch, EffortHours: 40, Band: confidence.BandGreen}, wantPassed: true},
		{name: "red context blocks", in: TaskInput{TaskID: "TASK-004", Type: TaskTesting, EffortHours: 1, Band: confidence.BandRed}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ValidateTask(tt.in)
			if r.Passed != tt.wantPassed {
				t.Errorf("Passed = %v, want %v (missing %v)", r.Passed, tt.wantPassed, r.Missing)
			}
		})
	}
}

func TestTimeBoxes(t *testing.T) {
	tests := []struct {
		taskType TaskType
		want     float64
	}{
		{TaskImplementation, 4}, {TaskBugfix, 4}, {TaskDeployment, 4}, {TaskRefactoring, 4},
		{TaskTesting, 6}, {TaskDocumentation, 6},
		{TaskDesign, 8}, {TaskAnalysis, 8},
	}
	for _, tt := range tests {
		got, ok := TimeBox(tt.taskType)
		if !ok || got != tt.want {
			t.Errorf("TimeBox(%s) = %v, %v; want %v", tt.taskType, got, ok, tt.want)
		}
	}
	if _, ok := TimeBox(TaskResearch); ok {
		t.Error("research should have no time-box")
	}
}

func TestRequiredTaskTypesCoverEveryWorkItemType(t *testing.T) {
	for _, wt := range []WorkItemType{TypeFeature, TypeEnhancement, TypeBugfix, TypeRefactoring, TypeInfrastructure, TypeResearch, TypePlanning} {
		if len(RequiredTaskTypes(wt)) == 0 {
			t.Errorf("%s has no required task types", wt)
		}
		if _, err := ParseWorkItemType(string(wt)); err != nil {
			t.Errorf("ParseWorkItemType(%s) error = %v", wt, err)
		}
		for _, tt := range RequiredTaskTypes(wt) {
			if _, err := ParseTaskType(string(tt)); err != nil {
				t.Errorf("required type %s does not parse: %v", tt, err)
			}
		}
	}
}

func TestCombine(t *testing.T) {
	p1 := Result{Phase: workflow.PhaseP1, Passed: true, Missing: []string{}, Warnings: []string{"w"}}
	i1 := Result{Phase: workflow.PhaseI1, Passed: false, Missing: []string{"m"}, Warnings: []string{}, Confidence: 0.7}

	got := Combine(p1, i1)
	if got.Passed || got.Phase != workflow.PhaseI1 {
		t.Errorf("Combine = %+v, want blocked at I1", got)
	}
	if len(got.Missing) != 1 || len(got.Warnings) != 1 {
		t.Errorf("Combine lists = %v / %v", got.Missing, got.Warnings)
	}

	all := Combine(p1, p1)
	if !all.Passed || all.Phase != workflow.PhaseP1 {
		t.Errorf("Combine passing = %+v", all)
	}
}
