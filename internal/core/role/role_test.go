package role

import (
	"testing"
	"time"

	"github.com/example/apm/internal/core/confidence"
	"github.com/example/apm/internal/core/sixw"
)

func fullMerged() sixw.Merged {
	deadline := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	task := sixw.Context{
		EndUsers:               []string{"ops"},
		Implementers:           []string{"alice"},
		Reviewers:              []string{"bob"},
		FunctionalRequirements: []string{"export csv"},
		TechnicalConstraints:   []string{"no cgo"},
		AcceptanceCriteria:     []string{"csv opens in excel"},
		AffectedServices:       []string{"reports"},
		Repositories:           []string{"org/reports"},
		DeploymentTargets:      []string{"prod"},
		Deadline:               &deadline,
		DependenciesTimeline:   []string{"schema v2 first"},
		BusinessValue:          "unblocks finance",
		RiskIfDelayed:          "quarter close slips",
		SuggestedApproach:      "stream rows",
		ExistingPatterns:       []string{"pdf exporter"},
	}
	return sixw.Merge(nil, nil, &task)
}

func TestEveryFieldIsClassified(t *testing.T) {
	for _, f := range sixw.AllFields {
		_, mapped := fieldCapabilities[f]
		if mapped == alwaysKept[f] {
			t.Errorf("field %s must be either capability-mapped or always kept, not both or neither", f)
		}
	}
}

func TestEveryRoleHasCapabilities(t *testing.T) {
	for _, name := range Known() {
		r, ok := Parse(name)
		if !ok {
			t.Fatalf("Parse(%q) not ok", name)
		}
		if len(Capabilities(r)) == 0 {
			t.Errorf("role %s has no capabilities", r)
		}
		for _, c := range Capabilities(r) {
			if c.String() == "unknown" {
				t.Errorf("role %s has unnamed capability %d", r, c)
			}
		}
	}
}

func TestFilter_KeepsCriteriaAndRisks(t *testing.T) {
	for _, name := range Known() {
		t.Run(name, func(t *testing.T) {
			got := Filter(fullMerged(), nil, name)
			if !got.Merged.IsSet(sixw.FieldAcceptanceCriteria) {
				t.Error("acceptance criteria dropped")
			}
			if !got.Merged.IsSet(sixw.FieldRiskIfDelayed) {
				t.Error("risk_if_delayed dropped")
			}
		})
	}
}

func TestFilter_ImplementerDropsBusinessFields(t *testing.T) {
	facts := map[string]confidence.TechnologyFact{"go": {Confidence: 0.9}}
	got := Filter(fullMerged(), facts, "Implementer")

	for _, f := range []sixw.Field{sixw.FieldEndUsers, sixw.FieldBusinessValue, sixw.FieldDeadline, sixw.FieldDeploymentTargets} {
		if got.Merged.IsSet(f) {
			t.Errorf("field %s should be dropped for implementer", f)
		}
		if _, ok := got.Merged.Sources[f]; ok {
			t.Errorf("source for dropped field %s should be removed", f)
		}
	}
	for _, f := range []sixw.Field{sixw.FieldFunctionalRequirements, sixw.FieldRepositories, sixw.FieldSuggestedApproach} {
		if !got.Merged.IsSet(f) {
			t.Errorf("field %s should be kept for implementer", f)
		}
	}
	if got.DroppedFacts || len(got.Facts) != 1 {
		t.Errorf("implementer should keep technology facts, got %v", got.Facts)
	}
	if len(got.DroppedFields) < 5 {
		t.Errorf("DroppedFields = %v, want a meaningful reduction", got.DroppedFields)
	}
}

func TestFilter_ProductOwnerDropsFacts(t *testing.T) {
	facts := map[string]confidence.TechnologyFact{"go": {Confidence: 0.9}}
	got := Filter(fullMerged(), facts, "product_owner")

	if !got.DroppedFacts || len(got.Facts) != 0 {
		t.Errorf("product owner should not receive technology facts, got %v", got.Facts)
	}
	if got.Facts == nil {
		t.Error("filtered facts must be empty, not nil")
	}
	if !got.Merged.IsSet(sixw.FieldBusinessValue) {
		t.Error("product owner should keep business value")
	}
}

func TestFilter_UnknownRoleDisablesFiltering(t *testing.T) {
	in := fullMerged()
	for _, name := range []string{"", "wizard"} {
		got := Filter(in, nil, name)
		if got.Merged.PopulatedCount() != in.PopulatedCount() {
			t.Errorf("role %q: PopulatedCount = %d, want %d", name, got.Merged.PopulatedCount(), in.PopulatedCount())
		}
		if len(got.DroppedFields) != 0 {
			t.Errorf("role %q: DroppedFields = %v, want none", name, got.DroppedFields)
		}
	}
}

func TestFilter_DoesNotMutateInput(t *testing.T) {
	in := fullMerged()
	facts := map[string]confidence.TechnologyFact{"go": {Confidence: 0.9}}

	_ = Filter(in, facts, "product_owner")

	if in.PopulatedCount() != len(sixw.AllFields) {
		t.Errorf("input PopulatedCount = %d, want %d", in.PopulatedCount(), len(sixw.AllFields))
	}
	if len(in.Sources) != len(sixw.AllFields) {
		t.Errorf("input Sources len = %d, want %d", len(in.Sources), len(sixw.AllFields))
	}
	if len(facts) != 1 {
		t.Error("input facts mutated")
	}
}
