// Package sixw contains the pure 6W (who/what/where/when/why/how) context model
// and the three-level merge. This is part of the Functional Core - no I/O.
package sixw

import (
	"strings"
	"time"
)

// Field names one of the 15 6W fields. Values double as JSON keys.
type Field string

const (
	// WHO
	FieldEndUsers     Field = "end_users"
	FieldImplementers Field = "implementers"
	FieldReviewers    Field = "reviewers"

	// WHAT
	FieldFunctionalRequirements Field = "functional_requirements"
	FieldTechnicalConstraints   Field = "technical_constraints"
	FieldAcceptanceCriteria     Field = "acceptance_criteria"

	// WHERE
	FieldAffectedServices  Field = "affected_services"
	FieldRepositories      Field = "repositories"
	FieldDeploymentTargets Field = "deployment_targets"

	// WHEN
	FieldDeadline             Field = "deadline"
	FieldDependenciesTimeline Field = "dependencies_timeline"

	// WHY
	FieldBusinessValue Field = "business_value"
	FieldRiskIfDelayed Field = "risk_if_delayed"

	// HOW
	FieldSuggestedApproach Field = "suggested_approach"
	FieldExistingPatterns  Field = "existing_patterns"
)

// AllFields lists every field in canonical order.
var AllFields = []Field{
	FieldEndUsers, FieldImplementers, FieldReviewers,
	FieldFunctionalRequirements, FieldTechnicalConstraints, FieldAcceptanceCriteria,
	FieldAffectedServices, FieldRepositories, FieldDeploymentTargets,
	FieldDeadline, FieldDependenciesTimeline,
	FieldBusinessValue, FieldRiskIfDelayed,
	FieldSuggestedApproach, FieldExistingPatterns,
}

// Level identifies where a context value came from.
type Level string

const (
	LevelProject  Level = "project"
	LevelWorkItem Level = "work_item"
	LevelTask     Level = "task"
)

// Context is the 6W context attached to a single project, work item or task.
// WHO fields are sets; the remaining list fields are ordered.
type Context struct {
	EndUsers     []string `json:"end_users"`
	Implementers []string `json:"implementers"`
	Reviewers    []string `json:"reviewers"`

	FunctionalRequirements []string `json:"functional_requirements"`
	TechnicalConstraints   []string `json:"technical_constraints"`
	AcceptanceCriteria     []string `json:"acceptance_criteria"`

	AffectedServices  []string `json:"affected_services"`
	Repositories      []string `json:"repositories"`
	DeploymentTargets []string `json:"deployment_targets"`

	Deadline             *time.Time `json:"deadline,omitempty"`
	DependenciesTimeline []string   `json:"dependencies_timeline"`

	BusinessValue string `json:"business_value,omitempty"`
	RiskIfDelayed string `json:"risk_if_delayed,omitempty"`

	SuggestedApproach string   `json:"suggested_approach,omitempty"`
	ExistingPatterns  []string `json:"existing_patterns"`
}

// Empty returns a materialized context with every list present and empty.
func Empty() Context {
	var c Context
	c.Normalize()
	return c
}

// Normalize materializes nil lists as empty, trims blank entries and
// de-duplicates the WHO sets. It mutates the receiver.
func (c *Context) Normalize() {
	c.EndUsers = normalizeSet(c.EndUsers)
	c.Implementers = normalizeSet(c.Implementers)
	c.Reviewers = normalizeSet(c.Reviewers)
	c.FunctionalRequirements = normalizeList(c.FunctionalRequirements)
	c.TechnicalConstraints = normalizeList(c.TechnicalConstraints)
	c.AcceptanceCriteria = normalizeList(c.AcceptanceCriteria)
	c.AffectedServices = normalizeList(c.AffectedServices)
	c.Repositories = normalizeList(c.Repositories)
	c.DeploymentTargets = normalizeList(c.DeploymentTargets)
	c.DependenciesTimeline = normalizeList(c.DependenciesTimeline)
	c.ExistingPatterns = normalizeList(c.ExistingPatterns)
	c.BusinessValue = strings.TrimSpace(c.BusinessValue)
	c.RiskIfDelayed = strings.TrimSpace(c.RiskIfDelayed)
	c.SuggestedApproach = strings.TrimSpace(c.SuggestedApproach)
	if c.Deadline != nil && c.Deadline.IsZero() {
		c.Deadline = nil
	}
}

// Clone returns a deep copy sharing no slices or pointers with c.
func (c *Context) Clone() Context {
	out := Empty()
	for _, f := range AllFields {
		fieldOps[f].copy(&out, c)
	}
	return out
}

// IsSet reports whether the field carries a non-empty value.
func (c *Context) IsSet(f Field) bool {
	if op, ok := fieldOps[f]; ok {
		return op.isSet(c)
	}
	return false
}

// Clear unsets the field, leaving lists materialized as empty.
func (c *Context) Clear(f Field) {
	if op, ok := fieldOps[f]; ok {
		op.copy(c, &Context{})
		c.Normalize()
	}
}

// PopulatedCount returns how many of the 15 fields are set.
func (c *Context) PopulatedCount() int {
	n := 0
	for _, f := range AllFields {
		if c.IsSet(f) {
			n++
		}
	}
	return n
}

// Completeness is the fraction of the 15 fields that are populated.
func (c *Context) Completeness() float64 {
	return float64(c.PopulatedCount()) / float64(len(AllFields))
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func normalizeSet(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func cloneList(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}

type fieldOp struct {
	isSet func(c *Context) bool
	copy  func(dst, src *Context)
}

func listOp(get func(c *Context) *[]string) fieldOp {
	return fieldOp{
		isSet: func(c *Context) bool { return len(*get(c)) > 0 },
		copy:  func(dst, src *Context) { *get(dst) = cloneList(*get(src)) },
	}
}

func stringOp(get func(c *Context) *string) fieldOp {
	return fieldOp{
		isSet: func(c *Context) bool { return strings.TrimSpace(*get(c)) != "" },
		copy:  func(dst, src *Context) { *get(dst) = *get(src) },
	}
}

var fieldOps = map[Field]fieldOp{
	FieldEndUsers:               listOp(func(c *Context) *[]string { return &c.EndUsers }),
	FieldImplementers:           listOp(func(c *Context) *[]string { return &c.Implementers }),
	FieldReviewers:              listOp(func(c *Context) *[]string { return &c.Reviewers }),
	FieldFunctionalRequirements: listOp(func(c *Context) *[]string { return &c.FunctionalRequirements }),
	FieldTechnicalConstraints:   listOp(func(c *Context) *[]string { return &c.TechnicalConstraints }),
	FieldAcceptanceCriteria:     listOp(func(c *Context) *[]string { return &c.AcceptanceCriteria }),
	FieldAffectedServices:       listOp(func(c *Context) *[]string { return &c.AffectedServices }),
	FieldRepositories:           listOp(func(c *Context) *[]string { return &c.Repositories }),
	FieldDeploymentTargets:      listOp(func(c *Context) *[]string { return &c.DeploymentTargets }),
	FieldDependenciesTimeline:   listOp(func(c *Context) *[]string { return &c.DependenciesTimeline }),
	FieldExistingPatterns:       listOp(func(c *Context) *[]string { return &c.ExistingPatterns }),
	FieldBusinessValue:          stringOp(func(c *Context) *string { return &c.BusinessValue }),
	FieldRiskIfDelayed:          stringOp(func(c *Context) *string { return &c.RiskIfDelayed }),
	FieldSuggestedApproach:      stringOp(func(c *Context) *string { return &c.SuggestedApproach }),
	FieldDeadline: {
		isSet: func(c *Context) bool { return c.Deadline != nil && !c.Deadline.IsZero() },
		copy: func(dst, src *Context) {
			if src.Deadline == nil {
				dst.Deadline = nil
				return
			}
			d := *src.Deadline
			dst.Deadline = &d
		},
	},
}
