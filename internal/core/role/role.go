// Package role maps agent roles to the context capabilities they need and
// filters assembled context down to those capabilities. Pure; no I/O.
package role

import (
	"sort"
	"strings"

	"github.com/example/apm/internal/core/confidence"
	"github.com/example/apm/internal/core/sixw"
)

// Capability is a coarse slice of context an agent role can consume.
type Capability int

const (
	CapStakeholders Capability = iota + 1
	CapRequirements
	CapArchitecture
	CapCode
	CapDeployment
	CapSchedule
	CapBusiness
	CapTechnology
)

var capabilityNames = map[Capability]string{
	CapStakeholders: "stakeholders",
	CapRequirements: "requirements",
	CapArchitecture: "architecture",
	CapCode:         "code",
	CapDeployment:   "deployment",
	CapSchedule:     "schedule",
	CapBusiness:     "business",
	CapTechnology:   "technology",
}

func (c Capability) String() string {
	if n, ok := capabilityNames[c]; ok {
		return n
	}
	return "unknown"
}

// Role identifies the agent requesting context.
type Role string

const (
	Implementer  Role = "implementer"
	Tester       Role = "tester"
	Reviewer     Role = "reviewer"
	Architect    Role = "architect"
	DevOps       Role = "devops"
	ProductOwner Role = "product_owner"
	Planner      Role = "planner"
)

var roleCapabilities = map[Role][]Capability{
	Implementer:  {CapRequirements, CapArchitecture, CapCode, CapTechnology},
	Tester:       {CapRequirements, CapCode, CapDeployment, CapTechnology},
	Reviewer:     {CapStakeholders, CapRequirements, CapArchitecture, CapCode},
	Architect:    {CapRequirements, CapArchitecture, CapCode, CapDeployment, CapTechnology},
	DevOps:       {CapArchitecture, CapDeployment, CapSchedule, CapTechnology},
	ProductOwner: {CapStakeholders, CapRequirements, CapSchedule, CapBusiness},
	Planner:      {CapStakeholders, CapRequirements, CapArchitecture, CapSchedule, CapBusiness},
}

// fieldCapabilities assigns every 6W field to exactly one capability. Fields
// absent from this map are always kept.
var fieldCapabilities = map[sixw.Field]Capability{
	sixw.FieldEndUsers:               CapStakeholders,
	sixw.FieldImplementers:           CapStakeholders,
	sixw.FieldReviewers:              CapStakeholders,
	sixw.FieldFunctionalRequirements: CapRequirements,
	sixw.FieldTechnicalConstraints:   CapArchitecture,
	sixw.FieldAffectedServices:       CapArchitecture,
	sixw.FieldRepositories:           CapCode,
	sixw.FieldDeploymentTargets:      CapDeployment,
	sixw.FieldDeadline:               CapSchedule,
	sixw.FieldDependenciesTimeline:   CapSchedule,
	sixw.FieldBusinessValue:          CapBusiness,
	sixw.FieldSuggestedApproach:      CapCode,
	sixw.FieldExistingPatterns:       CapCode,
}

// alwaysKept fields survive every role filter.
var alwaysKept = map[sixw.Field]bool{
	sixw.FieldAcceptanceCriteria: true,
	sixw.FieldRiskIfDelayed:      true,
}

// Parse normalizes a role name. The second result is false for unknown or
// empty names.
func Parse(name string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(name)))
	_, ok := roleCapabilities[r]
	return r, ok
}

// Known returns every role name in sorted order.
func Known() []string {
	names := make([]string, 0, len(roleCapabilities))
	for r := range roleCapabilities {
		names = append(names, string(r))
	}
	sort.Strings(names)
	return names
}

// Capabilities returns the capability set of a role.
func Capabilities(r Role) []Capability {
	caps := roleCapabilities[r]
	out := make([]Capability, len(caps))
	copy(out, caps)
	return out
}

// Has reports whether the role holds the capability.
func Has(r Role, c Capability) bool {
	for _, rc := range roleCapabilities[r] {
		if rc == c {
			return true
		}
	}
	return false
}

// Allows reports whether the role may see a 6W field.
func Allows(r Role, f sixw.Field) bool {
	if alwaysKept[f] {
		return true
	}
	c, ok := fieldCapabilities[f]
	if !ok {
		return true
	}
	return Has(r, c)
}

// Result is the outcome of filtering context for a role.
type Result struct {
	Merged        sixw.Merged
	Facts         map[string]confidence.TechnologyFact
	DroppedFields []sixw.Field
	DroppedFacts  bool
}

// Filter returns a copy of merged and facts reduced to what the role needs.
// An empty or unknown role name disables filtering. Inputs are not mutated.
func Filter(merged sixw.Merged, facts map[string]confidence.TechnologyFact, name string) Result {
	out := Result{
		Merged:        sixw.Merged{Context: merged.Context.Clone(), Sources: make(map[sixw.Field]sixw.Level, len(merged.Sources))},
		Facts:         make(map[string]confidence.TechnologyFact, len(facts)),
		DroppedFields: []sixw.Field{},
	}
	for f, l := range merged.Sources {
		out.Merged.Sources[f] = l
	}
	for k, v := range facts {
		out.Facts[k] = v
	}

	r, ok := Parse(name)
	if !ok {
		return out
	}

	for _, f := range sixw.AllFields {
		if Allows(r, f) || !out.Merged.IsSet(f) {
			continue
		}
		out.Merged.Clear(f)
		delete(out.Merged.Sources, f)
		out.DroppedFields = append(out.DroppedFields, f)
	}

	if !Has(r, CapTechnology) && len(out.Facts) > 0 {
		out.Facts = map[string]confidence.TechnologyFact{}
		out.DroppedFacts = true
	}

	return out
}
