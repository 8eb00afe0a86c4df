package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/example/apm/internal/core/sixw"
	"github.com/example/apm/internal/ports/primary"
)

// ContextAdapter translates CLI operations to ContextService calls.
type ContextAdapter struct {
	service primary.ContextService
	out     io.Writer
}

// NewContextAdapter creates a new ContextAdapter with the given service.
func NewContextAdapter(service primary.ContextService, out io.Writer) *ContextAdapter {
	return &ContextAdapter{service: service, out: out}
}

// ShowOptions select how an assembled context is displayed.
type ShowOptions struct {
	Role    string
	JSON    bool
	Refresh bool
}

// Show assembles (or refreshes) the context for an entity and prints it.
func (a *ContextAdapter) Show(ctx context.Context, kind, id string, opts ShowOptions) error {
	req := primary.AssembleRequest{Kind: kind, ID: id, Role: opts.Role}
	var (
		p   *primary.ContextPayload
		err error
	)
	if opts.Refresh {
		p, err = a.service.Refresh(ctx, req)
	} else {
		p, err = a.service.Assemble(ctx, req)
	}
	if err != nil {
		return fmt.Errorf("failed to assemble context: %w", err)
	}
	if opts.JSON {
		return writeJSON(a.out, p)
	}

	fmt.Fprintf(a.out, "\nContext: %s %s", p.EntityKind, p.EntityID)
	if p.Role != "" {
		fmt.Fprintf(a.out, " (role %s)", p.Role)
	}
	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, rule)

	f := p.Confidence.Factors
	fmt.Fprintf(a.out, "Confidence: %.2f %s\n", p.Confidence.Score, bandLabel(p.Confidence.Band))
	fmt.Fprintf(a.out, "  6W completeness:       %.2f\n", f.SixWCompleteness)
	fmt.Fprintf(a.out, "  plugin facts quality:  %.2f\n", f.PluginFactsQuality)
	fmt.Fprintf(a.out, "  amalgamation coverage: %.2f\n", f.AmalgamationCoverage)
	fmt.Fprintf(a.out, "  freshness:             %.2f (%s, %d days)\n", f.FreshnessFactor, p.Freshness.Level, p.Freshness.AgeDays)
	if len(p.Degraded) > 0 {
		fmt.Fprintf(a.out, "%s Degraded: %s\n", warnMark, strings.Join(p.Degraded, ", "))
	}

	fmt.Fprintln(a.out, "\n6W:")
	printSixW(a.out, &p.MergedContext.Context, p.MergedContext.Sources)
	if len(p.FilteredFields) > 0 {
		names := make([]string, len(p.FilteredFields))
		for i, f := range p.FilteredFields {
			names[i] = string(f)
		}
		fmt.Fprintf(a.out, "  (filtered for role: %s)\n", strings.Join(names, ", "))
	}

	if len(p.PluginFacts) > 0 {
		fmt.Fprintln(a.out, "\nTechnologies:")
		for _, tech := range sortedKeys(p.PluginFacts) {
			fmt.Fprintf(a.out, "  %-16s %.2f\n", tech, p.PluginFacts[tech].Confidence)
		}
	}
	if len(p.AmalgamationRefs) > 0 {
		fmt.Fprintln(a.out, "\nCode references:")
		for _, r := range p.AmalgamationRefs {
			mark := failMark
			if r.Resolved {
				mark = okMark
			}
			fmt.Fprintf(a.out, "  %s %s (%s)\n", mark, r.Path, r.Level)
		}
	}
	if len(p.ApplicableRules) > 0 {
		fmt.Fprintln(a.out, "\nRules:")
		for _, r := range p.ApplicableRules {
			fmt.Fprintf(a.out, "  %s %s\n", r.ID, r.Title)
		}
	}
	if len(p.RecentSessionSummaries) > 0 {
		fmt.Fprintln(a.out, "\nRecent sessions:")
		for _, s := range p.RecentSessionSummaries {
			fmt.Fprintf(a.out, "  %s %s: %s\n", s.EndedAt.Format(time.RFC3339), orDash(s.Role), s.Summary)
		}
	}
	if p.InjectedProcedureText != "" {
		fmt.Fprintln(a.out, "\nProcedure:")
		fmt.Fprintln(a.out, strings.TrimRight(p.InjectedProcedureText, "\n"))
	}
	fmt.Fprintln(a.out)
	return nil
}

// ShowSixW prints the context stored at exactly one level.
func (a *ContextAdapter) ShowSixW(ctx context.Context, kind, id string, asJSON bool) error {
	c, err := a.service.GetSixW(ctx, kind, id)
	if err != nil {
		return fmt.Errorf("failed to get 6W context: %w", err)
	}
	if asJSON {
		return writeJSON(a.out, c)
	}
	fmt.Fprintf(a.out, "\n6W for %s %s (%d/%d fields)\n", kind, id, c.PopulatedCount(), len(sixw.AllFields))
	printSixW(a.out, c, nil)
	fmt.Fprintln(a.out)
	return nil
}

// SetSixW replaces the context stored at one level.
func (a *ContextAdapter) SetSixW(ctx context.Context, kind, id string, c sixw.Context) error {
	if err := a.service.SetSixW(ctx, primary.SetSixWRequest{Kind: kind, ID: id, Context: c}); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s 6W context set for %s %s (%d/%d fields)\n", okMark, kind, id, c.PopulatedCount(), len(sixw.AllFields))
	return nil
}

func printSixW(out io.Writer, c *sixw.Context, sources map[sixw.Field]sixw.Level) {
	printed := 0
	for _, f := range sixw.AllFields {
		if !c.IsSet(f) {
			continue
		}
		printed++
		src := ""
		if lvl, ok := sources[f]; ok {
			src = fmt.Sprintf(" [%s]", lvl)
		}
		fmt.Fprintf(out, "  %-24s %s%s\n", f, sixwValue(c, f), src)
	}
	if printed == 0 {
		fmt.Fprintln(out, "  (empty)")
	}
}

func sixwValue(c *sixw.Context, f sixw.Field) string {
	switch f {
	case sixw.FieldEndUsers:
		return strings.Join(c.EndUsers, ", ")
	case sixw.FieldImplementers:
		return strings.Join(c.Implementers, ", ")
	case sixw.FieldReviewers:
		return strings.Join(c.Reviewers, ", ")
	case sixw.FieldFunctionalRequirements:
		return strings.Join(c.FunctionalRequirements, "; ")
	case sixw.FieldTechnicalConstraints:
		return strings.Join(c.TechnicalConstraints, "; ")
	case sixw.FieldAcceptanceCriteria:
		return strings.Join(c.AcceptanceCriteria, "; ")
	case sixw.FieldAffectedServices:
		return strings.Join(c.AffectedServices, ", ")
	case sixw.FieldRepositories:
		return strings.Join(c.Repositories, ", ")
	case sixw.FieldDeploymentTargets:
		return strings.Join(c.DeploymentTargets, ", ")
	case sixw.FieldDeadline:
		if c.Deadline == nil {
			return ""
		}
		return c.Deadline.Format(time.RFC3339)
	case sixw.FieldDependenciesTimeline:
		return strings.Join(c.DependenciesTimeline, "; ")
	case sixw.FieldBusinessValue:
		return c.BusinessValue
	case sixw.FieldRiskIfDelayed:
		return c.RiskIfDelayed
	case sixw.FieldSuggestedApproach:
		return c.SuggestedApproach
	case sixw.FieldExistingPatterns:
		return strings.Join(c.ExistingPatterns, ", ")
	}
	return ""
}
