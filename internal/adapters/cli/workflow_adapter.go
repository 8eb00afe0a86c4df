package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/example/apm/internal/core/gate"
	"github.com/example/apm/internal/ports/primary"
)

// WorkflowAdapter translates CLI operations to WorkflowService calls.
type WorkflowAdapter struct {
	service primary.WorkflowService
	out     io.Writer
}

// NewWorkflowAdapter creates a new WorkflowAdapter with the given service.
func NewWorkflowAdapter(service primary.WorkflowService, out io.Writer) *WorkflowAdapter {
	return &WorkflowAdapter{service: service, out: out}
}

// ErrTransitionRefused is returned after a refused transition has been
// printed, so the command exits non-zero.
var ErrTransitionRefused = errors.New("transition refused")

// ErrGateFailed is returned after a failing gate check has been printed.
var ErrGateFailed = errors.New("gate check failed")

// Transition requests a status change and prints the outcome.
func (a *WorkflowAdapter) Transition(ctx context.Context, kind, id, status string, asJSON bool) error {
	res, err := a.service.Transition(ctx, primary.TransitionRequest{Kind: kind, ID: id, Requested: status})
	if err != nil {
		return err
	}
	if asJSON {
		if err := writeJSON(a.out, res); err != nil {
			return err
		}
		if !res.OK {
			return ErrTransitionRefused
		}
		return nil
	}

	if res.OK {
		fmt.Fprintf(a.out, "%s %s %s: %s → %s", okMark, kind, id, res.Current, res.Requested)
		if res.Entity != nil && res.Entity.Phase != "" {
			fmt.Fprintf(a.out, " (phase %s)", res.Entity.Phase)
		}
		fmt.Fprintln(a.out)
		for _, w := range res.Warnings {
			fmt.Fprintf(a.out, "  %s %s\n", warnMark, w)
		}
		return nil
	}

	switch res.Reason {
	case primary.ReasonIllegal:
		fmt.Fprintf(a.out, "%s %s %s: %s → %s is not allowed: %s\n", failMark, kind, id, res.Current, res.Requested, res.Detail)
	case primary.ReasonGateBlocked:
		phase := ""
		if res.Gate != nil {
			phase = string(res.Gate.Phase) + " "
		}
		fmt.Fprintf(a.out, "%s %s %s: %s → %s blocked by %sgate\n", failMark, kind, id, res.Current, res.Requested, phase)
		for _, m := range res.Missing {
			fmt.Fprintf(a.out, "  - %s\n", m)
		}
		for _, w := range res.Warnings {
			fmt.Fprintf(a.out, "  %s %s\n", warnMark, w)
		}
	default:
		fmt.Fprintf(a.out, "%s %s %s: %s\n", failMark, kind, id, res.Reason)
	}
	return ErrTransitionRefused
}

// Check runs a phase gate without changing anything.
func (a *WorkflowAdapter) Check(ctx context.Context, kind, id, phase string, asJSON bool) error {
	res, err := a.service.ValidatePhase(ctx, kind, id, phase)
	if err != nil {
		return err
	}
	if asJSON {
		if err := writeJSON(a.out, res); err != nil {
			return err
		}
	} else {
		printGate(a.out, kind, id, res)
	}
	if !res.Passed {
		return ErrGateFailed
	}
	return nil
}

func printGate(out io.Writer, kind, id string, res *gate.Result) {
	mark := okMark
	verdict := "passed"
	if !res.Passed {
		mark = failMark
		verdict = "blocked"
	}
	fmt.Fprintf(out, "%s %s gate %s for %s %s (confidence %.2f)\n", mark, res.Phase, verdict, kind, id, res.Confidence)
	for _, m := range res.Missing {
		fmt.Fprintf(out, "  - %s\n", m)
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(out, "  %s %s\n", warnMark, w)
	}
}

// Events lists recorded workflow events.
func (a *WorkflowAdapter) Events(ctx context.Context, filters primary.EventFilters, asJSON bool) error {
	events, err := a.service.ListEvents(ctx, filters)
	if err != nil {
		return fmt.Errorf("failed to list events: %w", err)
	}
	if asJSON {
		return writeJSON(a.out, events)
	}
	if len(events) == 0 {
		fmt.Fprintln(a.out, "No events found")
		return nil
	}

	fmt.Fprintf(a.out, "\n%-20s %-20s %-18s %-20s %-10s %s\n", "TIME", "TYPE", "ENTITY", "CHANGE", "ACTOR", "DETAIL")
	fmt.Fprintln(a.out, rule)
	for _, e := range events {
		change := "-"
		if e.FromStatus != "" || e.ToStatus != "" {
			change = e.FromStatus + "→" + e.ToStatus
		}
		fmt.Fprintf(a.out, "%-20s %-20s %-18s %-20s %-10s %s\n",
			e.OccurredAt.Format(time.RFC3339), e.Type, e.EntityKind+":"+e.EntityID,
			change, orDash(e.Actor), e.Detail)
	}
	fmt.Fprintln(a.out)
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
