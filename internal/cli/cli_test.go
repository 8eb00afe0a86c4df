package cli

import (
	"bytes"
	"testing"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cliadapter "github.com/example/apm/internal/adapters/cli"
	"github.com/example/apm/internal/config"
	"github.com/example/apm/internal/db"
	"github.com/example/apm/internal/ports/primary"
)

func TestParseCriteria(t *testing.T) {
	got := parseCriteria([]string{"[x] endpoint exists", "[X]  audited", "[ ] partial refunds", "plain"})
	want := []primary.Criterion{
		{Text: "endpoint exists", Met: true},
		{Text: "audited", Met: true},
		{Text: "partial refunds"},
		{Text: "plain"},
	}
	assert.Equal(t, want, got)
}

func TestParseHours(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"4", 4, false},
		{"2.5", 2.5, false},
		{"0", 0, false},
		{"-1", 0, true},
		{"four", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseHours(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeSixW(t *testing.T) {
	doc := `
end_users: [merchants, merchants, support]
functional_requirements:
  - refund endpoint
business_value: halves refund tickets
deadline: "2026-11-30T00:00:00Z"
`
	c, err := decodeSixW([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, []string{"merchants", "support"}, c.EndUsers)
	assert.Equal(t, []string{"refund endpoint"}, c.FunctionalRequirements)
	assert.Equal(t, "halves refund tickets", c.BusinessValue)
	require.NotNil(t, c.Deadline)
	assert.Equal(t, 2026, c.Deadline.Year())

	_, err = decodeSixW([]byte("who: everyone\n"))
	assert.ErrorContains(t, err, `unknown 6W field "who"`)

	_, err = decodeSixW([]byte("end_users: [unterminated"))
	assert.Error(t, err)
}

// newRoot builds a throwaway root so each Execute sees a fresh arg list.
func newRoot(out *bytes.Buffer) *cobra.Command {
	root := &cobra.Command{Use: "apm", SilenceUsage: true, SilenceErrors: true}
	BindGlobalFlags(root)
	root.AddCommand(ProjectCmd(), WorkItemCmd(), TaskCmd(), GateCmd(), EventsCmd(), ContextCmd())
	root.SetOut(out)
	root.SetErr(out)
	return root
}

// The services are process singletons, so the whole CLI flow runs in one test.
func TestCommands_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Database.Driver = db.DriverPure
	cfg.Logging.Level = "error"
	cfg.Actor = "cli-test"
	require.NoError(t, config.Save(afero.NewOsFs(), dir, cfg))
	t.Cleanup(func() { _ = Shutdown() })

	run := func(args ...string) (string, error) {
		var out bytes.Buffer
		root := newRoot(&out)
		root.SetArgs(append([]string{"--dir", dir}, args...))
		err := root.Execute()
		return out.String(), err
	}

	out, err := run("project", "create", "Payments")
	require.NoError(t, err)
	assert.Contains(t, out, "PROJ-001")

	out, err = run("workitem", "create", "Refunds", "--project", "PROJ-001")
	require.NoError(t, err)
	assert.Contains(t, out, "WI-001")

	// Discovery is incomplete, so the gate refuses draft -> ready.
	out, err = run("workitem", "transition", "WI-001", "ready")
	assert.ErrorIs(t, err, cliadapter.ErrTransitionRefused)
	assert.Contains(t, out, "draft")

	_, err = run("gate", "check", "work_item", "WI-001", "D1")
	assert.ErrorIs(t, err, cliadapter.ErrGateFailed)

	_, err = run("workitem", "update", "WI-001",
		"--business-context", "Merchants open a ticket for every refund; self-service cuts that queue in half.",
		"--criterion", "refund endpoint exists",
		"--criterion", "refunds are audited",
		"--criterion", "partial refunds work",
		"--risk", "double refunds under retry")
	require.NoError(t, err)

	// The gate fields are satisfied; only context confidence still blocks D1.
	out, err = run("gate", "check", "work_item", "WI-001", "D1")
	assert.ErrorIs(t, err, cliadapter.ErrGateFailed)
	assert.NotContains(t, out, "business context")
	assert.Contains(t, out, "confidence")

	out, err = run("workitem", "show", "WI-001", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "draft"`)

	out, err = run("context", "show", "work_item", "WI-001", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"entity_id": "WI-001"`)

	_, err = run("workitem", "transition", "WI-001", "cancelled")
	require.NoError(t, err)

	_, err = run("project", "show", "PROJ-404")
	assert.Error(t, err)
}
