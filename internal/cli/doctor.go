package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/example/apm/internal/config"
	"github.com/example/apm/internal/db"
	"github.com/example/apm/internal/version"
	"github.com/example/apm/internal/wire"
)

// CheckResult represents the outcome of a single check
type CheckResult struct {
	Name    string
	Status  string // "✓", "⚠", "✗"
	Details string // Only shown if Status != "✓"
}

const (
	checkOK   = "✓"
	checkWarn = "⚠"
	checkFail = "✗"
)

var errDoctorFailed = errors.New("doctor found problems")

// DoctorCmd returns the doctor command for workspace validation
func DoctorCmd() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Validate the apm workspace",
		Long: `Health check for an apm workspace.

Validates:
- Workspace config (.apm/config.yaml)
- Database schema version
- Procedure and rule catalogs
- Context cache (expired entries are purged)
- Event sink (dropped events)

Examples:
  apm doctor              # Run full health check
  apm doctor --quiet      # Exit code only (0=healthy, 1=issues)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := NewContext()
			if err != nil {
				return err
			}
			dir := workspaceDir
			if dir == "" {
				if dir, err = os.Getwd(); err != nil {
					return err
				}
			}

			fs := afero.NewOsFs()
			results := []CheckResult{
				checkConfig(fs, dir),
				checkSchema(ctx),
				checkCatalog(fs, "procedures", wire.Config().ResolvePath(dir, wire.Config().Catalog.Procedures)),
				checkCatalog(fs, "rules", wire.Config().ResolvePath(dir, wire.Config().Catalog.Rules)),
				checkCache(ctx),
				checkEvents(),
			}

			hasErrors := false
			for _, r := range results {
				if r.Status == checkFail {
					hasErrors = true
				}
			}
			if !quiet {
				printResults(cmd.OutOrStdout(), results)
			}
			if hasErrors {
				return errDoctorFailed
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Only return exit code (no output)")
	return cmd
}

func printResults(out io.Writer, results []CheckResult) {
	fmt.Fprintf(out, "%s\n\n", version.String())
	for _, r := range results {
		fmt.Fprintf(out, "%s %s\n", r.Status, r.Name)
		if r.Status != checkOK && r.Details != "" {
			fmt.Fprintf(out, "    %s\n", r.Details)
		}
	}
	fmt.Fprintln(out)
}

func checkConfig(fs afero.Fs, dir string) CheckResult {
	r := CheckResult{Name: "Workspace config"}
	exists, err := afero.Exists(fs, config.Path(dir))
	switch {
	case err != nil:
		r.Status, r.Details = checkFail, err.Error()
	case !exists:
		r.Status, r.Details = checkWarn, fmt.Sprintf("%s not found, using defaults (run: apm init)", config.Path(dir))
	default:
		r.Status = checkOK
	}
	return r
}

func checkSchema(ctx context.Context) CheckResult {
	r := CheckResult{Name: "Database schema"}
	current, err := db.CurrentVersion(ctx, wire.Database())
	if err != nil {
		r.Status, r.Details = checkFail, err.Error()
		return r
	}
	if latest := db.LatestVersion(); current != latest {
		r.Status, r.Details = checkFail, fmt.Sprintf("schema v%d, expected v%d", current, latest)
		return r
	}
	r.Name = fmt.Sprintf("Database schema (v%d, %s)", current, wire.Config().Database.Driver)
	r.Status = checkOK
	return r
}

func checkCatalog(fs afero.Fs, name, path string) CheckResult {
	r := CheckResult{Name: fmt.Sprintf("Catalog: %s", name)}
	if path == "" {
		r.Status, r.Details = checkWarn, "not configured"
		return r
	}
	exists, err := afero.Exists(fs, path)
	switch {
	case err != nil:
		r.Status, r.Details = checkFail, err.Error()
	case !exists:
		r.Status, r.Details = checkWarn, fmt.Sprintf("%s not found; context will carry no %s", path, name)
	default:
		r.Status = checkOK
	}
	return r
}

func checkCache(ctx context.Context) CheckResult {
	r := CheckResult{Name: "Context cache"}
	purged, err := wire.ContextCache().PurgeExpired(ctx)
	if err != nil {
		r.Status, r.Details = checkWarn, fmt.Sprintf("failed to purge expired entries: %v", err)
		return r
	}
	r.Name = fmt.Sprintf("Context cache (%d expired entries purged)", purged)
	r.Status = checkOK
	return r
}

func checkEvents() CheckResult {
	r := CheckResult{Name: "Event sink"}
	if dropped := wire.EventSink().Dropped(); dropped > 0 {
		r.Status, r.Details = checkWarn, fmt.Sprintf("%d events dropped this process", dropped)
		return r
	}
	r.Status = checkOK
	return r
}
