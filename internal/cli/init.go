package cli

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/example/apm/internal/config"
	"github.com/example/apm/internal/db"
	"github.com/example/apm/internal/wire"
)

// InitCmd returns the init command
func InitCmd() *cobra.Command {
	var (
		seed   bool
		driver string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize an apm workspace",
		Long: `Create .apm/config.yaml in the workspace directory and the SQLite
database it points at. An existing config is left untouched.

Examples:
  apm init
  apm init --driver sqlite     # pure-Go driver, no cgo
  apm init --seed              # add a demo project to explore`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := workspaceDir
			if dir == "" {
				wd, err := os.Getwd()
				if err != nil {
					return err
				}
				dir = wd
			}
			out := cmd.OutOrStdout()
			fs := afero.NewOsFs()

			exists, err := afero.Exists(fs, config.Path(dir))
			if err != nil {
				return fmt.Errorf("failed to check config: %w", err)
			}
			if exists {
				fmt.Fprintf(out, "Config already present at %s\n", config.Path(dir))
			} else {
				cfg := config.Default()
				if driver != "" {
					cfg.Database.Driver = driver
				}
				if err := cfg.Validate(); err != nil {
					return err
				}
				if err := config.Save(fs, dir, cfg); err != nil {
					return err
				}
				fmt.Fprintf(out, "✓ Wrote %s\n", config.Path(dir))
			}

			ctx, err := NewContext()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "✓ Database ready at %s (schema v%d)\n",
				wire.Config().DatabasePath(dir), db.LatestVersion())

			if seed {
				if err := db.SeedFixtures(ctx, wire.Database()); err != nil {
					return fmt.Errorf("failed to seed database: %w", err)
				}
				fmt.Fprintln(out, "✓ Seeded demo project PROJ-001")
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, "Next steps:")
			fmt.Fprintln(out, "  apm project create \"My Project\"")
			fmt.Fprintln(out, "  apm doctor")
			return nil
		},
	}

	cmd.Flags().BoolVar(&seed, "seed", false, "Insert a demo project, work item and tasks")
	cmd.Flags().StringVar(&driver, "driver", "", "Database driver: sqlite3 (cgo) or sqlite (pure Go)")
	return cmd
}
