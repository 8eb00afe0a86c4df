// Package cli provides the cobra commands of the apm binary.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/example/apm/internal/ctxutil"
	"github.com/example/apm/internal/wire"
)

var (
	workspaceDir string
	actorFlag    string
)

// BindGlobalFlags registers the flags shared by every command.
func BindGlobalFlags(root *cobra.Command) {
	root.PersistentFlags().StringVar(&workspaceDir, "dir", "", "workspace directory holding .apm/ (default: current directory)")
	root.PersistentFlags().StringVar(&actorFlag, "actor", "", "actor recorded on workflow events (default: $APM_ACTOR or config)")
}

// NewContext initializes services for the selected workspace and returns a
// context carrying the resolved actor. Commands call it instead of
// context.Background().
func NewContext() (context.Context, error) {
	ctx := context.Background()
	wire.Configure(wire.Options{Dir: workspaceDir})
	if err := wire.Init(ctx); err != nil {
		return nil, err
	}
	actor := ctxutil.ResolveActor(actorFlag, wire.Config().Actor)
	return ctxutil.WithActorID(ctx, actor), nil
}

// Shutdown releases the services built by NewContext.
func Shutdown() error {
	return wire.Shutdown(context.Background())
}
