// Package cli implements the methodobject command line.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mamaar/methodobject/internal/config"
	"github.com/mamaar/methodobject/pkg/refactor"
	"github.com/mamaar/methodobject/pkg/types"
)

// App holds the state shared by the commands of one invocation.
type App struct {
	flags  Flags
	out    io.Writer
	errOut io.Writer

	cfg    *config.Config
	logger *slog.Logger
}

// NewRootCommand builds the command tree writing results to out and logs
// and diagnostics to errOut.
func NewRootCommand(out, errOut io.Writer) *cobra.Command {
	app := &App{out: out, errOut: errOut}
	root := &cobra.Command{
		Use:   "methodobject",
		Short: "Extract statements into method objects, bridging what the new package cannot see",
		Long: `methodobject moves a run of statements out of a function into the single
method of a new struct type, in the same or in another package. References
that become illegal in the new package (unexported types, functions, methods
and fields of the source package) are rewritten to generated bridge
functions that reach them through reflection or the linker.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: app.setup,
	}
	root.SetOut(out)
	root.SetErr(errOut)
	app.flags.register(root)

	root.AddCommand(
		app.extractCommand(),
		app.reportCommand(),
		app.checkCommand(),
		app.configCommand(),
		versionCommand(),
	)
	return root
}

// setup loads the configuration and applies the global flag overrides.
func (app *App) setup(cmd *cobra.Command, _ []string) error {
	workspace, err := filepath.Abs(app.flags.Workspace)
	if err != nil {
		return fmt.Errorf("failed to resolve workspace path: %w", err)
	}
	app.flags.Workspace = workspace

	cfg, err := config.Load(workspace, app.flags.Config)
	if err != nil {
		return err
	}
	app.flags.apply(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := app.flags.validate(); err != nil {
		return err
	}
	app.cfg = cfg
	app.logger = cfg.Logger(app.errOut)
	return nil
}

// engine creates the refactoring engine and loads the workspace.
func (app *App) engine() (refactor.RefactorEngine, *types.Workspace, error) {
	engine := refactor.CreateEngineWithConfig(app.cfg.EngineConfig(), app.logger)
	ws, err := engine.LoadWorkspace(app.flags.Workspace)
	if err != nil {
		return nil, nil, err
	}
	return engine, ws, nil
}
