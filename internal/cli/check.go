package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mamaar/methodobject/pkg/analyzers/relocation"
	"github.com/mamaar/methodobject/pkg/types"
)

func (app *App) checkCommand() *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:   "check [package]",
		Short: "List references that need a bridge if code moved to another package",
		Long: `Run the relocation analyzer over one package, or over every package of the
workspace, and list each reference that would no longer compile if the
enclosing function body moved to the target package.

Examples:
  methodobject check cart --target example.com/shop/pricing
  methodobject check --target pricing`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, ws, err := app.engine()
			if err != nil {
				return err
			}
			var filter string
			if len(args) == 1 {
				filter = args[0]
			}
			results, err := relocation.Check(ws, engine.Parser(), filter, types.ResolveImportPath(ws, target))
			if err != nil {
				return err
			}
			if ok, err := encode(app.out, app.flags.Format, results); ok {
				return err
			}
			if len(results) == 0 {
				fmt.Fprintln(app.out, "No references need a bridge.")
				return nil
			}
			for _, r := range results {
				fmt.Fprintf(app.out, "%s:%d:%d: %s %s in %s: %s\n", r.File, r.Line, r.Column, r.Kind, r.Member, r.Function, r.Text)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&target, "target", "t", "", "Import path or directory of the package the code would move to")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}
