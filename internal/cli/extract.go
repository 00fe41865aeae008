package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mamaar/methodobject/pkg/types"
)

// requestFlags are the options of extract and report.
type requestFlags struct {
	targetDir  string
	targetFile string
	method     string
	static     bool
	replace    bool
}

func (r *requestFlags) register(cmd *cobra.Command, replace bool) {
	f := cmd.Flags()
	f.StringVarP(&r.targetDir, "target", "t", "", "Directory of the package hosting the object (default: the source package)")
	f.StringVar(&r.targetFile, "file", "", "File name inside the target directory (default: lower-cased object name)")
	f.StringVar(&r.method, "method", "", "Name of the generated method (default Invoke)")
	f.BoolVar(&r.static, "static", false, "Generate package-level bridge functions instead of methods")
	if replace {
		f.BoolVar(&r.replace, "replace", false, "Replace the statements in the source with a use of the object")
	}
}

// request parses <file> <start-line> <end-line> <ObjectName>.
func (app *App) request(cmd *cobra.Command, args []string, r *requestFlags) (types.ExtractMethodObjectRequest, error) {
	start, err := strconv.Atoi(args[1])
	if err != nil {
		return types.ExtractMethodObjectRequest{}, fmt.Errorf("invalid start line %q", args[1])
	}
	end, err := strconv.Atoi(args[2])
	if err != nil {
		return types.ExtractMethodObjectRequest{}, fmt.Errorf("invalid end line %q", args[2])
	}
	static := app.cfg.Bridge.Static
	if cmd.Flags().Changed("static") {
		static = r.static
	}
	return types.ExtractMethodObjectRequest{
		SourceFile:    args[0],
		StartLine:     start,
		EndLine:       end,
		ObjectName:    args[3],
		TargetDir:     r.targetDir,
		TargetFile:    r.targetFile,
		MethodName:    r.method,
		Static:        static,
		ReplaceSource: r.replace,
	}, nil
}

func (app *App) extractCommand() *cobra.Command {
	var r requestFlags
	cmd := &cobra.Command{
		Use:   "extract <file> <start-line> <end-line> <ObjectName>",
		Short: "Extract statements into a method object",
		Long: `Extract the statements between two lines into the method of a new struct
type. Locals shared with the rest of the function become fields of the type.

Examples:
  methodobject extract cart/cart.go 22 24 Checkout --target pricing
  methodobject extract cart/cart.go 22 24 Checkout --target pricing --replace --dry-run`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := app.request(cmd, args, &r)
			if err != nil {
				return err
			}
			engine, ws, err := app.engine()
			if err != nil {
				return err
			}
			plan, err := engine.ExtractMethodObject(ws, req)
			if err != nil {
				return err
			}

			var diff string
			if app.flags.DryRun {
				if diff, err = engine.PreviewPlan(plan); err != nil {
					return err
				}
			} else if err := engine.ExecutePlan(plan); err != nil {
				return err
			}

			out := newPlanOutput(plan, !app.flags.DryRun, diff)
			if ok, err := encode(app.out, app.flags.Format, out); ok {
				return err
			}
			writePlanText(app.out, out)
			return nil
		},
	}
	r.register(cmd, true)
	return cmd
}

func (app *App) reportCommand() *cobra.Command {
	var r requestFlags
	cmd := &cobra.Command{
		Use:   "report <file> <start-line> <end-line> <ObjectName>",
		Short: "List the bridges an extraction would generate",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := app.request(cmd, args, &r)
			if err != nil {
				return err
			}
			engine, ws, err := app.engine()
			if err != nil {
				return err
			}
			records, err := engine.BridgeReport(ws, req)
			if err != nil {
				return err
			}
			if ok, err := encode(app.out, app.flags.Format, records); ok {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(app.out, "No references need a bridge.")
				return nil
			}
			writeRecords(app.out, records)
			return nil
		},
	}
	r.register(cmd, false)
	return cmd
}
