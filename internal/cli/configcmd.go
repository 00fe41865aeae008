package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mamaar/methodobject/internal/config"
)

func (app *App) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if ok, err := encode(app.out, app.flags.Format, app.cfg); ok {
				return err
			}
			enc := yaml.NewEncoder(app.out)
			enc.SetIndent(2)
			if err := enc.Encode(app.cfg); err != nil {
				return err
			}
			return enc.Close()
		},
	}

	var path string
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration to " + config.FileName,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				path = filepath.Join(app.flags.Workspace, config.FileName)
			}
			if err := config.DefaultConfig().Save(path); err != nil {
				return err
			}
			fmt.Fprintf(app.out, "Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().StringVarP(&path, "output", "o", "", "Destination file")
	cmd.AddCommand(initCmd)
	return cmd
}
