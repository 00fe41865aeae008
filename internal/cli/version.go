package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the current version of methodobject
const Version = "0.1.0"

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		// the version needs neither a workspace nor a config
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "methodobject version %s\n", Version)
		},
	}
}
