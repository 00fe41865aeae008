package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mamaar/methodobject/internal/config"
)

// Flags holds the global command line flags
type Flags struct {
	Workspace       string
	Config          string
	DryRun          bool
	Json            bool
	Format          string
	Backup          bool
	SkipCompilation bool
	AllowBreaking   bool
	LogLevel        string
	LogFormat       string
}

func (f *Flags) register(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVarP(&f.Workspace, "workspace", "w", ".", "Path to workspace root (defaults to current directory)")
	pf.StringVar(&f.Config, "config", "", "Config file (defaults to "+config.FileName+" in the workspace)")
	pf.BoolVar(&f.DryRun, "dry-run", false, "Preview changes without applying them")
	pf.BoolVar(&f.Json, "json", false, "Output results in JSON format (same as --format json)")
	pf.StringVar(&f.Format, "format", "text", "Output format: text, json or yaml")
	pf.BoolVar(&f.Backup, "backup", false, "Back up every file before it is rewritten")
	pf.BoolVar(&f.SkipCompilation, "skip-compilation", false, "Skip compilation validation after refactoring")
	pf.BoolVar(&f.AllowBreaking, "allow-breaking", false, "Apply plans even when they carry error issues")
	pf.StringVar(&f.LogLevel, "log-level", "", "Log level: debug, info, warn or error")
	pf.StringVar(&f.LogFormat, "log-format", "", "Log format: text or json")
}

// apply overrides configured values with the flags given explicitly.
func (f *Flags) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := func(name string) bool { return cmd.Flags().Changed(name) }
	if changed("backup") {
		cfg.Engine.Backup = f.Backup
	}
	if changed("skip-compilation") {
		cfg.Engine.SkipCompilation = f.SkipCompilation
	}
	if changed("allow-breaking") {
		cfg.Engine.AllowBreaking = f.AllowBreaking
	}
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogFormat != "" {
		cfg.Log.Format = f.LogFormat
	}
	if f.Json {
		f.Format = "json"
	}
}

func (f *Flags) validate() error {
	switch f.Format {
	case "text", "json", "yaml":
		return nil
	}
	return fmt.Errorf("unknown output format %q", f.Format)
}
