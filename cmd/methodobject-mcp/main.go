package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"

	"github.com/mamaar/methodobject/internal/cli"
	"github.com/mamaar/methodobject/internal/config"
	"github.com/mamaar/methodobject/internal/mcp"
)

func main() {
	var (
		workspaceFlag = flag.String("workspace", "", "Workspace to load on startup (optional, see load_workspace)")
		configFlag    = flag.String("config", "", "Config file (defaults to "+config.FileName+" in the workspace)")
		versionFlag   = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *versionFlag {
		fmt.Printf("methodobject-mcp v%s\n", cli.Version)
		return
	}

	if err := run(*workspaceFlag, *configFlag); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(workspace, configPath string) error {
	root := workspace
	if root == "" {
		var err error
		if root, err = os.Getwd(); err != nil {
			return err
		}
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("failed to resolve workspace path: %w", err)
	}

	cfg, err := config.Load(root, configPath)
	if err != nil {
		return err
	}
	// stdout carries the protocol
	logger := cfg.Logger(os.Stderr)

	state := mcp.NewMCPServer(cfg, logger)
	defer state.Close()

	if workspace != "" {
		if _, err := state.LoadWorkspace(root); err != nil {
			return err
		}
	}

	s := server.NewMCPServer(
		"methodobject-mcp",
		cli.Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, false),
		server.WithRecovery(),
	)
	mcp.RegisterTools(s, state)

	logger.Info("serving MCP on stdio", "workspace", root)
	return server.ServeStdio(s)
}
