// Package mcp exposes method object extraction as Model Context Protocol
// tools.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mamaar/methodobject/internal/config"
	"github.com/mamaar/methodobject/pkg/refactor"
	"github.com/mamaar/methodobject/pkg/types"
	"github.com/mamaar/methodobject/pkg/watch"
)

// MCPServer holds the shared state for the MCP tool handlers:
// a loaded workspace, its refactoring engine, and a filesystem watcher
// that incrementally updates the workspace.
type MCPServer struct {
	// mu guards workspace and is shared with the updater.
	mu        sync.Mutex
	cfg       *config.Config
	engine    refactor.RefactorEngine
	workspace *types.Workspace
	updater   *watch.WorkspaceUpdater
	cancel    context.CancelFunc // stops the watcher goroutine
	done      chan struct{}
	logger    *slog.Logger
}

// NewMCPServer creates a new MCPServer. A nil cfg uses the defaults.
func NewMCPServer(cfg *config.Config, logger *slog.Logger) *MCPServer {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &MCPServer{
		cfg:    cfg,
		engine: refactor.CreateEngineWithConfig(cfg.EngineConfig(), logger),
		logger: logger,
	}
}

// LoadWorkspace loads (or reloads) a workspace at the given path and starts
// a background watcher for incremental updates.
func (s *MCPServer) LoadWorkspace(path string) (*types.Workspace, error) {
	s.stopWatching()

	s.logger.Info("loading workspace", "path", path)
	ws, err := s.engine.LoadWorkspace(path)
	if err != nil {
		return nil, fmt.Errorf("load workspace: %w", err)
	}

	s.mu.Lock()
	s.workspace = ws
	s.updater = watch.NewUpdater(ws, s.engine.Parser(), &s.mu, s.logger)
	updater := s.updater
	s.mu.Unlock()

	w, err := watch.NewWatcher(ws.RootPath, s.cfg.Watch.Debounce, s.logger)
	if err != nil {
		s.logger.Warn("watcher unavailable, workspace will not auto-update", "err", err)
		return ws, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.mu.Lock()
	s.cancel, s.done = cancel, done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer func() { _ = w.Close() }()
		if err := updater.Watch(ctx, w); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("watcher error", "err", err)
		}
	}()
	return ws, nil
}

// stopWatching cancels the watcher goroutine and waits for it to exit.
func (s *MCPServer) stopWatching() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// withWorkspace runs fn with the loaded workspace while holding the lock.
func (s *MCPServer) withWorkspace(fn func(ws *types.Workspace) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.workspace == nil {
		return errors.New("no workspace loaded, call load_workspace first")
	}
	return fn(s.workspace)
}

// SyncWorkspaceChanges re-parses files a plan wrote without waiting for the
// watcher.
func (s *MCPServer) SyncWorkspaceChanges(files []string) {
	s.mu.Lock()
	updater := s.updater
	s.mu.Unlock()
	if updater == nil || len(files) == 0 {
		return
	}

	events := make([]watch.ChangeEvent, len(files))
	for i, file := range files {
		events[i] = watch.ChangeEvent{Path: file}
	}
	updater.HandleChanges(events)
}

// Close stops the watcher and releases resources.
func (s *MCPServer) Close() {
	s.stopWatching()
}
