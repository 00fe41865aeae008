package watch

import (
	"context"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/mamaar/methodobject/pkg/analysis"
	"github.com/mamaar/methodobject/pkg/types"
)

// WorkspaceUpdater keeps a loaded workspace in sync with the files on disk,
// so later extractions see edits made outside the tool.
type WorkspaceUpdater struct {
	workspace *types.Workspace
	parser    *analysis.GoParser
	// mu guards the workspace against concurrent refactorings.
	mu     sync.Locker
	logger *slog.Logger
}

// NewUpdater creates a WorkspaceUpdater. mu is held while the workspace is
// modified; pass the lock the refactorings take, or nil when nothing else
// touches the workspace.
func NewUpdater(ws *types.Workspace, parser *analysis.GoParser, mu sync.Locker, logger *slog.Logger) *WorkspaceUpdater {
	if mu == nil {
		mu = &sync.Mutex{}
	}
	return &WorkspaceUpdater{
		workspace: ws,
		parser:    parser,
		mu:        mu,
		logger:    logger,
	}
}

// HandleChanges applies a batch of file changes and re-type-checks the
// packages they touched.
func (u *WorkspaceUpdater) HandleChanges(events []ChangeEvent) {
	start := time.Now()
	u.mu.Lock()
	defer u.mu.Unlock()

	var dirs []string
	for _, ev := range events {
		if ev.Removed {
			u.parser.RemoveFile(u.workspace, ev.Path)
		} else if err := u.parser.UpdateFile(u.workspace, ev.Path); err != nil {
			u.logger.Warn("failed to update file", "file", ev.Path, "err", err)
			continue
		}
		if dir := filepath.Dir(ev.Path); !slices.Contains(dirs, dir) {
			dirs = append(dirs, dir)
		}
	}

	for _, dir := range dirs {
		if pkg, ok := u.workspace.Packages[dir]; ok {
			u.parser.EnsureTypeChecked(u.workspace, pkg)
		}
	}
	if cycles := analysis.NewDependencyAnalyzer(u.workspace, u.logger).DetectCycles(); len(cycles) > 0 {
		u.logger.Warn("workspace has import cycles", "count", len(cycles))
	}

	u.logger.Info("batch complete",
		"dirs", len(dirs),
		"files", len(events),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
}

// Watch runs w and applies its batches until ctx is cancelled.
func (u *WorkspaceUpdater) Watch(ctx context.Context, w *Watcher) error {
	batches := make(chan []ChangeEvent)
	errc := make(chan error, 1)
	go func() { errc <- w.Run(ctx, batches) }()
	for {
		select {
		case batch := <-batches:
			u.HandleChanges(batch)
		case err := <-errc:
			return err
		}
	}
}

// FindPackage returns the package in dir, if any.
func (u *WorkspaceUpdater) FindPackage(dir string) *types.Package {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.workspace.Packages[dir]
}

// PackageCount returns the number of packages currently in the workspace.
func (u *WorkspaceUpdater) PackageCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.workspace.Packages)
}
