package watch

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mamaar/methodobject/pkg/analysis"
)

// setupWorkspace creates a temp directory with a go.mod and one package, parses
// it into a workspace, and returns a ready-to-use WorkspaceUpdater.
func setupWorkspace(t *testing.T) (*WorkspaceUpdater, string) {
	t.Helper()
	dir := t.TempDir()

	writeGoFile(t, dir, "go.mod", "module example.com/test\n\ngo 1.25\n")
	pkgDir := filepath.Join(dir, "pkg", "a")
	if err := os.MkdirAll(pkgDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeGoFile(t, pkgDir, "a.go", "package a\n\nfunc Hello() {}\n")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	parser := analysis.NewParser(logger)
	ws, err := parser.ParseWorkspace(dir)
	if err != nil {
		t.Fatal(err)
	}
	return NewUpdater(ws, parser, nil, logger), dir
}

func TestUpdater_ModifyReParsesFile(t *testing.T) {
	u, dir := setupWorkspace(t)
	pkgDir := filepath.Join(dir, "pkg", "a")

	pkg := u.FindPackage(pkgDir)
	if pkg == nil {
		t.Fatal("expected package at pkg/a")
	}
	u.parser.EnsureTypeChecked(u.workspace, pkg)
	if pkg.TypesPkg.Scope().Lookup("World") != nil {
		t.Fatal("World should not exist yet")
	}

	writeGoFile(t, pkgDir, "a.go", "package a\n\nfunc Hello() {}\nfunc World() {}\n")
	u.HandleChanges([]ChangeEvent{{Path: filepath.Join(pkgDir, "a.go")}})

	if pkg.TypesPkg == nil || pkg.TypesPkg.Scope().Lookup("World") == nil {
		t.Fatal("expected World after the modification")
	}
	if string(pkg.Files["a.go"].OriginalContent) != "package a\n\nfunc Hello() {}\nfunc World() {}\n" {
		t.Errorf("expected the new content, got %q", pkg.Files["a.go"].OriginalContent)
	}
}

func TestUpdater_CreateAddsToPackage(t *testing.T) {
	u, dir := setupWorkspace(t)
	pkgDir := filepath.Join(dir, "pkg", "a")

	writeGoFile(t, pkgDir, "b.go", "package a\n\nfunc Bye() {}\n")
	u.HandleChanges([]ChangeEvent{{Path: filepath.Join(pkgDir, "b.go")}})

	pkg := u.FindPackage(pkgDir)
	if len(pkg.Files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(pkg.Files))
	}
}

func TestUpdater_CreateNewPackage(t *testing.T) {
	u, dir := setupWorkspace(t)
	newDir := filepath.Join(dir, "pkg", "b")
	if err := os.MkdirAll(newDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeGoFile(t, newDir, "b.go", "package b\n\nfunc B() {}\n")

	u.HandleChanges([]ChangeEvent{{Path: filepath.Join(newDir, "b.go")}})

	if u.PackageCount() != 2 {
		t.Fatalf("expected 2 packages, got %d", u.PackageCount())
	}
	pkg := u.FindPackage(newDir)
	if pkg == nil || pkg.ImportPath != "example.com/test/pkg/b" {
		t.Fatalf("expected package example.com/test/pkg/b, got %+v", pkg)
	}
}

func TestUpdater_DeleteRemovesEmptyPackage(t *testing.T) {
	u, dir := setupWorkspace(t)
	filePath := filepath.Join(dir, "pkg", "a", "a.go")
	if err := os.Remove(filePath); err != nil {
		t.Fatal(err)
	}

	u.HandleChanges([]ChangeEvent{{Path: filePath, Removed: true}})

	if u.PackageCount() != 0 {
		t.Fatalf("expected the empty package to be removed, got %d packages", u.PackageCount())
	}
}

func TestUpdater_UnparsableFileKeepsOldContent(t *testing.T) {
	u, dir := setupWorkspace(t)
	pkgDir := filepath.Join(dir, "pkg", "a")

	writeGoFile(t, pkgDir, "a.go", "package a\n\nfunc {\n")
	u.HandleChanges([]ChangeEvent{{Path: filepath.Join(pkgDir, "a.go")}})

	pkg := u.FindPackage(pkgDir)
	if string(pkg.Files["a.go"].OriginalContent) != "package a\n\nfunc Hello() {}\n" {
		t.Errorf("expected the last good content, got %q", pkg.Files["a.go"].OriginalContent)
	}
}

func TestUpdater_Watch(t *testing.T) {
	u, dir := setupWorkspace(t)
	w, err := NewWatcher(dir, 50*time.Millisecond, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = w.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- u.Watch(ctx, w) }()

	pkgDir := filepath.Join(dir, "pkg", "a")
	writeGoFile(t, pkgDir, "c.go", "package a\n\nfunc C() {}\n")

	deadline := time.Now().Add(2 * time.Second)
	for {
		pkg := u.FindPackage(pkgDir)
		if pkg != nil && u.fileCount(pkgDir) == 2 {
			break
		}
		if time.Now().After(deadline) {
			cancel()
			<-done
			t.Fatal("timed out waiting for the workspace to pick up c.go")
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func (u *WorkspaceUpdater) fileCount(dir string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	if pkg := u.workspace.Packages[dir]; pkg != nil {
		return len(pkg.Files)
	}
	return 0
}
