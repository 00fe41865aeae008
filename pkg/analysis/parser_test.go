package analysis

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/mamaar/methodobject/pkg/types"
)

func newTestParser() *GoParser {
	return NewParser(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// writeModule lays out a module in a temporary directory. Keys of files are
// slash-separated paths relative to the module root.
func writeModule(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("Failed to create directory for %s: %v", name, err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}
	return root
}

const demoModule = "module example.com/demo\n\ngo 1.25\n"

const storeSource = `package store

type Cache struct {
	entries map[string]int
	Hits    int
}

func (c *Cache) evict(key string) { delete(c.entries, key) }

func New() *Cache { return &Cache{entries: map[string]int{}} }
`

const appSource = `package app

import "example.com/demo/store"

func Run() int {
	c := store.New()
	c.Hits++
	return c.Hits
}
`

func TestNewParser(t *testing.T) {
	parser := newTestParser()
	if parser == nil {
		t.Fatal("Expected NewParser to return a non-nil parser")
	}
	if parser.fileSet == nil {
		t.Error("Expected parser to have a non-nil fileSet")
	}
}

func TestParser_ParseFile(t *testing.T) {
	parser := newTestParser()

	tempDir := t.TempDir()
	testFile := filepath.Join(tempDir, "test.go")
	testContent := `package test

import "fmt"

// TestFunction is a test function
func TestFunction() {
	fmt.Println("Hello, World!")
}
`
	if err := os.WriteFile(testFile, []byte(testContent), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	file, err := parser.ParseFile(testFile)
	if err != nil {
		t.Fatalf("Failed to parse file: %v", err)
	}

	if file.Path != testFile {
		t.Errorf("Expected Path to be '%s', got '%s'", testFile, file.Path)
	}
	if file.AST == nil || file.AST.Name.Name != "test" {
		t.Fatalf("Expected package test, got %v", file.AST)
	}
	if string(file.OriginalContent) != testContent {
		t.Error("Expected OriginalContent to match test content")
	}
	if len(file.AST.Imports) != 1 || file.AST.Imports[0].Path.Value != `"fmt"` {
		t.Errorf("Expected a single fmt import, got %d imports", len(file.AST.Imports))
	}
}

func TestParser_ParseFile_Errors(t *testing.T) {
	tempDir := t.TempDir()
	invalid := filepath.Join(tempDir, "invalid.go")
	if err := os.WriteFile(invalid, []byte("package test\n\nfunc InvalidSyntax( {\n}\n"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	tests := []struct {
		name string
		path string
		want types.ErrorType
	}{
		{"missing file", "/non/existent/file.go", types.FileSystemError},
		{"invalid syntax", invalid, types.ParseError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestParser().ParseFile(tt.path)
			refErr, ok := err.(*types.RefactorError)
			if !ok {
				t.Fatalf("Expected RefactorError, got %T", err)
			}
			if refErr.Type != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, refErr.Type)
			}
		})
	}
}

func TestParser_ParsePackage(t *testing.T) {
	root := writeModule(t, map[string]string{
		"main.go":      "package main\n\nimport \"fmt\"\n\nfunc main() { fmt.Println(ToUpper(\"x\")) }\n",
		"utils.go":     "package main\n\nimport \"strings\"\n\nfunc ToUpper(s string) string { return strings.ToUpper(s) }\n",
		"main_test.go": "package main\n\nimport \"testing\"\n\nfunc TestToUpper(t *testing.T) {}\n",
	})

	pkg, err := newTestParser().ParsePackage(root)
	if err != nil {
		t.Fatalf("Failed to parse package: %v", err)
	}

	if pkg.Name != "main" {
		t.Errorf("Expected package name to be 'main', got '%s'", pkg.Name)
	}
	if len(pkg.Files) != 2 {
		t.Errorf("Expected 2 files, got %d", len(pkg.Files))
	}
	if len(pkg.TestFiles) != 1 {
		t.Errorf("Expected 1 test file, got %d", len(pkg.TestFiles))
	}
	if !slices.Equal(pkg.Imports, []string{"fmt", "strings"}) {
		t.Errorf("Expected imports fmt and strings, got %v", pkg.Imports)
	}
	for _, f := range pkg.Files {
		if f.Package != pkg {
			t.Errorf("File %s does not point back to its package", f.Path)
		}
	}
}

func TestParser_ParsePackage_NoGoFiles(t *testing.T) {
	_, err := newTestParser().ParsePackage(t.TempDir())
	if err == nil {
		t.Fatal("Expected an error for a directory without Go files")
	}
}

func TestParser_ParseWorkspace(t *testing.T) {
	root := writeModule(t, map[string]string{
		"go.mod":              demoModule,
		"store/store.go":      storeSource,
		"app/app.go":          appSource,
		"testdata/skip.go":    "package skip\n",
		"_scratch/ignored.go": "package ignored\n",
		".hidden/also.go":     "package also\n",
	})

	ws, err := newTestParser().ParseWorkspace(root)
	if err != nil {
		t.Fatalf("Failed to parse workspace: %v", err)
	}

	if ws.Module == nil || ws.Module.Path != "example.com/demo" {
		t.Fatalf("Expected module example.com/demo, got %+v", ws.Module)
	}
	if ws.Module.Version != "1.25" {
		t.Errorf("Expected go version 1.25, got %q", ws.Module.Version)
	}
	if len(ws.Packages) != 2 {
		t.Errorf("Expected 2 packages, got %d", len(ws.Packages))
	}

	store := ws.PackageByImportPath("example.com/demo/store")
	if store == nil {
		t.Fatal("Expected example.com/demo/store to be indexed")
	}
	if store.Name != "store" {
		t.Errorf("Expected package name store, got %s", store.Name)
	}
}

func TestParser_TypeCheckPackage(t *testing.T) {
	root := writeModule(t, map[string]string{
		"go.mod":         demoModule,
		"store/store.go": storeSource,
		"app/app.go":     appSource,
	})
	parser := newTestParser()
	ws, err := parser.ParseWorkspace(root)
	if err != nil {
		t.Fatalf("Failed to parse workspace: %v", err)
	}

	app := ws.PackageByImportPath("example.com/demo/app")
	parser.EnsureTypeChecked(ws, app)
	if app.TypesPkg == nil || app.TypesInfo == nil {
		t.Fatal("Expected type information for app")
	}
	store := ws.PackageByImportPath("example.com/demo/store")
	if store.TypesPkg == nil {
		t.Error("Expected store to be type-checked as a dependency of app")
	}
	if app.TypesInfo.Selections == nil {
		t.Error("Expected selections to be recorded")
	}
}

func TestParser_CheckPackage(t *testing.T) {
	root := writeModule(t, map[string]string{
		"go.mod":         demoModule,
		"store/store.go": storeSource,
		"app/app.go":     appSource,
	})
	parser := newTestParser()
	ws, err := parser.ParseWorkspace(root)
	if err != nil {
		t.Fatalf("Failed to parse workspace: %v", err)
	}
	app := ws.PackageByImportPath("example.com/demo/app")

	checked, err := parser.CheckPackage(ws, app)
	if err != nil {
		t.Fatalf("CheckPackage failed: %v", err)
	}
	if len(checked.Errors) != 0 {
		t.Fatalf("Unexpected type errors: %v", checked.Errors)
	}
	if checked.Pkg == nil || checked.Pkg.Path() != "example.com/demo/app" {
		t.Fatalf("Expected package example.com/demo/app, got %v", checked.Pkg)
	}
	if checked.Fset == ws.FileSet {
		t.Error("Expected a private file set")
	}

	path := filepath.Join(root, "app", "app.go")
	f, ok := checked.Files[path]
	if !ok {
		t.Fatalf("Expected %s among checked files", path)
	}
	if f == app.Files["app.go"].AST {
		t.Error("Expected a fresh syntax tree")
	}
}

func TestParser_CheckPackage_TypeErrors(t *testing.T) {
	root := writeModule(t, map[string]string{
		"go.mod":     demoModule,
		"bad/bad.go": "package bad\n\nfunc F() int { return undefined }\n",
	})
	parser := newTestParser()
	ws, err := parser.ParseWorkspace(root)
	if err != nil {
		t.Fatalf("Failed to parse workspace: %v", err)
	}

	checked, err := parser.CheckPackage(ws, ws.PackageByImportPath("example.com/demo/bad"))
	if err != nil {
		t.Fatalf("CheckPackage failed: %v", err)
	}
	if len(checked.Errors) == 0 {
		t.Error("Expected the undefined identifier to be reported")
	}
}

func TestParser_UpdateAndRemoveFile(t *testing.T) {
	root := writeModule(t, map[string]string{
		"go.mod":         demoModule,
		"store/store.go": storeSource,
		"app/app.go":     appSource,
	})
	parser := newTestParser()
	ws, err := parser.ParseWorkspace(root)
	if err != nil {
		t.Fatalf("Failed to parse workspace: %v", err)
	}
	app := ws.PackageByImportPath("example.com/demo/app")
	store := ws.PackageByImportPath("example.com/demo/store")
	parser.EnsureTypeChecked(ws, app)

	extra := filepath.Join(root, "store", "extra.go")
	if err := os.WriteFile(extra, []byte("package store\n\nfunc Extra() {}\n"), 0644); err != nil {
		t.Fatalf("Failed to write extra.go: %v", err)
	}
	if err := parser.UpdateFile(ws, extra); err != nil {
		t.Fatalf("UpdateFile failed: %v", err)
	}
	if _, ok := store.Files["extra.go"]; !ok {
		t.Error("Expected extra.go to be added to store")
	}
	if store.TypesPkg != nil || app.TypesPkg != nil {
		t.Error("Expected store and its importer app to lose their type information")
	}

	parser.RemoveFile(ws, extra)
	if _, ok := store.Files["extra.go"]; ok {
		t.Error("Expected extra.go to be removed")
	}

	newDir := filepath.Join(root, "fresh")
	if err := os.MkdirAll(newDir, 0755); err != nil {
		t.Fatal(err)
	}
	fresh := filepath.Join(newDir, "fresh.go")
	if err := os.WriteFile(fresh, []byte("package fresh\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := parser.UpdateFile(ws, fresh); err != nil {
		t.Fatalf("UpdateFile failed: %v", err)
	}
	if ws.PackageByImportPath("example.com/demo/fresh") == nil {
		t.Error("Expected a new package for fresh/")
	}
}
