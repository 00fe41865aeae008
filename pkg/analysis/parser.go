package analysis

import (
	"fmt"
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	gotypes "go/types"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"

	"golang.org/x/mod/modfile"

	"github.com/mamaar/methodobject/pkg/types"
)

// GoParser handles Go code parsing and type checking of workspace packages.
type GoParser struct {
	fileSet  *token.FileSet
	logger   *slog.Logger
	importer *workspaceImporter
}

func NewParser(logger *slog.Logger) *GoParser {
	return &GoParser{
		fileSet: token.NewFileSet(),
		logger:  logger,
	}
}

// ParseFile parses a single Go file
func (p *GoParser) ParseFile(filename string) (*types.File, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, &types.RefactorError{
			Type:    types.FileSystemError,
			Message: fmt.Sprintf("failed to read file: %v", err),
			File:    filename,
			Cause:   err,
		}
	}

	astFile, err := parser.ParseFile(p.fileSet, filename, content, parser.ParseComments)
	if err != nil {
		return nil, &types.RefactorError{
			Type:    types.ParseError,
			Message: fmt.Sprintf("failed to parse file: %v", err),
			File:    filename,
			Cause:   err,
		}
	}

	return &types.File{
		Path:            filename,
		AST:             astFile,
		OriginalContent: content,
	}, nil
}

// ParsePackage parses all Go files in a package directory
func (p *GoParser) ParsePackage(dir string) (*types.Package, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	pkg := &types.Package{
		Path:      abs,
		Dir:       abs,
		Files:     make(map[string]*types.File),
		TestFiles: make(map[string]*types.File),
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &types.RefactorError{
			Type:    types.FileSystemError,
			Message: fmt.Sprintf("failed to parse package: %v", err),
			File:    dir,
			Cause:   err,
		}
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".go") {
			continue
		}
		file, err := p.ParseFile(filepath.Join(abs, entry.Name()))
		if err != nil {
			return nil, err
		}
		file.Package = pkg

		if strings.HasSuffix(entry.Name(), "_test.go") {
			pkg.TestFiles[entry.Name()] = file
			continue
		}
		pkg.Files[entry.Name()] = file
		if pkg.Name == "" {
			pkg.Name = file.AST.Name.Name
		}
		for _, imp := range file.AST.Imports {
			importPath := strings.Trim(imp.Path.Value, `"`)
			if !slices.Contains(pkg.Imports, importPath) {
				pkg.Imports = append(pkg.Imports, importPath)
			}
		}
	}

	if pkg.Name == "" {
		return nil, &types.RefactorError{
			Type:    types.ParseError,
			Message: "no non-test Go files found in package",
			File:    dir,
		}
	}
	slices.Sort(pkg.Imports)
	return pkg, nil
}

// ParseWorkspace parses an entire Go module.
// Package directories are discovered sequentially, then parsed in parallel
// using a bounded worker pool (runtime.NumCPU goroutines).
func (p *GoParser) ParseWorkspace(rootPath string) (*types.Workspace, error) {
	p.logger.Info("parsing workspace", "path", rootPath)

	absRootPath, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, &types.RefactorError{
			Type:    types.FileSystemError,
			Message: fmt.Sprintf("failed to get absolute path for workspace: %v", err),
			File:    rootPath,
		}
	}

	workspace := &types.Workspace{
		RootPath:     absRootPath,
		Packages:     make(map[string]*types.Package),
		ImportToPath: make(map[string]string),
		FileSet:      p.fileSet,
	}

	goModPath := filepath.Join(absRootPath, "go.mod")
	if modContent, err := os.ReadFile(goModPath); err == nil {
		module, err := parseGoMod(goModPath, modContent)
		if err != nil {
			return nil, err
		}
		workspace.Module = module
	}

	// Phase 1: discover package directories
	var pkgDirs []string
	err = filepath.WalkDir(absRootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != absRootPath && SkipDir(d.Name()) {
			return filepath.SkipDir
		}
		hasGoFiles, err := hasGoFiles(path)
		if err != nil {
			return err
		}
		if hasGoFiles {
			pkgDirs = append(pkgDirs, path)
		}
		return nil
	})
	if err != nil {
		p.logger.Error("workspace discovery failed", "path", rootPath, "err", err)
		return nil, &types.RefactorError{
			Type:    types.FileSystemError,
			Message: fmt.Sprintf("failed to parse workspace: %v", err),
			File:    rootPath,
			Cause:   err,
		}
	}

	p.logger.Debug("discovered packages", "count", len(pkgDirs))

	// Phase 2: parse packages in parallel. The shared fileSet is safe for
	// concurrent use.
	type pkgResult struct {
		pkg *types.Package
		err error
	}

	results := make([]pkgResult, len(pkgDirs))
	workers := min(runtime.NumCPU(), len(pkgDirs))

	var wg sync.WaitGroup
	dirCh := make(chan int, len(pkgDirs))
	for i := range pkgDirs {
		dirCh <- i
	}
	close(dirCh)

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range dirCh {
				pkg, err := p.ParsePackage(pkgDirs[idx])
				results[idx] = pkgResult{pkg: pkg, err: err}
			}
		}()
	}
	wg.Wait()

	for i, res := range results {
		if res.err != nil {
			p.logger.Warn("failed to parse package", "dir", pkgDirs[i], "err", res.err)
			continue
		}
		workspace.Packages[res.pkg.Path] = res.pkg
	}

	if workspace.Module != nil {
		for dir, pkg := range workspace.Packages {
			pkg.ImportPath = types.ImportPathForDir(workspace, dir)
			workspace.ImportToPath[pkg.ImportPath] = dir
		}
	}

	p.logger.Info("workspace parsed successfully", "packages", len(workspace.Packages), "module", moduleName(workspace))

	// One importer per workspace keeps stdlib type identities consistent
	// across TypeCheckPackage calls.
	p.importer = &workspaceImporter{ws: workspace, parser: p}

	return workspace, nil
}

// UpdateFile re-reads a file from disk and replaces it in its package. It is
// used when the watcher reports a change.
func (p *GoParser) UpdateFile(ws *types.Workspace, path string) error {
	file, err := p.ParseFile(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	pkg, ok := ws.Packages[dir]
	if !ok {
		pkg, err = p.ParsePackage(dir)
		if err != nil {
			return err
		}
		pkg.ImportPath = types.ImportPathForDir(ws, dir)
		ws.Packages[dir] = pkg
		ws.ImportToPath[pkg.ImportPath] = dir
		return nil
	}
	file.Package = pkg
	name := filepath.Base(path)
	if strings.HasSuffix(name, "_test.go") {
		pkg.TestFiles[name] = file
	} else {
		pkg.Files[name] = file
	}
	p.Invalidate(ws, pkg)
	return nil
}

// RemoveFile drops a deleted file from its package.
func (p *GoParser) RemoveFile(ws *types.Workspace, path string) {
	dir := filepath.Dir(path)
	pkg, ok := ws.Packages[dir]
	if !ok {
		return
	}
	name := filepath.Base(path)
	delete(pkg.Files, name)
	delete(pkg.TestFiles, name)
	if len(pkg.Files) == 0 && len(pkg.TestFiles) == 0 {
		delete(ws.Packages, dir)
		delete(ws.ImportToPath, pkg.ImportPath)
		return
	}
	p.Invalidate(ws, pkg)
}

// Invalidate drops the type information of pkg and of every package that
// imports it, directly or not.
func (p *GoParser) Invalidate(ws *types.Workspace, pkg *types.Package) {
	pkg.TypesPkg, pkg.TypesInfo = nil, nil
	for _, other := range ws.Packages {
		if other.TypesPkg != nil && slices.Contains(other.Imports, pkg.ImportPath) {
			p.Invalidate(ws, other)
		}
	}
}

func parseGoMod(path string, content []byte) (*types.Module, error) {
	f, err := modfile.ParseLax(path, content, nil)
	if err != nil {
		return nil, &types.RefactorError{
			Type:    types.ParseError,
			Message: fmt.Sprintf("failed to parse go.mod: %v", err),
			File:    path,
			Cause:   err,
		}
	}
	module := &types.Module{GoMod: string(content)}
	if f.Module != nil {
		module.Path = f.Module.Mod.Path
	}
	if f.Go != nil {
		module.Version = f.Go.Version
	}
	return module, nil
}

// SkipDir reports whether a directory with the given name is outside the
// workspace's packages, as the go tool treats it.
func SkipDir(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "vendor" || name == "testdata"
}

func moduleName(ws *types.Workspace) string {
	if ws.Module == nil {
		return ""
	}
	return ws.Module.Path
}

func hasGoFiles(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, err
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".go") {
			return true, nil
		}
	}
	return false, nil
}

// EnsureTypeChecked runs type-checking on a package if it hasn't been done yet.
func (p *GoParser) EnsureTypeChecked(ws *types.Workspace, pkg *types.Package) {
	if pkg.TypesPkg != nil {
		return
	}
	p.TypeCheckPackage(ws, pkg)
}

// TypeCheckPackage runs go/types type-checking on a package.
// Results are stored in pkg.TypesInfo and pkg.TypesPkg. Type errors are
// logged; go/types still records what it could resolve.
func (p *GoParser) TypeCheckPackage(ws *types.Workspace, pkg *types.Package) {
	var files []*ast.File
	for _, name := range sortedNames(pkg.Files) {
		files = append(files, pkg.Files[name].AST)
	}
	if len(files) == 0 {
		return
	}

	conf := gotypes.Config{
		Importer: p.importerFor(ws),
		Error:    func(error) {},
	}
	info := NewInfo()
	typesPkg, err := conf.Check(pkg.ImportPath, ws.FileSet, files, info)
	if err != nil {
		p.logger.Debug("type-checking failed", "package", pkg.ImportPath, "err", err)
	}
	pkg.TypesInfo = info
	pkg.TypesPkg = typesPkg
}

// Checked is a privately parsed and type-checked copy of a package. Its
// syntax trees can be rewritten without touching the workspace.
type Checked struct {
	Fset   *token.FileSet
	Files  map[string]*ast.File // absolute path -> file
	Pkg    *gotypes.Package
	Info   *gotypes.Info
	Errors []error
}

// CheckPackage parses the package again from the workspace contents into a
// fresh file set and type-checks it.
func (p *GoParser) CheckPackage(ws *types.Workspace, pkg *types.Package) (*Checked, error) {
	checked := &Checked{
		Fset:  token.NewFileSet(),
		Files: make(map[string]*ast.File),
		Info:  NewInfo(),
	}
	var files []*ast.File
	for _, name := range sortedNames(pkg.Files) {
		src := pkg.Files[name]
		f, err := parser.ParseFile(checked.Fset, src.Path, src.OriginalContent, parser.ParseComments)
		if err != nil {
			return nil, &types.RefactorError{
				Type:    types.ParseError,
				Message: fmt.Sprintf("failed to parse file: %v", err),
				File:    src.Path,
				Cause:   err,
			}
		}
		checked.Files[src.Path] = f
		files = append(files, f)
	}

	conf := gotypes.Config{
		Importer: p.importerFor(ws),
		Error: func(err error) {
			checked.Errors = append(checked.Errors, err)
		},
	}
	checked.Pkg, _ = conf.Check(pkg.ImportPath, checked.Fset, files, checked.Info)
	if len(checked.Errors) > 0 {
		p.logger.Debug("package has type errors", "package", pkg.ImportPath, "errors", len(checked.Errors))
	}
	return checked, nil
}

// NewInfo returns a types.Info recording everything the refactorings read.
func NewInfo() *gotypes.Info {
	return &gotypes.Info{
		Types:      make(map[ast.Expr]gotypes.TypeAndValue),
		Defs:       make(map[*ast.Ident]gotypes.Object),
		Uses:       make(map[*ast.Ident]gotypes.Object),
		Implicits:  make(map[ast.Node]gotypes.Object),
		Selections: make(map[*ast.SelectorExpr]*gotypes.Selection),
		Scopes:     make(map[ast.Node]*gotypes.Scope),
		Instances:  make(map[*ast.Ident]gotypes.Instance),
	}
}

func sortedNames(files map[string]*types.File) []string {
	names := make([]string, 0, len(files))
	for name, f := range files {
		if f.AST != nil {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

func (p *GoParser) importerFor(ws *types.Workspace) *workspaceImporter {
	if p.importer == nil || p.importer.ws != ws {
		p.importer = &workspaceImporter{ws: ws, parser: p}
	}
	return p.importer
}

// workspaceImporter implements go/types.Importer using workspace-local packages
// with fallback to export data for stdlib and external packages.
type workspaceImporter struct {
	ws       *types.Workspace
	parser   *GoParser
	std      gotypes.Importer
	checking map[string]bool
}

func (imp *workspaceImporter) Import(path string) (*gotypes.Package, error) {
	if pkg := imp.ws.PackageByImportPath(path); pkg != nil {
		if imp.checking[path] {
			return nil, fmt.Errorf("import cycle through %s", path)
		}
		if imp.checking == nil {
			imp.checking = make(map[string]bool)
		}
		imp.checking[path] = true
		imp.parser.EnsureTypeChecked(imp.ws, pkg)
		delete(imp.checking, path)
		if pkg.TypesPkg != nil {
			return pkg.TypesPkg, nil
		}
	}
	if imp.std == nil {
		imp.std = importer.Default()
	}
	return imp.std.Import(path)
}
