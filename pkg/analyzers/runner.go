package analyzers

import (
	"fmt"
	"go/ast"
	"go/types"
	"sort"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/ast/inspector"

	wsanalysis "github.com/mamaar/methodobject/pkg/analysis"
	"github.com/mamaar/methodobject/pkg/analyzers/filedata"
	wstypes "github.com/mamaar/methodobject/pkg/types"
)

// RunResult holds the output of running an analyzer across one or more packages.
type RunResult struct {
	Results     []any // one per analysed package, in package order
	Diagnostics []analysis.Diagnostic
}

// Run executes an analyzer against workspace packages and returns its typed
// results plus any diagnostics reported. If pkgFilter is non-empty, only the
// matching package is analysed; otherwise all packages are analysed.
// Packages that have not been type-checked yet are checked with parser.
func Run(ws *wstypes.Workspace, parser *wsanalysis.GoParser, a *analysis.Analyzer, pkgFilter string) (*RunResult, error) {
	var packages []*wstypes.Package
	if pkgFilter != "" {
		resolved := wstypes.ResolvePackagePath(ws, pkgFilter)
		pkg, ok := ws.Packages[resolved]
		if !ok {
			return nil, &wstypes.RefactorError{
				Type:    wstypes.SymbolNotFound,
				Message: fmt.Sprintf("package %s not found", pkgFilter),
			}
		}
		packages = []*wstypes.Package{pkg}
	} else {
		for _, pkg := range ws.Packages {
			packages = append(packages, pkg)
		}
		sort.Slice(packages, func(i, j int) bool { return packages[i].Path < packages[j].Path })
	}

	combined := &RunResult{}
	for _, pkg := range packages {
		if parser != nil {
			parser.EnsureTypeChecked(ws, pkg)
		}
		rr, err := RunPackage(ws, a, pkg)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", pkg.ImportPath, err)
		}
		combined.Diagnostics = append(combined.Diagnostics, rr.Diagnostics...)
		combined.Results = append(combined.Results, rr.Results...)
	}
	return combined, nil
}

// RunPackage executes an analyzer against a single workspace package.
func RunPackage(ws *wstypes.Workspace, a *analysis.Analyzer, pkg *wstypes.Package) (*RunResult, error) {
	var diags []analysis.Diagnostic

	pass, err := buildPass(ws, pkg, a, func(d analysis.Diagnostic) {
		diags = append(diags, d)
	})
	if err != nil {
		return nil, err
	}

	res, err := a.Run(pass)
	if err != nil {
		return nil, err
	}
	return &RunResult{Results: []any{res}, Diagnostics: diags}, nil
}

func buildPass(ws *wstypes.Workspace, pkg *wstypes.Package, a *analysis.Analyzer, report func(analysis.Diagnostic)) (*analysis.Pass, error) {
	names := make([]string, 0, len(pkg.Files))
	for name := range pkg.Files {
		names = append(names, name)
	}
	sort.Strings(names)
	files := make([]*ast.File, 0, len(names))
	for _, name := range names {
		files = append(files, pkg.Files[name].AST)
	}

	typesPkg := pkg.TypesPkg
	if typesPkg == nil {
		typesPkg = types.NewPackage(pkg.ImportPath, pkg.Name)
	}

	typesInfo := pkg.TypesInfo
	if typesInfo == nil {
		typesInfo = wsanalysis.NewInfo()
	}

	pass := &analysis.Pass{
		Analyzer:  a,
		Fset:      ws.FileSet,
		Files:     files,
		Pkg:       typesPkg,
		TypesInfo: typesInfo,
		Report:    report,
		ResultOf:  make(map[*analysis.Analyzer]any),
	}

	// Pre-compute results for required analyzers.
	for _, req := range a.Requires {
		switch {
		case req == filedata.Analyzer:
			fd := &filedata.Data{Content: make(map[string][]byte)}
			for _, f := range pkg.Files {
				fd.Content[f.Path] = f.OriginalContent
			}
			pass.ResultOf[req] = fd
		case req.Name == "inspect":
			pass.ResultOf[req] = inspector.New(files)
		default:
			// Run required analyzer recursively.
			reqPass, err := buildPass(ws, pkg, req, func(analysis.Diagnostic) {})
			if err != nil {
				return nil, err
			}
			res, err := req.Run(reqPass)
			if err != nil {
				return nil, err
			}
			pass.ResultOf[req] = res
		}
	}

	return pass, nil
}
