package analysis

import (
	"log/slog"
	"slices"

	"github.com/mamaar/methodobject/pkg/types"
)

// DependencyAnalyzer answers import graph questions about the workspace
// packages. Imports of packages outside the workspace are ignored.
type DependencyAnalyzer struct {
	workspace *types.Workspace
	logger    *slog.Logger
}

func NewDependencyAnalyzer(ws *types.Workspace, logger *slog.Logger) *DependencyAnalyzer {
	return &DependencyAnalyzer{
		workspace: ws,
		logger:    logger,
	}
}

// ImportGraph maps each workspace import path to the workspace packages it
// imports.
func (da *DependencyAnalyzer) ImportGraph() map[string][]string {
	graph := make(map[string][]string)
	for _, pkg := range da.workspace.Packages {
		var deps []string
		for _, imp := range pkg.Imports {
			if _, local := da.workspace.ImportToPath[imp]; local {
				deps = append(deps, imp)
			}
		}
		graph[pkg.ImportPath] = deps
	}
	return graph
}

// WouldCreateCycle reports whether adding an import of to in package from
// closes an import cycle, and returns the cycle if so.
func (da *DependencyAnalyzer) WouldCreateCycle(from, to string) ([]string, bool) {
	if from == to {
		return nil, false
	}
	graph := da.ImportGraph()
	prev := map[string]string{to: ""}
	queue := []string{to}
	for len(queue) > 0 {
		pkg := queue[0]
		queue = queue[1:]
		if pkg == from {
			cycle := []string{from}
			for p := pkg; p != ""; p = prev[p] {
				cycle = append(cycle, p)
			}
			slices.Reverse(cycle[1:])
			da.logger.Debug("import would create a cycle", "from", from, "to", to, "cycle", cycle)
			return cycle, true
		}
		for _, dep := range graph[pkg] {
			if _, ok := prev[dep]; !ok {
				prev[dep] = pkg
				queue = append(queue, dep)
			}
		}
	}
	return nil, false
}

// DetectCycles lists the import cycles among workspace packages.
func (da *DependencyAnalyzer) DetectCycles() [][]string {
	cycles := detectCycles(da.ImportGraph())
	if len(cycles) > 0 {
		da.logger.Warn("detected import cycles", "cycle_count", len(cycles))
	}
	return cycles
}

func detectCycles(imports map[string][]string) [][]string {
	var cycles [][]string
	visited := make(map[string]bool)
	recStack := make(map[string]bool)

	var dfs func(string, []string) []string
	dfs = func(pkg string, path []string) []string {
		visited[pkg] = true
		recStack[pkg] = true
		newPath := append(slices.Clone(path), pkg)

		for _, imp := range imports[pkg] {
			if !visited[imp] {
				if cycle := dfs(imp, newPath); cycle != nil {
					return cycle
				}
			} else if recStack[imp] {
				if i := slices.Index(newPath, imp); i >= 0 {
					return newPath[i:]
				}
			}
		}

		recStack[pkg] = false
		return nil
	}

	pkgs := make([]string, 0, len(imports))
	for pkg := range imports {
		pkgs = append(pkgs, pkg)
	}
	slices.Sort(pkgs)
	for _, pkg := range pkgs {
		if !visited[pkg] {
			if cycle := dfs(pkg, nil); cycle != nil {
				cycles = append(cycles, cycle)
			}
		}
	}
	return cycles
}
