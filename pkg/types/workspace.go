package types

import (
	"go/ast"
	"go/token"
	gotypes "go/types"
)

// Workspace represents a loaded Go module
type Workspace struct {
	RootPath     string
	Module       *Module
	Packages     map[string]*Package // filesystem dir -> Package
	ImportToPath map[string]string   // import path -> filesystem dir
	FileSet      *token.FileSet
}

// Package represents a single Go package
type Package struct {
	Path       string           // Filesystem directory (workspace key)
	ImportPath string           // Go import path
	Name       string           // Package name
	Dir        string           // Filesystem directory
	Files      map[string]*File // filename -> File
	TestFiles  map[string]*File
	Imports    []string // Direct imports

	// Filled lazily by the parser's type checker.
	TypesPkg  *gotypes.Package
	TypesInfo *gotypes.Info
}

// File represents a single Go source file
type File struct {
	Path            string
	Package         *Package
	AST             *ast.File
	OriginalContent []byte
}

// Module represents Go module information
type Module struct {
	Path    string
	Version string // go directive
	GoMod   string // Contents of go.mod
}

// FindFile returns the file with the given absolute path, searching regular
// and test files of every package.
func (ws *Workspace) FindFile(path string) (*File, *Package) {
	for _, pkg := range ws.Packages {
		for _, f := range pkg.Files {
			if f.Path == path {
				return f, pkg
			}
		}
		for _, f := range pkg.TestFiles {
			if f.Path == path {
				return f, pkg
			}
		}
	}
	return nil, nil
}

// PackageByImportPath looks a package up by its Go import path.
func (ws *Workspace) PackageByImportPath(importPath string) *Package {
	dir, ok := ws.ImportToPath[importPath]
	if !ok {
		return nil
	}
	return ws.Packages[dir]
}
