package types

import (
	"path/filepath"
	"strings"
)

// ResolvePackagePath resolves a user-provided package reference to an actual workspace package key.
func ResolvePackagePath(workspace *Workspace, userPath string) string {
	// Strategy 1: Try exact match (for absolute paths)
	if _, exists := workspace.Packages[userPath]; exists {
		return userPath
	}

	// Strategy 2: Try relative to workspace root
	absPath := filepath.Join(workspace.RootPath, userPath)
	if _, exists := workspace.Packages[absPath]; exists {
		return absPath
	}

	// Strategy 3: Try as an import path
	if dir, ok := workspace.ImportToPath[userPath]; ok {
		return dir
	}

	// Strategy 4: Try to find by Go package name (only if unique)
	var matchedPath string
	matchCount := 0
	for pkgPath, pkg := range workspace.Packages {
		if pkg.Name == userPath {
			matchedPath = pkgPath
			matchCount++
			if matchCount > 1 {
				break
			}
		}
	}
	if matchCount == 1 {
		return matchedPath
	}

	// If nothing matches, return the user input (will trigger helpful error message)
	return userPath
}

// ResolveDir turns a user-provided directory into an absolute path inside the
// workspace. Unlike ResolvePackagePath the directory does not have to hold a
// package yet.
func ResolveDir(workspace *Workspace, userPath string) string {
	if resolved := ResolvePackagePath(workspace, userPath); resolved != userPath || filepath.IsAbs(userPath) {
		return filepath.Clean(resolved)
	}
	return filepath.Join(workspace.RootPath, userPath)
}

// ImportPathForDir computes the import path a package in dir would have.
func ImportPathForDir(workspace *Workspace, dir string) string {
	if workspace.Module == nil {
		return ""
	}
	rel, err := filepath.Rel(workspace.RootPath, dir)
	if err != nil || rel == "." {
		return workspace.Module.Path
	}
	return workspace.Module.Path + "/" + filepath.ToSlash(rel)
}

// ResolveImportPath accepts either an import path inside the module or a
// workspace directory and returns the import path.
func ResolveImportPath(workspace *Workspace, userPath string) string {
	if _, ok := workspace.ImportToPath[userPath]; ok {
		return userPath
	}
	if m := workspace.Module; m != nil && (userPath == m.Path || strings.HasPrefix(userPath, m.Path+"/")) {
		return userPath
	}
	return ImportPathForDir(workspace, ResolveDir(workspace, userPath))
}
