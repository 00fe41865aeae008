package analysis

import (
	gotypes "go/types"

	"github.com/mamaar/methodobject/pkg/accessbridge"
)

// Visibility applies Go's accessibility rules: unexported objects are only
// reachable from their own package, and package-level objects additionally
// need an importable package.
type Visibility struct{}

var _ accessbridge.AccessChecker = Visibility{}

func (Visibility) IsAccessible(obj gotypes.Object, from accessbridge.Scope) bool {
	pkg := obj.Pkg()
	if pkg == nil || pkg.Path() == from.Path {
		return true
	}
	if !obj.Exported() {
		return false
	}
	if obj.Parent() == pkg.Scope() {
		return accessbridge.CanImport(from.Path, pkg.Path())
	}
	return true
}
