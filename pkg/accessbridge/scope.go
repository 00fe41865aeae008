package accessbridge

import (
	"errors"
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"strings"
)

var (
	// ErrUnresolvable marks a reference whose bridge cannot be spelled in the
	// target package.
	ErrUnresolvable = errors.New("unresolvable member")
	// ErrIncomplete marks a reference whose expression is incomplete.
	ErrIncomplete = errors.New("incomplete expression")
)

// MutationError reports a structural change to the tree that could not be
// made. It aborts the run.
type MutationError struct {
	Op  string // "replace" or "insert"
	Pos token.Position
	Err error
}

func (e *MutationError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s: cannot %s: %v", e.Pos, e.Op, e.Err)
	}
	return fmt.Sprintf("cannot %s: %v", e.Op, e.Err)
}

func (e *MutationError) Unwrap() error { return e.Err }

// Scope is the package a fragment moves to. Declarations inside
// [From, To) travel with the fragment and stay accessible.
type Scope struct {
	Path string // import path
	Name string // package name
	From token.Pos
	To   token.Pos
}

func (s Scope) moves(obj types.Object) bool {
	return s.From.IsValid() && obj.Pos() >= s.From && obj.Pos() < s.To
}

// AccessChecker decides whether obj may be referenced from code in scope.
type AccessChecker interface {
	IsAccessible(obj types.Object, from Scope) bool
}

// AccessFunc adapts a function to AccessChecker.
type AccessFunc func(obj types.Object, from Scope) bool

func (f AccessFunc) IsAccessible(obj types.Object, from Scope) bool { return f(obj, from) }

// CanImport applies the internal/ directory rule: a package under .../internal/
// may only be imported from the tree rooted at the parent of internal.
func CanImport(from, path string) bool {
	if from == path {
		return true
	}
	var parent string
	switch {
	case strings.HasSuffix(path, "/internal"):
		parent = strings.TrimSuffix(path, "internal")
	case strings.Contains(path, "/internal/"):
		parent = path[:strings.LastIndex(path, "/internal/")+1]
	case path == "internal" || strings.HasPrefix(path, "internal/"):
		// standard library internals
		return false
	default:
		return true
	}
	return strings.HasPrefix(from+"/", parent)
}

// Container is the struct type hosting the relocated fragment. Bridges are
// appended to File.
type Container struct {
	Fset *token.FileSet
	File *ast.File
	Name string // struct type name, receiver type of instance bridges
	Path string // import path of the container's package
	// Static bridges are package-level functions called by name. Otherwise
	// they are methods of *Name called through Receiver.
	Static   bool
	Receiver string

	from, to token.Pos // span of the fragment being bridged
}

// Scope returns the accessibility context of the container's package.
func (c *Container) Scope() Scope {
	s := Scope{Path: c.Path, From: c.from, To: c.to}
	if c.File != nil && c.File.Name != nil {
		s.Name = c.File.Name.Name
	}
	return s
}

func (c *Container) validate() error {
	switch {
	case c == nil || c.File == nil:
		return errors.New("container has no file")
	case c.Fset == nil:
		return errors.New("container has no file set")
	case c.Path == "":
		return errors.New("container has no package path")
	case !c.Static && (c.Name == "" || c.Receiver == ""):
		return errors.New("instance bridges need a container type and receiver name")
	}
	return nil
}

// Naming holds the bridge name prefixes per kind.
type Naming struct {
	Construction string
	Method       string
	Field        string
}

// DefaultNaming returns the standard prefixes.
func DefaultNaming() Naming {
	return Naming{
		Construction: "reflectionConstructorAccess",
		Method:       "reflectionMethodAccess",
		Field:        "reflectionFieldAccess",
	}
}

func (n Naming) prefix(k Kind) string {
	switch k {
	case Construction:
		return n.Construction
	case FieldAccess:
		return n.Field
	default:
		return n.Method
	}
}
