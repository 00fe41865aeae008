// Package accessbridge rewrites references that stop compiling when a
// fragment of code moves into another package. Every such reference is
// replaced by a call to a generated bridge that reaches the original member
// through reflection or a linked symbol.
package accessbridge

import (
	"go/ast"
	"go/types"
)

// Kind is the kind of access a descriptor records.
type Kind int

const (
	Construction Kind = iota
	DirectCall
	MethodValue
	FieldAccess
)

func (k Kind) String() string {
	switch k {
	case Construction:
		return "construction"
	case DirectCall:
		return "call"
	case MethodValue:
		return "method value"
	case FieldAccess:
		return "field access"
	default:
		return "unknown"
	}
}

// Descriptor is one reference that is illegal from the target package. The
// set of implementations is closed: ConstructionDescriptor,
// DirectCallDescriptor, MethodValueDescriptor and FieldAccessDescriptor.
type Descriptor interface {
	Kind() Kind
	// Origin is the expression the rewrite replaces.
	Origin() ast.Expr
	// Owner is the type declaring the member, nil for package-level members.
	Owner() *types.Named
	// Member names the referenced member for reports, e.g. "store.(*Cache).evict".
	Member() string

	descriptor()
}

// ConstructionDescriptor is a composite literal of a struct type that cannot
// be written in the target package.
type ConstructionDescriptor struct {
	Expr ast.Expr // the literal, or the &T{...} expression around it
	Lit  *ast.CompositeLit
	Type *types.Named
	// Fields are the initialized fields in literal order. Nil means the zero
	// value is constructed.
	Fields     []*types.Var
	Pointer    bool
	Incomplete bool
}

// DirectCallDescriptor is a call of an unexported function or method.
type DirectCallDescriptor struct {
	Call      *ast.CallExpr
	Func      *types.Func
	Recv      ast.Expr         // nil for package-level functions
	Selection *types.Selection // nil for package-level functions
}

// MethodValueDescriptor is an unexported function or method used as a value:
// a method value x.m, a method expression T.m or a bare function name.
type MethodValueDescriptor struct {
	Expr      ast.Expr
	Func      *types.Func
	Recv      ast.Expr // receiver of a method value, nil otherwise
	Selection *types.Selection
}

// FieldAccessDescriptor is a read or write of an unexported struct field or
// package-level variable.
type FieldAccessDescriptor struct {
	Expr      ast.Expr
	Field     *types.Var
	Recv      ast.Expr // nil for package-level variables
	Selection *types.Selection
	// Addressed is set when the access is assigned to, incremented, or has
	// its address taken.
	Addressed bool
}

func (d *ConstructionDescriptor) Kind() Kind       { return Construction }
func (d *ConstructionDescriptor) Origin() ast.Expr { return d.Expr }
func (d *ConstructionDescriptor) Owner() *types.Named {
	return d.Type
}
func (d *ConstructionDescriptor) Member() string { return qualifiedType(d.Type) }
func (d *ConstructionDescriptor) descriptor()    {}

func (d *DirectCallDescriptor) Kind() Kind          { return DirectCall }
func (d *DirectCallDescriptor) Origin() ast.Expr    { return d.Call }
func (d *DirectCallDescriptor) Owner() *types.Named { return receiverNamed(d.Func) }
func (d *DirectCallDescriptor) Member() string      { return funcName(d.Func) }
func (d *DirectCallDescriptor) descriptor()         {}

func (d *MethodValueDescriptor) Kind() Kind          { return MethodValue }
func (d *MethodValueDescriptor) Origin() ast.Expr    { return d.Expr }
func (d *MethodValueDescriptor) Owner() *types.Named { return receiverNamed(d.Func) }
func (d *MethodValueDescriptor) Member() string      { return funcName(d.Func) }
func (d *MethodValueDescriptor) descriptor()         {}

func (d *FieldAccessDescriptor) Kind() Kind       { return FieldAccess }
func (d *FieldAccessDescriptor) Origin() ast.Expr { return d.Expr }
func (d *FieldAccessDescriptor) Owner() *types.Named {
	if d.Selection == nil {
		return nil
	}
	named, _ := types.Unalias(deref(d.Selection.Recv())).(*types.Named)
	return named
}
func (d *FieldAccessDescriptor) Member() string {
	if owner := d.Owner(); owner != nil {
		return qualifiedType(owner) + "." + d.Field.Name()
	}
	return qualifiedObject(d.Field)
}
func (d *FieldAccessDescriptor) descriptor() {}

func receiverNamed(fn *types.Func) *types.Named {
	recv := fn.Type().(*types.Signature).Recv()
	if recv == nil {
		return nil
	}
	named, _ := types.Unalias(deref(recv.Type())).(*types.Named)
	return named
}

func funcName(fn *types.Func) string {
	recv := fn.Type().(*types.Signature).Recv()
	if recv == nil {
		return qualifiedObject(fn)
	}
	t := recv.Type()
	if p, ok := types.Unalias(t).(*types.Pointer); ok {
		return fn.Pkg().Name() + ".(*" + types.TypeString(p.Elem(), unqualified) + ")." + fn.Name()
	}
	return types.TypeString(t, byName) + "." + fn.Name()
}

func qualifiedType(named *types.Named) string {
	return types.TypeString(named, byName)
}

func byName(pkg *types.Package) string { return pkg.Name() }

func unqualified(*types.Package) string { return "" }

func qualifiedObject(obj types.Object) string {
	if obj.Pkg() == nil {
		return obj.Name()
	}
	return obj.Pkg().Name() + "." + obj.Name()
}

func deref(t types.Type) types.Type {
	if p, ok := types.Unalias(t).(*types.Pointer); ok {
		return p.Elem()
	}
	return t
}
