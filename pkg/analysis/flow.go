package analysis

import (
	"go/ast"
	"go/token"
	gotypes "go/types"
	"strconv"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/tools/go/ast/edge"
	"golang.org/x/tools/go/ast/inspector"
)

// Variable is a local of the enclosing function that crosses the fragment
// boundary.
type Variable struct {
	Obj   *gotypes.Var
	Field string // exported field name on the method object
	// Assigned is set when the fragment writes the variable, so its value
	// has to be copied back after the object ran.
	Assigned bool
	// UsedAfter is set when code after the fragment reads the variable.
	UsedAfter bool
}

// Flow describes how data enters and leaves a fragment.
type Flow struct {
	// Inputs are locals declared outside the fragment and used in it, in
	// order of first use.
	Inputs []*Variable
	// Escaping are locals declared in the fragment and used after it.
	Escaping []*Variable
}

// Outputs returns the inputs the fragment writes.
func (f *Flow) Outputs() []*Variable {
	var out []*Variable
	for _, v := range f.Inputs {
		if v.Assigned {
			out = append(out, v)
		}
	}
	return out
}

// AnalyzeFlow finds the free variables of a fragment. reserved holds field
// names the object already uses.
func AnalyzeFlow(info *gotypes.Info, frag *Fragment, reserved ...string) *Flow {
	flow := &Flow{}
	seen := make(map[*gotypes.Var]*Variable)
	names := make(map[string]bool)
	for _, r := range reserved {
		names[r] = true
	}
	from, to := frag.Pos(), frag.EndPos()
	inside := func(pos token.Pos) bool { return pos >= from && pos < to }

	root, ok := inspector.New([]*ast.File{frag.File}).Root().FindNode(frag.Func)
	if !ok {
		return flow
	}
	for cur := range root.Preorder((*ast.Ident)(nil)) {
		id := cur.Node().(*ast.Ident)
		obj, ok := info.Uses[id].(*gotypes.Var)
		if !ok || obj.IsField() || obj.Pkg() == nil || obj.Parent() == obj.Pkg().Scope() {
			continue
		}
		declaredInside := inside(obj.Pos())
		switch {
		case inside(id.Pos()) && !declaredInside:
			v := seen[obj]
			if v == nil {
				v = &Variable{Obj: obj, Field: fieldName(obj.Name(), names)}
				seen[obj] = v
				flow.Inputs = append(flow.Inputs, v)
			}
			if written(cur, info) {
				v.Assigned = true
			}
		case id.Pos() >= to && declaredInside:
			if seen[obj] == nil {
				v := &Variable{Obj: obj, UsedAfter: true}
				seen[obj] = v
				flow.Escaping = append(flow.Escaping, v)
			}
		case id.Pos() >= to:
			if v := seen[obj]; v != nil {
				v.UsedAfter = true
			}
		}
	}
	return flow
}

// written reports whether the identifier under cur is stored to, directly
// or through a field or array element of it.
func written(cur inspector.Cursor, info *gotypes.Info) bool {
	for {
		k, _ := cur.ParentEdge()
		parent := cur.Parent()
		switch k {
		case edge.AssignStmt_Lhs, edge.IncDecStmt_X:
			return true
		case edge.RangeStmt_Key, edge.RangeStmt_Value:
			return parent.Node().(*ast.RangeStmt).Tok == token.ASSIGN
		case edge.UnaryExpr_X:
			return parent.Node().(*ast.UnaryExpr).Op == token.AND
		case edge.ParenExpr_X:
			cur = parent
		case edge.IndexExpr_X:
			if _, isArray := underlying(info.TypeOf(cur.Node().(ast.Expr))).(*gotypes.Array); !isArray {
				return false
			}
			cur = parent
		case edge.SelectorExpr_X:
			x := cur.Node().(ast.Expr)
			if _, isPtr := underlying(info.TypeOf(x)).(*gotypes.Pointer); isPtr {
				return false
			}
			sel := info.Selections[parent.Node().(*ast.SelectorExpr)]
			if sel == nil {
				return false
			}
			if sel.Kind() == gotypes.MethodVal {
				recv := sel.Obj().Type().(*gotypes.Signature).Recv()
				_, ptrRecv := recv.Type().(*gotypes.Pointer)
				return ptrRecv
			}
			cur = parent
		default:
			return false
		}
	}
}

func underlying(t gotypes.Type) gotypes.Type {
	if t == nil {
		return nil
	}
	return t.Underlying()
}

// fieldName exports a local variable name, keeping it distinct from the
// names already taken.
func fieldName(name string, taken map[string]bool) string {
	field := ExportedName(name)
	for i := 2; taken[field]; i++ {
		field = ExportedName(name) + strconv.Itoa(i)
	}
	taken[field] = true
	return field
}

// ExportedName turns an identifier into an exported one: count becomes
// Count, _tmp becomes V_tmp.
func ExportedName(name string) string {
	exported := cases.Title(language.Und, cases.NoLower).String(name)
	if r, _ := utf8.DecodeRuneInString(exported); !unicode.IsUpper(r) {
		exported = "V" + exported
	}
	return exported
}
