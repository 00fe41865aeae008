package accessbridge

import (
	"go/ast"
	"go/token"
	"go/types"

	"golang.org/x/tools/go/ast/astutil"
)

// Classify decides whether the node under c is a reference that must be
// bridged to be legal in scope. Nodes owned by an enclosing candidate (the
// callee of a call, the literal under &T{...}, selector names and struct
// literal keys) are never classified on their own.
func (b *Bridger) Classify(c *astutil.Cursor, scope Scope) (Descriptor, bool) {
	switch n := c.Node().(type) {
	case *ast.UnaryExpr:
		if lit, ok := n.X.(*ast.CompositeLit); ok && n.Op == token.AND {
			return b.classifyConstruction(n, lit, true, scope)
		}
	case *ast.CompositeLit:
		if isAddressOperand(c) {
			return nil, false
		}
		return b.classifyConstruction(n, n, false, scope)
	case *ast.CallExpr:
		return b.classifyCall(n, scope)
	case *ast.Ident:
		if c.Name() == "Sel" {
			return nil, false
		}
		return b.classifyObject(c, n, b.info.Uses[n], scope)
	case *ast.SelectorExpr:
		return b.classifySelector(c, n, scope)
	case *ast.IndexExpr, *ast.IndexListExpr:
		if isCallee(c) || isInstantiated(c) {
			return nil, false
		}
		fn, _, _ := b.callee(n.(ast.Expr))
		if fn == nil || b.accessible(fn, scope) {
			return nil, false
		}
		return &MethodValueDescriptor{Expr: n.(ast.Expr), Func: fn}, true
	}
	return nil, false
}

func (b *Bridger) classifyConstruction(origin ast.Expr, lit *ast.CompositeLit, pointer bool, scope Scope) (Descriptor, bool) {
	typ := b.info.TypeOf(lit)
	if typ == nil {
		return nil, false
	}
	// [...]*T{{...}} records *T for the elided &T{...}
	if p, ok := types.Unalias(typ).(*types.Pointer); ok {
		typ = p.Elem()
		pointer = true
	}
	named, ok := types.Unalias(typ).(*types.Named)
	if !ok {
		// anonymous struct literal
		return nil, false
	}
	st, ok := named.Underlying().(*types.Struct)
	if !ok {
		// array, slice and map initializers
		return nil, false
	}

	fields, complete := b.initializedFields(lit, st)
	illegal := !b.accessible(named.Obj(), scope)
	for _, f := range fields {
		if !b.accessible(f, scope) {
			illegal = true
		}
	}
	if !illegal {
		return nil, false
	}
	return &ConstructionDescriptor{
		Expr:       origin,
		Lit:        lit,
		Type:       named,
		Fields:     fields,
		Pointer:    pointer,
		Incomplete: lit.Incomplete || !complete,
	}, true
}

// initializedFields lists the fields a literal sets, in literal order. It
// returns nil for an empty literal.
func (b *Bridger) initializedFields(lit *ast.CompositeLit, st *types.Struct) ([]*types.Var, bool) {
	if len(lit.Elts) == 0 {
		return nil, true
	}
	fields := make([]*types.Var, 0, len(lit.Elts))
	complete := true
	for i, elt := range lit.Elts {
		switch elt := elt.(type) {
		case *ast.KeyValueExpr:
			key, _ := elt.Key.(*ast.Ident)
			var field *types.Var
			if key != nil {
				field, _ = b.info.Uses[key].(*types.Var)
			}
			if field == nil {
				complete = false
				continue
			}
			if _, bad := elt.Value.(*ast.BadExpr); bad {
				complete = false
			}
			fields = append(fields, field)
		case *ast.BadExpr:
			complete = false
		default:
			if i >= st.NumFields() {
				complete = false
				continue
			}
			fields = append(fields, st.Field(i))
		}
	}
	return fields, complete
}

func (b *Bridger) classifyCall(call *ast.CallExpr, scope Scope) (Descriptor, bool) {
	fn, recv, sel := b.callee(call.Fun)
	if fn == nil || b.accessible(fn, scope) {
		return nil, false
	}
	if sel != nil && sel.Kind() == types.MethodExpr {
		// T.m(x) is bridged as a method value applied to x
		return nil, false
	}
	return &DirectCallDescriptor{Call: call, Func: fn, Recv: recv, Selection: sel}, true
}

// callee resolves the function an expression in call position denotes. It
// sees through generic instantiation but not through parentheses.
func (b *Bridger) callee(e ast.Expr) (*types.Func, ast.Expr, *types.Selection) {
	switch e := e.(type) {
	case *ast.IndexExpr:
		return b.callee(e.X)
	case *ast.IndexListExpr:
		return b.callee(e.X)
	case *ast.Ident:
		if fn, ok := b.info.Uses[e].(*types.Func); ok {
			return fn, nil, nil
		}
	case *ast.SelectorExpr:
		if sel, ok := b.info.Selections[e]; ok {
			fn, ok := sel.Obj().(*types.Func)
			if !ok {
				return nil, nil, nil
			}
			if sel.Kind() == types.MethodVal {
				return fn, e.X, sel
			}
			return fn, nil, sel
		}
		if fn, ok := b.info.Uses[e.Sel].(*types.Func); ok {
			return fn, nil, nil
		}
	}
	return nil, nil, nil
}

func (b *Bridger) classifySelector(c *astutil.Cursor, sel *ast.SelectorExpr, scope Scope) (Descriptor, bool) {
	s, ok := b.info.Selections[sel]
	if !ok {
		// qualified identifier
		return b.classifyObject(c, sel, b.info.Uses[sel.Sel], scope)
	}

	switch s.Kind() {
	case types.FieldVal:
		field := s.Obj().(*types.Var)
		if b.accessible(field, scope) {
			return nil, false
		}
		return &FieldAccessDescriptor{
			Expr:      sel,
			Field:     field,
			Recv:      sel.X,
			Selection: s,
			Addressed: b.isAddressed(c, field.Type()),
		}, true
	case types.MethodVal:
		if isCallee(c) {
			return nil, false
		}
		fn := s.Obj().(*types.Func)
		if b.accessible(fn, scope) {
			return nil, false
		}
		return &MethodValueDescriptor{Expr: sel, Func: fn, Recv: sel.X, Selection: s}, true
	case types.MethodExpr:
		fn := s.Obj().(*types.Func)
		if b.accessible(fn, scope) {
			return nil, false
		}
		return &MethodValueDescriptor{Expr: sel, Func: fn, Selection: s}, true
	}
	return nil, false
}

// classifyObject handles plain and package-qualified identifiers.
func (b *Bridger) classifyObject(c *astutil.Cursor, expr ast.Expr, obj types.Object, scope Scope) (Descriptor, bool) {
	switch obj := obj.(type) {
	case *types.Func:
		// calls and instantiations are classified at the enclosing node
		if isCallee(c) || isInstantiated(c) || b.accessible(obj, scope) {
			return nil, false
		}
		return &MethodValueDescriptor{Expr: expr, Func: obj}, true
	case *types.Var:
		// struct literal keys resolve to fields
		if obj.IsField() || !isPackageLevel(obj) || b.accessible(obj, scope) {
			return nil, false
		}
		return &FieldAccessDescriptor{Expr: expr, Field: obj, Addressed: b.isAddressed(c, obj.Type())}, true
	}
	return nil, false
}

// isAddressed reports whether the expression under c must stay addressable:
// it is assigned, incremented, has its address taken, or receives a pointer
// method call.
func (b *Bridger) isAddressed(c *astutil.Cursor, t types.Type) bool {
	switch p := c.Parent().(type) {
	case *ast.AssignStmt:
		return c.Name() == "Lhs"
	case *ast.IncDecStmt:
		return true
	case *ast.UnaryExpr:
		return p.Op == token.AND
	case *ast.RangeStmt:
		return p.Tok == token.ASSIGN && (c.Name() == "Key" || c.Name() == "Value")
	case *ast.SelectorExpr:
		if c.Name() != "X" {
			return false
		}
		sel, ok := b.info.Selections[p]
		if !ok || sel.Kind() != types.MethodVal {
			return false
		}
		if _, isPtr := types.Unalias(t).(*types.Pointer); isPtr {
			return false
		}
		recv := sel.Obj().(*types.Func).Type().(*types.Signature).Recv()
		_, ptrRecv := types.Unalias(recv.Type()).(*types.Pointer)
		return ptrRecv
	}
	return false
}

func isCallee(c *astutil.Cursor) bool {
	_, ok := c.Parent().(*ast.CallExpr)
	return ok && c.Name() == "Fun"
}

func isInstantiated(c *astutil.Cursor) bool {
	switch c.Parent().(type) {
	case *ast.IndexExpr, *ast.IndexListExpr:
		return c.Name() == "X"
	}
	return false
}

func isAddressOperand(c *astutil.Cursor) bool {
	u, ok := c.Parent().(*ast.UnaryExpr)
	return ok && u.Op == token.AND && c.Name() == "X"
}

func isPackageLevel(obj types.Object) bool {
	return obj.Pkg() != nil && obj.Parent() == obj.Pkg().Scope()
}
