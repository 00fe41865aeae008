package accessbridge

import (
	"errors"
	"fmt"
	"go/ast"
	"go/token"
	"go/types"

	"golang.org/x/tools/go/ast/astutil"
)

// Rewrite replaces the origin of d in root with a call of the bridge in unit.
// Operand subexpressions of the origin are moved into the call unchanged, so
// descriptors nested inside them still find their origins. The returned node
// is the new root; it differs from root only when root itself was replaced.
func (b *Bridger) Rewrite(root ast.Node, d Descriptor, unit *BridgeUnit, sig *Signature, c *Container) (result ast.Node, err error) {
	origin := d.Origin()
	pos := b.position(origin.Pos())
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &MutationError{Op: "replace", Pos: pos, Err: fmt.Errorf("%v", r)}
		}
	}()

	n := b.newNamer(c)
	repl, err := b.replacement(n, d, unit, sig, c)
	if err != nil {
		return nil, &MutationError{Op: "replace", Pos: pos, Err: err}
	}
	stamp(repl, origin.Pos())

	replaced := false
	result = astutil.Apply(root, func(cur *astutil.Cursor) bool {
		if replaced {
			return false
		}
		if cur.Node() != ast.Node(origin) {
			return true
		}
		cur.Replace(operand(cur, repl))
		replaced = true
		return false
	}, nil)
	if !replaced {
		return nil, &MutationError{Op: "replace", Pos: pos, Err: errors.New("reference is no longer part of the fragment")}
	}
	return result, nil
}

func (b *Bridger) replacement(n *namer, d Descriptor, unit *BridgeUnit, sig *Signature, c *Container) (ast.Expr, error) {
	switch d := d.(type) {
	case *ConstructionDescriptor:
		args := make([]ast.Expr, 0, len(d.Lit.Elts))
		for _, elt := range d.Lit.Elts {
			if kv, ok := elt.(*ast.KeyValueExpr); ok {
				elt = kv.Value
			}
			args = append(args, elt)
		}
		return &ast.CallExpr{Fun: bridgeRef(unit, c), Args: args}, nil

	case *DirectCallDescriptor:
		var args []ast.Expr
		if sig.Receiver {
			args = append(args, receiverArg(d.Recv, sig))
		}
		args = append(args, d.Call.Args...)
		return &ast.CallExpr{Fun: bridgeRef(unit, c), Args: args, Ellipsis: d.Call.Ellipsis}, nil

	case *MethodValueDescriptor:
		switch {
		case !sig.Receiver:
			return bridgeRef(unit, c), nil
		case d.Recv != nil:
			return b.boundMethod(n, d, unit, sig, c)
		default:
			return b.methodExpr(n, unit, sig, c)
		}

	case *FieldAccessDescriptor:
		if sig.Linked {
			return &ast.StarExpr{X: &ast.CallExpr{Fun: bridgeRef(unit, c)}}, nil
		}
		recv := d.Recv
		if sig.Mode == ByAddress {
			recv = &ast.UnaryExpr{Op: token.AND, X: recv}
		}
		call := &ast.CallExpr{Fun: bridgeRef(unit, c), Args: []ast.Expr{recv}}
		if sig.Opaque {
			return call, nil
		}
		return &ast.StarExpr{X: call}, nil
	}
	return nil, fmt.Errorf("unknown descriptor %T", d)
}

// boundMethod evaluates the receiver once, where the method value stood, and
// returns a closure over it:
//
//	func(recv *T) func(n int) string {
//		return func(n int) string { return bridge(recv, n) }
//	}(&x)
func (b *Bridger) boundMethod(n *namer, d *MethodValueDescriptor, unit *BridgeUnit, sig *Signature, c *Container) (ast.Expr, error) {
	recv := sig.Params[0]
	recvType, err := n.expr(recv.Type, false)
	if err != nil {
		return nil, err
	}
	inner, err := closure(n, sig.Params[1:], sig.Results, unit, c, ast.NewIdent(recv.Name))
	if err != nil {
		return nil, err
	}
	innerType, err := funcType(n, sig.Params[1:], sig.Results)
	if err != nil {
		return nil, err
	}
	outer := &ast.FuncLit{
		Type: &ast.FuncType{
			Params:  &ast.FieldList{List: []*ast.Field{{Names: []*ast.Ident{ast.NewIdent(recv.Name)}, Type: recvType}}},
			Results: &ast.FieldList{List: []*ast.Field{{Type: innerType}}},
		},
		Body: &ast.BlockStmt{List: []ast.Stmt{&ast.ReturnStmt{Results: []ast.Expr{inner}}}},
	}
	return &ast.CallExpr{Fun: outer, Args: []ast.Expr{receiverArg(d.Recv, sig)}}, nil
}

// methodExpr turns T.m into a function taking the receiver first.
func (b *Bridger) methodExpr(n *namer, unit *BridgeUnit, sig *Signature, c *Container) (ast.Expr, error) {
	recv := sig.Params[0]
	recvType, err := n.expr(sig.ClosureRecv, false)
	if err != nil {
		return nil, err
	}
	lit, err := closure(n, sig.Params[1:], sig.Results, unit, c, receiverArg(ast.NewIdent(recv.Name), sig))
	if err != nil {
		return nil, err
	}
	lit.Type.Params.List = append([]*ast.Field{{Names: []*ast.Ident{ast.NewIdent(recv.Name)}, Type: recvType}}, lit.Type.Params.List...)
	return lit, nil
}

// closure builds a function literal with the given parameters that forwards
// to the bridge, passing recv first.
func closure(n *namer, params []Param, results []types.Type, unit *BridgeUnit, c *Container, recv ast.Expr) (*ast.FuncLit, error) {
	ft, err := funcType(n, params, results)
	if err != nil {
		return nil, err
	}
	call := &ast.CallExpr{Fun: bridgeRef(unit, c), Args: []ast.Expr{recv}}
	for _, p := range params {
		call.Args = append(call.Args, ast.NewIdent(p.Name))
		if p.Variadic {
			call.Ellipsis = 1
		}
	}
	var stmt ast.Stmt = &ast.ExprStmt{X: call}
	if len(results) > 0 {
		stmt = &ast.ReturnStmt{Results: []ast.Expr{call}}
	}
	return &ast.FuncLit{Type: ft, Body: &ast.BlockStmt{List: []ast.Stmt{stmt}}}, nil
}

func funcType(n *namer, params []Param, results []types.Type) (*ast.FuncType, error) {
	ft := &ast.FuncType{Params: &ast.FieldList{}}
	for _, p := range params {
		t := p.Type
		if p.Variadic {
			t = t.(*types.Slice).Elem()
		}
		expr, err := n.expr(t, false)
		if err != nil {
			return nil, err
		}
		if p.Variadic {
			expr = &ast.Ellipsis{Elt: expr}
		}
		ft.Params.List = append(ft.Params.List, &ast.Field{Names: []*ast.Ident{ast.NewIdent(p.Name)}, Type: expr})
	}
	if len(results) > 0 {
		ft.Results = &ast.FieldList{}
		for _, t := range results {
			expr, err := n.expr(t, false)
			if err != nil {
				return nil, err
			}
			ft.Results.List = append(ft.Results.List, &ast.Field{Type: expr})
		}
	}
	return ft, nil
}

// stamp moves the identifiers of a replacement to the origin's position.
// Unpositioned names between positioned operands make the printer break
// lines where the source had none.
func stamp(e ast.Expr, pos token.Pos) {
	ast.Inspect(e, func(n ast.Node) bool {
		if id, ok := n.(*ast.Ident); ok && !id.NamePos.IsValid() {
			id.NamePos = pos
		}
		return true
	})
}

// bridgeRef is the expression naming the bridge at a call site.
func bridgeRef(unit *BridgeUnit, c *Container) ast.Expr {
	if c.Static {
		return ast.NewIdent(unit.Name)
	}
	return &ast.SelectorExpr{X: ast.NewIdent(c.Receiver), Sel: ast.NewIdent(unit.Name)}
}

// receiverArg walks the embedded fields to the method's receiver and applies
// the address or dereference the method's receiver type needs.
func receiverArg(x ast.Expr, sig *Signature) ast.Expr {
	for _, name := range sig.Path {
		x = &ast.SelectorExpr{X: x, Sel: ast.NewIdent(name)}
	}
	switch sig.Adjust {
	case AddressOf:
		x = &ast.UnaryExpr{Op: token.AND, X: x}
	case Dereference:
		x = &ast.StarExpr{X: x}
	}
	return x
}

// operand parenthesizes a dereference placed where a primary expression is
// expected.
func operand(cur *astutil.Cursor, e ast.Expr) ast.Expr {
	if _, ok := e.(*ast.StarExpr); !ok {
		return e
	}
	switch cur.Parent().(type) {
	case *ast.SelectorExpr, *ast.IndexExpr, *ast.IndexListExpr, *ast.SliceExpr, *ast.TypeAssertExpr:
		if cur.Name() == "X" {
			return &ast.ParenExpr{X: e}
		}
	case *ast.CallExpr:
		if cur.Name() == "Fun" {
			return &ast.ParenExpr{X: e}
		}
	}
	return e
}
