package accessbridge_test

import (
	"errors"
	"go/ast"
	"go/token"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamaar/methodobject/pkg/accessbridge"
)

func TestRun_PositionalConstruction(t *testing.T) {
	fx := load(t, "\tv := Inner{1, 2}\n\t_ = v", staticContainer, true)
	lit := stmt[*ast.AssignStmt](t, fx.body, 0).Rhs[0].(*ast.CompositeLit)

	summary := fx.run(t)

	require.Len(t, summary.Bridged, 1)
	assert.Equal(t, "reflectionConstructorAccess0", summary.Bridged[0].Name)
	assert.Equal(t, accessbridge.Construction, summary.Bridged[0].Kind)
	assert.Equal(t, "p.Inner", summary.Bridged[0].Member)
	assert.Empty(t, summary.Skipped)
	assert.Empty(t, summary.Manual)
	assert.Equal(t, "1 reference bridged", summary.Message())

	call, ok := stmt[*ast.AssignStmt](t, fx.body, 0).Rhs[0].(*ast.CallExpr)
	require.True(t, ok)
	assert.Equal(t, "reflectionConstructorAccess0", call.Fun.(*ast.Ident).Name)
	require.Len(t, call.Args, 2)
	assert.Same(t, lit.Elts[0], call.Args[0])
	assert.Same(t, lit.Elts[1], call.Args[1])

	out := fx.generated(t)
	assert.Contains(t, out, "func reflectionConstructorAccess0(a int, b int) p.Inner {")
	assert.Contains(t, out, "rv := reflect.New(reflect.TypeFor[p.Inner]()).Elem()")
	assert.Contains(t, out, `fv = rv.FieldByName("b")`)
	assert.Contains(t, out, "reflect.NewAt(fv.Type(), unsafe.Pointer(fv.UnsafeAddr())).Elem().Set(reflect.ValueOf(&a).Elem())")
	assert.Contains(t, out, "return rv.Interface().(p.Inner)")

	imports := fx.imports()
	assert.Contains(t, imports, "reflect")
	assert.Contains(t, imports, "unsafe")
	assert.Contains(t, imports, "example.com/p")
}

func TestRun_KeyedConstructionKeepsLiteralOrder(t *testing.T) {
	fx := load(t, "\tv := Inner{b: 2, a: 1}\n\t_ = v", staticContainer, true)
	lit := stmt[*ast.AssignStmt](t, fx.body, 0).Rhs[0].(*ast.CompositeLit)

	fx.run(t)

	call := stmt[*ast.AssignStmt](t, fx.body, 0).Rhs[0].(*ast.CallExpr)
	require.Len(t, call.Args, 2)
	assert.Same(t, lit.Elts[0].(*ast.KeyValueExpr).Value, call.Args[0])
	assert.Same(t, lit.Elts[1].(*ast.KeyValueExpr).Value, call.Args[1])
	assert.Contains(t, fx.generated(t), "func reflectionConstructorAccess0(b int, a int) p.Inner {")
}

func TestRun_ZeroValueConstructionThroughAlias(t *testing.T) {
	fx := load(t, "\tv := &inner{}\n\t_ = v", staticContainer, true)

	summary := fx.run(t)

	require.Len(t, summary.Bridged, 1)
	call := stmt[*ast.AssignStmt](t, fx.body, 0).Rhs[0].(*ast.CallExpr)
	assert.Empty(t, call.Args)

	out := fx.generated(t)
	assert.Contains(t, out, "func reflectionConstructorAccess0() *p.Public {")
	assert.Contains(t, out, "return reflect.New(reflect.TypeFor[p.Public]()).Interface().(*p.Public)")
	assert.NotContains(t, out, "FieldByName")
}

func TestRun_NothingToBridge(t *testing.T) {
	fx := load(t, "\tv := struct{ a int }{1}\n\t_ = v\n\t_ = Inner{}\n\tvar x T\n\tx.Name = \"n\"\n\t_ = x", staticContainer, true)
	before := render(t, fx.fset, fx.body)

	summary := fx.run(t)

	assert.Empty(t, summary.Bridged)
	assert.Empty(t, summary.Skipped)
	assert.Empty(t, summary.Manual)
	assert.Equal(t, "0 references bridged", summary.Message())
	assert.Equal(t, before, render(t, fx.fset, fx.body))
	assert.Len(t, fx.container.File.Decls, fx.decls)
	assert.Empty(t, fx.container.File.Imports)
}

func TestRun_IndexSharedAcrossKinds(t *testing.T) {
	fx := load(t, "\tvar t T\n\tf := t.bump\n\tt.count = f(1)", staticContainer, true)
	recv := stmt[*ast.AssignStmt](t, fx.body, 1).Rhs[0].(*ast.SelectorExpr).X
	fieldRecv := stmt[*ast.AssignStmt](t, fx.body, 2).Lhs[0].(*ast.SelectorExpr).X

	summary := fx.run(t)

	require.Len(t, summary.Bridged, 2)
	assert.Equal(t, "reflectionMethodAccess0", summary.Bridged[0].Name)
	assert.Equal(t, accessbridge.MethodValue, summary.Bridged[0].Kind)
	assert.Equal(t, "reflectionFieldAccess1", summary.Bridged[1].Name)
	assert.Equal(t, accessbridge.FieldAccess, summary.Bridged[1].Kind)

	// the receiver is captured once by an immediately invoked literal
	iife := stmt[*ast.AssignStmt](t, fx.body, 1).Rhs[0].(*ast.CallExpr)
	_, ok := iife.Fun.(*ast.FuncLit)
	require.True(t, ok)
	addr := iife.Args[0].(*ast.UnaryExpr)
	assert.Equal(t, token.AND, addr.Op)
	assert.Same(t, recv, addr.X)

	star := stmt[*ast.AssignStmt](t, fx.body, 2).Lhs[0].(*ast.StarExpr)
	call := star.X.(*ast.CallExpr)
	assert.Equal(t, "reflectionFieldAccess1", call.Fun.(*ast.Ident).Name)
	assert.Same(t, fieldRecv, call.Args[0].(*ast.UnaryExpr).X)

	out := fx.generated(t)
	assert.Contains(t, out, "//go:linkname reflectionMethodAccess0Target example.com/p.(*T).bump")
	assert.Contains(t, out, "func reflectionMethodAccess0Target(recv *p.T, n int) int")
	assert.Contains(t, out, "return reflectionMethodAccess0Target(recv, n)")
	assert.Contains(t, out, "func reflectionFieldAccess1(recv *p.T) *int {")
	assert.Contains(t, out, "rv := reflect.ValueOf(recv).Elem()")
	assert.Contains(t, out, "return (*int)(unsafe.Pointer(fv.UnsafeAddr()))")
}

func TestRun_MethodExpression(t *testing.T) {
	fx := load(t, "\tg := (*T).bump\n\t_ = g", staticContainer, true)

	summary := fx.run(t)

	require.Len(t, summary.Bridged, 1)
	lit, ok := stmt[*ast.AssignStmt](t, fx.body, 0).Rhs[0].(*ast.FuncLit)
	require.True(t, ok)
	params := lit.Type.Params.List
	require.Len(t, params, 2)
	assert.Equal(t, "*p.T", render(t, fx.fset, params[0].Type))
	assert.Equal(t, "int", render(t, fx.fset, params[1].Type))
}

func TestRun_Deterministic(t *testing.T) {
	body := "\tvar t T\n\tf := t.bump\n\tt.count = f(1)\n\tv := Inner{b: 2}\n\t_ = v\n\thidden++"
	var outputs []string
	for range 2 {
		fx := load(t, body, staticContainer, true)
		fx.run(t)
		outputs = append(outputs, render(t, fx.fset, fx.body)+fx.generated(t))
	}
	assert.Equal(t, outputs[0], outputs[1])
}

func TestRun_SkipsUnresolvable(t *testing.T) {
	fx := load(t, "\ts := secret{y: 1}\n\t_ = s\n\t_ = ident(1)", staticContainer, true)
	before := render(t, fx.fset, fx.body)

	summary := fx.run(t)

	assert.Empty(t, summary.Bridged)
	require.Len(t, summary.Skipped, 2)
	assert.Equal(t, accessbridge.Construction, summary.Skipped[0].Kind)
	assert.Equal(t, accessbridge.DirectCall, summary.Skipped[1].Kind)
	for _, s := range summary.Skipped {
		assert.True(t, errors.Is(s.Err, accessbridge.ErrUnresolvable), s.Reason)
		assert.NotEmpty(t, s.Reason)
	}
	assert.Empty(t, summary.Manual)
	assert.Equal(t, "0 references bridged, 2 references require manual access adjustment", summary.Message())
	assert.Equal(t, before, render(t, fx.fset, fx.body))
	assert.Len(t, fx.container.File.Decls, fx.decls)
}

func TestRun_PackageVariableAndManualConstant(t *testing.T) {
	fx := load(t, "\thidden++\n\t_ = limit", staticContainer, true)

	summary := fx.run(t)

	require.Len(t, summary.Bridged, 1)
	require.Len(t, summary.Manual, 1)
	assert.Equal(t, "p.limit", summary.Manual[0].Name)
	assert.Equal(t, "1 reference bridged, 1 reference requires manual access adjustment", summary.Message())

	star := stmt[*ast.IncDecStmt](t, fx.body, 0).X.(*ast.StarExpr)
	call := star.X.(*ast.CallExpr)
	assert.Equal(t, "reflectionFieldAccess0", call.Fun.(*ast.Ident).Name)
	assert.Empty(t, call.Args)

	out := fx.generated(t)
	assert.Contains(t, out, "//go:linkname reflectionFieldAccess0Target example.com/p.hidden")
	assert.Contains(t, out, "var reflectionFieldAccess0Target int")
	assert.Contains(t, out, "func reflectionFieldAccess0() *int {")

	imports := fx.imports()
	assert.Equal(t, "_", imports["unsafe"])
	assert.Equal(t, "_", imports["example.com/p"])
}

func TestRun_InstanceContainer(t *testing.T) {
	fx := load(t, "\t_ = helper(1, 2)", staticContainer, false)
	orig := stmt[*ast.AssignStmt](t, fx.body, 0).Rhs[0].(*ast.CallExpr)

	fx.run(t)

	call := stmt[*ast.AssignStmt](t, fx.body, 0).Rhs[0].(*ast.CallExpr)
	sel, ok := call.Fun.(*ast.SelectorExpr)
	require.True(t, ok)
	assert.Equal(t, "o", sel.X.(*ast.Ident).Name)
	assert.Equal(t, "reflectionMethodAccess0", sel.Sel.Name)
	assert.Equal(t, orig.Args, call.Args)

	out := fx.generated(t)
	assert.Contains(t, out, "func reflectionMethodAccess0Target(xs ...int) int")
	assert.Contains(t, out, "func (o *Obj) reflectionMethodAccess0(xs ...int) int {")
	assert.Contains(t, out, "return reflectionMethodAccess0Target(xs...)")
}

func TestRun_CustomNaming(t *testing.T) {
	fx := load(t, "\t_ = helper()", staticContainer, true)
	b := fx.bridger(accessbridge.WithNaming(accessbridge.Naming{Method: "callHidden"}))

	summary, err := b.Run(fx.body, fx.container)
	require.NoError(t, err)
	require.Len(t, summary.Bridged, 1)
	assert.Equal(t, "callHidden0", summary.Bridged[0].Name)
}

func TestRun_NameConflictAborts(t *testing.T) {
	container := staticContainer + "\nfunc reflectionMethodAccess0() {}\n"
	fx := load(t, "\t_ = helper(1)", container, true)
	b := fx.bridger()

	_, err := b.Run(fx.body, fx.container)

	var mutation *accessbridge.MutationError
	require.True(t, errors.As(err, &mutation))
	assert.Equal(t, "insert", mutation.Op)
	assert.Equal(t, accessbridge.Done, b.Phase())
}

func TestRun_SamePackageBridgesNothing(t *testing.T) {
	fx := load(t, "\tv := Inner{1, 2}\n\t_ = v\n\thidden++", staticContainer, true)
	fx.container.Path = "example.com/p"

	summary := fx.run(t)

	assert.Empty(t, summary.Bridged)
	assert.Empty(t, summary.Manual)
}

func TestRun_InvalidContainer(t *testing.T) {
	fx := load(t, "", staticContainer, false)
	fx.container.Receiver = ""

	_, err := fx.bridger().Run(fx.body, fx.container)
	assert.Error(t, err)
}

func TestPlan(t *testing.T) {
	fx := load(t, "\tv := Inner{1, 2}\n\t_ = v\n\ts := secret{}\n\t_ = s", staticContainer, true)
	b := fx.bridger()

	planned, err := b.Plan(fx.body, fx.container)
	require.NoError(t, err)
	require.Len(t, planned, 2)
	assert.Equal(t, "reflectionConstructorAccess0", planned[0].Name)
	assert.NoError(t, planned[0].Err)
	assert.Empty(t, planned[1].Name)
	assert.ErrorIs(t, planned[1].Err, accessbridge.ErrUnresolvable)

	assert.Len(t, fx.container.File.Decls, fx.decls)
	assert.Equal(t, accessbridge.Idle, b.Phase())
}

func TestRun_ConstructionWithHiddenFieldType(t *testing.T) {
	fx := load(t, "\tb := Box{c: 1}\n\t_ = b", staticContainer, true)

	summary := fx.run(t)

	require.Len(t, summary.Bridged, 1)
	assert.Equal(t, "p.Box", summary.Bridged[0].Member)
	assert.Empty(t, summary.Skipped)

	out := fx.generated(t)
	assert.Contains(t, out, "func reflectionConstructorAccess0(c any) p.Box {")
	assert.Contains(t, out, "pv := reflect.ValueOf(c)")
	// 1 reaches the bridge as an int and is converted to p.counter
	assert.Contains(t, out, "if !pv.Type().AssignableTo(fv.Type()) {")
	assert.Contains(t, out, "pv = pv.Convert(fv.Type())")
	assert.Contains(t, out, "Elem().Set(pv)")
}

func TestRun_NestedReferencesBridgedIndependently(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		bridges []string
		stmt    int
		want    string
	}{
		{
			name:    "field read inside call",
			body:    "\tvar x T\n\t_ = helper(x.count)",
			bridges: []string{"reflectionMethodAccess0", "reflectionFieldAccess1"},
			stmt:    1,
			want:    "_ = reflectionMethodAccess0(*reflectionFieldAccess1(&x))",
		},
		{
			name:    "call inside construction",
			body:    "\tv := &Inner{a: helper(1)}\n\t_ = v",
			bridges: []string{"reflectionConstructorAccess0", "reflectionMethodAccess1"},
			want:    "v := reflectionConstructorAccess0(reflectionMethodAccess1(1))",
		},
		{
			name:    "elided pointer element",
			body:    "\tv := []*Inner{{1, 2}}\n\t_ = v",
			bridges: []string{"reflectionConstructorAccess0"},
			want:    "v := []*Inner{reflectionConstructorAccess0(1, 2)}",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := load(t, tt.body, staticContainer, true)

			summary := fx.run(t)

			var names []string
			for _, b := range summary.Bridged {
				names = append(names, b.Name)
			}
			assert.Equal(t, tt.bridges, names)
			assert.Empty(t, summary.Skipped)
			assert.Equal(t, tt.want, render(t, fx.fset, fx.body.List[tt.stmt]))
		})
	}
}
