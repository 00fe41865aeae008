package accessbridge

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"strconv"
	"strings"

	"golang.org/x/tools/go/ast/astutil"
)

// visibility says how a type can be written in the target package.
type visibility int

const (
	nameable visibility = iota
	// hidden types are declared at package level but cannot be spelled from
	// the target package; reflective bridges pass them as any.
	hidden
	// unnameable types are local to a function or are type parameters.
	unnameable
)

func (b *Bridger) spelling(obj *types.TypeName, scope Scope) (*types.TypeName, visibility) {
	if obj.Pkg() == nil {
		return obj, nameable
	}
	if obj.Parent() != obj.Pkg().Scope() {
		return nil, unnameable
	}
	if obj.Pkg().Path() == scope.Path || b.accessible(obj, scope) {
		return obj, nameable
	}
	if alias := b.exportedAlias(obj, scope); alias != nil {
		return alias, nameable
	}
	return nil, hidden
}

// exportedAlias finds an exported alias declared next to an unexported type.
func (b *Bridger) exportedAlias(obj *types.TypeName, scope Scope) *types.TypeName {
	if named, ok := obj.Type().(*types.Named); ok && named.TypeParams().Len() > 0 {
		return nil
	}
	pkgScope := obj.Pkg().Scope()
	for _, name := range pkgScope.Names() {
		alias, ok := pkgScope.Lookup(name).(*types.TypeName)
		if !ok || !alias.IsAlias() || !alias.Exported() {
			continue
		}
		if types.Identical(alias.Type(), obj.Type()) && b.accessible(alias, scope) {
			return alias
		}
	}
	return nil
}

// visibility classifies how t can be written from scope.
func (b *Bridger) visibility(t types.Type, scope Scope) visibility {
	switch t := t.(type) {
	case *types.Basic:
		return nameable
	case *types.Alias:
		if _, v := b.spelling(t.Obj(), scope); v == nameable {
			return b.typeArgs(t.TypeArgs(), scope)
		}
		return b.visibility(types.Unalias(t), scope)
	case *types.Named:
		_, v := b.spelling(t.Obj(), scope)
		return max(v, b.typeArgs(t.TypeArgs(), scope))
	case *types.Pointer:
		return b.visibility(t.Elem(), scope)
	case *types.Slice:
		return b.visibility(t.Elem(), scope)
	case *types.Array:
		return b.visibility(t.Elem(), scope)
	case *types.Map:
		return max(b.visibility(t.Key(), scope), b.visibility(t.Elem(), scope))
	case *types.Chan:
		return b.visibility(t.Elem(), scope)
	case *types.Signature:
		return max(b.tuple(t.Params(), scope), b.tuple(t.Results(), scope))
	case *types.Struct:
		v := nameable
		for i := range t.NumFields() {
			f := t.Field(i)
			if !f.Exported() && f.Pkg() != nil && f.Pkg().Path() != scope.Path {
				v = max(v, hidden)
			}
			v = max(v, b.visibility(f.Type(), scope))
		}
		return v
	case *types.Interface:
		v := nameable
		for i := range t.NumExplicitMethods() {
			m := t.ExplicitMethod(i)
			if !m.Exported() && m.Pkg() != nil && m.Pkg().Path() != scope.Path {
				v = max(v, hidden)
			}
			v = max(v, b.visibility(m.Type(), scope))
		}
		for i := range t.NumEmbeddeds() {
			v = max(v, b.visibility(t.EmbeddedType(i), scope))
		}
		return v
	}
	// type parameters, unions, tuples
	return unnameable
}

func (b *Bridger) tuple(tup *types.Tuple, scope Scope) visibility {
	v := nameable
	for i := range tup.Len() {
		v = max(v, b.visibility(tup.At(i).Type(), scope))
	}
	return v
}

func (b *Bridger) typeArgs(args *types.TypeList, scope Scope) visibility {
	v := nameable
	for i := range args.Len() {
		v = max(v, b.visibility(args.At(i), scope))
	}
	return v
}

// namer spells types in the container file and adds the imports the
// spelling needs. Every identifier it emits is recorded so that generated
// parameter names can avoid shadowing them.
type namer struct {
	b     *Bridger
	c     *Container
	scope Scope
	local map[string]string // import path -> name in the container file
	words map[string]bool
}

func (b *Bridger) newNamer(c *Container) *namer {
	n := &namer{
		b:     b,
		c:     c,
		scope: c.Scope(),
		local: make(map[string]string),
		words: make(map[string]bool),
	}
	for _, spec := range c.File.Imports {
		path, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			continue
		}
		if spec.Name != nil {
			if spec.Name.Name != "_" && spec.Name.Name != "." {
				n.local[path] = spec.Name.Name
			}
			continue
		}
		n.local[path] = defaultName(path)
	}
	return n
}

// pkg returns the name under which path is referenced, importing it when
// needed. name is the package's declared name.
func (n *namer) pkg(path, name string) string {
	if local, ok := n.local[path]; ok {
		n.words[local] = true
		return local
	}
	local := name
	for i := 2; n.taken(local); i++ {
		local = fmt.Sprintf("%s%d", name, i)
	}
	alias := ""
	if local != defaultName(path) {
		alias = local
	}
	n.unblank(path)
	astutil.AddNamedImport(n.c.Fset, n.c.File, alias, path)
	n.local[path] = local
	n.words[local] = true
	return local
}

func (n *namer) taken(name string) bool {
	for _, local := range n.local {
		if local == name {
			return true
		}
	}
	return false
}

// unblank drops a blank import of path so that a named import can replace it.
func (n *namer) unblank(path string) {
	for _, spec := range n.c.File.Imports {
		if spec.Name != nil && spec.Name.Name == "_" && importPath(spec) == path {
			astutil.DeleteNamedImport(n.c.Fset, n.c.File, "_", path)
			return
		}
	}
}

// link makes sure path is part of the program even when nothing in the file
// refers to it by name.
func (n *namer) link(path string) {
	if path == n.scope.Path || !CanImport(n.scope.Path, path) {
		return
	}
	for _, spec := range n.c.File.Imports {
		if importPath(spec) == path {
			return
		}
	}
	astutil.AddNamedImport(n.c.Fset, n.c.File, "_", path)
}

func (n *namer) ident(name string) *ast.Ident {
	n.words[name] = true
	return ast.NewIdent(name)
}

func (n *namer) qualified(obj *types.TypeName) ast.Expr {
	if obj.Pkg() == nil || obj.Pkg().Path() == n.scope.Path {
		return n.ident(obj.Name())
	}
	return &ast.SelectorExpr{
		X:   ast.NewIdent(n.pkg(obj.Pkg().Path(), obj.Pkg().Name())),
		Sel: ast.NewIdent(obj.Name()),
	}
}

// TypeExpr spells t the way it has to be written in the container's
// package, importing what the spelling refers to.
func (b *Bridger) TypeExpr(t types.Type, c *Container) (ast.Expr, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	return b.newNamer(c).expr(t, false)
}

// Import returns the name the container file uses for path, adding an
// import named after name when the file has none.
func (b *Bridger) Import(c *Container, path, name string) string {
	return b.newNamer(c).pkg(path, name)
}

// expr spells t as an expression. Hidden types become any when allowAny is
// set and are an error otherwise.
func (n *namer) expr(t types.Type, allowAny bool) (ast.Expr, error) {
	switch n.b.visibility(t, n.scope) {
	case unnameable:
		return nil, fmt.Errorf("%w: type %s is not visible outside its function", ErrUnresolvable, types.TypeString(t, byName))
	case hidden:
		if !allowAny {
			return nil, fmt.Errorf("%w: type %s cannot be written in package %s", ErrUnresolvable, types.TypeString(t, byName), n.scope.Name)
		}
		return n.ident("any"), nil
	}
	return n.spell(t), nil
}

// spell writes a type already known to be nameable.
func (n *namer) spell(t types.Type) ast.Expr {
	switch t := t.(type) {
	case *types.Basic:
		if t.Kind() == types.UnsafePointer {
			return &ast.SelectorExpr{X: ast.NewIdent(n.pkg("unsafe", "unsafe")), Sel: ast.NewIdent("Pointer")}
		}
		if t.Info()&types.IsUntyped != 0 {
			return n.spell(types.Default(t))
		}
		return n.ident(t.Name())
	case *types.Alias:
		if obj, v := n.b.spelling(t.Obj(), n.scope); v == nameable {
			return n.instantiate(n.qualified(obj), t.TypeArgs())
		}
		return n.spell(types.Unalias(t))
	case *types.Named:
		obj, _ := n.b.spelling(t.Obj(), n.scope)
		return n.instantiate(n.qualified(obj), t.TypeArgs())
	case *types.Pointer:
		return &ast.StarExpr{X: n.spell(t.Elem())}
	case *types.Slice:
		return &ast.ArrayType{Elt: n.spell(t.Elem())}
	case *types.Array:
		return &ast.ArrayType{
			Len: &ast.BasicLit{Kind: token.INT, Value: strconv.FormatInt(t.Len(), 10)},
			Elt: n.spell(t.Elem()),
		}
	case *types.Map:
		return &ast.MapType{Key: n.spell(t.Key()), Value: n.spell(t.Elem())}
	case *types.Chan:
		dir := ast.SEND | ast.RECV
		switch t.Dir() {
		case types.SendOnly:
			dir = ast.SEND
		case types.RecvOnly:
			dir = ast.RECV
		}
		return &ast.ChanType{Dir: dir, Value: n.spell(t.Elem())}
	case *types.Signature:
		return n.funcType(t)
	case *types.Struct:
		fields := &ast.FieldList{}
		for i := range t.NumFields() {
			f := t.Field(i)
			field := &ast.Field{Type: n.spell(f.Type())}
			if !f.Embedded() {
				field.Names = []*ast.Ident{ast.NewIdent(f.Name())}
			}
			if tag := t.Tag(i); tag != "" {
				field.Tag = &ast.BasicLit{Kind: token.STRING, Value: strconv.Quote(tag)}
			}
			fields.List = append(fields.List, field)
		}
		return &ast.StructType{Fields: fields}
	case *types.Interface:
		methods := &ast.FieldList{}
		for i := range t.NumEmbeddeds() {
			methods.List = append(methods.List, &ast.Field{Type: n.spell(t.EmbeddedType(i))})
		}
		for i := range t.NumExplicitMethods() {
			m := t.ExplicitMethod(i)
			methods.List = append(methods.List, &ast.Field{
				Names: []*ast.Ident{ast.NewIdent(m.Name())},
				Type:  n.funcType(m.Type().(*types.Signature)),
			})
		}
		return &ast.InterfaceType{Methods: methods}
	}
	return n.ident("any")
}

func (n *namer) instantiate(base ast.Expr, args *types.TypeList) ast.Expr {
	switch args.Len() {
	case 0:
		return base
	case 1:
		return &ast.IndexExpr{X: base, Index: n.spell(args.At(0))}
	}
	indices := make([]ast.Expr, args.Len())
	for i := range args.Len() {
		indices[i] = n.spell(args.At(i))
	}
	return &ast.IndexListExpr{X: base, Indices: indices}
}

func (n *namer) funcType(sig *types.Signature) *ast.FuncType {
	ft := &ast.FuncType{Params: &ast.FieldList{}}
	params := sig.Params()
	for i := range params.Len() {
		var typ ast.Expr
		if sig.Variadic() && i == params.Len()-1 {
			typ = &ast.Ellipsis{Elt: n.spell(params.At(i).Type().(*types.Slice).Elem())}
		} else {
			typ = n.spell(params.At(i).Type())
		}
		ft.Params.List = append(ft.Params.List, &ast.Field{Type: typ})
	}
	if results := sig.Results(); results.Len() > 0 {
		ft.Results = &ast.FieldList{}
		for i := range results.Len() {
			ft.Results.List = append(ft.Results.List, &ast.Field{Type: n.spell(results.At(i).Type())})
		}
	}
	return ft
}

func importPath(spec *ast.ImportSpec) string {
	path, _ := strconv.Unquote(spec.Path.Value)
	return path
}

// defaultName guesses the name a package is imported under from its path,
// the way goimports does.
func defaultName(path string) string {
	name := path
	if i := strings.LastIndex(path, "/"); i >= 0 {
		name = path[i+1:]
	}
	if len(name) > 1 && name[0] == 'v' && isDigits(name[1:]) && name != path {
		// major version suffix: example.com/mod/v2
		return defaultName(path[:len(path)-len(name)-1])
	}
	name = strings.TrimPrefix(name, "go-")
	if i := strings.IndexAny(name, ".-"); i > 0 {
		name = name[:i]
	}
	return name
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
