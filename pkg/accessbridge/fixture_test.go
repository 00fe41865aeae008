package accessbridge_test

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"go/types"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mamaar/methodobject/pkg/accessbridge"
)

const sourcePackage = `package p

type Inner struct {
	a, b int
}

type inner struct {
	x int
}

type Public = inner

type secret struct {
	y int
}

type T struct {
	count int
	Name  string
}

func (t *T) bump(n int) int {
	t.count += n
	return t.count
}

func helper(xs ...int) int { return len(xs) }

func ident[X any](x X) X { return x }

var hidden = 3

const limit = 10

func use() {
%s
}

type counter int

type Box struct {
	c counter
}
`

const staticContainer = `package q

type Obj struct{}
`

// exportedOnly is Go's visibility rule without the internal/ restriction.
var exportedOnly = accessbridge.AccessFunc(func(obj types.Object, from accessbridge.Scope) bool {
	return obj.Pkg().Path() == from.Path || obj.Exported()
})

type fixture struct {
	fset      *token.FileSet
	info      *types.Info
	body      *ast.BlockStmt
	container *accessbridge.Container
	decls     int // declarations of the container file before bridging
}

// load type-checks package p with body as the fragment inside use and
// parses container as a file of package q.
func load(t *testing.T, body, container string, static bool) *fixture {
	t.Helper()
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "p.go", fmt.Sprintf(sourcePackage, body), parser.ParseComments)
	require.NoError(t, err)

	info := &types.Info{
		Types:      make(map[ast.Expr]types.TypeAndValue),
		Defs:       make(map[*ast.Ident]types.Object),
		Uses:       make(map[*ast.Ident]types.Object),
		Selections: make(map[*ast.SelectorExpr]*types.Selection),
		Implicits:  make(map[ast.Node]types.Object),
		Scopes:     make(map[ast.Node]*types.Scope),
	}
	conf := types.Config{}
	_, err = conf.Check("example.com/p", fset, []*ast.File{f}, info)
	require.NoError(t, err)

	var fragment *ast.BlockStmt
	for _, decl := range f.Decls {
		if fn, ok := decl.(*ast.FuncDecl); ok && fn.Name.Name == "use" {
			fragment = fn.Body
		}
	}
	require.NotNil(t, fragment)

	cf, err := parser.ParseFile(fset, "q.go", container, parser.ParseComments)
	require.NoError(t, err)
	c := &accessbridge.Container{
		Fset:   fset,
		File:   cf,
		Name:   "Obj",
		Path:   "example.com/q",
		Static: static,
	}
	if !static {
		c.Receiver = "o"
	}
	return &fixture{fset: fset, info: info, body: fragment, container: c, decls: len(cf.Decls)}
}

func (fx *fixture) bridger(opts ...accessbridge.Option) *accessbridge.Bridger {
	return accessbridge.New(fx.fset, fx.info, exportedOnly, slog.New(slog.NewTextHandler(io.Discard, nil)), opts...)
}

func (fx *fixture) run(t *testing.T) *accessbridge.Summary {
	t.Helper()
	summary, err := fx.bridger().Run(fx.body, fx.container)
	require.NoError(t, err)
	return summary
}

// generated renders the declarations appended to the container file.
func (fx *fixture) generated(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	for _, decl := range fx.container.File.Decls[fx.decls:] {
		require.NoError(t, format.Node(&buf, fx.fset, decl))
		buf.WriteString("\n\n")
	}
	return buf.String()
}

func (fx *fixture) imports() map[string]string {
	imports := make(map[string]string)
	for _, spec := range fx.container.File.Imports {
		name := ""
		if spec.Name != nil {
			name = spec.Name.Name
		}
		imports[spec.Path.Value[1:len(spec.Path.Value)-1]] = name
	}
	return imports
}

func render(t *testing.T, fset *token.FileSet, node any) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, format.Node(&buf, fset, node))
	return buf.String()
}

func stmt[S ast.Stmt](t *testing.T, body *ast.BlockStmt, i int) S {
	t.Helper()
	require.Greater(t, len(body.List), i)
	s, ok := body.List[i].(S)
	require.Truef(t, ok, "statement %d is %T", i, body.List[i])
	return s
}
