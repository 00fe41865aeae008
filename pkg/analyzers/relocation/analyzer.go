// Package relocation reports the references in a package's function bodies
// that would stop compiling if those bodies moved to another package.
package relocation

import (
	"errors"
	"fmt"
	"go/ast"
	"path"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"

	"github.com/mamaar/methodobject/pkg/accessbridge"
	wsanalysis "github.com/mamaar/methodobject/pkg/analysis"
	"github.com/mamaar/methodobject/pkg/analyzers/filedata"
)

// Result is one reference that needs a bridge.
type Result struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
	Function string `json:"function"`
	Kind     string `json:"kind"`
	Member   string `json:"member"`
	Text     string `json:"text"`
}

var Analyzer = &analysis.Analyzer{
	Name:     "relocation",
	Doc:      "lists references that need an accessibility bridge when function bodies move to the -target package",
	Run:      run,
	Requires: []*analysis.Analyzer{inspect.Analyzer, filedata.Analyzer},
}

var target string

func init() {
	Analyzer.Flags.StringVar(&target, "target", "", "import path of the package the function bodies move to")
}

func run(pass *analysis.Pass) (any, error) {
	if target == "" {
		return nil, errors.New("relocation: -target is required")
	}
	if target == pass.Pkg.Path() {
		return []*Result{}, nil
	}
	insp := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)
	fd := pass.ResultOf[filedata.Analyzer].(*filedata.Data)

	b := accessbridge.New(pass.Fset, pass.TypesInfo, wsanalysis.Visibility{}, nil)
	scope := accessbridge.Scope{Path: target, Name: path.Base(target)}

	results := []*Result{}
	insp.Preorder([]ast.Node{(*ast.FuncDecl)(nil)}, func(n ast.Node) {
		fn := n.(*ast.FuncDecl)
		if fn.Body == nil {
			return
		}
		for _, d := range b.Collect(fn.Body, scope) {
			origin := d.Origin()
			pass.Report(analysis.Diagnostic{
				Pos:      origin.Pos(),
				End:      origin.End(),
				Category: d.Kind().String(),
				Message:  fmt.Sprintf("%s of %s is not accessible from %s", d.Kind(), d.Member(), target),
			})
			pos := pass.Fset.Position(origin.Pos())
			results = append(results, &Result{
				File:     pos.Filename,
				Line:     pos.Line,
				Column:   pos.Column,
				Function: fn.Name.Name,
				Kind:     d.Kind().String(),
				Member:   d.Member(),
				Text:     fd.Text(pass.Fset, origin.Pos(), origin.End()),
			})
		}
	})
	return results, nil
}
