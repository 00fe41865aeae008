package analysis

import (
	"go/ast"
	"go/parser"
	"go/token"
	"testing"

	"github.com/mamaar/methodobject/pkg/types"
)

const fragmentSource = `package p

func f(xs []int) int {
	total := 0
	for _, x := range xs {
		if x < 0 {
			continue
		}
		total += x
	}
	switch total {
	case 0:
		total = 1
		total++
	}
	defer func() {}()
	return total
}

func g() {
outer:
	for i := 0; i < 3; i++ {
		for {
			break outer
		}
	}
}
`

func parseFragmentSource(t *testing.T) (*token.FileSet, *ast.File) {
	t.Helper()
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "p.go", fragmentSource, parser.ParseComments)
	if err != nil {
		t.Fatalf("Failed to parse source: %v", err)
	}
	return fset, file
}

func TestFindFragment(t *testing.T) {
	tests := []struct {
		name       string
		start, end int
		stmts      int
		startIndex int
		parent     string
	}{
		{"single statement", 4, 4, 1, 0, "block"},
		{"loop with inner continue", 4, 10, 2, 0, "block"},
		{"statement inside loop body", 9, 9, 1, 1, "block"},
		{"case clause body", 13, 14, 2, 0, "case"},
		{"labeled loop", 21, 26, 1, 0, "block"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fset, file := parseFragmentSource(t)
			frag, err := FindFragment(fset, file, tt.start, tt.end)
			if err != nil {
				t.Fatalf("FindFragment failed: %v", err)
			}
			if len(frag.Stmts) != tt.stmts {
				t.Errorf("Expected %d statements, got %d", tt.stmts, len(frag.Stmts))
			}
			if frag.Start != tt.startIndex || frag.End != tt.startIndex+tt.stmts {
				t.Errorf("Expected list[%d:%d], got list[%d:%d]", tt.startIndex, tt.startIndex+tt.stmts, frag.Start, frag.End)
			}
			switch tt.parent {
			case "block":
				if _, ok := frag.Parent.(*ast.BlockStmt); !ok {
					t.Errorf("Expected a block parent, got %T", frag.Parent)
				}
			case "case":
				if _, ok := frag.Parent.(*ast.CaseClause); !ok {
					t.Errorf("Expected a case clause parent, got %T", frag.Parent)
				}
			}
			if frag.Type == nil || frag.Func == nil {
				t.Error("Expected the enclosing function to be recorded")
			}
			if got := fset.Position(frag.Pos()).Line; got != tt.start {
				t.Errorf("Expected fragment to start at line %d, got %d", tt.start, got)
			}
		})
	}
}

func TestFindFragment_Rejected(t *testing.T) {
	tests := []struct {
		name       string
		start, end int
		line       int
	}{
		{"empty range", 1, 2, 1},
		{"reversed range", 9, 4, 9},
		{"split statement", 5, 6, 5},
		{"continue to outer loop", 6, 8, 7},
		{"defer", 16, 16, 16},
		{"return", 17, 17, 17},
		{"break to outer label", 23, 25, 24},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fset, file := parseFragmentSource(t)
			_, err := FindFragment(fset, file, tt.start, tt.end)
			refErr, ok := err.(*types.RefactorError)
			if !ok {
				t.Fatalf("Expected RefactorError, got %T (%v)", err, err)
			}
			if refErr.Type != types.InvalidOperation {
				t.Errorf("Expected InvalidOperation, got %v", refErr.Type)
			}
			if refErr.Line != tt.line {
				t.Errorf("Expected error at line %d, got %d", tt.line, refErr.Line)
			}
		})
	}
}

func TestFragment_Replace(t *testing.T) {
	fset, file := parseFragmentSource(t)
	frag, err := FindFragment(fset, file, 13, 14)
	if err != nil {
		t.Fatalf("FindFragment failed: %v", err)
	}

	block := frag.Block()
	if len(block.List) != 2 || block.Lbrace.IsValid() {
		t.Errorf("Expected a brace-less block of 2 statements, got %d", len(block.List))
	}

	call := &ast.ExprStmt{X: &ast.CallExpr{Fun: ast.NewIdent("h")}}
	frag.Replace([]ast.Stmt{call})
	clause := frag.Parent.(*ast.CaseClause)
	if len(clause.Body) != 1 || clause.Body[0] != call {
		t.Errorf("Expected the case body to hold only the replacement, got %d statements", len(clause.Body))
	}
	if len(block.List) != 2 {
		t.Error("Expected Block to be independent of the replaced list")
	}
}
