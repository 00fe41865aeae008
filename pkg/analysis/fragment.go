package analysis

import (
	"fmt"
	"go/ast"
	"go/token"

	"github.com/mamaar/methodobject/pkg/types"
)

// Fragment is a run of whole statements taken from one statement list of a
// function body.
type Fragment struct {
	File   *ast.File
	Func   ast.Node // *ast.FuncDecl or *ast.FuncLit
	Type   *ast.FuncType
	Parent ast.Node // *ast.BlockStmt, *ast.CaseClause or *ast.CommClause
	Start  int      // selected statements are list[Start:End]
	End    int
	Stmts  []ast.Stmt
}

func (f *Fragment) Pos() token.Pos { return f.Stmts[0].Pos() }

func (f *Fragment) EndPos() token.Pos { return f.Stmts[len(f.Stmts)-1].End() }

// Block wraps the statements in a new block without braces of its own.
func (f *Fragment) Block() *ast.BlockStmt {
	return &ast.BlockStmt{List: append([]ast.Stmt(nil), f.Stmts...)}
}

// Replace substitutes the selected statements in their list.
func (f *Fragment) Replace(stmts []ast.Stmt) {
	list := stmtList(f.Parent)
	updated := append(append(append([]ast.Stmt(nil), list[:f.Start]...), stmts...), list[f.End:]...)
	switch p := f.Parent.(type) {
	case *ast.BlockStmt:
		p.List = updated
	case *ast.CaseClause:
		p.Body = updated
	case *ast.CommClause:
		p.Body = updated
	}
}

// FindFragment selects the statements lying entirely within lines
// [startLine, endLine] of file. The statements come from the outermost
// statement list holding any of them; a statement cut by the range is an
// error, as is code that cannot run outside its function: return, defer
// and branches to targets outside the range.
func FindFragment(fset *token.FileSet, file *ast.File, startLine, endLine int) (*Fragment, error) {
	filename := fset.Position(file.Pos()).Filename
	invalid := func(line int, format string, args ...any) error {
		return &types.RefactorError{
			Type:    types.InvalidOperation,
			Message: fmt.Sprintf(format, args...),
			File:    filename,
			Line:    line,
		}
	}
	if startLine <= 0 || endLine < startLine {
		return nil, invalid(startLine, "invalid line range %d-%d", startLine, endLine)
	}
	line := func(pos token.Pos) int { return fset.Position(pos).Line }

	var (
		found *Fragment
		err   error
		stack []ast.Node
	)
	ast.Inspect(file, func(n ast.Node) bool {
		if n == nil {
			stack = stack[:len(stack)-1]
			return true
		}
		stack = append(stack, n)
		if found != nil || err != nil {
			return true
		}
		list := stmtList(n)
		if list == nil {
			return true
		}
		fn, ft := enclosingFunc(stack)
		if fn == nil {
			return true
		}
		first, last := -1, -1
		for i, s := range list {
			switch s.(type) {
			case *ast.CaseClause, *ast.CommClause:
				// clauses only hold statements; their bodies are lists of their own
				continue
			}
			sl, el := line(s.Pos()), line(s.End())
			switch {
			case el < startLine || sl > endLine:
			case sl >= startLine && el <= endLine:
				if first < 0 {
					first = i
				}
				last = i
			case sl < startLine && el > endLine:
				// encloses the range; a nested list holds the selection
			default:
				err = invalid(sl, "line range %d-%d splits a statement at line %d", startLine, endLine, sl)
				return true
			}
		}
		if first >= 0 {
			found = &Fragment{
				File:   file,
				Func:   fn,
				Type:   ft,
				Parent: n,
				Start:  first,
				End:    last + 1,
				Stmts:  list[first : last+1],
			}
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, invalid(startLine, "no statements inside a function body between lines %d and %d", startLine, endLine)
	}
	if bad, why := escape(found); bad != nil {
		return nil, invalid(line(bad.Pos()), "%s", why)
	}
	return found, nil
}

func stmtList(n ast.Node) []ast.Stmt {
	switch n := n.(type) {
	case *ast.BlockStmt:
		return n.List
	case *ast.CaseClause:
		return n.Body
	case *ast.CommClause:
		return n.Body
	}
	return nil
}

func enclosingFunc(stack []ast.Node) (ast.Node, *ast.FuncType) {
	for i := len(stack) - 1; i >= 0; i-- {
		switch fn := stack[i].(type) {
		case *ast.FuncDecl:
			if fn.Body == nil {
				return nil, nil
			}
			return fn, fn.Type
		case *ast.FuncLit:
			return fn, fn.Type
		}
	}
	return nil, nil
}

// escape finds the first statement that transfers control out of the
// fragment or depends on the enclosing function's frame.
func escape(f *Fragment) (ast.Node, string) {
	labels := make(map[string]bool)
	for _, s := range f.Stmts {
		ast.Inspect(s, func(n ast.Node) bool {
			if l, ok := n.(*ast.LabeledStmt); ok {
				labels[l.Label.Name] = true
			}
			_, lit := n.(*ast.FuncLit)
			return !lit
		})
	}

	var (
		bad   ast.Node
		why   string
		stack []ast.Node
	)
	for _, s := range f.Stmts {
		ast.Inspect(s, func(n ast.Node) bool {
			if bad != nil {
				return false
			}
			if n == nil {
				stack = stack[:len(stack)-1]
				return true
			}
			switch n := n.(type) {
			case *ast.FuncLit:
				return false
			case *ast.ReturnStmt:
				bad, why = n, "return statements cannot be moved out of their function"
			case *ast.DeferStmt:
				bad, why = n, "deferred calls would run when the new method returns"
			case *ast.BranchStmt:
				if !targetInside(n, labels, stack) {
					bad, why = n, fmt.Sprintf("%s leaves the selected statements", n.Tok)
				}
			}
			if bad != nil {
				return false
			}
			stack = append(stack, n)
			return true
		})
	}
	return bad, why
}

func targetInside(b *ast.BranchStmt, labels map[string]bool, stack []ast.Node) bool {
	if b.Label != nil {
		return labels[b.Label.Name]
	}
	for i := len(stack) - 1; i >= 0; i-- {
		switch stack[i].(type) {
		case *ast.ForStmt, *ast.RangeStmt:
			return b.Tok == token.BREAK || b.Tok == token.CONTINUE
		case *ast.SwitchStmt, *ast.TypeSwitchStmt, *ast.SelectStmt:
			if b.Tok == token.BREAK || b.Tok == token.FALLTHROUGH {
				return true
			}
		}
	}
	return false
}
