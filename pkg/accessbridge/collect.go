package accessbridge

import (
	"go/ast"
	"go/token"

	"golang.org/x/tools/go/ast/astutil"
)

// Collect walks root once in pre-order and returns a descriptor for every
// reference that is illegal from scope, in source order. Nested references
// yield independent descriptors, outermost first.
func (b *Bridger) Collect(root ast.Node, scope Scope) []Descriptor {
	if !scope.From.IsValid() {
		scope.From, scope.To = span(root)
	}
	var found []Descriptor
	astutil.Apply(root, func(c *astutil.Cursor) bool {
		if d, ok := b.Classify(c, scope); ok {
			found = append(found, d)
		}
		return true
	}, nil)
	return found
}

// span returns the source range of a fragment. Synthesized blocks around
// existing statements have no braces of their own.
func span(root ast.Node) (token.Pos, token.Pos) {
	if block, ok := root.(*ast.BlockStmt); ok && !block.Lbrace.IsValid() && len(block.List) > 0 {
		return block.List[0].Pos(), block.List[len(block.List)-1].End()
	}
	return root.Pos(), root.End()
}
