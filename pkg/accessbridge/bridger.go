package accessbridge

import (
	"go/token"
	"go/types"
	"log/slog"
)

// Bridger finds and bridges illegal references in relocated fragments. It
// reads the type information of the fragment's original package and must
// not be used for concurrent runs.
type Bridger struct {
	fset   *token.FileSet
	info   *types.Info
	access AccessChecker
	naming Naming
	logger *slog.Logger
	phase  Phase
}

// Option configures a Bridger.
type Option func(*Bridger)

// WithNaming overrides the bridge name prefixes.
func WithNaming(n Naming) Option {
	return func(b *Bridger) {
		defaults := DefaultNaming()
		if n.Construction == "" {
			n.Construction = defaults.Construction
		}
		if n.Method == "" {
			n.Method = defaults.Method
		}
		if n.Field == "" {
			n.Field = defaults.Field
		}
		b.naming = n
	}
}

// New creates a Bridger over the type information of a checked package.
// info must record Types, Uses, Defs and Selections.
func New(fset *token.FileSet, info *types.Info, access AccessChecker, logger *slog.Logger, opts ...Option) *Bridger {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	b := &Bridger{
		fset:   fset,
		info:   info,
		access: access,
		naming: DefaultNaming(),
		logger: logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bridger) accessible(obj types.Object, scope Scope) bool {
	if obj.Pkg() == nil || scope.moves(obj) {
		return true
	}
	return b.access.IsAccessible(obj, scope)
}

func (b *Bridger) position(pos token.Pos) token.Position {
	if b.fset == nil || !pos.IsValid() {
		return token.Position{}
	}
	return b.fset.Position(pos)
}
