package accessbridge

import (
	"errors"
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"strconv"
)

// Phase is the state of a bridging run.
type Phase int

const (
	Idle Phase = iota
	Collecting
	Bridging
	Done
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Collecting:
		return "collecting"
	case Bridging:
		return "bridging"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// Bridged is a reference replaced by a bridge call.
type Bridged struct {
	Index  int
	Name   string
	Kind   Kind
	Member string
	Pos    token.Position
}

// Skipped is a reference left untouched because no bridge could be derived.
type Skipped struct {
	Kind   Kind
	Member string
	Pos    token.Position
	Reason string
	Err    error
}

// Reference is an illegal use of a name no bridge can stand in for, such as
// an unexported type or constant.
type Reference struct {
	Name string
	Pos  token.Position
}

// Summary is the outcome of a run.
type Summary struct {
	Root    ast.Node
	Bridged []Bridged
	Skipped []Skipped
	Manual  []Reference
}

// Pending is the number of references that still need a visibility change
// by hand.
func (s *Summary) Pending() int { return len(s.Skipped) + len(s.Manual) }

// Message describes the run for the user.
func (s *Summary) Message() string {
	msg := fmt.Sprintf("%d %s bridged", len(s.Bridged), references(len(s.Bridged)))
	if n := s.Pending(); n == 1 {
		msg += ", 1 reference requires manual access adjustment"
	} else if n > 1 {
		msg += fmt.Sprintf(", %d references require manual access adjustment", n)
	}
	return msg
}

func references(n int) string {
	if n == 1 {
		return "reference"
	}
	return "references"
}

// Phase returns the state of the current or last run.
func (b *Bridger) Phase() Phase { return b.phase }

// Run bridges every illegal reference under root, the fragment hosted by c.
// References are collected once, then derived, built and rewritten in
// source order. A reference whose bridge cannot be derived is skipped; a
// failed tree mutation aborts the run and leaves the tree and the container
// as far as they got.
func (b *Bridger) Run(root ast.Node, c *Container) (*Summary, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	if b.phase == Collecting || b.phase == Bridging {
		return nil, fmt.Errorf("bridger is already %s", b.phase)
	}

	b.phase = Collecting
	c.from, c.to = span(root)
	scope := c.Scope()
	descriptors := b.Collect(root, scope)
	b.logger.Debug("collected references", "count", len(descriptors), "package", scope.Path)

	b.phase = Bridging
	summary := &Summary{Root: root}
	untouched := make(map[ast.Node]bool)
	for i, d := range descriptors {
		pos := b.position(d.Origin().Pos())
		sig, err := b.Derive(d, c)
		if err != nil {
			if !errors.Is(err, ErrUnresolvable) && !errors.Is(err, ErrIncomplete) {
				b.phase = Done
				return summary, err
			}
			skip := Skipped{Kind: d.Kind(), Member: d.Member(), Pos: pos, Reason: err.Error(), Err: err}
			if errors.Is(err, ErrIncomplete) {
				b.logger.Debug("skipped incomplete reference", "kind", d.Kind(), "member", d.Member(), "pos", pos)
			} else {
				b.logger.Warn("cannot bridge reference", "kind", d.Kind(), "member", d.Member(), "pos", pos, "error", err)
			}
			summary.Skipped = append(summary.Skipped, skip)
			untouched[d.Origin()] = true
			continue
		}

		unit, err := b.Build(i, sig, c)
		if err != nil {
			b.phase = Done
			return summary, err
		}
		root, err = b.Rewrite(root, d, unit, sig, c)
		if err != nil {
			b.phase = Done
			return summary, err
		}
		summary.Root = root
		summary.Bridged = append(summary.Bridged, Bridged{Index: i, Name: unit.Name, Kind: d.Kind(), Member: d.Member(), Pos: pos})
		b.logger.Debug("bridged reference", "bridge", unit.Name, "member", d.Member(), "pos", pos)
	}

	summary.Manual = b.leftovers(root, scope, untouched)
	b.phase = Done
	b.logger.Info("bridging finished", "bridged", len(summary.Bridged), "skipped", len(summary.Skipped), "manual", len(summary.Manual))
	return summary, nil
}

// leftovers lists the uses of inaccessible types and constants that remain
// in the rewritten fragment outside the skipped references.
func (b *Bridger) leftovers(root ast.Node, scope Scope, skipped map[ast.Node]bool) []Reference {
	var refs []Reference
	ast.Inspect(root, func(n ast.Node) bool {
		if skipped[n] {
			return false
		}
		id, ok := n.(*ast.Ident)
		if !ok {
			return true
		}
		switch obj := b.info.Uses[id].(type) {
		case *types.TypeName, *types.Const:
			if !b.accessible(obj, scope) {
				refs = append(refs, Reference{Name: qualifiedObject(obj), Pos: b.position(id.Pos())})
			}
		}
		return true
	})
	return refs
}

// Planned is the bridge a reference would receive.
type Planned struct {
	Name      string // empty when Err is set
	Kind      Kind
	Member    string
	Pos       token.Position
	Signature *Signature
	Err       error
}

// Plan collects and derives like Run but builds nothing. The container is
// read, never modified.
func (b *Bridger) Plan(root ast.Node, c *Container) ([]Planned, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	c.from, c.to = span(root)
	var planned []Planned
	for i, d := range b.Collect(root, c.Scope()) {
		p := Planned{Kind: d.Kind(), Member: d.Member(), Pos: b.position(d.Origin().Pos())}
		p.Signature, p.Err = b.Derive(d, c)
		if p.Err != nil && !errors.Is(p.Err, ErrUnresolvable) && !errors.Is(p.Err, ErrIncomplete) {
			return planned, p.Err
		}
		if p.Err == nil {
			p.Name = b.naming.prefix(d.Kind()) + strconv.Itoa(i)
		}
		planned = append(planned, p)
	}
	return planned, nil
}
