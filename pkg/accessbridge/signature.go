package accessbridge

import (
	"fmt"
	"go/ast"
	"go/types"
	"strings"
)

// ReceiverAdjust is the operator applied to a receiver expression so that it
// matches the declared receiver of the called method.
type ReceiverAdjust int

const (
	AsIs ReceiverAdjust = iota
	AddressOf
	Dereference
)

// FieldMode says how a field bridge receives the struct holding the field.
type FieldMode int

const (
	// ByPointer passes a pointer receiver through unchanged.
	ByPointer FieldMode = iota
	// ByAddress passes the address of an addressable struct value.
	ByAddress
	// ByCopy passes a struct value that has no address.
	ByCopy
)

// Param is one bridge parameter. A nil Type is written as any.
type Param struct {
	Name     string
	Type     types.Type
	Variadic bool
}

// Signature is the contract of a bridge, derived from the member it reaches.
type Signature struct {
	Kind   Kind
	Static bool
	// Owner is the type declaring the member, empty at package level.
	Owner string
	// Member is the name used for the reflective lookup or the link.
	Member string
	// Package is the import path of the package declaring the member.
	Package string
	// Symbol is the linker symbol of linked bridges.
	Symbol  string
	Linked  bool
	Params  []Param
	Results []types.Type // nil entries are written as any

	// Calls and method values.
	Receiver bool           // Params[0] is the method receiver
	Path     []string       // embedded fields leading to a promoted method
	Adjust   ReceiverAdjust // applied after Path
	// ClosureRecv is the receiver parameter type of a method expression.
	ClosureRecv types.Type

	// Constructions.
	Target  *types.Named
	Fields  []string // field names in parameter order
	Pointer bool

	// Field accesses.
	Mode   FieldMode
	Opaque bool // the field type cannot be written; the bridge returns its value as any
}

// Derive computes the bridge signature for d as seen from the container.
// It fails with ErrUnresolvable when a type of the member cannot be written
// in the container's package, and with ErrIncomplete for broken expressions.
func (b *Bridger) Derive(d Descriptor, c *Container) (*Signature, error) {
	scope := c.Scope()
	sig := &Signature{Kind: d.Kind(), Static: c.Static}
	if owner := d.Owner(); owner != nil {
		sig.Owner = qualifiedType(owner)
	}

	var err error
	switch d := d.(type) {
	case *ConstructionDescriptor:
		err = b.deriveConstruction(sig, d, scope)
	case *DirectCallDescriptor:
		err = b.deriveCall(sig, d.Func, d.Selection, scope)
		if err == nil && d.Recv != nil && len(d.Call.Args) == 1 {
			if tup, ok := b.info.TypeOf(d.Call.Args[0]).(*types.Tuple); ok && tup.Len() > 1 {
				err = fmt.Errorf("%w: multi-value argument cannot follow the receiver of %s", ErrUnresolvable, d.Member())
			}
		}
	case *MethodValueDescriptor:
		err = b.deriveCall(sig, d.Func, d.Selection, scope)
		if err == nil && d.Selection != nil && d.Selection.Kind() == types.MethodExpr {
			sig.ClosureRecv = d.Selection.Recv()
			if b.visibility(sig.ClosureRecv, scope) != nameable {
				err = fmt.Errorf("%w: receiver type %s cannot be written in package %s", ErrUnresolvable, types.TypeString(sig.ClosureRecv, byName), scope.Name)
			}
		}
	case *FieldAccessDescriptor:
		err = b.deriveField(sig, d, scope)
	default:
		err = fmt.Errorf("unknown descriptor %T", d)
	}
	if err != nil {
		return nil, err
	}
	reserved := map[string]bool{"rv": true, "fv": true, "pv": true, "reflect": true, "unsafe": true, "any": true}
	if !c.Static {
		reserved[c.Receiver] = true
	}
	for _, p := range sig.Params {
		typeWords(p.Type, reserved)
	}
	for _, t := range sig.Results {
		typeWords(t, reserved)
	}
	nameParams(sig.Params, reserved, sig.Kind == Construction)
	return sig, nil
}

func (b *Bridger) deriveConstruction(sig *Signature, d *ConstructionDescriptor, scope Scope) error {
	if d.Incomplete {
		return fmt.Errorf("%w: literal of %s", ErrIncomplete, d.Member())
	}
	if _, v := b.spelling(d.Type.Obj(), scope); v != nameable || b.typeArgs(d.Type.TypeArgs(), scope) != nameable {
		return fmt.Errorf("%w: type %s cannot be written in package %s", ErrUnresolvable, d.Member(), scope.Name)
	}
	sig.Member = d.Type.Obj().Name()
	sig.Package = d.Type.Obj().Pkg().Path()
	sig.Target = d.Type
	sig.Pointer = d.Pointer
	for _, f := range d.Fields {
		p := Param{Name: f.Name()}
		switch b.visibility(f.Type(), scope) {
		case nameable:
			p.Type = f.Type()
		case unnameable:
			return fmt.Errorf("%w: field %s of %s has a type local to its function", ErrUnresolvable, f.Name(), d.Member())
		}
		sig.Params = append(sig.Params, p)
		sig.Fields = append(sig.Fields, f.Name())
	}
	var result types.Type = d.Type
	if d.Pointer {
		result = types.NewPointer(d.Type)
	}
	sig.Results = []types.Type{result}
	return nil
}

func (b *Bridger) deriveCall(sig *Signature, fn *types.Func, sel *types.Selection, scope Scope) error {
	fsig := fn.Type().(*types.Signature)
	if fsig.TypeParams().Len() > 0 || fsig.RecvTypeParams().Len() > 0 {
		return fmt.Errorf("%w: generic function %s cannot be linked", ErrUnresolvable, funcName(fn))
	}
	sig.Linked = true
	sig.Member = fn.Name()
	sig.Package = fn.Pkg().Path()
	prefix := linkPrefix(sig.Package)

	if recv := fsig.Recv(); recv != nil {
		if types.IsInterface(recv.Type()) {
			return fmt.Errorf("%w: interface method %s has no body to link", ErrUnresolvable, funcName(fn))
		}
		named, _ := types.Unalias(deref(recv.Type())).(*types.Named)
		if named == nil {
			return fmt.Errorf("%w: receiver of %s", ErrUnresolvable, funcName(fn))
		}
		_, ptrRecv := types.Unalias(recv.Type()).(*types.Pointer)
		if ptrRecv {
			sig.Symbol = fmt.Sprintf("%s.(*%s).%s", prefix, named.Obj().Name(), fn.Name())
		} else {
			sig.Symbol = fmt.Sprintf("%s.%s.%s", prefix, named.Obj().Name(), fn.Name())
		}
		if b.visibility(recv.Type(), scope) != nameable {
			return fmt.Errorf("%w: receiver type %s cannot be written in package %s", ErrUnresolvable, types.TypeString(recv.Type(), byName), scope.Name)
		}
		sig.Receiver = true
		sig.Params = append(sig.Params, Param{Name: "recv", Type: recv.Type()})

		if sel != nil {
			end, err := b.promotion(sig, sel, scope)
			if err != nil {
				return err
			}
			_, ptrEnd := types.Unalias(end).(*types.Pointer)
			switch {
			case ptrRecv && !ptrEnd:
				sig.Adjust = AddressOf
			case !ptrRecv && ptrEnd:
				sig.Adjust = Dereference
			}
		}
	} else {
		sig.Symbol = prefix + "." + fn.Name()
	}

	params := fsig.Params()
	for i := range params.Len() {
		v := params.At(i)
		if b.visibility(v.Type(), scope) != nameable {
			return fmt.Errorf("%w: parameter %d of %s has type %s", ErrUnresolvable, i, funcName(fn), types.TypeString(v.Type(), byName))
		}
		sig.Params = append(sig.Params, Param{
			Name:     v.Name(),
			Type:     v.Type(),
			Variadic: fsig.Variadic() && i == params.Len()-1,
		})
	}
	results := fsig.Results()
	for i := range results.Len() {
		t := results.At(i).Type()
		if b.visibility(t, scope) != nameable {
			return fmt.Errorf("%w: result %d of %s has type %s", ErrUnresolvable, i, funcName(fn), types.TypeString(t, byName))
		}
		sig.Results = append(sig.Results, t)
	}
	return nil
}

// promotion records the embedded fields leading from the selection's
// receiver to the method's receiver and returns the type found at the end.
func (b *Bridger) promotion(sig *Signature, sel *types.Selection, scope Scope) (types.Type, error) {
	t := sel.Recv()
	index := sel.Index()
	for _, i := range index[:len(index)-1] {
		st, ok := deref(t).Underlying().(*types.Struct)
		if !ok {
			return nil, fmt.Errorf("%w: cannot follow embedding of %s", ErrUnresolvable, sel.Obj().Name())
		}
		f := st.Field(i)
		if !b.accessible(f, scope) {
			return nil, fmt.Errorf("%w: method %s is promoted through unexported field %s", ErrUnresolvable, sel.Obj().Name(), f.Name())
		}
		sig.Path = append(sig.Path, f.Name())
		t = f.Type()
	}
	return t, nil
}

func (b *Bridger) deriveField(sig *Signature, d *FieldAccessDescriptor, scope Scope) error {
	f := d.Field
	sig.Member = f.Name()
	sig.Package = f.Pkg().Path()

	if d.Recv == nil {
		if b.visibility(f.Type(), scope) != nameable {
			return fmt.Errorf("%w: variable %s has type %s", ErrUnresolvable, qualifiedObject(f), types.TypeString(f.Type(), byName))
		}
		sig.Linked = true
		sig.Symbol = linkPrefix(f.Pkg().Path()) + "." + f.Name()
		sig.Results = []types.Type{types.NewPointer(f.Type())}
		return nil
	}

	recvType := b.info.TypeOf(d.Recv)
	if recvType == nil {
		return fmt.Errorf("%w: receiver of %s", ErrIncomplete, d.Member())
	}
	param := Param{Name: "recv"}
	switch {
	case isPointer(recvType):
		sig.Mode = ByPointer
	case addressable(b.info, d.Recv):
		sig.Mode = ByAddress
		recvType = types.NewPointer(recvType)
	default:
		sig.Mode = ByCopy
	}
	switch b.visibility(recvType, scope) {
	case nameable:
		param.Type = recvType
	case unnameable:
		return fmt.Errorf("%w: receiver of %s has a type local to its function", ErrUnresolvable, d.Member())
	}
	sig.Params = []Param{param}

	switch b.visibility(f.Type(), scope) {
	case nameable:
		sig.Results = []types.Type{types.NewPointer(f.Type())}
	case hidden:
		if d.Addressed {
			return fmt.Errorf("%w: field %s has type %s and cannot be written from package %s", ErrUnresolvable, d.Member(), types.TypeString(f.Type(), byName), scope.Name)
		}
		sig.Opaque = true
		sig.Results = []types.Type{nil}
	default:
		return fmt.Errorf("%w: field %s has a type local to its function", ErrUnresolvable, d.Member())
	}
	return nil
}

// nameParams gives every parameter a usable, distinct name that shadows
// none of the identifiers the bridge body refers to. Blank struct fields keep
// their blank name when keepBlank is set.
func nameParams(params []Param, reserved map[string]bool, keepBlank bool) {
	taken := make(map[string]bool)
	for i := range params {
		name := params[i].Name
		if name == "_" && keepBlank {
			continue
		}
		if name == "" || name == "_" {
			name = fmt.Sprintf("a%d", i)
		}
		for base, n := name, 1; taken[name] || reserved[name]; n++ {
			name = fmt.Sprintf("%s%d", base, n)
		}
		taken[name] = true
		params[i].Name = name
	}
}

// typeWords adds the identifiers a spelling of t may use.
func typeWords(t types.Type, words map[string]bool) {
	switch t := t.(type) {
	case nil:
	case *types.Basic:
		words[t.Name()] = true
	case *types.Alias:
		objWords(t.Obj(), words)
		typeWords(types.Unalias(t), words)
	case *types.Named:
		objWords(t.Obj(), words)
		for i := range t.TypeArgs().Len() {
			typeWords(t.TypeArgs().At(i), words)
		}
	case *types.Pointer:
		typeWords(t.Elem(), words)
	case *types.Slice:
		typeWords(t.Elem(), words)
	case *types.Array:
		typeWords(t.Elem(), words)
	case *types.Map:
		typeWords(t.Key(), words)
		typeWords(t.Elem(), words)
	case *types.Chan:
		typeWords(t.Elem(), words)
	case *types.Signature:
		for i := range t.Params().Len() {
			typeWords(t.Params().At(i).Type(), words)
		}
		for i := range t.Results().Len() {
			typeWords(t.Results().At(i).Type(), words)
		}
	case *types.Struct:
		for i := range t.NumFields() {
			typeWords(t.Field(i).Type(), words)
		}
	}
}

func objWords(obj *types.TypeName, words map[string]bool) {
	words[obj.Name()] = true
	if obj.Pkg() != nil {
		words[obj.Pkg().Name()] = true
	}
}

// linkPrefix is the symbol prefix of a package path: dots in the last
// element are escaped the way the compiler does.
func linkPrefix(path string) string {
	slash := strings.LastIndex(path, "/")
	last := path[slash+1:]
	if !strings.Contains(last, ".") && !strings.Contains(last, "%") {
		return path
	}
	var sb strings.Builder
	sb.WriteString(path[:slash+1])
	for _, r := range last {
		if r == '.' || r == '%' {
			fmt.Fprintf(&sb, "%%%02x", r)
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func isPointer(t types.Type) bool {
	_, ok := t.Underlying().(*types.Pointer)
	return ok
}

// addressable reports whether e denotes an addressable struct value, so the
// bridge can take its address instead of copying it.
func addressable(info *types.Info, e ast.Expr) bool {
	switch e := ast.Unparen(e).(type) {
	case *ast.Ident:
		_, ok := info.ObjectOf(e).(*types.Var)
		return ok
	case *ast.SelectorExpr:
		if sel, ok := info.Selections[e]; ok {
			if sel.Kind() != types.FieldVal {
				return false
			}
			return sel.Indirect() || addressable(info, e.X)
		}
		_, ok := info.ObjectOf(e.Sel).(*types.Var)
		return ok
	case *ast.IndexExpr:
		switch t := info.TypeOf(e.X).Underlying().(type) {
		case *types.Slice:
			return true
		case *types.Pointer:
			_, ok := t.Elem().Underlying().(*types.Array)
			return ok
		case *types.Array:
			return addressable(info, e.X)
		}
		return false
	case *ast.StarExpr:
		return true
	}
	return false
}
