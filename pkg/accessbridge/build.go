package accessbridge

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"go/types"
	"strconv"
	"strings"
)

// BridgeUnit is a bridge inserted into a container. It keeps no reference to
// the descriptor it was built for.
type BridgeUnit struct {
	Name  string
	Kind  Kind
	Decls []ast.Decl
}

// Build synthesizes the bridge for sig and appends it to the container file
// after every bridge inserted before it. index comes from the descriptor's
// position in collection order.
func (b *Bridger) Build(index int, sig *Signature, c *Container) (*BridgeUnit, error) {
	name := b.naming.prefix(sig.Kind) + strconv.Itoa(index)
	if declared(c, name) || declared(c, linkTarget(name)) {
		return nil, &MutationError{Op: "insert", Err: fmt.Errorf("%s is already declared in package %s", name, c.File.Name.Name)}
	}

	n := b.newNamer(c)
	var (
		src string
		err error
	)
	switch {
	case sig.Kind == Construction:
		src, err = constructionSource(n, name, sig, c)
	case sig.Kind == FieldAccess && !sig.Linked:
		src, err = fieldSource(n, name, sig, c)
	case sig.Linked:
		src, err = linkedSource(n, name, sig, c)
	default:
		err = fmt.Errorf("no bridge shape for %s", sig.Kind)
	}
	if err != nil {
		return nil, err
	}

	decls, err := insert(c, name, src)
	if err != nil {
		return nil, err
	}
	b.logger.Debug("inserted bridge", "bridge", name, "kind", sig.Kind, "member", sig.Member)
	return &BridgeUnit{Name: name, Kind: sig.Kind, Decls: decls}, nil
}

func constructionSource(n *namer, name string, sig *Signature, c *Container) (string, error) {
	reflectPkg := n.pkg("reflect", "reflect")
	unsafePkg := n.pkg("unsafe", "unsafe")
	typ, err := n.text(sig.Target, false)
	if err != nil {
		return "", err
	}
	header, err := n.header(name, sig, c)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(header + " {\n")
	newValue := fmt.Sprintf("%s.New(%s.TypeFor[%s]())", reflectPkg, reflectPkg, typ)
	if len(sig.Params) == 0 {
		if sig.Pointer {
			fmt.Fprintf(&sb, "\treturn %s.Interface().(*%s)\n}\n", newValue, typ)
		} else {
			fmt.Fprintf(&sb, "\treturn %s.Elem().Interface().(%s)\n}\n", newValue, typ)
		}
		return sb.String(), nil
	}

	fmt.Fprintf(&sb, "\trv := %s.Elem()\n", newValue)
	fmt.Fprintf(&sb, "\tvar fv %s.Value\n", reflectPkg)
	for i, p := range sig.Params {
		field := sig.Fields[i]
		if field == "_" {
			continue
		}
		fmt.Fprintf(&sb, "\tfv = rv.FieldByName(%q)\n", field)
		fmt.Fprintf(&sb, "\tif !fv.IsValid() {\n\t\tpanic(%q)\n\t}\n", fmt.Sprintf("%s: %s has no field %s", name, typ, field))
		set := fmt.Sprintf("%s.NewAt(fv.Type(), %s.Pointer(fv.UnsafeAddr())).Elem().Set", reflectPkg, unsafePkg)
		if p.Type == nil {
			// the argument arrives with its default type; a constant or a
			// value of the underlying type still needs the field's type
			fmt.Fprintf(&sb, "\tif %s != nil {\n", p.Name)
			fmt.Fprintf(&sb, "\t\tpv := %s.ValueOf(%s)\n", reflectPkg, p.Name)
			sb.WriteString("\t\tif !pv.Type().AssignableTo(fv.Type()) {\n\t\t\tpv = pv.Convert(fv.Type())\n\t\t}\n")
			fmt.Fprintf(&sb, "\t\t%s(pv)\n\t}\n", set)
		} else {
			fmt.Fprintf(&sb, "\t%s(%s.ValueOf(&%s).Elem())\n", set, reflectPkg, p.Name)
		}
	}
	if sig.Pointer {
		fmt.Fprintf(&sb, "\treturn rv.Addr().Interface().(*%s)\n}\n", typ)
	} else {
		fmt.Fprintf(&sb, "\treturn rv.Interface().(%s)\n}\n", typ)
	}
	return sb.String(), nil
}

func fieldSource(n *namer, name string, sig *Signature, c *Container) (string, error) {
	reflectPkg := n.pkg("reflect", "reflect")
	unsafePkg := n.pkg("unsafe", "unsafe")
	header, err := n.header(name, sig, c)
	if err != nil {
		return "", err
	}
	recv := sig.Params[0].Name

	var sb strings.Builder
	sb.WriteString(header + " {\n")
	if sig.Mode == ByCopy {
		fmt.Fprintf(&sb, "\trv := %s.New(%s.TypeOf(%s)).Elem()\n", reflectPkg, reflectPkg, recv)
		fmt.Fprintf(&sb, "\trv.Set(%s.ValueOf(%s))\n", reflectPkg, recv)
	} else {
		fmt.Fprintf(&sb, "\trv := %s.ValueOf(%s).Elem()\n", reflectPkg, recv)
	}
	fmt.Fprintf(&sb, "\tfv := rv.FieldByName(%q)\n", sig.Member)
	owner := sig.Owner
	if owner == "" {
		owner = "receiver"
	}
	fmt.Fprintf(&sb, "\tif !fv.IsValid() {\n\t\tpanic(%q)\n\t}\n", fmt.Sprintf("%s: %s has no field %s", name, owner, sig.Member))
	if sig.Opaque {
		fmt.Fprintf(&sb, "\treturn %s.NewAt(fv.Type(), %s.Pointer(fv.UnsafeAddr())).Elem().Interface()\n}\n", reflectPkg, unsafePkg)
		return sb.String(), nil
	}
	result, err := n.text(sig.Results[0], false)
	if err != nil {
		return "", err
	}
	fmt.Fprintf(&sb, "\treturn (%s)(%s.Pointer(fv.UnsafeAddr()))\n}\n", result, unsafePkg)
	return sb.String(), nil
}

// linkedSource pulls the member in with a linkname directive and forwards
// to it. Panics and error results of the member reach the caller unchanged.
func linkedSource(n *namer, name string, sig *Signature, c *Container) (string, error) {
	n.link("unsafe")
	n.link(sig.Package)
	target := linkTarget(name)
	header, err := n.header(name, sig, c)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "//go:linkname %s %s\n", target, sig.Symbol)
	if sig.Kind == FieldAccess {
		// package-level variable
		elem, err := n.text(sig.Results[0].(*types.Pointer).Elem(), false)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&sb, "var %s %s\n\n", target, elem)
		fmt.Fprintf(&sb, "%s {\n\treturn &%s\n}\n", header, target)
		return sb.String(), nil
	}

	params, err := n.params(sig)
	if err != nil {
		return "", err
	}
	results, err := n.results(sig)
	if err != nil {
		return "", err
	}
	fmt.Fprintf(&sb, "func %s(%s)%s\n\n", target, params, results)

	args := make([]string, len(sig.Params))
	for i, p := range sig.Params {
		args[i] = p.Name
		if p.Variadic {
			args[i] += "..."
		}
	}
	call := fmt.Sprintf("%s(%s)", target, strings.Join(args, ", "))
	if len(sig.Results) > 0 {
		call = "return " + call
	}
	fmt.Fprintf(&sb, "%s {\n\t%s\n}\n", header, call)
	return sb.String(), nil
}

func linkTarget(name string) string { return name + "Target" }

// header writes the bridge's func line: a package-level function for static
// containers, a method of the container otherwise.
func (n *namer) header(name string, sig *Signature, c *Container) (string, error) {
	params, err := n.params(sig)
	if err != nil {
		return "", err
	}
	results, err := n.results(sig)
	if err != nil {
		return "", err
	}
	if sig.Static {
		return fmt.Sprintf("func %s(%s)%s", name, params, results), nil
	}
	return fmt.Sprintf("func (%s *%s) %s(%s)%s", c.Receiver, c.Name, name, params, results), nil
}

func (n *namer) params(sig *Signature) (string, error) {
	parts := make([]string, len(sig.Params))
	for i, p := range sig.Params {
		if p.Type == nil {
			parts[i] = p.Name + " any"
			continue
		}
		t := p.Type
		prefix := ""
		if p.Variadic {
			t = t.(*types.Slice).Elem()
			prefix = "..."
		}
		text, err := n.text(t, !sig.Linked)
		if err != nil {
			return "", err
		}
		parts[i] = p.Name + " " + prefix + text
	}
	return strings.Join(parts, ", "), nil
}

func (n *namer) results(sig *Signature) (string, error) {
	parts := make([]string, len(sig.Results))
	for i, t := range sig.Results {
		if t == nil {
			parts[i] = "any"
			continue
		}
		text, err := n.text(t, !sig.Linked)
		if err != nil {
			return "", err
		}
		parts[i] = text
	}
	switch len(parts) {
	case 0:
		return "", nil
	case 1:
		return " " + parts[0], nil
	}
	return " (" + strings.Join(parts, ", ") + ")", nil
}

// text spells t as source text.
func (n *namer) text(t types.Type, allowAny bool) (string, error) {
	expr, err := n.expr(t, allowAny)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := format.Node(&buf, token.NewFileSet(), expr); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// insert parses a bridge into the container's file set and appends its
// declarations and directive comments to the container file.
func insert(c *Container, name, src string) ([]ast.Decl, error) {
	f, err := parser.ParseFile(c.Fset, name+".go", "package "+c.File.Name.Name+"\n\n"+src, parser.ParseComments)
	if err != nil {
		return nil, &MutationError{Op: "insert", Err: fmt.Errorf("bridge %s: %w", name, err)}
	}
	c.File.Decls = append(c.File.Decls, f.Decls...)
	c.File.Comments = append(c.File.Comments, f.Comments...)
	return f.Decls, nil
}

// declared reports whether name is already declared at the top level of the
// container file or as a method of the container type.
func declared(c *Container, name string) bool {
	for _, decl := range c.File.Decls {
		switch decl := decl.(type) {
		case *ast.FuncDecl:
			if decl.Name.Name != name {
				continue
			}
			if decl.Recv == nil || c.Static || receiverType(decl) == c.Name {
				return true
			}
		case *ast.GenDecl:
			for _, spec := range decl.Specs {
				switch spec := spec.(type) {
				case *ast.ValueSpec:
					for _, id := range spec.Names {
						if id.Name == name {
							return true
						}
					}
				case *ast.TypeSpec:
					if spec.Name.Name == name {
						return true
					}
				}
			}
		}
	}
	return false
}

func receiverType(decl *ast.FuncDecl) string {
	if len(decl.Recv.List) == 0 {
		return ""
	}
	t := decl.Recv.List[0].Type
	if star, ok := t.(*ast.StarExpr); ok {
		t = star.X
	}
	if id, ok := t.(*ast.Ident); ok {
		return id.Name
	}
	return ""
}
