package refactor

import (
	"bytes"
	"errors"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/printer"
	"go/token"
	gotypes "go/types"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/tools/go/ast/astutil"
	"golang.org/x/tools/imports"

	"github.com/mamaar/methodobject/pkg/accessbridge"
	"github.com/mamaar/methodobject/pkg/analysis"
	"github.com/mamaar/methodobject/pkg/types"
)

const defaultMethodName = "Invoke"

// ExtractMethodObjectOperation moves a run of statements into the single
// method of a new struct type. The locals the statements share with the
// rest of the function become fields of the type. When the type lives in
// another package, references that package may not make are bridged.
type ExtractMethodObjectOperation struct {
	Request types.ExtractMethodObjectRequest

	parser   *analysis.GoParser
	naming   accessbridge.Naming
	receiver string
	logger   *slog.Logger
}

func (op *ExtractMethodObjectOperation) Type() types.OperationType {
	return types.ExtractMethodObjectOperation
}

func (op *ExtractMethodObjectOperation) Description() string {
	return fmt.Sprintf("Extract lines %d-%d of %s into method object %s",
		op.Request.StartLine, op.Request.EndLine, filepath.Base(op.Request.SourceFile), op.Request.ObjectName)
}

func (op *ExtractMethodObjectOperation) Validate(ws *types.Workspace) error {
	req := op.Request
	invalid := func(format string, args ...any) error {
		return &types.RefactorError{
			Type:    types.InvalidOperation,
			Message: fmt.Sprintf(format, args...),
			File:    req.SourceFile,
			Line:    req.StartLine,
		}
	}
	switch {
	case req.SourceFile == "":
		return invalid("source file is required")
	case req.StartLine <= 0 || req.EndLine < req.StartLine:
		return invalid("invalid line range %d-%d", req.StartLine, req.EndLine)
	case !token.IsIdentifier(req.ObjectName):
		return invalid("invalid object name %q", req.ObjectName)
	case req.MethodName != "" && !token.IsIdentifier(req.MethodName):
		return invalid("invalid method name %q", req.MethodName)
	case req.TargetFile != "" && (filepath.Base(req.TargetFile) != req.TargetFile || !strings.HasSuffix(req.TargetFile, ".go")):
		return invalid("target file %q must be a plain .go file name", req.TargetFile)
	case strings.HasSuffix(req.SourceFile, "_test.go") || strings.HasSuffix(req.TargetFile, "_test.go"):
		return invalid("test files are not supported")
	}
	if file, _ := ws.FindFile(op.sourcePath(ws)); file == nil {
		return &types.RefactorError{
			Type:    types.FileSystemError,
			Message: "source file is not part of the workspace",
			File:    req.SourceFile,
		}
	}
	return nil
}

func (op *ExtractMethodObjectOperation) sourcePath(ws *types.Workspace) string {
	if filepath.IsAbs(op.Request.SourceFile) {
		return filepath.Clean(op.Request.SourceFile)
	}
	return filepath.Join(ws.RootPath, op.Request.SourceFile)
}

func (op *ExtractMethodObjectOperation) methodName() string {
	if op.Request.MethodName == "" {
		return defaultMethodName
	}
	return op.Request.MethodName
}

// extraction is the state shared by planning and execution: a private,
// type-checked copy of the source package, the selected statements and the
// container file that will host them.
type extraction struct {
	file      *types.File
	pkg       *types.Package
	checked   *analysis.Checked
	syntax    *ast.File
	frag      *analysis.Fragment
	target    target
	bridger   *accessbridge.Bridger
	container *accessbridge.Container

	// bounds of the fragment in the source file, taken before bridging
	// and localizing replace nodes of its statements
	pos, endPos token.Pos
	start, end  int
	comments    []*ast.CommentGroup
}

type target struct {
	dir        string
	path       string // file to create
	importPath string
	name       string // package name
	same       bool   // the object stays in the source package
}

func (op *ExtractMethodObjectOperation) prepare(ws *types.Workspace) (*extraction, error) {
	req := op.Request
	path := op.sourcePath(ws)
	file, pkg := ws.FindFile(path)
	if file == nil {
		return nil, &types.RefactorError{
			Type:    types.FileSystemError,
			Message: "source file is not part of the workspace",
			File:    path,
		}
	}
	if pkg.ImportPath == "" {
		return nil, &types.RefactorError{
			Type:    types.InvalidOperation,
			Message: "workspace has no go.mod; import paths are unknown",
			File:    path,
		}
	}

	checked, err := op.parser.CheckPackage(ws, pkg)
	if err != nil {
		return nil, err
	}
	if len(checked.Errors) > 0 {
		return nil, &types.RefactorError{
			Type:    types.CompilationError,
			Message: fmt.Sprintf("package %s does not type-check: %v", pkg.ImportPath, checked.Errors[0]),
			File:    path,
			Cause:   checked.Errors[0],
		}
	}
	syntax := checked.Files[path]
	frag, err := analysis.FindFragment(checked.Fset, syntax, req.StartLine, req.EndLine)
	if err != nil {
		return nil, err
	}

	tgt, err := op.resolveTarget(ws, pkg, checked)
	if err != nil {
		return nil, err
	}

	ex := &extraction{
		file:    file,
		pkg:     pkg,
		checked: checked,
		syntax:  syntax,
		frag:    frag,
		target:  tgt,
		pos:     frag.Pos(),
		endPos:  frag.EndPos(),
		start:   checked.Fset.Position(frag.Pos()).Offset,
		end:     checked.Fset.Position(frag.EndPos()).Offset,
	}
	for _, cg := range syntax.Comments {
		if cg.Pos() >= ex.pos && cg.End() <= ex.endPos {
			ex.comments = append(ex.comments, cg)
		}
	}

	cf, err := parser.ParseFile(checked.Fset, tgt.path, "package "+tgt.name+"\n", parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("failed to create container file: %w", err)
	}
	ex.container = &accessbridge.Container{
		Fset:     checked.Fset,
		File:     cf,
		Name:     req.ObjectName,
		Path:     tgt.importPath,
		Static:   req.Static,
		Receiver: op.receiverName(frag),
	}
	ex.bridger = accessbridge.New(checked.Fset, checked.Info, analysis.Visibility{}, op.logger, accessbridge.WithNaming(op.naming))
	return ex, nil
}

func (op *ExtractMethodObjectOperation) resolveTarget(ws *types.Workspace, pkg *types.Package, checked *analysis.Checked) (target, error) {
	req := op.Request
	dir := pkg.Dir
	if req.TargetDir != "" {
		dir = types.ResolveDir(ws, req.TargetDir)
	}
	name := req.TargetFile
	if name == "" {
		name = strings.ToLower(req.ObjectName) + ".go"
	}
	t := target{dir: dir, path: filepath.Join(dir, name), same: dir == pkg.Dir}

	conflict := func(format string, args ...any) error {
		return &types.RefactorError{
			Type:    types.NameConflict,
			Message: fmt.Sprintf(format, args...),
			File:    t.path,
		}
	}

	var scope *gotypes.Scope
	switch existing, ok := ws.Packages[dir]; {
	case t.same:
		t.importPath, t.name = pkg.ImportPath, pkg.Name
		scope = checked.Pkg.Scope()
	case ok:
		t.importPath, t.name = existing.ImportPath, existing.Name
		op.parser.EnsureTypeChecked(ws, existing)
		if existing.TypesPkg != nil {
			scope = existing.TypesPkg.Scope()
		}
	default:
		t.importPath = types.ImportPathForDir(ws, dir)
		t.name = packageName(filepath.Base(dir))
	}
	if t.importPath == "" {
		return t, &types.RefactorError{
			Type:    types.InvalidOperation,
			Message: fmt.Sprintf("cannot determine the import path of %s", dir),
			File:    t.path,
		}
	}
	if !t.same && req.ReplaceSource && !token.IsExported(req.ObjectName) {
		return t, &types.RefactorError{
			Type:    types.VisibilityViolation,
			Message: fmt.Sprintf("%s must be exported to be used from package %s", req.ObjectName, pkg.Name),
			File:    t.path,
		}
	}
	if _, err := os.Stat(t.path); err == nil {
		return t, conflict("file %s already exists", filepath.Base(t.path))
	}
	if scope != nil && scope.Lookup(req.ObjectName) != nil {
		return t, conflict("%s is already declared in package %s", req.ObjectName, t.name)
	}
	return t, nil
}

// packageName derives a package name from a directory name.
func packageName(dir string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			return unicode.ToLower(r)
		}
		return -1
	}, dir)
	if name == "" || unicode.IsDigit(rune(name[0])) {
		name = "pkg" + name
	}
	return name
}

// receiverName picks the configured receiver name, numbered when the
// statements already use it.
func (op *ExtractMethodObjectOperation) receiverName(frag *analysis.Fragment) string {
	used := make(map[string]bool)
	for _, s := range frag.Stmts {
		ast.Inspect(s, func(n ast.Node) bool {
			if id, ok := n.(*ast.Ident); ok {
				used[id.Name] = true
			}
			return true
		})
	}
	base := op.receiver
	if base == "" {
		base = "o"
	}
	name := base
	for i := 2; used[name]; i++ {
		name = base + strconv.Itoa(i)
	}
	return name
}

// Execute builds the plan: a new file holding the object and, on request,
// the edit replacing the statements in the source file.
func (op *ExtractMethodObjectOperation) Execute(ws *types.Workspace) (*types.RefactoringPlan, error) {
	ex, err := op.prepare(ws)
	if err != nil {
		return nil, err
	}
	req := op.Request
	method := op.methodName()

	flow := analysis.AnalyzeFlow(ex.checked.Info, ex.frag, method)
	if req.ReplaceSource && len(flow.Escaping) > 0 {
		v := flow.Escaping[0]
		return nil, &types.RefactorError{
			Type:    types.InvalidOperation,
			Message: fmt.Sprintf("%s is declared in the selected statements and used after them", v.Obj.Name()),
			File:    ex.file.Path,
			Line:    ex.checked.Fset.Position(v.Obj.Pos()).Line,
		}
	}
	if err := ex.checkRedeclared(flow); err != nil {
		return nil, err
	}

	fields, err := ex.fields(flow)
	if err != nil {
		return nil, err
	}

	body := ex.frag.Block()
	summary, err := ex.bridger.Run(body, ex.container)
	if err != nil {
		return nil, &types.RefactorError{
			Type:    types.MutationFailure,
			Message: fmt.Sprintf("bridging failed: %v", err),
			File:    ex.file.Path,
			Line:    req.StartLine,
			Cause:   err,
		}
	}
	ex.localize(body, flow)
	ex.braces(body)

	content, err := ex.render(fields, method, body)
	if err != nil {
		return nil, err
	}

	plan := &types.RefactoringPlan{
		Changes: []types.Change{{
			File:        ex.target.path,
			NewText:     string(content),
			Description: fmt.Sprintf("Create method object %s in package %s", req.ObjectName, ex.target.name),
		}},
		AffectedFiles: []string{ex.target.path},
		Impact: &types.ImpactAnalysis{
			AffectedPackages: uniqueStrings(ex.pkg.ImportPath, ex.target.importPath),
			AffectedFiles:    []string{ex.target.path},
		},
		Bridges:    ex.records(summary),
		Reversible: true,
	}
	plan.Impact.PotentialIssues = ex.issues(summary)
	if ex.hasImport(ex.pkg.ImportPath) {
		plan.Impact.ImportChanges = append(plan.Impact.ImportChanges, types.ImportChange{
			File:      ex.target.path,
			NewImport: ex.pkg.ImportPath,
			Action:    types.AddImport,
		})
	}

	if req.ReplaceSource {
		changes, err := ex.replaceSource(flow, method)
		if err != nil {
			return nil, err
		}
		plan.Changes = append(plan.Changes, changes...)
		plan.AffectedFiles = append(plan.AffectedFiles, ex.file.Path)
		plan.Impact.AffectedFiles = append(plan.Impact.AffectedFiles, ex.file.Path)
		if !ex.target.same {
			plan.Impact.ImportChanges = append(plan.Impact.ImportChanges, types.ImportChange{
				File:      ex.file.Path,
				NewImport: ex.target.importPath,
				Action:    types.AddImport,
			})
			if issue, ok := ex.cycle(analysis.NewDependencyAnalyzer(ws, op.logger)); ok {
				plan.Impact.PotentialIssues = append(plan.Impact.PotentialIssues, issue)
			}
		}
	}

	op.logger.Info("method object planned",
		"object", req.ObjectName,
		"package", ex.target.importPath,
		"fields", len(fields),
		"summary", summary.Message())
	return plan, nil
}

// Report lists the bridges the extraction would create without building
// anything.
func (op *ExtractMethodObjectOperation) Report(ws *types.Workspace) ([]types.BridgeRecord, error) {
	ex, err := op.prepare(ws)
	if err != nil {
		return nil, err
	}
	planned, err := ex.bridger.Plan(ex.frag.Block(), ex.container)
	if err != nil {
		return nil, &types.RefactorError{
			Type:    types.UnbridgeableReference,
			Message: err.Error(),
			File:    ex.file.Path,
			Line:    op.Request.StartLine,
			Cause:   err,
		}
	}
	records := make([]types.BridgeRecord, 0, len(planned))
	for _, p := range planned {
		r := types.BridgeRecord{
			Kind:   p.Kind.String(),
			Member: p.Member,
			File:   p.Pos.Filename,
			Line:   p.Pos.Line,
			Column: p.Pos.Column,
			Bridge: p.Name,
		}
		if p.Err != nil {
			r.Skipped = p.Err.Error()
		}
		records = append(records, r)
	}
	return records, nil
}

// checkRedeclared rejects short variable declarations that reuse a shared
// local; o.Field cannot stand on the left of :=.
func (ex *extraction) checkRedeclared(flow *analysis.Flow) error {
	shared := make(map[*gotypes.Var]bool, len(flow.Inputs))
	for _, v := range flow.Inputs {
		shared[v.Obj] = true
	}
	var bad *ast.Ident
	for _, s := range ex.frag.Stmts {
		ast.Inspect(s, func(n ast.Node) bool {
			assign, ok := n.(*ast.AssignStmt)
			if !ok || assign.Tok != token.DEFINE || bad != nil {
				return bad == nil
			}
			for _, lhs := range assign.Lhs {
				if id, ok := lhs.(*ast.Ident); ok {
					if v, ok := ex.checked.Info.Uses[id].(*gotypes.Var); ok && shared[v] {
						bad = id
					}
				}
			}
			return true
		})
	}
	if bad == nil {
		return nil
	}
	return &types.RefactorError{
		Type:    types.InvalidOperation,
		Message: fmt.Sprintf("%s is redeclared with := and cannot become a field", bad.Name),
		File:    ex.file.Path,
		Line:    ex.checked.Fset.Position(bad.Pos()).Line,
	}
}

func (ex *extraction) fields(flow *analysis.Flow) ([]*ast.Field, error) {
	fields := make([]*ast.Field, 0, len(flow.Inputs))
	for _, v := range flow.Inputs {
		expr, err := ex.bridger.TypeExpr(v.Obj.Type(), ex.container)
		if err != nil {
			return nil, &types.RefactorError{
				Type:    types.UnbridgeableReference,
				Message: fmt.Sprintf("the type of %s cannot be written in package %s: %v", v.Obj.Name(), ex.target.name, err),
				File:    ex.file.Path,
				Line:    ex.checked.Fset.Position(v.Obj.Pos()).Line,
				Cause:   err,
			}
		}
		fields = append(fields, &ast.Field{Names: []*ast.Ident{ast.NewIdent(v.Field)}, Type: expr})
	}
	return fields, nil
}

// localize makes the bridged statements read as code of the object's
// package: shared locals become receiver fields, exported package-level
// names of the source package get qualified, and package qualifiers follow
// the container file's imports.
func (ex *extraction) localize(body *ast.BlockStmt, flow *analysis.Flow) {
	info := ex.checked.Info
	src := ex.checked.Pkg
	shared := make(map[*gotypes.Var]*analysis.Variable, len(flow.Inputs))
	for _, v := range flow.Inputs {
		shared[v.Obj] = v
	}
	recv := ex.container.Receiver

	astutil.Apply(body, func(cur *astutil.Cursor) bool {
		switch n := cur.Node().(type) {
		case *ast.SelectorExpr:
			if id, ok := n.X.(*ast.Ident); ok {
				if pn, ok := info.Uses[id].(*gotypes.PkgName); ok {
					id.Name = ex.bridger.Import(ex.container, pn.Imported().Path(), id.Name)
					return false
				}
			}
		case *ast.Ident:
			if cur.Name() == "Sel" {
				return false
			}
			obj := info.Uses[n]
			if v, ok := obj.(*gotypes.Var); ok && shared[v] != nil {
				cur.Replace(positioned(recv, shared[v].Field, n.Pos()))
				return false
			}
			if obj == nil || obj.Pkg() != src || obj.Parent() != src.Scope() || !obj.Exported() || ex.target.same {
				return true
			}
			name := ex.bridger.Import(ex.container, src.Path(), src.Name())
			cur.Replace(positioned(name, n.Name, n.Pos()))
			return false
		}
		return true
	}, nil)
}

// positioned builds x.sel at the position of the identifier it replaces, so
// the printer keeps it on the identifier's line.
func positioned(x, sel string, pos token.Pos) *ast.SelectorExpr {
	return &ast.SelectorExpr{
		X:   &ast.Ident{NamePos: pos, Name: x},
		Sel: &ast.Ident{NamePos: pos, Name: sel},
	}
}

// braces places the braces of the method body on the lines around the
// statements, which keeps the printer from opening the body with a blank
// line or folding it onto the func line.
func (ex *extraction) braces(body *ast.BlockStmt) {
	tf := ex.checked.Fset.File(ex.pos)
	if tf == nil {
		return
	}
	first, last := tf.Line(ex.pos), tf.Line(ex.endPos)
	body.Lbrace = tf.LineStart(max(first-1, 1))
	body.Rbrace = ex.endPos
	if last < tf.LineCount() {
		body.Rbrace = tf.LineStart(last + 1)
	}
}

// render prints the container file and tidies its imports.
func (ex *extraction) render(fields []*ast.Field, method string, body *ast.BlockStmt) ([]byte, error) {
	c := ex.container
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "package %s\n\n", c.File.Name.Name)
	if len(c.File.Imports) > 0 {
		buf.WriteString("import (\n")
		for _, spec := range c.File.Imports {
			buf.WriteString("\t")
			if spec.Name != nil {
				buf.WriteString(spec.Name.Name + " ")
			}
			buf.WriteString(spec.Path.Value + "\n")
		}
		buf.WriteString(")\n\n")
	}

	fmt.Fprintf(&buf, "// %s holds the statements extracted from %s.\n", c.Name, funcLabel(ex.frag))
	typeDecl := &ast.GenDecl{
		Tok: token.TYPE,
		Specs: []ast.Spec{&ast.TypeSpec{
			Name: ast.NewIdent(c.Name),
			Type: &ast.StructType{Fields: &ast.FieldList{List: fields}},
		}},
	}
	invoke := &ast.FuncDecl{
		Recv: &ast.FieldList{List: []*ast.Field{{
			Names: []*ast.Ident{ast.NewIdent(c.Receiver)},
			Type:  &ast.StarExpr{X: ast.NewIdent(c.Name)},
		}}},
		Name: ast.NewIdent(method),
		Type: &ast.FuncType{Params: &ast.FieldList{}},
		Body: body,
	}
	nodes := []any{typeDecl, &printer.CommentedNode{Node: invoke, Comments: ex.comments}}
	for _, decl := range c.File.Decls {
		if gd, ok := decl.(*ast.GenDecl); ok && gd.Tok == token.IMPORT {
			continue
		}
		nodes = append(nodes, decl)
	}
	for _, node := range nodes {
		if err := format.Node(&buf, c.Fset, node); err != nil {
			return nil, &types.RefactorError{
				Type:    types.MutationFailure,
				Message: fmt.Sprintf("failed to print method object: %v", err),
				File:    ex.target.path,
				Cause:   err,
			}
		}
		buf.WriteString("\n\n")
	}

	out, err := imports.Process(ex.target.path, buf.Bytes(), &imports.Options{Comments: true, TabIndent: true, TabWidth: 8})
	if err != nil {
		return nil, &types.RefactorError{
			Type:    types.ParseError,
			Message: fmt.Sprintf("generated code does not parse: %v", err),
			File:    ex.target.path,
			Cause:   err,
		}
	}
	return out, nil
}

func funcLabel(frag *analysis.Fragment) string {
	fn, ok := frag.Func.(*ast.FuncDecl)
	if !ok {
		return "a function literal"
	}
	if fn.Recv == nil || len(fn.Recv.List) == 0 {
		return fn.Name.Name
	}
	recv := fn.Recv.List[0].Type
	for {
		switch t := recv.(type) {
		case *ast.StarExpr:
			recv = t.X
			continue
		case *ast.IndexExpr:
			recv = t.X
			continue
		case *ast.IndexListExpr:
			recv = t.X
			continue
		}
		break
	}
	if id, ok := recv.(*ast.Ident); ok {
		return id.Name + "." + fn.Name.Name
	}
	return fn.Name.Name
}

// replaceSource produces the edits that swap the statements for a use of
// the object: build it from the shared locals, run it, copy assigned locals
// back.
func (ex *extraction) replaceSource(flow *analysis.Flow, method string) ([]types.Change, error) {
	src := ex.file.OriginalContent
	scope := ex.checked.Pkg.Scope().Innermost(ex.pos)
	free := func(name string) bool {
		_, obj := scope.LookupParent(name, ex.pos)
		return obj == nil && scope.Lookup(name) == nil
	}

	typeName := ex.container.Name
	var changes []types.Change
	if !ex.target.same {
		name, change, ok := ex.sourceImport(scope)
		if ok {
			changes = append(changes, change)
		}
		typeName = name + "." + typeName
	}

	base := lowerFirst(ex.container.Name)
	objVar := base
	for i := 2; !free(objVar) || token.IsKeyword(objVar); i++ {
		objVar = base + strconv.Itoa(i)
	}

	var lit strings.Builder
	fmt.Fprintf(&lit, "%s := &%s{", objVar, typeName)
	for i, v := range flow.Inputs {
		if i > 0 {
			lit.WriteString(", ")
		}
		fmt.Fprintf(&lit, "%s: %s", v.Field, v.Obj.Name())
	}
	lit.WriteString("}")
	lines := []string{lit.String(), fmt.Sprintf("%s.%s()", objVar, method)}
	for _, v := range flow.Outputs() {
		lines = append(lines, fmt.Sprintf("%s = %s.%s", v.Obj.Name(), objVar, v.Field))
	}

	changes = append(changes, types.Change{
		File:        ex.file.Path,
		Start:       ex.start,
		End:         ex.end,
		OldText:     string(src[ex.start:ex.end]),
		NewText:     strings.Join(lines, "\n"+lineIndent(src, ex.start)),
		Description: fmt.Sprintf("Replace extracted statements with %s.%s", ex.container.Name, method),
	})
	return changes, nil
}

// sourceImport returns the name the source file uses for the object's
// package and, when the file does not import it yet, the edit adding it.
func (ex *extraction) sourceImport(scope *gotypes.Scope) (string, types.Change, bool) {
	for _, spec := range ex.syntax.Imports {
		p, err := strconv.Unquote(spec.Path.Value)
		if err != nil || p != ex.target.importPath {
			continue
		}
		if spec.Name == nil {
			return ex.target.name, types.Change{}, false
		}
		if spec.Name.Name != "_" && spec.Name.Name != "." {
			return spec.Name.Name, types.Change{}, false
		}
	}

	name := ex.target.name
	for i := 2; ; i++ {
		_, obj := scope.LookupParent(name, ex.pos)
		if obj == nil && scope.Lookup(name) == nil {
			break
		}
		name = ex.target.name + strconv.Itoa(i)
	}
	spec := strconv.Quote(ex.target.importPath)
	if name != path.Base(ex.target.importPath) {
		spec = name + " " + spec
	}

	fset := ex.checked.Fset
	change := types.Change{File: ex.file.Path, Description: "Import " + ex.target.importPath}
	for _, decl := range ex.syntax.Decls {
		gd, ok := decl.(*ast.GenDecl)
		if !ok || gd.Tok != token.IMPORT {
			continue
		}
		if gd.Lparen.IsValid() {
			change.Start = fset.Position(gd.Lparen).Offset + 1
			change.NewText = "\n\t" + spec
		} else {
			change.Start = fset.Position(gd.Pos()).Offset
			change.NewText = "import " + spec + "\n"
		}
		change.End = change.Start
		return name, change, true
	}
	change.Start = fset.Position(ex.syntax.Name.End()).Offset
	change.End = change.Start
	change.NewText = "\n\nimport " + spec
	return name, change, true
}

// hasImport reports whether the container file imports path.
func (ex *extraction) hasImport(importPath string) bool {
	for _, spec := range ex.container.File.Imports {
		if p, err := strconv.Unquote(spec.Path.Value); err == nil && p == importPath {
			return true
		}
	}
	return false
}

// cycle checks the import the replaced source adds. The container may
// import the source package itself, which closes the cycle right away.
func (ex *extraction) cycle(da *analysis.DependencyAnalyzer) (types.Issue, bool) {
	from, to := ex.pkg.ImportPath, ex.target.importPath
	var cycle []string
	if ex.hasImport(from) {
		cycle = []string{from, to, from}
	} else if c, ok := da.WouldCreateCycle(from, to); ok {
		cycle = c
	}
	if cycle == nil {
		return types.Issue{}, false
	}
	return types.Issue{
		Type:        types.IssueImportCycle,
		Description: fmt.Sprintf("%s: import cycle %s", types.CyclicDependency, strings.Join(cycle, " -> ")),
		File:        ex.file.Path,
		Line:        ex.checked.Fset.Position(ex.pos).Line,
		Severity:    types.Error,
	}, true
}

func (ex *extraction) records(summary *accessbridge.Summary) []types.BridgeRecord {
	var records []types.BridgeRecord
	for _, b := range summary.Bridged {
		records = append(records, types.BridgeRecord{
			Kind:   b.Kind.String(),
			Member: b.Member,
			File:   b.Pos.Filename,
			Line:   b.Pos.Line,
			Column: b.Pos.Column,
			Bridge: b.Name,
		})
	}
	for _, s := range summary.Skipped {
		records = append(records, types.BridgeRecord{
			Kind:    s.Kind.String(),
			Member:  s.Member,
			File:    s.Pos.Filename,
			Line:    s.Pos.Line,
			Column:  s.Pos.Column,
			Skipped: s.Reason,
		})
	}
	for _, r := range summary.Manual {
		records = append(records, types.BridgeRecord{
			Kind:   "reference",
			Member: r.Name,
			File:   r.Pos.Filename,
			Line:   r.Pos.Line,
			Column: r.Pos.Column,
			Manual: true,
		})
	}
	return records
}

func (ex *extraction) issues(summary *accessbridge.Summary) []types.Issue {
	var issues []types.Issue
	for _, s := range summary.Skipped {
		severity := types.Warning
		if errors.Is(s.Err, accessbridge.ErrIncomplete) {
			severity = types.Error
		}
		issues = append(issues, types.Issue{
			Type:        types.IssueManualAccess,
			Description: fmt.Sprintf("%s %s was not bridged: %s", s.Kind, s.Member, s.Reason),
			File:        s.Pos.Filename,
			Line:        s.Pos.Line,
			Severity:    severity,
		})
	}
	for _, r := range summary.Manual {
		issues = append(issues, types.Issue{
			Type:        types.IssueManualAccess,
			Description: fmt.Sprintf("%s is not accessible from package %s", r.Name, ex.target.name),
			File:        r.Pos.Filename,
			Line:        r.Pos.Line,
			Severity:    types.Warning,
		})
	}
	return issues
}

func lineIndent(src []byte, offset int) string {
	start := bytes.LastIndexByte(src[:offset], '\n') + 1
	indent := src[start:offset]
	if i := bytes.IndexFunc(indent, func(r rune) bool { return r != ' ' && r != '\t' }); i >= 0 {
		indent = indent[:i]
	}
	return string(indent)
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

func uniqueStrings(values ...string) []string {
	var out []string
	for _, v := range values {
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}
