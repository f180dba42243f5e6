// Package analyzer extracts the import/export surface of one parsed module
// and rewrites the module in place: namespace imports whose every use is a
// static member access are split into named imports ("deglobbing"), and all
// identifiers that refer to module-level bindings are colorized with the
// module's local mark so that merging modules cannot collide same-spelled
// names.
package analyzer

import (
	"fmt"
	"sort"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/token"
	"github.com/sirupsen/logrus"

	"github.com/spackle-js/spackle/internal/astutil"
	"github.com/spackle-js/spackle/internal/mark"
	"github.com/spackle-js/spackle/internal/scope"
)

// Hook is the capability the bundler exposes back to the analyzer. It is a
// registry view: resolution never errors here (a miss is just "not ours"),
// and module info allocation is idempotent.
type Hook interface {
	IsExternal(specifier string) bool
	Resolve(from scope.FileName, specifier string) (scope.FileName, bool)
	ModuleInfo(path scope.FileName) (scope.ModuleID, mark.Mark, mark.Mark)
	SupportsCJS() bool
	MarkCJS(id scope.ModuleID)
	MarkWrapRequired(id scope.ModuleID)
}

// Analyze runs the two-phase walk over prog. It returns the raw import
// record, the identifier mark table, and the module's export table in
// source order. The AST is mutated: deglobbed member accesses are replaced
// and marks recorded for every module-level identifier.
func Analyze(hook Hook, path scope.FileName, prog *ast.Program, localMark mark.Mark, log logrus.FieldLogger) (*scope.RawImports, mark.Table, []scope.Export, error) {
	h := &importHandler{
		hook:      hook,
		path:      path,
		localMark: localMark,
		log:       log,
		info:      scope.NewRawImports(),
		marks:     make(mark.Table),
		usages:    make(map[string]*usage),
		nsIdents:  make(map[string]string),
		locals:    make(map[string]bool),
		ignore:    make(map[*ast.Identifier]bool),
		topReqs:   make(map[*ast.CallExpression]bool),
	}

	if err := h.collect(prog); err != nil {
		return nil, nil, nil, err
	}
	h.decideDeglob()
	h.rewrite(prog)
	h.colorize(prog)

	return h.info, h.marks, h.exports, nil
}

// usage accumulates how one namespace-imported identifier is used. A single
// non-member use anywhere in the module disqualifies deglobbing, which is
// why collection must finish before any rewriting starts.
type usage struct {
	memberBase bool
	valueUse   bool
	assigned   bool
	dynamic    bool
	members    []string
	memberSet  map[string]bool
}

func (u *usage) addMember(name string) {
	u.memberBase = true
	if u.memberSet == nil {
		u.memberSet = make(map[string]bool)
	}
	if !u.memberSet[name] {
		u.memberSet[name] = true
		u.members = append(u.members, name)
	}
}

type importHandler struct {
	hook      Hook
	path      scope.FileName
	localMark mark.Mark
	log       logrus.FieldLogger

	info    *scope.RawImports
	marks   mark.Table
	exports []scope.Export

	// nsIdents maps namespace-bound local names to their specifier source.
	nsIdents map[string]string
	usages   map[string]*usage

	// locals is the set of module-level names: top-level declarations plus
	// import bindings. Only identifiers with these spellings are marked.
	locals map[string]bool

	// ignore holds identifier nodes that are not value references (member
	// property names, non-computed keys, labels).
	ignore map[*ast.Identifier]bool

	// topReqs holds require() calls recorded from the top-level statement
	// scan; any require call seen outside this set forces wrapping.
	topReqs map[*ast.CallExpression]bool

	deglob     map[string]bool
	hasDefault bool

	funcDepth int
}

// ── Phase 1: collect ────────────────────────────────────────────────────

func (h *importHandler) collect(prog *ast.Program) error {
	for _, st := range prog.Body {
		switch st := st.(type) {
		case *ast.ImportDeclaration:
			h.collectImport(st)
		case *ast.ExportDeclaration:
			if err := h.collectExport(st); err != nil {
				return err
			}
		default:
			h.collectTopLevelDecl(st)
			if h.hook.SupportsCJS() {
				h.collectTopLevelRequire(st)
			}
		}
	}
	astutil.Walk(h, prog)
	return nil
}

func (h *importHandler) collectImport(decl *ast.ImportDeclaration) {
	src := importSource(decl)
	spec := scope.Specifier{Source: src}
	h.resolveInto(&spec.Resolved, &spec.External, &spec.Unresolvable, src)

	clause := decl.ImportClause
	if clause == nil {
		spec.Bindings = append(spec.Bindings, scope.Binding{Kind: scope.BindBare})
	} else {
		if def := clause.ImportedDefaultBinding; def != nil {
			local := string(def.Name)
			spec.Bindings = append(spec.Bindings, scope.Binding{Kind: scope.BindDefault, Orig: "default", Local: local})
			h.recordLocal(local, spec, "default", scope.BindDefault)
		}
		if ns := clause.NameSpaceImport; ns != nil {
			local := string(ns.ImportedBinding)
			spec.Bindings = append(spec.Bindings, scope.Binding{Kind: scope.BindNamespace, Local: local})
			h.recordLocal(local, spec, "", scope.BindNamespace)
			h.nsIdents[local] = src
			h.usages[local] = &usage{}
		}
		if named := clause.NamedImports; named != nil {
			for _, imp := range named.ImportsList {
				orig := string(imp.IdentifierName)
				local := orig
				if imp.Alias != "" {
					local = string(imp.Alias)
				}
				spec.Bindings = append(spec.Bindings, scope.Binding{Kind: scope.BindNamed, Orig: orig, Local: local})
				h.recordLocal(local, spec, orig, scope.BindNamed)
			}
		}
	}
	h.info.Specifiers = append(h.info.Specifiers, spec)
}

func (h *importHandler) recordLocal(local string, spec scope.Specifier, orig string, kind scope.BindingKind) {
	h.locals[local] = true
	if spec.External || spec.Unresolvable {
		return
	}
	id, _, _ := h.hook.ModuleInfo(spec.Resolved)
	h.info.LocalToSource[local] = scope.ImportedName{From: id, Orig: orig, Kind: kind}
}

func (h *importHandler) collectExport(decl *ast.ExportDeclaration) error {
	// Re-export forms are kept verbatim; the chunker expands them against
	// the source module's export table.
	if decl.FromClause != nil {
		src := string(decl.FromClause.ModuleSpecifier)
		fwd := scope.Forward{Source: src}
		h.resolveInto(&fwd.Resolved, &fwd.External, &fwd.Unresolvable, src)
		if decl.NamedExports != nil {
			for _, e := range decl.NamedExports.ExportsList {
				alias := string(e.Alias)
				if alias == "" {
					alias = string(e.IdentifierName)
				}
				fwd.Names = append(fwd.Names, scope.ForwardName{Orig: string(e.IdentifierName), Alias: alias})
			}
		} else {
			fwd.All = true
		}
		h.info.Forwards = append(h.info.Forwards, fwd)
		return nil
	}

	switch {
	case decl.Variable != nil:
		for _, b := range decl.Variable.List {
			for _, name := range bindingNames(b) {
				h.addExport(name, name)
				h.locals[name] = true
			}
		}
	case decl.LexicalDeclaration != nil:
		for _, b := range decl.LexicalDeclaration.List {
			for _, name := range bindingNames(b) {
				h.addExport(name, name)
				h.locals[name] = true
			}
		}
	case decl.HoistableDeclaration != nil:
		name := "__default"
		if fn := decl.HoistableDeclaration.Function; fn != nil && fn.Name != nil {
			name = string(fn.Name.Name)
		}
		h.locals[name] = true
		if decl.IsDefault {
			if err := h.noteDefault(); err != nil {
				return err
			}
			h.addExport("default", name)
		} else {
			h.addExport(name, name)
		}
	case decl.ClassDeclaration != nil:
		name := "__default"
		if cls := decl.ClassDeclaration.Class; cls != nil && cls.Name != nil {
			name = string(cls.Name.Name)
		}
		h.locals[name] = true
		if decl.IsDefault {
			if err := h.noteDefault(); err != nil {
				return err
			}
			h.addExport("default", name)
		} else {
			h.addExport(name, name)
		}
	case decl.AssignExpression != nil:
		if err := h.noteDefault(); err != nil {
			return err
		}
		h.locals["__default"] = true
		h.addExport("default", "__default")
	case decl.NamedExports != nil:
		for _, e := range decl.NamedExports.ExportsList {
			alias := string(e.Alias)
			if alias == "" {
				alias = string(e.IdentifierName)
			}
			h.addExport(alias, string(e.IdentifierName))
		}
	}
	return nil
}

func (h *importHandler) noteDefault() error {
	if h.hasDefault {
		return fmt.Errorf("%s: duplicate default export", h.path)
	}
	h.hasDefault = true
	return nil
}

func (h *importHandler) addExport(name, local string) {
	h.exports = append(h.exports, scope.Export{Name: name, Local: local})
}

func (h *importHandler) collectTopLevelDecl(st ast.Statement) {
	switch st := st.(type) {
	case *ast.VariableStatement:
		for _, b := range st.List {
			for _, name := range bindingNames(b) {
				h.locals[name] = true
			}
		}
	case *ast.LexicalDeclaration:
		for _, b := range st.List {
			for _, name := range bindingNames(b) {
				h.locals[name] = true
			}
		}
	case *ast.FunctionDeclaration:
		if st.Function.Name != nil {
			h.locals[string(st.Function.Name.Name)] = true
		}
	case *ast.ClassDeclaration:
		if st.Class.Name != nil {
			h.locals[string(st.Class.Name.Name)] = true
		}
	}
}

// collectTopLevelRequire records the two hoistable require shapes:
// `require("m")` as an expression statement and `var x = require("m")`.
func (h *importHandler) collectTopLevelRequire(st ast.Statement) {
	switch st := st.(type) {
	case *ast.ExpressionStatement:
		if call, src := requireCall(st.Expression); call != nil {
			h.addRequire(call, src, "")
		}
	case *ast.VariableStatement:
		for _, b := range st.List {
			h.requireBinding(b)
		}
	case *ast.LexicalDeclaration:
		for _, b := range st.List {
			h.requireBinding(b)
		}
	}
}

func (h *importHandler) requireBinding(b *ast.Binding) {
	call, src := requireCall(b.Initializer)
	if call == nil {
		return
	}
	if id, ok := b.Target.(*ast.Identifier); ok {
		h.addRequire(call, src, string(id.Name))
	}
}

func (h *importHandler) addRequire(call *ast.CallExpression, src, local string) {
	h.topReqs[call] = true
	spec := scope.Specifier{Source: src}
	h.resolveInto(&spec.Resolved, &spec.External, &spec.Unresolvable, src)
	binding := scope.Binding{Kind: scope.BindRequire, Local: local}
	spec.Bindings = append(spec.Bindings, binding)
	if local != "" {
		h.recordLocal(local, spec, "", scope.BindRequire)
	}
	h.info.Specifiers = append(h.info.Specifiers, spec)
}

func (h *importHandler) resolveInto(resolved *scope.FileName, external, unresolvable *bool, src string) {
	if h.hook.IsExternal(src) {
		*external = true
		return
	}
	target, ok := h.hook.Resolve(h.path, src)
	if !ok {
		*unresolvable = true
		return
	}
	if target.Kind == scope.FileCustom {
		// Builtins resolve to synthetic names; they are never loaded and
		// survive as imports of the original specifier.
		*external = true
		return
	}
	*resolved = target
}

// Enter implements astutil.Visitor for the collect walk.
func (h *importHandler) Enter(n ast.Node) bool {
	switch n := n.(type) {
	case *ast.FunctionLiteral, *ast.ArrowFunctionLiteral:
		h.funcDepth++
	case *ast.LabelledStatement:
		h.ignore[n.Label] = true
	case *ast.BranchStatement:
		if n.Label != nil {
			h.ignore[n.Label] = true
		}
	case *ast.DotExpression:
		h.ignore[&n.Identifier] = true
		if base, ok := n.Left.(*ast.Identifier); ok {
			if u := h.usages[string(base.Name)]; u != nil {
				u.addMember(string(n.Identifier.Name))
				h.ignore[base] = true
			}
		}
	case *ast.BracketExpression:
		if base, ok := n.Left.(*ast.Identifier); ok {
			if u := h.usages[string(base.Name)]; u != nil {
				// Dynamic property access disqualifies deglobbing; the
				// namespace object must be materialized.
				u.dynamic = true
				h.ignore[base] = true
			}
		}
	case *ast.PropertyKeyed:
		if !n.Computed {
			if key, ok := n.Key.(*ast.Identifier); ok {
				h.ignore[key] = true
			}
		}
	case *ast.MethodDefinition:
		if !n.Computed {
			if key, ok := n.Key.(*ast.Identifier); ok {
				h.ignore[key] = true
			}
		}
	case *ast.FieldDefinition:
		if !n.Computed {
			if key, ok := n.Key.(*ast.Identifier); ok {
				h.ignore[key] = true
			}
		}
	case *ast.AssignExpression:
		h.noteAssignTarget(n.Left)
	case *ast.UnaryExpression:
		if n.Operator == token.INCREMENT || n.Operator == token.DECREMENT {
			h.noteAssignTarget(n.Operand)
		}
	case *ast.CallExpression:
		if !h.hook.SupportsCJS() || h.topReqs[n] {
			break
		}
		if _, src := requireCall(n); src != "" {
			// A require below the top level is still an import edge, but
			// the module can no longer be merged as plain statements.
			h.addRequire(n, src, "")
			h.markWrapping("require outside the top level")
		} else if isRequireIdent(n.Callee) {
			h.markWrapping("require with a non-literal argument")
		}
	case *ast.Identifier:
		if h.ignore[n] {
			return true
		}
		if u := h.usages[string(n.Name)]; u != nil {
			u.valueUse = true
		}
	}
	return true
}

// Exit implements astutil.Visitor.
func (h *importHandler) Exit(n ast.Node) {
	switch n.(type) {
	case *ast.FunctionLiteral, *ast.ArrowFunctionLiteral:
		h.funcDepth--
	}
}

func (h *importHandler) noteAssignTarget(left ast.Expression) {
	switch left := left.(type) {
	case *ast.Identifier:
		if u := h.usages[string(left.Name)]; u != nil {
			u.assigned = true
		}
	case *ast.DotExpression:
		if base, ok := left.Left.(*ast.Identifier); ok {
			if u := h.usages[string(base.Name)]; u != nil {
				// Writing through the namespace makes it an object we must
				// keep; imports stay read-only and invalid writes surface
				// at runtime, not here.
				u.assigned = true
			}
		}
	}
}

func (h *importHandler) markWrapping(why string) {
	id, _, _ := h.hook.ModuleInfo(h.path)
	h.hook.MarkWrapRequired(id)
	h.log.WithField("module", h.path.String()).Debugf("wrapping required: %s", why)
}

// ── Deglob decision ─────────────────────────────────────────────────────

func (h *importHandler) decideDeglob() {
	h.deglob = make(map[string]bool)
	names := make([]string, 0, len(h.nsIdents))
	for name := range h.nsIdents {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		u := h.usages[name]
		if u == nil || !u.memberBase || u.valueUse || u.assigned || u.dynamic {
			continue
		}
		h.deglob[name] = true
		h.info.IdentsToDeglob[name] = append([]string(nil), u.members...)
		h.log.WithField("module", h.path.String()).
			Debugf("deglobbed namespace %q into %d named imports", name, len(u.members))
	}
}

// ── Phase 2: rewrite ────────────────────────────────────────────────────

// rewrite replaces every `ns.x` of a deglob-eligible namespace with the
// deterministic identifier `ns$x` carrying the local mark, and swaps the
// namespace binding in the specifier record for the equivalent named
// bindings.
func (h *importHandler) rewrite(prog *ast.Program) {
	if len(h.deglob) > 0 {
		astutil.RewriteExpressions(prog, func(e ast.Expression) ast.Expression {
			dot, ok := e.(*ast.DotExpression)
			if !ok {
				return e
			}
			base, ok := dot.Left.(*ast.Identifier)
			if !ok || !h.deglob[string(base.Name)] {
				return e
			}
			repl := astutil.Ident(deglobName(string(base.Name), string(dot.Identifier.Name)))
			h.marks.Apply(repl, h.localMark)
			return repl
		})
	}

	for si := range h.info.Specifiers {
		spec := &h.info.Specifiers[si]
		var out []scope.Binding
		for _, b := range spec.Bindings {
			if b.Kind != scope.BindNamespace || !h.deglob[b.Local] {
				out = append(out, b)
				continue
			}
			for _, member := range h.info.IdentsToDeglob[b.Local] {
				local := deglobName(b.Local, member)
				out = append(out, scope.Binding{Kind: scope.BindNamed, Orig: member, Local: local})
				h.locals[local] = true
				h.recordLocal(local, *spec, member, scope.BindNamed)
			}
			delete(h.locals, b.Local)
			delete(h.info.LocalToSource, b.Local)
		}
		spec.Bindings = out
	}
}

// colorize applies the local mark to every identifier that refers to a
// module-level binding. All occurrences of a spelling are marked alike, so
// the eventual rename is a whole-module alpha-conversion that preserves
// shadowing structure.
func (h *importHandler) colorize(prog *ast.Program) {
	c := &colorizer{h: h}
	astutil.Walk(c, prog)
}

type colorizer struct {
	h *importHandler
}

func (c *colorizer) Enter(n ast.Node) bool {
	h := c.h
	switch n := n.(type) {
	case *ast.LabelledStatement:
		h.ignore[n.Label] = true
	case *ast.BranchStatement:
		if n.Label != nil {
			h.ignore[n.Label] = true
		}
	case *ast.DotExpression:
		h.ignore[&n.Identifier] = true
	case *ast.PropertyKeyed:
		if !n.Computed {
			if key, ok := n.Key.(*ast.Identifier); ok {
				h.ignore[key] = true
			}
		}
	case *ast.MethodDefinition:
		if !n.Computed {
			if key, ok := n.Key.(*ast.Identifier); ok {
				h.ignore[key] = true
			}
		}
	case *ast.FieldDefinition:
		if !n.Computed {
			if key, ok := n.Key.(*ast.Identifier); ok {
				h.ignore[key] = true
			}
		}
	case *ast.Identifier:
		if h.ignore[n] {
			return true
		}
		if h.locals[string(n.Name)] {
			h.marks.Apply(n, h.localMark)
		}
	}
	return true
}

func (c *colorizer) Exit(ast.Node) {}

// ── Helpers ─────────────────────────────────────────────────────────────

// deglobName builds the deterministic replacement identifier for ns.member.
func deglobName(ns, member string) string {
	return ns + "$" + member
}

func importSource(decl *ast.ImportDeclaration) string {
	if decl.FromClause != nil {
		return string(decl.FromClause.ModuleSpecifier)
	}
	return string(decl.ModuleSpecifier)
}

// requireCall matches `require(<string literal>)` and returns the call and
// the literal.
func requireCall(e ast.Expression) (*ast.CallExpression, string) {
	call, ok := e.(*ast.CallExpression)
	if !ok || !isRequireIdent(call.Callee) || len(call.ArgumentList) != 1 {
		return nil, ""
	}
	lit, ok := call.ArgumentList[0].(*ast.StringLiteral)
	if !ok {
		return nil, ""
	}
	return call, string(lit.Value)
}

func isRequireIdent(e ast.Expression) bool {
	id, ok := e.(*ast.Identifier)
	return ok && string(id.Name) == "require"
}

// bindingNames returns the declared names of a binding, descending into
// destructuring patterns.
func bindingNames(b *ast.Binding) []string {
	var names []string
	collectPatternNames(b.Target, &names)
	return names
}

func collectPatternNames(t ast.BindingTarget, names *[]string) {
	switch t := t.(type) {
	case *ast.Identifier:
		*names = append(*names, string(t.Name))
	case *ast.ObjectPattern:
		for _, p := range t.Properties {
			switch p := p.(type) {
			case *ast.PropertyShort:
				*names = append(*names, string(p.Name.Name))
			case *ast.PropertyKeyed:
				if tgt, ok := p.Value.(ast.BindingTarget); ok {
					collectPatternNames(tgt, names)
				}
			}
		}
		if rest, ok := t.Rest.(ast.BindingTarget); ok {
			collectPatternNames(rest, names)
		}
	case *ast.ArrayPattern:
		for _, el := range t.Elements {
			if tgt, ok := el.(ast.BindingTarget); ok {
				collectPatternNames(tgt, names)
			}
		}
		if rest, ok := t.Rest.(ast.BindingTarget); ok {
			collectPatternNames(rest, names)
		}
	}
}
