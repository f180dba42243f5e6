package chunker

import (
	"fmt"
	"strings"

	"github.com/dop251/goja/ast"

	"github.com/spackle-js/spackle/internal/astutil"
	"github.com/spackle-js/spackle/internal/mark"
	"github.com/spackle-js/spackle/internal/scope"
)

// Synthesized identifier spellings. Spellings repeat across modules; the
// per-module export mark keeps them distinct until the hygiene pass picks
// final names.
const (
	nsObjectName  = "__ns"
	modCacheName  = "__modcache"
	modInitName   = "__modinit"
	defaultExport = "__default"
)

// reexportDepthLimit bounds `export * from` chains. Deeper chains are
// almost certainly an accident; the visited set already breaks true cycles.
const reexportDepthLimit = 32

// merger accumulates one bundle.
type merger struct {
	chunker *Chunker
	bundle  *Bundle

	included map[scope.ModuleID]bool
	nsNeeded map[scope.ModuleID]bool
	extSeen  map[string]int
}

// exportRef says how to reference one exported name of a module from
// sibling top-level code in the same bundle.
type exportRef struct {
	// spelling/ctx reference a synthesized export alias directly.
	spelling string
	ctx      mark.Mark
	// viaInit accesses a CommonJS module's export object at runtime.
	viaInit *taken
	member  string
}

// refExpr builds a fresh reference expression. Fresh nodes every call: the
// mark table keys on identifier pointers.
func (m *merger) refExpr(r exportRef) ast.Expression {
	if r.viaInit != nil {
		init := astutil.Ident(modInitName)
		m.bundle.Marks.Apply(init, r.viaInit.exportMark)
		call := astutil.Call(init)
		if r.member == "" {
			return call
		}
		return astutil.Member(call, r.member)
	}
	id := astutil.Ident(r.spelling)
	m.bundle.Marks.Apply(id, r.ctx)
	return id
}

// emitModule lowers one module into bundle statements: link declarations
// for its imports, the (possibly wrapped) body, export aliases, and the
// namespace object when something consumes the module as a value.
func (m *merger) emitModule(t *taken) ([]ast.Statement, error) {
	var out []ast.Statement
	m.bundle.Marks.Merge(t.marks)

	links, err := m.emitLinks(t)
	if err != nil {
		return nil, err
	}
	out = append(out, links...)

	body, err := m.lowerBody(t)
	if err != nil {
		return nil, err
	}

	if t.wrapped || t.cjs {
		out = append(out, m.wrapBody(t, body)...)
	} else {
		out = append(out, body...)
	}

	aliases, err := m.emitAliases(t)
	if err != nil {
		return nil, err
	}
	out = append(out, aliases...)

	if m.nsNeeded[t.id] && !t.cjs {
		out = append(out, m.emitNamespaceObject(t))
	}
	return out, nil
}

// emitLinks synthesizes `var local = alias` declarations connecting this
// module's imported bindings to the exporters merged earlier in the body.
func (m *merger) emitLinks(t *taken) ([]ast.Statement, error) {
	var out []ast.Statement
	for _, spec := range t.imports.Specifiers {
		if spec.External || spec.Unresolvable {
			if spec.External {
				m.addExternal(t, spec)
			}
			continue
		}
		targetID := m.chunker.scope.Get(spec.Resolved).ID
		if libName, isLib := m.chunker.libs[targetID]; isLib && !m.included[targetID] {
			// Lazy-loaded libraries are split into their own bundle; the
			// importer keeps an external edge keyed by the lib's name.
			ext := spec
			ext.Source = libName
			m.addExternal(t, ext)
			continue
		}
		target, err := m.chunker.take(targetID)
		if err != nil {
			return nil, err
		}
		for _, b := range spec.Bindings {
			var ref exportRef
			switch b.Kind {
			case scope.BindBare:
				continue
			case scope.BindNamespace, scope.BindRequire:
				if b.Local == "" {
					// Bare require: the body is already merged ahead of us;
					// a wrapped target is forced eagerly for its effects.
					if target.wrapped || target.cjs {
						out = append(out, astutil.ExprStmt(m.refExpr(exportRef{viaInit: target})))
					}
					continue
				}
				ref = m.namespaceRef(target)
			default:
				r, err := m.chunker.resolveExport(target, b.Orig, nil, 0)
				if err != nil {
					return nil, fmt.Errorf("import of %q: %w", b.Local, err)
				}
				ref = r
			}
			local := astutil.Ident(b.Local)
			m.bundle.Marks.Apply(local, t.localMark)
			link := astutil.VarDecl(local, m.refExpr(ref))
			m.bundle.Injected[link] = true
			out = append(out, link)
		}
	}
	return out, nil
}

func (m *merger) namespaceRef(target *taken) exportRef {
	if target.cjs {
		return exportRef{viaInit: target}
	}
	return exportRef{spelling: nsObjectName, ctx: target.exportMark}
}

// lowerBody rewrites a module's top-level statements for merging: import
// declarations vanish, export declarations become plain declarations, and
// statements that were internal require edges are dropped in favor of the
// link declarations already emitted.
func (m *merger) lowerBody(t *taken) ([]ast.Statement, error) {
	var out []ast.Statement
	for _, st := range t.prog.Body {
		switch st := st.(type) {
		case *ast.ImportDeclaration:
			continue
		case *ast.ExportDeclaration:
			lowered := m.lowerExport(t, st)
			if lowered != nil {
				out = append(out, lowered)
			}
		case *ast.ExpressionStatement:
			if m.isInternalRequire(t, st.Expression) {
				continue
			}
			out = append(out, st)
		case *ast.VariableStatement:
			if kept := m.stripRequireBindings(t, st.List); kept != nil {
				st.List = kept
				out = append(out, st)
			}
		case *ast.LexicalDeclaration:
			if kept := m.stripRequireBindings(t, st.List); kept != nil {
				st.List = kept
				out = append(out, st)
			}
		default:
			out = append(out, st)
		}
	}
	return out, nil
}

func (m *merger) lowerExport(t *taken, decl *ast.ExportDeclaration) ast.Statement {
	switch {
	case decl.FromClause != nil:
		// Re-export: no code of its own; the export aliases cover it.
		return nil
	case decl.Variable != nil:
		return decl.Variable
	case decl.LexicalDeclaration != nil:
		return decl.LexicalDeclaration
	case decl.HoistableDeclaration != nil:
		return decl.HoistableDeclaration
	case decl.ClassDeclaration != nil:
		return decl.ClassDeclaration
	case decl.AssignExpression != nil:
		target := astutil.Ident(defaultExport)
		m.bundle.Marks.Apply(target, t.localMark)
		return astutil.ConstDecl(target, decl.AssignExpression)
	default:
		// `export {a as b}` declares nothing.
		return nil
	}
}

// isInternalRequire matches a bare `require("m")` whose target is merged
// into this bundle.
func (m *merger) isInternalRequire(t *taken, e ast.Expression) bool {
	call, ok := e.(*ast.CallExpression)
	if !ok || len(call.ArgumentList) != 1 {
		return false
	}
	if id, ok := call.Callee.(*ast.Identifier); !ok || string(id.Name) != "require" {
		return false
	}
	lit, ok := call.ArgumentList[0].(*ast.StringLiteral)
	if !ok {
		return false
	}
	return m.specifierIsInternal(t, string(lit.Value))
}

func (m *merger) specifierIsInternal(t *taken, source string) bool {
	for _, spec := range t.imports.Specifiers {
		if spec.Source == source {
			return !spec.External && !spec.Unresolvable
		}
	}
	return false
}

// stripRequireBindings drops `x = require("m")` bindings whose target is
// internal; the link declaration replaces them. Returns nil when nothing
// of the statement survives.
func (m *merger) stripRequireBindings(t *taken, list []*ast.Binding) []*ast.Binding {
	var kept []*ast.Binding
	for _, b := range list {
		if call, ok := b.Initializer.(*ast.CallExpression); ok && len(call.ArgumentList) == 1 {
			if id, ok := call.Callee.(*ast.Identifier); ok && string(id.Name) == "require" {
				if lit, ok := call.ArgumentList[0].(*ast.StringLiteral); ok &&
					m.specifierIsInternal(t, string(lit.Value)) {
					continue
				}
			}
		}
		kept = append(kept, b)
	}
	return kept
}

// emitAliases synthesizes `var <alias> = <local>` for every effective
// export of the module. Aliases carry the export mark; they are the only
// names importers link against, which is what makes dependency cycles and
// re-export chains safe.
func (m *merger) emitAliases(t *taken) ([]ast.Statement, error) {
	if t.cjs {
		// CommonJS exports are runtime state; importers go through the
		// init function instead.
		return nil, nil
	}
	var out []ast.Statement
	for _, name := range m.chunker.effectiveExportNames(t, nil, 0) {
		alias := astutil.Ident(aliasSpelling(name))
		m.bundle.Marks.Apply(alias, t.exportMark)

		var init ast.Expression
		if local, ok := ownExportLocal(t, name); ok {
			if t.wrapped {
				init = m.refExpr(exportRef{viaInit: t, member: name})
			} else {
				localID := astutil.Ident(local)
				m.bundle.Marks.Apply(localID, t.localMark)
				init = localID
			}
		} else {
			ref, err := m.chunker.forwardedExport(t, name)
			if err != nil {
				return nil, err
			}
			init = m.refExpr(ref)
		}
		decl := astutil.VarDecl(alias, init)
		m.bundle.Injected[decl] = true
		out = append(out, decl)
	}
	return out, nil
}

// emitNamespaceObject synthesizes the object importers of `* as ns` (and
// top-level require) receive.
func (m *merger) emitNamespaceObject(t *taken) ast.Statement {
	nsID := astutil.Ident(nsObjectName)
	m.bundle.Marks.Apply(nsID, t.exportMark)

	var props []ast.Property
	for _, name := range m.chunker.effectiveExportNames(t, nil, 0) {
		ref := astutil.Ident(aliasSpelling(name))
		m.bundle.Marks.Apply(ref, t.exportMark)
		props = append(props, astutil.Prop(name, ref))
	}
	decl := astutil.VarDecl(nsID, astutil.Object(props...))
	m.bundle.Injected[decl] = true
	return decl
}

// wrapBody lowers a wrap-required or CommonJS module into a memoized init
// function. The module executes on first use instead of at merge position.
// A wrapped ES module's export aliases (emitted right after) force it
// eagerly, exactly where the unwrapped body would have run; a CommonJS
// module gets no export aliases, so it runs only on first use.
func (m *merger) wrapBody(t *taken, body []ast.Statement) []ast.Statement {
	cache := func() *ast.Identifier {
		id := astutil.Ident(modCacheName)
		m.bundle.Marks.Apply(id, t.exportMark)
		return id
	}
	initName := astutil.Ident(modInitName)
	m.bundle.Marks.Apply(initName, t.exportMark)

	var fnBody []ast.Statement
	fnBody = append(fnBody, &ast.IfStatement{
		Test:       cache(),
		Consequent: astutil.Return(cache()),
	})
	if t.cjs {
		// var module = { exports: {} }; var exports = module.exports;
		fnBody = append(fnBody,
			astutil.VarDecl(astutil.Ident("module"),
				astutil.Object(astutil.Prop("exports", astutil.Object()))),
			astutil.VarDecl(astutil.Ident("exports"),
				astutil.Member(astutil.Ident("module"), "exports")),
		)
	}
	fnBody = append(fnBody, body...)

	var result ast.Expression
	if t.cjs {
		result = astutil.Member(astutil.Ident("module"), "exports")
	} else {
		var props []ast.Property
		for _, exp := range t.exports {
			local := astutil.Ident(exp.Local)
			m.bundle.Marks.Apply(local, t.localMark)
			props = append(props, astutil.Prop(exp.Name, local))
		}
		result = astutil.Object(props...)
	}
	fnBody = append(fnBody,
		astutil.ExprStmt(astutil.Assign(cache(), result)),
		astutil.Return(cache()),
	)

	fn := astutil.Func(nil, fnBody)
	fn.Name = initName
	return []ast.Statement{
		astutil.VarDecl(cache(), nil),
		&ast.FunctionDeclaration{Function: fn},
	}
}

// addExternal records an external import surface in first-use order.
func (m *merger) addExternal(t *taken, spec scope.Specifier) {
	idx, seen := m.extSeen[spec.Source]
	if !seen {
		idx = len(m.bundle.Externals)
		m.extSeen[spec.Source] = idx
		m.bundle.Externals = append(m.bundle.Externals, External{Source: spec.Source})
	}
	ext := &m.bundle.Externals[idx]
	for _, b := range spec.Bindings {
		if b.Kind == scope.BindRequire {
			// External requires stay as calls in the body.
			continue
		}
		dup := false
		for i, prev := range ext.Bindings {
			if prev.Kind == b.Kind && prev.Orig == b.Orig && prev.Local == b.Local &&
				ext.Marks[i] == t.localMark {
				dup = true
				break
			}
		}
		if !dup {
			ext.Bindings = append(ext.Bindings, b)
			ext.Marks = append(ext.Marks, t.localMark)
		}
	}
}

// ── Export resolution ───────────────────────────────────────────────────

// effectiveExportNames returns the module's export surface: its own
// exports in source order, then names pulled in by re-export forwards.
// First occurrence wins on duplicates; `default` never crosses a wildcard.
func (c *Chunker) effectiveExportNames(t *taken, visited map[scope.ModuleID]bool, depth int) []string {
	if depth > reexportDepthLimit {
		c.log.WithField("module", t.name.String()).Debug("re-export chain too deep, truncated")
		return nil
	}
	if visited == nil {
		visited = make(map[scope.ModuleID]bool)
	}
	if visited[t.id] {
		return nil
	}
	visited[t.id] = true

	var names []string
	seen := make(map[string]bool)
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for _, exp := range t.exports {
		add(exp.Name)
	}
	for _, fwd := range t.imports.Forwards {
		if fwd.External || fwd.Unresolvable {
			continue
		}
		target, err := c.take(c.scope.Get(fwd.Resolved).ID)
		if err != nil {
			continue
		}
		if fwd.All {
			for _, name := range c.effectiveExportNames(target, visited, depth+1) {
				if name != "default" {
					add(name)
				}
			}
		} else {
			for _, fn := range fwd.Names {
				add(fn.Alias)
			}
		}
	}
	return names
}

// ownExportLocal finds the local identifier backing one of t's own
// exports.
func ownExportLocal(t *taken, name string) (string, bool) {
	for _, exp := range t.exports {
		if exp.Name == name {
			return exp.Local, true
		}
	}
	return "", false
}

// forwardedExport resolves name through t's forwards to a reference in the
// merged bundle.
func (c *Chunker) forwardedExport(t *taken, name string) (exportRef, error) {
	for _, fwd := range t.imports.Forwards {
		if fwd.External || fwd.Unresolvable {
			continue
		}
		target, err := c.take(c.scope.Get(fwd.Resolved).ID)
		if err != nil {
			return exportRef{}, err
		}
		if fwd.All {
			if ref, err := c.resolveExport(target, name, nil, 0); err == nil {
				return ref, nil
			}
			continue
		}
		for _, fn := range fwd.Names {
			if fn.Alias == name {
				return c.resolveExport(target, fn.Orig, nil, 0)
			}
		}
	}
	return exportRef{}, fmt.Errorf("%s does not re-export %q", t.name, name)
}

// resolveExport maps (module, export name) to a bundle reference: the
// export alias for ES modules, an init-function access for CommonJS.
func (c *Chunker) resolveExport(t *taken, name string, visited map[scope.ModuleID]bool, depth int) (exportRef, error) {
	if depth > reexportDepthLimit {
		return exportRef{}, fmt.Errorf("%s: re-export chain for %q too deep", t.name, name)
	}
	if visited == nil {
		visited = make(map[scope.ModuleID]bool)
	}
	if visited[t.id] {
		return exportRef{}, fmt.Errorf("%s: re-export cycle while resolving %q", t.name, name)
	}
	visited[t.id] = true

	if t.cjs {
		return exportRef{viaInit: t, member: name}, nil
	}
	if _, ok := ownExportLocal(t, name); ok {
		return exportRef{spelling: aliasSpelling(name), ctx: t.exportMark}, nil
	}
	for _, fwd := range t.imports.Forwards {
		if fwd.External || fwd.Unresolvable {
			continue
		}
		target, err := c.take(c.scope.Get(fwd.Resolved).ID)
		if err != nil {
			return exportRef{}, err
		}
		if fwd.All {
			if name == "default" {
				continue
			}
			if ref, err := c.resolveExport(target, name, visited, depth+1); err == nil {
				return ref, nil
			}
		} else {
			for _, fn := range fwd.Names {
				if fn.Alias == name {
					return c.resolveExport(target, fn.Orig, visited, depth+1)
				}
			}
		}
	}
	return exportRef{}, fmt.Errorf("%s does not export %q", t.name, name)
}

// aliasSpelling derives the synthesized alias identifier for an export
// name. "default" is not a valid identifier, and arbitrary string exports
// are legal in ES modules, so the spelling is sanitized; the export mark
// keeps sanitized collisions apart across modules, and the hygiene pass
// keeps them apart within one.
func aliasSpelling(name string) string {
	if name == "default" {
		return defaultExport
	}
	var b strings.Builder
	for i, r := range name {
		switch {
		case r == '_' || r == '$' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
