// Package finalizer turns merged bundles into emittable form. Three things
// happen here, in order: the synthesized link/alias temporaries are inlined
// away (union-find over identifier identities), injected declarations that
// ended up unreferenced are dropped, and every identifier whose identity
// still collides with a different identity of the same spelling is given a
// fresh unique spelling. Finally the output framing is applied: a bare ES
// program, or an IIFE with external imports threaded through its parameter
// list.
package finalizer

import (
	"strconv"

	"github.com/dop251/goja/ast"
	"github.com/sirupsen/logrus"

	"github.com/spackle-js/spackle/internal/astutil"
	"github.com/spackle-js/spackle/internal/chunker"
	"github.com/spackle-js/spackle/internal/config"
	"github.com/spackle-js/spackle/internal/mark"
	"github.com/spackle-js/spackle/internal/scope"
)

// ImportName is one binding of a re-synthesized external import.
type ImportName struct {
	Kind  scope.BindingKind
	Orig  string
	Local string // final spelling after hygiene
}

// ImportLine is one external import surviving at the bundle boundary.
type ImportLine struct {
	Source string
	Names  []ImportName
}

// ExportLine re-exports one entry-module name from an ES bundle.
type ExportLine struct {
	Local string // final spelling
	Name  string
}

// Result is an emittable bundle: the program plus the rename table the
// printer applies, with the module-boundary lines spelled out so the
// printer does not reconstruct ES module syntax from scratch.
type Result struct {
	Kind    chunker.BundleKind
	Name    string
	ID      scope.ModuleID
	Program *ast.Program
	Renames map[*ast.Identifier]string
	Imports []ImportLine
	Exports []ExportLine
}

// ident identity: a spelling plus the mark it carries. Two identifiers are
// the same variable exactly when their keys match after alias resolution.
type key struct {
	name string
	m    mark.Mark
}

// Finalizer applies hygiene and framing according to the output config.
type Finalizer struct {
	cfg *config.Config
	log logrus.FieldLogger
}

func New(cfg *config.Config, log logrus.FieldLogger) *Finalizer {
	return &Finalizer{cfg: cfg, log: log}
}

// Finalize processes each bundle independently.
func (f *Finalizer) Finalize(bundles []*chunker.Bundle) ([]*Result, error) {
	results := make([]*Result, 0, len(bundles))
	for _, b := range bundles {
		results = append(results, f.finalizeOne(b))
	}
	return results, nil
}

func (f *Finalizer) finalizeOne(b *chunker.Bundle) *Result {
	st := &state{
		bundle: b,
		parent: make(map[key]key),
	}

	if !f.cfg.DisableInliner {
		st.inlineAliases()
		st.dropDeadInjected()
	}
	st.rename()

	res := &Result{
		Kind:    b.Kind,
		Name:    b.Name,
		ID:      b.ID,
		Program: b.Program,
		Renames: st.renames,
	}
	f.frame(b, st, res)
	return res
}

// state carries the per-bundle hygiene bookkeeping.
type state struct {
	bundle *chunker.Bundle

	// parent is the union-find forest over identities; an entry maps an
	// alias to what it was declared equal to.
	parent map[key]key

	renames map[*ast.Identifier]string
	finals  map[key]string
}

func (s *state) keyOf(id *ast.Identifier) key {
	return key{name: string(id.Name), m: s.bundle.Marks.Of(id)}
}

func (s *state) find(k key) key {
	for {
		p, ok := s.parent[k]
		if !ok {
			return k
		}
		k = p
	}
}

// inlineAliases unions every injected `var a = b` pair where both sides
// are plain identifiers, then drops the declaration. This is what removes
// the link/alias temporaries and what makes cyclic imports reference each
// other directly.
func (s *state) inlineAliases() {
	var body []ast.Statement
	for _, stmt := range s.bundle.Program.Body {
		if target, init, ok := s.injectedAliasDecl(stmt); ok {
			tk := s.find(s.keyOf(target))
			ik := s.find(s.keyOf(init))
			if tk != ik {
				s.parent[tk] = ik
				continue
			}
			continue
		}
		body = append(body, stmt)
	}
	s.bundle.Program.Body = body
}

// injectedAliasDecl matches a synthesized single-binding `var <ident> =
// <ident>` declaration.
func (s *state) injectedAliasDecl(stmt ast.Statement) (target, init *ast.Identifier, ok bool) {
	if !s.bundle.Injected[stmt] {
		return nil, nil, false
	}
	decl, isVar := stmt.(*ast.VariableStatement)
	if !isVar || len(decl.List) != 1 {
		return nil, nil, false
	}
	b := decl.List[0]
	target, isID := b.Target.(*ast.Identifier)
	if !isID {
		return nil, nil, false
	}
	init, isID = b.Initializer.(*ast.Identifier)
	if !isID {
		return nil, nil, false
	}
	return target, init, true
}

// dropDeadInjected removes injected declarations whose declared identity
// is never used, iterating because removing a namespace object can orphan
// the aliases it referenced.
func (s *state) dropDeadInjected() {
	roots := make(map[key]bool)
	for _, exp := range s.bundle.EntryExports {
		roots[s.find(key{name: exp.Local, m: exp.LocalCtx})] = true
	}

	for {
		uses := make(map[key]int)
		declTargets := make(map[ast.Statement]key)
		for _, stmt := range s.bundle.Program.Body {
			target := s.injectedDeclTarget(stmt)
			if target != nil {
				declTargets[stmt] = s.find(s.keyOf(target))
			}
			astutil.Inspect(stmt, func(n ast.Node) bool {
				id, isID := n.(*ast.Identifier)
				if !isID || id == target {
					return true
				}
				uses[s.find(s.keyOf(id))]++
				return true
			})
		}

		removed := false
		var body []ast.Statement
		for _, stmt := range s.bundle.Program.Body {
			if k, isDecl := declTargets[stmt]; isDecl && uses[k] == 0 && !roots[k] {
				removed = true
				continue
			}
			body = append(body, stmt)
		}
		s.bundle.Program.Body = body
		if !removed {
			return
		}
	}
}

func (s *state) injectedDeclTarget(stmt ast.Statement) *ast.Identifier {
	if !s.bundle.Injected[stmt] {
		return nil
	}
	decl, isVar := stmt.(*ast.VariableStatement)
	if !isVar || len(decl.List) != 1 {
		return nil
	}
	target, isID := decl.List[0].Target.(*ast.Identifier)
	if !isID {
		return nil
	}
	return target
}

// rename assigns final spellings. An identity keeps its spelling when it
// is the only identity using it; otherwise marked identities get
// deterministic `name$N` suffixes in first-occurrence order. Unmarked
// identifiers (globals, locals of untouched scopes) are never renamed.
func (s *state) rename() {
	s.renames = make(map[*ast.Identifier]string)
	s.finals = make(map[key]string)

	// First walk: identity census in deterministic order.
	var order []key
	bySpelling := make(map[string][]key)
	seen := make(map[key]bool)
	taken := make(map[string]bool)
	astutil.Inspect(s.bundle.Program, func(n ast.Node) bool {
		id, isID := n.(*ast.Identifier)
		if !isID {
			return true
		}
		k := s.find(s.keyOf(id))
		if !seen[k] {
			seen[k] = true
			order = append(order, k)
			bySpelling[k.name] = append(bySpelling[k.name], k)
			taken[k.name] = true
		}
		return true
	})
	for _, exp := range s.bundle.EntryExports {
		k := s.find(key{name: exp.Local, m: exp.LocalCtx})
		if !seen[k] {
			seen[k] = true
			order = append(order, k)
			bySpelling[k.name] = append(bySpelling[k.name], k)
			taken[k.name] = true
		}
	}

	for _, k := range order {
		if k.m == mark.None || len(bySpelling[k.name]) == 1 {
			s.finals[k] = k.name
			continue
		}
		// Collides with a sibling identity: pick the first free suffix.
		n := 1
		for {
			candidate := pickName(k.name, n)
			if !taken[candidate] {
				taken[candidate] = true
				s.finals[k] = candidate
				break
			}
			n++
		}
	}

	// Second walk: record the nodes that changed spelling.
	astutil.Inspect(s.bundle.Program, func(n ast.Node) bool {
		id, isID := n.(*ast.Identifier)
		if !isID {
			return true
		}
		final := s.finals[s.find(s.keyOf(id))]
		if final != "" && final != string(id.Name) {
			s.renames[id] = final
		}
		return true
	})
}

// finalOf returns the emitted spelling for an identity.
func (s *state) finalOf(name string, m mark.Mark) string {
	k := s.find(key{name: name, m: m})
	if final, ok := s.finals[k]; ok && final != "" {
		return final
	}
	return name
}

func pickName(base string, n int) string {
	// `a$1`, `a$2`, … like the deglob spelling family.
	return base + "$" + strconv.Itoa(n)
}

// frame applies the output module type.
func (f *Finalizer) frame(b *chunker.Bundle, st *state, res *Result) {
	for _, ext := range b.Externals {
		line := ImportLine{Source: ext.Source}
		for i, binding := range ext.Bindings {
			if binding.Kind == scope.BindBare {
				continue
			}
			line.Names = append(line.Names, ImportName{
				Kind:  binding.Kind,
				Orig:  binding.Orig,
				Local: st.finalOf(binding.Local, ext.Marks[i]),
			})
		}
		res.Imports = append(res.Imports, line)
	}

	switch f.cfg.Module {
	case config.ModuleIIFE:
		f.frameIIFE(b, res)
	default:
		for _, exp := range b.EntryExports {
			res.Exports = append(res.Exports, ExportLine{
				Local: st.finalOf(exp.Local, exp.LocalCtx),
				Name:  exp.Name,
			})
		}
	}
}

// frameIIFE wraps the body in `(function(p…){ … })(require("…")…)`. Each
// external source becomes one parameter; the bindings are unpacked in a
// prologue. Entry exports are not surfaced; an IIFE bundle is consumed for
// its effects. Wrapped modules keep the function scope the chunker gave
// them either way.
func (f *Finalizer) frameIIFE(b *chunker.Bundle, res *Result) {
	var params []string
	var args []ast.Expression
	var prologue []ast.Statement

	for _, line := range res.Imports {
		paramName := iifeParamName(line.Source)
		params = append(params, paramName)
		args = append(args, astutil.Call(astutil.Ident("require"), astutil.Str(line.Source)))
		for _, name := range line.Names {
			var init ast.Expression
			switch name.Kind {
			case scope.BindNamespace:
				init = astutil.Ident(paramName)
			case scope.BindDefault:
				init = astutil.Member(astutil.Ident(paramName), "default")
			default:
				init = astutil.Member(astutil.Ident(paramName), name.Orig)
			}
			// Final spellings go in directly; synthesized nodes never hit
			// the rename table.
			prologue = append(prologue, astutil.VarDecl(astutil.Ident(name.Local), init))
		}
	}
	res.Imports = nil

	body := append(prologue, res.Program.Body...)
	res.Program = &ast.Program{Body: []ast.Statement{astutil.IIFE(params, body, args...)}}
}

func iifeParamName(source string) string {
	var bld []byte
	for _, r := range source {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			bld = append(bld, byte(r))
		} else {
			bld = append(bld, '_')
		}
	}
	return "__" + string(bld)
}
