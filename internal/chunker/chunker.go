// Package chunker assembles one bundle per entry module. It computes the
// entry's reachable set, merges module bodies in reverse topological order,
// drops internal import declarations, and synthesizes the link declarations
// that connect an importer's local bindings to the exporter's export-marked
// aliases. Externals survive untouched and are re-emitted by the finalizer.
package chunker

import (
	"fmt"
	"sort"

	"github.com/dop251/goja/ast"
	"github.com/sirupsen/logrus"

	"github.com/spackle-js/spackle/internal/astutil"
	"github.com/spackle-js/spackle/internal/mark"
	"github.com/spackle-js/spackle/internal/scope"
)

// BundleKind mirrors the three ways a bundle comes into being.
type BundleKind uint8

const (
	// KindNamed is a user-provided entry.
	KindNamed BundleKind = iota
	// KindDynamic is an auto-generated entry for a dynamic import. The
	// rewrite that would produce these is not implemented; the kind exists
	// so output framing stays stable when it is.
	KindDynamic
	// KindLib is a lazy-loaded shared library split out of its importers.
	KindLib
)

func (k BundleKind) String() string {
	switch k {
	case KindNamed:
		return "named"
	case KindDynamic:
		return "dynamic"
	case KindLib:
		return "lib"
	}
	return "unknown"
}

// External is one external import surface of a bundle, in first-use order.
type External struct {
	Source   string
	Bindings []scope.Binding
	// Marks carries the mark of each binding's local identifier so the
	// finalizer can re-synthesize import declarations that rename
	// consistently with the merged body.
	Marks []mark.Mark
}

// Bundle is one merged output unit.
type Bundle struct {
	Kind      BundleKind
	Name      string
	ID        scope.ModuleID
	Program   *ast.Program
	Marks     mark.Table
	Externals []External
	// Injected holds the synthesized link and alias declarations. Only
	// these are eligible for inlining and removal during finalization;
	// user statements are never touched.
	Injected map[ast.Statement]bool
	// EntryExports lists the entry module's exports with the alias
	// identifier spelling and mark each one resolves to, for ES framing.
	EntryExports []EntryExport
}

// EntryExport is one re-exported name of the entry module.
type EntryExport struct {
	Name     string
	Local    string
	LocalCtx mark.Mark
}

// Entry names one bundling root.
type Entry struct {
	Name string
	ID   scope.ModuleID
}

// taken is a module payload moved out of the registry, shared between the
// bundles of all entries that reach it.
type taken struct {
	id      scope.ModuleID
	name    scope.FileName
	prog    *ast.Program
	imports *scope.RawImports
	marks   mark.Table
	exports []scope.Export

	localMark  mark.Mark
	exportMark mark.Mark
	wrapped    bool
	cjs        bool
}

// Chunker builds bundles against one registry. A chunker takes each module
// out of the registry at most once and reuses the payload for every entry
// that reaches it.
type Chunker struct {
	scope *scope.Scope
	log   logrus.FieldLogger
	libs  map[scope.ModuleID]string

	takenByID map[scope.ModuleID]*taken
}

func New(s *scope.Scope, libs map[scope.ModuleID]string, log logrus.FieldLogger) *Chunker {
	return &Chunker{
		scope:     s,
		log:       log,
		libs:      libs,
		takenByID: make(map[scope.ModuleID]*taken),
	}
}

// Chunk builds one bundle per entry plus one per reachable lib module.
// Entries are processed in the given order; the merge order inside each
// bundle is a deterministic function of the reachable graph.
func (c *Chunker) Chunk(entries []Entry) ([]*Bundle, error) {
	var bundles []*Bundle
	libSeen := make(map[scope.ModuleID]bool)

	for _, entry := range entries {
		b, libIDs, err := c.chunkOne(entry.Name, entry.ID, KindNamed)
		if err != nil {
			return nil, fmt.Errorf("failed to bundle entry %q: %w", entry.Name, err)
		}
		bundles = append(bundles, b)
		for _, libID := range libIDs {
			if !libSeen[libID] {
				libSeen[libID] = true
				lb, _, err := c.chunkOne(c.libs[libID], libID, KindLib)
				if err != nil {
					return nil, fmt.Errorf("failed to bundle lib %q: %w", c.libs[libID], err)
				}
				bundles = append(bundles, lb)
			}
		}
	}
	return bundles, nil
}

func (c *Chunker) chunkOne(name string, entry scope.ModuleID, kind BundleKind) (*Bundle, []scope.ModuleID, error) {
	order, libIDs := c.mergeOrder(entry, kind)

	m := &merger{
		chunker: c,
		bundle: &Bundle{
			Kind: kind, Name: name, ID: entry,
			Marks:    make(mark.Table),
			Injected: make(map[ast.Statement]bool),
		},
		included: make(map[scope.ModuleID]bool),
		nsNeeded: make(map[scope.ModuleID]bool),
		extSeen:  make(map[string]int),
	}
	for _, id := range order {
		m.included[id] = true
	}

	// Namespace objects are only materialized for modules something still
	// consumes as an object (non-deglobbed namespace imports, require).
	for _, id := range order {
		t, err := c.take(id)
		if err != nil {
			return nil, nil, err
		}
		for _, spec := range t.imports.Specifiers {
			if spec.External || spec.Unresolvable {
				continue
			}
			target := c.scope.Get(spec.Resolved)
			for _, b := range spec.Bindings {
				if b.Kind == scope.BindNamespace || b.Kind == scope.BindRequire {
					m.nsNeeded[target.ID] = true
				}
			}
		}
	}

	var body []ast.Statement
	for _, id := range order {
		t, err := c.take(id)
		if err != nil {
			return nil, nil, err
		}
		stmts, err := m.emitModule(t)
		if err != nil {
			return nil, nil, err
		}
		body = append(body, stmts...)
	}

	entryTaken, err := c.take(entry)
	if err != nil {
		return nil, nil, err
	}
	if entryTaken.wrapped || entryTaken.cjs {
		// A wrapped entry would otherwise never run.
		init := astutil.Ident(modInitName)
		m.bundle.Marks.Apply(init, entryTaken.exportMark)
		body = append(body, astutil.ExprStmt(astutil.Call(init)))
	}
	if !entryTaken.cjs {
		// A CommonJS entry has no statically known export surface; the
		// bundle then exports nothing, matching a script entry.
		for _, expName := range c.effectiveExportNames(entryTaken, nil, 0) {
			m.bundle.EntryExports = append(m.bundle.EntryExports, EntryExport{
				Name:     expName,
				Local:    aliasSpelling(expName),
				LocalCtx: entryTaken.exportMark,
			})
		}
	}

	m.bundle.Program = &ast.Program{Body: body}
	return m.bundle, libIDs, nil
}

// mergeOrder returns the reachable set of entry in merge order: reverse
// topological, dependency cycles broken at the revisit, ties decided by
// ascending ModuleID so two runs produce byte-identical bundles. Lib
// modules are excluded and reported separately (unless the entry itself is
// the lib being bundled).
func (c *Chunker) mergeOrder(entry scope.ModuleID, kind BundleKind) ([]scope.ModuleID, []scope.ModuleID) {
	var order []scope.ModuleID
	var libIDs []scope.ModuleID
	visited := make(map[scope.ModuleID]bool)

	var visit func(id scope.ModuleID)
	visit = func(id scope.ModuleID) {
		if visited[id] {
			return
		}
		visited[id] = true
		if _, isLib := c.libs[id]; isLib && !(kind == KindLib && id == entry) {
			libIDs = append(libIDs, id)
			return
		}
		rec, ok := c.scope.Lookup(id)
		if !ok || rec.Imports == nil {
			order = append(order, id)
			return
		}
		var children []scope.ModuleID
		for _, spec := range rec.Imports.Specifiers {
			if spec.External || spec.Unresolvable {
				continue
			}
			children = append(children, c.scope.Get(spec.Resolved).ID)
		}
		for _, fwd := range rec.Imports.Forwards {
			if fwd.External || fwd.Unresolvable {
				continue
			}
			children = append(children, c.scope.Get(fwd.Resolved).ID)
		}
		sort.Slice(children, func(i, j int) bool { return children[i] < children[j] })
		for _, child := range children {
			visit(child)
		}
		order = append(order, id)
	}
	visit(entry)
	return order, libIDs
}

// take moves a module out of the registry, memoizing so entries that share
// dependencies reuse one payload.
func (c *Chunker) take(id scope.ModuleID) (*taken, error) {
	if t, ok := c.takenByID[id]; ok {
		return t, nil
	}
	rec, ok := c.scope.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("chunk of unregistered %v", id)
	}
	prog, imports, marks, exports := c.scope.Take(id)
	t := &taken{
		id:         id,
		name:       rec.Name,
		prog:       prog,
		imports:    imports,
		marks:      marks,
		exports:    exports,
		localMark:  rec.LocalMark,
		exportMark: rec.ExportMark,
		wrapped:    c.scope.WrapRequired(id),
		cjs:        c.scope.IsCJS(id),
	}
	c.takenByID[id] = t
	return t, nil
}
