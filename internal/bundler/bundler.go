// Package bundler is the facade that drives the pipeline: resolve → load →
// analyze → register for every module reachable from the entries, then
// chunk and finalize. It also implements the hook the analyzer calls back
// into, which is really just a view of the registry.
package bundler

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/spackle-js/spackle/internal/analyzer"
	"github.com/spackle-js/spackle/internal/chunker"
	"github.com/spackle-js/spackle/internal/config"
	"github.com/spackle-js/spackle/internal/finalizer"
	"github.com/spackle-js/spackle/internal/loader"
	"github.com/spackle-js/spackle/internal/mark"
	"github.com/spackle-js/spackle/internal/scope"
)

// Resolver locates modules. Implementations must be pure functions of
// filesystem state and safe for concurrent use.
type Resolver interface {
	Resolve(base scope.FileName, specifier string) (scope.FileName, error)
}

// Loader reads and parses modules. Implementations may cache; the core
// never asks for the same path twice.
type Loader interface {
	Load(path scope.FileName) (*loader.ModuleFile, error)
}

// Bundler coordinates one registry's worth of bundling work. It is safe
// for a single Bundle call at a time; the registry is not reusable across
// calls because chunking consumes it.
type Bundler struct {
	cfg      *config.Config
	resolver Resolver
	loader   Loader
	scope    *scope.Scope
	log      logrus.FieldLogger
}

func New(cfg *config.Config, r Resolver, l Loader, log logrus.FieldLogger) *Bundler {
	return &Bundler{
		cfg:      cfg,
		resolver: r,
		loader:   l,
		scope:    scope.New(),
		log:      log,
	}
}

// Scope exposes the registry; tests and the chunker read it.
func (b *Bundler) Scope() *scope.Scope { return b.scope }

// Bundle loads every entry and its transitive dependencies, then merges
// and finalizes one bundle per entry (plus one per reachable lib module).
//
// Entries must not import each other; entry-to-entry cycles are a caller
// error. Dependency cycles below the entries are fine.
func (b *Bundler) Bundle(entries map[string]string) ([]*finalizer.Result, error) {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	roots, err := b.loadEntries(names, entries)
	if err != nil {
		return nil, err
	}

	libs, err := b.designateLibs()
	if err != nil {
		return nil, err
	}

	chunked, err := chunker.New(b.scope, libs, b.log).Chunk(roots)
	if err != nil {
		return nil, err
	}

	return finalizer.New(b.cfg, b.log).Finalize(chunked)
}

// designateLibs resolves the configured lib modules so the chunker can
// split them out.
func (b *Bundler) designateLibs() (map[scope.ModuleID]string, error) {
	libs := make(map[scope.ModuleID]string)
	for name, path := range b.cfg.LibModules {
		file, err := b.resolveEntryPath(path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve lib %q: %w", name, err)
		}
		libs[b.scope.Get(file).ID] = name
	}
	return libs, nil
}

// ── Hook: the analyzer-facing registry view ─────────────────────────────

var _ analyzer.Hook = (*Bundler)(nil)

// IsExternal reports whether a specifier is configured to stay external.
func (b *Bundler) IsExternal(specifier string) bool {
	return b.cfg.IsExternal(specifier)
}

// Resolve is the analyzer-facing lookup: a miss is None, never an error.
// The driver re-resolves with full error context when it follows edges.
func (b *Bundler) Resolve(from scope.FileName, specifier string) (scope.FileName, bool) {
	file, err := b.resolver.Resolve(from, specifier)
	if err != nil {
		return scope.FileName{}, false
	}
	return file, true
}

// ModuleInfo is the idempotent identity query.
func (b *Bundler) ModuleInfo(path scope.FileName) (scope.ModuleID, mark.Mark, mark.Mark) {
	rec := b.scope.Get(path)
	return rec.ID, rec.LocalMark, rec.ExportMark
}

// SupportsCJS reports whether require() detection is on.
func (b *Bundler) SupportsCJS() bool { return b.cfg.Require }

// MarkCJS flags a module as CommonJS. Monotone.
func (b *Bundler) MarkCJS(id scope.ModuleID) { b.scope.MarkCJS(id) }

// MarkWrapRequired flags a module as needing its own scope. Monotone.
func (b *Bundler) MarkWrapRequired(id scope.ModuleID) { b.scope.MarkWrapRequired(id) }
