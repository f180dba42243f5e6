// Package scope implements the module registry. It allocates a stable
// ModuleID and a fresh (local, export) mark pair per file name, tracks the
// per-module CJS flags, and guarantees that each file is produced at most
// once no matter how many importers race for it.
package scope

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dop251/goja/ast"

	"github.com/spackle-js/spackle/internal/mark"
)

// ModuleID is an opaque, process-stable, totally-ordered module identity.
// Zero is never allocated.
type ModuleID uint32

func (id ModuleID) String() string { return fmt.Sprintf("module#%d", id) }

// Module is the registration record for one file. The identity triple
// (ID, LocalMark, ExportMark) is fixed at allocation. The payload fields
// become valid once the producing goroutine publishes; Wait blocks until
// then.
type Module struct {
	ID         ModuleID
	Name       FileName
	LocalMark  mark.Mark
	ExportMark mark.Mark

	// Closed on publish or failure.
	ready chan struct{}

	// Everything below is written once, before ready is closed, except the
	// two monotone flags which are guarded by the owning Scope's mutex.
	isCJS        bool
	wrapRequired bool

	Program *ast.Program
	Imports *RawImports
	Marks   mark.Table
	Exports []Export

	err   error
	taken bool
}

// Export maps one exported name to the module-local identifier that backs
// it. Order follows source order of the export declarations.
type Export struct {
	Name  string // name seen by importers, "default" for default exports
	Local string // top-level identifier inside the module
}

// Scope is the registry. The zero value is not usable; call New.
type Scope struct {
	mu     sync.Mutex
	byName map[FileName]*Module
	byID   map[ModuleID]*Module
	began  map[ModuleID]bool
	nextID uint32
}

func New() *Scope {
	return &Scope{
		byName: make(map[FileName]*Module),
		byID:   make(map[ModuleID]*Module),
		began:  make(map[ModuleID]bool),
	}
}

// Get returns the registration record for name, allocating the id and the
// two fresh marks on first sight. Safe for concurrent callers; repeated
// calls return the same record.
func (s *Scope) Get(name FileName) *Module {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.byName[name]; ok {
		return m
	}
	id := ModuleID(atomic.AddUint32(&s.nextID, 1))
	m := &Module{
		ID:         id,
		Name:       name,
		LocalMark:  mark.Fresh(),
		ExportMark: mark.Fresh(),
		ready:      make(chan struct{}),
	}
	s.byName[name] = m
	s.byID[id] = m
	return m
}

// Lookup returns the record for an already-allocated id.
func (s *Scope) Lookup(id ModuleID) (*Module, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[id]
	return m, ok
}

// Begin claims production of id. It returns true for exactly one caller;
// everyone else is expected to Wait (or, when the caller is an ancestor in
// a dependency cycle, to proceed with the identity triple alone).
func (s *Scope) Begin(id ModuleID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.began[id] {
		return false
	}
	s.began[id] = true
	return true
}

// MarkCJS flags id as a CommonJS module. Monotone and idempotent.
func (s *Scope) MarkCJS(id ModuleID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.byID[id]; ok {
		m.isCJS = true
	}
}

// MarkWrapRequired flags id as needing its own function scope in the
// output. Monotone and idempotent.
func (s *Scope) MarkWrapRequired(id ModuleID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.byID[id]; ok {
		m.wrapRequired = true
	}
}

// IsCJS reports the CJS flag.
func (s *Scope) IsCJS(id ModuleID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[id]
	return ok && m.isCJS
}

// WrapRequired reports the wrapping flag.
func (s *Scope) WrapRequired(id ModuleID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[id]
	return ok && m.wrapRequired
}

// Publish stores the analyzed module and wakes every waiter. Publishing
// twice for one id is a logic bug and panics.
func (s *Scope) Publish(id ModuleID, prog *ast.Program, imports *RawImports, marks mark.Table, exports []Export) {
	s.mu.Lock()
	m, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		panic(fmt.Sprintf("scope: publish of unregistered %v", id))
	}
	select {
	case <-m.ready:
		s.mu.Unlock()
		panic(fmt.Sprintf("scope: double publish of %v (%v)", id, m.Name))
	default:
	}
	m.Program = prog
	m.Imports = imports
	m.Marks = marks
	m.Exports = exports
	close(m.ready)
	s.mu.Unlock()
}

// Fail records a production error and wakes every waiter so they can
// propagate it instead of parking forever.
func (s *Scope) Fail(id ModuleID, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[id]
	if !ok {
		panic(fmt.Sprintf("scope: fail of unregistered %v", id))
	}
	select {
	case <-m.ready:
		panic(fmt.Sprintf("scope: fail after publish of %v", id))
	default:
	}
	m.err = err
	close(m.ready)
}

// Wait parks until id is published or failed.
func (s *Scope) Wait(id ModuleID) (*Module, error) {
	s.mu.Lock()
	m, ok := s.byID[id]
	s.mu.Unlock()
	if !ok {
		panic(fmt.Sprintf("scope: wait on unregistered %v", id))
	}
	<-m.ready
	if m.err != nil {
		return nil, m.err
	}
	return m, nil
}

// Take moves the published AST and its mark table out of the registry for
// consumption by the chunker. Taking before publish, after a failure, or
// twice is a logic bug and panics.
func (s *Scope) Take(id ModuleID) (*ast.Program, *RawImports, mark.Table, []Export) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[id]
	if !ok {
		panic(fmt.Sprintf("scope: take of unregistered %v", id))
	}
	select {
	case <-m.ready:
	default:
		panic(fmt.Sprintf("scope: take before publish of %v (%v)", id, m.Name))
	}
	if m.err != nil {
		panic(fmt.Sprintf("scope: take of failed %v: %v", id, m.err))
	}
	if m.taken {
		panic(fmt.Sprintf("scope: double take of %v (%v)", id, m.Name))
	}
	m.taken = true
	prog, imports, marks, exports := m.Program, m.Imports, m.Marks, m.Exports
	m.Program = nil
	m.Marks = nil
	return prog, imports, marks, exports
}

// Published reports whether id has a published payload (it may have been
// taken since). A failed module reports false.
func (s *Scope) Published(id ModuleID) bool {
	s.mu.Lock()
	m, ok := s.byID[id]
	s.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case <-m.ready:
		return m.err == nil
	default:
		return false
	}
}
