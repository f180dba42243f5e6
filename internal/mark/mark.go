// Package mark implements the fresh-mark allocator used to disambiguate
// identifiers after modules are merged into a single body.
//
// A Mark is an opaque token. Two marks are equal only if they came from the
// same Fresh() call. Instead of attaching marks to AST nodes directly (goja's
// identifiers have no room for a syntax context), marks live in a side Table
// keyed by identifier pointer. An identifier's (spelling, mark) pair is its
// real identity; the finalizer renames only when two distinct identities
// share a spelling.
package mark

import (
	"sync/atomic"

	"github.com/dop251/goja/ast"
)

// Mark is an opaque fresh token. The zero value is the root (unmarked)
// context; it is never returned by Fresh.
type Mark uint32

// None is the empty context. Identifiers carrying None are left untouched by
// the hygiene pass.
const None Mark = 0

var counter uint32

// Fresh allocates a new mark. Allocation is atomic and never fails; marks
// are monotonic in allocation order but the order carries no meaning.
func Fresh() Mark {
	return Mark(atomic.AddUint32(&counter, 1))
}

// Table records which mark each identifier node carries. Tables are built
// per module during analysis and merged per bundle during chunking. A table
// is not safe for concurrent mutation; the registry hands each module's
// table to exactly one chunker.
type Table map[*ast.Identifier]Mark

// Apply records m for id. Applying None removes any previous mark so that
// the table only ever holds live contexts.
func (t Table) Apply(id *ast.Identifier, m Mark) {
	if m == None {
		delete(t, id)
		return
	}
	t[id] = m
}

// Of returns the mark carried by id, or None.
func (t Table) Of(id *ast.Identifier) Mark {
	return t[id]
}

// Merge folds other into t. An identifier present in both tables with the
// same mark is accepted; one present with two different marks would mean one
// AST node ended up in two modules, and Merge panics.
func (t Table) Merge(other Table) {
	for id, m := range other {
		if prev, ok := t[id]; ok && prev != m {
			panic("mark: identifier present in two tables with different marks")
		}
		t[id] = m
	}
}
