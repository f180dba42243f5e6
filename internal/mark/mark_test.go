package mark

import (
	"sync"
	"testing"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/unistring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFreshNeverRepeats(t *testing.T) {
	t.Parallel()

	const n = 1000
	var mu sync.Mutex
	seen := make(map[Mark]bool, n)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < n/8; j++ {
				m := Fresh()
				mu.Lock()
				assert.False(t, seen[m], "mark %v allocated twice", m)
				assert.NotEqual(t, None, m)
				seen[m] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
}

func TestTableApplyAndMerge(t *testing.T) {
	t.Parallel()

	a := &ast.Identifier{Name: unistring.NewFromString("a")}
	b := &ast.Identifier{Name: unistring.NewFromString("b")}
	m1, m2 := Fresh(), Fresh()

	tbl := make(Table)
	tbl.Apply(a, m1)
	require.Equal(t, m1, tbl.Of(a))
	require.Equal(t, None, tbl.Of(b))

	other := make(Table)
	other.Apply(b, m2)
	tbl.Merge(other)
	require.Equal(t, m1, tbl.Of(a))
	require.Equal(t, m2, tbl.Of(b))

	// Applying None clears.
	tbl.Apply(a, None)
	require.Equal(t, None, tbl.Of(a))
}

func TestMergeConflictPanics(t *testing.T) {
	t.Parallel()

	id := &ast.Identifier{Name: unistring.NewFromString("x")}
	tbl, other := make(Table), make(Table)
	tbl.Apply(id, Fresh())
	other.Apply(id, Fresh())
	require.Panics(t, func() { tbl.Merge(other) })
}
