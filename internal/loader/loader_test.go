package loader

import (
	"encoding/base64"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spackle-js/spackle/internal/scope"
	"github.com/spackle-js/spackle/internal/testutil"
)

// countingFs counts Open calls so tests can assert single-read behavior.
type countingFs struct {
	afero.Fs
	mu    sync.Mutex
	opens map[string]int
}

func newCountingFs(base afero.Fs) *countingFs {
	return &countingFs{Fs: base, opens: make(map[string]int)}
}

func (c *countingFs) Open(name string) (afero.File, error) {
	c.mu.Lock()
	c.opens[name]++
	c.mu.Unlock()
	return c.Fs.Open(name)
}

func TestLoadParses(t *testing.T) {
	t.Parallel()

	l := New(testutil.MemFS(map[string]string{
		"/a.js": "const x = 1;\nconsole.log(x);\n",
	}), testutil.NewLogger(t))

	mf, err := l.Load(scope.RealFile("/a.js"))
	require.NoError(t, err)
	require.NotNil(t, mf.Program)
	assert.Len(t, mf.Program.Body, 2)
	assert.False(t, mf.IsModule)
}

func TestLoadDetectsModuleSyntax(t *testing.T) {
	t.Parallel()

	l := New(testutil.MemFS(map[string]string{
		"/esm.js":    "import \"./other\";\n",
		"/other.js":  "export const x = 1;\n",
		"/script.js": "var x = 1;\n",
	}), testutil.NewLogger(t))

	for path, want := range map[string]bool{
		"/esm.js":    true,
		"/other.js":  true,
		"/script.js": false,
	} {
		mf, err := l.Load(scope.RealFile(path))
		require.NoError(t, err, path)
		assert.Equal(t, want, mf.IsModule, path)
	}
}

func TestLoadOnceUnderConcurrency(t *testing.T) {
	t.Parallel()

	fs := newCountingFs(testutil.MemFS(map[string]string{
		"/a.js": "const x = 1;\n",
	}))
	l := New(fs, testutil.NewLogger(t))

	const n = 32
	results := make([]*ModuleFile, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			mf, err := l.Load(scope.RealFile("/a.js"))
			require.NoError(t, err)
			results[i] = mf
		}()
	}
	wg.Wait()

	for _, mf := range results {
		require.Same(t, results[0], mf)
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	assert.Equal(t, 1, fs.opens["/a.js"])
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	l := New(testutil.MemFS(map[string]string{
		"/bad.js": "const = ;",
	}), testutil.NewLogger(t))

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := l.Load(scope.RealFile("/nope.js"))
		var loadErr *Error
		require.ErrorAs(t, err, &loadErr)
		assert.Contains(t, err.Error(), "failed to load")
	})
	t.Run("parse error", func(t *testing.T) {
		t.Parallel()
		_, err := l.Load(scope.RealFile("/bad.js"))
		require.Error(t, err)
	})
	t.Run("custom name", func(t *testing.T) {
		t.Parallel()
		_, err := l.Load(scope.CustomFile("fs"))
		require.Error(t, err)
	})
}

func TestSourceMapInline(t *testing.T) {
	t.Parallel()

	rawMap := `{"version":3,"sources":["a.ts"],"names":[],"mappings":"AAAA"}`
	src := "const x = 1;\n//# sourceMappingURL=data:application/json;base64," +
		base64.StdEncoding.EncodeToString([]byte(rawMap)) + "\n"

	l := New(testutil.MemFS(map[string]string{"/a.js": src}), testutil.NewLogger(t))
	mf, err := l.Load(scope.RealFile("/a.js"))
	require.NoError(t, err)
	assert.NotNil(t, mf.SourceMap)
}

func TestSourceMapSiblingFile(t *testing.T) {
	t.Parallel()

	l := New(testutil.MemFS(map[string]string{
		"/out/a.js":     "const x = 1;\n//# sourceMappingURL=a.js.map\n",
		"/out/a.js.map": `{"version":3,"sources":["../src/a.ts"],"names":[],"mappings":"AAAA"}`,
	}), testutil.NewLogger(t))

	mf, err := l.Load(scope.RealFile("/out/a.js"))
	require.NoError(t, err)
	assert.NotNil(t, mf.SourceMap)
}

func TestSourceMapMissingIsNotFatal(t *testing.T) {
	t.Parallel()

	l := New(testutil.MemFS(map[string]string{
		"/a.js": "const x = 1;\n//# sourceMappingURL=gone.map\n",
	}), testutil.NewLogger(t))

	mf, err := l.Load(scope.RealFile("/a.js"))
	require.NoError(t, err)
	assert.Nil(t, mf.SourceMap)
}
