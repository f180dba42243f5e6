package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spackle-js/spackle/internal/scope"
	"github.com/spackle-js/spackle/internal/testutil"
)

func newResolver(t *testing.T, files map[string]string) *Resolver {
	t.Helper()
	return New(testutil.MemFS(files), testutil.NewLogger(t))
}

func TestResolveRelative(t *testing.T) {
	t.Parallel()

	r := newResolver(t, map[string]string{
		"/src/a.js": "",
		"/src/b.js": "",
	})
	got, err := r.Resolve(scope.RealFile("/src/a.js"), "./b")
	require.NoError(t, err)
	assert.Equal(t, scope.RealFile("/src/b.js"), got)
}

func TestResolveExtensionOrder(t *testing.T) {
	t.Parallel()

	r := newResolver(t, map[string]string{
		"/src/a.js":  "",
		"/src/x.mjs": "",
		"/src/x.js":  "",
	})
	// .js wins over .mjs.
	got, err := r.Resolve(scope.RealFile("/src/a.js"), "./x")
	require.NoError(t, err)
	assert.Equal(t, scope.RealFile("/src/x.js"), got)
}

func TestResolveExactBeforeExtensions(t *testing.T) {
	t.Parallel()

	r := newResolver(t, map[string]string{
		"/src/a.js":    "",
		"/src/util":    "",
		"/src/util.js": "",
	})
	got, err := r.Resolve(scope.RealFile("/src/a.js"), "./util")
	require.NoError(t, err)
	assert.Equal(t, scope.RealFile("/src/util"), got)
}

func TestResolveIndex(t *testing.T) {
	t.Parallel()

	r := newResolver(t, map[string]string{
		"/src/a.js":         "",
		"/src/lib/index.js": "",
	})
	got, err := r.Resolve(scope.RealFile("/src/a.js"), "./lib")
	require.NoError(t, err)
	assert.Equal(t, scope.RealFile("/src/lib/index.js"), got)
}

func TestResolvePackageMainFields(t *testing.T) {
	t.Parallel()

	r := newResolver(t, map[string]string{
		"/app/a.js": "",
		"/app/node_modules/dep/package.json": `{"main": "./lib/main.js", "module": "./lib/module.js"}`,
		"/app/node_modules/dep/lib/main.js":   "",
		"/app/node_modules/dep/lib/module.js": "",
	})
	// "module" beats "main".
	got, err := r.Resolve(scope.RealFile("/app/a.js"), "dep")
	require.NoError(t, err)
	assert.Equal(t, scope.RealFile("/app/node_modules/dep/lib/module.js"), got)
}

func TestResolveBrokenMainFallsBackToIndex(t *testing.T) {
	t.Parallel()

	r := newResolver(t, map[string]string{
		"/app/a.js": "",
		"/app/node_modules/dep/package.json": `{"main": "./no/such/file.js"}`,
		"/app/node_modules/dep/index.js":     "",
	})
	got, err := r.Resolve(scope.RealFile("/app/a.js"), "dep")
	require.NoError(t, err)
	assert.Equal(t, scope.RealFile("/app/node_modules/dep/index.js"), got)
}

func TestResolveNodeModulesWalksUp(t *testing.T) {
	t.Parallel()

	r := newResolver(t, map[string]string{
		"/app/src/deep/a.js":             "",
		"/app/node_modules/dep/index.js": "",
	})
	got, err := r.Resolve(scope.RealFile("/app/src/deep/a.js"), "dep")
	require.NoError(t, err)
	assert.Equal(t, scope.RealFile("/app/node_modules/dep/index.js"), got)
}

func TestResolveBuiltin(t *testing.T) {
	t.Parallel()

	r := newResolver(t, nil)
	for _, spec := range []string{"fs", "node:fs", "path"} {
		got, err := r.Resolve(scope.RealFile("/a.js"), spec)
		require.NoError(t, err)
		assert.Equal(t, scope.FileCustom, got.Kind)
	}
}

func TestResolveFailure(t *testing.T) {
	t.Parallel()

	r := newResolver(t, map[string]string{"/a.js": ""})
	_, err := r.Resolve(scope.RealFile("/a.js"), "./missing")
	require.Error(t, err)

	var resErr *Error
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, "./missing", resErr.Specifier)
	assert.Contains(t, err.Error(), "failed to resolve")
}

func TestResolveCached(t *testing.T) {
	t.Parallel()

	fs := testutil.MemFS(map[string]string{
		"/src/a.js": "",
		"/src/b.js": "",
	})
	r := New(fs, testutil.NewLogger(t))

	first, err := r.Resolve(scope.RealFile("/src/a.js"), "./b")
	require.NoError(t, err)

	// Removing the file does not invalidate the cached resolution:
	// resolution is a pure function of the filesystem as first observed.
	require.NoError(t, fs.Remove("/src/b.js"))
	again, err := r.Resolve(scope.RealFile("/src/a.js"), "./b")
	require.NoError(t, err)
	assert.Equal(t, first, again)
}
