package bundler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spackle-js/spackle/internal/config"
	"github.com/spackle-js/spackle/internal/finalizer"
	"github.com/spackle-js/spackle/internal/loader"
	"github.com/spackle-js/spackle/internal/printer"
	"github.com/spackle-js/spackle/internal/resolver"
	"github.com/spackle-js/spackle/internal/scope"
	"github.com/spackle-js/spackle/internal/testutil"
)

func newBundler(t *testing.T, files map[string]string, cfg *config.Config) *Bundler {
	t.Helper()
	if cfg == nil {
		cfg = &config.Config{}
	}
	fs := testutil.MemFS(files)
	log := testutil.NewLogger(t)
	return New(cfg, resolver.New(fs, log), loader.New(fs, log), log)
}

func build(t *testing.T, files map[string]string, cfg *config.Config, entries map[string]string) map[string]string {
	t.Helper()
	results, err := newBundler(t, files, cfg).Bundle(entries)
	require.NoError(t, err)
	out := make(map[string]string, len(results))
	for _, res := range results {
		out[res.Name] = printer.Print(res)
	}
	return out
}

func TestTwoModuleBundle(t *testing.T) {
	t.Parallel()

	out := build(t, map[string]string{
		"/src/a.js": "import { x } from \"./b\";\nconsole.log(x);\n",
		"/src/b.js": "export const x = 1;\n",
	}, nil, map[string]string{"main": "/src/a.js"})

	js := out["main"]
	assert.Contains(t, js, "const x = 1;")
	assert.Contains(t, js, "console.log(x);")
	assert.NotContains(t, js, "import")
}

func TestNamespaceDeglob(t *testing.T) {
	t.Parallel()

	out := build(t, map[string]string{
		"/src/a.js": "import * as M from \"./b\";\nM.foo();\nM.bar;\n",
		"/src/b.js": "export function foo() {}\nexport const bar = 2;\n",
	}, nil, map[string]string{"main": "/src/a.js"})

	js := out["main"]
	assert.Contains(t, js, "function foo")
	assert.Contains(t, js, "const bar = 2;")
	// The namespace object never materializes and M is gone entirely.
	assert.NotContains(t, js, "__ns")
	assert.NotContains(t, js, "M.")
	assert.NotContains(t, js, "M;")
}

func TestNamespaceKeptWhenDisqualified(t *testing.T) {
	t.Parallel()

	out := build(t, map[string]string{
		"/src/a.js": "import * as M from \"./b\";\nsend(M);\n",
		"/src/b.js": "export const x = 1;\n",
	}, nil, map[string]string{"main": "/src/a.js"})

	js := out["main"]
	// The namespace object is materialized and passed along.
	assert.Contains(t, js, "{ x: x }")
	assert.Contains(t, js, "send(")
}

func TestExternalPassthrough(t *testing.T) {
	t.Parallel()

	out := build(t, map[string]string{
		"/src/a.js": "import { readFile } from \"fs\";\nreadFile(\"x\");\n",
	}, &config.Config{ExternalModules: []string{"fs"}}, map[string]string{"main": "/src/a.js"})

	js := out["main"]
	assert.Contains(t, js, "import { readFile } from \"fs\";")
	assert.Contains(t, js, "readFile(\"x\");")
}

func TestDependencyCycle(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"/src/a.js": "import { b } from \"./b\";\nexport const a = () => b();\n",
		"/src/b.js": "import { a } from \"./a\";\nexport const b = () => a();\n",
	}

	out := build(t, files, nil, map[string]string{"main": "/src/a.js"})
	js := out["main"]
	assert.Contains(t, js, "() => b()")
	assert.Contains(t, js, "() => a()")

	// Deterministic across runs: a second, fresh bundler prints the same
	// bytes modulo the process-global mark counter, which only influences
	// renames when there is a collision; here there is none.
	again := build(t, files, nil, map[string]string{"main": "/src/a.js"})
	assert.Equal(t, js, again["main"])
}

func TestRequireTopLevel(t *testing.T) {
	t.Parallel()

	out := build(t, map[string]string{
		"/src/a.js": "const x = require(\"./b\");\nuse(x);\n",
		"/src/b.js": "module.exports = { n: 1 };\n",
	}, &config.Config{Require: true}, map[string]string{"main": "/src/a.js"})

	js := out["main"]
	// b.js is a script, so it is wrapped as CommonJS and x becomes its
	// memoized exports object.
	assert.Contains(t, js, "module.exports")
	assert.Contains(t, js, "use(x);")
	assert.NotContains(t, js, "require(")
}

func TestRequireInFunctionWrapsModule(t *testing.T) {
	t.Parallel()

	b := newBundler(t, map[string]string{
		"/src/a.js": "export function load() { return require(\"./b\"); }\n",
		"/src/b.js": "module.exports = 1;\n",
	}, &config.Config{Require: true})

	_, err := b.Bundle(map[string]string{"main": "/src/a.js"})
	require.NoError(t, err)

	rec := b.Scope().Get(scope.RealFile("/src/a.js"))
	assert.True(t, b.Scope().WrapRequired(rec.ID))
}

func TestSourceOrderPreserved(t *testing.T) {
	t.Parallel()

	out := build(t, map[string]string{
		"/src/a.js": "first();\nsecond();\nthird();\n",
	}, nil, map[string]string{"main": "/src/a.js"})

	js := out["main"]
	first := indexOf(t, js, "first()")
	second := indexOf(t, js, "second()")
	third := indexOf(t, js, "third()")
	assert.Less(t, first, second)
	assert.Less(t, second, third)
}

func TestDeterministicMergeOrder(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"/src/main.js":  "import \"./one\";\nimport \"./two\";\nimport \"./three\";\ndone();\n",
		"/src/one.js":   "one();\n",
		"/src/two.js":   "two();\n",
		"/src/three.js": "three();\n",
	}
	entries := map[string]string{"main": "/src/main.js"}

	first := build(t, files, nil, entries)["main"]
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, build(t, files, nil, entries)["main"])
	}
}

func TestSharedDependencyParsedOnce(t *testing.T) {
	t.Parallel()

	// Both entries reach shared.js; the bundles each contain it, but the
	// registry produced it exactly once.
	b := newBundler(t, map[string]string{
		"/src/e1.js":     "import { s } from \"./shared\";\ns();\n",
		"/src/e2.js":     "import { s } from \"./shared\";\ns();\n",
		"/src/shared.js": "export const s = () => 1;\n",
	}, nil)

	results, err := b.Bundle(map[string]string{"one": "/src/e1.js", "two": "/src/e2.js"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, res := range results {
		assert.Contains(t, printer.Print(res), "() => 1")
	}
}

func TestReexportChain(t *testing.T) {
	t.Parallel()

	out := build(t, map[string]string{
		"/src/a.js": "import { deep } from \"./b\";\nconsole.log(deep);\n",
		"/src/b.js": "export * from \"./c\";\n",
		"/src/c.js": "export const deep = 3;\n",
	}, nil, map[string]string{"main": "/src/a.js"})

	js := out["main"]
	assert.Contains(t, js, "const deep = 3;")
	assert.Contains(t, js, "console.log(deep);")
}

func TestUnresolvableImportFailsEntry(t *testing.T) {
	t.Parallel()

	b := newBundler(t, map[string]string{
		"/src/a.js": "import { x } from \"./gone\";\nimport { y } from \"./also-gone\";\n",
	}, nil)

	_, err := b.Bundle(map[string]string{"main": "/src/a.js"})
	require.Error(t, err)
	// Both broken edges are reported in one shot.
	assert.Contains(t, err.Error(), "./gone")
	assert.Contains(t, err.Error(), "./also-gone")
	assert.Contains(t, err.Error(), "failed to bundle entry")
}

func TestEntryFailureIsIsolatedInReport(t *testing.T) {
	t.Parallel()

	b := newBundler(t, map[string]string{
		"/src/good.js": "fine();\n",
		"/src/bad.js":  "import { x } from \"./missing\";\n",
	}, nil)

	_, err := b.Bundle(map[string]string{"good": "/src/good.js", "bad": "/src/bad.js"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to bundle entry \"bad\"")
	assert.NotContains(t, err.Error(), "\"good\"")
}

func TestDisableInlinerKeepsTemporaries(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"/src/a.js": "import { x } from \"./b\";\nconsole.log(x);\n",
		"/src/b.js": "export const x = 1;\n",
	}
	inlined := build(t, files, nil, map[string]string{"main": "/src/a.js"})["main"]
	kept := build(t, files, &config.Config{DisableInliner: true}, map[string]string{"main": "/src/a.js"})["main"]

	// With the inliner on, the link temporaries collapse away; with it
	// off, the synthesized var chain stays visible.
	assert.NotEqual(t, inlined, kept)
	assert.Greater(t, len(kept), len(inlined))
}

func TestIIFEFraming(t *testing.T) {
	t.Parallel()

	out := build(t, map[string]string{
		"/src/a.js": "import { readFile } from \"fs\";\nreadFile(\"x\");\n",
	}, &config.Config{
		ExternalModules: []string{"fs"},
		Module:          config.ModuleIIFE,
	}, map[string]string{"main": "/src/a.js"})

	js := out["main"]
	assert.Contains(t, js, "(function")
	assert.Contains(t, js, "require(\"fs\")")
	assert.NotContains(t, js, "import ")
}

func TestLibSplitsOwnBundle(t *testing.T) {
	t.Parallel()

	results, err := newBundler(t, map[string]string{
		"/src/a.js":   "import { util } from \"./lib\";\nutil();\n",
		"/src/lib.js": "export const util = () => {};\n",
	}, &config.Config{
		LibModules: map[string]string{"lib": "/src/lib.js"},
	}).Bundle(map[string]string{"main": "/src/a.js"})
	require.NoError(t, err)

	kinds := map[string]finalizer.Result{}
	for _, res := range results {
		kinds[res.Kind.String()] = *res
	}
	require.Contains(t, kinds, "named")
	require.Contains(t, kinds, "lib")
}

func indexOf(t *testing.T, haystack, needle string) int {
	t.Helper()
	idx := -1
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			idx = i
			break
		}
	}
	require.GreaterOrEqual(t, idx, 0, "%q not found in output", needle)
	return idx
}
