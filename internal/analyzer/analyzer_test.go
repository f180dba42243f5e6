package analyzer

import (
	"testing"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/file"
	"github.com/dop251/goja/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spackle-js/spackle/internal/astutil"
	"github.com/spackle-js/spackle/internal/mark"
	"github.com/spackle-js/spackle/internal/scope"
	"github.com/spackle-js/spackle/internal/testutil"
)

// fakeHook is an in-memory registry view. Every specifier that does not
// start with "missing" resolves to a real file of the same name.
type fakeHook struct {
	scope     *scope.Scope
	externals map[string]bool
	cjs       bool
	wrapped   []scope.ModuleID
	markedCJS []scope.ModuleID
}

func newFakeHook(cjs bool, externals ...string) *fakeHook {
	ext := make(map[string]bool, len(externals))
	for _, e := range externals {
		ext[e] = true
	}
	return &fakeHook{scope: scope.New(), externals: ext, cjs: cjs}
}

func (h *fakeHook) IsExternal(specifier string) bool { return h.externals[specifier] }

func (h *fakeHook) Resolve(from scope.FileName, specifier string) (scope.FileName, bool) {
	if len(specifier) >= 7 && specifier[:7] == "missing" {
		return scope.FileName{}, false
	}
	return scope.RealFile("/" + specifier), true
}

func (h *fakeHook) ModuleInfo(path scope.FileName) (scope.ModuleID, mark.Mark, mark.Mark) {
	rec := h.scope.Get(path)
	return rec.ID, rec.LocalMark, rec.ExportMark
}

func (h *fakeHook) SupportsCJS() bool { return h.cjs }

func (h *fakeHook) MarkCJS(id scope.ModuleID) { h.markedCJS = append(h.markedCJS, id) }

func (h *fakeHook) MarkWrapRequired(id scope.ModuleID) { h.wrapped = append(h.wrapped, id) }

func parse(t *testing.T, src string) *ast.Program {
	t.Helper()
	prog, err := parser.ParseFile(new(file.FileSet), "test.js", src, 0)
	require.NoError(t, err)
	return prog
}

func analyze(t *testing.T, hook *fakeHook, src string) (*scope.RawImports, mark.Table, []scope.Export, *ast.Program) {
	t.Helper()
	prog := parse(t, src)
	localMark := mark.Fresh()
	imports, marks, exports, err := Analyze(hook, scope.RealFile("/test.js"), prog, localMark, testutil.NewLogger(t))
	require.NoError(t, err)
	return imports, marks, exports, prog
}

func TestCollectImportKinds(t *testing.T) {
	t.Parallel()

	imports, _, _, _ := analyze(t, newFakeHook(false), `
import def from "./a";
import * as ns from "./b";
import { x, y as z } from "./c";
import "./effects";
ns[key];
`)
	require.Len(t, imports.Specifiers, 4)

	assert.Equal(t, "./a", imports.Specifiers[0].Source)
	assert.Equal(t, scope.BindDefault, imports.Specifiers[0].Bindings[0].Kind)
	assert.Equal(t, "def", imports.Specifiers[0].Bindings[0].Local)

	assert.Equal(t, scope.BindNamespace, imports.Specifiers[1].Bindings[0].Kind)
	assert.Equal(t, "ns", imports.Specifiers[1].Bindings[0].Local)

	named := imports.Specifiers[2].Bindings
	require.Len(t, named, 2)
	assert.Equal(t, scope.Binding{Kind: scope.BindNamed, Orig: "x", Local: "x"}, named[0])
	assert.Equal(t, scope.Binding{Kind: scope.BindNamed, Orig: "y", Local: "z"}, named[1])

	assert.Equal(t, scope.BindBare, imports.Specifiers[3].Bindings[0].Kind)
}

func TestSpecifierSourceOrder(t *testing.T) {
	t.Parallel()

	imports, _, _, _ := analyze(t, newFakeHook(false), `
import "./one";
import "./two";
import "./three";
`)
	var order []string
	for _, s := range imports.Specifiers {
		order = append(order, s.Source)
	}
	assert.Equal(t, []string{"./one", "./two", "./three"}, order)
}

func TestDeglobEligible(t *testing.T) {
	t.Parallel()

	imports, _, _, prog := analyze(t, newFakeHook(false), `
import * as M from "./b";
M.foo();
M.bar;
M.foo();
`)
	require.Contains(t, imports.IdentsToDeglob, "M")
	assert.Equal(t, []string{"foo", "bar"}, imports.IdentsToDeglob["M"])

	// The namespace binding is replaced by named bindings.
	require.Len(t, imports.Specifiers, 1)
	bindings := imports.Specifiers[0].Bindings
	require.Len(t, bindings, 2)
	assert.Equal(t, scope.Binding{Kind: scope.BindNamed, Orig: "foo", Local: "M$foo"}, bindings[0])
	assert.Equal(t, scope.Binding{Kind: scope.BindNamed, Orig: "bar", Local: "M$bar"}, bindings[1])

	// Every occurrence of M.x was rewritten; M itself is gone.
	sawM := false
	astutil.Inspect(prog, func(n ast.Node) bool {
		if id, ok := n.(*ast.Identifier); ok && string(id.Name) == "M" {
			sawM = true
		}
		return true
	})
	assert.False(t, sawM)
}

func TestDeglobDisqualifiedByValueUse(t *testing.T) {
	t.Parallel()

	imports, _, _, _ := analyze(t, newFakeHook(false), `
import * as M from "./b";
M.foo();
send(M);
`)
	assert.Empty(t, imports.IdentsToDeglob)
	assert.Equal(t, scope.BindNamespace, imports.Specifiers[0].Bindings[0].Kind)
}

func TestDeglobDisqualifiedByDynamicAccess(t *testing.T) {
	t.Parallel()

	imports, _, _, _ := analyze(t, newFakeHook(false), `
import * as M from "./b";
M[key];
`)
	assert.Empty(t, imports.IdentsToDeglob)
}

func TestDeglobDisqualifiedByAssignment(t *testing.T) {
	t.Parallel()

	for _, src := range []string{
		"import * as M from \"./b\";\nM = 1;\nM.x;",
		"import * as M from \"./b\";\nM.x = 1;",
	} {
		imports, _, _, _ := analyze(t, newFakeHook(false), src)
		assert.Empty(t, imports.IdentsToDeglob, src)
	}
}

func TestColorizeMarksModuleLocals(t *testing.T) {
	t.Parallel()

	_, marks, _, prog := analyze(t, newFakeHook(false), `
import { x } from "./b";
const local = x + 1;
console.log(local);
`)
	marked := map[string]int{}
	unmarked := map[string]int{}
	astutil.Inspect(prog, func(n ast.Node) bool {
		if id, ok := n.(*ast.Identifier); ok {
			if marks.Of(id) != mark.None {
				marked[string(id.Name)]++
			} else {
				unmarked[string(id.Name)]++
			}
		}
		return true
	})
	// Module-level names are marked everywhere they appear. Import
	// specifier lists carry raw names rather than identifier nodes, so the
	// one marked x is the use in the initializer.
	assert.Equal(t, 2, marked["local"])
	assert.Equal(t, 1, marked["x"])
	// Globals and member names stay unmarked.
	assert.Zero(t, marked["console"])
	assert.Zero(t, marked["log"])
}

func TestExportsTable(t *testing.T) {
	t.Parallel()

	_, _, exports, _ := analyze(t, newFakeHook(false), `
export const a = 1;
export function f() {}
const hidden = 2;
export { hidden as h };
export default 42;
`)
	assert.Equal(t, []scope.Export{
		{Name: "a", Local: "a"},
		{Name: "f", Local: "f"},
		{Name: "h", Local: "hidden"},
		{Name: "default", Local: "__default"},
	}, exports)
}

func TestDuplicateDefaultExportRejected(t *testing.T) {
	t.Parallel()

	prog := parse(t, "export default 1;\nexport default 2;")
	_, _, _, err := Analyze(newFakeHook(false), scope.RealFile("/test.js"), prog, mark.Fresh(), testutil.NewLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate default export")
}

func TestForwardsKeptVerbatim(t *testing.T) {
	t.Parallel()

	imports, _, _, _ := analyze(t, newFakeHook(false), `
export * from "./all";
export { a as b } from "./some";
`)
	require.Len(t, imports.Forwards, 2)
	assert.True(t, imports.Forwards[0].All)
	assert.Equal(t, "./all", imports.Forwards[0].Source)
	assert.Equal(t, []scope.ForwardName{{Orig: "a", Alias: "b"}}, imports.Forwards[1].Names)
	// Forwards never contribute to deglobbing.
	assert.Empty(t, imports.IdentsToDeglob)
}

func TestExternalSpecifier(t *testing.T) {
	t.Parallel()

	imports, _, _, _ := analyze(t, newFakeHook(false, "fs"), `import { readFile } from "fs";`)
	require.Len(t, imports.Specifiers, 1)
	assert.True(t, imports.Specifiers[0].External)
	// External locals have no cross-module source entry.
	assert.NotContains(t, imports.LocalToSource, "readFile")
}

func TestUnresolvableSpecifier(t *testing.T) {
	t.Parallel()

	imports, _, _, _ := analyze(t, newFakeHook(false), `import { x } from "missing-dep";`)
	require.Len(t, imports.Specifiers, 1)
	assert.True(t, imports.Specifiers[0].Unresolvable)
}

func TestRequireTopLevel(t *testing.T) {
	t.Parallel()

	hook := newFakeHook(true)
	imports, _, _, _ := analyze(t, hook, `
const b = require("./b");
require("./effects");
use(b);
`)
	require.Len(t, imports.Specifiers, 2)
	assert.Equal(t, scope.Binding{Kind: scope.BindRequire, Local: "b"}, imports.Specifiers[0].Bindings[0])
	assert.Equal(t, scope.Binding{Kind: scope.BindRequire}, imports.Specifiers[1].Bindings[0])
	// Top-level requires do not force wrapping.
	assert.Empty(t, hook.wrapped)
}

func TestRequireInFunctionForcesWrapping(t *testing.T) {
	t.Parallel()

	hook := newFakeHook(true)
	imports, _, _, _ := analyze(t, hook, `
function lazy() { return require("./b"); }
`)
	// The edge is still recorded.
	require.Len(t, imports.Specifiers, 1)
	assert.Equal(t, "./b", imports.Specifiers[0].Source)
	assert.NotEmpty(t, hook.wrapped)
}

func TestRequireNonLiteralForcesWrapping(t *testing.T) {
	t.Parallel()

	hook := newFakeHook(true)
	imports, _, _, _ := analyze(t, hook, `const x = require(name);`)
	assert.Empty(t, imports.Specifiers)
	assert.NotEmpty(t, hook.wrapped)
}

func TestRequireIgnoredWithoutCJSSupport(t *testing.T) {
	t.Parallel()

	hook := newFakeHook(false)
	imports, _, _, _ := analyze(t, hook, `const b = require("./b");`)
	assert.Empty(t, imports.Specifiers)
	assert.Empty(t, hook.wrapped)
}
