package astutil

import (
	"testing"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/file"
	"github.com/dop251/goja/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, src string) *ast.Program {
	t.Helper()
	prog, err := parser.ParseFile(new(file.FileSet), "test.js", src, 0)
	require.NoError(t, err)
	return prog
}

func TestInspectVisitsIdentifiers(t *testing.T) {
	t.Parallel()

	prog := parse(t, `
function outer(a) {
  const inner = (b) => a + b;
  for (let i = 0; i < 3; i++) { log(inner(i)); }
  try { risky(); } catch (e) { handle(e); }
  return { a, nested: { deep: a } };
}
class C { method(x) { return x; } }
`)
	seen := map[string]int{}
	Inspect(prog, func(n ast.Node) bool {
		if id, ok := n.(*ast.Identifier); ok {
			seen[string(id.Name)]++
		}
		return true
	})
	for _, name := range []string{"outer", "a", "inner", "b", "i", "log", "risky", "e", "handle", "C", "x"} {
		assert.Positive(t, seen[name], "identifier %q not visited", name)
	}
}

func TestInspectSkipsChildren(t *testing.T) {
	t.Parallel()

	prog := parse(t, "function f() { hidden(); }\nvisible();")
	seen := map[string]bool{}
	Inspect(prog, func(n ast.Node) bool {
		if _, ok := n.(*ast.FunctionLiteral); ok {
			return false
		}
		if id, ok := n.(*ast.Identifier); ok {
			seen[string(id.Name)] = true
		}
		return true
	})
	assert.True(t, seen["visible"])
	assert.False(t, seen["hidden"])
}

func TestRewriteExpressionsReplacesMemberAccess(t *testing.T) {
	t.Parallel()

	prog := parse(t, "ns.foo();\nconst v = ns.bar + 1;\nother.baz;")
	RewriteExpressions(prog, func(e ast.Expression) ast.Expression {
		dot, ok := e.(*ast.DotExpression)
		if !ok {
			return e
		}
		base, ok := dot.Left.(*ast.Identifier)
		if !ok || string(base.Name) != "ns" {
			return e
		}
		return Ident("ns$" + string(dot.Identifier.Name))
	})

	var names []string
	Inspect(prog, func(n ast.Node) bool {
		if id, ok := n.(*ast.Identifier); ok {
			names = append(names, string(id.Name))
		}
		return true
	})
	assert.Contains(t, names, "ns$foo")
	assert.Contains(t, names, "ns$bar")
	assert.NotContains(t, names, "ns")
	// Unrelated member bases stay.
	assert.Contains(t, names, "other")
}

func TestRewriteReachesNestedScopes(t *testing.T) {
	t.Parallel()

	prog := parse(t, `
function f() { return ns.x; }
const g = () => ns.y;
class K { m() { return ns.z; } }
`)
	count := 0
	RewriteExpressions(prog, func(e ast.Expression) ast.Expression {
		if dot, ok := e.(*ast.DotExpression); ok {
			if base, ok := dot.Left.(*ast.Identifier); ok && string(base.Name) == "ns" {
				count++
				return Ident("replaced")
			}
		}
		return e
	})
	assert.Equal(t, 3, count)
}

func TestBuilders(t *testing.T) {
	t.Parallel()

	decl := VarDecl(Ident("a"), Str("hi"))
	require.Len(t, decl.List, 1)
	assert.Equal(t, `"hi"`, decl.List[0].Initializer.(*ast.StringLiteral).Literal)

	call := Call(Member(Ident("console"), "log"), Str("x"))
	assert.Len(t, call.ArgumentList, 1)

	// Builders allocate fresh identifier nodes every time; tables key on
	// pointers.
	assert.NotSame(t, Ident("x"), Ident("x"))
}
