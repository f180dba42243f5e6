package printer

import (
	"testing"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/file"
	"github.com/dop251/goja/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spackle-js/spackle/internal/finalizer"
	"github.com/spackle-js/spackle/internal/scope"
)

func roundTrip(t *testing.T, src string) string {
	t.Helper()
	prog, err := parser.ParseFile(new(file.FileSet), "test.js", src, 0)
	require.NoError(t, err)
	return Print(&finalizer.Result{Program: prog})
}

func TestPrintStatements(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
		want []string
	}{
		{
			name: "declarations",
			src:  "var a = 1;\nlet b = 2;\nconst c = 3;",
			want: []string{"var a = 1;", "let b = 2;", "const c = 3;"},
		},
		{
			name: "function",
			src:  "function add(a, b) { return a + b; }",
			want: []string{"function add(a, b) {", "return a + b;"},
		},
		{
			name: "if else",
			src:  "if (x) { a(); } else { b(); }",
			want: []string{"if (x) {", "} else {"},
		},
		{
			name: "for loop",
			src:  "for (var i = 0; i < 10; i++) { f(i); }",
			want: []string{"for (var i = 0; i < 10; i++)"},
		},
		{
			name: "try catch",
			src:  "try { risky(); } catch (e) { report(e); } finally { done(); }",
			want: []string{"try {", "catch (e)", "finally {"},
		},
		{
			name: "switch",
			src:  "switch (x) { case 1: a(); break; default: b(); }",
			want: []string{"switch (x) {", "case 1:", "default:", "break;"},
		},
		{
			name: "arrow and template",
			src:  "const f = (x) => `v=${x}`;",
			want: []string{"=>", "`v=${x}`"},
		},
		{
			name: "class",
			src:  "class A extends B { constructor() { super(); } static of() { return new A(); } }",
			want: []string{"class A extends B {", "constructor()", "static of()"},
		},
		{
			name: "object literal",
			src:  "var o = { a: 1, \"b c\": 2, [k]: 3 };",
			want: []string{"a: 1", `"b c": 2`, "[k]: 3"},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out := roundTrip(t, tt.src)
			for _, want := range tt.want {
				assert.Contains(t, out, want)
			}
		})
	}
}

func TestPrintPrecedence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		src  string
		want string
	}{
		{"var x = (a + b) * c;", "(a + b) * c"},
		{"var x = a + b * c;", "a + b * c"},
		{"var x = a ? b : c;", "a ? b : c"},
		{"var x = (a, b);", "(a, b)"},
	}
	for _, tt := range tests {
		out := roundTrip(t, tt.src)
		assert.Contains(t, out, tt.want, tt.src)
	}
}

func TestPrintRenames(t *testing.T) {
	t.Parallel()

	prog, err := parser.ParseFile(new(file.FileSet), "test.js", "const x = 1;\nuse(x);\nvar o = { x };", 0)
	require.NoError(t, err)

	renames := make(map[*ast.Identifier]string)
	collect := func(n ast.Node) {
		if id, ok := n.(*ast.Identifier); ok && string(id.Name) == "x" {
			renames[id] = "x$1"
		}
	}
	// Identifiers sit in a handful of known places in this snippet.
	for _, st := range prog.Body {
		switch st := st.(type) {
		case *ast.LexicalDeclaration:
			collect(st.List[0].Target)
		case *ast.ExpressionStatement:
			call := st.Expression.(*ast.CallExpression)
			collect(call.ArgumentList[0])
		case *ast.VariableStatement:
			obj := st.List[0].Initializer.(*ast.ObjectLiteral)
			if short, ok := obj.Value[0].(*ast.PropertyShort); ok {
				renames[&short.Name] = "x$1"
			}
		}
	}

	out := Print(&finalizer.Result{Program: prog, Renames: renames})
	assert.Contains(t, out, "const x$1 = 1;")
	assert.Contains(t, out, "use(x$1);")
	// A renamed shorthand property expands to key: value.
	assert.Contains(t, out, "x: x$1")
}

func TestPrintImportExportLines(t *testing.T) {
	t.Parallel()

	prog, err := parser.ParseFile(new(file.FileSet), "test.js", "go();", 0)
	require.NoError(t, err)

	out := Print(&finalizer.Result{
		Program: prog,
		Imports: []finalizer.ImportLine{
			{Source: "fs", Names: []finalizer.ImportName{
				{Kind: scope.BindNamed, Orig: "readFile", Local: "readFile"},
				{Kind: scope.BindNamed, Orig: "writeFile", Local: "wf"},
			}},
			{Source: "path", Names: []finalizer.ImportName{
				{Kind: scope.BindNamespace, Local: "path"},
			}},
			{Source: "side-effect"},
		},
		Exports: []finalizer.ExportLine{
			{Local: "a", Name: "a"},
			{Local: "__default", Name: "default"},
		},
	})

	assert.Contains(t, out, `import { readFile, writeFile as wf } from "fs";`)
	assert.Contains(t, out, `import * as path from "path";`)
	assert.Contains(t, out, `import "side-effect";`)
	assert.Contains(t, out, "export { a, __default as default };")
}
