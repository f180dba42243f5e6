// Package printer renders a finalized bundle back to JavaScript source.
// The bundler's contract ends at an AST plus a rename table; this printer
// is the minimal external collaborator that makes the output observable.
// It prints the node inventory the bundler produces and passes through,
// applying final identifier spellings as it goes.
package printer

import (
	"strings"

	"github.com/dop251/goja/ast"

	"github.com/spackle-js/spackle/internal/finalizer"
	"github.com/spackle-js/spackle/internal/scope"
)

// Print renders one finalized bundle.
func Print(res *finalizer.Result) string {
	p := &printer{renames: res.Renames}
	p.printImports(res.Imports)
	for _, st := range res.Program.Body {
		p.printStmt(st)
	}
	p.printExports(res.Exports)
	return p.sb.String()
}

type printer struct {
	sb      strings.Builder
	renames map[*ast.Identifier]string
	indent  int
}

func (p *printer) print(s string) { p.sb.WriteString(s) }
func (p *printer) newline()       { p.sb.WriteByte('\n') }
func (p *printer) printIndent() {
	for i := 0; i < p.indent; i++ {
		p.sb.WriteString("  ")
	}
}

// name returns the final spelling of an identifier.
func (p *printer) name(id *ast.Identifier) string {
	if final, ok := p.renames[id]; ok {
		return final
	}
	return string(id.Name)
}

// ── Module boundary lines ───────────────────────────────────────────────

func (p *printer) printImports(imports []finalizer.ImportLine) {
	for _, line := range imports {
		var named []string
		defaultLocal, nsLocal := "", ""
		for _, n := range line.Names {
			switch n.Kind {
			case scope.BindDefault:
				defaultLocal = n.Local
			case scope.BindNamespace:
				nsLocal = n.Local
			default:
				if n.Orig == n.Local {
					named = append(named, n.Orig)
				} else {
					named = append(named, n.Orig+" as "+n.Local)
				}
			}
		}
		var clauses []string
		if defaultLocal != "" {
			clauses = append(clauses, defaultLocal)
		}
		if nsLocal != "" {
			clauses = append(clauses, "* as "+nsLocal)
		}
		if len(named) > 0 {
			clauses = append(clauses, "{ "+strings.Join(named, ", ")+" }")
		}
		if len(clauses) == 0 {
			p.print("import " + quote(line.Source) + ";\n")
			continue
		}
		p.print("import " + strings.Join(clauses, ", ") + " from " + quote(line.Source) + ";\n")
	}
}

func (p *printer) printExports(exports []finalizer.ExportLine) {
	if len(exports) == 0 {
		return
	}
	var parts []string
	for _, e := range exports {
		if e.Local == e.Name {
			parts = append(parts, e.Name)
		} else {
			parts = append(parts, e.Local+" as "+e.Name)
		}
	}
	p.print("export { " + strings.Join(parts, ", ") + " };\n")
}

// ── Statements ──────────────────────────────────────────────────────────

func (p *printer) printStmt(st ast.Statement) {
	switch st := st.(type) {
	case *ast.BlockStatement:
		p.printIndent()
		p.printBlock(st)
		p.newline()
	case *ast.EmptyStatement:
		p.printIndent()
		p.print(";")
		p.newline()
	case *ast.ExpressionStatement:
		p.printIndent()
		// Expression statements must not parse as declarations.
		switch st.Expression.(type) {
		case *ast.FunctionLiteral, *ast.ClassLiteral, *ast.ObjectLiteral:
			p.print("(")
			p.printExpr(st.Expression, levelLowest)
			p.print(")")
		default:
			p.printExpr(st.Expression, levelLowest)
		}
		p.print(";")
		p.newline()
	case *ast.VariableStatement:
		p.printIndent()
		p.print("var ")
		p.printBindings(st.List)
		p.print(";")
		p.newline()
	case *ast.LexicalDeclaration:
		p.printIndent()
		p.print(st.Token.String() + " ")
		p.printBindings(st.List)
		p.print(";")
		p.newline()
	case *ast.FunctionDeclaration:
		p.printIndent()
		p.printFunction(st.Function)
		p.newline()
	case *ast.ClassDeclaration:
		p.printIndent()
		p.printClass(st.Class)
		p.newline()
	case *ast.ReturnStatement:
		p.printIndent()
		if st.Argument != nil {
			p.print("return ")
			p.printExpr(st.Argument, levelLowest)
			p.print(";")
		} else {
			p.print("return;")
		}
		p.newline()
	case *ast.IfStatement:
		p.printIndent()
		p.printIf(st)
		p.newline()
	case *ast.DoWhileStatement:
		p.printIndent()
		p.print("do ")
		p.printNested(st.Body)
		p.printIndent()
		p.print("while (")
		p.printExpr(st.Test, levelLowest)
		p.print(");")
		p.newline()
	case *ast.WhileStatement:
		p.printIndent()
		p.print("while (")
		p.printExpr(st.Test, levelLowest)
		p.print(") ")
		p.printNested(st.Body)
	case *ast.ForStatement:
		p.printIndent()
		p.print("for (")
		p.printForInit(st.Initializer)
		p.print("; ")
		if st.Test != nil {
			p.printExpr(st.Test, levelLowest)
		}
		p.print("; ")
		if st.Update != nil {
			p.printExpr(st.Update, levelLowest)
		}
		p.print(") ")
		p.printNested(st.Body)
	case *ast.ForInStatement:
		p.printIndent()
		p.print("for (")
		p.printForInto(st.Into)
		p.print(" in ")
		p.printExpr(st.Source, levelLowest)
		p.print(") ")
		p.printNested(st.Body)
	case *ast.ForOfStatement:
		p.printIndent()
		p.print("for (")
		p.printForInto(st.Into)
		p.print(" of ")
		p.printExpr(st.Source, levelAssign)
		p.print(") ")
		p.printNested(st.Body)
	case *ast.BranchStatement:
		p.printIndent()
		p.print(st.Token.String())
		if st.Label != nil {
			p.print(" " + p.name(st.Label))
		}
		p.print(";")
		p.newline()
	case *ast.LabelledStatement:
		p.printIndent()
		p.print(p.name(st.Label) + ": ")
		p.printNested(st.Statement)
	case *ast.ThrowStatement:
		p.printIndent()
		p.print("throw ")
		p.printExpr(st.Argument, levelLowest)
		p.print(";")
		p.newline()
	case *ast.TryStatement:
		p.printIndent()
		p.print("try ")
		p.printBlock(st.Body)
		if st.Catch != nil {
			p.print(" catch ")
			if st.Catch.Parameter != nil {
				p.print("(")
				p.printBindingTarget(st.Catch.Parameter)
				p.print(") ")
			}
			p.printBlock(st.Catch.Body)
		}
		if st.Finally != nil {
			p.print(" finally ")
			p.printBlock(st.Finally)
		}
		p.newline()
	case *ast.SwitchStatement:
		p.printIndent()
		p.print("switch (")
		p.printExpr(st.Discriminant, levelLowest)
		p.print(") {")
		p.newline()
		p.indent++
		for _, c := range st.Body {
			p.printIndent()
			if c.Test != nil {
				p.print("case ")
				p.printExpr(c.Test, levelLowest)
				p.print(":")
			} else {
				p.print("default:")
			}
			p.newline()
			p.indent++
			for _, cs := range c.Consequent {
				p.printStmt(cs)
			}
			p.indent--
		}
		p.indent--
		p.printIndent()
		p.print("}")
		p.newline()
	case *ast.WithStatement:
		p.printIndent()
		p.print("with (")
		p.printExpr(st.Object, levelLowest)
		p.print(") ")
		p.printNested(st.Body)
	case *ast.DebuggerStatement:
		p.printIndent()
		p.print("debugger;")
		p.newline()
	default:
		// Import/export declarations never reach the printer; the
		// finalizer lowers them to boundary lines.
		p.printIndent()
		p.print("/* unsupported statement */;")
		p.newline()
	}
}

func (p *printer) printIf(st *ast.IfStatement) {
	p.print("if (")
	p.printExpr(st.Test, levelLowest)
	p.print(") ")
	if block, ok := st.Consequent.(*ast.BlockStatement); ok {
		p.printBlock(block)
	} else {
		p.printInline(st.Consequent)
	}
	if st.Alternate != nil {
		p.print(" else ")
		switch alt := st.Alternate.(type) {
		case *ast.BlockStatement:
			p.printBlock(alt)
		case *ast.IfStatement:
			p.printIf(alt)
		default:
			p.printInline(alt)
		}
	}
}

// printNested prints a statement used as a loop or label body.
func (p *printer) printNested(st ast.Statement) {
	if block, ok := st.(*ast.BlockStatement); ok {
		p.printBlock(block)
		p.newline()
		return
	}
	p.newline()
	p.indent++
	p.printStmt(st)
	p.indent--
}

// printInline prints a single statement without its trailing newline, for
// `if (x) stmt;` shapes.
func (p *printer) printInline(st ast.Statement) {
	var inner printer
	inner.renames = p.renames
	inner.printStmt(st)
	p.print(strings.TrimRight(inner.sb.String(), "\n"))
}

func (p *printer) printBlock(b *ast.BlockStatement) {
	p.print("{")
	p.newline()
	p.indent++
	for _, st := range b.List {
		p.printStmt(st)
	}
	p.indent--
	p.printIndent()
	p.print("}")
}

func (p *printer) printBindings(list []*ast.Binding) {
	for i, b := range list {
		if i > 0 {
			p.print(", ")
		}
		p.printBindingTarget(b.Target)
		if b.Initializer != nil {
			p.print(" = ")
			p.printExpr(b.Initializer, levelAssign)
		}
	}
}

func (p *printer) printBindingTarget(t ast.BindingTarget) {
	if e, ok := t.(ast.Expression); ok {
		p.printExpr(e, levelAssign)
	}
}

func (p *printer) printForInit(in ast.ForLoopInitializer) {
	switch in := in.(type) {
	case nil:
	case *ast.ForLoopInitializerExpression:
		p.printExpr(in.Expression, levelLowest)
	case *ast.ForLoopInitializerVarDeclList:
		p.print("var ")
		p.printBindings(in.List)
	case *ast.ForLoopInitializerLexicalDecl:
		p.print(in.LexicalDeclaration.Token.String() + " ")
		p.printBindings(in.LexicalDeclaration.List)
	}
}

func (p *printer) printForInto(in ast.ForInto) {
	switch in := in.(type) {
	case *ast.ForIntoVar:
		p.print("var ")
		p.printBindingTarget(in.Binding.Target)
	case *ast.ForDeclaration:
		if in.IsConst {
			p.print("const ")
		} else {
			p.print("let ")
		}
		p.printBindingTarget(in.Target)
	case *ast.ForIntoExpression:
		p.printExpr(in.Expression, levelLowest)
	}
}
