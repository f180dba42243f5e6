package astutil

import (
	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/token"
	"github.com/dop251/goja/unistring"
)

// Construction helpers for synthesized nodes. All positions are zero; the
// nodes never came from a source file.

// Ident returns a fresh identifier node. Each call allocates, which matters:
// the mark tables key on node pointers, so synthesized identifiers must
// never be shared between two occurrences.
func Ident(name string) *ast.Identifier {
	return &ast.Identifier{Name: unistring.NewFromString(name)}
}

// Str returns a string literal with a correctly quoted source form.
func Str(value string) *ast.StringLiteral {
	return &ast.StringLiteral{
		Value:   unistring.NewFromString(value),
		Literal: quoteJS(value),
	}
}

// VarDecl returns `var <target> = <init>;`.
func VarDecl(target ast.BindingTarget, init ast.Expression) *ast.VariableStatement {
	return &ast.VariableStatement{
		List: []*ast.Binding{{Target: target, Initializer: init}},
	}
}

// ConstDecl returns `const <target> = <init>;`.
func ConstDecl(target ast.BindingTarget, init ast.Expression) *ast.LexicalDeclaration {
	return &ast.LexicalDeclaration{
		Token: token.CONST,
		List:  []*ast.Binding{{Target: target, Initializer: init}},
	}
}

// Call returns `<callee>(<args…>)`.
func Call(callee ast.Expression, args ...ast.Expression) *ast.CallExpression {
	return &ast.CallExpression{Callee: callee, ArgumentList: args}
}

// Member returns `<obj>.<name>`.
func Member(obj ast.Expression, name string) *ast.DotExpression {
	return &ast.DotExpression{
		Left:       obj,
		Identifier: ast.Identifier{Name: unistring.NewFromString(name)},
	}
}

// ExprStmt wraps an expression as a statement.
func ExprStmt(e ast.Expression) *ast.ExpressionStatement {
	return &ast.ExpressionStatement{Expression: e}
}

// Return returns `return <e>;`.
func Return(e ast.Expression) *ast.ReturnStatement {
	return &ast.ReturnStatement{Argument: e}
}

// Assign returns `<left> = <right>`.
func Assign(left, right ast.Expression) *ast.AssignExpression {
	return &ast.AssignExpression{Operator: token.ASSIGN, Left: left, Right: right}
}

// Object returns an object literal from keyed properties in the given
// order.
func Object(props ...ast.Property) *ast.ObjectLiteral {
	return &ast.ObjectLiteral{Value: props}
}

// Prop returns a non-computed `key: value` property.
func Prop(key string, value ast.Expression) *ast.PropertyKeyed {
	return &ast.PropertyKeyed{
		Key:   Str(key),
		Kind:  ast.PropertyKindValue,
		Value: value,
	}
}

// Func returns an anonymous function expression with the given body.
func Func(params []string, body []ast.Statement) *ast.FunctionLiteral {
	pl := &ast.ParameterList{}
	for _, p := range params {
		pl.List = append(pl.List, &ast.Binding{Target: Ident(p)})
	}
	return &ast.FunctionLiteral{
		ParameterList: pl,
		Body:          &ast.BlockStatement{List: body},
	}
}

// IIFE returns `(function(params…){ body })(args…)` as a statement.
func IIFE(params []string, body []ast.Statement, args ...ast.Expression) *ast.ExpressionStatement {
	return ExprStmt(Call(Func(params, body), args...))
}

// Not returns `!<e>`.
func Not(e ast.Expression) *ast.UnaryExpression {
	return &ast.UnaryExpression{Operator: token.NOT, Operand: e}
}

// quoteJS renders a JS double-quoted string literal.
func quoteJS(s string) string {
	buf := make([]byte, 0, len(s)+2)
	buf = append(buf, '"')
	for _, r := range s {
		switch r {
		case '"':
			buf = append(buf, '\\', '"')
		case '\\':
			buf = append(buf, '\\', '\\')
		case '\n':
			buf = append(buf, '\\', 'n')
		case '\r':
			buf = append(buf, '\\', 'r')
		case '\t':
			buf = append(buf, '\\', 't')
		default:
			buf = append(buf, string(r)...)
		}
	}
	return string(append(buf, '"'))
}
