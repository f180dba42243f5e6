package printer

import (
	"fmt"
	"strings"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/token"
)

// Precedence levels, loosest first. A child is parenthesized when its own
// level is looser than what its position requires.
type level int

const (
	levelLowest level = iota // sequence
	levelAssign
	levelConditional
	levelLogicalOr
	levelLogicalAnd
	levelBitOr
	levelBitXor
	levelBitAnd
	levelEquality
	levelRelational
	levelShift
	levelAdditive
	levelMultiplicative
	levelExponent
	levelUnary
	levelPostfix
	levelCall
	levelMember
	levelPrimary
)

var binaryLevels = map[string]level{
	"??": levelLogicalOr,
	"||": levelLogicalOr,
	"&&": levelLogicalAnd,
	"|":  levelBitOr,
	"^":  levelBitXor,
	"&":  levelBitAnd,
	"==": levelEquality, "!=": levelEquality, "===": levelEquality, "!==": levelEquality,
	"<": levelRelational, ">": levelRelational, "<=": levelRelational, ">=": levelRelational,
	"instanceof": levelRelational, "in": levelRelational,
	"<<": levelShift, ">>": levelShift, ">>>": levelShift,
	"+": levelAdditive, "-": levelAdditive,
	"*": levelMultiplicative, "/": levelMultiplicative, "%": levelMultiplicative,
	"**": levelExponent,
}

func (p *printer) printExpr(e ast.Expression, min level) {
	if e == nil {
		return
	}
	own := exprLevel(e)
	parens := own < min
	if parens {
		p.print("(")
	}
	p.printExprInner(e)
	if parens {
		p.print(")")
	}
}

func exprLevel(e ast.Expression) level {
	switch e := e.(type) {
	case *ast.SequenceExpression:
		return levelLowest
	case *ast.AssignExpression:
		return levelAssign
	case *ast.ConditionalExpression, *ast.ArrowFunctionLiteral:
		return levelConditional
	case *ast.BinaryExpression:
		if lv, ok := binaryLevels[e.Operator.String()]; ok {
			return lv
		}
		return levelAdditive
	case *ast.UnaryExpression:
		if e.Postfix {
			return levelPostfix
		}
		return levelUnary
	case *ast.AwaitExpression:
		return levelUnary
	case *ast.CallExpression, *ast.OptionalChain:
		return levelCall
	case *ast.NewExpression, *ast.DotExpression, *ast.PrivateDotExpression,
		*ast.BracketExpression:
		return levelMember
	default:
		return levelPrimary
	}
}

func (p *printer) printExprInner(e ast.Expression) {
	switch e := e.(type) {
	case *ast.Identifier:
		p.print(p.name(e))
	case *ast.StringLiteral:
		if e.Literal != "" {
			p.print(e.Literal)
		} else {
			p.print(quote(string(e.Value)))
		}
	case *ast.NumberLiteral:
		if e.Literal != "" {
			p.print(e.Literal)
		} else {
			p.print(fmt.Sprintf("%v", e.Value))
		}
	case *ast.BooleanLiteral:
		if e.Value {
			p.print("true")
		} else {
			p.print("false")
		}
	case *ast.NullLiteral:
		p.print("null")
	case *ast.RegExpLiteral:
		p.print(e.Literal)
	case *ast.ThisExpression:
		p.print("this")
	case *ast.SuperExpression:
		p.print("super")

	case *ast.ArrayLiteral:
		p.print("[")
		for i, el := range e.Value {
			if i > 0 {
				p.print(", ")
			}
			p.printExpr(el, levelAssign)
		}
		p.print("]")
	case *ast.ObjectLiteral:
		if len(e.Value) == 0 {
			p.print("{}")
			return
		}
		p.print("{ ")
		for i, prop := range e.Value {
			if i > 0 {
				p.print(", ")
			}
			p.printProperty(prop)
		}
		p.print(" }")
	case *ast.ArrayPattern:
		p.print("[")
		for i, el := range e.Elements {
			if i > 0 {
				p.print(", ")
			}
			p.printExpr(el, levelAssign)
		}
		if e.Rest != nil {
			if len(e.Elements) > 0 {
				p.print(", ")
			}
			p.print("...")
			p.printExpr(e.Rest, levelAssign)
		}
		p.print("]")
	case *ast.ObjectPattern:
		p.print("{ ")
		for i, prop := range e.Properties {
			if i > 0 {
				p.print(", ")
			}
			p.printProperty(prop)
		}
		if e.Rest != nil {
			if len(e.Properties) > 0 {
				p.print(", ")
			}
			p.print("...")
			p.printExpr(e.Rest, levelAssign)
		}
		p.print(" }")

	case *ast.DotExpression:
		p.printExpr(e.Left, levelMember)
		p.print("." + string(e.Identifier.Name))
	case *ast.PrivateDotExpression:
		p.printExpr(e.Left, levelMember)
		p.print(".#" + string(e.Identifier.Name))
	case *ast.BracketExpression:
		p.printExpr(e.Left, levelMember)
		p.print("[")
		p.printExpr(e.Member, levelLowest)
		p.print("]")
	case *ast.CallExpression:
		// A function-literal callee needs parens or the statement parses
		// as a declaration.
		if _, isFn := e.Callee.(*ast.FunctionLiteral); isFn {
			p.print("(")
			p.printExpr(e.Callee, levelLowest)
			p.print(")")
		} else {
			p.printExpr(e.Callee, levelCall)
		}
		p.printArgs(e.ArgumentList)
	case *ast.NewExpression:
		p.print("new ")
		p.printExpr(e.Callee, levelMember)
		p.printArgs(e.ArgumentList)
	case *ast.Optional:
		switch inner := e.Expression.(type) {
		case *ast.DotExpression:
			p.printExpr(inner.Left, levelMember)
			p.print("?." + string(inner.Identifier.Name))
		case *ast.BracketExpression:
			p.printExpr(inner.Left, levelMember)
			p.print("?.[")
			p.printExpr(inner.Member, levelLowest)
			p.print("]")
		case *ast.CallExpression:
			p.printExpr(inner.Callee, levelCall)
			p.print("?.")
			p.printArgs(inner.ArgumentList)
		default:
			p.printExpr(e.Expression, levelCall)
		}
	case *ast.OptionalChain:
		p.printExpr(e.Expression, levelCall)

	case *ast.AssignExpression:
		p.printExpr(e.Left, levelUnary)
		p.print(" " + e.Operator.String() + " ")
		p.printExpr(e.Right, levelAssign)
	case *ast.BinaryExpression:
		lv := exprLevel(e)
		p.printExpr(e.Left, lv)
		p.print(" " + e.Operator.String() + " ")
		p.printExpr(e.Right, lv+1)
	case *ast.UnaryExpression:
		op := e.Operator.String()
		if e.Postfix {
			p.printExpr(e.Operand, levelPostfix)
			p.print(op)
			return
		}
		p.print(op)
		if op == token.TYPEOF.String() || op == token.DELETE.String() ||
			op == token.VOID.String() || len(op) > 2 {
			p.print(" ")
		}
		p.printExpr(e.Operand, levelUnary)
	case *ast.ConditionalExpression:
		p.printExpr(e.Test, levelLogicalOr)
		p.print(" ? ")
		p.printExpr(e.Consequent, levelAssign)
		p.print(" : ")
		p.printExpr(e.Alternate, levelAssign)
	case *ast.SequenceExpression:
		for i, sub := range e.Sequence {
			if i > 0 {
				p.print(", ")
			}
			p.printExpr(sub, levelAssign)
		}
	case *ast.SpreadElement:
		p.print("...")
		p.printExpr(e.Expression, levelAssign)
	case *ast.AwaitExpression:
		p.print("await ")
		p.printExpr(e.Argument, levelUnary)

	case *ast.FunctionLiteral:
		p.printFunction(e)
	case *ast.ArrowFunctionLiteral:
		if e.Async {
			p.print("async ")
		}
		p.printParams(e.ParameterList)
		p.print(" => ")
		switch body := e.Body.(type) {
		case *ast.BlockStatement:
			p.printBlock(body)
		case *ast.ExpressionBody:
			// An object literal body needs parens to not read as a block.
			if _, isObj := body.Expression.(*ast.ObjectLiteral); isObj {
				p.print("(")
				p.printExpr(body.Expression, levelAssign)
				p.print(")")
			} else {
				p.printExpr(body.Expression, levelAssign)
			}
		}
	case *ast.ClassLiteral:
		p.printClass(e)
	case *ast.TemplateLiteral:
		if e.Tag != nil {
			p.printExpr(e.Tag, levelMember)
		}
		p.print("`")
		for i, el := range e.Elements {
			p.print(el.Literal)
			if i < len(e.Expressions) {
				p.print("${")
				p.printExpr(e.Expressions[i], levelLowest)
				p.print("}")
			}
		}
		p.print("`")

	default:
		p.print("/* unsupported expression */")
	}
}

func (p *printer) printArgs(args []ast.Expression) {
	p.print("(")
	for i, a := range args {
		if i > 0 {
			p.print(", ")
		}
		p.printExpr(a, levelAssign)
	}
	p.print(")")
}

func (p *printer) printProperty(prop ast.Property) {
	switch prop := prop.(type) {
	case *ast.PropertyShort:
		// A renamed shorthand has to expand back to key: value.
		final := p.name(&prop.Name)
		if final != string(prop.Name.Name) {
			p.print(string(prop.Name.Name) + ": " + final)
		} else {
			p.print(final)
		}
		if prop.Initializer != nil {
			p.print(" = ")
			p.printExpr(prop.Initializer, levelAssign)
		}
	case *ast.PropertyKeyed:
		switch prop.Kind {
		case ast.PropertyKindGet:
			p.print("get ")
		case ast.PropertyKindSet:
			p.print("set ")
		}
		p.printPropertyKey(prop.Key, prop.Computed)
		if prop.Kind == ast.PropertyKindMethod ||
			prop.Kind == ast.PropertyKindGet || prop.Kind == ast.PropertyKindSet {
			if fn, ok := prop.Value.(*ast.FunctionLiteral); ok {
				p.printParams(fn.ParameterList)
				p.print(" ")
				p.printBlock(fn.Body)
				return
			}
		}
		p.print(": ")
		p.printExpr(prop.Value, levelAssign)
	case *ast.SpreadElement:
		p.print("...")
		p.printExpr(prop.Expression, levelAssign)
	}
}

func (p *printer) printPropertyKey(key ast.Expression, computed bool) {
	if computed {
		p.print("[")
		p.printExpr(key, levelAssign)
		p.print("]")
		return
	}
	switch key := key.(type) {
	case *ast.Identifier:
		p.print(string(key.Name))
	case *ast.StringLiteral:
		if isIdentName(string(key.Value)) {
			p.print(string(key.Value))
		} else {
			p.print(quote(string(key.Value)))
		}
	default:
		p.printExpr(key, levelAssign)
	}
}

func (p *printer) printFunction(fn *ast.FunctionLiteral) {
	if fn.Async {
		p.print("async ")
	}
	p.print("function")
	if fn.Generator {
		p.print("*")
	}
	if fn.Name != nil {
		p.print(" " + p.name(fn.Name))
	}
	p.printParams(fn.ParameterList)
	p.print(" ")
	p.printBlock(fn.Body)
}

func (p *printer) printParams(pl *ast.ParameterList) {
	p.print("(")
	if pl != nil {
		for i, b := range pl.List {
			if i > 0 {
				p.print(", ")
			}
			p.printBindingTarget(b.Target)
			if b.Initializer != nil {
				p.print(" = ")
				p.printExpr(b.Initializer, levelAssign)
			}
		}
		if pl.Rest != nil {
			if len(pl.List) > 0 {
				p.print(", ")
			}
			p.print("...")
			p.printExpr(pl.Rest, levelAssign)
		}
	}
	p.print(")")
}

func (p *printer) printClass(cls *ast.ClassLiteral) {
	p.print("class")
	if cls.Name != nil {
		p.print(" " + p.name(cls.Name))
	}
	if cls.SuperClass != nil {
		p.print(" extends ")
		p.printExpr(cls.SuperClass, levelMember)
	}
	p.print(" {")
	p.newline()
	p.indent++
	for _, el := range cls.Body {
		p.printIndent()
		switch el := el.(type) {
		case *ast.MethodDefinition:
			if el.Static {
				p.print("static ")
			}
			switch el.Kind {
			case ast.PropertyKindGet:
				p.print("get ")
			case ast.PropertyKindSet:
				p.print("set ")
			}
			p.printPropertyKey(el.Key, el.Computed)
			p.printParams(el.Body.ParameterList)
			p.print(" ")
			p.printBlock(el.Body.Body)
		case *ast.FieldDefinition:
			if el.Static {
				p.print("static ")
			}
			p.printPropertyKey(el.Key, el.Computed)
			if el.Initializer != nil {
				p.print(" = ")
				p.printExpr(el.Initializer, levelAssign)
			}
			p.print(";")
		case *ast.ClassStaticBlock:
			p.print("static ")
			p.printBlock(el.Block)
		}
		p.newline()
	}
	p.indent--
	p.printIndent()
	p.print("}")
}

func quote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func isIdentName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r == '$' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
