package astutil

import "github.com/dop251/goja/ast"

// RewriteFunc maps an expression to its replacement. Returning the input
// unchanged leaves the tree alone. The walk is bottom-up: children are
// rewritten before their parent is offered.
type RewriteFunc func(e ast.Expression) ast.Expression

// RewriteExpressions applies fn to every expression slot reachable from n.
// It mutates the tree in place and is the mechanism behind deglobbing,
// where a member access node is replaced wholesale by an identifier.
func RewriteExpressions(n ast.Node, fn RewriteFunc) {
	switch n := n.(type) {
	case *ast.Program:
		for _, st := range n.Body {
			RewriteExpressions(st, fn)
		}

	case *ast.BlockStatement:
		for _, st := range n.List {
			RewriteExpressions(st, fn)
		}
	case *ast.CaseStatement:
		n.Test = rewriteExpr(n.Test, fn)
		for _, st := range n.Consequent {
			RewriteExpressions(st, fn)
		}
	case *ast.CatchStatement:
		RewriteExpressions(n.Body, fn)
	case *ast.DoWhileStatement:
		RewriteExpressions(n.Body, fn)
		n.Test = rewriteExpr(n.Test, fn)
	case *ast.ExpressionStatement:
		n.Expression = rewriteExpr(n.Expression, fn)
	case *ast.ForInStatement:
		rewriteForInto(n.Into, fn)
		n.Source = rewriteExpr(n.Source, fn)
		RewriteExpressions(n.Body, fn)
	case *ast.ForOfStatement:
		rewriteForInto(n.Into, fn)
		n.Source = rewriteExpr(n.Source, fn)
		RewriteExpressions(n.Body, fn)
	case *ast.ForStatement:
		rewriteForInit(n.Initializer, fn)
		n.Test = rewriteExpr(n.Test, fn)
		n.Update = rewriteExpr(n.Update, fn)
		RewriteExpressions(n.Body, fn)
	case *ast.FunctionDeclaration:
		RewriteExpressions(n.Function, fn)
	case *ast.ClassDeclaration:
		RewriteExpressions(n.Class, fn)
	case *ast.IfStatement:
		n.Test = rewriteExpr(n.Test, fn)
		RewriteExpressions(n.Consequent, fn)
		if n.Alternate != nil {
			RewriteExpressions(n.Alternate, fn)
		}
	case *ast.LabelledStatement:
		RewriteExpressions(n.Statement, fn)
	case *ast.ReturnStatement:
		n.Argument = rewriteExpr(n.Argument, fn)
	case *ast.SwitchStatement:
		n.Discriminant = rewriteExpr(n.Discriminant, fn)
		for _, c := range n.Body {
			RewriteExpressions(c, fn)
		}
	case *ast.ThrowStatement:
		n.Argument = rewriteExpr(n.Argument, fn)
	case *ast.TryStatement:
		RewriteExpressions(n.Body, fn)
		if n.Catch != nil {
			RewriteExpressions(n.Catch, fn)
		}
		if n.Finally != nil {
			RewriteExpressions(n.Finally, fn)
		}
	case *ast.VariableStatement:
		for _, b := range n.List {
			rewriteBinding(b, fn)
		}
	case *ast.LexicalDeclaration:
		for _, b := range n.List {
			rewriteBinding(b, fn)
		}
	case *ast.WhileStatement:
		n.Test = rewriteExpr(n.Test, fn)
		RewriteExpressions(n.Body, fn)
	case *ast.WithStatement:
		n.Object = rewriteExpr(n.Object, fn)
		RewriteExpressions(n.Body, fn)
	case *ast.ExportDeclaration:
		if n.Variable != nil {
			RewriteExpressions(n.Variable, fn)
		}
		if n.LexicalDeclaration != nil {
			RewriteExpressions(n.LexicalDeclaration, fn)
		}
		if n.HoistableDeclaration != nil {
			RewriteExpressions(n.HoistableDeclaration, fn)
		}
		if n.ClassDeclaration != nil {
			RewriteExpressions(n.ClassDeclaration, fn)
		}
		n.AssignExpression = rewriteExpr(n.AssignExpression, fn)

	case *ast.FunctionLiteral:
		rewriteParams(n.ParameterList, fn)
		RewriteExpressions(n.Body, fn)
	case *ast.ClassLiteral:
		n.SuperClass = rewriteExpr(n.SuperClass, fn)
		for _, el := range n.Body {
			switch el := el.(type) {
			case *ast.MethodDefinition:
				el.Key = rewriteExpr(el.Key, fn)
				RewriteExpressions(el.Body, fn)
			case *ast.FieldDefinition:
				el.Key = rewriteExpr(el.Key, fn)
				el.Initializer = rewriteExpr(el.Initializer, fn)
			case *ast.ClassStaticBlock:
				RewriteExpressions(el.Block, fn)
			}
		}
	}
}

// rewriteExpr rewrites e's children, then offers e itself to fn.
func rewriteExpr(e ast.Expression, fn RewriteFunc) ast.Expression {
	if e == nil {
		return nil
	}
	switch e := e.(type) {
	case *ast.ArrayLiteral:
		for i, el := range e.Value {
			e.Value[i] = rewriteExpr(el, fn)
		}
	case *ast.ArrayPattern:
		for i, el := range e.Elements {
			e.Elements[i] = rewriteExpr(el, fn)
		}
		e.Rest = rewriteExpr(e.Rest, fn)
	case *ast.ArrowFunctionLiteral:
		rewriteParams(e.ParameterList, fn)
		switch body := e.Body.(type) {
		case *ast.BlockStatement:
			RewriteExpressions(body, fn)
		case *ast.ExpressionBody:
			body.Expression = rewriteExpr(body.Expression, fn)
		}
	case *ast.AssignExpression:
		e.Left = rewriteExpr(e.Left, fn)
		e.Right = rewriteExpr(e.Right, fn)
	case *ast.AwaitExpression:
		e.Argument = rewriteExpr(e.Argument, fn)
	case *ast.BinaryExpression:
		e.Left = rewriteExpr(e.Left, fn)
		e.Right = rewriteExpr(e.Right, fn)
	case *ast.BracketExpression:
		e.Left = rewriteExpr(e.Left, fn)
		e.Member = rewriteExpr(e.Member, fn)
	case *ast.CallExpression:
		e.Callee = rewriteExpr(e.Callee, fn)
		for i, a := range e.ArgumentList {
			e.ArgumentList[i] = rewriteExpr(a, fn)
		}
	case *ast.ClassLiteral:
		RewriteExpressions(e, fn)
		return fn(e)
	case *ast.ConditionalExpression:
		e.Test = rewriteExpr(e.Test, fn)
		e.Consequent = rewriteExpr(e.Consequent, fn)
		e.Alternate = rewriteExpr(e.Alternate, fn)
	case *ast.DotExpression:
		e.Left = rewriteExpr(e.Left, fn)
	case *ast.PrivateDotExpression:
		e.Left = rewriteExpr(e.Left, fn)
	case *ast.FunctionLiteral:
		RewriteExpressions(e, fn)
		return fn(e)
	case *ast.NewExpression:
		e.Callee = rewriteExpr(e.Callee, fn)
		for i, a := range e.ArgumentList {
			e.ArgumentList[i] = rewriteExpr(a, fn)
		}
	case *ast.ObjectLiteral:
		for _, p := range e.Value {
			rewriteProperty(p, fn)
		}
	case *ast.ObjectPattern:
		for _, p := range e.Properties {
			rewriteProperty(p, fn)
		}
		e.Rest = rewriteExpr(e.Rest, fn)
	case *ast.Optional:
		e.Expression = rewriteExpr(e.Expression, fn)
	case *ast.OptionalChain:
		e.Expression = rewriteExpr(e.Expression, fn)
	case *ast.SequenceExpression:
		for i, el := range e.Sequence {
			e.Sequence[i] = rewriteExpr(el, fn)
		}
	case *ast.SpreadElement:
		e.Expression = rewriteExpr(e.Expression, fn)
	case *ast.TemplateLiteral:
		e.Tag = rewriteExpr(e.Tag, fn)
		for i, el := range e.Expressions {
			e.Expressions[i] = rewriteExpr(el, fn)
		}
	case *ast.UnaryExpression:
		e.Operand = rewriteExpr(e.Operand, fn)
	}
	return fn(e)
}

func rewriteBinding(b *ast.Binding, fn RewriteFunc) {
	if b == nil {
		return
	}
	if pat, ok := b.Target.(ast.Expression); ok {
		if repl, ok := rewriteExpr(pat, fn).(ast.BindingTarget); ok {
			b.Target = repl
		}
	}
	b.Initializer = rewriteExpr(b.Initializer, fn)
}

func rewriteParams(pl *ast.ParameterList, fn RewriteFunc) {
	if pl == nil {
		return
	}
	for _, b := range pl.List {
		rewriteBinding(b, fn)
	}
	pl.Rest = rewriteExpr(pl.Rest, fn)
}

func rewriteProperty(p ast.Property, fn RewriteFunc) {
	switch p := p.(type) {
	case *ast.PropertyShort:
		p.Initializer = rewriteExpr(p.Initializer, fn)
	case *ast.PropertyKeyed:
		if p.Computed {
			p.Key = rewriteExpr(p.Key, fn)
		}
		p.Value = rewriteExpr(p.Value, fn)
	case *ast.SpreadElement:
		p.Expression = rewriteExpr(p.Expression, fn)
	}
}

func rewriteForInit(in ast.ForLoopInitializer, fn RewriteFunc) {
	switch in := in.(type) {
	case *ast.ForLoopInitializerExpression:
		in.Expression = rewriteExpr(in.Expression, fn)
	case *ast.ForLoopInitializerVarDeclList:
		for _, b := range in.List {
			rewriteBinding(b, fn)
		}
	case *ast.ForLoopInitializerLexicalDecl:
		for _, b := range in.LexicalDeclaration.List {
			rewriteBinding(b, fn)
		}
	}
}

func rewriteForInto(in ast.ForInto, fn RewriteFunc) {
	switch in := in.(type) {
	case *ast.ForIntoVar:
		rewriteBinding(in.Binding, fn)
	case *ast.ForIntoExpression:
		in.Expression = rewriteExpr(in.Expression, fn)
	}
}
