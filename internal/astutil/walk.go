// Package astutil provides traversal and construction helpers for goja's
// AST. goja ships the parser and the node types but no visitor, so the
// bundler carries its own: a read-only Walk for analysis passes and a
// bottom-up expression rewriter for the deglob transformation.
package astutil

import "github.com/dop251/goja/ast"

// Visitor is the callback pair for Walk. Enter runs before a node's
// children; returning false skips them. Exit runs after.
type Visitor interface {
	Enter(n ast.Node) bool
	Exit(n ast.Node)
}

// Walk traverses n in source order. Nil nodes are skipped so callers can
// pass optional fields without checking.
func Walk(v Visitor, n ast.Node) {
	if n == nil || isNilNode(n) {
		return
	}
	if !v.Enter(n) {
		v.Exit(n)
		return
	}
	walkChildren(v, n)
	v.Exit(n)
}

func walkChildren(v Visitor, n ast.Node) {
	switch n := n.(type) {
	case *ast.Program:
		for _, st := range n.Body {
			Walk(v, st)
		}

	// Statements.
	case *ast.BlockStatement:
		for _, st := range n.List {
			Walk(v, st)
		}
	case *ast.BranchStatement:
		Walk(v, n.Label)
	case *ast.CaseStatement:
		Walk(v, n.Test)
		for _, st := range n.Consequent {
			Walk(v, st)
		}
	case *ast.CatchStatement:
		walkBindingTarget(v, n.Parameter)
		Walk(v, n.Body)
	case *ast.DebuggerStatement, *ast.EmptyStatement, *ast.BadStatement:
	case *ast.DoWhileStatement:
		Walk(v, n.Body)
		Walk(v, n.Test)
	case *ast.ExpressionStatement:
		Walk(v, n.Expression)
	case *ast.ForInStatement:
		walkForInto(v, n.Into)
		Walk(v, n.Source)
		Walk(v, n.Body)
	case *ast.ForOfStatement:
		walkForInto(v, n.Into)
		Walk(v, n.Source)
		Walk(v, n.Body)
	case *ast.ForStatement:
		walkForInit(v, n.Initializer)
		Walk(v, n.Test)
		Walk(v, n.Update)
		Walk(v, n.Body)
	case *ast.FunctionDeclaration:
		Walk(v, n.Function)
	case *ast.ClassDeclaration:
		Walk(v, n.Class)
	case *ast.IfStatement:
		Walk(v, n.Test)
		Walk(v, n.Consequent)
		Walk(v, n.Alternate)
	case *ast.LabelledStatement:
		Walk(v, n.Label)
		Walk(v, n.Statement)
	case *ast.ReturnStatement:
		Walk(v, n.Argument)
	case *ast.SwitchStatement:
		Walk(v, n.Discriminant)
		for _, c := range n.Body {
			Walk(v, c)
		}
	case *ast.ThrowStatement:
		Walk(v, n.Argument)
	case *ast.TryStatement:
		Walk(v, n.Body)
		if n.Catch != nil {
			Walk(v, n.Catch)
		}
		Walk(v, n.Finally)
	case *ast.VariableStatement:
		for _, b := range n.List {
			walkBinding(v, b)
		}
	case *ast.LexicalDeclaration:
		for _, b := range n.List {
			walkBinding(v, b)
		}
	case *ast.WhileStatement:
		Walk(v, n.Test)
		Walk(v, n.Body)
	case *ast.WithStatement:
		Walk(v, n.Object)
		Walk(v, n.Body)

	// Module items.
	case *ast.ImportDeclaration:
		// Named and namespace import specifiers carry raw names rather
		// than identifier nodes; the default binding is the only child.
		if n.ImportClause != nil {
			Walk(v, n.ImportClause.ImportedDefaultBinding)
		}
	case *ast.ExportDeclaration:
		Walk(v, n.Variable)
		Walk(v, n.LexicalDeclaration)
		Walk(v, n.HoistableDeclaration)
		Walk(v, n.ClassDeclaration)
		Walk(v, n.AssignExpression)

	// Expressions.
	case *ast.ArrayLiteral:
		for _, e := range n.Value {
			Walk(v, e)
		}
	case *ast.ArrayPattern:
		for _, e := range n.Elements {
			Walk(v, e)
		}
		Walk(v, n.Rest)
	case *ast.ArrowFunctionLiteral:
		walkParams(v, n.ParameterList)
		Walk(v, n.Body)
	case *ast.AssignExpression:
		Walk(v, n.Left)
		Walk(v, n.Right)
	case *ast.AwaitExpression:
		Walk(v, n.Argument)
	case *ast.BadExpression:
	case *ast.BinaryExpression:
		Walk(v, n.Left)
		Walk(v, n.Right)
	case *ast.BooleanLiteral, *ast.NullLiteral, *ast.NumberLiteral,
		*ast.RegExpLiteral, *ast.StringLiteral:
	case *ast.BracketExpression:
		Walk(v, n.Left)
		Walk(v, n.Member)
	case *ast.CallExpression:
		Walk(v, n.Callee)
		for _, a := range n.ArgumentList {
			Walk(v, a)
		}
	case *ast.ClassLiteral:
		Walk(v, n.Name)
		Walk(v, n.SuperClass)
		for _, el := range n.Body {
			walkClassElement(v, el)
		}
	case *ast.ConditionalExpression:
		Walk(v, n.Test)
		Walk(v, n.Consequent)
		Walk(v, n.Alternate)
	case *ast.DotExpression:
		Walk(v, n.Left)
		Walk(v, &n.Identifier)
	case *ast.PrivateDotExpression:
		Walk(v, n.Left)
	case *ast.ExpressionBody:
		Walk(v, n.Expression)
	case *ast.FunctionLiteral:
		Walk(v, n.Name)
		walkParams(v, n.ParameterList)
		Walk(v, n.Body)
	case *ast.Identifier:
	case *ast.NewExpression:
		Walk(v, n.Callee)
		for _, a := range n.ArgumentList {
			Walk(v, a)
		}
	case *ast.ObjectLiteral:
		for _, p := range n.Value {
			walkProperty(v, p)
		}
	case *ast.ObjectPattern:
		for _, p := range n.Properties {
			walkProperty(v, p)
		}
		Walk(v, n.Rest)
	case *ast.Optional:
		Walk(v, n.Expression)
	case *ast.OptionalChain:
		Walk(v, n.Expression)
	case *ast.SequenceExpression:
		for _, e := range n.Sequence {
			Walk(v, e)
		}
	case *ast.SpreadElement:
		Walk(v, n.Expression)
	case *ast.SuperExpression, *ast.ThisExpression:
	case *ast.TemplateLiteral:
		Walk(v, n.Tag)
		for _, e := range n.Expressions {
			Walk(v, e)
		}
	case *ast.UnaryExpression:
		Walk(v, n.Operand)

	// Properties and class elements.
	case *ast.PropertyShort:
		Walk(v, &n.Name)
		Walk(v, n.Initializer)
	case *ast.PropertyKeyed:
		Walk(v, n.Key)
		Walk(v, n.Value)
	case *ast.MethodDefinition:
		Walk(v, n.Key)
		Walk(v, n.Body)
	case *ast.FieldDefinition:
		Walk(v, n.Key)
		Walk(v, n.Initializer)
	case *ast.ClassStaticBlock:
		Walk(v, n.Block)
	}
}

func walkBinding(v Visitor, b *ast.Binding) {
	if b == nil {
		return
	}
	walkBindingTarget(v, b.Target)
	Walk(v, b.Initializer)
}

func walkBindingTarget(v Visitor, t ast.BindingTarget) {
	if t == nil {
		return
	}
	Walk(v, t)
}

func walkParams(v Visitor, pl *ast.ParameterList) {
	if pl == nil {
		return
	}
	for _, b := range pl.List {
		walkBinding(v, b)
	}
	Walk(v, pl.Rest)
}

// walkProperty and walkClassElement dispatch through Walk so that visitors
// observe the property/member node itself, not just its children; the
// analyzer needs the parent to tell keys from value references.
func walkProperty(v Visitor, p ast.Property) {
	Walk(v, p)
}

func walkClassElement(v Visitor, el ast.ClassElement) {
	Walk(v, el)
}

func walkForInit(v Visitor, in ast.ForLoopInitializer) {
	switch in := in.(type) {
	case *ast.ForLoopInitializerExpression:
		Walk(v, in.Expression)
	case *ast.ForLoopInitializerVarDeclList:
		for _, b := range in.List {
			walkBinding(v, b)
		}
	case *ast.ForLoopInitializerLexicalDecl:
		for _, b := range in.LexicalDeclaration.List {
			walkBinding(v, b)
		}
	}
}

func walkForInto(v Visitor, in ast.ForInto) {
	switch in := in.(type) {
	case *ast.ForIntoVar:
		walkBinding(v, in.Binding)
	case *ast.ForDeclaration:
		walkBindingTarget(v, in.Target)
	case *ast.ForIntoExpression:
		Walk(v, in.Expression)
	}
}

// isNilNode guards against typed-nil interface values for optional fields
// like IfStatement.Alternate.
func isNilNode(n ast.Node) bool {
	switch n := n.(type) {
	case *ast.Identifier:
		return n == nil
	case *ast.BlockStatement:
		return n == nil
	case *ast.FunctionLiteral:
		return n == nil
	case *ast.ClassLiteral:
		return n == nil
	case *ast.VariableStatement:
		return n == nil
	case *ast.LexicalDeclaration:
		return n == nil
	case *ast.FunctionDeclaration:
		return n == nil
	case *ast.ClassDeclaration:
		return n == nil
	}
	return false
}

// enterFunc adapts a function to Visitor for the common enter-only case.
type enterFunc func(n ast.Node) bool

func (f enterFunc) Enter(n ast.Node) bool { return f(n) }
func (f enterFunc) Exit(ast.Node)         {}

// Inspect walks n calling f on every node; f returning false skips the
// node's children.
func Inspect(n ast.Node, f func(ast.Node) bool) {
	Walk(enterFunc(f), n)
}
