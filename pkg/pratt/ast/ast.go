package ast

import (
	"bytes"
	"strings"

	"github.com/sambeau/pratt/pkg/pratt/token"
)

// Node represents any node in the AST
type Node interface {
	TokenLiteral() string
	String() string
}

// Expression represents expression nodes
type Expression interface {
	Node
	expressionNode()
	Span() token.Span
}

// NumberLiteral represents numeric literals like 42 or 2.5e3
type NumberLiteral struct {
	Token token.Token
	Value float64
}

func (nl *NumberLiteral) expressionNode()      {}
func (nl *NumberLiteral) TokenLiteral() string { return nl.Token.Text }
func (nl *NumberLiteral) String() string       { return nl.Token.Text }
func (nl *NumberLiteral) Span() token.Span     { return nl.Token.Span }

// StringLiteral represents string literals; Value has escapes applied
type StringLiteral struct {
	Token token.Token
	Value string
}

func (sl *StringLiteral) expressionNode()      {}
func (sl *StringLiteral) TokenLiteral() string { return sl.Token.Text }
func (sl *StringLiteral) String() string       { return sl.Token.Text }
func (sl *StringLiteral) Span() token.Span     { return sl.Token.Span }

// Identifier represents a name
type Identifier struct {
	Token token.Token
	Value string
}

func (i *Identifier) expressionNode()      {}
func (i *Identifier) TokenLiteral() string { return i.Token.Text }
func (i *Identifier) String() string       { return i.Value }
func (i *Identifier) Span() token.Span     { return i.Token.Span }

// PrefixExpression represents prefix expressions like -x or not x.
// Op names the operation to perform; Operator is the symbol as written.
type PrefixExpression struct {
	Token    token.Token // the prefix token, e.g. -
	Operator string
	Op       string
	Right    Expression
}

func (pe *PrefixExpression) expressionNode()      {}
func (pe *PrefixExpression) TokenLiteral() string { return pe.Token.Text }
func (pe *PrefixExpression) String() string {
	var out bytes.Buffer

	out.WriteString("(")
	out.WriteString(pe.Operator)
	if isWord(pe.Operator) {
		out.WriteString(" ")
	}
	out.WriteString(pe.Right.String())
	out.WriteString(")")

	return out.String()
}
func (pe *PrefixExpression) Span() token.Span {
	return token.Span{Start: pe.Token.Span.Start, End: pe.Right.Span().End}
}

// InfixExpression represents infix expressions like 'x + y'
type InfixExpression struct {
	Token    token.Token // the operator token, e.g. +
	Left     Expression
	Operator string
	Op       string
	Right    Expression
}

func (ie *InfixExpression) expressionNode()      {}
func (ie *InfixExpression) TokenLiteral() string { return ie.Token.Text }
func (ie *InfixExpression) String() string {
	var out bytes.Buffer

	out.WriteString("(")
	out.WriteString(ie.Left.String())
	out.WriteString(" " + ie.Operator + " ")
	out.WriteString(ie.Right.String())
	out.WriteString(")")

	return out.String()
}
func (ie *InfixExpression) Span() token.Span {
	return token.Span{Start: ie.Left.Span().Start, End: ie.Right.Span().End}
}

// PostfixExpression represents postfix expressions like n!
type PostfixExpression struct {
	Token    token.Token // the operator token
	Left     Expression
	Operator string
	Op       string
}

func (pe *PostfixExpression) expressionNode()      {}
func (pe *PostfixExpression) TokenLiteral() string { return pe.Token.Text }
func (pe *PostfixExpression) String() string {
	return "(" + pe.Left.String() + pe.Operator + ")"
}
func (pe *PostfixExpression) Span() token.Span {
	return token.Span{Start: pe.Left.Span().Start, End: pe.Token.Span.End}
}

// CallExpression represents function application: f(x, y) or, when
// Juxtaposed, f x.
type CallExpression struct {
	Token      token.Token // the '(' token, or the argument's first token
	Function   Expression
	Arguments  []Expression
	Juxtaposed bool
	End        token.Pos
}

func (ce *CallExpression) expressionNode()      {}
func (ce *CallExpression) TokenLiteral() string { return ce.Token.Text }
func (ce *CallExpression) String() string {
	if ce.Juxtaposed && len(ce.Arguments) == 1 {
		return "(" + ce.Function.String() + " " + ce.Arguments[0].String() + ")"
	}

	args := make([]string, 0, len(ce.Arguments))
	for _, a := range ce.Arguments {
		args = append(args, a.String())
	}
	return ce.Function.String() + "(" + strings.Join(args, ", ") + ")"
}
func (ce *CallExpression) Span() token.Span {
	return token.Span{Start: ce.Function.Span().Start, End: ce.End}
}

// ConditionalExpression represents cond ? then : else
type ConditionalExpression struct {
	Token       token.Token // the '?' token
	Condition   Expression
	Consequence Expression
	Alternative Expression
}

func (ce *ConditionalExpression) expressionNode()      {}
func (ce *ConditionalExpression) TokenLiteral() string { return ce.Token.Text }
func (ce *ConditionalExpression) String() string {
	var out bytes.Buffer

	out.WriteString("(")
	out.WriteString(ce.Condition.String())
	out.WriteString(" ? ")
	out.WriteString(ce.Consequence.String())
	out.WriteString(" : ")
	out.WriteString(ce.Alternative.String())
	out.WriteString(")")

	return out.String()
}
func (ce *ConditionalExpression) Span() token.Span {
	return token.Span{Start: ce.Condition.Span().Start, End: ce.Alternative.Span().End}
}

func isWord(op string) bool {
	for _, r := range op {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return op != ""
}
