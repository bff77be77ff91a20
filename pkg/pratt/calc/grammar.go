// Package calc is a small calculator language built on the expression engine.
// Its operators come from a configurable notation table; numbers, strings,
// identifiers, grouping, calls and juxtaposed application ("sqrt 2") are
// built in.
package calc

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/sambeau/pratt/config"
	"github.com/sambeau/pratt/pkg/pratt/ast"
	"github.com/sambeau/pratt/pkg/pratt/lexer"
	"github.com/sambeau/pratt/pkg/pratt/parser"
	"github.com/sambeau/pratt/pkg/pratt/registry"
	"github.com/sambeau/pratt/pkg/pratt/token"
)

// Operation names understood by Eval, per notation kind.
var (
	infixOps   = map[string]bool{"add": true, "sub": true, "mul": true, "div": true, "mod": true, "pow": true, "eq": true, "ne": true, "lt": true, "le": true, "gt": true, "ge": true, "and": true, "or": true, "concat": true}
	prefixOps  = map[string]bool{"neg": true, "pos": true, "not": true}
	postfixOps = map[string]bool{"fact": true, "pct": true}
)

// defaultOps maps symbols to the operation they perform when a notation
// does not name one.
var defaultOps = map[string]map[string]string{
	config.KindInfix: {
		"+": "add", "-": "sub", "*": "mul", "/": "div", "%": "mod", "^": "pow",
		"==": "eq", "!=": "ne", "<": "lt", "<=": "le", ">": "gt", ">=": "ge",
		"++": "concat", "and": "and", "or": "or", "&&": "and", "||": "or",
	},
	config.KindPrefix: {
		"-": "neg", "+": "pos", "not": "not", "!": "not",
	},
	config.KindPostfix: {
		"!": "fact", "%": "pct",
	},
}

// Build assembles the registry for a notation table.
func Build(notations []config.Notation) (*registry.Registry, error) {
	b := registry.NewBuilder().
		LeadingKind(token.NUMBER, parseNumber).
		LeadingKind(token.STRING, parseString).
		LeadingKind(token.IDENT, parseIdentifier).
		Leading("(", parseGroup).
		Trailing("(", registry.MaxPrec, parseCall).
		TrailingKind(token.IDENT, parseApply).
		TrailingKind(token.NUMBER, parseApply).
		TrailingKind(token.STRING, parseApply).
		Terminator(")", 0).
		Terminator(",", 0)

	var errs []error
	terminators := map[string]bool{")": true, ",": true}
	for i, n := range notations {
		for _, sym := range n.Symbol {
			op, err := resolveOp(n, sym)
			if err != nil {
				errs = append(errs, fmt.Errorf("notations[%d]: %w", i, err))
				continue
			}
			switch n.Kind {
			case config.KindPrefix:
				b.Leading(sym, prefixRule(op, n.Precedence))
			case config.KindInfix:
				b.Trailing(sym, n.Precedence, infixRule(op, n.Precedence, n.Assoc == "right"))
			case config.KindPostfix:
				b.Trailing(sym, n.Precedence, postfixRule(op))
			case config.KindConditional:
				sep := n.Separator
				if sep == "" {
					sep = ":"
				}
				b.Trailing(sym, n.Precedence, conditionalRule(sep, n.Precedence, n.Assoc == "right"))
				if !terminators[sep] {
					terminators[sep] = true
					b.Terminator(sep, 0)
				}
			case config.KindTerminator:
				if !terminators[sym] {
					terminators[sym] = true
					b.Terminator(sym, n.Precedence)
				}
			default:
				errs = append(errs, fmt.Errorf("notations[%d]: unknown kind %q", i, n.Kind))
			}
		}
	}

	reg, err := b.Build()
	if err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, joinErrors(errs)
	}
	return reg, nil
}

func joinErrors(errs []error) error {
	if len(errs) == 1 {
		return errs[0]
	}
	msg := "grammar errors:"
	for _, e := range errs {
		msg += "\n  - " + e.Error()
	}
	return errors.New(msg)
}

func resolveOp(n config.Notation, sym string) (string, error) {
	var known map[string]bool
	switch n.Kind {
	case config.KindInfix:
		known = infixOps
	case config.KindPrefix:
		known = prefixOps
	case config.KindPostfix:
		known = postfixOps
	default:
		return "", nil
	}

	op := n.Op
	if op == "" {
		op = defaultOps[n.Kind][sym]
	}
	if op == "" {
		return "", fmt.Errorf("%s %q: no operation given and none known for the symbol", n.Kind, sym)
	}
	if !known[op] {
		return "", fmt.Errorf("%s %q: unknown operation %q", n.Kind, sym, op)
	}
	return op, nil
}

// Parse tokenizes and parses src with reg. Errors are *errors.ParseError.
func Parse(src string, reg *registry.Registry, opts ...parser.Option) (ast.Expression, error) {
	toks, err := lexer.Tokenize(src, reg)
	if err != nil {
		return nil, err
	}
	node, err := parser.New(token.NewStream(toks), reg, opts...).Parse()
	if err != nil {
		return nil, err
	}
	return node.(ast.Expression), nil
}

// Options returns the parser options for a configuration.
func Options(cfg *config.Config, logger *slog.Logger) []parser.Option {
	opts := []parser.Option{parser.WithMaxDepth(cfg.Parser.MaxDepth)}
	if logger != nil {
		opts = append(opts, parser.WithLogger(logger.With(slog.String("component", "parser"))))
	}
	return opts
}

func expr(c registry.Context, minPrec int) (ast.Expression, error) {
	node, err := c.ParseExpr(minPrec)
	if err != nil {
		return nil, err
	}
	return node.(ast.Expression), nil
}

func parseNumber(c registry.Context) (registry.Node, error) {
	tok := c.Advance()
	value, err := strconv.ParseFloat(tok.Text, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return nil, fmt.Errorf("could not parse %q as number", tok.Text)
	}
	return &ast.NumberLiteral{Token: tok, Value: value}, nil
}

func parseString(c registry.Context) (registry.Node, error) {
	tok := c.Advance()
	return &ast.StringLiteral{Token: tok, Value: lexer.Unquote(tok.Text)}, nil
}

func parseIdentifier(c registry.Context) (registry.Node, error) {
	tok := c.Advance()
	return &ast.Identifier{Token: tok, Value: tok.Text}, nil
}

func parseGroup(c registry.Context) (registry.Node, error) {
	c.Advance() // (
	inner, err := expr(c, 0)
	if err != nil {
		return nil, err
	}
	if _, err := c.Expect(")"); err != nil {
		return nil, err
	}
	return inner, nil
}

// parseCall parses f(a, b). Arguments are full expressions.
func parseCall(c registry.Context, left registry.Node) (registry.Node, error) {
	open := c.Advance()
	call := &ast.CallExpression{Token: open, Function: left.(ast.Expression)}

	if tok, ok := c.Peek(); ok && tok.Is(")") {
		call.End = c.Advance().Span.End
		return call, nil
	}
	for {
		arg, err := expr(c, 0)
		if err != nil {
			return nil, err
		}
		call.Arguments = append(call.Arguments, arg)

		if tok, ok := c.Peek(); ok && tok.Is(",") {
			c.Advance()
			continue
		}
		closing, err := c.Expect(")")
		if err != nil {
			return nil, err
		}
		call.End = closing.Span.End
		return call, nil
	}
}

// parseApply parses juxtaposition: the atom after an expression is its
// argument, and binds tighter than any operator.
func parseApply(c registry.Context, left registry.Node) (registry.Node, error) {
	first, _ := c.Peek()
	arg, err := expr(c, registry.MaxPrec+1)
	if err != nil {
		return nil, err
	}
	return &ast.CallExpression{
		Token:      first,
		Function:   left.(ast.Expression),
		Arguments:  []ast.Expression{arg},
		Juxtaposed: true,
		End:        arg.Span().End,
	}, nil
}

func prefixRule(op string, prec int) registry.LeadingRule {
	return func(c registry.Context) (registry.Node, error) {
		tok := c.Advance()
		right, err := expr(c, prec)
		if err != nil {
			return nil, err
		}
		return &ast.PrefixExpression{Token: tok, Operator: tok.Text, Op: op, Right: right}, nil
	}
}

func infixRule(op string, prec int, right bool) registry.TrailingRule {
	next := prec + 1
	if right {
		next = prec
	}
	return func(c registry.Context, left registry.Node) (registry.Node, error) {
		tok := c.Advance()
		rhs, err := expr(c, next)
		if err != nil {
			return nil, err
		}
		return &ast.InfixExpression{Token: tok, Left: left.(ast.Expression), Operator: tok.Text, Op: op, Right: rhs}, nil
	}
}

func postfixRule(op string) registry.TrailingRule {
	return func(c registry.Context, left registry.Node) (registry.Node, error) {
		tok := c.Advance()
		return &ast.PostfixExpression{Token: tok, Left: left.(ast.Expression), Operator: tok.Text, Op: op}, nil
	}
}

// conditionalRule parses "c ? a : b". The middle is a full expression; the
// separator ends it because separators are terminators.
func conditionalRule(sep string, prec int, right bool) registry.TrailingRule {
	next := prec + 1
	if right {
		next = prec
	}
	return func(c registry.Context, left registry.Node) (registry.Node, error) {
		tok := c.Advance()
		then, err := expr(c, 0)
		if err != nil {
			return nil, err
		}
		if _, err := c.Expect(sep); err != nil {
			return nil, err
		}
		otherwise, err := expr(c, next)
		if err != nil {
			return nil, err
		}
		return &ast.ConditionalExpression{
			Token:       tok,
			Condition:   left.(ast.Expression),
			Consequence: then,
			Alternative: otherwise,
		}, nil
	}
}
