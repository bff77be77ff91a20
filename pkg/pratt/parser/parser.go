// Package parser implements the expression engine: a Pratt parser whose
// notations come from a registry.Registry instead of a fixed grammar.
//
// Parsing an expression runs the leading rule for its first token and then a
// precedence-climbing loop that keeps folding trailing operators onto the
// result while their binding power reaches the caller's threshold. Rules
// parse their operands by calling back into ParseExpr, so the engine composes
// with itself through ordinary recursion.
//
// The loop is bounded by a fuel counter equal to the number of unread tokens
// when it starts, so a trailing rule that succeeds without consuming input
// cannot keep it spinning.
package parser

import (
	"context"
	stderrors "errors"
	"log/slog"

	perrors "github.com/sambeau/pratt/pkg/pratt/errors"
	"github.com/sambeau/pratt/pkg/pratt/registry"
	"github.com/sambeau/pratt/pkg/pratt/token"
)

// DefaultMaxDepth bounds how deeply ParseExpr may re-enter itself.
const DefaultMaxDepth = 512

// Cursor is the token source the parser reads from. Mark and Reset give the
// checkpoint that every failed ParseExpr restores.
type Cursor interface {
	Peek() (token.Token, bool)
	Advance() token.Token
	Remaining() int
	Mark() int
	Reset(mark int)
}

// Parser parses expressions from a Cursor using the notations in a Registry.
// A Parser is not safe for concurrent use; the Registry may be shared.
type Parser struct {
	cur      Cursor
	reg      *registry.Registry
	logger   *slog.Logger
	maxDepth int

	depth int
	last  token.Token // last token consumed, for end-of-input spans
}

// Option configures a Parser.
type Option func(*Parser)

// WithLogger sets the logger receiving Debug records for each loop step.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Parser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMaxDepth sets the recursion limit. Values below 1 keep the default.
func WithMaxDepth(depth int) Option {
	return func(p *Parser) {
		if depth > 0 {
			p.maxDepth = depth
		}
	}
}

// New creates a parser reading from cur.
func New(cur Cursor, reg *registry.Registry, opts ...Option) *Parser {
	p := &Parser{
		cur:      cur,
		reg:      reg,
		logger:   slog.New(slog.DiscardHandler),
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse parses the whole input as a single expression.
func (p *Parser) Parse() (registry.Node, error) {
	mark, last := p.cur.Mark(), p.last

	node, err := p.ParseExpr(0)
	if err != nil {
		return nil, err
	}

	if tok, ok := p.cur.Peek(); ok {
		p.cur.Reset(mark)
		p.last = last
		err := perrors.NewAt("PRATT-0004", tok.Span, map[string]any{
			"Expected": "end of input",
			"Got":      perrors.Describe(tok),
		}).WithExpected("end of input")
		if tok.Kind == token.SYMBOL || tok.Kind == token.OTHER {
			if match := perrors.FindClosestMatch(tok.Text, p.reg.Tokens()); match != "" {
				err.Hints = append(err.Hints, "did you mean '"+match+"'?")
			}
		}
		return nil, err
	}
	return node, nil
}

// ParseExpr parses an expression whose trailing operators all bind at least
// as tightly as minPrec. On failure the cursor is back where it started.
func (p *Parser) ParseExpr(minPrec int) (registry.Node, error) {
	if minPrec < 0 || minPrec > registry.MaxPrec+1 {
		return nil, perrors.NewAt("PRATT-0006", p.span(), map[string]any{
			"Threshold": minPrec,
			"Max":       registry.MaxPrec + 1,
		})
	}
	if p.depth >= p.maxDepth {
		return nil, perrors.NewAt("PRATT-0005", p.span(), map[string]any{"Limit": p.maxDepth})
	}
	p.depth++
	defer func() { p.depth-- }()

	mark, last := p.cur.Mark(), p.last
	fail := func(err error) (registry.Node, error) {
		p.cur.Reset(mark)
		p.last = last
		return nil, err
	}

	node, err := p.parseLeading()
	if err != nil {
		var pe *perrors.ParseError
		if stderrors.As(err, &pe) && pe.Kind == perrors.KindNoLeadingRule {
			err = pe.WithExpected("expression")
		}
		return fail(err)
	}

	node, err = p.trailingLoop(node, minPrec, p.cur.Remaining())
	if err != nil {
		return fail(err)
	}
	return node, nil
}

// parseLeading dispatches on the first token of an expression.
func (p *Parser) parseLeading() (registry.Node, error) {
	tok, ok := p.cur.Peek()
	if !ok {
		return nil, perrors.NewAt("PRATT-0001", p.span(), map[string]any{"Token": "end of input"})
	}
	rule, ok := p.reg.LookupLeading(tok)
	if !ok {
		return nil, perrors.NewAt("PRATT-0001", tok.Span, map[string]any{"Token": perrors.Describe(tok)})
	}
	return rule(p)
}

// currentLBP returns the left binding power of the lookahead. It only peeks.
func (p *Parser) currentLBP() (int, error) {
	tok, ok := p.cur.Peek()
	if !ok {
		return 0, nil
	}
	if entry, ok := p.reg.LookupTrailing(tok.Text); ok {
		return entry.Precedence, nil
	}

	switch tok.Kind {
	case token.IDENT, token.STRING, token.NUMBER:
		return registry.MaxPrec, nil
	case token.SYMBOL:
		// Registered, but only in leading position.
		return 0, perrors.NewAt("PRATT-0007", tok.Span, map[string]any{"Symbol": tok.Text})
	}
	return 0, perrors.NewAt("PRATT-0002", tok.Span, map[string]any{
		"Token": perrors.Describe(tok),
		"Kind":  tok.Kind.String(),
	})
}

// trailingLoop folds trailing operators onto node until the lookahead binds
// more loosely than threshold, input runs out, or fuel is spent.
func (p *Parser) trailingLoop(node registry.Node, threshold, fuel int) (registry.Node, error) {
	debug := p.logger.Enabled(context.Background(), slog.LevelDebug)

	for {
		if fuel <= 0 {
			if debug {
				p.logger.Debug("trailing loop done", "reason", "fuel", "threshold", threshold)
			}
			return node, nil
		}

		bp, err := p.currentLBP()
		if err != nil {
			return nil, err
		}
		tok, ok := p.cur.Peek()
		if !ok || bp < threshold {
			if debug {
				p.logger.Debug("trailing loop done", "reason", "precedence", "symbol", tok.Text,
					"bp", bp, "threshold", threshold, "fuel", fuel)
			}
			return node, nil
		}

		rule, ok := p.reg.TrailingRuleFor(tok)
		if !ok {
			if debug {
				p.logger.Debug("trailing loop done", "reason", "no rule", "symbol", tok.Text,
					"bp", bp, "threshold", threshold, "fuel", fuel)
			}
			return node, nil
		}

		if debug {
			p.logger.Debug("trailing loop apply", "symbol", tok.Text,
				"bp", bp, "threshold", threshold, "fuel", fuel)
		}
		next, err := rule(p, node)
		if err != nil {
			var pe *perrors.ParseError
			if stderrors.As(err, &pe) {
				return nil, err
			}
			return nil, perrors.Wrap("PRATT-0003", tok.Span, err, map[string]any{"Symbol": tok.Text})
		}
		node = next
		fuel--
	}
}

// Peek returns the next token without consuming it.
func (p *Parser) Peek() (token.Token, bool) {
	return p.cur.Peek()
}

// Advance consumes the next token.
func (p *Parser) Advance() token.Token {
	if _, ok := p.cur.Peek(); !ok {
		return token.Token{}
	}
	p.last = p.cur.Advance()
	return p.last
}

// Remaining returns the number of unread tokens.
func (p *Parser) Remaining() int {
	return p.cur.Remaining()
}

// Expect consumes the symbol text or fails without consuming anything.
func (p *Parser) Expect(text string) (token.Token, error) {
	tok, ok := p.cur.Peek()
	if ok && tok.Is(text) {
		return p.Advance(), nil
	}

	got := "end of input"
	span := p.span()
	if ok {
		got = perrors.Describe(tok)
	}
	want := "'" + text + "'"
	return token.Token{}, perrors.NewAt("PRATT-0004", span, map[string]any{
		"Expected": want,
		"Got":      got,
	}).WithExpected(want)
}

// span locates the lookahead, or the point just past the last consumed token.
func (p *Parser) span() token.Span {
	if tok, ok := p.cur.Peek(); ok {
		return tok.Span
	}
	end := p.last.Span.End
	if end.Line == 0 {
		end = token.Pos{Line: 1, Column: 1}
	}
	return token.Span{Start: end, End: end}
}

var _ registry.Context = (*Parser)(nil)
