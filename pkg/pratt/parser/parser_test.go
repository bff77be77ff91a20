package parser

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"unicode"

	"github.com/google/go-cmp/cmp"

	perrors "github.com/sambeau/pratt/pkg/pratt/errors"
	"github.com/sambeau/pratt/pkg/pratt/registry"
	"github.com/sambeau/pratt/pkg/pratt/token"
)

type lit struct{ Value string }

type bin struct {
	Op          string
	Left, Right registry.Node
}

type app struct{ Fn, Arg registry.Node }

// toks splits src on spaces; digits become numbers, letters identifiers,
// quoted text strings, "#" an unclassified token and anything else a symbol.
func toks(src string) []token.Token {
	var out []token.Token
	col := 1
	for _, f := range strings.Fields(src) {
		kind := token.SYMBOL
		r := []rune(f)[0]
		switch {
		case unicode.IsDigit(r):
			kind = token.NUMBER
		case unicode.IsLetter(r):
			kind = token.IDENT
		case r == '"':
			kind = token.STRING
		case f == "#":
			kind = token.OTHER
		}
		out = append(out, token.Token{
			Kind: kind,
			Text: f,
			Span: token.Span{
				Start: token.Pos{Offset: col - 1, Line: 1, Column: col},
				End:   token.Pos{Offset: col - 1 + len(f), Line: 1, Column: col + len(f)},
			},
		})
		col += len(f) + 1
	}
	return out
}

func literal(c registry.Context) (registry.Node, error) {
	return lit{c.Advance().Text}, nil
}

func leftInfix(prec int) registry.TrailingRule {
	return func(c registry.Context, left registry.Node) (registry.Node, error) {
		op := c.Advance()
		right, err := c.ParseExpr(prec + 1)
		if err != nil {
			return nil, err
		}
		return bin{op.Text, left, right}, nil
	}
}

func rightInfix(prec int) registry.TrailingRule {
	return func(c registry.Context, left registry.Node) (registry.Node, error) {
		op := c.Advance()
		right, err := c.ParseExpr(prec)
		if err != nil {
			return nil, err
		}
		return bin{op.Text, left, right}, nil
	}
}

func group(c registry.Context) (registry.Node, error) {
	c.Advance()
	inner, err := c.ParseExpr(0)
	if err != nil {
		return nil, err
	}
	if _, err := c.Expect(")"); err != nil {
		return nil, err
	}
	return inner, nil
}

func arithmetic(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.NewBuilder().
		LeadingKind(token.NUMBER, literal).
		LeadingKind(token.IDENT, literal).
		Leading("(", group).
		Trailing("+", 10, leftInfix(10)).
		Trailing("-", 10, leftInfix(10)).
		Trailing("*", 20, leftInfix(20)).
		Trailing("^", 30, rightInfix(30)).
		Terminator(")", 0).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return reg
}

func parse(t *testing.T, reg *registry.Registry, src string) (registry.Node, error) {
	t.Helper()
	return New(token.NewStream(toks(src)), reg).Parse()
}

func TestClimbing(t *testing.T) {
	reg := arithmetic(t)
	tests := []struct {
		input string
		want  registry.Node
	}{
		{"1", lit{"1"}},
		{"1 + 2 * 3", bin{"+", lit{"1"}, bin{"*", lit{"2"}, lit{"3"}}}},
		{"1 * 2 + 3", bin{"+", bin{"*", lit{"1"}, lit{"2"}}, lit{"3"}}},
		{"1 - 2 - 3", bin{"-", bin{"-", lit{"1"}, lit{"2"}}, lit{"3"}}},
		{"2 ^ 3 ^ 2", bin{"^", lit{"2"}, bin{"^", lit{"3"}, lit{"2"}}}},
		{"( 1 + 2 ) * 3", bin{"*", bin{"+", lit{"1"}, lit{"2"}}, lit{"3"}}},
		{"x + y * z ^ 2", bin{"+", lit{"x"}, bin{"*", lit{"y"}, bin{"^", lit{"z"}, lit{"2"}}}}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parse(t, reg, tt.input)
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.input, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Parse(%q) mismatch (-want +got):\n%s", tt.input, diff)
			}
		})
	}
}

func TestThresholdGating(t *testing.T) {
	reg := arithmetic(t)
	stream := token.NewStream(toks("2 * 3 + 4"))
	p := New(stream, reg)

	// The right operand of a left-associative "+" at precedence 10.
	got, err := p.ParseExpr(11)
	if err != nil {
		t.Fatalf("ParseExpr(11): %v", err)
	}
	if diff := cmp.Diff(bin{"*", lit{"2"}, lit{"3"}}, got); diff != "" {
		t.Errorf("ParseExpr(11) mismatch (-want +got):\n%s", diff)
	}
	if tok, _ := stream.Peek(); tok.Text != "+" {
		t.Errorf("expected to stop before '+', next is %q", tok.Text)
	}
}

func TestEmptyInput(t *testing.T) {
	reg := arithmetic(t)
	stream := token.NewStream(nil)
	p := New(stream, reg)

	_, err := p.ParseExpr(0)
	if !stderrors.Is(err, perrors.ErrNoLeadingRule) {
		t.Fatalf("expected NoLeadingRule, got %v", err)
	}
	var pe *perrors.ParseError
	if stderrors.As(err, &pe) {
		if diff := cmp.Diff([]string{"expression"}, pe.Expected); diff != "" {
			t.Errorf("Expected mismatch (-want +got):\n%s", diff)
		}
	}
	if stream.Mark() != 0 {
		t.Errorf("cursor moved to %d", stream.Mark())
	}
}

func TestNoLeadingRule(t *testing.T) {
	reg := arithmetic(t)
	_, err := parse(t, reg, "* 2")
	if !stderrors.Is(err, perrors.ErrNoLeadingRule) {
		t.Fatalf("expected NoLeadingRule, got %v", err)
	}
	if !strings.Contains(err.Error(), "no leading rule for '*'") {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestResolver(t *testing.T) {
	reg := arithmetic(t)
	tests := []struct {
		input string
		want  int
	}{
		{"", 0},
		{"+", 10},
		{"*", 20},
		{")", 0},
		{"x", registry.MaxPrec},
		{"42", registry.MaxPrec},
		{`"s"`, registry.MaxPrec},
	}

	for _, tt := range tests {
		stream := token.NewStream(toks(tt.input))
		p := New(stream, reg)
		for i := 0; i < 2; i++ {
			got, err := p.currentLBP()
			if err != nil {
				t.Fatalf("currentLBP(%q): %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("currentLBP(%q) = %d, want %d", tt.input, got, tt.want)
			}
			if stream.Mark() != 0 {
				t.Errorf("currentLBP(%q) moved the cursor", tt.input)
			}
		}
	}
}

func TestUnknownTokenKind(t *testing.T) {
	reg := arithmetic(t)
	stream := token.NewStream(toks("1 # 2"))
	p := New(stream, reg)

	if _, err := p.currentLBP(); err != nil {
		t.Fatalf("currentLBP at a number: %v", err)
	}

	_, err := p.ParseExpr(0)
	if !stderrors.Is(err, perrors.ErrUnknownTokenKind) {
		t.Fatalf("expected UnknownTokenKind, got %v", err)
	}
	var pe *perrors.ParseError
	if stderrors.As(err, &pe) {
		if len(pe.Expected) != 0 {
			t.Errorf("expected an empty expected set, got %v", pe.Expected)
		}
		if pe.Column() != 3 {
			t.Errorf("error column = %d, want 3", pe.Column())
		}
	}
	if stream.Mark() != 0 {
		t.Errorf("cursor not restored: %d", stream.Mark())
	}
}

func TestLeadingOnlySymbolInTrailingPosition(t *testing.T) {
	reg := arithmetic(t)
	_, err := parse(t, reg, "1 (")
	if !stderrors.Is(err, perrors.ErrUnknownTokenKind) {
		t.Fatalf("expected UnknownTokenKind, got %v", err)
	}
	var pe *perrors.ParseError
	if stderrors.As(err, &pe) && pe.Code != "PRATT-0007" {
		t.Errorf("Code = %s", pe.Code)
	}
}

func TestZeroWidthTrailingRuleTerminates(t *testing.T) {
	calls := 0
	reg, err := registry.NewBuilder().
		LeadingKind(token.NUMBER, literal).
		Trailing("~", 5, func(c registry.Context, left registry.Node) (registry.Node, error) {
			calls++
			return left, nil
		}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	stream := token.NewStream(toks("1 ~ ~ ~"))
	got, err := New(stream, reg).ParseExpr(0)
	if err != nil {
		t.Fatalf("ParseExpr: %v", err)
	}
	if diff := cmp.Diff(lit{"1"}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	// Fuel is the three tokens left after the leading rule.
	if calls != 3 {
		t.Errorf("rule applied %d times, want 3", calls)
	}
	if stream.Remaining() != 3 {
		t.Errorf("Remaining() = %d, want 3", stream.Remaining())
	}
}

func TestFuelBoundsApplications(t *testing.T) {
	for _, src := range []string{"1", "1 + 2", "1 + 2 * 3 - 4", "( 1 + 2 ) * ( 3 - 4 ) ^ 5"} {
		applied := 0
		counting, err := registry.NewBuilder().
			LeadingKind(token.NUMBER, literal).
			Leading("(", group).
			Trailing("+", 10, countRule(&applied, leftInfix(10))).
			Trailing("-", 10, countRule(&applied, leftInfix(10))).
			Trailing("*", 20, countRule(&applied, leftInfix(20))).
			Trailing("^", 30, countRule(&applied, rightInfix(30))).
			Terminator(")", 0).
			Build()
		if err != nil {
			t.Fatalf("Build: %v", err)
		}

		all := toks(src)
		if _, err := New(token.NewStream(all), counting).Parse(); err != nil {
			t.Fatalf("Parse(%q): %v", src, err)
		}
		if applied > len(all) {
			t.Errorf("%q: %d applications for %d tokens", src, applied, len(all))
		}
	}
}

func countRule(n *int, rule registry.TrailingRule) registry.TrailingRule {
	return func(c registry.Context, left registry.Node) (registry.Node, error) {
		*n++
		return rule(c, left)
	}
}

func TestExhaustedFuel(t *testing.T) {
	reg := arithmetic(t)
	stream := token.NewStream(toks("+ 2"))
	p := New(stream, reg)

	got, err := p.trailingLoop(lit{"1"}, 0, 0)
	if err != nil {
		t.Fatalf("trailingLoop: %v", err)
	}
	if diff := cmp.Diff(lit{"1"}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if stream.Mark() != 0 {
		t.Error("an exhausted loop must not consume input")
	}
}

func TestTrailingRuleFailure(t *testing.T) {
	cause := fmt.Errorf("operand table full")
	reg, err := registry.NewBuilder().
		LeadingKind(token.NUMBER, literal).
		Trailing("+", 10, leftInfix(10)).
		Trailing("!", 40, func(c registry.Context, left registry.Node) (registry.Node, error) {
			c.Advance()
			return nil, cause
		}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	stream := token.NewStream(toks("1 + 2 !"))
	_, err = New(stream, reg).ParseExpr(0)
	if !stderrors.Is(err, perrors.ErrTrailingRuleFailed) {
		t.Fatalf("expected TrailingRuleFailed, got %v", err)
	}
	if !stderrors.Is(err, cause) {
		t.Error("the rule's error should be reachable with errors.Is")
	}
	if stream.Mark() != 0 {
		t.Errorf("cursor not restored: %d", stream.Mark())
	}
}

func TestParseErrorFromRulePropagatesUnchanged(t *testing.T) {
	reg := arithmetic(t)
	stream := token.NewStream(toks("( 1 + 2"))
	_, err := New(stream, reg).ParseExpr(0)
	if !stderrors.Is(err, perrors.ErrUnexpectedToken) {
		t.Fatalf("expected UnexpectedToken, got %v", err)
	}
	if !strings.Contains(err.Error(), "expected ')', got end of input") {
		t.Errorf("unexpected message: %v", err)
	}
	if stream.Mark() != 0 {
		t.Errorf("cursor not restored: %d", stream.Mark())
	}
}

func TestLeftoverInput(t *testing.T) {
	reg := arithmetic(t)
	_, err := parse(t, reg, "1 + 2 )")
	if !stderrors.Is(err, perrors.ErrUnexpectedToken) {
		t.Fatalf("expected UnexpectedToken, got %v", err)
	}
	if !strings.Contains(err.Error(), "expected end of input, got ')'") {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestJuxtaposition(t *testing.T) {
	apply := func(c registry.Context, fn registry.Node) (registry.Node, error) {
		arg, err := c.ParseExpr(registry.MaxPrec + 1)
		if err != nil {
			return nil, err
		}
		return app{fn, arg}, nil
	}
	reg, err := registry.NewBuilder().
		LeadingKind(token.NUMBER, literal).
		LeadingKind(token.IDENT, literal).
		TrailingKind(token.IDENT, apply).
		TrailingKind(token.NUMBER, apply).
		Trailing("+", 10, leftInfix(10)).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	got, err := parse(t, reg, "f x 1 + 2")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := bin{"+", app{app{lit{"f"}, lit{"x"}}, lit{"1"}}, lit{"2"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestAtomWithoutJuxtapositionStops(t *testing.T) {
	reg := arithmetic(t)
	stream := token.NewStream(toks("1 2"))
	got, err := New(stream, reg).ParseExpr(0)
	if err != nil {
		t.Fatalf("ParseExpr: %v", err)
	}
	if diff := cmp.Diff(lit{"1"}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if stream.Remaining() != 1 {
		t.Errorf("Remaining() = %d, want 1", stream.Remaining())
	}
}

func TestInvalidPrecedence(t *testing.T) {
	reg := arithmetic(t)
	for _, prec := range []int{-1, registry.MaxPrec + 2} {
		_, err := New(token.NewStream(toks("1")), reg).ParseExpr(prec)
		if !stderrors.Is(err, perrors.ErrInvalidPrecedence) {
			t.Errorf("ParseExpr(%d): expected InvalidPrecedence, got %v", prec, err)
		}
	}
	if _, err := New(token.NewStream(toks("1")), reg).ParseExpr(registry.MaxPrec + 1); err != nil {
		t.Errorf("ParseExpr(MaxPrec+1): %v", err)
	}
}

func TestRecursionLimit(t *testing.T) {
	reg := arithmetic(t)
	src := strings.Repeat("( ", 20) + "1" + strings.Repeat(" )", 20)

	if _, err := New(token.NewStream(toks(src)), reg, WithMaxDepth(64)).Parse(); err != nil {
		t.Fatalf("Parse within the limit: %v", err)
	}

	stream := token.NewStream(toks(src))
	_, err := New(stream, reg, WithMaxDepth(10)).Parse()
	if !stderrors.Is(err, perrors.ErrRecursionLimit) {
		t.Fatalf("expected RecursionLimit, got %v", err)
	}
	if stream.Mark() != 0 {
		t.Errorf("cursor not restored: %d", stream.Mark())
	}
}

func TestExpect(t *testing.T) {
	reg := arithmetic(t)
	stream := token.NewStream(toks(") +"))
	p := New(stream, reg)

	if _, err := p.Expect("+"); err == nil {
		t.Fatal("Expect(+) should fail at ')'")
	} else {
		var pe *perrors.ParseError
		if !stderrors.As(err, &pe) || pe.Expected[0] != "'+'" {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if stream.Mark() != 0 {
		t.Error("a failed Expect must not consume")
	}
	if tok, err := p.Expect(")"); err != nil || tok.Text != ")" {
		t.Errorf("Expect()) = %v, %v", tok, err)
	}
}

func TestDebugLogging(t *testing.T) {
	reg := arithmetic(t)
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	if _, err := New(token.NewStream(toks("1 + 2")), reg, WithLogger(logger)).Parse(); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"trailing loop apply", "symbol=+", "bp=10", "threshold=0", "fuel=2"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}
