package token

import "fmt"

// Kind classifies a token for binding-power resolution and leading-rule
// dispatch.
type Kind int

const (
	OTHER  Kind = iota // anything the lexer could not classify
	IDENT              // x, sqrt, foo_bar
	NUMBER             // 42, 3.14
	STRING             // "text"
	SYMBOL             // a registered notation: +, (, mod
)

// String returns a string representation of the token kind
func (k Kind) String() string {
	switch k {
	case IDENT:
		return "IDENT"
	case NUMBER:
		return "NUMBER"
	case STRING:
		return "STRING"
	case SYMBOL:
		return "SYMBOL"
	default:
		return "OTHER"
	}
}

// Pos is a location in the source. Line and Column are 1-based; Offset is a
// byte offset into the (normalized) input.
type Pos struct {
	Offset int `json:"offset"`
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Span covers [Start, End) of a token or construct.
type Span struct {
	Start Pos `json:"start"`
	End   Pos `json:"end"`
}

// Token is a classified lexeme. Tokens are immutable once produced.
type Token struct {
	Kind Kind
	Text string
	Span Span
}

// String returns a string representation of the token
func (t Token) String() string {
	return fmt.Sprintf("{Kind: %s, Text: %q, Line: %d, Column: %d}",
		t.Kind, t.Text, t.Span.Start.Line, t.Span.Start.Column)
}

// Is reports whether the token is the symbol text.
func (t Token) Is(text string) bool {
	return t.Kind == SYMBOL && t.Text == text
}
