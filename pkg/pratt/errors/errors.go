// Package errors provides structured error types for the pratt parser.
//
// This package defines ParseError, a single error type for every failure the
// engine, its rules and the lexer can report. Errors carry a kind for
// programmatic handling (usable with errors.Is), a catalog code, the set of
// constructs that were expected, and the span where parsing stopped.
package errors

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/sambeau/pratt/pkg/pratt/token"
)

// Kind categorizes parse failures.
type Kind string

const (
	KindNoLeadingRule      Kind = "no-leading-rule"      // no prefix rule for the current token
	KindUnknownTokenKind   Kind = "unknown-token-kind"   // lookahead has no binding power
	KindTrailingRuleFailed Kind = "trailing-rule-failed" // a trailing rule returned a foreign error
	KindUnexpectedToken    Kind = "unexpected-token"     // Expect mismatch or leftover input
	KindRecursionLimit     Kind = "recursion-limit"      // nesting exceeded the configured depth
	KindInvalidPrecedence  Kind = "invalid-precedence"   // threshold outside [0, MaxPrec+1]
	KindLexical            Kind = "lexical"              // tokenizer failure
)

// Sentinels for errors.Is. Only the Kind is compared.
var (
	ErrNoLeadingRule      = &ParseError{Kind: KindNoLeadingRule}
	ErrUnknownTokenKind   = &ParseError{Kind: KindUnknownTokenKind}
	ErrTrailingRuleFailed = &ParseError{Kind: KindTrailingRuleFailed}
	ErrUnexpectedToken    = &ParseError{Kind: KindUnexpectedToken}
	ErrRecursionLimit     = &ParseError{Kind: KindRecursionLimit}
	ErrInvalidPrecedence  = &ParseError{Kind: KindInvalidPrecedence}
	ErrLexical            = &ParseError{Kind: KindLexical}
)

// ParseError represents any failure from tokenizing or parsing.
type ParseError struct {
	Kind     Kind           `json:"kind"`
	Code     string         `json:"code,omitempty"`     // e.g. "PRATT-0001"
	Message  string         `json:"message"`            // human-readable message
	Expected []string       `json:"expected,omitempty"` // constructs that would have been accepted
	Hints    []string       `json:"hints,omitempty"`
	Span     token.Span     `json:"span"`
	File     string         `json:"file,omitempty"`
	Data     map[string]any `json:"data,omitempty"` // template variables
	Err      error          `json:"-"`              // underlying cause, if any
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return e.String()
}

// Unwrap returns the underlying cause.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Is matches any *ParseError of the same Kind, so the package sentinels work
// with errors.Is.
func (e *ParseError) Is(target error) bool {
	t, ok := target.(*ParseError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Line returns the 1-based line where the error starts (0 if unknown).
func (e *ParseError) Line() int {
	return e.Span.Start.Line
}

// Column returns the 1-based column where the error starts (0 if unknown).
func (e *ParseError) Column() int {
	return e.Span.Start.Column
}

// String returns a formatted string representation of the error.
func (e *ParseError) String() string {
	var sb strings.Builder

	if e.File != "" {
		sb.WriteString(e.File)
		sb.WriteString(": ")
	}
	if e.Line() > 0 {
		sb.WriteString(fmt.Sprintf("line %d, column %d: ", e.Line(), e.Column()))
	}

	sb.WriteString(e.Message)
	if len(e.Expected) > 0 {
		sb.WriteString(" (expected ")
		sb.WriteString(strings.Join(e.Expected, " or "))
		sb.WriteString(")")
	}

	for _, hint := range e.Hints {
		sb.WriteString("\n  ")
		sb.WriteString(hint)
	}

	return sb.String()
}

// PrettyString returns a multi-line formatted string for display.
func (e *ParseError) PrettyString() string {
	var sb strings.Builder

	if e.Kind == KindLexical {
		sb.WriteString("Lexical error")
	} else {
		sb.WriteString("Parse error")
	}

	if e.File != "" {
		sb.WriteString(":\n  in: ")
		sb.WriteString(e.File)
		if e.Line() > 0 {
			sb.WriteString(fmt.Sprintf("\n  at: line %d, column %d", e.Line(), e.Column()))
		}
		sb.WriteString("\n  ")
	} else if e.Line() > 0 {
		sb.WriteString(fmt.Sprintf(": line %d, column %d\n  ", e.Line(), e.Column()))
	} else {
		sb.WriteString(":\n  ")
	}

	sb.WriteString(e.Message)

	if len(e.Expected) > 0 {
		sb.WriteString("\n  expected: ")
		sb.WriteString(strings.Join(e.Expected, ", "))
	}

	for _, hint := range e.Hints {
		sb.WriteString("\n  hint: ")
		sb.WriteString(hint)
	}

	return sb.String()
}

// ToJSON returns the error as JSON bytes.
func (e *ParseError) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// WithFile returns a copy of the error with the file path set.
func (e *ParseError) WithFile(file string) *ParseError {
	copy := *e
	copy.File = file
	return &copy
}

// WithExpected returns a copy of the error with label added to the expected
// set, unless it is already there.
func (e *ParseError) WithExpected(label string) *ParseError {
	copy := *e
	for _, existing := range e.Expected {
		if existing == label {
			return &copy
		}
	}
	copy.Expected = append(append([]string(nil), e.Expected...), label)
	return &copy
}

// ErrorDef defines an error in the catalog.
type ErrorDef struct {
	Kind     Kind
	Template string   // Message template with {{.placeholders}}
	Hints    []string // Hint templates (may use {{.placeholders}})
}

// ErrorCatalog maps error codes to their definitions.
var ErrorCatalog = map[string]ErrorDef{
	"PRATT-0001": {
		Kind:     KindNoLeadingRule,
		Template: "no leading rule for {{.Token}}",
	},
	"PRATT-0002": {
		Kind:     KindUnknownTokenKind,
		Template: "cannot determine binding power of {{.Token}}: unknown token kind {{.Kind}}",
	},
	"PRATT-0003": {
		Kind:     KindTrailingRuleFailed,
		Template: "trailing rule for '{{.Symbol}}' failed: {{.GoError}}",
	},
	"PRATT-0004": {
		Kind:     KindUnexpectedToken,
		Template: "expected {{.Expected}}, got {{.Got}}",
	},
	"PRATT-0005": {
		Kind:     KindRecursionLimit,
		Template: "expression nested deeper than {{.Limit}} levels",
		Hints:    []string{"raise parser.max_depth in the configuration"},
	},
	"PRATT-0006": {
		Kind:     KindInvalidPrecedence,
		Template: "precedence threshold {{.Threshold}} outside [0, {{.Max}}]",
	},
	"PRATT-0007": {
		Kind:     KindUnknownTokenKind,
		Template: "symbol '{{.Symbol}}' has no binding power in trailing position",
		Hints:    []string{"register it as a terminator if it closes an expression"},
	},
	"LEX-0001": {
		Kind:     KindLexical,
		Template: "unterminated string",
	},
	"LEX-0002": {
		Kind:     KindLexical,
		Template: "invalid number literal: {{.Literal}}",
	},
}

// New creates a ParseError from a catalog code.
// If the code is not found, it returns a generic error.
func New(code string, data map[string]any) *ParseError {
	def, ok := ErrorCatalog[code]
	if !ok {
		return &ParseError{
			Kind:    KindUnexpectedToken,
			Code:    code,
			Message: fmt.Sprintf("unknown error code: %s", code),
			Data:    data,
		}
	}

	var hints []string
	for _, hintTmpl := range def.Hints {
		if rendered := renderTemplate(hintTmpl, data); rendered != "" {
			hints = append(hints, rendered)
		}
	}

	return &ParseError{
		Kind:    def.Kind,
		Code:    code,
		Message: renderTemplate(def.Template, data),
		Hints:   hints,
		Data:    data,
	}
}

// NewAt creates a ParseError from a catalog code, positioned at span.
func NewAt(code string, span token.Span, data map[string]any) *ParseError {
	err := New(code, data)
	err.Span = span
	return err
}

// Wrap creates a ParseError of the given kind around a foreign error.
func Wrap(code string, span token.Span, cause error, data map[string]any) *ParseError {
	if data == nil {
		data = map[string]any{}
	}
	data["GoError"] = cause.Error()
	err := NewAt(code, span, data)
	err.Err = cause
	return err
}

// Describe renders a token for messages: symbols quoted, literals by kind.
func Describe(tok token.Token) string {
	switch tok.Kind {
	case token.SYMBOL, token.OTHER:
		return "'" + tok.Text + "'"
	case token.STRING:
		return "string " + tok.Text
	case token.NUMBER:
		return "number " + tok.Text
	case token.IDENT:
		return "identifier " + tok.Text
	}
	return tok.Text
}

// renderTemplate renders a Go template with the given data.
func renderTemplate(tmplStr string, data map[string]any) string {
	if data == nil {
		return tmplStr
	}

	tmpl, err := template.New("").Parse(tmplStr)
	if err != nil {
		return tmplStr
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return tmplStr
	}

	return buf.String()
}

// levenshteinDistance computes the edit distance between two strings.
func levenshteinDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	matrix := make([][]int, len(ra)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(rb)+1)
		matrix[i][0] = i
	}
	for j := range matrix[0] {
		matrix[0][j] = j
	}

	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			cost := 0
			if ra[i-1] != rb[j-1] {
				cost = 1
			}
			matrix[i][j] = min(
				matrix[i-1][j]+1,      // deletion
				matrix[i][j-1]+1,      // insertion
				matrix[i-1][j-1]+cost, // substitution
			)
		}
	}

	return matrix[len(ra)][len(rb)]
}

// FindClosestMatch finds the closest candidate to input. Operator symbols are
// short, so only a single edit is tolerated for inputs under four runes.
func FindClosestMatch(input string, candidates []string) string {
	if input == "" || len(candidates) == 0 {
		return ""
	}

	sorted := append([]string(nil), candidates...)
	sort.Strings(sorted)

	bestMatch := ""
	bestDistance := -1
	for _, candidate := range sorted {
		dist := levenshteinDistance(strings.ToLower(input), strings.ToLower(candidate))
		if bestDistance == -1 || dist < bestDistance {
			bestDistance = dist
			bestMatch = candidate
		}
	}

	threshold := 1
	if n := len([]rune(input)); n >= 4 && n <= 6 {
		threshold = 2
	} else if n >= 7 {
		threshold = 3
	}

	if bestDistance <= 0 || bestDistance > threshold {
		return ""
	}
	return bestMatch
}
