// Package lexer turns source text into the classified tokens the expression
// engine consumes. Which runs of punctuation (and which words) count as
// symbols is decided by the notation registry, so "<=" is one token only when
// "<=" is registered.
package lexer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	perrors "github.com/sambeau/pratt/pkg/pratt/errors"
	"github.com/sambeau/pratt/pkg/pratt/token"
)

// Symbols is the part of a registry the lexer needs.
type Symbols interface {
	// MatchSymbol returns the longest registered symbol prefixing s.
	MatchSymbol(s string) (string, bool)
	// IsSymbol reports whether text is exactly a registered symbol.
	IsSymbol(text string) bool
}

// Lexer represents the lexical analyzer
type Lexer struct {
	filename     string
	input        string
	symbols      Symbols
	position     int  // current position in input (points to current char)
	readPosition int  // current reading position in input (after current char)
	ch           rune // current character, 0 at end of input
	line         int  // current line number
	column       int  // current column number
}

// New creates a lexer over input. The input is normalized to NFC first so
// that composed and decomposed spellings of a symbol lex alike.
func New(input string, symbols Symbols) *Lexer {
	return NewWithFilename(input, "", symbols)
}

// NewWithFilename creates a lexer whose errors name filename.
func NewWithFilename(input, filename string, symbols Symbols) *Lexer {
	l := &Lexer{
		filename: filename,
		input:    norm.NFC.String(input),
		symbols:  symbols,
		line:     1,
		column:   0,
	}
	l.readChar()
	return l
}

// Tokenize scans input completely.
func Tokenize(input string, symbols Symbols) ([]token.Token, error) {
	return New(input, symbols).Tokenize()
}

// Tokenize returns every remaining token, or the first lexical error.
func (l *Lexer) Tokenize() ([]token.Token, error) {
	var out []token.Token
	for {
		tok, ok, err := l.NextToken()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, tok)
	}
}

// NextToken scans the next token. ok is false at end of input.
func (l *Lexer) NextToken() (tok token.Token, ok bool, err error) {
	l.skipWhitespace()
	if l.ch == 0 && l.position >= len(l.input) {
		return token.Token{}, false, nil
	}

	start := l.pos()
	switch {
	case l.ch == '"':
		text, terminated := l.readString()
		if !terminated {
			return token.Token{}, false, l.errorAt("LEX-0001", start, nil)
		}
		return l.token(token.STRING, text, start), true, nil

	case isDigit(l.ch):
		text, valid := l.readNumber()
		if !valid {
			return token.Token{}, false, l.errorAt("LEX-0002", start, map[string]any{"Literal": text})
		}
		return l.token(token.NUMBER, text, start), true, nil

	case isLetter(l.ch):
		word := l.readIdentifier()
		if l.symbols != nil && l.symbols.IsSymbol(word) {
			return l.token(token.SYMBOL, word, start), true, nil
		}
		return l.token(token.IDENT, word, start), true, nil
	}

	if l.symbols != nil {
		if sym, found := l.symbols.MatchSymbol(l.input[l.position:]); found {
			for end := l.position + len(sym); l.position < end; {
				l.readChar()
			}
			return l.token(token.SYMBOL, sym, start), true, nil
		}
	}

	text := string(l.ch)
	l.readChar()
	return l.token(token.OTHER, text, start), true, nil
}

func (l *Lexer) readChar() {
	if l.readPosition >= len(l.input) {
		l.ch = 0
		l.position = l.readPosition
		return
	}

	r, size := utf8.DecodeRuneInString(l.input[l.readPosition:])
	if l.readPosition > 0 && l.ch == '\n' {
		l.line++
		l.column = 0
	}
	l.ch = r
	l.position = l.readPosition
	l.readPosition += size
	l.column++
}

func (l *Lexer) peekChar() rune {
	if l.readPosition >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPosition:])
	return r
}

func (l *Lexer) pos() token.Pos {
	return token.Pos{Offset: l.position, Line: l.line, Column: l.column}
}

// token builds a token ending at the current character.
func (l *Lexer) token(kind token.Kind, text string, start token.Pos) token.Token {
	end := token.Pos{Offset: l.position, Line: start.Line, Column: start.Column + utf8.RuneCountInString(text)}
	return token.Token{Kind: kind, Text: text, Span: token.Span{Start: start, End: end}}
}

func (l *Lexer) errorAt(code string, start token.Pos, data map[string]any) error {
	err := perrors.NewAt(code, token.Span{Start: start, End: l.pos()}, data)
	if l.filename != "" {
		return err.WithFile(l.filename)
	}
	return err
}

func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		l.readChar()
	}
}

func (l *Lexer) readIdentifier() string {
	position := l.position
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[position:l.position]
}

// readNumber reads an integer or decimal with an optional exponent. A number
// running straight into a letter ("12ab", "1e") is reported as invalid.
func (l *Lexer) readNumber() (string, bool) {
	position := l.position
	for isDigit(l.ch) {
		l.readChar()
	}

	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar() // consume the '.'
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	valid := true
	if l.ch == 'e' || l.ch == 'E' {
		l.readChar()
		if l.ch == '+' || l.ch == '-' {
			l.readChar()
		}
		if !isDigit(l.ch) {
			valid = false
		}
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	for isLetter(l.ch) || isDigit(l.ch) {
		valid = false
		l.readChar()
	}
	return l.input[position:l.position], valid
}

// readString reads a double-quoted string and returns it with its quotes.
// Strings may not span lines.
func (l *Lexer) readString() (string, bool) {
	position := l.position
	l.readChar() // skip opening quote

	for l.ch != '"' && l.ch != '\n' && !(l.ch == 0 && l.position >= len(l.input)) {
		if l.ch == '\\' {
			l.readChar()
			if l.ch == '\n' || l.position >= len(l.input) {
				break
			}
		}
		l.readChar()
	}

	if l.ch != '"' {
		return l.input[position:l.position], false
	}
	l.readChar() // closing quote
	return l.input[position:l.position], true
}

// Unquote returns the contents of a string token with escapes applied.
// Unknown escapes are kept as written.
func Unquote(text string) string {
	if len(text) >= 2 && text[0] == '"' && text[len(text)-1] == '"' {
		text = text[1 : len(text)-1]
	}
	if !strings.ContainsRune(text, '\\') {
		return text
	}

	var sb strings.Builder
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '\\' || i+1 == len(text) {
			sb.WriteByte(c)
			continue
		}
		i++
		switch text[i] {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case '\\':
			sb.WriteByte('\\')
		case '"':
			sb.WriteByte('"')
		default:
			sb.WriteByte('\\')
			sb.WriteByte(text[i])
		}
	}
	return sb.String()
}

// isLetter reports whether r can appear in an identifier (letter or underscore).
// This supports Unicode letters like π, α, 日本語, etc.
func isLetter(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isDigit(r rune) bool {
	return '0' <= r && r <= '9'
}
