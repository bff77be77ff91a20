// Package registry holds the notation tables the expression engine consults:
// leading (prefix/atom) rules keyed by symbol or token kind, and trailing
// (infix/postfix) rules keyed by symbol text in a trie together with their
// binding power.
//
// A Registry is assembled with a Builder and never changes afterwards, so one
// Registry can back any number of parsers, including concurrently.
package registry

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/sambeau/pratt/pkg/pratt/token"
	"github.com/sambeau/pratt/pkg/pratt/trie"
)

// MaxPrec is the binding power of atoms (identifiers, numbers, strings) in
// trailing position. Declared precedences must lie in [0, MaxPrec].
const MaxPrec = 1024

// Node is an expression value produced by rules. The engine never inspects it.
type Node = any

// Context is what rules see of the parser driving them. Leading rules are
// called with their first token still unread; trailing rules with the
// operator token still unread.
type Context interface {
	// ParseExpr parses a sub-expression whose trailing operators bind at
	// least as tightly as minPrec.
	ParseExpr(minPrec int) (Node, error)
	// Peek returns the next token without consuming it.
	Peek() (token.Token, bool)
	// Advance consumes the next token.
	Advance() token.Token
	// Expect consumes the next token if it is the symbol text, and fails
	// with an unexpected-token error otherwise.
	Expect(text string) (token.Token, error)
	// Remaining returns the number of unread tokens.
	Remaining() int
}

// LeadingRule parses an expression starting at the current token.
type LeadingRule func(c Context) (Node, error)

// TrailingRule extends left with the operator at the current token.
type TrailingRule func(c Context, left Node) (Node, error)

// Entry is a trailing notation: its symbol, binding power and rule. A nil Rule
// marks a terminator, a symbol such as ")" that may follow an expression but
// never extends it.
type Entry struct {
	Symbol     string
	Precedence int
	Rule       TrailingRule
}

// Terminator reports whether the entry only closes expressions.
func (e Entry) Terminator() bool {
	return e.Rule == nil
}

// Registry is an immutable set of notations.
type Registry struct {
	trailing       trie.Trie[Entry]
	trailingByKind map[token.Kind]TrailingRule
	leading        map[string]LeadingRule
	leadingByKind  map[token.Kind]LeadingRule
	symbols        trie.Trie[struct{}]
}

// LookupTrailing returns the entry registered for exactly text.
func (r *Registry) LookupTrailing(text string) (Entry, bool) {
	return r.trailing.Get(norm.NFC.String(text))
}

// MatchTrailing returns the entry whose symbol is the longest prefix of text.
func (r *Registry) MatchTrailing(text string) (Entry, bool) {
	_, entry, ok := r.trailing.MatchPrefix(norm.NFC.String(text))
	return entry, ok
}

// TrailingRuleFor returns the rule to apply when tok follows an expression:
// the trie entry's rule when the text matches, otherwise the rule registered
// for the token's kind (juxtaposition). A terminator yields no rule.
func (r *Registry) TrailingRuleFor(tok token.Token) (TrailingRule, bool) {
	if entry, ok := r.LookupTrailing(tok.Text); ok {
		return entry.Rule, entry.Rule != nil
	}
	rule, ok := r.trailingByKind[tok.Kind]
	return rule, ok
}

// LookupLeading returns the leading rule for tok: by exact symbol text first,
// then by token kind.
func (r *Registry) LookupLeading(tok token.Token) (LeadingRule, bool) {
	if tok.Kind == token.SYMBOL {
		if rule, ok := r.leading[norm.NFC.String(tok.Text)]; ok {
			return rule, true
		}
	}
	rule, ok := r.leadingByKind[tok.Kind]
	return rule, ok
}

// MatchSymbol returns the longest registered symbol (leading or trailing) that
// prefixes s. Tokenizers use it to split operator runs such as "<=-".
func (r *Registry) MatchSymbol(s string) (string, bool) {
	key, _, ok := r.symbols.MatchPrefix(s)
	return key, ok && key != ""
}

// IsSymbol reports whether text is exactly a registered symbol.
func (r *Registry) IsSymbol(text string) bool {
	_, ok := r.symbols.Get(norm.NFC.String(text))
	return ok
}

// Tokens returns every registered symbol in lexical order.
func (r *Registry) Tokens() []string {
	return r.symbols.Keys()
}

// Entries returns the trailing entries ordered by precedence, then symbol.
func (r *Registry) Entries() []Entry {
	keys := r.trailing.Keys()
	entries := make([]Entry, 0, len(keys))
	for _, k := range keys {
		e, _ := r.trailing.Get(k)
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Precedence != entries[j].Precedence {
			return entries[i].Precedence < entries[j].Precedence
		}
		return entries[i].Symbol < entries[j].Symbol
	})
	return entries
}

// LeadingSymbols returns the symbols with a leading rule, in lexical order.
func (r *Registry) LeadingSymbols() []string {
	out := make([]string, 0, len(r.leading))
	for s := range r.leading {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Builder collects notations. Errors are accumulated and reported by Build.
type Builder struct {
	reg  *Registry
	errs []string
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{reg: &Registry{
		trailingByKind: make(map[token.Kind]TrailingRule),
		leading:        make(map[string]LeadingRule),
		leadingByKind:  make(map[token.Kind]LeadingRule),
	}}
}

// Leading registers a leading rule for a symbol.
func (b *Builder) Leading(symbol string, rule LeadingRule) *Builder {
	symbol = norm.NFC.String(symbol)
	switch {
	case symbol == "":
		b.errs = append(b.errs, "leading: empty symbol")
	case rule == nil:
		b.errs = append(b.errs, fmt.Sprintf("leading %q: nil rule", symbol))
	default:
		if _, dup := b.reg.leading[symbol]; dup {
			b.errs = append(b.errs, fmt.Sprintf("leading %q: registered twice", symbol))
			return b
		}
		b.reg.leading[symbol] = rule
		b.reg.symbols.Insert(symbol, struct{}{})
	}
	return b
}

// LeadingKind registers the leading rule for every token of a kind without a
// symbol-specific rule.
func (b *Builder) LeadingKind(kind token.Kind, rule LeadingRule) *Builder {
	if rule == nil {
		b.errs = append(b.errs, fmt.Sprintf("leading %s: nil rule", kind))
		return b
	}
	if _, dup := b.reg.leadingByKind[kind]; dup {
		b.errs = append(b.errs, fmt.Sprintf("leading %s: registered twice", kind))
		return b
	}
	b.reg.leadingByKind[kind] = rule
	return b
}

// Trailing registers a trailing rule for a symbol at the given precedence.
func (b *Builder) Trailing(symbol string, precedence int, rule TrailingRule) *Builder {
	if rule == nil {
		b.errs = append(b.errs, fmt.Sprintf("trailing %q: nil rule (use Terminator)", symbol))
		return b
	}
	return b.trailing(symbol, precedence, rule)
}

// Terminator registers a symbol that ends expressions, such as ")" or ",".
// It resolves to the given precedence (normally 0) and is never applied.
func (b *Builder) Terminator(symbol string, precedence int) *Builder {
	return b.trailing(symbol, precedence, nil)
}

func (b *Builder) trailing(symbol string, precedence int, rule TrailingRule) *Builder {
	symbol = norm.NFC.String(symbol)
	if symbol == "" {
		b.errs = append(b.errs, "trailing: empty symbol")
		return b
	}
	if precedence < 0 || precedence > MaxPrec {
		b.errs = append(b.errs, fmt.Sprintf("trailing %q: precedence %d outside [0, %d]", symbol, precedence, MaxPrec))
		return b
	}
	if _, dup := b.reg.trailing.Get(symbol); dup {
		b.errs = append(b.errs, fmt.Sprintf("trailing %q: registered twice", symbol))
		return b
	}
	b.reg.trailing.Insert(symbol, Entry{Symbol: symbol, Precedence: precedence, Rule: rule})
	b.reg.symbols.Insert(symbol, struct{}{})
	return b
}

// TrailingKind registers the rule applied when an atom of kind follows an
// expression (juxtaposition). Atoms resolve to MaxPrec.
func (b *Builder) TrailingKind(kind token.Kind, rule TrailingRule) *Builder {
	if rule == nil {
		b.errs = append(b.errs, fmt.Sprintf("trailing %s: nil rule", kind))
		return b
	}
	if _, dup := b.reg.trailingByKind[kind]; dup {
		b.errs = append(b.errs, fmt.Sprintf("trailing %s: registered twice", kind))
		return b
	}
	b.reg.trailingByKind[kind] = rule
	return b
}

// Build returns the finished Registry. The Builder must not be used afterwards.
func (b *Builder) Build() (*Registry, error) {
	if len(b.errs) > 0 {
		return nil, fmt.Errorf("registry errors:\n  - %s", strings.Join(b.errs, "\n  - "))
	}
	reg := b.reg
	b.reg = nil
	return reg, nil
}
