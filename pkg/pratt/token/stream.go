package token

// Stream is a slice-backed token cursor with cheap checkpoints.
// A Mark is just the index of the next unread token, so Reset is O(1).
type Stream struct {
	tokens []Token
	pos    int
	end    Pos // position reported once the stream is exhausted
}

// NewStream creates a stream over tokens. The slice is not copied and must not
// be modified while the stream is in use.
func NewStream(tokens []Token) *Stream {
	s := &Stream{tokens: tokens}
	if n := len(tokens); n > 0 {
		s.end = tokens[n-1].Span.End
	} else {
		s.end = Pos{Line: 1, Column: 1}
	}
	return s
}

// Peek returns the next token without consuming it.
func (s *Stream) Peek() (Token, bool) {
	if s.pos >= len(s.tokens) {
		return Token{}, false
	}
	return s.tokens[s.pos], true
}

// Advance consumes and returns the next token. At end of input it returns the
// zero Token and leaves the stream unchanged.
func (s *Stream) Advance() Token {
	if s.pos >= len(s.tokens) {
		return Token{}
	}
	tok := s.tokens[s.pos]
	s.pos++
	return tok
}

// Remaining returns the number of unread tokens.
func (s *Stream) Remaining() int {
	return len(s.tokens) - s.pos
}

// Mark returns a checkpoint that Reset can return to.
func (s *Stream) Mark() int {
	return s.pos
}

// Reset rewinds (or fast-forwards) the stream to a checkpoint from Mark.
func (s *Stream) Reset(mark int) {
	if mark < 0 {
		mark = 0
	}
	if mark > len(s.tokens) {
		mark = len(s.tokens)
	}
	s.pos = mark
}

// Position returns where the next token starts, or the end of the last token
// once the stream is exhausted.
func (s *Stream) Position() Pos {
	if tok, ok := s.Peek(); ok {
		return tok.Span.Start
	}
	return s.end
}
