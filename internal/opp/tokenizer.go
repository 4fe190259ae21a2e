package opp

import (
	"iter"
	"regexp"
)

// TokenKind is the alternative of the token matcher that produced a token.
type TokenKind int

const (
	TokenHex TokenKind = iota + 1
	TokenDecimal
	TokenCall
	TokenIdent
)

func (k TokenKind) String() string {
	switch k {
	case TokenHex:
		return "hex"
	case TokenDecimal:
		return "decimal"
	case TokenCall:
		return "call"
	case TokenIdent:
		return "ident"
	}
	return "unknown"
}

// Token is one lexical segment of a row.
type Token struct {
	Kind TokenKind
	Text string
	// Offset is the byte offset of Text within the row.
	Offset int
}

// Tokenizer segments row text by position only; it never validates.
type Tokenizer struct {
	re *regexp.Regexp
}

// NewTokenizer wraps the token matcher. The matcher's four groups must be
// hex, decimal, call-like and identifier, in that priority order.
func NewTokenizer(re *regexp.Regexp) *Tokenizer {
	return &Tokenizer{re: re}
}

// Scan starts a pull-style scan of row.
func (t *Tokenizer) Scan(row string) *Scanner {
	return &Scanner{re: t.re, src: row}
}

// All yields every token of row. Each range over the sequence starts again
// from the first token.
func (t *Tokenizer) All(row string) iter.Seq[Token] {
	return func(yield func(Token) bool) {
		s := t.Scan(row)
		for {
			tok, ok := s.Next()
			if !ok || !yield(tok) {
				return
			}
		}
	}
}

// Nth returns the token at position n.
func (t *Tokenizer) Nth(row string, n int) (Token, bool) {
	s := t.Scan(row)
	for i := 0; ; i++ {
		tok, ok := s.Next()
		if !ok {
			return Token{}, false
		}
		if i == n {
			return tok, true
		}
	}
}

// Scanner walks one row lazily, one token per Next call.
type Scanner struct {
	re  *regexp.Regexp
	src string
	pos int
}

// Next returns the next token, or false once the row is exhausted.
func (s *Scanner) Next() (Token, bool) {
	if s.pos >= len(s.src) {
		return Token{}, false
	}
	// Tokens end on a word boundary or a ')', so matching on the remainder
	// sees the same boundaries as matching on the whole row.
	m := s.re.FindStringSubmatchIndex(s.src[s.pos:])
	if m == nil {
		s.pos = len(s.src)
		return Token{}, false
	}
	tok := Token{Offset: s.pos + m[0], Text: s.src[s.pos+m[0] : s.pos+m[1]]}
	for group := 1; group <= 4; group++ {
		if m[2*group] >= 0 {
			tok.Kind = TokenKind(group)
			break
		}
	}
	s.pos += m[1]
	return tok, true
}

// Reset rewinds the scanner to the start of the row.
func (s *Scanner) Reset() {
	s.pos = 0
}
