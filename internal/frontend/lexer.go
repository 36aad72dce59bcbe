// Package frontend implements the lexer and parser that produce Phase-1 IR
// (package ir1) and populate the entity store (package entity) directly
// from C-subset source text, with no intermediate AST (spec.md §1 explicitly
// places the lexer/parser out of the core's scope; this package exists so
// cmd/shecc is a runnable end-to-end pipeline, in the teacher's lexing
// idiom adapted to the spec's C-subset grammar).
package frontend

import (
	"fmt"
	"unicode/utf8"

	"shecc/internal/compileerr"
)

// tokenType classifies a lexeme. Unlike the teacher's lexer
// (src/frontend/lexer.go), which streams items over a channel to a
// goroutine-driven yacc parser, this lexer runs synchronously and returns
// a complete token slice (spec.md §5: single-threaded core).
type tokenType int

const (
	tokEOF tokenType = iota
	tokIdent
	tokNumber
	tokString
	tokChar
	tokPunct
	tokKeyword
)

// token is one lexeme: its type, literal text, and a decoded numeric value
// for tokNumber/tokChar.
type token struct {
	typ  tokenType
	text string
	num  int
	line int
}

var keywords = map[string]bool{
	"int": true, "char": true, "void": true, "struct": true,
	"if": true, "else": true, "while": true, "return": true, "sizeof": true,
}

// lexer scans source rune by rune (Go native UTF-8 support, matching the
// teacher's lexer comment) and accumulates a token slice.
type lexer struct {
	src  string
	pos  int
	line int
}

func newLexer(src string) *lexer { return &lexer{src: src, line: 1} }

func (l *lexer) peek() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.src[l.pos:])
	return r
}

func (l *lexer) advance() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	r, w := utf8.DecodeRuneInString(l.src[l.pos:])
	l.pos += w
	if r == '\n' {
		l.line++
	}
	return r
}

// Lex tokenizes the entire source, returning a Shape error on an
// unrecognized character (spec.md §7 error taxonomy: lexical errors are
// Shape errors, fatal like every other error this core reports).
func Lex(src string) ([]token, error) {
	l := newLexer(src)
	var toks []token
	for {
		l.skipSpaceAndComments()
		start := l.pos
		line := l.line
		r := l.peek()
		if r == 0 {
			toks = append(toks, token{typ: tokEOF, line: line})
			return toks, nil
		}

		switch {
		case isIdentStart(r):
			for isIdentPart(l.peek()) {
				l.advance()
			}
			text := l.src[start:l.pos]
			typ := tokIdent
			if keywords[text] {
				typ = tokKeyword
			}
			toks = append(toks, token{typ: typ, text: text, line: line})

		case isDigit(r):
			for isDigit(l.peek()) {
				l.advance()
			}
			text := l.src[start:l.pos]
			var n int
			fmt.Sscanf(text, "%d", &n)
			toks = append(toks, token{typ: tokNumber, text: text, num: n, line: line})

		case r == '"':
			l.advance()
			for l.peek() != '"' && l.peek() != 0 {
				if l.peek() == '\\' {
					l.advance()
				}
				l.advance()
			}
			l.advance()
			toks = append(toks, token{typ: tokString, text: l.src[start+1 : l.pos-1], line: line})

		case r == '\'':
			l.advance()
			c := l.advance()
			if c == '\\' {
				c = escapeValue(l.advance())
			}
			l.advance() // closing quote
			toks = append(toks, token{typ: tokChar, num: int(c), line: line})

		default:
			if tok, ok := l.lexPunct(); ok {
				tok.line = line
				toks = append(toks, tok)
			} else {
				return nil, compileerr.Newf(compileerr.Shape, "unexpected character %q at line %d", r, line)
			}
		}
	}
}

func escapeValue(r rune) rune {
	switch r {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case '0':
		return 0
	default:
		return r
	}
}

func (l *lexer) skipSpaceAndComments() {
	for {
		r := l.peek()
		if r == ' ' || r == '\t' || r == '\r' || r == '\n' {
			l.advance()
			continue
		}
		if r == '/' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '/' {
			for l.peek() != '\n' && l.peek() != 0 {
				l.advance()
			}
			continue
		}
		break
	}
}

// multiPunct are the two-rune operators this grammar recognizes; longest
// match wins, matching the teacher's lexer's greedy operator scanning.
var multiPunct = []string{"==", "!=", "<=", ">=", "&&", "||", "->"}

func (l *lexer) lexPunct() (token, bool) {
	for _, p := range multiPunct {
		if l.pos+len(p) <= len(l.src) && l.src[l.pos:l.pos+len(p)] == p {
			l.pos += len(p)
			return token{typ: tokPunct, text: p}, true
		}
	}
	single := "+-*/%=<>!&|^~(){}[];,.:"
	r := l.peek()
	for _, c := range single {
		if r == c {
			l.advance()
			return token{typ: tokPunct, text: string(c)}, true
		}
	}
	return token{}, false
}

func isIdentStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isIdentPart(r rune) bool { return isIdentStart(r) || isDigit(r) }

func isDigit(r rune) bool { return r >= '0' && r <= '9' }
