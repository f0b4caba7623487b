// Package lexer turns module source into tokens. Lexical errors are reported
// to a diag.Reporter as parser errors and produce Invalid tokens.
package lexer

import (
	"unicode"

	"arendls/internal/diag"
	"arendls/internal/source"
	"arendls/internal/token"
)

type Lexer struct {
	cursor Cursor
	loc    source.ModuleLocation
	rep    diag.Reporter
}

// New creates a lexer over src, which should already be source.Normalize'd.
func New(src []byte, loc source.ModuleLocation, rep diag.Reporter) *Lexer {
	return &Lexer{cursor: NewCursor(src), loc: loc, rep: rep}
}

// Tokenize lexes the whole input. The last token is always EOF.
func Tokenize(src []byte, loc source.ModuleLocation, rep diag.Reporter) []token.Token {
	lx := New(src, loc, rep)
	var out []token.Token
	for {
		tok := lx.Next()
		out = append(out, tok)
		if tok.Kind == token.EOF {
			return out
		}
	}
}

// Next returns the next significant token. After EOF it keeps returning EOF.
func (lx *Lexer) Next() token.Token {
	lx.skipTrivia()

	start := lx.cursor.Mark()
	if lx.cursor.EOF() {
		return lx.tokenFrom(start, token.EOF)
	}

	ch := lx.cursor.Peek()
	switch {
	case isIdentStartByte(ch):
		return lx.scanIdent()
	case ch >= utf8RuneSelf:
		if r, _ := lx.cursor.PeekRune(); isIdentStartRune(r) {
			return lx.scanIdent()
		}
	case isDec(ch):
		return lx.scanNumber()
	case ch == '\\':
		return lx.scanKeyword()
	}
	return lx.scanPunct()
}

func (lx *Lexer) tokenFrom(m Mark, kind token.Kind) token.Token {
	return token.Token{Kind: kind, Text: lx.cursor.TextFrom(m), Line: m.line, Column: m.col}
}

func (lx *Lexer) errorAt(m Mark, format string, args ...any) {
	if lx.rep == nil {
		return
	}
	pos := source.Pos{Module: lx.loc, Line: m.line, Column: m.col}
	lx.rep.Report(diag.Errorf(diag.CodeParse, diag.ParserCause{Pos: pos}, format, args...))
}

func (lx *Lexer) scanIdent() token.Token {
	start := lx.cursor.Mark()
	lx.cursor.Bump()
	for !lx.cursor.EOF() {
		ch := lx.cursor.Peek()
		if ch < utf8RuneSelf {
			if !isIdentContinueByte(ch) {
				break
			}
			lx.cursor.Bump()
			continue
		}
		r, _ := lx.cursor.PeekRune()
		if !isIdentContinueRune(r) {
			break
		}
		lx.cursor.Bump()
	}
	return lx.tokenFrom(start, token.Ident)
}

func (lx *Lexer) scanNumber() token.Token {
	start := lx.cursor.Mark()
	for isDec(lx.cursor.Peek()) {
		lx.cursor.Bump()
	}
	return lx.tokenFrom(start, token.Number)
}

// scanKeyword reads a backslash word. Unknown words are reported and come back
// as a Backslash token so the parser can skip them.
func (lx *Lexer) scanKeyword() token.Token {
	start := lx.cursor.Mark()
	lx.cursor.Bump()
	wordStart := lx.cursor.Mark()
	for isIdentContinueByte(lx.cursor.Peek()) {
		lx.cursor.Bump()
	}
	word := lx.cursor.TextFrom(wordStart)
	if k, ok := token.LookupKeyword(word); ok {
		return lx.tokenFrom(start, k)
	}
	if word == "" {
		lx.errorAt(start, "expected a keyword after '\\'")
	} else {
		lx.errorAt(start, "unknown keyword \\%s", word)
	}
	return lx.tokenFrom(start, token.Backslash)
}

func (lx *Lexer) scanPunct() token.Token {
	start := lx.cursor.Mark()
	ch := lx.cursor.Peek()
	kind := token.Invalid
	switch ch {
	case '(':
		kind = token.LParen
	case ')':
		kind = token.RParen
	case '{':
		if lx.cursor.PeekAt(1) == '?' && lx.cursor.PeekAt(2) == '}' {
			lx.cursor.Bump()
			lx.cursor.Bump()
			kind = token.Goal
		} else {
			kind = token.LBrace
		}
	case '}':
		kind = token.RBrace
	case ':':
		kind = token.Colon
	case '|':
		kind = token.Pipe
	case '.':
		kind = token.Dot
	case ',':
		kind = token.Comma
	case '=':
		if lx.cursor.PeekAt(1) == '>' {
			lx.cursor.Bump()
			kind = token.FatArrow
		}
	case '-':
		if lx.cursor.PeekAt(1) == '>' {
			lx.cursor.Bump()
			kind = token.Arrow
		}
	}
	lx.cursor.Bump()
	tok := lx.tokenFrom(start, kind)
	if kind == token.Invalid {
		lx.errorAt(start, "unexpected character %q", tok.Text)
	}
	return tok
}

// skipTrivia consumes whitespace, line comments (--) and nested block
// comments ({- -}). An unterminated block comment is reported and runs to EOF.
func (lx *Lexer) skipTrivia() {
	for !lx.cursor.EOF() {
		ch := lx.cursor.Peek()
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '\f':
			lx.cursor.Bump()
		case ch == '-' && lx.cursor.PeekAt(1) == '-':
			for !lx.cursor.EOF() && lx.cursor.Peek() != '\n' {
				lx.cursor.Bump()
			}
		case ch == '{' && lx.cursor.PeekAt(1) == '-':
			lx.skipBlockComment()
		default:
			return
		}
	}
}

func (lx *Lexer) skipBlockComment() {
	start := lx.cursor.Mark()
	lx.cursor.Bump()
	lx.cursor.Bump()
	depth := 1
	for !lx.cursor.EOF() {
		switch {
		case lx.cursor.Peek() == '{' && lx.cursor.PeekAt(1) == '-':
			lx.cursor.Bump()
			lx.cursor.Bump()
			depth++
		case lx.cursor.Peek() == '-' && lx.cursor.PeekAt(1) == '}':
			lx.cursor.Bump()
			lx.cursor.Bump()
			depth--
			if depth == 0 {
				return
			}
		default:
			lx.cursor.Bump()
		}
	}
	lx.errorAt(start, "unterminated block comment")
}

const utf8RuneSelf = 0x80

func isDec(b byte) bool { return b >= '0' && b <= '9' }

func isIdentStartByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isIdentContinueByte(b byte) bool {
	return isIdentStartByte(b) || isDec(b) || b == '\''
}

func isIdentStartRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentContinueRune(r rune) bool {
	return isIdentStartRune(r) || unicode.IsDigit(r) || r == '\''
}
