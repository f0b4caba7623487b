package lexer

import (
	"fmt"
	"unicode/utf16"
	"unicode/utf8"

	"fortio.org/safecast"
)

// Cursor walks the source byte by byte while keeping the 1-based line and the
// 1-based UTF-16 column of the current offset.
type Cursor struct {
	src   []byte
	Off   uint32
	Limit uint32
	Line  int
	Col   int
}

// NewCursor creates a cursor at the start of src.
func NewCursor(src []byte) Cursor {
	limit, err := safecast.Conv[uint32](len(src))
	if err != nil {
		panic(fmt.Errorf("len source overflow: %w", err))
	}
	return Cursor{src: src, Limit: limit, Line: 1, Col: 1}
}

// EOF reports whether the whole input has been consumed.
func (c *Cursor) EOF() bool {
	return c.Off >= c.Limit
}

// Peek returns the current byte, or 0 at EOF.
func (c *Cursor) Peek() byte {
	if c.EOF() {
		return 0
	}
	return c.src[c.Off]
}

// PeekAt returns the byte i positions ahead, or 0 past the end.
func (c *Cursor) PeekAt(i uint32) byte {
	if c.Off+i >= c.Limit {
		return 0
	}
	return c.src[c.Off+i]
}

// PeekRune decodes the rune at the current offset.
func (c *Cursor) PeekRune() (rune, int) {
	if c.EOF() {
		return 0, 0
	}
	return utf8.DecodeRune(c.src[c.Off:c.Limit])
}

// Bump consumes one rune and advances line and column.
func (c *Cursor) Bump() {
	if c.EOF() {
		return
	}
	r, size := c.PeekRune()
	c.Off += uint32(size)
	if r == '\n' {
		c.Line++
		c.Col = 1
		return
	}
	if r == utf8.RuneError {
		c.Col++
		return
	}
	c.Col += utf16.RuneLen(r)
}

// Eat consumes the next byte if it equals b. b must be ASCII.
func (c *Cursor) Eat(b byte) bool {
	if c.Peek() == b && !c.EOF() {
		c.Bump()
		return true
	}
	return false
}

// Mark is a saved cursor state.
type Mark struct {
	off  uint32
	line int
	col  int
}

// Mark saves the current state.
func (c *Cursor) Mark() Mark {
	return Mark{off: c.Off, line: c.Line, col: c.Col}
}

// TextFrom returns the source text consumed since m.
func (c *Cursor) TextFrom(m Mark) string {
	return string(c.src[m.off:c.Off])
}

// Reset rewinds to m.
func (c *Cursor) Reset(m Mark) {
	c.Off = m.off
	c.Line = m.line
	c.Col = m.col
}
