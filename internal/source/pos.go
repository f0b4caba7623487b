package source

import (
	"fmt"
	"unicode/utf16"
	"unicode/utf8"
)

// Pos is an engine position: 1-based line and 1-based column inside a module.
// Columns count UTF-16 code units, the unit editors use for characters.
type Pos struct {
	Module ModuleLocation
	Line   int
	Column int
}

// Valid reports whether the position lies inside a document.
func (p Pos) Valid() bool {
	return p.Line >= 1 && p.Column >= 1
}

func (p Pos) String() string {
	return fmt.Sprintf("%s:%d:%d", p.Module, p.Line, p.Column)
}

// Width returns the number of UTF-16 code units needed to encode s.
func Width(s string) int {
	n := 0
	for _, r := range s {
		if r == utf8.RuneError {
			n++
			continue
		}
		n += utf16.RuneLen(r)
	}
	return n
}
