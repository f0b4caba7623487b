// Package position converts between editor positions (0-based line and
// character) and engine positions (1-based line and column, marking the start
// of a name of known length).
package position

import (
	"fortio.org/safecast"
	"go.lsp.dev/protocol"

	"arendls/internal/source"
)

func safeUint32(n int) uint32 {
	if n < 0 {
		return 0
	}
	v, err := safecast.Conv[uint32](n)
	if err != nil {
		return ^uint32(0)
	}
	return v
}

// Covers reports whether the editor position p falls on the name of length n
// starting at e: same line, and e.Column <= p.Character+1 <= e.Column+n.
// Both ends are inclusive so a cursor just past the last character still hits.
func Covers(e source.Pos, n int, p protocol.Position) bool {
	line := int(p.Line) + 1
	col := int(p.Character) + 1
	return line == e.Line && e.Column <= col && col <= e.Column+n
}

// ToRange returns the editor range of a name of length n starting at e.
func ToRange(e source.Pos, n int) protocol.Range {
	line := safeUint32(e.Line - 1)
	start := safeUint32(e.Column - 1)
	return protocol.Range{
		Start: protocol.Position{Line: line, Character: start},
		End:   protocol.Position{Line: line, Character: safeUint32(e.Column - 1 + n)},
	}
}

// FromProtocol converts an editor position to a 1-based line and column.
func FromProtocol(p protocol.Position) (line, column int) {
	return int(p.Line) + 1, int(p.Character) + 1
}

// Empty is the range used when nothing better is known.
func Empty() protocol.Range {
	return protocol.Range{}
}

// NextLine spans from start to the beginning of the following line.
func NextLine(start protocol.Position) protocol.Range {
	return protocol.Range{
		Start: start,
		End:   protocol.Position{Line: start.Line + 1, Character: 0},
	}
}
