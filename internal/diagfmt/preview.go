package diagfmt

import (
	"os"
	"path/filepath"
	"strings"
	"unicode/utf16"

	"github.com/mattn/go-runewidth"

	"arendls/internal/source"
)

// lines caches file contents split into lines.
type lines map[string][]string

func (c lines) get(file string, line int) (string, bool) {
	ls, ok := c[file]
	if !ok {
		data, err := os.ReadFile(file)
		if err == nil {
			ls = strings.Split(string(source.Normalize(data)), "\n")
		}
		c[file] = ls
	}
	if line < 1 || line > len(ls) {
		return "", false
	}
	return strings.TrimRight(ls[line-1], "\r"), true
}

// underline returns the indent and marker widths, in terminal cells, of a
// span that starts at the 1-based UTF-16 column col of text and covers n
// code units. Tabs count as one cell, as they are echoed verbatim.
func underline(text string, col, n int) (indent, width int) {
	units := 0
	for _, r := range text {
		w := runewidth.RuneWidth(r)
		if r == '\t' {
			w = 1
		}
		switch {
		case units < col-1:
			indent += w
		case units < col-1+n:
			width += w
		default:
			return indent, max(width, 1)
		}
		units += utf16.RuneLen(r)
	}
	return indent, max(width, 1)
}

// indentLike copies the tabs of the first cells of text so the marker lines
// up under it.
func indentLike(text string, cells int) string {
	var b strings.Builder
	for _, r := range text {
		if cells <= 0 {
			break
		}
		if r == '\t' {
			b.WriteByte('\t')
			cells--
			continue
		}
		w := runewidth.RuneWidth(r)
		b.WriteString(strings.Repeat(" ", w))
		cells -= w
	}
	if cells > 0 {
		b.WriteString(strings.Repeat(" ", cells))
	}
	return b.String()
}

func displayPath(path string, mode PathMode, base string) string {
	switch mode {
	case PathModeAbsolute:
		if abs, err := filepath.Abs(path); err == nil {
			return abs
		}
	case PathModeBasename:
		return filepath.Base(path)
	case PathModeRelative, PathModeAuto:
		if base == "" {
			return path
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return path
		}
		if mode == PathModeAuto && strings.HasPrefix(rel, "..") {
			return path
		}
		return rel
	}
	return path
}
