package source

import (
	"path/filepath"
	"slices"
	"strings"
)

// FileExt is the extension of Arend module files.
const FileExt = ".ard"

// ModulePath names a module inside a library tree, e.g. ["Data", "List"].
type ModulePath []string

// ParseModulePath splits a dotted module name. Empty segments are dropped.
func ParseModulePath(s string) ModulePath {
	parts := strings.Split(s, ".")
	out := make(ModulePath, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (p ModulePath) String() string {
	return strings.Join(p, ".")
}

// Equal reports whether both paths have the same segments.
func (p ModulePath) Equal(other ModulePath) bool {
	return slices.Equal(p, other)
}

// RelPath returns the module's file path relative to a library base directory.
func (p ModulePath) RelPath() string {
	if len(p) == 0 {
		return ""
	}
	return filepath.Join(p...) + FileExt
}

// TextLen is the width of the dotted name as written in source:
// the segment widths plus one separator between each pair.
func (p ModulePath) TextLen() int {
	if len(p) == 0 {
		return 0
	}
	n := len(p) - 1
	for _, seg := range p {
		n += Width(seg)
	}
	return n
}

// ModuleLocation identifies a parse unit: library, tree and module path.
type ModuleLocation struct {
	Library string
	InTests bool
	Path    ModulePath
}

func (l ModuleLocation) String() string {
	tree := "src"
	if l.InTests {
		tree = "test"
	}
	return l.Library + ":" + tree + ":" + l.Path.String()
}

// Same reports whether both locations denote the same parse unit.
func (l ModuleLocation) Same(other ModuleLocation) bool {
	return l.Library == other.Library && l.InTests == other.InTests && l.Path.Equal(other.Path)
}
