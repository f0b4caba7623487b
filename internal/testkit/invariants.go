// Package testkit holds structural checks shared by parser tests and fuzzers.
package testkit

import (
	"bytes"
	"fmt"

	"arendls/internal/ast"
	"arendls/internal/source"
)

// CheckGroupInvariants runs a minimal set of invariants on a parsed module:
// 1) the top group has no declaration and carries loc
// 2) every declaration position is valid, inside src and tagged with loc
// 3) every where-block group lies within the lines of its parent
// 4) top-level declarations start in source order
func CheckGroupInvariants(top *ast.Group, loc source.ModuleLocation, src []byte) error {
	if top == nil {
		return fmt.Errorf("nil top group")
	}
	if top.Decl != nil {
		return fmt.Errorf("top group has a declaration %q", top.Decl.Name)
	}
	if !top.Location.Same(loc) {
		return fmt.Errorf("top group location %s, want %s", top.Location, loc)
	}
	lines := bytes.Count(source.Normalize(src), []byte{'\n'}) + 1

	for _, cmd := range top.Namespace {
		if err := checkPos(cmd.Pos, loc, lines); err != nil {
			return fmt.Errorf("namespace command %s: %w", cmd.Path, err)
		}
		if cmd.Line > cmd.Pos.Line {
			return fmt.Errorf("namespace command %s: keyword line %d after path line %d", cmd.Path, cmd.Line, cmd.Pos.Line)
		}
	}

	prev := 0
	for _, g := range top.Subgroups {
		if err := checkGroup(g, loc, lines); err != nil {
			return err
		}
		if g.Decl.Pos.Line < prev {
			return fmt.Errorf("declaration %q on line %d precedes line %d", g.Decl.Name, g.Decl.Pos.Line, prev)
		}
		prev = g.Decl.Pos.Line
	}
	return nil
}

func checkGroup(g *ast.Group, loc source.ModuleLocation, lines int) error {
	if g == nil || g.Decl == nil {
		return fmt.Errorf("nested group without a declaration")
	}
	d := g.Decl
	if d.Name == "" {
		return fmt.Errorf("declaration at %s has no name", d.Pos)
	}
	if err := checkPos(d.Pos, loc, lines); err != nil {
		return fmt.Errorf("declaration %q: %w", d.Name, err)
	}
	if d.EndLine < d.Pos.Line || d.EndLine > lines {
		return fmt.Errorf("declaration %q: end line %d outside [%d, %d]", d.Name, d.EndLine, d.Pos.Line, lines)
	}
	for _, c := range d.Constructors {
		if err := checkPos(c.Pos, loc, lines); err != nil {
			return fmt.Errorf("constructor %q of %q: %w", c.Name, d.Name, err)
		}
	}
	first, last, _ := g.Lines()
	for _, sub := range g.Subgroups {
		if err := checkGroup(sub, loc, lines); err != nil {
			return err
		}
		sf, sl, _ := sub.Lines()
		if sf < first || sl > last {
			return fmt.Errorf("where-block %q spans lines %d-%d outside %q at %d-%d", sub.Name(), sf, sl, d.Name, first, last)
		}
	}
	return nil
}

func checkPos(p source.Pos, loc source.ModuleLocation, lines int) error {
	if !p.Valid() {
		return fmt.Errorf("invalid position %d:%d", p.Line, p.Column)
	}
	if p.Line > lines {
		return fmt.Errorf("line %d beyond the %d lines of the source", p.Line, lines)
	}
	if !p.Module.Same(loc) {
		return fmt.Errorf("position in %s, want %s", p.Module, loc)
	}
	return nil
}
