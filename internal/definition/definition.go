// Package definition answers go-to-definition requests from the resolved
// syntax tree of a module.
package definition

import (
	"fmt"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"arendls/internal/ast"
	"arendls/internal/engine"
	"arendls/internal/position"
	"arendls/internal/source"
	"arendls/internal/workspace"
)

// Index is the library state a lookup needs.
type Index interface {
	Describe(uri string) (workspace.Description, bool)
	FindLibrary(name string) engine.Library
	PathOf(lib engine.Library, module source.ModulePath, inTests bool) (string, bool)
	Libraries() []engine.Library
}

// Resolve returns the definition links for the cursor pos in the document
// uri. A cursor on an \import or \open line links to the named module;
// anywhere else every covering reference with a located referent yields a
// link. The result is never nil.
func Resolve(ix Index, uri string, pos protocol.Position, log *zap.Logger) []protocol.LocationLink {
	if log == nil {
		log = zap.NewNop()
	}
	links := []protocol.LocationLink{}
	d, ok := ix.Describe(uri)
	if !ok {
		return links
	}
	top := d.Library.ModuleGroup(d.Module, d.InTests)
	if top == nil {
		return links
	}
	line, _ := position.FromProtocol(pos)

	if cmd := namespaceAt(top, line); cmd != nil {
		if file, ok := moduleFile(ix, d, cmd.Path); ok {
			origin := position.ToRange(cmd.Pos, cmd.Path.TextLen())
			links = append(links, protocol.LocationLink{
				OriginSelectionRange: &origin,
				TargetURI:            protocol.DocumentURI(workspace.FromPath(file)),
				TargetRange:          position.Empty(),
				TargetSelectionRange: position.Empty(),
			})
		}
	} else {
		for _, g := range SearchScope(top, line) {
			ast.References(g, func(e *ast.Expr) {
				if link, ok := resolveRef(ix, e, pos, log); ok {
					links = append(links, link)
				}
			})
		}
	}

	for _, l := range links {
		log.Info(fmt.Sprintf("Jumping to (%d, %d) in %s",
			l.TargetRange.Start.Line, l.TargetRange.Start.Character, l.TargetURI))
	}
	return links
}

// SearchScope returns the top-level groups whose declaration lines, where
// block included, contain line (1-based). When no declaration spans line the
// whole top group is searched.
func SearchScope(top *ast.Group, line int) []*ast.Group {
	var out []*ast.Group
	for _, g := range top.Subgroups {
		first, last, ok := g.Lines()
		if ok && first <= line && line <= last {
			out = append(out, g)
		}
	}
	if len(out) == 0 {
		return []*ast.Group{top}
	}
	return out
}

func namespaceAt(top *ast.Group, line int) *ast.NamespaceCommand {
	for _, cmd := range top.Namespace {
		if cmd.Line == line {
			return cmd
		}
	}
	return nil
}

// moduleFile finds an imported module: in the document's own library first,
// then in the other registered libraries.
func moduleFile(ix Index, d workspace.Description, path source.ModulePath) (string, bool) {
	if file, ok := ix.PathOf(d.Library, path, d.InTests); ok {
		return file, true
	}
	for _, lib := range ix.Libraries() {
		if lib.Name() == d.Library.Name() {
			continue
		}
		if file, ok := ix.PathOf(lib, path, false); ok {
			return file, true
		}
	}
	return "", false
}

func resolveRef(ix Index, e *ast.Expr, pos protocol.Position, log *zap.Logger) (protocol.LocationLink, bool) {
	n := ast.NameLen(e)
	if !position.Covers(e.Pos, n, pos) {
		return protocol.LocationLink{}, false
	}
	var target source.Pos
	switch r := e.Referent.(type) {
	case ast.DeclRef:
		target = r.Decl.Pos
	case ast.LocalRef:
		target = r.Binding.Pos
	case ast.ModuleRef:
		log.Debug("Module references have no definition site", zap.Stringer("module", r.Path))
		return protocol.LocationLink{}, false
	default:
		log.Warn("Unsupported reference: "+e.Text, zap.String("referent", fmt.Sprintf("%T", e.Referent)))
		return protocol.LocationLink{}, false
	}

	file, ok := ix.PathOf(ix.FindLibrary(target.Module.Library), target.Module.Path, target.Module.InTests)
	if !ok {
		return protocol.LocationLink{}, false
	}
	name := position.ToRange(target, n)
	origin := position.ToRange(e.Pos, n)
	return protocol.LocationLink{
		OriginSelectionRange: &origin,
		TargetURI:            protocol.DocumentURI(workspace.FromPath(file)),
		TargetRange:          name,
		TargetSelectionRange: position.NextLine(name.Start),
	}, true
}

// Locations downgrades links for clients without link support.
func Locations(links []protocol.LocationLink) []protocol.Location {
	out := make([]protocol.Location, 0, len(links))
	for _, l := range links {
		out = append(out, protocol.Location{URI: l.TargetURI, Range: l.TargetRange})
	}
	return out
}
