// Package ast holds the concrete syntax produced by the parser: module groups,
// declarations, namespace commands and expressions. Resolution fills in the
// referents of reference expressions; nothing else mutates a tree after parsing.
package ast

import "arendls/internal/source"

// DeclKind distinguishes the declaration forms of the language.
type DeclKind uint8

const (
	DeclFunc DeclKind = iota + 1
	DeclLemma
	DeclData
	DeclConstructor
)

func (k DeclKind) String() string {
	switch k {
	case DeclFunc:
		return "func"
	case DeclLemma:
		return "lemma"
	case DeclData:
		return "data"
	case DeclConstructor:
		return "constructor"
	default:
		return "unknown"
	}
}

// Decl is a named global: a function, lemma, data type or constructor.
type Decl struct {
	Kind DeclKind
	Name string
	// Pos marks the first character of Name.
	Pos source.Pos
	// EndLine is the last line spanned by the declaration, where-block included.
	EndLine      int
	Params       []*Binding
	Result       *Expr
	Body         *Expr
	Constructors []*Decl
}

// Binding is a parameter, lambda binder or let binder. Name is empty for
// anonymous constructor arguments, which only carry a type.
type Binding struct {
	Name     string
	Pos      source.Pos
	Type     *Expr
	Implicit bool
}

// NamespaceKind tells \import from \open.
type NamespaceKind uint8

const (
	NamespaceImport NamespaceKind = iota + 1
	NamespaceOpen
)

// NamespaceCommand is a top-level \import or \open. Pos marks the first
// segment of the module path.
type NamespaceCommand struct {
	Kind NamespaceKind
	Path source.ModulePath
	Pos  source.Pos
	// Line is the line of the command keyword.
	Line int
}

// Group is a declaration together with the declarations of its where-block.
// The module's top group has no Decl and owns the namespace commands.
type Group struct {
	Decl      *Decl
	Location  source.ModuleLocation
	Namespace []*NamespaceCommand
	Subgroups []*Group
}

// Name returns the declared name, or the module path for a top group.
func (g *Group) Name() string {
	if g.Decl == nil {
		return g.Location.Path.String()
	}
	return g.Decl.Name
}

// Lines returns the line span of the group's declaration. Top groups have none.
func (g *Group) Lines() (first, last int, ok bool) {
	if g == nil || g.Decl == nil {
		return 0, 0, false
	}
	last = g.Decl.EndLine
	if last < g.Decl.Pos.Line {
		last = g.Decl.Pos.Line
	}
	return g.Decl.Pos.Line, last, true
}

// Decls returns the declarations introduced directly by this group's children,
// constructors of data declarations included.
func (g *Group) Decls() []*Decl {
	out := make([]*Decl, 0, len(g.Subgroups))
	for _, sub := range g.Subgroups {
		if sub.Decl == nil {
			continue
		}
		out = append(out, sub.Decl)
		out = append(out, sub.Decl.Constructors...)
	}
	return out
}

// Walk visits g and its nested groups in preorder. Returning false from fn
// skips the children of that group.
func (g *Group) Walk(fn func(*Group) bool) {
	if g == nil {
		return
	}
	if !fn(g) {
		return
	}
	for _, sub := range g.Subgroups {
		sub.Walk(fn)
	}
}

// Exprs returns the root expressions owned by the group's own declaration:
// parameter types, result type, body and constructor argument types.
func (g *Group) Exprs() []*Expr {
	if g == nil || g.Decl == nil {
		return nil
	}
	d := g.Decl
	var out []*Expr
	out = appendBindingTypes(out, d.Params)
	if d.Result != nil {
		out = append(out, d.Result)
	}
	if d.Body != nil {
		out = append(out, d.Body)
	}
	for _, c := range d.Constructors {
		out = appendBindingTypes(out, c.Params)
	}
	return out
}

// appendBindingTypes adds each distinct type; grouped binders like (x y : T)
// share a single expression.
func appendBindingTypes(out []*Expr, bs []*Binding) []*Expr {
	var last *Expr
	for _, b := range bs {
		if b.Type != nil && b.Type != last {
			out = append(out, b.Type)
			last = b.Type
		}
	}
	return out
}

// References calls fn for every reference expression in g and its nested groups.
func References(g *Group, fn func(*Expr)) {
	g.Walk(func(sub *Group) bool {
		for _, root := range sub.Exprs() {
			Inspect(root, func(e *Expr) bool {
				if e.Kind == ExprRef {
					fn(e)
				}
				return true
			})
		}
		return true
	})
}
