package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arendls/internal/source"
)

func ref(name string, line, col int) *Expr {
	return &Expr{Kind: ExprRef, Text: name, Pos: source.Pos{Line: line, Column: col}}
}

func TestReferencesVisitsNestedGroups(t *testing.T) {
	inner := &Group{Decl: &Decl{
		Kind: DeclFunc, Name: "g", Pos: source.Pos{Line: 3, Column: 9}, EndLine: 3,
		Body: ref("x", 3, 14),
	}}
	outer := &Group{
		Decl: &Decl{
			Kind: DeclFunc, Name: "f", Pos: source.Pos{Line: 1, Column: 7}, EndLine: 3,
			Params: []*Binding{{Name: "x", Type: ref("Nat", 1, 14)}},
			Body: &Expr{Kind: ExprApp, Args: []*Expr{ref("g", 2, 3), ref("x", 2, 5)}},
		},
		Subgroups: []*Group{inner},
	}

	var names []string
	References(outer, func(e *Expr) { names = append(names, e.Text) })
	assert.Equal(t, []string{"Nat", "g", "x", "x"}, names)
}

func TestGroupLines(t *testing.T) {
	g := &Group{Decl: &Decl{Name: "f", Pos: source.Pos{Line: 4, Column: 7}}}
	first, last, ok := g.Lines()
	require.True(t, ok)
	assert.Equal(t, 4, first)
	assert.Equal(t, 4, last)

	_, _, ok = (&Group{}).Lines()
	assert.False(t, ok)
}

func TestDeclsIncludesConstructors(t *testing.T) {
	nat := &Decl{Kind: DeclData, Name: "Nat", Constructors: []*Decl{
		{Kind: DeclConstructor, Name: "zero"},
		{Kind: DeclConstructor, Name: "suc"},
	}}
	top := &Group{Subgroups: []*Group{{Decl: nat}}}
	var names []string
	for _, d := range top.Decls() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"Nat", "zero", "suc"}, names)
}

func TestNameLenPrefersReferent(t *testing.T) {
	e := ref("f", 1, 1)
	assert.Equal(t, 1, NameLen(e))
	e.Referent = DeclRef{Decl: &Decl{Name: "foo"}}
	assert.Equal(t, 3, NameLen(e))
	e.Referent = Unresolved{Name: "λ"}
	assert.Equal(t, 1, NameLen(e))
}

func TestSharedBinderTypeVisitedOnce(t *testing.T) {
	nat := ref("Nat", 1, 17)
	g := &Group{Decl: &Decl{
		Kind: DeclFunc, Name: "plus",
		Params: []*Binding{{Name: "x", Type: nat}, {Name: "y", Type: nat}},
		Body:   &Expr{Kind: ExprLam, Binders: []*Binding{{Name: "a", Type: nat}, {Name: "b", Type: nat}}, Args: []*Expr{ref("a", 1, 40)}},
	}}
	var names []string
	References(g, func(e *Expr) { names = append(names, e.Text) })
	assert.Equal(t, []string{"Nat", "Nat", "a"}, names)
}
