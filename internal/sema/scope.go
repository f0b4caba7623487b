package sema

import (
	"arendls/internal/ast"
	"arendls/internal/diag"
)

// scope is one level of global names. Lookups walk toward the prelude.
type scope struct {
	names  map[string]*ast.Decl
	parent *scope
}

func newScope(decls []*ast.Decl, parent *scope) *scope {
	s := &scope{names: make(map[string]*ast.Decl, len(decls)), parent: parent}
	for _, d := range decls {
		// The first declaration of a name wins; later ones are duplicates.
		if _, ok := s.names[d.Name]; !ok {
			s.names[d.Name] = d
		}
	}
	return s
}

func (s *scope) lookup(name string) *ast.Decl {
	for cur := s; cur != nil; cur = cur.parent {
		if d, ok := cur.names[name]; ok {
			return d
		}
	}
	return nil
}

// resolver walks the expressions of one declaration with a stack of locals.
type resolver struct {
	*checker
	decl   *ast.Decl
	scope  *scope
	locals []*ast.Binding
	used   map[*ast.Binding]bool
}

// bindParams resolves parameter types left to right; each parameter is in
// scope for the types after it.
func (r *resolver) bindParams(params []*ast.Binding) {
	var lastType *ast.Expr
	for _, b := range params {
		// Grouped binders share one type expression.
		if b.Type != nil && b.Type != lastType {
			r.expr(b.Type)
			lastType = b.Type
		}
		if b.Name != "" {
			r.locals = append(r.locals, b)
		}
	}
}

func (r *resolver) lookupLocal(name string) *ast.Binding {
	for i := len(r.locals) - 1; i >= 0; i-- {
		if r.locals[i].Name == name {
			return r.locals[i]
		}
	}
	return nil
}

func (r *resolver) expr(e *ast.Expr) {
	if e == nil {
		return
	}
	switch e.Kind {
	case ast.ExprRef:
		r.ref(e)
	case ast.ExprApp, ast.ExprArrow:
		for _, a := range e.Args {
			r.expr(a)
		}
	case ast.ExprLam, ast.ExprPi:
		mark := len(r.locals)
		r.bindParams(e.Binders)
		for _, a := range e.Args {
			r.expr(a)
		}
		r.locals = r.locals[:mark]
	case ast.ExprLet:
		r.let(e)
	case ast.ExprGoal:
		pos := e.Pos
		r.rep.Report(diag.New(diag.LevelGoal, diag.CodeGoal, diag.LocalCause{Decl: r.decl, Pos: &pos}, "Goal"))
	}
}

func (r *resolver) let(e *ast.Expr) {
	if len(e.Binders) != 1 || len(e.Args) != 2 {
		return
	}
	b := e.Binders[0]
	r.expr(e.Args[0])
	mark := len(r.locals)
	r.locals = append(r.locals, b)
	r.expr(e.Args[1])
	r.locals = r.locals[:mark]
	if !r.used[b] {
		pos := b.Pos
		r.rep.Report(diag.New(diag.LevelWarningUnused, diag.CodeUnusedBinding,
			diag.LocalCause{Decl: r.decl, Pos: &pos}, "Binding '"+b.Name+"' is never used"))
	}
}

func (r *resolver) ref(e *ast.Expr) {
	if b := r.lookupLocal(e.Text); b != nil {
		if r.used == nil {
			r.used = make(map[*ast.Binding]bool)
		}
		r.used[b] = true
		e.Referent = ast.LocalRef{Binding: b}
		r.result.Resolved++
		return
	}
	if d := r.scope.lookup(e.Text); d != nil {
		e.Referent = ast.DeclRef{Decl: d}
		r.result.Resolved++
		return
	}
	if path, ok := r.modules[e.Text]; ok {
		e.Referent = ast.ModuleRef{Path: path}
		r.result.Resolved++
		return
	}
	e.Referent = ast.Unresolved{Name: e.Text}
	r.result.Unresolved++
	r.rep.Report(diag.Errorf(diag.CodeNotInScope, diag.ScopeCause{Ref: e}, "Cannot resolve reference '%s'", e.Text))
}
