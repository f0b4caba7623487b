// Package sema resolves references in parsed modules and runs the checks the
// reference engine performs: scope, termination, duplicates, goals and unused
// let-bindings.
package sema

import (
	"arendls/internal/ast"
	"arendls/internal/diag"
	"arendls/internal/source"
)

// Env supplies the modules an \import or \open may name.
type Env interface {
	Module(path source.ModulePath) (*ast.Group, bool)
}

// Options configure a check of one module.
type Options struct {
	Reporter diag.Reporter
	Env      Env
	// Prelude is implicitly imported by every module. May be nil.
	Prelude *ast.Group
}

// Result summarizes a check.
type Result struct {
	Resolved   int
	Unresolved int
	Imports    []source.ModulePath
}

// Check resolves every reference in top and reports findings. Referents left
// from a previous check are overwritten.
func Check(top *ast.Group, opts Options) Result {
	var res Result
	if top == nil {
		return res
	}
	c := checker{
		top:    top,
		rep:    opts.Reporter,
		env:    opts.Env,
		result: &res,
	}
	if c.rep == nil {
		c.rep = &diag.Collect{}
	}
	c.run(opts.Prelude)
	return res
}

type checker struct {
	top    *ast.Group
	rep    diag.Reporter
	env    Env
	result *Result
	// modules maps single-segment imported module names to their path.
	modules map[string]source.ModulePath
}

func (c *checker) run(prelude *ast.Group) {
	var outer *scope
	if prelude != nil && prelude != c.top {
		outer = newScope(prelude.Decls(), nil)
	}
	outer = c.importScope(outer)
	c.checkGroup(c.top, outer)
}

// importScope builds the scope of declarations brought in by namespace
// commands, reporting unknown and duplicate imports.
func (c *checker) importScope(parent *scope) *scope {
	var decls []*ast.Decl
	seen := make(map[string]bool)
	for _, cmd := range c.top.Namespace {
		key := cmd.Path.String()
		if cmd.Kind == ast.NamespaceImport {
			if seen[key] {
				pos := cmd.Pos
				c.rep.Report(diag.New(diag.LevelWarning, diag.CodeDuplicateImport,
					diag.LocalCause{Pos: &pos}, "Module '"+key+"' is already imported"))
				continue
			}
			seen[key] = true
		}
		if cmd.Path.Equal(c.top.Location.Path) {
			continue
		}
		var mod *ast.Group
		ok := false
		if c.env != nil {
			mod, ok = c.env.Module(cmd.Path)
		}
		if !ok {
			pos := cmd.Pos
			c.rep.Report(diag.Errorf(diag.CodeModuleNotFound, diag.ScopeCause{Pos: &pos},
				"Cannot find module '%s'", key))
			continue
		}
		if cmd.Kind == ast.NamespaceImport {
			c.result.Imports = append(c.result.Imports, cmd.Path)
			if len(cmd.Path) == 1 {
				if c.modules == nil {
					c.modules = make(map[string]source.ModulePath)
				}
				c.modules[cmd.Path[0]] = cmd.Path
			}
		}
		decls = append(decls, mod.Decls()...)
	}
	if len(decls) == 0 {
		return parent
	}
	return newScope(decls, parent)
}

// checkGroup resolves g's own declaration with its where-block in scope, then
// descends into the where-block.
func (c *checker) checkGroup(g *ast.Group, outer *scope) {
	decls := g.Decls()
	c.reportDuplicates(decls)
	inner := newScope(decls, outer)
	if g.Decl != nil {
		c.checkDecl(g.Decl, inner)
	}
	for _, sub := range g.Subgroups {
		c.checkGroup(sub, inner)
	}
}

func (c *checker) reportDuplicates(decls []*ast.Decl) {
	seen := make(map[string]bool, len(decls))
	for _, d := range decls {
		if seen[d.Name] {
			c.rep.Report(diag.Errorf(diag.CodeDuplicateName, diag.LocalCause{Decl: d},
				"Duplicate definition name '%s'", d.Name))
			continue
		}
		seen[d.Name] = true
	}
}

func (c *checker) checkDecl(d *ast.Decl, s *scope) {
	r := resolver{checker: c, decl: d, scope: s}
	r.bindParams(d.Params)
	if d.Result != nil {
		r.expr(d.Result)
	}
	if d.Body != nil {
		r.expr(d.Body)
	}
	for _, con := range d.Constructors {
		cr := resolver{checker: c, decl: con, scope: s, locals: r.locals}
		cr.bindParams(con.Params)
	}

	if d.Kind == ast.DeclLemma && d.Result == nil {
		c.rep.Report(diag.New(diag.LevelInfo, diag.CodeMissingResult, diag.LocalCause{Decl: d},
			"Lemma '"+d.Name+"' has no result type"))
	}
	if d.Kind == ast.DeclFunc && len(d.Params) == 0 && refersTo(d.Body, d) {
		c.rep.Report(diag.Errorf(diag.CodeTermination, diag.TerminationCause{Decl: d},
			"Termination check failed for function '%s'", d.Name))
	}
}

func refersTo(e *ast.Expr, d *ast.Decl) bool {
	found := false
	ast.Inspect(e, func(x *ast.Expr) bool {
		if ref, ok := x.Referent.(ast.DeclRef); ok && ref.Decl == d {
			found = true
		}
		return !found
	})
	return found
}
