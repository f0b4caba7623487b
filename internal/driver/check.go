package driver

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"arendls/internal/ast"
	"arendls/internal/engine"
	"arendls/internal/sema"
	"arendls/internal/source"
	"arendls/internal/trace"
)

// moduleEnv answers imports for modules of one library tree. Test modules see
// the library's sources too; every module sees its direct dependencies and
// the prelude.
type moduleEnv struct {
	e       *Engine
	lib     *Library
	inTests bool
}

func (env moduleEnv) Module(path source.ModulePath) (*ast.Group, bool) {
	if len(path) == 1 && path[0] == PreludeName {
		if g := env.e.preludeGroup(); g != nil {
			return g, true
		}
	}
	if env.inTests {
		if m := env.lib.module(path, true); m != nil {
			return m.group, true
		}
	}
	if m := env.lib.module(path, false); m != nil {
		return m.group, true
	}
	for _, name := range env.lib.Dependencies() {
		dep := env.e.lookup(name)
		if dep == nil {
			continue
		}
		if m := dep.module(path, false); m != nil {
			return m.group, true
		}
	}
	return nil, false
}

// TypecheckLibrary checks every source module of lib in path order.
func (e *Engine) TypecheckLibrary(ctx context.Context, el engine.Library) {
	lib, ok := asLibrary(el)
	if !ok {
		return
	}
	ctx, span := trace.Start(ctx, trace.ScopeLibrary, "typecheck:"+lib.Name())
	defer span.End("")

	mods := lib.table(false).modules()
	env := moduleEnv{e: e, lib: lib}
	for _, m := range mods {
		if ctx.Err() != nil {
			return
		}
		e.checkModule(m, env)
	}
	span.WithExtra("modules", strconv.Itoa(len(mods)))
}

// TypecheckTests checks the test modules accepted by filter, or all of them.
func (e *Engine) TypecheckTests(ctx context.Context, el engine.Library, filter func(source.ModulePath) bool) {
	lib, ok := asLibrary(el)
	if !ok {
		return
	}
	env := moduleEnv{e: e, lib: lib, inTests: true}
	for _, m := range lib.table(true).modules() {
		if ctx.Err() != nil {
			return
		}
		if filter != nil && !filter(m.path) {
			continue
		}
		e.checkModule(m, env)
	}
}

func (e *Engine) checkModule(m *module, env moduleEnv) {
	for _, err := range m.parseErrs {
		e.errors.Report(err)
	}
	res := sema.Check(m.group, sema.Options{
		Reporter: e.errors,
		Env:      env,
		Prelude:  e.preludeGroup(),
	})
	e.log.Debug("module checked",
		zap.String("library", env.lib.Name()),
		zap.Stringer("module", m.path),
		zap.Bool("test", m.inTests),
		zap.Int("resolved", res.Resolved),
		zap.Int("unresolved", res.Unresolved),
	)
}
