package driver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"arendls/internal/diag"
	"arendls/internal/engine"
	"arendls/internal/parser"
	"arendls/internal/project"
	"arendls/internal/project/dag"
	"arendls/internal/source"
	"arendls/internal/trace"
)

// LoadLibrary loads the dependencies of lib that are not loaded yet, then
// parses every source module of lib itself.
func (e *Engine) LoadLibrary(ctx context.Context, el engine.Library, l engine.LoadListener) bool {
	lib, ok := asLibrary(el)
	if !ok {
		return false
	}
	order, ok := e.dependencyOrder(lib)
	if !ok {
		return false
	}
	for _, dep := range order {
		if dep != lib && dep.isLoaded() {
			continue
		}
		if !e.loadSources(ctx, dep, l) {
			return false
		}
	}
	return true
}

// dependencyOrder returns lib and its transitive dependencies, dependencies
// first. Unknown dependencies and cycles are library errors.
func (e *Engine) dependencyOrder(lib *Library) ([]*Library, bool) {
	byName := map[string]*Library{lib.Name(): lib}
	queue := []*Library{lib}
	var nodes []dag.Node
	ok := true
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		nodes = append(nodes, dag.Node{Name: cur.Name(), Deps: cur.Dependencies()})
		for _, name := range cur.Dependencies() {
			if _, seen := byName[name]; seen {
				continue
			}
			dep := e.discover(name)
			if dep == nil {
				e.libErrors.Report(diag.Errorf(diag.CodeLibraryNotFound,
					diag.LibraryIOCause{FileName: cur.desc.ManifestPath()},
					"Cannot find dependency %q of library %q", name, cur.Name()))
				ok = false
				continue
			}
			byName[name] = dep
			queue = append(queue, dep)
		}
	}
	if !ok {
		return nil, false
	}

	idx := dag.BuildIndex(nodes)
	g, _ := dag.BuildGraph(idx, nodes)
	topo := dag.ToposortKahn(g)
	if topo.Cyclic {
		names := idx.Names(topo.Cycles)
		e.libErrors.Report(diag.Errorf(diag.CodeCyclicDependency,
			diag.LibraryIOCause{FileName: lib.desc.ManifestPath()},
			"Cyclic dependency between libraries: %s", strings.Join(names, ", ")))
		return nil, false
	}
	out := make([]*Library, 0, len(topo.Order))
	for _, name := range idx.Names(topo.Order) {
		out = append(out, byName[name])
	}
	return out, true
}

func (e *Engine) loadSources(ctx context.Context, lib *Library, l engine.LoadListener) bool {
	ctx, span := trace.Start(ctx, trace.ScopeLibrary, "load:"+lib.Name())
	defer span.End("")

	dir := lib.SourceDir()
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		e.libErrors.Report(diag.Errorf(diag.CodeLibraryIO, diag.LibraryIOCause{FileName: dir},
			"Source directory %q of library %q does not exist", dir, lib.Name()))
		return false
	}
	paths := lib.desc.Modules
	if paths == nil {
		var err error
		if paths, err = project.ListModules(dir); err != nil {
			e.libErrors.Report(diag.Errorf(diag.CodeLibraryIO, diag.LibraryIOCause{FileName: dir}, "%v", err))
			return false
		}
	}
	mods, ok := e.parseAll(ctx, lib, dir, paths, false, l)
	lib.setTable(false, newModuleTable(mods))
	span.WithExtra("modules", strconv.Itoa(len(mods)))
	e.log.Debug("library loaded", zap.String("library", lib.Name()), zap.Int("modules", len(mods)), zap.Bool("ok", ok))
	return ok
}

// LoadTests parses the test modules of lib. A library without a test
// directory loads trivially.
func (e *Engine) LoadTests(ctx context.Context, el engine.Library) bool {
	lib, ok := asLibrary(el)
	if !ok {
		return false
	}
	dir := lib.TestDir()
	if dir == "" {
		return true
	}
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		lib.setTable(true, newModuleTable(nil))
		return true
	}
	paths, err := project.ListModules(dir)
	if err != nil {
		e.libErrors.Report(diag.Errorf(diag.CodeLibraryIO, diag.LibraryIOCause{FileName: dir}, "%v", err))
		return false
	}
	mods, ok := e.parseAll(ctx, lib, dir, paths, true, nil)
	lib.setTable(true, newModuleTable(mods))
	return ok
}

// ReparseModule re-reads one module. A module whose file is gone is dropped.
func (e *Engine) ReparseModule(ctx context.Context, el engine.Library, path source.ModulePath, inTests bool) bool {
	lib, ok := asLibrary(el)
	if !ok {
		return false
	}
	base := lib.SourceDir()
	if inTests {
		base = lib.TestDir()
	}
	if base == "" {
		return false
	}
	file := filepath.Join(base, path.RelPath())
	if _, err := os.Stat(file); errors.Is(err, os.ErrNotExist) {
		lib.removeModule(path, inTests)
		e.log.Debug("module removed", zap.String("library", lib.Name()), zap.Stringer("module", path))
		return true
	}
	m, err := e.parseFile(ctx, lib, file, path, inTests)
	if err != nil {
		e.libErrors.Report(diag.Errorf(diag.CodeLibraryIO, diag.LibraryIOCause{FileName: file}, "%v", err))
		return false
	}
	lib.putModule(m)
	return true
}

// parseAll parses modules in parallel. Unreadable files are library errors
// and leave the module out; the result keeps the order of paths.
func (e *Engine) parseAll(ctx context.Context, lib *Library, base string, paths []source.ModulePath, inTests bool, l engine.LoadListener) ([]*module, bool) {
	notify := func(path source.ModulePath, st engine.ModuleStatus) {
		if l != nil {
			l.ModuleStatus(lib.Name(), path, st)
		}
	}
	for _, p := range paths {
		notify(p, engine.ModuleQueued)
	}

	results := make([]*module, len(paths))
	failures := make([]error, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.jobs)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			notify(path, engine.ModuleParsing)
			file := filepath.Join(base, path.RelPath())
			m, err := e.parseFile(gctx, lib, file, path, inTests)
			if err != nil {
				failures[i] = err
				notify(path, engine.ModuleFailed)
				return nil
			}
			results[i] = m
			if len(m.parseErrs) > 0 {
				notify(path, engine.ModuleFailed)
			} else {
				notify(path, engine.ModuleParsed)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		e.log.Debug("parsing cancelled", zap.String("library", lib.Name()), zap.Error(err))
		return nil, false
	}

	ok := true
	out := make([]*module, 0, len(paths))
	for i, m := range results {
		if failures[i] != nil {
			ok = false
			e.libErrors.Report(diag.Errorf(diag.CodeLibraryIO,
				diag.LibraryIOCause{FileName: filepath.Join(base, paths[i].RelPath())}, "%v", failures[i]))
			continue
		}
		out = append(out, m)
	}
	return out, ok
}

// parseFile reads and parses one module, going through the disk cache when
// one is configured. Only modules without parse errors are cached.
func (e *Engine) parseFile(ctx context.Context, lib *Library, file string, path source.ModulePath, inTests bool) (*module, error) {
	_, span := trace.Start(ctx, trace.ScopeModule, "module:"+path.String())
	defer span.End("")

	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("cannot read module %s: %w", path, err)
	}
	loc := source.ModuleLocation{Library: lib.Name(), InTests: inTests, Path: path}
	m := &module{path: path, inTests: inTests, file: file}

	key := cacheKey(loc, data)
	if e.cache != nil {
		group, hit, err := e.cache.Get(key)
		if err != nil {
			e.log.Warn("parse cache read failed", zap.String("file", file), zap.Error(err))
		}
		if hit {
			span.WithExtra("cache", "hit")
			m.group = group
			return m, nil
		}
	}

	errs := &diag.Collect{}
	m.group = parser.ParseModule(data, loc, errs)
	m.parseErrs = errs.Items()
	if e.cache != nil && len(m.parseErrs) == 0 {
		if err := e.cache.Put(key, m.group); err != nil {
			e.log.Warn("parse cache write failed", zap.String("file", file), zap.Error(err))
		}
	}
	return m, nil
}
