package driver

import (
	"slices"
	"sync"

	"arendls/internal/ast"
	"arendls/internal/diag"
	"arendls/internal/project"
	"arendls/internal/source"
)

// module is one parsed file. parseErrs are kept so every typecheck of the
// module reports them again.
type module struct {
	path      source.ModulePath
	inTests   bool
	file      string
	group     *ast.Group
	parseErrs []*diag.Error
}

// moduleTable maps module paths to modules and remembers a sorted key order.
type moduleTable struct {
	byPath map[string]*module
	order  []string
}

func newModuleTable(mods []*module) *moduleTable {
	t := &moduleTable{byPath: make(map[string]*module, len(mods))}
	for _, m := range mods {
		t.put(m)
	}
	return t
}

func (t *moduleTable) get(path source.ModulePath) *module {
	if t == nil {
		return nil
	}
	return t.byPath[path.String()]
}

func (t *moduleTable) put(m *module) {
	key := m.path.String()
	if _, ok := t.byPath[key]; !ok {
		idx, _ := slices.BinarySearch(t.order, key)
		t.order = slices.Insert(t.order, idx, key)
	}
	t.byPath[key] = m
}

func (t *moduleTable) remove(path source.ModulePath) {
	key := path.String()
	if _, ok := t.byPath[key]; !ok {
		return
	}
	delete(t.byPath, key)
	if idx, found := slices.BinarySearch(t.order, key); found {
		t.order = slices.Delete(t.order, idx, idx+1)
	}
}

// modules returns the modules in path order.
func (t *moduleTable) modules() []*module {
	if t == nil {
		return nil
	}
	out := make([]*module, 0, len(t.order))
	for _, key := range t.order {
		out = append(out, t.byPath[key])
	}
	return out
}

// Library is a registered library. It implements engine.Library.
type Library struct {
	mu      sync.RWMutex
	desc    *project.Library
	sources *moduleTable
	tests   *moduleTable
	loaded  bool
}

func (l *Library) Name() string      { return l.desc.Name }
func (l *Library) Root() string      { return l.desc.Root }
func (l *Library) SourceDir() string { return l.desc.SourceDir }
func (l *Library) TestDir() string   { return l.desc.TestDir }

// Dependencies returns the names of the libraries this one depends on.
func (l *Library) Dependencies() []string { return l.desc.Dependencies }

// ModuleGroup returns the parsed top group of a module, or nil.
func (l *Library) ModuleGroup(path source.ModulePath, inTests bool) *ast.Group {
	m := l.module(path, inTests)
	if m == nil {
		return nil
	}
	return m.group
}

// Modules lists the loaded module paths of one tree, sorted.
func (l *Library) Modules(inTests bool) []source.ModulePath {
	l.mu.RLock()
	defer l.mu.RUnlock()
	table := l.sources
	if inTests {
		table = l.tests
	}
	var out []source.ModulePath
	for _, m := range table.modules() {
		out = append(out, m.path)
	}
	return out
}

func (l *Library) module(path source.ModulePath, inTests bool) *module {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if inTests {
		return l.tests.get(path)
	}
	return l.sources.get(path)
}

func (l *Library) table(inTests bool) *moduleTable {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if inTests {
		return l.tests
	}
	return l.sources
}

func (l *Library) setTable(inTests bool, t *moduleTable) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if inTests {
		l.tests = t
		return
	}
	l.sources = t
	l.loaded = true
}

func (l *Library) putModule(m *module) {
	l.mu.Lock()
	defer l.mu.Unlock()
	table := &l.sources
	if m.inTests {
		table = &l.tests
	}
	if *table == nil {
		*table = newModuleTable(nil)
	}
	(*table).put(m)
}

func (l *Library) removeModule(path source.ModulePath, inTests bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if inTests {
		if l.tests != nil {
			l.tests.remove(path)
		}
		return
	}
	if l.sources != nil {
		l.sources.remove(path)
	}
}

func (l *Library) isLoaded() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.loaded
}
