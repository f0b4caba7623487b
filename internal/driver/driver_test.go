package driver

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arendls/internal/ast"
	"arendls/internal/diag"
	"arendls/internal/engine"
	"arendls/internal/source"
)

func writeFile(t *testing.T, path string, lines ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644))
}

// newLibrary creates <dir>/<name>/arend.yaml with src and test trees.
func newLibrary(t *testing.T, dir, name string, manifest ...string) string {
	t.Helper()
	root := filepath.Join(dir, name)
	if len(manifest) == 0 {
		manifest = []string{"sourcesDir: src", "testsDir: test"}
	}
	writeFile(t, filepath.Join(root, "arend.yaml"), manifest...)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	return root
}

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e := New(Options{Jobs: 2})
	require.NoError(t, e.LoadPrelude(context.Background()))
	return e
}

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) ModuleStatus(lib string, path source.ModulePath, st engine.ModuleStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, lib+":"+path.String()+":"+st.String())
}

func codesOf(l *diag.List) []diag.Code {
	var out []diag.Code
	for _, e := range l.Items() {
		out = append(out, e.Code)
	}
	return out
}

func TestLoadAndTypecheckLibrary(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	root := newLibrary(t, dir, "base")
	writeFile(t, filepath.Join(root, "src", "Data", "List.ard"), `\func length (n : Nat) => n`)
	writeFile(t, filepath.Join(root, "src", "Main.ard"),
		`\import Data.List`,
		`\func f => length zero`,
		`\func g => missing`,
	)
	writeFile(t, filepath.Join(root, "test", "MainTest.ard"), `\import Main`, `\func t => f`)

	e := newEngine(t)
	e.AddLibraryDirectory(dir)
	lib := e.RegisterLibrary(ctx, root)
	require.NotNil(t, lib)
	assert.Equal(t, "base", lib.Name())
	assert.Equal(t, filepath.Join(root, "src"), lib.SourceDir())

	rec := &recorder{}
	require.True(t, e.LoadLibrary(ctx, lib, rec))
	require.True(t, e.LoadTests(ctx, lib))
	assert.Contains(t, rec.events, "base:Main:done")
	assert.Contains(t, rec.events, "base:Data.List:queued")

	e.TypecheckLibrary(ctx, lib)
	e.TypecheckTests(ctx, lib, nil)
	assert.Equal(t, []diag.Code{diag.CodeNotInScope}, codesOf(e.Errors()))
	assert.Zero(t, e.LibraryErrors().Len())

	main := lib.ModuleGroup(source.ModulePath{"Main"}, false)
	require.NotNil(t, main)
	ref := main.Subgroups[0].Decl.Body.Args[0].Referent.(ast.DeclRef)
	assert.Equal(t, "length", ref.Decl.Name)
	assert.Equal(t, "Data.List", ref.Decl.Pos.Module.Path.String())

	test := lib.ModuleGroup(source.ModulePath{"MainTest"}, true)
	require.NotNil(t, test)
	assert.True(t, test.Location.InTests)
	assert.Same(t, e.FindLibrary("base"), lib)
	assert.NotNil(t, e.FindLibrary(PreludeName))
}

func TestParseErrorsSurviveReload(t *testing.T) {
	ctx := context.Background()
	root := newLibrary(t, t.TempDir(), "lib")
	writeFile(t, filepath.Join(root, "src", "A.ard"), `\func f => (`)

	e := newEngine(t)
	lib := e.RegisterLibrary(ctx, root)
	require.True(t, e.LoadLibrary(ctx, lib, nil))
	for range 2 {
		e.TypecheckLibrary(ctx, lib)
		assert.Equal(t, []diag.Code{diag.CodeParse}, codesOf(e.Errors()))
		e.Errors().Clear()
	}
}

func TestReparseModule(t *testing.T) {
	ctx := context.Background()
	root := newLibrary(t, t.TempDir(), "lib")
	file := filepath.Join(root, "src", "A.ard")
	writeFile(t, file, `\func f => 1`)

	e := newEngine(t)
	lib := e.RegisterLibrary(ctx, root)
	require.True(t, e.LoadLibrary(ctx, lib, nil))

	writeFile(t, file, `\func f => )`)
	require.True(t, e.ReparseModule(ctx, lib, source.ModulePath{"A"}, false))
	e.TypecheckLibrary(ctx, lib)
	items := e.Errors().Items()
	require.Len(t, items, 1)
	assert.Equal(t, diag.LevelError, items[0].Level)
	pos := items[0].Cause.(diag.ParserCause).Pos
	assert.Equal(t, 1, pos.Line)
	assert.Equal(t, 12, pos.Column)

	require.NoError(t, os.Remove(file))
	require.True(t, e.ReparseModule(ctx, lib, source.ModulePath{"A"}, false))
	assert.Nil(t, lib.ModuleGroup(source.ModulePath{"A"}, false))

	writeFile(t, filepath.Join(root, "src", "B.ard"), `\func b => 0`)
	require.True(t, e.ReparseModule(ctx, lib, source.ModulePath{"B"}, false))
	assert.Equal(t, []source.ModulePath{{"B"}}, lib.(*Library).Modules(false))
}

func TestDependenciesLoadFirst(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	core := newLibrary(t, dir, "core")
	writeFile(t, filepath.Join(core, "src", "Core.ard"), `\func unit => 0`)
	app := newLibrary(t, dir, "app", "sourcesDir: src", "dependencies: [core]")
	writeFile(t, filepath.Join(app, "src", "App.ard"), `\import Core`, `\func main => unit`)

	e := newEngine(t)
	e.AddLibraryDirectory(dir)
	lib := e.RegisterLibrary(ctx, app)
	rec := &recorder{}
	require.True(t, e.LoadLibrary(ctx, lib, rec))

	var done []string
	for _, ev := range rec.events {
		if strings.HasSuffix(ev, ":done") {
			done = append(done, ev)
		}
	}
	assert.Equal(t, []string{"core:Core:done", "app:App:done"}, done)

	e.TypecheckLibrary(ctx, lib)
	assert.Zero(t, e.Errors().Len(), "%v", e.Errors().Items())
	require.NotNil(t, e.FindLibrary("core"))
}

func TestLibraryErrors(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	e := newEngine(t)
	assert.Nil(t, e.RegisterLibrary(ctx, filepath.Join(dir, "nowhere")))

	missingDep := newLibrary(t, dir, "needy", "dependencies: [ghost]")
	lib := e.RegisterLibrary(ctx, missingDep)
	require.NotNil(t, lib)
	assert.False(t, e.LoadLibrary(ctx, lib, nil))

	a := newLibrary(t, dir, "a", "dependencies: [b]")
	newLibrary(t, dir, "b", "dependencies: [a]")
	e.AddLibraryDirectory(dir)
	assert.False(t, e.LoadLibrary(ctx, e.RegisterLibrary(ctx, a), nil))

	noSrc := filepath.Join(dir, "nosrc")
	writeFile(t, filepath.Join(noSrc, "arend.yaml"), "sourcesDir: missing")
	assert.False(t, e.LoadLibrary(ctx, e.RegisterLibrary(ctx, noSrc), nil))

	got := codesOf(e.LibraryErrors())
	want := []diag.Code{diag.CodeLibraryNotFound, diag.CodeLibraryNotFound, diag.CodeCyclicDependency, diag.CodeLibraryIO}
	assert.Equal(t, want, got)
	for _, item := range e.LibraryErrors().Items() {
		_, ok := item.Cause.(diag.LibraryIOCause)
		assert.True(t, ok, "%T", item.Cause)
	}
}

func TestLoadPreludeOnce(t *testing.T) {
	e := newEngine(t)
	assert.ErrorIs(t, e.LoadPrelude(context.Background()), ErrPreludeLoaded)
	prelude := e.FindLibrary(PreludeName)
	g := prelude.ModuleGroup(source.ModulePath{PreludeName}, false)
	require.NotNil(t, g)
	var names []string
	for _, d := range g.Decls() {
		names = append(names, d.Name)
	}
	sort.Strings(names)
	assert.Contains(t, names, "Nat")
	assert.Contains(t, names, "suc")
	assert.Contains(t, names, "id")
}

func TestDiskCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	cache, err := OpenDiskCacheAt(t.TempDir())
	require.NoError(t, err)
	root := newLibrary(t, t.TempDir(), "lib")
	writeFile(t, filepath.Join(root, "src", "A.ard"), `\func plus (x y : Nat) => x`)

	for range 2 {
		e := New(Options{Cache: cache})
		require.NoError(t, e.LoadPrelude(ctx))
		lib := e.RegisterLibrary(ctx, root)
		require.True(t, e.LoadLibrary(ctx, lib, nil))
		e.TypecheckLibrary(ctx, lib)
		assert.Zero(t, e.Errors().Len())

		g := lib.ModuleGroup(source.ModulePath{"A"}, false)
		params := g.Subgroups[0].Decl.Params
		require.Len(t, params, 2)
		assert.Same(t, params[0].Type, params[1].Type)
		assert.IsType(t, ast.LocalRef{}, g.Subgroups[0].Decl.Body.Referent)
	}

	entries, err := os.ReadDir(filepath.Join(cache.Dir(), "mods"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	require.NoError(t, cache.DropAll())
	_, hit, err := cache.Get(cacheKey(source.ModuleLocation{Library: "lib", Path: source.ModulePath{"A"}}, []byte(`\func plus (x y : Nat) => x`)))
	require.NoError(t, err)
	assert.False(t, hit)
}
