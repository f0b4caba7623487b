package definition

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"arendls/internal/ast"
	"arendls/internal/driver"
	"arendls/internal/engine"
	"arendls/internal/parser"
	"arendls/internal/source"
	"arendls/internal/workspace"
)

type index struct {
	eng  *driver.Engine
	libs []engine.Library
}

func (ix index) Describe(uri string) (workspace.Description, bool) {
	return workspace.Describe(ix.libs, uri)
}

func (ix index) FindLibrary(name string) engine.Library { return ix.eng.FindLibrary(name) }

func (ix index) PathOf(lib engine.Library, mod source.ModulePath, inTests bool) (string, bool) {
	return workspace.PathOf(lib, mod, inTests)
}

func (ix index) Libraries() []engine.Library { return ix.libs }

// load writes files (relative to <root>/src) into a fresh library and returns
// a checked index over it.
func load(t *testing.T, files map[string][]string) (index, string) {
	t.Helper()
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "lib")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "arend.yaml"), []byte("sourcesDir: src"), 0o644))
	for name, lines := range files {
		p := filepath.Join(root, "src", filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(strings.Join(lines, "\n")), 0o644))
	}
	eng := driver.New(driver.Options{})
	require.NoError(t, eng.LoadPrelude(ctx))
	lib := eng.RegisterLibrary(ctx, root)
	require.NotNil(t, lib)
	require.True(t, eng.LoadLibrary(ctx, lib, nil))
	eng.TypecheckLibrary(ctx, lib)
	return index{eng: eng, libs: []engine.Library{lib}}, filepath.Join(root, "src")
}

func at(line, char uint32) protocol.Position {
	return protocol.Position{Line: line, Character: char}
}

func rng(l1, c1, l2, c2 uint32) protocol.Range {
	return protocol.Range{Start: at(l1, c1), End: at(l2, c2)}
}

func TestReferenceToDeclaration(t *testing.T) {
	ix, src := load(t, map[string][]string{
		"A.ard": {`\func f => 1`, `\func g => f`},
	})
	uri := workspace.FromPath(filepath.Join(src, "A.ard"))

	core, logs := observer.New(zapcore.InfoLevel)
	links := Resolve(ix, uri, at(1, 11), zap.New(core))
	require.Len(t, links, 1)
	l := links[0]
	assert.Equal(t, uri, string(l.TargetURI))
	assert.Equal(t, rng(0, 6, 0, 7), l.TargetRange)
	assert.Equal(t, rng(0, 6, 1, 0), l.TargetSelectionRange)
	require.NotNil(t, l.OriginSelectionRange)
	assert.Equal(t, rng(1, 11, 1, 12), *l.OriginSelectionRange)
	assert.Equal(t, 1, logs.FilterMessage("Jumping to (0, 6) in "+uri).Len())

	assert.Len(t, Resolve(ix, uri, at(1, 12), nil), 1, "the end of the name still hits")
	assert.Empty(t, Resolve(ix, uri, at(1, 10), nil))
	assert.Empty(t, Resolve(ix, uri, at(0, 11), nil), "a literal is not a reference")
}

func TestReferenceToLocalBinding(t *testing.T) {
	ix, src := load(t, map[string][]string{
		"A.ard": {`\func h (n : Nat) => n`},
	})
	uri := workspace.FromPath(filepath.Join(src, "A.ard"))

	links := Resolve(ix, uri, at(0, 21), nil)
	require.Len(t, links, 1)
	assert.Equal(t, rng(0, 9, 0, 10), links[0].TargetRange)
	assert.Equal(t, rng(0, 21, 0, 22), *links[0].OriginSelectionRange)

	assert.Empty(t, Resolve(ix, uri, at(0, 14), nil), "prelude declarations have no file")
}

func TestSelfReference(t *testing.T) {
	ix, src := load(t, map[string][]string{
		"A.ard": {`\func loop (n : Nat) : Nat => loop n`},
	})
	uri := workspace.FromPath(filepath.Join(src, "A.ard"))

	links := Resolve(ix, uri, at(0, 30), nil)
	require.Len(t, links, 1)
	assert.Equal(t, uri, string(links[0].TargetURI))
	assert.Equal(t, rng(0, 6, 0, 10), links[0].TargetRange)
}

func TestNamespaceCommandLinksToModule(t *testing.T) {
	ix, src := load(t, map[string][]string{
		"Data/List.ard": {`\func length (n : Nat) => n`},
		"Main.ard":      {`\import Data.List`, `\func m => length zero`},
	})
	mainURI := workspace.FromPath(filepath.Join(src, "Main.ard"))
	listURI := workspace.FromPath(filepath.Join(src, "Data", "List.ard"))

	links := Resolve(ix, mainURI, at(0, 0), nil)
	require.Len(t, links, 1)
	assert.Equal(t, listURI, string(links[0].TargetURI))
	assert.Equal(t, protocol.Range{}, links[0].TargetRange)
	assert.Equal(t, protocol.Range{}, links[0].TargetSelectionRange)
	assert.Equal(t, rng(0, 8, 0, 17), *links[0].OriginSelectionRange)

	links = Resolve(ix, mainURI, at(1, 13), nil)
	require.Len(t, links, 1)
	assert.Equal(t, listURI, string(links[0].TargetURI))
	assert.Equal(t, rng(0, 6, 0, 12), links[0].TargetRange)

	locs := Locations(links)
	require.Len(t, locs, 1)
	assert.Equal(t, links[0].TargetURI, locs[0].URI)
	assert.Equal(t, links[0].TargetRange, locs[0].Range)
}

func TestUnresolvedReferenceIsSkipped(t *testing.T) {
	ix, src := load(t, map[string][]string{
		"A.ard": {`\func a => ghost`},
	})
	uri := workspace.FromPath(filepath.Join(src, "A.ard"))

	core, logs := observer.New(zapcore.WarnLevel)
	assert.Empty(t, Resolve(ix, uri, at(0, 12), zap.New(core)))
	assert.Equal(t, 1, logs.FilterMessage("Unsupported reference: ghost").Len())
}

func TestUnknownDocument(t *testing.T) {
	ix, _ := load(t, map[string][]string{"A.ard": {`\func a => 0`}})
	links := Resolve(ix, "file:///nowhere/B.ard", at(0, 0), nil)
	assert.NotNil(t, links)
	assert.Empty(t, links)
}

func TestSearchScope(t *testing.T) {
	src := strings.Join([]string{
		`\func h => k`,
		`  \where {`,
		`    \func k => 0`,
		`  }`,
		``,
		`\func tail => h`,
	}, "\n")
	top := parser.ParseModule([]byte(src), source.ModuleLocation{Library: "lib", Path: source.ModulePath{"M"}}, nil)
	require.Len(t, top.Subgroups, 2)

	for line := 1; line <= 4; line++ {
		scope := SearchScope(top, line)
		require.Len(t, scope, 1)
		assert.Equal(t, "h", scope[0].Name(), "line %d", line)
	}
	assert.Equal(t, []string{"M"}, names(SearchScope(top, 5)), "blank line searches the module")
	assert.Equal(t, []string{"tail"}, names(SearchScope(top, 6)))
	assert.Equal(t, []string{"M"}, names(SearchScope(top, 99)))
}

func names(gs []*ast.Group) []string {
	var out []string
	for _, g := range gs {
		out = append(out, g.Name())
	}
	return out
}

func TestReferenceInsideWhereBlock(t *testing.T) {
	ix, src := load(t, map[string][]string{
		"A.ard": {
			`\func h => k`,
			`  \where {`,
			`    \func k => h`,
			`  }`,
		},
	})
	uri := workspace.FromPath(filepath.Join(src, "A.ard"))

	links := Resolve(ix, uri, at(0, 11), nil)
	require.Len(t, links, 1)
	assert.Equal(t, rng(2, 10, 2, 11), links[0].TargetRange)

	links = Resolve(ix, uri, at(2, 15), nil)
	require.Len(t, links, 1)
	assert.Equal(t, rng(0, 6, 0, 7), links[0].TargetRange)
}
