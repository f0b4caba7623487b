package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arendls/internal/ast"
	"arendls/internal/engine"
	"arendls/internal/source"
)

type fakeLib struct {
	name, src, test string
}

func (l fakeLib) Name() string      { return l.name }
func (l fakeLib) Root() string      { return filepath.Dir(l.src) }
func (l fakeLib) SourceDir() string { return l.src }
func (l fakeLib) TestDir() string   { return l.test }
func (l fakeLib) ModuleGroup(source.ModulePath, bool) *ast.Group {
	return nil
}

func TestParseURI(t *testing.T) {
	cases := []struct{ in, want string }{
		{"file:///home/u/lib/src/A.ard", "file:///home/u/lib/src/A.ard"},
		{"file:///c%3A/lib/A.ard", "file:///c:/lib/A.ard"},
		{"file:///home/my%20lib/A.ard", "file:///home/my%20lib/A.ard"},
		{"file:///bad%zzescape", "file:///bad%zzescape"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ParseURI(tc.in), tc.in)
	}
}

func TestToPath(t *testing.T) {
	assert.Equal(t, filepath.FromSlash("/home/u/lib/src/A.ard"), ToPath("file:///home/u/lib/src/A.ard"))
	assert.Equal(t, filepath.FromSlash("/home/my lib/A.ard"), ToPath("file:///home/my%20lib/A.ard"))
	assert.Equal(t, filepath.FromSlash("/tmp/x.ard"), ToPath("/tmp/x.ard"))
	assert.Equal(t, "", ToPath(""))
	assert.Equal(t, filepath.FromSlash("/tmp/aA.ard"), ToPath("file:///tmp/a%2541.ard"), "escapes are decoded twice")

	dir := t.TempDir()
	file := filepath.Join(dir, "Data", "List.ard")
	assert.Equal(t, file, ToPath(FromPath(file)))
}

func TestOwnerFirstMatchWins(t *testing.T) {
	a := fakeLib{name: "a", src: "/ws/a/src", test: "/ws/a/test"}
	b := fakeLib{name: "b", src: "/ws/b/src"}
	shadow := fakeLib{name: "shadow", src: "/ws/a/src"}
	libs := []engine.Library{a, b, shadow}

	lib, inTests, ok := Owner(libs, "/ws/a/src/Main.ard")
	require.True(t, ok)
	assert.Equal(t, "a", lib.Name())
	assert.False(t, inTests)

	lib, inTests, ok = Owner(libs, "/ws/a/test/MainTest.ard")
	require.True(t, ok)
	assert.Equal(t, "a", lib.Name())
	assert.True(t, inTests)

	lib, _, ok = Owner(libs, "/ws/b/src/Deep/B.ard")
	require.True(t, ok)
	assert.Equal(t, "b", lib.Name())

	_, _, ok = Owner(libs, "/ws/a/src2/X.ard")
	assert.False(t, ok, "prefix match must respect path components")

	_, _, ok = Owner(libs, "/elsewhere/X.ard")
	assert.False(t, ok)
}

func TestOwnerNestedTestTree(t *testing.T) {
	lib := fakeLib{name: "lib", src: "/ws/lib", test: "/ws/lib/test"}
	_, inTests, ok := Owner([]engine.Library{lib, fakeLib{name: "other", src: "/x"}}, "/ws/lib/test/T.ard")
	require.True(t, ok)
	assert.True(t, inTests)
}

func TestOwnerSingleLibraryLeniency(t *testing.T) {
	only := fakeLib{name: "only", src: "/ws/only/src"}
	lib, inTests, ok := Owner([]engine.Library{only}, "/somewhere/else.ard")
	require.True(t, ok)
	assert.Equal(t, "only", lib.Name())
	assert.False(t, inTests)

	_, _, ok = Owner(nil, "/somewhere/else.ard")
	assert.False(t, ok)
}

func TestModulePathOf(t *testing.T) {
	base := filepath.FromSlash("/ws/lib/src")
	mod, ok := ModulePathOf(base, filepath.Join(base, "Data", "List.ard"))
	require.True(t, ok)
	assert.Equal(t, source.ModulePath{"Data", "List"}, mod)

	_, ok = ModulePathOf(base, filepath.Join(base, "Data", "List.txt"))
	assert.False(t, ok)
	_, ok = ModulePathOf(base, filepath.FromSlash("/ws/lib/other/A.ard"))
	assert.False(t, ok)
	_, ok = ModulePathOf("", filepath.Join(base, "A.ard"))
	assert.False(t, ok)
}

func TestDescribeAndPathOf(t *testing.T) {
	root := t.TempDir()
	src, test := filepath.Join(root, "src"), filepath.Join(root, "test")
	lib := fakeLib{name: "lib", src: src, test: test}
	mainFile := filepath.Join(src, "Data", "Main.ard")
	testFile := filepath.Join(test, "MainTest.ard")
	for _, f := range []string{mainFile, testFile} {
		require.NoError(t, os.MkdirAll(filepath.Dir(f), 0o755))
		require.NoError(t, os.WriteFile(f, nil, 0o644))
	}
	libs := []engine.Library{lib, fakeLib{name: "other", src: filepath.Join(root, "x")}}

	d, ok := Describe(libs, FromPath(mainFile))
	require.True(t, ok)
	assert.Equal(t, "lib", d.Library.Name())
	assert.Equal(t, source.ModulePath{"Data", "Main"}, d.Module)
	assert.False(t, d.InTests)
	assert.Equal(t, mainFile, d.File)

	d, ok = Describe(libs, FromPath(testFile))
	require.True(t, ok)
	assert.True(t, d.InTests)
	assert.Equal(t, source.ModulePath{"MainTest"}, d.Module)

	_, ok = Describe(libs, FromPath(filepath.Join(root, "elsewhere", "A.ard")))
	assert.False(t, ok)

	file, ok := PathOf(lib, source.ModulePath{"Data", "Main"}, true)
	require.True(t, ok, "falls back to the source tree")
	assert.Equal(t, mainFile, file)

	file, ok = PathOf(lib, source.ModulePath{"MainTest"}, false)
	require.True(t, ok, "falls back to the test tree")
	assert.Equal(t, testFile, file)

	_, ok = PathOf(lib, source.ModulePath{"Missing"}, false)
	assert.False(t, ok)

	_, ok = PathOf(fakeLib{name: "Prelude"}, source.ModulePath{"Prelude"}, false)
	assert.False(t, ok, "a library without directories has no files")
}
