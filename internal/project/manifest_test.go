package project_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arendls/internal/project"
	"arendls/internal/source"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadLibraryResolvesDirectories(t *testing.T) {
	root := filepath.Join(t.TempDir(), "algebra")
	writeFile(t, filepath.Join(root, project.ManifestName), strings.Join([]string{
		"sourcesDir: src",
		"testsDir: test",
		"modules: [Group, Ring.Ideal]",
		"dependencies: [base]",
		"langVersion: \"1.10\"",
		"version: 0.1.0",
	}, "\n"))

	lib, err := project.LoadLibrary(root)
	require.NoError(t, err)
	assert.Equal(t, "algebra", lib.Name)
	assert.Equal(t, root, lib.Root)
	assert.Equal(t, filepath.Join(root, "src"), lib.SourceDir)
	assert.Equal(t, filepath.Join(root, "test"), lib.TestDir)
	assert.Equal(t, []source.ModulePath{{"Group"}, {"Ring", "Ideal"}}, lib.Modules)
	assert.Equal(t, []string{"base"}, lib.Dependencies)
	assert.Equal(t, "0.1.0", lib.Version)

	viaManifest, err := project.LoadLibrary(filepath.Join(root, project.ManifestName))
	require.NoError(t, err)
	assert.Equal(t, lib, viaManifest)
}

func TestLoadLibraryDefaults(t *testing.T) {
	root := filepath.Join(t.TempDir(), "plain")
	writeFile(t, filepath.Join(root, project.ManifestName), "")

	lib, err := project.LoadLibrary(root)
	require.NoError(t, err)
	assert.Equal(t, root, lib.SourceDir)
	assert.Empty(t, lib.TestDir)
	assert.Nil(t, lib.Modules)
}

func TestLoadLibraryErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := project.LoadLibrary(dir)
	assert.True(t, errors.Is(err, project.ErrNoManifest), "got %v", err)

	writeFile(t, filepath.Join(dir, project.ManifestName), "sourcesDir: [oops")
	_, err = project.LoadLibrary(dir)
	assert.ErrorIs(t, err, project.ErrInvalidManifest)

	writeFile(t, filepath.Join(dir, project.ManifestName), "unknownKey: 1")
	_, err = project.LoadLibrary(dir)
	assert.ErrorIs(t, err, project.ErrInvalidManifest)
}

func TestFindLibraryRoot(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, project.ManifestName), "")
	deep := filepath.Join(root, "src", "Data", "List")
	require.NoError(t, os.MkdirAll(deep, 0o755))

	got, ok, err := project.FindLibraryRoot(deep)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, root, got)
}

func TestListModules(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Main.ard"), "")
	writeFile(t, filepath.Join(dir, "Data", "List.ard"), "")
	writeFile(t, filepath.Join(dir, "Data", "notes.txt"), "")
	writeFile(t, filepath.Join(dir, ".bin", "Cached.ard"), "")

	mods, err := project.ListModules(dir)
	require.NoError(t, err)
	assert.Equal(t, []source.ModulePath{{"Data", "List"}, {"Main"}}, mods)
}

func TestSumSeparatesParts(t *testing.T) {
	a := project.Sum([]byte("ab"), []byte("c"))
	b := project.Sum([]byte("a"), []byte("bc"))
	assert.NotEqual(t, a, b)
	assert.Len(t, a.String(), 64)
}
