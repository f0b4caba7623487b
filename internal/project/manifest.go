// Package project reads Arend library manifests (arend.yaml) and locates
// library roots on disk.
package project

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"arendls/internal/source"
)

// ManifestName is the file that marks a library root.
const ManifestName = "arend.yaml"

var (
	// ErrNoManifest indicates that a directory has no arend.yaml.
	ErrNoManifest = errors.New("library manifest not found")
	// ErrInvalidManifest indicates that arend.yaml could not be decoded.
	ErrInvalidManifest = errors.New("invalid library manifest")
)

// Manifest mirrors the keys of arend.yaml.
type Manifest struct {
	SourcesDir   string   `yaml:"sourcesDir"`
	TestsDir     string   `yaml:"testsDir"`
	BinariesDir  string   `yaml:"binariesDir"`
	Modules      []string `yaml:"modules"`
	Dependencies []string `yaml:"dependencies"`
	LangVersion  string   `yaml:"langVersion"`
	Version      string   `yaml:"version"`
}

// Library is a manifest resolved against its root directory. All directories
// are absolute. TestDir is empty when the library declares no tests.
type Library struct {
	Name         string
	Root         string
	SourceDir    string
	TestDir      string
	BinariesDir  string
	Modules      []source.ModulePath
	Dependencies []string
	LangVersion  string
	Version      string
}

// ManifestPath returns the manifest file of the library.
func (l *Library) ManifestPath() string {
	return filepath.Join(l.Root, ManifestName)
}

// DecodeManifest parses arend.yaml content. Unknown keys are rejected.
func DecodeManifest(r io.Reader) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		// An empty manifest is valid and means "all defaults".
		if errors.Is(err, io.EOF) {
			return &m, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}
	return &m, nil
}

// LoadLibrary reads the manifest of the library rooted at path. path may name
// the library directory or its arend.yaml.
func LoadLibrary(path string) (*Library, error) {
	root, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve library path: %w", err)
	}
	if filepath.Base(root) == ManifestName {
		root = filepath.Dir(root)
	}
	manifestPath := filepath.Join(root, ManifestName)
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", root, ErrNoManifest)
		}
		return nil, fmt.Errorf("failed to read %q: %w", manifestPath, err)
	}
	m, err := DecodeManifest(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", manifestPath, err)
	}
	return m.Resolve(root)
}

// Resolve turns a manifest into a Library rooted at root.
func (m *Manifest) Resolve(root string) (*Library, error) {
	lib := &Library{
		Name:         filepath.Base(root),
		Root:         root,
		SourceDir:    resolveDir(root, m.SourcesDir),
		Dependencies: m.Dependencies,
		LangVersion:  m.LangVersion,
		Version:      m.Version,
	}
	if m.TestsDir != "" {
		lib.TestDir = resolveDir(root, m.TestsDir)
	}
	if m.BinariesDir != "" {
		lib.BinariesDir = resolveDir(root, m.BinariesDir)
	}
	for _, name := range m.Modules {
		path := source.ParseModulePath(name)
		if len(path) == 0 {
			return nil, fmt.Errorf("%w: empty module name in %q", ErrInvalidManifest, filepath.Join(root, ManifestName))
		}
		lib.Modules = append(lib.Modules, path)
	}
	return lib, nil
}

func resolveDir(root, dir string) string {
	if dir == "" {
		return root
	}
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir)
	}
	return filepath.Join(root, filepath.FromSlash(dir))
}

// FindManifest walks up from startDir to locate arend.yaml.
func FindManifest(startDir string) (path string, ok bool, err error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, ManifestName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// FindLibraryRoot returns the directory containing arend.yaml, if any.
func FindLibraryRoot(startDir string) (root string, ok bool, err error) {
	manifestPath, ok, err := FindManifest(startDir)
	if err != nil || !ok {
		return "", ok, err
	}
	return filepath.Dir(manifestPath), true, nil
}

// ListModules returns every module file under dir, sorted by path.
func ListModules(dir string) ([]source.ModulePath, error) {
	var out []source.ModulePath
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && len(d.Name()) > 0 && d.Name()[0] == '.' {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != source.FileExt {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = rel[:len(rel)-len(source.FileExt)]
		out = append(out, source.ModulePath(strings.Split(filepath.ToSlash(rel), "/")))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list modules in %q: %w", dir, err)
	}
	return out, nil
}
