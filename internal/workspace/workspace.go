// Package workspace maps editor URIs to files on disk and files to the
// libraries and modules that own them.
package workspace

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go.lsp.dev/uri"

	"arendls/internal/engine"
	"arendls/internal/source"
)

// ParseURI percent-decodes raw. Some clients encode reserved characters such
// as ':' in file URIs; decoding and re-escaping spaces gives a canonical form.
// Input that does not decode is returned unchanged.
func ParseURI(raw string) string {
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return strings.ReplaceAll(decoded, " ", "%20")
}

// ToPath returns the file system path named by a file URI. Anything that is
// not a file URI is treated as a path already.
//
// Escapes are decoded twice, once by ParseURI and once by url.Parse, so a
// file literally named a%41.ard (sent as a%2541.ard) resolves to aA.ard.
func ToPath(raw string) string {
	if raw == "" {
		return ""
	}
	s := ParseURI(raw)
	u, err := url.Parse(s)
	if err != nil || u.Scheme != "file" {
		return filepath.Clean(fallbackPath(s))
	}
	p := u.Path
	if u.RawQuery != "" {
		p += "?" + u.RawQuery
	}
	if u.Fragment != "" {
		p += "#" + u.Fragment
	}
	// file:///C:/x parses to /C:/x
	if len(p) >= 3 && p[0] == '/' && p[2] == ':' {
		p = p[1:]
	}
	return filepath.Clean(filepath.FromSlash(p))
}

func fallbackPath(s string) string {
	s = strings.TrimPrefix(s, "file://")
	return strings.ReplaceAll(s, "%20", " ")
}

// FromPath returns the file URI of path, made absolute first.
func FromPath(path string) string {
	if path == "" {
		return ""
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return string(uri.File(path))
}

// within reports whether path equals base or lies below it, comparing whole
// path components so /lib/src2 is not inside /lib/src.
func within(base, path string) bool {
	if base == "" || path == "" {
		return false
	}
	rel, err := filepath.Rel(base, path)
	if err != nil || filepath.IsAbs(rel) {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Owner finds the library whose source or test tree contains path. Libraries
// are tried in the given order and the first match wins. Inside one library
// the deeper base wins, so a test tree nested in the source tree is still a
// test tree. When no base matches and exactly one library is given, that
// library is assumed to own path as a source module.
func Owner(libs []engine.Library, path string) (lib engine.Library, inTests bool, ok bool) {
	for _, l := range libs {
		src, test := l.SourceDir(), l.TestDir()
		inSrc, inTest := within(src, path), within(test, path)
		switch {
		case inSrc && inTest:
			return l, len(test) >= len(src), true
		case inSrc:
			return l, false, true
		case inTest:
			return l, true, true
		}
	}
	if len(libs) == 1 {
		return libs[0], false, true
	}
	return nil, false, false
}

// ModulePathOf converts a module file under base to its module path.
func ModulePathOf(base, path string) (source.ModulePath, bool) {
	if !within(base, path) || !strings.HasSuffix(path, source.FileExt) {
		return nil, false
	}
	rel, err := filepath.Rel(base, strings.TrimSuffix(path, source.FileExt))
	if err != nil || rel == "." {
		return nil, false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	for _, p := range parts {
		if p == "" || p == "." {
			return nil, false
		}
	}
	return source.ModulePath(parts), true
}

// Description is what a document URI denotes.
type Description struct {
	Library engine.Library
	Module  source.ModulePath
	InTests bool
	File    string
}

// Describe resolves a document URI against the given libraries.
func Describe(libs []engine.Library, raw string) (Description, bool) {
	file := ToPath(raw)
	lib, inTests, ok := Owner(libs, file)
	if !ok {
		return Description{}, false
	}
	base := lib.SourceDir()
	if inTests {
		base = lib.TestDir()
	}
	mod, ok := ModulePathOf(base, file)
	if !ok {
		return Description{}, false
	}
	return Description{Library: lib, Module: mod, InTests: inTests, File: file}, true
}

// PathOf returns the file of module in lib, looking in the preferred tree
// first and then the other one. Only existing files are returned.
func PathOf(lib engine.Library, module source.ModulePath, inTests bool) (string, bool) {
	if lib == nil || len(module) == 0 {
		return "", false
	}
	bases := []string{lib.SourceDir(), lib.TestDir()}
	if inTests {
		bases[0], bases[1] = bases[1], bases[0]
	}
	for _, base := range bases {
		if base == "" {
			continue
		}
		file := filepath.Join(base, module.RelPath())
		if info, err := os.Stat(file); err == nil && !info.IsDir() {
			return file, true
		}
	}
	return "", false
}
