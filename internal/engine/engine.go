// Package engine declares the boundary between the language server and the
// typechecking engine. The server only talks to these interfaces; the engine
// reports its findings through the two accumulators instead of return values.
package engine

import (
	"context"

	"arendls/internal/ast"
	"arendls/internal/diag"
	"arendls/internal/source"
)

// Library is a loaded library as seen by the server.
type Library interface {
	Name() string
	// Root is the library directory, the one holding its manifest.
	Root() string
	// SourceDir is the absolute source base directory.
	SourceDir() string
	// TestDir is the absolute test base directory, or "" when the library has none.
	TestDir() string
	// ModuleGroup returns the top group of a loaded module, or nil.
	ModuleGroup(path source.ModulePath, inTests bool) *ast.Group
}

// ModuleStatus is reported to a LoadListener while a library loads.
type ModuleStatus uint8

const (
	ModuleQueued ModuleStatus = iota + 1
	ModuleParsing
	ModuleParsed
	ModuleFailed
)

func (s ModuleStatus) String() string {
	switch s {
	case ModuleQueued:
		return "queued"
	case ModuleParsing:
		return "parsing"
	case ModuleParsed:
		return "done"
	case ModuleFailed:
		return "error"
	default:
		return ""
	}
}

// LoadListener observes module loading. Implementations must be safe for
// concurrent use; modules load in parallel.
type LoadListener interface {
	ModuleStatus(lib string, path source.ModulePath, status ModuleStatus)
}

// Engine is the external typechecker.
type Engine interface {
	// LoadPrelude loads the prelude library. Calling it twice is an error on
	// the caller's side; the session guarantees a single call.
	LoadPrelude(ctx context.Context) error
	// AddLibraryDirectory makes libraries under dir resolvable by name.
	AddLibraryDirectory(dir string)
	// RegisterLibrary resolves the library rooted at root (a directory or its
	// manifest). It returns nil when resolution failed; the failure is in
	// LibraryErrors.
	RegisterLibrary(ctx context.Context, root string) Library
	// LoadLibrary parses the library's source modules, loading dependencies first.
	LoadLibrary(ctx context.Context, lib Library, l LoadListener) bool
	// LoadTests parses the library's test modules.
	LoadTests(ctx context.Context, lib Library) bool
	// TypecheckLibrary resolves and checks every source module.
	TypecheckLibrary(ctx context.Context, lib Library)
	// TypecheckTests checks test modules accepted by filter (all when nil).
	TypecheckTests(ctx context.Context, lib Library, filter func(source.ModulePath) bool)
	// ReparseModule re-reads one module from disk into the library's module table.
	ReparseModule(ctx context.Context, lib Library, path source.ModulePath, inTests bool) bool
	// FindLibrary returns a loaded library by name, the prelude included.
	FindLibrary(name string) Library
	// Errors is the general error accumulator.
	Errors() *diag.List
	// LibraryErrors is the library loading error accumulator.
	LibraryErrors() *diag.List
}
