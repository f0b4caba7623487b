// Package driver is the reference engine behind the language server: it
// registers Arend libraries, parses their modules in parallel and resolves
// them against each other and the prelude.
package driver

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"slices"
	"sync"

	"go.uber.org/zap"

	"arendls/internal/ast"
	"arendls/internal/diag"
	"arendls/internal/engine"
	"arendls/internal/parser"
	"arendls/internal/project"
	"arendls/internal/sema"
	"arendls/internal/source"
)

// PreludeName names the built-in library and its only module.
const PreludeName = "Prelude"

//go:embed Prelude.ard
var preludeSource []byte

// ErrPreludeLoaded is returned by a second LoadPrelude call.
var ErrPreludeLoaded = errors.New("prelude is already loaded")

// Options configure an Engine.
type Options struct {
	Log *zap.Logger
	// Cache stores parsed modules across runs. May be nil.
	Cache *DiskCache
	// Jobs bounds parallel parsing. Zero means GOMAXPROCS.
	Jobs int
}

// Engine implements engine.Engine.
type Engine struct {
	log   *zap.Logger
	cache *DiskCache
	jobs  int

	mu      sync.RWMutex
	dirs    []string
	libs    map[string]*Library
	prelude *Library

	errors    *diag.List
	libErrors *diag.List
}

var _ engine.Engine = (*Engine)(nil)

// New creates an engine with no libraries.
func New(opts Options) *Engine {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	return &Engine{
		log:       log,
		cache:     opts.Cache,
		jobs:      jobs,
		libs:      make(map[string]*Library),
		errors:    diag.NewList(),
		libErrors: diag.NewList(),
	}
}

func (e *Engine) Errors() *diag.List        { return e.errors }
func (e *Engine) LibraryErrors() *diag.List { return e.libErrors }

// LoadPrelude parses and resolves the embedded prelude.
func (e *Engine) LoadPrelude(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.prelude != nil {
		return ErrPreludeLoaded
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	path := source.ModulePath{PreludeName}
	loc := source.ModuleLocation{Library: PreludeName, Path: path}
	errs := diag.NewList()
	group := parser.ParseModule(preludeSource, loc, errs)
	sema.Check(group, sema.Options{Reporter: errs})
	if errs.HasErrors() {
		return fmt.Errorf("prelude has errors: %v", errs.Items()[0])
	}
	lib := &Library{desc: &project.Library{Name: PreludeName}}
	lib.setTable(false, newModuleTable([]*module{{path: path, group: group}}))
	e.prelude = lib
	e.log.Debug("prelude loaded", zap.Int("declarations", len(group.Decls())))
	return nil
}

func (e *Engine) preludeGroup() *ast.Group {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.prelude == nil {
		return nil
	}
	return e.prelude.ModuleGroup(source.ModulePath{PreludeName}, false)
}

// AddLibraryDirectory makes the libraries directly under dir resolvable as
// dependencies.
func (e *Engine) AddLibraryDirectory(dir string) {
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !slices.Contains(e.dirs, dir) {
		e.dirs = append(e.dirs, dir)
	}
}

// RegisterLibrary reads the manifest at root. Registering a name twice
// replaces the descriptor but keeps loaded modules.
func (e *Engine) RegisterLibrary(ctx context.Context, root string) engine.Library {
	desc, err := project.LoadLibrary(root)
	if err != nil {
		code := diag.CodeLibraryManifest
		if errors.Is(err, project.ErrNoManifest) {
			code = diag.CodeLibraryNotFound
		}
		e.libErrors.Report(diag.Errorf(code, diag.LibraryIOCause{FileName: manifestFile(root)},
			"Cannot load library %q: %v", root, err))
		return nil
	}
	return e.register(desc)
}

func (e *Engine) register(desc *project.Library) *Library {
	e.mu.Lock()
	defer e.mu.Unlock()
	if lib, ok := e.libs[desc.Name]; ok {
		lib.mu.Lock()
		lib.desc = desc
		lib.mu.Unlock()
		return lib
	}
	lib := &Library{desc: desc}
	e.libs[desc.Name] = lib
	e.log.Debug("library registered", zap.String("library", desc.Name), zap.String("root", desc.Root))
	return lib
}

func manifestFile(root string) string {
	if filepath.Base(root) == project.ManifestName {
		return root
	}
	return filepath.Join(root, project.ManifestName)
}

// FindLibrary returns a registered library, the prelude included.
func (e *Engine) FindLibrary(name string) engine.Library {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if name == PreludeName && e.prelude != nil {
		return e.prelude
	}
	if lib, ok := e.libs[name]; ok {
		return lib
	}
	return nil
}

func (e *Engine) lookup(name string) *Library {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.libs[name]
}

// discover finds a library by name in the library directories and registers it.
func (e *Engine) discover(name string) *Library {
	if lib := e.lookup(name); lib != nil {
		return lib
	}
	e.mu.RLock()
	dirs := slices.Clone(e.dirs)
	e.mu.RUnlock()
	for _, dir := range dirs {
		desc, err := project.LoadLibrary(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		return e.register(desc)
	}
	return nil
}

func asLibrary(lib engine.Library) (*Library, bool) {
	l, ok := lib.(*Library)
	return l, ok && l != nil
}
