// Package session owns the language server's library state.
//
// A Manager runs one goroutine that owns the registered libraries, the
// prelude flag and the diagnostic aggregator. Every operation is a closure
// sent to that goroutine and awaited, so the engine only ever sees one caller
// at a time, whether the call comes from a notification, a request worker or
// the file watcher.
package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"arendls/internal/engine"
	"arendls/internal/metrics"
	"arendls/internal/project"
	"arendls/internal/report"
	"arendls/internal/source"
	"arendls/internal/trace"
	"arendls/internal/workspace"
)

// ErrClosed is returned by operations submitted after Run has returned.
var ErrClosed = errors.New("session is closed")

// Reload triggers, used as the metrics label.
const (
	TriggerStartup = "startup"
	TriggerFiles   = "files"
	TriggerFolders = "folders"
)

// Options configure a Manager.
type Options struct {
	Engine    engine.Engine
	Publisher report.Publisher
	Log       *zap.Logger
	Metrics   *metrics.Metrics
	// Listener observes module loading in addition to the metrics.
	Listener engine.LoadListener
}

// Manager serializes all access to the engine.
type Manager struct {
	eng      engine.Engine
	log      *zap.Logger
	metrics  *metrics.Metrics
	listener engine.LoadListener

	inbox chan *job
	done  chan struct{}

	// Owned by the Run goroutine.
	libs         []engine.Library
	preludeReady bool
	agg          *report.Aggregator
}

type job struct {
	ctx  context.Context
	fn   func(ctx context.Context)
	done chan struct{}
}

// New creates a manager. Nothing happens until Run is started.
func New(opts Options) *Manager {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	m := &Manager{
		eng:     opts.Engine,
		log:     log,
		metrics: opts.Metrics,
		inbox:   make(chan *job),
		done:    make(chan struct{}),
	}
	m.listener = loadListener{next: opts.Listener, metrics: opts.Metrics}
	m.agg = report.New(opts.Publisher, locator{m}, log.Named("report"), opts.Metrics)
	return m
}

// Run processes submitted operations until ctx is done. It must be called
// exactly once.
func (m *Manager) Run(ctx context.Context) error {
	defer close(m.done)
	for {
		select {
		case <-ctx.Done():
			return nil
		case j := <-m.inbox:
			m.run(j)
		}
	}
}

func (m *Manager) run(j *job) {
	defer close(j.done)
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("session operation panicked",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
		}
	}()
	// A dequeued operation always runs to completion: a half-checked library
	// would make the next report retract files that still have errors.
	j.fn(context.WithoutCancel(j.ctx))
}

// do runs fn on the session goroutine and waits for it. When ctx ends first
// the call returns early; fn still completes in the background.
func (m *Manager) do(ctx context.Context, fn func(ctx context.Context)) error {
	_, err := call(ctx, m, func(ctx context.Context) struct{} {
		fn(ctx)
		return struct{}{}
	})
	return err
}

// call runs fn on the session goroutine and returns its result. The result
// is handed over only once fn has finished, so an early return on ctx never
// shares it with the still running fn.
func call[T any](ctx context.Context, m *Manager, fn func(ctx context.Context) T) (T, error) {
	var (
		out  T
		zero T
	)
	j := &job{ctx: ctx, fn: func(ctx context.Context) { out = fn(ctx) }, done: make(chan struct{})}
	select {
	case m.inbox <- j:
	case <-m.done:
		return zero, ErrClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	select {
	case <-j.done:
		return out, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// RegisterLibrary registers and loads the library at root, a library
// directory or its manifest. The first registration also loads the prelude.
// A library that cannot be loaded ends up as a library error in the next
// report; the returned error only signals that the session is gone.
func (m *Manager) RegisterLibrary(ctx context.Context, root string) error {
	return m.do(ctx, func(ctx context.Context) {
		m.register(ctx, root)
	})
}

func (m *Manager) register(ctx context.Context, root string) {
	dir := root
	if filepath.Base(dir) == project.ManifestName {
		dir = filepath.Dir(dir)
	}
	ctx, span := trace.Start(ctx, trace.ScopeLibrary, "library:"+filepath.Base(dir))
	defer span.End("")
	start := time.Now()

	if !m.preludeReady {
		if err := m.eng.LoadPrelude(ctx); err != nil {
			m.log.Error("prelude failed to load; retrying with the next library", zap.Error(err))
		} else {
			m.preludeReady = true
		}
	}
	m.eng.AddLibraryDirectory(filepath.Dir(dir))

	lib := m.eng.RegisterLibrary(ctx, root)
	if lib == nil {
		m.log.Warn("Cannot register library", zap.String("root", root))
		m.metrics.LibraryLoaded(false, time.Since(start))
		return
	}
	m.track(lib)
	ok := m.eng.LoadLibrary(ctx, lib, m.listener)
	if ok {
		ok = m.eng.LoadTests(ctx, lib)
	}
	m.metrics.LibraryLoaded(ok, time.Since(start))
	span.WithExtra("library", lib.Name())
	m.log.Info("Library registered",
		zap.String("library", lib.Name()),
		zap.String("root", lib.Root()),
		zap.Bool("loaded", ok))
}

// track appends lib unless a library of that name is already registered.
func (m *Manager) track(lib engine.Library) {
	for i, known := range m.libs {
		if known.Name() == lib.Name() {
			m.libs[i] = lib
			return
		}
	}
	m.libs = append(m.libs, lib)
}

// Reload typechecks every registered library with its tests, in registration
// order, and reports once.
func (m *Manager) Reload(ctx context.Context) (report.Summary, error) {
	return call(ctx, m, func(ctx context.Context) report.Summary {
		return m.reload(ctx, TriggerStartup)
	})
}

func (m *Manager) reload(ctx context.Context, trigger string) report.Summary {
	ctx, span := trace.Start(ctx, trace.ScopeSession, "reload")
	defer span.End(trigger)
	for _, lib := range m.libs {
		m.typecheck(ctx, lib)
	}
	m.metrics.Reloaded(trigger)
	return m.agg.Report(ctx, m.eng.Errors(), m.eng.LibraryErrors())
}

func (m *Manager) typecheck(ctx context.Context, lib engine.Library) {
	start := time.Now()
	m.eng.TypecheckLibrary(ctx, lib)
	m.eng.TypecheckTests(ctx, lib, nil)
	m.metrics.Typechecked(lib.Name(), time.Since(start))
}

// FilesChanged re-reads the modules behind the given document URIs,
// typechecks each affected library once and reports once. URIs outside every
// registered library are logged and skipped.
func (m *Manager) FilesChanged(ctx context.Context, uris []string) (report.Summary, error) {
	return call(ctx, m, func(ctx context.Context) report.Summary {
		return m.filesChanged(ctx, uris)
	})
}

func (m *Manager) filesChanged(ctx context.Context, uris []string) report.Summary {
	ctx, span := trace.Start(ctx, trace.ScopeSession, "files-changed")
	defer span.End("")

	var affected []engine.Library
	seen := make(map[string]bool)
	for _, uri := range uris {
		d, ok := workspace.Describe(m.libs, uri)
		if !ok {
			m.log.Warn("Failed to find the module corresponds to " + uri)
			continue
		}
		m.log.Info(fmt.Sprintf("Reloading module %s from library %s's %s directory",
			d.Module, d.Library.Name(), treeName(d.InTests)))
		if d.InTests {
			m.log.Warn("Currently test reloading doesn't work properly")
		}
		m.eng.ReparseModule(ctx, d.Library, d.Module, d.InTests)
		if !seen[d.Library.Name()] {
			seen[d.Library.Name()] = true
			affected = append(affected, d.Library)
		}
	}
	for _, lib := range affected {
		m.typecheck(ctx, lib)
	}
	m.metrics.Reloaded(TriggerFiles)
	return m.agg.Report(ctx, m.eng.Errors(), m.eng.LibraryErrors())
}

func treeName(inTests bool) string {
	if inTests {
		return "test"
	}
	return "source"
}

// AddWorkspaceFolders registers every folder and reloads.
func (m *Manager) AddWorkspaceFolders(ctx context.Context, roots []string) (report.Summary, error) {
	return call(ctx, m, func(ctx context.Context) report.Summary {
		for _, root := range roots {
			m.register(ctx, root)
		}
		return m.reload(ctx, TriggerFolders)
	})
}

// RemoveWorkspaceFolders only logs: loaded libraries stay for the lifetime
// of the process.
func (m *Manager) RemoveWorkspaceFolders(ctx context.Context, roots []string) error {
	return m.do(ctx, func(context.Context) {
		for _, root := range roots {
			m.log.Info("Workspace folder removed; its library stays loaded", zap.String("root", root))
		}
	})
}

// LibraryInfo describes a registered library.
type LibraryInfo struct {
	Name      string
	Root      string
	SourceDir string
	TestDir   string
}

// Libraries lists the registered libraries in registration order.
func (m *Manager) Libraries(ctx context.Context) ([]LibraryInfo, error) {
	return call(ctx, m, func(context.Context) []LibraryInfo {
		out := make([]LibraryInfo, 0, len(m.libs))
		for _, lib := range m.libs {
			out = append(out, LibraryInfo{
				Name:      lib.Name(),
				Root:      lib.Root(),
				SourceDir: lib.SourceDir(),
				TestDir:   lib.TestDir(),
			})
		}
		return out
	})
}

// Query runs fn on the session goroutine. fn must not retain the view, and
// whatever fn captures is only safe to read when Query returns nil.
func (m *Manager) Query(ctx context.Context, fn func(View)) error {
	return m.do(ctx, func(context.Context) {
		fn(View{m: m})
	})
}

// View is read access to the session state, valid inside Query only.
type View struct {
	m *Manager
}

// Describe resolves a document URI to its library and module.
func (v View) Describe(uri string) (workspace.Description, bool) {
	return workspace.Describe(v.m.libs, uri)
}

// FindLibrary returns a library known to the engine by name.
func (v View) FindLibrary(name string) engine.Library {
	return v.m.eng.FindLibrary(name)
}

// PathOf returns the existing file of a module.
func (v View) PathOf(lib engine.Library, module source.ModulePath, inTests bool) (string, bool) {
	return workspace.PathOf(lib, module, inTests)
}

// Libraries returns the registered libraries.
func (v View) Libraries() []engine.Library {
	return append([]engine.Library(nil), v.m.libs...)
}

// locator resolves module files for the aggregator. It is only called from
// the session goroutine.
type locator struct{ m *Manager }

func (l locator) ModuleFile(loc source.ModuleLocation) (string, bool) {
	lib := l.m.eng.FindLibrary(loc.Library)
	if lib == nil {
		return "", false
	}
	return workspace.PathOf(lib, loc.Path, loc.InTests)
}
