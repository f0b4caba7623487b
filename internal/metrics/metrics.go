// Package metrics holds the Prometheus collectors of the language server.
//
// Collectors live on a private registry so that tests and several servers in
// one process never collide on the default one. A nil *Metrics is valid and
// records nothing.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "arendls"

// Metrics is the set of server collectors.
type Metrics struct {
	reg *prometheus.Registry

	// LibraryLoads counts library registrations by result (ok, failed).
	LibraryLoads *prometheus.CounterVec
	// LibraryLoadSeconds measures register + load + load tests.
	LibraryLoadSeconds prometheus.Histogram
	// TypecheckSeconds measures typechecking of one library with its tests.
	TypecheckSeconds *prometheus.HistogramVec
	// Reloads counts diagnostic rounds by trigger (startup, files, folders).
	Reloads *prometheus.CounterVec
	// ModulesParsed counts parsed modules by status (done, error).
	ModulesParsed *prometheus.CounterVec

	DiagnosticsPublished prometheus.Counter
	DiagnosticsRetracted prometheus.Counter
	UnhandledErrors      prometheus.Counter
	ReportedFiles        prometheus.Gauge

	// Requests counts JSON-RPC messages by method.
	Requests *prometheus.CounterVec
}

var buckets = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// New creates the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		LibraryLoads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "library_loads_total",
			Help:      "Library registrations by result.",
		}, []string{"result"}),
		LibraryLoadSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "library_load_seconds",
			Help:      "Time spent registering and loading one library.",
			Buckets:   buckets,
		}),
		TypecheckSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "typecheck_seconds",
			Help:      "Time spent typechecking one library and its tests.",
			Buckets:   buckets,
		}, []string{"library"}),
		Reloads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reloads_total",
			Help:      "Diagnostic rounds by trigger.",
		}, []string{"trigger"}),
		ModulesParsed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "modules_parsed_total",
			Help:      "Parsed modules by status.",
		}, []string{"status"}),
		DiagnosticsPublished: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diagnostics_published_total",
			Help:      "Non-empty publishDiagnostics notifications sent.",
		}),
		DiagnosticsRetracted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diagnostics_retracted_total",
			Help:      "Empty publishDiagnostics notifications sent to clear a file.",
		}),
		UnhandledErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unhandled_errors_total",
			Help:      "Engine errors that could not be attributed to a file.",
		}),
		ReportedFiles: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reported_files",
			Help:      "Files with diagnostics after the last report.",
		}),
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "JSON-RPC messages received by method.",
		}, []string{"method"}),
	}
}

// Registry exposes the private registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (m *Metrics) LibraryLoaded(ok bool, d time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.LibraryLoads.WithLabelValues(result).Inc()
	m.LibraryLoadSeconds.Observe(d.Seconds())
}

func (m *Metrics) Typechecked(lib string, d time.Duration) {
	if m == nil {
		return
	}
	m.TypecheckSeconds.WithLabelValues(lib).Observe(d.Seconds())
}

func (m *Metrics) Reloaded(trigger string) {
	if m == nil {
		return
	}
	m.Reloads.WithLabelValues(trigger).Inc()
}

func (m *Metrics) ModuleParsed(status string) {
	if m == nil {
		return
	}
	m.ModulesParsed.WithLabelValues(status).Inc()
}

// Published records one report round.
func (m *Metrics) Published(published, retracted, unhandled, files int) {
	if m == nil {
		return
	}
	m.DiagnosticsPublished.Add(float64(published))
	m.DiagnosticsRetracted.Add(float64(retracted))
	m.UnhandledErrors.Add(float64(unhandled))
	m.ReportedFiles.Set(float64(files))
}

func (m *Metrics) Request(method string) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(method).Inc()
}
