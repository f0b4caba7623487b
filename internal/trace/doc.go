// Package trace records spans of language-server work: session operations,
// library loads and per-module parsing.
//
// A tracer travels in the context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	ctx, span := trace.Start(ctx, trace.ScopeLibrary, "library:base")
//	defer span.End("")
//
// Implementations:
//
//   - Nop: used when tracing is off
//   - StreamTracer: writes each event as it happens
//   - RingTracer: keeps the last N events for a dump on shutdown
//   - MultiTracer: fans out to several tracers
//
// The level decides which scopes are emitted. phase covers session and
// library spans, detail adds modules and debug adds protocol requests.
package trace
