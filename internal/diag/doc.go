// Package diag defines the error model shared by the engine and the server.
//
// # Data model
//
// Error is the central record. It contains:
//
//   - Level – the engine's five-valued severity (level.go).
//   - Code – a short stable identifier (codes.go).
//   - Message – human oriented text.
//   - Cause – where the error is attributed. Cause is a closed union
//     (cause.go): TerminationCause, ScopeCause, LocalCause, ParserCause,
//     LibraryIOCause and UnknownCause. Consumers switch over it exhaustively.
//
// # Accumulators
//
// Producers never return engine errors as Go errors. They report them to a
// Reporter, normally a *List. The engine owns two lists, one for general
// errors and one for library loading errors; the diagnostic aggregator drains
// both after every report cycle.
package diag
