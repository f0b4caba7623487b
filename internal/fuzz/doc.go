// Package fuzztests houses Go fuzz harnesses for the front of the pipeline
// (source -> lexer -> parser). They guard against panics, hangs and malformed
// trees on arbitrary input.
package fuzztests
