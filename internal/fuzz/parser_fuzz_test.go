package fuzztests

import (
	"context"
	"testing"
	"time"

	"arendls/internal/ast"
	"arendls/internal/diag"
	"arendls/internal/parser"
	"arendls/internal/testkit"
)

// parseTimeout is the maximum time allowed for parsing a single input.
// If parsing takes longer, it indicates a potential infinite loop.
const parseTimeout = 5 * time.Second

func FuzzParserBuildsGroups(f *testing.F) {
	addCorpusSeeds(f)

	f.Fuzz(func(t *testing.T, input []byte) {
		input = clampInput(input)
		top := parser.ParseModule(input, fuzzLoc, &diag.Collect{})
		if err := testkit.CheckGroupInvariants(top, fuzzLoc, input); err != nil {
			t.Fatalf("invariant violated: %v\ninput: %q", err, truncateForLog(input, 200))
		}
	})
}

// FuzzParserNoHang tests that error recovery always makes progress.
func FuzzParserNoHang(f *testing.F) {
	addCorpusSeeds(f)
	f.Add([]byte("\\func f => (((((\n"))                   // unclosed parentheses
	f.Add([]byte("\\func f => 0 \\where { \\func g => 1")) // unclosed where-block
	f.Add([]byte("\\data D | | |\n"))                      // empty constructors
	f.Add([]byte("  \\func indented => 0\n\\func f =>"))   // no recovery point in column 1
	f.Add([]byte("\\import .\n\\open A.\n"))               // broken module paths

	f.Fuzz(func(t *testing.T, input []byte) {
		input = clampInput(input)

		ctx, cancel := context.WithTimeout(context.Background(), parseTimeout)
		defer cancel()

		done := make(chan *ast.Group, 1)
		go func() {
			done <- parser.ParseModule(input, fuzzLoc, &diag.Collect{})
		}()

		select {
		case top := <-done:
			if top == nil {
				t.Fatalf("nil top group")
			}
		case <-ctx.Done():
			t.Fatalf("parser hang detected: parsing took longer than %v\ninput (%d bytes): %q",
				parseTimeout, len(input), truncateForLog(input, 200))
		}
	})
}

// truncateForLog truncates input for logging purposes
func truncateForLog(input []byte, maxLen int) []byte {
	if len(input) <= maxLen {
		return input
	}
	return append(input[:maxLen:maxLen], []byte("...")...)
}
