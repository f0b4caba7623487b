package diag

import (
	"arendls/internal/ast"
	"arendls/internal/source"
)

// Cause attributes an error to a place. Implementations are exactly the six
// variants below.
type Cause interface {
	isCause()
}

// TerminationCause blames a definition whose recursion could not be checked.
type TerminationCause struct {
	Decl *ast.Decl
}

// ScopeCause blames a name that is not in scope. Ref is the offending
// reference when there is one; otherwise Pos locates the problem.
type ScopeCause struct {
	Ref *ast.Expr
	Pos *source.Pos
}

// LocalCause blames a definition, optionally narrowed to a position inside it.
// Decl may be nil for errors outside any definition (namespace commands).
type LocalCause struct {
	Decl *ast.Decl
	Pos  *source.Pos
}

// ParserCause blames a raw source position.
type ParserCause struct {
	Pos source.Pos
}

// LibraryIOCause blames a file on disk, usually a manifest or module file.
type LibraryIOCause struct {
	FileName string
}

// UnknownCause carries nothing that can be located.
type UnknownCause struct {
	Detail string
}

func (TerminationCause) isCause() {}
func (ScopeCause) isCause()       {}
func (LocalCause) isCause()       {}
func (ParserCause) isCause()      {}
func (LibraryIOCause) isCause()   {}
func (UnknownCause) isCause()     {}

// Kind returns a short name of the variant, used in logs.
func Kind(c Cause) string {
	switch c.(type) {
	case TerminationCause:
		return "termination"
	case ScopeCause:
		return "scope"
	case LocalCause:
		return "local"
	case ParserCause:
		return "parser"
	case LibraryIOCause:
		return "library-io"
	default:
		return "unknown"
	}
}
