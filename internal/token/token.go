// Package token defines the lexical tokens of the Arend subset understood by
// the reference engine.
package token

// Token represents a single source token. Line and Column are 1-based; Column
// counts UTF-16 code units from the start of the line.
type Token struct {
	Kind   Kind
	Text   string
	Line   int
	Column int
}

// IsKeyword reports whether the token is a backslash keyword.
func (t Token) IsKeyword() bool {
	return t.Kind >= KwFunc && t.Kind <= KwType
}

// StartsDecl reports whether the token can begin a top-level statement.
func (t Token) StartsDecl() bool {
	switch t.Kind {
	case KwFunc, KwLemma, KwData, KwImport, KwOpen:
		return true
	default:
		return false
	}
}

// StartsAtom reports whether the token can begin an atomic expression.
func (t Token) StartsAtom() bool {
	switch t.Kind {
	case Ident, Number, LParen, Goal, KwType, KwLam, KwLet, KwPi:
		return true
	default:
		return false
	}
}
