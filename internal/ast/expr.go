package ast

import "arendls/internal/source"

// ExprKind enumerates expression forms.
type ExprKind uint8

const (
	ExprRef ExprKind = iota + 1 // identifier
	ExprNum                     // natural number literal
	ExprApp                     // Args[0] applied to Args[1:]
	ExprArrow                   // Args[0] -> Args[1]
	ExprLam                     // \lam Binders => Args[0]
	ExprPi                      // \Pi Binders -> Args[0]
	ExprLet                     // \let Binders[0] => Args[0] \in Args[1]
	ExprGoal                    // {?}
	ExprUniverse                // \Type
)

func (k ExprKind) String() string {
	switch k {
	case ExprRef:
		return "ref"
	case ExprNum:
		return "num"
	case ExprApp:
		return "app"
	case ExprArrow:
		return "arrow"
	case ExprLam:
		return "lam"
	case ExprPi:
		return "pi"
	case ExprLet:
		return "let"
	case ExprGoal:
		return "goal"
	case ExprUniverse:
		return "universe"
	default:
		return "unknown"
	}
}

// Expr is a single node type for all expression forms; Kind selects which
// fields are meaningful. Referent is set by resolution and never serialized.
type Expr struct {
	Kind     ExprKind
	Pos      source.Pos
	Text     string
	Args     []*Expr
	Binders  []*Binding
	Referent Referent `msgpack:"-" json:"-"`
}

// Inspect traverses e in depth-first order, binder types before sub-expressions.
// If fn returns false the children of that node are skipped.
func Inspect(e *Expr, fn func(*Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	var last *Expr
	for _, b := range e.Binders {
		if b.Type != last {
			Inspect(b.Type, fn)
			last = b.Type
		}
	}
	for _, a := range e.Args {
		Inspect(a, fn)
	}
}

// NameLen is the width of the name a reference expression is compared against:
// the referent's name once resolved, the written text otherwise.
func NameLen(e *Expr) int {
	if e == nil {
		return 0
	}
	if e.Referent != nil {
		if n := e.Referent.RefName(); n != "" {
			return source.Width(n)
		}
	}
	return source.Width(e.Text)
}
