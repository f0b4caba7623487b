package trace

import "time"

// Kind represents the type of trace event.
type Kind uint8

const (
	KindSpanBegin Kind = iota + 1
	KindSpanEnd
	KindPoint
	KindHeartbeat
)

func (k Kind) String() string {
	switch k {
	case KindSpanBegin:
		return "begin"
	case KindSpanEnd:
		return "end"
	case KindPoint:
		return "point"
	case KindHeartbeat:
		return "heartbeat"
	default:
		return "unknown"
	}
}

// Scope is the granularity of an event. Lower values are coarser.
type Scope uint8

const (
	// ScopeSession covers whole session operations: reload, file changes.
	ScopeSession Scope = iota + 1
	// ScopeLibrary covers loading and typechecking one library.
	ScopeLibrary
	// ScopeModule covers one module.
	ScopeModule
	// ScopeRequest covers single protocol messages.
	ScopeRequest
)

func (s Scope) String() string {
	switch s {
	case ScopeSession:
		return "session"
	case ScopeLibrary:
		return "library"
	case ScopeModule:
		return "module"
	case ScopeRequest:
		return "request"
	default:
		return "unknown"
	}
}

// Event is a single trace record.
type Event struct {
	Time     time.Time
	Seq      uint64
	Kind     Kind
	Scope    Scope
	SpanID   uint64
	ParentID uint64
	GID      uint64
	// Name is e.g. "reload", "library:base" or "module:Data.List".
	Name   string
	Detail string
	// Elapsed is set on span ends.
	Elapsed time.Duration
	Extra   map[string]string
}
