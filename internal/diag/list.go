package diag

import "sync"

// Reporter is the minimal sink producers report findings to.
type Reporter interface {
	Report(err *Error)
}

// List accumulates findings in report order. It is safe for concurrent use:
// modules are parsed in parallel and report into the same list.
type List struct {
	mu    sync.Mutex
	items []*Error
}

// NewList returns an empty list.
func NewList() *List {
	return &List{}
}

// Report appends err. Nil errors are ignored.
func (l *List) Report(err *Error) {
	if err == nil {
		return
	}
	l.mu.Lock()
	l.items = append(l.items, err)
	l.mu.Unlock()
}

// Items returns a copy of the accumulated findings.
func (l *List) Items() []*Error {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Error, len(l.items))
	copy(out, l.items)
	return out
}

// Len returns the number of accumulated findings.
func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// HasErrors reports whether any finding has ERROR level.
func (l *List) HasErrors() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.items {
		if e.Level >= LevelError {
			return true
		}
	}
	return false
}

// Clear drops every finding.
func (l *List) Clear() {
	l.mu.Lock()
	l.items = nil
	l.mu.Unlock()
}

// Collect buffers findings locally; Flush forwards them to another reporter in
// one go. Parallel parsers use it so that one module's findings stay contiguous.
type Collect struct {
	items []*Error
}

func (c *Collect) Report(err *Error) {
	if err != nil {
		c.items = append(c.items, err)
	}
}

// Items returns the buffered findings.
func (c *Collect) Items() []*Error { return c.items }

// Flush forwards the buffered findings to r and empties the buffer.
func (c *Collect) Flush(r Reporter) {
	for _, e := range c.items {
		r.Report(e)
	}
	c.items = nil
}
