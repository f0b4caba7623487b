package diag

import "fmt"

// Error is a single engine finding.
type Error struct {
	Level   Level
	Code    Code
	Message string
	Cause   Cause
}

func (e *Error) String() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("[%s] %s: %s", e.Level, e.Code, e.Message)
}

// Errorf builds an ERROR-level finding.
func Errorf(code Code, cause Cause, format string, args ...any) *Error {
	return New(LevelError, code, cause, fmt.Sprintf(format, args...))
}

// New builds a finding with an explicit level.
func New(level Level, code Code, cause Cause, msg string) *Error {
	if cause == nil {
		cause = UnknownCause{}
	}
	return &Error{Level: level, Code: code, Message: msg, Cause: cause}
}
