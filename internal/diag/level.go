package diag

// Level is the engine's severity of an error.
type Level uint8

const (
	LevelInfo Level = iota
	LevelWarningUnused
	LevelGoal
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "INFO"
	case LevelWarningUnused:
		return "WARNING_UNUSED"
	case LevelGoal:
		return "GOAL"
	case LevelWarning:
		return "WARNING"
	case LevelError:
		return "ERROR"
	}
	return "UNKNOWN"
}
