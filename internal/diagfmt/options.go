// Package diagfmt renders engine errors for the terminal, as colored text
// with a source excerpt or as JSON.
package diagfmt

// PathMode specifies how file paths are displayed.
type PathMode uint8

const (
	// PathModeAuto prints paths relative to BaseDir when they lie below it.
	PathModeAuto PathMode = iota
	PathModeAbsolute
	PathModeRelative
	PathModeBasename
)

// PrettyOpts configures Pretty.
type PrettyOpts struct {
	Color    bool
	PathMode PathMode
	BaseDir  string
	// ShowPreview prints the offending line with the span underlined.
	ShowPreview bool
}

// JSONOpts configures JSON.
type JSONOpts struct {
	PathMode PathMode
	BaseDir  string
	// Max truncates the list; 0 keeps everything.
	Max int
}
