package diagfmt

import (
	"encoding/json"
	"io"

	"arendls/internal/diag"
	"arendls/internal/report"
)

// LocationJSON is the place of a diagnostic. Line and column are 1-based;
// the column and length count UTF-16 code units. A whole-file location has
// no line.
type LocationJSON struct {
	File   string `json:"file"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
	Length int    `json:"length,omitempty"`
}

// DiagnosticJSON is one diagnostic.
type DiagnosticJSON struct {
	Level    string        `json:"level"`
	Code     string        `json:"code"`
	Message  string        `json:"message"`
	Cause    string        `json:"cause"`
	Location *LocationJSON `json:"location,omitempty"`
}

// DiagnosticsOutput is the root of the JSON document.
type DiagnosticsOutput struct {
	Diagnostics []DiagnosticJSON `json:"diagnostics"`
	Count       int              `json:"count"`
}

// JSON writes errs as one indented document. Count is the number of errors
// before truncation.
func JSON(w io.Writer, errs []*diag.Error, loc report.Locator, opts JSONOpts) error {
	out := DiagnosticsOutput{Diagnostics: []DiagnosticJSON{}, Count: len(errs)}
	for i, e := range errs {
		if opts.Max > 0 && i >= opts.Max {
			break
		}
		d := DiagnosticJSON{
			Level:   e.Level.String(),
			Code:    e.Code.String(),
			Message: e.Message,
			Cause:   diag.Kind(e.Cause),
		}
		if at, ok := report.Locate(loc, e.Cause); ok {
			l := &LocationJSON{File: displayPath(at.File, opts.PathMode, opts.BaseDir)}
			if !at.WholeFile {
				l.Line, l.Column, l.Length = at.Pos.Line, at.Pos.Column, at.Len
			}
			d.Location = l
		}
		out.Diagnostics = append(out.Diagnostics, d)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
