package diagfmt

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"arendls/internal/diag"
	"arendls/internal/report"
)

type palette struct {
	levels map[diag.Level]*color.Color
	path   *color.Color
	gutter *color.Color
	mark   *color.Color
}

func newPalette(enabled bool) palette {
	mk := func(attrs ...color.Attribute) *color.Color {
		c := color.New(attrs...)
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c
	}
	return palette{
		levels: map[diag.Level]*color.Color{
			diag.LevelError:         mk(color.FgRed, color.Bold),
			diag.LevelWarning:       mk(color.FgYellow, color.Bold),
			diag.LevelWarningUnused: mk(color.FgYellow),
			diag.LevelGoal:          mk(color.FgMagenta, color.Bold),
			diag.LevelInfo:          mk(color.FgCyan),
		},
		path:   mk(color.Bold),
		gutter: mk(color.FgBlue),
		mark:   mk(color.FgGreen, color.Bold),
	}
}

func (p palette) level(l diag.Level) *color.Color {
	if c, ok := p.levels[l]; ok {
		return c
	}
	return p.levels[diag.LevelError]
}

// Pretty prints errs in order, one header line each:
//
//	<path>:<line>:<col>: <LEVEL>[<code>]: <message>
//
// followed, when enabled, by the source line and a ^~~~ marker under the
// span. Errors loc cannot place are printed without a location. It returns
// the number of errors printed without one.
func Pretty(w io.Writer, errs []*diag.Error, loc report.Locator, opts PrettyOpts) int {
	pal := newPalette(opts.Color)
	cache := lines{}
	unplaced := 0
	for _, e := range errs {
		head := pal.level(e.Level).Sprintf("%s[%s]", e.Level, e.Code)
		at, ok := report.Locate(loc, e.Cause)
		if !ok {
			unplaced++
			fmt.Fprintf(w, "%s: %s\n", head, e.Message)
			continue
		}
		where := displayPath(at.File, opts.PathMode, opts.BaseDir)
		if !at.WholeFile {
			where += fmt.Sprintf(":%d:%d", at.Pos.Line, at.Pos.Column)
		}
		fmt.Fprintf(w, "%s: %s: %s\n", pal.path.Sprint(where), head, e.Message)
		if opts.ShowPreview && !at.WholeFile {
			preview(w, pal, cache, at)
		}
	}
	return unplaced
}

func preview(w io.Writer, pal palette, cache lines, at report.Site) {
	text, ok := cache.get(at.File, at.Pos.Line)
	if !ok {
		return
	}
	num := strconv.Itoa(at.Pos.Line)
	pad := strings.Repeat(" ", len(num))
	indent, width := underline(text, at.Pos.Column, at.Len)
	marker := "^" + strings.Repeat("~", width-1)
	fmt.Fprintf(w, "%s %s\n", pad, pal.gutter.Sprint("|"))
	fmt.Fprintf(w, "%s %s %s\n", pal.gutter.Sprint(num), pal.gutter.Sprint("|"), text)
	fmt.Fprintf(w, "%s %s %s%s\n", pad, pal.gutter.Sprint("|"), indentLike(text, indent), pal.mark.Sprint(marker))
}
