// Package version carries build metadata for the arendls binary.
package version

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// These variables can be overridden at build time via -ldflags.
var (
	// Version is the semantic version reported to clients in serverInfo.
	Version = "0.1.0-dev"

	// GitCommit is an optional git commit hash.
	GitCommit = ""

	// BuildDate is an optional build date in ISO-8601.
	BuildDate = ""
)

// Tool is the program name.
const Tool = "arendls"

const tagline = "an Arend language server"

// Info is a snapshot of the build metadata with blanks trimmed.
type Info struct {
	Version   string
	GitCommit string
	BuildDate string
}

// Current returns the build metadata.
func Current() Info {
	v := strings.TrimSpace(Version)
	if v == "" {
		v = "dev"
	}
	return Info{
		Version:   v,
		GitCommit: strings.TrimSpace(GitCommit),
		BuildDate: strings.TrimSpace(BuildDate),
	}
}

// Fields selects the optional metadata to print.
type Fields struct {
	Hash bool
	Date bool
}

var (
	majorColor = color.New(color.FgYellow, color.Bold)
	minorColor = color.New(color.FgGreen, color.Bold)
	patchColor = color.New(color.FgBlue, color.Bold)
)

// colorize paints the major, minor and patch components of a semantic
// version. Anything else is returned as is.
func colorize(v string) string {
	core, suffix, _ := strings.Cut(v, "-")
	parts := strings.Split(core, ".")
	if len(parts) != 3 {
		return v
	}
	out := majorColor.Sprint(parts[0]) + "." + minorColor.Sprint(parts[1]) + "." + patchColor.Sprint(parts[2])
	if suffix != "" {
		out += "-" + suffix
	}
	return out
}

// WritePretty prints a human readable banner.
func WritePretty(out io.Writer, info Info, f Fields) {
	fmt.Fprintf(out, "%s %s: %s\n", Tool, colorize(info.Version), tagline)
	if f.Hash {
		fmt.Fprintf(out, "commit: %s\n", valueOrUnknown(info.GitCommit))
	}
	if f.Date {
		fmt.Fprintf(out, "built:  %s\n", valueOrUnknown(info.BuildDate))
	}
}

type payload struct {
	Tool      string `json:"tool"`
	Version   string `json:"version"`
	GitCommit string `json:"git_commit,omitempty"`
	BuildDate string `json:"build_date,omitempty"`
}

// WriteJSON prints the metadata as an indented JSON object.
func WriteJSON(out io.Writer, info Info, f Fields) error {
	p := payload{Tool: Tool, Version: info.Version}
	if f.Hash {
		p.GitCommit = valueOrUnknown(info.GitCommit)
	}
	if f.Date {
		p.BuildDate = valueOrUnknown(info.BuildDate)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}

func valueOrUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
