// Package report turns the engine's accumulated errors into
// textDocument/publishDiagnostics notifications.
//
// Each round retracts every file published by the previous round before it
// publishes the current batch, so a file whose errors are gone is cleared
// and a file that still has errors is never left showing stale ones.
package report

import (
	"context"
	"slices"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"arendls/internal/ast"
	"arendls/internal/diag"
	"arendls/internal/metrics"
	"arendls/internal/position"
	"arendls/internal/source"
	"arendls/internal/workspace"
)

// DiagnosticSource is the source field of every published diagnostic.
const DiagnosticSource = "Arend"

// Publisher delivers one publishDiagnostics notification.
type Publisher interface {
	PublishDiagnostics(ctx context.Context, params *protocol.PublishDiagnosticsParams) error
}

// Locator finds the file of a module.
type Locator interface {
	ModuleFile(loc source.ModuleLocation) (string, bool)
}

// Summary describes one report round.
type Summary struct {
	Issues    int
	Files     int
	Unhandled int
	Retracted int
	// URIs lists the published files in publication order.
	URIs []string
}

// Aggregator remembers which files carry diagnostics between rounds. It is
// not safe for concurrent use; the session owns it.
type Aggregator struct {
	log      *zap.Logger
	pub      Publisher
	loc      Locator
	metrics  *metrics.Metrics
	reported []string
}

// New creates an aggregator that has reported nothing yet.
func New(pub Publisher, loc Locator, log *zap.Logger, m *metrics.Metrics) *Aggregator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Aggregator{log: log, pub: pub, loc: loc, metrics: m}
}

// Reported returns the files published by the last round, sorted.
func (a *Aggregator) Reported() []string {
	return slices.Clone(a.reported)
}

type batch struct {
	uri   string
	diags []protocol.Diagnostic
}

// Report publishes the errors of both lists, general errors first, and
// clears the lists.
func (a *Aggregator) Report(ctx context.Context, errs, libErrs *diag.List) Summary {
	all := append(errs.Items(), libErrs.Items()...)

	var (
		order   []*batch
		byURI   = make(map[string]*batch)
		summary = Summary{Issues: len(all)}
	)
	for _, e := range all {
		at, ok := Locate(a.loc, e.Cause)
		if !ok {
			summary.Unhandled++
			a.log.Warn("Unhandled error: "+e.Message,
				zap.Stringer("code", e.Code),
				zap.String("cause", diag.Kind(e.Cause)))
			continue
		}
		uri := workspace.FromPath(at.File)
		b, ok := byURI[uri]
		if !ok {
			b = &batch{uri: uri}
			byURI[uri] = b
			order = append(order, b)
		}
		b.diags = append(b.diags, protocol.Diagnostic{
			Range:    at.Range(),
			Severity: Severity(e.Level),
			Code:     string(e.Code),
			Source:   DiagnosticSource,
			Message:  e.Message,
		})
	}

	for _, uri := range a.reported {
		a.publish(ctx, uri, []protocol.Diagnostic{})
	}
	summary.Retracted = len(a.reported)
	summary.Files = len(order)
	a.log.Sugar().Infof("Found %d issues in %d files.", summary.Issues, summary.Files)

	reported := make([]string, 0, len(order))
	for _, b := range order {
		a.publish(ctx, b.uri, b.diags)
		reported = append(reported, b.uri)
	}
	summary.URIs = slices.Clone(reported)
	slices.Sort(reported)
	a.reported = reported

	errs.Clear()
	libErrs.Clear()
	a.metrics.Published(summary.Files, summary.Retracted, summary.Unhandled, summary.Files)
	return summary
}

func (a *Aggregator) publish(ctx context.Context, uri string, diags []protocol.Diagnostic) {
	params := &protocol.PublishDiagnosticsParams{
		URI:         protocol.DocumentURI(uri),
		Diagnostics: diags,
	}
	if err := a.pub.PublishDiagnostics(ctx, params); err != nil {
		a.log.Error("publishing diagnostics failed", zap.String("uri", uri), zap.Error(err))
	}
}

// Severity maps engine levels to editor severities.
func Severity(l diag.Level) protocol.DiagnosticSeverity {
	switch l {
	case diag.LevelInfo:
		return protocol.DiagnosticSeverityInformation
	case diag.LevelWarningUnused, diag.LevelGoal:
		return protocol.DiagnosticSeverityHint
	case diag.LevelWarning:
		return protocol.DiagnosticSeverityWarning
	default:
		return protocol.DiagnosticSeverityError
	}
}

// Site is where an error is shown. Len counts UTF-16 code units from Pos;
// a WholeFile site has no position and covers the file as a whole.
type Site struct {
	File      string
	Pos       source.Pos
	Len       int
	WholeFile bool
}

// Range returns the editor range of the site.
func (s Site) Range() protocol.Range {
	if s.WholeFile {
		return position.Empty()
	}
	return position.ToRange(s.Pos, s.Len)
}

// Locate finds the site of an error from its cause. It reports false when
// the cause names no file, or names a module loc cannot find.
func Locate(loc Locator, c diag.Cause) (Site, bool) {
	switch c := c.(type) {
	case diag.TerminationCause:
		return declSite(loc, c.Decl)
	case diag.ScopeCause:
		if c.Ref != nil {
			return site(loc, c.Ref.Pos, ast.NameLen(c.Ref))
		}
		if c.Pos != nil {
			return site(loc, *c.Pos, 1)
		}
	case diag.LocalCause:
		if c.Pos != nil {
			return site(loc, *c.Pos, 1)
		}
		return declSite(loc, c.Decl)
	case diag.ParserCause:
		return site(loc, c.Pos, 1)
	case diag.LibraryIOCause:
		if c.FileName != "" {
			return Site{File: c.FileName, WholeFile: true}, true
		}
	}
	return Site{}, false
}

func declSite(loc Locator, d *ast.Decl) (Site, bool) {
	if d == nil {
		return Site{}, false
	}
	return site(loc, d.Pos, source.Width(d.Name))
}

func site(loc Locator, p source.Pos, n int) (Site, bool) {
	if loc == nil {
		return Site{}, false
	}
	file, ok := loc.ModuleFile(p.Module)
	if !ok {
		return Site{}, false
	}
	return Site{File: file, Pos: p, Len: n}, true
}
