// Package diagnostics turns the diagnostics servers publish into a summary
// file, recomputed from scratch on every flush.
package diagnostics

import (
	"net/url"
	"time"

	"github.com/hpungsan/lspwarm/internal/host"
	"github.com/hpungsan/lspwarm/internal/lsp"
)

// TimeFormat is the layout of Entry.Time.
const TimeFormat = "2006-01-02 15:04:05"

// Entry summarizes one document's diagnostics.
type Entry struct {
	Severity int    `json:"severity" yaml:"severity" toml:"severity" msgpack:"severity"`
	Icon     string `json:"icon" yaml:"icon" toml:"icon" msgpack:"icon"`
	Count    int    `json:"count" yaml:"count" toml:"count" msgpack:"count"`
	Time     string `json:"time" yaml:"time" toml:"time" msgpack:"time"`
}

// Summary maps a URL-escaped document path to its entry.
type Summary map[string]Entry

// Icons are the glyphs per severity class.
type Icons struct {
	Error   string
	Warning string
	Info    string
	Hint    string
}

// Icon returns the glyph for an LSP severity.
func (i Icons) Icon(sev lsp.DiagnosticSeverity) string {
	switch sev {
	case lsp.SeverityWarning:
		return i.Warning
	case lsp.SeverityInformation:
		return i.Info
	case lsp.SeverityHint:
		return i.Hint
	default:
		return i.Error
	}
}

// Key escapes a path the way summary keys are written: spaces and other
// reserved characters percent-encoded, slashes kept.
func Key(path string) string {
	return (&url.URL{Path: path}).EscapedPath()
}

// MostSevere returns the lowest severity ordinal among diags. A missing
// severity counts as an error; values past hint count as hint.
func MostSevere(diags []lsp.Diagnostic) lsp.DiagnosticSeverity {
	best := lsp.SeverityHint
	for _, d := range diags {
		sev := d.Severity
		switch {
		case sev <= 0:
			sev = lsp.SeverityError
		case sev > lsp.SeverityHint:
			sev = lsp.SeverityHint
		}
		if sev < best {
			best = sev
		}
	}
	return best
}

// Compute builds the summary for every document with at least one finding.
func Compute(docs []host.Document, icons Icons, now time.Time) Summary {
	stamp := now.Format(TimeFormat)
	out := make(Summary)
	for _, d := range docs {
		if len(d.Diagnostics) == 0 {
			continue
		}
		sev := MostSevere(d.Diagnostics)
		out[Key(d.Path)] = Entry{
			Severity: int(sev),
			Icon:     icons.Icon(sev),
			Count:    len(d.Diagnostics),
			Time:     stamp,
		}
	}
	return out
}
