package ops

import (
	"context"

	"github.com/hpungsan/lspwarm/internal/diagnostics"
	"github.com/hpungsan/lspwarm/internal/lsp"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
	DefaultScanLimit = 200
	MaxScanLimit     = 5000
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// Flusher forces an immediate aggregation. Implemented by the daemon.
type Flusher interface {
	Flush(ctx context.Context) diagnostics.FlushResult
}

// clamp applies a default when n is unset and caps it at hi.
func clamp(n, def, hi int) int {
	if n <= 0 {
		return def
	}
	if n > hi {
		return hi
	}
	return n
}

// SeverityCounts tallies summary entries by most-severe class.
type SeverityCounts struct {
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
	Infos    int `json:"infos"`
	Hints    int `json:"hints"`
}

// countSeverities buckets entries the same way the aggregator assigns icons.
func countSeverities(s diagnostics.Summary) SeverityCounts {
	var c SeverityCounts
	for _, e := range s {
		switch lsp.DiagnosticSeverity(e.Severity) {
		case lsp.SeverityWarning:
			c.Warnings++
		case lsp.SeverityInformation:
			c.Infos++
		case lsp.SeverityHint:
			c.Hints++
		default:
			c.Errors++
		}
	}
	return c
}
