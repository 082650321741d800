package workspace

import (
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/hpungsan/lspwarm/internal/lsp"
	"github.com/hpungsan/lspwarm/internal/metrics"
)

// Host is the document model the pipeline loads files into.
type Host interface {
	IsLoaded(path string) bool
	LoadedCount() int
	Create(path string) bool
	Load(path string) (string, error)
}

// Classifier resolves a path's filetype, "" meaning none.
type Classifier interface {
	Classify(path string) string
}

// Decision is the outcome of Gate.Admit.
type Decision string

const (
	Emitted         Decision = "emitted"
	SkipOpened      Decision = "already_opened"
	SkipNoFiletype  Decision = "no_filetype"
	SkipUnsupported Decision = "unsupported_filetype"
	SkipOutsideRoot Decision = "outside_root"
	SkipLoaded      Decision = "already_loaded"
	SkipLoadFailed  Decision = "load_failed"
	SkipMaxFiles    Decision = "max_files"
	SkipMaxOpenDocs Decision = "max_open_docs"
)

// Gate decides whether a file is sent to a client and sends it.
type Gate struct {
	state    *State
	host     Host
	classify Classifier
	cwd      string
	sends    errgroup.Group
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewGate returns a gate. maxInflight bounds concurrent didOpen sends;
// zero or less means unbounded.
func NewGate(state *State, host Host, classifier Classifier, cwd string, maxInflight int, logger *slog.Logger, m *metrics.Metrics) *Gate {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	g := &Gate{
		state:    state,
		host:     host,
		classify: classifier,
		cwd:      cwd,
		logger:   logger,
		metrics:  m,
	}
	if maxInflight > 0 {
		g.sends.SetLimit(maxInflight)
	}
	return g
}

// Admit runs the eligibility checks for path and, if they pass, loads the
// document and sends didOpen in the background. The path is recorded as
// opened before any check, so each path gets at most one attempt.
func (g *Gate) Admit(s *Session, path string) Decision {
	if !g.state.MarkOpened(path) {
		return g.skip(s, path, SkipOpened)
	}

	filetype := g.classify.Classify(path)
	if filetype == "" {
		return g.skip(s, path, SkipNoFiletype)
	}
	if !s.Handles(filetype) {
		return g.skip(s, path, SkipUnsupported)
	}
	if !within(path, s.EffectiveRoot(g.cwd)) {
		return g.skip(s, path, SkipOutsideRoot)
	}
	if g.host.IsLoaded(path) {
		return g.skip(s, path, SkipLoaded)
	}

	// Load synchronously so the next ceiling check counts this document.
	g.host.Create(path)
	text, err := g.host.Load(path)
	if err != nil {
		g.logger.Warn("load document failed", "client", s.ID, "path", path, "error", err)
		g.metrics.Skipped(string(SkipLoadFailed))
		return SkipLoadFailed
	}

	params := lsp.DidOpenTextDocumentParams{
		TextDocument: lsp.TextDocumentItem{
			URI:        lsp.PathToURI(path),
			LanguageID: filetype,
			Version:    0,
			Text:       text,
		},
	}
	g.sends.Go(func() error {
		err := s.Notifier.Notify(lsp.MethodDidOpen, params)
		g.metrics.DidOpen(err)
		if err != nil {
			g.logger.Warn("didOpen failed", "client", s.ID, "path", path, "error", err)
		}
		return nil
	})
	return Emitted
}

// Wait blocks until every background send has finished.
func (g *Gate) Wait() error {
	return g.sends.Wait()
}

func (g *Gate) skip(s *Session, path string, d Decision) Decision {
	g.logger.Debug("skip file", "client", s.ID, "path", path, "reason", string(d))
	g.metrics.Skipped(string(d))
	return d
}
