package diagnostics

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/lspwarm/internal/errors"
	"github.com/hpungsan/lspwarm/internal/host"
	"github.com/hpungsan/lspwarm/internal/metrics"
)

// Flush skip reasons.
const (
	SkippedBusy  = "busy"
	SkippedEmpty = "empty"
)

// Documents enumerates loaded documents with their diagnostics.
type Documents interface {
	Loaded() []host.Document
}

// FlushRecord is a written flush as handed to a Recorder.
type FlushRecord struct {
	ID        string
	Path      string
	Format    string
	WrittenAt time.Time
	Entries   Summary
}

// Recorder journals written flushes.
type Recorder interface {
	RecordFlush(ctx context.Context, rec FlushRecord) error
}

// Options configures an Aggregator.
type Options struct {
	OutputPath string
	Format     string
	Icons      Icons

	// WriteEmpty writes an empty table instead of skipping when no
	// document has findings.
	WriteEmpty bool

	Now func() time.Time
}

// FlushResult reports what a Flush did.
type FlushResult struct {
	ID      string `json:"id,omitempty"`
	Written bool   `json:"written"`
	Skipped string `json:"skipped,omitempty"`
	Entries int    `json:"entries"`
	Path    string `json:"path,omitempty"`
	Err     error  `json:"-"`
}

// Aggregator recomputes and writes the summary file.
type Aggregator struct {
	docs     Documents
	recorder Recorder
	opts     Options
	busy     atomic.Bool
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewAggregator returns an aggregator. recorder may be nil.
func NewAggregator(docs Documents, recorder Recorder, opts Options, logger *slog.Logger, m *metrics.Metrics) *Aggregator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Aggregator{docs: docs, recorder: recorder, opts: opts, logger: logger, metrics: m}
}

// Snapshot computes the current summary without writing it.
func (a *Aggregator) Snapshot() Summary {
	return Compute(a.docs.Loaded(), a.opts.Icons, a.opts.Now())
}

// Flush recomputes the whole table and overwrites the output file. A call
// made while another flush runs returns immediately with Skipped "busy".
// With no findings anywhere the file is left untouched unless WriteEmpty
// is set. Failures are logged and returned in the result, never raised.
func (a *Aggregator) Flush(ctx context.Context) FlushResult {
	if !a.busy.CompareAndSwap(false, true) {
		a.metrics.Flushed(SkippedBusy, 0)
		return FlushResult{Skipped: SkippedBusy}
	}
	defer a.busy.Store(false)

	now := a.opts.Now()
	summary := Compute(a.docs.Loaded(), a.opts.Icons, now)
	if len(summary) == 0 && !a.opts.WriteEmpty {
		a.logger.Debug("no diagnostics, summary left as is", "path", a.opts.OutputPath)
		a.metrics.Flushed(SkippedEmpty, 0)
		return FlushResult{Skipped: SkippedEmpty, Path: a.opts.OutputPath}
	}

	data, err := Encode(summary, a.opts.Format)
	if err != nil {
		a.logger.Error("encode summary failed", "format", a.opts.Format, "error", err)
		a.metrics.Flushed("error", 0)
		return FlushResult{Path: a.opts.OutputPath, Err: errors.NewInternal(err)}
	}
	if err := WriteFile(a.opts.OutputPath, data); err != nil {
		a.logger.Error("write summary failed", "path", a.opts.OutputPath, "error", err)
		a.metrics.Flushed("error", 0)
		return FlushResult{Path: a.opts.OutputPath, Err: errors.NewIOFailure("write", a.opts.OutputPath, err)}
	}

	res := FlushResult{
		ID:      ulid.Make().String(),
		Written: true,
		Entries: len(summary),
		Path:    a.opts.OutputPath,
	}
	a.metrics.Flushed("written", res.Entries)
	a.logger.Info("summary written", "flush", res.ID, "path", res.Path, "entries", res.Entries)

	if a.recorder != nil {
		rec := FlushRecord{ID: res.ID, Path: res.Path, Format: a.opts.Format, WrittenAt: now, Entries: summary}
		if err := a.recorder.RecordFlush(ctx, rec); err != nil {
			a.logger.Warn("record flush failed", "flush", res.ID, "error", err)
		}
	}
	return res
}
