package ops

import (
	"database/sql"
	"io"

	"github.com/hpungsan/lspwarm/internal/config"
	"github.com/hpungsan/lspwarm/internal/db"
	"github.com/hpungsan/lspwarm/internal/diagnostics"
	"github.com/hpungsan/lspwarm/internal/errors"
)

// Summary sources
const (
	SourceFile    = "file"
	SourceJournal = "journal"
)

// SummaryInput contains parameters for the Summary operation.
type SummaryInput struct {
	FromJournal bool // read the latest journaled flush instead of the output file
}

// SummaryOutput contains the result of the Summary operation.
type SummaryOutput struct {
	Source    string              `json:"source"`
	Path      string              `json:"path"`
	FlushID   string              `json:"flush_id,omitempty"`
	Documents int                 `json:"documents"`
	Counts    SeverityCounts      `json:"counts"`
	Entries   diagnostics.Summary `json:"entries"`
}

// Summary reads the current diagnostics summary. The output file is
// authoritative; when it does not exist yet (or FromJournal is set) the most
// recent journaled flush is used instead.
func Summary(database *sql.DB, cfg *config.Config, input SummaryInput) (*SummaryOutput, error) {
	path := cfg.OutputPath()

	if !input.FromJournal {
		entries, err := readSummaryFile(path, cfg.Output.Format)
		if err == nil {
			return newSummaryOutput(SourceFile, path, "", entries), nil
		}
		if !errors.Is(err, errors.ErrFileNotFound) || database == nil {
			return nil, err
		}
	}

	if database == nil {
		return nil, errors.NewInvalidRequest("history store is not available")
	}
	latest, err := db.LatestFlush(database)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, errors.NewNotFound("flush", "latest")
	}
	rows, err := db.GetEntries(database, latest.ID)
	if err != nil {
		return nil, err
	}
	return newSummaryOutput(SourceJournal, latest.Path, latest.ID, db.EntriesToSummary(rows)), nil
}

func newSummaryOutput(source, path, flushID string, entries diagnostics.Summary) *SummaryOutput {
	return &SummaryOutput{
		Source:    source,
		Path:      path,
		FlushID:   flushID,
		Documents: len(entries),
		Counts:    countSeverities(entries),
		Entries:   entries,
	}
}

// readSummaryFile decodes the summary file at path without following a
// symlink in the final component.
func readSummaryFile(path, format string) (diagnostics.Summary, error) {
	f, err := openFileNoFollowRead(path)
	if err != nil {
		if _, ok := err.(*errors.WarmError); ok {
			return nil, err
		}
		return nil, errors.NewIOFailure("open", path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.NewIOFailure("read", path, err)
	}
	entries, err := diagnostics.Decode(data, format)
	if err != nil {
		return nil, errors.NewIOFailure("decode", path, err)
	}
	return entries, nil
}
