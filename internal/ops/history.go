package ops

import (
	"database/sql"
	"strings"

	"github.com/hpungsan/lspwarm/internal/db"
	"github.com/hpungsan/lspwarm/internal/errors"
)

// HistoryInput contains parameters for the History operation.
type HistoryInput struct {
	Limit  int // default: 20, max: 100
	Offset int // default: 0
}

// HistoryOutput contains the result of the History operation.
type HistoryOutput struct {
	Items      []db.Flush `json:"items"`
	Pagination Pagination `json:"pagination"`
	Sort       string     `json:"sort"`
}

// History lists journaled flushes, newest first.
func History(database *sql.DB, input HistoryInput) (*HistoryOutput, error) {
	limit := clamp(input.Limit, DefaultListLimit, MaxListLimit)
	offset := max(input.Offset, 0)

	items, total, err := db.ListFlushes(database, limit, offset)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []db.Flush{}
	}

	return &HistoryOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
			Total:   total,
		},
		Sort: "written_at_desc",
	}, nil
}

// ShowInput contains parameters for the Show operation.
type ShowInput struct {
	ID string // required
}

// ShowOutput is one flush with its entries.
type ShowOutput struct {
	Flush   db.Flush        `json:"flush"`
	Counts  SeverityCounts  `json:"counts"`
	Entries []db.FlushEntry `json:"entries"`
}

// Show retrieves a journaled flush by id.
func Show(database *sql.DB, input ShowInput) (*ShowOutput, error) {
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}

	f, err := db.GetFlush(database, id)
	if err != nil {
		return nil, err
	}
	entries, err := db.GetEntries(database, id)
	if err != nil {
		return nil, err
	}

	return &ShowOutput{
		Flush:   *f,
		Counts:  countSeverities(db.EntriesToSummary(entries)),
		Entries: entries,
	}, nil
}
