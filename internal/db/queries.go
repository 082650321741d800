package db

import (
	"context"
	"database/sql"
	"sort"
	"strings"

	"github.com/hpungsan/lspwarm/internal/diagnostics"
	"github.com/hpungsan/lspwarm/internal/errors"
)

// ErrUniqueConstraint is returned when an insert violates a UNIQUE constraint.
var ErrUniqueConstraint = &errors.WarmError{
	Code:    "UNIQUE_CONSTRAINT",
	Status:  409,
	Message: "unique constraint violation",
}

// Flush is one journaled summary write.
type Flush struct {
	ID         string `json:"id"`
	Path       string `json:"path"`
	Format     string `json:"format"`
	EntryCount int    `json:"entry_count"`
	WrittenAt  int64  `json:"written_at"`
}

// FlushEntry is one document row of a journaled flush.
type FlushEntry struct {
	DocKey   string `json:"doc_key"`
	Severity int    `json:"severity"`
	Icon     string `json:"icon"`
	Count    int    `json:"count"`
	Time     string `json:"time"`
}

// InsertFlush stores a flush and its entries in one transaction.
func InsertFlush(ctx context.Context, db *sql.DB, f *Flush, entries []FlushEntry) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewInternal(err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO flushes (id, path, format, entry_count, written_at)
		VALUES (?, ?, ?, ?, ?)
	`, f.ID, f.Path, f.Format, f.EntryCount, f.WrittenAt)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO flush_entries (flush_id, doc_key, severity, icon, count, time)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return errors.NewInternal(err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, f.ID, e.DocKey, e.Severity, e.Icon, e.Count, e.Time); err != nil {
			return errors.NewInternal(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	// SQLite returns "UNIQUE constraint failed: ..." for unique violations
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// GetFlush retrieves a flush by its ULID.
func GetFlush(db *sql.DB, id string) (*Flush, error) {
	row := db.QueryRow(`
		SELECT id, path, format, entry_count, written_at
		FROM flushes
		WHERE id = ?
	`, id)
	f, err := scanFlush(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("flush", id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return f, nil
}

// LatestFlush returns the most recent flush, or nil when the journal is empty.
func LatestFlush(db *sql.DB) (*Flush, error) {
	row := db.QueryRow(`
		SELECT id, path, format, entry_count, written_at
		FROM flushes
		ORDER BY written_at DESC, id DESC
		LIMIT 1
	`)
	f, err := scanFlush(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return f, nil
}

// ListFlushes returns flushes newest first along with the total count.
func ListFlushes(db *sql.DB, limit, offset int) ([]Flush, int, error) {
	var total int
	if err := db.QueryRow("SELECT COUNT(*) FROM flushes").Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	rows, err := db.Query(`
		SELECT id, path, format, entry_count, written_at
		FROM flushes
		ORDER BY written_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	flushes := []Flush{}
	for rows.Next() {
		var f Flush
		if err := rows.Scan(&f.ID, &f.Path, &f.Format, &f.EntryCount, &f.WrittenAt); err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		flushes = append(flushes, f)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	return flushes, total, nil
}

// GetEntries returns the entries of a flush ordered by document key.
func GetEntries(db *sql.DB, flushID string) ([]FlushEntry, error) {
	rows, err := db.Query(`
		SELECT doc_key, severity, icon, count, time
		FROM flush_entries
		WHERE flush_id = ?
		ORDER BY doc_key
	`, flushID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	entries := []FlushEntry{}
	for rows.Next() {
		var e FlushEntry
		if err := rows.Scan(&e.DocKey, &e.Severity, &e.Icon, &e.Count, &e.Time); err != nil {
			return nil, errors.NewInternal(err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return entries, nil
}

// PurgeBefore deletes flushes written before cutoff (unix seconds).
// Entries go with them via ON DELETE CASCADE.
func PurgeBefore(db *sql.DB, cutoff int64) (int, error) {
	result, err := db.Exec("DELETE FROM flushes WHERE written_at < ?", cutoff)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return int(n), nil
}

// scanFlush scans a single row into a Flush struct.
func scanFlush(row *sql.Row) (*Flush, error) {
	var f Flush
	if err := row.Scan(&f.ID, &f.Path, &f.Format, &f.EntryCount, &f.WrittenAt); err != nil {
		return nil, err
	}
	return &f, nil
}

// EntriesToSummary rebuilds a summary table from journaled entries.
func EntriesToSummary(entries []FlushEntry) diagnostics.Summary {
	out := make(diagnostics.Summary, len(entries))
	for _, e := range entries {
		out[e.DocKey] = diagnostics.Entry{Severity: e.Severity, Icon: e.Icon, Count: e.Count, Time: e.Time}
	}
	return out
}

// Recorder journals aggregator flushes into the database.
type Recorder struct {
	db *sql.DB
}

// NewRecorder returns a Recorder writing to db.
func NewRecorder(db *sql.DB) *Recorder {
	return &Recorder{db: db}
}

// RecordFlush implements diagnostics.Recorder.
func (r *Recorder) RecordFlush(ctx context.Context, rec diagnostics.FlushRecord) error {
	keys := make([]string, 0, len(rec.Entries))
	for k := range rec.Entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	entries := make([]FlushEntry, 0, len(keys))
	for _, k := range keys {
		e := rec.Entries[k]
		entries = append(entries, FlushEntry{DocKey: k, Severity: e.Severity, Icon: e.Icon, Count: e.Count, Time: e.Time})
	}

	f := &Flush{
		ID:         rec.ID,
		Path:       rec.Path,
		Format:     rec.Format,
		EntryCount: len(entries),
		WrittenAt:  rec.WrittenAt.Unix(),
	}
	return InsertFlush(ctx, r.db, f, entries)
}
