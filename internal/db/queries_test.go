package db

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/hpungsan/lspwarm/internal/diagnostics"
	"github.com/hpungsan/lspwarm/internal/errors"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func insertTestFlush(t *testing.T, db *sql.DB, id string, writtenAt int64, keys ...string) {
	t.Helper()
	entries := make([]FlushEntry, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, FlushEntry{DocKey: k, Severity: 1, Icon: "E", Count: 2, Time: "2026-01-02 03:04:05"})
	}
	f := &Flush{ID: id, Path: "/out/diagnostics.json", Format: "json", EntryCount: len(entries), WrittenAt: writtenAt}
	if err := InsertFlush(context.Background(), db, f, entries); err != nil {
		t.Fatalf("InsertFlush(%s) failed: %v", id, err)
	}
}

func TestInsertAndGetFlush(t *testing.T) {
	db := openTestDB(t)
	insertTestFlush(t, db, "01A", 100, "/b.go", "/a.go")

	f, err := GetFlush(db, "01A")
	if err != nil {
		t.Fatalf("GetFlush failed: %v", err)
	}
	if f.EntryCount != 2 || f.Format != "json" || f.WrittenAt != 100 {
		t.Errorf("GetFlush = %+v", f)
	}

	entries, err := GetEntries(db, "01A")
	if err != nil {
		t.Fatalf("GetEntries failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[0].DocKey != "/a.go" {
		t.Errorf("entries[0].DocKey = %q, want /a.go (ordered)", entries[0].DocKey)
	}
}

func TestGetFlush_NotFound(t *testing.T) {
	db := openTestDB(t)

	_, err := GetFlush(db, "missing")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("GetFlush error = %v, want NOT_FOUND", err)
	}
}

func TestInsertFlush_UniqueConstraint(t *testing.T) {
	db := openTestDB(t)
	insertTestFlush(t, db, "01A", 100)

	err := InsertFlush(context.Background(), db, &Flush{ID: "01A", Path: "p", Format: "json"}, nil)
	if err != ErrUniqueConstraint {
		t.Errorf("InsertFlush duplicate error = %v, want ErrUniqueConstraint", err)
	}
}

func TestLatestFlush(t *testing.T) {
	db := openTestDB(t)

	f, err := LatestFlush(db)
	if err != nil {
		t.Fatalf("LatestFlush failed: %v", err)
	}
	if f != nil {
		t.Fatalf("LatestFlush on empty journal = %+v, want nil", f)
	}

	insertTestFlush(t, db, "01A", 100)
	insertTestFlush(t, db, "01C", 300)
	insertTestFlush(t, db, "01B", 200)

	f, err = LatestFlush(db)
	if err != nil {
		t.Fatalf("LatestFlush failed: %v", err)
	}
	if f.ID != "01C" {
		t.Errorf("LatestFlush.ID = %q, want 01C", f.ID)
	}
}

func TestListFlushes_Pagination(t *testing.T) {
	db := openTestDB(t)
	insertTestFlush(t, db, "01A", 100)
	insertTestFlush(t, db, "01B", 200)
	insertTestFlush(t, db, "01C", 300)

	page, total, err := ListFlushes(db, 2, 0)
	if err != nil {
		t.Fatalf("ListFlushes failed: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if len(page) != 2 || page[0].ID != "01C" || page[1].ID != "01B" {
		t.Errorf("first page = %+v", page)
	}

	page, _, err = ListFlushes(db, 2, 2)
	if err != nil {
		t.Fatalf("ListFlushes failed: %v", err)
	}
	if len(page) != 1 || page[0].ID != "01A" {
		t.Errorf("second page = %+v", page)
	}
}

func TestListFlushes_Empty(t *testing.T) {
	db := openTestDB(t)

	page, total, err := ListFlushes(db, 10, 0)
	if err != nil {
		t.Fatalf("ListFlushes failed: %v", err)
	}
	if total != 0 || page == nil || len(page) != 0 {
		t.Errorf("ListFlushes = %v, %d; want empty non-nil slice", page, total)
	}
}

func TestPurgeBefore_CascadesEntries(t *testing.T) {
	db := openTestDB(t)
	insertTestFlush(t, db, "01A", 100, "/a.go")
	insertTestFlush(t, db, "01B", 200, "/b.go")

	n, err := PurgeBefore(db, 150)
	if err != nil {
		t.Fatalf("PurgeBefore failed: %v", err)
	}
	if n != 1 {
		t.Errorf("purged = %d, want 1", n)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM flush_entries WHERE flush_id = '01A'").Scan(&count); err != nil {
		t.Fatalf("count entries: %v", err)
	}
	if count != 0 {
		t.Errorf("entries for purged flush = %d, want 0", count)
	}

	if _, err := GetFlush(db, "01B"); err != nil {
		t.Errorf("GetFlush(01B) after purge: %v", err)
	}
}

func TestRecorder_RecordFlush(t *testing.T) {
	db := openTestDB(t)
	rec := NewRecorder(db)

	at := time.Unix(1700000000, 0)
	err := rec.RecordFlush(context.Background(), diagnostics.FlushRecord{
		ID:        "01REC",
		Path:      "/out/diagnostics.yaml",
		Format:    "yaml",
		WrittenAt: at,
		Entries: diagnostics.Summary{
			"/x/main.go":     {Severity: 2, Icon: "W", Count: 1, Time: "t"},
			"/x/has%20sp.go": {Severity: 1, Icon: "E", Count: 3, Time: "t"},
		},
	})
	if err != nil {
		t.Fatalf("RecordFlush failed: %v", err)
	}

	f, err := GetFlush(db, "01REC")
	if err != nil {
		t.Fatalf("GetFlush failed: %v", err)
	}
	if f.WrittenAt != at.Unix() || f.EntryCount != 2 || f.Format != "yaml" {
		t.Errorf("flush = %+v", f)
	}

	entries, err := GetEntries(db, "01REC")
	if err != nil {
		t.Fatalf("GetEntries failed: %v", err)
	}
	summary := EntriesToSummary(entries)
	if summary["/x/has%20sp.go"].Count != 3 {
		t.Errorf("summary = %+v", summary)
	}
}
