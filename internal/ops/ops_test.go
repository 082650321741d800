package ops

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/hpungsan/lspwarm/internal/config"
	"github.com/hpungsan/lspwarm/internal/db"
	"github.com/hpungsan/lspwarm/internal/diagnostics"
	"github.com/hpungsan/lspwarm/internal/errors"
)

// testSetup creates a temporary database and a config rooted in a temp home.
func testSetup(t *testing.T) (*sql.DB, *config.Config) {
	t.Helper()

	home := t.TempDir()
	database, err := db.Init(home)
	if err != nil {
		t.Fatalf("db.Init failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	cfg.HomeDir = home
	return database, cfg
}

// recordFlush journals a flush with the given entries at unix second at.
func recordFlush(t *testing.T, database *sql.DB, id string, at int64, entries diagnostics.Summary) {
	t.Helper()
	err := db.NewRecorder(database).RecordFlush(context.Background(), diagnostics.FlushRecord{
		ID:        id,
		Path:      "/out/diagnostics.json",
		Format:    config.FormatJSON,
		WrittenAt: time.Unix(at, 0),
		Entries:   entries,
	})
	if err != nil {
		t.Fatalf("RecordFlush(%s) failed: %v", id, err)
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		n, want int
	}{
		{0, 20},
		{-5, 20},
		{7, 7},
		{500, 100},
	}
	for _, tt := range tests {
		if got := clamp(tt.n, DefaultListLimit, MaxListLimit); got != tt.want {
			t.Errorf("clamp(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}

func TestCountSeverities(t *testing.T) {
	s := diagnostics.Summary{
		"/a": {Severity: 1},
		"/b": {Severity: 1},
		"/c": {Severity: 2},
		"/d": {Severity: 4},
	}
	c := countSeverities(s)
	if c.Errors != 2 || c.Warnings != 1 || c.Infos != 0 || c.Hints != 1 {
		t.Errorf("countSeverities = %+v", c)
	}
}

type fakeFlusher struct {
	res   diagnostics.FlushResult
	calls int
}

func (f *fakeFlusher) Flush(context.Context) diagnostics.FlushResult {
	f.calls++
	return f.res
}

func TestFlush_NoDaemon(t *testing.T) {
	_, err := Flush(context.Background(), nil)
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("Flush(nil) error = %v, want INVALID_REQUEST", err)
	}
}

func TestFlush_Written(t *testing.T) {
	f := &fakeFlusher{res: diagnostics.FlushResult{ID: "01F", Written: true, Entries: 3, Path: "/out"}}

	out, err := Flush(context.Background(), f)
	if err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if f.calls != 1 {
		t.Errorf("flusher calls = %d, want 1", f.calls)
	}
	if !out.Written || out.ID != "01F" || out.Entries != 3 {
		t.Errorf("Flush output = %+v", out)
	}
}

func TestFlush_SkippedIsNotAnError(t *testing.T) {
	f := &fakeFlusher{res: diagnostics.FlushResult{Skipped: diagnostics.SkippedEmpty}}

	out, err := Flush(context.Background(), f)
	if err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if out.Written || out.Skipped != diagnostics.SkippedEmpty {
		t.Errorf("Flush output = %+v", out)
	}
}

func TestFlush_WriteErrorPropagates(t *testing.T) {
	f := &fakeFlusher{res: diagnostics.FlushResult{Path: "/out", Err: errors.NewIOFailure("write", "/out", nil)}}

	_, err := Flush(context.Background(), f)
	if !errors.Is(err, errors.ErrIOFailure) {
		t.Errorf("Flush error = %v, want IO_FAILURE", err)
	}
}

func TestFlush_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := &fakeFlusher{}
	_, err := Flush(ctx, f)
	if !errors.Is(err, errors.ErrCancelled) {
		t.Errorf("Flush error = %v, want CANCELLED", err)
	}
	if f.calls != 0 {
		t.Errorf("flusher should not be called after cancellation")
	}
}
