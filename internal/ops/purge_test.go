package ops

import (
	"context"
	"testing"
	"time"

	"github.com/hpungsan/lspwarm/internal/db"
	"github.com/hpungsan/lspwarm/internal/diagnostics"
	"github.com/hpungsan/lspwarm/internal/errors"
)

func TestPurge_All(t *testing.T) {
	database, _ := testSetup(t)
	now := time.Unix(1_700_000_000, 0)

	recordFlush(t, database, "01P1", now.Unix()-100, nil)
	recordFlush(t, database, "01P2", now.Unix(), diagnostics.Summary{"/a.go": {Severity: 1, Count: 1}})

	output, err := Purge(context.Background(), database, PurgeInput{Now: now})
	if err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if output.Purged != 2 {
		t.Errorf("Purged = %d, want 2", output.Purged)
	}
	if output.Message != "Permanently deleted 2 flushes" {
		t.Errorf("Message = %q", output.Message)
	}
}

func TestPurge_OlderThan(t *testing.T) {
	database, _ := testSetup(t)
	now := time.Unix(1_700_000_000, 0)
	day := int64(24 * 60 * 60)

	recordFlush(t, database, "01RECENT", now.Unix()-day, nil)
	recordFlush(t, database, "01OLD", now.Unix()-15*day, nil)

	output, err := Purge(context.Background(), database, PurgeInput{OlderThan: 7 * 24 * time.Hour, Now: now})
	if err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if output.Purged != 1 {
		t.Errorf("Purged = %d, want 1", output.Purged)
	}

	if _, err := db.GetFlush(database, "01RECENT"); err != nil {
		t.Errorf("recent flush should survive: %v", err)
	}
	if _, err := db.GetFlush(database, "01OLD"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("old flush should be gone, got %v", err)
	}
}

func TestPurge_Empty(t *testing.T) {
	database, _ := testSetup(t)

	output, err := Purge(context.Background(), database, PurgeInput{})
	if err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if output.Purged != 0 {
		t.Errorf("Purged = %d, want 0", output.Purged)
	}
	if output.Message != "No flushes to purge" {
		t.Errorf("Message = %q", output.Message)
	}
}

func TestPurge_NegativeWindow(t *testing.T) {
	database, _ := testSetup(t)

	_, err := Purge(context.Background(), database, PurgeInput{OlderThan: -time.Hour})
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("Purge error = %v, want INVALID_REQUEST", err)
	}
}

func TestFormatPurgeMessage(t *testing.T) {
	tests := []struct {
		count     int
		olderThan time.Duration
		want      string
	}{
		{0, 0, "No flushes to purge"},
		{1, 0, "Permanently deleted 1 flush"},
		{3, 48 * time.Hour, "Permanently deleted 3 flushes (written more than 48h0m0s ago)"},
	}
	for _, tt := range tests {
		if got := formatPurgeMessage(tt.count, tt.olderThan); got != tt.want {
			t.Errorf("formatPurgeMessage(%d, %v) = %q, want %q", tt.count, tt.olderThan, got, tt.want)
		}
	}
}
