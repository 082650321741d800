package ops

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hpungsan/lspwarm/internal/db"
	"github.com/hpungsan/lspwarm/internal/errors"
)

// PurgeInput contains parameters for the Purge operation.
type PurgeInput struct {
	OlderThan time.Duration // flushes written before now-OlderThan are removed; zero removes all
	Now       time.Time     // defaults to time.Now()
}

// PurgeOutput contains the result of the Purge operation.
type PurgeOutput struct {
	Purged  int    `json:"purged"`
	Message string `json:"message"`
}

// Purge permanently deletes journaled flushes and their entries.
func Purge(ctx context.Context, database *sql.DB, input PurgeInput) (*PurgeOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelled("purge")
	}
	if input.OlderThan < 0 {
		return nil, errors.NewInvalidRequest("older_than must not be negative")
	}

	now := input.Now
	if now.IsZero() {
		now = time.Now()
	}
	// +1 so a zero window also removes flushes written this second.
	cutoff := now.Add(-input.OlderThan).Unix()
	if input.OlderThan == 0 {
		cutoff++
	}

	count, err := db.PurgeBefore(database, cutoff)
	if err != nil {
		return nil, err
	}

	return &PurgeOutput{
		Purged:  count,
		Message: formatPurgeMessage(count, input.OlderThan),
	}, nil
}

// formatPurgeMessage creates a human-readable message for the purge result.
func formatPurgeMessage(count int, olderThan time.Duration) string {
	if count == 0 {
		return "No flushes to purge"
	}

	flushWord := "flush"
	if count > 1 {
		flushWord = "flushes"
	}

	msg := fmt.Sprintf("Permanently deleted %d %s", count, flushWord)

	if olderThan > 0 {
		msg += fmt.Sprintf(" (written more than %s ago)", olderThan)
	}

	return msg
}
