package ops

import (
	"context"

	"github.com/hpungsan/lspwarm/internal/errors"
)

// FlushOutput contains the result of the Flush operation.
type FlushOutput struct {
	ID      string `json:"id,omitempty"`
	Written bool   `json:"written"`
	Skipped string `json:"skipped,omitempty"`
	Entries int    `json:"entries"`
	Path    string `json:"path,omitempty"`
}

// Flush forces an aggregation through the running daemon.
func Flush(ctx context.Context, f Flusher) (*FlushOutput, error) {
	if f == nil {
		return nil, errors.NewInvalidRequest("no running daemon to flush; start one with `lspwarm run --mcp`")
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelled("flush")
	}

	res := f.Flush(ctx)
	if res.Err != nil {
		if _, ok := res.Err.(*errors.WarmError); ok {
			return nil, res.Err
		}
		return nil, errors.NewIOFailure("write", res.Path, res.Err)
	}

	return &FlushOutput{
		ID:      res.ID,
		Written: res.Written,
		Skipped: res.Skipped,
		Entries: res.Entries,
		Path:    res.Path,
	}, nil
}
