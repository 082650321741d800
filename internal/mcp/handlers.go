package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/lspwarm/internal/config"
	"github.com/hpungsan/lspwarm/internal/errors"
	"github.com/hpungsan/lspwarm/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db      *sql.DB
	cfg     *config.Config
	flusher ops.Flusher
	logger  *slog.Logger
}

// NewHandlers creates a new Handlers instance. flusher may be nil when no
// daemon runs in this process.
func NewHandlers(db *sql.DB, cfg *config.Config, flusher ops.Flusher, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handlers{db: db, cfg: cfg, flusher: flusher, logger: logger}
}

// Request types for each tool

// ScanRequest represents the arguments for workspace_scan.
type ScanRequest struct {
	Root   string `json:"root"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// SummaryRequest represents the arguments for diagnostics_summary.
type SummaryRequest struct {
	FromJournal bool `json:"from_journal,omitempty"`
}

// HistoryRequest represents the arguments for diagnostics_history.
type HistoryRequest struct {
	ID     string `json:"id,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// PurgeRequest represents the arguments for diagnostics_purge.
type PurgeRequest struct {
	OlderThanDays *int `json:"older_than_days,omitempty"`
}

// HandleScan handles the workspace_scan tool call.
func (h *Handlers) HandleScan(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ScanRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Scan(ctx, h.cfg, ops.ScanInput{
		Root:   input.Root,
		Limit:  input.Limit,
		Offset: input.Offset,
	}, h.logger)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSummary handles the diagnostics_summary tool call.
func (h *Handlers) HandleSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SummaryRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Summary(h.db, h.cfg, ops.SummaryInput{FromJournal: input.FromJournal})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleHistory handles the diagnostics_history tool call.
func (h *Handlers) HandleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[HistoryRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	if input.ID != "" {
		result, err := ops.Show(h.db, ops.ShowInput{ID: input.ID})
		if err != nil {
			return errorResult(err), nil
		}
		return successResult(result)
	}

	result, err := ops.History(h.db, ops.HistoryInput{
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleFlush handles the diagnostics_flush tool call.
func (h *Handlers) HandleFlush(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.Flush(ctx, h.flusher)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandlePurge handles the diagnostics_purge tool call.
func (h *Handlers) HandlePurge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PurgeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	var olderThan time.Duration
	if input.OlderThanDays != nil {
		if *input.OlderThanDays < 0 {
			return errorResult(errors.NewInvalidRequest("older_than_days must not be negative")), nil
		}
		olderThan = time.Duration(*input.OlderThanDays) * 24 * time.Hour
	}

	result, err := ops.Purge(ctx, h.db, ops.PurgeInput{OlderThan: olderThan})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are never exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var wErr *errors.WarmError
	if stderrors.As(err, &wErr) {
		msg := wErr.Message
		if error(wErr) != err {
			// keep wrapper context such as "flushes[2]: ..."
			msg = err.Error()
		}
		errorObj := map[string]any{
			"code":    wErr.Code,
			"message": msg,
			"status":  wErr.Status,
		}
		if wErr.Code == errors.ErrInternal {
			errorObj["message"] = "an internal error occurred"
		} else if wErr.Details != nil {
			errorObj["details"] = wErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
