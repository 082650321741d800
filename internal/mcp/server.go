package mcp

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/lspwarm/internal/config"
	"github.com/hpungsan/lspwarm/internal/ops"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"workspace_scan": {
		def:     scanToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleScan },
	},
	"diagnostics_summary": {
		def:     summaryToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSummary },
	},
	"diagnostics_history": {
		def:     historyToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleHistory },
	},
	"diagnostics_flush": {
		def:     flushToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFlush },
	},
	"diagnostics_purge": {
		def:     purgeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePurge },
	},
}

// AllToolNames returns a sorted list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// Options configures an MCP server.
type Options struct {
	Version string
	Flusher ops.Flusher // nil outside `lspwarm run --mcp`
	Logger  *slog.Logger
}

// NewServer creates a new MCP server with lspwarm tools registered.
// Tools listed in cfg.DisabledTools are excluded from registration.
func NewServer(db *sql.DB, cfg *config.Config, opts Options) *server.MCPServer {
	s := server.NewMCPServer(
		"lspwarm",
		opts.Version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(db, cfg, opts.Flusher, opts.Logger)

	disabled := make(map[string]bool, len(cfg.DisabledTools))
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run serves MCP on stdio until stdin closes.
func Run(db *sql.DB, cfg *config.Config, opts Options) error {
	return server.ServeStdio(NewServer(db, cfg, opts))
}

// Serve serves MCP over r/w until ctx is cancelled or r reaches EOF.
func Serve(ctx context.Context, db *sql.DB, cfg *config.Config, opts Options, r io.Reader, w io.Writer) error {
	return server.NewStdioServer(NewServer(db, cfg, opts)).Listen(ctx, r, w)
}
