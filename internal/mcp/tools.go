package mcp

import "github.com/mark3labs/mcp-go/mcp"

var scanToolDef = mcp.NewTool("workspace_scan",
	mcp.WithDescription("Preview what a warm-up run from a directory would open: walks the tree with the configured ignore rules and file cap, detects each file's filetype and names the language server that would receive it. Starts no server."),
	mcp.WithString("root", mcp.Required(), mcp.Description("Directory to walk")),
	mcp.WithNumber("limit", mcp.Description("Files to return (default 200, max 5000)")),
	mcp.WithNumber("offset", mcp.Description("Files to skip (default 0)")),
)

var summaryToolDef = mcp.NewTool("diagnostics_summary",
	mcp.WithDescription("Read the current diagnostics summary: one entry per document with its most severe finding, icon and count. Falls back to the latest journaled flush when no summary file exists."),
	mcp.WithBoolean("from_journal", mcp.Description("Read the latest journaled flush instead of the summary file")),
)

var historyToolDef = mcp.NewTool("diagnostics_history",
	mcp.WithDescription("List journaled summary flushes, newest first."),
	mcp.WithNumber("limit", mcp.Description("Items per page (default 20, max 100)")),
	mcp.WithNumber("offset", mcp.Description("Items to skip (default 0)")),
	mcp.WithString("id", mcp.Description("Return a single flush with its entries instead of a page")),
)

var flushToolDef = mcp.NewTool("diagnostics_flush",
	mcp.WithDescription("Recompute and write the diagnostics summary now instead of waiting for the debounce window. Requires a daemon started with `lspwarm run --mcp`."),
)

var purgeToolDef = mcp.NewTool("diagnostics_purge",
	mcp.WithDescription("Permanently delete journaled flushes. Without older_than_days every flush is removed."),
	mcp.WithNumber("older_than_days", mcp.Description("Only delete flushes written more than N days ago")),
)
