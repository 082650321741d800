package lsp

import "encoding/json"

// Methods used by the client.
const (
	MethodInitialize             = "initialize"
	MethodInitialized            = "initialized"
	MethodShutdown               = "shutdown"
	MethodExit                   = "exit"
	MethodDidOpen                = "textDocument/didOpen"
	MethodPublishDiagnostics     = "textDocument/publishDiagnostics"
	MethodWorkspaceConfiguration = "workspace/configuration"
)

// DiagnosticSeverity follows the LSP numbering: lower is more severe.
type DiagnosticSeverity int

const (
	SeverityError       DiagnosticSeverity = 1
	SeverityWarning     DiagnosticSeverity = 2
	SeverityInformation DiagnosticSeverity = 3
	SeverityHint        DiagnosticSeverity = 4
)

// Position is a zero-based line and UTF-16 character offset.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a half-open span in a document.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Diagnostic is one finding reported by a server.
// Severity is zero when the server omitted it.
type Diagnostic struct {
	Range    Range              `json:"range"`
	Severity DiagnosticSeverity `json:"severity,omitempty"`
	Code     any                `json:"code,omitempty"`
	Source   string             `json:"source,omitempty"`
	Message  string             `json:"message"`
}

// PublishDiagnosticsParams is the payload of textDocument/publishDiagnostics.
type PublishDiagnosticsParams struct {
	URI         string       `json:"uri"`
	Version     *int         `json:"version,omitempty"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

// TextDocumentItem carries a full document on didOpen.
type TextDocumentItem struct {
	URI        string `json:"uri"`
	LanguageID string `json:"languageId"`
	Version    int    `json:"version"`
	Text       string `json:"text"`
}

// DidOpenTextDocumentParams is the payload of textDocument/didOpen.
type DidOpenTextDocumentParams struct {
	TextDocument TextDocumentItem `json:"textDocument"`
}

// WorkspaceFolder names a root the client works in.
type WorkspaceFolder struct {
	URI  string `json:"uri"`
	Name string `json:"name"`
}

// InitializeParams is sent with the initialize request.
type InitializeParams struct {
	ProcessID        int                `json:"processId"`
	ClientInfo       *ClientInfo        `json:"clientInfo,omitempty"`
	RootURI          string             `json:"rootUri,omitempty"`
	RootPath         string             `json:"rootPath,omitempty"`
	Capabilities     ClientCapabilities `json:"capabilities"`
	WorkspaceFolders []WorkspaceFolder  `json:"workspaceFolders,omitempty"`
}

// ClientInfo identifies lspwarm to the server.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// ClientCapabilities lists the features this client supports.
type ClientCapabilities struct {
	TextDocument TextDocumentClientCapabilities `json:"textDocument"`
	Workspace    WorkspaceClientCapabilities    `json:"workspace"`
}

// TextDocumentClientCapabilities covers document sync and diagnostics.
type TextDocumentClientCapabilities struct {
	Synchronization    *SynchronizationCapabilities    `json:"synchronization,omitempty"`
	PublishDiagnostics *PublishDiagnosticsCapabilities `json:"publishDiagnostics,omitempty"`
}

// SynchronizationCapabilities describes didOpen/didSave support.
type SynchronizationCapabilities struct {
	DidSave bool `json:"didSave,omitempty"`
}

// PublishDiagnosticsCapabilities describes publishDiagnostics support.
type PublishDiagnosticsCapabilities struct {
	VersionSupport bool `json:"versionSupport,omitempty"`
}

// WorkspaceClientCapabilities covers workspace features.
type WorkspaceClientCapabilities struct {
	Configuration    bool `json:"configuration,omitempty"`
	WorkspaceFolders bool `json:"workspaceFolders,omitempty"`
}

// InitializeResult is the server's answer to initialize.
type InitializeResult struct {
	Capabilities ServerCapabilities `json:"capabilities"`
	ServerInfo   *ServerInfo        `json:"serverInfo,omitempty"`
}

// ServerInfo is the optional name/version a server reports.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// ServerCapabilities keeps only the fields lspwarm inspects.
// TextDocumentSync is either a number (TextDocumentSyncKind) or an options object.
type ServerCapabilities struct {
	TextDocumentSync json.RawMessage `json:"textDocumentSync,omitempty"`
}

type textDocumentSyncOptions struct {
	OpenClose bool `json:"openClose"`
	Change    int  `json:"change"`
}

// SupportsOpen reports whether the server wants didOpen notifications.
// A bare sync kind above None implies openClose.
func (c ServerCapabilities) SupportsOpen() bool {
	if len(c.TextDocumentSync) == 0 {
		return false
	}
	var kind int
	if err := json.Unmarshal(c.TextDocumentSync, &kind); err == nil {
		return kind > 0
	}
	var opts textDocumentSyncOptions
	if err := json.Unmarshal(c.TextDocumentSync, &opts); err == nil {
		return opts.OpenClose
	}
	return false
}

// ConfigurationParams is the payload of workspace/configuration.
type ConfigurationParams struct {
	Items []json.RawMessage `json:"items"`
}
