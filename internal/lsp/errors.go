package lsp

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by calls on a connection whose peer went away.
	ErrClosed = errors.New("lsp connection closed")

	// ErrServerNotInstalled indicates the server binary was not found on PATH.
	ErrServerNotInstalled = errors.New("lsp server not installed")

	// ErrInitializeFailed indicates the initialize handshake failed.
	ErrInitializeFailed = errors.New("lsp initialize failed")

	// ErrRequestTimeout indicates the request's context ended before a response.
	ErrRequestTimeout = errors.New("lsp request timeout")
)

// JSON-RPC error codes used when answering server requests.
const (
	CodeMethodNotFound = -32601
	CodeInternalError  = -32603
)

// LSPError is a JSON-RPC error response.
type LSPError struct {
	Code    int
	Message string
	Data    any
}

func (e *LSPError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("LSP error %d: %s (data: %v)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("LSP error %d: %s", e.Code, e.Message)
}

// IsMethodNotFound reports whether the server did not implement the method.
func (e *LSPError) IsMethodNotFound() bool {
	return e.Code == CodeMethodNotFound
}
