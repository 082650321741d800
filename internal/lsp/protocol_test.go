package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakePeer is the server end of an in-memory connection.
type fakePeer struct {
	frames *Conn
}

func (p *fakePeer) read(t *testing.T) message {
	t.Helper()
	body, err := p.frames.readFrame()
	require.NoError(t, err)
	var msg message
	require.NoError(t, json.Unmarshal(body, &msg))
	return msg
}

func (p *fakePeer) send(v any) error {
	return p.frames.write(v)
}

// newPipe returns the client's reader and writer plus the fake server end.
func newPipe() (io.Reader, io.WriteCloser, *fakePeer) {
	clientR, serverW := io.Pipe()
	serverR, clientW := io.Pipe()
	peer := &fakePeer{frames: &Conn{reader: bufio.NewReader(serverR), writer: serverW}}
	return clientR, clientW, peer
}

func rawID(s string) *json.RawMessage {
	raw := json.RawMessage(s)
	return &raw
}

func TestConn_CallDecodesResult(t *testing.T) {
	r, w, peer := newPipe()
	conn := NewConn(r, w, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go func() { _ = conn.ReadLoop(ctx) }()

	type reply struct{ Answer int }
	got := make(chan error, 1)
	var out reply
	go func() { got <- conn.Call(ctx, "test/echo", map[string]int{"n": 1}, &out) }()

	req := peer.read(t)
	require.Equal(t, "test/echo", req.Method)
	require.NoError(t, peer.send(message{JSONRPC: "2.0", ID: req.ID, Result: json.RawMessage(`{"Answer":42}`)}))

	require.NoError(t, <-got)
	require.Equal(t, 42, out.Answer)
}

func TestConn_CallReturnsLSPError(t *testing.T) {
	r, w, peer := newPipe()
	conn := NewConn(r, w, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go func() { _ = conn.ReadLoop(ctx) }()

	got := make(chan error, 1)
	go func() { got <- conn.Call(ctx, "test/missing", nil, nil) }()

	req := peer.read(t)
	require.NoError(t, peer.send(message{JSONRPC: "2.0", ID: req.ID, Error: &ResponseError{Code: CodeMethodNotFound, Message: "nope"}}))

	err := <-got
	var lspErr *LSPError
	require.True(t, errors.As(err, &lspErr))
	require.True(t, lspErr.IsMethodNotFound())
}

func TestConn_DispatchesNotifications(t *testing.T) {
	r, w, peer := newPipe()
	received := make(chan PublishDiagnosticsParams, 1)
	conn := NewConn(r, w, func(method string, params json.RawMessage) {
		if method != MethodPublishDiagnostics {
			return
		}
		var p PublishDiagnosticsParams
		if err := json.Unmarshal(params, &p); err == nil {
			received <- p
		}
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go func() { _ = conn.ReadLoop(ctx) }()

	require.NoError(t, peer.send(notification{
		JSONRPC: "2.0",
		Method:  MethodPublishDiagnostics,
		Params: PublishDiagnosticsParams{
			URI:         "file:///proj/a.go",
			Diagnostics: []Diagnostic{{Severity: SeverityWarning, Message: "unused"}},
		},
	}))

	select {
	case p := <-received:
		require.Equal(t, "file:///proj/a.go", p.URI)
		require.Len(t, p.Diagnostics, 1)
		require.Equal(t, SeverityWarning, p.Diagnostics[0].Severity)
	case <-ctx.Done():
		t.Fatal("notification not dispatched")
	}
}

func TestConn_AnswersServerRequests(t *testing.T) {
	r, w, peer := newPipe()
	conn := NewConn(r, w, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go func() { _ = conn.ReadLoop(ctx) }()

	go func() {
		_ = peer.send(message{
			JSONRPC: "2.0",
			ID:      rawID(`"cfg-1"`),
			Method:  MethodWorkspaceConfiguration,
			Params:  json.RawMessage(`{"items":[{"section":"gopls"},{"section":"go"}]}`),
		})
	}()

	reply := peer.read(t)
	require.Equal(t, `"cfg-1"`, string(*reply.ID))
	require.JSONEq(t, `[null,null]`, string(reply.Result))

	go func() {
		_ = peer.send(message{JSONRPC: "2.0", ID: rawID(`7`), Method: "window/workDoneProgress/create"})
	}()
	reply = peer.read(t)
	require.Equal(t, `7`, string(*reply.ID))
}

func TestConn_CloseFailsPendingCalls(t *testing.T) {
	r, w, peer := newPipe()
	conn := NewConn(r, w, nil)

	got := make(chan error, 1)
	go func() { got <- conn.Call(context.Background(), "test/slow", nil, nil) }()

	peer.read(t)
	conn.Close()

	require.ErrorIs(t, <-got, ErrClosed)
	require.ErrorIs(t, conn.Notify("x", nil), ErrClosed)
}

func TestConn_CallRacingCloseNeverHangs(t *testing.T) {
	for round := 0; round < 20; round++ {
		r, _ := io.Pipe()
		conn := NewConn(r, io.Discard, nil)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)

		const callers = 16
		start := make(chan struct{})
		got := make(chan error, callers)
		for i := 0; i < callers; i++ {
			go func() {
				<-start
				got <- conn.Call(ctx, "test/slow", nil, nil)
			}()
		}
		close(start)
		conn.Close()

		for i := 0; i < callers; i++ {
			select {
			case err := <-got:
				require.ErrorIs(t, err, ErrClosed)
			case <-time.After(2 * time.Second):
				t.Fatalf("round %d: call still blocked after Close", round)
			}
		}
		cancel()
	}
}

func TestConn_ReadLoopEndsOnEOF(t *testing.T) {
	clientR, serverW := io.Pipe()
	_, clientW := io.Pipe()
	conn := NewConn(clientR, clientW, nil)

	done := make(chan error, 1)
	go func() { done <- conn.ReadLoop(context.Background()) }()
	require.NoError(t, serverW.Close())

	require.NoError(t, <-done)
	require.True(t, conn.Closed())
}

func TestSupportsOpen(t *testing.T) {
	tests := []struct {
		name string
		sync string
		want bool
	}{
		{"absent", ``, false},
		{"kind none", `0`, false},
		{"kind full", `1`, true},
		{"kind incremental", `2`, true},
		{"options openClose", `{"openClose":true,"change":2}`, true},
		{"options without openClose", `{"change":2}`, false},
		{"garbage", `"yes"`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caps := ServerCapabilities{TextDocumentSync: json.RawMessage(tt.sync)}
			if got := caps.SupportsOpen(); got != tt.want {
				t.Errorf("SupportsOpen() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestURIRoundTrip(t *testing.T) {
	uri := PathToURI("/proj/my dir/a.go")
	require.Equal(t, "file:///proj/my%20dir/a.go", uri)
	require.Equal(t, "/proj/my dir/a.go", URIToPath(uri))
	require.Equal(t, "", URIToPath("untitled:Untitled-1"))
}
