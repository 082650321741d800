package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

const jsonrpcVersion = "2.0"

// ResponseError is the error member of a JSON-RPC response.
type ResponseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// message is any inbound frame. Which fields are set tells requests,
// notifications and responses apart.
type message struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id,omitempty"`
	Method  string           `json:"method,omitempty"`
	Params  json.RawMessage  `json:"params,omitempty"`
	Result  json.RawMessage  `json:"result,omitempty"`
	Error   *ResponseError   `json:"error,omitempty"`
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
}

// NotificationHandler receives server notifications. It runs on the read
// loop goroutine and must not block.
type NotificationHandler func(method string, params json.RawMessage)

// Conn is a JSON-RPC 2.0 connection with LSP Content-Length framing.
//
// Requests the server sends to the client are answered with a null result
// (workspace/configuration gets one null per requested item), which is
// enough for servers to proceed with their defaults.
type Conn struct {
	reader  *bufio.Reader
	writer  io.Writer
	writeMu sync.Mutex

	nextID    atomic.Int64
	pendingMu sync.Mutex
	pending   map[int64]chan message
	closed    atomic.Bool

	onNotify NotificationHandler
}

// NewConn creates a connection reading frames from r and writing to w.
// onNotify may be nil.
func NewConn(r io.Reader, w io.Writer, onNotify NotificationHandler) *Conn {
	return &Conn{
		reader:   bufio.NewReader(r),
		writer:   w,
		pending:  make(map[int64]chan message),
		onNotify: onNotify,
	}
}

// Call sends a request and decodes the result into result (which may be nil).
func (c *Conn) Call(ctx context.Context, method string, params, result any) error {
	id := c.nextID.Add(1)
	ch := make(chan message, 1)
	// Close marks the conn closed before draining pending under pendingMu,
	// so checking here either sees it or gets ch closed by the drain.
	c.pendingMu.Lock()
	if c.closed.Load() {
		c.pendingMu.Unlock()
		return ErrClosed
	}
	c.pending[id] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	if err := c.write(request{JSONRPC: jsonrpcVersion, ID: id, Method: method, Params: params}); err != nil {
		return fmt.Errorf("write %s: %w", method, err)
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %s: %v", ErrRequestTimeout, method, ctx.Err())
	case msg, ok := <-ch:
		if !ok {
			return ErrClosed
		}
		if msg.Error != nil {
			return &LSPError{Code: msg.Error.Code, Message: msg.Error.Message, Data: msg.Error.Data}
		}
		if result == nil || len(msg.Result) == 0 {
			return nil
		}
		if err := json.Unmarshal(msg.Result, result); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
		return nil
	}
}

// Notify sends a notification.
func (c *Conn) Notify(method string, params any) error {
	if c.closed.Load() {
		return ErrClosed
	}
	return c.write(notification{JSONRPC: jsonrpcVersion, Method: method, Params: params})
}

func (c *Conn) write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if _, err := fmt.Fprintf(c.writer, "Content-Length: %d\r\n\r\n", len(data)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := c.writer.Write(data); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	return nil
}

// ReadLoop dispatches inbound frames until the stream ends or ctx is done.
// It closes the connection on return.
func (c *Conn) ReadLoop(ctx context.Context) error {
	defer c.Close()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		body, err := c.readFrame()
		if err != nil {
			if errors.Is(err, io.EOF) || c.closed.Load() {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		c.dispatch(body)
	}
}

func (c *Conn) readFrame() ([]byte, error) {
	contentLength := -1
	for {
		line, err := c.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			if contentLength < 0 {
				// Stray blank line between frames.
				continue
			}
			break
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok || !strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid Content-Length %q", value)
		}
		contentLength = n
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(c.reader, body); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

func (c *Conn) dispatch(body []byte) {
	var msg message
	if err := json.Unmarshal(body, &msg); err != nil {
		return
	}

	switch {
	case msg.Method != "" && msg.ID != nil:
		c.answer(msg)
	case msg.Method != "":
		if c.onNotify != nil {
			c.onNotify(msg.Method, msg.Params)
		}
	case msg.ID != nil:
		var id int64
		if err := json.Unmarshal(*msg.ID, &id); err != nil {
			return
		}
		c.pendingMu.Lock()
		if ch, ok := c.pending[id]; ok {
			select {
			case ch <- msg:
			default:
			}
		}
		c.pendingMu.Unlock()
	}
}

// answer replies to a server-initiated request.
func (c *Conn) answer(msg message) {
	result := json.RawMessage("null")
	if msg.Method == MethodWorkspaceConfiguration {
		var params ConfigurationParams
		if err := json.Unmarshal(msg.Params, &params); err == nil {
			nulls := make([]json.RawMessage, len(params.Items))
			for i := range nulls {
				nulls[i] = json.RawMessage("null")
			}
			if data, err := json.Marshal(nulls); err == nil {
				result = data
			}
		}
	}
	_ = c.write(response{JSONRPC: jsonrpcVersion, ID: *msg.ID, Result: result})
}

// Close marks the connection closed and fails pending calls.
func (c *Conn) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.pendingMu.Lock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.pendingMu.Unlock()
}

// Closed reports whether Close has run.
func (c *Conn) Closed() bool {
	return c.closed.Load()
}
