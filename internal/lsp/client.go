package lsp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// ClientOptions configures a client connection to one language server.
type ClientOptions struct {
	// ID identifies the client within this process.
	ID int

	// Name is the configured server name (e.g. "gopls").
	Name string

	// RootDir is sent as rootUri and the single workspace folder.
	RootDir string

	// Version is reported in clientInfo.
	Version string

	OnNotify NotificationHandler
	Logger   *slog.Logger
}

// Client is an initialized connection to a language server.
type Client struct {
	opts   ClientOptions
	conn   *Conn
	stdin  io.Closer
	cmd    *exec.Cmd
	caps   ServerCapabilities
	info   *ServerInfo
	cancel context.CancelFunc
	done   chan struct{}
	logger *slog.Logger
}

// Start spawns command in rootDir and performs the initialize handshake.
func Start(ctx context.Context, command string, args []string, opts ClientOptions) (*Client, error) {
	path, err := exec.LookPath(command)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrServerNotInstalled, command)
	}

	cmd := exec.Command(path, args...)
	cmd.Dir = opts.RootDir
	cmd.Stderr = io.Discard
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", command, err)
	}

	c, err := Connect(ctx, stdout, stdin, opts)
	if err != nil {
		_ = stdin.Close()
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, err
	}
	c.cmd = cmd
	return c, nil
}

// Connect runs the initialize handshake over an existing stream pair.
// Closing w is how Shutdown signals end of input.
func Connect(ctx context.Context, r io.Reader, w io.WriteCloser, opts ClientOptions) (*Client, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger = logger.With("client", opts.ID, "server", opts.Name)

	runCtx, cancel := context.WithCancel(context.Background())
	c := &Client{
		opts:   opts,
		conn:   NewConn(r, w, opts.OnNotify),
		stdin:  w,
		cancel: cancel,
		done:   make(chan struct{}),
		logger: logger,
	}

	go func() {
		defer close(c.done)
		if err := c.conn.ReadLoop(runCtx); err != nil {
			logger.Warn("lsp read loop ended", "error", err)
		}
	}()

	if err := c.initialize(ctx); err != nil {
		cancel()
		c.conn.Close()
		_ = w.Close()
		return nil, fmt.Errorf("%w: %v", ErrInitializeFailed, err)
	}

	logger.Info("lsp server ready", "root", opts.RootDir, "supports_open", c.caps.SupportsOpen())
	return c, nil
}

func (c *Client) initialize(ctx context.Context) error {
	root := c.opts.RootDir
	if root != "" {
		if abs, err := filepath.Abs(root); err == nil {
			root = abs
		}
	}
	params := InitializeParams{
		ProcessID:  os.Getpid(),
		ClientInfo: &ClientInfo{Name: "lspwarm", Version: c.opts.Version},
		Capabilities: ClientCapabilities{
			TextDocument: TextDocumentClientCapabilities{
				Synchronization:    &SynchronizationCapabilities{},
				PublishDiagnostics: &PublishDiagnosticsCapabilities{VersionSupport: true},
			},
			Workspace: WorkspaceClientCapabilities{
				Configuration:    true,
				WorkspaceFolders: true,
			},
		},
	}
	if root != "" {
		params.RootURI = PathToURI(root)
		params.RootPath = root
		params.WorkspaceFolders = []WorkspaceFolder{{URI: params.RootURI, Name: filepath.Base(root)}}
	}

	var result InitializeResult
	if err := c.conn.Call(ctx, MethodInitialize, params, &result); err != nil {
		return err
	}
	c.caps = result.Capabilities
	c.info = result.ServerInfo

	return c.conn.Notify(MethodInitialized, struct{}{})
}

// ID returns the process-local client id.
func (c *Client) ID() int { return c.opts.ID }

// Name returns the configured server name.
func (c *Client) Name() string { return c.opts.Name }

// RootDir returns the root the client was initialized with.
func (c *Client) RootDir() string { return c.opts.RootDir }

// Capabilities returns what the server reported in its initialize result.
func (c *Client) Capabilities() ServerCapabilities { return c.caps }

// Done is closed when the server's output stream ends.
func (c *Client) Done() <-chan struct{} { return c.done }

// Notify sends a notification to the server.
func (c *Client) Notify(method string, params any) error {
	return c.conn.Notify(method, params)
}

// Shutdown sends shutdown and exit, then waits for the process.
// A server that doesn't exit within the context is killed.
func (c *Client) Shutdown(ctx context.Context) error {
	if !c.conn.Closed() {
		callCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_ = c.conn.Call(callCtx, MethodShutdown, nil, nil)
		cancel()
		_ = c.conn.Notify(MethodExit, nil)
	}
	_ = c.stdin.Close()

	var err error
	if c.cmd != nil && c.cmd.Process != nil {
		waited := make(chan error, 1)
		go func() { waited <- c.cmd.Wait() }()
		select {
		case err = <-waited:
		case <-ctx.Done():
			_ = c.cmd.Process.Kill()
			err = <-waited
		}
	}

	c.cancel()
	c.conn.Close()
	select {
	case <-c.done:
	case <-time.After(time.Second):
	}
	if err != nil {
		c.logger.Debug("lsp server exited", "error", err)
	}
	return nil
}
