// Package daemon wires the warm-up pipeline to real language servers: it
// starts a server for each opened file, attaches it to the workspace
// service and turns published diagnostics into debounced summary flushes.
package daemon

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hpungsan/lspwarm/internal/config"
	"github.com/hpungsan/lspwarm/internal/db"
	"github.com/hpungsan/lspwarm/internal/diagnostics"
	"github.com/hpungsan/lspwarm/internal/errors"
	"github.com/hpungsan/lspwarm/internal/eventloop"
	"github.com/hpungsan/lspwarm/internal/filetype"
	"github.com/hpungsan/lspwarm/internal/host"
	"github.com/hpungsan/lspwarm/internal/lsp"
	"github.com/hpungsan/lspwarm/internal/metrics"
	"github.com/hpungsan/lspwarm/internal/walker"
	"github.com/hpungsan/lspwarm/internal/workspace"
)

// shutdownTimeout bounds the final flush and server shutdown.
const shutdownTimeout = 10 * time.Second

// defaultInflightSends bounds concurrent didOpen writes per process.
const defaultInflightSends = 8

// Server is the part of a language server connection the daemon drives.
type Server interface {
	workspace.Notifier
	ID() int
	Name() string
	Capabilities() lsp.ServerCapabilities
	Done() <-chan struct{}
	Shutdown(ctx context.Context) error
}

// Starter launches and initializes a configured server.
type Starter func(ctx context.Context, srv config.Server, opts lsp.ClientOptions) (Server, error)

// StartProcess is the default Starter: it spawns srv.Command.
func StartProcess(ctx context.Context, srv config.Server, opts lsp.ClientOptions) (Server, error) {
	c, err := lsp.Start(ctx, srv.Command, srv.Args, opts)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Options configures a Daemon.
type Options struct {
	Config  *config.Config
	Cwd     string
	Version string

	// DB journals written flushes when set.
	DB *sql.DB

	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// Starter defaults to StartProcess.
	Starter Starter
}

// Daemon owns the event loop and every component hanging off it.
type Daemon struct {
	cfg     *config.Config
	cwd     string
	version string
	starter Starter
	logger  *slog.Logger
	metrics *metrics.Metrics

	loop       *eventloop.Loop
	store      *host.Store
	classifier *filetype.Classifier
	service    *workspace.Service
	aggregator *diagnostics.Aggregator
	debouncer  *diagnostics.Debouncer

	mu      sync.Mutex
	clients map[string]Server
	nextID  int
}

// New builds a daemon from configuration. Nothing runs until Run.
func New(opts Options) (*Daemon, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	cwd := opts.Cwd
	if cwd == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getwd: %w", err)
		}
		cwd = wd
	}
	starter := opts.Starter
	if starter == nil {
		starter = StartProcess
	}

	d := &Daemon{
		cfg:     cfg,
		cwd:     cwd,
		version: opts.Version,
		starter: starter,
		logger:  logger,
		metrics: opts.Metrics,
		loop:    eventloop.New(),
		store:   host.NewStore(),
		clients: make(map[string]Server),
	}
	d.classifier = filetype.New(d.store, nil, logger.With("component", "filetype"))

	home := cfg.ResolvedHomeDir()
	w := walker.New(walker.Options{
		IgnoredDirs:     cfg.IgnoredDirs,
		IgnoredSuffixes: cfg.IgnoredSuffixes,
		HomeDir:         home,
		MaxFiles:        cfg.Limits.MaxFiles,
	}, logger.With("component", "walker"))

	d.service = workspace.NewService(workspace.Options{
		Enabled: cfg.IsEnabled(),
		Limits: workspace.Limits{
			MaxFiles:      cfg.Limits.MaxFiles,
			MaxOpenDocs:   cfg.Limits.MaxOpenDocs,
			FilesPerBatch: cfg.Limits.FilesPerBatch,
			BatchDelay:    time.Duration(cfg.Limits.BatchDelayMS) * time.Millisecond,
		},
		HomeDir:          home,
		Cwd:              cwd,
		MaxInflightSends: defaultInflightSends,
		Realpath:         walker.DefaultRealpath,
	}, workspace.Deps{
		Scheduler:  d.loop,
		Host:       d.store,
		Classifier: d.classifier,
		Walker:     w,
		Logger:     logger.With("component", "workspace"),
		Metrics:    opts.Metrics,
	})

	var recorder diagnostics.Recorder
	if opts.DB != nil {
		recorder = db.NewRecorder(opts.DB)
	}
	d.aggregator = diagnostics.NewAggregator(d.store, recorder, diagnostics.Options{
		OutputPath: cfg.OutputPath(),
		Format:     cfg.Output.Format,
		Icons: diagnostics.Icons{
			Error:   cfg.Icons.Error,
			Warning: cfg.Icons.Warning,
			Info:    cfg.Icons.Info,
			Hint:    cfg.Icons.Hint,
		},
		WriteEmpty: cfg.Output.WriteEmpty,
	}, logger.With("component", "diagnostics"), opts.Metrics)

	delay := time.Duration(cfg.Limits.DebounceMS) * time.Millisecond
	d.debouncer = diagnostics.NewDebouncer(d.loop, delay, func() {
		d.aggregator.Flush(context.Background())
	})

	return d, nil
}

// Flush writes the summary now. It implements ops.Flusher.
func (d *Daemon) Flush(ctx context.Context) diagnostics.FlushResult {
	d.debouncer.Stop()
	return d.aggregator.Flush(ctx)
}

// Runs reports the warm-up runs started so far.
func (d *Daemon) Runs() []workspace.RunStatus {
	return d.service.Runs()
}

// Run processes loop callbacks until ctx ends, serving metrics on the
// configured address. On the way out it writes a final summary, drains
// pending didOpen sends and shuts every server down.
func (d *Daemon) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := d.loop.Run(gctx); err != nil && gctx.Err() == nil {
			return err
		}
		return nil
	})
	if d.cfg.MetricsAddr != "" && d.metrics != nil {
		g.Go(func() error {
			return d.metrics.Serve(gctx, d.cfg.MetricsAddr)
		})
	}

	err := g.Wait()
	d.shutdown()
	return err
}

func (d *Daemon) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := d.service.Wait(); err != nil {
		d.logger.Warn("pending didOpen sends failed", "error", err)
	}
	d.debouncer.Stop()
	res := d.aggregator.Flush(ctx)
	d.logger.Info("final flush", "written", res.Written, "skipped", res.Skipped, "entries", res.Entries)

	d.mu.Lock()
	clients := make([]Server, 0, len(d.clients))
	for _, c := range d.clients {
		clients = append(clients, c)
	}
	d.clients = make(map[string]Server)
	d.mu.Unlock()

	var wg sync.WaitGroup
	for _, c := range clients {
		wg.Add(1)
		go func(c Server) {
			defer wg.Done()
			if err := c.Shutdown(ctx); err != nil {
				d.logger.Debug("server shutdown", "server", c.Name(), "error", err)
			}
		}(c)
	}
	wg.Wait()
}

// Open makes the server responsible for path aware of it: the server is
// started (or reused) for the project root, the document is opened and
// the client is attached so the rest of the directory warms up.
func (d *Daemon) Open(ctx context.Context, path string) error {
	abs, err := filepath.Abs(config.ExpandHome(path))
	if err != nil {
		return errors.NewInvalidRequest(err.Error())
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewFileNotFound(abs)
		}
		return errors.NewIOFailure("stat", abs, err)
	}
	if info.IsDir() {
		return errors.NewInvalidRequest("path must be a file")
	}
	doc, err := walker.DefaultRealpath(abs)
	if err != nil {
		doc = abs
	}

	ft := d.classifier.Classify(doc)
	if ft == "" {
		return errors.NewInvalidRequest(fmt.Sprintf("unknown filetype: %s", doc))
	}
	srv, ok := d.cfg.ServerFor(ft)
	if !ok {
		return errors.NewInvalidRequest(fmt.Sprintf("no server configured for filetype %q", ft))
	}

	// Without a marker the server is rooted at the document's directory,
	// and the session must declare the same root.
	root := FindRoot(filepath.Dir(doc), srv.RootMarkers)
	if root == "" {
		root = filepath.Dir(doc)
	}
	client, err := d.client(ctx, srv, root)
	if err != nil {
		return err
	}

	sess := workspace.NewSession(client.ID(), srv.Name, srv.Filetypes, root, client.Capabilities().SupportsOpen(), client)
	return eventloop.Do(ctx, d.loop, func() {
		if sess.SupportsOpen {
			d.service.OpenInitiating(sess, doc)
		}
		d.service.Attach(sess, doc)
	})
}

// client returns the running server for (srv, dir), starting it if needed.
func (d *Daemon) client(ctx context.Context, srv config.Server, dir string) (Server, error) {
	key := srv.Name + "\x00" + dir

	d.mu.Lock()
	if c, ok := d.clients[key]; ok {
		d.mu.Unlock()
		return c, nil
	}
	d.nextID++
	id := d.nextID
	d.mu.Unlock()

	c, err := d.starter(ctx, srv, lsp.ClientOptions{
		ID:       id,
		Name:     srv.Name,
		RootDir:  dir,
		Version:  d.version,
		OnNotify: d.onNotify,
		Logger:   d.logger,
	})
	if err != nil {
		d.logger.Warn("start server failed", "server", srv.Name, "root", dir, "error", err)
		return nil, errors.NewIOFailure("start", srv.Command, err)
	}

	d.mu.Lock()
	if existing, ok := d.clients[key]; ok {
		d.mu.Unlock()
		_ = c.Shutdown(ctx)
		return existing, nil
	}
	d.clients[key] = c
	d.mu.Unlock()

	go d.watch(key, c)
	return c, nil
}

// watch forgets a client whose server exited on its own.
func (d *Daemon) watch(key string, c Server) {
	<-c.Done()
	d.mu.Lock()
	if d.clients[key] == c {
		delete(d.clients, key)
		d.logger.Warn("server exited", "server", c.Name(), "client", c.ID())
	}
	d.mu.Unlock()
}

// onNotify runs on a client's read goroutine; state changes are posted
// onto the loop.
func (d *Daemon) onNotify(method string, params json.RawMessage) {
	if method != lsp.MethodPublishDiagnostics {
		return
	}
	var p lsp.PublishDiagnosticsParams
	if err := json.Unmarshal(params, &p); err != nil {
		d.logger.Debug("bad publishDiagnostics params", "error", err)
		return
	}
	path := lsp.URIToPath(p.URI)
	d.loop.Post(func() {
		if !d.store.SetDiagnostics(path, p.Diagnostics) {
			d.logger.Debug("diagnostics for unknown document dropped", "path", path)
			return
		}
		d.debouncer.Trigger()
	})
}

// FindRoot walks up from dir looking for any of markers and returns the
// first directory containing one, or "" when none is found.
func FindRoot(dir string, markers []string) string {
	if len(markers) == 0 {
		return ""
	}
	dir = filepath.Clean(dir)
	for {
		for _, m := range markers {
			if _, err := os.Stat(filepath.Join(dir, m)); err == nil {
				return dir
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
