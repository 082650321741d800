package workspace

import (
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/hpungsan/lspwarm/internal/eventloop"
	"github.com/hpungsan/lspwarm/internal/metrics"
)

// Options configures a Service.
type Options struct {
	Enabled bool
	Limits  Limits

	// HomeDir documents never trigger a scan.
	HomeDir string

	// Cwd stands in for a client that declared no root.
	Cwd string

	// MaxInflightSends bounds concurrent didOpen sends.
	MaxInflightSends int

	// Realpath canonicalizes directories; failures fall back to the cleaned input.
	Realpath func(string) (string, error)
}

// Deps are the collaborators a Service drives.
type Deps struct {
	Scheduler  eventloop.Scheduler
	Host       Host
	Classifier Classifier
	Walker     Walker
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
}

// Service owns the process-wide state and turns client attach events into
// Opener runs.
type Service struct {
	enabled  bool
	limits   Limits
	home     string
	cwd      string
	realpath func(string) string

	sched   eventloop.Scheduler
	state   *State
	host    Host
	walker  Walker
	gate    *Gate
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	active   map[string]*Opener
	finishes []*Opener
}

// NewService wires a Service.
func NewService(opts Options, deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	resolve := func(p string) string {
		p = filepath.Clean(p)
		if opts.Realpath == nil {
			return p
		}
		if r, err := opts.Realpath(p); err == nil {
			return r
		}
		return p
	}

	s := &Service{
		enabled:  opts.Enabled,
		limits:   opts.Limits,
		realpath: resolve,
		sched:    deps.Scheduler,
		state:    NewState(),
		host:     deps.Host,
		walker:   deps.Walker,
		logger:   logger,
		metrics:  deps.Metrics,
		active:   make(map[string]*Opener),
	}
	if opts.HomeDir != "" {
		s.home = resolve(opts.HomeDir)
	}
	if opts.Cwd != "" {
		s.cwd = resolve(opts.Cwd)
	}
	s.gate = NewGate(s.state, deps.Host, deps.Classifier, s.cwd, opts.MaxInflightSends, logger, deps.Metrics)
	return s
}

// State returns the shared bookkeeping.
func (s *Service) State() *State { return s.state }

// Gate returns the notification gate.
func (s *Service) Gate() *Gate { return s.gate }

// Attach handles a client attaching to the document at docPath. It must
// run on the scheduler's goroutine. It returns the started run, or nil when
// the attach was skipped: pipeline disabled, client already processed,
// client not accepting didOpen, or the document under the home directory.
func (s *Service) Attach(sess *Session, docPath string) *Opener {
	if !s.enabled {
		return nil
	}
	if !s.state.MarkProcessed(sess.ID) {
		s.logger.Debug("client already processed", "client", sess.ID)
		return nil
	}
	if !sess.SupportsOpen {
		s.logger.Debug("client does not accept didOpen", "client", sess.ID, "server", sess.Name)
		return nil
	}

	doc := s.realpath(docPath)
	if s.home != "" && within(doc, s.home) {
		s.logger.Debug("document under home dir, not scanning", "client", sess.ID, "path", doc)
		return nil
	}
	if sess.Root != "" {
		resolved := *sess
		resolved.Root = s.realpath(sess.Root)
		sess = &resolved
	}

	dir := filepath.Dir(doc)
	files := s.walker.Collect(dir)
	s.metrics.Walked(len(files))

	o := newOpener(s, sess, doc, files)
	s.mu.Lock()
	s.active[o.id] = o
	s.mu.Unlock()

	s.logger.Info("client attached", "client", sess.ID, "server", sess.Name, "run", o.id, "dir", dir, "files", len(files))
	o.start()
	return o
}

// OpenInitiating admits the document a client attached for, under the
// same ceilings an Opener checks before each admission. It must run on the
// scheduler's goroutine, before Attach.
func (s *Service) OpenInitiating(sess *Session, docPath string) Decision {
	doc := s.realpath(docPath)
	if !s.state.IsOpened(doc) {
		if s.state.OpenedCount() >= s.limits.MaxFiles {
			return s.refuse(sess, doc, SkipMaxFiles, s.limits.MaxFiles)
		}
		if s.host.LoadedCount() >= s.limits.MaxOpenDocs {
			return s.refuse(sess, doc, SkipMaxOpenDocs, s.limits.MaxOpenDocs)
		}
	}
	return s.gate.Admit(sess, doc)
}

func (s *Service) refuse(sess *Session, doc string, d Decision, max int) Decision {
	s.logger.Info("initiating document not opened at ceiling", "client", sess.ID,
		"path", doc, "ceiling", string(d), "max", max)
	s.metrics.Skipped(string(d))
	return d
}

func (s *Service) finished(o *Opener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, o.id)
	s.finishes = append(s.finishes, o)
}

// Runs returns the status of active runs followed by finished ones.
func (s *Service) Runs() []RunStatus {
	s.mu.Lock()
	openers := make([]*Opener, 0, len(s.active)+len(s.finishes))
	for _, o := range s.active {
		openers = append(openers, o)
	}
	openers = append(openers, s.finishes...)
	s.mu.Unlock()

	out := make([]RunStatus, 0, len(openers))
	for _, o := range openers {
		out = append(out, o.Status())
	}
	return out
}

// Wait drains in-flight didOpen sends.
func (s *Service) Wait() error {
	return s.gate.Wait()
}
