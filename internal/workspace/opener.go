package workspace

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/lspwarm/internal/eventloop"
	"github.com/hpungsan/lspwarm/internal/metrics"
)

// Phase is the Opener's state.
type Phase int

const (
	// Phase1Scanning feeds files from the initiating document's directory.
	Phase1Scanning Phase = iota + 1
	// Phase2Scanning feeds files from the client's root.
	Phase2Scanning
	// Done means both lists were exhausted, or phase 2 was redundant.
	Done
	// Stalled means a ceiling blocked an admission. No further ticks run.
	Stalled
)

func (p Phase) String() string {
	switch p {
	case Phase1Scanning:
		return "phase1"
	case Phase2Scanning:
		return "phase2"
	case Done:
		return "done"
	case Stalled:
		return "stalled"
	default:
		return "unknown"
	}
}

// Walker lists candidate files below a directory.
type Walker interface {
	Collect(root string) []string
}

// Limits are the ceilings an Opener enforces.
type Limits struct {
	MaxFiles      int
	MaxOpenDocs   int
	FilesPerBatch int
	BatchDelay    time.Duration
}

// cursor is a position in the current phase's file list.
type cursor struct {
	files []string
	index int
}

func (c *cursor) exhausted() bool { return c.index >= len(c.files) }

// RunStatus is a point-in-time view of an Opener.
type RunStatus struct {
	RunID    string `json:"run_id"`
	ClientID int    `json:"client_id"`
	Phase    string `json:"phase"`
	Index    int    `json:"index"`
	Total    int    `json:"total"`
	Ceiling  string `json:"ceiling,omitempty"`
}

// Opener drives one attach event's files through the Gate a batch per
// tick. All methods except Status and Phase must run on the scheduler's
// goroutine; mu guards the fields those two read.
type Opener struct {
	id         string
	session    *Session
	initiating string
	phase1Dir  string
	cwd        string

	sched    eventloop.Scheduler
	gate     *Gate
	state    *State
	host     Host
	walker   Walker
	realpath func(string) string
	limits   Limits
	logger   *slog.Logger
	metrics  *metrics.Metrics
	onFinish func(*Opener)

	mu       sync.Mutex
	phase    Phase
	cur      cursor
	switched bool
	ceiling  string
}

// ID returns the run id used in log lines.
func (o *Opener) ID() string { return o.id }

// Phase returns the current state.
func (o *Opener) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

// Status returns a snapshot. Safe from any goroutine.
func (o *Opener) Status() RunStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	return RunStatus{
		RunID:    o.id,
		ClientID: o.session.ID,
		Phase:    o.phase.String(),
		Index:    o.cur.index,
		Total:    len(o.cur.files),
		Ceiling:  o.ceiling,
	}
}

func newOpener(svc *Service, s *Session, initiating string, files []string) *Opener {
	return &Opener{
		id:         ulid.Make().String(),
		session:    s,
		initiating: initiating,
		phase1Dir:  filepath.Dir(initiating),
		cwd:        svc.cwd,
		sched:      svc.sched,
		gate:       svc.gate,
		state:      svc.state,
		host:       svc.host,
		walker:     svc.walker,
		realpath:   svc.realpath,
		limits:     svc.limits,
		logger:     svc.logger,
		metrics:    svc.metrics,
		onFinish:   svc.finished,
		phase:      Phase1Scanning,
		cur:        cursor{files: files},
	}
}

// start schedules the first tick for the next loop turn.
func (o *Opener) start() {
	o.logger.Debug("opener started", "run", o.id, "client", o.session.ID, "dir", o.phase1Dir, "files", len(o.cur.files))
	o.sched.Post(o.tick)
}

func (o *Opener) tick() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.phase == Done || o.phase == Stalled {
		return
	}
	o.metrics.Tick()

	for n := 0; n < o.limits.FilesPerBatch && !o.cur.exhausted(); n++ {
		if o.state.OpenedCount() >= o.limits.MaxFiles {
			o.stall("max_files", o.limits.MaxFiles)
			return
		}
		if o.host.LoadedCount() >= o.limits.MaxOpenDocs {
			o.stall("max_open_docs", o.limits.MaxOpenDocs)
			return
		}

		path := o.cur.files[o.cur.index]
		o.cur.index++
		// The initiating document is already open; it still uses a slot.
		if path == o.initiating {
			continue
		}
		o.metrics.Admitted()
		// Admit can block on send backpressure; Status must stay readable.
		// Only this goroutine mutates the opener, so nothing changes meanwhile.
		o.mu.Unlock()
		o.gate.Admit(o.session, path)
		o.mu.Lock()
	}

	if !o.cur.exhausted() {
		o.schedule()
		return
	}

	if o.phase == Phase1Scanning && !o.switched {
		o.switched = true
		root := o.realpath(o.session.EffectiveRoot(o.cwd))
		if root == o.phase1Dir {
			o.finish()
			return
		}
		o.mu.Unlock()
		files := o.walker.Collect(root)
		o.mu.Lock()
		o.metrics.Walked(len(files))
		o.cur = cursor{files: files}
		o.phase = Phase2Scanning
		o.logger.Debug("opener switched to client root", "run", o.id, "root", root, "files", len(files))
		o.schedule()
		return
	}

	o.finish()
}

func (o *Opener) schedule() {
	o.sched.AfterFunc(o.limits.BatchDelay, o.tick)
}

func (o *Opener) stall(ceiling string, max int) {
	o.phase = Stalled
	o.ceiling = ceiling
	o.logger.Info("opener stalled at ceiling", "run", o.id, "client", o.session.ID,
		"ceiling", ceiling, "max", max, "index", o.cur.index, "total", len(o.cur.files))
	o.metrics.Stalled(ceiling)
	o.metrics.RunFinished(Stalled.String())
	if o.onFinish != nil {
		o.onFinish(o)
	}
}

func (o *Opener) finish() {
	o.phase = Done
	o.logger.Debug("opener done", "run", o.id, "client", o.session.ID)
	o.metrics.RunFinished(Done.String())
	if o.onFinish != nil {
		o.onFinish(o)
	}
}
