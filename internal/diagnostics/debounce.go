package diagnostics

import (
	"sync"
	"time"

	"github.com/hpungsan/lspwarm/internal/eventloop"
)

// Debouncer runs fn once after a quiet period following the last Trigger.
// At most one timer is armed at any time.
type Debouncer struct {
	sched eventloop.Scheduler
	delay time.Duration
	fn    func()

	mu    sync.Mutex
	timer eventloop.Timer
	seq   uint64
}

// NewDebouncer returns a debouncer that calls fn through sched.
func NewDebouncer(sched eventloop.Scheduler, delay time.Duration, fn func()) *Debouncer {
	return &Debouncer{sched: sched, delay: delay, fn: fn}
}

// Trigger cancels the armed timer, if any, and arms a new one.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.seq++
	seq := d.seq
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = d.sched.AfterFunc(d.delay, func() {
		d.mu.Lock()
		// A newer Trigger re-armed after this timer had already fired.
		if seq != d.seq {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()
		d.fn()
	})
}

// Pending reports whether a timer is armed.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Stop disarms the timer without running fn.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
