package eventloop

import (
	"sort"
	"time"
)

// Manual is a deterministic Scheduler for tests. Nothing runs until the
// test calls Drain or Advance, and both run on the calling goroutine.
type Manual struct {
	now    time.Time
	seq    int
	queue  []func()
	timers []*manualTimer
}

type manualTimer struct {
	m       *Manual
	at      time.Time
	seq     int
	fn      func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// NewManual returns a Manual scheduler whose clock starts at a fixed instant.
func NewManual() *Manual {
	return &Manual{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// Now returns the simulated clock.
func (m *Manual) Now() time.Time { return m.now }

// Post queues fn for the next Drain.
func (m *Manual) Post(fn func()) {
	m.queue = append(m.queue, fn)
}

// AfterFunc registers fn to run once the clock has advanced by d.
func (m *Manual) AfterFunc(d time.Duration, fn func()) Timer {
	m.seq++
	t := &manualTimer{m: m, at: m.now.Add(d), seq: m.seq, fn: fn}
	m.timers = append(m.timers, t)
	return t
}

// Pending reports the number of armed timers.
func (m *Manual) Pending() int {
	n := 0
	for _, t := range m.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// Drain runs posted callbacks, including ones they post, until the queue is empty.
func (m *Manual) Drain() {
	for len(m.queue) > 0 {
		fn := m.queue[0]
		m.queue = m.queue[1:]
		fn()
	}
}

// Advance moves the clock forward by d, firing due timers in deadline order.
func (m *Manual) Advance(d time.Duration) {
	target := m.now.Add(d)
	m.Drain()
	for {
		t := m.nextDue(target)
		if t == nil {
			break
		}
		m.now = t.at
		t.fired = true
		t.fn()
		m.Drain()
	}
	m.now = target
	m.compact()
}

// RunUntilIdle fires timers until none are armed. max bounds the number of
// timers fired so a self-rescheduling callback cannot spin forever.
func (m *Manual) RunUntilIdle(max int) int {
	fired := 0
	m.Drain()
	for fired < max {
		t := m.nextDue(time.Time{})
		if t == nil {
			break
		}
		m.now = t.at
		t.fired = true
		t.fn()
		m.Drain()
		fired++
	}
	m.compact()
	return fired
}

// nextDue returns the earliest live timer due at or before limit.
// A zero limit means any live timer.
func (m *Manual) nextDue(limit time.Time) *manualTimer {
	live := make([]*manualTimer, 0, len(m.timers))
	for _, t := range m.timers {
		if t.stopped || t.fired {
			continue
		}
		if !limit.IsZero() && t.at.After(limit) {
			continue
		}
		live = append(live, t)
	}
	if len(live) == 0 {
		return nil
	}
	sort.Slice(live, func(i, j int) bool {
		if live[i].at.Equal(live[j].at) {
			return live[i].seq < live[j].seq
		}
		return live[i].at.Before(live[j].at)
	})
	return live[0]
}

func (m *Manual) compact() {
	kept := m.timers[:0]
	for _, t := range m.timers {
		if !t.stopped && !t.fired {
			kept = append(kept, t)
		}
	}
	m.timers = kept
}
