package diagnostics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/lspwarm/internal/eventloop"
)

func TestDebouncer_CoalescesBurst(t *testing.T) {
	loop := eventloop.NewManual()
	calls := 0
	d := NewDebouncer(loop, 2*time.Second, func() { calls++ })

	for i := 0; i < 5; i++ {
		d.Trigger()
		loop.Advance(500 * time.Millisecond)
	}
	require.Equal(t, 0, calls)
	require.Equal(t, 1, loop.Pending(), "only one timer is ever armed")

	loop.Advance(2 * time.Second)
	require.Equal(t, 1, calls)
	require.False(t, d.Pending())
}

func TestDebouncer_SpacedTriggersEachFire(t *testing.T) {
	loop := eventloop.NewManual()
	calls := 0
	d := NewDebouncer(loop, time.Second, func() { calls++ })

	for i := 0; i < 3; i++ {
		d.Trigger()
		loop.Advance(1500 * time.Millisecond)
	}
	require.Equal(t, 3, calls)
}

// staleScheduler never cancels, as if every timer fired before Stop.
type staleScheduler struct {
	fns []func()
}

type noStop struct{}

func (noStop) Stop() bool { return false }

func (s *staleScheduler) Post(fn func()) { fn() }

func (s *staleScheduler) AfterFunc(_ time.Duration, fn func()) eventloop.Timer {
	s.fns = append(s.fns, fn)
	return noStop{}
}

func TestDebouncer_StaleTimerIgnored(t *testing.T) {
	sched := &staleScheduler{}
	calls := 0
	d := NewDebouncer(sched, time.Second, func() { calls++ })

	d.Trigger()
	d.Trigger()
	require.Len(t, sched.fns, 2)

	sched.fns[0]()
	require.Equal(t, 0, calls, "superseded timer must not flush")
	sched.fns[1]()
	require.Equal(t, 1, calls)
}

func TestDebouncer_Stop(t *testing.T) {
	loop := eventloop.NewManual()
	calls := 0
	d := NewDebouncer(loop, time.Second, func() { calls++ })

	d.Trigger()
	d.Stop()
	loop.Advance(time.Hour)
	require.Equal(t, 0, calls)
}
