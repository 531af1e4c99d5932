package reporting

import (
	"errors"
	"time"

	"k8s.io/utils/clock"
)

// ErrTimerDelegateClosed is returned by StartTimer after Close.
var ErrTimerDelegateClosed = errors.New("reporting: timer delegate closed")

// TimerContext receives timer expirations.
type TimerContext interface {
	TimerFired()
}

// TimerDelegate is the timer service used by the schedulers.
// Contexts are compared by identity; use pointer types.
type TimerDelegate interface {
	// StartTimer arms (or re-arms) the timer for ctx.
	StartTimer(ctx TimerContext, timeout time.Duration) error

	// CancelTimer disarms the timer for ctx. Cancelling an inactive timer
	// is a no-op.
	CancelTimer(ctx TimerContext)

	// IsTimerActive reports whether a timer is armed for ctx.
	IsTimerActive(ctx TimerContext) bool

	// Now returns the current time.
	Now() time.Time
}

// Poster hands work to the event loop. *eventloop.Loop implements it.
type Poster interface {
	Post(fn func())
}

// ClockTimerDelegate implements TimerDelegate on a k8s clock.
//
// Expirations are posted to the event loop; the context's TimerFired runs
// there. A fire that raced with CancelTimer or a restart is dropped, so a
// cancelled context never sees a callback.
//
// All methods except the clock callbacks must be called from the event loop.
type ClockTimerDelegate struct {
	clock  clock.WithDelayedExecution
	poster Poster

	timers map[TimerContext]*armedTimer
	seq    uint64
	closed bool
}

type armedTimer struct {
	timer clock.Timer
	seq   uint64
}

// NewClockTimerDelegate creates a delegate. A nil clk uses the real clock.
func NewClockTimerDelegate(clk clock.WithDelayedExecution, poster Poster) *ClockTimerDelegate {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &ClockTimerDelegate{
		clock:  clk,
		poster: poster,
		timers: make(map[TimerContext]*armedTimer),
	}
}

// StartTimer implements TimerDelegate.
func (d *ClockTimerDelegate) StartTimer(ctx TimerContext, timeout time.Duration) error {
	if d.closed {
		return ErrTimerDelegateClosed
	}
	d.CancelTimer(ctx)

	d.seq++
	seq := d.seq
	t := d.clock.AfterFunc(timeout, func() {
		// Runs on the clock's goroutine: only hand off.
		d.poster.Post(func() { d.fire(ctx, seq) })
	})
	d.timers[ctx] = &armedTimer{timer: t, seq: seq}
	return nil
}

// CancelTimer implements TimerDelegate.
func (d *ClockTimerDelegate) CancelTimer(ctx TimerContext) {
	if t, ok := d.timers[ctx]; ok {
		t.timer.Stop()
		delete(d.timers, ctx)
	}
}

// IsTimerActive implements TimerDelegate.
func (d *ClockTimerDelegate) IsTimerActive(ctx TimerContext) bool {
	_, ok := d.timers[ctx]
	return ok
}

// Now implements TimerDelegate.
func (d *ClockTimerDelegate) Now() time.Time {
	return d.clock.Now()
}

// NumActive returns the number of armed timers.
func (d *ClockTimerDelegate) NumActive() int {
	return len(d.timers)
}

// Close cancels every timer and rejects new ones.
func (d *ClockTimerDelegate) Close() {
	for ctx := range d.timers {
		d.CancelTimer(ctx)
	}
	d.closed = true
}

func (d *ClockTimerDelegate) fire(ctx TimerContext, seq uint64) {
	t, ok := d.timers[ctx]
	if !ok || t.seq != seq {
		return
	}
	delete(d.timers, ctx)
	ctx.TimerFired()
}
