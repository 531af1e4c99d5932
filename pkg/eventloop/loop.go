// Package eventloop provides the single-threaded work loop that owns all
// reporting state.
//
// Everything in the reporting engine (dirty set, schedulers, read handler
// registry) is touched only from functions running on the loop. Other
// goroutines hand work to the loop with Post.
package eventloop

import (
	"context"
	"errors"
	"sync"

	"github.com/pion/logging"
)

// ErrLoopRunning is returned when Run is called on a loop that is already running.
var ErrLoopRunning = errors.New("eventloop: already running")

// Config configures a Loop.
type Config struct {
	// LoggerFactory for creating loggers (optional).
	LoggerFactory logging.LoggerFactory
}

// Loop runs posted functions one at a time, in posting order.
//
// A Loop can be driven either by Run in a dedicated goroutine or, in tests,
// by calling RunPending from the test goroutine.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wakeup  chan struct{}
	running bool

	log logging.LeveledLogger
}

// New creates an idle loop.
func New(config Config) *Loop {
	l := &Loop{
		wakeup: make(chan struct{}, 1),
	}
	if config.LoggerFactory != nil {
		l.log = config.LoggerFactory.NewLogger("eventloop")
	}
	return l
}

// Post queues fn to run on the loop. It never blocks and is safe to call
// from any goroutine, including from functions already running on the loop.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wakeup <- struct{}{}:
	default:
	}
}

// Len returns the number of queued functions.
func (l *Loop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// RunPending runs queued functions until the queue is empty, including
// functions posted while draining. Returns how many ran.
func (l *Loop) RunPending() int {
	n := 0
	for {
		batch := l.take()
		if len(batch) == 0 {
			return n
		}
		for _, fn := range batch {
			fn()
			n++
		}
	}
}

// Run processes posted functions until ctx is done.
// Functions still queued when ctx ends are dropped.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return ErrLoopRunning
	}
	l.running = true
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
	}()

	if l.log != nil {
		l.log.Debug("event loop started")
	}

	for {
		l.RunPending()

		select {
		case <-ctx.Done():
			if l.log != nil {
				l.log.Debugf("event loop stopped, %d queued", l.Len())
			}
			return ctx.Err()
		case <-l.wakeup:
		}
	}
}

func (l *Loop) take() []func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	batch := l.queue
	l.queue = nil
	return batch
}
