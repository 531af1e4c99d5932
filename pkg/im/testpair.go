package im

import (
	"context"
	"sync"
	"time"

	"github.com/backkem/matter-reporting/pkg/acl"
	"github.com/backkem/matter-reporting/pkg/datamodel"
	"github.com/backkem/matter-reporting/pkg/eventloop"
	"github.com/backkem/matter-reporting/pkg/transport"
	"github.com/pion/logging"
)

// TestPairConfig configures a TestPair.
type TestPairConfig struct {
	// Node is the device's data model. Required.
	Node *datamodel.Node

	// SchedulerKind selects the device's report scheduler.
	SchedulerKind SchedulerKind

	// ACLChecker is passed to the device engine (optional).
	ACLChecker *acl.Checker

	// Subject is the controller's identity as seen by the device.
	// Defaults to CASE node 0x1122 on fabric 1.
	Subject acl.SubjectDescriptor

	// Condition is applied to the pipe (optional).
	Condition transport.NetworkCondition

	// LoggerFactory for both sides (optional).
	LoggerFactory logging.LoggerFactory
}

// TestPair connects a device engine and a controller client over an
// in-memory pipe for E2E testing.
//
// Architecture:
//
//	Controller (0)                     Device (1)
//	──────────────                     ──────────
//	im.Client                          im.Engine ── datamodel.Node
//	    │                                  │
//	    ▼                                  ▼
//	PipeConn ◀──────── Pipe ────────▶ PipeConn
//
// The device's event loop runs in its own goroutine; use Do to touch
// engine state from a test.
type TestPair struct {
	pipe   *transport.Pipe
	loop   *eventloop.Loop
	engine *Engine
	client *Client

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewTestPair creates a paired IM test environment and starts it.
func NewTestPair(config TestPairConfig) (*TestPair, error) {
	if config.Subject == (acl.SubjectDescriptor{}) {
		config.Subject = acl.SubjectDescriptor{
			FabricIndex: 1,
			AuthMode:    acl.AuthModeCASE,
			Subject:     0x1122,
		}
	}

	loop := eventloop.New(eventloop.Config{LoggerFactory: config.LoggerFactory})
	engine, err := NewEngine(EngineConfig{
		Provider:      config.Node,
		ACLChecker:    config.ACLChecker,
		SchedulerKind: config.SchedulerKind,
		Loop:          loop,
		LoggerFactory: config.LoggerFactory,
	})
	if err != nil {
		return nil, err
	}

	pipe := transport.NewPipe()
	pipe.SetCondition(config.Condition)

	p := &TestPair{
		pipe:   pipe,
		loop:   loop,
		engine: engine,
		client: NewClient(ClientConfig{
			Conn:          pipe.Conn0(),
			Timeout:       5 * time.Second,
			LoggerFactory: config.LoggerFactory,
		}),
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.wg.Add(3)
	go func() {
		defer p.wg.Done()
		_ = loop.Run(ctx)
	}()
	go func() {
		defer p.wg.Done()
		_ = engine.ServeConn(ctx, pipe.Conn1(), config.Subject)
	}()
	go func() {
		defer p.wg.Done()
		_ = p.client.Run(ctx)
	}()
	return p, nil
}

// Client returns the controller side.
func (p *TestPair) Client() *Client { return p.client }

// Engine returns the device engine. Only touch it inside Do.
func (p *TestPair) Engine() *Engine { return p.engine }

// Pipe returns the pipe between the two sides.
func (p *TestPair) Pipe() *transport.Pipe { return p.pipe }

// Do runs fn on the device's event loop and waits for it to finish.
func (p *TestPair) Do(fn func(e *Engine)) {
	done := make(chan struct{})
	p.loop.Post(func() {
		defer close(done)
		fn(p.engine)
	})
	<-done
}

// Close shuts the device engine down and releases resources.
func (p *TestPair) Close() {
	p.once.Do(func() {
		p.Do(func(e *Engine) { e.Shutdown() })
		p.cancel()
		// The pipe keeps ticking until both readers have seen their conn
		// close.
		p.wg.Wait()
		_ = p.pipe.Close()
	})
}
