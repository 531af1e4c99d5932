// Package transport provides the in-memory packet pipe that carries
// Interaction Model frames between a device and a controller in tests and
// the simulator.
package transport

import (
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/transport/v3/test"
)

// NetworkCondition configures network behavior simulation.
// Use this to test report delivery under adverse network conditions.
type NetworkCondition struct {
	// DropRate is the probability of dropping a packet (0.0 - 1.0).
	DropRate float64

	// DelayMin is the minimum delay to add to each packet.
	DelayMin time.Duration

	// DelayMax is the maximum delay to add to each packet.
	// Actual delay is uniformly distributed between DelayMin and DelayMax.
	DelayMax time.Duration

	// DuplicateRate is the probability of duplicating a packet (0.0 - 1.0).
	DuplicateRate float64
}

// PipeConfig configures a Pipe.
type PipeConfig struct {
	// AutoProcess enables automatic message delivery in a background goroutine.
	AutoProcess bool

	// ProcessInterval is how often the auto-processor checks for messages.
	// Default: 1ms
	ProcessInterval time.Duration

	// Seed seeds the condition RNG. Zero uses the current time.
	Seed int64
}

// DefaultPipeConfig returns the default pipe configuration.
func DefaultPipeConfig() PipeConfig {
	return PipeConfig{
		AutoProcess:     true,
		ProcessInterval: 1 * time.Millisecond,
	}
}

// Pipe provides bidirectional in-memory packet communication between two
// endpoints. It wraps pion's test.Bridge and adds network condition
// simulation. Each Write on one end is read as one packet on the other.
//
// By default, Pipe delivers packets in a background goroutine. Use
// SetAutoProcess(false) or NewPipeWithConfig for manual control.
type Pipe struct {
	bridge *test.Bridge
	conn0  *PipeConn
	conn1  *PipeConn

	mu              sync.RWMutex
	condition       NetworkCondition
	closed          bool
	rng             *rand.Rand
	rngMu           sync.Mutex
	autoProcess     bool
	processInterval time.Duration
	stopCh          chan struct{}
	wg              sync.WaitGroup
}

// NewPipe creates a new bidirectional pipe with auto-processing enabled.
func NewPipe() *Pipe {
	return NewPipeWithConfig(DefaultPipeConfig())
}

// NewPipeWithConfig creates a new pipe with the given configuration.
func NewPipeWithConfig(config PipeConfig) *Pipe {
	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	p := &Pipe{
		bridge:          test.NewBridge(),
		rng:             rand.New(rand.NewSource(seed)),
		autoProcess:     config.AutoProcess,
		processInterval: config.ProcessInterval,
		stopCh:          make(chan struct{}),
	}
	if p.processInterval == 0 {
		p.processInterval = 1 * time.Millisecond
	}
	p.conn0 = &PipeConn{Conn: p.bridge.GetConn0(), pipe: p}
	p.conn1 = &PipeConn{Conn: p.bridge.GetConn1(), pipe: p}

	if p.autoProcess {
		p.startAutoProcess()
	}
	return p
}

// startAutoProcess starts the background message delivery goroutine.
func (p *Pipe) startAutoProcess() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.processInterval)
		defer ticker.Stop()

		for {
			select {
			case <-p.stopCh:
				return
			case <-ticker.C:
				p.bridge.Tick()
			}
		}
	}()
}

// SetAutoProcess enables or disables automatic message delivery.
// When disabled, you must call Tick() or Process() manually.
func (p *Pipe) SetAutoProcess(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || p.autoProcess == enabled {
		return
	}
	p.autoProcess = enabled

	if enabled {
		p.stopCh = make(chan struct{})
		p.startAutoProcess()
	} else {
		close(p.stopCh)
		p.wg.Wait()
	}
}

// AutoProcess returns whether auto-processing is enabled.
func (p *Pipe) AutoProcess() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.autoProcess
}

// SetCondition configures network condition simulation.
// The conditions apply to packets in both directions.
func (p *Pipe) SetCondition(cond NetworkCondition) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.condition = cond
}

// Condition returns the current network condition configuration.
func (p *Pipe) Condition() NetworkCondition {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.condition
}

// Conn0 returns the connection for endpoint 0.
func (p *Pipe) Conn0() *PipeConn { return p.conn0 }

// Conn1 returns the connection for endpoint 1.
func (p *Pipe) Conn1() *PipeConn { return p.conn1 }

// Tick delivers one packet in each direction (if available).
// Returns the number of packets delivered (0, 1, or 2).
func (p *Pipe) Tick() int {
	return p.bridge.Tick()
}

// Process delivers all queued packets.
// Returns the number of packets delivered.
func (p *Pipe) Process() int {
	count := 0
	for {
		n := p.Tick()
		if n == 0 {
			break
		}
		count += n
	}
	return count
}

// Close closes both endpoints of the pipe and stops auto-processing.
// Reads pending on either endpoint return io.EOF.
func (p *Pipe) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	if p.autoProcess {
		close(p.stopCh)
	}
	p.mu.Unlock()

	p.wg.Wait()

	err0 := p.conn0.Conn.Close()
	err1 := p.conn1.Conn.Close()

	// Undelivered packets are discarded. The bridge finishes closing a
	// conn, and wakes its reader, on the first tick that finds its queue
	// empty.
	p.bridge.Drop(0, 0, p.bridge.Len(0))
	p.bridge.Drop(1, 0, p.bridge.Len(1))
	p.bridge.Tick()

	if err0 != nil {
		return err0
	}
	return err1
}

func (p *Pipe) isClosed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed
}

func (p *Pipe) chance(rate float64) bool {
	if rate <= 0 {
		return false
	}
	p.rngMu.Lock()
	defer p.rngMu.Unlock()
	return p.rng.Float64() < rate
}

func (p *Pipe) delay(cond NetworkCondition) time.Duration {
	if cond.DelayMax <= 0 {
		return 0
	}
	d := cond.DelayMin
	if cond.DelayMax > cond.DelayMin {
		p.rngMu.Lock()
		d += time.Duration(p.rng.Int63n(int64(cond.DelayMax - cond.DelayMin)))
		p.rngMu.Unlock()
	}
	return d
}

// PipeConn is one end of a Pipe. Writes are subject to the pipe's
// network condition.
type PipeConn struct {
	net.Conn
	pipe *Pipe

	written    atomic.Uint64
	dropped    atomic.Uint64
	duplicated atomic.Uint64
}

// PipeConnStats counts packets written through one end.
type PipeConnStats struct {
	Written    uint64
	Dropped    uint64
	Duplicated uint64
}

// Write sends b as one packet, applying drop, delay and duplication.
// A dropped packet still reports success.
func (c *PipeConn) Write(b []byte) (int, error) {
	if c.pipe.isClosed() {
		return 0, ErrClosed
	}
	cond := c.pipe.Condition()
	c.written.Add(1)

	if c.pipe.chance(cond.DropRate) {
		c.dropped.Add(1)
		return len(b), nil
	}
	if d := c.pipe.delay(cond); d > 0 {
		time.Sleep(d)
	}
	if c.pipe.chance(cond.DuplicateRate) {
		c.duplicated.Add(1)
		if _, err := c.Conn.Write(b); err != nil {
			return 0, err
		}
	}
	return c.Conn.Write(b)
}

// Stats returns the packet counters of this end.
func (c *PipeConn) Stats() PipeConnStats {
	return PipeConnStats{
		Written:    c.written.Load(),
		Dropped:    c.dropped.Load(),
		Duplicated: c.duplicated.Load(),
	}
}
