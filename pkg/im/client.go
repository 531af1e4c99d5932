package im

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/backkem/matter-reporting/pkg/datamodel"
	"github.com/backkem/matter-reporting/pkg/im/message"
	"github.com/pion/logging"
	"k8s.io/utils/clock"
)

// Client errors.
var (
	ErrClientTimeout      = errors.New("im: request timeout")
	ErrClientBusy         = errors.New("im: request already pending")
	ErrUnexpectedResponse = errors.New("im: unexpected response type")
)

// DefaultRequestTimeout is the default timeout for IM requests.
const DefaultRequestTimeout = 30 * time.Second

// DefaultReportBuffer is the default capacity of the report channel.
const DefaultReportBuffer = 64

// Report is a report received by a Client.
type Report struct {
	// SubscriptionID is 0 for read reports.
	SubscriptionID datamodel.SubscriptionID

	Message  *message.ReportDataMessage
	Received time.Time
}

// ClientConfig configures the Client.
type ClientConfig struct {
	// Conn carries frames to and from the device.
	// Required.
	Conn net.Conn

	// Timeout for requests. Defaults to DefaultRequestTimeout if zero.
	Timeout time.Duration

	// ReportBuffer is the capacity of the Reports channel.
	// Defaults to DefaultReportBuffer if zero.
	ReportBuffer int

	// Clock stamps received reports. Defaults to the real clock.
	Clock clock.PassiveClock

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Client is the subscriber side of the Interaction Model. It sends read and
// subscribe requests and acknowledges every subscription report it
// receives.
//
// Usage:
//
//	client := im.NewClient(im.ClientConfig{Conn: conn})
//	go client.Run(ctx)
//	resp, err := client.Subscribe(ctx, req)
//	for r := range client.Reports() { ... }
type Client struct {
	conn    net.Conn
	sender  *ConnSender
	timeout time.Duration
	clock   clock.PassiveClock
	reports chan Report
	dropped atomic.Uint64

	mu      sync.Mutex
	pending *pendingRequest

	log logging.LeveledLogger
}

type pendingRequest struct {
	op       message.Opcode
	resultCh chan requestResult
}

type requestResult struct {
	report  *message.ReportDataMessage
	subResp *message.SubscribeResponseMessage
	err     error
}

// NewClient creates a new IM client.
func NewClient(config ClientConfig) *Client {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = DefaultRequestTimeout
	}
	buffer := config.ReportBuffer
	if buffer == 0 {
		buffer = DefaultReportBuffer
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}

	c := &Client{
		conn:    config.Conn,
		sender:  NewConnSender(config.Conn),
		timeout: timeout,
		clock:   clk,
		reports: make(chan Report, buffer),
	}
	if config.LoggerFactory != nil {
		c.log = config.LoggerFactory.NewLogger("im-client")
	}
	return c
}

// Reports returns the channel subscription and read reports are delivered
// on. It is closed when Run returns.
func (c *Client) Reports() <-chan Report { return c.reports }

// Dropped returns how many reports were dropped because the Reports
// channel was full.
func (c *Client) Dropped() uint64 { return c.dropped.Load() }

// Subscribe sends a subscribe request and waits for the subscribe
// response. The priming report arrives on Reports before it returns.
func (c *Client) Subscribe(ctx context.Context, req *message.SubscribeRequestMessage) (*message.SubscribeResponseMessage, error) {
	res, err := c.roundTrip(ctx, message.OpcodeSubscribeRequest, func() error {
		return c.sender.SendSubscribeRequest(req)
	})
	if err != nil {
		return nil, err
	}
	if res.subResp == nil {
		return nil, ErrUnexpectedResponse
	}
	return res.subResp, nil
}

// Read sends a read request and waits for its report.
func (c *Client) Read(ctx context.Context, req *message.ReadRequestMessage) (*message.ReportDataMessage, error) {
	res, err := c.roundTrip(ctx, message.OpcodeReadRequest, func() error {
		return c.sender.SendReadRequest(req)
	})
	if err != nil {
		return nil, err
	}
	if res.report == nil {
		return nil, ErrUnexpectedResponse
	}
	return res.report, nil
}

func (c *Client) roundTrip(ctx context.Context, op message.Opcode, send func() error) (requestResult, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	p := &pendingRequest{op: op, resultCh: make(chan requestResult, 1)}
	c.mu.Lock()
	if c.pending != nil {
		c.mu.Unlock()
		return requestResult{}, ErrClientBusy
	}
	c.pending = p
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		if c.pending == p {
			c.pending = nil
		}
		c.mu.Unlock()
	}()

	if err := send(); err != nil {
		return requestResult{}, err
	}

	select {
	case <-ctx.Done():
		return requestResult{}, ErrClientTimeout
	case res := <-p.resultCh:
		return res, res.err
	}
}

// Run reads frames from the connection until it fails or ctx is done.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.reports)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = c.conn.Close()
		case <-stop:
		}
	}()

	buf := make([]byte, message.MaxFrameSize)
	for {
		frame, err := readFrame(c.conn, buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			if errors.Is(err, message.ErrMalformedFrame) {
				if c.log != nil {
					c.log.Warnf("dropping malformed frame: %v", err)
				}
				continue
			}
			return fmt.Errorf("im: read frame: %w", err)
		}
		if err := c.handleFrame(frame); err != nil && c.log != nil {
			c.log.Warnf("%s: %v", frame.Opcode, err)
		}
	}
}

func (c *Client) handleFrame(frame message.Frame) error {
	switch frame.Opcode {
	case message.OpcodeReportData:
		var msg message.ReportDataMessage
		if err := frame.Decode(&msg); err != nil {
			return err
		}
		return c.handleReport(&msg)

	case message.OpcodeSubscribeResponse:
		var msg message.SubscribeResponseMessage
		if err := frame.Decode(&msg); err != nil {
			return err
		}
		c.complete(message.OpcodeSubscribeRequest, requestResult{subResp: &msg})
		return nil

	case message.OpcodeStatusResponse:
		var msg message.StatusResponseMessage
		if err := frame.Decode(&msg); err != nil {
			return err
		}
		err := StatusToError(msg.Status)
		if err == nil {
			err = fmt.Errorf("%w: status %s", ErrUnexpectedResponse, msg.Status)
		}
		c.complete(0, requestResult{err: err})
		return nil

	default:
		return fmt.Errorf("%w: opcode %s", ErrUnexpectedResponse, frame.Opcode)
	}
}

func (c *Client) handleReport(msg *message.ReportDataMessage) error {
	r := Report{Message: msg, Received: c.clock.Now()}
	if msg.SubscriptionID != nil {
		r.SubscriptionID = *msg.SubscriptionID
	}

	if !msg.SuppressResponse {
		ack := &message.StatusResponseMessage{SubscriptionID: r.SubscriptionID, Status: message.StatusSuccess}
		if err := c.sender.SendStatusResponse(ack); err != nil {
			return fmt.Errorf("acknowledge report: %w", err)
		}
	}

	select {
	case c.reports <- r:
	default:
		c.dropped.Add(1)
		if c.log != nil {
			c.log.Warnf("report channel full, dropped report for subscription %d", r.SubscriptionID)
		}
	}

	if msg.SubscriptionID == nil {
		c.complete(message.OpcodeReadRequest, requestResult{report: msg})
	}
	return nil
}

// complete hands res to the pending request. An op of 0 matches any.
func (c *Client) complete(op message.Opcode, res requestResult) {
	c.mu.Lock()
	p := c.pending
	if p == nil || (op != 0 && p.op != op) {
		c.mu.Unlock()
		return
	}
	c.pending = nil
	c.mu.Unlock()

	p.resultCh <- res
}
