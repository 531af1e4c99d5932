// Package im implements the server side of Interaction Model reads and
// subscriptions on top of the reporting engine.
package im

import (
	"fmt"
	"strings"
	"time"

	"github.com/backkem/matter-reporting/pkg/acl"
	"github.com/backkem/matter-reporting/pkg/datamodel"
	"github.com/backkem/matter-reporting/pkg/eventloop"
	"github.com/backkem/matter-reporting/pkg/im/message"
	"github.com/backkem/matter-reporting/pkg/im/reporting"
	"github.com/pion/logging"
	"github.com/prometheus/client_golang/prometheus"
	"k8s.io/utils/clock"
)

// DefaultMaxSubscriptions is the default size of the subscription pool.
const DefaultMaxSubscriptions = 16

// SchedulerKind selects the report scheduler.
type SchedulerKind int

const (
	// SchedulerDefault arms one timer per subscription.
	SchedulerDefault SchedulerKind = iota

	// SchedulerSynchronized batches subscriptions behind one timer.
	SchedulerSynchronized
)

// String returns the scheduler name.
func (k SchedulerKind) String() string {
	switch k {
	case SchedulerDefault:
		return "default"
	case SchedulerSynchronized:
		return "synchronized"
	default:
		return "unknown"
	}
}

// ParseSchedulerKind parses a scheduler name as printed by String.
func ParseSchedulerKind(s string) (SchedulerKind, error) {
	switch strings.ToLower(s) {
	case "", "default":
		return SchedulerDefault, nil
	case "synchronized", "sync":
		return SchedulerSynchronized, nil
	default:
		return 0, fmt.Errorf("im: unknown scheduler %q", s)
	}
}

// EngineConfig configures the Engine.
type EngineConfig struct {
	// Provider is the data model reports are built from.
	// Required. If it also implements datamodel.DataModelProvider the engine
	// registers itself as its change listener.
	Provider datamodel.Provider

	// ACLChecker performs access control checks.
	// Optional - if nil, ACL checks are skipped.
	ACLChecker *acl.Checker

	// SchedulerKind selects the report scheduler.
	SchedulerKind SchedulerKind

	// MaxSubscriptions bounds the number of concurrent subscriptions.
	// Defaults to DefaultMaxSubscriptions if 0.
	MaxSubscriptions int

	// DirtySetCapacity is the dirty path pool size.
	// Defaults to reporting.DefaultDirtySetCapacity if 0.
	DirtySetCapacity int

	// MaxReportsInFlight bounds unacknowledged reports.
	// Defaults to reporting.DefaultMaxReportsInFlight if 0.
	MaxReportsInFlight int

	// Clock drives report timers. Defaults to the real clock.
	Clock clock.WithDelayedExecution

	// Loop is the event loop all engine state lives on. Required.
	Loop *eventloop.Loop

	// Registerer receives the reporting metrics.
	// Optional - if nil, metrics are not collected.
	Registerer prometheus.Registerer

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

func (c *EngineConfig) applyDefaults() {
	if c.MaxSubscriptions == 0 {
		c.MaxSubscriptions = DefaultMaxSubscriptions
	}
	if c.Clock == nil {
		c.Clock = clock.RealClock{}
	}
}

// Validate checks the configuration.
func (c *EngineConfig) Validate() error {
	if c.Provider == nil {
		return ErrNoProvider
	}
	if c.Loop == nil {
		return ErrNoLoop
	}
	if c.MaxSubscriptions < 0 {
		return fmt.Errorf("im: invalid MaxSubscriptions %d", c.MaxSubscriptions)
	}
	return nil
}

// Engine is the Interaction Model engine.
//
// It owns the pool of subscription read handlers, serves one-shot reads
// and feeds attribute changes into the reporting engine. Apart from
// OnAttributeChanged, every method must be called from the event loop.
type Engine struct {
	provider datamodel.Provider
	loop     *eventloop.Loop
	timers   *reporting.ClockTimerDelegate

	scheduler reporting.ReportScheduler
	reporting *reporting.Engine
	metrics   *reporting.Metrics

	maxSubscriptions int
	handlers         []*ReadHandler
	nextID           datamodel.SubscriptionID
	closed           bool

	log logging.LeveledLogger
}

// NewEngine creates an IM engine and initializes its reporting engine.
func NewEngine(config EngineConfig) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.applyDefaults()

	e := &Engine{
		provider:         config.Provider,
		loop:             config.Loop,
		maxSubscriptions: config.MaxSubscriptions,
		nextID:           1,
	}
	if config.LoggerFactory != nil {
		e.log = config.LoggerFactory.NewLogger("im")
	}
	e.metrics = reporting.NewMetrics(config.Registerer)

	e.timers = reporting.NewClockTimerDelegate(config.Clock, config.Loop)
	schedConfig := reporting.SchedulerConfig{
		Timers:        e.timers,
		Metrics:       e.metrics,
		LoggerFactory: config.LoggerFactory,
	}
	switch config.SchedulerKind {
	case SchedulerSynchronized:
		e.scheduler = reporting.NewSynchronizedScheduler(schedConfig)
	default:
		e.scheduler = reporting.NewDefaultScheduler(schedConfig)
	}

	repConfig := reporting.EngineConfig{
		Provider:           config.Provider,
		Scheduler:          e.scheduler,
		Handlers:           e,
		Loop:               config.Loop,
		DirtySetCapacity:   config.DirtySetCapacity,
		MaxReportsInFlight: config.MaxReportsInFlight,
		OnReportError:      e.onReportError,
		Metrics:            e.metrics,
		LoggerFactory:      config.LoggerFactory,
	}
	if config.ACLChecker != nil {
		repConfig.AccessChecker = config.ACLChecker
	}

	rep, err := reporting.NewEngine(repConfig)
	if err != nil {
		return nil, err
	}
	if err := rep.Init(); err != nil {
		return nil, err
	}
	e.reporting = rep

	if dm, ok := config.Provider.(datamodel.DataModelProvider); ok {
		dm.SetAttributeChangeListener(e)
	}
	return e, nil
}

// Reporting returns the underlying reporting engine.
func (e *Engine) Reporting() *reporting.Engine { return e.reporting }

// Scheduler returns the report scheduler.
func (e *Engine) Scheduler() reporting.ReportScheduler { return e.scheduler }

// NumSubscriptions returns the number of open subscriptions.
func (e *Engine) NumSubscriptions() int { return len(e.handlers) }

// Subscription returns the open subscription with the given ID, or nil.
func (e *Engine) Subscription(id datamodel.SubscriptionID) *ReadHandler {
	for _, h := range e.handlers {
		if h.id == id {
			return h
		}
	}
	return nil
}

// ReadHandlers implements reporting.HandlerSet.
func (e *Engine) ReadHandlers() []reporting.Subscription {
	out := make([]reporting.Subscription, len(e.handlers))
	for i, h := range e.handlers {
		out[i] = h
	}
	return out
}

// Subscribe creates a subscription and sends its priming report.
//
// The subscription is established, and its subscribe response sent, when
// the subscriber acknowledges the priming report with OnStatusResponse.
func (e *Engine) Subscribe(req SubscribeRequest, sender ReportSender) (*ReadHandler, error) {
	if e.closed {
		return nil, ErrEngineClosed
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !req.KeepSubscriptions {
		e.closeSubscriptionsOf(req.Subject)
	}
	if len(e.handlers) >= e.maxSubscriptions {
		return nil, fmt.Errorf("%w: %d subscriptions open", ErrResourceExhausted, len(e.handlers))
	}

	h := newReadHandler(readHandlerParams{
		id:           e.allocateID(),
		subscription: true,
		paths:        req.Paths,
		subject:      req.Subject,
		filtered:     req.FabricFiltered,
		minInterval:  req.MinInterval,
		maxInterval:  req.MaxInterval,
		sender:       sender,
	})
	h.onForcedDirty = func(h *ReadHandler) { e.scheduler.OnBecameReportable(h) }
	h.state = ReadHandlerStateGeneratingReports
	e.handlers = append(e.handlers, h)

	if err := e.reporting.BuildAndSendSingleReportData(h); err != nil {
		e.closeHandler(h)
		return nil, err
	}

	if e.log != nil {
		e.log.Infof("subscription %d: primed for subject 0x%X (min=%v max=%v, %d paths)",
			h.id, req.Subject.Subject, req.MinInterval, req.MaxInterval, len(req.Paths))
	}
	return h, nil
}

// Read serves a one-shot read. The returned handler is already closed.
func (e *Engine) Read(req ReadRequest, sender ReportSender) (*ReadHandler, error) {
	if e.closed {
		return nil, ErrEngineClosed
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	h := newReadHandler(readHandlerParams{
		paths:    req.Paths,
		subject:  req.Subject,
		filtered: req.FabricFiltered,
		sender:   sender,
	})
	h.state = ReadHandlerStateGeneratingReports
	err := e.reporting.BuildAndSendSingleReportData(h)
	h.close()
	if err != nil {
		return nil, err
	}
	return h, nil
}

// OnStatusResponse handles the subscriber's response to a report.
//
// A success status makes the handler ready for its next report; for the
// priming report it also sends the subscribe response and registers the
// subscription with the scheduler. Any other status closes the
// subscription.
func (e *Engine) OnStatusResponse(id datamodel.SubscriptionID, status message.Status) error {
	h := e.Subscription(id)
	if h == nil {
		return fmt.Errorf("%w: %d", ErrInvalidSubscription, id)
	}
	if h.state != ReadHandlerStateAwaitingReportResponse {
		return fmt.Errorf("%w: subscription %d is %s", ErrInvalidAction, id, h.state)
	}

	if !status.IsSuccess() {
		if e.log != nil {
			e.log.Infof("subscription %d: report rejected with %s, closing", id, status)
		}
		e.closeHandler(h)
		return nil
	}

	established, err := h.onReportAcknowledged()
	if err != nil {
		return err
	}
	e.reporting.OnReportConfirm()
	if !established {
		return nil
	}

	resp := &message.SubscribeResponseMessage{
		SubscriptionID: h.id,
		MaxInterval:    uint16(h.maxInterval / time.Second),
	}
	if err := h.sender.SendSubscribeResponse(resp); err != nil {
		e.closeHandler(h)
		return fmt.Errorf("im: subscription %d: send subscribe response: %w", id, err)
	}
	e.scheduler.OnReadHandlerAdded(h)

	if e.log != nil {
		e.log.Debugf("subscription %d: established", id)
	}
	return nil
}

// Unsubscribe closes the subscription with the given ID.
func (e *Engine) Unsubscribe(id datamodel.SubscriptionID) error {
	h := e.Subscription(id)
	if h == nil {
		return fmt.Errorf("%w: %d", ErrInvalidSubscription, id)
	}
	e.closeHandler(h)
	return nil
}

// SetDirty records a change of the data covered by path.
func (e *Engine) SetDirty(path datamodel.AttributePathParams) error {
	if e.closed {
		return ErrEngineClosed
	}
	return e.reporting.SetDirty(path)
}

// OnAttributeChanged implements datamodel.AttributeChangeListener.
// It is safe to call from any goroutine.
func (e *Engine) OnAttributeChanged(path datamodel.AttributePathParams) {
	e.loop.Post(func() {
		if err := e.SetDirty(path); err != nil && e.log != nil {
			e.log.Warnf("set dirty %s: %v", path, err)
		}
	})
}

// Shutdown closes every subscription and stops reporting.
func (e *Engine) Shutdown() {
	if e.closed {
		return
	}
	e.closed = true

	for _, h := range e.handlers {
		h.close()
	}
	e.handlers = nil
	e.reporting.Shutdown()
	e.timers.Close()

	if e.log != nil {
		e.log.Debug("engine shut down")
	}
}

func (e *Engine) allocateID() datamodel.SubscriptionID {
	for {
		id := e.nextID
		e.nextID++
		if e.nextID == 0 {
			e.nextID = 1
		}
		if e.Subscription(id) == nil {
			return id
		}
	}
}

func (e *Engine) closeSubscriptionsOf(subject acl.SubjectDescriptor) {
	for _, h := range e.ReadHandlers() {
		rh := h.(*ReadHandler)
		if rh.subject.FabricIndex == subject.FabricIndex && rh.subject.Subject == subject.Subject {
			if e.log != nil {
				e.log.Debugf("subscription %d: replaced by new subscription", rh.id)
			}
			e.closeHandler(rh)
		}
	}
}

// closeHandler unregisters h and drops it from the pool. A report still
// awaiting its response no longer counts against the in-flight limit.
func (e *Engine) closeHandler(h *ReadHandler) {
	if h.state == ReadHandlerStateClosed {
		return
	}
	awaiting := h.state == ReadHandlerStateAwaitingReportResponse

	e.scheduler.OnReadHandlerRemoved(h)
	for i, other := range e.handlers {
		if other == h {
			e.handlers = append(e.handlers[:i], e.handlers[i+1:]...)
			break
		}
	}
	h.close()

	if awaiting {
		e.reporting.OnReportConfirm()
	}
}

func (e *Engine) onReportError(s reporting.Subscription, err error) {
	h, ok := s.(*ReadHandler)
	if !ok {
		return
	}
	if e.log != nil {
		e.log.Warnf("subscription %d: report failed, closing: %v", h.id, err)
	}
	e.closeHandler(h)
}

var (
	_ reporting.HandlerSet              = (*Engine)(nil)
	_ datamodel.AttributeChangeListener = (*Engine)(nil)
)
