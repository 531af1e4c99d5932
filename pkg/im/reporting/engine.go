package reporting

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/backkem/matter-reporting/pkg/acl"
	"github.com/backkem/matter-reporting/pkg/datamodel"
	"github.com/backkem/matter-reporting/pkg/im/message"
	"github.com/pion/logging"
)

// DefaultMaxReportsInFlight bounds how many subscription reports may await
// a status response at once.
const DefaultMaxReportsInFlight = 4

// Subscription is a read handler as seen by the reporting engine.
type Subscription interface {
	ReadHandler

	// AttributePaths returns the paths the handler is interested in.
	AttributePaths() []datamodel.AttributePathParams

	// Subject identifies the peer for access checks.
	Subject() acl.SubjectDescriptor

	// IsFabricFiltered reports whether fabric-scoped data is filtered.
	IsFabricFiltered() bool

	// IsSubscription reports whether the handler serves a subscription
	// rather than a one-shot read.
	IsSubscription() bool

	// IsActiveSubscription reports whether the handler is a subscription
	// that finished priming (generating reports or awaiting a response).
	IsActiveSubscription() bool

	// IsPriming reports whether the next report must carry every
	// interested attribute regardless of dirtiness.
	IsPriming() bool

	// LastReportGeneration returns the dirty set generation at which the
	// handler's last report began.
	LastReportGeneration() uint64

	// MarkDirty flags the handler as having data to report.
	MarkDirty()

	// SendReport hands a built report to the transport. On success the
	// handler records generation as its last report generation and clears
	// its dirty and priming flags.
	SendReport(report *message.ReportDataMessage, generation uint64) error
}

// HandlerSet enumerates the engine's read handlers.
type HandlerSet interface {
	// ReadHandlers returns the current handlers in a stable order.
	ReadHandlers() []Subscription
}

// AccessChecker decides whether a subject may read an attribute.
// *acl.Checker implements it.
type AccessChecker interface {
	CanView(subject acl.SubjectDescriptor, path datamodel.ConcreteAttributePath) bool
}

// EngineConfig configures an Engine.
type EngineConfig struct {
	// Provider expands interest paths and encodes attributes. Required.
	Provider datamodel.Provider

	// Scheduler decides when subscriptions report. Required.
	Scheduler ReportScheduler

	// Handlers enumerates read handlers. Required.
	Handlers HandlerSet

	// Loop runs the engine. Required.
	Loop Poster

	// AccessChecker filters attributes by access control.
	// Optional - if nil, every attribute is readable.
	AccessChecker AccessChecker

	// DirtySetCapacity defaults to DefaultDirtySetCapacity.
	DirtySetCapacity int

	// MaxReportsInFlight defaults to DefaultMaxReportsInFlight.
	MaxReportsInFlight int

	// OnReportError is called when a scheduled report could not be built
	// or sent. The owner usually closes the handler.
	OnReportError func(h Subscription, err error)

	// Metrics (optional).
	Metrics *Metrics

	// LoggerFactory for creating loggers (optional).
	LoggerFactory logging.LoggerFactory
}

func (c *EngineConfig) applyDefaults() {
	if c.DirtySetCapacity == 0 {
		c.DirtySetCapacity = DefaultDirtySetCapacity
	}
	if c.MaxReportsInFlight == 0 {
		c.MaxReportsInFlight = DefaultMaxReportsInFlight
	}
}

// Validate checks the configuration.
func (c *EngineConfig) Validate() error {
	if c.Provider == nil {
		return ErrNoProvider
	}
	if c.Scheduler == nil {
		return ErrNoScheduler
	}
	if c.Handlers == nil {
		return ErrNoHandlerSet
	}
	if c.Loop == nil {
		return ErrNoLoop
	}
	if c.DirtySetCapacity < 0 {
		return ErrInvalidCapacity
	}
	return nil
}

// Engine builds and sends reports.
//
// It owns the global dirty set, runs reportable handlers round-robin and
// tracks how many reports await acknowledgement. All methods must be
// called from the event loop.
type Engine struct {
	provider      datamodel.Provider
	scheduler     ReportScheduler
	handlers      HandlerSet
	loop          Poster
	accessChecker AccessChecker
	onReportError func(Subscription, error)
	maxInFlight   int

	dirtySet *DirtySet

	initialized  bool
	runScheduled bool
	curIndex     int
	inFlight     int

	ctx    context.Context
	cancel context.CancelFunc

	metrics *Metrics
	log     logging.LeveledLogger
}

// NewEngine creates an engine. Call Init before use.
func NewEngine(config EngineConfig) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.applyDefaults()

	e := &Engine{
		provider:      config.Provider,
		scheduler:     config.Scheduler,
		handlers:      config.Handlers,
		loop:          config.Loop,
		accessChecker: config.AccessChecker,
		onReportError: config.OnReportError,
		maxInFlight:   config.MaxReportsInFlight,
		dirtySet: NewDirtySet(DirtySetConfig{
			Capacity:      config.DirtySetCapacity,
			Metrics:       config.Metrics,
			LoggerFactory: config.LoggerFactory,
		}),
		metrics: config.Metrics,
	}
	if config.LoggerFactory != nil {
		e.log = config.LoggerFactory.NewLogger("reporting")
	}
	return e, nil
}

// Init attaches the engine to its scheduler.
func (e *Engine) Init() error {
	if e.initialized {
		return nil
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.scheduler.SetRunner(e)
	e.initialized = true
	return nil
}

// Shutdown unregisters every handler and clears the dirty set.
func (e *Engine) Shutdown() {
	if !e.initialized {
		return
	}
	e.cancel()
	e.scheduler.UnregisterAllHandlers()
	e.scheduler.SetRunner(nil)
	e.dirtySet.ReleaseAll()
	e.runScheduled = false
	e.inFlight = 0
	e.metrics.setReportsInFlight(0)
	e.initialized = false
}

// DirtySet returns the engine's dirty path set.
func (e *Engine) DirtySet() *DirtySet { return e.dirtySet }

// NumReportsInFlight returns how many reports await a status response.
func (e *Engine) NumReportsInFlight() int { return e.inFlight }

// IsRunScheduled reports whether a Run is queued on the loop.
func (e *Engine) IsRunScheduled() bool { return e.runScheduled }

// SetDirty records a change of the data covered by path.
//
// Every active subscription interested in path is marked dirty and
// rescheduled. The path enters the dirty set only if some subscription was
// interested.
func (e *Engine) SetDirty(path datamodel.AttributePathParams) error {
	if !e.initialized {
		return ErrNotInitialized
	}
	e.dirtySet.BumpGeneration()

	interested := false
	for _, h := range e.handlers.ReadHandlers() {
		if !h.IsActiveSubscription() || !isInterested(h, path) {
			continue
		}
		interested = true
		h.MarkDirty()
		e.scheduler.OnBecameReportable(h)
	}
	if !interested {
		return nil
	}
	return e.InsertPathIntoDirtySet(path)
}

// InsertPathIntoDirtySet adds path to the dirty set.
func (e *Engine) InsertPathIntoDirtySet(path datamodel.AttributePathParams) error {
	return e.dirtySet.InsertPath(path)
}

// ScheduleRun queues one Run on the event loop. Further calls before it
// runs are coalesced.
func (e *Engine) ScheduleRun() {
	if !e.initialized || e.runScheduled {
		return
	}
	e.runScheduled = true
	e.loop.Post(e.Run)
}

// Run sends a report for every handler the scheduler finds reportable,
// starting after the handler served last and stopping when the in-flight
// limit is reached.
func (e *Engine) Run() {
	e.runScheduled = false
	if !e.initialized {
		return
	}

	handlers := e.handlers.ReadHandlers()
	if len(handlers) == 0 {
		return
	}
	if e.curIndex >= len(handlers) {
		e.curIndex = 0
	}

	for handled := 0; handled < len(handlers); handled++ {
		if e.inFlight >= e.maxInFlight {
			if e.log != nil {
				e.log.Debugf("%d reports in flight, deferring remaining handlers", e.inFlight)
			}
			return
		}

		h := handlers[e.curIndex]
		e.curIndex = (e.curIndex + 1) % len(handlers)

		if !e.scheduler.IsReportableNow(h) {
			continue
		}
		if err := e.BuildAndSendSingleReportData(h); err != nil {
			e.reportFailed(h, err)
		}
	}
}

// OnReportConfirm is called when a subscriber acknowledged a report.
func (e *Engine) OnReportConfirm() {
	if e.inFlight > 0 {
		e.inFlight--
	}
	e.metrics.setReportsInFlight(e.inFlight)
	e.ScheduleRun()
}

// BuildAndSendSingleReportData builds one report for h and sends it.
//
// Unless h is priming, only attributes covered by a dirty record newer
// than h's last report are included. An attribute that fails to encode
// aborts the report with a *ReportBuildError. On success the scheduler is
// told the report was sent and dirty records no handler still needs are
// released.
func (e *Engine) BuildAndSendSingleReportData(h Subscription) error {
	if !e.initialized {
		return ErrNotInitialized
	}

	beginGeneration := e.dirtySet.Generation()
	// Changes recorded from here on are newer than this report.
	e.dirtySet.BumpGeneration()

	report := &message.ReportDataMessage{}
	if h.IsSubscription() {
		report.SubscriptionID = message.Ptr(h.SubscriptionID())
	} else {
		report.SuppressResponse = true
	}

	if err := e.buildReport(h, report); err != nil {
		e.metrics.reportBuildFailed()
		var buildErr *ReportBuildError
		if errors.As(err, &buildErr) {
			buildErr.SubscriptionID = h.SubscriptionID()
			buildErr.Partial = report
		}
		return err
	}

	if err := h.SendReport(report, beginGeneration); err != nil {
		return fmt.Errorf("reporting: send report for subscription %d: %w", h.SubscriptionID(), err)
	}
	if h.IsSubscription() {
		e.inFlight++
	}
	e.metrics.reportSent(e.inFlight)

	if e.log != nil {
		e.log.Tracef("subscription %d: sent report with %d entries", h.SubscriptionID(), len(report.AttributeReports))
	}

	e.scheduler.OnReportSent(h)
	e.releaseConsumed()
	return nil
}

func (e *Engine) buildReport(h Subscription, report *message.ReportDataMessage) error {
	priming := h.IsPriming()
	since := h.LastReportGeneration()
	seen := make(map[datamodel.ConcreteAttributePath]struct{})

	include := func(c datamodel.ConcreteAttributePath) bool {
		if _, dup := seen[c]; dup {
			return false
		}
		if !priming && !e.dirtySet.IsDirty(c, since) {
			return false
		}
		seen[c] = struct{}{}
		return true
	}

	for _, interest := range h.AttributePaths() {
		if concrete, ok := interest.Concrete(); ok {
			if !include(concrete) {
				continue
			}
			if err := e.encodeAttribute(h, concrete, true, report); err != nil {
				return err
			}
			continue
		}

		paths, err := e.provider.ExpandAttributePath(interest)
		if err != nil {
			return fmt.Errorf("reporting: expand %s: %w", interest, err)
		}
		for _, c := range paths {
			if !include(c) {
				continue
			}
			if err := e.encodeAttribute(h, c, false, report); err != nil {
				return err
			}
		}
	}
	return nil
}

// encodeAttribute appends one attribute to report. Paths that are missing
// or not readable get a status entry when requested concretely and are
// skipped when they came from a wildcard.
func (e *Engine) encodeAttribute(h Subscription, c datamodel.ConcreteAttributePath, concrete bool, report *message.ReportDataMessage) error {
	path := message.AttributePathFromConcrete(c)

	if e.accessChecker != nil && !e.accessChecker.CanView(h.Subject(), c) {
		if concrete {
			report.AddStatus(path, message.StatusUnsupportedAccess)
		}
		return nil
	}

	value, err := e.provider.ReadAttribute(e.ctx, datamodel.ReadAttributeRequest{
		Path:             c,
		FabricIndex:      h.Subject().FabricIndex,
		IsFabricFiltered: h.IsFabricFiltered(),
	})
	if err != nil {
		if status, ok := notFoundStatus(err); ok {
			if concrete {
				report.AddStatus(path, status)
			}
			return nil
		}
		return &ReportBuildError{Path: c, Err: err}
	}

	report.AddData(message.AttributeDataIB{
		DataVersion: value.DataVersion,
		Path:        path,
		Data:        value.Data,
	})
	return nil
}

// releaseConsumed frees dirty records every dirty subscription has already
// begun a report after. With no dirty subscription left, all records go.
func (e *Engine) releaseConsumed() {
	oldest := uint64(math.MaxUint64)
	anyDirty := false
	for _, h := range e.handlers.ReadHandlers() {
		if !h.IsActiveSubscription() || !h.IsDirty() {
			continue
		}
		anyDirty = true
		if g := h.LastReportGeneration(); g < oldest {
			oldest = g
		}
	}

	if !anyDirty {
		e.dirtySet.ReleaseAll()
		return
	}
	e.dirtySet.ReleaseUpTo(oldest)
}

func (e *Engine) reportFailed(h Subscription, err error) {
	if e.log != nil {
		e.log.Warnf("subscription %d: report failed: %v", h.SubscriptionID(), err)
	}
	if e.onReportError != nil {
		e.onReportError(h, err)
	}
}

func isInterested(h Subscription, path datamodel.AttributePathParams) bool {
	for _, interest := range h.AttributePaths() {
		if interest.Intersects(path) {
			return true
		}
	}
	return false
}

func notFoundStatus(err error) (message.Status, bool) {
	switch {
	case errors.Is(err, datamodel.ErrEndpointNotFound):
		return message.StatusUnsupportedEndpoint, true
	case errors.Is(err, datamodel.ErrClusterNotFound):
		return message.StatusUnsupportedCluster, true
	case errors.Is(err, datamodel.ErrAttributeNotFound):
		return message.StatusUnsupportedAttribute, true
	default:
		return 0, false
	}
}

var _ EngineRunner = (*Engine)(nil)
