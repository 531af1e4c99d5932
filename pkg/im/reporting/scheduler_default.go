package reporting

import (
	"time"

	"github.com/pion/logging"
)

// SchedulerConfig configures a report scheduler.
type SchedulerConfig struct {
	// Timers is the timer service. Required.
	Timers TimerDelegate

	// Runner is asked to run the engine when reports are due. The engine
	// sets itself as runner in Init, so this is usually left nil.
	Runner EngineRunner

	// Metrics records the number of registered handlers (optional).
	Metrics *Metrics

	// LoggerFactory for creating loggers (optional).
	LoggerFactory logging.LoggerFactory
}

// schedulerBase holds what both schedulers share: the node registry and
// the collaborators.
type schedulerBase struct {
	timers  TimerDelegate
	runner  EngineRunner
	nodes   *nodeRegistry
	metrics *Metrics
	log     logging.LeveledLogger
}

func newSchedulerBase(config SchedulerConfig) schedulerBase {
	b := schedulerBase{
		timers:  config.Timers,
		runner:  config.Runner,
		nodes:   newNodeRegistry(),
		metrics: config.Metrics,
	}
	if config.LoggerFactory != nil {
		b.log = config.LoggerFactory.NewLogger("scheduler")
	}
	return b
}

// SetRunner implements ReportScheduler.
func (b *schedulerBase) SetRunner(r EngineRunner) {
	b.runner = r
}

// NumReadHandlers implements ReportScheduler.
func (b *schedulerBase) NumReadHandlers() int {
	return b.nodes.len()
}

// IsReportableNow implements ReportScheduler.
func (b *schedulerBase) IsReportableNow(h ReadHandler) bool {
	n := b.nodes.find(h)
	return n != nil && n.isReportableNow(b.timers.Now())
}

// Node returns the scheduler's record of h, or nil if h is not registered.
func (b *schedulerBase) Node(h ReadHandler) *ReadHandlerNode {
	return b.nodes.find(h)
}

func (b *schedulerBase) scheduleRun() {
	if b.runner != nil {
		b.runner.ScheduleRun()
	}
}

func (b *schedulerBase) timerFailed(h ReadHandler, timeout time.Duration, err error) {
	if b.log != nil {
		b.log.Warnf("subscription %d: failed to start %v report timer: %v", h.SubscriptionID(), timeout, err)
	}
}

func (b *schedulerBase) nodesChanged() {
	b.metrics.setSchedulerNodes(b.nodes.len())
}

// DefaultScheduler arms one timer per handler. Each handler reports at its
// own min interval once dirty, and at its max interval otherwise.
type DefaultScheduler struct {
	schedulerBase
}

// NewDefaultScheduler creates a scheduler with one timer per handler.
func NewDefaultScheduler(config SchedulerConfig) *DefaultScheduler {
	return &DefaultScheduler{schedulerBase: newSchedulerBase(config)}
}

// OnReadHandlerAdded implements ReportScheduler.
func (s *DefaultScheduler) OnReadHandlerAdded(h ReadHandler) {
	n := s.nodes.add(h, s.nodeTimerFired)
	s.nodesChanged()

	now := s.timers.Now()
	n.setIntervalTimestamps(now)
	s.scheduleReport(n, now)

	if s.log != nil {
		minInterval, maxInterval := h.ReportingIntervals()
		s.log.Debugf("subscription %d registered: min=%v max=%v", h.SubscriptionID(), minInterval, maxInterval)
	}
}

// OnBecameReportable implements ReportScheduler.
func (s *DefaultScheduler) OnBecameReportable(h ReadHandler) {
	n := s.nodes.find(h)
	if n == nil {
		return
	}
	s.scheduleReport(n, s.timers.Now())
}

// OnReportSent implements ReportScheduler.
func (s *DefaultScheduler) OnReportSent(h ReadHandler) {
	n := s.nodes.find(h)
	if n == nil {
		return
	}

	now := s.timers.Now()
	n.canBeSynced = false
	n.engineRunScheduled = false
	n.setIntervalTimestamps(now)
	s.scheduleReport(n, now)
}

// OnReadHandlerRemoved implements ReportScheduler.
func (s *DefaultScheduler) OnReadHandlerRemoved(h ReadHandler) {
	s.CancelReport(h)
	if s.nodes.remove(h) != nil {
		s.nodesChanged()
	}
}

// IsReportScheduled implements ReportScheduler.
func (s *DefaultScheduler) IsReportScheduled(h ReadHandler) bool {
	n := s.nodes.find(h)
	return n != nil && s.timers.IsTimerActive(n)
}

// CancelReport implements ReportScheduler.
func (s *DefaultScheduler) CancelReport(h ReadHandler) {
	if n := s.nodes.find(h); n != nil {
		s.timers.CancelTimer(n)
	}
}

// UnregisterAllHandlers implements ReportScheduler.
func (s *DefaultScheduler) UnregisterAllHandlers() {
	for _, n := range s.nodes.clear() {
		s.timers.CancelTimer(n)
	}
	s.nodesChanged()
}

// State implements ReportScheduler.
func (s *DefaultScheduler) State(h ReadHandler) NodeState {
	n := s.nodes.find(h)
	if n == nil {
		return NodeStateIdle
	}
	if n.isReportableNow(s.timers.Now()) {
		return NodeStateReportableNow
	}
	if s.timers.IsTimerActive(n) {
		return n.armedFor
	}
	return NodeStateIdle
}

// nextReportTimeout returns how long until n should report: zero if it is
// reportable now, the rest of the min interval if it is dirty, otherwise
// the rest of the max interval.
func (s *DefaultScheduler) nextReportTimeout(n *ReadHandlerNode, now time.Time) (time.Duration, NodeState) {
	if n.isReportableNow(now) {
		return 0, NodeStateReportableNow
	}
	if n.handler.IsDirty() && n.minTimestamp.After(now) {
		return n.minTimestamp.Sub(now), NodeStateScheduledMin
	}
	if d := n.maxTimestamp.Sub(now); d > 0 {
		return d, NodeStateScheduledMax
	}
	return 0, NodeStateScheduledMax
}

// scheduleReport replaces any pending timer of n. A zero timeout fires
// immediately.
func (s *DefaultScheduler) scheduleReport(n *ReadHandlerNode, now time.Time) {
	timeout, kind := s.nextReportTimeout(n, now)

	s.timers.CancelTimer(n)
	if timeout <= 0 {
		n.TimerFired()
		return
	}
	if err := s.timers.StartTimer(n, timeout); err != nil {
		s.timerFailed(n.handler, timeout, err)
		return
	}
	n.armedFor = kind
}

func (s *DefaultScheduler) nodeTimerFired(n *ReadHandlerNode) {
	n.engineRunScheduled = true
	s.scheduleRun()
}

var _ ReportScheduler = (*DefaultScheduler)(nil)
