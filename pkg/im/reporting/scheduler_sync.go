package reporting

import "time"

// syncHorizon bounds how far ahead the shared timer is armed when no
// handler has a max interval pending.
const syncHorizon = 65535 * time.Second

// SynchronizedScheduler drives every handler from one shared timer.
//
// The timer fires at the earliest max interval among handlers, or earlier
// at the latest min interval not past it when some handler is dirty. When
// it fires, every handler whose min interval elapsed reports in the same
// engine run, so a node wakes once for many subscriptions.
type SynchronizedScheduler struct {
	schedulerBase

	nextMin  time.Time
	nextMax  time.Time
	armedFor NodeState
}

// NewSynchronizedScheduler creates a scheduler with one shared timer.
func NewSynchronizedScheduler(config SchedulerConfig) *SynchronizedScheduler {
	return &SynchronizedScheduler{schedulerBase: newSchedulerBase(config)}
}

// OnReadHandlerAdded implements ReportScheduler.
func (s *SynchronizedScheduler) OnReadHandlerAdded(h ReadHandler) {
	n := s.nodes.add(h, nil)
	s.nodesChanged()

	now := s.timers.Now()
	n.setIntervalTimestamps(now)
	s.reschedule(now)
}

// OnBecameReportable implements ReportScheduler.
func (s *SynchronizedScheduler) OnBecameReportable(h ReadHandler) {
	if s.nodes.find(h) == nil {
		return
	}
	s.reschedule(s.timers.Now())
}

// OnReportSent implements ReportScheduler.
func (s *SynchronizedScheduler) OnReportSent(h ReadHandler) {
	n := s.nodes.find(h)
	if n == nil {
		return
	}

	now := s.timers.Now()
	n.canBeSynced = false
	n.engineRunScheduled = false
	n.setIntervalTimestamps(now)
	s.reschedule(now)
}

// OnReadHandlerRemoved implements ReportScheduler.
func (s *SynchronizedScheduler) OnReadHandlerRemoved(h ReadHandler) {
	if s.nodes.remove(h) == nil {
		return
	}
	s.nodesChanged()
	s.reschedule(s.timers.Now())
}

// IsReportScheduled implements ReportScheduler.
func (s *SynchronizedScheduler) IsReportScheduled(h ReadHandler) bool {
	return s.nodes.find(h) != nil && s.timers.IsTimerActive(s)
}

// CancelReport implements ReportScheduler. The timer is shared, so this
// cancels the pending report of every handler until the next reschedule.
func (s *SynchronizedScheduler) CancelReport(h ReadHandler) {
	if s.nodes.find(h) != nil {
		s.timers.CancelTimer(s)
	}
}

// UnregisterAllHandlers implements ReportScheduler.
func (s *SynchronizedScheduler) UnregisterAllHandlers() {
	s.timers.CancelTimer(s)
	s.nodes.clear()
	s.nodesChanged()
}

// State implements ReportScheduler.
func (s *SynchronizedScheduler) State(h ReadHandler) NodeState {
	n := s.nodes.find(h)
	if n == nil {
		return NodeStateIdle
	}
	if n.isReportableNow(s.timers.Now()) {
		return NodeStateReportableNow
	}
	if s.timers.IsTimerActive(s) {
		return s.armedFor
	}
	return NodeStateIdle
}

// NextReportTime returns when the shared timer is due, or the zero time if
// it is not armed.
func (s *SynchronizedScheduler) NextReportTime() (time.Time, NodeState) {
	if !s.timers.IsTimerActive(s) {
		return time.Time{}, NodeStateIdle
	}
	if s.armedFor == NodeStateScheduledMin {
		return s.nextMin, s.armedFor
	}
	return s.nextMax, s.armedFor
}

// TimerFired implements TimerContext for the shared timer.
func (s *SynchronizedScheduler) TimerFired() {
	now := s.timers.Now()
	firedEarly := true

	s.nodes.each(func(n *ReadHandlerNode) bool {
		if !n.minTimestamp.After(now) && n.handler.CanStartReporting() {
			n.canBeSynced = true
		}
		if n.isReportableNow(now) {
			firedEarly = false
			n.engineRunScheduled = true
		}
		return true
	})

	if !firedEarly {
		s.scheduleRun()
		return
	}

	// Nothing was due, e.g. the handler that armed the timer was removed.
	s.findNextMaxInterval(now)
	s.findNextMinInterval(now)
	timeout, kind := s.nextReportTimeout(now)
	if timeout <= 0 {
		return
	}
	s.startTimer(timeout, kind)
}

func (s *SynchronizedScheduler) reschedule(now time.Time) {
	s.timers.CancelTimer(s)
	if s.nodes.len() == 0 {
		return
	}

	s.findNextMaxInterval(now)
	s.findNextMinInterval(now)
	timeout, kind := s.nextReportTimeout(now)
	if timeout <= 0 {
		s.TimerFired()
		return
	}
	s.startTimer(timeout, kind)
}

func (s *SynchronizedScheduler) startTimer(timeout time.Duration, kind NodeState) {
	if err := s.timers.StartTimer(s, timeout); err != nil {
		if s.log != nil {
			s.log.Warnf("failed to start shared %v report timer: %v", timeout, err)
		}
		return
	}
	s.armedFor = kind
}

// findNextMaxInterval sets nextMax to the earliest max timestamp after now.
func (s *SynchronizedScheduler) findNextMaxInterval(now time.Time) {
	earliest := now.Add(syncHorizon)
	s.nodes.each(func(n *ReadHandlerNode) bool {
		if n.maxTimestamp.Before(earliest) && n.maxTimestamp.After(now) {
			earliest = n.maxTimestamp
		}
		return true
	})
	s.nextMax = earliest
}

// findNextMinInterval sets nextMin to the latest min timestamp of a dirty
// handler that is not past nextMax, so one wake-up serves as many dirty
// handlers as possible.
func (s *SynchronizedScheduler) findNextMinInterval(now time.Time) {
	latest := now
	s.nodes.each(func(n *ReadHandlerNode) bool {
		if n.minTimestamp.After(latest) && isHandlerReportable(n.handler) && !n.minTimestamp.After(s.nextMax) {
			latest = n.minTimestamp
		}
		return true
	})
	s.nextMin = latest
}

func (s *SynchronizedScheduler) nextReportTimeout(now time.Time) (time.Duration, NodeState) {
	reportableNow := false
	reportableAtMin := false

	s.nodes.each(func(n *ReadHandlerNode) bool {
		if n.engineRunScheduled {
			return true
		}
		if n.isReportableNow(now) {
			reportableNow = true
			return false
		}
		if isHandlerReportable(n.handler) && !n.minTimestamp.After(s.nextMax) {
			reportableAtMin = true
		}
		return true
	})

	switch {
	case reportableNow:
		return 0, NodeStateReportableNow
	case reportableAtMin:
		return s.nextMin.Sub(now), NodeStateScheduledMin
	default:
		return s.nextMax.Sub(now), NodeStateScheduledMax
	}
}

func isHandlerReportable(h ReadHandler) bool {
	return h.CanStartReporting() && h.IsDirty()
}

var (
	_ ReportScheduler = (*SynchronizedScheduler)(nil)
	_ TimerContext    = (*SynchronizedScheduler)(nil)
)
