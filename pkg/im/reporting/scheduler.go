package reporting

import (
	"time"

	"github.com/backkem/matter-reporting/pkg/datamodel"
)

// ReadHandler is the part of a subscription the report scheduler needs.
type ReadHandler interface {
	// SubscriptionID identifies the subscription in logs.
	SubscriptionID() datamodel.SubscriptionID

	// ReportingIntervals returns the negotiated min and max intervals.
	ReportingIntervals() (min, max time.Duration)

	// CanStartReporting reports whether the handler may start a report now
	// (it is generating reports and not waiting for an acknowledgement).
	CanStartReporting() bool

	// IsDirty reports whether data the handler is interested in changed
	// since its last report.
	IsDirty() bool
}

// EngineRunner is asked to run the reporting engine when a report becomes due.
type EngineRunner interface {
	ScheduleRun()
}

// ReportScheduler decides when each subscription reports.
//
// All methods must be called from the event loop.
type ReportScheduler interface {
	// OnReadHandlerAdded registers a handler that entered the report
	// generating state and schedules its first report.
	OnReadHandlerAdded(h ReadHandler)

	// OnBecameReportable reschedules a handler after it became dirty.
	OnBecameReportable(h ReadHandler)

	// OnReportSent restarts the handler's intervals after a report.
	OnReportSent(h ReadHandler)

	// OnReadHandlerRemoved cancels the handler's timer and unregisters it.
	// No timer callback refers to the handler once this returns.
	OnReadHandlerRemoved(h ReadHandler)

	// IsReportableNow reports whether the handler should report now.
	IsReportableNow(h ReadHandler) bool

	// IsReportScheduled reports whether a timer is armed for the handler.
	IsReportScheduled(h ReadHandler) bool

	// CancelReport cancels the handler's timer but keeps it registered.
	CancelReport(h ReadHandler)

	// UnregisterAllHandlers cancels every timer and clears the registry.
	UnregisterAllHandlers()

	// NumReadHandlers returns the number of registered handlers.
	NumReadHandlers() int

	// State returns the scheduling state of the handler.
	State(h ReadHandler) NodeState

	// SetRunner sets who is asked to run the engine when reports are due.
	SetRunner(r EngineRunner)
}

// NodeState is the scheduling state of one registered handler.
type NodeState int

const (
	// NodeStateIdle means no timer is armed and the handler is not reportable.
	NodeStateIdle NodeState = iota

	// NodeStateScheduledMin means a timer is armed for the min interval.
	NodeStateScheduledMin

	// NodeStateScheduledMax means a timer is armed for the max interval.
	NodeStateScheduledMax

	// NodeStateReportableNow means the handler should report on the next run.
	NodeStateReportableNow
)

// String returns the state name.
func (s NodeState) String() string {
	switch s {
	case NodeStateIdle:
		return "Idle"
	case NodeStateScheduledMin:
		return "ScheduledMin"
	case NodeStateScheduledMax:
		return "ScheduledMax"
	case NodeStateReportableNow:
		return "ReportableNow"
	default:
		return "Unknown"
	}
}

// ReadHandlerNode is the scheduler's record of one handler.
type ReadHandlerNode struct {
	handler ReadHandler

	minTimestamp time.Time
	maxTimestamp time.Time

	// canBeSynced lets the node report with others once its min interval
	// elapsed even if it is clean.
	canBeSynced bool

	// engineRunScheduled is set once a run was requested for this node and
	// cleared when its report is sent.
	engineRunScheduled bool

	// armedFor is the state of the last timer started for the node.
	armedFor NodeState

	onFired func(n *ReadHandlerNode)
}

// Handler returns the wrapped read handler.
func (n *ReadHandlerNode) Handler() ReadHandler { return n.handler }

// MinTimestamp returns the earliest time the next report may be sent.
func (n *ReadHandlerNode) MinTimestamp() time.Time { return n.minTimestamp }

// MaxTimestamp returns the latest time the next report must be sent.
func (n *ReadHandlerNode) MaxTimestamp() time.Time { return n.maxTimestamp }

// TimerFired implements TimerContext.
func (n *ReadHandlerNode) TimerFired() {
	if n.onFired != nil {
		n.onFired(n)
	}
}

// setIntervalTimestamps restarts the min/max window at now.
func (n *ReadHandlerNode) setIntervalTimestamps(now time.Time) {
	minInterval, maxInterval := n.handler.ReportingIntervals()
	n.minTimestamp = now.Add(minInterval)
	n.maxTimestamp = now.Add(maxInterval)
}

func (n *ReadHandlerNode) isReportableNow(now time.Time) bool {
	if !n.handler.CanStartReporting() || now.Before(n.minTimestamp) {
		return false
	}
	return n.handler.IsDirty() || !now.Before(n.maxTimestamp) || n.canBeSynced
}
