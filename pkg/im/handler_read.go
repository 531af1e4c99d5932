package im

import (
	"fmt"
	"time"

	"github.com/backkem/matter-reporting/pkg/acl"
	"github.com/backkem/matter-reporting/pkg/datamodel"
	"github.com/backkem/matter-reporting/pkg/im/message"
	"github.com/backkem/matter-reporting/pkg/im/reporting"
)

// ReadHandlerState represents the handler state machine.
type ReadHandlerState int

const (
	// ReadHandlerStateIdle is a handler that has not been started.
	ReadHandlerStateIdle ReadHandlerState = iota

	// ReadHandlerStateGeneratingReports is a handler that may send its next report.
	ReadHandlerStateGeneratingReports

	// ReadHandlerStateAwaitingReportResponse is a subscription waiting for
	// the status response to its last report.
	ReadHandlerStateAwaitingReportResponse

	// ReadHandlerStateClosed is a handler that was removed from the engine.
	ReadHandlerStateClosed
)

// String returns the state name.
func (s ReadHandlerState) String() string {
	switch s {
	case ReadHandlerStateIdle:
		return "Idle"
	case ReadHandlerStateGeneratingReports:
		return "GeneratingReports"
	case ReadHandlerStateAwaitingReportResponse:
		return "AwaitingReportResponse"
	case ReadHandlerStateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// ReadHandler serves one read or subscription.
//
// A subscription handler starts priming: its first report carries every
// attribute it is interested in. Once the subscriber acknowledged that
// report the handler is registered with the report scheduler and only
// reports attributes marked dirty since its previous report.
//
// All methods must be called from the engine's event loop.
type ReadHandler struct {
	id           datamodel.SubscriptionID
	subscription bool
	paths        []datamodel.AttributePathParams
	subject      acl.SubjectDescriptor
	filtered     bool
	minInterval  time.Duration
	maxInterval  time.Duration

	sender ReportSender

	// onForcedDirty reschedules the handler after ForceDirtyState.
	onForcedDirty func(h *ReadHandler)

	state ReadHandlerState

	// established is set once the subscribe response was sent.
	established bool
	dirty       bool
	priming     bool
	lastGen     uint64
	reportsSent int
}

type readHandlerParams struct {
	id           datamodel.SubscriptionID
	subscription bool
	paths        []datamodel.AttributePathParams
	subject      acl.SubjectDescriptor
	filtered     bool
	minInterval  time.Duration
	maxInterval  time.Duration
	sender       ReportSender
}

func newReadHandler(p readHandlerParams) *ReadHandler {
	return &ReadHandler{
		id:           p.id,
		subscription: p.subscription,
		paths:        p.paths,
		subject:      p.subject,
		filtered:     p.filtered,
		minInterval:  p.minInterval,
		maxInterval:  p.maxInterval,
		sender:       p.sender,
		state:        ReadHandlerStateIdle,
		priming:      true,
	}
}

// SubscriptionID implements reporting.ReadHandler. Reads have ID 0.
func (h *ReadHandler) SubscriptionID() datamodel.SubscriptionID { return h.id }

// ReportingIntervals implements reporting.ReadHandler.
func (h *ReadHandler) ReportingIntervals() (time.Duration, time.Duration) {
	return h.minInterval, h.maxInterval
}

// CanStartReporting implements reporting.ReadHandler.
func (h *ReadHandler) CanStartReporting() bool {
	return h.state == ReadHandlerStateGeneratingReports
}

// IsDirty implements reporting.ReadHandler.
func (h *ReadHandler) IsDirty() bool { return h.dirty }

// AttributePaths implements reporting.Subscription.
func (h *ReadHandler) AttributePaths() []datamodel.AttributePathParams { return h.paths }

// Subject implements reporting.Subscription.
func (h *ReadHandler) Subject() acl.SubjectDescriptor { return h.subject }

// IsFabricFiltered implements reporting.Subscription.
func (h *ReadHandler) IsFabricFiltered() bool { return h.filtered }

// IsSubscription implements reporting.Subscription.
func (h *ReadHandler) IsSubscription() bool { return h.subscription }

// IsActiveSubscription implements reporting.Subscription.
func (h *ReadHandler) IsActiveSubscription() bool {
	if !h.subscription || h.priming {
		return false
	}
	return h.state == ReadHandlerStateGeneratingReports ||
		h.state == ReadHandlerStateAwaitingReportResponse
}

// IsPriming implements reporting.Subscription.
func (h *ReadHandler) IsPriming() bool { return h.priming }

// LastReportGeneration implements reporting.Subscription.
func (h *ReadHandler) LastReportGeneration() uint64 { return h.lastGen }

// MarkDirty implements reporting.Subscription.
func (h *ReadHandler) MarkDirty() { h.dirty = true }

// ForceDirtyState marks the handler dirty so its next report is sent at the
// min interval even if nothing it is interested in changed.
func (h *ReadHandler) ForceDirtyState() {
	if h.state == ReadHandlerStateClosed {
		return
	}
	h.dirty = true
	if h.onForcedDirty != nil {
		h.onForcedDirty(h)
	}
}

// SendReport implements reporting.Subscription.
func (h *ReadHandler) SendReport(report *message.ReportDataMessage, generation uint64) error {
	if h.state != ReadHandlerStateGeneratingReports {
		return fmt.Errorf("%w: send report in state %s", ErrInvalidAction, h.state)
	}
	if err := h.sender.SendReport(report); err != nil {
		return err
	}

	h.lastGen = generation
	h.dirty = false
	h.priming = false
	h.reportsSent++
	if h.subscription {
		h.state = ReadHandlerStateAwaitingReportResponse
	}
	return nil
}

// State returns the current handler state.
func (h *ReadHandler) State() ReadHandlerState { return h.state }

// IsEstablished reports whether the subscribe response was sent.
func (h *ReadHandler) IsEstablished() bool { return h.established }

// ReportsSent returns how many reports the handler sent.
func (h *ReadHandler) ReportsSent() int { return h.reportsSent }

// onReportAcknowledged moves an awaiting subscription back to generating
// reports. It returns true the first time, when the subscription becomes
// established.
func (h *ReadHandler) onReportAcknowledged() (bool, error) {
	if h.state != ReadHandlerStateAwaitingReportResponse {
		return false, fmt.Errorf("%w: status response in state %s", ErrInvalidAction, h.state)
	}
	h.state = ReadHandlerStateGeneratingReports
	if h.established {
		return false, nil
	}
	h.established = true
	return true, nil
}

func (h *ReadHandler) close() {
	h.state = ReadHandlerStateClosed
	h.sender = nil
	h.onForcedDirty = nil
}

var _ reporting.Subscription = (*ReadHandler)(nil)
