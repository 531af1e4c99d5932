package im

import (
	"errors"
	"testing"
	"time"

	"github.com/backkem/matter-reporting/pkg/datamodel"
	"github.com/backkem/matter-reporting/pkg/im/message"
)

func newTestSubscription(sender ReportSender) *ReadHandler {
	h := newReadHandler(readHandlerParams{
		id:           7,
		subscription: true,
		paths:        []datamodel.AttributePathParams{datamodel.AttributePathParamsFromConcrete(onOffPath)},
		subject:      controller,
		filtered:     true,
		minInterval:  time.Second,
		maxInterval:  30 * time.Second,
		sender:       sender,
	})
	h.state = ReadHandlerStateGeneratingReports
	return h
}

func TestReadHandlerState_String(t *testing.T) {
	tests := []struct {
		state ReadHandlerState
		want  string
	}{
		{ReadHandlerStateIdle, "Idle"},
		{ReadHandlerStateGeneratingReports, "GeneratingReports"},
		{ReadHandlerStateAwaitingReportResponse, "AwaitingReportResponse"},
		{ReadHandlerStateClosed, "Closed"},
		{ReadHandlerState(42), "Unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("ReadHandlerState(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestReadHandler_NewSubscription(t *testing.T) {
	h := newTestSubscription(&recordingSender{})

	if !h.IsPriming() {
		t.Error("new handler should be priming")
	}
	if h.IsActiveSubscription() {
		t.Error("priming handler should not be active")
	}
	if !h.CanStartReporting() {
		t.Error("generating handler should be able to report")
	}
	minInterval, maxInterval := h.ReportingIntervals()
	if minInterval != time.Second || maxInterval != 30*time.Second {
		t.Errorf("ReportingIntervals() = %v, %v", minInterval, maxInterval)
	}
	if h.Subject() != controller || !h.IsFabricFiltered() || !h.IsSubscription() {
		t.Error("handler does not reflect its parameters")
	}
}

func TestReadHandler_SendReport(t *testing.T) {
	sender := &recordingSender{}
	h := newTestSubscription(sender)
	h.MarkDirty()

	report := &message.ReportDataMessage{SubscriptionID: message.Ptr(h.SubscriptionID())}
	if err := h.SendReport(report, 5); err != nil {
		t.Fatalf("SendReport() error = %v", err)
	}

	if len(sender.reports) != 1 || sender.reports[0] != report {
		t.Fatal("report not handed to the sender")
	}
	if h.State() != ReadHandlerStateAwaitingReportResponse {
		t.Errorf("State() = %v, want AwaitingReportResponse", h.State())
	}
	if h.IsDirty() || h.IsPriming() {
		t.Errorf("after report: dirty=%v priming=%v, want both false", h.IsDirty(), h.IsPriming())
	}
	if h.LastReportGeneration() != 5 {
		t.Errorf("LastReportGeneration() = %d, want 5", h.LastReportGeneration())
	}
	if !h.IsActiveSubscription() {
		t.Error("awaiting subscription should be active")
	}
	if h.CanStartReporting() {
		t.Error("awaiting subscription should not start another report")
	}

	if err := h.SendReport(report, 6); !errors.Is(err, ErrInvalidAction) {
		t.Errorf("SendReport() while awaiting error = %v, want ErrInvalidAction", err)
	}
}

func TestReadHandler_SendReportFailure(t *testing.T) {
	sendErr := errors.New("link down")
	h := newTestSubscription(&recordingSender{reportErr: sendErr})
	h.MarkDirty()

	if err := h.SendReport(&message.ReportDataMessage{}, 3); !errors.Is(err, sendErr) {
		t.Fatalf("SendReport() error = %v, want %v", err, sendErr)
	}
	if !h.IsDirty() || !h.IsPriming() || h.State() != ReadHandlerStateGeneratingReports {
		t.Error("failed send must leave the handler unchanged")
	}
}

func TestReadHandler_OnReportAcknowledged(t *testing.T) {
	h := newTestSubscription(&recordingSender{})

	if _, err := h.onReportAcknowledged(); !errors.Is(err, ErrInvalidAction) {
		t.Errorf("ack without report error = %v, want ErrInvalidAction", err)
	}

	_ = h.SendReport(&message.ReportDataMessage{}, 1)
	established, err := h.onReportAcknowledged()
	if err != nil || !established {
		t.Fatalf("first ack = %v, %v, want true, nil", established, err)
	}

	_ = h.SendReport(&message.ReportDataMessage{}, 2)
	established, err = h.onReportAcknowledged()
	if err != nil || established {
		t.Errorf("second ack = %v, %v, want false, nil", established, err)
	}
	if h.State() != ReadHandlerStateGeneratingReports {
		t.Errorf("State() = %v, want GeneratingReports", h.State())
	}
}

func TestReadHandler_ReadStaysGenerating(t *testing.T) {
	h := newReadHandler(readHandlerParams{
		paths:  []datamodel.AttributePathParams{datamodel.AttributePathParamsFromConcrete(onOffPath)},
		sender: &recordingSender{},
	})
	h.state = ReadHandlerStateGeneratingReports

	if err := h.SendReport(&message.ReportDataMessage{SuppressResponse: true}, 0); err != nil {
		t.Fatal(err)
	}
	if h.State() != ReadHandlerStateGeneratingReports {
		t.Errorf("State() = %v, want GeneratingReports", h.State())
	}
	if h.IsActiveSubscription() {
		t.Error("a read is never an active subscription")
	}
}

func TestReadHandler_ForceDirtyState(t *testing.T) {
	h := newTestSubscription(&recordingSender{})
	var notified int
	h.onForcedDirty = func(*ReadHandler) { notified++ }

	h.ForceDirtyState()
	if !h.IsDirty() || notified != 1 {
		t.Errorf("dirty=%v notified=%d, want true, 1", h.IsDirty(), notified)
	}

	h.close()
	h.dirty = false
	h.ForceDirtyState()
	if h.IsDirty() {
		t.Error("closed handler should ignore ForceDirtyState")
	}
}
