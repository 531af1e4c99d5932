package reporting

import (
	"errors"
	"fmt"

	"github.com/backkem/matter-reporting/pkg/datamodel"
	"github.com/backkem/matter-reporting/pkg/im/message"
)

// Engine configuration errors.
var (
	ErrNoProvider      = errors.New("reporting: provider is required")
	ErrNoScheduler     = errors.New("reporting: scheduler is required")
	ErrNoHandlerSet    = errors.New("reporting: handler set is required")
	ErrNoLoop          = errors.New("reporting: event loop is required")
	ErrNotInitialized  = errors.New("reporting: engine not initialized")
	ErrInvalidCapacity = errors.New("reporting: dirty set capacity must be positive")
)

// ReportBuildError is returned by BuildAndSendSingleReportData when an
// attribute fails to encode. The report is not sent. Partial holds the
// entries encoded before the failure.
type ReportBuildError struct {
	SubscriptionID datamodel.SubscriptionID
	Path           datamodel.ConcreteAttributePath
	Partial        *message.ReportDataMessage
	Err            error
}

// Error implements error.
func (e *ReportBuildError) Error() string {
	return fmt.Sprintf("reporting: subscription %d: encode %s: %v", e.SubscriptionID, e.Path, e.Err)
}

// Unwrap returns the encoder error.
func (e *ReportBuildError) Unwrap() error {
	return e.Err
}
