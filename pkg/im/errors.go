package im

import (
	"errors"

	"github.com/backkem/matter-reporting/pkg/datamodel"
	"github.com/backkem/matter-reporting/pkg/im/message"
)

// IM engine errors.
var (
	// ErrInvalidSubscription indicates no subscription has the given ID.
	ErrInvalidSubscription = errors.New("im: invalid subscription")

	// ErrInvalidInterval indicates a max interval of zero or below the min interval.
	ErrInvalidInterval = errors.New("im: invalid reporting interval")

	// ErrInvalidPath indicates the request carried no usable attribute path.
	ErrInvalidPath = errors.New("im: invalid path")

	// ErrInvalidAction indicates a message that is not valid in the handler's state.
	ErrInvalidAction = errors.New("im: invalid action")

	// ErrAccessDenied indicates ACL check failed.
	ErrAccessDenied = errors.New("im: access denied")

	// ErrUnsupportedRead indicates the attribute doesn't support reads.
	ErrUnsupportedRead = errors.New("im: unsupported read")

	// ErrBusy indicates the engine is busy and cannot process the request.
	ErrBusy = errors.New("im: busy")

	// ErrResourceExhausted indicates resource limits exceeded.
	ErrResourceExhausted = errors.New("im: resource exhausted")

	// ErrHandlerClosed indicates the read handler was already closed.
	ErrHandlerClosed = errors.New("im: read handler closed")

	// ErrEngineClosed indicates the engine was shut down.
	ErrEngineClosed = errors.New("im: engine closed")

	// ErrNoProvider indicates the engine config has no data model provider.
	ErrNoProvider = errors.New("im: provider is required")

	// ErrNoLoop indicates the engine config has no event loop.
	ErrNoLoop = errors.New("im: event loop is required")
)

// ErrorToStatus maps an error to an IM status code.
func ErrorToStatus(err error) message.Status {
	if err == nil {
		return message.StatusSuccess
	}

	switch {
	case errors.Is(err, ErrInvalidSubscription):
		return message.StatusInvalidSubscription
	case errors.Is(err, ErrInvalidInterval), errors.Is(err, ErrInvalidPath),
		errors.Is(err, ErrInvalidAction), errors.Is(err, message.ErrMalformedPath),
		errors.Is(err, message.ErrMissingField):
		return message.StatusInvalidAction
	case errors.Is(err, ErrAccessDenied):
		return message.StatusUnsupportedAccess
	case errors.Is(err, ErrUnsupportedRead):
		return message.StatusUnsupportedRead
	case errors.Is(err, datamodel.ErrEndpointNotFound):
		return message.StatusUnsupportedEndpoint
	case errors.Is(err, datamodel.ErrClusterNotFound):
		return message.StatusUnsupportedCluster
	case errors.Is(err, datamodel.ErrAttributeNotFound):
		return message.StatusUnsupportedAttribute
	case errors.Is(err, ErrBusy):
		return message.StatusBusy
	case errors.Is(err, ErrResourceExhausted):
		return message.StatusResourceExhausted
	default:
		return message.StatusFailure
	}
}

// StatusToError maps an IM status code to an error.
func StatusToError(status message.Status) error {
	switch status {
	case message.StatusSuccess:
		return nil
	case message.StatusInvalidSubscription:
		return ErrInvalidSubscription
	case message.StatusInvalidAction:
		return ErrInvalidAction
	case message.StatusUnsupportedAccess:
		return ErrAccessDenied
	case message.StatusUnsupportedRead:
		return ErrUnsupportedRead
	case message.StatusUnsupportedEndpoint:
		return datamodel.ErrEndpointNotFound
	case message.StatusUnsupportedCluster:
		return datamodel.ErrClusterNotFound
	case message.StatusUnsupportedAttribute:
		return datamodel.ErrAttributeNotFound
	case message.StatusBusy:
		return ErrBusy
	case message.StatusResourceExhausted:
		return ErrResourceExhausted
	default:
		return errors.New("im: " + status.String())
	}
}
