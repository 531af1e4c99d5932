package im

import (
	"math"
	"time"

	"github.com/backkem/matter-reporting/pkg/acl"
	"github.com/backkem/matter-reporting/pkg/datamodel"
	"github.com/backkem/matter-reporting/pkg/im/message"
)

// MaxReportingInterval is the largest interval a subscribe response can
// carry. Intervals are sent as whole seconds in a uint16.
const MaxReportingInterval = math.MaxUint16 * time.Second

// SubscribeRequest asks the engine to create a subscription.
type SubscribeRequest struct {
	// Subject is the identity of the subscriber.
	Subject acl.SubjectDescriptor

	// Paths are the attributes the subscriber is interested in.
	Paths []datamodel.AttributePathParams

	// MinInterval is the minimum time between two reports.
	MinInterval time.Duration

	// MaxInterval is the maximum time without a report.
	MaxInterval time.Duration

	// FabricFiltered filters fabric-scoped data to the subject's fabric.
	FabricFiltered bool

	// KeepSubscriptions keeps the subject's existing subscriptions.
	// If false they are closed before the new one is created.
	KeepSubscriptions bool
}

// Validate checks paths and intervals.
func (r *SubscribeRequest) Validate() error {
	if len(r.Paths) == 0 {
		return ErrInvalidPath
	}
	if r.MaxInterval <= 0 || r.MaxInterval < r.MinInterval || r.MaxInterval > MaxReportingInterval {
		return ErrInvalidInterval
	}
	if r.MinInterval%time.Second != 0 || r.MaxInterval%time.Second != 0 {
		return ErrInvalidInterval
	}
	return nil
}

// SubscribeRequestFromMessage converts a decoded subscribe request.
func SubscribeRequestFromMessage(msg *message.SubscribeRequestMessage, subject acl.SubjectDescriptor) (SubscribeRequest, error) {
	if err := msg.Validate(); err != nil {
		return SubscribeRequest{}, err
	}
	return SubscribeRequest{
		Subject:           subject,
		Paths:             pathParams(msg.AttributeRequests),
		MinInterval:       time.Duration(msg.MinIntervalFloor) * time.Second,
		MaxInterval:       time.Duration(msg.MaxIntervalCeiling) * time.Second,
		FabricFiltered:    msg.FabricFiltered,
		KeepSubscriptions: msg.KeepSubscriptions,
	}, nil
}

// ReadRequest asks the engine for a one-shot report.
type ReadRequest struct {
	Subject        acl.SubjectDescriptor
	Paths          []datamodel.AttributePathParams
	FabricFiltered bool
}

// Validate checks the request carries at least one path.
func (r *ReadRequest) Validate() error {
	if len(r.Paths) == 0 {
		return ErrInvalidPath
	}
	return nil
}

// ReadRequestFromMessage converts a decoded read request.
func ReadRequestFromMessage(msg *message.ReadRequestMessage, subject acl.SubjectDescriptor) (ReadRequest, error) {
	for _, p := range msg.AttributeRequests {
		if err := p.Validate(); err != nil {
			return ReadRequest{}, err
		}
	}
	return ReadRequest{
		Subject:        subject,
		Paths:          pathParams(msg.AttributeRequests),
		FabricFiltered: msg.FabricFiltered,
	}, nil
}

func pathParams(paths []message.AttributePathIB) []datamodel.AttributePathParams {
	params := make([]datamodel.AttributePathParams, 0, len(paths))
	for _, p := range paths {
		params = append(params, p.Params())
	}
	return params
}
