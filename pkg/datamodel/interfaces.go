package datamodel

import "context"

// ReadAttributeRequest describes a single attribute read issued while
// building a report.
type ReadAttributeRequest struct {
	// Path is the concrete attribute to read.
	Path ConcreteAttributePath

	// FabricIndex is the accessing fabric (0 if none).
	FabricIndex FabricIndex

	// IsFabricFiltered requests that fabric-scoped lists only contain
	// entries of the accessing fabric.
	IsFabricFiltered bool
}

// AttributeValue is the encoded current state of one attribute.
type AttributeValue struct {
	// DataVersion is the version of the cluster the attribute belongs to.
	DataVersion DataVersion

	// Data is the encoded attribute value.
	Data []byte
}

// Provider is the data model as seen by the reporting engine. It expands
// interest paths into the attributes that exist on the node and encodes
// attribute values into report payloads.
type Provider interface {
	// ExpandAttributePath returns the concrete attributes covered by path,
	// in endpoint, cluster, attribute registration order.
	//
	// A concrete path naming a missing endpoint, cluster or attribute returns
	// ErrEndpointNotFound, ErrClusterNotFound or ErrAttributeNotFound.
	// Wildcard components silently skip what does not exist.
	ExpandAttributePath(path AttributePathParams) ([]ConcreteAttributePath, error)

	// ReadAttribute encodes the current value of a concrete attribute.
	// Errors other than the not-found sentinels are hard encoding failures.
	ReadAttribute(ctx context.Context, req ReadAttributeRequest) (AttributeValue, error)
}

// AttributeChangeListener is notified when attribute values change.
// Used for subscription reporting.
type AttributeChangeListener interface {
	// OnAttributeChanged is called when the data covered by path changes.
	OnAttributeChanged(path AttributePathParams)
}

// DataModelProvider combines Provider with change notification.
// This is the main interface used by the Interaction Model engine.
type DataModelProvider interface {
	Provider

	// SetAttributeChangeListener sets the listener for attribute changes.
	// Only one listener can be set at a time.
	SetAttributeChangeListener(listener AttributeChangeListener)
}
