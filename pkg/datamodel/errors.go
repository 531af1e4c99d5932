package datamodel

import "errors"

// Errors returned by datamodel operations.
var (
	// ErrEndpointNotFound indicates the requested endpoint does not exist.
	ErrEndpointNotFound = errors.New("endpoint not found")

	// ErrEndpointExists indicates an endpoint with the same ID already exists.
	ErrEndpointExists = errors.New("endpoint already exists")

	// ErrClusterNotFound indicates the requested cluster does not exist.
	ErrClusterNotFound = errors.New("cluster not found")

	// ErrClusterExists indicates a cluster with the same ID already exists.
	ErrClusterExists = errors.New("cluster already exists")

	// ErrAttributeNotFound indicates the requested attribute does not exist.
	ErrAttributeNotFound = errors.New("attribute not found")

	// ErrNotAList indicates a list element write on a non-list attribute.
	ErrNotAList = errors.New("attribute is not a list")

	// ErrListIndexOutOfRange indicates a list element write past the end of the list.
	ErrListIndexOutOfRange = errors.New("list index out of range")
)

// IsNotFound reports whether err means the path does not exist on the node.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEndpointNotFound) ||
		errors.Is(err, ErrClusterNotFound) ||
		errors.Is(err, ErrAttributeNotFound)
}
