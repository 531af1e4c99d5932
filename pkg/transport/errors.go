package transport

import "errors"

// Transport errors.
var (
	// ErrClosed is returned when an operation is attempted on a closed pipe.
	ErrClosed = errors.New("transport: closed")
)
