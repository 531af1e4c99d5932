package message

import "errors"

// Encoding/decoding errors.
var (
	ErrMissingField     = errors.New("im: missing required field")
	ErrUnexpectedOpcode = errors.New("im: unexpected opcode")
	ErrMalformedPath    = errors.New("im: malformed path")
	ErrFrameTooLarge    = errors.New("im: frame exceeds maximum size")
	ErrMalformedFrame   = errors.New("im: malformed frame")
)
