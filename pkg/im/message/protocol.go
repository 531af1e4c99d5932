package message

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Opcode represents an Interaction Model message opcode.
type Opcode uint8

const (
	OpcodeStatusResponse    Opcode = 0x01
	OpcodeReadRequest       Opcode = 0x02
	OpcodeSubscribeRequest  Opcode = 0x03
	OpcodeSubscribeResponse Opcode = 0x04
	OpcodeReportData        Opcode = 0x05
)

// String returns the name of the opcode.
func (o Opcode) String() string {
	switch o {
	case OpcodeStatusResponse:
		return "StatusResponse"
	case OpcodeReadRequest:
		return "ReadRequest"
	case OpcodeSubscribeRequest:
		return "SubscribeRequest"
	case OpcodeSubscribeResponse:
		return "SubscribeResponse"
	case OpcodeReportData:
		return "ReportData"
	default:
		return "Unknown"
	}
}

// MaxFrameSize bounds an encoded frame to the minimum IPv6 MTU.
const MaxFrameSize = 1280

// Frame is the unit written to a connection: an opcode and its
// CBOR-encoded message.
type Frame struct {
	Opcode  Opcode          `cbor:"0,keyasint"`
	Payload cbor.RawMessage `cbor:"1,keyasint"`
}

var (
	frameEncMode = mustEncMode()
	frameDecMode = mustDecMode()
)

func mustEncMode() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}

func mustDecMode() cbor.DecMode {
	dm, err := cbor.DecOptions{MaxArrayElements: 1024, MaxMapPairs: 1024}.DecMode()
	if err != nil {
		panic(err)
	}
	return dm
}

// EncodeFrame encodes msg as the payload of a frame with the given opcode.
func EncodeFrame(op Opcode, msg any) ([]byte, error) {
	payload, err := frameEncMode.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("im: encode %s: %w", op, err)
	}
	data, err := frameEncMode.Marshal(Frame{Opcode: op, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("im: encode %s frame: %w", op, err)
	}
	if len(data) > MaxFrameSize {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrFrameTooLarge, op, len(data))
	}
	return data, nil
}

// DecodeFrame decodes the frame envelope. Use Frame.Decode for the payload.
func DecodeFrame(data []byte) (Frame, error) {
	var f Frame
	if err := frameDecMode.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return f, nil
}

// Decode unmarshals the payload into msg.
func (f Frame) Decode(msg any) error {
	if err := frameDecMode.Unmarshal(f.Payload, msg); err != nil {
		return fmt.Errorf("im: decode %s: %w", f.Opcode, err)
	}
	return nil
}
