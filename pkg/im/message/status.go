package message

// Status represents an Interaction Model status code.
type Status uint8

const (
	StatusSuccess              Status = 0x00
	StatusFailure              Status = 0x01
	StatusInvalidSubscription  Status = 0x7d
	StatusUnsupportedAccess    Status = 0x7e
	StatusUnsupportedEndpoint  Status = 0x7f
	StatusInvalidAction        Status = 0x80
	StatusUnsupportedAttribute Status = 0x86
	StatusResourceExhausted    Status = 0x89
	StatusUnsupportedRead      Status = 0x8f
	StatusTimeout              Status = 0x94
	StatusBusy                 Status = 0x9c
	StatusUnsupportedCluster   Status = 0xc3
)

// String returns the name of the status code.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "Success"
	case StatusFailure:
		return "Failure"
	case StatusInvalidSubscription:
		return "InvalidSubscription"
	case StatusUnsupportedAccess:
		return "UnsupportedAccess"
	case StatusUnsupportedEndpoint:
		return "UnsupportedEndpoint"
	case StatusInvalidAction:
		return "InvalidAction"
	case StatusUnsupportedAttribute:
		return "UnsupportedAttribute"
	case StatusResourceExhausted:
		return "ResourceExhausted"
	case StatusUnsupportedRead:
		return "UnsupportedRead"
	case StatusTimeout:
		return "Timeout"
	case StatusBusy:
		return "Busy"
	case StatusUnsupportedCluster:
		return "UnsupportedCluster"
	default:
		return "Unknown"
	}
}

// IsSuccess returns true if the status indicates success.
func (s Status) IsSuccess() bool {
	return s == StatusSuccess
}

// StatusIB contains status information for one path.
type StatusIB struct {
	Status        Status `cbor:"0,keyasint"`
	ClusterStatus *uint8 `cbor:"1,keyasint,omitempty"`
}
