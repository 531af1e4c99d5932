package message

// ReadRequestMessage requests a one-shot report of attributes.
type ReadRequestMessage struct {
	AttributeRequests []AttributePathIB `cbor:"0,keyasint,omitempty"`
	FabricFiltered    bool              `cbor:"3,keyasint"`
}

// SubscribeRequestMessage requests a subscription.
// Intervals are in seconds, as on the wire.
type SubscribeRequestMessage struct {
	KeepSubscriptions  bool              `cbor:"0,keyasint"`
	MinIntervalFloor   uint16            `cbor:"1,keyasint"`
	MaxIntervalCeiling uint16            `cbor:"2,keyasint"`
	AttributeRequests  []AttributePathIB `cbor:"3,keyasint,omitempty"`
	FabricFiltered     bool              `cbor:"7,keyasint"`
}

// Validate checks every requested path.
func (m *SubscribeRequestMessage) Validate() error {
	if len(m.AttributeRequests) == 0 {
		return ErrMissingField
	}
	for _, p := range m.AttributeRequests {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}
