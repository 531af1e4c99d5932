package message

import "github.com/fxamacker/cbor/v2"

// AttributeReportIB contains either attribute data or a status.
type AttributeReportIB struct {
	AttributeStatus *AttributeStatusIB `cbor:"0,keyasint,omitempty"`
	AttributeData   *AttributeDataIB   `cbor:"1,keyasint,omitempty"`
}

// AttributeDataIB carries the encoded value of one attribute.
type AttributeDataIB struct {
	DataVersion DataVersion     `cbor:"0,keyasint"`
	Path        AttributePathIB `cbor:"1,keyasint"`
	Data        cbor.RawMessage `cbor:"2,keyasint"`
}

// AttributeStatusIB reports why an attribute could not be included.
type AttributeStatusIB struct {
	Path   AttributePathIB `cbor:"0,keyasint"`
	Status StatusIB        `cbor:"1,keyasint"`
}

// IsStatus reports whether the entry carries a status rather than data.
func (a AttributeReportIB) IsStatus() bool {
	return a.AttributeStatus != nil
}

// Path returns the path of whichever half is set.
func (a AttributeReportIB) Path() AttributePathIB {
	if a.AttributeStatus != nil {
		return a.AttributeStatus.Path
	}
	if a.AttributeData != nil {
		return a.AttributeData.Path
	}
	return AttributePathIB{}
}
