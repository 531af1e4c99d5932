package message

import (
	"fmt"

	"github.com/backkem/matter-reporting/pkg/datamodel"
)

// AttributePathIB identifies an attribute or set of attributes.
// A nil Endpoint, Cluster or Attribute is a wildcard; a nil ListIndex
// addresses the whole attribute.
type AttributePathIB struct {
	Endpoint  *EndpointID  `cbor:"2,keyasint,omitempty"`
	Cluster   *ClusterID   `cbor:"3,keyasint,omitempty"`
	Attribute *AttributeID `cbor:"4,keyasint,omitempty"`
	ListIndex *ListIndex   `cbor:"5,keyasint,omitempty"`
}

// AttributePathFromParams converts data model path params into a path IB.
func AttributePathFromParams(p datamodel.AttributePathParams) AttributePathIB {
	var ib AttributePathIB
	if !p.HasWildcardEndpointID() {
		ib.Endpoint = Ptr(p.EndpointID)
	}
	if !p.HasWildcardClusterID() {
		ib.Cluster = Ptr(p.ClusterID)
	}
	if !p.HasWildcardAttributeID() {
		ib.Attribute = Ptr(p.AttributeID)
	}
	if !p.HasWildcardListIndex() {
		ib.ListIndex = Ptr(p.ListIndex)
	}
	return ib
}

// AttributePathFromConcrete converts a concrete attribute path into a path IB.
func AttributePathFromConcrete(c datamodel.ConcreteAttributePath) AttributePathIB {
	return AttributePathIB{
		Endpoint:  Ptr(c.Endpoint),
		Cluster:   Ptr(c.Cluster),
		Attribute: Ptr(c.Attribute),
	}
}

// Params converts the IB into data model path params.
func (p AttributePathIB) Params() datamodel.AttributePathParams {
	params := datamodel.WildcardAttributePathParams()
	if p.Endpoint != nil {
		params.EndpointID = *p.Endpoint
	}
	if p.Cluster != nil {
		params.ClusterID = *p.Cluster
	}
	if p.Attribute != nil {
		params.AttributeID = *p.Attribute
	}
	if p.ListIndex != nil {
		params.ListIndex = *p.ListIndex
	}
	return params
}

// Validate rejects paths the data model cannot represent: a list index
// without a concrete attribute, or an attribute without a cluster.
func (p AttributePathIB) Validate() error {
	if p.ListIndex != nil && p.Attribute == nil {
		return fmt.Errorf("%w: list index on wildcard attribute", ErrMalformedPath)
	}
	if p.Attribute != nil && p.Cluster == nil && !isGlobalAttribute(*p.Attribute) {
		return fmt.Errorf("%w: attribute 0x%04X without cluster", ErrMalformedPath, uint32(*p.Attribute))
	}
	return nil
}

// Global attributes (0xFFF8..0xFFFD) exist on every cluster and may be
// requested across clusters.
func isGlobalAttribute(id AttributeID) bool {
	return id >= 0xFFF8 && id <= 0xFFFD
}

// String returns the path in "ep/cluster/attribute" form.
func (p AttributePathIB) String() string {
	return p.Params().String()
}
