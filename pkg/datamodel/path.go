package datamodel

import "fmt"

// Fundamental ID types used throughout the data model.
type (
	// NodeID is a 64-bit node identifier.
	NodeID uint64

	// EndpointID is a 16-bit endpoint identifier.
	EndpointID uint16

	// ClusterID is a 32-bit cluster identifier.
	ClusterID uint32

	// AttributeID is a 32-bit attribute identifier.
	AttributeID uint32

	// ListIndex is a 16-bit list index for addressing list elements.
	ListIndex uint16

	// DataVersion is a 32-bit version number for cluster data.
	DataVersion uint32

	// FabricIndex identifies a fabric on this node (0 = no fabric).
	FabricIndex uint8

	// SubscriptionID is a 32-bit subscription identifier.
	SubscriptionID uint32
)

// Wildcard sentinels. A path field holding one of these values matches
// every value at that level.
const (
	InvalidEndpointID  EndpointID  = 0xFFFF
	InvalidClusterID   ClusterID   = 0xFFFFFFFF
	InvalidAttributeID AttributeID = 0xFFFFFFFF
	InvalidListIndex   ListIndex   = 0xFFFF
)

// ConcreteClusterPath identifies a specific cluster instance on an endpoint.
type ConcreteClusterPath struct {
	Endpoint EndpointID
	Cluster  ClusterID
}

// String returns the path as "ep/cluster".
func (p ConcreteClusterPath) String() string {
	return fmt.Sprintf("%d/0x%04X", p.Endpoint, uint32(p.Cluster))
}

// ConcreteAttributePath identifies a specific attribute within a cluster.
type ConcreteAttributePath struct {
	Endpoint  EndpointID
	Cluster   ClusterID
	Attribute AttributeID
}

// ClusterPath returns the cluster path portion.
func (p ConcreteAttributePath) ClusterPath() ConcreteClusterPath {
	return ConcreteClusterPath{
		Endpoint: p.Endpoint,
		Cluster:  p.Cluster,
	}
}

// String returns the path as "ep/cluster/attribute".
func (p ConcreteAttributePath) String() string {
	return fmt.Sprintf("%d/0x%04X/0x%04X", p.Endpoint, uint32(p.Cluster), uint32(p.Attribute))
}

// AttributePathParams describes a possibly-wildcarded attribute path.
//
// Any field may hold its Invalid* sentinel, meaning "all". ListIndex set to
// InvalidListIndex means the whole attribute rather than one list element.
// The zero value is NOT a wildcard; use WildcardAttributePathParams.
type AttributePathParams struct {
	EndpointID  EndpointID
	ClusterID   ClusterID
	AttributeID AttributeID
	ListIndex   ListIndex
}

// NewAttributePathParams returns a path for a whole attribute (no list index).
// Pass Invalid* values for wildcard components.
func NewAttributePathParams(endpoint EndpointID, cluster ClusterID, attribute AttributeID) AttributePathParams {
	return AttributePathParams{
		EndpointID:  endpoint,
		ClusterID:   cluster,
		AttributeID: attribute,
		ListIndex:   InvalidListIndex,
	}
}

// WildcardAttributePathParams returns the path matching every attribute on
// every endpoint.
func WildcardAttributePathParams() AttributePathParams {
	return NewAttributePathParams(InvalidEndpointID, InvalidClusterID, InvalidAttributeID)
}

// AttributePathParamsFromConcrete lifts a concrete path into path params.
func AttributePathParamsFromConcrete(p ConcreteAttributePath) AttributePathParams {
	return NewAttributePathParams(p.Endpoint, p.Cluster, p.Attribute)
}

// HasWildcardEndpointID reports whether the endpoint is a wildcard.
func (p AttributePathParams) HasWildcardEndpointID() bool { return p.EndpointID == InvalidEndpointID }

// HasWildcardClusterID reports whether the cluster is a wildcard.
func (p AttributePathParams) HasWildcardClusterID() bool { return p.ClusterID == InvalidClusterID }

// HasWildcardAttributeID reports whether the attribute is a wildcard.
func (p AttributePathParams) HasWildcardAttributeID() bool {
	return p.AttributeID == InvalidAttributeID
}

// HasWildcardListIndex reports whether the path covers the whole attribute.
func (p AttributePathParams) HasWildcardListIndex() bool { return p.ListIndex == InvalidListIndex }

// IsWildcardPath reports whether any of endpoint, cluster or attribute is a wildcard.
func (p AttributePathParams) IsWildcardPath() bool {
	return p.HasWildcardEndpointID() || p.HasWildcardClusterID() || p.HasWildcardAttributeID()
}

// SetWildcardAttributeID widens the path to every attribute of its cluster.
func (p *AttributePathParams) SetWildcardAttributeID() {
	p.AttributeID = InvalidAttributeID
	p.ListIndex = InvalidListIndex
}

// SetWildcardClusterID widens the path to every cluster of its endpoint.
func (p *AttributePathParams) SetWildcardClusterID() {
	p.ClusterID = InvalidClusterID
	p.SetWildcardAttributeID()
}

// SetWildcardEndpointID widens the path to everything.
func (p *AttributePathParams) SetWildcardEndpointID() {
	p.EndpointID = InvalidEndpointID
	p.SetWildcardClusterID()
}

// IsAttributePathSupersetOf reports whether every attribute (and list
// element) covered by other is also covered by p.
func (p AttributePathParams) IsAttributePathSupersetOf(other AttributePathParams) bool {
	if !p.HasWildcardEndpointID() && p.EndpointID != other.EndpointID {
		return false
	}
	if !p.HasWildcardClusterID() && p.ClusterID != other.ClusterID {
		return false
	}
	if !p.HasWildcardAttributeID() && p.AttributeID != other.AttributeID {
		return false
	}
	if !p.HasWildcardListIndex() && p.ListIndex != other.ListIndex {
		return false
	}
	return true
}

// Intersects reports whether p and other cover at least one common
// attribute. List indexes are ignored: two paths naming the same attribute
// intersect regardless of the element.
func (p AttributePathParams) Intersects(other AttributePathParams) bool {
	if !p.HasWildcardEndpointID() && !other.HasWildcardEndpointID() && p.EndpointID != other.EndpointID {
		return false
	}
	if !p.HasWildcardClusterID() && !other.HasWildcardClusterID() && p.ClusterID != other.ClusterID {
		return false
	}
	if !p.HasWildcardAttributeID() && !other.HasWildcardAttributeID() && p.AttributeID != other.AttributeID {
		return false
	}
	return true
}

// IncludesConcrete reports whether the concrete attribute lies inside p.
// A path restricted to a single list element still includes its attribute.
func (p AttributePathParams) IncludesConcrete(c ConcreteAttributePath) bool {
	if !p.HasWildcardEndpointID() && p.EndpointID != c.Endpoint {
		return false
	}
	if !p.HasWildcardClusterID() && p.ClusterID != c.Cluster {
		return false
	}
	if !p.HasWildcardAttributeID() && p.AttributeID != c.Attribute {
		return false
	}
	return true
}

// Concrete returns the concrete path and true when no component is a wildcard.
func (p AttributePathParams) Concrete() (ConcreteAttributePath, bool) {
	if p.IsWildcardPath() {
		return ConcreteAttributePath{}, false
	}
	return ConcreteAttributePath{
		Endpoint:  p.EndpointID,
		Cluster:   p.ClusterID,
		Attribute: p.AttributeID,
	}, true
}

// String renders wildcards as "*".
func (p AttributePathParams) String() string {
	ep, cl, attr := "*", "*", "*"
	if !p.HasWildcardEndpointID() {
		ep = fmt.Sprintf("%d", p.EndpointID)
	}
	if !p.HasWildcardClusterID() {
		cl = fmt.Sprintf("0x%04X", uint32(p.ClusterID))
	}
	if !p.HasWildcardAttributeID() {
		attr = fmt.Sprintf("0x%04X", uint32(p.AttributeID))
	}
	if p.HasWildcardListIndex() {
		return ep + "/" + cl + "/" + attr
	}
	return fmt.Sprintf("%s/%s/%s[%d]", ep, cl, attr, p.ListIndex)
}
