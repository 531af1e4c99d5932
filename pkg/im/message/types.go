package message

import "github.com/backkem/matter-reporting/pkg/datamodel"

// ID types are shared with the data model so reports can carry paths
// without conversion.
type (
	EndpointID     = datamodel.EndpointID
	ClusterID      = datamodel.ClusterID
	AttributeID    = datamodel.AttributeID
	ListIndex      = datamodel.ListIndex
	DataVersion    = datamodel.DataVersion
	SubscriptionID = datamodel.SubscriptionID
)

// Ptr returns a pointer to v. Useful for setting optional fields in IBs.
func Ptr[T any](v T) *T {
	return &v
}
