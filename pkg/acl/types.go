package acl

import "github.com/backkem/matter-reporting/pkg/datamodel"

// Target defines what resource(s) an ACL entry grants access to.
// A nil field is a wildcard. At least one field must be set.
type Target struct {
	Cluster  *datamodel.ClusterID
	Endpoint *datamodel.EndpointID
}

// NewTargetCluster creates a target matching a specific cluster on any endpoint.
func NewTargetCluster(cluster datamodel.ClusterID) Target {
	return Target{Cluster: &cluster}
}

// NewTargetEndpoint creates a target matching any cluster on a specific endpoint.
func NewTargetEndpoint(endpoint datamodel.EndpointID) Target {
	return Target{Endpoint: &endpoint}
}

// NewTargetClusterEndpoint creates a target matching one cluster instance.
func NewTargetClusterEndpoint(cluster datamodel.ClusterID, endpoint datamodel.EndpointID) Target {
	return Target{Cluster: &cluster, Endpoint: &endpoint}
}

// IsEmpty returns true if no fields are set.
func (t Target) IsEmpty() bool {
	return t.Cluster == nil && t.Endpoint == nil
}

func (t Target) matches(path datamodel.ConcreteClusterPath) bool {
	if t.Cluster != nil && *t.Cluster != path.Cluster {
		return false
	}
	if t.Endpoint != nil && *t.Endpoint != path.Endpoint {
		return false
	}
	return true
}

// Entry represents a single ACL entry.
type Entry struct {
	FabricIndex datamodel.FabricIndex // Owning fabric (1-254)
	Privilege   Privilege
	AuthMode    AuthMode // CASE or Group
	Subjects    []uint64 // NodeIDs or group NodeIDs (empty = any)
	Targets     []Target // empty = all
}

// SubjectDescriptor describes the identity behind a read handler.
type SubjectDescriptor struct {
	// FabricIndex identifies the fabric (0 for PASE without fabric).
	FabricIndex datamodel.FabricIndex

	// AuthMode is how the session was authenticated.
	AuthMode AuthMode

	// Subject is the operational NodeID (CASE), PAKE key NodeID (PASE)
	// or group NodeID (Group).
	Subject uint64

	// IsCommissioning grants implicit Administer to PASE sessions.
	IsCommissioning bool
}
