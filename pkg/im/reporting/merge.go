package reporting

import "github.com/backkem/matter-reporting/pkg/datamodel"

// escalationLevel is how far escalate had to coarsen the pool.
type escalationLevel int

const (
	escalationCluster escalationLevel = iota
	escalationEndpoint
	escalationGlobal
)

func (l escalationLevel) String() string {
	switch l {
	case escalationCluster:
		return "cluster"
	case escalationEndpoint:
		return "endpoint"
	case escalationGlobal:
		return "global"
	default:
		return "unknown"
	}
}

type groupKey struct {
	endpoint datamodel.EndpointID
	cluster  datamodel.ClusterID
}

// escalate makes room for path in a full pool. Each level is tried in
// turn and the first one that frees a slot or covers path wins:
//
//  1. records sharing endpoint and cluster become {ep, cl, *}
//  2. records sharing endpoint become {ep, *, *}
//  3. the pool is replaced by a single {*, *, *}
//
// The new path counts as a group member, so a single record sharing its
// cluster is widened too. A path outside every collapsed group is then
// inserted as its own record.
func (s *DirtySet) escalate(path datamodel.AttributePathParams) {
	before := s.live

	for _, level := range []escalationLevel{escalationCluster, escalationEndpoint} {
		if s.collapse(path, level) && s.hasRoomFor(path) {
			s.escalated(level, before)
			return
		}
	}

	s.releaseAllSlots()
	idx := s.allocate()
	s.slots[idx] = DirtyPath{
		AttributePathParams: datamodel.WildcardAttributePathParams(),
		Generation:          s.generation,
	}
	s.escalated(escalationGlobal, before)
}

func (s *DirtySet) escalated(level escalationLevel, before int) {
	s.metrics.dirtySetEscalated(level, s.live)
	if s.log != nil {
		s.log.Debugf("dirty set full, collapsed at %s level: %d -> %d records", level, before, s.live)
	}
}

func (s *DirtySet) hasRoomFor(path datamodel.AttributePathParams) bool {
	if !s.Exhausted() {
		return true
	}
	covered := false
	s.forEach(func(i int) bool {
		covered = s.slots[i].IsAttributePathSupersetOf(path)
		return !covered
	})
	return covered
}

// collapse widens every group of two or more records sharing a key at the
// given level into one record carrying the newest generation of the group.
// Returns true if any record changed.
func (s *DirtySet) collapse(path datamodel.AttributePathParams, level escalationLevel) bool {
	counts := make(map[groupKey]int)
	s.forEach(func(i int) bool {
		if k, ok := keyAt(s.slots[i].AttributePathParams, level); ok {
			counts[k]++
		}
		return true
	})
	if k, ok := keyAt(path, level); ok {
		if _, present := counts[k]; present {
			counts[k]++
		}
	}

	heads := make(map[groupKey]int)
	changed := false
	s.forEach(func(i int) bool {
		rec := &s.slots[i]
		k, ok := keyAt(rec.AttributePathParams, level)
		if !ok || counts[k] < 2 {
			return true
		}

		head, seen := heads[k]
		if !seen {
			widen(&rec.AttributePathParams, level)
			heads[k] = i
			changed = true
			return true
		}
		if rec.Generation > s.slots[head].Generation {
			s.slots[head].Generation = rec.Generation
		}
		s.release(i)
		return true
	})
	return changed
}

// keyAt returns the grouping key of p, or false if p is already wildcarded
// at or above the level.
func keyAt(p datamodel.AttributePathParams, level escalationLevel) (groupKey, bool) {
	switch level {
	case escalationCluster:
		if p.HasWildcardEndpointID() || p.HasWildcardClusterID() {
			return groupKey{}, false
		}
		return groupKey{endpoint: p.EndpointID, cluster: p.ClusterID}, true
	case escalationEndpoint:
		if p.HasWildcardEndpointID() {
			return groupKey{}, false
		}
		return groupKey{endpoint: p.EndpointID}, true
	default:
		return groupKey{}, false
	}
}

func widen(p *datamodel.AttributePathParams, level escalationLevel) {
	switch level {
	case escalationCluster:
		p.SetWildcardAttributeID()
	case escalationEndpoint:
		p.SetWildcardClusterID()
	}
}
