package reporting

import (
	"errors"
	"testing"

	"github.com/backkem/matter-reporting/pkg/datamodel"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func attr(ep datamodel.EndpointID, cl datamodel.ClusterID, at datamodel.AttributeID) datamodel.AttributePathParams {
	return datamodel.NewAttributePathParams(ep, cl, at)
}

func clusterPath(ep datamodel.EndpointID, cl datamodel.ClusterID) datamodel.AttributePathParams {
	return datamodel.NewAttributePathParams(ep, cl, datamodel.InvalidAttributeID)
}

func endpointPath(ep datamodel.EndpointID) datamodel.AttributePathParams {
	return datamodel.NewAttributePathParams(ep, datamodel.InvalidClusterID, datamodel.InvalidAttributeID)
}

func concrete(ep datamodel.EndpointID, cl datamodel.ClusterID, at datamodel.AttributeID) datamodel.ConcreteAttributePath {
	return datamodel.ConcreteAttributePath{Endpoint: ep, Cluster: cl, Attribute: at}
}

func livePaths(s *DirtySet) []datamodel.AttributePathParams {
	var out []datamodel.AttributePathParams
	for _, p := range s.Paths() {
		out = append(out, p.AttributePathParams)
	}
	return out
}

// assertAntichain fails if one live record contains another.
func assertAntichain(t *testing.T, s *DirtySet) {
	t.Helper()
	paths := s.Paths()
	for i := range paths {
		for j := range paths {
			if i == j {
				continue
			}
			if paths[i].IsAttributePathSupersetOf(paths[j].AttributePathParams) {
				t.Fatalf("record %s contains record %s", paths[i], paths[j])
			}
		}
	}
}

func TestNewDirtySet_Capacity(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		want     int
	}{
		{"default", 0, DefaultDirtySetCapacity},
		{"explicit", 3, 3},
		{"negative", -1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewDirtySet(DirtySetConfig{Capacity: tt.capacity})
			if got := s.Capacity(); got != tt.want {
				t.Errorf("Capacity() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDirtySet_ZeroCapacity(t *testing.T) {
	s := NewDirtySet(DirtySetConfig{Capacity: -1})
	if err := s.InsertPath(attr(1, 6, 0)); !errors.Is(err, ErrDirtySetExhausted) {
		t.Fatalf("InsertPath() error = %v, want ErrDirtySetExhausted", err)
	}
}

func TestDirtySet_InsertSamePathTwice(t *testing.T) {
	s := NewDirtySet(DirtySetConfig{})

	for i := 0; i < 3; i++ {
		if err := s.InsertPath(attr(1, 6, 0)); err != nil {
			t.Fatalf("InsertPath() error = %v", err)
		}
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestDirtySet_InsertRestampsContainingRecord(t *testing.T) {
	s := NewDirtySet(DirtySetConfig{})

	if err := s.InsertPath(clusterPath(1, 6)); err != nil {
		t.Fatal(err)
	}
	gen := s.BumpGeneration()
	if err := s.InsertPath(attr(1, 6, 3)); err != nil {
		t.Fatal(err)
	}

	paths := s.Paths()
	if len(paths) != 1 {
		t.Fatalf("Len() = %d, want 1", len(paths))
	}
	if paths[0].AttributePathParams != clusterPath(1, 6) {
		t.Errorf("record = %s, want %s", paths[0], clusterPath(1, 6))
	}
	if paths[0].Generation != gen {
		t.Errorf("Generation = %d, want %d", paths[0].Generation, gen)
	}
}

func TestDirtySet_InsertWiderPathAbsorbsRecords(t *testing.T) {
	s := NewDirtySet(DirtySetConfig{})

	for _, p := range []datamodel.AttributePathParams{
		attr(1, 6, 0),
		attr(1, 6, 1),
		attr(1, 8, 0),
		attr(2, 6, 0),
	} {
		if err := s.InsertPath(p); err != nil {
			t.Fatal(err)
		}
	}

	if err := s.InsertPath(endpointPath(1)); err != nil {
		t.Fatal(err)
	}

	want := []datamodel.AttributePathParams{endpointPath(1), attr(2, 6, 0)}
	if diff := cmp.Diff(want, livePaths(s)); diff != "" {
		t.Errorf("live paths mismatch (-want +got):\n%s", diff)
	}
	assertAntichain(t, s)
}

// Filling the pool with attributes of one cluster and adding one more
// attribute of that cluster leaves a single cluster wildcard.
func TestDirtySet_EscalateSameCluster(t *testing.T) {
	s := NewDirtySet(DirtySetConfig{})

	for i := 0; i < s.Capacity(); i++ {
		if err := s.InsertPath(attr(1, 6, datamodel.AttributeID(i))); err != nil {
			t.Fatal(err)
		}
	}
	if !s.Exhausted() {
		t.Fatal("expected pool to be exhausted")
	}

	if err := s.InsertPath(attr(1, 6, datamodel.AttributeID(s.Capacity()))); err != nil {
		t.Fatal(err)
	}

	want := []datamodel.AttributePathParams{clusterPath(1, 6)}
	if diff := cmp.Diff(want, livePaths(s)); diff != "" {
		t.Errorf("live paths mismatch (-want +got):\n%s", diff)
	}
}

// The overflowing path lives in another cluster: the full cluster collapses
// and the new path takes its own slot.
func TestDirtySet_EscalateForeignCluster(t *testing.T) {
	s := NewDirtySet(DirtySetConfig{})

	for i := 0; i < s.Capacity(); i++ {
		if err := s.InsertPath(attr(1, 6, datamodel.AttributeID(i))); err != nil {
			t.Fatal(err)
		}
	}

	if err := s.InsertPath(attr(1, 7, 1)); err != nil {
		t.Fatal(err)
	}

	want := []datamodel.AttributePathParams{clusterPath(1, 6), attr(1, 7, 1)}
	if diff := cmp.Diff(want, livePaths(s)); diff != "" {
		t.Errorf("live paths mismatch (-want +got):\n%s", diff)
	}
}

func TestDirtySet_EscalateEndpoint(t *testing.T) {
	s := NewDirtySet(DirtySetConfig{Capacity: 4})

	// Four clusters on endpoint 1, no two sharing a cluster.
	for cl := datamodel.ClusterID(1); cl <= 4; cl++ {
		if err := s.InsertPath(attr(1, cl, 0)); err != nil {
			t.Fatal(err)
		}
	}

	if err := s.InsertPath(attr(1, 5, 0)); err != nil {
		t.Fatal(err)
	}

	want := []datamodel.AttributePathParams{endpointPath(1)}
	if diff := cmp.Diff(want, livePaths(s)); diff != "" {
		t.Errorf("live paths mismatch (-want +got):\n%s", diff)
	}
}

func TestDirtySet_EscalateGlobal(t *testing.T) {
	s := NewDirtySet(DirtySetConfig{Capacity: 3})

	for ep := datamodel.EndpointID(1); ep <= 3; ep++ {
		if err := s.InsertPath(attr(ep, 6, 0)); err != nil {
			t.Fatal(err)
		}
	}

	if err := s.InsertPath(attr(4, 6, 0)); err != nil {
		t.Fatal(err)
	}

	want := []datamodel.AttributePathParams{datamodel.WildcardAttributePathParams()}
	if diff := cmp.Diff(want, livePaths(s)); diff != "" {
		t.Errorf("live paths mismatch (-want +got):\n%s", diff)
	}
}

func TestDirtySet_EscalationKeepsNewestGeneration(t *testing.T) {
	s := NewDirtySet(DirtySetConfig{Capacity: 2})

	if err := s.InsertPath(attr(1, 6, 0)); err != nil {
		t.Fatal(err)
	}
	s.BumpGeneration()
	if err := s.InsertPath(attr(1, 6, 1)); err != nil {
		t.Fatal(err)
	}
	newest := s.Generation()

	if err := s.InsertPath(attr(2, 6, 0)); err != nil {
		t.Fatal(err)
	}

	for _, p := range s.Paths() {
		if p.AttributePathParams == clusterPath(1, 6) && p.Generation != newest {
			t.Errorf("collapsed record generation = %d, want %d", p.Generation, newest)
		}
	}
}

// Every inserted path stays covered and the pool bound holds across a
// long mixed insertion sequence.
func TestDirtySet_CoverageAndBound(t *testing.T) {
	s := NewDirtySet(DirtySetConfig{Capacity: 5})

	var inserted []datamodel.AttributePathParams
	for i := 0; i < 60; i++ {
		p := attr(
			datamodel.EndpointID(i%4),
			datamodel.ClusterID(6+i%3),
			datamodel.AttributeID(i%7),
		)
		if i%11 == 0 {
			p = clusterPath(p.EndpointID, p.ClusterID)
		}
		if err := s.InsertPath(p); err != nil {
			t.Fatalf("InsertPath(%s) error = %v", p, err)
		}
		inserted = append(inserted, p)

		if s.Len() > s.Capacity() {
			t.Fatalf("Len() = %d exceeds capacity %d", s.Len(), s.Capacity())
		}
		assertAntichain(t, s)
		for _, q := range inserted {
			if !covered(s, q) {
				t.Fatalf("after inserting %s: path %s no longer covered", p, q)
			}
		}
	}
}

func covered(s *DirtySet, p datamodel.AttributePathParams) bool {
	for _, rec := range s.Paths() {
		if rec.IsAttributePathSupersetOf(p) {
			return true
		}
	}
	return false
}

func TestDirtySet_IsDirty(t *testing.T) {
	s := NewDirtySet(DirtySetConfig{})

	s.BumpGeneration() // 1
	if err := s.InsertPath(clusterPath(1, 6)); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		path  datamodel.ConcreteAttributePath
		since uint64
		want  bool
	}{
		{"covered and newer", concrete(1, 6, 0), 0, true},
		{"covered but consumed", concrete(1, 6, 0), 1, false},
		{"other cluster", concrete(1, 8, 0), 0, false},
		{"other endpoint", concrete(2, 6, 0), 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.IsDirty(tt.path, tt.since); got != tt.want {
				t.Errorf("IsDirty(%s, %d) = %v, want %v", tt.path, tt.since, got, tt.want)
			}
		})
	}
}

func TestDirtySet_Intersects(t *testing.T) {
	s := NewDirtySet(DirtySetConfig{})
	if err := s.InsertPath(attr(1, 6, 0)); err != nil {
		t.Fatal(err)
	}

	if !s.Intersects(endpointPath(1)) {
		t.Error("expected endpoint wildcard to intersect")
	}
	if s.Intersects(attr(1, 6, 1)) {
		t.Error("expected sibling attribute not to intersect")
	}
}

func TestDirtySet_ReleaseUpTo(t *testing.T) {
	s := NewDirtySet(DirtySetConfig{})

	s.BumpGeneration() // 1
	if err := s.InsertPath(attr(1, 6, 0)); err != nil {
		t.Fatal(err)
	}
	s.BumpGeneration() // 2
	if err := s.InsertPath(attr(1, 6, 1)); err != nil {
		t.Fatal(err)
	}
	s.BumpGeneration() // 3
	if err := s.InsertPath(attr(1, 6, 2)); err != nil {
		t.Fatal(err)
	}

	if got := s.ReleaseUpTo(2); got != 2 {
		t.Errorf("ReleaseUpTo(2) = %d, want 2", got)
	}
	want := []datamodel.AttributePathParams{attr(1, 6, 2)}
	if diff := cmp.Diff(want, livePaths(s)); diff != "" {
		t.Errorf("live paths mismatch (-want +got):\n%s", diff)
	}

	s.ReleaseAll()
	if s.Len() != 0 {
		t.Errorf("Len() after ReleaseAll = %d, want 0", s.Len())
	}

	// Freed slots are reusable.
	if err := s.InsertPath(attr(3, 6, 0)); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestDirtySet_Metrics(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	s := NewDirtySet(DirtySetConfig{Capacity: 2, Metrics: m})

	for _, p := range []datamodel.AttributePathParams{
		attr(1, 6, 0),
		attr(1, 6, 0),
		attr(1, 6, 1),
		attr(1, 6, 2),
	} {
		if err := s.InsertPath(p); err != nil {
			t.Fatal(err)
		}
	}

	if got := testutil.ToFloat64(m.dirtyPathInserts.WithLabelValues(insertResultAllocated)); got != 2 {
		t.Errorf("allocated inserts = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.dirtyPathInserts.WithLabelValues(insertResultMerged)); got != 2 {
		t.Errorf("merged inserts = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.escalations.WithLabelValues(escalationCluster.String())); got != 1 {
		t.Errorf("cluster escalations = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.dirtyPaths); got != 1 {
		t.Errorf("dirty_paths = %v, want 1", got)
	}
}

func TestEscalationLevel_String(t *testing.T) {
	for level, want := range map[escalationLevel]string{
		escalationCluster:  "cluster",
		escalationEndpoint: "endpoint",
		escalationGlobal:   "global",
		escalationLevel(9): "unknown",
	} {
		if got := level.String(); got != want {
			t.Errorf("escalationLevel(%d).String() = %q, want %q", level, got, want)
		}
	}
}
