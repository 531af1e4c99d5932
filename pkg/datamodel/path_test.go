package datamodel

import "testing"

func listPath(ep EndpointID, cl ClusterID, attr AttributeID, idx ListIndex) AttributePathParams {
	p := NewAttributePathParams(ep, cl, attr)
	p.ListIndex = idx
	return p
}

func TestAttributePathParams_Wildcards(t *testing.T) {
	p := WildcardAttributePathParams()
	if !p.HasWildcardEndpointID() || !p.HasWildcardClusterID() || !p.HasWildcardAttributeID() {
		t.Errorf("WildcardAttributePathParams() = %v, want all wildcards", p)
	}
	if !p.HasWildcardListIndex() {
		t.Error("WildcardAttributePathParams() should not carry a list index")
	}

	concrete := NewAttributePathParams(1, 6, 0)
	if concrete.IsWildcardPath() {
		t.Errorf("%v.IsWildcardPath() = true, want false", concrete)
	}

	concrete.SetWildcardClusterID()
	if !concrete.HasWildcardClusterID() || !concrete.HasWildcardAttributeID() {
		t.Errorf("SetWildcardClusterID() = %v, want cluster and attribute wildcards", concrete)
	}
	if concrete.HasWildcardEndpointID() {
		t.Error("SetWildcardClusterID() must not touch the endpoint")
	}
}

func TestAttributePathParams_SetWildcardAttributeIDClearsListIndex(t *testing.T) {
	p := listPath(1, 6, 3, 2)
	p.SetWildcardAttributeID()
	if !p.HasWildcardListIndex() {
		t.Errorf("SetWildcardAttributeID() kept list index %d", p.ListIndex)
	}
}

func TestAttributePathParams_IsAttributePathSupersetOf(t *testing.T) {
	tests := []struct {
		name  string
		outer AttributePathParams
		inner AttributePathParams
		want  bool
	}{
		{"equal concrete", NewAttributePathParams(1, 6, 0), NewAttributePathParams(1, 6, 0), true},
		{"different attribute", NewAttributePathParams(1, 6, 0), NewAttributePathParams(1, 6, 1), false},
		{"wildcard attribute", NewAttributePathParams(1, 6, InvalidAttributeID), NewAttributePathParams(1, 6, 1), true},
		{"concrete not superset of wildcard", NewAttributePathParams(1, 6, 1), NewAttributePathParams(1, 6, InvalidAttributeID), false},
		{"wildcard cluster", NewAttributePathParams(1, InvalidClusterID, InvalidAttributeID), NewAttributePathParams(1, 8, 2), true},
		{"wildcard cluster other endpoint", NewAttributePathParams(1, InvalidClusterID, InvalidAttributeID), NewAttributePathParams(2, 8, 2), false},
		{"global", WildcardAttributePathParams(), NewAttributePathParams(7, 8, 9), true},
		{"whole attribute covers element", NewAttributePathParams(1, 6, 3), listPath(1, 6, 3, 4), true},
		{"element does not cover whole", listPath(1, 6, 3, 4), NewAttributePathParams(1, 6, 3), false},
		{"different elements", listPath(1, 6, 3, 4), listPath(1, 6, 3, 5), false},
		{"same element", listPath(1, 6, 3, 4), listPath(1, 6, 3, 4), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.outer.IsAttributePathSupersetOf(tt.inner); got != tt.want {
				t.Errorf("%v.IsAttributePathSupersetOf(%v) = %v, want %v", tt.outer, tt.inner, got, tt.want)
			}
		})
	}
}

func TestAttributePathParams_Intersects(t *testing.T) {
	tests := []struct {
		name string
		a, b AttributePathParams
		want bool
	}{
		{"same", NewAttributePathParams(1, 6, 0), NewAttributePathParams(1, 6, 0), true},
		{"different endpoint", NewAttributePathParams(1, 6, 0), NewAttributePathParams(2, 6, 0), false},
		{"wildcard endpoint concrete cluster", NewAttributePathParams(InvalidEndpointID, 6, 0), NewAttributePathParams(2, 6, 0), true},
		{"wildcard endpoint other cluster", NewAttributePathParams(InvalidEndpointID, 6, 0), NewAttributePathParams(2, 8, 0), false},
		{"both partially wild", NewAttributePathParams(1, InvalidClusterID, InvalidAttributeID), NewAttributePathParams(InvalidEndpointID, 6, InvalidAttributeID), true},
		{"list elements ignored", listPath(1, 6, 3, 1), listPath(1, 6, 3, 2), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Intersects(tt.b); got != tt.want {
				t.Errorf("%v.Intersects(%v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
			if got := tt.b.Intersects(tt.a); got != tt.want {
				t.Errorf("%v.Intersects(%v) = %v, want %v (symmetry)", tt.b, tt.a, got, tt.want)
			}
		})
	}
}

func TestAttributePathParams_IncludesConcrete(t *testing.T) {
	c := ConcreteAttributePath{Endpoint: 1, Cluster: 6, Attribute: 3}

	if !listPath(1, 6, 3, 9).IncludesConcrete(c) {
		t.Error("a list element path should include its attribute")
	}
	if !NewAttributePathParams(InvalidEndpointID, 6, InvalidAttributeID).IncludesConcrete(c) {
		t.Error("wildcard endpoint and attribute should include 1/6/3")
	}
	if NewAttributePathParams(1, 8, InvalidAttributeID).IncludesConcrete(c) {
		t.Error("cluster 8 path should not include 1/6/3")
	}
}

func TestAttributePathParams_Concrete(t *testing.T) {
	if _, ok := NewAttributePathParams(1, InvalidClusterID, InvalidAttributeID).Concrete(); ok {
		t.Error("Concrete() on a wildcard path should return false")
	}

	got, ok := NewAttributePathParams(1, 6, 0).Concrete()
	if !ok {
		t.Fatal("Concrete() on a concrete path should return true")
	}
	want := ConcreteAttributePath{Endpoint: 1, Cluster: 6, Attribute: 0}
	if got != want {
		t.Errorf("Concrete() = %v, want %v", got, want)
	}
}

func TestAttributePathParams_String(t *testing.T) {
	tests := []struct {
		path AttributePathParams
		want string
	}{
		{NewAttributePathParams(1, 6, 0), "1/0x0006/0x0000"},
		{NewAttributePathParams(1, 6, InvalidAttributeID), "1/0x0006/*"},
		{WildcardAttributePathParams(), "*/*/*"},
		{listPath(1, 6, 3, 2), "1/0x0006/0x0003[2]"},
	}

	for _, tt := range tests {
		if got := tt.path.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
