package datamodel

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/go-cmp/cmp"
)

type recordingListener struct {
	mu    sync.Mutex
	paths []AttributePathParams
}

func (l *recordingListener) OnAttributeChanged(path AttributePathParams) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.paths = append(l.paths, path)
}

func newTestNode(t *testing.T) *Node {
	t.Helper()

	n := NewNode()
	for _, ep := range []EndpointID{0, 1} {
		if err := n.AddEndpoint(ep); err != nil {
			t.Fatalf("AddEndpoint(%d) failed: %v", ep, err)
		}
	}
	for _, cp := range []ConcreteClusterPath{{0, 0x0028}, {1, 0x0006}, {1, 0x0008}} {
		if err := n.AddCluster(cp.Endpoint, cp.Cluster); err != nil {
			t.Fatalf("AddCluster(%v) failed: %v", cp, err)
		}
	}

	attrs := []struct {
		path  ConcreteAttributePath
		value any
	}{
		{ConcreteAttributePath{0, 0x0028, 0x0001}, "vendor"},
		{ConcreteAttributePath{1, 0x0006, 0x0000}, false},
		{ConcreteAttributePath{1, 0x0006, 0x4000}, true},
		{ConcreteAttributePath{1, 0x0008, 0x0000}, uint8(10)},
		{ConcreteAttributePath{1, 0x0008, 0x0010}, []any{uint8(1), uint8(2), uint8(3)}},
	}
	for _, a := range attrs {
		if err := n.AddAttribute(a.path, a.value); err != nil {
			t.Fatalf("AddAttribute(%v) failed: %v", a.path, err)
		}
	}
	return n
}

func TestNode_AddEndpointDuplicate(t *testing.T) {
	n := NewNode()
	if err := n.AddEndpoint(1); err != nil {
		t.Fatalf("AddEndpoint(1) failed: %v", err)
	}
	if err := n.AddEndpoint(1); err != ErrEndpointExists {
		t.Errorf("AddEndpoint(duplicate) = %v, want ErrEndpointExists", err)
	}
	if err := n.AddCluster(2, 6); err != ErrEndpointNotFound {
		t.Errorf("AddCluster(missing endpoint) = %v, want ErrEndpointNotFound", err)
	}
	if err := n.AddCluster(1, 6); err != nil {
		t.Fatalf("AddCluster(1, 6) failed: %v", err)
	}
	if err := n.AddCluster(1, 6); err != ErrClusterExists {
		t.Errorf("AddCluster(duplicate) = %v, want ErrClusterExists", err)
	}
	if n.EndpointCount() != 1 {
		t.Errorf("EndpointCount() = %d, want 1", n.EndpointCount())
	}
}

func TestNode_ExpandAttributePath(t *testing.T) {
	n := newTestNode(t)

	tests := []struct {
		name string
		path AttributePathParams
		want []ConcreteAttributePath
	}{
		{
			name: "concrete",
			path: NewAttributePathParams(1, 0x0006, 0x0000),
			want: []ConcreteAttributePath{{1, 0x0006, 0x0000}},
		},
		{
			name: "wildcard attribute",
			path: NewAttributePathParams(1, 0x0006, InvalidAttributeID),
			want: []ConcreteAttributePath{{1, 0x0006, 0x0000}, {1, 0x0006, 0x4000}},
		},
		{
			name: "wildcard endpoint concrete cluster",
			path: NewAttributePathParams(InvalidEndpointID, 0x0008, InvalidAttributeID),
			want: []ConcreteAttributePath{{1, 0x0008, 0x0000}, {1, 0x0008, 0x0010}},
		},
		{
			name: "wildcard endpoint missing attribute",
			path: NewAttributePathParams(InvalidEndpointID, 0x0006, 0x1234),
			want: nil,
		},
		{
			name: "global",
			path: WildcardAttributePathParams(),
			want: []ConcreteAttributePath{
				{0, 0x0028, 0x0001},
				{1, 0x0006, 0x0000},
				{1, 0x0006, 0x4000},
				{1, 0x0008, 0x0000},
				{1, 0x0008, 0x0010},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := n.ExpandAttributePath(tt.path)
			if err != nil {
				t.Fatalf("ExpandAttributePath(%v) failed: %v", tt.path, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ExpandAttributePath(%v) mismatch (-want +got):\n%s", tt.path, diff)
			}
		})
	}
}

func TestNode_ExpandAttributePathNotFound(t *testing.T) {
	n := newTestNode(t)

	tests := []struct {
		path AttributePathParams
		want error
	}{
		{NewAttributePathParams(9, 0x0006, 0), ErrEndpointNotFound},
		{NewAttributePathParams(1, 0x0300, 0), ErrClusterNotFound},
		{NewAttributePathParams(1, 0x0006, 0x1234), ErrAttributeNotFound},
	}

	for _, tt := range tests {
		_, err := n.ExpandAttributePath(tt.path)
		if !errors.Is(err, tt.want) {
			t.Errorf("ExpandAttributePath(%v) = %v, want %v", tt.path, err, tt.want)
		}
		if !IsNotFound(err) {
			t.Errorf("IsNotFound(%v) = false, want true", err)
		}
	}
}

func TestNode_ReadAttribute(t *testing.T) {
	n := newTestNode(t)
	path := ConcreteAttributePath{1, 0x0008, 0x0000}

	v, err := n.ReadAttribute(context.Background(), ReadAttributeRequest{Path: path})
	if err != nil {
		t.Fatalf("ReadAttribute failed: %v", err)
	}

	var decoded uint8
	if err := cbor.Unmarshal(v.Data, &decoded); err != nil {
		t.Fatalf("cbor.Unmarshal failed: %v", err)
	}
	if decoded != 10 {
		t.Errorf("decoded value = %d, want 10", decoded)
	}

	dv, err := n.DataVersion(1, 0x0008)
	if err != nil {
		t.Fatalf("DataVersion failed: %v", err)
	}
	if v.DataVersion != dv {
		t.Errorf("DataVersion = %d, want %d", v.DataVersion, dv)
	}
}

func TestNode_ReadAttributeEncodeFailure(t *testing.T) {
	n := newTestNode(t)
	path := ConcreteAttributePath{1, 0x0006, 0x4001}
	if err := n.AddAttribute(path, make(chan int)); err != nil {
		t.Fatalf("AddAttribute failed: %v", err)
	}

	_, err := n.ReadAttribute(context.Background(), ReadAttributeRequest{Path: path})
	if err == nil {
		t.Fatal("ReadAttribute of a channel value should fail")
	}
	if IsNotFound(err) {
		t.Errorf("encode failure should not be a not-found error: %v", err)
	}
}

func TestNode_ReadAttributeCancelledContext(t *testing.T) {
	n := newTestNode(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := n.ReadAttribute(ctx, ReadAttributeRequest{Path: ConcreteAttributePath{1, 0x0006, 0}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("ReadAttribute(cancelled) = %v, want context.Canceled", err)
	}
}

func TestNode_SetAttributeNotifies(t *testing.T) {
	n := newTestNode(t)
	l := &recordingListener{}
	n.SetAttributeChangeListener(l)

	path := ConcreteAttributePath{1, 0x0006, 0x0000}
	before, _ := n.DataVersion(1, 0x0006)

	if err := n.SetAttribute(path, true); err != nil {
		t.Fatalf("SetAttribute failed: %v", err)
	}

	after, _ := n.DataVersion(1, 0x0006)
	if after != before+1 {
		t.Errorf("DataVersion = %d, want %d", after, before+1)
	}

	got, err := n.Attribute(path)
	if err != nil {
		t.Fatalf("Attribute failed: %v", err)
	}
	if got != true {
		t.Errorf("Attribute() = %v, want true", got)
	}

	want := []AttributePathParams{NewAttributePathParams(1, 0x0006, 0x0000)}
	if diff := cmp.Diff(want, l.paths); diff != "" {
		t.Errorf("notifications mismatch (-want +got):\n%s", diff)
	}

	if err := n.SetAttribute(ConcreteAttributePath{1, 0x0006, 0x9999}, 1); err != ErrAttributeNotFound {
		t.Errorf("SetAttribute(missing) = %v, want ErrAttributeNotFound", err)
	}
}

func TestNode_SetListItem(t *testing.T) {
	n := newTestNode(t)
	l := &recordingListener{}
	n.SetAttributeChangeListener(l)

	list := ConcreteAttributePath{1, 0x0008, 0x0010}
	if err := n.SetListItem(list, 1, uint8(7)); err != nil {
		t.Fatalf("SetListItem failed: %v", err)
	}

	got, _ := n.Attribute(list)
	if diff := cmp.Diff([]any{uint8(1), uint8(7), uint8(3)}, got); diff != "" {
		t.Errorf("list mismatch (-want +got):\n%s", diff)
	}

	want := NewAttributePathParams(1, 0x0008, 0x0010)
	want.ListIndex = 1
	if len(l.paths) != 1 || l.paths[0] != want {
		t.Errorf("notifications = %v, want [%v]", l.paths, want)
	}

	if err := n.SetListItem(list, 5, uint8(0)); err != ErrListIndexOutOfRange {
		t.Errorf("SetListItem(out of range) = %v, want ErrListIndexOutOfRange", err)
	}
	if err := n.SetListItem(ConcreteAttributePath{1, 0x0006, 0}, 0, true); err != ErrNotAList {
		t.Errorf("SetListItem(non-list) = %v, want ErrNotAList", err)
	}
}

func TestNode_NotifyAttributeChanged(t *testing.T) {
	n := newTestNode(t)

	// No listener: must not panic.
	n.NotifyAttributeChanged(WildcardAttributePathParams())

	l := &recordingListener{}
	n.SetAttributeChangeListener(l)
	n.NotifyAttributeChanged(NewAttributePathParams(1, 0x0006, InvalidAttributeID))

	if len(l.paths) != 1 || !l.paths[0].HasWildcardAttributeID() {
		t.Errorf("notifications = %v, want one cluster-wide path", l.paths)
	}
}

func TestNode_ConcurrentAccess(t *testing.T) {
	n := newTestNode(t)
	n.SetAttributeChangeListener(&recordingListener{})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(v uint8) {
			defer wg.Done()
			_ = n.SetAttribute(ConcreteAttributePath{1, 0x0008, 0}, v)
		}(uint8(i))
		go func() {
			defer wg.Done()
			_, _ = n.ReadAttribute(context.Background(), ReadAttributeRequest{Path: ConcreteAttributePath{1, 0x0008, 0}})
		}()
	}
	wg.Wait()
}
