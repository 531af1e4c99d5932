package datamodel

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// valueEncMode encodes attribute values deterministically so equal values
// always produce equal report payloads.
var valueEncMode = mustEncMode()

func mustEncMode() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}

// Node is a simple in-memory data model provider.
// It stores attribute values per endpoint and cluster, encodes them with
// CBOR on read and notifies the change listener on every write.
//
// Node is safe for concurrent use. The listener is always invoked outside
// the node lock.
type Node struct {
	mu        sync.RWMutex
	endpoints map[EndpointID]*memEndpoint
	order     []EndpointID // Preserve registration order
	listener  AttributeChangeListener
}

type memEndpoint struct {
	clusters map[ClusterID]*memCluster
	order    []ClusterID
}

type memCluster struct {
	dataVersion DataVersion
	values      map[AttributeID]any
	order       []AttributeID
}

// NewNode creates a new empty node.
func NewNode() *Node {
	return &Node{
		endpoints: make(map[EndpointID]*memEndpoint),
	}
}

// AddEndpoint registers an endpoint with the node.
// Returns ErrEndpointExists if an endpoint with the same ID already exists.
func (n *Node) AddEndpoint(id EndpointID) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, exists := n.endpoints[id]; exists {
		return ErrEndpointExists
	}

	n.endpoints[id] = &memEndpoint{clusters: make(map[ClusterID]*memCluster)}
	n.order = append(n.order, id)
	return nil
}

// AddCluster registers a cluster on an existing endpoint.
// The data version is initialized to a random value.
func (n *Node) AddCluster(endpoint EndpointID, cluster ClusterID) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	ep, ok := n.endpoints[endpoint]
	if !ok {
		return ErrEndpointNotFound
	}
	if _, exists := ep.clusters[cluster]; exists {
		return ErrClusterExists
	}

	ep.clusters[cluster] = &memCluster{
		dataVersion: DataVersion(randomDataVersion()),
		values:      make(map[AttributeID]any),
	}
	ep.order = append(ep.order, cluster)
	return nil
}

// AddAttribute declares an attribute with its initial value.
// Adding an attribute does not notify the listener.
func (n *Node) AddAttribute(path ConcreteAttributePath, value any) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	c, err := n.clusterLocked(path.Endpoint, path.Cluster)
	if err != nil {
		return err
	}
	if _, exists := c.values[path.Attribute]; !exists {
		c.order = append(c.order, path.Attribute)
	}
	c.values[path.Attribute] = value
	return nil
}

// SetAttribute replaces an attribute value, bumps the cluster data version
// and notifies the listener.
func (n *Node) SetAttribute(path ConcreteAttributePath, value any) error {
	n.mu.Lock()
	c, err := n.clusterLocked(path.Endpoint, path.Cluster)
	if err != nil {
		n.mu.Unlock()
		return err
	}
	if _, exists := c.values[path.Attribute]; !exists {
		n.mu.Unlock()
		return ErrAttributeNotFound
	}
	c.values[path.Attribute] = value
	c.dataVersion++
	listener := n.listener
	n.mu.Unlock()

	if listener != nil {
		listener.OnAttributeChanged(AttributePathParamsFromConcrete(path))
	}
	return nil
}

// SetListItem replaces one element of a list attribute. List attributes
// must be stored as []any. The listener is notified with the list index set.
func (n *Node) SetListItem(path ConcreteAttributePath, index ListIndex, value any) error {
	n.mu.Lock()
	c, err := n.clusterLocked(path.Endpoint, path.Cluster)
	if err != nil {
		n.mu.Unlock()
		return err
	}
	current, exists := c.values[path.Attribute]
	if !exists {
		n.mu.Unlock()
		return ErrAttributeNotFound
	}
	list, ok := current.([]any)
	if !ok {
		n.mu.Unlock()
		return ErrNotAList
	}
	if int(index) >= len(list) {
		n.mu.Unlock()
		return ErrListIndexOutOfRange
	}
	list[index] = value
	c.dataVersion++
	listener := n.listener
	n.mu.Unlock()

	if listener != nil {
		changed := AttributePathParamsFromConcrete(path)
		changed.ListIndex = index
		listener.OnAttributeChanged(changed)
	}
	return nil
}

// Attribute returns the stored (unencoded) value of an attribute.
func (n *Node) Attribute(path ConcreteAttributePath) (any, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	c, err := n.clusterLocked(path.Endpoint, path.Cluster)
	if err != nil {
		return nil, err
	}
	v, ok := c.values[path.Attribute]
	if !ok {
		return nil, ErrAttributeNotFound
	}
	return v, nil
}

// DataVersion returns the current data version of a cluster.
func (n *Node) DataVersion(endpoint EndpointID, cluster ClusterID) (DataVersion, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	c, err := n.clusterLocked(endpoint, cluster)
	if err != nil {
		return 0, err
	}
	return c.dataVersion, nil
}

// EndpointCount returns the number of registered endpoints.
func (n *Node) EndpointCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.endpoints)
}

// ExpandAttributePath implements Provider.
func (n *Node) ExpandAttributePath(path AttributePathParams) ([]ConcreteAttributePath, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if concrete, ok := path.Concrete(); ok {
		c, err := n.clusterLocked(concrete.Endpoint, concrete.Cluster)
		if err != nil {
			return nil, err
		}
		if _, exists := c.values[concrete.Attribute]; !exists {
			return nil, ErrAttributeNotFound
		}
		return []ConcreteAttributePath{concrete}, nil
	}

	var result []ConcreteAttributePath
	for _, epID := range n.order {
		if !path.HasWildcardEndpointID() && epID != path.EndpointID {
			continue
		}
		ep := n.endpoints[epID]
		for _, clID := range ep.order {
			if !path.HasWildcardClusterID() && clID != path.ClusterID {
				continue
			}
			c := ep.clusters[clID]
			for _, attrID := range c.order {
				if !path.HasWildcardAttributeID() && attrID != path.AttributeID {
					continue
				}
				result = append(result, ConcreteAttributePath{
					Endpoint:  epID,
					Cluster:   clID,
					Attribute: attrID,
				})
			}
		}
	}
	return result, nil
}

// ReadAttribute implements Provider. Values are CBOR-encoded.
func (n *Node) ReadAttribute(ctx context.Context, req ReadAttributeRequest) (AttributeValue, error) {
	if err := ctx.Err(); err != nil {
		return AttributeValue{}, err
	}

	n.mu.RLock()
	defer n.mu.RUnlock()

	c, err := n.clusterLocked(req.Path.Endpoint, req.Path.Cluster)
	if err != nil {
		return AttributeValue{}, err
	}
	v, ok := c.values[req.Path.Attribute]
	if !ok {
		return AttributeValue{}, ErrAttributeNotFound
	}

	data, err := valueEncMode.Marshal(v)
	if err != nil {
		return AttributeValue{}, fmt.Errorf("datamodel: encode %s: %w", req.Path, err)
	}
	return AttributeValue{DataVersion: c.dataVersion, Data: data}, nil
}

// SetAttributeChangeListener sets the listener for attribute changes.
func (n *Node) SetAttributeChangeListener(listener AttributeChangeListener) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listener = listener
}

// NotifyAttributeChanged notifies the listener that data covered by path
// changed. Use it when state changes outside SetAttribute, e.g. a whole
// cluster being reset.
func (n *Node) NotifyAttributeChanged(path AttributePathParams) {
	n.mu.RLock()
	listener := n.listener
	n.mu.RUnlock()

	if listener != nil {
		listener.OnAttributeChanged(path)
	}
}

// clusterLocked looks up a cluster. Caller must hold n.mu.
func (n *Node) clusterLocked(endpoint EndpointID, cluster ClusterID) (*memCluster, error) {
	ep, ok := n.endpoints[endpoint]
	if !ok {
		return nil, ErrEndpointNotFound
	}
	c, ok := ep.clusters[cluster]
	if !ok {
		return nil, ErrClusterNotFound
	}
	return c, nil
}

// randomDataVersion generates a random initial data version.
func randomDataVersion() uint32 {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// Fallback to a fixed value if random fails
		return 1
	}
	return binary.LittleEndian.Uint32(buf[:])
}

// Verify Node implements the interfaces.
var (
	_ Provider          = (*Node)(nil)
	_ DataModelProvider = (*Node)(nil)
)
