package reporting

import "container/list"

// nodeRegistry owns the scheduler's nodes. Insert, remove and lookup are
// O(1); iteration follows registration order.
type nodeRegistry struct {
	order *list.List
	index map[ReadHandler]*list.Element
}

func newNodeRegistry() *nodeRegistry {
	return &nodeRegistry{
		order: list.New(),
		index: make(map[ReadHandler]*list.Element),
	}
}

// add returns the existing node for h or registers a new one.
func (r *nodeRegistry) add(h ReadHandler, onFired func(*ReadHandlerNode)) *ReadHandlerNode {
	if e, ok := r.index[h]; ok {
		return e.Value.(*ReadHandlerNode)
	}
	n := &ReadHandlerNode{handler: h, onFired: onFired}
	r.index[h] = r.order.PushBack(n)
	return n
}

func (r *nodeRegistry) find(h ReadHandler) *ReadHandlerNode {
	if e, ok := r.index[h]; ok {
		return e.Value.(*ReadHandlerNode)
	}
	return nil
}

func (r *nodeRegistry) contains(n *ReadHandlerNode) bool {
	e, ok := r.index[n.handler]
	return ok && e.Value.(*ReadHandlerNode) == n
}

func (r *nodeRegistry) remove(h ReadHandler) *ReadHandlerNode {
	e, ok := r.index[h]
	if !ok {
		return nil
	}
	delete(r.index, h)
	n := r.order.Remove(e).(*ReadHandlerNode)
	n.onFired = nil
	return n
}

func (r *nodeRegistry) len() int { return r.order.Len() }

// each calls fn for every node until fn returns false.
// fn must not add or remove nodes.
func (r *nodeRegistry) each(fn func(*ReadHandlerNode) bool) {
	for e := r.order.Front(); e != nil; e = e.Next() {
		if !fn(e.Value.(*ReadHandlerNode)) {
			return
		}
	}
}

func (r *nodeRegistry) clear() []*ReadHandlerNode {
	nodes := make([]*ReadHandlerNode, 0, r.order.Len())
	r.each(func(n *ReadHandlerNode) bool {
		nodes = append(nodes, n)
		return true
	})
	for _, n := range nodes {
		n.onFired = nil
	}
	r.order.Init()
	r.index = make(map[ReadHandler]*list.Element)
	return nodes
}
