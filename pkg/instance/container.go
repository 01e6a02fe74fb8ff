package instance

import (
	"github.com/aretw0/tendril/pkg/domain"
)

// rootContainerID identifies the process instance itself as a container.
const rootContainerID int64 = 0

// container owns the node instances of one scope (the process or a composite).
// Instances refer back to it only through its id.
type container struct {
	id    int64
	nodes []*domain.NodeDefinition // definitions available in this scope
	order []int64                  // registration order
	index map[int64]NodeInstance
	// busy is non-zero while a flow is being dispatched into the scope; the
	// scope cannot complete in between.
	busy int
}

func newContainer(id int64, nodes []*domain.NodeDefinition) *container {
	return &container{
		id:    id,
		nodes: nodes,
		index: make(map[int64]NodeInstance),
	}
}

func (c *container) add(ni NodeInstance) {
	if _, ok := c.index[ni.ID()]; ok {
		return
	}
	c.index[ni.ID()] = ni
	c.order = append(c.order, ni.ID())
}

func (c *container) remove(id int64) bool {
	if _, ok := c.index[id]; !ok {
		return false
	}
	delete(c.index, id)

	// Copy on write so snapshots handed out earlier stay stable.
	next := make([]int64, 0, len(c.order)-1)
	for _, v := range c.order {
		if v != id {
			next = append(next, v)
		}
	}
	c.order = next
	return true
}

func (c *container) get(id int64) (NodeInstance, bool) {
	ni, ok := c.index[id]
	return ni, ok
}

// snapshot returns the instances in registration order.
// Later structural changes do not affect the returned slice.
func (c *container) snapshot() []NodeInstance {
	out := make([]NodeInstance, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.index[id])
	}
	return out
}

// pending counts the instances that keep the scope alive.
// Boundary events only react on behalf of their host and do not count.
func (c *container) pending() int {
	n := 0
	for _, ni := range c.index {
		if ni.Node().Kind != domain.KindBoundaryEvent {
			n++
		}
	}
	return n
}

// find walks the tree below c depth-first, siblings in registration order,
// and returns the first instance accepted by match.
func (p *ProcessInstance) find(c *container, match func(NodeInstance) bool) NodeInstance {
	var found NodeInstance
	p.walk(c, func(ni NodeInstance) bool {
		if match(ni) {
			found = ni
			return false
		}
		return true
	})
	return found
}

// walk visits the tree below c in depth-first pre-order. It stops when visit returns false.
func (p *ProcessInstance) walk(c *container, visit func(NodeInstance) bool) bool {
	for _, ni := range c.snapshot() {
		if !visit(ni) {
			return false
		}
		if !ni.Node().IsComposite() {
			continue
		}
		if child, ok := p.containers[ni.ID()]; ok {
			if !p.walk(child, visit) {
				return false
			}
		}
	}
	return true
}
