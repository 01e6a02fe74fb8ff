package dsl

import (
	"fmt"

	"github.com/aretw0/tendril/pkg/domain"
)

// Builder manages the definition construction. Nodes keep their insertion order.
type Builder struct {
	id    string
	name  string
	order []string
	nodes map[string]*NodeBuilder
}

// New creates a new definition builder.
func New(id string) *Builder {
	return &Builder{
		id:    id,
		nodes: make(map[string]*NodeBuilder),
	}
}

// Name sets a human readable name.
func (b *Builder) Name(name string) *Builder {
	b.name = name
	return b
}

// Add creates a new node in the current scope.
// If the node already exists, it returns the existing builder.
// Nodes default to tasks.
func (b *Builder) Add(id string) *NodeBuilder {
	if nb, ok := b.nodes[id]; ok {
		return nb
	}
	nb := &NodeBuilder{
		node: domain.NodeDefinition{
			ID:   id,
			Kind: domain.KindTask,
		},
		builder: b,
	}
	b.nodes[id] = nb
	b.order = append(b.order, id)
	return nb
}

// Build assembles and validates the definition.
func (b *Builder) Build() (*domain.ProcessDefinition, error) {
	def := &domain.ProcessDefinition{
		ID:    b.id,
		Name:  b.name,
		Nodes: b.build(),
	}
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("invalid definition %q: %w", b.id, err)
	}
	return def, nil
}

func (b *Builder) build() []*domain.NodeDefinition {
	nodes := make([]*domain.NodeDefinition, 0, len(b.order))
	for _, id := range b.order {
		nodes = append(nodes, b.nodes[id].Build())
	}
	return nodes
}
