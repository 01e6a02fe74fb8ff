package dsl

import (
	"time"

	"github.com/aretw0/tendril/pkg/domain"
)

// NodeBuilder provides a fluent API for configuring a node.
type NodeBuilder struct {
	node     domain.NodeDefinition
	builder  *Builder
	children *Builder
}

// Start marks the node as a start node.
func (n *NodeBuilder) Start() *NodeBuilder {
	n.node.Kind = domain.KindStart
	return n
}

// End marks the node as an end node.
func (n *NodeBuilder) End() *NodeBuilder {
	n.node.Kind = domain.KindEnd
	n.node.Next = nil
	return n
}

// Throw makes an end node broadcast signalType when reached.
func (n *NodeBuilder) Throw(signalType string) *NodeBuilder {
	n.End()
	n.node.EventType = signalType
	return n
}

// Task marks the node as a wait state completed by the host.
func (n *NodeBuilder) Task() *NodeBuilder {
	n.node.Kind = domain.KindTask
	return n
}

// WorkItem makes the node hand a work item named name to the host.
func (n *NodeBuilder) WorkItem(name string) *NodeBuilder {
	n.node.Kind = domain.KindWorkItem
	n.node.WorkName = name
	return n
}

// Event makes the node wait for signalType.
func (n *NodeBuilder) Event(signalType string) *NodeBuilder {
	n.node.Kind = domain.KindEvent
	n.node.EventType = signalType
	return n
}

// Boundary attaches the node to the host with the given unique id.
// Configure the trigger with On, Timer or Compensation.
func (n *NodeBuilder) Boundary(host string) *NodeBuilder {
	n.node.Kind = domain.KindBoundaryEvent
	n.node.AttachedTo = host
	return n
}

// On sets the signal type an event or boundary node reacts to.
func (n *NodeBuilder) On(signalType string) *NodeBuilder {
	n.node.EventType = signalType
	return n
}

// Timer makes an event or boundary node fire after delay.
func (n *NodeBuilder) Timer(delay time.Duration) *NodeBuilder {
	if n.node.Kind != domain.KindBoundaryEvent {
		n.node.Kind = domain.KindEvent
	}
	n.node.EventType = domain.SignalTimer
	n.node.TimerDelay = delay
	return n
}

// Compensation makes a boundary node react to compensation requests.
func (n *NodeBuilder) Compensation() *NodeBuilder {
	n.node.EventType = domain.SignalCompensation
	return n
}

// Interrupting makes a boundary node cancel its host when it fires.
func (n *NodeBuilder) Interrupting() *NodeBuilder {
	n.node.CancelActivity = true
	return n
}

// Sub turns the node into a composite whose children are declared by fn.
func (n *NodeBuilder) Sub(fn func(b *Builder)) *NodeBuilder {
	n.node.Kind = domain.KindComposite
	if n.children == nil {
		n.children = New(n.node.ID)
	}
	fn(n.children)
	return n
}

// UniqueID sets the stable identity used to correlate boundary events.
func (n *NodeBuilder) UniqueID(id string) *NodeBuilder {
	return n.Meta(domain.MetaUniqueID, id)
}

// Meta adds a metadata entry. Work items receive metadata as parameters.
func (n *NodeBuilder) Meta(key, value string) *NodeBuilder {
	if n.node.Metadata == nil {
		n.node.Metadata = make(map[string]string)
	}
	n.node.Metadata[key] = value
	return n
}

// Output maps the first of sources to the process variable target.
func (n *NodeBuilder) Output(target string, sources ...string) *NodeBuilder {
	n.node.OutAssociations = append(n.node.OutAssociations, domain.DataAssociation{
		Sources: sources,
		Target:  target,
	})
	return n
}

// Go adds an outgoing flow to a sibling node.
func (n *NodeBuilder) Go(target string) *NodeBuilder {
	n.node.Next = append(n.node.Next, target)
	return n
}

// Build returns the node definition.
// This is primarily used by the Builder, but exposed for advanced usage.
func (n *NodeBuilder) Build() *domain.NodeDefinition {
	def := n.node
	if n.children != nil {
		def.Nodes = n.children.build()
	}
	return &def
}
