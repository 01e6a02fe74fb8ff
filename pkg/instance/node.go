package instance

import (
	"context"

	"github.com/aretw0/tendril/pkg/domain"
)

// NodeInstance is a live execution of one node definition.
//
// The concrete behavior (plain, work item, composite, event, boundary event) is
// selected from the definition's Kind when the instance is created. Values
// returned by a ProcessInstance are meant for inspection; drive them through the
// ProcessInstance so its lock is held.
type NodeInstance interface {
	ID() int64
	Node() *domain.NodeDefinition
	State() domain.NodeState
	// ContainerID is the id of the composite instance holding this instance, 0 for the process.
	ContainerID() int64

	Trigger(ctx context.Context) error
	Complete(ctx context.Context) error
	Cancel(ctx context.Context)
	SignalEvent(ctx context.Context, signalType string, payload any)
}

// node is the behavior shared by every kind. Start and end nodes complete on
// trigger; tasks wait for Complete.
type node struct {
	id          int64
	def         *domain.NodeDefinition
	pi          *ProcessInstance
	containerID int64
	state       domain.NodeState
}

func (n *node) ID() int64                    { return n.id }
func (n *node) Node() *domain.NodeDefinition { return n.def }
func (n *node) State() domain.NodeState      { return n.state }
func (n *node) ContainerID() int64           { return n.containerID }

func (n *node) Trigger(ctx context.Context) error {
	switch n.def.Kind {
	case domain.KindStart:
		return n.complete(ctx)
	case domain.KindEnd:
		if err := n.complete(ctx); err != nil || n.def.EventType == "" {
			return err
		}
		// Throwing end event, thrown once the node has completed; delivery is
		// queued if a broadcast is in progress.
		n.pi.signals.Signal(ctx, n.def.EventType, n.def.UniqueID())
		return nil
	}
	return nil
}

func (n *node) Complete(ctx context.Context) error {
	return n.complete(ctx)
}

func (n *node) SignalEvent(ctx context.Context, signalType string, payload any) {}

func (n *node) Cancel(ctx context.Context) {
	if n.state != domain.NodeActive {
		return
	}
	n.state = domain.NodeCancelled

	c, err := n.pi.container(n.containerID)
	if err != nil {
		// The scope is already gone; nothing left to detach from.
		return
	}
	n.pi.detach(c, n.id)
	n.pi.emitNode(ctx, domain.EventNodeCancelled, n)
	n.pi.cancelAttached(ctx, c, n.id, true)
}

// complete leaves the node normally and triggers the outgoing flow.
func (n *node) complete(ctx context.Context) error {
	if n.state != domain.NodeActive {
		return nil
	}
	n.state = domain.NodeCompleted

	c, err := n.pi.container(n.containerID)
	if err != nil {
		return err
	}
	n.pi.detach(c, n.id)
	n.pi.markCompleted(n.def.UniqueID())
	n.pi.cancelAttached(ctx, c, n.id, false)
	n.pi.emitNode(ctx, domain.EventNodeCompleted, n)

	targets, err := n.next(c)
	if err != nil {
		return err
	}
	if err := n.pi.dispatch(ctx, c, targets); err != nil {
		return err
	}
	return n.pi.checkCompletion(ctx, c)
}

// next resolves the outgoing targets among the node's siblings.
func (n *node) next(c *container) ([]*domain.NodeDefinition, error) {
	out := make([]*domain.NodeDefinition, 0, len(n.def.Next))
	for _, id := range n.def.Next {
		def, ok := domain.FindByID(c.nodes, id)
		if !ok {
			return nil, &domain.ConfigurationError{NodeID: n.def.UniqueID(), Err: domain.ErrUnknownNode}
		}
		out = append(out, def)
	}
	return out, nil
}
