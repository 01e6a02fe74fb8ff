package instance

import (
	"context"

	"github.com/aretw0/tendril/pkg/domain"
)

// boundaryEventNode is an event attached to a host node.
//
// Interrupting signals and timers complete it only while the host is active and
// not activating; compensation completes it only once the host has finished
// normally. Every other outcome cancels it.
type boundaryEventNode struct {
	eventNode
	// host is the instance this boundary was created for; 0 when triggered on its own.
	host int64
}

func (b *boundaryEventNode) hostID() int64 { return b.host }

func (b *boundaryEventNode) Trigger(ctx context.Context) error {
	b.listen(b)
	return nil
}

func (b *boundaryEventNode) SignalEvent(ctx context.Context, signalType string, payload any) {
	if b.state != domain.NodeActive {
		return
	}

	host := b.activeHost(signalType, payload)
	if domain.IsCompensationSignal(signalType) {
		if host == nil && !b.pi.isActivating(b.def.AttachedTo) && b.pi.isCompleted(b.def.AttachedTo) {
			b.triggerCompleted(ctx, signalType, payload, nil)
		} else {
			b.Cancel(ctx)
		}
		return
	}

	if host != nil {
		b.triggerCompleted(ctx, signalType, payload, host)
	} else {
		b.Cancel(ctx)
	}
}

func (b *boundaryEventNode) Complete(ctx context.Context) error {
	if b.state != domain.NodeActive {
		return nil
	}
	b.stopListening(b)
	if host, ok := b.pi.index[b.host]; ok && b.def.CancelActivity && !b.def.IsCompensation() &&
		host.State() == domain.NodeActive {
		b.host = 0
		host.Cancel(ctx)
	}
	return b.node.complete(ctx)
}

func (b *boundaryEventNode) Cancel(ctx context.Context) {
	if b.state != domain.NodeActive {
		return
	}
	b.stopListening(b)
	b.node.Cancel(ctx)
}

// activeHost searches the boundary's scope, depth-first, for an active and
// non-activating instance of the host node. Timer firings must also be
// correlated to this boundary instance.
func (b *boundaryEventNode) activeHost(signalType string, payload any) NodeInstance {
	c, err := b.pi.container(b.containerID)
	if err != nil {
		return nil
	}
	attachedTo := b.def.AttachedTo
	correlated, isTimer := correlatedInstance(signalType, payload)

	return b.pi.find(c, func(ni NodeInstance) bool {
		if ni.Node().UniqueID() != attachedTo || ni.State() != domain.NodeActive {
			return false
		}
		if b.pi.isActivating(attachedTo) {
			return false
		}
		if isTimer {
			return correlated == b.id
		}
		return true
	})
}

func (b *boundaryEventNode) triggerCompleted(ctx context.Context, signalType string, payload any, host NodeInstance) {
	if len(b.def.OutAssociations) > 0 {
		b.pi.applyOutputs(b.def.OutAssociations, b.outputs(signalType, payload, host))
	}

	b.stopListening(b)
	if host != nil && b.def.CancelActivity && !domain.IsCompensationSignal(signalType) {
		// Detach first: cancelling the host cancels everything still attached to it.
		b.host = 0
		host.Cancel(ctx)
	}
	if err := b.node.complete(ctx); err != nil {
		b.pi.fail(ctx, err)
	}
}

// outputs builds the map applied through the output associations.
// The first declared source keeps receiving the raw payload for compatibility.
func (b *boundaryEventNode) outputs(signalType string, payload any, host NodeInstance) map[string]any {
	out := make(map[string]any, 5)
	if src := b.def.OutAssociations[0].Sources; len(src) > 0 {
		out[src[0]] = payload
	}
	out[domain.OutputNodeInstance] = host
	out[domain.OutputSignal] = signalType
	out[domain.OutputEvent] = payload
	if item, ok := b.pi.workItemOf(host); ok {
		out[domain.OutputWorkItem] = item
	}
	return out
}
