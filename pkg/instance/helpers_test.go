package instance

import (
	"context"
	"testing"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/stretchr/testify/require"
)

func startNode(id string, next ...string) *domain.NodeDefinition {
	return &domain.NodeDefinition{ID: id, Kind: domain.KindStart, Next: next}
}

func endNode(id string) *domain.NodeDefinition {
	return &domain.NodeDefinition{ID: id, Kind: domain.KindEnd}
}

func taskNode(id string, next ...string) *domain.NodeDefinition {
	return &domain.NodeDefinition{ID: id, Kind: domain.KindTask, Next: next}
}

func eventNodeDef(id, eventType string, next ...string) *domain.NodeDefinition {
	return &domain.NodeDefinition{ID: id, Kind: domain.KindEvent, EventType: eventType, Next: next}
}

func boundaryDef(id, host, eventType string, next ...string) *domain.NodeDefinition {
	return &domain.NodeDefinition{
		ID:         id,
		Kind:       domain.KindBoundaryEvent,
		AttachedTo: host,
		EventType:  eventType,
		Next:       next,
	}
}

func subProcess(id string, next []string, nodes ...*domain.NodeDefinition) *domain.NodeDefinition {
	return &domain.NodeDefinition{ID: id, Kind: domain.KindComposite, Next: next, Nodes: nodes}
}

func definition(nodes ...*domain.NodeDefinition) *domain.ProcessDefinition {
	return &domain.ProcessDefinition{ID: "test", Nodes: nodes}
}

// started builds and starts a process instance.
func started(t *testing.T, def *domain.ProcessDefinition, opts ...Option) *ProcessInstance {
	t.Helper()
	require.NoError(t, def.Validate())
	pi := New(1, def, opts...)
	require.NoError(t, pi.Start(context.Background()))
	return pi
}

// live returns the live instances of a node, depth-first.
func live(pi *ProcessInstance, uniqueID string) []NodeInstance {
	var out []NodeInstance
	pi.Walk(func(ni NodeInstance) bool {
		if ni.Node().UniqueID() == uniqueID {
			out = append(out, ni)
		}
		return true
	})
	return out
}

func one(t *testing.T, pi *ProcessInstance, uniqueID string) NodeInstance {
	t.Helper()
	found := live(pi, uniqueID)
	require.Len(t, found, 1, "live instances of %s", uniqueID)
	return found[0]
}
