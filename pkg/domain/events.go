package domain

import (
	"context"
	"time"
)

// EventType defines the category of a lifecycle event.
type EventType string

const (
	EventNodeTriggered EventType = "node_triggered"
	EventNodeCompleted EventType = "node_completed"
	EventNodeCancelled EventType = "node_cancelled"
	EventSignal        EventType = "signal"
)

// EventBase contains common fields for all lifecycle events.
type EventBase struct {
	Timestamp         time.Time `json:"timestamp"`
	Type              EventType `json:"type"`
	ProcessInstanceID int64     `json:"process_instance_id"`
}

// NodeEvent represents a node-instance transition.
type NodeEvent struct {
	EventBase
	NodeInstanceID int64    `json:"node_instance_id"`
	NodeID         string   `json:"node_id"`
	NodeKind       NodeKind `json:"node_kind"`
}

// SignalEvent represents a broadcast delivered through a process instance.
type SignalEvent struct {
	EventBase
	SignalType string `json:"signal_type"`
	Listeners  int    `json:"listeners"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnNodeTriggered func(context.Context, *NodeEvent)
	OnNodeCompleted func(context.Context, *NodeEvent)
	OnNodeCancelled func(context.Context, *NodeEvent)
	OnSignal        func(context.Context, *SignalEvent)
}

// Merge returns hooks calling h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnNodeTriggered: chainNode(h.OnNodeTriggered, other.OnNodeTriggered),
		OnNodeCompleted: chainNode(h.OnNodeCompleted, other.OnNodeCompleted),
		OnNodeCancelled: chainNode(h.OnNodeCancelled, other.OnNodeCancelled),
		OnSignal:        chainSignal(h.OnSignal, other.OnSignal),
	}
}

func chainNode(a, b func(context.Context, *NodeEvent)) func(context.Context, *NodeEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *NodeEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}

func chainSignal(a, b func(context.Context, *SignalEvent)) func(context.Context, *SignalEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *SignalEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}
