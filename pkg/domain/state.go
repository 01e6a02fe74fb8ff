package domain

import (
	"maps"
	"slices"
	"time"
)

// NodeState is the lifecycle state of a node instance.
type NodeState string

const (
	NodeActive    NodeState = "active"    // Triggered, waiting or attached
	NodeCompleted NodeState = "completed" // Finished normally, downstream flow triggered
	NodeCancelled NodeState = "cancelled" // Removed without completing
)

// ProcessState is the lifecycle state of a process instance.
type ProcessState string

const (
	ProcessPending   ProcessState = "pending"
	ProcessActive    ProcessState = "active"
	ProcessCompleted ProcessState = "completed"
	ProcessAborted   ProcessState = "aborted"
)

// WorkItemState tracks a work item handed to the host.
type WorkItemState string

const (
	WorkItemPending   WorkItemState = "pending"
	WorkItemCompleted WorkItemState = "completed"
	WorkItemAborted   WorkItemState = "aborted"
)

// WorkItem is the unit of work a work_item node hands to the host.
type WorkItem struct {
	ID             int64          `json:"id"`
	NodeInstanceID int64          `json:"node_instance_id"`
	Name           string         `json:"name"`
	Parameters     map[string]any `json:"parameters,omitempty"`
	Results        map[string]any `json:"results,omitempty"`
	State          WorkItemState  `json:"state"`
}

// TimerInstance is a scheduled firing correlated to one node instance.
type TimerInstance struct {
	ID                int64         `json:"id"`
	ProcessInstanceID int64         `json:"process_instance_id"`
	NodeInstanceID    int64         `json:"node_instance_id"`
	Delay             time.Duration `json:"delay"`
	Payload           any           `json:"payload,omitempty"`
}

// NodeSnapshot is a serializable view of one active node instance.
type NodeSnapshot struct {
	ID          int64     `json:"id"`
	NodeID      string    `json:"node_id"`
	UniqueID    string    `json:"unique_id"`
	Kind        NodeKind  `json:"kind"`
	State       NodeState `json:"state"`
	ContainerID int64     `json:"container_id"`
}

// ProcessSnapshot is a serializable view of a process instance.
// It is what stores, the HTTP adapter and the CLI see.
type ProcessSnapshot struct {
	ID               int64          `json:"id"`
	DefinitionID     string         `json:"definition_id"`
	State            ProcessState   `json:"state"`
	Variables        map[string]any `json:"variables,omitempty"`
	CompletedNodeIDs []string       `json:"completed_node_ids,omitempty"`
	ActivatingIDs    []string       `json:"activating_node_ids,omitempty"`
	NodeInstances    []NodeSnapshot `json:"node_instances,omitempty"`
	WorkItems        []WorkItem     `json:"work_items,omitempty"`
}

// Clone returns a copy that shares no maps or slices with s.
// Variable values themselves are copied shallowly.
func (s *ProcessSnapshot) Clone() *ProcessSnapshot {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Variables = maps.Clone(s.Variables)
	cp.CompletedNodeIDs = slices.Clone(s.CompletedNodeIDs)
	cp.ActivatingIDs = slices.Clone(s.ActivatingIDs)
	cp.NodeInstances = slices.Clone(s.NodeInstances)
	cp.WorkItems = make([]WorkItem, len(s.WorkItems))
	for i, w := range s.WorkItems {
		w.Parameters = maps.Clone(w.Parameters)
		w.Results = maps.Clone(w.Results)
		cp.WorkItems[i] = w
	}
	if s.WorkItems == nil {
		cp.WorkItems = nil
	}
	return &cp
}
