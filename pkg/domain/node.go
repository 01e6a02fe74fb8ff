package domain

import "time"

// NodeKind is the discriminator that selects node-instance behavior.
type NodeKind string

const (
	// KindStart completes as soon as it is triggered.
	KindStart NodeKind = "start"
	// KindEnd completes as soon as it is triggered and has no outgoing flow.
	KindEnd NodeKind = "end"
	// KindTask is a wait state completed explicitly by the host.
	KindTask NodeKind = "task"
	// KindWorkItem is a wait state backed by a WorkItem handed to the host.
	KindWorkItem NodeKind = "work_item"
	// KindComposite is a sub-process holding its own child node instances.
	KindComposite NodeKind = "composite"
	// KindEvent is an intermediate catch event waiting for a named signal.
	KindEvent NodeKind = "event"
	// KindBoundaryEvent is an event attached to a host node.
	KindBoundaryEvent NodeKind = "boundary_event"
)

// DataAssociation maps a value produced by a node to a process variable.
type DataAssociation struct {
	Sources []string `json:"sources" yaml:"sources" mapstructure:"sources"`
	Target  string   `json:"target" yaml:"target" mapstructure:"target"`
}

// NodeDefinition is the static description of one step of a process.
type NodeDefinition struct {
	ID   string   `json:"id" yaml:"id"`
	Name string   `json:"name,omitempty" yaml:"name,omitempty"`
	Kind NodeKind `json:"kind" yaml:"kind"`

	// Metadata allows for extensible key-value pairs.
	// MetaUniqueID carries the stable identity used for host correlation.
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	// Event configuration (event and boundary_event kinds).
	EventType string `json:"event_type,omitempty" yaml:"event_type,omitempty"`
	// AttachedTo is the unique id of the host node (boundary_event only).
	AttachedTo string `json:"attached_to,omitempty" yaml:"attached_to,omitempty"`
	// CancelActivity makes a completed boundary event cancel its host.
	CancelActivity bool `json:"cancel_activity,omitempty" yaml:"cancel_activity,omitempty"`
	// TimerDelay is used by timer events (EventType prefixed with "Timer").
	TimerDelay time.Duration `json:"timer_delay,omitempty" yaml:"timer_delay,omitempty"`

	// WorkName names the work item handed to the host (work_item only).
	WorkName string `json:"work_name,omitempty" yaml:"work_name,omitempty"`

	// OutAssociations is ordered; the first source is the legacy output key.
	OutAssociations []DataAssociation `json:"out_associations,omitempty" yaml:"out_associations,omitempty"`

	// Next lists the ids of the nodes triggered on completion, within the same container.
	Next []string `json:"next,omitempty" yaml:"next,omitempty"`

	// Nodes holds the children of a composite node.
	Nodes []*NodeDefinition `json:"nodes,omitempty" yaml:"nodes,omitempty"`
}

// UniqueID returns the stable identity of the node within its process definition.
func (n *NodeDefinition) UniqueID() string {
	if id, ok := n.Metadata[MetaUniqueID]; ok && id != "" {
		return id
	}
	return n.ID
}

// IsComposite reports whether instances of this node hold child node instances.
func (n *NodeDefinition) IsComposite() bool {
	return n.Kind == KindComposite
}

// IsTimer reports whether the event configured on this node is a timer.
func (n *NodeDefinition) IsTimer() bool {
	return IsTimerSignal(n.EventType) || n.EventType == SignalTimer
}

// IsCompensation reports whether the event configured on this node is a compensation.
func (n *NodeDefinition) IsCompensation() bool {
	return IsCompensationSignal(n.EventType)
}

// Child finds a direct child of a composite node by its id.
func (n *NodeDefinition) Child(id string) (*NodeDefinition, bool) {
	for _, c := range n.Nodes {
		if c.ID == id {
			return c, true
		}
	}
	return nil, false
}
