package domain

import "errors"

// ProcessDefinition is an immutable tree of node definitions.
type ProcessDefinition struct {
	ID    string            `json:"id" yaml:"id"`
	Name  string            `json:"name,omitempty" yaml:"name,omitempty"`
	Nodes []*NodeDefinition `json:"nodes" yaml:"nodes"`
}

// Lookup finds a node anywhere in the definition tree by its unique id.
func (p *ProcessDefinition) Lookup(uniqueID string) (*NodeDefinition, bool) {
	return lookup(p.Nodes, uniqueID)
}

func lookup(nodes []*NodeDefinition, uniqueID string) (*NodeDefinition, bool) {
	for _, n := range nodes {
		if n.UniqueID() == uniqueID {
			return n, true
		}
		if n.IsComposite() {
			if found, ok := lookup(n.Nodes, uniqueID); ok {
				return found, true
			}
		}
	}
	return nil, false
}

// Validate reports every structural problem of the definition.
// Each problem is a *ConfigurationError; they are joined with errors.Join.
func (p *ProcessDefinition) Validate() error {
	var errs []error
	seen := make(map[string]bool)
	p.validate(p.Nodes, seen, &errs)
	return errors.Join(errs...)
}

func (p *ProcessDefinition) validate(nodes []*NodeDefinition, seen map[string]bool, errs *[]error) {
	siblings := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		siblings[n.ID] = true
	}

	for _, n := range nodes {
		uid := n.UniqueID()
		if seen[uid] {
			*errs = append(*errs, &ConfigurationError{NodeID: uid, Err: ErrDuplicateNode})
		}
		seen[uid] = true

		for _, next := range n.Next {
			if !siblings[next] {
				*errs = append(*errs, &ConfigurationError{NodeID: uid, Err: ErrUnknownNode})
			}
		}

		switch n.Kind {
		case KindBoundaryEvent:
			if _, ok := p.Lookup(n.AttachedTo); n.AttachedTo == "" || !ok {
				*errs = append(*errs, &ConfigurationError{NodeID: uid, Err: ErrUnknownAttachedNode})
			}
			fallthrough
		case KindEvent:
			if n.EventType == "" {
				*errs = append(*errs, &ConfigurationError{NodeID: uid, Err: ErrMissingEventType})
			}
		case KindComposite:
			p.validate(n.Nodes, seen, errs)
		}
	}
}

// StartNodes returns the nodes triggered when a container starts: every start node,
// or the first non-boundary node when none is declared.
func StartNodes(nodes []*NodeDefinition) []*NodeDefinition {
	var starts []*NodeDefinition
	for _, n := range nodes {
		if n.Kind == KindStart {
			starts = append(starts, n)
		}
	}
	if len(starts) > 0 {
		return starts
	}
	for _, n := range nodes {
		if n.Kind != KindBoundaryEvent {
			return []*NodeDefinition{n}
		}
	}
	return nil
}

// BoundariesOf returns the boundary events attached to the given host, in declaration order.
func BoundariesOf(nodes []*NodeDefinition, hostUniqueID string) []*NodeDefinition {
	var out []*NodeDefinition
	for _, n := range nodes {
		if n.Kind == KindBoundaryEvent && n.AttachedTo == hostUniqueID {
			out = append(out, n)
		}
	}
	return out
}

// FindByID returns the node with the given id among siblings.
func FindByID(nodes []*NodeDefinition, id string) (*NodeDefinition, bool) {
	for _, n := range nodes {
		if n.ID == id {
			return n, true
		}
	}
	return nil, false
}
