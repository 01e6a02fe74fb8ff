package domain

import (
	"errors"
	"fmt"
)

// ErrUnknownAttachedNode is returned when a boundary event references a host that does not exist.
var ErrUnknownAttachedNode = errors.New("attached-to node not found")

// ErrUnknownNode is returned when a node id cannot be resolved in a process definition.
var ErrUnknownNode = errors.New("node definition not found")

// ErrDuplicateNode is returned when two nodes share the same unique id.
var ErrDuplicateNode = errors.New("duplicate node unique id")

// ErrMissingEventType is returned when an event node has no event type configured.
var ErrMissingEventType = errors.New("event type not configured")

// ErrUnsupportedKind is returned when a node kind has no runtime behavior.
var ErrUnsupportedKind = errors.New("unsupported node kind")

// ErrProcessNotFound is returned when a process instance id cannot be found.
var ErrProcessNotFound = errors.New("process instance not found")

// ErrDefinitionNotFound is returned when a process definition id is not registered.
var ErrDefinitionNotFound = errors.New("process definition not found")

// ErrNodeInstanceNotFound is returned when a node instance id is not active.
var ErrNodeInstanceNotFound = errors.New("node instance not found")

// ErrWorkItemNotFound is returned when a work item id is not pending.
var ErrWorkItemNotFound = errors.New("work item not found")

// ErrContainerNotFound is a structural violation: a node instance refers to a container that no longer exists.
var ErrContainerNotFound = errors.New("node instance container not found")

// ErrProcessNotActive is returned when an operation requires an active process instance.
var ErrProcessNotActive = errors.New("process instance not active")

// ConfigurationError reports an invalid process definition.
type ConfigurationError struct {
	NodeID string
	Err    error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid node %q: %v", e.NodeID, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}
