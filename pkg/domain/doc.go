/*
Package domain contains the core domain models of the Tendril process engine.

It defines the static process model (ProcessDefinition, NodeDefinition), the signal
naming rules shared by every component, lifecycle events and serializable snapshots.
This package is kept pure and free of external dependencies like I/O or persistence.

# Key Entities

  - NodeDefinition: one step of a process; Kind selects the runtime behavior.
  - ProcessDefinition: the tree of nodes, with Lookup and Validate.
  - Event: a named signal with an opaque payload ("Timer-<id>", "Compensation[-<id>]" or a literal name).
  - ProcessSnapshot: the runtime view of a process instance (variables, completed ids, active nodes).
*/
package domain
