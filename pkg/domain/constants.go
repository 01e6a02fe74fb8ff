package domain

// Metadata keys understood by the engine.
const (
	// MetaUniqueID is the node metadata key holding the stable identity of a node
	// definition within a process definition.
	MetaUniqueID = "UniqueId"
)

// Output keys set on boundary-event completion.
const (
	OutputNodeInstance = "nodeInstance"
	OutputSignal       = "signal"
	OutputEvent        = "event"
	OutputWorkItem     = "workItem"
)
