package ports

import "context"

// Environment is the runtime execution context handed to a session.
// It carries global variable bindings and the persistence collaborators.
type Environment struct {
	// Globals are read-only bindings visible to every process instance as a
	// fallback for process variables.
	Globals map[string]any

	// Store receives snapshots (optional).
	Store SnapshotStore

	// Locker coordinates replicas (optional).
	Locker DistributedLocker
}

// EnvironmentProvider builds environments, typically wiring transaction and
// entity-access resources owned by the persistence layer.
type EnvironmentProvider interface {
	NewEnvironment(ctx context.Context) (*Environment, error)
}

// StaticEnvironment is an EnvironmentProvider returning a fixed environment.
type StaticEnvironment Environment

// NewEnvironment returns a copy of the static environment.
func (s StaticEnvironment) NewEnvironment(ctx context.Context) (*Environment, error) {
	env := Environment(s)
	globals := make(map[string]any, len(s.Globals))
	for k, v := range s.Globals {
		globals[k] = v
	}
	env.Globals = globals
	return &env, nil
}
