/*
Package ports defines the driven ports (interfaces) for the Tendril engine.

These interfaces decouple the core logic from external implementations, allowing
the engine to work with various storage backends, lock services and timer schedulers.

# Key Interfaces

  - TimerService: schedules timer firings correlated to node instances.
  - SnapshotStore: receives process-instance snapshots (memory, file, Redis).
  - DistributedLocker: coordinates concurrent access to a process instance across replicas.
  - EnvironmentProvider: builds the runtime Environment a session is bound to.
*/
package ports
