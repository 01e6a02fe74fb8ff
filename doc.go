/*
Package tendril is an embeddable engine for event-driven process definitions.

A process definition is a graph of nodes: start and end events, tasks, work
items handed to the host, intermediate catch events, composite sub-processes
and boundary events attached to other nodes. Boundary events react to signals
while their host is active: errors and escalations, timers, and compensation
of hosts that already completed.

# Architecture

  - pkg/domain: definitions, snapshots, signal naming and errors.
  - pkg/instance: the node-instance tree of one running process.
  - pkg/signal and pkg/timer: signal routing and scheduled firings.
  - pkg/session: many instances, per-instance locking and persistence.
  - pkg/adapters: memory and Redis stores, Redis locks, the HTTP API.

# Usage

	sess, err := tendril.Load([]string{"order.yaml"})
	if err != nil {
		log.Fatal(err)
	}
	defer sess.Close()

	pi, err := sess.StartProcess(ctx, "order", map[string]any{"amount": 40})
	if err != nil {
		log.Fatal(err)
	}
	_ = sess.Signal(ctx, pi.ID(), "Escalate", nil)
*/
package tendril
