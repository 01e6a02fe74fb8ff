/*
Package instance executes process definitions.

A ProcessInstance holds a tree of node instances: the process is the root
container and every active composite node is a nested one. Node behavior is
selected from the definition's Kind when the instance is created.

# Boundary Events

Boundary events are created together with their host, while the host is still
"activating", and start listening before the host runs. When their signal
arrives they search their scope depth-first for an active instance of the host:

  - interrupting or plain signals complete the boundary if the host is active
    and not activating, otherwise the boundary is cancelled;
  - timers only match the boundary the firing is correlated to;
  - compensation completes the boundary only once the host has completed and no
    instance of it is still active.

Boundaries are cancelled with their host, except compensation boundaries which
stay until their scope ends.

# Usage

	pi := instance.New(1, def,
		instance.WithTimerService(timers),
		instance.WithLogger(logger),
	)
	if err := pi.Start(ctx); err != nil {
		return err
	}
	_ = pi.SignalEvent(ctx, "Error1", nil)
*/
package instance
