package instance

import (
	"context"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/signal"
)

// eventNode waits for a signal matching its configured event type.
// Timer events listen on "Timer-<own id>" and schedule a firing correlated to themselves.
type eventNode struct {
	node
	listening  bool
	signalType string
	timerID    int64
}

func (e *eventNode) Trigger(ctx context.Context) error {
	e.listen(e)
	return nil
}

func (e *eventNode) SignalEvent(ctx context.Context, signalType string, payload any) {
	if e.state != domain.NodeActive {
		return
	}
	if id, ok := correlatedInstance(signalType, payload); ok && id != e.id {
		return
	}

	if len(e.def.OutAssociations) > 0 {
		e.pi.applyOutputs(e.def.OutAssociations, eventOutputs(e.def, signalType, payload))
	}
	e.stopListening(e)
	if err := e.node.complete(ctx); err != nil {
		e.pi.fail(ctx, err)
	}
}

func (e *eventNode) Complete(ctx context.Context) error {
	e.stopListening(e)
	return e.node.complete(ctx)
}

func (e *eventNode) Cancel(ctx context.Context) {
	e.stopListening(e)
	e.node.Cancel(ctx)
}

// listen registers self exactly once. self is the outermost value so the registry
// calls back into the right behavior.
func (e *eventNode) listen(self signal.Listener) {
	if e.listening {
		return
	}
	e.signalType = e.def.EventType
	if e.def.IsTimer() {
		e.signalType = domain.TimerSignal(e.id)
		if e.pi.timers != nil {
			e.timerID = e.pi.timers.Schedule(domain.TimerInstance{
				ProcessInstanceID: e.pi.id,
				NodeInstanceID:    e.id,
				Delay:             e.def.TimerDelay,
			})
		}
	}
	e.pi.signals.Register(self, e.signalType)
	e.listening = true
}

// stopListening deregisters exactly once and drops any pending timer.
func (e *eventNode) stopListening(self signal.Listener) {
	if !e.listening {
		return
	}
	e.pi.signals.Unregister(self, e.signalType)
	if e.timerID != 0 && e.pi.timers != nil {
		e.pi.timers.Cancel(e.timerID)
	}
	e.timerID = 0
	e.listening = false
}

// eventOutputs is the output map of a plain catch event.
func eventOutputs(def *domain.NodeDefinition, signalType string, payload any) map[string]any {
	out := map[string]any{
		domain.OutputSignal: signalType,
		domain.OutputEvent:  payload,
	}
	if src := def.OutAssociations[0].Sources; len(src) > 0 {
		out[src[0]] = payload
	}
	return out
}

// correlatedInstance extracts the node-instance id a timer firing is meant for.
// The payload wins over the signal name when it carries a TimerInstance.
func correlatedInstance(signalType string, payload any) (int64, bool) {
	if !domain.IsTimerSignal(signalType) {
		return 0, false
	}
	switch p := payload.(type) {
	case domain.TimerInstance:
		return p.NodeInstanceID, true
	case *domain.TimerInstance:
		if p != nil {
			return p.NodeInstanceID, true
		}
	}
	id, _ := domain.ParseTimerSignal(signalType)
	return id, true
}
