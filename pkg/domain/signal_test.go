package domain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignalNaming(t *testing.T) {
	tests := []struct {
		name         string
		signal       string
		timer        bool
		compensation bool
		correlated   int64
	}{
		{name: "Timer", signal: TimerSignal(123), timer: true, correlated: 123},
		{name: "Bare Timer Prefix", signal: "Timer", timer: false},
		{name: "Malformed Timer", signal: "Timer-abc", timer: true},
		{name: "Generic Compensation", signal: CompensationSignal(""), compensation: true},
		{name: "Targeted Compensation", signal: CompensationSignal("N1"), compensation: true},
		{name: "Literal", signal: "Error1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.timer, IsTimerSignal(tt.signal))
			assert.Equal(t, tt.compensation, IsCompensationSignal(tt.signal))

			id, ok := ParseTimerSignal(tt.signal)
			assert.Equal(t, tt.correlated != 0, ok)
			assert.Equal(t, tt.correlated, id)
		})
	}

	assert.Equal(t, "Timer-123", TimerSignal(123))
	assert.Equal(t, "Compensation", CompensationSignal(""))
	assert.Equal(t, "Compensation-N1", CompensationSignal("N1"))
}

func TestNodeDefinition_UniqueID(t *testing.T) {
	n := &NodeDefinition{ID: "task"}
	assert.Equal(t, "task", n.UniqueID())

	n.Metadata = map[string]string{MetaUniqueID: "_4F2A"}
	assert.Equal(t, "_4F2A", n.UniqueID())
}

func TestLifecycleHooks_Merge(t *testing.T) {
	var calls []string
	a := LifecycleHooks{OnNodeCompleted: func(_ context.Context, _ *NodeEvent) { calls = append(calls, "a") }}
	b := LifecycleHooks{OnNodeCompleted: func(_ context.Context, _ *NodeEvent) { calls = append(calls, "b") }}

	merged := a.Merge(b)
	merged.OnNodeCompleted(context.Background(), &NodeEvent{})

	assert.Equal(t, []string{"a", "b"}, calls)
	assert.Nil(t, merged.OnSignal)
}
