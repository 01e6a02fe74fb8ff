package signal_test

import (
	"context"
	"testing"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/signal"
	"github.com/stretchr/testify/assert"
)

// recorder appends "<name>:<signal>" to a shared log and runs an optional reaction.
type recorder struct {
	name  string
	log   *[]string
	react func(ctx context.Context, signalType string)
}

func (r *recorder) SignalEvent(ctx context.Context, signalType string, payload any) {
	*r.log = append(*r.log, r.name+":"+signalType)
	if r.react != nil {
		r.react(ctx, signalType)
	}
}

func TestManager_FanOutInRegistrationOrder(t *testing.T) {
	var log []string
	m := signal.NewManager()
	a := &recorder{name: "a", log: &log}
	b := &recorder{name: "b", log: &log}
	c := &recorder{name: "c", log: &log}

	m.Register(b, "Error1")
	m.Register(a, "Error1")
	m.Register(c, "Other")

	m.Signal(context.Background(), "Error1", nil)

	assert.Equal(t, []string{"b:Error1", "a:Error1"}, log)
}

func TestManager_RegisterIsIdempotent(t *testing.T) {
	var log []string
	m := signal.NewManager()
	a := &recorder{name: "a", log: &log}

	assert.True(t, m.Register(a, "X"))
	assert.False(t, m.Register(a, "X"))
	assert.Equal(t, 1, m.Listeners("X"))

	assert.True(t, m.Unregister(a, "X"))
	assert.False(t, m.Unregister(a, "X"))
	assert.Equal(t, 0, m.Listeners("X"))
	assert.Empty(t, m.Types())
}

func TestManager_SnapshotToleratesUnregister(t *testing.T) {
	var log []string
	m := signal.NewManager()
	b := &recorder{name: "b", log: &log}
	a := &recorder{name: "a", log: &log}
	a.react = func(ctx context.Context, s string) {
		// Removing both listeners mid-broadcast must not skip or corrupt the snapshot.
		m.Unregister(a, s)
		m.Unregister(b, s)
	}

	m.Register(a, "X")
	m.Register(b, "X")

	m.Signal(context.Background(), "X", nil)
	assert.Equal(t, []string{"a:X", "b:X"}, log)

	m.Signal(context.Background(), "X", nil)
	assert.Equal(t, []string{"a:X", "b:X"}, log, "no listeners left for the second broadcast")
}

func TestManager_ReentrantSignalIsQueued(t *testing.T) {
	var log []string
	m := signal.NewManager()

	first := &recorder{name: "first", log: &log}
	second := &recorder{name: "second", log: &log}
	follower := &recorder{name: "follower", log: &log}

	first.react = func(ctx context.Context, s string) {
		if s == "A" {
			m.Signal(ctx, "B", nil)
		}
	}

	m.Register(first, "A")
	m.Register(second, "A")
	m.Register(follower, "B")

	m.Signal(context.Background(), "A", nil)

	// "B" is emitted while "first" handles "A" but is only delivered after "second".
	assert.Equal(t, []string{"first:A", "second:A", "follower:B"}, log)
}

func TestManager_Observer(t *testing.T) {
	var seen []domain.Event
	var counts []int
	m := signal.NewManager(signal.WithObserver(func(_ context.Context, e domain.Event, n int) {
		seen = append(seen, e)
		counts = append(counts, n)
	}))
	var log []string
	m.Register(&recorder{name: "a", log: &log}, "X")

	m.Signal(context.Background(), "X", 42)
	m.Signal(context.Background(), "Nobody", nil)

	assert.Equal(t, []domain.Event{{Type: "X", Payload: 42}, {Type: "Nobody"}}, seen)
	assert.Equal(t, []int{1, 0}, counts)
}

func TestManager_PanicResetsDelivery(t *testing.T) {
	var log []string
	m := signal.NewManager()
	bomb := &recorder{name: "bomb", log: &log, react: func(context.Context, string) { panic("boom") }}
	m.Register(bomb, "X")

	assert.Panics(t, func() { m.Signal(context.Background(), "X", nil) })

	m.Unregister(bomb, "X")
	ok := &recorder{name: "ok", log: &log}
	m.Register(ok, "Y")
	m.Signal(context.Background(), "Y", nil)

	assert.Equal(t, []string{"bomb:X", "ok:Y"}, log)
}
