package timer

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/tendril/internal/logging"
	"github.com/aretw0/tendril/pkg/domain"
)

// Dispatcher receives due timers. It is the serialization boundary: implementations
// must hand the firing to the owning process instance's execution line (e.g. take
// the instance lock) instead of touching node instances from the timer goroutine.
type Dispatcher func(ctx context.Context, timer domain.TimerInstance)

type entry struct {
	timer domain.TimerInstance
	t     *time.Timer
}

// Manager schedules timers and hands due ones to a Dispatcher. Firings for
// different process instances may be dispatched concurrently; ordering within an
// instance is the Dispatcher's concern. It implements ports.TimerService.
type Manager struct {
	mu      sync.Mutex
	nextID  int64
	pending map[int64]*entry
	stopped bool

	dispatch Dispatcher
	logger   *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a timer manager delivering firings to dispatch.
func NewManager(dispatch Dispatcher, opts ...Option) *Manager {
	m := &Manager{
		pending:  make(map[int64]*entry),
		dispatch: dispatch,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Schedule registers a timer and returns its id, or 0 once the manager is stopped.
func (m *Manager) Schedule(timer domain.TimerInstance) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return 0
	}
	m.nextID++
	id := m.nextID
	timer.ID = id

	e := &entry{timer: timer}
	e.t = time.AfterFunc(timer.Delay, func() {
		m.fire(context.Background(), id)
	})
	m.pending[id] = e

	m.logger.Debug("timer scheduled",
		"timer_id", id,
		"process_instance_id", timer.ProcessInstanceID,
		"node_instance_id", timer.NodeInstanceID,
		"delay", timer.Delay,
	)
	return id
}

// Cancel removes a pending timer.
func (m *Manager) Cancel(timerID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.pending[timerID]
	if !ok {
		return false
	}
	delete(m.pending, timerID)
	e.t.Stop()
	return true
}

// Trigger fires a pending timer immediately, on the caller's goroutine.
// It returns false if the timer is not pending.
func (m *Manager) Trigger(ctx context.Context, timerID int64) bool {
	return m.fire(ctx, timerID)
}

// Pending returns the timers not yet fired, ordered by id.
func (m *Manager) Pending() []domain.TimerInstance {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.TimerInstance, 0, len(m.pending))
	for _, e := range m.pending {
		out = append(out, e.timer)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Stop cancels every pending timer and refuses new ones.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopped = true
	for id, e := range m.pending {
		e.t.Stop()
		delete(m.pending, id)
	}
}

func (m *Manager) fire(ctx context.Context, timerID int64) bool {
	m.mu.Lock()
	e, ok := m.pending[timerID]
	if ok {
		delete(m.pending, timerID)
		e.t.Stop()
	}
	m.mu.Unlock()
	if !ok {
		return false
	}

	m.logger.DebugContext(ctx, "timer fired",
		"timer_id", timerID,
		"process_instance_id", e.timer.ProcessInstanceID,
		"node_instance_id", e.timer.NodeInstanceID,
	)
	if m.dispatch != nil {
		m.dispatch(ctx, e.timer)
	}
	return true
}
