package signal

import (
	"context"
	"log/slog"
	"slices"
	"sort"
	"sync"

	"github.com/aretw0/tendril/internal/logging"
	"github.com/aretw0/tendril/pkg/domain"
)

// Listener receives the signals it registered for.
// Implementations must be comparable (pointer receivers).
type Listener interface {
	SignalEvent(ctx context.Context, signalType string, payload any)
}

// Observer is notified once per broadcast, before fan-out.
type Observer func(ctx context.Context, event domain.Event, listeners int)

// Manager is the listener registry of one process instance.
//
// Delivery is synchronous and follows registration order over a snapshot of the
// listeners, so listeners may unregister themselves (or others) while a broadcast
// is in progress. A Signal issued while a broadcast is running is queued and
// delivered after it, never interleaved.
type Manager struct {
	mu         sync.Mutex
	listeners  map[string][]Listener
	queue      []domain.Event
	delivering bool

	observer Observer
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

// WithObserver registers a callback invoked for every broadcast.
func WithObserver(o Observer) Option {
	return func(m *Manager) {
		m.observer = o
	}
}

// NewManager creates an empty registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		listeners: make(map[string][]Listener),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register subscribes a listener to a signal type.
// It returns false if the listener was already registered for that type.
func (m *Manager) Register(l Listener, signalType string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if slices.Contains(m.listeners[signalType], l) {
		return false
	}
	m.listeners[signalType] = append(m.listeners[signalType], l)
	return true
}

// Unregister removes a listener from a signal type.
// It returns false if the listener was not registered.
func (m *Manager) Unregister(l Listener, signalType string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.listeners[signalType]
	idx := slices.Index(current, l)
	if idx < 0 {
		return false
	}

	// Copy on write: snapshots taken by an in-flight broadcast stay untouched.
	next := make([]Listener, 0, len(current)-1)
	next = append(next, current[:idx]...)
	next = append(next, current[idx+1:]...)
	if len(next) == 0 {
		delete(m.listeners, signalType)
	} else {
		m.listeners[signalType] = next
	}
	return true
}

// Listeners returns the number of listeners registered for a signal type.
func (m *Manager) Listeners(signalType string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listeners[signalType])
}

// Types returns the signal types with at least one listener, sorted.
func (m *Manager) Types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	types := make([]string, 0, len(m.listeners))
	for t := range m.listeners {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Signal broadcasts an event to every listener registered for its type.
func (m *Manager) Signal(ctx context.Context, signalType string, payload any) {
	m.mu.Lock()
	m.queue = append(m.queue, domain.Event{Type: signalType, Payload: payload})
	if m.delivering {
		m.mu.Unlock()
		m.logger.DebugContext(ctx, "signal queued during broadcast", "signal", signalType)
		return
	}
	m.delivering = true
	m.mu.Unlock()

	m.drain(ctx)
}

func (m *Manager) drain(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			m.mu.Lock()
			m.delivering = false
			m.queue = nil
			m.mu.Unlock()
			panic(r)
		}
	}()

	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.delivering = false
			m.mu.Unlock()
			return
		}
		event := m.queue[0]
		m.queue = m.queue[1:]
		snapshot := m.listeners[event.Type]
		m.mu.Unlock()

		m.logger.DebugContext(ctx, "broadcasting signal", "signal", event.Type, "listeners", len(snapshot))
		if m.observer != nil {
			m.observer(ctx, event, len(snapshot))
		}
		for _, l := range snapshot {
			l.SignalEvent(ctx, event.Type, event.Payload)
		}
	}
}
