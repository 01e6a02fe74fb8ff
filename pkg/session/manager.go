package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/aretw0/tendril/internal/logging"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/instance"
	"github.com/aretw0/tendril/pkg/ports"
	"github.com/aretw0/tendril/pkg/timer"
	"github.com/google/uuid"
)

// Config tunes a Manager.
type Config struct {
	// LockTTL bounds how long a distributed lock is held if its holder dies.
	LockTTL time.Duration
}

// DefaultConfig returns the configuration used when fields are left zero.
func DefaultConfig() Config {
	return Config{LockTTL: 30 * time.Second}
}

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates process instances, ensuring safe concurrent operations.
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	id   string
	defs map[string]*domain.ProcessDefinition
	env  *ports.Environment
	cfg  Config

	mu        sync.Mutex            // Global lock for the maps below
	locks     map[string]*lockEntry // Map of active locks
	instances map[int64]*instance.ProcessInstance
	nextID    int64

	timers *timer.Manager
	hooks  domain.LifecycleHooks
	logger *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLogger configures a logger for the Manager and its instances.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithLifecycleHooks installs hooks on every process instance started by the Manager.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(m *Manager) {
		m.hooks = m.hooks.Merge(hooks)
	}
}

// New creates a session over the given definitions. Every definition is validated.
func New(defs []*domain.ProcessDefinition, env *ports.Environment, cfg Config, opts ...Option) (*Manager, error) {
	if env == nil {
		env = &ports.Environment{}
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = DefaultConfig().LockTTL
	}

	m := &Manager{
		id:        uuid.NewString(),
		defs:      make(map[string]*domain.ProcessDefinition, len(defs)),
		env:       env,
		cfg:       cfg,
		locks:     make(map[string]*lockEntry),
		instances: make(map[int64]*instance.ProcessInstance),
		logger:    logging.NewNop(), // Default to no-op
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("session", m.id)

	var errs []error
	for _, def := range defs {
		if _, dup := m.defs[def.ID]; dup {
			errs = append(errs, fmt.Errorf("definition %q registered twice", def.ID))
			continue
		}
		if err := def.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("definition %q: %w", def.ID, err))
			continue
		}
		m.defs[def.ID] = def
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	m.timers = timer.NewManager(m.dispatchTimer, timer.WithLogger(m.logger))
	return m, nil
}

// Open builds the environment from provider and creates the session.
func Open(ctx context.Context, defs []*domain.ProcessDefinition, provider ports.EnvironmentProvider, cfg Config, opts ...Option) (*Manager, error) {
	env, err := provider.NewEnvironment(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build environment: %w", err)
	}
	return New(defs, env, cfg, opts...)
}

// ID identifies this session in logs.
func (m *Manager) ID() string { return m.id }

// Definitions returns the registered definition ids, sorted.
func (m *Manager) Definitions() []string {
	ids := make([]string, 0, len(m.defs))
	for id := range m.defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Definition returns a registered definition.
func (m *Manager) Definition(id string) (*domain.ProcessDefinition, error) {
	def, ok := m.defs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrDefinitionNotFound, id)
	}
	return def, nil
}

// StartProcess creates and starts an instance of the definition.
func (m *Manager) StartProcess(ctx context.Context, definitionID string, vars map[string]any) (*instance.ProcessInstance, error) {
	def, err := m.Definition(definitionID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.nextID++
	id := m.nextID
	pi := instance.New(id, def,
		instance.WithTimerService(m.timers),
		instance.WithLifecycleHooks(m.hooks),
		instance.WithLogger(m.logger),
		instance.WithGlobals(m.env.Globals),
		instance.WithVariables(vars),
	)
	m.instances[id] = pi
	m.mu.Unlock()

	err = m.do(ctx, id, "start", func(ctx context.Context, pi *instance.ProcessInstance) error {
		return pi.Start(ctx)
	})
	return pi, err
}

// Instance returns a live process instance.
func (m *Manager) Instance(id int64) (*instance.ProcessInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pi, ok := m.instances[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", domain.ErrProcessNotFound, id)
	}
	return pi, nil
}

// Instances returns the ids of the instances held by the session, sorted.
func (m *Manager) Instances() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int64, 0, len(m.instances))
	for id := range m.instances {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Signal delivers a signal to one process instance.
func (m *Manager) Signal(ctx context.Context, id int64, signalType string, payload any) error {
	return m.do(ctx, id, "signal", func(ctx context.Context, pi *instance.ProcessInstance) error {
		return pi.SignalEvent(ctx, signalType, payload)
	})
}

// SignalAll delivers a signal to every active process instance.
func (m *Manager) SignalAll(ctx context.Context, signalType string, payload any) error {
	var errs []error
	for _, id := range m.Instances() {
		err := m.Signal(ctx, id, signalType, payload)
		if err != nil && !errors.Is(err, domain.ErrProcessNotActive) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// TriggerNode activates a node of the instance by unique id.
func (m *Manager) TriggerNode(ctx context.Context, id int64, uniqueID string) (int64, error) {
	var nodeInstanceID int64
	err := m.do(ctx, id, "trigger node", func(ctx context.Context, pi *instance.ProcessInstance) error {
		var err error
		nodeInstanceID, err = pi.TriggerNode(ctx, uniqueID)
		return err
	})
	return nodeInstanceID, err
}

// CompleteNodeInstance completes a waiting node instance.
func (m *Manager) CompleteNodeInstance(ctx context.Context, id, nodeInstanceID int64) error {
	return m.do(ctx, id, "complete node instance", func(ctx context.Context, pi *instance.ProcessInstance) error {
		return pi.CompleteNodeInstance(ctx, nodeInstanceID)
	})
}

// CompleteWorkItem hands results back to a work item of the instance.
func (m *Manager) CompleteWorkItem(ctx context.Context, id, workItemID int64, results map[string]any) error {
	return m.do(ctx, id, "complete work item", func(ctx context.Context, pi *instance.ProcessInstance) error {
		return pi.CompleteWorkItem(ctx, workItemID, results)
	})
}

// Abort cancels every node of the instance.
func (m *Manager) Abort(ctx context.Context, id int64) error {
	return m.do(ctx, id, "abort", func(ctx context.Context, pi *instance.ProcessInstance) error {
		pi.Abort(ctx)
		return nil
	})
}

// Snapshot returns the state of a live instance, or the stored snapshot when the
// instance is not held by this session.
func (m *Manager) Snapshot(ctx context.Context, id int64) (*domain.ProcessSnapshot, error) {
	if pi, err := m.Instance(id); err == nil {
		return pi.Snapshot(), nil
	}
	if m.env.Store == nil {
		return nil, fmt.Errorf("%w: %d", domain.ErrProcessNotFound, id)
	}
	return m.env.Store.Load(ctx, storeKey(id))
}

// Delete drops the instance from the session and from the store.
func (m *Manager) Delete(ctx context.Context, id int64) error {
	return m.WithLock(ctx, lockKey(id), func(ctx context.Context) error {
		m.mu.Lock()
		pi, ok := m.instances[id]
		delete(m.instances, id)
		m.mu.Unlock()

		if ok {
			pi.Abort(ctx)
		}
		if m.env.Store != nil {
			return m.env.Store.Delete(ctx, storeKey(id))
		}
		return nil
	})
}

// PendingTimers lists the timers not yet fired.
func (m *Manager) PendingTimers() []domain.TimerInstance {
	return m.timers.Pending()
}

// FireTimer fires a pending timer now, on the caller's goroutine.
func (m *Manager) FireTimer(ctx context.Context, timerID int64) bool {
	return m.timers.Trigger(ctx, timerID)
}

// Close stops the timers. Instances stay inspectable.
func (m *Manager) Close() {
	m.timers.Stop()
}

// dispatchTimer turns a timer firing into the correlated signal.
func (m *Manager) dispatchTimer(ctx context.Context, t domain.TimerInstance) {
	err := m.Signal(ctx, t.ProcessInstanceID, domain.TimerSignal(t.NodeInstanceID), t)
	if err != nil && !errors.Is(err, domain.ErrProcessNotActive) {
		m.logger.WarnContext(ctx, "timer dispatch failed",
			"timer_id", t.ID,
			"process_instance", t.ProcessInstanceID,
			"err", err,
		)
	}
}

// do runs fn under the instance lock and persists the resulting snapshot.
func (m *Manager) do(ctx context.Context, id int64, op string, fn func(context.Context, *instance.ProcessInstance) error) error {
	return m.WithLock(ctx, lockKey(id), func(ctx context.Context) error {
		pi, err := m.Instance(id)
		if err != nil {
			return err
		}

		opErr := fn(ctx, pi)
		if err := m.persist(ctx, pi); err != nil {
			opErr = errors.Join(opErr, err)
		}
		if opErr != nil {
			m.logger.ErrorContext(ctx, "process instance operation failed",
				"op", op,
				"process_instance", id,
				"err", opErr,
			)
			return fmt.Errorf("%s process %d: %w", op, id, opErr)
		}
		return nil
	})
}

func (m *Manager) persist(ctx context.Context, pi *instance.ProcessInstance) error {
	if m.env.Store == nil {
		return nil
	}
	if err := m.env.Store.Save(ctx, storeKey(pi.ID()), pi.Snapshot()); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(key) after unlocking.
func (m *Manager) acquire(key string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		entry = &lockEntry{}
		m.locks[key] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, key)
	}
}

// WithLock executes a function while holding the lock for key, locally and,
// when the environment has a locker, across replicas.
func (m *Manager) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	entry := m.acquire(key)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(key)
	}()

	if m.env.Locker != nil {
		unlock, err := m.env.Locker.Lock(ctx, key, m.cfg.LockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"key", key,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

func lockKey(id int64) string {
	return "process:" + strconv.FormatInt(id, 10)
}

func storeKey(id int64) string {
	return strconv.FormatInt(id, 10)
}
