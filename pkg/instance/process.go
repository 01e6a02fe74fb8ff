package instance

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/aretw0/tendril/internal/logging"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
	"github.com/aretw0/tendril/pkg/signal"
)

// ProcessInstance is one execution of a ProcessDefinition.
//
// It is the root container of node instances, owns the signal registry used by
// its event nodes and keeps the activating/completed bookkeeping consulted by
// boundary events. Public methods are safe for concurrent use.
type ProcessInstance struct {
	mu sync.Mutex

	id    int64
	def   *domain.ProcessDefinition
	state domain.ProcessState

	// containers holds the root scope and one scope per active composite instance.
	containers map[int64]*container
	// index resolves any live node instance by id.
	index  map[int64]NodeInstance
	nextID int64

	activating   map[string]int
	completed    []string
	completedSet map[string]bool

	variables map[string]any
	globals   map[string]any

	workItems      map[int64]*workItemNode
	nextWorkItemID int64

	signals *signal.Manager
	timers  ports.TimerService
	hooks   domain.LifecycleHooks
	logger  *slog.Logger

	// err is the first structural failure raised while the lock was held.
	err error
}

// New creates a pending process instance. Call Start to trigger its start nodes.
func New(id int64, def *domain.ProcessDefinition, opts ...Option) *ProcessInstance {
	p := &ProcessInstance{
		id:           id,
		def:          def,
		state:        domain.ProcessPending,
		containers:   make(map[int64]*container),
		index:        make(map[int64]NodeInstance),
		activating:   make(map[string]int),
		completedSet: make(map[string]bool),
		variables:    make(map[string]any),
		workItems:    make(map[int64]*workItemNode),
		logger:       logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("process_instance", id, "definition", def.ID)
	p.containers[rootContainerID] = newContainer(rootContainerID, def.Nodes)
	p.signals = signal.NewManager(
		signal.WithLogger(p.logger),
		signal.WithObserver(p.observeSignal),
	)
	return p
}

func (p *ProcessInstance) ID() int64 { return p.id }

func (p *ProcessInstance) DefinitionID() string { return p.def.ID }

// Definition returns the definition this instance executes.
func (p *ProcessInstance) Definition() *domain.ProcessDefinition { return p.def }

func (p *ProcessInstance) State() domain.ProcessState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Start activates the instance and triggers the start nodes of the process.
func (p *ProcessInstance) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != domain.ProcessPending {
		return fmt.Errorf("start process %d: %w", p.id, domain.ErrProcessNotActive)
	}
	p.state = domain.ProcessActive
	p.logger.InfoContext(ctx, "process instance started")

	root := p.containers[rootContainerID]
	err := p.dispatch(ctx, root, domain.StartNodes(p.def.Nodes))
	if err == nil {
		err = p.checkCompletion(ctx, root)
	}
	return p.finish(ctx, err)
}

// SignalEvent delivers a signal to every listener registered for signalType.
// Signals raised while listeners run are queued and delivered after them.
func (p *ProcessInstance) SignalEvent(ctx context.Context, signalType string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != domain.ProcessActive {
		return fmt.Errorf("signal %q: %w", signalType, domain.ErrProcessNotActive)
	}
	p.signals.Signal(ctx, signalType, payload)
	return p.finish(ctx, nil)
}

// TriggerNode activates the node with the given unique id in its scope, as if a
// flow had reached it. Boundary events found this way have no host.
func (p *ProcessInstance) TriggerNode(ctx context.Context, uniqueID string) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != domain.ProcessActive {
		return 0, fmt.Errorf("trigger %q: %w", uniqueID, domain.ErrProcessNotActive)
	}
	def, ok := p.def.Lookup(uniqueID)
	if !ok {
		return 0, &domain.ConfigurationError{NodeID: uniqueID, Err: domain.ErrUnknownNode}
	}
	if err := p.checkDefinition(def); err != nil {
		return 0, err
	}
	c := p.scopeOf(def)
	if c == nil {
		return 0, fmt.Errorf("trigger %q: no active scope: %w", uniqueID, domain.ErrContainerNotFound)
	}

	ni, err := p.triggerNode(ctx, c, def)
	if err := p.finish(ctx, err); err != nil {
		return 0, err
	}
	return ni.ID(), nil
}

// CompleteNodeInstance completes a waiting node instance and follows its outgoing flow.
func (p *ProcessInstance) CompleteNodeInstance(ctx context.Context, id int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != domain.ProcessActive {
		return fmt.Errorf("complete node instance %d: %w", id, domain.ErrProcessNotActive)
	}
	ni, ok := p.index[id]
	if !ok {
		return fmt.Errorf("complete node instance %d: %w", id, domain.ErrNodeInstanceNotFound)
	}
	return p.finish(ctx, ni.Complete(ctx))
}

// CancelNodeInstance cancels a node instance and everything attached to it.
func (p *ProcessInstance) CancelNodeInstance(ctx context.Context, id int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != domain.ProcessActive {
		return fmt.Errorf("cancel node instance %d: %w", id, domain.ErrProcessNotActive)
	}
	ni, ok := p.index[id]
	if !ok {
		return fmt.Errorf("cancel node instance %d: %w", id, domain.ErrNodeInstanceNotFound)
	}
	ni.Cancel(ctx)
	c, err := p.container(ni.ContainerID())
	if err == nil {
		err = p.checkCompletion(ctx, c)
	} else if errors.Is(err, domain.ErrContainerNotFound) {
		// The scope was closed by the cancellation itself.
		err = nil
	}
	return p.finish(ctx, err)
}

// CompleteWorkItem hands results back to the node waiting on the work item.
func (p *ProcessInstance) CompleteWorkItem(ctx context.Context, workItemID int64, results map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != domain.ProcessActive {
		return fmt.Errorf("complete work item %d: %w", workItemID, domain.ErrProcessNotActive)
	}
	w, ok := p.workItems[workItemID]
	if !ok {
		return fmt.Errorf("complete work item %d: %w", workItemID, domain.ErrWorkItemNotFound)
	}
	return p.finish(ctx, w.completeWith(ctx, results))
}

// Abort cancels every active node instance. Aborting a finished instance is a no-op.
func (p *ProcessInstance) Abort(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.abort(ctx)
}

// NodeInstance returns a live node instance at any depth.
func (p *ProcessInstance) NodeInstance(id int64) (NodeInstance, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ni, ok := p.index[id]
	return ni, ok
}

// NodeInstances returns the live instances held directly by the process, in
// activation order.
func (p *ProcessInstance) NodeInstances() []NodeInstance {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.containers[rootContainerID].snapshot()
}

// Walk visits every live node instance depth-first, children of a composite
// right after it. visit must not call back into the instance.
func (p *ProcessInstance) Walk(visit func(NodeInstance) bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.walk(p.containers[rootContainerID], visit)
}

// Variable resolves a process variable, falling back to the environment globals.
func (p *ProcessInstance) Variable(name string) (any, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if v, ok := p.variables[name]; ok {
		return v, true
	}
	v, ok := p.globals[name]
	return v, ok
}

func (p *ProcessInstance) SetVariable(name string, value any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.variables[name] = value
}

// Variables returns a copy of the process variables, without globals.
func (p *ProcessInstance) Variables() map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return maps.Clone(p.variables)
}

// IsNodeActivating reports whether an instance of the node is between creation
// and its own trigger.
func (p *ProcessInstance) IsNodeActivating(uniqueID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isActivating(uniqueID)
}

// IsNodeCompleted reports whether an instance of the node has completed normally.
func (p *ProcessInstance) IsNodeCompleted(uniqueID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isCompleted(uniqueID)
}

// CompletedNodeIDs returns the unique ids of completed nodes in completion order.
func (p *ProcessInstance) CompletedNodeIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.completed)
}

// WorkItems returns the pending work items ordered by id.
func (p *ProcessInstance) WorkItems() []domain.WorkItem {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pendingWorkItems()
}

// Listeners returns how many listeners are registered for signalType.
func (p *ProcessInstance) Listeners(signalType string) int {
	return p.signals.Listeners(signalType)
}

// Snapshot captures the observable state of the instance.
func (p *ProcessInstance) Snapshot() *domain.ProcessSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap := &domain.ProcessSnapshot{
		ID:               p.id,
		DefinitionID:     p.def.ID,
		State:            p.state,
		Variables:        maps.Clone(p.variables),
		CompletedNodeIDs: slices.Clone(p.completed),
		WorkItems:        p.pendingWorkItems(),
	}
	for uid, n := range p.activating {
		if n > 0 {
			snap.ActivatingIDs = append(snap.ActivatingIDs, uid)
		}
	}
	slices.Sort(snap.ActivatingIDs)

	p.walk(p.containers[rootContainerID], func(ni NodeInstance) bool {
		snap.NodeInstances = append(snap.NodeInstances, domain.NodeSnapshot{
			ID:          ni.ID(),
			NodeID:      ni.Node().ID,
			UniqueID:    ni.Node().UniqueID(),
			Kind:        ni.Node().Kind,
			State:       ni.State(),
			ContainerID: ni.ContainerID(),
		})
		return true
	})
	return snap
}

// --- internal bookkeeping, called with the lock held ---

// triggerNode creates an instance of def in c, creates and triggers the boundary
// events attached to it while it is activating, then triggers the instance itself.
func (p *ProcessInstance) triggerNode(ctx context.Context, c *container, def *domain.NodeDefinition) (NodeInstance, error) {
	uid := def.UniqueID()
	ni, err := p.newNodeInstance(def, c.id, 0)
	if err != nil {
		return nil, err
	}
	p.markActivating(uid)
	p.attach(c, ni)

	for _, bdef := range domain.BoundariesOf(c.nodes, uid) {
		b, err := p.newNodeInstance(bdef, c.id, ni.ID())
		if err != nil {
			p.clearActivating(uid)
			return nil, err
		}
		p.attach(c, b)
		p.emitNode(ctx, domain.EventNodeTriggered, b)
		if err := b.Trigger(ctx); err != nil {
			p.clearActivating(uid)
			return nil, err
		}
	}

	p.clearActivating(uid)
	p.emitNode(ctx, domain.EventNodeTriggered, ni)
	p.logger.DebugContext(ctx, "node triggered", "node", uid, "node_instance", ni.ID())
	return ni, ni.Trigger(ctx)
}

// dispatch triggers defs in order. The scope cannot complete until all of them
// are triggered.
func (p *ProcessInstance) dispatch(ctx context.Context, c *container, defs []*domain.NodeDefinition) error {
	c.busy++
	defer func() { c.busy-- }()

	for _, def := range defs {
		if _, err := p.triggerNode(ctx, c, def); err != nil {
			return err
		}
	}
	return nil
}

// newNodeInstance selects the runtime behavior from the definition's kind.
func (p *ProcessInstance) newNodeInstance(def *domain.NodeDefinition, containerID, host int64) (NodeInstance, error) {
	if err := p.checkDefinition(def); err != nil {
		return nil, err
	}

	p.nextID++
	base := node{
		id:          p.nextID,
		def:         def,
		pi:          p,
		containerID: containerID,
		state:       domain.NodeActive,
	}
	switch def.Kind {
	case domain.KindWorkItem:
		return &workItemNode{node: base}, nil
	case domain.KindComposite:
		return &compositeNode{node: base}, nil
	case domain.KindEvent:
		return &eventNode{node: base}, nil
	case domain.KindBoundaryEvent:
		return &boundaryEventNode{eventNode: eventNode{node: base}, host: host}, nil
	default:
		return &base, nil
	}
}

// checkDefinition rejects definitions that cannot be instantiated.
func (p *ProcessInstance) checkDefinition(def *domain.NodeDefinition) error {
	uid := def.UniqueID()
	switch def.Kind {
	case domain.KindStart, domain.KindEnd, domain.KindTask, domain.KindWorkItem, domain.KindComposite:
		return nil
	case domain.KindBoundaryEvent:
		if _, ok := p.def.Lookup(def.AttachedTo); def.AttachedTo == "" || !ok {
			return &domain.ConfigurationError{NodeID: uid, Err: domain.ErrUnknownAttachedNode}
		}
		fallthrough
	case domain.KindEvent:
		if def.EventType == "" {
			return &domain.ConfigurationError{NodeID: uid, Err: domain.ErrMissingEventType}
		}
		return nil
	}
	return &domain.ConfigurationError{NodeID: uid, Err: fmt.Errorf("%w: %q", domain.ErrUnsupportedKind, def.Kind)}
}

// scopeOf finds the live container whose definitions include def.
func (p *ProcessInstance) scopeOf(def *domain.NodeDefinition) *container {
	root := p.containers[rootContainerID]
	if slices.Contains(root.nodes, def) {
		return root
	}
	var found *container
	p.walk(root, func(ni NodeInstance) bool {
		c, ok := p.containers[ni.ID()]
		if ok && slices.Contains(c.nodes, def) {
			found = c
			return false
		}
		return true
	})
	return found
}

func (p *ProcessInstance) container(id int64) (*container, error) {
	c, ok := p.containers[id]
	if !ok {
		return nil, fmt.Errorf("container %d: %w", id, domain.ErrContainerNotFound)
	}
	return c, nil
}

func (p *ProcessInstance) attach(c *container, ni NodeInstance) {
	c.add(ni)
	p.index[ni.ID()] = ni
}

func (p *ProcessInstance) detach(c *container, id int64) {
	c.remove(id)
	delete(p.index, id)
}

// attachment is implemented by instances bound to a host instance.
type attachment interface {
	hostID() int64
}

// cancelAttached cancels the boundary events bound to hostID. Compensation
// boundaries survive a normal completion of the host unless all is set.
func (p *ProcessInstance) cancelAttached(ctx context.Context, c *container, hostID int64, all bool) {
	for _, ni := range c.snapshot() {
		a, ok := ni.(attachment)
		if !ok || a.hostID() != hostID {
			continue
		}
		if !all && ni.Node().IsCompensation() {
			continue
		}
		ni.Cancel(ctx)
	}
}

// checkCompletion completes the owner of c once nothing in it is pending.
// Remaining boundary events are cancelled when the process itself completes.
func (p *ProcessInstance) checkCompletion(ctx context.Context, c *container) error {
	if p.state != domain.ProcessActive || c.busy > 0 || c.pending() > 0 {
		return nil
	}

	if c.id != rootContainerID {
		owner, ok := p.index[c.id]
		if !ok || owner.State() != domain.NodeActive {
			return nil
		}
		return owner.Complete(ctx)
	}

	for _, ni := range c.snapshot() {
		ni.Cancel(ctx)
	}
	p.state = domain.ProcessCompleted
	p.logger.InfoContext(ctx, "process instance completed", "completed_nodes", len(p.completed))
	return nil
}

func (p *ProcessInstance) markActivating(uniqueID string) {
	p.activating[uniqueID]++
}

func (p *ProcessInstance) clearActivating(uniqueID string) {
	if p.activating[uniqueID] <= 1 {
		delete(p.activating, uniqueID)
		return
	}
	p.activating[uniqueID]--
}

// markCompleted moves the node from activating to completed. A node may be
// activated again after it completed (merges, loops), so the sets are kept
// disjoint where they are read: an activating id never counts as completed.
func (p *ProcessInstance) markCompleted(uniqueID string) {
	delete(p.activating, uniqueID)
	if p.completedSet[uniqueID] {
		return
	}
	p.completedSet[uniqueID] = true
	p.completed = append(p.completed, uniqueID)
}

func (p *ProcessInstance) isActivating(uniqueID string) bool {
	return p.activating[uniqueID] > 0
}

func (p *ProcessInstance) isCompleted(uniqueID string) bool {
	return p.completedSet[uniqueID] && !p.isActivating(uniqueID)
}

// applyOutputs assigns data values to variables. An association without a
// target writes to a variable named after its source.
func (p *ProcessInstance) applyOutputs(assocs []domain.DataAssociation, data map[string]any) {
	for _, a := range assocs {
		if len(a.Sources) == 0 {
			continue
		}
		v, ok := data[a.Sources[0]]
		if !ok {
			continue
		}
		target := a.Target
		if target == "" {
			target = a.Sources[0]
		}
		p.variables[target] = v
	}
}

// workItemOf returns the work item of a work-item host.
func (p *ProcessInstance) workItemOf(ni NodeInstance) (domain.WorkItem, bool) {
	if ni == nil || ni.Node().Kind != domain.KindWorkItem {
		return domain.WorkItem{}, false
	}
	w, ok := ni.(*workItemNode)
	if !ok || w.item == nil {
		return domain.WorkItem{}, false
	}
	return w.workItem(), true
}

func (p *ProcessInstance) pendingWorkItems() []domain.WorkItem {
	out := make([]domain.WorkItem, 0, len(p.workItems))
	for _, w := range p.workItems {
		out = append(out, w.workItem())
	}
	slices.SortFunc(out, func(a, b domain.WorkItem) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func (p *ProcessInstance) emitNode(ctx context.Context, t domain.EventType, ni NodeInstance) {
	var hook func(context.Context, *domain.NodeEvent)
	switch t {
	case domain.EventNodeTriggered:
		hook = p.hooks.OnNodeTriggered
	case domain.EventNodeCompleted:
		hook = p.hooks.OnNodeCompleted
	case domain.EventNodeCancelled:
		hook = p.hooks.OnNodeCancelled
	}
	if hook == nil {
		return
	}
	hook(ctx, &domain.NodeEvent{
		EventBase: domain.EventBase{
			Timestamp:         time.Now(),
			Type:              t,
			ProcessInstanceID: p.id,
		},
		NodeInstanceID: ni.ID(),
		NodeID:         ni.Node().UniqueID(),
		NodeKind:       ni.Node().Kind,
	})
}

func (p *ProcessInstance) observeSignal(ctx context.Context, ev domain.Event, listeners int) {
	if p.hooks.OnSignal == nil {
		return
	}
	p.hooks.OnSignal(ctx, &domain.SignalEvent{
		EventBase: domain.EventBase{
			Timestamp:         time.Now(),
			Type:              domain.EventSignal,
			ProcessInstanceID: p.id,
		},
		SignalType: ev.Type,
		Listeners:  listeners,
	})
}

// fail records a structural error raised where it cannot be returned, such as
// inside a signal listener. The public entry point reports it.
func (p *ProcessInstance) fail(ctx context.Context, err error) {
	if err == nil {
		return
	}
	p.logger.ErrorContext(ctx, "node instance failure", "err", err)
	if p.err == nil {
		p.err = err
	}
}

// finish closes a public operation. A structural error leaves the instance in an
// unknown shape, so it is aborted before the error is returned.
func (p *ProcessInstance) finish(ctx context.Context, err error) error {
	if err == nil {
		err = p.err
	}
	if err == nil {
		return nil
	}
	p.logger.ErrorContext(ctx, "process instance aborted on error", "err", err)
	p.abort(ctx)
	return err
}

func (p *ProcessInstance) abort(ctx context.Context) {
	if p.state != domain.ProcessActive && p.state != domain.ProcessPending {
		return
	}
	for _, ni := range p.containers[rootContainerID].snapshot() {
		ni.Cancel(ctx)
	}
	p.state = domain.ProcessAborted
	p.logger.InfoContext(ctx, "process instance aborted")
}
