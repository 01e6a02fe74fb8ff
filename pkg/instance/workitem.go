package instance

import (
	"context"
	"maps"

	"github.com/aretw0/tendril/pkg/domain"
)

// workItemNode hands a WorkItem to the host and waits for its results.
type workItemNode struct {
	node
	item *domain.WorkItem
}

func (w *workItemNode) Trigger(ctx context.Context) error {
	params := make(map[string]any, len(w.def.Metadata))
	for k, v := range w.def.Metadata {
		if k != domain.MetaUniqueID {
			params[k] = v
		}
	}

	name := w.def.WorkName
	if name == "" {
		name = w.def.ID
	}

	w.pi.nextWorkItemID++
	w.item = &domain.WorkItem{
		ID:             w.pi.nextWorkItemID,
		NodeInstanceID: w.id,
		Name:           name,
		Parameters:     params,
		State:          domain.WorkItemPending,
	}
	w.pi.workItems[w.item.ID] = w
	return nil
}

func (w *workItemNode) Complete(ctx context.Context) error {
	return w.completeWith(ctx, nil)
}

// completeWith maps the results through the output associations and leaves the node.
func (w *workItemNode) completeWith(ctx context.Context, results map[string]any) error {
	if w.state != domain.NodeActive {
		return nil
	}
	w.item.Results = maps.Clone(results)
	w.item.State = domain.WorkItemCompleted
	delete(w.pi.workItems, w.item.ID)

	w.pi.applyOutputs(w.def.OutAssociations, results)
	return w.node.complete(ctx)
}

func (w *workItemNode) Cancel(ctx context.Context) {
	if w.state != domain.NodeActive {
		return
	}
	w.item.State = domain.WorkItemAborted
	delete(w.pi.workItems, w.item.ID)
	w.node.Cancel(ctx)
}

// workItem returns a copy of the item, for output mapping.
func (w *workItemNode) workItem() domain.WorkItem {
	cp := *w.item
	cp.Parameters = maps.Clone(w.item.Parameters)
	cp.Results = maps.Clone(w.item.Results)
	return cp
}
