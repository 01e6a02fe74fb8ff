package instance

import (
	"context"

	"github.com/aretw0/tendril/pkg/domain"
)

// compositeNode is a sub-process: it owns a container for its children and
// completes once none of them is pending.
type compositeNode struct {
	node
}

func (cn *compositeNode) Trigger(ctx context.Context) error {
	child := newContainer(cn.id, cn.def.Nodes)
	cn.pi.containers[cn.id] = child

	if err := cn.pi.dispatch(ctx, child, domain.StartNodes(cn.def.Nodes)); err != nil {
		return err
	}
	return cn.pi.checkCompletion(ctx, child)
}

func (cn *compositeNode) Complete(ctx context.Context) error {
	if cn.state != domain.NodeActive {
		return nil
	}
	cn.closeScope(ctx)
	return cn.node.complete(ctx)
}

func (cn *compositeNode) Cancel(ctx context.Context) {
	if cn.state != domain.NodeActive {
		return
	}
	cn.closeScope(ctx)
	cn.node.Cancel(ctx)
}

// closeScope cancels whatever is still attached inside the composite.
func (cn *compositeNode) closeScope(ctx context.Context) {
	child, ok := cn.pi.containers[cn.id]
	if !ok {
		return
	}
	for _, ni := range child.snapshot() {
		ni.Cancel(ctx)
	}
	delete(cn.pi.containers, cn.id)
}
