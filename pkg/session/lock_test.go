package session

import (
	"context"
	"testing"

	"github.com/aretw0/tendril/pkg/adapters/memory"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_LockLifecycle(t *testing.T) {
	def := &domain.ProcessDefinition{ID: "noop", Nodes: []*domain.NodeDefinition{
		{ID: "S", Kind: domain.KindStart},
	}}
	mgr, err := New([]*domain.ProcessDefinition{def}, &ports.Environment{Store: memory.NewStore()}, Config{})
	require.NoError(t, err)
	defer mgr.Close()
	ctx := context.Background()
	count := 1000

	for i := 0; i < count; i++ {
		pi, err := mgr.StartProcess(ctx, "noop", nil)
		require.NoError(t, err)
		require.NoError(t, mgr.Delete(ctx, pi.ID()))
	}

	assert.Empty(t, mgr.locks, "locks must be released once no operation holds them")
	assert.Empty(t, mgr.instances)
}
