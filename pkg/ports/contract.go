package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSnapshotStoreContract runs a suite of tests to verify that a SnapshotStore implementation
// adheres to the defined interface contract.
func RunSnapshotStoreContract(t *testing.T, store SnapshotStore) {
	ctx := context.Background()
	key := "contract-" + time.Now().Format("20060102150405")

	newSnapshot := func() *domain.ProcessSnapshot {
		return &domain.ProcessSnapshot{
			ID:               7,
			DefinitionID:     "order",
			State:            domain.ProcessActive,
			Variables:        map[string]any{"foo": "bar", "count": 42},
			CompletedNodeIDs: []string{"start"},
			NodeInstances: []domain.NodeSnapshot{
				{ID: 2, NodeID: "pay", UniqueID: "pay", Kind: domain.KindTask, State: domain.NodeActive},
			},
		}
	}

	t.Run("Save and Load", func(t *testing.T) {
		snap := newSnapshot()
		require.NoError(t, store.Save(ctx, key, snap), "Save should not return error")

		loaded, err := store.Load(ctx, key)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, snap.DefinitionID, loaded.DefinitionID)
		assert.Equal(t, domain.ProcessActive, loaded.State)
		assert.Equal(t, "bar", loaded.Variables["foo"])
		// JSON persistence may turn ints into float64; existence is enough here.
		assert.NotNil(t, loaded.Variables["count"])
		assert.Equal(t, []string{"start"}, loaded.CompletedNodeIDs)
		require.Len(t, loaded.NodeInstances, 1)
		assert.Equal(t, "pay", loaded.NodeInstances[0].NodeID)
	})

	t.Run("Load Is Isolated", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, key, newSnapshot()))
		loaded, err := store.Load(ctx, key)
		require.NoError(t, err)
		loaded.Variables["foo"] = "mutated"

		again, err := store.Load(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "bar", again.Variables["foo"])
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+key)
		assert.ErrorIs(t, err, domain.ErrProcessNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, key, newSnapshot()))
		require.NoError(t, store.Delete(ctx, key), "Delete should not return error")

		_, err := store.Load(ctx, key)
		assert.ErrorIs(t, err, domain.ErrProcessNotFound, "Load after Delete should return ErrProcessNotFound")
	})

	t.Run("List", func(t *testing.T) {
		k1, k2 := key+"-1", key+"-2"
		_ = store.Save(ctx, k1, newSnapshot())
		_ = store.Save(ctx, k2, newSnapshot())
		defer func() {
			_ = store.Delete(ctx, k1)
			_ = store.Delete(ctx, k2)
		}()

		keys, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, keys, k1)
		assert.Contains(t, keys, k2)
	})
}
