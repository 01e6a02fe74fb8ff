package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/tendril/pkg/adapters/redis"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := newClient(t)
	store := redis.NewFromClient(client)
	ports.RunSnapshotStoreContract(t, store)
}

func TestRedisStore_RoundTrip(t *testing.T) {
	_, client := newClient(t)
	store := redis.NewFromClient(client)
	ctx := context.Background()

	snap := &domain.ProcessSnapshot{
		ID:           3,
		DefinitionID: "order",
		State:        domain.ProcessActive,
		WorkItems: []domain.WorkItem{
			{ID: 1, NodeInstanceID: 4, Name: "Approve", State: domain.WorkItemPending},
		},
		ActivatingIDs: []string{"pay"},
	}
	require.NoError(t, store.Save(ctx, "3", snap))

	loaded, err := store.Load(ctx, "3")
	require.NoError(t, err)
	assert.Equal(t, snap, loaded)
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client, redis.WithTTL(1*time.Second))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "ttl", &domain.ProcessSnapshot{ID: 1, State: domain.ProcessActive}))

	keys, err := store.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, keys, "ttl")

	mr.FastForward(2 * time.Second)
	_, err = store.Load(ctx, "ttl")
	assert.ErrorIs(t, err, domain.ErrProcessNotFound)

	// The index is pruned against wall-clock time.
	time.Sleep(1200 * time.Millisecond)
	keys, err = store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestRedisStore_Prefix(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client, redis.WithPrefix("custom:app:"))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "42", &domain.ProcessSnapshot{ID: 42}))
	assert.True(t, mr.Exists("custom:app:42"), "Expected key with custom prefix to exist")
	assert.True(t, mr.Exists("custom:app:index"), "Expected index with custom prefix to exist")

	require.NoError(t, store.Delete(ctx, "42"))
	assert.False(t, mr.Exists("custom:app:42"))
}
