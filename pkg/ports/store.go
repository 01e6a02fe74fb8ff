package ports

import (
	"context"

	"github.com/aretw0/tendril/pkg/domain"
)

// SnapshotStore receives process-instance snapshots after every session operation.
// The engine never reads its own state back from a store; restoring instance trees
// belongs to the persistence layer.
type SnapshotStore interface {
	// Save persists the snapshot under the given key (the process instance id).
	Save(ctx context.Context, key string, snapshot *domain.ProcessSnapshot) error

	// Load retrieves the snapshot stored under key.
	// Returns domain.ErrProcessNotFound if nothing is stored.
	Load(ctx context.Context, key string) (*domain.ProcessSnapshot, error)

	// Delete removes the snapshot stored under key.
	Delete(ctx context.Context, key string) error

	// List returns the stored keys.
	List(ctx context.Context) ([]string, error)
}
