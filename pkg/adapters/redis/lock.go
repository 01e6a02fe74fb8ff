package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/tendril/pkg/ports"
	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"
)

// ErrLockLost is returned by an UnlockFunc when the lock expired and was taken by someone else.
var ErrLockLost = errors.New("distributed lock no longer held")

// unlockScript deletes the key only if it still holds our token.
var unlockScript = backend.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// Locker implements ports.DistributedLocker using Redis SET NX PX.
type Locker struct {
	client *backend.Client
	prefix string
	poll   time.Duration
}

// LockerOption configures a Locker.
type LockerOption func(*Locker)

// WithPollInterval sets how often a contended lock is retried.
func WithPollInterval(d time.Duration) LockerOption {
	return func(l *Locker) {
		l.poll = d
	}
}

// NewLocker creates a new Redis locker.
func NewLocker(client *backend.Client, prefix string, opts ...LockerOption) *Locker {
	l := &Locker{
		client: client,
		prefix: prefix,
		poll:   100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Lock acquires the lock for key, polling until it succeeds or ctx is done.
// Each acquisition carries a random token so only the holder can release it.
func (l *Locker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	lockKey := l.prefix + "lock:" + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis error acquiring lock: %w", err)
		}
		if ok {
			return func(ctx context.Context) error {
				released, err := unlockScript.Run(ctx, l.client, []string{lockKey}, token).Int()
				if err != nil {
					return fmt.Errorf("redis error releasing lock: %w", err)
				}
				if released == 0 {
					return ErrLockLost
				}
				return nil
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
