package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/outline/pkg/ports"
	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"
)

var (
	// ErrLockAcquire is returned when Redis fails while acquiring a lock.
	ErrLockAcquire = errors.New("failed to acquire distributed lock")
	// ErrLockLost is returned on release when the lock expired and was
	// possibly taken by another holder. The other holder's key is left alone.
	ErrLockLost = errors.New("distributed lock expired before release")
)

// DefaultLockRetry is how often a blocked Lock polls Redis.
const DefaultLockRetry = 100 * time.Millisecond

// Locker serializes commits of one project across processes.
// Keys are "<prefix>lock:<project id>".
type Locker struct {
	client *backend.Client
	prefix string
	retry  time.Duration
}

// LockerOption configures a Locker.
type LockerOption func(*Locker)

// WithRetry sets the polling interval of a blocked Lock.
func WithRetry(d time.Duration) LockerOption {
	return func(l *Locker) {
		if d > 0 {
			l.retry = d
		}
	}
}

// NewLocker creates a locker sharing client with the store and history.
func NewLocker(client *backend.Client, prefix string, opts ...LockerOption) *Locker {
	l := &Locker{client: client, prefix: prefix, retry: DefaultLockRetry}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

var _ ports.DistributedLocker = (*Locker)(nil)

// Lock takes the project lock with SET NX PX, polling until it is free or ctx is done.
func (l *Locker) Lock(ctx context.Context, projectID string, ttl time.Duration) (ports.UnlockFunc, error) {
	key := l.prefix + "lock:" + projectID
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLockAcquire, err)
		}
		if ok {
			return l.release(key, token), nil
		}

		timer := time.NewTimer(l.retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (l *Locker) release(key, token string) ports.UnlockFunc {
	return func(ctx context.Context) error {
		n, err := releaseScript.Run(ctx, l.client, []string{key}, token).Int()
		if err != nil {
			return fmt.Errorf("release %s: %w", key, err)
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", ErrLockLost, key)
		}
		return nil
	}
}

// Deletes the key only while it still holds our token.
var releaseScript = backend.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)
