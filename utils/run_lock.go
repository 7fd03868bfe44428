package utils

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// DispatchLockKey guards collection dispatch runs, whichever trigger starts them
const DispatchLockKey = "lock:collection-dispatch"

// RunLock keeps a periodic job to one runner at a time across instances.
// It only avoids wasted work: step claiming in the store is what prevents double sends.
type RunLock interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// NoopRunLock always grants the lock
type NoopRunLock struct{}

func (NoopRunLock) Acquire(context.Context, string, time.Duration) (func(), bool, error) {
	return func() {}, true, nil
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisRunLock is a SET NX lock with owner-checked release
type RedisRunLock struct {
	Client *redis.Client
}

func (l RedisRunLock) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	token := uuid.New().String()
	ok, err := l.Client.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !ok {
		return func() {}, false, err
	}
	return func() {
		_ = releaseScript.Run(context.Background(), l.Client, []string{key}, token).Err()
	}, true, nil
}

// NewRunLock picks the redis lock when a client is configured
func NewRunLock(client *redis.Client) RunLock {
	if client == nil {
		return NoopRunLock{}
	}
	return RedisRunLock{Client: client}
}
