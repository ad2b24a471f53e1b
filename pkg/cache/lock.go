package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	appErrors "github.com/generyand/umdc-cec-system-sub001/pkg/errors"
)

const lockPrefix = "cec:lock:"

// releaseScript deletes the key only when the caller still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisLocker hands out expiring mutual-exclusion locks shared by every process
// pointing at the same Redis database.
type RedisLocker struct {
	client *redis.Client
}

// NewRedisLocker builds a locker. A nil client yields a locker that always grants.
func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

// Acquire takes the named lock for ttl. It returns appErrors.ErrLocked when another
// holder owns it. The returned release func is safe to call more than once.
func (l *RedisLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (func(), error) {
	if l == nil || l.client == nil {
		return func() {}, nil
	}
	key := lockPrefix + name
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrLocked, fmt.Sprintf("job %s is already running", name))
	}
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err()
	}, nil
}
