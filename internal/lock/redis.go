package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a guard shared by every process using the same key. The key
// expires after ttl so a crashed holder cannot block runs forever.
type Redis struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	logger *zap.Logger
	held   atomic.Bool
}

// NewRedis creates a Redis backed guard
func NewRedis(client *redis.Client, key string, ttl time.Duration, logger *zap.Logger) *Redis {
	return &Redis{client: client, key: key, ttl: ttl, logger: logger}
}

// TryAcquire sets the key with NX. Redis errors reject the attempt.
func (r *Redis) TryAcquire(ctx context.Context) (func(), bool) {
	token := uuid.NewString()

	ok, err := r.client.SetNX(ctx, r.key, token, r.ttl).Result()
	if err != nil {
		r.logger.Error("Acquiring run lock failed", zap.String("key", r.key), zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	r.held.Store(true)

	var once sync.Once
	return func() {
		once.Do(func() {
			r.held.Store(false)
			// the run context may already be done
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, r.client, []string{r.key}, token).Err(); err != nil {
				r.logger.Warn("Releasing run lock failed", zap.String("key", r.key), zap.Error(err))
			}
		})
	}, true
}

// Held reports whether this process holds the lock.
func (r *Redis) Held() bool {
	return r.held.Load()
}
