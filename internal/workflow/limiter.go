package workflow

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"phone-agent/pkg/utils"
)

// RedisLimiter caps concurrent outbound calls across processes using
// the shared Redis concurrency-cap scripts. The TTL keeps a crashed
// process from leaking slots forever.
type RedisLimiter struct {
	RDB   *redis.Client
	Key   string
	Limit int
	TTL   time.Duration
}

func NewRedisLimiter(rdb *redis.Client, limit int) *RedisLimiter {
	return &RedisLimiter{
		RDB:   rdb,
		Key:   "calls:active",
		Limit: limit,
		TTL:   15 * time.Minute,
	}
}

func (l *RedisLimiter) Acquire(ctx context.Context) (bool, error) {
	return utils.AcquireConcurrencyCap(ctx, l.RDB, l.Key, l.Limit, l.TTL)
}

func (l *RedisLimiter) Release(ctx context.Context) error {
	return utils.ReleaseConcurrencyCap(ctx, l.RDB, l.Key)
}
