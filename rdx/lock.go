package rdx

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type Locker struct {
	c *redis.Client
}

func NewLocker(c *redis.Client) *Locker {
	return &Locker{c: c}
}

// TryLock takes key for ttl. The lock is never extended or released; it expires.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.c.SetNX(ctx, "lock:"+key, "1", ttl).Result()
}
