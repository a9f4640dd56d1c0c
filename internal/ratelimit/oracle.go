package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ratelimit"

// Oracle enforces a fixed-window count per (identity, action) in Redis so
// limits survive restarts and cannot be forged by a local client. Errors
// propagate; callers decide, and the admin gate fails closed.
type Oracle struct {
	rdb    *redis.Client
	window time.Duration
	max    int
}

func New(rdb *redis.Client, window time.Duration, max int) *Oracle {
	return &Oracle{rdb: rdb, window: window, max: max}
}

// Allow counts the call into the current window and reports whether the
// action may proceed. The TTL is armed only when the window opens; re-arming
// it per attempt would keep a busy identity denied indefinitely.
func (o *Oracle) Allow(ctx context.Context, identity, action string) (bool, error) {
	key := fmt.Sprintf("%s:%s:%s", keyPrefix, identity, action)

	pipe := o.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, o.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit %s/%s: %w", identity, action, err)
	}

	return incr.Val() <= int64(o.max), nil
}
