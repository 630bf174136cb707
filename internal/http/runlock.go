package http

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// defaultRunLockTTL caps how long a dead run can hold its lock.
const defaultRunLockTTL = 10 * time.Minute

// runLock serializes ETL runs per source selector via a redis SET NX lease,
// so two overlapping triggers cannot race on the same sink table. A nil
// runLock (no redis configured) grants every acquisition.
type runLock struct {
	rdb *redis.Client
	ttl time.Duration
}

func newRunLock(rdb *redis.Client, ttlSeconds int) *runLock {
	if rdb == nil {
		return nil
	}
	ttl := defaultRunLockTTL
	if ttlSeconds > 0 {
		ttl = time.Duration(ttlSeconds) * time.Second
	}
	return &runLock{rdb: rdb, ttl: ttl}
}

// Acquire attempts to take the per-source lock. It returns a release
// function and whether the lock was obtained. Redis failures fail open: the
// run proceeds unlocked rather than blocking the pipeline on the lock store.
func (l *runLock) Acquire(ctx context.Context, source string) (release func(), ok bool) {
	if l == nil {
		return func() {}, true
	}

	key := "menuetl:run:" + source
	set, err := l.rdb.SetNX(ctx, key, "1", l.ttl).Result()
	if err != nil {
		return func() {}, true
	}
	if !set {
		return func() {}, false
	}

	return func() {
		// Best-effort: the TTL reclaims the lock if the delete is lost.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = l.rdb.Del(ctx, key).Err()
	}, true
}
