package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const lockKeyPrefix = "moderation_lock:"

// releaseScript deletes the lock only if we still own it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// JobLocker serializes jobs across instances.
type JobLocker interface {
	// TryLock returns ok=false when another holder owns name.
	TryLock(ctx context.Context, name string, ttl time.Duration) (release func(), ok bool, err error)
}

type RedisJobLock struct {
	redis *redis.Client
}

func NewRedisJobLock(client *redis.Client) *RedisJobLock {
	return &RedisJobLock{redis: client}
}

func (l *RedisJobLock) TryLock(ctx context.Context, name string, ttl time.Duration) (func(), bool, error) {
	key := lockKeyPrefix + name
	owner := uuid.NewString()
	ok, err := l.redis.SetNX(ctx, key, owner, ttl).Result()
	if err != nil || !ok {
		return func() {}, false, err
	}
	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.redis, []string{key}, owner).Err()
	}
	return release, true, nil
}
