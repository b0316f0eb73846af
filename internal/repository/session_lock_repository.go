package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// releaseScript 只删除自己持有的锁
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript 续期自己的锁；锁已过期时重新占用
var extendScript = redis.NewScript(`
local cur = redis.call("GET", KEYS[1])
if cur == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
if not cur then
	redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
	return 1
end
return 0
`)

// SessionLockRepository 每个学生同一时间只允许一个作答会话（跨网关实例）
type SessionLockRepository struct {
	Redis *redis.Client
}

func NewSessionLockRepository(rdb *redis.Client) *SessionLockRepository {
	return &SessionLockRepository{Redis: rdb}
}

func sessionLockKey(learnerID uint) string {
	return fmt.Sprintf("lockdown:session:%d", learnerID)
}

// Acquire 返回 false 表示该学生已有进行中的会话
func (r *SessionLockRepository) Acquire(ctx context.Context, learnerID uint, sessionID string, ttl time.Duration) (bool, error) {
	return r.Redis.SetNX(ctx, sessionLockKey(learnerID), sessionID, ttl).Result()
}

func (r *SessionLockRepository) Release(ctx context.Context, learnerID uint, sessionID string) error {
	return releaseScript.Run(ctx, r.Redis, []string{sessionLockKey(learnerID)}, sessionID).Err()
}

func (r *SessionLockRepository) Extend(ctx context.Context, learnerID uint, sessionID string, ttl time.Duration) (bool, error) {
	n, err := extendScript.Run(ctx, r.Redis, []string{sessionLockKey(learnerID)}, sessionID, ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
