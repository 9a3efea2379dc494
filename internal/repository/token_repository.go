package repository

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// TokenBlacklist 记录已登出的 token（按 jti），直到其自然过期。
type TokenBlacklist interface {
	Add(ctx context.Context, jti string, ttl time.Duration) error
	Contains(ctx context.Context, jti string) (bool, error)
}

type redisTokenBlacklist struct {
	rdb *redis.Client
}

// NewTokenBlacklist 创建基于 Redis 的黑名单。
func NewTokenBlacklist(rdb *redis.Client) TokenBlacklist {
	return &redisTokenBlacklist{rdb: rdb}
}

func blacklistKey(jti string) string {
	return "blacklist:" + jti
}

func (b *redisTokenBlacklist) Add(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return b.rdb.Set(ctx, blacklistKey(jti), "1", ttl).Err()
}

func (b *redisTokenBlacklist) Contains(ctx context.Context, jti string) (bool, error) {
	n, err := b.rdb.Exists(ctx, blacklistKey(jti)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
