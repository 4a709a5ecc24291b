// Package redis 提供可选的 Redis 固定窗口限流计数器。
// 多实例部署时用它替代进程内令牌桶，让限流在实例间共享。
package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Limiter 基于 INCR + EXPIRE 的固定窗口限流器
type Limiter struct {
	rdb    *goredis.Client
	window time.Duration
	max    int64
	log    *zap.Logger
}

// NewLimiter 创建 Redis 限流器并验证连接
func NewLimiter(addr, password string, db int, window time.Duration, max int, log *zap.Logger) (*Limiter, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Info("connected to redis for rate limiting",
		zap.String("address", addr),
		zap.Int("db", db),
	)

	return &Limiter{
		rdb:    rdb,
		window: window,
		max:    int64(max),
		log:    log,
	}, nil
}

// Allow 判断 key 在当前窗口内是否还可放行。
// Redis 不可用时放行并记录告警（限流只是防护层，不能成为单点）。
func (l *Limiter) Allow(ctx context.Context, key string) bool {
	redisKey := fmt.Sprintf("ratelimit:%s", key)

	pipe := l.rdb.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.ExpireNX(ctx, redisKey, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		l.log.Warn("redis rate limit check failed, allowing request", zap.Error(err))
		return true
	}

	return incr.Val() <= l.max
}

// Health 检查 Redis 连接
func (l *Limiter) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return l.rdb.Ping(ctx).Err()
}

// Close 关闭 Redis 连接
func (l *Limiter) Close() error {
	return l.rdb.Close()
}
