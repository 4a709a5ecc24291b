package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Allower 抽象限流后端：进程内令牌桶或 Redis 固定窗口
type Allower interface {
	Allow(ctx context.Context, key string) bool
}

// MemoryRateLimiter 进程内按键令牌桶限流器。
// window 内允许 max 个请求：补充速率 max/window，突发容量 max。
// 空闲键由后台清理协程回收。
type MemoryRateLimiter struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
}

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewMemoryRateLimiter 创建进程内限流器
func NewMemoryRateLimiter(window time.Duration, max int) *MemoryRateLimiter {
	return &MemoryRateLimiter{
		entries: make(map[string]*limiterEntry),
		limit:   rate.Limit(float64(max) / window.Seconds()),
		burst:   max,
		idleTTL: 15 * time.Minute,
	}
}

// Allow 判断 key 当前是否放行
func (l *MemoryRateLimiter) Allow(_ context.Context, key string) bool {
	now := time.Now()

	l.mu.Lock()
	ent, ok := l.entries[key]
	if !ok {
		ent = &limiterEntry{lim: rate.NewLimiter(l.limit, l.burst)}
		l.entries[key] = ent
	}
	ent.lastSeen = now
	l.mu.Unlock()

	return ent.lim.Allow()
}

// StartJanitor 启动空闲键清理协程，ctx 取消后退出
func (l *MemoryRateLimiter) StartJanitor(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Minute)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (l *MemoryRateLimiter) cleanup() {
	cutoff := time.Now().Add(-l.idleTTL)

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, ent := range l.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(l.entries, key)
		}
	}
}

// RateLimit 按客户端 IP 限流的 gin 中间件，超限返回 429
func RateLimit(limiter Allower, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !limiter.Allow(c.Request.Context(), ip) {
			log.Warn("rate limit exceeded", zap.String("ip", ip), zap.String("path", c.Request.URL.Path))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many requests. Please try again later.",
			})
			return
		}
		c.Next()
	}
}
