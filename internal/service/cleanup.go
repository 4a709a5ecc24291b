package service

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mohsenkhakbazan/mailto-linker/internal/monitoring"
	"github.com/mohsenkhakbazan/mailto-linker/internal/storage"
)

// retainQuotaDays 配额计数行保留窗口：今天加往前两天
const retainQuotaDays = 2

// CleanupScheduler 周期清理过期链接与陈旧配额计数行。
// 启动时立即执行一次，之后按固定间隔触发；单次失败只记日志，
// 不影响下一轮，也不做轮内重试。
type CleanupScheduler struct {
	store    storage.Store
	interval time.Duration
	log      *zap.Logger
	metrics  *monitoring.Metrics // 可为 nil

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewCleanupScheduler 创建清理调度器
func NewCleanupScheduler(store storage.Store, interval time.Duration, log *zap.Logger) *CleanupScheduler {
	return &CleanupScheduler{
		store:    store,
		interval: interval,
		log:      log,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// WithMetrics 挂上清理指标，返回自身便于链式调用
func (c *CleanupScheduler) WithMetrics(m *monitoring.Metrics) *CleanupScheduler {
	c.metrics = m
	return c
}

// Start 立即执行一次清理，然后启动后台定时循环
func (c *CleanupScheduler) Start() {
	c.RunOnce(time.Now())

	go func() {
		defer close(c.done)

		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.RunOnce(time.Now())
			case <-c.stop:
				return
			}
		}
	}()
}

// Stop 停止调度循环并等待退出，可安全重复调用
func (c *CleanupScheduler) Stop() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
	<-c.done
}

// RunOnce 执行一轮清理：删除过期链接 + 删除保留窗口之外的配额计数行
func (c *CleanupScheduler) RunOnce(now time.Time) {
	if c.metrics != nil {
		c.metrics.CleanupRunsTotal.Inc()
	}

	deleted, err := c.store.DeleteExpiredLinks(now.UnixMilli())
	if err != nil {
		c.log.Error("failed to delete expired links", zap.Error(err))
	} else if deleted > 0 {
		if c.metrics != nil {
			c.metrics.CleanupDeleted.Add(float64(deleted))
		}
		c.log.Info("deleted expired links", zap.Int64("deleted", deleted))
	}

	cutoff := QuotaRetentionCutoff(now)
	deletedIP, err := c.store.DeleteIPDailyBefore(cutoff)
	if err != nil {
		c.log.Error("failed to delete old ip daily rows", zap.Error(err))
	} else if deletedIP > 0 {
		if c.metrics != nil {
			c.metrics.CleanupDeleted.Add(float64(deletedIP))
		}
		c.log.Info("deleted old ip daily rows",
			zap.Int64("deleted", deletedIP),
			zap.String("cutoff", cutoff),
		)
	}
}

// QuotaRetentionCutoff 返回配额保留截止日（删除 day < cutoff 的行）：
// 当前 UTC 日历日往前推 retainQuotaDays 天
func QuotaRetentionCutoff(now time.Time) string {
	return UTCDay(now.UTC().AddDate(0, 0, -retainQuotaDays))
}
