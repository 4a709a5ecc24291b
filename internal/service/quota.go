package service

import (
	"fmt"

	"github.com/mohsenkhakbazan/mailto-linker/internal/storage"
)

// QuotaEnforcer 创建前的准入检查：全局行数硬上限 + 单 IP 每日上限。
// 两项检查都是无锁读，突发并发下允许轻微超额，这是接受的近似策略。
type QuotaEnforcer struct {
	links         storage.LinkRepository
	quota         storage.QuotaRepository
	maxTotalLinks int64
	ipDailyLimit  int64
}

// NewQuotaEnforcer 创建配额检查器
func NewQuotaEnforcer(links storage.LinkRepository, quota storage.QuotaRepository, maxTotalLinks, ipDailyLimit int64) *QuotaEnforcer {
	return &QuotaEnforcer{
		links:         links,
		quota:         quota,
		maxTotalLinks: maxTotalLinks,
		ipDailyLimit:  ipDailyLimit,
	}
}

// Admit 按顺序执行两项准入检查：先全局容量，后单 IP 日配额。
// 拒绝时分别返回 ErrCapacityExceeded 和 ErrDailyLimitReached。
func (q *QuotaEnforcer) Admit(ip, day string) error {
	total, err := q.links.CountLinks()
	if err != nil {
		return fmt.Errorf("failed to check total link count: %w", err)
	}
	if total >= q.maxTotalLinks {
		return ErrCapacityExceeded
	}

	used, err := q.quota.GetIPDailyCount(ip, day)
	if err != nil {
		return fmt.Errorf("failed to check ip daily count: %w", err)
	}
	if used >= q.ipDailyLimit {
		return ErrDailyLimitReached
	}

	return nil
}
