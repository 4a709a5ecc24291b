package storage

import (
	"errors"

	"github.com/mohsenkhakbazan/mailto-linker/internal/domain"
)

var (
	// ErrLinkExists 主键冲突：标识符已被占用，调用方应换一个新标识符重试
	ErrLinkExists = errors.New("link id already exists")
	// ErrLinkNotFound 链接不存在
	ErrLinkNotFound = errors.New("link not found")
)

// LinkRepository 定义短链数据存取操作。
// 所有操作要求相互之间原子（单写或事务语义），时间参数为 Unix 毫秒。
type LinkRepository interface {
	// InsertLink 写入新链接，标识符冲突时返回 ErrLinkExists
	InsertLink(link *domain.Link) error
	// GetLink 按标识符读取，不存在时返回 ErrLinkNotFound
	GetLink(id string) (*domain.Link, error)
	// TouchLink 命中计数 +1 并更新最后访问时间；行已被并发删除时静默跳过
	TouchLink(id string, now int64) error
	// DeleteLink 按标识符删除，返回删除行数（0 或 1）
	DeleteLink(id string) (int64, error)
	// DeleteExpiredLinks 删除所有 expiresAt < now 的行，返回删除数量
	DeleteExpiredLinks(now int64) (int64, error)
	// CountLinks 返回链接总行数
	CountLinks() (int64, error)
}

// QuotaRepository 定义按 IP 按日的用量计数表操作，day 格式为 UTC 的 YYYY-MM-DD。
type QuotaRepository interface {
	// GetIPDailyCount 读取计数，行不存在时返回 0
	GetIPDailyCount(ip, day string) (int64, error)
	// IncrementIPDaily 原子 upsert：不存在则以 count=1 建行，否则 count+1。
	// 同一键并发递增时不得丢失更新。
	IncrementIPDaily(ip, day string) error
	// DeleteIPDailyBefore 删除 day < dayCutoff 的行，返回删除数量
	DeleteIPDailyBefore(dayCutoff string) (int64, error)
}

// Store 聚合短链服务需要的全部持久化操作。
type Store interface {
	LinkRepository
	QuotaRepository

	// Health 存储健康检查
	Health() error
	// Close 释放底层资源
	Close() error
}
