// Package sql 提供基于 gorm 的持久化存储，支持 sqlite（默认）、postgres 与 mysql。
package sql

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mohsenkhakbazan/mailto-linker/internal/domain"
	"github.com/mohsenkhakbazan/mailto-linker/internal/storage"
)

// Store SQL 数据库存储实现
type Store struct {
	db         *gorm.DB
	driverName string // "sqlite"、"postgres" 或 "mysql"
}

// Options 连接池参数
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewStore 创建 SQL 存储并自动迁移表结构。
// sqlite 的 DSN 是数据库文件路径，父目录不存在时自动创建，
// 并默认启用 WAL 与 synchronous=NORMAL 以改善并发读写。
func NewStore(driverName, dsn string, opts Options) (*Store, error) {
	var dialector gorm.Dialector

	switch driverName {
	case "sqlite":
		if err := ensureDirForFile(dsn); err != nil {
			return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
		}
		dialector = sqlite.Open(sqliteDSN(dsn))
	case "postgres":
		dialector = postgres.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s (supported: sqlite, postgres, mysql)", driverName)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access database handle: %w", err)
	}

	if driverName == "sqlite" {
		// sqlite 是单写引擎，限制为单连接避免 SQLITE_BUSY
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
		sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &Store{db: db, driverName: driverName}
	if err := store.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

func ensureDirForFile(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
}

func (s *Store) migrate() error {
	return s.db.AutoMigrate(
		&domain.Link{},
		&domain.IPDailyUsage{},
	)
}

// InsertLink 写入新链接，主键冲突时返回 storage.ErrLinkExists
func (s *Store) InsertLink(link *domain.Link) error {
	err := s.db.Create(link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return storage.ErrLinkExists
		}
		return fmt.Errorf("failed to insert link: %w", err)
	}
	return nil
}

// GetLink 按标识符读取链接
func (s *Store) GetLink(id string) (*domain.Link, error) {
	var link domain.Link
	err := s.db.First(&link, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to get link: %w", err)
	}
	return &link, nil
}

// TouchLink 单条 UPDATE 完成命中计数与最后访问时间更新；
// 行已被并发删除时影响 0 行，不视为错误
func (s *Store) TouchLink(id string, now int64) error {
	err := s.db.Model(&domain.Link{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"hits":           gorm.Expr("hits + 1"),
			"last_access_at": now,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to touch link: %w", err)
	}
	return nil
}

// DeleteLink 按标识符删除链接，返回删除行数
func (s *Store) DeleteLink(id string) (int64, error) {
	res := s.db.Delete(&domain.Link{}, "id = ?", id)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete link: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteExpiredLinks 删除所有已过期链接，expires_at 上有索引保证清理开销可控
func (s *Store) DeleteExpiredLinks(now int64) (int64, error) {
	res := s.db.Where("expires_at < ?", now).Delete(&domain.Link{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete expired links: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// CountLinks 返回链接总行数
func (s *Store) CountLinks() (int64, error) {
	var count int64
	if err := s.db.Model(&domain.Link{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count links: %w", err)
	}
	return count, nil
}

// GetIPDailyCount 读取某 IP 当日计数，行不存在时返回 0
func (s *Store) GetIPDailyCount(ip, day string) (int64, error) {
	var usage domain.IPDailyUsage
	err := s.db.First(&usage, "ip = ? AND day = ?", ip, day).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get ip daily count: %w", err)
	}
	return usage.Count, nil
}

// IncrementIPDaily 原子 upsert：INSERT ... ON CONFLICT DO UPDATE count = count + 1，
// 由数据库保证同键并发递增不丢更新
func (s *Store) IncrementIPDaily(ip, day string) error {
	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "ip"}, {Name: "day"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"count": gorm.Expr("count + 1"),
		}),
	}).Create(&domain.IPDailyUsage{IP: ip, Day: day, Count: 1}).Error
	if err != nil {
		return fmt.Errorf("failed to increment ip daily count: %w", err)
	}
	return nil
}

// DeleteIPDailyBefore 删除早于 dayCutoff 的计数行，day 上有索引
func (s *Store) DeleteIPDailyBefore(dayCutoff string) (int64, error) {
	res := s.db.Where("day < ?", dayCutoff).Delete(&domain.IPDailyUsage{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete old ip daily rows: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Health 检查数据库连接
func (s *Store) Health() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
