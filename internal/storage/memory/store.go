// Package memory 提供基于内存的存储实现，用于开发环境与测试。
// 进程退出后数据丢失，生产部署请使用 sql 存储。
package memory

import (
	"sync"

	"github.com/mohsenkhakbazan/mailto-linker/internal/domain"
	"github.com/mohsenkhakbazan/mailto-linker/internal/storage"
)

// Store 内存存储实现，单把读写锁保证操作之间的原子性
type Store struct {
	mu      sync.RWMutex
	links   map[string]*domain.Link
	ipDaily map[ipDayKey]int64
}

type ipDayKey struct {
	ip  string
	day string
}

// NewStore 创建内存存储
func NewStore() *Store {
	return &Store{
		links:   make(map[string]*domain.Link),
		ipDaily: make(map[ipDayKey]int64),
	}
}

// InsertLink 写入新链接，标识符已存在时返回 storage.ErrLinkExists
func (s *Store) InsertLink(link *domain.Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.links[link.ID]; ok {
		return storage.ErrLinkExists
	}

	stored := *link
	s.links[link.ID] = &stored
	return nil
}

// GetLink 按标识符读取链接
func (s *Store) GetLink(id string) (*domain.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	link, ok := s.links[id]
	if !ok {
		return nil, storage.ErrLinkNotFound
	}

	// 返回副本，避免调用方看到后续 touch 的中间状态
	out := *link
	return &out, nil
}

// TouchLink 命中计数 +1 并记录最后访问时间；行不存在时静默返回
func (s *Store) TouchLink(id string, now int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, ok := s.links[id]
	if !ok {
		return nil
	}
	link.Hits++
	link.LastAccessAt = &now
	return nil
}

// DeleteLink 按标识符删除链接
func (s *Store) DeleteLink(id string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.links[id]; !ok {
		return 0, nil
	}
	delete(s.links, id)
	return 1, nil
}

// DeleteExpiredLinks 删除所有已过期链接
func (s *Store) DeleteExpiredLinks(now int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for id, link := range s.links {
		if link.ExpiresAt < now {
			delete(s.links, id)
			removed++
		}
	}
	return removed, nil
}

// CountLinks 返回链接总数
func (s *Store) CountLinks() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.links)), nil
}

// GetIPDailyCount 读取某 IP 当日计数，不存在时返回 0
func (s *Store) GetIPDailyCount(ip, day string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ipDaily[ipDayKey{ip: ip, day: day}], nil
}

// IncrementIPDaily 原子递增某 IP 当日计数
func (s *Store) IncrementIPDaily(ip, day string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ipDaily[ipDayKey{ip: ip, day: day}]++
	return nil
}

// DeleteIPDailyBefore 删除早于 dayCutoff 的计数行
func (s *Store) DeleteIPDailyBefore(dayCutoff string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for key := range s.ipDaily {
		// day 为 YYYY-MM-DD，字典序即日期序
		if key.day < dayCutoff {
			delete(s.ipDaily, key)
			removed++
		}
	}
	return removed, nil
}

// Health 内存存储恒为健康
func (s *Store) Health() error {
	return nil
}

// Close 无资源可释放
func (s *Store) Close() error {
	return nil
}
