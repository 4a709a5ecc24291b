package service

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mohsenkhakbazan/mailto-linker/internal/domain"
	"github.com/mohsenkhakbazan/mailto-linker/internal/idgen"
	"github.com/mohsenkhakbazan/mailto-linker/internal/storage"
)

const (
	// millisPerDay 一天的毫秒数，TTL 换算用
	millisPerDay = int64(24 * 60 * 60 * 1000)
	// maxInsertAttempts 标识符冲突时的最大重试次数
	maxInsertAttempts = 5
)

// idShapeRegex 解析端接受的标识符形态，不匹配的直接按不存在处理，不查库
var idShapeRegex = regexp.MustCompile(`^[0-9A-Za-z]{6,12}$`)

// LinkService 封装短链的创建与解析编排。
// 它是存储变更操作的唯一调用方，保证 配额检查 -> 落库 -> 计数 的调用顺序。
type LinkService struct {
	store    storage.Store
	quota    *QuotaEnforcer
	limits   domain.CreateLimits
	baseURL  string
	idLength int
	log      *zap.Logger

	// generate 可在测试中替换
	generate func(length int) string
}

// NewLinkService 创建短链业务服务
func NewLinkService(store storage.Store, quota *QuotaEnforcer, limits domain.CreateLimits, baseURL string, idLength int, log *zap.Logger) *LinkService {
	return &LinkService{
		store:    store,
		quota:    quota,
		limits:   limits,
		baseURL:  strings.TrimRight(baseURL, "/"),
		idLength: idLength,
		log:      log,
		generate: idgen.Generate,
	}
}

// CreateResult 创建成功的返回值
type CreateResult struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Resolution 解析成功的返回值
type Resolution struct {
	MailtoURL string // 渲染好的 mailto 目标
	ShortURL  string // 短链回显，用于落地页展示
}

// UTCDay 返回 t 对应的 UTC 日历日，格式 YYYY-MM-DD
func UTCDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Create 创建短链：校验 -> 配额 -> 生成并落库（冲突重试）-> 记账。
//
// 失败类型：
//   - *ValidationError：入参不合法，Details 含全部错误
//   - ErrCapacityExceeded / ErrDailyLimitReached：配额拒绝
//   - ErrCreateExhausted：连续 5 次标识符冲突
//   - 其余为存储错误，原样向上传递
func (s *LinkService) Create(req *domain.CreateRequest, callerIP string, now time.Time) (*CreateResult, error) {
	validated, verrs := domain.ValidateCreateRequest(req, s.limits)
	if verrs != nil {
		return nil, &ValidationError{Details: verrs}
	}

	day := UTCDay(now)
	if err := s.quota.Admit(callerIP, day); err != nil {
		return nil, err
	}

	nowMs := now.UnixMilli()
	expiresAt := nowMs + int64(validated.TTLDays)*millisPerDay

	var id string
	inserted := false
	for attempt := 0; attempt < maxInsertAttempts; attempt++ {
		id = s.generate(s.idLength)
		err := s.store.InsertLink(&domain.Link{
			ID:        id,
			Payload:   validated.Payload,
			CreatedAt: nowMs,
			ExpiresAt: expiresAt,
		})
		if err == nil {
			inserted = true
			break
		}
		if !errors.Is(err, storage.ErrLinkExists) {
			return nil, fmt.Errorf("failed to persist link: %w", err)
		}
		s.log.Debug("link id collision, retrying",
			zap.String("id", id),
			zap.Int("attempt", attempt+1),
		)
	}
	if !inserted {
		s.log.Error("exhausted link id generation attempts",
			zap.Int("attempts", maxInsertAttempts),
			zap.Int("id_length", s.idLength),
		)
		return nil, ErrCreateExhausted
	}

	// 只有落库成功后才记账，避免把失败的尝试算进配额
	if err := s.store.IncrementIPDaily(callerIP, day); err != nil {
		s.log.Warn("failed to record ip daily usage",
			zap.String("ip", callerIP),
			zap.String("day", day),
			zap.Error(err),
		)
	}

	return &CreateResult{
		ID:  id,
		URL: s.baseURL + "/" + id,
	}, nil
}

// Resolve 解析短链：形态校验 -> 查库 -> 惰性过期删除 -> 命中计数 -> 渲染目标。
//
// 失败类型：
//   - storage.ErrLinkNotFound：形态非法或记录不存在
//   - ErrLinkExpired：已过期（行已被顺手删除）
func (s *LinkService) Resolve(id string, now time.Time) (*Resolution, error) {
	id = strings.TrimSpace(id)
	if !idShapeRegex.MatchString(id) {
		return nil, storage.ErrLinkNotFound
	}

	link, err := s.store.GetLink(id)
	if err != nil {
		if errors.Is(err, storage.ErrLinkNotFound) {
			return nil, storage.ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to load link: %w", err)
	}

	nowMs := now.UnixMilli()
	if link.Expired(nowMs) {
		// 惰性过期：解析时顺手物理删除
		if _, err := s.store.DeleteLink(id); err != nil {
			s.log.Warn("failed to delete expired link", zap.String("id", id), zap.Error(err))
		}
		return nil, ErrLinkExpired
	}

	if err := s.store.TouchLink(id, nowMs); err != nil {
		return nil, fmt.Errorf("failed to record link hit: %w", err)
	}

	return &Resolution{
		MailtoURL: BuildMailtoURL(&link.Payload),
		ShortURL:  s.baseURL + "/" + id,
	}, nil
}
