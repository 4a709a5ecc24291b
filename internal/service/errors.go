package service

import "errors"

var (
	// ErrCapacityExceeded 全局行数达到硬上限，创建被拒绝
	ErrCapacityExceeded = errors.New("storage capacity limit reached")
	// ErrDailyLimitReached 单 IP 当日创建次数达到上限
	ErrDailyLimitReached = errors.New("daily creation limit reached")
	// ErrCreateExhausted 连续多次标识符冲突，创建失败（对外表现为通用服务错误）
	ErrCreateExhausted = errors.New("failed to allocate a unique link id")
	// ErrLinkExpired 链接已过期（与不存在区分，分别渲染 410 与 404）
	ErrLinkExpired = errors.New("link expired")
)

// ValidationError 承载创建请求的全部校验错误，一次性返回给调用方
type ValidationError struct {
	Details []string
}

func (e *ValidationError) Error() string {
	return "validation failed"
}
