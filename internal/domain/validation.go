package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// emailRegex 校验 local@domain 形态，域名部分必须带点，与前端解析规则保持一致
var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// CreateRequest 是创建短链的入参（HTTP 层直接绑定 JSON）
type CreateRequest struct {
	To      []string `json:"to"`
	Cc      []string `json:"cc"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
	TTLDays int      `json:"ttlDays"`
}

// CreateLimits 汇总创建请求的各项上限，由配置层填充
type CreateLimits struct {
	MaxToRecipients int
	MaxCcRecipients int
	MaxSubjectChars int
	MaxBodyChars    int
	AllowedTTLDays  map[int]struct{}
}

// ValidatedCreate 是校验通过后的规范化结果
type ValidatedCreate struct {
	Payload MailtoPayload
	TTLDays int
}

// NormalizeEmailList 去除空白项并做大小写不敏感去重，保留首次出现的原始写法。
// 去重发生在数量上限检查之前。
func NormalizeEmailList(list []string) []string {
	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, len(list))
	for _, raw := range list {
		addr := strings.TrimSpace(raw)
		if addr == "" {
			continue
		}
		key := strings.ToLower(addr)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, addr)
	}
	return out
}

// ValidateCreateRequest 校验创建请求并返回规范化结果。
// 校验不会在第一个错误处停止，所有问题一次性收集返回。
func ValidateCreateRequest(req *CreateRequest, limits CreateLimits) (*ValidatedCreate, []string) {
	var errs []string

	to := NormalizeEmailList(req.To)
	cc := NormalizeEmailList(req.Cc)

	if len(to) == 0 {
		errs = append(errs, "Recipient is required.")
	}
	if len(to) > limits.MaxToRecipients {
		errs = append(errs, fmt.Sprintf("Max %d recipients in To.", limits.MaxToRecipients))
	}
	if len(cc) > limits.MaxCcRecipients {
		errs = append(errs, fmt.Sprintf("Max %d recipients in CC.", limits.MaxCcRecipients))
	}

	for _, addr := range to {
		if !emailRegex.MatchString(addr) {
			errs = append(errs, fmt.Sprintf("Invalid Recipient address in \"To\": %s", addr))
		}
	}
	for _, addr := range cc {
		if !emailRegex.MatchString(addr) {
			errs = append(errs, fmt.Sprintf("Invalid Recipient address in \"CC\": %s", addr))
		}
	}

	if len(req.Subject) > limits.MaxSubjectChars {
		errs = append(errs, fmt.Sprintf("Subject too long (max %d chars).", limits.MaxSubjectChars))
	}
	if len(req.Body) > limits.MaxBodyChars {
		errs = append(errs, fmt.Sprintf("Body too long (max %d chars).", limits.MaxBodyChars))
	}

	if _, ok := limits.AllowedTTLDays[req.TTLDays]; !ok {
		errs = append(errs, "Invalid expiration. Allowed: 7, 30, 90 days.")
	}

	if len(errs) > 0 {
		return nil, errs
	}

	return &ValidatedCreate{
		Payload: MailtoPayload{
			To:      to,
			Cc:      cc,
			Subject: req.Subject,
			Body:    req.Body,
		},
		TTLDays: req.TTLDays,
	}, nil
}
