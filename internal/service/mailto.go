package service

import (
	"strings"

	"github.com/mohsenkhakbazan/mailto-linker/internal/domain"
)

// BuildMailtoURL 把链接载荷渲染成 mailto: URI。
// 收件地址原样放在路径部分（逗号分隔），subject / body / cc 三个查询参数
// 各自独立百分号编码；URI 结构本身绝不整体编码。
// 正文换行先统一为 \n，再转成邮件客户端约定的 CRLF 后编码。
func BuildMailtoURL(payload *domain.MailtoPayload) string {
	to := strings.Join(payload.To, ",")
	cc := strings.Join(payload.Cc, ",")

	var parts []string

	if payload.Subject != "" {
		parts = append(parts, "subject="+encodeComponent(payload.Subject))
	}

	if payload.Body != "" {
		normalized := strings.ReplaceAll(payload.Body, "\r\n", "\n")
		normalized = strings.ReplaceAll(normalized, "\r", "\n")
		crlf := strings.ReplaceAll(normalized, "\n", "\r\n")
		parts = append(parts, "body="+encodeComponent(crlf))
	}

	if cc != "" {
		parts = append(parts, "cc="+encodeComponent(cc))
	}

	query := ""
	if len(parts) > 0 {
		query = "?" + strings.Join(parts, "&")
	}

	return "mailto:" + to + query
}

const upperhex = "0123456789ABCDEF"

// encodeComponent 按 JS encodeURIComponent 的保留集做百分号编码：
// 空格编码为 %20（url.QueryEscape 的 '+' 会被部分邮件客户端误读）。
func encodeComponent(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isComponentSafe(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&0x0F])
	}
	return b.String()
}

func isComponentSafe(c byte) bool {
	switch {
	case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}

// inAppBrowserMarkers 已知会拦截 mailto 跳转的内嵌浏览器 UA 特征
var inAppBrowserMarkers = []string{
	"whatsapp",
	"telegram",
	"instagram",
	"fbav",
	"fban",
	"fb_iab",
	"messenger",
	"line",
	"snapchat",
	"tiktok",
}

// IsInAppBrowser 判断 User-Agent 是否来自拦截 scheme 跳转的内嵌浏览器，
// 命中时走落地页而非 302 跳转
func IsInAppBrowser(userAgent string) bool {
	ua := strings.ToLower(userAgent)
	for _, marker := range inAppBrowserMarkers {
		if strings.Contains(ua, marker) {
			return true
		}
	}
	return false
}
