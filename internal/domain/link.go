package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// MailtoPayload 描述一条短链背后的邮件草稿内容
type MailtoPayload struct {
	To      []string `json:"to"`      // 收件人列表（保持输入顺序）
	Cc      []string `json:"cc"`      // 抄送列表（保持输入顺序）
	Subject string   `json:"subject"` // 邮件主题
	Body    string   `json:"body"`    // 邮件正文
}

// Value 实现 driver.Valuer，payload 以 JSON 文本落库
func (p MailtoPayload) Value() (driver.Value, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan 实现 sql.Scanner
func (p *MailtoPayload) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	default:
		return fmt.Errorf("unsupported payload column type %T", value)
	}
}

// Link 是短链记录，时间戳统一使用 Unix 毫秒
type Link struct {
	ID           string        `json:"id" gorm:"primaryKey;size:16"`
	Payload      MailtoPayload `json:"payload" gorm:"type:text;not null"`
	CreatedAt    int64         `json:"createdAt" gorm:"not null;autoCreateTime:false"`
	ExpiresAt    int64         `json:"expiresAt" gorm:"not null;index"`
	Hits         int64         `json:"hits" gorm:"not null;default:0"`
	LastAccessAt *int64        `json:"lastAccessAt,omitempty"`
}

// Expired 判断链接在 now（毫秒）时刻是否已过期
func (l *Link) Expired(now int64) bool {
	return l.ExpiresAt < now
}

// IPDailyUsage 记录单个 IP 在某个 UTC 日历日内的创建次数，
// 复合主键 (ip, day)，day 格式为 YYYY-MM-DD
type IPDailyUsage struct {
	IP    string `gorm:"primaryKey;size:64"`
	Day   string `gorm:"primaryKey;size:10;index"`
	Count int64  `gorm:"not null"`
}

// TableName 指定 gorm 表名
func (IPDailyUsage) TableName() string {
	return "ip_daily"
}
