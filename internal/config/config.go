package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/mohsenkhakbazan/mailto-linker/internal/domain"
)

// ServerConfig 定义 HTTP 服务器的监听配置参数
type ServerConfig struct {
	Host string // 监听地址，默认 "0.0.0.0"
	Port int    // 监听端口，默认 8080
}

// LinkConfig 定义短链业务的核心配置
type LinkConfig struct {
	PublicBaseURL  string           // 对外基础 URL，用于拼接完整短链，尾部斜杠会被去除
	IDLength       int              // 标识符长度，默认 8，解析端接受 6-12
	AllowedTTLDays map[int]struct{} // 允许的 TTL 天数集合
	MaxTotalLinks  int64            // 全局行数硬上限，防止磁盘滥用
	IPDailyLimit   int64            // 单 IP 每 UTC 日创建上限
}

// LimitsConfig 定义创建请求的字段上限
type LimitsConfig struct {
	MaxSubjectChars int   // 主题最大长度，默认 200
	MaxBodyChars    int   // 正文最大长度，默认 10000
	MaxToRecipients int   // To 收件人上限，默认 100
	MaxCcRecipients int   // CC 收件人上限，默认 100
	MaxBodyBytes    int64 // 请求体大小上限，默认 64KiB
}

// RateLimitConfig 定义 /api 入口的进程级限流参数
type RateLimitConfig struct {
	Window time.Duration // 限流窗口，默认 1m
	Max    int           // 窗口内最大请求数，默认 30
}

// DatabaseConfig 定义数据库连接配置
type DatabaseConfig struct {
	Driver          string        // "sqlite"（默认）、"postgres" 或 "mysql"、"memory"（仅开发）
	DSN             string        // sqlite 为文件路径，其余为连接串
	MaxOpenConns    int           // 最大打开连接数，默认 25（sqlite 固定单连接）
	MaxIdleConns    int           // 最大空闲连接数，默认 5
	ConnMaxLifetime time.Duration // 连接最大生命周期，默认 5 分钟
}

// RedisConfig 定义可选的 Redis 限流后端，地址为空时禁用
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// CleanupConfig 定义过期清理任务配置
type CleanupConfig struct {
	Interval time.Duration // 清理周期，默认 24h
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // debug, info, warn, error
	Development bool   // 开发模式：彩色控制台输出
	File        string // 日志文件路径，留空仅输出到 stdout
}

// CORSConfig 定义跨域配置
type CORSConfig struct {
	AllowedOrigins []string
}

// Config 是系统核心配置的根结构体
type Config struct {
	Server    ServerConfig
	Links     LinkConfig
	Limits    LimitsConfig
	RateLimit RateLimitConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Cleanup   CleanupConfig
	Log       LogConfig
	CORS      CORSConfig
	APIKey    string // 配置后 POST /api/create 需携带 X-API-Key，留空关闭
	WebDir    string // 静态前端目录，留空关闭静态服务
}

// Load 从环境变量和 .env 文件加载配置。
//
// 优先级（从高到低）：系统环境变量 > .env 文件 > 默认值。
// 环境变量前缀 MAILTO_，例如 MAILTO_SERVER_PORT、MAILTO_LINKS_IP_DAILY_LIMIT。
func Load() (*Config, error) {
	loadEnvFile()

	viper.SetEnvPrefix("mailto")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("links.public_base_url", "http://localhost:8080")
	viper.SetDefault("links.id_length", 8)
	viper.SetDefault("links.allowed_ttl_days", "7,30,90")
	viper.SetDefault("links.max_total", 200000)
	viper.SetDefault("links.ip_daily_limit", 500)
	viper.SetDefault("limits.max_subject_chars", 200)
	viper.SetDefault("limits.max_body_chars", 10000)
	viper.SetDefault("limits.max_to_recipients", 100)
	viper.SetDefault("limits.max_cc_recipients", 100)
	viper.SetDefault("limits.max_body_bytes", 64*1024)
	viper.SetDefault("rate_limit.window", "1m")
	viper.SetDefault("rate_limit.max", 30)
	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.dsn", filepath.Join("data", "links.db"))
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("redis.address", "")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("cleanup.interval", "24h")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)
	viper.SetDefault("log.file", "")
	viper.SetDefault("cors.allowed_origins", "*")
	viper.SetDefault("api_key", "")
	viper.SetDefault("web.dir", "./web")

	ttlSet, err := parseTTLSet(viper.GetString("links.allowed_ttl_days"))
	if err != nil {
		return nil, err
	}

	idLength := viper.GetInt("links.id_length")
	if idLength < 6 || idLength > 12 {
		return nil, fmt.Errorf("links.id_length must be between 6 and 12, got %d", idLength)
	}

	window, err := time.ParseDuration(viper.GetString("rate_limit.window"))
	if err != nil {
		return nil, fmt.Errorf("invalid rate_limit.window: %w", err)
	}

	cleanupInterval, err := time.ParseDuration(viper.GetString("cleanup.interval"))
	if err != nil {
		return nil, fmt.Errorf("invalid cleanup.interval: %w", err)
	}
	if cleanupInterval <= 0 {
		return nil, fmt.Errorf("cleanup.interval must be positive")
	}

	connMaxLifetime, err := time.ParseDuration(viper.GetString("database.conn_max_lifetime"))
	if err != nil {
		connMaxLifetime = 5 * time.Minute
	}

	corsOrigins := parseList(viper.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: viper.GetString("server.host"),
			Port: viper.GetInt("server.port"),
		},
		Links: LinkConfig{
			PublicBaseURL:  strings.TrimRight(viper.GetString("links.public_base_url"), "/"),
			IDLength:       idLength,
			AllowedTTLDays: ttlSet,
			MaxTotalLinks:  viper.GetInt64("links.max_total"),
			IPDailyLimit:   viper.GetInt64("links.ip_daily_limit"),
		},
		Limits: LimitsConfig{
			MaxSubjectChars: viper.GetInt("limits.max_subject_chars"),
			MaxBodyChars:    viper.GetInt("limits.max_body_chars"),
			MaxToRecipients: viper.GetInt("limits.max_to_recipients"),
			MaxCcRecipients: viper.GetInt("limits.max_cc_recipients"),
			MaxBodyBytes:    viper.GetInt64("limits.max_body_bytes"),
		},
		RateLimit: RateLimitConfig{
			Window: window,
			Max:    viper.GetInt("rate_limit.max"),
		},
		Database: DatabaseConfig{
			Driver:          viper.GetString("database.driver"),
			DSN:             viper.GetString("database.dsn"),
			MaxOpenConns:    viper.GetInt("database.max_open_conns"),
			MaxIdleConns:    viper.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: connMaxLifetime,
		},
		Redis: RedisConfig{
			Address:  viper.GetString("redis.address"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Cleanup: CleanupConfig{
			Interval: cleanupInterval,
		},
		Log: LogConfig{
			Level:       viper.GetString("log.level"),
			Development: viper.GetBool("log.development"),
			File:        viper.GetString("log.file"),
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		APIKey: viper.GetString("api_key"),
		WebDir: viper.GetString("web.dir"),
	}

	return cfg, nil
}

// CreateLimits 导出 domain 层需要的校验上限
func (c *Config) CreateLimits() domain.CreateLimits {
	return domain.CreateLimits{
		MaxToRecipients: c.Limits.MaxToRecipients,
		MaxCcRecipients: c.Limits.MaxCcRecipients,
		MaxSubjectChars: c.Limits.MaxSubjectChars,
		MaxBodyChars:    c.Limits.MaxBodyChars,
		AllowedTTLDays:  c.Links.AllowedTTLDays,
	}
}

func parseTTLSet(value string) (map[int]struct{}, error) {
	items := parseList(value)
	if len(items) == 0 {
		return nil, fmt.Errorf("links.allowed_ttl_days must not be empty")
	}

	set := make(map[int]struct{}, len(items))
	for _, item := range items {
		days, err := strconv.Atoi(item)
		if err != nil || days <= 0 {
			return nil, fmt.Errorf("invalid ttl value %q in links.allowed_ttl_days", item)
		}
		set[days] = struct{}{}
	}
	return set, nil
}

func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载当前目录或父目录的 .env 文件，文件不存在时静默跳过
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
