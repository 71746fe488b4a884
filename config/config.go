package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"db"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Log       LogConfig       `mapstructure:"log"`
	Gear      GearConfig      `mapstructure:"gear"`
	Loot      LootConfig      `mapstructure:"loot"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port      int        `mapstructure:"port"`
	BaseURL   string     `mapstructure:"base_url"`
	BodyLimit int64      `mapstructure:"body_limit"` // 请求体上限（字节）
	CORS      CORSConfig `mapstructure:"cors"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DatabaseConfig 数据库配置（postgres | sqlite）
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	Path            string `mapstructure:"path"` // sqlite 文件路径
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // 分钟
}

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 配置
// 未启用时写锁退化为进程内互斥锁，Token 黑名单不可用
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig JWT 认证配置
type AuthConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`

	// 名单为空时自动创建的管理员；PIN 为空时随机生成并输出到日志
	BootstrapAdminName string `mapstructure:"bootstrap_admin_name"`
	BootstrapAdminPIN  string `mapstructure:"bootstrap_admin_pin"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// GearConfig 外部配装清单来源配置
type GearConfig struct {
	APIBaseURL   string        `mapstructure:"api_base_url"`
	BisBaseURL   string        `mapstructure:"bis_base_url"`
	PageBaseURL  string        `mapstructure:"page_base_url"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	RetryCount   int           `mapstructure:"retry_count"`
	TomeKeywords []string      `mapstructure:"tome_keywords"` // 为空时使用内置表
	RaidKeywords []string      `mapstructure:"raid_keywords"`
}

// LootConfig 分配写锁配置
type LootConfig struct {
	LockKey           string        `mapstructure:"lock_key"`
	LockTTL           time.Duration `mapstructure:"lock_ttl"`
	LockRetryInterval time.Duration `mapstructure:"lock_retry_interval"`
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	ImportPerMinute int `mapstructure:"import_per_minute"`
	LoginPerMinute  int `mapstructure:"login_per_minute"`
}

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量 > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	v := viper.New()

	// ── 默认值 ──
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.body_limit", 1<<20)
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:5173"})

	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "raid_loot")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("db.path", "data/raid_loot.db")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.access_token_ttl", "12h")
	v.SetDefault("auth.bootstrap_admin_name", "admin")
	v.SetDefault("auth.bootstrap_admin_pin", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("gear.api_base_url", "https://api.xivgear.app")
	v.SetDefault("gear.bis_base_url", "https://staticbis.xivgear.app")
	v.SetDefault("gear.page_base_url", "https://xivgear.app")
	v.SetDefault("gear.fetch_timeout", "20s")
	v.SetDefault("gear.retry_count", 2)

	v.SetDefault("loot.lock_key", "raid-loot:write-lock")
	v.SetDefault("loot.lock_ttl", "30s")
	v.SetDefault("loot.lock_retry_interval", "50ms")

	v.SetDefault("rate_limit.import_per_minute", 20)
	v.SetDefault("rate_limit.login_per_minute", 10)

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
	v.SetEnvPrefix("LOOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 校验关键配置项
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 不能为空")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 长度不能少于 16 字符")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("配置校验失败: server.port 必须在 1-65535 之间")
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("配置校验失败: db.driver 仅支持 postgres 或 sqlite，当前为 %q", c.Database.Driver)
	}
	// 第三方接口调用必须有界
	if c.Gear.FetchTimeout < 10*time.Second || c.Gear.FetchTimeout > 30*time.Second {
		return fmt.Errorf("配置校验失败: gear.fetch_timeout 必须在 10s-30s 之间")
	}
	return nil
}
