package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Points   PointsConfig   `mapstructure:"points"`
	SMS      SMSConfig      `mapstructure:"sms"`
	Recharge RechargeConfig `mapstructure:"recharge"`
	Vip      VipConfig      `mapstructure:"vip"`
	Tasks    TasksConfig    `mapstructure:"tasks"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Engine          string        `mapstructure:"engine"` // postgres / mysql / sqlite
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	ConnString   string `mapstructure:"conn_string"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

// AuthConfig 认证配置
type AuthConfig struct {
	AdminPassword  string `mapstructure:"admin_password"`
	JWTSecret      string `mapstructure:"jwt_secret"`
	JWTExpireHours int    `mapstructure:"jwt_expire_hours"`
}

// PointsConfig 积分有效期配置
type PointsConfig struct {
	ValidityMonths int `mapstructure:"validity_months"` // 积分有效期（月）
	ReminderDays   int `mapstructure:"reminder_days"`   // 过期提醒提前天数
}

// SMSConfig 短信验证码防刷配置
type SMSConfig struct {
	PhoneInterval time.Duration `mapstructure:"phone_interval"`
	PhoneDailyMax int           `mapstructure:"phone_daily_max"`
	IPInterval    time.Duration `mapstructure:"ip_interval"`
	IPIntervalMax int           `mapstructure:"ip_interval_max"`
	IPDailyMax    int           `mapstructure:"ip_daily_max"`
}

// RechargeConfig 充值限制配置
type RechargeConfig struct {
	OrderExpireMinutes int     `mapstructure:"order_expire_minutes"`
	DailyMaxCount      int     `mapstructure:"daily_max_count"`
	DailyMaxAmount     float64 `mapstructure:"daily_max_amount"`
}

// VipConfig VIP 配置
type VipConfig struct {
	GracePeriodDays int `mapstructure:"grace_period_days"` // 到期宽限期（天）
}

// TasksConfig 定时任务间隔配置
type TasksConfig struct {
	OrderTimeoutInterval   time.Duration `mapstructure:"order_timeout_interval"`
	ReconciliationInterval time.Duration `mapstructure:"reconciliation_interval"`
	PointsExpiryInterval   time.Duration `mapstructure:"points_expiry_interval"`
	ExpiryReminderInterval time.Duration `mapstructure:"expiry_reminder_interval"`
	VipReminderInterval    time.Duration `mapstructure:"vip_reminder_interval"`
}

var cfg *Config

// Load 加载配置（环境变量优先，其次 config.yaml，最后默认值）
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		// 配置文件可选，仅在解析出错时报错
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	v.SetEnvPrefix("SUCAI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg = c
	return c, nil
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.port", 3001)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	// Database
	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.dsn", "host=localhost user=postgres password=postgres dbname=sucaihub port=5432 sslmode=disable")
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)

	// Redis
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 20)
	v.SetDefault("redis.min_idle_conns", 5)

	// Auth
	v.SetDefault("auth.admin_password", "")
	v.SetDefault("auth.jwt_secret", "sucaihub-secret-change-in-production")
	v.SetDefault("auth.jwt_expire_hours", 24)

	// 积分有效期：获取后 12 个月，过期前 30 天提醒
	v.SetDefault("points.validity_months", 12)
	v.SetDefault("points.reminder_days", 30)

	// 短信防刷：手机号 60 秒 1 次 / 每日 5 次，IP 60 秒 3 次 / 每日 20 次
	v.SetDefault("sms.phone_interval", time.Minute)
	v.SetDefault("sms.phone_daily_max", 5)
	v.SetDefault("sms.ip_interval", time.Minute)
	v.SetDefault("sms.ip_interval_max", 3)
	v.SetDefault("sms.ip_daily_max", 20)

	// 充值限制
	v.SetDefault("recharge.order_expire_minutes", 30)
	v.SetDefault("recharge.daily_max_count", 10)
	v.SetDefault("recharge.daily_max_amount", 1000.0)

	// VIP
	v.SetDefault("vip.grace_period_days", 7)

	// Tasks
	v.SetDefault("tasks.order_timeout_interval", time.Minute)
	v.SetDefault("tasks.reconciliation_interval", 5*time.Minute)
	v.SetDefault("tasks.points_expiry_interval", 24*time.Hour)
	v.SetDefault("tasks.expiry_reminder_interval", 24*time.Hour)
	v.SetDefault("tasks.vip_reminder_interval", 24*time.Hour)
}

// Get 获取全局配置，未加载时 panic
func Get() *Config {
	if cfg == nil {
		panic("config not loaded, call config.Load() first")
	}
	return cfg
}

// Set 覆盖全局配置（仅用于单元测试）
func Set(c *Config) {
	cfg = c
}

// Default 返回一份默认配置（用于测试）
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	c := &Config{}
	_ = v.Unmarshal(c)
	return c
}
