// Package config 服务配置，来源依次为默认值、YAML 文件、COURT_ 前缀的环境变量
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// 开发环境默认密钥，发布模式下拒绝启动
const devJWTSecret = "dev-secret-change-me"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Payment   PaymentConfig   `mapstructure:"payment"`
	Events    EventsConfig    `mapstructure:"events"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Business  BusinessConfig  `mapstructure:"business"`
}

// ServerConfig HTTP 服务
type ServerConfig struct {
	Name            string        `mapstructure:"name"`
	Mode            string        `mapstructure:"mode"` // debug, test, release
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Release 是否发布模式，production 视同 release
func (s *ServerConfig) Release() bool {
	return s.Mode == "release" || s.Mode == "production"
}

// GinMode 对应的 gin 运行模式
func (s *ServerConfig) GinMode() string {
	switch {
	case s.Release():
		return "release"
	case s.Mode == "test":
		return "test"
	default:
		return "debug"
	}
}

// DatabaseConfig 数据库，driver 为 postgres 或 sqlite
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"` // sqlite 时为文件路径
	SSLMode         string        `mapstructure:"sslmode"`
	Timezone        string        `mapstructure:"timezone"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogMode         bool          `mapstructure:"log_mode"`
	SlowThreshold   time.Duration `mapstructure:"slow_threshold"`
}

// DSN postgres 连接串
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode, d.Timezone)
}

// RedisConfig 可用性缓存、回调去重与限流共用
type RedisConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

func (r *RedisConfig) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// JWTConfig 令牌由认证服务签发，这里只校验
type JWTConfig struct {
	Secret         string        `mapstructure:"secret"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
	Issuer         string        `mapstructure:"issuer"`
}

type PaymentConfig struct {
	Xendit XenditConfig `mapstructure:"xendit"`
}

// XenditConfig 发票网关
type XenditConfig struct {
	BaseURL            string        `mapstructure:"base_url"`
	SecretKey          string        `mapstructure:"secret_key"`
	CallbackToken      string        `mapstructure:"callback_token"`
	InvoiceTTL         time.Duration `mapstructure:"invoice_ttl"`
	SuccessRedirectURL string        `mapstructure:"success_redirect_url"`
	FailureRedirectURL string        `mapstructure:"failure_redirect_url"`
	Currency           string        `mapstructure:"currency"`
	Timeout            time.Duration `mapstructure:"timeout"`
	RetryAttempts      int           `mapstructure:"retry_attempts"`
	RetryInterval      time.Duration `mapstructure:"retry_interval"`
	Mock               bool          `mapstructure:"mock"`
}

// EventsConfig 状态事件发布
type EventsConfig struct {
	Driver string      `mapstructure:"driver"` // none, mqtt, kafka, amqp
	MQTT   MQTTConfig  `mapstructure:"mqtt"`
	Kafka  KafkaConfig `mapstructure:"kafka"`
	AMQP   AMQPConfig  `mapstructure:"amqp"`
}

type MQTTConfig struct {
	Broker         string        `mapstructure:"broker"`
	ClientIDPrefix string        `mapstructure:"client_id_prefix"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	KeepAlive      time.Duration `mapstructure:"keep_alive"`
	AutoReconnect  bool          `mapstructure:"auto_reconnect"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	QoS            byte          `mapstructure:"qos"`
	Retained       bool          `mapstructure:"retained"`
	TopicPrefix    string        `mapstructure:"topic_prefix"`
}

type KafkaConfig struct {
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

type AMQPConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

// LoggerConfig zap 输出与 lumberjack 滚动参数
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // json, console
	Output     string `mapstructure:"output"` // stdout, file, both
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // 天
	Compress   bool   `mapstructure:"compress"`
	Caller     bool   `mapstructure:"caller"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	Endpoint    string  `mapstructure:"endpoint"` // 为空时输出到 stdout
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// RateLimitConfig 按 IP 的固定窗口限流，需要 Redis
type RateLimitConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Limit   int           `mapstructure:"limit"`
	Window  time.Duration `mapstructure:"window"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"` // 秒
}

type BusinessConfig struct {
	Booking BookingConfig `mapstructure:"booking"`
}

// BookingConfig 预订规则与后台任务节奏
type BookingConfig struct {
	Timezone             string        `mapstructure:"timezone"`
	ExpiryCheckInterval  time.Duration `mapstructure:"expiry_check_interval"`
	AvailabilityCacheTTL time.Duration `mapstructure:"availability_cache_ttl"`
	WebhookDedupeTTL     time.Duration `mapstructure:"webhook_dedupe_ttl"`
	MaxBookingsPerOrder  int           `mapstructure:"max_bookings_per_order"`
}

// Location 营业时区，无法解析时回退 UTC
func (b *BookingConfig) Location() *time.Location {
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Validate 启动前校验，一次返回全部问题
func (c *Config) Validate() error {
	var errs []error
	switch {
	case c.JWT.Secret == "":
		errs = append(errs, errors.New("jwt.secret is required"))
	case c.JWT.Secret == devJWTSecret && c.Server.Release():
		errs = append(errs, errors.New("jwt.secret must be changed in release mode"))
	}
	if _, err := time.LoadLocation(c.Business.Booking.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("business.booking.timezone: %w", err))
	}
	if c.Business.Booking.MaxBookingsPerOrder < 1 {
		errs = append(errs, errors.New("business.booking.max_bookings_per_order must be positive"))
	}
	if c.Business.Booking.ExpiryCheckInterval <= 0 {
		errs = append(errs, errors.New("business.booking.expiry_check_interval must be positive"))
	}
	if x := c.Payment.Xendit; !x.Mock && x.SecretKey == "" {
		errs = append(errs, errors.New("payment.xendit.secret_key is required unless mock is enabled"))
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("database.driver: unknown driver %q", c.Database.Driver))
	}
	switch c.Events.Driver {
	case "", "none", "mqtt", "kafka", "amqp":
	default:
		errs = append(errs, fmt.Errorf("events.driver: unknown driver %q", c.Events.Driver))
	}
	return errors.Join(errs...)
}
