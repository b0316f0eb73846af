package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Redis     RedisConfig
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Platform  PlatformConfig  `mapstructure:"platform"`
	Lockdown  LockdownConfig  `mapstructure:"lockdown"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// PlatformConfig 平台 REST API（题目拉取与提交）
type PlatformConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// LockdownConfig 考试锁定模式的策略参数，支持热更新
type LockdownConfig struct {
	FallbackBudgetSeconds    int      `mapstructure:"fallback_budget_seconds"`
	TickIntervalMillis       int      `mapstructure:"tick_interval_ms"`
	ResizeThresholdPx        int      `mapstructure:"resize_threshold_px"`
	FullscreenTimeoutSeconds int      `mapstructure:"fullscreen_timeout_seconds"`
	SubmitTimeoutSeconds     int      `mapstructure:"submit_timeout_seconds"`
	MaxSubmitAttempts        int      `mapstructure:"max_submit_attempts"`
	SessionLockTTLMinutes    int      `mapstructure:"session_lock_ttl_minutes"`
	BlockedKeyCombos         []string `mapstructure:"blocked_key_combos"`
}

func (l LockdownConfig) FallbackBudget() time.Duration {
	return time.Duration(l.FallbackBudgetSeconds) * time.Second
}

func (l LockdownConfig) TickInterval() time.Duration {
	return time.Duration(l.TickIntervalMillis) * time.Millisecond
}

func (l LockdownConfig) FullscreenTimeout() time.Duration {
	return time.Duration(l.FullscreenTimeoutSeconds) * time.Second
}

func (l LockdownConfig) SubmitTimeout() time.Duration {
	return time.Duration(l.SubmitTimeoutSeconds) * time.Second
}

func (l LockdownConfig) SessionLockTTL() time.Duration {
	return time.Duration(l.SessionLockTTLMinutes) * time.Minute
}

var defaultBlockedKeyCombos = []string{
	"ctrl+c", "ctrl+v", "ctrl+x", "ctrl+u", "ctrl+p", "ctrl+s",
	"ctrl+shift+i", "ctrl+shift+j", "ctrl+shift+c", "f12",
	"meta+c", "meta+v", "meta+x", "meta+u", "meta+p", "meta+alt+i",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")

	v.SetDefault("platform.timeout_seconds", 10)

	v.SetDefault("lockdown.fallback_budget_seconds", 1800)
	v.SetDefault("lockdown.tick_interval_ms", 1000)
	v.SetDefault("lockdown.resize_threshold_px", 160)
	v.SetDefault("lockdown.fullscreen_timeout_seconds", 15)
	v.SetDefault("lockdown.submit_timeout_seconds", 20)
	v.SetDefault("lockdown.max_submit_attempts", 3)
	v.SetDefault("lockdown.session_lock_ttl_minutes", 240)
	v.SetDefault("lockdown.blocked_key_combos", defaultBlockedKeyCombos)

	v.SetDefault("rate_limit.max_requests", 6000)
	v.SetDefault("rate_limit.window_minutes", 1)
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("CODER_EDU")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Database
	v.BindEnv("database.host", "DATABASE_HOST")
	v.BindEnv("database.port", "DATABASE_PORT")
	v.BindEnv("database.user", "DATABASE_USER")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "DATABASE_NAME")

	// JWT
	v.BindEnv("jwt.secret", "JWT_SECRET")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	v.BindEnv("server.mode", "SERVER_MODE")

	// Platform
	v.BindEnv("platform.base_url", "PLATFORM_BASE_URL")

	// Tracing
	v.BindEnv("tracing.enabled", "TRACING_ENABLED")
	v.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	// 生产环境校验 JWT Secret 强度
	if c.Server.Mode == "release" && len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(c.JWT.Secret))
	}
	if c.Platform.BaseURL == "" {
		return fmt.Errorf("platform.base_url is required")
	}
	l := c.Lockdown
	if l.TickIntervalMillis <= 0 || l.FallbackBudgetSeconds <= 0 {
		return fmt.Errorf("lockdown tick interval and fallback budget must be positive")
	}
	if l.MaxSubmitAttempts < 1 {
		return fmt.Errorf("lockdown.max_submit_attempts must be at least 1")
	}
	return nil
}
