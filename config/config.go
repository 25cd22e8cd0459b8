package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/66gu1/authsession/internal/app/credential"
	"github.com/66gu1/authsession/internal/app/session"
	sessionredis "github.com/66gu1/authsession/internal/app/session/repo/redis"
	"github.com/66gu1/authsession/internal/infrastructure/db"
	"github.com/66gu1/authsession/internal/infrastructure/httpx"
	"github.com/66gu1/authsession/internal/infrastructure/redisx"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

type StoreKind string

const (
	StorePostgres StoreKind = "postgres"
	StoreRedis    StoreKind = "redis"
	StoreMemory   StoreKind = "memory"
)

type Config struct {
	Port            string        `mapstructure:"port" json:"port"`
	LogLevel        LogLevel      `mapstructure:"log_level" json:"log_level"`
	MaxBodySize     int64         `mapstructure:"max_body_size" json:"max_body_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" json:"shutdown_timeout"`
	Store           StoreKind     `mapstructure:"store" json:"store"`
	PurgeInterval   time.Duration `mapstructure:"purge_interval" json:"purge_interval"`
	PurgeRetention  time.Duration `mapstructure:"purge_retention" json:"purge_retention"`

	Database     db.Config           `mapstructure:"database" json:"database"`
	Redis        redisx.Config       `mapstructure:"redis" json:"redis"`
	RedisSession sessionredis.Config `mapstructure:"redis_session" json:"redis_session"`
	Session      session.Config      `mapstructure:"session" json:"session"`
	Credential   credential.Config   `mapstructure:"credential" json:"credential"`
	RateLimit    RateLimitConfig     `mapstructure:"rate_limit" json:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled bool                  `mapstructure:"enabled" json:"enabled"`
	Login   httpx.RateLimitConfig `mapstructure:"login" json:"login"`
	Refresh httpx.RateLimitConfig `mapstructure:"refresh" json:"refresh"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("max_body_size", 1<<16)
	v.SetDefault("shutdown_timeout", 10*time.Second)
	v.SetDefault("store", string(StorePostgres))
	v.SetDefault("purge_interval", time.Hour)
	v.SetDefault("purge_retention", 7*24*time.Hour)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis_session.key_prefix", "authsession:")
	v.SetDefault("redis_session.retention", 24*time.Hour)

	v.SetDefault("session.access_token_ttl", 15*time.Minute)
	v.SetDefault("session.refresh_token_ttl", 14*24*time.Hour)
	v.SetDefault("session.clock_skew_tolerance", 30*time.Second)

	v.SetDefault("credential.bcrypt_cost", 12)
	v.SetDefault("credential.min_secret_length", 8)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.login.rate", 10)
	v.SetDefault("rate_limit.login.burst", 5)
	v.SetDefault("rate_limit.login.period", time.Minute)
	v.SetDefault("rate_limit.refresh.rate", 60)
	v.SetDefault("rate_limit.refresh.burst", 20)
	v.SetDefault("rate_limit.refresh.period", time.Minute)
}

// Load reads config.yaml from ./config or the working directory. Every key can
// be overridden from the environment, e.g. SESSION_ACCESS_TOKEN_TTL=5m.
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("config")
	v.AddConfigPath(".")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("config.Load: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config.Load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Store {
	case StorePostgres, StoreRedis, StoreMemory:
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.PurgeInterval <= 0 {
		return fmt.Errorf("purge_interval must be positive, got %s", c.PurgeInterval)
	}
	if c.PurgeRetention < 0 {
		return fmt.Errorf("purge_retention must not be negative, got %s", c.PurgeRetention)
	}
	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("session: %w", err)
	}

	return nil
}

type LogLevel string

const (
	logLevelDebug LogLevel = "debug"
	logLevelInfo  LogLevel = "info"
	logLevelWarn  LogLevel = "warn"
	logLevelError LogLevel = "error"
)

func (l LogLevel) ZeroLog() zerolog.Level {
	switch l {
	case logLevelDebug:
		return zerolog.DebugLevel
	case logLevelInfo:
		return zerolog.InfoLevel
	case logLevelWarn:
		return zerolog.WarnLevel
	case logLevelError:
		return zerolog.ErrorLevel

	default:
		return zerolog.InfoLevel
	}
}
