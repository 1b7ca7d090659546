package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"

	ClickTransportNATS      = "nats"
	ClickTransportInProcess = "inprocess"
)

type Config struct {
	App AppConfig `mapstructure:"app"`

	// Storage selects the link store backend.
	Storage StorageConfig `mapstructure:"storage"`

	// PostgreSQL
	Postgres PostgresConfig `mapstructure:"postgres"`

	// Redis
	Redis RedisConfig `mapstructure:"redis"`

	// NATS
	NATS NATSConfig `mapstructure:"nats"`

	// Prometheus
	Prometheus PrometheusConfig `mapstructure:"prometheus"`

	Links   LinksConfig   `mapstructure:"links"`
	Clicks  ClicksConfig  `mapstructure:"clicks"`
	Resolve ResolveConfig `mapstructure:"resolve"`
}

type AppConfig struct {
	Env         string `mapstructure:"env"`
	Port        int    `mapstructure:"port"`
	LogLevel    string `mapstructure:"log_level"`
	LogEncoding string `mapstructure:"log_encoding"`

	// ProxyHeader names the header holding the client IP when behind a proxy.
	ProxyHeader     string        `mapstructure:"proxy_header"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Development reports whether the process runs outside production.
func (c AppConfig) Development() bool {
	return c.Env != "production"
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

type PostgresConfig struct {
	Host              string `mapstructure:"host"`
	User              string `mapstructure:"user"`
	Password          string `mapstructure:"password"`
	Database          string `mapstructure:"database"`
	Port              int    `mapstructure:"port"`
	SSLMode           string `mapstructure:"sslmode"`
	MaxConns          int32  `mapstructure:"max_conns"`
	MinConns          int32  `mapstructure:"min_conns"`
	MaxConnLifetime   string `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   string `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod string `mapstructure:"health_check_period"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type NATSConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	MonitorPort int    `mapstructure:"monitor_port"`
}

type PrometheusConfig struct {
	Port int `mapstructure:"port"`
}

// LinksConfig tunes slug allocation and the resolution cache.
type LinksConfig struct {
	SlugLength            int           `mapstructure:"slug_length"`
	MaxAttempts           int           `mapstructure:"max_attempts"`
	CacheTTL              time.Duration `mapstructure:"cache_ttl"`
	FilterCapacity        uint          `mapstructure:"filter_capacity"`
	FilterFalsePositive   float64       `mapstructure:"filter_false_positive"`
	FilterRefreshInterval time.Duration `mapstructure:"filter_refresh_interval"`
}

// ClicksConfig tunes the click recording pipeline.
type ClicksConfig struct {
	Transport     string        `mapstructure:"transport"`
	Workers       int           `mapstructure:"workers"`
	QueueSize     int           `mapstructure:"queue_size"`
	RecordTimeout time.Duration `mapstructure:"record_timeout"`
}

type ResolveConfig struct {
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

func Load() (*Config, error) {
	// Load local .env for development (ignored when missing).
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()

	// Search for config/config.yaml (plus root for overrides).
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Allow environment variables to override YAML entries.
	v.SetEnvPrefix("")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Preserve legacy env variable names.
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StorageDriverPostgres, StorageDriverMemory:
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}

	switch c.Clicks.Transport {
	case ClickTransportInProcess:
	case ClickTransportNATS:
		if !c.NATS.Enabled {
			return errors.New("config: clicks.transport is nats but nats.enabled is false")
		}
	default:
		return fmt.Errorf("config: unknown click transport %q", c.Clicks.Transport)
	}

	if c.Links.SlugLength < 3 || c.Links.SlugLength > 30 {
		return fmt.Errorf("config: links.slug_length must be between 3 and 30, got %d", c.Links.SlugLength)
	}
	if c.Links.MaxAttempts < 1 {
		return fmt.Errorf("config: links.max_attempts must be positive, got %d", c.Links.MaxAttempts)
	}
	if c.Clicks.Workers < 1 {
		return fmt.Errorf("config: clicks.workers must be positive, got %d", c.Clicks.Workers)
	}
	if c.Clicks.QueueSize < 1 {
		return fmt.Errorf("config: clicks.queue_size must be positive, got %d", c.Clicks.QueueSize)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.log_encoding", "console")
	v.SetDefault("app.shutdown_timeout", "10s")

	v.SetDefault("storage.driver", StorageDriverPostgres)

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.sslmode", "disable")

	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.host", "localhost")
	v.SetDefault("nats.port", 4222)

	v.SetDefault("prometheus.port", 9090)

	v.SetDefault("links.slug_length", 6)
	v.SetDefault("links.max_attempts", 5)
	v.SetDefault("links.cache_ttl", "1m")
	v.SetDefault("links.filter_capacity", 1_000_000)
	v.SetDefault("links.filter_false_positive", 0.01)
	v.SetDefault("links.filter_refresh_interval", "5m")

	v.SetDefault("clicks.transport", ClickTransportInProcess)
	v.SetDefault("clicks.workers", 4)
	v.SetDefault("clicks.queue_size", 4096)
	v.SetDefault("clicks.record_timeout", "3s")

	v.SetDefault("resolve.retry_backoff", "50ms")
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.env", "APP_ENV")
	v.BindEnv("app.port", "APP_PORT")
	v.BindEnv("app.log_level", "LOG_LEVEL")
	v.BindEnv("app.log_encoding", "LOG_ENCODING")
	v.BindEnv("app.proxy_header", "APP_PROXY_HEADER")
	v.BindEnv("storage.driver", "STORAGE_DRIVER")

	// PostgreSQL
	v.BindEnv("postgres.host", "PG_HOST")
	v.BindEnv("postgres.user", "PG_USER")
	v.BindEnv("postgres.password", "PG_PASSWORD")
	v.BindEnv("postgres.database", "PG_DB")
	v.BindEnv("postgres.port", "PG_PORT")
	v.BindEnv("postgres.sslmode", "PG_SSLMODE")

	// Redis
	v.BindEnv("redis.enabled", "REDIS_ENABLED")
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")

	// NATS
	v.BindEnv("nats.enabled", "NATS_ENABLED")
	v.BindEnv("nats.host", "NATS_HOST")
	v.BindEnv("nats.port", "NATS_PORT")
	v.BindEnv("nats.user", "NATS_USER")
	v.BindEnv("nats.password", "NATS_PASSWORD")
	v.BindEnv("nats.monitor_port", "NATS_MONITOR_PORT")

	// Prometheus
	v.BindEnv("prometheus.port", "PROM_PORT")

	// Engine
	v.BindEnv("links.slug_length", "LINKS_SLUG_LENGTH")
	v.BindEnv("links.max_attempts", "LINKS_MAX_ATTEMPTS")
	v.BindEnv("links.cache_ttl", "LINKS_CACHE_TTL")
	v.BindEnv("clicks.transport", "CLICKS_TRANSPORT")
	v.BindEnv("clicks.workers", "CLICKS_WORKERS")
	v.BindEnv("clicks.queue_size", "CLICKS_QUEUE_SIZE")
}
