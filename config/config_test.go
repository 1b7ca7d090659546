package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaults(t *testing.T) Config {
	t.Helper()
	v := viper.New()
	setDefaults(v)

	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))
	return cfg
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := defaults(t)

	require.NoError(t, cfg.Validate())
	assert.Equal(t, StorageDriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, ClickTransportInProcess, cfg.Clicks.Transport)
	assert.Equal(t, 6, cfg.Links.SlugLength)
	assert.Equal(t, time.Minute, cfg.Links.CacheTTL)
	assert.Equal(t, 3*time.Second, cfg.Clicks.RecordTimeout)
	assert.Equal(t, 50*time.Millisecond, cfg.Resolve.RetryBackoff)
	assert.Equal(t, 10*time.Second, cfg.App.ShutdownTimeout)
	assert.True(t, cfg.App.Development())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{
			name:   "unknown storage driver",
			mutate: func(c *Config) { c.Storage.Driver = "mysql" },
			errMsg: "unknown storage driver",
		},
		{
			name:   "memory driver",
			mutate: func(c *Config) { c.Storage.Driver = StorageDriverMemory },
		},
		{
			name:   "nats transport without nats",
			mutate: func(c *Config) { c.Clicks.Transport = ClickTransportNATS },
			errMsg: "nats.enabled is false",
		},
		{
			name: "nats transport with nats",
			mutate: func(c *Config) {
				c.Clicks.Transport = ClickTransportNATS
				c.NATS.Enabled = true
			},
		},
		{
			name:   "unknown transport",
			mutate: func(c *Config) { c.Clicks.Transport = "kafka" },
			errMsg: "unknown click transport",
		},
		{
			name:   "slug too short",
			mutate: func(c *Config) { c.Links.SlugLength = 2 },
			errMsg: "links.slug_length",
		},
		{
			name:   "slug too long",
			mutate: func(c *Config) { c.Links.SlugLength = 31 },
			errMsg: "links.slug_length",
		},
		{
			name:   "no attempts",
			mutate: func(c *Config) { c.Links.MaxAttempts = 0 },
			errMsg: "links.max_attempts",
		},
		{
			name:   "no workers",
			mutate: func(c *Config) { c.Clicks.Workers = 0 },
			errMsg: "clicks.workers",
		},
		{
			name:   "no queue",
			mutate: func(c *Config) { c.Clicks.QueueSize = 0 },
			errMsg: "clicks.queue_size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults(t)
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestEnvOverridesDefaults(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", StorageDriverMemory)
	t.Setenv("LINKS_SLUG_LENGTH", "8")
	t.Setenv("APP_PROXY_HEADER", "X-Forwarded-For")

	v := viper.New()
	setDefaults(v)
	bindEnvVars(v)

	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))

	assert.Equal(t, StorageDriverMemory, cfg.Storage.Driver)
	assert.Equal(t, 8, cfg.Links.SlugLength)
	assert.Equal(t, "X-Forwarded-For", cfg.App.ProxyHeader)
}

func TestProductionIsNotDevelopment(t *testing.T) {
	assert.False(t, AppConfig{Env: "production"}.Development())
	assert.True(t, AppConfig{Env: "staging"}.Development())
}
