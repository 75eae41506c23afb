package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("PORT", "")

	cfg, err := loadConfig([]string{})
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Addr)
	assert.Empty(t, cfg.DatabaseURL, "memory stores by default")
	assert.Equal(t, time.Second, cfg.Checkout.AckDelay)
	assert.Equal(t, 0.3, cfg.Checkout.ExpiredShare)
	assert.Equal(t, 1.0, cfg.Checkout.TimeScale)
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL)
	assert.Equal(t, "comeia.orders", cfg.Kafka.Topic)
	assert.Equal(t, 100, cfg.RateLimit.Max)
	assert.Equal(t, []string{"*"}, cfg.CORS.Origins)
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("COMEIA_ADDR", "127.0.0.1:9000")
	t.Setenv("COMEIA_CHECKOUT_TIME_SCALE", "0.01")

	cfg, err := loadConfig([]string{})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
	assert.Equal(t, 0.01, cfg.Checkout.TimeScale)
}

func TestApplyPlatformDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://db/comeia")
	t.Setenv("REDIS_ADDR", "cache:6379")
	t.Setenv("PORT", "3000")

	cfg := &Config{Addr: "0.0.0.0:8080"}
	cfg.applyPlatformDefaults()

	assert.Equal(t, "postgres://db/comeia", cfg.DatabaseURL)
	assert.Equal(t, "cache:6379", cfg.RedisAddr)
	assert.Equal(t, "0.0.0.0:3000", cfg.Addr)

	cfg = &Config{Addr: "127.0.0.1:1", DatabaseURL: "postgres://explicit"}
	cfg.applyPlatformDefaults()
	assert.Equal(t, "postgres://explicit", cfg.DatabaseURL)
	assert.Equal(t, "127.0.0.1:1", cfg.Addr, "explicit address wins over PORT")
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			Checkout:  CheckoutConfig{ExpiredShare: 0.3, TimeScale: 1},
			RateLimit: RateLimitConfig{Max: 10, Window: time.Minute},
		}
	}
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "share above one", mutate: func(c *Config) { c.Checkout.ExpiredShare = 1.5 }, wantErr: true},
		{name: "negative scale", mutate: func(c *Config) { c.Checkout.TimeScale = -1 }, wantErr: true},
		{name: "zero rate limit", mutate: func(c *Config) { c.RateLimit.Max = 0 }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			if tt.wantErr {
				assert.Error(t, c.Validate())
				return
			}
			assert.NoError(t, c.Validate())
		})
	}
}
