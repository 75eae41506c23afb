package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (COMEIA_ prefix), flags, or YAML config files.
// Empty DatabaseURL and RedisAddr select the in-memory stores.
type Config struct {
	Addr          string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL   string `usage:"PostgreSQL connection URL (COMEIA_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	RedisAddr     string `usage:"Redis address for sessions (COMEIA_REDIS_ADDR or REDIS_ADDR)" flag:"redis-addr"`
	RedisPassword string `usage:"Redis password" flag:"redis-password"`
	ImageBaseURL  string `default:"" usage:"Base URL for product images (e.g. https://cdn.example.com/images)" flag:"image-base-url"`
	Kafka         KafkaConfig
	Checkout      CheckoutConfig
	Session       SessionConfig
	Health        HealthConfig
	RateLimit     RateLimitConfig
	CORS          CORSConfig
	Graceful      GracefulConfig
}

// KafkaConfig controls publishing of order status events.
type KafkaConfig struct {
	Brokers string `default:"" usage:"Comma separated Kafka brokers; empty disables publishing"`
	Topic   string `default:"comeia.orders" usage:"Order events topic"`
}

// CheckoutConfig controls the payment simulation timings.
type CheckoutConfig struct {
	CreateDelay  time.Duration `default:"500ms" usage:"Simulated order creation latency" flag:"create-delay"`
	AckDelay     time.Duration `default:"1s" usage:"Delay before the gateway starts processing" flag:"ack-delay"`
	Watchdog     time.Duration `default:"0s" usage:"Upper bound on payment processing, 0 disables" flag:"watchdog"`
	ExpiredShare float64       `default:"0.3" usage:"Share of declined payments reported as expired" flag:"expired-share"`
	TimeScale    float64       `default:"1" usage:"Multiplier applied to simulated processing times" flag:"time-scale"`
	BoletoURL    string        `default:"https://boleto.example.com/" usage:"Base URL of issued boletos" flag:"boleto-url"`
	KeepAlive    time.Duration `default:"15s" usage:"Keep-alive interval of order event streams" flag:"sse-keepalive"`
}

// SessionConfig controls login sessions.
type SessionConfig struct {
	TTL time.Duration `default:"24h" usage:"Session lifetime" flag:"session-ttl"`
}

// HealthConfig controls health probing.
type HealthConfig struct {
	Interval   time.Duration `default:"10s" usage:"Health check interval" flag:"health-interval"`
	MaxBacklog int           `default:"1000" usage:"Orders in processing above which readiness fails" flag:"max-backlog"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from flags, environment variables and YAML
// config files, then applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(os.Args[1:], "config.yaml", "/etc/comeia/config.yaml")
}

func loadConfig(args []string, files ...string) (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "COMEIA",
		Args:      args,
		Files:     files,
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the simulation cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Checkout.ExpiredShare < 0 || c.Checkout.ExpiredShare > 1:
		return errors.Errorf("expired share %v out of [0, 1]", c.Checkout.ExpiredShare)
	case c.Checkout.TimeScale < 0:
		return errors.Errorf("negative time scale %v", c.Checkout.TimeScale)
	case c.RateLimit.Max <= 0 || c.RateLimit.Window <= 0:
		return errors.New("rate limit max and window must be positive")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's COMEIA_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.RedisAddr == "" {
		c.RedisAddr = os.Getenv("REDIS_ADDR")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
