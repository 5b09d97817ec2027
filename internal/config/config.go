package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all configuration for the Conductor engine
type Config struct {
	// Server configuration
	HTTPPort int    `env:"CONDUCTOR_HTTP_PORT" envDefault:"8080"`
	GRPCPort int    `env:"CONDUCTOR_GRPC_PORT" envDefault:"9090"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Redis configuration
	Redis RedisConfig

	// Subscription token configuration
	Token TokenConfig

	// Execution engine configuration
	Engine EngineConfig

	// Lending provider configuration
	Providers ProviderConfig
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASS"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`

	// Connection pool settings
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	MaxRetries   int           `env:"REDIS_MAX_RETRIES" envDefault:"3"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// TokenConfig holds subscription token signing configuration
type TokenConfig struct {
	SigningSecret string        `env:"CONDUCTOR_TOKEN_SECRET"`
	TTL           time.Duration `env:"CONDUCTOR_TOKEN_TTL" envDefault:"5m"`
}

// EngineConfig holds coordinator tuning knobs
type EngineConfig struct {
	ExecutionTimeout time.Duration `env:"CONDUCTOR_EXECUTION_TIMEOUT" envDefault:"3600s"`
	NodeTimeout      time.Duration `env:"CONDUCTOR_NODE_TIMEOUT" envDefault:"300s"`
	RetryDelay       time.Duration `env:"CONDUCTOR_RETRY_DELAY" envDefault:"5s"`

	// SignatureWaitTimeout bounds WAITING_FOR_SIGNATURE suspension.
	// Zero means wait indefinitely.
	SignatureWaitTimeout time.Duration `env:"CONDUCTOR_SIGNATURE_WAIT_TIMEOUT" envDefault:"0"`

	ShutdownTimeout time.Duration `env:"CONDUCTOR_SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// ProviderConfig holds lending provider gateway settings
type ProviderConfig struct {
	AaveGatewayURL string        `env:"AAVE_GATEWAY_URL"`
	AaveAPIKey     string        `env:"AAVE_GATEWAY_API_KEY"`
	RequestTimeout time.Duration `env:"PROVIDER_REQUEST_TIMEOUT" envDefault:"60s"`

	// EnablePaper registers the in-memory paper provider (development only)
	EnablePaper bool `env:"PROVIDER_ENABLE_PAPER" envDefault:"false"`

	// EncryptionKey is the 32-byte hex key for credentials at rest
	EncryptionKey string `env:"CONDUCTOR_ENCRYPTION_KEY"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.GRPCPort < 1 || c.GRPCPort > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPCPort)
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required")
	}

	if c.Token.SigningSecret == "" {
		return fmt.Errorf("subscription token signing secret is required")
	}
	if c.Token.TTL < time.Minute {
		return fmt.Errorf("subscription token TTL must be at least 1m, got %s", c.Token.TTL)
	}

	if c.Providers.AaveGatewayURL == "" && !c.Providers.EnablePaper {
		return fmt.Errorf("at least one lending provider must be configured")
	}
	if c.Providers.EncryptionKey == "" {
		return fmt.Errorf("encryption key is required")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// GetGRPCAddr returns the gRPC server address
func (c *Config) GetGRPCAddr() string {
	return fmt.Sprintf(":%d", c.GRPCPort)
}
