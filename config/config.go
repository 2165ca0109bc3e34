package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/viper"
)

// Store drivers.
const (
	StorePocketBase = "pocketbase"
	StoreRedis      = "redis"
	StoreMemory     = "memory"
)

type Config struct {
	Environment string
	LogLevel    string

	// Registry backend
	StoreDriver string
	RedisURL    string

	// Manager authority bootstrapped on start when no manager exists yet
	ManagerAuthority string
	MintMaxAttempts  int

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string

	// Monitoring
	EnableMetrics bool
}

// Load reads the configuration from an optional .env file in the working
// directory, overridden by environment variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	// .env is optional; environment variables alone are enough
	if err := v.ReadInConfig(); err != nil && !isMissingConfig(err) {
		return nil, fmt.Errorf("read .env: %w", err)
	}

	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		Environment: v.GetString("ENVIRONMENT"),
		LogLevel:    v.GetString("LOG_LEVEL"),

		StoreDriver: v.GetString("STORE_DRIVER"),
		RedisURL:    v.GetString("REDIS_URL"),

		ManagerAuthority: v.GetString("MANAGER_AUTHORITY"),
		MintMaxAttempts:  v.GetInt("MINT_MAX_ATTEMPTS"),

		PubNubPublishKey:   v.GetString("PUBNUB_PUBLISH_KEY"),
		PubNubSubscribeKey: v.GetString("PUBNUB_SUBSCRIBE_KEY"),
		PubNubSecretKey:    v.GetString("PUBNUB_SECRET_KEY"),

		EnableMetrics: v.GetBool("ENABLE_METRICS"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func isMissingConfig(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.Is(err, fs.ErrNotExist) || errors.As(err, &notFound)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORE_DRIVER", StorePocketBase)
	v.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	v.SetDefault("MANAGER_AUTHORITY", "")
	v.SetDefault("MINT_MAX_ATTEMPTS", 32)
	v.SetDefault("PUBNUB_PUBLISH_KEY", "")
	v.SetDefault("PUBNUB_SUBSCRIBE_KEY", "")
	v.SetDefault("PUBNUB_SECRET_KEY", "")
	v.SetDefault("ENABLE_METRICS", true)
}

func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StorePocketBase, StoreMemory:
	case StoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis store")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	if c.MintMaxAttempts <= 0 {
		return fmt.Errorf("MINT_MAX_ATTEMPTS must be positive, got %d", c.MintMaxAttempts)
	}

	if c.Environment == "production" && c.StoreDriver == StoreMemory {
		return fmt.Errorf("the memory store is not allowed in production")
	}
	return nil
}

// PubNubEnabled reports whether lifecycle notifications should be published.
func (c *Config) PubNubEnabled() bool {
	return c.PubNubPublishKey != "" && c.PubNubSubscribeKey != ""
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
