package config

import (
	"fmt"
	"os"
	"strings"

	"market-agent/src/helpers"
	"market-agent/src/models"

	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

const (
	DefaultChannel         = "channel-1"
	DefaultProviderURL     = "https://www.alphavantage.co/query"
	DefaultOpenAIURL       = "https://api.openai.com/v1"
	DefaultModel           = "gpt-4o-mini"
	DefaultMaxSteps        = 5
	DefaultRedisPrefix     = "market-agent"
	DefaultCacheTTLSeconds = 3600
)

// Environment variables that override the YAML file
const (
	EnvPusherAppID   = "PUSHER_APP_ID"
	EnvPusherKey     = "PUSHER_KEY"
	EnvPusherSecret  = "PUSHER_SECRET"
	EnvPusherCluster = "PUSHER_CLUSTER"
	EnvProviderKey   = "ALPHA_VANTAGE_API_KEY"
	EnvOpenAIKey     = "OPENAI_API_KEY"
	EnvRedisAddr     = "REDIS_ADDR"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// Defaults returns the configuration used for keys missing from the file
func Defaults() *models.MConfig {
	return &models.MConfig{
		Name:     "market-agent",
		Host:     "0.0.0.0",
		Port:     8080,
		LogLevel: "INFO",
		GrpcHost: "127.0.0.1",
		GrpcPort: 50051,
		Relay: models.MRelayConfig{
			Driver:        "hub",
			Channel:       DefaultChannel,
			RedisPrefix:   DefaultRedisPrefix,
			PublishErrors: true,
		},
		Provider: models.MProviderConfig{
			BaseURL:         DefaultProviderURL,
			CacheTTLSeconds: DefaultCacheTTLSeconds,
		},
		Agent: models.MAgentConfig{
			Reasoner: "openai",
			Model:    DefaultModel,
			BaseURL:  DefaultOpenAIURL,
			MaxSteps: DefaultMaxSteps,
		},
		Storage: models.MStorageConfig{
			DBType: "none",
		},
		Network: models.MNetworkConfig{
			RequestTimeout: 30,
		},
	}
}

// -----------------------------------------------------------------------------

// NewConfig creates a new MConfig instance from YAML file
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, helpers.NewConfigurationError(fmt.Sprintf("failed to read config file '%s'", configPath), err)
	}

	return Parse(data)
}

// -----------------------------------------------------------------------------

// Parse builds a Config from YAML bytes, then applies environment overrides
// and validates the result.
func Parse(data []byte) (*Config, error) {
	// 2. Unmarshal over the defaults so absent keys keep them
	modelConfig := Defaults()
	if err := yaml.Unmarshal(data, modelConfig); err != nil {
		return nil, helpers.NewConfigurationError("failed to parse config from YAML", err)
	}

	config := &Config{MConfig: modelConfig}
	config.ApplyEnv(os.LookupEnv)

	// 3. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// ApplyEnv overrides credentials and addresses from the environment.
// Empty values are ignored.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	set(&c.Relay.AppID, EnvPusherAppID)
	set(&c.Relay.Key, EnvPusherKey)
	set(&c.Relay.Secret, EnvPusherSecret)
	set(&c.Relay.Cluster, EnvPusherCluster)
	set(&c.Relay.RedisAddr, EnvRedisAddr)
	set(&c.Provider.APIKey, EnvProviderKey)
	set(&c.Agent.APIKey, EnvOpenAIKey)
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return helpers.NewConfigurationError(fmt.Sprintf(format, args...), nil)
	}

	if c.Name == "" {
		return invalid("application name cannot be empty")
	}

	// Server
	if c.Host == "" {
		return invalid("server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return invalid("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}
	if c.GrpcPort != 0 && (c.GrpcPort <= 1024 || c.GrpcPort > 65535) {
		return invalid("invalid grpc port number: %d", c.GrpcPort)
	}

	// Relay
	if c.Relay.Channel == "" {
		return invalid("relay channel cannot be empty")
	}
	switch c.Relay.Driver {
	case "hub":
	case "redis":
		if c.Relay.RedisAddr == "" {
			return invalid("relay.redis_addr is required for the redis relay (or set %s)", EnvRedisAddr)
		}
	case "pusher":
		if c.Relay.AppID == "" || c.Relay.Key == "" || c.Relay.Secret == "" || c.Relay.Cluster == "" {
			return invalid("pusher relay needs app_id, key, secret and cluster (or %s, %s, %s, %s)",
				EnvPusherAppID, EnvPusherKey, EnvPusherSecret, EnvPusherCluster)
		}
	default:
		return invalid("unknown relay driver '%s'", c.Relay.Driver)
	}

	// Provider
	if c.Provider.APIKey == "" {
		return invalid("provider api key is required (or set %s)", EnvProviderKey)
	}
	if c.Provider.BaseURL == "" {
		return invalid("provider base url cannot be empty")
	}
	if c.Provider.CacheTTLSeconds < 0 {
		return invalid("cache ttl cannot be negative")
	}

	// Agent
	switch c.Agent.Reasoner {
	case "openai":
		if c.Agent.APIKey == "" {
			return invalid("openai reasoner needs an api key (or set %s)", EnvOpenAIKey)
		}
		if c.Agent.Model == "" {
			return invalid("openai reasoner needs a model")
		}
	case "keyword":
	default:
		return invalid("unknown reasoner '%s'", c.Agent.Reasoner)
	}
	if c.Agent.MaxSteps <= 0 {
		return invalid("agent max_steps must be greater than 0")
	}
	if c.Agent.RunTimeoutSeconds < 0 {
		return invalid("agent run timeout cannot be negative")
	}

	// Storage
	switch c.Storage.DBType {
	case "none":
	case "sqlite":
		if c.Storage.DBPath == "" {
			return invalid("database path cannot be empty for sqlite")
		}
	case "postgres":
		if c.Storage.DBConnectionString == "" {
			return invalid("connection string cannot be empty for postgres")
		}
	default:
		return invalid("unknown database type '%s'", c.Storage.DBType)
	}

	// Network
	if c.Network.RequestTimeout <= 0 {
		return invalid("request timeout must be greater than 0")
	}
	if c.Network.MaxRetries < 0 {
		return invalid("max retries cannot be negative")
	}
	if c.Network.Enabled {
		for _, p := range c.Network.Proxies {
			if !helpers.ValidateProxy(p) {
				return invalid("invalid proxy '%s'", p)
			}
		}
	}

	// Client
	if c.Client.LoadingTimeoutSeconds < 0 {
		return invalid("loading timeout cannot be negative")
	}

	return nil
}
