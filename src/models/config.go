package models

// MConfig Structure
type MConfig struct {
	Name     string          `yaml:"name"`
	Host     string          `yaml:"host"`
	Port     int             `yaml:"port"`
	LogLevel string          `yaml:"log_level"`
	GrpcHost string          `yaml:"grpc_host"`
	GrpcPort int             `yaml:"grpc_port"`
	Relay    MRelayConfig    `yaml:"relay"`
	Provider MProviderConfig `yaml:"provider"`
	Agent    MAgentConfig    `yaml:"agent"`
	Storage  MStorageConfig  `yaml:"storage"`
	Network  MNetworkConfig  `yaml:"network"`
	Client   MClientConfig   `yaml:"client"`
}

type MRelayConfig struct {
	Driver        string `yaml:"driver"` // "hub", "redis" or "pusher"
	Channel       string `yaml:"channel"`
	AppID         string `yaml:"app_id"`
	Key           string `yaml:"key"`
	Secret        string `yaml:"secret"`
	Cluster       string `yaml:"cluster"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	RedisPrefix   string `yaml:"redis_prefix"`
	PublishErrors bool   `yaml:"publish_errors"`
}

type MProviderConfig struct {
	BaseURL         string `yaml:"base_url"`
	APIKey          string `yaml:"api_key"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
}

type MAgentConfig struct {
	Reasoner          string  `yaml:"reasoner"` // "openai" or "keyword"
	Model             string  `yaml:"model"`
	BaseURL           string  `yaml:"base_url"`
	APIKey            string  `yaml:"api_key"`
	Temperature       float64 `yaml:"temperature"`
	MaxSteps          int     `yaml:"max_steps"`
	RunTimeoutSeconds int     `yaml:"run_timeout_seconds"`
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type"` // "none", "sqlite" or "postgres"
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
}

type MNetworkConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Proxies        []string `yaml:"proxies"`
	RequestTimeout int      `yaml:"timeout"`
	MaxRetries     int      `yaml:"retries"`
	UserAgent      string   `yaml:"user_agent"`
}

type MClientConfig struct {
	LoadingTimeoutSeconds int `yaml:"loading_timeout_seconds"`
}
