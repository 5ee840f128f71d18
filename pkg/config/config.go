package config

import (
	"fmt"
	"time"

	"github.com/biodoia/gocareerflow/pkg/database"
	"github.com/spf13/viper"
)

// Config rappresenta la configurazione completa del core di orchestrazione
type Config struct {
	Database   database.Config  `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Cache      CacheConfig      `yaml:"cache"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Gateway    GatewayConfig    `yaml:"gateway"`
	Retry      RetryConfig      `yaml:"retry"`
	RateLimit  RateLimitConfig  `yaml:"ratelimit"`
	Workflow   WorkflowConfig   `yaml:"workflow"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
}

// RedisConfig configurazione Redis (layer di cache opzionale)
type RedisConfig struct {
	Host     string `yaml:"host"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// CacheConfig configurazione del response cache
type CacheConfig struct {
	Enabled    bool `yaml:"enabled"`
	MaxEntries int  `yaml:"max_entries"`
	// TTL = 0 mantiene le entry per tutta la vita del processo
	TTL          time.Duration `yaml:"ttl"`
	RedisEnabled bool          `yaml:"redis_enabled"`
	RedisTTL     time.Duration `yaml:"redis_ttl"`
}

// ProviderConfig configurazione di un singolo provider
type ProviderConfig struct {
	Enabled  bool    `yaml:"enabled"`
	APIKey   string  `yaml:"api_key"`
	Model    string  `yaml:"model"`
	BaseURL  string  `yaml:"base_url"`
	Priority int     `yaml:"priority"`
	Timeout  string  `yaml:"timeout"`
	Temp     float64 `yaml:"temperature"`
}

// ProvidersConfig configurazione di tutti i provider
type ProvidersConfig struct {
	Gemini  ProviderConfig `yaml:"gemini"`
	Mistral ProviderConfig `yaml:"mistral"`
	OpenAI  ProviderConfig `yaml:"openai"`
}

// GatewayConfig configurazione del provider gateway
type GatewayConfig struct {
	// Mode: "failover", "aggregate", "compare", "structured"
	Mode               string `yaml:"mode"`
	MaxRetries         int    `yaml:"max_retries"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute"` // 0 = unlimited
	CacheEnabled       bool   `yaml:"cache_enabled"`
	FallbackText       string `yaml:"fallback_text"`
}

// RetryConfig configurazione del backoff esponenziale
type RetryConfig struct {
	InitialBackoff    time.Duration `yaml:"initial_backoff"`
	MaxBackoff        time.Duration `yaml:"max_backoff"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
	Jitter            bool          `yaml:"jitter"`
}

// RateLimitConfig configurazione del rate limiter
type RateLimitConfig struct {
	// Algorithm: "sliding_window_log" o "token_bucket"
	Algorithm string        `yaml:"algorithm"`
	Window    time.Duration `yaml:"window"`
}

// WorkflowConfig configurazione dell'orchestrator
type WorkflowConfig struct {
	MaxWorkers   int           `yaml:"max_workers"`
	StageTimeout time.Duration `yaml:"stage_timeout"`
	Thresholds   Thresholds    `yaml:"thresholds"`
}

// Thresholds soglie di qualità per routing adattivo e quality gate
type Thresholds struct {
	MinimumConfidence      float64       `yaml:"minimum_confidence"`
	MaximumResponseTime    time.Duration `yaml:"maximum_response_time"`
	MinimumSuccessRate     float64       `yaml:"minimum_success_rate"`
	MinimumWorkflowQuality float64       `yaml:"minimum_workflow_quality"`
}

// MonitoringConfig configurazione monitoring
type MonitoringConfig struct {
	Prometheus struct {
		Enabled   bool   `yaml:"enabled"`
		Namespace string `yaml:"namespace"`
	} `yaml:"prometheus"`
	Server struct {
		Enabled bool   `yaml:"enabled"`
		Host    string `yaml:"host"`
		Port    int    `yaml:"port"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// Load carica la configurazione da file
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Read environment variables
	v.AutomaticEnv()
	_ = v.BindEnv("providers.gemini.api_key", "GEMINI_API_KEY")
	_ = v.BindEnv("providers.mistral.api_key", "MISTRAL_API_KEY")
	_ = v.BindEnv("providers.openai.api_key", "OPENAI_API_KEY")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found, use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults imposta i valori di default
func setDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.connection", "./data/careerflow.db")
	v.SetDefault("database.max_conns", 25)
	v.SetDefault("database.log_level", "warn")

	// Redis defaults
	v.SetDefault("redis.host", "localhost:6379")
	v.SetDefault("redis.db", 0)

	// Cache defaults
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.max_entries", 10000)
	v.SetDefault("cache.ttl", "0s")
	v.SetDefault("cache.redis_enabled", false)
	v.SetDefault("cache.redis_ttl", "30m")

	// Provider defaults
	v.SetDefault("providers.gemini.enabled", true)
	v.SetDefault("providers.gemini.model", "gemini-2.5-pro")
	v.SetDefault("providers.gemini.base_url", "https://generativelanguage.googleapis.com")
	v.SetDefault("providers.gemini.priority", 1)
	v.SetDefault("providers.gemini.timeout", "30s")
	v.SetDefault("providers.mistral.enabled", true)
	v.SetDefault("providers.mistral.model", "mistral-large-latest")
	v.SetDefault("providers.mistral.base_url", "https://api.mistral.ai")
	v.SetDefault("providers.mistral.priority", 2)
	v.SetDefault("providers.mistral.timeout", "30s")
	v.SetDefault("providers.openai.enabled", false)
	v.SetDefault("providers.openai.model", "gpt-4o-mini")
	v.SetDefault("providers.openai.base_url", "https://api.openai.com")
	v.SetDefault("providers.openai.priority", 3)
	v.SetDefault("providers.openai.timeout", "30s")

	// Gateway defaults
	v.SetDefault("gateway.mode", "failover")
	v.SetDefault("gateway.max_retries", 3)
	v.SetDefault("gateway.rate_limit_per_minute", 0)
	v.SetDefault("gateway.cache_enabled", true)
	v.SetDefault("gateway.fallback_text", "Fallback response - API providers unavailable")

	// Retry defaults
	v.SetDefault("retry.initial_backoff", "1s")
	v.SetDefault("retry.max_backoff", "10s")
	v.SetDefault("retry.backoff_multiplier", 2.0)
	v.SetDefault("retry.jitter", false)

	// Rate limit defaults
	v.SetDefault("ratelimit.algorithm", "sliding_window_log")
	v.SetDefault("ratelimit.window", "1m")

	// Workflow defaults
	v.SetDefault("workflow.max_workers", 3)
	v.SetDefault("workflow.stage_timeout", "30s")
	v.SetDefault("workflow.thresholds.minimum_confidence", 70)
	v.SetDefault("workflow.thresholds.maximum_response_time", "30s")
	v.SetDefault("workflow.thresholds.minimum_success_rate", 80)
	v.SetDefault("workflow.thresholds.minimum_workflow_quality", 70)

	// Monitoring defaults
	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.namespace", "careerflow")
	v.SetDefault("monitoring.server.enabled", false)
	v.SetDefault("monitoring.server.host", "0.0.0.0")
	v.SetDefault("monitoring.server.port", 8080)
	v.SetDefault("monitoring.logging.level", "info")
	v.SetDefault("monitoring.logging.format", "json")
}

// Validate valida la configurazione
func (c *Config) Validate() error {
	switch c.Gateway.Mode {
	case "failover", "aggregate", "compare", "structured":
	default:
		return fmt.Errorf("invalid gateway mode: %s", c.Gateway.Mode)
	}

	if c.Gateway.MaxRetries < 1 {
		return fmt.Errorf("gateway.max_retries must be >= 1, got %d", c.Gateway.MaxRetries)
	}

	if c.Gateway.RateLimitPerMinute < 0 {
		return fmt.Errorf("gateway.rate_limit_per_minute must be >= 0, got %d", c.Gateway.RateLimitPerMinute)
	}

	if c.Workflow.MaxWorkers < 1 {
		return fmt.Errorf("workflow.max_workers must be >= 1, got %d", c.Workflow.MaxWorkers)
	}

	switch c.RateLimit.Algorithm {
	case "sliding_window_log", "token_bucket":
	default:
		return fmt.Errorf("invalid ratelimit algorithm: %s", c.RateLimit.Algorithm)
	}

	return nil
}
