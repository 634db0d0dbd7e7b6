// Package config provides the configuration schema and loader for the
// Signpost recommendation service.
package config

import "time"

// LogLevel controls log verbosity for the Signpost server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// HistoryBackend selects where recommendation history is persisted.
type HistoryBackend string

const (
	// HistoryMemory keeps history in-process only.
	HistoryMemory HistoryBackend = "memory"

	// HistoryPostgres persists history (and service embeddings) in PostgreSQL.
	HistoryPostgres HistoryBackend = "postgres"

	// HistoryRedis keeps last-shown timestamps in Redis.
	HistoryRedis HistoryBackend = "redis"
)

// IsValid reports whether b is a recognised history backend.
func (b HistoryBackend) IsValid() bool {
	switch b {
	case HistoryMemory, HistoryPostgres, HistoryRedis:
		return true
	}
	return false
}

// Config is the root configuration structure for Signpost.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	History    HistoryConfig    `yaml:"history"`
	Registry   RegistryConfig   `yaml:"registry"`
	Recommend  RecommendConfig  `yaml:"recommend"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// EmbeddingsConfig selects and tunes the embedding provider.
type EmbeddingsConfig struct {
	// Name selects the provider implementation: "openai", "ollama" or "mock".
	Name string `yaml:"name"`

	// APIKey is the provider's authentication key, if any. When empty the
	// OPENAI_API_KEY environment variable is used for the openai provider.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects the embedding model (e.g., "text-embedding-3-small").
	Model string `yaml:"model"`

	// CacheSize bounds the embedding LRU cache. Default 100.
	CacheSize int `yaml:"cache_size"`

	// MaxTextLen truncates input text before embedding. Default 8000.
	MaxTextLen int `yaml:"max_text_len"`
}

// HistoryConfig selects the recommendation-history backend.
type HistoryConfig struct {
	// Backend is one of "memory", "postgres", "redis". Default "memory".
	// The durable backends always degrade to an in-process store when down.
	Backend HistoryBackend `yaml:"backend"`

	// PostgresDSN is the connection string for the postgres backend.
	PostgresDSN string `yaml:"postgres_dsn"`

	// RedisAddr is the host:port for the redis backend.
	RedisAddr string `yaml:"redis_addr"`

	// RedisPassword authenticates against Redis, if required.
	RedisPassword string `yaml:"redis_password"`

	// RedisDB selects the Redis logical database.
	RedisDB int `yaml:"redis_db"`
}

// RegistryConfig locates the service catalogue.
type RegistryConfig struct {
	// Path is the YAML file holding the service registry.
	Path string `yaml:"path"`
}

// RecommendConfig tunes the matching pipeline.
type RecommendConfig struct {
	// ConfidenceThreshold is the minimum score for a primary-pass match.
	// Default 0.65.
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`

	// RetryFloor is the lowered threshold for the explicit-request retry.
	// Default 0.40.
	RetryFloor float64 `yaml:"retry_floor"`

	// MaxResults caps the returned list. Default 3.
	MaxResults int `yaml:"max_results"`

	// EnableSemanticTier gates embedding-based matching. Default true.
	EnableSemanticTier *bool `yaml:"enable_semantic_tier"`

	// ResultCacheTTL bounds how long scored candidate sets are reused.
	// Default 30m.
	ResultCacheTTL time.Duration `yaml:"result_cache_ttl"`

	// ResultCacheSize bounds the result cache. Default 256.
	ResultCacheSize int `yaml:"result_cache_size"`
}

// SemanticEnabled resolves the EnableSemanticTier tri-state with its default.
func (c RecommendConfig) SemanticEnabled() bool {
	if c.EnableSemanticTier == nil {
		return true
	}
	return *c.EnableSemanticTier
}
