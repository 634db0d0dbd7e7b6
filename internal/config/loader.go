package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidEmbeddingProviders lists the recognised embedding provider names.
// [Validate] warns (not errors) on unknown names so experimental providers
// can still be wired up externally.
var ValidEmbeddingProviders = []string{"openai", "ollama", "mock"}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Embeddings.Name != "" && !slices.Contains(ValidEmbeddingProviders, cfg.Embeddings.Name) {
		slog.Warn("unrecognised embedding provider name", "name", cfg.Embeddings.Name, "known", ValidEmbeddingProviders)
	}
	if cfg.Embeddings.Name == "" && cfg.Recommend.SemanticEnabled() {
		slog.Warn("no embedding provider configured; the semantic tier will be disabled")
	}

	if cfg.History.Backend != "" && !cfg.History.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("history.backend %q is invalid; valid values: memory, postgres, redis", cfg.History.Backend))
	}
	if cfg.History.Backend == HistoryPostgres && cfg.History.PostgresDSN == "" {
		errs = append(errs, errors.New("history.postgres_dsn is required when history.backend is postgres"))
	}
	if cfg.History.Backend == HistoryRedis && cfg.History.RedisAddr == "" {
		errs = append(errs, errors.New("history.redis_addr is required when history.backend is redis"))
	}

	if cfg.Registry.Path == "" {
		errs = append(errs, errors.New("registry.path is required"))
	}

	r := cfg.Recommend
	if r.ConfidenceThreshold < 0 || r.ConfidenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("recommend.confidence_threshold %v must be in [0,1]", r.ConfidenceThreshold))
	}
	if r.RetryFloor < 0 || r.RetryFloor > 1 {
		errs = append(errs, fmt.Errorf("recommend.retry_floor %v must be in [0,1]", r.RetryFloor))
	}
	if r.RetryFloor > r.ConfidenceThreshold && r.ConfidenceThreshold > 0 {
		errs = append(errs, fmt.Errorf("recommend.retry_floor %v must not exceed recommend.confidence_threshold %v", r.RetryFloor, r.ConfidenceThreshold))
	}
	if r.MaxResults < 0 {
		errs = append(errs, fmt.Errorf("recommend.max_results %d must not be negative", r.MaxResults))
	}

	return errors.Join(errs...)
}
