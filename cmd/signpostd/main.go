// Command signpostd is the Signpost service matching and recommendation
// server.
package main

import (
	"context"
	"crypto/sha256"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kaede-app/signpost/internal/api"
	"github.com/kaede-app/signpost/internal/config"
	"github.com/kaede-app/signpost/internal/cooldown"
	"github.com/kaede-app/signpost/internal/embedder"
	"github.com/kaede-app/signpost/internal/health"
	"github.com/kaede-app/signpost/internal/match"
	"github.com/kaede-app/signpost/internal/observe"
	"github.com/kaede-app/signpost/internal/recommend"
	"github.com/kaede-app/signpost/internal/registry"
	"github.com/kaede-app/signpost/internal/resilience"
	"github.com/kaede-app/signpost/pkg/embeddings"
	"github.com/kaede-app/signpost/pkg/embeddings/mock"
	ollamaembed "github.com/kaede-app/signpost/pkg/embeddings/ollama"
	oaembed "github.com/kaede-app/signpost/pkg/embeddings/openai"
)

// version is overridden at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "signpostd: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "signpostd: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("signpostd starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "signpost",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Service registry ──────────────────────────────────────────────────────
	reg, err := registry.Load(cfg.Registry.Path)
	if err != nil {
		slog.Error("failed to load service registry", "path", cfg.Registry.Path, "err", err)
		return 1
	}
	slog.Info("service registry loaded", "path", cfg.Registry.Path, "services", reg.Len())

	// ── Embedding provider ────────────────────────────────────────────────────
	var emb *embedder.Embedder
	if cfg.Recommend.SemanticEnabled() && cfg.Embeddings.Name != "" {
		provider, err := buildEmbeddingProvider(cfg.Embeddings)
		if err != nil {
			slog.Error("failed to build embedding provider", "name", cfg.Embeddings.Name, "err", err)
			return 1
		}
		emb, err = embedder.New(provider, embedder.Config{
			CacheSize:  cfg.Embeddings.CacheSize,
			MaxTextLen: cfg.Embeddings.MaxTextLen,
		}, metrics)
		if err != nil {
			slog.Error("failed to build embedder", "err", err)
			return 1
		}
	}

	// ── History backend ───────────────────────────────────────────────────────
	store, vectorStore, closeStore, err := buildHistoryStore(ctx, cfg, emb)
	if err != nil {
		slog.Error("failed to build history store", "backend", cfg.History.Backend, "err", err)
		return 1
	}
	if closeStore != nil {
		defer closeStore()
	}
	tracker := cooldown.NewTracker(store, metrics)

	// ── Matching pipeline ─────────────────────────────────────────────────────
	var semantic *match.SemanticMatcher
	if emb != nil {
		semantic = match.NewSemanticMatcher(emb, reg, vectorStore)
		if err := semantic.Warm(ctx); err != nil {
			// Missing vectors only shrink the semantic tier; the pipeline
			// still runs on criteria and keyword matching.
			slog.Warn("semantic warm-up incomplete", "err", err)
		}
	}

	coordinator := recommend.New(reg, semantic, tracker, metrics, recommend.Options{
		ConfidenceThreshold: cfg.Recommend.ConfidenceThreshold,
		RetryFloor:          cfg.Recommend.RetryFloor,
		MaxResults:          cfg.Recommend.MaxResults,
		EnableSemanticTier:  cfg.Recommend.SemanticEnabled(),
		ResultCacheSize:     cfg.Recommend.ResultCacheSize,
		ResultCacheTTL:      cfg.Recommend.ResultCacheTTL,
	})
	prefilter := recommend.NewPrefilter(emb, nil)

	// ── HTTP server ───────────────────────────────────────────────────────────
	server := api.New(cfg.Server.ListenAddr, coordinator, prefilter, metrics,
		healthCheckers(reg, emb, store)...)

	printStartupSummary(cfg, reg.Len())

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	slog.Info("server ready — press Ctrl+C to shut down")

	select {
	case err := <-errCh:
		if err != nil {
			slog.Error("http server error", "err", err)
			return 1
		}
	case <-ctx.Done():
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Component wiring ──────────────────────────────────────────────────────────

// buildEmbeddingProvider constructs the configured embeddings backend.
func buildEmbeddingProvider(cfg config.EmbeddingsConfig) (embeddings.Provider, error) {
	switch cfg.Name {
	case "openai":
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		var opts []oaembed.Option
		if cfg.BaseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(cfg.BaseURL))
		}
		return oaembed.New(apiKey, cfg.Model, opts...)
	case "ollama":
		return ollamaembed.New(cfg.BaseURL, cfg.Model)
	case "mock":
		// Deterministic offline provider for local development: vectors are
		// derived from a hash of the text, so similar inputs do not cluster
		// but the pipeline is fully exercisable without credentials.
		return &mock.Provider{
			EmbedFunc:       mockVector,
			DimensionsValue: mockDimensions,
			ModelIDValue:    "mock",
		}, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Name)
	}
}

// buildHistoryStore constructs the configured history backend. Durable
// backends are wrapped in a fallback chain ending at an in-process store so a
// backend outage degrades durability, never availability. The returned
// match.VectorStore is non-nil only for the postgres backend.
func buildHistoryStore(ctx context.Context, cfg *config.Config, emb *embedder.Embedder) (cooldown.HistoryStore, match.VectorStore, func(), error) {
	switch cfg.History.Backend {
	case config.HistoryPostgres:
		dims := 0
		if emb != nil {
			dims = emb.Dimensions()
		}
		pg, err := cooldown.NewPostgresStore(ctx, cfg.History.PostgresDSN, dims)
		if err != nil {
			return nil, nil, nil, err
		}
		fb := cooldown.NewFallbackStore(pg, "postgres", resilience.FallbackConfig{})
		fb.AddFallback("memory", cooldown.NewMemoryStore())
		return fb, pg, pg.Close, nil

	case config.HistoryRedis:
		rd, err := cooldown.NewRedisStore(ctx, cfg.History.RedisAddr, cfg.History.RedisPassword, cfg.History.RedisDB)
		if err != nil {
			return nil, nil, nil, err
		}
		fb := cooldown.NewFallbackStore(rd, "redis", resilience.FallbackConfig{})
		fb.AddFallback("memory", cooldown.NewMemoryStore())
		return fb, nil, func() { _ = rd.Close() }, nil

	default:
		return cooldown.NewMemoryStore(), nil, nil, nil
	}
}

// healthCheckers assembles the /readyz probes.
func healthCheckers(reg *registry.Registry, emb *embedder.Embedder, store cooldown.HistoryStore) []health.Checker {
	checkers := []health.Checker{
		{
			Name: "registry",
			Check: func(context.Context) error {
				if reg.Len() == 0 {
					return errors.New("service registry is empty")
				}
				return nil
			},
		},
		{
			Name: "history",
			Check: func(ctx context.Context) error {
				_, _, err := store.LastShown(ctx, "healthcheck", "healthcheck")
				return err
			},
		},
	}
	if emb != nil {
		checkers = append(checkers, health.Checker{
			Name: "embeddings",
			Check: func(context.Context) error {
				if !emb.Available() {
					return errors.New("embedding provider circuit is open")
				}
				return nil
			},
		})
	}
	return checkers
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, serviceCount int) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        Signpost — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	embName := cfg.Embeddings.Name
	if embName == "" || !cfg.Recommend.SemanticEnabled() {
		embName = "(disabled)"
	} else if cfg.Embeddings.Model != "" {
		embName += " / " + cfg.Embeddings.Model
	}
	fmt.Printf("║  Embeddings      : %-19s║\n", embName)
	backend := cfg.History.Backend
	if backend == "" {
		backend = config.HistoryMemory
	}
	fmt.Printf("║  History backend : %-19s║\n", backend)
	fmt.Printf("║  Services        : %-19d║\n", serviceCount)
	fmt.Printf("║  Listen addr     : %-19s║\n", cfg.Server.ListenAddr)
	fmt.Println("╚═══════════════════════════════════════╝")
}

// ── Helpers ───────────────────────────────────────────────────────────────────

const mockDimensions = 64

// mockVector derives a unit-normalised pseudo-embedding from a hash of text.
func mockVector(text string) ([]float32, error) {
	sum := sha256.Sum256([]byte(text))
	vec := make([]float32, mockDimensions)
	var norm float64
	for i := range vec {
		// Spread the 32 digest bytes over 64 components.
		b := sum[i%len(sum)]
		v := float64(int(b)-128) / 128
		vec[i] = float32(v)
		norm += v * v
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec, nil
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
