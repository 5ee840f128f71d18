package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/biodoia/gocareerflow/internal/gateway"
	"github.com/biodoia/gocareerflow/internal/providers"
	"github.com/biodoia/gocareerflow/internal/providers/gemini"
	"github.com/biodoia/gocareerflow/internal/providers/mistral"
	"github.com/biodoia/gocareerflow/internal/providers/openai"
	"github.com/biodoia/gocareerflow/internal/ratelimit"
	"github.com/biodoia/gocareerflow/internal/stats"
	"github.com/biodoia/gocareerflow/internal/workflow"
	"github.com/biodoia/gocareerflow/pkg/cache"
	"github.com/biodoia/gocareerflow/pkg/config"
	"github.com/biodoia/gocareerflow/pkg/database"
	"github.com/biodoia/gocareerflow/pkg/resilience"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// setupLogger configura il logger globale zerolog
func setupLogger(level, format string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		})
	} else {
		// JSON output per produzione
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	}
}

// loadConfig carica la configurazione e imposta il logger
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	level, _ := cmd.Flags().GetString("log-level")
	if level == "" || level == "info" {
		level = cfg.Monitoring.Logging.Level
	}
	setupLogger(level, cfg.Monitoring.Logging.Format)

	return cfg, nil
}

// initDB apre la connessione al database dalla configurazione
func initDB(cmd *cobra.Command) (*database.DB, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return database.New(&cfg.Database)
}

// providerTimeout converte il timeout configurato di un provider
func providerTimeout(raw string) time.Duration {
	timeout, err := time.ParseDuration(raw)
	if err != nil || timeout <= 0 {
		return 30 * time.Second
	}
	return timeout
}

// buildRegistry costruisce il registry dei provider dalla configurazione
func buildRegistry(cfg *config.Config) (*providers.Registry, error) {
	registry := providers.NewRegistry()

	if cfg.Providers.Gemini.Enabled {
		p := cfg.Providers.Gemini
		client := gemini.NewClient(p.BaseURL, p.APIKey, p.Model, p.Priority, providerTimeout(p.Timeout))
		if err := registry.Register(client); err != nil {
			return nil, err
		}
	}

	if cfg.Providers.Mistral.Enabled {
		p := cfg.Providers.Mistral
		client := mistral.NewClient(p.BaseURL, p.APIKey, p.Model, p.Priority, providerTimeout(p.Timeout))
		if err := registry.Register(client); err != nil {
			return nil, err
		}
	}

	if cfg.Providers.OpenAI.Enabled {
		p := cfg.Providers.OpenAI
		client := openai.NewClient(p.BaseURL, p.APIKey, p.Model, p.Priority, providerTimeout(p.Timeout))
		if err := registry.Register(client); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

// buildCache costruisce il response cache dalla configurazione
func buildCache(cfg *config.Config) (cache.Cache, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}

	mlc, err := cache.NewMultiLayerCache(&cache.Config{
		MemoryEnabled:    true,
		MemoryMaxEntries: cfg.Cache.MaxEntries,
		MemoryTTL:        cfg.Cache.TTL,
		RedisEnabled:     cfg.Cache.RedisEnabled,
		RedisHost:        cfg.Redis.Host,
		RedisPassword:    cfg.Redis.Password,
		RedisDB:          cfg.Redis.DB,
		RedisTTL:         cfg.Cache.RedisTTL,
	})
	if err != nil {
		return nil, err
	}
	return mlc, nil
}

// buildLimiter costruisce il rate limiter dalla configurazione.
// Con rate_limit_per_minute = 0 il limiter ammette tutte le richieste.
func buildLimiter(cfg *config.Config) (ratelimit.Limiter, error) {
	window := cfg.RateLimit.Window
	if window <= 0 {
		window = time.Minute
	}

	return ratelimit.New(ratelimit.Config{
		Algorithm: ratelimit.Algorithm(cfg.RateLimit.Algorithm),
		Limit:     int64(cfg.Gateway.RateLimitPerMinute),
		Window:    window,
	})
}

// buildGateway assembla il gateway con cache, limiter e statistiche
func buildGateway(cfg *config.Config, registry *providers.Registry, collector *stats.Collector, exporter *stats.PrometheusExporter) (*gateway.Gateway, error) {
	opts := []gateway.Option{}

	if collector != nil {
		opts = append(opts, gateway.WithCollector(collector))
	}
	if exporter != nil {
		opts = append(opts, gateway.WithExporter(exporter))
	}

	responseCache, err := buildCache(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build cache: %w", err)
	}
	if responseCache != nil {
		opts = append(opts, gateway.WithCache(responseCache))
	}

	limiter, err := buildLimiter(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build rate limiter: %w", err)
	}
	opts = append(opts, gateway.WithLimiter(limiter))

	return gateway.New(gateway.Config{
		Mode:         gateway.CombinationMode(cfg.Gateway.Mode),
		MaxRetries:   cfg.Gateway.MaxRetries,
		CacheEnabled: cfg.Gateway.CacheEnabled,
		FallbackText: cfg.Gateway.FallbackText,
		Retry: resilience.RetryConfig{
			InitialBackoff:    cfg.Retry.InitialBackoff,
			MaxBackoff:        cfg.Retry.MaxBackoff,
			BackoffMultiplier: cfg.Retry.BackoffMultiplier,
			Jitter:            cfg.Retry.Jitter,
		},
	}, registry, opts...), nil
}

// buildRunners costruisce i runner gateway-backed per gli stage del workflow
func buildRunners(gw *gateway.Gateway, settings providers.Settings) map[workflow.Stage]workflow.Runner {
	return map[workflow.Stage]workflow.Runner{
		workflow.StageResumeParsing:   workflow.NewGatewayAgent(workflow.StageResumeParsing, "resume_parser", gw, settings),
		workflow.StageJobMatching:     workflow.NewGatewayAgent(workflow.StageJobMatching, "job_matcher", gw, settings),
		workflow.StageSkillAnalysis:   workflow.NewGatewayAgent(workflow.StageSkillAnalysis, "skill_analyst", gw, settings),
		workflow.StageResultSynthesis: workflow.NewGatewayAgent(workflow.StageResultSynthesis, "synthesizer", gw, settings),
	}
}

// workflowConfig converte la configurazione del workflow
func workflowConfig(cfg *config.Config) workflow.Config {
	return workflow.Config{
		MaxWorkers:   cfg.Workflow.MaxWorkers,
		StageTimeout: cfg.Workflow.StageTimeout,
		Thresholds: workflow.Thresholds{
			MinimumConfidence:      cfg.Workflow.Thresholds.MinimumConfidence,
			MaximumResponseTime:    cfg.Workflow.Thresholds.MaximumResponseTime,
			MinimumSuccessRate:     cfg.Workflow.Thresholds.MinimumSuccessRate,
			MinimumWorkflowQuality: cfg.Workflow.Thresholds.MinimumWorkflowQuality,
		},
	}
}

// printJSON stampa un valore come JSON indentato su stdout
func printJSON(data interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
