// CoinScribe - AI-powered crypto article generation.
// Collects market data and generates editorial content on demand.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/coinscribe/coinscribe/internal/api"
	"github.com/coinscribe/coinscribe/internal/cache"
	"github.com/coinscribe/coinscribe/internal/config"
	"github.com/coinscribe/coinscribe/internal/generate"
	"github.com/coinscribe/coinscribe/internal/market"
	"github.com/coinscribe/coinscribe/internal/ratelimit"
	"github.com/coinscribe/coinscribe/internal/storage"
	"github.com/coinscribe/coinscribe/internal/worker"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	log.Info().Msg("CoinScribe - Starting generation engine")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx := context.Background()

	// Initialize storage
	store, err := storage.NewStore(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	defer store.Close(ctx)

	// Initialize cache on the shared MongoDB
	cacheSvc := cache.NewService(cache.NewMongo(ctx, store.Collection("cache")))
	log.Info().Msg("Cache initialized")

	// Initialize rate limiters: a shared one for the API, a local one
	// guarding the job queue.
	apiLimiter := ratelimit.NewMongoLimiter(ctx, store.Collection("ratelimit_events"))
	submitLimiter := ratelimit.NewMemoryLimiter()
	submitLimiter.Start()

	// Initialize market data clients
	coingecko := market.NewClient(cfg.CoinGeckoAPIKey)
	sentiment := market.NewSentimentClient()

	collectorCfg := market.DefaultCollectorConfig()
	collectorCfg.BatchDelay = cfg.BatchDelay
	collectorCfg.TrackedSymbols = cfg.TrackedSymbols
	collector := market.NewCollector(coingecko, coingecko, sentiment, cacheSvc, store, collectorCfg)
	log.Info().Strs("symbols", cfg.TrackedSymbols).Msg("Market collector initialized")

	// Initialize generation providers
	registry := generate.NewRegistry()
	if cfg.OpenAIAPIKey != "" {
		registry.Register(generate.NewOpenAIProvider(generate.OpenAIConfig{
			APIKey:   cfg.OpenAIAPIKey,
			Endpoint: cfg.OpenAIEndpoint,
			Model:    cfg.OpenAIModel,
		}))
		log.Info().Str("model", cfg.OpenAIModel).Msg("OpenAI provider initialized")
	} else {
		log.Warn().Msg("OpenAI provider not initialized (no API key)")
	}
	chain := generate.NewChain(registry, "openai", generate.NewOfflineProvider())

	// Initialize job runner
	runnerCfg := worker.DefaultConfig()
	runnerCfg.Concurrency = cfg.WorkerConcurrency
	runnerCfg.SubmitLimit = cfg.SubmitLimit
	runnerCfg.SubmitWindow = cfg.SubmitWindow

	runner := worker.NewRunner(store, collector, chain, cacheSvc, submitLimiter, runnerCfg)
	runner.Start()
	log.Info().Int("concurrency", runnerCfg.Concurrency).Msg("Job runner started")

	// Schedule periodic market collection
	sched := cron.New()
	if _, err := sched.AddFunc(cfg.CollectSchedule, func() {
		if err := collector.Collect(ctx); err != nil {
			log.Error().Err(err).Msg("Market collection failed")
		}
	}); err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.CollectSchedule).Msg("Invalid collection schedule")
	}
	sched.Start()

	// Initialize API server
	apiServer := api.NewServer(store, runner, collector, apiLimiter, api.RateLimitConfig{
		Limit:  cfg.APIRateLimit,
		Window: cfg.APIRateWindow,
	}, cfg.HTTPAddr)

	// Setup signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := apiServer.Start(); err != nil {
			log.Error().Err(err).Msg("API server error")
		}
	}()

	log.Info().
		Str("api", cfg.HTTPAddr).
		Str("schedule", cfg.CollectSchedule).
		Msg("CoinScribe engine running")

	// Wait for shutdown signal
	<-sigChan
	log.Info().Msg("Shutdown signal received")

	// Graceful shutdown
	shutdownCtx := context.Background()
	sched.Stop()
	runner.Stop()
	submitLimiter.Stop()
	apiServer.Shutdown(shutdownCtx)

	log.Info().Msg("CoinScribe engine stopped")
}
