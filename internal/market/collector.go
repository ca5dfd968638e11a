package market

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coinscribe/coinscribe/internal/cache"
	"github.com/coinscribe/coinscribe/internal/models"
	"github.com/rs/zerolog/log"
)

// DefaultBatchDelay paces sequential batch calls to stay inside the external
// API's rate limit.
const DefaultBatchDelay = 6 * time.Second

// DefaultSnapshotRetention is how long collected snapshots are kept.
const DefaultSnapshotRetention = 30 * 24 * time.Hour

// PriceAPI fetches per-symbol market data, at most MaxBatchSize per call.
type PriceAPI interface {
	FetchMarkets(ctx context.Context, symbols []string) ([]models.MarketDataPoint, error)
}

// GlobalAPI fetches market-wide aggregates.
type GlobalAPI interface {
	FetchGlobal(ctx context.Context) (*models.GlobalIndicators, error)
}

// SentimentAPI fetches the optional sentiment index.
type SentimentAPI interface {
	FetchSentiment(ctx context.Context) (*models.SentimentIndex, error)
}

// SnapshotStore persists collection runs.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snapshot *models.MarketSnapshot) error
	CleanOldSnapshots(ctx context.Context, olderThan time.Duration) (int64, error)
}

// CollectorConfig holds collector tunables.
type CollectorConfig struct {
	BatchDelay        time.Duration
	SnapshotRetention time.Duration

	// Symbols refreshed by periodic Collect runs.
	TrackedSymbols []string
}

// DefaultCollectorConfig returns the default configuration.
func DefaultCollectorConfig() CollectorConfig {
	return CollectorConfig{
		BatchDelay:        DefaultBatchDelay,
		SnapshotRetention: DefaultSnapshotRetention,
		TrackedSymbols:    []string{"bitcoin", "ethereum", "solana", "ripple", "cardano"},
	}
}

// Collector performs batched, delay-paced market data fetches with a
// memoizing cache in front of the external API.
type Collector struct {
	prices    PriceAPI
	global    GlobalAPI
	sentiment SentimentAPI
	cache     *cache.Service
	store     SnapshotStore
	config    CollectorConfig

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time

	sweepMu   sync.Mutex
	lastSweep time.Time
}

// NewCollector creates a new collector. sentiment and store may be nil for
// callers that only need FetchBatch.
func NewCollector(prices PriceAPI, global GlobalAPI, sentiment SentimentAPI, cacheSvc *cache.Service, store SnapshotStore, config CollectorConfig) *Collector {
	if config.BatchDelay <= 0 {
		config.BatchDelay = DefaultBatchDelay
	}
	if config.SnapshotRetention <= 0 {
		config.SnapshotRetention = DefaultSnapshotRetention
	}

	return &Collector{
		prices:    prices,
		global:    global,
		sentiment: sentiment,
		cache:     cacheSvc,
		store:     store,
		config:    config,
		sleep:     sleepCtx,
		now:       time.Now,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// FetchBatch returns one data point per requested symbol, preserving input
// order. Cached points (5-minute TTL) are served directly; the rest are
// fetched in sequential batches of at most MaxBatchSize, with a mandatory
// delay between batches. A symbol the external API does not know comes back
// as a zero-valued point carrying only the symbol.
func (c *Collector) FetchBatch(ctx context.Context, symbols []string) ([]models.MarketDataPoint, error) {
	points := make([]models.MarketDataPoint, len(symbols))
	resolved := make(map[string]models.MarketDataPoint, len(symbols))

	var missing []string
	seen := make(map[string]bool, len(symbols))
	for _, symbol := range symbols {
		if seen[symbol] {
			continue
		}
		seen[symbol] = true

		var point models.MarketDataPoint
		if c.cache.Get(ctx, cache.MarketKeyPrefix+symbol, &point) {
			resolved[symbol] = point
			continue
		}
		missing = append(missing, symbol)
	}

	for start := 0; start < len(missing); start += MaxBatchSize {
		if start > 0 {
			if err := c.sleep(ctx, c.config.BatchDelay); err != nil {
				return nil, err
			}
		}

		end := start + MaxBatchSize
		if end > len(missing) {
			end = len(missing)
		}

		fetched, err := c.prices.FetchMarkets(ctx, missing[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to fetch market batch: %w", err)
		}

		for _, point := range fetched {
			resolved[point.Symbol] = point
			// A symbol's point is replaced atomically: one cache entry each.
			if err := c.cache.Set(ctx, cache.MarketKeyPrefix+point.Symbol, point, cache.MarketTTL); err != nil {
				log.Warn().Err(err).Str("symbol", point.Symbol).Msg("Failed to cache market point")
			}
		}
	}

	for i, symbol := range symbols {
		point, ok := resolved[symbol]
		if !ok {
			point = models.MarketDataPoint{Symbol: symbol}
		}
		points[i] = point
	}

	return points, nil
}

// FetchGlobalIndicators aggregates global figures and, best-effort, the
// sentiment index. A sentiment failure is logged and leaves the field nil;
// it never aborts the rest of the collection.
func (c *Collector) FetchGlobalIndicators(ctx context.Context) (*models.GlobalIndicators, error) {
	global, err := c.global.FetchGlobal(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch global indicators: %w", err)
	}

	if c.sentiment != nil {
		index, err := c.sentiment.FetchSentiment(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to fetch sentiment index, continuing without it")
		} else {
			global.Sentiment = index
		}
	}

	return global, nil
}

// Collect runs one periodic collection pass: refresh tracked symbols, fetch
// global indicators, persist a snapshot, and opportunistically sweep old
// snapshots at most once per day.
func (c *Collector) Collect(ctx context.Context) error {
	points, err := c.FetchBatch(ctx, c.config.TrackedSymbols)
	if err != nil {
		return fmt.Errorf("collection failed: %w", err)
	}

	global, err := c.FetchGlobalIndicators(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to fetch global indicators, snapshot will omit them")
		global = nil
	}

	if c.store != nil {
		snapshot := &models.MarketSnapshot{
			Points:     points,
			Global:     global,
			CapturedAt: c.now(),
		}
		if err := c.store.SaveSnapshot(ctx, snapshot); err != nil {
			return fmt.Errorf("failed to persist snapshot: %w", err)
		}
	}

	log.Info().Int("symbols", len(points)).Msg("Market collection complete")

	c.maybeSweep(ctx)
	return nil
}

// maybeSweep deletes snapshots past retention, at most once per day.
func (c *Collector) maybeSweep(ctx context.Context) {
	if c.store == nil {
		return
	}

	c.sweepMu.Lock()
	due := c.now().Sub(c.lastSweep) >= 24*time.Hour
	if due {
		c.lastSweep = c.now()
	}
	c.sweepMu.Unlock()

	if !due {
		return
	}

	deleted, err := c.store.CleanOldSnapshots(ctx, c.config.SnapshotRetention)
	if err != nil {
		log.Error().Err(err).Msg("Snapshot retention sweep failed")
		return
	}
	log.Info().Int64("deleted", deleted).Msg("Snapshot retention sweep complete")
}
