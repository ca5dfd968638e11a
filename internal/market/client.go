// Package market provides batched, rate-paced collection of cryptocurrency
// market data with a caching layer and durable snapshots.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/coinscribe/coinscribe/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

const (
	// CoinGeckoAPIBase is the public market data endpoint.
	CoinGeckoAPIBase = "https://api.coingecko.com/api/v3"

	// MaxBatchSize is the per-call symbol cap imposed by the external API.
	MaxBatchSize = 250
)

// Client fetches price and global market data from CoinGecko.
type Client struct {
	http *resty.Client
}

// NewClient creates a new market data client. The per-call timeout lives
// here; the pipeline sets no outer deadline on collection.
func NewClient(apiKey string) *Client {
	c := resty.New().
		SetBaseURL(CoinGeckoAPIBase).
		SetTimeout(30 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second)

	if apiKey != "" {
		c.SetHeader("X-CG-Demo-API-Key", apiKey)
	}

	return &Client{http: c}
}

type coinMarket struct {
	ID          string  `json:"id"`
	Symbol      string  `json:"symbol"`
	Price       float64 `json:"current_price"`
	Change24h   float64 `json:"price_change_percentage_24h"`
	Volume      float64 `json:"total_volume"`
	MarketCap   float64 `json:"market_cap"`
	LastUpdated string  `json:"last_updated"`
}

// FetchMarkets retrieves market data for up to MaxBatchSize coin IDs in one
// external call. Results come back keyed by whatever order the API chose.
func (c *Client) FetchMarkets(ctx context.Context, symbols []string) ([]models.MarketDataPoint, error) {
	if len(symbols) > MaxBatchSize {
		return nil, fmt.Errorf("batch of %d exceeds maximum of %d symbols", len(symbols), MaxBatchSize)
	}

	log.Debug().Int("symbols", len(symbols)).Msg("Fetching market data")

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"vs_currency": "usd",
			"ids":         strings.Join(symbols, ","),
			"per_page":    fmt.Sprintf("%d", MaxBatchSize),
			"page":        "1",
			"sparkline":   "false",
		}).
		Get("/coins/markets")

	if err != nil {
		return nil, fmt.Errorf("failed to fetch markets: %w", err)
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("markets API returned %d: %s", resp.StatusCode(), resp.String())
	}

	var coins []coinMarket
	if err := json.Unmarshal(resp.Body(), &coins); err != nil {
		return nil, fmt.Errorf("failed to parse markets: %w", err)
	}

	points := make([]models.MarketDataPoint, 0, len(coins))
	for _, coin := range coins {
		updated, _ := time.Parse(time.RFC3339, coin.LastUpdated)
		points = append(points, models.MarketDataPoint{
			Symbol:      coin.ID,
			Price:       coin.Price,
			Change24h:   coin.Change24h,
			Volume:      coin.Volume,
			MarketCap:   coin.MarketCap,
			LastUpdated: updated,
		})
	}

	log.Debug().Int("count", len(points)).Msg("Fetched market data")
	return points, nil
}

type globalResponse struct {
	Data struct {
		TotalMarketCap      map[string]float64 `json:"total_market_cap"`
		MarketCapPercentage map[string]float64 `json:"market_cap_percentage"`
	} `json:"data"`
}

// FetchGlobal retrieves market-wide aggregates (total cap, BTC dominance).
func (c *Client) FetchGlobal(ctx context.Context) (*models.GlobalIndicators, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		Get("/global")

	if err != nil {
		return nil, fmt.Errorf("failed to fetch global data: %w", err)
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("global API returned %d: %s", resp.StatusCode(), resp.String())
	}

	var global globalResponse
	if err := json.Unmarshal(resp.Body(), &global); err != nil {
		return nil, fmt.Errorf("failed to parse global data: %w", err)
	}

	return &models.GlobalIndicators{
		TotalMarketCap: global.Data.TotalMarketCap["usd"],
		BTCDominance:   global.Data.MarketCapPercentage["btc"],
		FetchedAt:      time.Now(),
	}, nil
}
