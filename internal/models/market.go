package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MarketDataPoint is the per-symbol market snapshot used as generation
// context. Points are cached for five minutes under "market:{symbol}" and
// replaced atomically on refresh, never partially updated.
type MarketDataPoint struct {
	Symbol      string    `bson:"symbol" json:"symbol"`
	Price       float64   `bson:"price" json:"price"`
	Change24h   float64   `bson:"change_24h" json:"change_24h"`
	Volume      float64   `bson:"volume" json:"volume"`
	MarketCap   float64   `bson:"market_cap" json:"market_cap"`
	LastUpdated time.Time `bson:"last_updated" json:"last_updated"`
}

// GlobalIndicators aggregates market-wide figures from a separate endpoint.
// Sentiment comes from an independent source and is nil when that call fails.
type GlobalIndicators struct {
	TotalMarketCap float64         `bson:"total_market_cap" json:"total_market_cap"`
	BTCDominance   float64         `bson:"btc_dominance" json:"btc_dominance"`
	Sentiment      *SentimentIndex `bson:"sentiment,omitempty" json:"sentiment,omitempty"`
	FetchedAt      time.Time       `bson:"fetched_at" json:"fetched_at"`
}

// SentimentIndex is a fear/greed style market sentiment reading.
type SentimentIndex struct {
	Value          int    `bson:"value" json:"value"` // 0-100
	Classification string `bson:"classification" json:"classification"`
}

// MarketSnapshot is a durable record of one collection run, kept for 30 days.
type MarketSnapshot struct {
	ID primitive.ObjectID `bson:"_id,omitempty" json:"id"`

	Points     []MarketDataPoint `bson:"points" json:"points"`
	Global     *GlobalIndicators `bson:"global,omitempty" json:"global,omitempty"`
	CapturedAt time.Time         `bson:"captured_at" json:"captured_at"`
}
