package market

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/coinscribe/coinscribe/internal/models"
	"github.com/go-resty/resty/v2"
)

// SentimentAPIBase is the Fear & Greed index endpoint.
const SentimentAPIBase = "https://api.alternative.me"

// SentimentClient fetches the market sentiment index from its own external
// source. The index is optional context; collection continues without it.
type SentimentClient struct {
	http *resty.Client
}

// NewSentimentClient creates a new sentiment index client.
func NewSentimentClient() *SentimentClient {
	return &SentimentClient{
		http: resty.New().
			SetBaseURL(SentimentAPIBase).
			SetTimeout(15 * time.Second).
			SetRetryCount(2).
			SetRetryWaitTime(1 * time.Second),
	}
}

type fngResponse struct {
	Data []struct {
		Value          string `json:"value"`
		Classification string `json:"value_classification"`
	} `json:"data"`
}

// FetchSentiment retrieves the current fear/greed reading.
func (c *SentimentClient) FetchSentiment(ctx context.Context) (*models.SentimentIndex, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		Get("/fng/")

	if err != nil {
		return nil, fmt.Errorf("failed to fetch sentiment index: %w", err)
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("sentiment API returned %d: %s", resp.StatusCode(), resp.String())
	}

	var fng fngResponse
	if err := json.Unmarshal(resp.Body(), &fng); err != nil {
		return nil, fmt.Errorf("failed to parse sentiment index: %w", err)
	}

	if len(fng.Data) == 0 {
		return nil, fmt.Errorf("sentiment API returned no data")
	}

	value, err := strconv.Atoi(fng.Data[0].Value)
	if err != nil {
		return nil, fmt.Errorf("failed to parse sentiment value: %w", err)
	}

	return &models.SentimentIndex{
		Value:          value,
		Classification: fng.Data[0].Classification,
	}, nil
}
