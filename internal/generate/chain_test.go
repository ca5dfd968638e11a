package generate

import (
	"context"
	"errors"
	"testing"

	"github.com/coinscribe/coinscribe/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	name      string
	available bool
	err       error
	calls     int
}

func (s *stubProvider) Name() string                       { return s.name }
func (s *stubProvider) Available(ctx context.Context) bool { return s.available }
func (s *stubProvider) Generate(ctx context.Context, req Request) (*Draft, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &Draft{Title: "Primary Draft", Content: "body", GeneratedBy: s.name}, nil
}

func testRequest() Request {
	return Request{
		Topic: &models.Topic{
			TopicID: "t1",
			Title:   "Bitcoin Breaks Resistance",
			Symbols: []string{"bitcoin"},
		},
		Market: []models.MarketDataPoint{
			{Symbol: "bitcoin", Price: 97500, Change24h: 3.2, Volume: 4.1e10},
		},
		Settings: models.DefaultSettings(),
	}
}

func TestChainPrefersPrimary(t *testing.T) {
	registry := NewRegistry()
	primary := &stubProvider{name: "openai", available: true}
	registry.Register(primary)

	chain := NewChain(registry, "openai", NewOfflineProvider())
	draft, err := chain.Generate(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, "openai", draft.GeneratedBy)
}

func TestChainFallsBackOnGenerationError(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&stubProvider{name: "openai", available: true, err: errors.New("quota exceeded")})

	chain := NewChain(registry, "openai", NewOfflineProvider())
	draft, err := chain.Generate(context.Background(), testRequest())
	require.NoError(t, err, "fallback must absorb primary failure")

	assert.Equal(t, FallbackName, draft.GeneratedBy)
	assert.NotEmpty(t, draft.Title)
	assert.NotEmpty(t, draft.Content)
}

func TestChainFallsBackWhenUnavailable(t *testing.T) {
	registry := NewRegistry()
	primary := &stubProvider{name: "openai", available: false}
	registry.Register(primary)

	chain := NewChain(registry, "openai", NewOfflineProvider())
	draft, err := chain.Generate(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Zero(t, primary.calls, "unavailable provider must not be invoked")
	assert.Equal(t, FallbackName, draft.GeneratedBy)
}

func TestChainFallsBackWhenUnregistered(t *testing.T) {
	chain := NewChain(NewRegistry(), "openai", NewOfflineProvider())
	draft, err := chain.Generate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, FallbackName, draft.GeneratedBy)
}

func TestRegistryReplaceAndLookup(t *testing.T) {
	registry := NewRegistry()
	first := &stubProvider{name: "openai", available: true}
	second := &stubProvider{name: "openai", available: false}
	registry.Register(first)
	registry.Register(second)

	p, err := registry.Get("openai")
	require.NoError(t, err)
	assert.Same(t, Provider(second), p)

	_, err = registry.Get("missing")
	assert.Error(t, err)
}
