package generate

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Chain runs a configured primary provider with the offline generator as a
// guaranteed fallback. Generate always returns a well-formed draft: the
// chain favors availability over content authenticity, and the draft's
// GeneratedBy field records which path produced it.
type Chain struct {
	registry *Registry
	primary  string
	fallback Provider
}

// NewChain creates a chain around the registry. primary names the provider
// attempted first; fallback must be infallible (the offline generator).
func NewChain(registry *Registry, primary string, fallback Provider) *Chain {
	return &Chain{
		registry: registry,
		primary:  primary,
		fallback: fallback,
	}
}

// Generate attempts the primary provider and falls back on any failure:
// unknown provider, failed capability probe, or a generation error.
func (c *Chain) Generate(ctx context.Context, req Request) (*Draft, error) {
	provider, err := c.registry.Get(c.primary)
	if err != nil {
		log.Warn().Err(err).Str("provider", c.primary).Msg("Primary provider missing, using fallback")
		return c.fallback.Generate(ctx, req)
	}

	if !provider.Available(ctx) {
		log.Warn().Str("provider", c.primary).Msg("Primary provider unavailable, using fallback")
		return c.fallback.Generate(ctx, req)
	}

	draft, err := provider.Generate(ctx, req)
	if err != nil {
		log.Warn().Err(err).Str("provider", c.primary).Msg("Primary provider failed, using fallback")
		return c.fallback.Generate(ctx, req)
	}

	return draft, nil
}
