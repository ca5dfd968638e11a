package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", cfg.OpenAIModel)
	assert.Equal(t, []string{"bitcoin", "ethereum", "solana", "ripple", "cardano"}, cfg.TrackedSymbols)
	assert.Equal(t, 6*time.Second, cfg.BatchDelay)
	assert.Equal(t, 2, cfg.WorkerConcurrency)
	assert.Equal(t, 5, cfg.SubmitLimit)
	assert.Equal(t, time.Minute, cfg.SubmitWindow)
	assert.Equal(t, 10*time.Second, cfg.PollInterval)
	assert.Equal(t, 30, cfg.PollMaxAttempts)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("WORKER_CONCURRENCY", "4")
	t.Setenv("BATCH_DELAY", "2s")
	t.Setenv("TRACKED_SYMBOLS", "bitcoin, dogecoin ,")
	t.Setenv("DEBUG", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.WorkerConcurrency)
	assert.Equal(t, 2*time.Second, cfg.BatchDelay)
	assert.Equal(t, []string{"bitcoin", "dogecoin"}, cfg.TrackedSymbols)
	assert.True(t, cfg.Debug)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("WORKER_CONCURRENCY", "many")
	t.Setenv("BATCH_DELAY", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.WorkerConcurrency)
	assert.Equal(t, 6*time.Second, cfg.BatchDelay)
}
