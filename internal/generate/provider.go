// Package generate provides the content generation provider chain: a
// registry of named providers, a primary backed by an external AI API, and a
// deterministic offline fallback. The chain always yields a well-formed
// draft; provider failure alone never fails a generation.
package generate

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/coinscribe/coinscribe/internal/models"
)

// Request carries everything a provider needs to write an article.
type Request struct {
	Topic    *models.Topic
	Template *models.Template
	Market   []models.MarketDataPoint
	Global   *models.GlobalIndicators
	Settings models.GenerationSettings
}

// Draft is the provider output before persistence.
type Draft struct {
	Title    string                  `json:"title"`
	Content  string                  `json:"content"`
	Summary  string                  `json:"summary"`
	Sections []models.ArticleSection `json:"sections,omitempty"`

	WordCount int `json:"word_count"`

	// Name of the provider that produced this draft.
	GeneratedBy string `json:"generated_by"`
}

// Provider generates article content. Available is a cheap pre-flight probe:
// a provider that reports false is skipped without being invoked.
type Provider interface {
	Name() string
	Available(ctx context.Context) bool
	Generate(ctx context.Context, req Request) (*Draft, error)
}

// Registry is a name-keyed provider registry, open for extension.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider under its name, replacing any previous entry.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q not registered", name)
	}
	return p, nil
}

// countWords counts whitespace-separated words.
func countWords(s string) int {
	return len(strings.Fields(s))
}
