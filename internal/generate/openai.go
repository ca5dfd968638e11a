package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/coinscribe/coinscribe/internal/models"
	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
)

// Available models for the primary provider.
const (
	ModelGPT4oMini = "gpt-4o-mini"
	ModelGPT4o     = "gpt-4o"
)

// OpenAIConfig holds the configuration for the primary provider.
type OpenAIConfig struct {
	APIKey   string
	Endpoint string
	Model    string
}

// OpenAIProvider generates articles through an OpenAI-compatible chat API.
type OpenAIProvider struct {
	client *openai.Client
	model  string
	apiKey string
}

// NewOpenAIProvider creates the primary provider.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	if cfg.Model == "" {
		cfg.Model = ModelGPT4oMini
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		config.BaseURL = cfg.Endpoint
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(config),
		model:  cfg.Model,
		apiKey: cfg.APIKey,
	}
}

// Name implements Provider.
func (p *OpenAIProvider) Name() string { return "openai" }

// Available reports whether the provider is configured for use.
func (p *OpenAIProvider) Available(ctx context.Context) bool {
	return p.apiKey != ""
}

// ChatRequest represents a chat completion request.
type ChatRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float32
	MaxTokens    int
	JSONMode     bool
}

// Chat sends a chat completion request.
func (p *OpenAIProvider) Chat(ctx context.Context, req ChatRequest) (string, error) {
	messages := []openai.ChatCompletionMessage{}

	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}

	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.UserPrompt,
	})

	chatReq := openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    messages,
		Temperature: req.Temperature,
	}

	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}

	if req.JSONMode {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	log.Debug().
		Str("model", p.model).
		Int("messages", len(messages)).
		Bool("json_mode", req.JSONMode).
		Msg("Sending chat request")

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	return resp.Choices[0].Message.Content, nil
}

// ChatJSON sends a chat request and parses the response as JSON.
func (p *OpenAIProvider) ChatJSON(ctx context.Context, req ChatRequest, result interface{}) error {
	req.JSONMode = true

	content, err := p.Chat(ctx, req)
	if err != nil {
		return err
	}

	if err := json.Unmarshal([]byte(content), result); err != nil {
		return fmt.Errorf("failed to parse JSON response: %w", err)
	}

	return nil
}

// Generate implements Provider.
func (p *OpenAIProvider) Generate(ctx context.Context, req Request) (*Draft, error) {
	systemPrompt := `You are a senior cryptocurrency markets journalist.

EDITORIAL STANDARDS:
1. ACCURACY FIRST: use the exact figures supplied, never approximations.
2. INTEGRATE DATA: weave prices and percentages into prose naturally.
3. EXPLAIN THE STAKES: always answer "so what?" for sophisticated readers.
4. SHORT & DIRECT: one idea per sentence. Cut filler.
5. NO financial advice or recommendations.

Respond ONLY with valid JSON.`

	var result struct {
		Title    string `json:"title"`
		Summary  string `json:"summary"`
		Sections []struct {
			Type    string `json:"type"`
			Heading string `json:"heading"`
			Content string `json:"content"`
		} `json:"sections"`
	}

	err := p.ChatJSON(ctx, ChatRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   buildUserPrompt(req),
		Temperature:  0.4,
		MaxTokens:    3000,
	}, &result)
	if err != nil {
		return nil, err
	}

	if result.Title == "" || len(result.Sections) == 0 {
		return nil, fmt.Errorf("provider returned incomplete article")
	}

	draft := &Draft{
		Title:       result.Title,
		Summary:     result.Summary,
		GeneratedBy: p.Name(),
	}

	var body strings.Builder
	for _, section := range result.Sections {
		draft.Sections = append(draft.Sections, models.ArticleSection{
			Type:    models.SectionType(section.Type),
			Heading: section.Heading,
			Content: section.Content,
		})
		body.WriteString("## " + section.Heading + "\n\n")
		body.WriteString(section.Content + "\n\n")
	}
	draft.Content = strings.TrimSpace(body.String())
	draft.WordCount = countWords(draft.Content)

	return draft, nil
}

func buildUserPrompt(req Request) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Write a %s, %s-toned article about this topic.\n\n", req.Settings.Length, req.Settings.Tone)
	fmt.Fprintf(&b, "TOPIC: %s\n", req.Topic.Title)
	if req.Topic.Summary != "" {
		fmt.Fprintf(&b, "BACKGROUND: %s\n", req.Topic.Summary)
	}

	if len(req.Market) > 0 {
		b.WriteString("\nMARKET DATA:\n")
		for _, point := range req.Market {
			fmt.Fprintf(&b, "- %s: $%.2f (%+.2f%% 24h, volume $%.0f, cap $%.0f)\n",
				point.Symbol, point.Price, point.Change24h, point.Volume, point.MarketCap)
		}
	}

	if req.Global != nil {
		fmt.Fprintf(&b, "\nGLOBAL: total market cap $%.0f, BTC dominance %.1f%%\n",
			req.Global.TotalMarketCap, req.Global.BTCDominance)
		if req.Global.Sentiment != nil {
			fmt.Fprintf(&b, "SENTIMENT: %d/100 (%s)\n",
				req.Global.Sentiment.Value, req.Global.Sentiment.Classification)
		}
	}

	b.WriteString("\nSECTIONS (JSON array, each {\"type\", \"heading\", \"content\"}):\n")
	if req.Template != nil {
		for _, section := range req.Template.Sections {
			fmt.Fprintf(&b, "- %s: at least %d words\n", section.Type, section.MinWords)
		}
	} else {
		b.WriteString("- introduction, analysis, conclusion\n")
	}

	b.WriteString("\nGenerate JSON: {\"title\", \"summary\", \"sections\": [...]}")
	if req.Settings.SEOOptimized {
		b.WriteString("\nThe title must be SEO-friendly, under 70 characters.")
	}

	return b.String()
}
