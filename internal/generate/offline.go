package generate

import (
	"context"
	"fmt"
	"strings"

	"github.com/coinscribe/coinscribe/internal/models"
)

// FallbackName is the provider name recorded on offline-generated drafts.
const FallbackName = "fallback"

// OfflineProvider synthesizes structurally valid content from the topic and
// settings alone, with no external dependency. It backs the provider chain
// and the client-side submission fallback, and is always available.
type OfflineProvider struct{}

// NewOfflineProvider creates the offline generator.
func NewOfflineProvider() *OfflineProvider {
	return &OfflineProvider{}
}

// Name implements Provider.
func (p *OfflineProvider) Name() string { return FallbackName }

// Available implements Provider; the offline generator always is.
func (p *OfflineProvider) Available(ctx context.Context) bool { return true }

// Generate implements Provider. Output is deterministic for a given request.
func (p *OfflineProvider) Generate(ctx context.Context, req Request) (*Draft, error) {
	sections := templateSections(req.Template)

	draft := &Draft{
		Title:       fmt.Sprintf("%s: Market Overview and Analysis", req.Topic.Title),
		Summary:     p.summary(req),
		GeneratedBy: p.Name(),
	}

	var body strings.Builder
	for _, section := range sections {
		rendered := models.ArticleSection{
			Type:    section.Type,
			Heading: sectionHeading(section.Type, req.Topic.Title),
			Content: p.sectionContent(section, req),
		}
		draft.Sections = append(draft.Sections, rendered)
		body.WriteString("## " + rendered.Heading + "\n\n")
		body.WriteString(rendered.Content + "\n\n")
	}

	draft.Content = strings.TrimSpace(body.String())
	draft.WordCount = countWords(draft.Content)
	return draft, nil
}

// templateSections returns the template's structure, or a default shape when
// no template was given.
func templateSections(tmpl *models.Template) []models.TemplateSection {
	if tmpl != nil && len(tmpl.Sections) > 0 {
		return tmpl.Sections
	}
	return []models.TemplateSection{
		{Type: models.SectionIntroduction, MinWords: 60},
		{Type: models.SectionAnalysis, MinWords: 150},
		{Type: models.SectionConclusion, MinWords: 60},
	}
}

func sectionHeading(t models.SectionType, topic string) string {
	switch t {
	case models.SectionIntroduction:
		return "Introduction"
	case models.SectionMarketData:
		return "Market Data"
	case models.SectionAnalysis:
		return "Analysis: " + topic
	case models.SectionOutlook:
		return "Outlook"
	case models.SectionConclusion:
		return "Conclusion"
	default:
		name := string(t)
		if name == "" {
			return "Overview"
		}
		return strings.ToUpper(name[:1]) + name[1:]
	}
}

func (p *OfflineProvider) summary(req Request) string {
	if req.Topic.Summary != "" {
		return req.Topic.Summary
	}
	return fmt.Sprintf("An overview of %s and the current state of the related markets.", req.Topic.Title)
}

func (p *OfflineProvider) sectionContent(section models.TemplateSection, req Request) string {
	var b strings.Builder

	switch section.Type {
	case models.SectionIntroduction:
		fmt.Fprintf(&b, "%s has drawn attention across cryptocurrency markets. ", req.Topic.Title)
		if req.Topic.Summary != "" {
			b.WriteString(req.Topic.Summary + " ")
		}
		b.WriteString("This article reviews the available market data and what it suggests for the period ahead.")

	case models.SectionMarketData:
		if len(req.Market) == 0 {
			b.WriteString("Detailed market data was not available at the time of writing.")
			break
		}
		b.WriteString("Current readings for the assets tied to this topic:\n")
		for _, point := range req.Market {
			fmt.Fprintf(&b, "\n- %s is trading at $%.2f, %+.2f%% over the last 24 hours, on $%.0f volume.",
				point.Symbol, point.Price, point.Change24h, point.Volume)
		}

	case models.SectionAnalysis:
		fmt.Fprintf(&b, "The data around %s points to continued activity in the affected assets. ", req.Topic.Title)
		for _, point := range req.Market {
			direction := "held steady"
			if point.Change24h > 1 {
				direction = "gained ground"
			} else if point.Change24h < -1 {
				direction = "lost ground"
			}
			fmt.Fprintf(&b, "%s has %s over the past day. ", point.Symbol, direction)
		}
		if req.Global != nil && req.Global.Sentiment != nil {
			fmt.Fprintf(&b, "Broader market sentiment currently reads %d out of 100 (%s). ",
				req.Global.Sentiment.Value, req.Global.Sentiment.Classification)
		}
		b.WriteString("Traders will be watching whether these moves hold as conditions develop.")

	case models.SectionOutlook:
		fmt.Fprintf(&b, "Near-term developments around %s will depend on broader market conditions. ", req.Topic.Title)
		b.WriteString("Key indicators to monitor include trading volume, price momentum in the related assets, and overall market sentiment.")

	case models.SectionConclusion:
		fmt.Fprintf(&b, "%s remains a topic to watch. ", req.Topic.Title)
		b.WriteString("The figures above capture a snapshot in time; market conditions can change quickly, and readers should follow ongoing developments.")

	default:
		fmt.Fprintf(&b, "Further coverage of %s is provided in the sections above.", req.Topic.Title)
	}

	return b.String()
}
