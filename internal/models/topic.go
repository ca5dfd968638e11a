package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Topic represents a collected article topic. Topics are immutable once
// fetched and cached for one hour under "topic:{id}".
type Topic struct {
	ID primitive.ObjectID `bson:"_id,omitempty" json:"id"`

	TopicID string `bson:"topic_id" json:"topic_id"`
	Title   string `bson:"title" json:"title"`
	Summary string `bson:"summary" json:"summary"`

	// Coins this topic is about, e.g. ["bitcoin", "ethereum"].
	Symbols []string `bson:"symbols" json:"symbols"`

	// Where the topic was collected from (RSS feeds, price movements).
	Sources []string `bson:"sources" json:"sources"`

	Score     float64   `bson:"score" json:"score"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// SectionType classifies a template section.
type SectionType string

const (
	SectionIntroduction SectionType = "introduction"
	SectionAnalysis     SectionType = "analysis"
	SectionMarketData   SectionType = "market_data"
	SectionOutlook      SectionType = "outlook"
	SectionConclusion   SectionType = "conclusion"
)

// TemplateSection describes one section of an article template.
type TemplateSection struct {
	Type     SectionType `bson:"type" json:"type"`
	MinWords int         `bson:"min_words" json:"min_words"`
}

// Template defines the structure a generated article should follow.
// Templates are immutable and cached for one hour under "template:{id}".
type Template struct {
	ID primitive.ObjectID `bson:"_id,omitempty" json:"id"`

	TemplateID string            `bson:"template_id" json:"template_id"`
	Name       string            `bson:"name" json:"name"`
	Sections   []TemplateSection `bson:"sections" json:"sections"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// DefaultTemplates are seeded into the store when the templates collection
// is empty.
var DefaultTemplates = []Template{
	{
		TemplateID: "market-analysis",
		Name:       "Market Analysis",
		Sections: []TemplateSection{
			{Type: SectionIntroduction, MinWords: 80},
			{Type: SectionMarketData, MinWords: 150},
			{Type: SectionAnalysis, MinWords: 250},
			{Type: SectionOutlook, MinWords: 120},
			{Type: SectionConclusion, MinWords: 80},
		},
	},
	{
		TemplateID: "news-brief",
		Name:       "News Brief",
		Sections: []TemplateSection{
			{Type: SectionIntroduction, MinWords: 60},
			{Type: SectionAnalysis, MinWords: 150},
			{Type: SectionConclusion, MinWords: 60},
		},
	},
	{
		TemplateID: "deep-dive",
		Name:       "Deep Dive",
		Sections: []TemplateSection{
			{Type: SectionIntroduction, MinWords: 100},
			{Type: SectionMarketData, MinWords: 200},
			{Type: SectionAnalysis, MinWords: 400},
			{Type: SectionOutlook, MinWords: 200},
			{Type: SectionConclusion, MinWords: 100},
		},
	},
}
