package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GenerationSettings are the user-selected options for a generation run.
// They are immutable for a given job.
type GenerationSettings struct {
	Style         string `bson:"style" json:"style"`
	Length        string `bson:"length" json:"length"` // short, medium, long
	Tone          string `bson:"tone" json:"tone"`     // professional, casual, technical
	WordCount     int    `bson:"word_count,omitempty" json:"word_count,omitempty"`
	Depth         string `bson:"depth,omitempty" json:"depth,omitempty"`
	IncludeImages bool   `bson:"include_images" json:"include_images"`
	SEOOptimized  bool   `bson:"seo_optimized" json:"seo_optimized"`
}

// DefaultSettings returns the settings applied when a submission omits options.
func DefaultSettings() GenerationSettings {
	return GenerationSettings{
		Style:  "analytical",
		Length: "medium",
		Tone:   "professional",
	}
}

// ArticleSection is one rendered section of an article body.
type ArticleSection struct {
	Type    SectionType `bson:"type" json:"type"`
	Heading string      `bson:"heading" json:"heading"`
	Content string      `bson:"content" json:"content"`
}

// Article is a generated article persisted by the pipeline.
type Article struct {
	ID primitive.ObjectID `bson:"_id,omitempty" json:"id"`

	ArticleID string `bson:"article_id" json:"article_id"`
	TopicID   string `bson:"topic_id" json:"topic_id"`
	UserID    string `bson:"user_id,omitempty" json:"user_id,omitempty"`

	Title    string           `bson:"title" json:"title"`
	Content  string           `bson:"content" json:"content"`
	Summary  string           `bson:"summary" json:"summary"`
	Sections []ArticleSection `bson:"sections,omitempty" json:"sections,omitempty"`

	WordCount int                `bson:"word_count" json:"word_count"`
	Settings  GenerationSettings `bson:"settings" json:"settings"`

	// Name of the provider that produced the content; "fallback" when the
	// offline generator was used.
	GeneratedBy string `bson:"generated_by" json:"generated_by"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// ArticleRef is the compact shape kept in the "articles:recent" cache list.
type ArticleRef struct {
	ArticleID string    `json:"article_id"`
	Title     string    `json:"title"`
	TopicID   string    `json:"topic_id"`
	CreatedAt time.Time `json:"created_at"`
}
