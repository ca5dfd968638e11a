// Package storage provides MongoDB persistence for CoinScribe.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/coinscribe/coinscribe/internal/models"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Sentinel errors for absent records. Lookups map mongo.ErrNoDocuments to
// these so callers can classify failures without importing the driver.
var (
	ErrTopicNotFound    = errors.New("topic not found")
	ErrTemplateNotFound = errors.New("template not found")
	ErrArticleNotFound  = errors.New("article not found")
)

// Store provides access to all MongoDB collections.
type Store struct {
	client    *mongo.Client
	db        *mongo.Database
	topics    *mongo.Collection
	templates *mongo.Collection
	articles  *mongo.Collection
	snapshots *mongo.Collection
}

// NewStore creates a new storage connection.
func NewStore(ctx context.Context, uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	db := client.Database(dbName)
	log.Info().Str("db", dbName).Msg("Connected to MongoDB")

	store := &Store{
		client:    client,
		db:        db,
		topics:    db.Collection("topics"),
		templates: db.Collection("templates"),
		articles:  db.Collection("articles"),
		snapshots: db.Collection("snapshots"),
	}

	if err := store.createIndexes(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to create some indexes")
	}

	if err := store.seedTemplates(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to seed default templates")
	}

	return store, nil
}

// Collection exposes a named collection for components that keep their own
// documents (cache backend, rate limiter events).
func (s *Store) Collection(name string) *mongo.Collection {
	return s.db.Collection(name)
}

// Close closes the database connection.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) createIndexes(ctx context.Context) error {
	topicIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "topic_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "score", Value: -1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	}
	if _, err := s.topics.Indexes().CreateMany(ctx, topicIndexes); err != nil {
		log.Warn().Err(err).Msg("Failed to create topic indexes")
	}

	templateIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "template_id", Value: 1}}, Options: options.Index().SetUnique(true)},
	}
	if _, err := s.templates.Indexes().CreateMany(ctx, templateIndexes); err != nil {
		log.Warn().Err(err).Msg("Failed to create template indexes")
	}

	articleIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "article_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "topic_id", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	}
	if _, err := s.articles.Indexes().CreateMany(ctx, articleIndexes); err != nil {
		log.Warn().Err(err).Msg("Failed to create article indexes")
	}

	snapshotIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "captured_at", Value: -1}}},
	}
	if _, err := s.snapshots.Indexes().CreateMany(ctx, snapshotIndexes); err != nil {
		log.Warn().Err(err).Msg("Failed to create snapshot indexes")
	}

	return nil
}

// seedTemplates inserts the default article templates when none exist yet.
func (s *Store) seedTemplates(ctx context.Context) error {
	for _, tmpl := range models.DefaultTemplates {
		filter := bson.M{"template_id": tmpl.TemplateID}
		update := bson.M{"$setOnInsert": tmpl}
		opts := options.Update().SetUpsert(true)
		if _, err := s.templates.UpdateOne(ctx, filter, update, opts); err != nil {
			return err
		}
	}
	return nil
}

// ============================================================================
// TOPIC OPERATIONS
// ============================================================================

// UpsertTopic inserts or updates a topic.
func (s *Store) UpsertTopic(ctx context.Context, topic *models.Topic) error {
	if topic.CreatedAt.IsZero() {
		topic.CreatedAt = time.Now()
	}

	filter := bson.M{"topic_id": topic.TopicID}
	update := bson.M{"$set": topic}
	opts := options.Update().SetUpsert(true)

	_, err := s.topics.UpdateOne(ctx, filter, update, opts)
	return err
}

// GetTopic returns a topic by its ID.
func (s *Store) GetTopic(ctx context.Context, topicID string) (*models.Topic, error) {
	var topic models.Topic
	err := s.topics.FindOne(ctx, bson.M{"topic_id": topicID}).Decode(&topic)
	if err == mongo.ErrNoDocuments {
		return nil, ErrTopicNotFound
	}
	if err != nil {
		return nil, err
	}
	return &topic, nil
}

// GetTopTopics returns the highest-scored topics.
func (s *Store) GetTopTopics(ctx context.Context, limit int) ([]models.Topic, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "score", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.topics.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var topics []models.Topic
	if err := cursor.All(ctx, &topics); err != nil {
		return nil, err
	}
	return topics, nil
}

// ============================================================================
// TEMPLATE OPERATIONS
// ============================================================================

// GetTemplate returns a template by its ID.
func (s *Store) GetTemplate(ctx context.Context, templateID string) (*models.Template, error) {
	var tmpl models.Template
	err := s.templates.FindOne(ctx, bson.M{"template_id": templateID}).Decode(&tmpl)
	if err == mongo.ErrNoDocuments {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tmpl, nil
}

// GetTemplates returns all templates.
func (s *Store) GetTemplates(ctx context.Context) ([]models.Template, error) {
	cursor, err := s.templates.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var templates []models.Template
	if err := cursor.All(ctx, &templates); err != nil {
		return nil, err
	}
	return templates, nil
}

// ============================================================================
// ARTICLE OPERATIONS
// ============================================================================

// SaveArticle saves a new article.
func (s *Store) SaveArticle(ctx context.Context, article *models.Article) error {
	article.CreatedAt = time.Now()
	article.UpdatedAt = time.Now()

	_, err := s.articles.InsertOne(ctx, article)
	return err
}

// GetArticle returns an article by its ID.
func (s *Store) GetArticle(ctx context.Context, articleID string) (*models.Article, error) {
	var article models.Article
	err := s.articles.FindOne(ctx, bson.M{"article_id": articleID}).Decode(&article)
	if err == mongo.ErrNoDocuments {
		return nil, ErrArticleNotFound
	}
	if err != nil {
		return nil, err
	}
	return &article, nil
}

// GetRecentArticles returns the most recent articles.
func (s *Store) GetRecentArticles(ctx context.Context, limit int) ([]models.Article, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.articles.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var articles []models.Article
	if err := cursor.All(ctx, &articles); err != nil {
		return nil, err
	}
	return articles, nil
}

// ============================================================================
// SNAPSHOT OPERATIONS
// ============================================================================

// SaveSnapshot saves a market snapshot.
func (s *Store) SaveSnapshot(ctx context.Context, snapshot *models.MarketSnapshot) error {
	if snapshot.CapturedAt.IsZero() {
		snapshot.CapturedAt = time.Now()
	}
	_, err := s.snapshots.InsertOne(ctx, snapshot)
	return err
}

// CleanOldSnapshots removes snapshots older than the given duration.
func (s *Store) CleanOldSnapshots(ctx context.Context, olderThan time.Duration) (int64, error) {
	filter := bson.M{"captured_at": bson.M{"$lt": time.Now().Add(-olderThan)}}
	result, err := s.snapshots.DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

// ============================================================================
// STATS OPERATIONS
// ============================================================================

// Stats holds general statistics.
type Stats struct {
	TotalTopics    int64 `json:"total_topics"`
	TotalArticles  int64 `json:"total_articles"`
	TodayArticles  int64 `json:"today_articles"`
	TotalSnapshots int64 `json:"total_snapshots"`
}

// GetStats returns general statistics.
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	var err error
	stats.TotalTopics, err = s.topics.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, err
	}

	stats.TotalArticles, err = s.articles.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, err
	}

	today := time.Now().Truncate(24 * time.Hour)
	stats.TodayArticles, err = s.articles.CountDocuments(ctx, bson.M{
		"created_at": bson.M{"$gte": today},
	})
	if err != nil {
		return nil, err
	}

	stats.TotalSnapshots, err = s.snapshots.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, err
	}

	return stats, nil
}
