package ratelimit

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoLimiter runs the sliding-window-log algorithm over a shared MongoDB
// collection of timestamped events, so multiple processes enforce one
// budget. Any backend error fails open.
type MongoLimiter struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewMongoLimiter creates a limiter on the given collection and ensures its
// indexes exist. A TTL index caps unbounded growth for abandoned identifiers.
func NewMongoLimiter(ctx context.Context, coll *mongo.Collection) *MongoLimiter {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "identifier", Value: 1}, {Key: "ts", Value: 1}}},
		{
			Keys:    bson.D{{Key: "ts", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(24 * 60 * 60),
		},
	}
	if _, err := coll.Indexes().CreateMany(ctx, indexes); err != nil {
		log.Warn().Err(err).Msg("Failed to create rate limiter indexes")
	}

	return &MongoLimiter{coll: coll, now: time.Now}
}

// Check runs one admission check for identifier.
func (l *MongoLimiter) Check(ctx context.Context, identifier string, limit int, window time.Duration) Result {
	now := l.now()
	cutoff := now.Add(-window)

	_, err := l.coll.DeleteMany(ctx, bson.M{
		"identifier": identifier,
		"ts":         bson.M{"$lt": cutoff},
	})
	if err != nil {
		log.Warn().Err(err).Str("identifier", identifier).Msg("Rate limiter backend error, failing open")
		return openResult(limit, now, window)
	}

	if _, err := l.coll.InsertOne(ctx, bson.M{"identifier": identifier, "ts": now}); err != nil {
		log.Warn().Err(err).Str("identifier", identifier).Msg("Rate limiter backend error, failing open")
		return openResult(limit, now, window)
	}

	count, err := l.coll.CountDocuments(ctx, bson.M{"identifier": identifier})
	if err != nil {
		log.Warn().Err(err).Str("identifier", identifier).Msg("Rate limiter backend error, failing open")
		return openResult(limit, now, window)
	}

	return resultFromCount(int(count), limit, now, window)
}
