package cache

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoDoc struct {
	Key       string     `bson:"_id"`
	Value     []byte     `bson:"value,omitempty"`
	Counter   int64      `bson:"counter,omitempty"`
	ExpiresAt *time.Time `bson:"expires_at,omitempty"`
}

// Mongo is a Backend shared across processes, stored in a single collection
// with a TTL index on expires_at. The TTL monitor only runs periodically, so
// reads also check expiry themselves.
type Mongo struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewMongo creates a Mongo backend on the given collection and ensures its
// TTL index exists.
func NewMongo(ctx context.Context, coll *mongo.Collection) *Mongo {
	index := mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	}
	if _, err := coll.Indexes().CreateOne(ctx, index); err != nil {
		log.Warn().Err(err).Msg("Failed to create cache TTL index")
	}

	return &Mongo{coll: coll, now: time.Now}
}

func (m *Mongo) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	doc := bson.M{"value": value}
	unset := bson.M{"counter": ""}
	if ttl > 0 {
		doc["expires_at"] = m.now().Add(ttl)
	} else {
		unset["expires_at"] = ""
	}

	opts := options.Update().SetUpsert(true)
	_, err := m.coll.UpdateOne(ctx, bson.M{"_id": key}, bson.M{"$set": doc, "$unset": unset}, opts)
	return err
}

func (m *Mongo) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var doc mongoDoc
	err := m.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if doc.ExpiresAt != nil && m.now().After(*doc.ExpiresAt) {
		return nil, false, nil
	}
	return doc.Value, true, nil
}

func (m *Mongo) Delete(ctx context.Context, key string) error {
	_, err := m.coll.DeleteOne(ctx, bson.M{"_id": key})
	return err
}

func (m *Mongo) DeletePattern(ctx context.Context, pattern string) (int64, error) {
	result, err := m.coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$regex": globToRegex(pattern)}})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

func (m *Mongo) Exists(ctx context.Context, key string) (bool, error) {
	_, found, err := m.Get(ctx, key)
	return found, err
}

func (m *Mongo) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	update := bson.M{"$inc": bson.M{"counter": 1}}
	if ttl > 0 {
		update["$setOnInsert"] = bson.M{"expires_at": m.now().Add(ttl)}
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc mongoDoc
	if err := m.coll.FindOneAndUpdate(ctx, bson.M{"_id": key}, update, opts).Decode(&doc); err != nil {
		return 0, err
	}
	return doc.Counter, nil
}

// globToRegex converts a glob pattern ("market:*") to an anchored regex.
func globToRegex(pattern string) string {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return b.String()
}
