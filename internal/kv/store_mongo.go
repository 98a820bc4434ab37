package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const mongoCollection = "kv_entries"

type mongoEntry struct {
	Key       string    `bson:"_id"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
	// ExpiresAt drives the collection's TTL index; the reaper runs about once
	// a minute, so reads check it as well.
	ExpiresAt *time.Time `bson:"expires_at,omitempty"`
}

type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	var client *mongo.Client
	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		c, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
		client = c
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	coll := client.Database(database).Collection(mongoCollection)
	err = withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		})
		return err
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ttl index: %w", err)
	}
	return &MongoStore{client: client, coll: coll}, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return withTimeout(ctx, pingTimeout, func(ctx context.Context) error {
		return s.client.Ping(ctx, readpref.Primary())
	})
}

func (s *MongoStore) Get(ctx context.Context, key string) (string, bool, error) {
	var e mongoEntry
	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		return s.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&e)
	})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("mongo get %q: %w", key, err)
	}
	if e.ExpiresAt != nil && !time.Now().Before(*e.ExpiresAt) {
		return "", false, nil
	}
	return e.Value, true, nil
}

func (s *MongoStore) Set(ctx context.Context, key, value string) error {
	return s.put(ctx, key, value, 0)
}

func (s *MongoStore) SetTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.put(ctx, key, value, ttl)
}

func (s *MongoStore) put(ctx context.Context, key, value string, ttl time.Duration) error {
	if key == "" {
		return ErrEmptyKey
	}
	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		now := time.Now().UTC()
		doc := mongoEntry{Key: key, Value: value, UpdatedAt: now}
		if ttl > 0 {
			at := now.Add(ttl)
			doc.ExpiresAt = &at
		}
		_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": key}, doc, options.Replace().SetUpsert(true))
		if err != nil {
			return fmt.Errorf("mongo set %q: %w", key, err)
		}
		return nil
	})
}

func (s *MongoStore) Delete(ctx context.Context, key string) error {
	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
			return fmt.Errorf("mongo delete %q: %w", key, err)
		}
		return nil
	})
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
