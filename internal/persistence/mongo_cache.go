package persistence

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoCache is a Cache backed by a MongoDB collection with one document
// per key.
type MongoCache struct {
	coll   *mongo.Collection
	client *mongo.Client
	owns   bool
}

var _ Cache = (*MongoCache)(nil)

type mongoCacheDoc struct {
	Key   string `bson:"_id"`
	Value string `bson:"value"`
}

// NewMongoCache creates a Mongo-backed cache. dbName defaults to "hubcheck"
// and collName to "cache". The caller keeps ownership of client.
func NewMongoCache(client *mongo.Client, dbName, collName string) *MongoCache {
	if dbName == "" {
		dbName = "hubcheck"
	}
	if collName == "" {
		collName = "cache"
	}
	return &MongoCache{
		coll:   client.Database(dbName).Collection(collName),
		client: client,
	}
}

// OpenMongoCache connects with uri and verifies the connection.
func OpenMongoCache(ctx context.Context, uri, dbName string) (*MongoCache, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, cacheErr("connect mongo", "", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, cacheErr("ping mongo", "", err)
	}
	c := NewMongoCache(client, dbName, "")
	c.owns = true
	return c, nil
}

func (c *MongoCache) Get(ctx context.Context, key string) (string, bool, error) {
	var doc mongoCacheDoc
	err := c.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", false, nil
	}
	if err != nil {
		return "", false, cacheErr("get", key, err)
	}
	return doc.Value, true, nil
}

func (c *MongoCache) Set(ctx context.Context, key, value string) error {
	_, err := c.coll.UpdateOne(ctx,
		bson.M{"_id": key},
		bson.M{"$set": bson.M{"value": value}},
		options.Update().SetUpsert(true),
	)
	return cacheErr("set", key, err)
}

func (c *MongoCache) Delete(ctx context.Context, key string) error {
	_, err := c.coll.DeleteOne(ctx, bson.M{"_id": key})
	return cacheErr("delete", key, err)
}

func (c *MongoCache) Clear(ctx context.Context) error {
	_, err := c.coll.DeleteMany(ctx, bson.M{})
	return cacheErr("clear", "", err)
}

func (c *MongoCache) Close() error {
	if !c.owns {
		return nil
	}
	return c.client.Disconnect(context.Background())
}
