package db

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"scatch/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DB holds the client and the collections the storefront uses.
type DB struct {
	Client *mongo.Client

	Users       *mongo.Collection
	Owners      *mongo.Collection
	Products    *mongo.Collection
	Orders      *mongo.Collection
	Idempotency *mongo.Collection
}

func Connect(ctx context.Context, uri, dbName string) (*DB, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	database := client.Database(dbName)
	return &DB{
		Client:      client,
		Users:       database.Collection("users"),
		Owners:      database.Collection("owners"),
		Products:    database.Collection("products"),
		Orders:      database.Collection("orders"),
		Idempotency: database.Collection("idempotency"),
	}, nil
}

// EnsureIndexes creates every index the stores rely on. Safe to call on each start.
func (d *DB) EnsureIndexes(ctx context.Context) error {
	sets := []struct {
		coll *mongo.Collection
		idxs []mongo.IndexModel
	}{
		{d.Users, []mongo.IndexModel{
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("unique_email")},
		}},
		{d.Owners, []mongo.IndexModel{
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("unique_email")},
		}},
		{d.Products, []mongo.IndexModel{
			{Keys: bson.D{{Key: "owner", Value: 1}}, Options: options.Index().SetName("owner")},
		}},
		{d.Orders, []mongo.IndexModel{
			{Keys: bson.D{{Key: "razorpayOrderId", Value: 1}}, Options: options.Index().SetUnique(true).SetName("unique_razorpay_order")},
			{Keys: bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: -1}}, Options: options.Index().SetName("user_created")},
			{Keys: bson.D{{Key: "items.ownerId", Value: 1}, {Key: "status", Value: 1}}, Options: options.Index().SetName("seller_status")},
		}},
		{d.Idempotency, []mongo.IndexModel{
			{Keys: bson.D{{Key: "key", Value: 1}}, Options: options.Index().SetUnique(true).SetName("unique_key")},
			{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0).SetName("ttl_expires_at")},
		}},
	}

	for _, s := range sets {
		if _, err := s.coll.Indexes().CreateMany(ctx, s.idxs); err != nil {
			return fmt.Errorf("create indexes on %s: %w", s.coll.Name(), err)
		}
	}
	log.Println("MongoDB indexes ensured")
	return nil
}

func (d *DB) Close(ctx context.Context) error {
	return d.Client.Disconnect(ctx)
}

// translate maps driver errors onto the shared store sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return models.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", models.ErrDuplicate, err)
	default:
		return err
	}
}
