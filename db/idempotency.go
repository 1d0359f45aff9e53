package db

import (
	"context"

	"scatch/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type IdempotencyStore struct {
	coll *mongo.Collection
}

func NewIdempotencyStore(coll *mongo.Collection) *IdempotencyStore {
	return &IdempotencyStore{coll: coll}
}

// Reserve inserts the placeholder record; models.ErrDuplicate means the key was seen before.
func (s *IdempotencyStore) Reserve(ctx context.Context, rec models.IdempotencyRecord) error {
	_, err := s.coll.InsertOne(ctx, rec)
	return translate(err)
}

func (s *IdempotencyStore) Find(ctx context.Context, key string) (*models.IdempotencyRecord, error) {
	var rec models.IdempotencyRecord
	if err := s.coll.FindOne(ctx, bson.M{"key": key}).Decode(&rec); err != nil {
		return nil, translate(err)
	}
	return &rec, nil
}

func (s *IdempotencyStore) SaveResponse(ctx context.Context, key string, resp models.StoredResponse) error {
	_, err := s.coll.UpdateOne(ctx, bson.M{"key": key}, bson.M{"$set": bson.M{"response": resp}})
	return err
}

// Release drops a reservation whose request failed so the client may retry under the same key.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"key": key, "response": bson.M{"$exists": false}})
	return err
}
