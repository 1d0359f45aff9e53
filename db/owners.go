package db

import (
	"context"
	"strings"
	"time"

	"scatch/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type OwnerStore struct {
	coll *mongo.Collection
}

func NewOwnerStore(coll *mongo.Collection) *OwnerStore {
	return &OwnerStore{coll: coll}
}

func (s *OwnerStore) Create(ctx context.Context, o *models.Owner) error {
	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	o.Email = strings.ToLower(strings.TrimSpace(o.Email))
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}
	_, err := s.coll.InsertOne(ctx, o)
	return translate(err)
}

func (s *OwnerStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Owner, error) {
	var o models.Owner
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&o); err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

func (s *OwnerStore) FindByEmail(ctx context.Context, email string) (*models.Owner, error) {
	var o models.Owner
	err := s.coll.FindOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))}).Decode(&o)
	if err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

// Names returns fullname by id for the owners that still exist.
func (s *OwnerStore) Names(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]string, error) {
	out := make(map[primitive.ObjectID]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := s.coll.Find(ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetProjection(bson.M{"fullname": 1}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []struct {
		ID       primitive.ObjectID `bson:"_id"`
		Fullname string             `bson:"fullname"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.ID] = r.Fullname
	}
	return out, nil
}
