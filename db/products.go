package db

import (
	"context"
	"time"

	"scatch/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// listing projection leaves the image bytes in the database
var withoutImage = bson.M{"image": 0}

type ProductStore struct {
	coll *mongo.Collection
}

func NewProductStore(coll *mongo.Collection) *ProductStore {
	return &ProductStore{coll: coll}
}

func (s *ProductStore) Create(ctx context.Context, p *models.Product) error {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	now := time.Now()
	p.CreatedAt, p.UpdatedAt = now, now
	_, err := s.coll.InsertOne(ctx, p)
	return translate(err)
}

// Update applies set to the product only when owner matches.
func (s *ProductStore) Update(ctx context.Context, id, owner primitive.ObjectID, set bson.M) (*models.Product, error) {
	set["updatedAt"] = time.Now()
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(withoutImage)

	var p models.Product
	err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": id, "owner": owner}, bson.M{"$set": set}, opts).Decode(&p)
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *ProductStore) Delete(ctx context.Context, id, owner primitive.ObjectID) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id, "owner": owner})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *ProductStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	var p models.Product
	err := s.coll.FindOne(ctx, bson.M{"_id": id}, options.FindOne().SetProjection(withoutImage)).Decode(&p)
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// FindByIDs returns the products that still exist, keyed by id, without image bytes.
func (s *ProductStore) FindByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Product, error) {
	out := make(map[primitive.ObjectID]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	products, err := s.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

func (s *ProductStore) List(ctx context.Context) ([]models.Product, error) {
	return s.find(ctx, bson.M{})
}

func (s *ProductStore) ListByOwner(ctx context.Context, owner primitive.ObjectID) ([]models.Product, error) {
	return s.find(ctx, bson.M{"owner": owner})
}

func (s *ProductStore) Image(ctx context.Context, id primitive.ObjectID) ([]byte, string, error) {
	var p models.Product
	opts := options.FindOne().SetProjection(bson.M{"image": 1, "imageMimeType": 1})
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}, opts).Decode(&p); err != nil {
		return nil, "", translate(err)
	}
	if len(p.Image) == 0 {
		return nil, "", models.ErrNotFound
	}
	return p.Image, p.ImageMimeType, nil
}

func (s *ProductStore) find(ctx context.Context, filter bson.M) ([]models.Product, error) {
	opts := options.Find().
		SetProjection(withoutImage).
		SetSort(bson.D{{Key: "createdAt", Value: -1}})

	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	products := []models.Product{}
	if err := cur.All(ctx, &products); err != nil {
		return nil, err
	}
	return products, nil
}
