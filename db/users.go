package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"scatch/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type UserStore struct {
	coll *mongo.Collection
}

func NewUserStore(coll *mongo.Collection) *UserStore {
	return &UserStore{coll: coll}
}

func (s *UserStore) Create(ctx context.Context, u *models.User) error {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	if u.Cart == nil {
		u.Cart = []models.CartEntry{}
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	_, err := s.coll.InsertOne(ctx, u)
	return translate(err)
}

func (s *UserStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.coll.FindOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))}).Decode(&u)
	if err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// AddToCart increments the entry for productID, or appends a new entry with quantity 1.
// The $ne guard on the push keeps one entry per product under concurrent adds.
func (s *UserStore) AddToCart(ctx context.Context, userID, productID primitive.ObjectID) error {
	inc := func() (bool, error) {
		res, err := s.coll.UpdateOne(ctx,
			bson.M{"_id": userID, "cart.product": productID},
			bson.M{"$inc": bson.M{"cart.$.quantity": 1}},
		)
		if err != nil {
			return false, err
		}
		return res.MatchedCount > 0, nil
	}

	if ok, err := inc(); err != nil || ok {
		return err
	}

	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": userID, "cart.product": bson.M{"$ne": productID}},
		bson.M{"$push": bson.M{"cart": models.CartEntry{Product: productID, Quantity: 1}}},
	)
	if err != nil {
		return fmt.Errorf("push cart entry: %w", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	// a concurrent request pushed the entry between our two updates
	ok, err := inc()
	if err != nil {
		return err
	}
	if !ok {
		return models.ErrNotFound
	}
	return nil
}

// ChangeCartQuantity adds delta to an entry; entries that drop to zero are removed.
func (s *UserStore) ChangeCartQuantity(ctx context.Context, userID, productID primitive.ObjectID, delta int) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": userID, "cart.product": productID},
		bson.M{"$inc": bson.M{"cart.$.quantity": delta}},
	)
	if err != nil {
		return fmt.Errorf("update cart quantity: %w", err)
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}
	if delta < 0 {
		_, err = s.coll.UpdateOne(ctx,
			bson.M{"_id": userID},
			bson.M{"$pull": bson.M{"cart": bson.M{"product": productID, "quantity": bson.M{"$lte": 0}}}},
		)
		if err != nil {
			return fmt.Errorf("prune empty cart entry: %w", err)
		}
	}
	return nil
}

func (s *UserStore) RemoveFromCart(ctx context.Context, userID, productID primitive.ObjectID) error {
	return s.PullCartProducts(ctx, userID, []primitive.ObjectID{productID})
}

// PullCartProducts removes the entries for the given products and nothing else,
// so entries added concurrently survive.
func (s *UserStore) PullCartProducts(ctx context.Context, userID primitive.ObjectID, productIDs []primitive.ObjectID) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$pull": bson.M{"cart": bson.M{"product": bson.M{"$in": productIDs}}}},
	)
	if err != nil {
		return fmt.Errorf("pull cart entries: %w", err)
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *UserStore) ClearCart(ctx context.Context, userID primitive.ObjectID) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"cart": []models.CartEntry{}}},
	)
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}
