package db

import (
	"context"
	"fmt"
	"time"

	"scatch/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type OrderStore struct {
	coll *mongo.Collection
}

func NewOrderStore(coll *mongo.Collection) *OrderStore {
	return &OrderStore{coll: coll}
}

func (s *OrderStore) Insert(ctx context.Context, o *models.Order) error {
	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	now := time.Now()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
	_, err := s.coll.InsertOne(ctx, o)
	return translate(err)
}

func (s *OrderStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *OrderStore) FindByGatewayID(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	return s.findOne(ctx, bson.M{"razorpayOrderId": gatewayOrderID})
}

// MarkPaid moves a created or failed order to paid in one document update.
// When the order is in any other state it is returned unchanged with transitioned=false.
func (s *OrderStore) MarkPaid(ctx context.Context, gatewayOrderID, paymentID, signature string, at time.Time) (*models.Order, bool, error) {
	filter := bson.M{
		"razorpayOrderId": gatewayOrderID,
		"status":          bson.M{"$in": []models.OrderStatus{models.StatusCreated, models.StatusFailed}},
	}
	update := bson.M{"$set": bson.M{
		"status":           models.StatusPaid,
		"paymentId":        paymentID,
		"paymentSignature": signature,
		"paidAt":           at,
		"updatedAt":        at,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var o models.Order
	err := s.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&o)
	if err == nil {
		return &o, true, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, false, fmt.Errorf("mark order paid: %w", err)
	}

	current, err := s.FindByGatewayID(ctx, gatewayOrderID)
	if err != nil {
		return nil, false, err
	}
	return current, false, nil
}

func (s *OrderStore) MarkCartCleared(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"cartClearedAt": at, "updatedAt": at}},
	)
	if err != nil {
		return fmt.Errorf("mark cart cleared: %w", err)
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

// PendingCartClears lists paid orders whose cart was never cleared and that were paid before cutoff.
func (s *OrderStore) PendingCartClears(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	filter := bson.M{
		"status":        bson.M{"$in": models.RevenueStatuses},
		"cartClearedAt": nil,
		"paidAt":        bson.M{"$lte": cutoff},
	}
	opts := options.Find().SetLimit(int64(limit)).SetSort(bson.D{{Key: "paidAt", Value: 1}})
	return s.find(ctx, filter, opts)
}

func (s *OrderStore) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	return s.find(ctx, bson.M{"user": userID}, opts)
}

// SellerRevenue sums the line-item prices belonging to ownerID over paid and captured orders.
func (s *OrderStore) SellerRevenue(ctx context.Context, ownerID primitive.ObjectID) (int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"status":        bson.M{"$in": models.RevenueStatuses},
			"items.ownerId": ownerID,
		}}},
		{{Key: "$unwind", Value: "$items"}},
		{{Key: "$match", Value: bson.M{"items.ownerId": ownerID}}},
		{{Key: "$group", Value: bson.M{
			"_id":        nil,
			"totalPaise": bson.M{"$sum": "$items.price"},
		}}},
	}

	cur, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("aggregate seller revenue: %w", err)
	}
	defer cur.Close(ctx)

	var rows []struct {
		TotalPaise int64 `bson:"totalPaise"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].TotalPaise, nil
}

func (s *OrderStore) findOne(ctx context.Context, filter bson.M) (*models.Order, error) {
	var o models.Order
	if err := s.coll.FindOne(ctx, filter).Decode(&o); err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

func (s *OrderStore) find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.Order, error) {
	cur, err := s.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	orders := []models.Order{}
	if err := cur.All(ctx, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}
