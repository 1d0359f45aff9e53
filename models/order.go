package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type OrderStatus string

const (
	StatusCreated  OrderStatus = "created"
	StatusPaid     OrderStatus = "paid"
	StatusCaptured OrderStatus = "captured"
	StatusFailed   OrderStatus = "failed"
	StatusRefunded OrderStatus = "refunded"
)

// RevenueStatuses are the states whose line items count towards seller revenue.
var RevenueStatuses = []OrderStatus{StatusPaid, StatusCaptured}

func (s OrderStatus) IsPaid() bool {
	return s == StatusPaid || s == StatusCaptured
}

// Meta is a generic key-value map for order metadata
type Meta map[string]interface{}

// OrderItem.Price is the line total (unit price after discount times quantity) in minor units.
type OrderItem struct {
	Product primitive.ObjectID `json:"product" bson:"product"`
	Qty     int                `json:"qty" bson:"qty"`
	Price   int64              `json:"price" bson:"price"`
	OwnerID primitive.ObjectID `json:"ownerId" bson:"ownerId"`
}

// Order mirrors one gateway order. Amount is fixed at creation:
// Amount == sum(Items[i].Price) + PlatformFee, all in minor units.
type Order struct {
	ID               primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	User             primitive.ObjectID `json:"user" bson:"user"`
	Items            []OrderItem        `json:"items" bson:"items"`
	Amount           int64              `json:"amount" bson:"amount"`
	PlatformFee      int64              `json:"platformFee" bson:"platformFee"`
	Currency         string             `json:"currency" bson:"currency"`
	RazorpayOrderID  string             `json:"razorpayOrderId" bson:"razorpayOrderId"`
	Receipt          string             `json:"receipt,omitempty" bson:"receipt,omitempty"`
	PaymentID        string             `json:"paymentId,omitempty" bson:"paymentId,omitempty"`
	PaymentSignature string             `json:"paymentSignature,omitempty" bson:"paymentSignature,omitempty"`
	Status           OrderStatus        `json:"status" bson:"status"`
	PaidAt           *time.Time         `json:"paidAt,omitempty" bson:"paidAt,omitempty"`
	CartClearedAt    *time.Time         `json:"cartClearedAt,omitempty" bson:"cartClearedAt,omitempty"`
	Meta             Meta               `json:"meta,omitempty" bson:"meta,omitempty"`
	CreatedAt        time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt        time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// SellerTotal sums the line items contributed by one seller.
func (o Order) SellerTotal(owner primitive.ObjectID) int64 {
	var total int64
	for _, it := range o.Items {
		if it.OwnerID == owner {
			total += it.Price
		}
	}
	return total
}

// Sellers returns the distinct sellers in item order.
func (o Order) Sellers() []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]bool)
	var out []primitive.ObjectID
	for _, it := range o.Items {
		if !seen[it.OwnerID] {
			seen[it.OwnerID] = true
			out = append(out, it.OwnerID)
		}
	}
	return out
}

// IdempotencyRecord remembers the first response produced under an Idempotency-Key.
type IdempotencyRecord struct {
	Key         string          `bson:"key" json:"key"`
	Method      string          `bson:"method" json:"method"`
	Path        string          `bson:"path" json:"path"`
	UserID      string          `bson:"userid" json:"userid"`
	RequestHash string          `bson:"request_hash" json:"request_hash"`
	Response    *StoredResponse `bson:"response,omitempty" json:"response,omitempty"`
	CreatedAt   time.Time       `bson:"created_at" json:"created_at"`
	ExpiresAt   time.Time       `bson:"expires_at" json:"expires_at"`
}

type StoredResponse struct {
	Status      int    `bson:"status" json:"status"`
	ContentType string `bson:"contentType" json:"contentType"`
	Body        []byte `bson:"body" json:"body"`
}

// OrderEvent is published once per seller when an order becomes paid.
type OrderEvent struct {
	OrderID        string    `json:"orderId"`
	GatewayOrderID string    `json:"gatewayOrderId"`
	OwnerID        string    `json:"ownerId"`
	AmountPaise    int64     `json:"amountPaise"`
	PaidAt         time.Time `json:"paidAt"`
}
