package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CartEntry is one line of the embedded cart. A user holds at most one entry per product.
type CartEntry struct {
	Product  primitive.ObjectID `json:"product" bson:"product"`
	Quantity int                `json:"quantity" bson:"quantity"`
}

type User struct {
	ID        primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Fullname  string             `json:"fullname" bson:"fullname"`
	Email     string             `json:"email" bson:"email"`
	Password  string             `json:"-" bson:"password"`
	Cart      []CartEntry        `json:"cart" bson:"cart"`
	Picture   string             `json:"picture,omitempty" bson:"picture,omitempty"`
	Contact   string             `json:"contact,omitempty" bson:"contact,omitempty"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
}

// Owner is a seller account. Products and order line items reference it.
type Owner struct {
	ID        primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Fullname  string             `json:"fullname" bson:"fullname"`
	Email     string             `json:"email" bson:"email"`
	Password  string             `json:"-" bson:"password"`
	Picture   string             `json:"picture,omitempty" bson:"picture,omitempty"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
}
