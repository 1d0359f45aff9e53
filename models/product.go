package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Product prices and discounts are in major currency units; Discount is absolute, not a percentage.
type Product struct {
	ID            primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Name          string             `json:"name" bson:"name"`
	Price         float64            `json:"price" bson:"price"`
	Discount      float64            `json:"discount" bson:"discount"`
	BgColor       string             `json:"bgcolor" bson:"bgcolor"`
	TextColor     string             `json:"textcolor" bson:"textcolor"`
	PanelColor    string             `json:"panelcolor" bson:"panelcolor"`
	Owner         primitive.ObjectID `json:"owner" bson:"owner"`
	Image         []byte             `json:"-" bson:"image,omitempty"`
	ImageFilename string             `json:"imageFilename,omitempty" bson:"imageFilename,omitempty"`
	ImageMimeType string             `json:"imageMimeType,omitempty" bson:"imageMimeType,omitempty"`
	CreatedAt     time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// ProductView is the listing shape: image bytes stay out, a URL points at them.
type ProductView struct {
	Product
	ImageURL  string `json:"imageUrl"`
	OwnerName string `json:"ownerName,omitempty"`
}

func NewProductView(p Product, ownerName string) ProductView {
	return ProductView{
		Product:   p,
		ImageURL:  "/api/products/" + p.ID.Hex() + "/image",
		OwnerName: ownerName,
	}
}
