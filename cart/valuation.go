package cart

import (
	"context"
	"errors"
	"fmt"
	"log"

	"scatch/models"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var ErrUserNotFound = errors.New("user not found")

var hundred = decimal.NewFromInt(100)

type UserStore interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	PullCartProducts(ctx context.Context, userID primitive.ObjectID, productIDs []primitive.ObjectID) error
	AddToCart(ctx context.Context, userID, productID primitive.ObjectID) error
	ChangeCartQuantity(ctx context.Context, userID, productID primitive.ObjectID, delta int) error
	RemoveFromCart(ctx context.Context, userID, productID primitive.ObjectID) error
}

type ProductStore interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Product, error)
}

// Line is one priced cart entry.
type Line struct {
	Product  models.Product
	Quantity int
	Total    decimal.Decimal
}

// Valuation is a cart priced against the current catalog.
type Valuation struct {
	UserID      primitive.ObjectID
	Items       []Line
	Subtotal    decimal.Decimal
	PlatformFee decimal.Decimal
	FinalBill   decimal.Decimal
	// Pruned counts entries dropped because their product no longer exists.
	Pruned int
}

type Valuator struct {
	users    UserStore
	products ProductStore
	fee      decimal.Decimal
}

func NewValuator(users UserStore, products ProductStore, platformFee float64) *Valuator {
	return &Valuator{users: users, products: products, fee: decimal.NewFromFloat(platformFee)}
}

func (v *Valuator) PlatformFee() decimal.Decimal { return v.fee }

// Value prices the user's cart. Entries pointing at deleted products are dropped
// from the result and pulled from the stored cart; a failed pull is logged only.
func (v *Valuator) Value(ctx context.Context, userID primitive.ObjectID) (*Valuation, error) {
	user, err := v.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	ids := make([]primitive.ObjectID, 0, len(user.Cart))
	for _, e := range user.Cart {
		ids = append(ids, e.Product)
	}
	products, err := v.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load cart products: %w", err)
	}

	val := &Valuation{
		UserID:      user.ID,
		Items:       make([]Line, 0, len(user.Cart)),
		Subtotal:    decimal.Zero,
		PlatformFee: v.fee,
	}
	var stale []primitive.ObjectID
	for _, e := range user.Cart {
		p, ok := products[e.Product]
		if !ok {
			stale = append(stale, e.Product)
			continue
		}
		qty := e.Quantity
		if qty < 1 {
			qty = 1
		}
		total := UnitPrice(p).Mul(decimal.NewFromInt(int64(qty)))
		val.Items = append(val.Items, Line{Product: p, Quantity: qty, Total: total})
		val.Subtotal = val.Subtotal.Add(total)
	}
	val.FinalBill = val.Subtotal.Add(v.fee)
	val.Pruned = len(stale)

	if len(stale) > 0 {
		log.Printf("Removing %d invalid cart items for user %s\n", len(stale), user.ID.Hex())
		if err := v.users.PullCartProducts(ctx, user.ID, stale); err != nil {
			log.Println("Cart prune error:", err)
		}
	}
	return val, nil
}

// UnitPrice is price minus discount, in major units.
func UnitPrice(p models.Product) decimal.Decimal {
	return decimal.NewFromFloat(p.Price).Sub(decimal.NewFromFloat(p.Discount))
}

// ToMinor converts major units to minor units, rounding half away from zero.
func ToMinor(d decimal.Decimal) int64 {
	return d.Mul(hundred).Round(0).IntPart()
}

// FromMinor converts minor units to major units with two decimal places.
func FromMinor(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}
