package payments

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"scatch/cart"
	"scatch/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrEmptyCart         = errors.New("cart is empty")
	ErrNoValidItems      = errors.New("no valid items in cart")
	ErrSellerUnavailable = errors.New("seller no longer exists")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrOrderCreation     = errors.New("failed to create order")
	ErrMissingFields     = errors.New("missing payment fields")
	ErrInvalidSignature  = errors.New("invalid payment signature")
	ErrOrderNotFound     = errors.New("order not found")
	ErrOrderNotPayable   = errors.New("order can no longer be paid")
	ErrOrderNotPaid      = errors.New("order is not paid")
	ErrUnauthenticated   = errors.New("user not authenticated")
)

type Valuator interface {
	Value(ctx context.Context, userID primitive.ObjectID) (*cart.Valuation, error)
}

type OwnerDirectory interface {
	Names(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]string, error)
}

type OrderStore interface {
	Insert(ctx context.Context, o *models.Order) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	FindByGatewayID(ctx context.Context, gatewayOrderID string) (*models.Order, error)
	MarkPaid(ctx context.Context, gatewayOrderID, paymentID, signature string, at time.Time) (*models.Order, bool, error)
	MarkCartCleared(ctx context.Context, id primitive.ObjectID, at time.Time) error
	PendingCartClears(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Order, error)
	SellerRevenue(ctx context.Context, ownerID primitive.ObjectID) (int64, error)
}

type CartClearer interface {
	ClearCart(ctx context.Context, userID primitive.ObjectID) error
	PullCartProducts(ctx context.Context, userID primitive.ObjectID, productIDs []primitive.ObjectID) error
}

// EventPublisher fans paid-order events out to the live sales feed.
type EventPublisher interface {
	Publish(ctx context.Context, ev models.OrderEvent) error
}

type Deps struct {
	Valuator  Valuator
	Owners    OwnerDirectory
	Orders    OrderStore
	Carts     CartClearer
	Gateway   Gateway
	Events    EventPublisher
	KeySecret string
	Currency  string
	Now       func() time.Time
}

type Service struct {
	valuator Valuator
	owners   OwnerDirectory
	orders   OrderStore
	carts    CartClearer
	gateway  Gateway
	events   EventPublisher
	secret   string
	currency string
	now      func() time.Time
}

func NewService(d Deps) *Service {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		valuator: d.Valuator,
		owners:   d.Owners,
		orders:   d.Orders,
		carts:    d.Carts,
		gateway:  d.Gateway,
		events:   d.Events,
		secret:   d.KeySecret,
		currency: d.Currency,
		now:      now,
	}
}

type CreateOrderResult struct {
	GatewayOrderID string
	Amount         int64
	Key            string
	Order          *models.Order
}

// CreateOrder prices the cart server-side, opens a gateway order for the total and
// records it locally as created. Nothing is written locally unless the gateway succeeds.
func (s *Service) CreateOrder(ctx context.Context, userID primitive.ObjectID) (*CreateOrderResult, error) {
	val, err := s.valuator.Value(ctx, userID)
	if err != nil {
		if errors.Is(err, cart.ErrUserNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("%w: %v", ErrOrderCreation, err)
	}
	if len(val.Items) == 0 {
		if val.Pruned > 0 {
			return nil, ErrNoValidItems
		}
		return nil, ErrEmptyCart
	}

	sellers := make([]primitive.ObjectID, 0, len(val.Items))
	for _, line := range val.Items {
		sellers = append(sellers, line.Product.Owner)
	}
	known, err := s.owners.Names(ctx, sellers)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderCreation, err)
	}

	items := make([]models.OrderItem, 0, len(val.Items))
	var itemsTotal int64
	for _, line := range val.Items {
		if _, ok := known[line.Product.Owner]; !ok {
			return nil, ErrSellerUnavailable
		}
		price := cart.ToMinor(line.Total)
		if price < 0 {
			return nil, ErrInvalidAmount
		}
		items = append(items, models.OrderItem{
			Product: line.Product.ID,
			Qty:     line.Quantity,
			Price:   price,
			OwnerID: line.Product.Owner,
		})
		itemsTotal += price
	}

	fee := cart.ToMinor(val.PlatformFee)
	amount := itemsTotal + fee
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	now := s.now()
	receipt := receiptID(now, userID)
	remote, err := s.gateway.CreateOrder(ctx, GatewayOrderRequest{
		Amount:   amount,
		Currency: s.currency,
		Receipt:  receipt,
	})
	if err != nil {
		log.Println("createOrder gateway error:", err)
		return nil, fmt.Errorf("%w: %v", ErrOrderCreation, err)
	}

	order := &models.Order{
		User:            userID,
		Items:           items,
		Amount:          amount,
		PlatformFee:     fee,
		Currency:        s.currency,
		RazorpayOrderID: remote.ID,
		Receipt:         receipt,
		Status:          models.StatusCreated,
		CreatedAt:       now,
	}
	if err := s.orders.Insert(ctx, order); err != nil {
		log.Println("createOrder insert error:", err)
		return nil, fmt.Errorf("%w: %v", ErrOrderCreation, err)
	}
	log.Println("Order created:", order.ID.Hex(), "Razorpay Order:", remote.ID)

	return &CreateOrderResult{
		GatewayOrderID: remote.ID,
		Amount:         remote.Amount,
		Key:            s.gateway.KeyID(),
		Order:          order,
	}, nil
}

// receiptID keeps the gateway's 40 character receipt limit: rcpt_<8>_<8>.
func receiptID(now time.Time, userID primitive.ObjectID) string {
	ms := strconv.FormatInt(now.UnixMilli(), 10)
	hex := userID.Hex()
	return "rcpt_" + lastN(ms, 8) + "_" + lastN(hex, 8)
}

func lastN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

type VerifyRequest struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

// VerifyPayment checks the gateway signature and moves the order to paid.
// Repeated calls for a paid order return it unchanged; the cart is cleared on the
// transition, or on a later call if the earlier clear never completed.
func (s *Service) VerifyPayment(ctx context.Context, userID primitive.ObjectID, req VerifyRequest) (*models.Order, error) {
	if req.OrderID == "" || req.PaymentID == "" || req.Signature == "" {
		return nil, ErrMissingFields
	}
	if !VerifySignature(s.secret, req.OrderID, req.PaymentID, req.Signature) {
		log.Println("Razorpay signature mismatch for order:", req.OrderID)
		return nil, ErrInvalidSignature
	}

	existing, err := s.orders.FindByGatewayID(ctx, req.OrderID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("find order: %w", err)
	}
	if existing.User != userID {
		return nil, ErrOrderNotFound
	}

	order, transitioned, err := s.orders.MarkPaid(ctx, req.OrderID, req.PaymentID, req.Signature, s.now())
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("mark paid: %w", err)
	}
	if !transitioned && !order.Status.IsPaid() {
		return nil, ErrOrderNotPayable
	}

	if order.CartClearedAt == nil {
		s.clearCart(ctx, order, transitioned)
	}
	if transitioned {
		log.Println("Payment verified and order updated:", order.ID.Hex())
		s.publish(ctx, order)
	}
	return order, nil
}

// clearCart is best effort: failures are logged and left for the sweeper.
// Right after the paid transition the whole cart is emptied; a later retry removes
// only the order's own products so entries added since payment survive.
func (s *Service) clearCart(ctx context.Context, order *models.Order, whole bool) {
	var err error
	if whole {
		err = s.carts.ClearCart(ctx, order.User)
	} else {
		err = s.carts.PullCartProducts(ctx, order.User, orderProducts(order))
	}
	if err != nil {
		log.Println("Failed to clear cart:", err)
		return
	}
	at := s.now()
	if err := s.orders.MarkCartCleared(ctx, order.ID, at); err != nil {
		log.Println("Failed to mark cart cleared:", err)
		return
	}
	order.CartClearedAt = &at
}

func orderProducts(order *models.Order) []primitive.ObjectID {
	ids := make([]primitive.ObjectID, 0, len(order.Items))
	for _, it := range order.Items {
		ids = append(ids, it.Product)
	}
	return ids
}

func (s *Service) publish(ctx context.Context, order *models.Order) {
	if s.events == nil || order.PaidAt == nil {
		return
	}
	for _, seller := range order.Sellers() {
		ev := models.OrderEvent{
			OrderID:        order.ID.Hex(),
			GatewayOrderID: order.RazorpayOrderID,
			OwnerID:        seller.Hex(),
			AmountPaise:    order.SellerTotal(seller),
			PaidAt:         *order.PaidAt,
		}
		if err := s.events.Publish(ctx, ev); err != nil {
			log.Println("Order event publish error:", err)
		}
	}
}

// ReconcileCartClears clears carts of paid orders paid before cutoff whose clear never landed.
func (s *Service) ReconcileCartClears(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	pending, err := s.orders.PendingCartClears(ctx, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("list pending cart clears: %w", err)
	}
	cleared := 0
	for i := range pending {
		s.clearCart(ctx, &pending[i], false)
		if pending[i].CartClearedAt != nil {
			cleared++
		}
	}
	return cleared, nil
}

type Revenue struct {
	TotalPaise  int64   `json:"totalPaise"`
	TotalRupees float64 `json:"totalRupees"`
}

func (s *Service) OwnerRevenue(ctx context.Context, ownerID primitive.ObjectID) (Revenue, error) {
	paise, err := s.orders.SellerRevenue(ctx, ownerID)
	if err != nil {
		return Revenue{}, err
	}
	return Revenue{
		TotalPaise:  paise,
		TotalRupees: cart.FromMinor(paise).Round(2).InexactFloat64(),
	}, nil
}

func (s *Service) ListOrders(ctx context.Context, userID primitive.ObjectID) ([]models.Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

// PaidOrder returns one of the user's orders, requiring it to be paid.
func (s *Service) PaidOrder(ctx context.Context, userID, orderID primitive.ObjectID) (*models.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if order.User != userID {
		return nil, ErrOrderNotFound
	}
	if !order.Status.IsPaid() {
		return nil, ErrOrderNotPaid
	}
	return order, nil
}
