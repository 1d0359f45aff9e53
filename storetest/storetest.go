// Package storetest provides in-memory stores with the same semantics as the
// Mongo stores in package db, for handler and service tests.
package storetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"scatch/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Users struct {
	mu   sync.Mutex
	byID map[primitive.ObjectID]*models.User

	// PullErr and ClearErr, when set, fail the matching operation.
	PullErr  error
	ClearErr error
	Pulls    int
	Clears   int
}

func NewUsers() *Users {
	return &Users{byID: map[primitive.ObjectID]*models.User{}}
}

// Put stores u, assigning an id when it has none.
func (s *Users) Put(u models.User) primitive.ObjectID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	u.Cart = append([]models.CartEntry{}, u.Cart...)
	s.byID[u.ID] = &u
	return u.ID
}

func (s *Users) Cart(id primitive.ObjectID) []models.CartEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return nil
	}
	return append([]models.CartEntry{}, u.Cart...)
}

func (s *Users) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *u
	cp.Cart = append([]models.CartEntry{}, u.Cart...)
	return &cp, nil
}

func (s *Users) PullCartProducts(_ context.Context, userID primitive.ObjectID, productIDs []primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Pulls++
	if s.PullErr != nil {
		return s.PullErr
	}
	u, ok := s.byID[userID]
	if !ok {
		return models.ErrNotFound
	}
	drop := map[primitive.ObjectID]bool{}
	for _, id := range productIDs {
		drop[id] = true
	}
	kept := u.Cart[:0]
	for _, e := range u.Cart {
		if !drop[e.Product] {
			kept = append(kept, e)
		}
	}
	u.Cart = kept
	return nil
}

func (s *Users) AddToCart(_ context.Context, userID, productID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[userID]
	if !ok {
		return models.ErrNotFound
	}
	for i := range u.Cart {
		if u.Cart[i].Product == productID {
			u.Cart[i].Quantity++
			return nil
		}
	}
	u.Cart = append(u.Cart, models.CartEntry{Product: productID, Quantity: 1})
	return nil
}

func (s *Users) ChangeCartQuantity(_ context.Context, userID, productID primitive.ObjectID, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[userID]
	if !ok {
		return models.ErrNotFound
	}
	for i := range u.Cart {
		if u.Cart[i].Product != productID {
			continue
		}
		u.Cart[i].Quantity += delta
		if u.Cart[i].Quantity <= 0 {
			u.Cart = append(u.Cart[:i], u.Cart[i+1:]...)
		}
		return nil
	}
	return models.ErrNotFound
}

func (s *Users) RemoveFromCart(ctx context.Context, userID, productID primitive.ObjectID) error {
	return s.PullCartProducts(ctx, userID, []primitive.ObjectID{productID})
}

func (s *Users) ClearCart(_ context.Context, userID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Clears++
	if s.ClearErr != nil {
		return s.ClearErr
	}
	u, ok := s.byID[userID]
	if !ok {
		return models.ErrNotFound
	}
	u.Cart = []models.CartEntry{}
	return nil
}

type Products struct {
	mu   sync.Mutex
	byID map[primitive.ObjectID]models.Product
}

func NewProducts() *Products {
	return &Products{byID: map[primitive.ObjectID]models.Product{}}
}

func (s *Products) Put(p models.Product) primitive.ObjectID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	s.byID[p.ID] = p
	return p.ID
}

func (s *Products) Remove(id primitive.ObjectID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, id)
}

func (s *Products) FindByID(_ context.Context, id primitive.ObjectID) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	p.Image = nil
	return &p, nil
}

func (s *Products) FindByIDs(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[primitive.ObjectID]models.Product{}
	for _, id := range ids {
		if p, ok := s.byID[id]; ok {
			p.Image = nil
			out[id] = p
		}
	}
	return out, nil
}

func (s *Products) Create(_ context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	now := time.Now()
	p.CreatedAt, p.UpdatedAt = now, now
	s.byID[p.ID] = *p
	return nil
}

// Update understands the keys the products handler sets.
func (s *Products) Update(_ context.Context, id, owner primitive.ObjectID, set bson.M) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok || p.Owner != owner {
		return nil, models.ErrNotFound
	}
	for k, v := range set {
		switch k {
		case "name":
			p.Name = v.(string)
		case "price":
			p.Price = v.(float64)
		case "discount":
			p.Discount = v.(float64)
		case "bgcolor":
			p.BgColor = v.(string)
		case "textcolor":
			p.TextColor = v.(string)
		case "panelcolor":
			p.PanelColor = v.(string)
		case "image":
			p.Image = v.([]byte)
		case "imageFilename":
			p.ImageFilename = v.(string)
		case "imageMimeType":
			p.ImageMimeType = v.(string)
		}
	}
	p.UpdatedAt = time.Now()
	s.byID[id] = p
	p.Image = nil
	return &p, nil
}

func (s *Products) Delete(_ context.Context, id, owner primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok || p.Owner != owner {
		return models.ErrNotFound
	}
	delete(s.byID, id)
	return nil
}

func (s *Products) List(_ context.Context) ([]models.Product, error) {
	return s.filter(func(models.Product) bool { return true }), nil
}

func (s *Products) ListByOwner(_ context.Context, owner primitive.ObjectID) ([]models.Product, error) {
	return s.filter(func(p models.Product) bool { return p.Owner == owner }), nil
}

func (s *Products) Image(_ context.Context, id primitive.ObjectID) ([]byte, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok || len(p.Image) == 0 {
		return nil, "", models.ErrNotFound
	}
	return p.Image, p.ImageMimeType, nil
}

// Stored returns the product including its image bytes.
func (s *Products) Stored(id primitive.ObjectID) (models.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	return p, ok
}

func (s *Products) filter(keep func(models.Product) bool) []models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Product{}
	for _, p := range s.byID {
		if keep(p) {
			p.Image = nil
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Hex() < out[j].ID.Hex() })
	return out
}

type Owners struct {
	mu    sync.Mutex
	names map[primitive.ObjectID]string
}

func NewOwners() *Owners {
	return &Owners{names: map[primitive.ObjectID]string{}}
}

func (s *Owners) Put(name string) primitive.ObjectID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := primitive.NewObjectID()
	s.names[id] = name
	return id
}

func (s *Owners) Names(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[primitive.ObjectID]string{}
	for _, id := range ids {
		if n, ok := s.names[id]; ok {
			out[id] = n
		}
	}
	return out, nil
}

func (s *Owners) FindByID(_ context.Context, id primitive.ObjectID) (*models.Owner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.names[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &models.Owner{ID: id, Fullname: n}, nil
}

type Orders struct {
	mu   sync.Mutex
	byID map[primitive.ObjectID]*models.Order

	InsertErr error
}

func NewOrders() *Orders {
	return &Orders{byID: map[primitive.ObjectID]*models.Order{}}
}

func (s *Orders) All() []models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Order, 0, len(s.byID))
	for _, o := range s.byID {
		out = append(out, *o)
	}
	return out
}

// Put stores o as is, for seeding orders in a given state.
func (s *Orders) Put(o models.Order) primitive.ObjectID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	s.byID[o.ID] = &o
	return o.ID
}

func (s *Orders) Insert(_ context.Context, o *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.InsertErr != nil {
		return s.InsertErr
	}
	for _, existing := range s.byID {
		if existing.RazorpayOrderID == o.RazorpayOrderID {
			return models.ErrDuplicate
		}
	}
	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	now := time.Now()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
	cp := *o
	s.byID[o.ID] = &cp
	return nil
}

func (s *Orders) FindByID(_ context.Context, id primitive.ObjectID) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.byID[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *Orders) FindByGatewayID(_ context.Context, gatewayOrderID string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.byGateway(gatewayOrderID)
	if o == nil {
		return nil, models.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *Orders) MarkPaid(_ context.Context, gatewayOrderID, paymentID, signature string, at time.Time) (*models.Order, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.byGateway(gatewayOrderID)
	if o == nil {
		return nil, false, models.ErrNotFound
	}
	if o.Status != models.StatusCreated && o.Status != models.StatusFailed {
		cp := *o
		return &cp, false, nil
	}
	paidAt := at
	o.Status = models.StatusPaid
	o.PaymentID = paymentID
	o.PaymentSignature = signature
	o.PaidAt = &paidAt
	o.UpdatedAt = at
	cp := *o
	return &cp, true, nil
}

func (s *Orders) MarkCartCleared(_ context.Context, id primitive.ObjectID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.byID[id]
	if !ok {
		return models.ErrNotFound
	}
	cleared := at
	o.CartClearedAt = &cleared
	return nil
}

func (s *Orders) PendingCartClears(_ context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Order
	for _, o := range s.byID {
		if o.Status.IsPaid() && o.CartClearedAt == nil && o.PaidAt != nil && !o.PaidAt.After(cutoff) {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaidAt.Before(*out[j].PaidAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Orders) ListByUser(_ context.Context, userID primitive.ObjectID) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Order{}
	for _, o := range s.byID {
		if o.User == userID {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Orders) SellerRevenue(_ context.Context, ownerID primitive.ObjectID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	for _, o := range s.byID {
		if o.Status.IsPaid() {
			total += o.SellerTotal(ownerID)
		}
	}
	return total, nil
}

func (s *Orders) byGateway(id string) *models.Order {
	for _, o := range s.byID {
		if o.RazorpayOrderID == id {
			return o
		}
	}
	return nil
}
