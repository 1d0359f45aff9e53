package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"scatch/cart"
	"scatch/models"
	"scatch/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testSecret = "rzp_test_secret"

var fixedNow = time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateOrder(ctx context.Context, req GatewayOrderRequest) (*GatewayOrder, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*GatewayOrder), args.Error(1)
}

func (m *MockGateway) KeyID() string {
	return m.Called().String(0)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.OrderEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev models.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

type testEnv struct {
	users    *storetest.Users
	products *storetest.Products
	owners   *storetest.Owners
	orders   *storetest.Orders
	gateway  *MockGateway
	events   *recordingPublisher
	svc      *Service

	userID  primitive.ObjectID
	sellerA primitive.ObjectID
	sellerB primitive.ObjectID
	bag     primitive.ObjectID
	wallet  primitive.ObjectID
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	e := &testEnv{
		users:    storetest.NewUsers(),
		products: storetest.NewProducts(),
		owners:   storetest.NewOwners(),
		orders:   storetest.NewOrders(),
		gateway:  new(MockGateway),
		events:   &recordingPublisher{},
	}
	e.sellerA = e.owners.Put("Seller A")
	e.sellerB = e.owners.Put("Seller B")
	e.bag = e.products.Put(models.Product{Name: "Bag", Price: 500, Discount: 50, Owner: e.sellerA})
	e.wallet = e.products.Put(models.Product{Name: "Wallet", Price: 199.99, Owner: e.sellerB})
	e.userID = e.users.Put(models.User{Email: "buyer@shop.test", Cart: []models.CartEntry{
		{Product: e.bag, Quantity: 2},
		{Product: e.wallet, Quantity: 1},
	}})

	e.svc = NewService(Deps{
		Valuator:  cart.NewValuator(e.users, e.products, 20),
		Owners:    e.owners,
		Orders:    e.orders,
		Carts:     e.users,
		Gateway:   e.gateway,
		Events:    e.events,
		KeySecret: testSecret,
		Currency:  "INR",
		Now:       func() time.Time { return fixedNow },
	})
	return e
}

// seedOrder stores a created order for the env's buyer with both sellers' lines.
func (e *testEnv) seedOrder(gatewayID string, status models.OrderStatus) primitive.ObjectID {
	return e.orders.Put(models.Order{
		User: e.userID,
		Items: []models.OrderItem{
			{Product: e.bag, Qty: 2, Price: 90000, OwnerID: e.sellerA},
			{Product: e.wallet, Qty: 1, Price: 19999, OwnerID: e.sellerB},
		},
		Amount:          111999,
		PlatformFee:     2000,
		Currency:        "INR",
		RazorpayOrderID: gatewayID,
		Status:          status,
		CreatedAt:       fixedNow.Add(-time.Hour),
	})
}

func signed(orderID, paymentID string) VerifyRequest {
	return VerifyRequest{
		OrderID:   orderID,
		PaymentID: paymentID,
		Signature: ExpectedSignature(testSecret, orderID, paymentID),
	}
}

func TestSignatureMatchesGatewayScheme(t *testing.T) {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte("order_9A33XWu170gUtm|pay_29QQoUBi66xm2f"))
	want := hex.EncodeToString(mac.Sum(nil))

	assert.Equal(t, want, ExpectedSignature(testSecret, "order_9A33XWu170gUtm", "pay_29QQoUBi66xm2f"))
	assert.True(t, VerifySignature(testSecret, "order_9A33XWu170gUtm", "pay_29QQoUBi66xm2f", want))

	mutated := []byte(want)
	if mutated[0] == 'a' {
		mutated[0] = 'b'
	} else {
		mutated[0] = 'a'
	}
	assert.False(t, VerifySignature(testSecret, "order_9A33XWu170gUtm", "pay_29QQoUBi66xm2f", string(mutated)))
	assert.False(t, VerifySignature(testSecret, "order_9A33XWu170gUtm", "pay_29QQoUBi66xm2f", strings.ToUpper(want)))
	assert.False(t, VerifySignature(testSecret, "order_9A33XWu170gUtm", "pay_other", want))
	assert.False(t, VerifySignature("other-secret", "order_9A33XWu170gUtm", "pay_29QQoUBi66xm2f", want))
}

func TestCreateOrder(t *testing.T) {
	e := newEnv(t)
	e.gateway.On("CreateOrder", mock.Anything, mock.MatchedBy(func(req GatewayOrderRequest) bool {
		return req.Amount == 111999 &&
			req.Currency == "INR" &&
			strings.HasPrefix(req.Receipt, "rcpt_") &&
			len(req.Receipt) <= 40
	})).Return(&GatewayOrder{ID: "order_1", Amount: 111999}, nil)
	e.gateway.On("KeyID").Return("rzp_test_key")

	res, err := e.svc.CreateOrder(context.Background(), e.userID)
	require.NoError(t, err)
	assert.Equal(t, "order_1", res.GatewayOrderID)
	assert.Equal(t, int64(111999), res.Amount)
	assert.Equal(t, "rzp_test_key", res.Key)

	orders := e.orders.All()
	require.Len(t, orders, 1)
	o := orders[0]
	assert.Equal(t, models.StatusCreated, o.Status)
	assert.Equal(t, "order_1", o.RazorpayOrderID)
	assert.Equal(t, e.userID, o.User)
	assert.Equal(t, int64(2000), o.PlatformFee)
	assert.Equal(t, o.Amount, int64(90000+19999)+o.PlatformFee)
	require.Len(t, o.Items, 2)
	assert.Equal(t, models.OrderItem{Product: e.bag, Qty: 2, Price: 90000, OwnerID: e.sellerA}, o.Items[0])
	assert.Equal(t, models.OrderItem{Product: e.wallet, Qty: 1, Price: 19999, OwnerID: e.sellerB}, o.Items[1])
	assert.Regexp(t, `^rcpt_\d{8}_[0-9a-f]{8}$`, o.Receipt)

	e.gateway.AssertExpectations(t)
}

func TestCreateOrderEmptyCartWritesNothing(t *testing.T) {
	e := newEnv(t)
	e.users.Put(models.User{ID: e.userID, Cart: nil})

	_, err := e.svc.CreateOrder(context.Background(), e.userID)
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Empty(t, e.orders.All())
	e.gateway.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
}

func TestCreateOrderOnlyStaleItems(t *testing.T) {
	e := newEnv(t)
	e.users.Put(models.User{ID: e.userID, Cart: []models.CartEntry{{Product: primitive.NewObjectID(), Quantity: 1}}})

	_, err := e.svc.CreateOrder(context.Background(), e.userID)
	assert.ErrorIs(t, err, ErrNoValidItems)

	_, err = e.svc.CreateOrder(context.Background(), e.userID)
	assert.ErrorIs(t, err, ErrEmptyCart)

	assert.Empty(t, e.orders.All())
	e.gateway.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
}

func TestCreateOrderMissingSeller(t *testing.T) {
	e := newEnv(t)
	orphan := e.products.Put(models.Product{Name: "Orphan", Price: 10, Owner: primitive.NewObjectID()})
	e.users.Put(models.User{ID: e.userID, Cart: []models.CartEntry{{Product: orphan, Quantity: 1}}})

	_, err := e.svc.CreateOrder(context.Background(), e.userID)
	assert.ErrorIs(t, err, ErrSellerUnavailable)
	e.gateway.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
}

func TestCreateOrderGatewayFailureLeavesNoOrder(t *testing.T) {
	e := newEnv(t)
	e.gateway.On("CreateOrder", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

	_, err := e.svc.CreateOrder(context.Background(), e.userID)
	assert.ErrorIs(t, err, ErrOrderCreation)
	assert.Empty(t, e.orders.All())
}

func TestCreateOrderInsertFailure(t *testing.T) {
	e := newEnv(t)
	e.orders.InsertErr = errors.New("write concern")
	e.gateway.On("CreateOrder", mock.Anything, mock.Anything).Return(&GatewayOrder{ID: "order_1", Amount: 111999}, nil)

	_, err := e.svc.CreateOrder(context.Background(), e.userID)
	assert.ErrorIs(t, err, ErrOrderCreation)
}

func TestCreateOrderUnknownUser(t *testing.T) {
	e := newEnv(t)
	_, err := e.svc.CreateOrder(context.Background(), primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestVerifyPaymentMarksPaidAndClearsCart(t *testing.T) {
	e := newEnv(t)
	id := e.seedOrder("order_1", models.StatusCreated)

	order, err := e.svc.VerifyPayment(context.Background(), e.userID, signed("order_1", "pay_1"))
	require.NoError(t, err)
	assert.Equal(t, id, order.ID)
	assert.Equal(t, models.StatusPaid, order.Status)
	assert.Equal(t, "pay_1", order.PaymentID)
	require.NotNil(t, order.PaidAt)
	assert.Equal(t, fixedNow, *order.PaidAt)
	assert.NotNil(t, order.CartClearedAt)
	assert.Empty(t, e.users.Cart(e.userID))

	require.Len(t, e.events.events, 2)
	bySeller := map[string]int64{}
	for _, ev := range e.events.events {
		assert.Equal(t, "order_1", ev.GatewayOrderID)
		bySeller[ev.OwnerID] = ev.AmountPaise
	}
	assert.Equal(t, int64(90000), bySeller[e.sellerA.Hex()])
	assert.Equal(t, int64(19999), bySeller[e.sellerB.Hex()])
}

func TestVerifyPaymentTwiceIsNoOp(t *testing.T) {
	e := newEnv(t)
	e.seedOrder("order_1", models.StatusCreated)

	first, err := e.svc.VerifyPayment(context.Background(), e.userID, signed("order_1", "pay_1"))
	require.NoError(t, err)

	e.users.Put(models.User{ID: e.userID, Cart: []models.CartEntry{{Product: e.bag, Quantity: 1}}})
	second, err := e.svc.VerifyPayment(context.Background(), e.userID, signed("order_1", "pay_1"))
	require.NoError(t, err)

	assert.Equal(t, models.StatusPaid, second.Status)
	assert.Equal(t, *first.PaidAt, *second.PaidAt)
	assert.Len(t, e.events.events, 2)
	assert.Equal(t, 1, e.users.Clears)
	assert.Len(t, e.users.Cart(e.userID), 1, "a cart refilled after payment is left alone")
}

func TestVerifyPaymentInvalidSignatureLeavesOrder(t *testing.T) {
	e := newEnv(t)
	e.seedOrder("order_1", models.StatusCreated)

	req := signed("order_1", "pay_1")
	sig := []byte(req.Signature)
	if sig[len(sig)-1] == '0' {
		sig[len(sig)-1] = '1'
	} else {
		sig[len(sig)-1] = '0'
	}
	req.Signature = string(sig)

	_, err := e.svc.VerifyPayment(context.Background(), e.userID, req)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	o, err := e.orders.FindByGatewayID(context.Background(), "order_1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCreated, o.Status)
	assert.Empty(t, o.PaymentID)
	assert.Len(t, e.users.Cart(e.userID), 2)
	assert.Empty(t, e.events.events)
}

func TestVerifyPaymentErrors(t *testing.T) {
	e := newEnv(t)
	e.seedOrder("order_refunded", models.StatusRefunded)
	stranger := e.orders.Put(models.Order{User: primitive.NewObjectID(), RazorpayOrderID: "order_other", Status: models.StatusCreated})

	tests := []struct {
		name string
		req  VerifyRequest
		want error
	}{
		{"missing payment id", VerifyRequest{OrderID: "order_1", Signature: "x"}, ErrMissingFields},
		{"missing signature", VerifyRequest{OrderID: "order_1", PaymentID: "pay_1"}, ErrMissingFields},
		{"unknown order", signed("order_nope", "pay_1"), ErrOrderNotFound},
		{"another user's order", signed("order_other", "pay_1"), ErrOrderNotFound},
		{"refunded order", signed("order_refunded", "pay_1"), ErrOrderNotPayable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.svc.VerifyPayment(context.Background(), e.userID, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	o, err := e.orders.FindByID(context.Background(), stranger)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCreated, o.Status)
}

func TestVerifyPaymentFromFailed(t *testing.T) {
	e := newEnv(t)
	e.seedOrder("order_1", models.StatusFailed)

	order, err := e.svc.VerifyPayment(context.Background(), e.userID, signed("order_1", "pay_2"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaid, order.Status)
	assert.Equal(t, "pay_2", order.PaymentID)
}

func TestVerifyPaymentRetriesFailedCartClear(t *testing.T) {
	e := newEnv(t)
	e.seedOrder("order_1", models.StatusCreated)
	e.users.ClearErr = errors.New("mongo timeout")

	order, err := e.svc.VerifyPayment(context.Background(), e.userID, signed("order_1", "pay_1"))
	require.NoError(t, err, "a failed cart clear must not fail verification")
	assert.Equal(t, models.StatusPaid, order.Status)
	assert.Nil(t, order.CartClearedAt)
	assert.Len(t, e.users.Cart(e.userID), 2)

	e.users.ClearErr = nil
	order, err = e.svc.VerifyPayment(context.Background(), e.userID, signed("order_1", "pay_1"))
	require.NoError(t, err)
	assert.NotNil(t, order.CartClearedAt)
	assert.Empty(t, e.users.Cart(e.userID))
	assert.Len(t, e.events.events, 2, "events are only published on the transition")
}

type stubLocker struct {
	grant bool
	calls int
}

func (l *stubLocker) TryLock(context.Context, string, time.Duration) (bool, error) {
	l.calls++
	return l.grant, nil
}

func TestSweeperClearsStrandedCarts(t *testing.T) {
	e := newEnv(t)
	paidAt := fixedNow.Add(-2 * time.Minute)
	recent := fixedNow.Add(-10 * time.Second)
	lines := []models.OrderItem{
		{Product: e.bag, Qty: 2, Price: 90000, OwnerID: e.sellerA},
		{Product: e.wallet, Qty: 1, Price: 19999, OwnerID: e.sellerB},
	}
	stranded := e.orders.Put(models.Order{User: e.userID, Items: lines, RazorpayOrderID: "order_1", Status: models.StatusPaid, PaidAt: &paidAt})
	fresh := e.orders.Put(models.Order{User: e.userID, Items: lines, RazorpayOrderID: "order_2", Status: models.StatusPaid, PaidAt: &recent})

	denied := NewSweeper(e.svc, &stubLocker{grant: false}, time.Minute)
	assert.Equal(t, 0, denied.Sweep(context.Background()))
	assert.Len(t, e.users.Cart(e.userID), 2)

	lock := &stubLocker{grant: true}
	sweeper := NewSweeper(e.svc, lock, time.Minute)
	assert.Equal(t, 1, sweeper.Sweep(context.Background()))
	assert.Equal(t, 1, lock.calls)
	assert.Empty(t, e.users.Cart(e.userID))

	o, _ := e.orders.FindByID(context.Background(), stranded)
	assert.NotNil(t, o.CartClearedAt)
	o, _ = e.orders.FindByID(context.Background(), fresh)
	assert.Nil(t, o.CartClearedAt)

	assert.Equal(t, 0, NewSweeper(e.svc, nil, time.Minute).Sweep(context.Background()))
}

func TestSweeperKeepsItemsAddedAfterPayment(t *testing.T) {
	e := newEnv(t)
	e.seedOrder("order_1", models.StatusCreated)
	e.users.ClearErr = errors.New("mongo timeout")

	_, err := e.svc.VerifyPayment(context.Background(), e.userID, signed("order_1", "pay_1"))
	require.NoError(t, err)
	e.users.ClearErr = nil

	belt := e.products.Put(models.Product{Name: "Belt", Price: 300, Owner: e.sellerA})
	e.users.Put(models.User{ID: e.userID, Cart: []models.CartEntry{
		{Product: e.bag, Quantity: 2},
		{Product: e.wallet, Quantity: 1},
		{Product: belt, Quantity: 1},
	}})

	now := fixedNow.Add(5 * time.Minute)
	e.svc.now = func() time.Time { return now }

	sweeper := NewSweeper(e.svc, nil, time.Minute)
	assert.Equal(t, 1, sweeper.Sweep(context.Background()))
	assert.Equal(t, []models.CartEntry{{Product: belt, Quantity: 1}}, e.users.Cart(e.userID))

	o, err := e.orders.FindByGatewayID(context.Background(), "order_1")
	require.NoError(t, err)
	assert.NotNil(t, o.CartClearedAt)
}

func TestVerifyRetryKeepsItemsAddedAfterPayment(t *testing.T) {
	e := newEnv(t)
	e.seedOrder("order_1", models.StatusCreated)
	e.users.ClearErr = errors.New("mongo timeout")

	_, err := e.svc.VerifyPayment(context.Background(), e.userID, signed("order_1", "pay_1"))
	require.NoError(t, err)
	e.users.ClearErr = nil

	belt := e.products.Put(models.Product{Name: "Belt", Price: 300, Owner: e.sellerA})
	e.users.Put(models.User{ID: e.userID, Cart: []models.CartEntry{
		{Product: e.wallet, Quantity: 1},
		{Product: belt, Quantity: 3},
	}})

	order, err := e.svc.VerifyPayment(context.Background(), e.userID, signed("order_1", "pay_1"))
	require.NoError(t, err)
	assert.NotNil(t, order.CartClearedAt)
	assert.Equal(t, []models.CartEntry{{Product: belt, Quantity: 3}}, e.users.Cart(e.userID))
	assert.Equal(t, 1, e.users.Clears, "only the transition empties the whole cart")
}

func TestOwnerRevenue(t *testing.T) {
	e := newEnv(t)
	a, b := e.sellerA, e.sellerB
	put := func(status models.OrderStatus, items ...models.OrderItem) {
		e.orders.Put(models.Order{User: e.userID, RazorpayOrderID: primitive.NewObjectID().Hex(), Status: status, Items: items})
	}
	put(models.StatusPaid, models.OrderItem{OwnerID: a, Price: 500}, models.OrderItem{OwnerID: b, Price: 1200})
	put(models.StatusCaptured, models.OrderItem{OwnerID: a, Price: 300})
	put(models.StatusCreated, models.OrderItem{OwnerID: a, Price: 999})
	put(models.StatusFailed, models.OrderItem{OwnerID: a, Price: 111})

	rev, err := e.svc.OwnerRevenue(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, int64(800), rev.TotalPaise)
	assert.Equal(t, 8.0, rev.TotalRupees)

	rev, err = e.svc.OwnerRevenue(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, int64(1200), rev.TotalPaise)
	assert.Equal(t, 12.0, rev.TotalRupees)

	rev, err = e.svc.OwnerRevenue(context.Background(), primitive.NewObjectID())
	require.NoError(t, err)
	assert.Equal(t, Revenue{}, rev)
}

func TestReceiptID(t *testing.T) {
	uid, _ := primitive.ObjectIDFromHex("65a1b2c3d4e5f60718293a4b")
	got := receiptID(time.UnixMilli(1736935200123), uid)
	assert.Equal(t, "rcpt_35200123_18293a4b", got)
}
