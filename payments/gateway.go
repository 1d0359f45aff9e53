package payments

import (
	"context"
	"fmt"

	razorpay "github.com/razorpay/razorpay-go"
)

// GatewayOrderRequest is what the gateway needs to open a remote order.
type GatewayOrderRequest struct {
	Amount   int64
	Currency string
	Receipt  string
}

type GatewayOrder struct {
	ID     string
	Amount int64
}

// Gateway creates remote orders and exposes the publishable key the client checkout needs.
type Gateway interface {
	CreateOrder(ctx context.Context, req GatewayOrderRequest) (*GatewayOrder, error)
	KeyID() string
}

// orderCreator is the slice of the Razorpay SDK we call.
type orderCreator interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

type RazorpayGateway struct {
	orders orderCreator
	keyID  string
}

func NewRazorpayGateway(keyID, keySecret string) *RazorpayGateway {
	client := razorpay.NewClient(keyID, keySecret)
	return &RazorpayGateway{orders: client.Order, keyID: keyID}
}

func (g *RazorpayGateway) KeyID() string { return g.keyID }

// CreateOrder opens an auto-capture order. The SDK takes no context, so a
// cancelled request is refused before the call rather than interrupted during it.
func (g *RazorpayGateway) CreateOrder(ctx context.Context, req GatewayOrderRequest) (*GatewayOrder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	body, err := g.orders.Create(map[string]interface{}{
		"amount":          req.Amount,
		"currency":        req.Currency,
		"receipt":         req.Receipt,
		"payment_capture": 1,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay create order: %w", err)
	}

	id, _ := body["id"].(string)
	if id == "" {
		return nil, fmt.Errorf("razorpay create order: response without id")
	}

	amount := req.Amount
	switch v := body["amount"].(type) {
	case float64:
		amount = int64(v)
	case int64:
		amount = v
	case int:
		amount = int64(v)
	}
	return &GatewayOrder{ID: id, Amount: amount}, nil
}
