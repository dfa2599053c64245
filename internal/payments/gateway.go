package payments

import (
	"context"
	"fmt"

	"github.com/razorpay/razorpay-go"

	"github.com/jeevancare/appointment-platform/pkg/logging"
)

// CreateOrderParams describe one payable order covering a set of pending
// appointments. ReceiptID is the idempotency key: retrying with the same
// receipt does not create a second charge for the same appointment set.
type CreateOrderParams struct {
	AmountCents int64
	Currency    string
	ReceiptID   string
	Notes       map[string]string
}

// Gateway creates payable orders against the external payment provider.
type Gateway interface {
	CreateOrder(ctx context.Context, params CreateOrderParams) (orderID string, err error)
}

// RazorpayGateway is the production gateway backed by the Razorpay Orders API.
type RazorpayGateway struct {
	client *razorpay.Client
	logger *logging.Logger
}

func NewRazorpayGateway(keyID, keySecret string, logger *logging.Logger) *RazorpayGateway {
	if logger == nil {
		logger = logging.Default()
	}
	return &RazorpayGateway{
		client: razorpay.NewClient(keyID, keySecret),
		logger: logger,
	}
}

// CreateOrder creates a Razorpay order. The SDK has no context support, so
// ctx only gates the call on entry.
func (g *RazorpayGateway) CreateOrder(ctx context.Context, params CreateOrderParams) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	notes := make(map[string]interface{}, len(params.Notes))
	for k, v := range params.Notes {
		notes[k] = v
	}
	data := map[string]interface{}{
		"amount":   params.AmountCents,
		"currency": params.Currency,
		"receipt":  params.ReceiptID,
		"notes":    notes,
	}

	body, err := g.client.Order.Create(data, nil)
	if err != nil {
		g.logger.Error("razorpay order creation failed", "error", err, "receipt", params.ReceiptID)
		return "", fmt.Errorf("%w: %v", ErrGateway, err)
	}
	orderID, ok := body["id"].(string)
	if !ok || orderID == "" {
		return "", fmt.Errorf("%w: order response missing id", ErrGateway)
	}
	return orderID, nil
}
