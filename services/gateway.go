package services

import (
	"context"
	"fmt"

	apperrors "exam-portal/errors"
	"exam-portal/logger"
	"exam-portal/models"

	"github.com/razorpay/razorpay-go"
)

// OrderGateway creates orders at the payment gateway.
type OrderGateway interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (*models.GatewayOrder, error)
	// KeyID is the public key the checkout widget is opened with.
	KeyID() string
}

// RazorpayGateway is the OrderGateway backed by the Razorpay Orders API.
// The SDK authenticates with HTTP Basic auth using the key id and secret.
type RazorpayGateway struct {
	client *razorpay.Client
	keyID  string
}

func NewRazorpayGateway(keyID, keySecret string) (*RazorpayGateway, error) {
	if keyID == "" || keySecret == "" {
		return nil, fmt.Errorf("razorpay credentials not configured")
	}
	return &RazorpayGateway{
		client: razorpay.NewClient(keyID, keySecret),
		keyID:  keyID,
	}, nil
}

func (g *RazorpayGateway) KeyID() string {
	return g.keyID
}

func (g *RazorpayGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (*models.GatewayOrder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	noteData := make(map[string]interface{}, len(notes))
	for k, v := range notes {
		noteData[k] = v
	}

	data := map[string]interface{}{
		"amount":   amount,
		"currency": currency,
		"receipt":  receipt,
		"notes":    noteData,
	}

	resp, err := g.client.Order.Create(data, nil)
	if err != nil {
		logger.Warn("[PAYMENT] razorpay order create rejected - receipt: %s, error: %v", receipt, err)
		return nil, apperrors.E(apperrors.Gateway, "razorpay order creation failed", err,
			apperrors.Detail{Value: map[string]interface{}{"error": map[string]interface{}{"description": err.Error()}}})
	}

	return parseGatewayOrder(resp)
}

// parseGatewayOrder validates the order entity returned by the gateway.
func parseGatewayOrder(resp map[string]interface{}) (*models.GatewayOrder, error) {
	id, _ := resp["id"].(string)
	if id == "" {
		return nil, apperrors.E(apperrors.Gateway, "razorpay returned an order without id", apperrors.Detail{Value: resp})
	}

	order := &models.GatewayOrder{ID: id}
	order.Currency, _ = resp["currency"].(string)
	order.Receipt, _ = resp["receipt"].(string)

	switch v := resp["amount"].(type) {
	case float64:
		order.Amount = int64(v)
	case int64:
		order.Amount = v
	case int:
		order.Amount = int64(v)
	}

	return order, nil
}
