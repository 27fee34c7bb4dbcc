// README: Stripe-backed Gateway implementation.
package payment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"

	"cookroute/internal/types"
)

type StripeGateway struct {
	api            *client.API
	endpointSecret string
}

func NewStripeGateway(secret, endpointSecret string) *StripeGateway {
	api := &client.API{}
	api.Init(secret, nil)
	return &StripeGateway{api: api, endpointSecret: endpointSecret}
}

func (g *StripeGateway) CreateIntent(ctx context.Context, p IntentParams) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Params: stripe.Params{
			Context: ctx,
			Metadata: map[string]string{
				"orderId": string(p.OrderID),
				"userId":  string(p.UserID),
			},
		},
		// Stripe uses minor units.
		Amount:             stripe.Int64(p.Amount * 100),
		Currency:           stripe.String(p.Currency),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Description:        stripe.String(p.Description),
	}
	if p.ReceiptEmail != "" {
		params.ReceiptEmail = stripe.String(p.ReceiptEmail)
	}
	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("creating payment intent: %w", err)
	}
	return toIntent(pi), nil
}

func (g *StripeGateway) FindIntentByOrderID(ctx context.Context, orderID types.ID) (*Intent, error) {
	iter := g.api.PaymentIntents.Search(&stripe.PaymentIntentSearchParams{
		SearchParams: stripe.SearchParams{
			Context: ctx,
			Query:   fmt.Sprintf("metadata['orderId']:'%s'", string(orderID)),
		},
	})
	if iter.Next() {
		return toIntent(iter.PaymentIntent()), nil
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("searching payment intents: %w", err)
	}
	return nil, nil
}

func (g *StripeGateway) VerifyWebhook(payload []byte, sigHeader string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEvent(payload, sigHeader, g.endpointSecret)
	if err != nil {
		return nil, ErrBadSignature
	}
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("decoding webhook object: %w", err)
	}
	return &WebhookEvent{
		Type:    string(event.Type),
		OrderID: types.ID(pi.Metadata["orderId"]),
	}, nil
}

func toIntent(pi *stripe.PaymentIntent) *Intent {
	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
	}
}
