// README: Payment provider port: intents keyed by order reference, verified webhooks.
package payment

import (
	"context"
	"errors"

	"cookroute/internal/types"
)

var (
	ErrBadSignature = errors.New("webhook signature verification failed")
	ErrUnknownEvent = errors.New("unknown webhook event type")
)

const (
	IntentSucceeded = "succeeded"

	EventIntentSucceeded = "payment_intent.succeeded"
)

// Intent is the provider-side payment record for one order.
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
}

type IntentParams struct {
	OrderID      types.ID
	UserID       types.ID
	Amount       int64 // major units; the gateway converts to minor units
	Currency     string
	Description  string
	ReceiptEmail string
}

// WebhookEvent is a provider event that passed signature verification.
type WebhookEvent struct {
	Type    string
	OrderID types.ID
}

// Gateway abstracts the payment provider. FindIntentByOrderID returns
// (nil, nil) when no intent is tagged with the order reference.
type Gateway interface {
	CreateIntent(ctx context.Context, p IntentParams) (*Intent, error)
	FindIntentByOrderID(ctx context.Context, orderID types.ID) (*Intent, error)
	VerifyWebhook(payload []byte, sigHeader string) (*WebhookEvent, error)
}
