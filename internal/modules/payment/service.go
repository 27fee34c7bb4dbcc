// README: Payment reconciliation: webhook and poll paths agree on "is this order paid".
package payment

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"cookroute/internal/types"
)

var ErrOrderMissing = errors.New("webhook event carries no order reference")

// Orders is the slice of the order lifecycle the reconciler drives. MarkPaid
// must be idempotent: a repeat for an already-paid order is a no-op success.
type Orders interface {
	MarkPaid(ctx context.Context, orderID types.ID) error
}

type Service struct {
	gw     Gateway
	orders Orders
	log    *zap.Logger
}

func NewService(gw Gateway, orders Orders, log *zap.Logger) *Service {
	return &Service{gw: gw, orders: orders, log: log}
}

// HandleWebhook verifies the provider signature over the raw body, and on a
// succeeded intent applies the paid transition. Signature failure rejects the
// event with no state effect.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, sigHeader string) (types.ID, error) {
	event, err := s.gw.VerifyWebhook(payload, sigHeader)
	if err != nil {
		return "", err
	}
	if event.Type != EventIntentSucceeded {
		return "", ErrUnknownEvent
	}
	if event.OrderID == "" {
		return "", ErrOrderMissing
	}
	if err := s.orders.MarkPaid(ctx, event.OrderID); err != nil {
		return event.OrderID, err
	}
	s.log.Info("webhook reconciled", zap.String("order_id", string(event.OrderID)))
	return event.OrderID, nil
}

// IsPaid reports whether the provider holds a succeeded intent for the order.
// Used by the poll path and by cancellation's "no succeeded intent" guard.
func (s *Service) IsPaid(ctx context.Context, orderID types.ID) (bool, error) {
	intent, err := s.gw.FindIntentByOrderID(ctx, orderID)
	if err != nil {
		return false, err
	}
	return intent != nil && intent.Status == IntentSucceeded, nil
}
