// README: Order aggregate and status definitions.
package order

import (
	"time"

	"cookroute/internal/types"
)

type Status string

const (
	StatusNone          Status = "none"
	StatusPending       Status = "pending"
	StatusPaid          Status = "paid"
	StatusAccepted      Status = "accepted"
	StatusWaitingPickup Status = "waiting_for_pickup"
	StatusDelivering    Status = "delivering"
	StatusDelivered     Status = "delivered"
	StatusCancelled     Status = "cancelled"
)

type Order struct {
	ID               types.ID
	UserID           types.ID
	CookID           types.ID
	DriverID         *types.ID
	Status           Status
	StatusVersion    int
	TotalPrice       types.Money
	Tip              int64
	DeliveryLocation types.Point
	CreatedAt        time.Time
	PaidAt           *time.Time
	AcceptedAt       *time.Time
	ReadyAt          *time.Time
	PickedUpAt       *time.Time
	DeliveredAt      *time.Time
	CancelledAt      *time.Time
}

// Item is an order line with the food price snapshotted at order time.
// Items are written once with the order and never mutated, so historical
// receipts survive later menu price changes.
type Item struct {
	ID           int64
	OrderID      types.ID
	FoodID       types.ID
	Quantity     int
	PriceAtOrder int64
	Note         string
}

type Event struct {
	ID         int64
	OrderID    types.ID
	FromStatus Status
	ToStatus   Status
	ActorType  string
	ActorID    *types.ID
	CreatedAt  time.Time
}

// AllowedTransitions represents the order state flow (diagram) as code.
// Cancellation is reachable from pending only; everything past payment runs
// to completion.
var AllowedTransitions = map[Status][]Status{
	StatusPending:       {StatusPaid, StatusCancelled},
	StatusPaid:          {StatusAccepted},
	StatusAccepted:      {StatusWaitingPickup},
	StatusWaitingPickup: {StatusDelivering},
	StatusDelivering:    {StatusDelivered},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// DriverVisible reports whether an order in this status may carry a driver
// assignment.
func DriverVisible(s Status) bool {
	return s == StatusWaitingPickup || s == StatusDelivering || s == StatusDelivered
}
