// README: Order lifecycle: every status transition is defined once here,
// whether it arrives over HTTP, the live connection, or the payment webhook.
package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cookroute/internal/modules/catalog"
	"cookroute/internal/modules/driver"
	"cookroute/internal/modules/payment"
	"cookroute/internal/notify"
	"cookroute/internal/types"
)

var (
	ErrBadRequest   = errors.New("bad request")
	ErrNotFound     = errors.New("order not found")
	ErrForbidden    = errors.New("not your order")
	ErrInvalidState = errors.New("invalid state transition")
	ErrConflict     = errors.New("order state conflict")
	ErrNoDriver     = errors.New("no driver available")
	ErrTooNew       = errors.New("order too new to cancel")
	ErrAlreadyPaid  = errors.New("order already paid")
	ErrMixedCooks   = errors.New("all foods must be from the same cook")
)

// Catalog supplies the food/cook reads checkout depends on.
type Catalog interface {
	FoodsFromOnlineCooks(ctx context.Context, ids []types.ID) ([]catalog.Food, error)
	CookByID(ctx context.Context, id types.ID) (*catalog.Cook, error)
}

// Matcher claims and releases drivers for orders. Ensure is re-entrant per
// order and must never double-book a driver.
type Matcher interface {
	Ensure(ctx context.Context, orderID types.ID, pickup types.Point) (*driver.Driver, error)
	Release(ctx context.Context, orderID types.ID) (types.ID, error)
}

// ServiceArea answers "is any online driver within reach of this point".
type ServiceArea interface {
	OnlineWithin(ctx context.Context, p types.Point, radiusKm float64) (bool, error)
}

// Locator reports a driver's freshest position for customer tracking.
type Locator interface {
	LivePosition(ctx context.Context, id types.ID) (types.Point, error)
}

// Notifier fans a committed transition out to the affected parties.
// Best-effort: it has no error return on purpose.
type Notifier interface {
	Notify(ctx context.Context, role notify.Role, id types.ID, event string, payload any, push notify.Push)
}

type Config struct {
	DeliveryFee     int64
	Currency        string
	CancelGrace     time.Duration
	ServiceRadiusKm float64
}

type Service struct {
	store    Store
	catalog  Catalog
	matcher  Matcher
	area     ServiceArea
	locator  Locator
	payments payment.Gateway
	notifier Notifier
	cfg      Config
	log      *zap.Logger
	now      func() time.Time
}

func NewService(
	store Store,
	cat Catalog,
	matcher Matcher,
	area ServiceArea,
	locator Locator,
	payments payment.Gateway,
	notifier Notifier,
	cfg Config,
	log *zap.Logger,
) *Service {
	return &Service{
		store:    store,
		catalog:  cat,
		matcher:  matcher,
		area:     area,
		locator:  locator,
		payments: payments,
		notifier: notifier,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

type Line struct {
	FoodID   types.ID
	Quantity int
	Note     string
}

type CheckoutCommand struct {
	UserID    types.ID
	UserName  string
	UserEmail string
	Items     []Line
	Delivery  types.Point
	Tip       int64
}

type CheckoutResult struct {
	OrderID      types.ID
	ClientSecret string
}

// Checkout validates the cart, snapshots prices, persists the order as
// pending, and obtains a payment intent. Nothing here assigns a driver; that
// only happens when the cook marks the food ready.
func (s *Service) Checkout(ctx context.Context, cmd CheckoutCommand) (*CheckoutResult, error) {
	if cmd.UserID == "" || len(cmd.Items) == 0 {
		return nil, ErrBadRequest
	}
	for _, line := range cmd.Items {
		if line.FoodID == "" || line.Quantity < 1 {
			return nil, ErrBadRequest
		}
	}

	// Duplicate food ids collapse for the existence check; each line keeps
	// its own quantity and note.
	seen := map[types.ID]bool{}
	var ids []types.ID
	for _, line := range cmd.Items {
		if !seen[line.FoodID] {
			seen[line.FoodID] = true
			ids = append(ids, line.FoodID)
		}
	}

	foods, err := s.catalog.FoodsFromOnlineCooks(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(foods) != len(ids) {
		return nil, fmt.Errorf("%w: food missing or cook offline", ErrNotFound)
	}
	cookID := foods[0].CookID
	for _, f := range foods[1:] {
		if f.CookID != cookID {
			return nil, ErrMixedCooks
		}
	}

	reachable, err := s.area.OnlineWithin(ctx, cmd.Delivery, s.cfg.ServiceRadiusKm)
	if err != nil {
		return nil, err
	}
	if !reachable {
		return nil, ErrNoDriver
	}

	priceByID := make(map[types.ID]int64, len(foods))
	for _, f := range foods {
		priceByID[f.ID] = f.Price
	}
	total := s.cfg.DeliveryFee
	items := make([]Item, 0, len(cmd.Items))
	for _, line := range cmd.Items {
		price := priceByID[line.FoodID]
		total += price * int64(line.Quantity)
		items = append(items, Item{
			FoodID:       line.FoodID,
			Quantity:     line.Quantity,
			PriceAtOrder: price,
			Note:         line.Note,
		})
	}

	o := &Order{
		ID:               types.ID(uuid.NewString()),
		UserID:           cmd.UserID,
		CookID:           cookID,
		Status:           StatusPending,
		StatusVersion:    0,
		TotalPrice:       types.Money{Amount: total, Currency: s.cfg.Currency},
		Tip:              cmd.Tip,
		DeliveryLocation: cmd.Delivery,
		CreatedAt:        s.now(),
	}
	if err := s.store.Create(ctx, o, items); err != nil {
		return nil, err
	}
	_ = s.store.AppendEvent(ctx, &Event{
		OrderID:    o.ID,
		FromStatus: StatusNone,
		ToStatus:   StatusPending,
		ActorType:  "customer",
		ActorID:    &cmd.UserID,
		CreatedAt:  o.CreatedAt,
	})

	intent, err := s.payments.CreateIntent(ctx, payment.IntentParams{
		OrderID:      o.ID,
		UserID:       cmd.UserID,
		Amount:       total,
		Currency:     s.cfg.Currency,
		Description:  fmt.Sprintf("Order#%s by User %s", o.ID, cmd.UserName),
		ReceiptEmail: cmd.UserEmail,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot generate payment: %w", err)
	}
	return &CheckoutResult{OrderID: o.ID, ClientSecret: intent.ClientSecret}, nil
}

// MarkPaid applies pending→paid and tells the cook. Idempotent: a repeat for
// an order already past pending succeeds without effect, so webhook retries
// and the poll path cannot double-fulfill.
func (s *Service) MarkPaid(ctx context.Context, orderID types.ID) error {
	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return err
	}
	switch o.Status {
	case StatusPending:
	case StatusCancelled:
		return ErrInvalidState
	default:
		return nil
	}
	ok, err := s.store.UpdateStatus(ctx, o.ID, StatusPending, StatusPaid, o.StatusVersion, nil)
	if err != nil {
		return err
	}
	if !ok {
		cur, gerr := s.store.Get(ctx, orderID)
		if gerr == nil && cur.Status != StatusPending && cur.Status != StatusCancelled {
			return nil
		}
		return ErrConflict
	}
	_ = s.store.AppendEvent(ctx, &Event{
		OrderID:    o.ID,
		FromStatus: StatusPending,
		ToStatus:   StatusPaid,
		ActorType:  "system",
		CreatedAt:  s.now(),
	})

	s.notifier.Notify(ctx, notify.RoleCook, o.CookID, notify.EventOrderPaid,
		map[string]any{"orderId": o.ID},
		notify.Push{
			Title: "New food order for you!",
			Body:  "You have a new order for cooking. Open the app to accept and navigate!",
			Data:  map[string]string{"type": "new-cook-order", "orderId": string(o.ID)},
		},
	)
	return nil
}

type AcceptCommand struct {
	OrderID types.ID
	CookID  types.ID
}

// Accept is the cook taking the order: paid→accepted.
func (s *Service) Accept(ctx context.Context, cmd AcceptCommand) error {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return err
	}
	if o.CookID != cmd.CookID {
		return ErrForbidden
	}
	if !CanTransition(o.Status, StatusAccepted) {
		return ErrInvalidState
	}
	ok, err := s.store.UpdateStatus(ctx, o.ID, o.Status, StatusAccepted, o.StatusVersion, nil)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	_ = s.store.AppendEvent(ctx, &Event{
		OrderID:    o.ID,
		FromStatus: o.Status,
		ToStatus:   StatusAccepted,
		ActorType:  "cook",
		ActorID:    &cmd.CookID,
		CreatedAt:  s.now(),
	})

	s.notifier.Notify(ctx, notify.RoleCustomer, o.UserID, notify.EventOrderAccepted,
		map[string]any{"orderId": o.ID},
		customerPush(notify.EventOrderAccepted, o.ID, "Your cook accepted the order."),
	)
	return nil
}

type ReadyCommand struct {
	OrderID types.ID
	CookID  types.ID
}

// Ready is the cook declaring the food ready for pickup: accepted→
// waiting_for_pickup, with a driver claimed as part of the same trigger.
// The claim happens before the status write: if no driver is available the
// order must stay exactly where it was.
func (s *Service) Ready(ctx context.Context, cmd ReadyCommand) (*driver.Driver, error) {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if o.CookID != cmd.CookID {
		return nil, ErrForbidden
	}
	if !CanTransition(o.Status, StatusWaitingPickup) {
		return nil, ErrInvalidState
	}

	cook, err := s.catalog.CookByID(ctx, cmd.CookID)
	if err != nil {
		return nil, err
	}

	d, err := s.matcher.Ensure(ctx, o.ID, cook.Location)
	if errors.Is(err, driver.ErrNoDriver) {
		return nil, ErrNoDriver
	}
	if err != nil {
		return nil, err
	}

	ok, err := s.store.UpdateStatus(ctx, o.ID, o.Status, StatusWaitingPickup, o.StatusVersion, &d.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		// A concurrent ready won the race. Ensure is re-entrant, so the
		// winner holds the same driver; the loser reports the conflict.
		return nil, ErrConflict
	}
	_ = s.store.AppendEvent(ctx, &Event{
		OrderID:    o.ID,
		FromStatus: o.Status,
		ToStatus:   StatusWaitingPickup,
		ActorType:  "cook",
		ActorID:    &cmd.CookID,
		CreatedAt:  s.now(),
	})

	s.notifyDriverAssigned(ctx, d.ID, o.ID, cook.Location, o.DeliveryLocation)
	s.notifier.Notify(ctx, notify.RoleCustomer, o.UserID, notify.EventOrderReady,
		map[string]any{"orderId": o.ID},
		customerPush(notify.EventOrderReady, o.ID, "Your food is ready and a driver is on the way."),
	)
	return d, nil
}

type PickupCommand struct {
	OrderID  types.ID
	DriverID types.ID
}

// Pickup is the assigned driver collecting the food: waiting_for_pickup→delivering.
func (s *Service) Pickup(ctx context.Context, cmd PickupCommand) error {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return err
	}
	if o.DriverID == nil || *o.DriverID != cmd.DriverID {
		return ErrForbidden
	}
	if !CanTransition(o.Status, StatusDelivering) {
		return ErrInvalidState
	}
	ok, err := s.store.UpdateStatus(ctx, o.ID, o.Status, StatusDelivering, o.StatusVersion, nil)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	_ = s.store.AppendEvent(ctx, &Event{
		OrderID:    o.ID,
		FromStatus: o.Status,
		ToStatus:   StatusDelivering,
		ActorType:  "driver",
		ActorID:    &cmd.DriverID,
		CreatedAt:  s.now(),
	})

	s.notifier.Notify(ctx, notify.RoleCustomer, o.UserID, notify.EventFoodPickup,
		map[string]any{"orderId": o.ID},
		customerPush(notify.EventFoodPickup, o.ID, "Your food was picked up and is on its way."),
	)
	return nil
}

type DeliveredCommand struct {
	OrderID types.ID
	UserID  types.ID
}

// Delivered is the customer confirming receipt: delivering→delivered, and
// the driver becomes claimable again.
func (s *Service) Delivered(ctx context.Context, cmd DeliveredCommand) error {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return err
	}
	if o.UserID != cmd.UserID {
		return ErrForbidden
	}
	if !CanTransition(o.Status, StatusDelivered) {
		return ErrInvalidState
	}
	ok, err := s.store.UpdateStatus(ctx, o.ID, o.Status, StatusDelivered, o.StatusVersion, nil)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	_ = s.store.AppendEvent(ctx, &Event{
		OrderID:    o.ID,
		FromStatus: o.Status,
		ToStatus:   StatusDelivered,
		ActorType:  "customer",
		ActorID:    &cmd.UserID,
		CreatedAt:  s.now(),
	})

	releasedID, err := s.matcher.Release(ctx, o.ID)
	if err != nil {
		// The transition is committed; a failed release is repaired by the
		// next claim attempt, so log and continue.
		s.log.Error("driver release failed", zap.String("order_id", string(o.ID)), zap.Error(err))
	}
	driverID := releasedID
	if driverID == "" && o.DriverID != nil {
		driverID = *o.DriverID
	}

	payload := map[string]any{"orderId": o.ID}
	s.notifier.Notify(ctx, notify.RoleCook, o.CookID, notify.EventOrderDelivered, payload,
		notify.Push{
			Title: "Order delivered",
			Body:  "Your order was delivered to the customer.",
			Data:  map[string]string{"type": notify.EventOrderDelivered, "orderId": string(o.ID)},
		},
	)
	if driverID != "" {
		s.notifier.Notify(ctx, notify.RoleDriver, driverID, notify.EventOrderDelivered, payload,
			notify.Push{
				Title: "Order delivered",
				Body:  "The customer confirmed the delivery.",
				Data:  map[string]string{"type": notify.EventOrderDelivered, "orderId": string(o.ID)},
			},
		)
	}
	return nil
}

type CancelCommand struct {
	OrderID types.ID
	UserID  types.ID
}

// Cancel lets the customer abandon an unpaid order. The grace period exists
// to avoid racing an in-flight payment, and a succeeded intent blocks the
// cancel outright.
func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) error {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return err
	}
	if o.UserID != cmd.UserID {
		return ErrForbidden
	}
	if s.now().Sub(o.CreatedAt) < s.cfg.CancelGrace {
		return ErrTooNew
	}
	if o.Status != StatusPending {
		return ErrAlreadyPaid
	}
	intent, err := s.payments.FindIntentByOrderID(ctx, o.ID)
	if err != nil {
		return err
	}
	if intent != nil && intent.Status == payment.IntentSucceeded {
		return ErrAlreadyPaid
	}
	ok, err := s.store.UpdateStatus(ctx, o.ID, StatusPending, StatusCancelled, o.StatusVersion, nil)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	_ = s.store.AppendEvent(ctx, &Event{
		OrderID:    o.ID,
		FromStatus: StatusPending,
		ToStatus:   StatusCancelled,
		ActorType:  "customer",
		ActorID:    &cmd.UserID,
		CreatedAt:  s.now(),
	})
	return nil
}

type StatusCommand struct {
	OrderID types.ID
	UserID  types.ID
}

type StatusResult struct {
	OrderID        types.ID
	Status         Status
	PaymentStatus  string
	DriverLocation *types.Point
}

// CheckStatus is the customer's poll path. It reconciles against the payment
// provider (the webhook can lose a race or be delayed) and repairs a missing
// driver assignment for an order already waiting for pickup.
func (s *Service) CheckStatus(ctx context.Context, cmd StatusCommand) (*StatusResult, error) {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != cmd.UserID {
		return nil, ErrForbidden
	}

	intent, err := s.payments.FindIntentByOrderID(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	res := &StatusResult{OrderID: o.ID, Status: o.Status, PaymentStatus: "none"}
	if intent != nil {
		res.PaymentStatus = intent.Status
	}
	if intent == nil || intent.Status != payment.IntentSucceeded {
		return res, nil
	}

	switch o.Status {
	case StatusPending:
		if err := s.MarkPaid(ctx, o.ID); err != nil && !errors.Is(err, ErrConflict) {
			return nil, err
		}
		res.Status = StatusPaid
	case StatusWaitingPickup:
		if o.DriverID == nil {
			if err := s.repairAssignment(ctx, o); err != nil {
				return nil, err
			}
		}
	case StatusDelivering:
		if o.DriverID != nil {
			if p, lerr := s.locator.LivePosition(ctx, *o.DriverID); lerr == nil {
				res.DriverLocation = &p
			}
		}
	}
	return res, nil
}

// repairAssignment claims a driver for an order that reached
// waiting_for_pickup without one (the ready-time claim raced away or the
// driver was released out of band).
func (s *Service) repairAssignment(ctx context.Context, o *Order) error {
	cook, err := s.catalog.CookByID(ctx, o.CookID)
	if err != nil {
		return err
	}
	d, err := s.matcher.Ensure(ctx, o.ID, cook.Location)
	if errors.Is(err, driver.ErrNoDriver) {
		return ErrNoDriver
	}
	if err != nil {
		return err
	}
	ok, err := s.store.UpdateStatus(ctx, o.ID, o.Status, o.Status, o.StatusVersion, &d.ID)
	if err != nil {
		return err
	}
	if ok {
		s.notifyDriverAssigned(ctx, d.ID, o.ID, cook.Location, o.DeliveryLocation)
	}
	// A lost write means a concurrent repair already attached the driver.
	return nil
}

type PaymentCommand struct {
	OrderID types.ID
	UserID  types.ID
	Email   string
}

// EnsurePayment re-issues the payment handle for a pending order: the
// existing intent when the provider has one, a fresh intent otherwise.
// Supports retry after an abandoned checkout without duplicating intents.
func (s *Service) EnsurePayment(ctx context.Context, cmd PaymentCommand) (*CheckoutResult, error) {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != cmd.UserID {
		return nil, ErrForbidden
	}
	if o.Status != StatusPending {
		return nil, ErrInvalidState
	}
	intent, err := s.payments.FindIntentByOrderID(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	if intent == nil {
		intent, err = s.payments.CreateIntent(ctx, payment.IntentParams{
			OrderID:      o.ID,
			UserID:       cmd.UserID,
			Amount:       o.TotalPrice.Amount,
			Currency:     o.TotalPrice.Currency,
			Description:  fmt.Sprintf("Order#%s by User %s", o.ID, cmd.UserID),
			ReceiptEmail: cmd.Email,
		})
		if err != nil {
			return nil, fmt.Errorf("cannot generate payment: %w", err)
		}
	}
	return &CheckoutResult{OrderID: o.ID, ClientSecret: intent.ClientSecret}, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Order, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) ItemsOf(ctx context.Context, id types.ID) ([]Item, error) {
	return s.store.Items(ctx, id)
}

func (s *Service) notifyDriverAssigned(ctx context.Context, driverID, orderID types.ID, pickup, dropoff types.Point) {
	s.notifier.Notify(ctx, notify.RoleDriver, driverID, notify.EventOrderReady,
		map[string]any{
			"orderId":          orderID,
			"location":         pickup,
			"deliveryLocation": dropoff,
		},
		notify.Push{
			Title: "New order for you!",
			Body:  "You have a new order. Open the app to accept and navigate!",
			Data:  map[string]string{"type": "new-driver-order", "orderId": string(orderID)},
		},
	)
}

func customerPush(event string, orderID types.ID, body string) notify.Push {
	return notify.Push{
		Title: "Order update",
		Body:  body,
		Data:  map[string]string{"type": event, "orderId": string(orderID)},
	}
}
