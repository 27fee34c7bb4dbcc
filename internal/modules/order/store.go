// README: Order store backed by PostgreSQL.
package order

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cookroute/internal/types"
)

// Store is the persistence port for the order lifecycle. The pg implementation
// below is the production one; tests substitute an in-memory variant.
type Store interface {
	Create(ctx context.Context, o *Order, items []Item) error
	Get(ctx context.Context, id types.ID) (*Order, error)
	Items(ctx context.Context, id types.ID) ([]Item, error)
	// UpdateStatus applies a compare-and-swap transition: the write succeeds
	// only if the row still carries the expected status and version.
	UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, driverID *types.ID) (bool, error)
	AppendEvent(ctx context.Context, e *Event) error
}

type PGStore struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Create(ctx context.Context, o *Order, items []Item) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (
			id, user_id, cook_id, driver_id, status, status_version,
			total_price, currency, tip, delivery_lat, delivery_lng, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12
		)`,
		string(o.ID),
		string(o.UserID),
		string(o.CookID),
		toStringPtr(o.DriverID),
		string(o.Status),
		o.StatusVersion,
		o.TotalPrice.Amount,
		o.TotalPrice.Currency,
		o.Tip,
		o.DeliveryLocation.Lat, o.DeliveryLocation.Lng,
		o.CreatedAt,
	)
	if err != nil {
		return err
	}

	for _, it := range items {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items (order_id, food_id, quantity, price_at_order, note)
			VALUES ($1, $2, $3, $4, $5)`,
			string(o.ID), string(it.FoodID), it.Quantity, it.PriceAtOrder, it.Note,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (s *PGStore) Get(ctx context.Context, id types.ID) (*Order, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, user_id, cook_id, driver_id, status, status_version,
		       total_price, currency, tip, delivery_lat, delivery_lng,
		       created_at, paid_at, accepted_at, ready_at, picked_up_at, delivered_at, cancelled_at
		FROM orders
		WHERE id = $1`, string(id),
	)

	var o Order
	var driverID sql.NullString
	var paidAt, acceptedAt, readyAt, pickedUpAt, deliveredAt, cancelledAt sql.NullTime

	err := row.Scan(
		&o.ID, &o.UserID, &o.CookID, &driverID, &o.Status, &o.StatusVersion,
		&o.TotalPrice.Amount, &o.TotalPrice.Currency, &o.Tip,
		&o.DeliveryLocation.Lat, &o.DeliveryLocation.Lng,
		&o.CreatedAt, &paidAt, &acceptedAt, &readyAt, &pickedUpAt, &deliveredAt, &cancelledAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if driverID.Valid {
		d := types.ID(driverID.String)
		o.DriverID = &d
	}
	o.PaidAt = toTimePtr(paidAt)
	o.AcceptedAt = toTimePtr(acceptedAt)
	o.ReadyAt = toTimePtr(readyAt)
	o.PickedUpAt = toTimePtr(pickedUpAt)
	o.DeliveredAt = toTimePtr(deliveredAt)
	o.CancelledAt = toTimePtr(cancelledAt)
	return &o, nil
}

func (s *PGStore) Items(ctx context.Context, id types.ID) ([]Item, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, order_id, food_id, quantity, price_at_order, note
		FROM order_items
		WHERE order_id = $1
		ORDER BY id`, string(id),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.FoodID, &it.Quantity, &it.PriceAtOrder, &it.Note); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *PGStore) UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, driverID *types.ID) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders
		SET status = $1,
		    status_version = status_version + 1,
		    driver_id = COALESCE($2, driver_id),
		    paid_at = CASE WHEN $1 = 'paid' THEN NOW() ELSE paid_at END,
		    accepted_at = CASE WHEN $1 = 'accepted' THEN NOW() ELSE accepted_at END,
		    ready_at = CASE WHEN $1 = 'waiting_for_pickup' THEN NOW() ELSE ready_at END,
		    picked_up_at = CASE WHEN $1 = 'delivering' THEN NOW() ELSE picked_up_at END,
		    delivered_at = CASE WHEN $1 = 'delivered' THEN NOW() ELSE delivered_at END,
		    cancelled_at = CASE WHEN $1 = 'cancelled' THEN NOW() ELSE cancelled_at END
		WHERE id = $3 AND status = $4 AND status_version = $5`,
		string(to),
		toStringPtr(driverID),
		string(id),
		string(from),
		version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) AppendEvent(ctx context.Context, e *Event) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO order_state_events (
			order_id, from_status, to_status, actor_type, actor_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)`,
		string(e.OrderID),
		string(e.FromStatus),
		string(e.ToStatus),
		e.ActorType,
		toStringPtr(e.ActorID),
		e.CreatedAt,
	)
	return err
}

func toStringPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func toTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
