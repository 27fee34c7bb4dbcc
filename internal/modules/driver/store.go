// README: Driver store backed by PostgreSQL; the claim is a conditional update.
package driver

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cookroute/internal/types"
)

type PGStore struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Get(ctx context.Context, id types.ID) (*Driver, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, lat, lng, is_online, current_order_id, last_order_time, device_token
		FROM drivers
		WHERE id = $1`, string(id),
	)
	return scanDriver(row)
}

// AssignedTo returns the driver currently holding the order, if any.
func (s *PGStore) AssignedTo(ctx context.Context, orderID types.ID) (*Driver, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, lat, lng, is_online, current_order_id, last_order_time, device_token
		FROM drivers
		WHERE current_order_id = $1`, string(orderID),
	)
	d, err := scanDriver(row)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return d, err
}

// Available lists claimable drivers: online with no active order.
func (s *PGStore) Available(ctx context.Context) ([]Driver, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, lat, lng, is_online, current_order_id, last_order_time, device_token
		FROM drivers
		WHERE is_online = true AND current_order_id IS NULL`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drivers []Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		drivers = append(drivers, *d)
	}
	return drivers, rows.Err()
}

// Claim marks the driver as assigned to the order. The WHERE clause re-checks
// availability so two concurrent matches cannot both win the same driver.
func (s *PGStore) Claim(ctx context.Context, driverID, orderID types.ID) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE drivers
		SET current_order_id = $2, last_order_time = NOW()
		WHERE id = $1 AND is_online = true AND current_order_id IS NULL`,
		string(driverID), string(orderID),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Release frees whichever driver holds the order and stamps the fairness
// timestamp. Returns the released driver's id, or "" when none was assigned.
func (s *PGStore) Release(ctx context.Context, orderID types.ID) (types.ID, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE drivers
		SET current_order_id = NULL, last_order_time = NOW()
		WHERE current_order_id = $1
		RETURNING id`, string(orderID),
	)
	var id string
	err := row.Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return types.ID(id), nil
}

func (s *PGStore) SetOnline(ctx context.Context, id types.ID, online bool) error {
	_, err := s.db.Exec(ctx, `
		UPDATE drivers SET is_online = $2 WHERE id = $1`,
		string(id), online,
	)
	return err
}

func (s *PGStore) UpdateLocation(ctx context.Context, id types.ID, p types.Point) error {
	_, err := s.db.Exec(ctx, `
		UPDATE drivers SET lat = $2, lng = $3 WHERE id = $1`,
		string(id), p.Lat, p.Lng,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDriver(row rowScanner) (*Driver, error) {
	var d Driver
	var currentOrder sql.NullString
	var token sql.NullString
	err := row.Scan(&d.ID, &d.Location.Lat, &d.Location.Lng, &d.Online, &currentOrder, &d.LastOrderTime, &token)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if currentOrder.Valid {
		id := types.ID(currentOrder.String)
		d.CurrentOrderID = &id
	}
	d.DeviceToken = token.String
	return &d, nil
}
