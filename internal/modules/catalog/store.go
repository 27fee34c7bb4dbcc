// README: Catalog store backed by PostgreSQL.
package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cookroute/internal/types"
)

var ErrCookNotFound = errors.New("cook not found")

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// FoodsFromOnlineCooks returns the foods among ids whose cook is currently
// online. A missing food or an offline cook simply shrinks the result; the
// caller compares lengths to detect either case.
func (s *Store) FoodsFromOnlineCooks(ctx context.Context, ids []types.ID) ([]Food, error) {
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = string(id)
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, cook_id, name, price
		FROM foods
		WHERE id = ANY($1)
		  AND cook_id IN (SELECT id FROM cooks WHERE is_online = true)`,
		raw,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var foods []Food
	for rows.Next() {
		var f Food
		if err := rows.Scan(&f.ID, &f.CookID, &f.Name, &f.Price); err != nil {
			return nil, err
		}
		foods = append(foods, f)
	}
	return foods, rows.Err()
}

func (s *Store) CookByID(ctx context.Context, id types.ID) (*Cook, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, lat, lng, is_online, device_token
		FROM cooks
		WHERE id = $1`, string(id),
	)
	var c Cook
	err := row.Scan(&c.ID, &c.Location.Lat, &c.Location.Lng, &c.Online, &c.DeviceToken)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCookNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
