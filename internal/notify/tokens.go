// README: Device token resolution from persisted profiles (not the live registry).
package notify

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cookroute/internal/types"
)

type PGTokenSource struct {
	db *pgxpool.Pool
}

func NewPGTokenSource(db *pgxpool.Pool) *PGTokenSource {
	return &PGTokenSource{db: db}
}

func (s *PGTokenSource) DeviceToken(ctx context.Context, role Role, id types.ID) (string, error) {
	var table string
	switch role {
	case RoleCustomer:
		table = "users"
	case RoleCook:
		table = "cooks"
	case RoleDriver:
		table = "drivers"
	default:
		return "", fmt.Errorf("unknown role %q", role)
	}
	row := s.db.QueryRow(ctx, `SELECT device_token FROM `+table+` WHERE id = $1`, string(id))
	var token sql.NullString
	err := row.Scan(&token)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return token.String, nil
}
