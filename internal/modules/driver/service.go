// README: Driver presence and high-frequency location updates.
package driver

import (
	"context"
	"time"

	"go.uber.org/zap"

	"cookroute/internal/types"
)

// LocationStore is the durable side of a location update.
type LocationStore interface {
	Get(ctx context.Context, id types.ID) (*Driver, error)
	SetOnline(ctx context.Context, id types.ID, online bool) error
	UpdateLocation(ctx context.Context, id types.ID, p types.Point) error
}

// LiveIndex is the live side: GEO positions plus the update throttle.
type LiveIndex interface {
	SetPosition(ctx context.Context, id types.ID, p types.Point) error
	RemovePosition(ctx context.Context, id types.ID) error
	Position(ctx context.Context, id types.ID) (types.Point, bool, error)
	AllowUpdate(ctx context.Context, id types.ID, minInterval time.Duration) (bool, error)
}

type Service struct {
	store       LocationStore
	live        LiveIndex
	minInterval time.Duration
	log         *zap.Logger
}

func NewService(store LocationStore, live LiveIndex, minInterval time.Duration, log *zap.Logger) *Service {
	return &Service{store: store, live: live, minInterval: minInterval, log: log}
}

// UpdateLocation applies a driver position report. Updates arriving faster
// than the configured floor are rejected with ErrThrottled so a chatty client
// cannot amplify writes against the driver row.
func (s *Service) UpdateLocation(ctx context.Context, id types.ID, p types.Point) error {
	ok, err := s.live.AllowUpdate(ctx, id, s.minInterval)
	if err != nil {
		return err
	}
	if !ok {
		return ErrThrottled
	}
	if err := s.live.SetPosition(ctx, id, p); err != nil {
		return err
	}
	if err := s.store.UpdateLocation(ctx, id, p); err != nil {
		// Live index already moved; the durable row catches up on the next
		// accepted update.
		s.log.Warn("durable location write failed", zap.String("driver_id", string(id)), zap.Error(err))
	}
	return nil
}

// SetOnline toggles availability and keeps the live index consistent with it.
func (s *Service) SetOnline(ctx context.Context, id types.ID, online bool) error {
	if err := s.store.SetOnline(ctx, id, online); err != nil {
		return err
	}
	if online {
		d, err := s.store.Get(ctx, id)
		if err != nil {
			return err
		}
		return s.live.SetPosition(ctx, id, d.Location)
	}
	return s.live.RemovePosition(ctx, id)
}

// LivePosition returns the driver's freshest known position, falling back to
// the durable row when the live index has none.
func (s *Service) LivePosition(ctx context.Context, id types.ID) (types.Point, error) {
	p, found, err := s.live.Position(ctx, id)
	if err == nil && found {
		return p, nil
	}
	d, derr := s.store.Get(ctx, id)
	if derr != nil {
		return types.Point{}, derr
	}
	return d.Location, nil
}
