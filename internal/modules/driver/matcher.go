// README: Driver selection: geospatial + fairness scoring over claimable drivers.
package driver

import (
	"context"
	"time"

	"go.uber.org/zap"

	"cookroute/internal/config"
	"cookroute/internal/types"
)

// MatchStore is the slice of driver persistence the matcher needs. The claim
// must be conditional on the driver still being unassigned.
type MatchStore interface {
	AssignedTo(ctx context.Context, orderID types.ID) (*Driver, error)
	Available(ctx context.Context) ([]Driver, error)
	Claim(ctx context.Context, driverID, orderID types.ID) (bool, error)
	Release(ctx context.Context, orderID types.ID) (types.ID, error)
}

type Matcher struct {
	store MatchStore
	cfg   config.MatchingConfig
	log   *zap.Logger
	now   func() time.Time
}

func NewMatcher(store MatchStore, cfg config.MatchingConfig, log *zap.Logger) *Matcher {
	return &Matcher{store: store, cfg: cfg, log: log, now: time.Now}
}

// Ensure returns the driver assigned to the order, claiming one if necessary.
// Re-entrant: an order that already holds a driver gets that driver back
// without re-scoring. When the best candidate is snatched by a concurrent
// claim, the pool is re-scored exactly once before giving up.
func (m *Matcher) Ensure(ctx context.Context, orderID types.ID, pickup types.Point) (*Driver, error) {
	assigned, err := m.store.AssignedTo(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if assigned != nil {
		return assigned, nil
	}

	for attempt := 0; attempt < 2; attempt++ {
		best, err := m.pickBest(ctx, pickup)
		if err != nil {
			return nil, err
		}
		if best == nil {
			return nil, ErrNoDriver
		}
		ok, err := m.store.Claim(ctx, best.Driver.ID, orderID)
		if err != nil {
			return nil, err
		}
		if ok {
			m.log.Info("driver claimed",
				zap.String("order_id", string(orderID)),
				zap.String("driver_id", string(best.Driver.ID)),
				zap.Float64("distance_km", best.DistanceKm),
				zap.Float64("score", best.Score),
			)
			d := best.Driver
			d.CurrentOrderID = &orderID
			return &d, nil
		}
		// Lost the claim race; the loop re-scores once with a fresh pool.
	}
	return nil, ErrNoDriver
}

// Release frees the order's driver and returns the released driver id.
func (m *Matcher) Release(ctx context.Context, orderID types.ID) (types.ID, error) {
	return m.store.Release(ctx, orderID)
}

func (m *Matcher) pickBest(ctx context.Context, pickup types.Point) (*Candidate, error) {
	pool, err := m.store.Available(ctx)
	if err != nil {
		return nil, err
	}
	var best *Candidate
	now := m.now()
	for _, d := range pool {
		c := m.score(d, pickup, now)
		if best == nil || c.Score < best.Score {
			cc := c
			best = &cc
		}
	}
	return best, nil
}

// score blends proximity with idle time: each idle minute offsets
// IdleWeightKmPerMin kilometres of distance, so long-idle drivers win ties.
func (m *Matcher) score(d Driver, pickup types.Point, now time.Time) Candidate {
	dist := haversineKm(d.Location.Lat, d.Location.Lng, pickup.Lat, pickup.Lng)
	idle := now.Sub(d.LastOrderTime).Minutes()
	if idle < 0 {
		idle = 0
	}
	return Candidate{
		Driver:     d,
		DistanceKm: dist,
		IdleMin:    idle,
		Score:      dist - m.cfg.IdleWeightKmPerMin*idle,
	}
}
