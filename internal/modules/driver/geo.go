// README: Live driver positions and throttle keys backed by Redis GEO.
package driver

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"cookroute/internal/types"
)

const (
	driverGeoKey      = "geo:drivers"
	throttleKeyPrefix = "loc:throttle:%s"
	// Stale positions expire implicitly when the driver goes offline; the
	// geo member is removed on SetOffline rather than TTL'd.
)

type GeoStore struct {
	redis *redis.Client
}

func NewGeoStore(redis *redis.Client) *GeoStore {
	return &GeoStore{redis: redis}
}

// SetPosition records the driver's live position in the GEO index.
func (s *GeoStore) SetPosition(ctx context.Context, id types.ID, p types.Point) error {
	return s.redis.GeoAdd(ctx, driverGeoKey, &redis.GeoLocation{
		Name:      string(id),
		Longitude: p.Lng,
		Latitude:  p.Lat,
	}).Err()
}

// RemovePosition drops the driver from the GEO index (driver went offline).
func (s *GeoStore) RemovePosition(ctx context.Context, id types.ID) error {
	return s.redis.ZRem(ctx, driverGeoKey, string(id)).Err()
}

// Position returns the driver's last known live position.
func (s *GeoStore) Position(ctx context.Context, id types.ID) (types.Point, bool, error) {
	res, err := s.redis.GeoPos(ctx, driverGeoKey, string(id)).Result()
	if err != nil {
		return types.Point{}, false, err
	}
	if len(res) == 0 || res[0] == nil {
		return types.Point{}, false, nil
	}
	return types.Point{Lat: res[0].Latitude, Lng: res[0].Longitude}, true, nil
}

// OnlineWithin reports whether any live driver position falls inside radiusKm
// of the point. Used as the checkout serviceability gate.
func (s *GeoStore) OnlineWithin(ctx context.Context, p types.Point, radiusKm float64) (bool, error) {
	ids, err := s.nearby(ctx, p, radiusKm, 1)
	if err != nil {
		return false, err
	}
	return len(ids) > 0, nil
}

func (s *GeoStore) nearby(ctx context.Context, p types.Point, radiusKm float64, count int) ([]types.ID, error) {
	results, err := s.redis.GeoSearch(ctx, driverGeoKey, &redis.GeoSearchQuery{
		Longitude:  p.Lng,
		Latitude:   p.Lat,
		Radius:     radiusKm,
		RadiusUnit: "km",
		Sort:       "ASC",
		Count:      count,
	}).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]types.ID, len(results))
	for i, r := range results {
		ids[i] = types.ID(r)
	}
	return ids, nil
}

// AllowUpdate enforces the per-driver floor between accepted location writes.
// SET NX PX makes the check-and-arm a single atomic operation.
func (s *GeoStore) AllowUpdate(ctx context.Context, id types.ID, minInterval time.Duration) (bool, error) {
	return s.redis.SetNX(ctx, fmt.Sprintf(throttleKeyPrefix, string(id)), "1", minInterval).Result()
}
