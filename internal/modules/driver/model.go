// README: Driver record and matching candidate definitions.
package driver

import (
	"errors"
	"time"

	"cookroute/internal/types"
)

var (
	ErrNoDriver  = errors.New("no driver available")
	ErrNotFound  = errors.New("driver not found")
	ErrThrottled = errors.New("location update throttled")
)

type Driver struct {
	ID             types.ID
	Location       types.Point
	Online         bool
	CurrentOrderID *types.ID
	// LastOrderTime is the fairness timestamp: written when the driver is
	// claimed and again when released, so idle time measures since the
	// driver last touched work.
	LastOrderTime time.Time
	DeviceToken   string
}

// Candidate is a driver considered by the matcher with its computed score.
type Candidate struct {
	Driver     Driver
	DistanceKm float64
	IdleMin    float64
	Score      float64
}
