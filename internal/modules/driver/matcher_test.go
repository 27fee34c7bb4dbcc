package driver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"cookroute/internal/config"
	"cookroute/internal/types"
)

// memMatchStore is an in-memory MatchStore with the same conditional-claim
// semantics as the SQL one.
type memMatchStore struct {
	mu      sync.Mutex
	drivers map[types.ID]*Driver
}

func newMemMatchStore(drivers ...Driver) *memMatchStore {
	s := &memMatchStore{drivers: map[types.ID]*Driver{}}
	for _, d := range drivers {
		cp := d
		s.drivers[d.ID] = &cp
	}
	return s
}

func (s *memMatchStore) AssignedTo(_ context.Context, orderID types.ID) (*Driver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.drivers {
		if d.CurrentOrderID != nil && *d.CurrentOrderID == orderID {
			cp := *d
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memMatchStore) Available(_ context.Context) ([]Driver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Driver
	for _, d := range s.drivers {
		if d.Online && d.CurrentOrderID == nil {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (s *memMatchStore) Claim(_ context.Context, driverID, orderID types.ID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drivers[driverID]
	if !ok || !d.Online || d.CurrentOrderID != nil {
		return false, nil
	}
	oid := orderID
	d.CurrentOrderID = &oid
	d.LastOrderTime = time.Now()
	return true, nil
}

func (s *memMatchStore) Release(_ context.Context, orderID types.ID) (types.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.drivers {
		if d.CurrentOrderID != nil && *d.CurrentOrderID == orderID {
			d.CurrentOrderID = nil
			d.LastOrderTime = time.Now()
			return d.ID, nil
		}
	}
	return "", nil
}

func newTestMatcher(store MatchStore) *Matcher {
	return NewMatcher(store, config.MatchingConfig{
		ServiceRadiusKm:    25,
		IdleWeightKmPerMin: 1.0,
	}, zap.NewNop())
}

// pickup near Prague centre; 0.009 degrees of latitude is roughly 1 km.
var pickup = types.Point{Lat: 50.0800, Lng: 14.4300}

func driverAt(id types.ID, latOffset float64, idle time.Duration) Driver {
	return Driver{
		ID:            id,
		Location:      types.Point{Lat: pickup.Lat + latOffset, Lng: pickup.Lng},
		Online:        true,
		LastOrderTime: time.Now().Add(-idle),
	}
}

func TestEnsurePrefersIdleOverNear(t *testing.T) {
	// D1: ~1 km away, idle 5 min, score ~= 1 - 5 = -4.
	// D2: ~0.5 km away, idle 1 min, score ~= 0.5 - 1 = -0.5.
	d1 := driverAt("d1", 0.0090, 5*time.Minute)
	d2 := driverAt("d2", 0.0045, 1*time.Minute)
	store := newMemMatchStore(d1, d2)
	m := newTestMatcher(store)

	got, err := m.Ensure(context.Background(), "order-1", pickup)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if got.ID != "d1" {
		t.Errorf("claimed %s, want d1 (idle beats proximity at weight 1.0)", got.ID)
	}
}

func TestEnsurePrefersNearWhenIdleIsEqual(t *testing.T) {
	d1 := driverAt("d1", 0.0090, 3*time.Minute)
	d2 := driverAt("d2", 0.0045, 3*time.Minute)
	store := newMemMatchStore(d1, d2)
	m := newTestMatcher(store)

	got, err := m.Ensure(context.Background(), "order-1", pickup)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if got.ID != "d2" {
		t.Errorf("claimed %s, want d2", got.ID)
	}
}

func TestEnsureIsReentrant(t *testing.T) {
	store := newMemMatchStore(driverAt("d1", 0.0045, time.Minute))
	m := newTestMatcher(store)

	first, err := m.Ensure(context.Background(), "order-1", pickup)
	if err != nil {
		t.Fatalf("first ensure: %v", err)
	}
	second, err := m.Ensure(context.Background(), "order-1", pickup)
	if err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("re-ensure returned %s, want %s", second.ID, first.ID)
	}
}

func TestEnsureNoDriverAvailable(t *testing.T) {
	offline := driverAt("d1", 0.0045, time.Minute)
	offline.Online = false
	busy := driverAt("d2", 0.0045, time.Minute)
	other := types.ID("order-0")
	busy.CurrentOrderID = &other
	store := newMemMatchStore(offline, busy)
	m := newTestMatcher(store)

	_, err := m.Ensure(context.Background(), "order-1", pickup)
	if !errors.Is(err, ErrNoDriver) {
		t.Errorf("err = %v, want ErrNoDriver", err)
	}
}

// lostClaimStore forces the first claim attempt to lose, simulating a
// concurrent matcher snatching the best candidate.
type lostClaimStore struct {
	*memMatchStore
	mu      sync.Mutex
	lost    int
	claimed []types.ID
}

func (s *lostClaimStore) Claim(ctx context.Context, driverID, orderID types.ID) (bool, error) {
	s.mu.Lock()
	s.claimed = append(s.claimed, driverID)
	if s.lost > 0 {
		s.lost--
		s.mu.Unlock()
		// Snatch the driver so the re-score sees a smaller pool.
		_, _ = s.memMatchStore.Claim(ctx, driverID, "rival-order")
		return false, nil
	}
	s.mu.Unlock()
	return s.memMatchStore.Claim(ctx, driverID, orderID)
}

func TestEnsureRetriesOnceAfterLostClaim(t *testing.T) {
	d1 := driverAt("d1", 0.0090, 5*time.Minute)
	d2 := driverAt("d2", 0.0045, time.Minute)
	store := &lostClaimStore{memMatchStore: newMemMatchStore(d1, d2), lost: 1}
	m := newTestMatcher(store)

	got, err := m.Ensure(context.Background(), "order-1", pickup)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if got.ID != "d2" {
		t.Errorf("claimed %s, want d2 after losing d1", got.ID)
	}
	if len(store.claimed) != 2 {
		t.Errorf("claim attempts = %d, want 2", len(store.claimed))
	}
}

func TestEnsureGivesUpAfterSecondLostClaim(t *testing.T) {
	store := &lostClaimStore{
		memMatchStore: newMemMatchStore(
			driverAt("d1", 0.0090, 5*time.Minute),
			driverAt("d2", 0.0045, time.Minute),
		),
		lost: 2,
	}
	m := newTestMatcher(store)

	_, err := m.Ensure(context.Background(), "order-1", pickup)
	if !errors.Is(err, ErrNoDriver) {
		t.Errorf("err = %v, want ErrNoDriver", err)
	}
}

func TestConcurrentEnsureNeverDoubleBooks(t *testing.T) {
	store := newMemMatchStore(driverAt("d1", 0.0045, time.Minute))
	m := newTestMatcher(store)

	const orders = 6
	var wg sync.WaitGroup
	results := make([]error, orders)
	for i := 0; i < orders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = m.Ensure(context.Background(), types.ID(fmt.Sprintf("order-%d", i)), pickup)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
		} else if !errors.Is(err, ErrNoDriver) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("wins = %d, want exactly 1 for a single driver", wins)
	}
}

func TestScoreClampsNegativeIdle(t *testing.T) {
	m := newTestMatcher(newMemMatchStore())
	d := Driver{
		ID:            "d1",
		Location:      types.Point{Lat: pickup.Lat + 0.0090, Lng: pickup.Lng},
		LastOrderTime: time.Now().Add(time.Hour), // clock skew
	}
	c := m.score(d, pickup, time.Now())
	if c.IdleMin != 0 {
		t.Errorf("idle = %f, want 0 for future LastOrderTime", c.IdleMin)
	}
	if c.Score != c.DistanceKm {
		t.Errorf("score = %f, want raw distance %f", c.Score, c.DistanceKm)
	}
}
