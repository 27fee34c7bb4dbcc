package driver

import (
	"math"
	"testing"
)

func TestHaversineKnownDistances(t *testing.T) {
	cases := []struct {
		name           string
		lat1, lng1     float64
		lat2, lng2     float64
		wantKm, tolKm  float64
	}{
		{"same point", 50.0755, 14.4378, 50.0755, 14.4378, 0, 0.001},
		{"prague to brno", 50.0755, 14.4378, 49.1951, 16.6068, 185, 5},
		{"prague to vienna", 50.0755, 14.4378, 48.2082, 16.3738, 251, 5},
		{"one degree latitude", 50.0, 14.0, 51.0, 14.0, 111.2, 1},
	}
	for _, c := range cases {
		got := haversineKm(c.lat1, c.lng1, c.lat2, c.lng2)
		if math.Abs(got-c.wantKm) > c.tolKm {
			t.Errorf("%s: got %.2f km, want %.2f +/- %.2f", c.name, got, c.wantKm, c.tolKm)
		}
	}
}

func TestHaversineIsSymmetric(t *testing.T) {
	a := haversineKm(50.0755, 14.4378, 49.1951, 16.6068)
	b := haversineKm(49.1951, 16.6068, 50.0755, 14.4378)
	if math.Abs(a-b) > 1e-9 {
		t.Errorf("asymmetric: %f vs %f", a, b)
	}
}
