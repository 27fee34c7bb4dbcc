package order

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusPending, StatusPaid, true},
		{StatusPending, StatusCancelled, true},
		{StatusPaid, StatusAccepted, true},
		{StatusAccepted, StatusWaitingPickup, true},
		{StatusWaitingPickup, StatusDelivering, true},
		{StatusDelivering, StatusDelivered, true},

		{StatusPending, StatusAccepted, false},
		{StatusPending, StatusDelivered, false},
		{StatusPaid, StatusCancelled, false},
		{StatusPaid, StatusDelivering, false},
		{StatusAccepted, StatusPaid, false},
		{StatusAccepted, StatusCancelled, false},
		{StatusWaitingPickup, StatusAccepted, false},
		{StatusWaitingPickup, StatusCancelled, false},
		{StatusDelivering, StatusCancelled, false},
		{StatusDelivered, StatusDelivering, false},
		{StatusDelivered, StatusPending, false},
		{StatusCancelled, StatusPending, false},
		{StatusCancelled, StatusPaid, false},
		{StatusNone, StatusPending, false},
	}
	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestDriverVisible(t *testing.T) {
	visible := []Status{StatusWaitingPickup, StatusDelivering, StatusDelivered}
	hidden := []Status{StatusNone, StatusPending, StatusPaid, StatusAccepted, StatusCancelled}
	for _, s := range visible {
		if !DriverVisible(s) {
			t.Errorf("DriverVisible(%s) = false, want true", s)
		}
	}
	for _, s := range hidden {
		if DriverVisible(s) {
			t.Errorf("DriverVisible(%s) = true, want false", s)
		}
	}
}
