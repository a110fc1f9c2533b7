package model

import "testing"

func TestCanTransitionBaseTable(t *testing.T) {
	all := []Status{
		StatusPending, StatusConfirmed, StatusCompleted, StatusRejected, StatusCancelled,
	}
	allowed := map[[2]Status]bool{
		{StatusPending, StatusConfirmed}:   true,
		{StatusPending, StatusRejected}:    true,
		{StatusConfirmed, StatusCompleted}: true,
		{StatusConfirmed, StatusCancelled}: true,
	}
	for _, strict := range []bool{true, false} {
		for _, from := range all {
			for _, to := range all {
				got := CanTransition(from, to, strict)
				want := allowed[[2]Status{from, to}]
				if got != want {
					t.Errorf("CanTransition(%s, %s, strict=%v) = %v, want %v", from, to, strict, got, want)
				}
			}
		}
	}
}

func TestCanTransitionPhysicalStrict(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusConfirmed, StatusInProgress, true},
		{StatusInProgress, StatusServiceDone, true},
		{StatusServiceDone, StatusPickupNotification, true},
		{StatusPickupNotification, StatusPickedByCustomer, true},
		{StatusPickedByCustomer, StatusDelivered, true},
		{StatusDelivered, StatusCompleted, true},
		{StatusServiceDone, StatusCompleted, true},
		{StatusConfirmed, StatusServiceDone, false},
		{StatusServiceDone, StatusInProgress, false},
		{StatusPending, StatusInProgress, false},
		{StatusCompleted, StatusDelivered, false},
		{StatusInProgress, StatusCancelled, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to, true); got != tc.want {
			t.Errorf("strict %s -> %s = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestCanTransitionPhysicalLenient(t *testing.T) {
	if !CanTransition(StatusConfirmed, StatusDelivered, false) {
		t.Error("lenient mode should allow confirmed -> delivered")
	}
	if !CanTransition(StatusDelivered, StatusServiceDone, false) {
		t.Error("lenient mode should allow moving between workshop steps")
	}
	if CanTransition(StatusPending, StatusServiceDone, false) {
		t.Error("workshop steps require a confirmed booking")
	}
	if CanTransition(StatusRejected, StatusDelivered, false) {
		t.Error("terminal bookings cannot re-enter the workshop")
	}
}

func TestStatusPredicates(t *testing.T) {
	if !StatusPickedByCustomer.IsValid() || Status("archived").IsValid() {
		t.Error("IsValid mismatch")
	}
	if !StatusPending.CanBeCancelled() || StatusInProgress.CanBeCancelled() {
		t.Error("CanBeCancelled mismatch")
	}
	if StatusCompleted.CustomerDeletable() || !StatusRejected.CustomerDeletable() {
		t.Error("CustomerDeletable mismatch")
	}
}

func TestSetActualCostIsMonotonic(t *testing.T) {
	var b Booking
	v := 450.0
	b.SetActualCost(&v)
	b.SetActualCost(nil)
	zero := 0.0
	b.SetActualCost(&zero)
	if b.ActualCost == nil || *b.ActualCost != 450 {
		t.Fatalf("actual cost = %v, want 450", b.ActualCost)
	}
	v = 600
	if *b.ActualCost != 450 {
		t.Fatal("actual cost must not alias the caller's value")
	}
}

func TestSnapshotFallsBackToQuote(t *testing.T) {
	b := Booking{ID: 7, Cost: 300, Receipt: Receipt{WorkDone: []string{"wash"}}}
	rec := SnapshotBooking(b)
	if rec.CostActual != 300 || rec.CostQuoted != 300 || rec.BookingID != 7 {
		t.Fatalf("unexpected snapshot %+v", rec)
	}
	b.Receipt.WorkDone[0] = "changed"
	if rec.Receipt.WorkDone[0] != "wash" {
		t.Fatal("snapshot must not share receipt slices")
	}
}
