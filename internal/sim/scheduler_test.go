package sim

import "testing"

func TestFIFOTieBreak(t *testing.T) {
	s := NewScheduler()
	var order []int
	s.Schedule(10, func() { order = append(order, 1) })
	s.Schedule(10, func() { order = append(order, 2) })
	s.Schedule(10, func() { order = append(order, 3) })
	s.RunAll()

	want := []int{1, 2, 3}
	if len(order) != len(want) {
		t.Fatalf("got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v, want %v", order, want)
		}
	}
}

func TestCancelIsNoop(t *testing.T) {
	s := NewScheduler()
	fired := false
	h := s.Schedule(5, func() { fired = true })
	s.Cancel(h)
	s.RunAll()
	if fired {
		t.Fatal("canceled event fired")
	}
}

func TestCancelStaleHandleIsNoop(t *testing.T) {
	s := NewScheduler()
	fired := 0
	h := s.Schedule(5, func() { fired++ })
	s.RunAll()
	if fired != 1 {
		t.Fatalf("expected event to fire once, got %d", fired)
	}
	// h now refers to an event that already ran and was removed from
	// byID; canceling it must not panic or affect later events.
	s.Cancel(h)
	s.Schedule(1, func() { fired++ })
	s.RunAll()
	if fired != 2 {
		t.Fatalf("expected second event to fire, got %d", fired)
	}
}

func TestRunRespectsHorizon(t *testing.T) {
	s := NewScheduler()
	ran := 0
	s.Schedule(5, func() { ran++ })
	s.Schedule(50, func() { ran++ })
	s.Run(10)
	if ran != 1 {
		t.Fatalf("expected 1 event within horizon, got %d", ran)
	}
	if s.Now() != 10 {
		t.Fatalf("expected clock at horizon 10, got %d", s.Now())
	}
}

func TestNegativeDelayPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic scheduling a negative delay")
		}
	}()
	s := NewScheduler()
	s.Schedule(-1, func() {})
}
