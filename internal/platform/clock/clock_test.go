package clock

import (
	"testing"
	"time"
)

func TestFake_AdvanceFiresDueTimers(t *testing.T) {
	c := NewFake(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))

	fired := 0
	c.AfterFunc(10*time.Minute, func() { fired++ })
	c.AfterFunc(30*time.Minute, func() { fired++ })

	c.Advance(10 * time.Minute)
	if fired != 1 {
		t.Errorf("expected 1 timer fired after 10m, got %d", fired)
	}

	c.Advance(25 * time.Minute)
	if fired != 2 {
		t.Errorf("expected 2 timers fired after 35m, got %d", fired)
	}
}

func TestFake_ZeroDelayFiresOnNextAdvance(t *testing.T) {
	c := NewFake(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))

	fired := false
	c.AfterFunc(0, func() { fired = true })
	if fired {
		t.Fatal("timer fired before Advance")
	}

	c.Advance(0)
	if !fired {
		t.Error("expected zero-delay timer to fire on Advance(0)")
	}
}

func TestFake_StopPreventsFiring(t *testing.T) {
	c := NewFake(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))

	fired := false
	timer := c.AfterFunc(time.Hour, func() { fired = true })

	if !timer.Stop() {
		t.Error("expected Stop to report the timer as pending")
	}
	c.Advance(2 * time.Hour)
	if fired {
		t.Error("stopped timer must not fire")
	}
	if timer.Stop() {
		t.Error("second Stop should report false")
	}
}

func TestFake_FireOrder(t *testing.T) {
	c := NewFake(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))

	var order []int
	c.AfterFunc(2*time.Hour, func() { order = append(order, 2) })
	c.AfterFunc(1*time.Hour, func() { order = append(order, 1) })

	c.Advance(3 * time.Hour)
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("expected fire order [1 2], got %v", order)
	}
}

func TestFake_CallbackMaySchedule(t *testing.T) {
	c := NewFake(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))

	chained := false
	c.AfterFunc(time.Minute, func() {
		c.AfterFunc(time.Minute, func() { chained = true })
	})

	c.Advance(time.Minute)
	if chained {
		t.Fatal("chained timer fired too early")
	}
	c.Advance(time.Minute)
	if !chained {
		t.Error("expected chained timer to fire")
	}
}
