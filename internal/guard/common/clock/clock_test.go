package clock

import (
	"testing"
	"time"
)

func TestRealClock_NowIsUTC(t *testing.T) {
	c := RealClock{}

	before := time.Now()
	now := c.Now()
	after := time.Now()

	if now.Location() != time.UTC {
		t.Errorf("expected UTC location, got %v", now.Location())
	}
	if now.Before(before.UTC().Add(-time.Second)) || now.After(after.UTC().Add(time.Second)) {
		t.Errorf("clock time %v outside [%v, %v]", now, before, after)
	}
}

func TestMockClock_Advance(t *testing.T) {
	start := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	c := NewMockClock(start)

	if got := c.Now(); !got.Equal(start) {
		t.Fatalf("Now() = %v, want %v", got, start)
	}
	c.Advance(90 * time.Second)
	if got := c.Now(); !got.Equal(start.Add(90 * time.Second)) {
		t.Fatalf("after Advance Now() = %v", got)
	}
}
