package fakeclock

import (
	"testing"
	"time"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestClock_Now(t *testing.T) {
	c := New(epoch)
	if got := c.Now(); !got.Equal(epoch) {
		t.Errorf("Now() = %v, want %v", got, epoch)
	}
}

func TestClock_Advance(t *testing.T) {
	c := New(epoch)
	c.Advance(5 * time.Minute)

	if got := c.Now(); !got.Equal(epoch.Add(5 * time.Minute)) {
		t.Errorf("Now() after Advance = %v", got)
	}
}

func TestClock_AutoAdvance(t *testing.T) {
	c := New(epoch)
	c.SetAutoAdvance(time.Second)

	first := c.Now()
	second := c.Now()
	if !first.Equal(epoch) {
		t.Errorf("first Now() = %v, want %v", first, epoch)
	}
	if second.Sub(first) != time.Second {
		t.Errorf("Now() should advance by 1s per call, got %s", second.Sub(first))
	}
}

func TestClock_SleepRecordsAndAdvances(t *testing.T) {
	c := New(epoch)
	c.Sleep(100 * time.Millisecond)
	c.Sleep(time.Second)

	sleeps := c.Sleeps()
	if len(sleeps) != 2 || sleeps[0] != 100*time.Millisecond || sleeps[1] != time.Second {
		t.Errorf("Sleeps() = %v", sleeps)
	}
	if got := c.Now(); !got.Equal(epoch.Add(1100 * time.Millisecond)) {
		t.Errorf("Now() after sleeps = %v", got)
	}
}

func TestClock_SleepDoesNotBlock(t *testing.T) {
	c := New(epoch)
	done := make(chan struct{})
	go func() {
		c.Sleep(time.Hour)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Sleep blocked")
	}
}
