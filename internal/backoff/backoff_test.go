package backoff_test

import (
	"testing"
	"time"

	"github.com/mitralabs/coco/internal/backoff"
)

func TestFailuresDoubleAndClamp(t *testing.T) {
	c := backoff.New(5*time.Second, 600*time.Second)
	now := time.Now()

	want := []time.Duration{
		10 * time.Second,
		20 * time.Second,
		40 * time.Second,
		80 * time.Second,
		160 * time.Second,
		320 * time.Second,
		600 * time.Second,
		600 * time.Second,
	}
	for i, expected := range want {
		c.Failure(now)
		if got := c.Interval(); got != expected {
			t.Fatalf("failure %d: interval %v, want %v", i+1, got, expected)
		}
	}
}

func TestSuccessResetsToMinimumImmediately(t *testing.T) {
	c := backoff.New(5*time.Second, 600*time.Second)
	now := time.Now()

	for i := 0; i < 4; i++ {
		c.Failure(now)
	}
	if c.Interval() == 5*time.Second {
		t.Fatal("setup: interval should have grown")
	}

	c.Success(now)
	if got := c.Interval(); got != 5*time.Second {
		t.Fatalf("success must reset to minimum, got %v", got)
	}
	if !c.ShouldProbeNow(now) {
		t.Fatal("success must allow an immediate next attempt")
	}
}

func TestShouldProbeNowRespectsSchedule(t *testing.T) {
	c := backoff.New(5*time.Second, 600*time.Second)
	now := time.Now()

	if !c.ShouldProbeNow(now) {
		t.Fatal("fresh controller must be due immediately")
	}

	c.Failure(now)
	if c.ShouldProbeNow(now.Add(9 * time.Second)) {
		t.Fatal("attempt must not be due before the interval elapses")
	}
	if !c.ShouldProbeNow(now.Add(10 * time.Second)) {
		t.Fatal("attempt must be due once the interval elapses")
	}
}

func TestScheduleAfterPreservesInterval(t *testing.T) {
	c := backoff.New(5*time.Second, 600*time.Second)
	now := time.Now()

	c.Success(now)
	c.ScheduleAfter(now, 10*time.Minute)

	if c.ShouldProbeNow(now.Add(9 * time.Minute)) {
		t.Fatal("recheck must not be due early")
	}
	if !c.ShouldProbeNow(now.Add(10 * time.Minute)) {
		t.Fatal("recheck must be due after the delay")
	}
	if got := c.Interval(); got != 5*time.Second {
		t.Fatalf("ScheduleAfter must not change the interval, got %v", got)
	}
}

func TestForceNowMakesAttemptDue(t *testing.T) {
	c := backoff.New(5*time.Second, 600*time.Second)
	now := time.Now()

	c.Failure(now)
	if c.ShouldProbeNow(now) {
		t.Fatal("setup: attempt should be deferred")
	}

	c.ForceNow(now)
	if !c.ShouldProbeNow(now) {
		t.Fatal("ForceNow must make the attempt due")
	}
}

func TestSnapshotReflectsSchedule(t *testing.T) {
	c := backoff.New(5*time.Second, 600*time.Second)
	now := time.Now()
	c.Failure(now)

	snap := c.Snapshot()
	if snap.Interval != 10*time.Second {
		t.Fatalf("unexpected snapshot interval: %v", snap.Interval)
	}
	if !snap.NextAttempt.Equal(now.Add(10 * time.Second)) {
		t.Fatalf("unexpected snapshot next attempt: %v", snap.NextAttempt)
	}
}
