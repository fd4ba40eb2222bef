package state_test

import (
	"testing"
	"time"

	"github.com/mitralabs/coco/internal/state"
)

func TestStopRequestMarksReadyForSleep(t *testing.T) {
	store := state.NewStore()

	store.SetRecordingRequested(true)
	if store.ReadyForSleep() {
		t.Fatal("starting a recording must not mark ready for sleep")
	}

	store.SetRecordingRequested(false)
	if !store.ReadyForSleep() {
		t.Fatal("stopping a recording must mark ready for sleep")
	}

	store.SetRecordingRequested(true)
	if store.ReadyForSleep() {
		t.Fatal("a new recording request must cancel sleep readiness")
	}
}

func TestClearingIdleRequestDoesNotMarkReadyForSleep(t *testing.T) {
	store := state.NewStore()
	store.SetRecordingRequested(false)
	if store.ReadyForSleep() {
		t.Fatal("clearing an already clear request must not mark ready for sleep")
	}
}

func TestReachableBackendResetsFailureStreak(t *testing.T) {
	store := state.NewStore()

	if got := store.RecordUploadFailure(); got != 1 {
		t.Fatalf("unexpected failure count: %d", got)
	}
	if got := store.RecordUploadFailure(); got != 2 {
		t.Fatalf("unexpected failure count: %d", got)
	}

	store.SetBackendReachable(true)
	if got := store.ConsecutiveUploadFailures(); got != 0 {
		t.Fatalf("expected failure streak reset, got %d", got)
	}
}

func TestWakeTriggerResetsValidity(t *testing.T) {
	store := state.NewStore()
	store.SetExternalWakeValidity(state.WakeValid)

	store.SetExternalWakeTriggered(true)
	if got := store.ExternalWakeValidity(); got != state.WakeUndetermined {
		t.Fatalf("arming wake must reset validity, got %v", got)
	}
}

func TestNextAudioFileIndexIncrements(t *testing.T) {
	store := state.NewStore()
	for want := uint32(1); want <= 3; want++ {
		if got := store.NextAudioFileIndex(); got != want {
			t.Fatalf("unexpected index: got %d want %d", got, want)
		}
	}
	if got := store.AudioFileIndex(); got != 3 {
		t.Fatalf("unexpected stored index: %d", got)
	}
}

func TestForceReachabilityCheckRewindsSchedule(t *testing.T) {
	store := state.NewStore()
	later := time.Now().Add(10 * time.Minute)
	store.SetReachabilityBackoff(state.Backoff{Interval: 2 * time.Minute, NextAttempt: later})

	now := time.Now()
	store.ForceReachabilityCheck(now)

	got := store.ReachabilityBackoff()
	if !got.NextAttempt.Equal(now) {
		t.Fatalf("expected next attempt at %v, got %v", now, got.NextAttempt)
	}
	if got.Interval != 2*time.Minute {
		t.Fatalf("interval must be preserved, got %v", got.Interval)
	}
}

func TestSnapshotIsConsistentCopy(t *testing.T) {
	store := state.NewStore()
	store.SetBootSession(7)
	store.SetRecordingRequested(true)
	store.SetLinkConnected(true)
	store.SetFilesAvailable(true)

	snap := store.Snapshot()
	if snap.BootSession != 7 || !snap.RecordingRequested || !snap.LinkConnected || !snap.FilesAvailable {
		t.Fatalf("snapshot missing fields: %+v", snap)
	}

	store.SetLinkConnected(false)
	if !snap.LinkConnected {
		t.Fatal("snapshot must not track later mutations")
	}
}

func TestWakeValidityString(t *testing.T) {
	cases := map[state.WakeValidity]string{
		state.WakeUndetermined: "undetermined",
		state.WakeInvalid:      "invalid",
		state.WakeValid:        "valid",
	}
	for validity, want := range cases {
		if got := validity.String(); got != want {
			t.Fatalf("unexpected label for %d: got %q want %q", int(validity), got, want)
		}
	}
}
