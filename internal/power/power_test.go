package power_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mitralabs/coco/internal/audio"
	"github.com/mitralabs/coco/internal/pipeline"
	"github.com/mitralabs/coco/internal/power"
	"github.com/mitralabs/coco/internal/state"
	"github.com/mitralabs/coco/internal/storage"
	"github.com/mitralabs/coco/internal/uploadqueue"
)

type fixedVoltage struct {
	volts float64
	err   error
}

func (f fixedVoltage) Voltage() (float64, error) { return f.volts, f.err }

type toggleWake struct {
	active bool
}

func (w *toggleWake) TriggerActive() bool { return w.active }

type fixture struct {
	store   *state.Store
	chunks  *pipeline.BoundedQueue
	queue   *uploadqueue.Queue
	sleeper *power.NopSleeper
	wake    *toggleWake
}

func newFixture(t *testing.T, opts power.Options) (*power.Arbiter, *fixture) {
	t.Helper()

	dir := t.TempDir()
	files := storage.NewService(time.Second, nil)
	f := &fixture{
		store:   state.NewStore(),
		chunks:  pipeline.NewBoundedQueue(4),
		queue:   uploadqueue.New(filepath.Join(dir, "upload_queue.txt"), files, nil),
		sleeper: &power.NopSleeper{},
		wake:    &toggleWake{},
	}
	arb := power.NewArbiter(f.store, f.chunks, f.queue, nil, nil, f.sleeper, fixedVoltage{volts: 3.8}, f.wake, opts, nil)
	return arb, f
}

func TestIsSystemIdleRequiresEveryCondition(t *testing.T) {
	arb, f := newFixture(t, power.Options{})
	ctx := context.Background()

	if !arb.IsSystemIdle(ctx) {
		t.Fatal("expected idle with all stages quiescent")
	}

	f.store.SetRecordingRequested(true)
	if arb.IsSystemIdle(ctx) {
		t.Fatal("expected busy while recording is requested")
	}
	f.store.SetRecordingRequested(false)

	if err := f.chunks.Push(ctx, audio.Chunk{Data: []byte{1}}, time.Second); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if arb.IsSystemIdle(ctx) {
		t.Fatal("expected busy with a buffered chunk")
	}
	if _, ok := f.chunks.Pop(ctx, time.Second); !ok {
		t.Fatal("Pop failed")
	}

	f.store.SetUploadInProgress(true)
	if arb.IsSystemIdle(ctx) {
		t.Fatal("expected busy while an upload is in flight")
	}
	f.store.SetUploadInProgress(false)

	f.store.BeginChunkWork()
	if arb.IsSystemIdle(ctx) {
		t.Fatal("expected busy while a chunk is captured or persisted")
	}
	f.store.EndChunkWork()

	if err := f.queue.Enqueue(ctx, "/tmp/a.wav"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if arb.IsSystemIdle(ctx) {
		t.Fatal("expected busy with pending uploads")
	}
}

func TestIsSystemIdleWithPendingUploadsAndLowBattery(t *testing.T) {
	dir := t.TempDir()
	files := storage.NewService(time.Second, nil)
	store := state.NewStore()
	queue := uploadqueue.New(filepath.Join(dir, "upload_queue.txt"), files, nil)
	sleeper := &power.NopSleeper{}

	arb := power.NewArbiter(store, pipeline.NewBoundedQueue(4), queue, nil, nil, sleeper,
		fixedVoltage{volts: 2.8}, nil, power.Options{UploadBatteryThreshold: 3.0}, nil)

	ctx := context.Background()
	if err := queue.Enqueue(ctx, "/tmp/a.wav"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if !arb.IsSystemIdle(ctx) {
		t.Fatal("expected idle: pending uploads cannot run on a depleted battery")
	}
}

func TestMaybeSleepGatesOnReadiness(t *testing.T) {
	arb, f := newFixture(t, power.Options{})
	ctx := context.Background()

	arb.MaybeSleep(ctx)
	if f.sleeper.Requests != 0 {
		t.Fatal("slept without readiness")
	}

	// A completed recording marks readiness.
	f.store.SetRecordingRequested(true)
	f.store.SetRecordingRequested(false)
	arb.MaybeSleep(ctx)
	if f.sleeper.Requests != 1 {
		t.Fatalf("Requests = %d, want 1", f.sleeper.Requests)
	}
	if f.store.ReadyForSleep() {
		t.Fatal("readiness not cleared after sleeping")
	}

	// Without a new completed recording the next check must not sleep again.
	arb.MaybeSleep(ctx)
	if f.sleeper.Requests != 1 {
		t.Fatalf("Requests = %d after second check, want 1", f.sleeper.Requests)
	}
}

func TestMaybeSleepWaitsForBusyPipeline(t *testing.T) {
	arb, f := newFixture(t, power.Options{})
	ctx := context.Background()

	f.store.SetRecordingRequested(true)
	f.store.SetRecordingRequested(false)
	f.store.SetUploadInProgress(true)

	arb.MaybeSleep(ctx)
	if f.sleeper.Requests != 0 {
		t.Fatal("slept while an upload was in flight")
	}
	if !f.store.ReadyForSleep() {
		t.Fatal("readiness must survive a deferred sleep")
	}

	f.store.SetUploadInProgress(false)
	arb.MaybeSleep(ctx)
	if f.sleeper.Requests != 1 {
		t.Fatalf("Requests = %d once idle, want 1", f.sleeper.Requests)
	}
}

func TestMaybeSleepWaitsForChunkInFlight(t *testing.T) {
	arb, f := newFixture(t, power.Options{})
	ctx := context.Background()

	// Recording stopped, both queues empty, but the closing end chunk is
	// still being captured.
	f.store.SetRecordingRequested(true)
	f.store.SetRecordingRequested(false)
	f.store.BeginChunkWork()

	arb.MaybeSleep(ctx)
	if f.sleeper.Requests != 0 {
		t.Fatal("slept while a chunk was mid-capture")
	}
	if !f.store.ReadyForSleep() {
		t.Fatal("readiness must survive the deferred sleep")
	}

	f.store.EndChunkWork()
	arb.MaybeSleep(ctx)
	if f.sleeper.Requests != 1 {
		t.Fatalf("Requests = %d once the chunk landed, want 1", f.sleeper.Requests)
	}
}

func TestHandleWakeValidatesSustainedTrigger(t *testing.T) {
	arb, f := newFixture(t, power.Options{WakeDebounce: 10 * time.Millisecond})
	f.wake.active = true

	arb.HandleWake(context.Background())

	if got := f.store.ExternalWakeValidity(); got != state.WakeValid {
		t.Fatalf("validity = %v, want WakeValid", got)
	}
	if !f.store.RecordingRequested() {
		t.Fatal("validated wake must request recording")
	}
	if f.store.ExternalWakeTriggered() {
		t.Fatal("trigger flag must clear after validation")
	}
}

func TestHandleWakeRejectsTransientTrigger(t *testing.T) {
	arb, f := newFixture(t, power.Options{WakeDebounce: 10 * time.Millisecond})
	f.wake.active = false

	arb.HandleWake(context.Background())

	if got := f.store.ExternalWakeValidity(); got != state.WakeInvalid {
		t.Fatalf("validity = %v, want WakeInvalid", got)
	}
	if f.store.RecordingRequested() {
		t.Fatal("rejected wake must not request recording")
	}
	// The rejected wake resumes sleep preparation immediately.
	if f.sleeper.Requests != 1 {
		t.Fatalf("Requests = %d, want 1", f.sleeper.Requests)
	}
}

func TestWaitForWakeValidationObservesHandler(t *testing.T) {
	arb, f := newFixture(t, power.Options{
		WakeDebounce:          10 * time.Millisecond,
		WakeValidationTimeout: time.Second,
	})
	f.wake.active = true
	f.store.SetExternalWakeTriggered(true)

	done := make(chan state.WakeValidity, 1)
	go func() {
		done <- arb.WaitForWakeValidation(context.Background())
	}()
	go arb.HandleWake(context.Background())

	select {
	case got := <-done:
		if got != state.WakeValid {
			t.Fatalf("validity = %v, want WakeValid", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("WaitForWakeValidation did not return")
	}
}

func TestWaitForWakeValidationTimesOutUndetermined(t *testing.T) {
	arb, f := newFixture(t, power.Options{WakeValidationTimeout: 20 * time.Millisecond})
	f.store.SetExternalWakeTriggered(true)

	start := time.Now()
	got := arb.WaitForWakeValidation(context.Background())
	if got != state.WakeUndetermined {
		t.Fatalf("validity = %v, want WakeUndetermined", got)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("waited %v, expected the hard timeout to bound the wait", elapsed)
	}
}

func TestSysfsBatteryReadsMicrovolts(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "voltage_now"), []byte("3700000\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	volts, err := power.SysfsBattery{Path: dir}.Voltage()
	if err != nil {
		t.Fatalf("Voltage: %v", err)
	}
	if volts < 3.69 || volts > 3.71 {
		t.Fatalf("volts = %v, want 3.7", volts)
	}
}

func TestSysfsBatteryMissingDevice(t *testing.T) {
	if _, err := (power.SysfsBattery{Path: t.TempDir()}).Voltage(); err == nil {
		t.Fatal("expected error for a missing voltage_now")
	}
}

func TestCommandSleeperRequiresCommand(t *testing.T) {
	if err := (power.CommandSleeper{}).Sleep(context.Background()); err == nil {
		t.Fatal("expected error for an empty suspend command")
	}
}
