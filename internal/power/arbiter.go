package power

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mitralabs/coco/internal/clock"
	"github.com/mitralabs/coco/internal/logging"
	"github.com/mitralabs/coco/internal/pipeline"
	"github.com/mitralabs/coco/internal/state"
	"github.com/mitralabs/coco/internal/uploadqueue"
)

// LogFlusher drains buffered log records before the processor stops.
type LogFlusher interface {
	Flush(ctx context.Context) error
}

// WakeSource reports whether the external wake trigger is still active, used
// by debounce validation.
type WakeSource interface {
	TriggerActive() bool
}

// Options configures the Arbiter.
type Options struct {
	CheckInterval         time.Duration
	WakeDebounce          time.Duration
	WakeValidationTimeout time.Duration
	// UploadBatteryThreshold lets the arbiter treat a non-empty durable
	// queue as quiescent when the battery cannot sustain uploads anyway.
	UploadBatteryThreshold float64
}

// Arbiter owns the Active -> Idle-Candidate -> Sleeping transition.
type Arbiter struct {
	store   *state.Store
	chunks  *pipeline.BoundedQueue
	queue   *uploadqueue.Queue
	clk     *clock.Service
	flusher LogFlusher
	sleeper Sleeper
	battery Battery
	wake    WakeSource

	opts   Options
	logger *slog.Logger

	mu        sync.Mutex
	validated chan struct{}
}

// NewArbiter wires an Arbiter. flusher, battery, and wake may be nil.
func NewArbiter(store *state.Store, chunks *pipeline.BoundedQueue, queue *uploadqueue.Queue, clk *clock.Service, flusher LogFlusher, sleeper Sleeper, battery Battery, wake WakeSource, opts Options, logger *slog.Logger) *Arbiter {
	if logger == nil {
		logger = logging.NewNop()
	}
	if opts.CheckInterval <= 0 {
		opts.CheckInterval = 5 * time.Second
	}
	if opts.WakeDebounce <= 0 {
		opts.WakeDebounce = time.Second
	}
	if opts.WakeValidationTimeout <= 0 {
		opts.WakeValidationTimeout = 2 * time.Second
	}
	return &Arbiter{
		store:     store,
		chunks:    chunks,
		queue:     queue,
		clk:       clk,
		flusher:   flusher,
		sleeper:   sleeper,
		battery:   battery,
		wake:      wake,
		opts:      opts,
		logger:    logging.NewComponentLogger(logger, "power"),
		validated: make(chan struct{}, 1),
	}
}

// Run evaluates the sleep condition on a fixed cadence until ctx is
// canceled.
func (a *Arbiter) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(a.opts.CheckInterval):
		}
		a.MaybeSleep(ctx)
	}
}

// IsSystemIdle reports whether every pipeline stage is quiescent. A
// non-empty durable queue still counts as idle when the battery cannot
// sustain an upload.
func (a *Arbiter) IsSystemIdle(ctx context.Context) bool {
	snap := a.store.Snapshot()
	if snap.RecordingRequested || snap.CaptureActive || snap.UploadInProgress {
		return false
	}
	if a.chunks != nil && a.chunks.Len() > 0 {
		return false
	}

	durableEmpty, err := a.queue.IsEmpty(ctx)
	if err != nil {
		// Can't prove idleness; stay awake and retry next check.
		return false
	}
	if durableEmpty {
		return true
	}
	return a.batteryBelow(a.opts.UploadBatteryThreshold)
}

// MaybeSleep transitions through Idle-Candidate into Sleeping when the
// system is ready and idle. Safe to call from any task.
func (a *Arbiter) MaybeSleep(ctx context.Context) {
	if !a.store.ReadyForSleep() {
		return
	}
	if !a.IsSystemIdle(ctx) {
		return
	}
	a.logger.Info("idle candidate, preparing sleep",
		logging.String(logging.FieldEventType, "idle_candidate"))

	if a.flusher != nil {
		flushCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := a.flusher.Flush(flushCtx); err != nil {
			a.logger.Warn("log flush incomplete before sleep", logging.Error(err))
		}
		cancel()
	}
	if a.clk != nil {
		if err := a.clk.Persist(ctx); err != nil {
			a.logger.Warn("time checkpoint failed before sleep", logging.Error(err))
		}
	}

	a.store.SetReadyForSleep(false)
	a.logger.Info("entering sleep",
		logging.String(logging.FieldEventType, "sleeping"))
	if err := a.sleeper.Sleep(ctx); err != nil {
		// Stay awake; the next completed recording can retry.
		a.logger.Error("sleep transition failed", logging.Error(err),
			logging.String(logging.FieldErrorHint, "check suspend command permissions"))
	}
}

// HandleWake runs debounce validation for one external wake signal. When the
// trigger still holds after the debounce interval the wake is trusted and
// recording starts; otherwise sleep preparation resumes.
func (a *Arbiter) HandleWake(ctx context.Context) {
	a.store.SetExternalWakeTriggered(true)
	a.logger.Info("external wake signal, debouncing",
		logging.Duration("debounce", a.opts.WakeDebounce),
		logging.String(logging.FieldEventType, "wake_triggered"))

	select {
	case <-ctx.Done():
		return
	case <-time.After(a.opts.WakeDebounce):
	}

	stillActive := a.wake == nil || a.wake.TriggerActive()
	if stillActive {
		a.store.SetExternalWakeValidity(state.WakeValid)
		a.store.SetRecordingRequested(true)
		a.logger.Info("wake validated, recording requested",
			logging.String(logging.FieldEventType, "wake_valid"))
	} else {
		a.store.SetExternalWakeValidity(state.WakeInvalid)
		a.store.SetReadyForSleep(true)
		a.logger.Info("wake rejected by debounce",
			logging.String(logging.FieldEventType, "wake_invalid"))
		a.MaybeSleep(ctx)
	}
	a.store.SetExternalWakeTriggered(false)
	a.signalValidated()
}

// WaitForWakeValidation blocks until a pending wake is validated or the hard
// timeout passes. An undetermined result after the timeout is the caller's
// boot-continuation decision point, never an infinite wait.
func (a *Arbiter) WaitForWakeValidation(ctx context.Context) state.WakeValidity {
	timer := time.NewTimer(a.opts.WakeValidationTimeout)
	defer timer.Stop()

	for {
		if !a.store.ExternalWakeTriggered() {
			return a.store.ExternalWakeValidity()
		}
		select {
		case <-ctx.Done():
			return a.store.ExternalWakeValidity()
		case <-timer.C:
			return a.store.ExternalWakeValidity()
		case <-a.validated:
		}
	}
}

func (a *Arbiter) signalValidated() {
	select {
	case a.validated <- struct{}{}:
	default:
	}
}

func (a *Arbiter) batteryBelow(threshold float64) bool {
	if a.battery == nil || threshold <= 0 {
		return false
	}
	voltage, err := a.battery.Voltage()
	if err != nil {
		return false
	}
	return voltage < threshold
}
