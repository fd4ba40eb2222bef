package uploader

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mitralabs/coco/internal/faults"
	"github.com/mitralabs/coco/internal/guard"
	"github.com/mitralabs/coco/internal/ledger"
	"github.com/mitralabs/coco/internal/logging"
	"github.com/mitralabs/coco/internal/state"
	"github.com/mitralabs/coco/internal/storage"
	"github.com/mitralabs/coco/internal/uploadqueue"
)

// Transferer is the slice of the backend client the uploader needs.
type Transferer interface {
	Upload(ctx context.Context, filename string, data []byte) error
	NotifySessionComplete(ctx context.Context, session uint32) error
}

// VoltageSource reports battery voltage for the upload gate.
type VoltageSource interface {
	Voltage() (float64, error)
}

// Options configures an Uploader.
type Options struct {
	PollInterval     time.Duration
	FailureLimit     uint32
	BufferSize       int
	BatteryThreshold float64
}

// Uploader drains the durable queue while its gate holds.
type Uploader struct {
	store   *state.Store
	queue   *uploadqueue.Queue
	files   *storage.Service
	client  Transferer
	network *guard.Guard
	battery VoltageSource
	history *ledger.Store

	opts   Options
	buffer []byte
	// correlationID ties one uploader lifetime's ledger rows together.
	correlationID string
	// uploadedSinceDrain tracks whether a session-complete ping is owed.
	uploadedSinceDrain bool
	logger             *slog.Logger
}

// New wires an Uploader. battery and history may be nil; a nil battery
// passes the gate unconditionally.
func New(store *state.Store, queue *uploadqueue.Queue, files *storage.Service, client Transferer, network *guard.Guard, battery VoltageSource, history *ledger.Store, opts Options, logger *slog.Logger) *Uploader {
	if logger == nil {
		logger = logging.NewNop()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.FailureLimit == 0 {
		opts.FailureLimit = 5
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = 8 << 20
	}
	return &Uploader{
		store:         store,
		queue:         queue,
		files:         files,
		client:        client,
		network:       network,
		battery:       battery,
		history:       history,
		opts:          opts,
		buffer:        make([]byte, opts.BufferSize),
		correlationID: uuid.NewString(),
		logger:        logging.NewComponentLogger(logger, "uploader"),
	}
}

// Run polls the queue until ctx is canceled or the failure threshold fires,
// in which case it returns faults.ErrThresholdExceeded after handing recovery
// to the reachability prober.
func (u *Uploader) Run(ctx context.Context) error {
	u.logger.Info("uploader started",
		logging.String(logging.FieldCorrelationID, u.correlationID))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(u.opts.PollInterval):
		}
		if err := u.Attempt(ctx); err != nil {
			if errors.Is(err, faults.ErrThresholdExceeded) {
				return err
			}
			// Transient; next poll retries.
		}
	}
}

// Attempt performs at most one upload cycle. Run calls it on the poll
// cadence; tests drive it directly.
func (u *Uploader) Attempt(ctx context.Context) error {
	if !u.gatePasses() {
		return nil
	}

	release, ok := u.network.TryAcquire()
	if !ok {
		// A reachability probe holds the network. Not a failure.
		return nil
	}
	u.store.SetUploadInProgress(true)
	defer func() {
		u.store.SetUploadInProgress(false)
		release()
	}()

	head, found, err := u.queue.PeekHead(ctx)
	if err != nil {
		u.logger.Warn("queue peek failed", logging.Error(err))
		return err
	}
	if !found {
		u.onQueueDrained(ctx)
		return nil
	}

	return u.transferHead(ctx, head)
}

// gatePasses checks the four preconditions, logging the unmet ones.
func (u *Uploader) gatePasses() bool {
	snap := u.store.Snapshot()
	var unmet []string
	if !snap.LinkConnected {
		unmet = append(unmet, "link down")
	}
	if !snap.BackendReachable {
		unmet = append(unmet, "backend unreachable")
	}
	if !snap.FilesAvailable {
		unmet = append(unmet, "no files available")
	}
	if low, voltage := u.batteryLow(); low {
		unmet = append(unmet, "battery low")
		u.logger.Debug("battery below upload threshold",
			logging.Float64("voltage", voltage),
			logging.Float64("threshold", u.opts.BatteryThreshold))
	}
	if len(unmet) > 0 {
		u.logger.Debug("upload gate closed",
			logging.String("unmet", strings.Join(unmet, ", ")))
		return false
	}
	return true
}

func (u *Uploader) batteryLow() (bool, float64) {
	if u.battery == nil || u.opts.BatteryThreshold <= 0 {
		return false, 0
	}
	voltage, err := u.battery.Voltage()
	if err != nil {
		// An unreadable gauge never blocks uploads.
		return false, 0
	}
	return voltage < u.opts.BatteryThreshold, voltage
}

func (u *Uploader) transferHead(ctx context.Context, head string) error {
	exists, err := u.files.Exists(ctx, head)
	if err != nil {
		return err
	}
	if !exists {
		// Stale queue entry, e.g. after a crash between delete and dequeue.
		u.logger.Warn("queued file missing, dropping entry",
			logging.String(logging.FieldPath, head))
		return u.queue.DequeueHead(ctx)
	}

	// The storage guard is held only for the read, never across the
	// transfer.
	n, err := u.files.ReadInto(ctx, head, u.buffer)
	if err != nil {
		// A file that exists but cannot be read counts against the failure
		// streak like a failed transfer, so the uploader cannot spin
		// forever on a corrupt head entry.
		return u.recordFailure(ctx, head, 0, err)
	}
	if n == 0 {
		// Zero-byte recordings carry nothing worth transferring.
		u.logger.Info("discarding empty queued file",
			logging.String(logging.FieldPath, head),
			logging.String(logging.FieldEventType, "empty_file_discarded"))
		if err := u.files.Delete(ctx, head); err != nil {
			return err
		}
		return u.queue.DequeueHead(ctx)
	}

	if err := u.client.Upload(ctx, filepath.Base(head), u.buffer[:n]); err != nil {
		return u.recordFailure(ctx, head, int64(n), err)
	}
	return u.commitSuccess(ctx, head, int64(n))
}

func (u *Uploader) commitSuccess(ctx context.Context, head string, bytes int64) error {
	u.store.ResetUploadFailures()
	u.uploadedSinceDrain = true
	u.recordLedger(ctx, head, bytes, ledger.OutcomeSuccess, "")
	u.logger.Info("uploaded",
		logging.String(logging.FieldPath, head),
		logging.Int64("bytes", bytes),
		logging.String(logging.FieldCorrelationID, u.correlationID))

	if err := u.files.Delete(ctx, head); err != nil {
		// The file survives; the queue entry stays and the next cycle
		// retries the delete via the missing-file path after re-upload.
		u.logger.Warn("uploaded file not deleted", logging.Error(err),
			logging.String(logging.FieldPath, head))
		return err
	}
	return u.queue.DequeueHead(ctx)
}

func (u *Uploader) recordFailure(ctx context.Context, head string, bytes int64, cause error) error {
	failures := u.store.RecordUploadFailure()
	u.recordLedger(ctx, head, bytes, ledger.OutcomeFailure, cause.Error())
	u.logger.Warn("upload failed",
		logging.Error(cause),
		logging.String(logging.FieldPath, head),
		logging.Uint32("consecutive_failures", failures),
		logging.String(logging.FieldCorrelationID, u.correlationID))

	if failures >= u.opts.FailureLimit {
		now := time.Now()
		u.store.SetBackendReachable(false)
		u.store.ForceReachabilityCheck(now)
		u.logger.Error("failure threshold reached, stopping uploader",
			logging.Uint32("failures", failures),
			logging.String(logging.FieldEventType, "uploader_threshold"),
			logging.String(logging.FieldErrorHint, "waiting for reachability to recover"))
		return faults.Wrap(faults.ErrThresholdExceeded, "uploader", "transfer", head, cause)
	}
	return faults.Wrap(faults.ErrTransientNetwork, "uploader", "transfer", head, cause)
}

// onQueueDrained clears filesAvailable and pings the backend once per drain.
func (u *Uploader) onQueueDrained(ctx context.Context) {
	u.store.SetFilesAvailable(false)
	if !u.uploadedSinceDrain {
		return
	}
	u.uploadedSinceDrain = false
	if err := u.client.NotifySessionComplete(ctx, u.store.BootSession()); err != nil {
		u.logger.Warn("session-complete notification failed", logging.Error(err))
		return
	}
	u.logger.Info("session complete",
		logging.String(logging.FieldEventType, "session_complete"))
}

func (u *Uploader) recordLedger(ctx context.Context, path string, bytes int64, outcome, detail string) {
	if u.history == nil {
		return
	}
	err := u.history.RecordAttempt(ctx, ledger.Attempt{
		CorrelationID: u.correlationID,
		BootSession:   u.store.BootSession(),
		FilePath:      path,
		Bytes:         bytes,
		Outcome:       outcome,
		Detail:        detail,
	})
	if err != nil {
		u.logger.Warn("ledger write failed", logging.Error(err))
	}
}
