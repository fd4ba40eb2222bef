package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"github.com/mitralabs/coco/internal/audio"
	"github.com/mitralabs/coco/internal/backend"
	"github.com/mitralabs/coco/internal/backoff"
	"github.com/mitralabs/coco/internal/clock"
	"github.com/mitralabs/coco/internal/config"
	"github.com/mitralabs/coco/internal/faults"
	"github.com/mitralabs/coco/internal/guard"
	"github.com/mitralabs/coco/internal/led"
	"github.com/mitralabs/coco/internal/ledger"
	"github.com/mitralabs/coco/internal/logging"
	"github.com/mitralabs/coco/internal/logs"
	"github.com/mitralabs/coco/internal/netwatch"
	"github.com/mitralabs/coco/internal/pipeline"
	"github.com/mitralabs/coco/internal/power"
	"github.com/mitralabs/coco/internal/state"
	"github.com/mitralabs/coco/internal/storage"
	"github.com/mitralabs/coco/internal/uploader"
	"github.com/mitralabs/coco/internal/uploadqueue"
	"github.com/mitralabs/coco/internal/wake"
)

// uploaderRestartPoll is how often a stopped uploader checks for the backend
// coming back.
const uploaderRestartPoll = 5 * time.Second

// Options carries replaceable collaborators. Zero values select the real
// device implementations derived from configuration.
type Options struct {
	Capturer audio.Capturer
	Sleeper  power.Sleeper
	Battery  power.Battery
	Signaler led.Signaler
	// Sink, when set, is flushed before sleep and at shutdown.
	Sink *logging.AsyncSink
	// LogPath is the log file served by TailLogs.
	LogPath string
}

// Daemon wires and runs the capture-persist-upload pipeline.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	opts   Options

	store   *state.Store
	files   *storage.Service
	queue   *uploadqueue.Queue
	chunks  *pipeline.BoundedQueue
	clk     *clock.Service
	client  *backend.Client
	history *ledger.Store
	network *guard.Guard
	arbiter *power.Arbiter
	wakeMon *wake.Monitor

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, logger *slog.Logger, opts Options) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, faults.Wrap(faults.ErrFatalInit, "daemon", "prepare directories", "", err)
	}

	if opts.Capturer == nil {
		opts.Capturer = audio.NewSyntheticCapturer(cfg.Audio.SampleRate)
	}
	if opts.Sleeper == nil {
		opts.Sleeper = power.CommandSleeper{Command: cfg.Power.SuspendCommand}
	}
	if opts.Battery == nil && cfg.Power.BatteryPath != "" {
		opts.Battery = power.SysfsBattery{Path: cfg.Power.BatteryPath}
	}
	if opts.Signaler == nil {
		opts.Signaler = led.NewLogSignaler(logger)
	}

	files := storage.NewService(time.Duration(cfg.Storage.GuardTimeoutSeconds)*time.Second, logger)
	store := state.NewStore()
	queue := uploadqueue.New(cfg.QueuePath(), files, logger)
	chunks := pipeline.NewBoundedQueue(cfg.Audio.QueueSize)
	clk := clock.NewService(cfg.TimeFilePath(), cfg.Time.TimestampFormat, files, logger)
	client := backend.NewClient(backend.Options{
		UploadURL:          cfg.Backend.UploadURL,
		HealthURL:          cfg.Backend.HealthURL,
		SessionCompleteURL: cfg.Backend.SessionCompleteURL,
		APIKey:             cfg.Backend.APIKey,
		AudioFormat:        cfg.Backend.AudioFormat,
		Timeout:            time.Duration(cfg.Backend.HTTPTimeout) * time.Second,
	})

	history, err := ledger.Open(cfg.LedgerPath())
	if err != nil {
		return nil, faults.Wrap(faults.ErrFatalInit, "daemon", "open upload ledger", cfg.LedgerPath(), err)
	}

	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		opts:     opts,
		store:    store,
		files:    files,
		queue:    queue,
		chunks:   chunks,
		clk:      clk,
		client:   client,
		history:  history,
		network:  guard.New(time.Duration(cfg.Network.ProbeGuardTimeoutSeconds) * time.Second),
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}

	d.wakeMon = wake.NewMonitor(wake.Options{
		Device:      cfg.Power.WakeDevice,
		TriggerPath: cfg.Power.WakeTriggerPath,
	}, func(ctx context.Context) {
		d.arbiter.HandleWake(ctx)
	}, logger)

	var flusher power.LogFlusher
	if opts.Sink != nil {
		flusher = opts.Sink
	}
	d.arbiter = power.NewArbiter(store, chunks, queue, clk, flusher, opts.Sleeper, opts.Battery, d.wakeMon, power.Options{
		CheckInterval:          time.Duration(cfg.Power.SleepCheckIntervalSeconds) * time.Second,
		WakeDebounce:           time.Duration(cfg.Power.WakeDebounceMs) * time.Millisecond,
		WakeValidationTimeout:  time.Duration(cfg.Power.WakeValidationTimeoutMs) * time.Millisecond,
		UploadBatteryThreshold: cfg.Upload.BatteryThresholdVolts,
	}, logger)

	return d, nil
}

// Start acquires the instance lock, restores persisted state, and launches
// every task. Lock contention and restore failures are fatal initialization
// errors: the signaler shows the error state before Start returns.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return d.failInit(faults.Wrap(faults.ErrFatalInit, "daemon", "acquire lock", d.lockPath, err))
	}
	if !ok {
		return d.failInit(faults.Wrap(faults.ErrFatalInit, "daemon", "acquire lock",
			"another cocod instance is already running", nil))
	}

	if err := d.restore(ctx); err != nil {
		_ = d.lock.Unlock()
		return d.failInit(err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.launchTasks(runCtx)
	d.running.Store(true)

	d.logger.Info("cocod started",
		logging.String("lock", d.lockPath),
		logging.Uint32("boot_session", d.store.BootSession()),
		logging.String(logging.FieldEventType, "daemon_start"))
	return nil
}

// restore replays persisted state: wall clock, durable queue, boot session
// counter, and the free-space floor.
func (d *Daemon) restore(ctx context.Context) error {
	if err := d.clk.Restore(ctx); err != nil {
		return faults.Wrap(faults.ErrFatalInit, "daemon", "restore clock", d.cfg.TimeFilePath(), err)
	}
	if err := d.queue.Recover(ctx); err != nil {
		return faults.Wrap(faults.ErrFatalInit, "daemon", "recover upload queue", d.cfg.QueuePath(), err)
	}
	empty, err := d.queue.IsEmpty(ctx)
	if err != nil {
		return faults.Wrap(faults.ErrFatalInit, "daemon", "read upload queue", d.cfg.QueuePath(), err)
	}
	d.store.SetFilesAvailable(!empty)

	session, err := d.nextBootSession(ctx)
	if err != nil {
		return err
	}
	d.store.SetBootSession(session)

	minFree := uint64(d.cfg.Storage.MinFreeMiB) << 20
	if err := d.files.CheckFreeSpace(d.cfg.Paths.DataDir, minFree); err != nil {
		// Degraded but able to run: the persister surfaces write failures.
		d.logger.Warn("data volume below free-space floor", logging.Error(err))
	}
	return nil
}

// nextBootSession increments and persists the boot counter. A missing or
// corrupt counter file restarts numbering at 1.
func (d *Daemon) nextBootSession(ctx context.Context) (uint32, error) {
	var previous uint64
	data, err := d.files.ReadFile(ctx, d.cfg.SessionFilePath())
	switch {
	case err == nil:
		previous, err = strconv.ParseUint(strings.TrimSpace(string(data)), 10, 32)
		if err != nil {
			d.logger.Warn("boot session counter corrupt, restarting at 1",
				logging.String(logging.FieldPath, d.cfg.SessionFilePath()))
			previous = 0
		}
	case errors.Is(err, os.ErrNotExist):
		// First boot.
	default:
		return 0, faults.Wrap(faults.ErrFatalInit, "daemon", "read boot session counter", d.cfg.SessionFilePath(), err)
	}

	session := uint32(previous) + 1
	payload := []byte(fmt.Sprintf("%d\n", session))
	if err := d.files.WriteFile(ctx, d.cfg.SessionFilePath(), payload); err != nil {
		return 0, faults.Wrap(faults.ErrFatalInit, "daemon", "persist boot session counter", d.cfg.SessionFilePath(), err)
	}
	return session, nil
}

func (d *Daemon) launchTasks(ctx context.Context) {
	cfg := d.cfg

	scan := backoff.New(
		time.Duration(cfg.Network.MinProbeIntervalSeconds)*time.Second,
		time.Duration(cfg.Network.MaxProbeIntervalSeconds)*time.Second,
	)
	reach := backoff.New(
		time.Duration(cfg.Network.MinProbeIntervalSeconds)*time.Second,
		time.Duration(cfg.Network.MaxProbeIntervalSeconds)*time.Second,
	)

	linkWatcher := netwatch.NewLinkWatcher(d.store,
		netwatch.SysfsLinkProber{Interface: cfg.Network.Interface},
		scan, reach, d.clk, d.client, d.logger)
	reachability := netwatch.NewReachabilityProber(d.store, d.client, reach, d.network,
		time.Duration(cfg.Network.ReachabilityRecheckSecs)*time.Second, d.logger)

	recorder := pipeline.NewRecorder(d.store, d.opts.Capturer, d.chunks, d.clk,
		time.Duration(cfg.Audio.RecordSeconds)*time.Second,
		time.Duration(cfg.Audio.PushTimeoutMs)*time.Millisecond, d.logger)
	persister := pipeline.NewPersister(d.store, d.chunks, d.files, d.queue, d.clk,
		cfg.RecordingsDir(), cfg.Backend.AudioFormat,
		time.Duration(cfg.Audio.PopTimeoutMs)*time.Millisecond, d.arbiter, d.logger)

	_ = d.wakeMon.Start(ctx)

	tasks := []func(context.Context){
		func(ctx context.Context) { d.clk.Run(ctx, time.Duration(cfg.Time.PersistIntervalMinutes)*time.Minute) },
		linkWatcher.Run,
		reachability.Run,
		recorder.Run,
		persister.Run,
		d.arbiter.Run,
		d.superviseUploader,
	}
	if d.opts.Battery != nil {
		monitor := power.NewMonitor(d.opts.Battery, cfg.Power.BatteryRecordingThresholdVolts,
			time.Duration(cfg.Power.BatterySampleIntervalSeconds)*time.Second, d.logger)
		tasks = append(tasks, monitor.Run)
	}

	for _, task := range tasks {
		task := task
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			task(ctx)
		}()
	}
}

// superviseUploader runs uploaders back to back. An uploader that stops on
// its failure streak is replaced once the reachability prober reports the
// backend healthy again.
func (d *Daemon) superviseUploader(ctx context.Context) {
	for {
		up := uploader.New(d.store, d.queue, d.files, d.client, d.network, d.opts.Battery, d.history, uploader.Options{
			PollInterval:     time.Duration(d.cfg.Upload.PollIntervalSeconds) * time.Second,
			FailureLimit:     uint32(d.cfg.Upload.FailureLimit),
			BufferSize:       d.cfg.Upload.BufferMiB << 20,
			BatteryThreshold: d.cfg.Upload.BatteryThresholdVolts,
		}, d.logger)

		err := up.Run(ctx)
		if ctx.Err() != nil {
			return
		}
		if !errors.Is(err, faults.ErrThresholdExceeded) {
			d.logger.Error("uploader stopped unexpectedly", logging.Error(err))
		}

		// Wait for the prober to declare the backend healthy before
		// starting a replacement.
		for !d.store.BackendReachable() {
			select {
			case <-ctx.Done():
				return
			case <-time.After(uploaderRestartPoll):
			}
		}
		d.logger.Info("backend reachable again, restarting uploader",
			logging.String(logging.FieldEventType, "uploader_restart"))
	}
}

func (d *Daemon) failInit(err error) error {
	if d.opts.Signaler != nil {
		if sigErr := d.opts.Signaler.Set(led.StateError); sigErr != nil {
			d.logger.Warn("failed to signal error state", logging.Error(sigErr))
		}
	}
	d.logger.Error("daemon initialization failed", logging.Error(err),
		logging.String(logging.FieldEventType, "daemon_init_failed"))
	return err
}

// Stop cancels every task, flushes pending logs, and releases the instance
// lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wakeMon.Stop()
	d.wg.Wait()

	if d.opts.Sink != nil {
		flushCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = d.opts.Sink.Flush(flushCtx)
		cancel()
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release instance lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("cocod stopped",
		logging.String(logging.FieldEventType, "daemon_stop"))
}

// Close stops the daemon and releases held resources.
func (d *Daemon) Close() error {
	d.Stop()
	if d.history != nil {
		return d.history.Close()
	}
	return nil
}

// Running reports whether background tasks are active.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Status describes daemon runtime information for the CLI.
type Status struct {
	Running      bool
	PID          int
	LockPath     string
	QueuePath    string
	QueueLength  int
	State        state.Snapshot
	LedgerStats  ledger.Stats
	RecordingsIn string
}

// Status returns a point-in-time view of the daemon.
func (d *Daemon) Status(ctx context.Context) (Status, error) {
	length, err := d.queue.Len(ctx)
	if err != nil {
		return Status{}, err
	}
	stats, err := d.history.Stats(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		LockPath:     d.lockPath,
		QueuePath:    d.cfg.QueuePath(),
		QueueLength:  length,
		State:        d.store.Snapshot(),
		LedgerStats:  stats,
		RecordingsIn: d.cfg.RecordingsDir(),
	}, nil
}

// QueueEntries lists the durable queue oldest first.
func (d *Daemon) QueueEntries(ctx context.Context) ([]string, error) {
	return d.queue.Entries(ctx)
}

// ClearQueue empties the durable queue and reports how many entries were
// removed. Queued recordings stay on disk.
func (d *Daemon) ClearQueue(ctx context.Context) (int, error) {
	length, err := d.queue.Len(ctx)
	if err != nil {
		return 0, err
	}
	if err := d.queue.Clear(ctx); err != nil {
		return 0, err
	}
	d.store.SetFilesAvailable(false)
	return length, nil
}

// LogPath returns the log file this run writes to, empty when logging goes
// to stdout only.
func (d *Daemon) LogPath() string {
	return d.opts.LogPath
}

// TailLogs reads from the daemon log file.
func (d *Daemon) TailLogs(ctx context.Context, opts logs.TailOptions) (logs.TailResult, error) {
	if d.opts.LogPath == "" {
		return logs.TailResult{}, nil
	}
	return logs.Tail(ctx, d.opts.LogPath, opts)
}

// RecentUploads returns the newest ledger rows.
func (d *Daemon) RecentUploads(ctx context.Context, limit int) ([]ledger.Attempt, error) {
	return d.history.RecentAttempts(ctx, limit)
}

// RequestRecording flips the capture request flag.
func (d *Daemon) RequestRecording(active bool) {
	d.store.SetRecordingRequested(active)
	if active {
		if err := d.opts.Signaler.Set(led.StateRecording); err != nil {
			d.logger.Warn("failed to signal recording state", logging.Error(err))
		}
		return
	}
	if err := d.opts.Signaler.Set(led.StateOff); err != nil {
		d.logger.Warn("failed to signal idle state", logging.Error(err))
	}
}

// TriggerWake feeds a synthetic wake signal through debounce validation and
// blocks until the verdict is in.
func (d *Daemon) TriggerWake(ctx context.Context) state.WakeValidity {
	d.store.SetExternalWakeTriggered(true)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.arbiter.HandleWake(ctx)
	}()
	return d.arbiter.WaitForWakeValidation(ctx)
}
