package netwatch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitralabs/coco/internal/backoff"
	"github.com/mitralabs/coco/internal/clock"
	"github.com/mitralabs/coco/internal/logging"
	"github.com/mitralabs/coco/internal/state"
)

// linkPollInterval is how often the watcher re-evaluates a connected link.
const linkPollInterval = time.Second

// ntpRetryDelay spaces the one-shot correction retry after a failed attempt.
const ntpRetryDelay = 30 * time.Second

// LinkProber reports whether the wireless link is usable.
type LinkProber interface {
	Connected(ctx context.Context) (bool, error)
}

// SysfsLinkProber reads the kernel operstate for one interface.
type SysfsLinkProber struct {
	Interface string
}

// Connected reports true when the interface operstate is "up".
func (p SysfsLinkProber) Connected(context.Context) (bool, error) {
	data, err := os.ReadFile(filepath.Join("/sys/class/net", p.Interface, "operstate"))
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(string(data)) == "up", nil
}

// LinkWatcher maintains the linkConnected flag and reacts to transitions.
type LinkWatcher struct {
	store     *state.Store
	prober    LinkProber
	scan      *backoff.Controller
	reach     *backoff.Controller
	clk       *clock.Service
	corrector clock.Corrector
	logger    *slog.Logger
}

// NewLinkWatcher wires a LinkWatcher. corrector may be nil when no time
// source is configured.
func NewLinkWatcher(store *state.Store, prober LinkProber, scan, reach *backoff.Controller, clk *clock.Service, corrector clock.Corrector, logger *slog.Logger) *LinkWatcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &LinkWatcher{
		store:     store,
		prober:    prober,
		scan:      scan,
		reach:     reach,
		clk:       clk,
		corrector: corrector,
		logger:    logging.NewComponentLogger(logger, "linkwatch"),
	}
}

// Run polls link state until ctx is canceled.
func (w *LinkWatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(linkPollInterval):
		}
		w.Poll(ctx)
	}
}

// Poll performs one evaluation cycle. Run calls it on a fixed cadence;
// tests drive it directly.
func (w *LinkWatcher) Poll(ctx context.Context) {
	wasConnected := w.store.LinkConnected()
	now := time.Now()

	if !wasConnected && !w.scan.ShouldProbeNow(now) {
		return
	}

	connected, err := w.prober.Connected(ctx)
	if err != nil {
		w.logger.Warn("link probe failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "link_probe_failed"))
		connected = false
	}

	switch {
	case connected && !wasConnected:
		w.onLinkUp(ctx, now)
	case !connected && wasConnected:
		w.onLinkDown(now)
	case !connected:
		w.scan.Failure(now)
	}
	w.store.SetScanBackoff(w.scan.Snapshot())
}

func (w *LinkWatcher) onLinkUp(ctx context.Context, now time.Time) {
	w.store.SetLinkConnected(true)
	w.scan.Success(now)
	// Revalidate the backend straight away on a fresh link.
	w.reach.ForceNow(now)
	w.store.ForceReachabilityCheck(now)
	w.logger.Info("link up", logging.String(logging.FieldEventType, "link_up"))

	if w.corrector != nil && w.clk != nil {
		go w.correctClock(ctx)
	}
}

func (w *LinkWatcher) onLinkDown(now time.Time) {
	w.store.SetLinkConnected(false)
	w.store.SetBackendReachable(false)
	// A fresh drop restarts scanning at the minimum interval so a brief
	// outage reconnects fast. Only failed probes while down back off.
	w.scan.Success(now)
	w.scan.ScheduleAfter(now, w.scan.Interval())
	w.logger.Warn("link down",
		logging.String(logging.FieldEventType, "link_down"),
		logging.Duration("retry_interval", w.scan.Interval()))
}

// correctClock applies one NTP-style correction with a single delayed retry.
func (w *LinkWatcher) correctClock(ctx context.Context) {
	err := w.clk.ApplyCorrection(ctx, w.corrector)
	if err == nil {
		return
	}
	w.logger.Warn("clock correction failed, retrying once",
		logging.Error(err),
		logging.Duration("retry_in", ntpRetryDelay))

	select {
	case <-ctx.Done():
		return
	case <-time.After(ntpRetryDelay):
	}
	if err := w.clk.ApplyCorrection(ctx, w.corrector); err != nil {
		w.logger.Warn("clock correction retry failed", logging.Error(err))
	}
}
