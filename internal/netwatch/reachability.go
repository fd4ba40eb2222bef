package netwatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/mitralabs/coco/internal/backoff"
	"github.com/mitralabs/coco/internal/guard"
	"github.com/mitralabs/coco/internal/logging"
	"github.com/mitralabs/coco/internal/state"
)

// reachabilityPollInterval is the prober's evaluation cadence; the actual
// probe frequency is governed by the backoff controller.
const reachabilityPollInterval = time.Second

// HealthChecker is the slice of the backend client the prober needs.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// ReachabilityProber health-checks the backend while the link is up.
type ReachabilityProber struct {
	store      *state.Store
	checker    HealthChecker
	controller *backoff.Controller
	network    *guard.Guard

	// recheckInterval spaces probes while the backend stays reachable.
	recheckInterval time.Duration
	logger          *slog.Logger
}

// NewReachabilityProber wires a ReachabilityProber sharing the network guard
// with the uploader.
func NewReachabilityProber(store *state.Store, checker HealthChecker, controller *backoff.Controller, network *guard.Guard, recheckInterval time.Duration, logger *slog.Logger) *ReachabilityProber {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &ReachabilityProber{
		store:           store,
		checker:         checker,
		controller:      controller,
		network:         network,
		recheckInterval: recheckInterval,
		logger:          logging.NewComponentLogger(logger, "reachability"),
	}
}

// Run evaluates probe eligibility until ctx is canceled.
func (p *ReachabilityProber) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(reachabilityPollInterval):
		}
		p.Poll(ctx)
	}
}

// Poll performs at most one probe when one is due. Run calls it on a fixed
// cadence; tests drive it directly.
func (p *ReachabilityProber) Poll(ctx context.Context) {
	if !p.store.LinkConnected() {
		return
	}
	// The store's schedule can be forced ahead of the controller's, e.g. by
	// an uploader failure streak.
	now := time.Now()
	if !p.controller.ShouldProbeNow(now) && now.Before(p.store.ReachabilityBackoff().NextAttempt) {
		return
	}

	release, err := p.network.Acquire(ctx)
	if err != nil {
		// Network busy, likely an upload in flight. Try next cycle.
		return
	}
	probeErr := p.checker.CheckHealth(ctx)
	release()

	now = time.Now()
	if probeErr != nil {
		p.store.SetBackendReachable(false)
		p.controller.Failure(now)
		p.logger.Warn("backend unreachable",
			logging.Error(probeErr),
			logging.Duration("retry_interval", p.controller.Interval()),
			logging.String(logging.FieldEventType, "reachability_failed"))
	} else {
		wasReachable := p.store.BackendReachable()
		p.store.SetBackendReachable(true)
		p.controller.Success(now)
		p.controller.ScheduleAfter(now, p.recheckInterval)
		if !wasReachable {
			p.logger.Info("backend reachable",
				logging.String(logging.FieldEventType, "reachability_ok"))
		}
	}
	p.store.SetReachabilityBackoff(p.controller.Snapshot())
}
