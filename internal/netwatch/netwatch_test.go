package netwatch_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mitralabs/coco/internal/backoff"
	"github.com/mitralabs/coco/internal/guard"
	"github.com/mitralabs/coco/internal/netwatch"
	"github.com/mitralabs/coco/internal/state"
)

type stubLinkProber struct {
	connected atomic.Bool
	calls     atomic.Int32
}

func (p *stubLinkProber) Connected(context.Context) (bool, error) {
	p.calls.Add(1)
	return p.connected.Load(), nil
}

type stubHealthChecker struct {
	err   error
	calls atomic.Int32
}

func (c *stubHealthChecker) CheckHealth(context.Context) error {
	c.calls.Add(1)
	return c.err
}

func newControllers() (*backoff.Controller, *backoff.Controller) {
	return backoff.New(5*time.Second, 600*time.Second),
		backoff.New(5*time.Second, 600*time.Second)
}

func TestLinkUpTransition(t *testing.T) {
	store := state.NewStore()
	prober := &stubLinkProber{}
	prober.connected.Store(true)
	scan, reach := newControllers()
	// Defer the reachability schedule so the forced check is observable.
	reach.ScheduleAfter(time.Now(), time.Hour)

	w := netwatch.NewLinkWatcher(store, prober, scan, reach, nil, nil, nil)
	w.Poll(context.Background())

	if !store.LinkConnected() {
		t.Fatal("expected link connected")
	}
	if !reach.ShouldProbeNow(time.Now()) {
		t.Fatal("link up must force an immediate reachability check")
	}
	if scan.Interval() != 5*time.Second {
		t.Fatalf("link up must reset scan backoff, got %v", scan.Interval())
	}
}

func TestLinkDownTransitionClearsReachability(t *testing.T) {
	store := state.NewStore()
	store.SetLinkConnected(true)
	store.SetBackendReachable(true)
	prober := &stubLinkProber{}
	scan, reach := newControllers()

	w := netwatch.NewLinkWatcher(store, prober, scan, reach, nil, nil, nil)
	w.Poll(context.Background())

	if store.LinkConnected() {
		t.Fatal("expected link disconnected")
	}
	if store.BackendReachable() {
		t.Fatal("link loss must clear backend reachability")
	}
	if scan.Interval() != 5*time.Second {
		t.Fatalf("link loss must restart scan backoff at the minimum, got %v", scan.Interval())
	}
	if scan.ShouldProbeNow(time.Now()) {
		t.Fatal("first rescan must wait out the minimum interval")
	}
}

func TestLinkDropResetsInflatedScanBackoff(t *testing.T) {
	store := state.NewStore()
	prober := &stubLinkProber{}
	scan, reach := newControllers()
	w := netwatch.NewLinkWatcher(store, prober, scan, reach, nil, nil, nil)

	// Connect, grow the scan interval, then drop the link.
	prober.connected.Store(true)
	w.Poll(context.Background())
	for i := 0; i < 4; i++ {
		scan.Failure(time.Now())
	}
	prober.connected.Store(false)
	w.Poll(context.Background())

	if scan.Interval() != 5*time.Second {
		t.Fatalf("drop must reset scan backoff to the minimum, got %v", scan.Interval())
	}

	// Failed rescans while down still back off.
	scan.ForceNow(time.Now())
	w.Poll(context.Background())
	if scan.Interval() != 10*time.Second {
		t.Fatalf("failed rescan while down must double, got %v", scan.Interval())
	}
}

func TestDisconnectedScanBacksOff(t *testing.T) {
	store := state.NewStore()
	prober := &stubLinkProber{}
	scan, reach := newControllers()
	w := netwatch.NewLinkWatcher(store, prober, scan, reach, nil, nil, nil)

	// First poll probes and fails; backoff defers the next probe.
	w.Poll(context.Background())
	if got := prober.calls.Load(); got != 1 {
		t.Fatalf("expected one probe, got %d", got)
	}
	w.Poll(context.Background())
	if got := prober.calls.Load(); got != 1 {
		t.Fatalf("backoff must suppress the second probe, got %d", got)
	}
	if snap := store.ScanBackoff(); snap.Interval != 10*time.Second {
		t.Fatalf("scan backoff not mirrored to store: %+v", snap)
	}
}

func TestReachabilitySuccessSchedulesRecheck(t *testing.T) {
	store := state.NewStore()
	store.SetLinkConnected(true)
	_, reach := newControllers()
	checker := &stubHealthChecker{}
	network := guard.New(time.Second)

	p := netwatch.NewReachabilityProber(store, checker, reach, network, 10*time.Minute, nil)
	p.Poll(context.Background())

	if !store.BackendReachable() {
		t.Fatal("expected backend reachable")
	}
	if reach.ShouldProbeNow(time.Now().Add(9 * time.Minute)) {
		t.Fatal("recheck must be deferred by the recheck interval")
	}
	if !reach.ShouldProbeNow(time.Now().Add(11 * time.Minute)) {
		t.Fatal("recheck must come due after the recheck interval")
	}
}

func TestReachabilityFailureBacksOff(t *testing.T) {
	store := state.NewStore()
	store.SetLinkConnected(true)
	store.SetBackendReachable(true)
	_, reach := newControllers()
	checker := &stubHealthChecker{err: errors.New("503")}
	network := guard.New(time.Second)

	p := netwatch.NewReachabilityProber(store, checker, reach, network, 10*time.Minute, nil)
	p.Poll(context.Background())

	if store.BackendReachable() {
		t.Fatal("expected backend unreachable")
	}
	if reach.Interval() != 10*time.Second {
		t.Fatalf("failure must double the interval, got %v", reach.Interval())
	}

	p.Poll(context.Background())
	if got := checker.calls.Load(); got != 1 {
		t.Fatalf("backoff must suppress the second probe, got %d", got)
	}
}

func TestReachabilitySkipsWithoutLink(t *testing.T) {
	store := state.NewStore()
	_, reach := newControllers()
	checker := &stubHealthChecker{}
	network := guard.New(time.Second)

	p := netwatch.NewReachabilityProber(store, checker, reach, network, 10*time.Minute, nil)
	p.Poll(context.Background())

	if got := checker.calls.Load(); got != 0 {
		t.Fatalf("prober must not probe without a link, got %d calls", got)
	}
}

func TestForcedRecheckOverridesSchedule(t *testing.T) {
	store := state.NewStore()
	store.SetLinkConnected(true)
	_, reach := newControllers()
	// Push the controller schedule out, then force through the store.
	reach.ScheduleAfter(time.Now(), time.Hour)
	store.SetReachabilityBackoff(reach.Snapshot())
	store.ForceReachabilityCheck(time.Now())

	checker := &stubHealthChecker{}
	network := guard.New(time.Second)
	p := netwatch.NewReachabilityProber(store, checker, reach, network, 10*time.Minute, nil)
	p.Poll(context.Background())

	if got := checker.calls.Load(); got != 1 {
		t.Fatalf("forced recheck must probe immediately, got %d calls", got)
	}
}
