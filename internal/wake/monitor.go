package wake

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pilebones/go-udev/netlink"

	"github.com/mitralabs/coco/internal/logging"
)

// defaultActiveWindow bounds how long a trigger event counts as active when
// no trigger line is available to read directly.
const defaultActiveWindow = 3 * time.Second

// Handler receives validated-pending wake events.
type Handler func(ctx context.Context)

// Options configures a Monitor.
type Options struct {
	// Device filters events to one input device, e.g. /dev/input/event0.
	// Empty accepts any input device.
	Device string
	// TriggerPath is a sysfs value file ("1" while asserted) used by
	// TriggerActive. Empty falls back to the recent-event window.
	TriggerPath string
	// ActiveWindow is the fallback window for TriggerActive.
	ActiveWindow time.Duration
}

// Monitor listens for udev input events from the wake trigger.
type Monitor struct {
	opts    Options
	logger  *slog.Logger
	handler Handler

	mu          sync.Mutex
	conn        *netlink.UEventConn
	quit        chan struct{}
	running     bool
	lastEventAt time.Time
}

// NewMonitor creates a wake monitor. handler may be nil.
func NewMonitor(opts Options, handler Handler, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = logging.NewNop()
	}
	if opts.ActiveWindow <= 0 {
		opts.ActiveWindow = defaultActiveWindow
	}
	return &Monitor{
		opts:    opts,
		logger:  logging.NewComponentLogger(logger, "wake-monitor"),
		handler: handler,
	}
}

// Start begins listening for udev netlink events. A socket failure is
// non-fatal: the processor still runs, it just cannot observe external wake
// triggers.
func (m *Monitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		m.logger.Warn("failed to connect to netlink socket; wake trigger events unavailable",
			logging.Error(err),
			logging.String(logging.FieldEventType, "netlink_connect_failed"),
			logging.String(logging.FieldErrorHint, "ensure the daemon has permission to access netlink sockets"),
			logging.String(logging.FieldImpact, "recording starts only via the CLI"),
		)
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.monitorLoop(ctx, quit)

	m.logger.Info("wake monitor started",
		logging.String(logging.FieldEventType, "wake_monitor_started"),
		logging.String("device", m.opts.Device),
	)

	return nil
}

// Stop shuts down the monitor.
func (m *Monitor) Stop() {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false

	m.logger.Info("wake monitor stopped",
		logging.String(logging.FieldEventType, "wake_monitor_stopped"),
	)
}

// Running reports whether the monitor is active.
func (m *Monitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// TriggerActive reports whether the wake trigger is currently asserted.
func (m *Monitor) TriggerActive() bool {
	if m == nil {
		return false
	}
	if m.opts.TriggerPath != "" {
		data, err := os.ReadFile(m.opts.TriggerPath)
		if err != nil {
			m.logger.Debug("trigger line read failed", logging.Error(err))
			return false
		}
		return strings.TrimSpace(string(data)) == "1"
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastEventAt.IsZero() {
		return false
	}
	return time.Since(m.lastEventAt) <= m.opts.ActiveWindow
}

func (m *Monitor) monitorLoop(ctx context.Context, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)

	matcher := buildMatcher()

	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()

	if conn == nil {
		return
	}

	monitorQuit := conn.Monitor(queue, errs, matcher)

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			m.handleEvent(ctx, uevent)
		case err := <-errs:
			m.logger.Warn("wake monitor error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "wake_monitor_error"),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "wake trigger events may be missed"),
			)
		}
	}
}

// buildMatcher matches input subsystem events for add/change actions. Device
// filtering happens handler-side because DEVNAME is absent from some events.
func buildMatcher() netlink.Matcher {
	action := "change|add"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "input",
		},
	})
	return rules
}

func (m *Monitor) handleEvent(ctx context.Context, uevent netlink.UEvent) {
	devname := extractDeviceName(uevent)
	if !m.matchesDevice(devname) {
		m.logger.Debug("ignoring event for other input device",
			logging.String("device", devname),
			logging.String("configured_device", m.opts.Device),
		)
		return
	}

	m.mu.Lock()
	m.lastEventAt = time.Now()
	m.mu.Unlock()

	m.logger.Info("wake trigger event",
		logging.String(logging.FieldEventType, "wake_trigger"),
		logging.String("device", devname),
		logging.String("action", string(uevent.Action)),
	)

	if m.handler != nil {
		m.handler(ctx)
	}
}

func (m *Monitor) matchesDevice(devname string) bool {
	if m.opts.Device == "" {
		return true
	}
	return devname == m.opts.Device
}

// extractDeviceName gets the device path from a uevent, falling back to the
// last DEVPATH component.
func extractDeviceName(uevent netlink.UEvent) string {
	if devname := uevent.Env["DEVNAME"]; devname != "" {
		return devname
	}

	devpath := uevent.Env["DEVPATH"]
	if devpath == "" {
		return ""
	}
	parts := strings.Split(devpath, "/")
	if len(parts) == 0 {
		return ""
	}
	return "/dev/" + parts[len(parts)-1]
}
