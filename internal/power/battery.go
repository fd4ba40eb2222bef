package power

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mitralabs/coco/internal/faults"
	"github.com/mitralabs/coco/internal/logging"
)

// Battery reports the pack voltage.
type Battery interface {
	Voltage() (float64, error)
}

// SysfsBattery reads voltage from the kernel power_supply class.
type SysfsBattery struct {
	// Path is the power_supply device directory, e.g.
	// /sys/class/power_supply/BAT0.
	Path string
}

// Voltage returns the instantaneous pack voltage in volts.
func (b SysfsBattery) Voltage() (float64, error) {
	data, err := os.ReadFile(filepath.Join(b.Path, "voltage_now"))
	if err != nil {
		return 0, faults.Wrap(faults.ErrTransientIO, "battery", "read voltage", b.Path, err)
	}
	microvolts, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return 0, faults.Wrap(faults.ErrTransientIO, "battery", "parse voltage", b.Path, err)
	}
	return microvolts / 1e6, nil
}

// Monitor samples the battery on a slow cadence and logs threshold
// crossings.
type Monitor struct {
	battery   Battery
	threshold float64
	interval  time.Duration
	logger    *slog.Logger

	wasLow bool
}

// NewMonitor wires a Monitor warning below threshold volts.
func NewMonitor(battery Battery, threshold float64, interval time.Duration, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = logging.NewNop()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Monitor{
		battery:   battery,
		threshold: threshold,
		interval:  interval,
		logger:    logging.NewComponentLogger(logger, "battery"),
	}
}

// Run samples until ctx is canceled.
func (m *Monitor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(m.interval):
		}
		m.Sample()
	}
}

// Sample reads once and logs transitions across the threshold.
func (m *Monitor) Sample() {
	voltage, err := m.battery.Voltage()
	if err != nil {
		m.logger.Debug("battery read failed", logging.Error(err))
		return
	}

	low := voltage < m.threshold
	switch {
	case low && !m.wasLow:
		m.logger.Warn("battery below threshold",
			logging.Float64("voltage", voltage),
			logging.Float64("threshold", m.threshold),
			logging.String(logging.FieldEventType, "battery_low"),
			logging.String(logging.FieldImpact, "recording and uploads gated"))
	case !low && m.wasLow:
		m.logger.Info("battery recovered",
			logging.Float64("voltage", voltage),
			logging.String(logging.FieldEventType, "battery_recovered"))
	}
	m.wasLow = low
}
