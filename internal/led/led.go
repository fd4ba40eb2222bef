// Package led drives the status LED through the kernel leds class.
package led

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/mitralabs/coco/internal/faults"
	"github.com/mitralabs/coco/internal/logging"
)

// State is a visible device condition.
type State int

const (
	// StateOff turns the LED off.
	StateOff State = iota
	// StateRecording holds the LED solid while capture runs.
	StateRecording
	// StateError blinks the LED after a fatal initialization failure.
	StateError
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateRecording:
		return "recording"
	case StateError:
		return "error"
	default:
		return "off"
	}
}

// Signaler shows a device condition to the user.
type Signaler interface {
	Set(state State) error
}

// SysfsSignaler drives a leds-class device. StateError uses the kernel
// timer trigger so the blink survives even if the process dies right after
// signaling.
type SysfsSignaler struct {
	// Path is the LED device directory, e.g. /sys/class/leds/status.
	Path   string
	Logger *slog.Logger

	mu sync.Mutex
}

// NewSysfsSignaler wires a Signaler for the given leds-class directory.
func NewSysfsSignaler(path string, logger *slog.Logger) *SysfsSignaler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &SysfsSignaler{
		Path:   path,
		Logger: logging.NewComponentLogger(logger, "led"),
	}
}

// Set applies the state to the LED device.
func (s *SysfsSignaler) Set(state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	switch state {
	case StateRecording:
		err = s.write("trigger", "none")
		if err == nil {
			err = s.write("brightness", "1")
		}
	case StateError:
		err = s.write("trigger", "timer")
		if err == nil {
			err = s.write("delay_on", "200")
		}
		if err == nil {
			err = s.write("delay_off", "200")
		}
	default:
		err = s.write("trigger", "none")
		if err == nil {
			err = s.write("brightness", "0")
		}
	}
	if err != nil {
		return err
	}

	s.Logger.Debug("led state applied", logging.String("state", state.String()))
	return nil
}

func (s *SysfsSignaler) write(attr, value string) error {
	path := filepath.Join(s.Path, attr)
	if err := os.WriteFile(path, []byte(value), 0o644); err != nil {
		return faults.Wrap(faults.ErrTransientIO, "led", "write "+attr, path, err)
	}
	return nil
}

// LogSignaler reports state changes through the log only, for machines
// without a status LED.
type LogSignaler struct {
	Logger *slog.Logger

	mu    sync.Mutex
	state State
}

// NewLogSignaler wires a log-backed Signaler.
func NewLogSignaler(logger *slog.Logger) *LogSignaler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &LogSignaler{Logger: logging.NewComponentLogger(logger, "led")}
}

// Set records the state change.
func (s *LogSignaler) Set(state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state == s.state {
		return nil
	}
	s.state = state
	s.Logger.Info("status signal changed",
		logging.String("state", state.String()),
		logging.String(logging.FieldEventType, "status_signal"))
	return nil
}

// State returns the last applied state.
func (s *LogSignaler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
