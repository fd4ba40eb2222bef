package power

import (
	"context"
	"os/exec"
	"strings"

	"github.com/mitralabs/coco/internal/faults"
)

// Sleeper commits the system to its low-power state.
type Sleeper interface {
	Sleep(ctx context.Context) error
}

// CommandSleeper suspends by running a configured command, typically
// "systemctl suspend".
type CommandSleeper struct {
	Command string
}

// Sleep runs the suspend command and waits for it to return.
func (s CommandSleeper) Sleep(ctx context.Context) error {
	fields := strings.Fields(s.Command)
	if len(fields) == 0 {
		return faults.Wrap(faults.ErrFatalInit, "power", "sleep", "no suspend command configured", nil)
	}
	cmd := exec.CommandContext(ctx, fields[0], fields[1:]...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return faults.Wrap(faults.ErrTransientIO, "power", "sleep",
			strings.TrimSpace(string(output)), err)
	}
	return nil
}

// NopSleeper records sleep requests without suspending, for development
// machines and tests.
type NopSleeper struct {
	Requests int
}

// Sleep counts the request and returns.
func (s *NopSleeper) Sleep(context.Context) error {
	s.Requests++
	return nil
}
