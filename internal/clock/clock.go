package clock

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mitralabs/coco/internal/faults"
	"github.com/mitralabs/coco/internal/logging"
	"github.com/mitralabs/coco/internal/storage"
)

// Corrector supplies an authoritative wall-clock reading, typically NTP.
type Corrector interface {
	CurrentTime(ctx context.Context) (time.Time, error)
}

// Service tracks corrected wall-clock time and checkpoints it to storage.
type Service struct {
	mu     sync.Mutex
	offset time.Duration

	path   string
	format string
	store  *storage.Service
	logger *slog.Logger
}

// NewService returns a Service checkpointing to path using the given
// timestamp format for recording names.
func NewService(path, format string, store *storage.Service, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		path:   path,
		format: format,
		store:  store,
		logger: logging.NewComponentLogger(logger, "clock"),
	}
}

// Now returns the corrected wall-clock time.
func (s *Service) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Now().Add(s.offset)
}

// Timestamp renders Now in the configured filename format.
func (s *Service) Timestamp() string {
	return s.Now().Format(s.format)
}

// SetNow adjusts the offset so that Now reports t.
func (s *Service) SetNow(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offset = time.Until(t)
}

// Restore reads the persisted checkpoint and adopts it when it is ahead of
// the current corrected time, meaning the system clock lost progress across
// the power cycle. A missing or malformed checkpoint is ignored.
func (s *Service) Restore(ctx context.Context) error {
	data, err := s.store.ReadFile(ctx, s.path)
	if err != nil {
		return nil
	}
	epoch, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		s.logger.Warn("ignoring malformed time checkpoint",
			logging.String(logging.FieldPath, s.path),
			logging.Error(err))
		return nil
	}
	checkpoint := time.Unix(epoch, 0)
	if checkpoint.After(s.Now()) {
		s.SetNow(checkpoint)
		s.logger.Info("restored wall clock from checkpoint",
			logging.String("checkpoint", checkpoint.Format(time.RFC3339)))
	}
	return nil
}

// Persist writes the current epoch to the checkpoint file.
func (s *Service) Persist(ctx context.Context) error {
	epoch := strconv.FormatInt(s.Now().Unix(), 10) + "\n"
	if err := s.store.WriteFile(ctx, s.path, []byte(epoch)); err != nil {
		return faults.Wrap(faults.ErrTransientIO, "clock", "persist checkpoint", s.path, err)
	}
	return nil
}

// ApplyCorrection queries the corrector and installs its reading.
func (s *Service) ApplyCorrection(ctx context.Context, corrector Corrector) error {
	t, err := corrector.CurrentTime(ctx)
	if err != nil {
		return faults.Wrap(faults.ErrTransientNetwork, "clock", "correction", "", err)
	}
	s.SetNow(t)
	s.logger.Info("wall clock corrected",
		logging.String("now", t.Format(time.RFC3339)))
	return nil
}

// Run checkpoints the clock at the given interval until ctx is canceled,
// writing one final checkpoint on the way out.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	for {
		select {
		case <-ctx.Done():
			persistCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.Persist(persistCtx); err != nil {
				s.logger.Warn("final checkpoint failed", logging.Error(err))
			}
			cancel()
			return
		case <-time.After(interval):
			if err := s.Persist(ctx); err != nil {
				s.logger.Warn("checkpoint failed", logging.Error(err))
			}
		}
	}
}
