package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"github.com/mitralabs/coco/internal/faults"
	"github.com/mitralabs/coco/internal/guard"
	"github.com/mitralabs/coco/internal/logging"
)

// ErrBufferTooSmall is returned by ReadInto when the file does not fit the
// caller's buffer. Oversized files are an error, never a partial read.
var ErrBufferTooSmall = errors.New("file exceeds transfer buffer")

// Service performs filesystem operations under the exclusive guard.
type Service struct {
	guard  *guard.Guard
	logger *slog.Logger
}

// NewService builds a Service with its own guard using the given acquisition
// timeout.
func NewService(guardTimeout time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		guard:  guard.New(guardTimeout),
		logger: logging.NewComponentLogger(logger, "storage"),
	}
}

// WithGuard runs fn while holding the storage guard, for callers whose
// multi-step operations must be atomic with respect to other writers.
func (s *Service) WithGuard(ctx context.Context, fn func() error) error {
	release, err := s.guard.Acquire(ctx)
	if err != nil {
		return faults.Wrap(faults.ErrTransientIO, "storage", "acquire guard", "", err)
	}
	defer release()
	return fn()
}

// WriteFile writes data to path, creating parent directories as needed.
func (s *Service) WriteFile(ctx context.Context, path string, data []byte) error {
	return s.WithGuard(ctx, func() error {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return faults.Wrap(faults.ErrTransientIO, "storage", "mkdir", path, err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return faults.Wrap(faults.ErrTransientIO, "storage", "write", path, err)
		}
		return nil
	})
}

// Append appends data to path, creating the file when absent.
func (s *Service) Append(ctx context.Context, path string, data []byte) error {
	return s.WithGuard(ctx, func() error {
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return faults.Wrap(faults.ErrTransientIO, "storage", "open append", path, err)
		}
		if _, err := file.Write(data); err != nil {
			file.Close()
			return faults.Wrap(faults.ErrTransientIO, "storage", "append", path, err)
		}
		if err := file.Close(); err != nil {
			return faults.Wrap(faults.ErrTransientIO, "storage", "close", path, err)
		}
		return nil
	})
}

// ReadFile returns the full contents of path.
func (s *Service) ReadFile(ctx context.Context, path string) ([]byte, error) {
	var data []byte
	err := s.WithGuard(ctx, func() error {
		var readErr error
		data, readErr = os.ReadFile(path)
		if readErr != nil {
			return faults.Wrap(faults.ErrTransientIO, "storage", "read", path, readErr)
		}
		return nil
	})
	return data, err
}

// ReadInto reads path fully into buf and returns the byte count. A file
// larger than buf fails with ErrBufferTooSmall.
func (s *Service) ReadInto(ctx context.Context, path string, buf []byte) (int, error) {
	var n int
	err := s.WithGuard(ctx, func() error {
		file, err := os.Open(path)
		if err != nil {
			return faults.Wrap(faults.ErrTransientIO, "storage", "open", path, err)
		}
		defer file.Close()

		info, err := file.Stat()
		if err != nil {
			return faults.Wrap(faults.ErrTransientIO, "storage", "stat", path, err)
		}
		if info.Size() > int64(len(buf)) {
			return fmt.Errorf("%w: %s is %d bytes, buffer holds %d",
				ErrBufferTooSmall, path, info.Size(), len(buf))
		}

		n, err = io.ReadFull(file, buf[:info.Size()])
		if err != nil {
			return faults.Wrap(faults.ErrTransientIO, "storage", "read", path, err)
		}
		return nil
	})
	return n, err
}

// Delete removes path. Deleting an absent file is not an error.
func (s *Service) Delete(ctx context.Context, path string) error {
	return s.WithGuard(ctx, func() error {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return faults.Wrap(faults.ErrTransientIO, "storage", "delete", path, err)
		}
		return nil
	})
}

// MkdirAll creates path and its parents.
func (s *Service) MkdirAll(ctx context.Context, path string) error {
	return s.WithGuard(ctx, func() error {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return faults.Wrap(faults.ErrTransientIO, "storage", "mkdir", path, err)
		}
		return nil
	})
}

// Exists reports whether path exists.
func (s *Service) Exists(ctx context.Context, path string) (bool, error) {
	var exists bool
	err := s.WithGuard(ctx, func() error {
		_, statErr := os.Stat(path)
		if statErr == nil {
			exists = true
			return nil
		}
		if errors.Is(statErr, fs.ErrNotExist) {
			return nil
		}
		return faults.Wrap(faults.ErrTransientIO, "storage", "stat", path, statErr)
	})
	return exists, err
}

// FileSize returns the size of path in bytes.
func (s *Service) FileSize(ctx context.Context, path string) (int64, error) {
	var size int64
	err := s.WithGuard(ctx, func() error {
		info, statErr := os.Stat(path)
		if statErr != nil {
			return faults.Wrap(faults.ErrTransientIO, "storage", "stat", path, statErr)
		}
		size = info.Size()
		return nil
	})
	return size, err
}

// FreeSpace returns total and available bytes on the filesystem holding path.
func (s *Service) FreeSpace(path string) (total, free uint64, err error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, 0, faults.Wrap(faults.ErrTransientIO, "storage", "statfs", path, err)
	}
	total = stat.Blocks * uint64(stat.Bsize)
	free = stat.Bavail * uint64(stat.Bsize)
	return total, free, nil
}

// CheckFreeSpace logs and returns an error when available space under path is
// below minFree bytes.
func (s *Service) CheckFreeSpace(path string, minFree uint64) error {
	_, free, err := s.FreeSpace(path)
	if err != nil {
		return err
	}
	if free < minFree {
		s.logger.Warn("low free space",
			logging.String(logging.FieldPath, path),
			logging.Uint64("free_bytes", free),
			logging.Uint64("min_bytes", minFree))
		return faults.Wrap(faults.ErrTransientIO, "storage", "free space",
			fmt.Sprintf("%d bytes available under %s, need %d", free, path, minFree), nil)
	}
	return nil
}
