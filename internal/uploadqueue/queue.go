package uploadqueue

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/mitralabs/coco/internal/faults"
	"github.com/mitralabs/coco/internal/logging"
	"github.com/mitralabs/coco/internal/storage"
)

// Queue is the durable FIFO of pending upload paths.
type Queue struct {
	path   string
	store  *storage.Service
	logger *slog.Logger
}

// New returns a Queue backed by the file at path. Operations acquire the
// store's guard, so a Queue and direct Service users never interleave writes.
func New(path string, store *storage.Service, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Queue{
		path:   path,
		store:  store,
		logger: logging.NewComponentLogger(logger, "uploadqueue"),
	}
}

// Path returns the backing file location.
func (q *Queue) Path() string {
	return q.path
}

// Recover discards a stale rewrite left behind by a crash between the
// temp-file write and the rename. The original queue file is still intact at
// that point, so dropping the temp repeats at most one dequeue.
func (q *Queue) Recover(ctx context.Context) error {
	return q.store.WithGuard(ctx, func() error {
		temp := q.tempPath()
		if err := os.Remove(temp); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return faults.Wrap(faults.ErrTransientIO, "uploadqueue", "recover", temp, err)
		}
		return nil
	})
}

// Enqueue appends filePath as the new tail.
func (q *Queue) Enqueue(ctx context.Context, filePath string) error {
	filePath = strings.TrimSpace(filePath)
	if filePath == "" {
		return faults.Wrap(faults.ErrTransientIO, "uploadqueue", "enqueue", "empty path", nil)
	}
	return q.store.WithGuard(ctx, func() error {
		file, err := os.OpenFile(q.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return faults.Wrap(faults.ErrTransientIO, "uploadqueue", "open", q.path, err)
		}
		if _, err := file.WriteString(filePath + "\n"); err != nil {
			file.Close()
			return faults.Wrap(faults.ErrTransientIO, "uploadqueue", "append", q.path, err)
		}
		if err := file.Close(); err != nil {
			return faults.Wrap(faults.ErrTransientIO, "uploadqueue", "close", q.path, err)
		}
		return nil
	})
}

// PeekHead returns the first queued path without removing it. The second
// return is false when the queue is empty. Peek has no side effects, so the
// uploader can retry a transfer before committing the dequeue.
func (q *Queue) PeekHead(ctx context.Context) (string, bool, error) {
	var head string
	var ok bool
	err := q.store.WithGuard(ctx, func() error {
		entries, err := q.readEntries()
		if err != nil {
			return err
		}
		if len(entries) > 0 {
			head = entries[0]
			ok = true
		}
		return nil
	})
	return head, ok, err
}

// DequeueHead removes the first queued path. The remaining entries are
// written to a temporary file which atomically replaces the original; with a
// single entry this degenerates to deleting the file. Dequeueing an empty
// queue is a no-op.
func (q *Queue) DequeueHead(ctx context.Context) error {
	return q.store.WithGuard(ctx, func() error {
		entries, err := q.readEntries()
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}
		if len(entries) == 1 {
			if err := os.Remove(q.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return faults.Wrap(faults.ErrTransientIO, "uploadqueue", "remove", q.path, err)
			}
			return nil
		}
		return q.rewrite(entries[1:])
	})
}

// IsEmpty reports whether no paths are queued.
func (q *Queue) IsEmpty(ctx context.Context) (bool, error) {
	entries, err := q.Entries(ctx)
	if err != nil {
		return false, err
	}
	return len(entries) == 0, nil
}

// Len returns the number of queued paths.
func (q *Queue) Len(ctx context.Context) (int, error) {
	entries, err := q.Entries(ctx)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Entries returns every queued path in FIFO order.
func (q *Queue) Entries(ctx context.Context) ([]string, error) {
	var entries []string
	err := q.store.WithGuard(ctx, func() error {
		var readErr error
		entries, readErr = q.readEntries()
		return readErr
	})
	return entries, err
}

// Clear discards every queued path.
func (q *Queue) Clear(ctx context.Context) error {
	return q.store.WithGuard(ctx, func() error {
		if err := os.Remove(q.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return faults.Wrap(faults.ErrTransientIO, "uploadqueue", "clear", q.path, err)
		}
		return nil
	})
}

func (q *Queue) tempPath() string {
	return q.path + ".tmp"
}

// readEntries expects the guard to be held by the caller.
func (q *Queue) readEntries() ([]string, error) {
	data, err := os.ReadFile(q.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, faults.Wrap(faults.ErrTransientIO, "uploadqueue", "read", q.path, err)
	}

	var entries []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		entries = append(entries, line)
	}
	return entries, nil
}

// rewrite expects the guard to be held by the caller. It commits only on full
// success: the original file is untouched until the final rename.
func (q *Queue) rewrite(entries []string) error {
	temp := q.tempPath()

	file, err := os.OpenFile(temp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return faults.Wrap(faults.ErrTransientIO, "uploadqueue", "open temp", temp, err)
	}
	for _, entry := range entries {
		if _, err := file.WriteString(entry + "\n"); err != nil {
			file.Close()
			os.Remove(temp)
			return faults.Wrap(faults.ErrTransientIO, "uploadqueue", "write temp", temp, err)
		}
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temp)
		return faults.Wrap(faults.ErrTransientIO, "uploadqueue", "sync temp", temp, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temp)
		return faults.Wrap(faults.ErrTransientIO, "uploadqueue", "close temp", temp, err)
	}
	if err := os.Rename(temp, q.path); err != nil {
		os.Remove(temp)
		return faults.Wrap(faults.ErrTransientIO, "uploadqueue", "rename", q.path, err)
	}
	return nil
}
