package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/mitralabs/coco/internal/audio"
	"github.com/mitralabs/coco/internal/clock"
	"github.com/mitralabs/coco/internal/logging"
	"github.com/mitralabs/coco/internal/state"
	"github.com/mitralabs/coco/internal/storage"
	"github.com/mitralabs/coco/internal/uploadqueue"
)

// SleepChecker is consulted once the chunk queue runs dry, giving the power
// arbiter a chance to evaluate a pending drain-then-sleep request.
type SleepChecker interface {
	MaybeSleep(ctx context.Context)
}

// Persister drains the bounded queue to storage and feeds the durable upload
// queue.
type Persister struct {
	store   *state.Store
	queue   *BoundedQueue
	files   *storage.Service
	uploads *uploadqueue.Queue
	clk     *clock.Service

	recordingsDir string
	extension     string
	popTimeout    time.Duration
	sleepCheck    SleepChecker
	logger        *slog.Logger
}

// NewPersister wires a Persister. sleepCheck may be nil when no arbiter is
// running, as in tests.
func NewPersister(store *state.Store, queue *BoundedQueue, files *storage.Service, uploads *uploadqueue.Queue, clk *clock.Service, recordingsDir, extension string, popTimeout time.Duration, sleepCheck SleepChecker, logger *slog.Logger) *Persister {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Persister{
		store:         store,
		queue:         queue,
		files:         files,
		uploads:       uploads,
		clk:           clk,
		recordingsDir: recordingsDir,
		extension:     extension,
		popTimeout:    popTimeout,
		sleepCheck:    sleepCheck,
		logger:        logging.NewComponentLogger(logger, "persister"),
	}
}

// Run loops until ctx is canceled, persisting chunks as they arrive. When
// the queue stays empty for a poll the sleep check runs.
func (p *Persister) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		chunk, ok := p.queue.Pop(ctx, p.popTimeout)
		if !ok {
			if ctx.Err() != nil {
				return
			}
			if p.sleepCheck != nil {
				p.sleepCheck.MaybeSleep(ctx)
			}
			continue
		}
		// The popped chunk is in neither queue until the write lands; the
		// flag keeps the arbiter from suspending over it.
		p.store.BeginChunkWork()
		p.persist(ctx, chunk)
		p.store.EndChunkWork()
	}
}

// PersistOne writes a single chunk, used by Run and directly by tests.
func (p *Persister) PersistOne(ctx context.Context, chunk audio.Chunk) error {
	p.store.BeginChunkWork()
	defer p.store.EndChunkWork()
	return p.persist(ctx, chunk)
}

func (p *Persister) persist(ctx context.Context, chunk audio.Chunk) error {
	if chunk.Size() == 0 {
		// Nothing worth uploading; dropping here keeps empty files out of
		// the durable queue entirely.
		p.logger.Warn("discarding empty chunk",
			logging.String("mark", chunk.Mark.String()),
			logging.String(logging.FieldEventType, "empty_chunk_discarded"))
		return nil
	}

	index := p.store.NextAudioFileIndex()
	name := fmt.Sprintf("%d_%d_%s_%s.%s",
		p.store.BootSession(), index, p.clk.Timestamp(), chunk.Mark, p.extension)
	path := filepath.Join(p.recordingsDir, name)

	if err := p.files.WriteFile(ctx, path, chunk.Data); err != nil {
		p.logger.Error("chunk write failed",
			logging.Error(err),
			logging.String(logging.FieldPath, path),
			logging.String(logging.FieldEventType, "chunk_write_failed"),
			logging.String(logging.FieldErrorHint, "check storage space and permissions"))
		return err
	}

	if err := p.uploads.Enqueue(ctx, path); err != nil {
		p.logger.Error("enqueue failed, file persisted but not queued",
			logging.Error(err),
			logging.String(logging.FieldPath, path),
			logging.String(logging.FieldEventType, "enqueue_failed"))
		return err
	}

	p.store.SetFilesAvailable(true)
	p.logger.Info("chunk persisted",
		logging.String(logging.FieldPath, path),
		logging.Int("bytes", chunk.Size()),
		logging.String("mark", chunk.Mark.String()))
	return nil
}
