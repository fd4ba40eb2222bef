package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mitralabs/coco/internal/audio"
	"github.com/mitralabs/coco/internal/clock"
	"github.com/mitralabs/coco/internal/logging"
	"github.com/mitralabs/coco/internal/state"
)

// idlePollInterval is how often the recorder rechecks an inactive recording
// request.
const idlePollInterval = 100 * time.Millisecond

// Recorder drives the capture collaborator while recording is requested.
type Recorder struct {
	store    *state.Store
	capturer audio.Capturer
	queue    *BoundedQueue
	clk      *clock.Service

	recordDuration time.Duration
	pushTimeout    time.Duration
	logger         *slog.Logger
}

// NewRecorder wires a Recorder. recordDuration is the length of each capture
// request; pushTimeout bounds how long a full queue stalls capture.
func NewRecorder(store *state.Store, capturer audio.Capturer, queue *BoundedQueue, clk *clock.Service, recordDuration, pushTimeout time.Duration, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Recorder{
		store:          store,
		capturer:       capturer,
		queue:          queue,
		clk:            clk,
		recordDuration: recordDuration,
		pushTimeout:    pushTimeout,
		logger:         logging.NewComponentLogger(logger, "recorder"),
	}
}

// Run loops until ctx is canceled. Every true interval of the recording
// request produces exactly one start chunk, then middles, then one end chunk
// captured after the request clears.
func (r *Recorder) Run(ctx context.Context) {
	wasRecording := false

	for {
		if ctx.Err() != nil {
			return
		}

		if !r.store.RecordingRequested() {
			if wasRecording {
				// Close the session with a final end chunk.
				r.captureAndPush(ctx, audio.MarkEnd)
				wasRecording = false
				r.logger.Info("recording session closed",
					logging.String(logging.FieldEventType, "session_end"))
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(idlePollInterval):
			}
			continue
		}

		mark := audio.MarkMiddle
		if !wasRecording {
			mark = audio.MarkStart
			r.logger.Info("recording session opened",
				logging.String(logging.FieldEventType, "session_start"))
		}
		r.captureAndPush(ctx, mark)
		wasRecording = true
	}
}

func (r *Recorder) captureAndPush(ctx context.Context, mark audio.Mark) {
	// A chunk being captured is in neither queue; the flag keeps the power
	// arbiter from suspending mid-session, notably during the end chunk.
	r.store.BeginChunkWork()
	defer r.store.EndChunkWork()

	data, err := r.capturer.CaptureFor(ctx, r.recordDuration)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		r.logger.Error("capture failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "capture_failed"),
			logging.String(logging.FieldErrorHint, "check capture device"))
		return
	}

	chunk := audio.Chunk{
		Data:       data,
		CapturedAt: r.clk.Now(),
		Mark:       mark,
	}
	if err := r.queue.Push(ctx, chunk, r.pushTimeout); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		// Backpressure exhausted. The chunk is dropped, never half-queued.
		r.logger.Warn("chunk dropped, persistence cannot keep up",
			logging.String("mark", mark.String()),
			logging.Int("bytes", chunk.Size()),
			logging.String(logging.FieldEventType, "chunk_dropped"))
	}
}
